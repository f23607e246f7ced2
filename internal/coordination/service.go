// Package coordination decides which store is authoritative for this
// register and runs the networking that mode needs: nothing in standalone,
// a coordination server in server mode, a bridge in client mode.
//
// Switching modes never reconciles state between stores. Operators must
// not run two authoritative registers against the same orders.
package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/coordination/auth"
	"github.com/dmitrijs2005/lanpos/internal/coordination/discovery"
	"github.com/dmitrijs2005/lanpos/internal/coordination/rpc"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/register"
	"github.com/dmitrijs2005/lanpos/internal/repositories/metadata"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ConfigKey is the metadata key holding the persisted CoordinationConfig.
const ConfigKey = "coordination_config"

// Transport is the process-level part of coordination: TLS material,
// timeouts and discovery pacing. It is not persisted with the mode.
type Transport struct {
	TLS                  rpc.TLSFiles
	BridgeTimeout        time.Duration
	ProbeTimeout         time.Duration
	DiscoveryConcurrency int
	DiscoveryRate        float64
}

// Observer is told about bridge and discovery events, e.g. for metrics.
type Observer interface {
	BridgeDegraded(degraded bool)
	DiscoveryScan(found int, err error)
}

type nopObserver struct{}

func (nopObserver) BridgeDegraded(bool)      {}
func (nopObserver) DiscoveryScan(int, error) {}

type Service struct {
	meta      metadata.Repository
	local     register.Operations
	transport Transport
	logger    logging.Logger
	observer  Observer
	listen    func(network, address string) (net.Listener, error)
	dialOpts  []grpc.DialOption

	mu   sync.Mutex
	cfg  models.CoordinationConfig
	mode Mode
	rt   *runtime
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithListen replaces net.Listen for server mode.
func WithListen(fn func(network, address string) (net.Listener, error)) Option {
	return func(s *Service) { s.listen = fn }
}

// WithDialOptions adds options to every outgoing connection.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(s *Service) { s.dialOpts = append(s.dialOpts, opts...) }
}

func NewService(meta metadata.Repository, local register.Operations, tr Transport, l logging.Logger, opts ...Option) *Service {
	s := &Service{
		meta:      meta,
		local:     local,
		transport: tr,
		logger:    l.With("module", "coordination"),
		observer:  nopObserver{},
		listen:    net.Listen,
		mode:      Standalone{},
		rt:        &runtime{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load reads the persisted config and starts the persisted mode. A mode
// that cannot start is an error; the register never drops to standalone on
// its own.
func (s *Service) Load(ctx context.Context, registerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := EnsureConfig(ctx, s.meta, registerName)
	if err != nil {
		return err
	}
	if err := s.validate(cfg); err != nil {
		return fmt.Errorf("persisted %s mode: %w", cfg.Mode, err)
	}
	rt, err := s.start(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start %s mode: %w", cfg.Mode, err)
	}
	s.rt.close()
	s.rt, s.cfg, s.mode = rt, cfg, modeOf(cfg)
	s.logger.Info(ctx, "coordination loaded", "mode", cfg.Mode, "register_id", cfg.RegisterID)
	return nil
}

// EnsureConfig returns the persisted config, creating it on first run with
// standalone mode and a new stable register id.
func EnsureConfig(ctx context.Context, meta metadata.Repository, registerName string) (models.CoordinationConfig, error) {
	cfg, found, err := read(ctx, meta)
	if err != nil {
		return cfg, err
	}
	dirty := !found
	if cfg.Mode == "" {
		cfg.Mode = models.ModeStandalone
	}
	if cfg.Port == 0 {
		cfg.Port = common.DefaultCoordinationPort
	}
	if cfg.RegisterID == "" {
		cfg.RegisterID = uuid.NewString()
		dirty = true
	}
	if cfg.RegisterName == "" && registerName != "" {
		cfg.RegisterName = registerName
		dirty = true
	}
	if dirty {
		if err := write(ctx, meta, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Config returns the active configuration including the secret.
func (s *Service) Config() models.CoordinationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Operations is where basket, order and sync calls go in the current mode.
func (s *Service) Operations() register.Operations {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rt.bridge != nil {
		return s.rt.bridge
	}
	return s.local
}

// SetMode switches to mode. Empty fields of cfg keep their current values;
// the register id never changes. On any error the previous mode stays
// active and the persisted config is untouched.
func (s *Service) SetMode(ctx context.Context, mode models.ModeKind, cfg models.CoordinationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := merge(s.cfg, cfg)
	next.Mode = mode
	if err := s.validate(next); err != nil {
		return err
	}

	prev := s.cfg
	s.rt.close()
	rt, err := s.start(ctx, next)
	if err == nil {
		if err = write(ctx, s.meta, next); err != nil {
			rt.close()
		}
	}
	if err != nil {
		restored, rerr := s.start(ctx, prev)
		if rerr != nil {
			s.logger.Error(ctx, "previous coordination mode could not be restored", "mode", prev.Mode, "error", rerr)
			restored = &runtime{}
		}
		s.rt = restored
		return err
	}

	s.rt, s.cfg, s.mode = rt, next, modeOf(next)
	s.logger.Info(ctx, "coordination mode changed", "from", prev.Mode, "to", next.Mode, "config", fmt.Sprintf("%+v", next.Redacted()))
	return nil
}

// TestConnection performs a handshake and an authenticated ping against
// the server described by cfg (merged with the current config) without
// changing mode. A successful server is remembered as the client target
// unless this register is already a client of another one.
func (s *Service) TestConnection(ctx context.Context, cfg models.CoordinationConfig) (*models.RegisterPeer, error) {
	s.mu.Lock()
	candidate := merge(s.cfg, cfg)
	candidate.Mode = models.ModeClient
	s.mu.Unlock()

	if err := s.validate(candidate); err != nil {
		return nil, err
	}
	b, err := s.newBridge(candidate)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	peer, err := b.TestConnection(ctx)
	if err != nil {
		s.logger.Warn(ctx, "connection test failed", "address", candidate.ServerAddress, "port", candidate.ServerPort, "error", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, isClient := s.mode.(Client); !isClient {
		s.cfg.ServerAddress, s.cfg.ServerPort = candidate.ServerAddress, candidate.ServerPort
		if err := write(ctx, s.meta, s.cfg); err != nil {
			return peer, err
		}
	}
	return peer, nil
}

// Discover scans cidr ("" for the local /24) for other registers.
func (s *Service) Discover(ctx context.Context, cidr string, progress chan<- discovery.Progress) ([]models.RegisterPeer, error) {
	prefix, err := discovery.ParseSubnet(cidr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	port, self := s.cfg.Port, s.cfg.RegisterID
	s.mu.Unlock()
	if port == 0 {
		port = common.DefaultCoordinationPort
	}

	creds, err := rpc.ClientCredentials(s.transport.TLS)
	if err != nil {
		// the handshake carries nothing secret
		creds = insecure.NewCredentials()
	}
	scanner := discovery.NewScanner(discovery.NewGRPCProber(creds, s.dialOpts...), uint16(port), s.logger,
		discovery.WithConcurrency(s.transport.DiscoveryConcurrency),
		discovery.WithRate(s.transport.DiscoveryRate),
		discovery.WithProbeTimeout(s.transport.ProbeTimeout),
	)

	found, err := scanner.Scan(ctx, prefix, progress)
	peers := make([]models.RegisterPeer, 0, len(found))
	for _, p := range found {
		if p.RegisterID != self {
			peers = append(peers, p)
		}
	}
	s.observer.DiscoveryScan(len(peers), err)
	return peers, err
}

// Close stops the server or bridge of the current mode.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rt.close()
	s.rt = &runtime{}
	return nil
}

func read(ctx context.Context, meta metadata.Repository) (models.CoordinationConfig, bool, error) {
	var cfg models.CoordinationConfig
	raw, err := meta.Get(ctx, ConfigKey)
	if err != nil {
		return cfg, false, err
	}
	if raw == nil {
		return cfg, false, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, false, fmt.Errorf("decode coordination config: %w", err)
	}
	return cfg, true, nil
}

func write(ctx context.Context, meta metadata.Repository, cfg models.CoordinationConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return meta.Set(ctx, ConfigKey, raw)
}

func merge(cur, upd models.CoordinationConfig) models.CoordinationConfig {
	out := cur
	if upd.Port != 0 {
		out.Port = upd.Port
	}
	if upd.SharedSecret != "" {
		out.SharedSecret = upd.SharedSecret
	}
	if upd.RegisterName != "" {
		out.RegisterName = upd.RegisterName
	}
	if upd.ServerAddress != "" {
		out.ServerAddress = upd.ServerAddress
	}
	if upd.ServerPort != 0 {
		out.ServerPort = upd.ServerPort
	}
	if out.Port == 0 {
		out.Port = common.DefaultCoordinationPort
	}
	if out.ServerPort == 0 && out.ServerAddress != "" {
		out.ServerPort = common.DefaultCoordinationPort
	}
	return out
}

// validate has no side effects; it runs before anything is torn down.
func (s *Service) validate(cfg models.CoordinationConfig) error {
	switch cfg.Mode {
	case models.ModeStandalone:
		return nil
	case models.ModeServer, models.ModeClient:
	default:
		return &common.ConfigurationError{Reason: fmt.Sprintf("unknown mode %q", cfg.Mode)}
	}

	if cfg.SharedSecret == "" {
		return &common.ConfigurationError{Reason: fmt.Sprintf("%s mode requires a shared secret", cfg.Mode)}
	}

	if cfg.Mode == models.ModeServer {
		if cfg.Port <= 0 || cfg.Port > 65535 {
			return &common.ConfigurationError{Reason: fmt.Sprintf("invalid port %d", cfg.Port)}
		}
		_, err := rpc.ServerCredentials(s.transport.TLS)
		return err
	}

	if cfg.ServerAddress == "" {
		return &common.ConfigurationError{Reason: "client mode requires a server address"}
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return &common.ConfigurationError{Reason: fmt.Sprintf("invalid server port %d", cfg.ServerPort)}
	}
	_, err := rpc.ClientCredentials(s.transport.TLS)
	return err
}

// runtime is the networking owned by one mode.
type runtime struct {
	server *rpc.Server
	done   chan struct{}
	bridge *rpc.Bridge
}

func (r *runtime) close() {
	if r == nil {
		return
	}
	if r.server != nil {
		r.server.Stop()
		<-r.done
	}
	if r.bridge != nil {
		_ = r.bridge.Close()
	}
}

func (s *Service) start(ctx context.Context, cfg models.CoordinationConfig) (*runtime, error) {
	switch cfg.Mode {
	case models.ModeServer:
		return s.startServer(ctx, cfg)
	case models.ModeClient:
		b, err := s.newBridge(cfg)
		if err != nil {
			return nil, err
		}
		return &runtime{bridge: b}, nil
	default:
		return &runtime{}, nil
	}
}

func (s *Service) startServer(ctx context.Context, cfg models.CoordinationConfig) (*runtime, error) {
	creds, err := rpc.ServerCredentials(s.transport.TLS)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(cfg.SharedSecret)
	if err != nil {
		return nil, err
	}
	lis, err := s.listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}

	srv := rpc.NewServer(s.local, verifier, rpc.Identity{RegisterName: cfg.RegisterName, RegisterID: cfg.RegisterID}, s.logger, grpc.Creds(creds))
	rt := &runtime{server: srv, done: make(chan struct{})}
	go func() {
		defer close(rt.done)
		if err := srv.Serve(lis); err != nil {
			s.logger.Error(ctx, "coordination server stopped", "error", err)
		}
	}()
	return rt, nil
}

func (s *Service) newBridge(cfg models.CoordinationConfig) (*rpc.Bridge, error) {
	creds, err := rpc.ClientCredentials(s.transport.TLS)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewSigner(cfg.SharedSecret, cfg.RegisterID, cfg.RegisterName)
	if err != nil {
		return nil, err
	}
	return rpc.NewBridge(rpc.BridgeConfig{
		Address:     net.JoinHostPort(cfg.ServerAddress, strconv.Itoa(cfg.ServerPort)),
		Timeout:     s.transport.BridgeTimeout,
		Credentials: creds,
		DialOptions: s.dialOpts,
	}, signer, s.logger, rpc.WithDegradedHook(s.observer.BridgeDegraded))
}
