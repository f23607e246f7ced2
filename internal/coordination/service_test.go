package coordination

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/coordination/rpc"
	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/register/registertest"
	"github.com/dmitrijs2005/lanpos/internal/repositories/metadata"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repotest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// lan is an in-memory network with one listening register.
type lan struct {
	mu  sync.Mutex
	lis *bufconn.Listener
}

func (n *lan) listen(string, string) (net.Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lis = bufconn.Listen(1 << 20)
	return n.lis, nil
}

func (n *lan) dialer() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		n.mu.Lock()
		lis := n.lis
		n.mu.Unlock()
		if lis == nil {
			return nil, errors.New("connection refused")
		}
		return lis.DialContext(ctx)
	})
}

type recorder struct {
	mu       sync.Mutex
	degraded []bool
	scans    []int
}

func (r *recorder) BridgeDegraded(d bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = append(r.degraded, d)
}

func (r *recorder) DiscoveryScan(found int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, found)
}

var insecureLAN = Transport{TLS: rpc.TLSFiles{AllowInsecure: true}, BridgeTimeout: time.Second, ProbeTimeout: time.Second}

type node struct {
	svc  *Service
	meta metadata.Repository
	reg  *registertest.Register
}

func newNode(t *testing.T, tr Transport, opts ...Option) *node {
	t.Helper()
	meta := metadata.NewSQLRepository(repotest.OpenSQLite(t), dbx.DialectSQLite)
	reg := registertest.New(t)
	svc := NewService(meta, reg, tr, logging.NewDiscard(), opts...)
	t.Cleanup(func() { _ = svc.Close() })
	return &node{svc: svc, meta: meta, reg: reg}
}

func persisted(t *testing.T, meta metadata.Repository) models.CoordinationConfig {
	t.Helper()
	raw, err := meta.Get(context.Background(), ConfigKey)
	require.NoError(t, err)
	require.NotNil(t, raw)
	var cfg models.CoordinationConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	return cfg
}

func TestLoad_DefaultsAndStableRegisterID(t *testing.T) {
	n := newNode(t, insecureLAN)
	ctx := context.Background()

	require.NoError(t, n.svc.Load(ctx, "Front"))
	cfg := n.svc.Config()
	assert.Equal(t, models.ModeStandalone, cfg.Mode)
	assert.Equal(t, common.DefaultCoordinationPort, cfg.Port)
	assert.Equal(t, "Front", cfg.RegisterName)
	require.NotEmpty(t, cfg.RegisterID)
	assert.Equal(t, Standalone{}, n.svc.Mode())
	assert.Same(t, n.reg, n.svc.Operations())

	again := NewService(n.meta, n.reg, insecureLAN, logging.NewDiscard())
	require.NoError(t, again.Load(ctx, "Renamed"))
	assert.Equal(t, cfg.RegisterID, again.Config().RegisterID)
	assert.Equal(t, "Front", again.Config().RegisterName)
}

func TestSetMode_ClientWithoutSecretKeepsMode(t *testing.T) {
	n := newNode(t, insecureLAN)
	ctx := context.Background()
	require.NoError(t, n.svc.Load(ctx, "Front"))
	before := persisted(t, n.meta)

	err := n.svc.SetMode(ctx, models.ModeClient, models.CoordinationConfig{ServerAddress: "192.168.1.10"})
	var cfgErr *common.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, common.ErrConfiguration)

	assert.Equal(t, models.ModeStandalone, n.svc.Mode().Kind())
	assert.Equal(t, before, persisted(t, n.meta))

	err = n.svc.SetMode(ctx, models.ModeServer, models.CoordinationConfig{})
	require.ErrorIs(t, err, common.ErrConfiguration)
	assert.Equal(t, models.ModeStandalone, n.svc.Mode().Kind())
}

func TestSetMode_TransportMustBeChosen(t *testing.T) {
	n := newNode(t, Transport{})
	ctx := context.Background()
	require.NoError(t, n.svc.Load(ctx, "Front"))

	err := n.svc.SetMode(ctx, models.ModeServer, models.CoordinationConfig{SharedSecret: "s"})
	require.ErrorIs(t, err, common.ErrConfiguration)
	err = n.svc.SetMode(ctx, models.ModeClient, models.CoordinationConfig{SharedSecret: "s", ServerAddress: "10.0.0.2"})
	require.ErrorIs(t, err, common.ErrConfiguration)
	assert.Equal(t, models.ModeStandalone, n.svc.Mode().Kind())

	err = n.svc.SetMode(ctx, models.ModeClient, models.CoordinationConfig{SharedSecret: "s"})
	require.ErrorIs(t, err, common.ErrConfiguration, "no server address")
}

func TestSetMode_ListenFailureKeepsPreviousMode(t *testing.T) {
	n := newNode(t, insecureLAN, WithListen(func(string, string) (net.Listener, error) {
		return nil, errors.New("address already in use")
	}))
	ctx := context.Background()
	require.NoError(t, n.svc.Load(ctx, "Front"))

	err := n.svc.SetMode(ctx, models.ModeServer, models.CoordinationConfig{SharedSecret: "s"})
	require.Error(t, err)
	assert.Equal(t, models.ModeStandalone, n.svc.Mode().Kind())
	assert.Equal(t, models.ModeStandalone, persisted(t, n.meta).Mode)
}

func TestServerAndClient(t *testing.T) {
	network := &lan{}
	ctx := context.Background()

	srv := newNode(t, insecureLAN, WithListen(network.listen))
	require.NoError(t, srv.svc.Load(ctx, "Front"))
	require.NoError(t, srv.svc.SetMode(ctx, models.ModeServer, models.CoordinationConfig{SharedSecret: "shh"}))
	assert.Equal(t, Server{Port: common.DefaultCoordinationPort}, srv.svc.Mode())
	assert.Same(t, srv.reg, srv.svc.Operations(), "server stays authoritative")

	rec := &recorder{}
	cli := newNode(t, insecureLAN, WithDialOptions(network.dialer()), WithObserver(rec))
	require.NoError(t, cli.svc.Load(ctx, "Back"))

	_, err := cli.svc.TestConnection(ctx, models.CoordinationConfig{SharedSecret: "wrong", ServerAddress: "127.0.0.1"})
	require.ErrorIs(t, err, common.ErrAuthentication)
	assert.Empty(t, persisted(t, cli.meta).ServerAddress)

	peer, err := cli.svc.TestConnection(ctx, models.CoordinationConfig{SharedSecret: "shh", ServerAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "Front", peer.Name)
	assert.Equal(t, srv.svc.Config().RegisterID, peer.RegisterID)
	saved := persisted(t, cli.meta)
	assert.Equal(t, "127.0.0.1", saved.ServerAddress)
	assert.Equal(t, common.DefaultCoordinationPort, saved.ServerPort)
	assert.Empty(t, saved.SharedSecret, "a test does not store the secret")

	require.NoError(t, cli.svc.SetMode(ctx, models.ModeClient, models.CoordinationConfig{SharedSecret: "shh"}))
	assert.Equal(t, Client{Address: "127.0.0.1", Port: common.DefaultCoordinationPort}, cli.svc.Mode())

	sess := models.Session{ID: "back-till", UserID: "u2"}
	_, err = cli.svc.Operations().AddItem(ctx, sess, models.LineItem{ProductID: "p1", Quantity: 1, UnitPrice: decimal.RequireFromString("2.50")})
	require.NoError(t, err)

	onServer, err := srv.reg.Store.GetBasket(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, onServer.Items, 1)
	onClient, err := cli.reg.Store.GetBasket(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, onClient.Items, "client store is not used in client mode")

	// server goes away: the client degrades instead of failing hard
	require.NoError(t, srv.svc.SetMode(ctx, models.ModeStandalone, models.CoordinationConfig{}))
	b, err := cli.svc.Operations().GetBasket(ctx, sess)
	require.ErrorIs(t, err, common.ErrDegraded)
	require.NotNil(t, b)
	assert.Len(t, b.Items, 1)
	rec.mu.Lock()
	assert.Equal(t, []bool{true}, rec.degraded)
	rec.mu.Unlock()

	require.NoError(t, cli.svc.SetMode(ctx, models.ModeStandalone, models.CoordinationConfig{}))
	assert.Same(t, cli.reg, cli.svc.Operations())
	assert.Equal(t, "shh", persisted(t, cli.meta).SharedSecret)
}

func TestDiscover(t *testing.T) {
	network := &lan{}
	ctx := context.Background()

	srv := newNode(t, insecureLAN, WithListen(network.listen), WithDialOptions(network.dialer()))
	require.NoError(t, srv.svc.Load(ctx, "Front"))
	require.NoError(t, srv.svc.SetMode(ctx, models.ModeServer, models.CoordinationConfig{SharedSecret: "shh"}))

	rec := &recorder{}
	cli := newNode(t, insecureLAN, WithDialOptions(network.dialer()), WithObserver(rec))
	require.NoError(t, cli.svc.Load(ctx, "Back"))

	// every address of the in-memory network reaches the one server
	peers, err := cli.svc.Discover(ctx, "10.9.0.0/30", nil)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "10.9.0.1", peers[0].Address)
	assert.Equal(t, "Front", peers[1].Name)

	// a register does not report itself
	self, err := srv.svc.Discover(ctx, "10.9.0.0/30", nil)
	require.NoError(t, err)
	assert.Empty(t, self)

	_, err = cli.svc.Discover(ctx, "bogus", nil)
	require.ErrorIs(t, err, common.ErrValidation)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int{2}, rec.scans)
}
