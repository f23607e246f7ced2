// Package discovery sweeps a subnet for other registers.
//
// Probes run concurrently with a bound and a rate limit. A host that does
// not answer within the probe timeout is treated as absent, so a scan can
// miss peers under packet loss.
package discovery

import (
	"context"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultConcurrency  = 32
	DefaultRate         = 200
	DefaultProbeTimeout = 400 * time.Millisecond
)

// Prober asks one host whether it runs a register. A nil peer with a nil
// error means nobody answered.
type Prober interface {
	Probe(ctx context.Context, addr netip.AddrPort) (*models.RegisterPeer, error)
}

// Progress counts finished probes. Checked never decreases within a scan.
type Progress struct {
	Checked int
	Total   int
}

type Scanner struct {
	prober      Prober
	port        uint16
	concurrency int
	rate        rate.Limit
	timeout     time.Duration
	logger      logging.Logger
}

type Option func(*Scanner)

func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRate limits probes per second; 0 or less means no limit.
func WithRate(perSecond float64) Option {
	return func(s *Scanner) {
		if perSecond > 0 {
			s.rate = rate.Limit(perSecond)
		} else {
			s.rate = rate.Inf
		}
	}
}

func WithProbeTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewScanner(p Prober, port uint16, l logging.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		prober:      p,
		port:        port,
		concurrency: DefaultConcurrency,
		rate:        DefaultRate,
		timeout:     DefaultProbeTimeout,
		logger:      l.With("module", "discovery"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan probes every host of subnet and returns the registers that answered,
// ordered by address. progress may be nil; otherwise it receives one update
// per finished probe and must be drained by the caller. It is not closed.
//
// Cancelling ctx stops the sweep; Scan waits for in-flight probes and
// returns what it found so far together with ctx.Err().
func (s *Scanner) Scan(ctx context.Context, subnet netip.Prefix, progress chan<- Progress) ([]models.RegisterPeer, error) {
	hosts, err := Hosts(subnet)
	if err != nil {
		return nil, err
	}
	total := len(hosts)
	s.logger.Info(ctx, "scanning subnet", "subnet", subnet.String(), "hosts", total, "port", s.port)

	// a fresh limiter per scan so a restart is not throttled by the last one
	limiter := rate.NewLimiter(s.rate, 1)

	var (
		mu      sync.Mutex
		checked int
		peers   = []models.RegisterPeer{}
	)
	done := func(peer *models.RegisterPeer) {
		mu.Lock()
		defer mu.Unlock()
		checked++
		if peer != nil {
			peers = append(peers, *peer)
		}
		if progress != nil {
			select {
			case progress <- Progress{Checked: checked, Total: total}:
			case <-ctx.Done():
			}
		}
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, h := range hosts {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		target := netip.AddrPortFrom(h, s.port)
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			peer, err := s.prober.Probe(pctx, target)
			if err != nil {
				s.logger.Debug(ctx, "probe failed", "target", target.String(), "error", err)
				peer = nil
			}
			done(peer)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(peers, func(i, j int) bool {
		return addrLess(peers[i].Address, peers[j].Address)
	})

	if err := ctx.Err(); err != nil {
		s.logger.Info(ctx, "scan cancelled", "checked", checked, "total", total, "found", len(peers))
		return peers, err
	}
	s.logger.Info(ctx, "scan finished", "found", len(peers))
	return peers, nil
}

func addrLess(a, b string) bool {
	x, errX := netip.ParseAddr(a)
	y, errY := netip.ParseAddr(b)
	if errX != nil || errY != nil {
		return a < b
	}
	return x.Less(y)
}
