// Package app wires a register process: store, checkout, sync worker,
// shift ledger, coordination and the ops endpoint.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/lanpos/internal/checkout"
	"github.com/dmitrijs2005/lanpos/internal/config"
	"github.com/dmitrijs2005/lanpos/internal/coordination"
	"github.com/dmitrijs2005/lanpos/internal/coordination/rpc"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/ops"
	"github.com/dmitrijs2005/lanpos/internal/payment"
	"github.com/dmitrijs2005/lanpos/internal/platform"
	"github.com/dmitrijs2005/lanpos/internal/register"
	"github.com/dmitrijs2005/lanpos/internal/reports"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repomanager"
	"github.com/dmitrijs2005/lanpos/internal/shifts"
	"github.com/dmitrijs2005/lanpos/internal/store"
	"github.com/dmitrijs2005/lanpos/internal/syncqueue"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	Store        *store.Store
	Payments     *payment.Registry
	Sync         *syncqueue.Engine
	Shifts       *shifts.Ledger
	Local        *register.Local
	Coordination *coordination.Service
	Metrics      *ops.Metrics
	// Archiver is nil when no bucket is configured.
	Archiver *reports.Archiver
}

// NewApp opens the store and builds every component. The persisted
// coordination mode is started as well, so a failure there fails startup.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, repos, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	a, err := build(ctx, c, logger, db, repos)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, repos repomanager.RepositoryManager) (*App, error) {
	meta := repos.Metadata(db)
	ident, err := coordination.EnsureConfig(ctx, meta, c.RegisterName)
	if err != nil {
		return nil, fmt.Errorf("register identity: %w", err)
	}

	metrics := ops.NewMetrics()
	st := store.New(db, repos, ident.RegisterID, logger)

	var adapter platform.Adapter
	if c.PlatformEndpoint != "" {
		adapter = platform.NewHTTPAdapter(c.PlatformEndpoint, c.PlatformAPIKey, c.PlatformTimeout)
	} else {
		logger.Warn(ctx, "no commerce platform configured, paid orders stay queued")
	}
	engine := syncqueue.New(st, adapter, syncqueue.Config{
		MaxRetries:  c.MaxSyncRetries,
		Interval:    c.SyncInterval,
		BackoffBase: c.SyncBackoffBase,
		BackoffMax:  c.SyncBackoffMax,
	}, logger, syncqueue.WithObserver(metrics))

	payments := payment.NewRegistry()
	local := register.NewLocal(st, checkout.NewService(st, payments, logger), engine, logger)

	coord := coordination.NewService(meta, local, coordination.Transport{
		TLS: rpc.TLSFiles{
			CertFile:      c.TLSCertFile,
			KeyFile:       c.TLSKeyFile,
			CAFile:        c.TLSCAFile,
			AllowInsecure: c.AllowInsecureTransport,
		},
		BridgeTimeout:        c.BridgeTimeout,
		ProbeTimeout:         c.ProbeTimeout,
		DiscoveryConcurrency: c.DiscoveryConcurrency,
		DiscoveryRate:        c.DiscoveryRate,
	}, logger, coordination.WithObserver(metrics))
	if err := coord.Load(ctx, c.RegisterName); err != nil {
		return nil, err
	}

	var archiver *reports.Archiver
	if c.S3Bucket != "" {
		archiver, err = reports.NewS3Archiver(ctx, reports.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		}, ident.RegisterName)
		if err != nil {
			_ = coord.Close()
			return nil, err
		}
	}

	return &App{
		config:       c,
		logger:       logger,
		db:           db,
		Store:        st,
		Payments:     payments,
		Sync:         engine,
		Shifts:       shifts.NewLedger(db, repos, st, ident.RegisterID, logger),
		Local:        local,
		Coordination: coord,
		Metrics:      metrics,
		Archiver:     archiver,
	}, nil
}

// Operations follows the coordination mode.
func (a *App) Operations() register.Operations {
	return a.Coordination.Operations()
}

func (a *App) Info() ops.Info {
	cfg := a.Coordination.Config()
	return ops.Info{RegisterID: cfg.RegisterID, RegisterName: cfg.RegisterName, Mode: string(cfg.Mode)}
}

// InitSignalHandler cancels on SIGINT, SIGTERM or SIGQUIT.
func InitSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the sync worker and the ops endpoint and blocks until ctx is
// done or the ops endpoint fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info(ctx, "Starting register...", "register", a.Info().RegisterName, "mode", a.Info().Mode)

	var (
		wg     sync.WaitGroup
		runErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Sync.Run(ctx)
	}()

	if a.config.OpsAddr != "" {
		h := ops.NewRouter(a.Sync, a.Info, a.Metrics, a.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ops.Run(ctx, a.config.OpsAddr, h, a.logger); err != nil {
				a.logger.Error(ctx, "ops endpoint failed", "error", err)
				runErr = err
				cancel()
			}
		}()
	}

	wg.Wait()
	return runErr
}

// Close stops coordination and closes the store.
func (a *App) Close() error {
	return errors.Join(a.Coordination.Close(), a.db.Close())
}
