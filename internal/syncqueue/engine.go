// Package syncqueue drains paid orders to the commerce platform.
//
// The queue is not stored separately: it is every pending_sync or
// sync_failed order with retry budget left, oldest first. Retry count and
// the next attempt time live on the order row, so a restart resumes where
// the previous process stopped. Delivery is at least once; the platform
// deduplicates by idempotency key.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/keylock"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/platform"
	"github.com/dmitrijs2005/lanpos/internal/store"
	"github.com/sethvargo/go-retry"
)

// OrderStore is the part of the Local Order Store the engine drives.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	AdvanceStatus(ctx context.Context, orderID string, ev models.Event, muts ...store.Mutation) (*models.Order, error)
	SyncCandidates(ctx context.Context, maxRetries int, now time.Time, limit int) ([]*models.Order, error)
	UnsyncedCount(ctx context.Context) (int, error)
	SyncFailures(ctx context.Context, maxRetries int) ([]*models.Order, error)
	ResetSyncRetries(ctx context.Context, orderID string) (*models.Order, error)
}

// Observer receives sync outcomes, e.g. for metrics.
type Observer interface {
	// SyncAttempt is called once per platform submission with "synced",
	// "retryable" or "terminal".
	SyncAttempt(outcome string)
	SyncBacklog(n int)
}

type nopObserver struct{}

func (nopObserver) SyncAttempt(string) {}
func (nopObserver) SyncBacklog(int)    {}

type Config struct {
	MaxRetries  int
	Interval    time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultConfig matches the register defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, Interval: 30 * time.Second, BackoffBase: 5 * time.Second, BackoffMax: 10 * time.Minute}
}

// Result is the outcome of one SyncOne call. Err is nil on success.
type Result struct {
	OrderID  string `json:"order_id"`
	Success  bool   `json:"success"`
	RemoteID string `json:"remote_id,omitempty"`
	// Attempted is false when the platform was not called.
	Attempted bool  `json:"attempted"`
	Err       error `json:"-"`
}

// OrderError is one failed order in a Summary.
type OrderError struct {
	OrderID string `json:"order_id"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type Summary struct {
	Synced int          `json:"synced"`
	Failed int          `json:"failed"`
	Errors []OrderError `json:"errors"`
}

type Engine struct {
	store    OrderStore
	adapter  platform.Adapter
	cfg      Config
	inflight *keylock.Locker
	logger   logging.Logger
	observer Observer
	kick     chan struct{}
	now      func() time.Time
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine. A nil adapter disables submission: SyncOne reports
// common.ErrConfiguration and the worker idles.
func New(st OrderStore, adapter platform.Adapter, cfg Config, logger logging.Logger, opts ...Option) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	e := &Engine{
		store:    st,
		adapter:  adapter,
		cfg:      cfg,
		inflight: keylock.New(),
		logger:   logger.With("module", "syncqueue"),
		observer: nopObserver{},
		kick:     make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) MaxRetries() int { return e.cfg.MaxRetries }

// SyncOne submits a single order now, ignoring its backoff but never its
// retry budget. Failures are reported in the Result, never as a panic or
// a separate error.
func (e *Engine) SyncOne(ctx context.Context, orderID string) Result {
	res := Result{OrderID: orderID}
	if e.adapter == nil {
		res.Err = &common.ConfigurationError{Reason: "commerce platform is not configured"}
		return res
	}

	// one submission per order at a time; a waiter sees the winner's outcome
	unlock, err := e.inflight.Lock(ctx, orderID)
	if err != nil {
		res.Err = err
		return res
	}
	defer unlock()

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		res.Err = err
		return res
	}

	switch {
	case o.Status == models.StatusSynced:
		res.Success = true
		res.RemoteID = o.Sync.RemoteID
		return res
	case o.Status != models.StatusPendingSync && o.Status != models.StatusSyncFailed:
		res.Err = fmt.Errorf("order %s is %s: %w", o.ID, o.Status, common.ErrIllegalTransition)
		return res
	case o.Sync.RetryCount >= e.cfg.MaxRetries:
		res.Err = fmt.Errorf("order %s after %d attempts: %w", o.ID, o.Sync.RetryCount, common.ErrRetryBudgetExhausted)
		return res
	}

	res.Attempted = true
	remoteID, subErr := e.adapter.SubmitOrder(ctx, o)
	// the platform has answered; record it even if the caller gave up
	recCtx := context.WithoutCancel(ctx)

	if subErr == nil {
		e.observer.SyncAttempt("synced")
		if _, err := e.store.AdvanceStatus(recCtx, o.ID, models.EventSyncSucceeded, store.WithRemoteID(remoteID)); err != nil {
			e.logger.Error(ctx, "order accepted by platform but not recorded", "order_id", o.ID, "remote_id", remoteID, "error", err)
			res.Err = fmt.Errorf("record sync of %s: %w", o.ID, err)
			return res
		}
		e.logger.Info(ctx, "order synced", "order_id", o.ID, "remote_id", remoteID)
		res.Success = true
		res.RemoteID = remoteID
		return res
	}

	se := platform.Classify(subErr)
	e.observer.SyncAttempt(se.Kind)
	next := e.now().Add(e.delay(o.Sync.RetryCount+1, se.Kind))
	updated, err := e.store.AdvanceStatus(recCtx, o.ID, models.EventSyncFailed, store.WithSyncError(se.Kind, se.Error(), next))
	if err != nil {
		e.logger.Error(ctx, "sync failure not recorded", "order_id", o.ID, "error", err)
		res.Err = errors.Join(se, err)
		return res
	}
	e.logger.Warn(ctx, "order sync failed", "order_id", o.ID, "kind", se.Kind,
		"retry_count", updated.Sync.RetryCount, "max_retries", e.cfg.MaxRetries, "error", se.Error())
	res.Err = se
	return res
}

// SyncAll drains every due queue entry in FIFO order. It is not cancellable
// mid-batch: each started entry completes. The error is only set when the
// queue itself could not be read.
func (e *Engine) SyncAll(ctx context.Context) (Summary, error) {
	ctx = context.WithoutCancel(ctx)
	sum := Summary{Errors: []OrderError{}}

	candidates, err := e.store.SyncCandidates(ctx, e.cfg.MaxRetries, e.now(), 0)
	if err != nil {
		return sum, fmt.Errorf("read sync queue: %w", err)
	}

	for _, o := range candidates {
		r := e.SyncOne(ctx, o.ID)
		switch {
		case r.Success:
			if r.Attempted {
				sum.Synced++
			}
		case !r.Attempted && errors.Is(r.Err, common.ErrRetryBudgetExhausted):
			// exhausted between listing and locking
		default:
			sum.Failed++
			oe := OrderError{OrderID: o.ID, Message: r.Err.Error()}
			var se *common.SyncError
			if errors.As(r.Err, &se) {
				oe.Kind = se.Kind
			}
			sum.Errors = append(sum.Errors, oe)
		}
	}

	if n, err := e.store.UnsyncedCount(ctx); err == nil {
		e.observer.SyncBacklog(n)
	}
	if len(candidates) > 0 {
		e.logger.Info(ctx, "sync pass finished", "synced", sum.Synced, "failed", sum.Failed)
	}
	return sum, nil
}

// ResetRetries is the manual resync: it re-arms an exhausted order and
// wakes the worker.
func (e *Engine) ResetRetries(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := e.store.ResetSyncRetries(ctx, orderID)
	if err != nil {
		return nil, err
	}
	e.Kick()
	return o, nil
}

// PendingCount is the sync backlog shown to staff.
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	return e.store.UnsyncedCount(ctx)
}

// Failures lists orders that need an operator.
func (e *Engine) Failures(ctx context.Context) ([]*models.Order, error) {
	return e.store.SyncFailures(ctx, e.cfg.MaxRetries)
}

// delay is the wait before attempt number attempt+1. Terminal rejections
// wait the full cap since retrying them quickly cannot help.
func (e *Engine) delay(attempt int, kind string) time.Duration {
	if e.cfg.BackoffBase <= 0 {
		return 0
	}
	if kind == common.SyncErrorTerminal && e.cfg.BackoffMax > 0 {
		return e.cfg.BackoffMax
	}
	b := retry.NewExponential(e.cfg.BackoffBase)
	if e.cfg.BackoffMax > 0 {
		b = retry.WithCappedDuration(e.cfg.BackoffMax, b)
	}
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d, _ = b.Next()
	}
	return d
}
