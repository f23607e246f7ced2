package syncqueue

import (
	"context"
	"time"
)

// Kick asks the worker for an immediate pass. It never blocks.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run is the background worker: one goroutine, one pass at a time, on every
// Interval tick and on every Kick. It returns when ctx is done.
func (e *Engine) Run(ctx context.Context) {
	if e.adapter == nil {
		e.logger.Warn(ctx, "commerce platform not configured; orders stay queued")
		<-ctx.Done()
		return
	}

	interval := e.cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	e.logger.Info(ctx, "sync worker started", "interval", interval.String(), "max_retries", e.cfg.MaxRetries)
	e.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info(ctx, "sync worker stopped")
			return
		case <-t.C:
		case <-e.kick:
		}
		e.pass(ctx)
	}
}

func (e *Engine) pass(ctx context.Context) {
	if _, err := e.SyncAll(ctx); err != nil {
		e.logger.Error(ctx, "sync pass failed", "error", err)
	}
}
