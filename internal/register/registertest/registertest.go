// Package registertest builds a fully wired local register over an
// in-memory store for tests in other packages.
package registertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/checkout"
	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/payment"
	"github.com/dmitrijs2005/lanpos/internal/register"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repomanager"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repotest"
	"github.com/dmitrijs2005/lanpos/internal/store"
	"github.com/dmitrijs2005/lanpos/internal/syncqueue"
)

// Platform is an in-memory commerce platform that accepts everything
// unless Err is set.
type Platform struct {
	mu        sync.Mutex
	Err       error
	Submitted []string
}

func (p *Platform) SubmitOrder(_ context.Context, o *models.Order) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	p.Submitted = append(p.Submitted, o.ID)
	return "remote-" + o.ID, nil
}

func (p *Platform) TestConnection(context.Context) error { return nil }

func (p *Platform) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Submitted)
}

type Register struct {
	*register.Local
	Store    *store.Store
	Engine   *syncqueue.Engine
	Platform *Platform
}

// New returns a register whose sync engine has no backoff and is not
// running; tests drive it explicitly or call Engine.Run themselves.
func New(t testing.TB) *Register {
	t.Helper()
	logger := logging.NewDiscard()
	st := store.New(repotest.OpenSQLite(t), repomanager.NewSQLRepositoryManager(dbx.DialectSQLite), "reg-test", logger)
	pl := &Platform{}
	engine := syncqueue.New(st, pl, syncqueue.Config{MaxRetries: 3, Interval: time.Hour}, logger)
	co := checkout.NewService(st, payment.NewRegistry(), logger)
	return &Register{
		Local:    register.NewLocal(st, co, engine, logger),
		Store:    st,
		Engine:   engine,
		Platform: pl,
	}
}
