package shifts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/payment"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repomanager"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repotest"
	"github.com/dmitrijs2005/lanpos/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *store.Store
	ledger *Ledger
	clock  *clock
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := repotest.OpenSQLite(t)
	repos := repomanager.NewSQLRepositoryManager(dbx.DialectSQLite)
	c := &clock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	st := store.New(db, repos, "reg-1", logging.NewDiscard(), store.WithClock(c.Now))
	l := NewLedger(db, repos, st, "reg-1", logging.NewDiscard())
	l.now = c.Now
	return &fixture{store: st, ledger: l, clock: c}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) cashSale(t *testing.T, session, price string) {
	t.Helper()
	ctx := context.Background()
	sess := models.Session{ID: session, UserID: "u1"}
	_, err := f.store.AddItem(ctx, sess, models.LineItem{ProductID: "p-" + session, Quantity: 1, UnitPrice: dec(price)})
	require.NoError(t, err)
	o, err := f.store.CreateOrderFromBasket(ctx, sess)
	require.NoError(t, err)
	_, err = f.store.AdvanceStatus(ctx, o.ID, models.EventStartCheckout)
	require.NoError(t, err)
	_, err = f.store.AdvanceStatus(ctx, o.ID, models.EventMarkProcessing)
	require.NoError(t, err)
	_, err = f.store.AdvanceStatus(ctx, o.ID, models.EventPaymentSucceeded, store.WithPayment(payment.MethodCash, "r"))
	require.NoError(t, err)
}

func TestShiftScenario_ZeroVariance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// a sale before the shift must not count
	f.cashSale(t, "early", "7")

	s, err := f.ledger.OpenShift(ctx, "u1", "Ann", dec("100"))
	require.NoError(t, err)
	assert.True(t, s.IsOpen())

	f.cashSale(t, "s1", "30")
	f.cashSale(t, "s2", "15")

	closed, err := f.ledger.CloseShift(ctx, dec("145"))
	require.NoError(t, err)
	assert.False(t, closed.IsOpen())

	f.cashSale(t, "late", "9")

	r, err := f.ledger.ShiftReport(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, r.OrderCount)
	assert.Equal(t, "45.00", models.Cents(r.Gross))
	require.True(t, r.CashVariance.Valid)
	assert.Equal(t, "0.00", models.Cents(r.CashVariance.Decimal))
}

func TestOpenShift_AtMostOne(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.OpenShift(ctx, "u1", "Ann", dec("100"))
	require.NoError(t, err)
	_, err = f.ledger.OpenShift(ctx, "u2", "Bob", dec("50"))
	require.ErrorIs(t, err, common.ErrShiftAlreadyOpen)

	_, err = f.ledger.CloseShift(ctx, dec("100"))
	require.NoError(t, err)
	_, err = f.ledger.OpenShift(ctx, "u2", "Bob", dec("50"))
	require.NoError(t, err)
}

func TestOpenShift_ConcurrentOneWins(t *testing.T) {
	f := setup(t)
	var wg sync.WaitGroup
	var mu sync.Mutex
	opened, rejected := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.OpenShift(context.Background(), "u1", "", dec("10"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				opened++
			} else if assert.ErrorIs(t, err, common.ErrShiftAlreadyOpen) {
				rejected++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 7, rejected)
}

func TestCloseShift_NoneOpen(t *testing.T) {
	f := setup(t)
	_, err := f.ledger.CloseShift(context.Background(), dec("1"))
	require.ErrorIs(t, err, common.ErrNoOpenShift)

	_, err = f.ledger.Current(context.Background())
	require.ErrorIs(t, err, common.ErrNoOpenShift)
}

func TestValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.ledger.OpenShift(ctx, "", "", dec("1"))
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = f.ledger.OpenShift(ctx, "u1", "", dec("-1"))
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = f.ledger.CloseShift(ctx, dec("-1"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCurrentShiftReportAndDayReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.OpenShift(ctx, "u1", "Ann", dec("20"))
	require.NoError(t, err)
	f.cashSale(t, "s1", "12.5")

	r, err := f.ledger.ShiftReport(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, r.OrderCount)
	assert.Equal(t, "32.50", models.Cents(r.ExpectedCash.Decimal))
	assert.False(t, r.CashVariance.Valid)

	day, err := f.ledger.DayReport(ctx, time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	assert.Equal(t, 1, day.OrderCount)
	assert.Equal(t, "reg-1", day.RegisterID)

	recent, err := f.ledger.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
