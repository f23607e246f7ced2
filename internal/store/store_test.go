package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repomanager"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repotest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sess = models.Session{ID: "sess-1", UserID: "u1", UserName: "Ann"}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore(t *testing.T) *Store {
	t.Helper()
	db := repotest.OpenSQLite(t)
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(db, repomanager.NewSQLRepositoryManager(dbx.DialectSQLite), "reg-1", logging.NewDiscard(), WithClock(c.Now))
}

func item(id string, qty int, price string) models.LineItem {
	return models.LineItem{ProductID: id, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

// 2 x $10 + 1 x $5 - $5 discount.
func orderFromScenario(t *testing.T, s *Store) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := s.AddItem(ctx, sess, item("p1", 2, "10"))
	require.NoError(t, err)
	_, err = s.AddItem(ctx, sess, item("p2", 1, "5"))
	require.NoError(t, err)
	_, err = s.ApplyDiscount(ctx, sess, "FIVE", decimal.RequireFromString("5"))
	require.NoError(t, err)

	o, err := s.CreateOrderFromBasket(ctx, sess)
	require.NoError(t, err)
	return o
}

func TestCreateOrder_ScenarioTotalAndAutoEnqueue(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	o := orderFromScenario(t, s)
	assert.Equal(t, "20.00", models.Cents(o.Total()))
	assert.Equal(t, models.StatusCart, o.Status)
	assert.Equal(t, "u1", o.CashierID)
	assert.Equal(t, "reg-1", o.RegisterID)

	for _, ev := range []models.Event{models.EventStartCheckout, models.EventMarkProcessing} {
		o, err := s.AdvanceStatus(ctx, o.ID, ev)
		require.NoError(t, err)
		assert.Equal(t, "20.00", models.Cents(o.Total()))
	}
	o, err := s.AdvanceStatus(ctx, o.ID, models.EventPaymentSucceeded, WithPayment("cash", "cash-1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingSync, o.Status)

	stored, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingSync, stored.Status)
	assert.Equal(t, "cash", stored.PaymentMethod)
	assert.Equal(t, "20.00", models.Cents(stored.Total()))
}

func TestCreateOrder_ClearsBasket(t *testing.T) {
	s := newStore(t)
	orderFromScenario(t, s)

	b, err := s.GetBasket(context.Background(), sess)
	require.NoError(t, err)
	assert.True(t, b.Empty())
	assert.True(t, b.Discount.IsZero())
}

func TestCreateOrder_Validation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateOrderFromBasket(ctx, sess)
	var ve *common.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "basket", ve.Field)

	_, err = s.AddItem(ctx, sess, item("free", 1, "0"))
	require.NoError(t, err)
	_, err = s.CreateOrderFromBasket(ctx, sess)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "total", ve.Field)

	// the basket survives a failed checkout
	b, err := s.GetBasket(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, b.Items, 1)
}

func TestAdvanceStatus_IllegalLeavesStatus(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := orderFromScenario(t, s)

	_, err := s.AdvanceStatus(ctx, o.ID, models.EventPaymentSucceeded)
	var ite *common.IllegalTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "cart", ite.From)
	assert.Equal(t, "payment_succeeded", ite.Event)

	stored, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCart, stored.Status)

	_, err = s.AdvanceStatus(ctx, o.ID, models.EventCancel)
	require.NoError(t, err)
	_, err = s.AdvanceStatus(ctx, o.ID, models.EventCancel)
	require.ErrorIs(t, err, common.ErrIllegalTransition)
}

func TestAdvanceStatus_NotFound(t *testing.T) {
	_, err := newStore(t).AdvanceStatus(context.Background(), "ghost", models.EventCancel)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAdvanceStatus_PaymentRetryReentersCheckout(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := orderFromScenario(t, s)

	for _, ev := range []models.Event{models.EventStartCheckout, models.EventMarkProcessing, models.EventPaymentFailed, models.EventStartCheckout} {
		var err error
		o, err = s.AdvanceStatus(ctx, o.ID, ev)
		require.NoError(t, err, ev)
	}
	assert.Equal(t, models.StatusCheckoutStarted, o.Status)
}

func TestAdvanceStatus_SyncBookkeeping(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := paidOrder(t, s)

	next := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o, err := s.AdvanceStatus(ctx, o.ID, models.EventSyncFailed, WithSyncError(common.SyncErrorRetryable, "timeout", next))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSyncFailed, o.Status)
	assert.Equal(t, 1, o.Sync.RetryCount)
	assert.Equal(t, "timeout", o.Sync.LastError)

	o, err = s.AdvanceStatus(ctx, o.ID, models.EventSyncSucceeded, WithRemoteID("R-9"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, o.Status)
	assert.Equal(t, "R-9", o.Sync.RemoteID)
	assert.Empty(t, o.Sync.LastError)
	assert.False(t, o.Sync.SyncedAt.IsZero())
	assert.Equal(t, 1, o.Sync.RetryCount)

	_, err = s.AdvanceStatus(ctx, o.ID, models.EventSyncFailed)
	require.ErrorIs(t, err, common.ErrIllegalTransition, "synced is terminal")
}

func TestAdvanceStatus_ConcurrentCallsOneWinner(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := orderFromScenario(t, s)
	_, err := s.AdvanceStatus(ctx, o.ID, models.EventStartCheckout)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, illegal := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AdvanceStatus(ctx, o.ID, models.EventMarkProcessing)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, common.ErrIllegalTransition):
				illegal++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, illegal)
}

func TestResetSyncRetries(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	o := paidOrder(t, s)

	_, err := s.ResetSyncRetries(ctx, o.ID)
	require.ErrorIs(t, err, common.ErrIllegalTransition)

	for i := 0; i < 3; i++ {
		_, err = s.AdvanceStatus(ctx, o.ID, models.EventSyncFailed, WithSyncError(common.SyncErrorRetryable, "x", time.Time{}))
		require.NoError(t, err)
	}
	o, err = s.ResetSyncRetries(ctx, o.ID)
	require.NoError(t, err)
	assert.Zero(t, o.Sync.RetryCount)
	assert.Equal(t, models.StatusSyncFailed, o.Status)
}

func TestFindByDateRangeAndBacklog(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a := paidOrder(t, s)
	b := orderFromScenario(t, s)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := s.FindByDateRange(ctx, from, from.Add(24*time.Hour), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)

	got, err = s.FindByDateRange(ctx, from, from.Add(24*time.Hour), "someone-else")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.FindByDateRange(ctx, from, from, "")
	assert.ErrorIs(t, err, common.ErrValidation)

	n, err := s.UnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cands, err := s.SyncCandidates(ctx, 3, from.Add(24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, a.ID, cands[0].ID)
}

func TestBasketOperations(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	b, err := s.AddItem(ctx, sess, item("p1", 1, "4.50"))
	require.NoError(t, err)
	assert.Len(t, b.Items, 1)

	_, err = s.AddItem(ctx, sess, item("p1", 2, "4.50"))
	require.NoError(t, err)
	b, err = s.UpdateQuantity(ctx, sess, "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, "22.50", models.Cents(b.Total()))

	_, err = s.SetCustomer(ctx, sess, "cust-7")
	require.NoError(t, err)
	_, err = s.SetNote(ctx, sess, "no bag")
	require.NoError(t, err)

	_, err = s.ApplyDiscount(ctx, sess, "HUGE", decimal.RequireFromString("100"))
	require.ErrorIs(t, err, common.ErrValidation)

	b, err = s.GetBasket(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "cust-7", b.CustomerRef)
	assert.Equal(t, "no bag", b.Note)
	assert.True(t, b.Discount.IsZero())

	b, err = s.RemoveItem(ctx, sess, "p1")
	require.NoError(t, err)
	assert.True(t, b.Empty())

	_, err = s.AddItem(ctx, sess, item("p2", 1, "1"))
	require.NoError(t, err)
	require.NoError(t, s.ClearBasket(ctx, sess))
	b, err = s.GetBasket(ctx, sess)
	require.NoError(t, err)
	assert.True(t, b.Empty())
}

func paidOrder(t *testing.T, s *Store) *models.Order {
	t.Helper()
	ctx := context.Background()
	o := orderFromScenario(t, s)
	for _, ev := range []models.Event{models.EventStartCheckout, models.EventMarkProcessing, models.EventPaymentSucceeded} {
		var err error
		o, err = s.AdvanceStatus(ctx, o.ID, ev)
		require.NoError(t, err)
	}
	return o
}
