package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

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

var sess = models.Session{ID: "s1", UserID: "u1"}

func setup(t *testing.T) (*store.Store, *payment.Registry, *Service) {
	t.Helper()
	st := store.New(repotest.OpenSQLite(t), repomanager.NewSQLRepositoryManager(dbx.DialectSQLite), "reg-1", logging.NewDiscard())
	reg := payment.NewRegistry()
	return st, reg, NewService(st, reg, logging.NewDiscard())
}

func fillBasket(t *testing.T, st *store.Store) {
	t.Helper()
	_, err := st.AddItem(context.Background(), sess, models.LineItem{ProductID: "p1", Quantity: 3, UnitPrice: decimal.RequireFromString("15")})
	require.NoError(t, err)
}

func TestCheckout_CashPaid(t *testing.T) {
	st, _, svc := setup(t)
	fillBasket(t, st)

	out, err := svc.Checkout(context.Background(), sess, payment.MethodCash, decimal.RequireFromString("50"))
	require.NoError(t, err)
	require.NoError(t, out.Err())
	assert.True(t, out.Paid)
	assert.Equal(t, "5", out.Change.String())
	assert.Equal(t, models.StatusPendingSync, out.Order.Status)
	assert.Equal(t, payment.MethodCash, out.Order.PaymentMethod)
}

func TestCheckout_DeclinedThenRetried(t *testing.T) {
	st, _, svc := setup(t)
	fillBasket(t, st)
	ctx := context.Background()

	out, err := svc.Checkout(ctx, sess, payment.MethodCash, decimal.RequireFromString("10"))
	require.NoError(t, err)
	assert.False(t, out.Paid)
	assert.Equal(t, payment.CodeInsufficientTender, out.ErrorCode)
	assert.ErrorIs(t, out.Err(), common.ErrPaymentDeclined)
	assert.Equal(t, models.StatusPaymentFailed, out.Order.Status)

	out, err = svc.RetryPayment(ctx, out.Order.ID, payment.MethodCash, decimal.RequireFromString("45"))
	require.NoError(t, err)
	assert.True(t, out.Paid)
	assert.Equal(t, models.StatusPendingSync, out.Order.Status)

	_, err = svc.RetryPayment(ctx, out.Order.ID, payment.MethodCash, decimal.RequireFromString("45"))
	require.ErrorIs(t, err, common.ErrIllegalTransition, "a paid order cannot be charged again")
}

func TestCheckout_UnknownMethodKeepsBasket(t *testing.T) {
	st, _, svc := setup(t)
	fillBasket(t, st)

	_, err := svc.Checkout(context.Background(), sess, "bitcoin", decimal.Zero)
	require.ErrorIs(t, err, common.ErrValidation)

	b, err := st.GetBasket(context.Background(), sess)
	require.NoError(t, err)
	assert.False(t, b.Empty())
}

func TestCheckout_ProcessorErrorIsDecline(t *testing.T) {
	st, reg, svc := setup(t)
	fillBasket(t, st)
	reg.Register(payment.MethodCard, payment.ProcessorFunc(func(ctx context.Context, req payment.Request) (payment.Result, error) {
		return payment.Result{}, errors.New("terminal offline")
	}))

	out, err := svc.Checkout(context.Background(), sess, payment.MethodCard, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, payment.CodeProcessorError, out.ErrorCode)
	assert.Equal(t, models.StatusPaymentFailed, out.Order.Status)
}

func TestRetryPayment_ConcurrentChargesOnce(t *testing.T) {
	st, reg, svc := setup(t)
	fillBasket(t, st)
	ctx := context.Background()

	var charges int32
	reg.Register(payment.MethodCard, payment.ProcessorFunc(func(ctx context.Context, req payment.Request) (payment.Result, error) {
		if atomic.AddInt32(&charges, 1) == 1 && req.Tendered.IsZero() {
			return payment.Result{ErrorCode: "declined"}, nil
		}
		assert.Equal(t, req.OrderID, req.IdempotencyKey)
		return payment.Result{Success: true, Reference: "auth-1"}, nil
	}))

	out, err := svc.Checkout(ctx, sess, payment.MethodCard, decimal.Zero)
	require.NoError(t, err)
	require.False(t, out.Paid)
	atomic.StoreInt32(&charges, 0)

	var wg sync.WaitGroup
	var paid int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RetryPayment(ctx, out.Order.ID, payment.MethodCard, decimal.NewFromInt(1))
			if err == nil && res.Paid {
				atomic.AddInt32(&paid, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&charges))
	assert.Equal(t, int32(1), atomic.LoadInt32(&paid))
}
