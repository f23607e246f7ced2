package register

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/checkout"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/store"
	"github.com/dmitrijs2005/lanpos/internal/syncqueue"
	"github.com/shopspring/decimal"
)

// Local serves Operations from this register's store.
type Local struct {
	store    *store.Store
	checkout *checkout.Service
	sync     *syncqueue.Engine
	logger   logging.Logger
}

var _ Operations = (*Local)(nil)

func NewLocal(st *store.Store, co *checkout.Service, engine *syncqueue.Engine, logger logging.Logger) *Local {
	return &Local{store: st, checkout: co, sync: engine, logger: logger.With("module", "register")}
}

func (l *Local) GetBasket(ctx context.Context, sess models.Session) (*models.Basket, error) {
	return l.store.GetBasket(ctx, sess)
}

func (l *Local) AddItem(ctx context.Context, sess models.Session, li models.LineItem) (*models.Basket, error) {
	return l.store.AddItem(ctx, sess, li)
}

func (l *Local) UpdateQuantity(ctx context.Context, sess models.Session, productID string, qty int) (*models.Basket, error) {
	return l.store.UpdateQuantity(ctx, sess, productID, qty)
}

func (l *Local) RemoveItem(ctx context.Context, sess models.Session, productID string) (*models.Basket, error) {
	return l.store.RemoveItem(ctx, sess, productID)
}

func (l *Local) SetCustomer(ctx context.Context, sess models.Session, customerRef string) (*models.Basket, error) {
	return l.store.SetCustomer(ctx, sess, customerRef)
}

func (l *Local) ApplyDiscount(ctx context.Context, sess models.Session, code string, amount decimal.Decimal) (*models.Basket, error) {
	return l.store.ApplyDiscount(ctx, sess, code, amount)
}

func (l *Local) SetNote(ctx context.Context, sess models.Session, note string) (*models.Basket, error) {
	return l.store.SetNote(ctx, sess, note)
}

func (l *Local) ClearBasket(ctx context.Context, sess models.Session) error {
	return l.store.ClearBasket(ctx, sess)
}

// Checkout charges the session's basket. A paid order is handed to the
// sync worker straight away instead of waiting for the next tick.
func (l *Local) Checkout(ctx context.Context, sess models.Session, method string, tendered decimal.Decimal) (*checkout.Outcome, error) {
	out, err := l.checkout.Checkout(ctx, sess, method, tendered)
	l.afterCharge(ctx, out)
	return out, err
}

func (l *Local) RetryPayment(ctx context.Context, orderID, method string, tendered decimal.Decimal) (*checkout.Outcome, error) {
	out, err := l.checkout.RetryPayment(ctx, orderID, method, tendered)
	l.afterCharge(ctx, out)
	return out, err
}

func (l *Local) afterCharge(ctx context.Context, out *checkout.Outcome) {
	if out == nil || !out.Paid {
		return
	}
	l.logger.Info(ctx, "order paid", "order_id", out.Order.ID, "total", models.Cents(out.Order.Total()))
	l.sync.Kick()
}

func (l *Local) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return l.store.AdvanceStatus(ctx, orderID, models.EventCancel)
}

func (l *Local) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return l.store.GetOrder(ctx, orderID)
}

func (l *Local) FindOrders(ctx context.Context, from, to time.Time, userID string) ([]*models.Order, error) {
	return l.store.FindByDateRange(ctx, from, to, userID)
}

// SyncOne never fails at the call level; the outcome is in the Result.
func (l *Local) SyncOne(ctx context.Context, orderID string) (syncqueue.Result, error) {
	return l.sync.SyncOne(ctx, orderID), nil
}

func (l *Local) SyncAll(ctx context.Context) (syncqueue.Summary, error) {
	return l.sync.SyncAll(ctx)
}

func (l *Local) ResetRetries(ctx context.Context, orderID string) (*models.Order, error) {
	return l.sync.ResetRetries(ctx, orderID)
}

func (l *Local) PendingCount(ctx context.Context) (int, error) {
	return l.sync.PendingCount(ctx)
}

func (l *Local) Failures(ctx context.Context) ([]*models.Order, error) {
	return l.sync.Failures(ctx)
}
