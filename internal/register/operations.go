// Package register defines the operations a cashier station issues and the
// local implementation backed by this register's own store. In client mode
// the same interface is served by the coordination bridge instead.
package register

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/checkout"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/syncqueue"
	"github.com/shopspring/decimal"
)

// Operations are the basket, order and sync calls that follow the
// authoritative store. Shift operations are not part of it: the drawer
// belongs to the physical register.
type Operations interface {
	GetBasket(ctx context.Context, sess models.Session) (*models.Basket, error)
	AddItem(ctx context.Context, sess models.Session, li models.LineItem) (*models.Basket, error)
	UpdateQuantity(ctx context.Context, sess models.Session, productID string, qty int) (*models.Basket, error)
	RemoveItem(ctx context.Context, sess models.Session, productID string) (*models.Basket, error)
	SetCustomer(ctx context.Context, sess models.Session, customerRef string) (*models.Basket, error)
	ApplyDiscount(ctx context.Context, sess models.Session, code string, amount decimal.Decimal) (*models.Basket, error)
	SetNote(ctx context.Context, sess models.Session, note string) (*models.Basket, error)
	ClearBasket(ctx context.Context, sess models.Session) error

	Checkout(ctx context.Context, sess models.Session, method string, tendered decimal.Decimal) (*checkout.Outcome, error)
	RetryPayment(ctx context.Context, orderID, method string, tendered decimal.Decimal) (*checkout.Outcome, error)
	CancelOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	FindOrders(ctx context.Context, from, to time.Time, userID string) ([]*models.Order, error)

	SyncOne(ctx context.Context, orderID string) (syncqueue.Result, error)
	SyncAll(ctx context.Context) (syncqueue.Summary, error)
	ResetRetries(ctx context.Context, orderID string) (*models.Order, error)
	PendingCount(ctx context.Context) (int, error)
	Failures(ctx context.Context) ([]*models.Order, error)
}
