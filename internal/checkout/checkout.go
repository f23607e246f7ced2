// Package checkout turns a basket into a paid order: snapshot, state
// transitions and the payment call. Only the caller that moves the order
// into payment_processing may charge it, so concurrent checkouts of one
// order cannot double charge.
package checkout

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/payment"
	"github.com/dmitrijs2005/lanpos/internal/store"
	"github.com/shopspring/decimal"
)

// OrderStore is the part of the Local Order Store checkout needs.
type OrderStore interface {
	CreateOrderFromBasket(ctx context.Context, sess models.Session) (*models.Order, error)
	AdvanceStatus(ctx context.Context, orderID string, ev models.Event, muts ...store.Mutation) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
}

// Outcome reports a checkout attempt. A declined payment is an Outcome with
// Paid false, not an error; the order is left in payment_failed.
type Outcome struct {
	Order     *models.Order   `json:"order"`
	Paid      bool            `json:"paid"`
	Change    decimal.Decimal `json:"change"`
	ErrorCode string          `json:"error_code,omitempty"`
}

type Service struct {
	orders   OrderStore
	payments *payment.Registry
	logger   logging.Logger
}

func NewService(orders OrderStore, payments *payment.Registry, logger logging.Logger) *Service {
	return &Service{orders: orders, payments: payments, logger: logger.With("module", "checkout")}
}

// Checkout snapshots the session's basket and charges it.
func (s *Service) Checkout(ctx context.Context, sess models.Session, method string, tendered decimal.Decimal) (*Outcome, error) {
	proc, err := s.payments.Get(method)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.CreateOrderFromBasket(ctx, sess)
	if err != nil {
		return nil, err
	}
	if _, err := s.orders.AdvanceStatus(ctx, o.ID, models.EventStartCheckout); err != nil {
		return nil, err
	}
	return s.charge(ctx, o.ID, method, proc, tendered)
}

// RetryPayment re-enters checkout for an order whose payment failed.
func (s *Service) RetryPayment(ctx context.Context, orderID, method string, tendered decimal.Decimal) (*Outcome, error) {
	proc, err := s.payments.Get(method)
	if err != nil {
		return nil, err
	}
	if _, err := s.orders.AdvanceStatus(ctx, orderID, models.EventStartCheckout); err != nil {
		return nil, err
	}
	return s.charge(ctx, orderID, method, proc, tendered)
}

func (s *Service) charge(ctx context.Context, orderID, method string, proc payment.Processor, tendered decimal.Decimal) (*Outcome, error) {
	// winning this transition grants the right to charge
	o, err := s.orders.AdvanceStatus(ctx, orderID, models.EventMarkProcessing)
	if err != nil {
		return nil, err
	}

	req := payment.Request{
		OrderID:        o.ID,
		IdempotencyKey: o.ID,
		Method:         method,
		Amount:         o.Total(),
		Tendered:       tendered,
	}
	res, perr := proc.ProcessPayment(ctx, req)
	if perr != nil {
		s.logger.Error(ctx, "payment processor failed", "order_id", o.ID, "method", method, "error", perr)
		res = payment.Result{ErrorCode: payment.CodeProcessorError}
	}

	if !res.Success {
		o, err = s.orders.AdvanceStatus(context.WithoutCancel(ctx), o.ID, models.EventPaymentFailed, store.WithPayment(method, ""))
		if err != nil {
			return nil, fmt.Errorf("record declined payment: %w", err)
		}
		s.logger.Info(ctx, "payment declined", "order_id", o.ID, "method", method, "code", res.ErrorCode)
		return &Outcome{Order: o, ErrorCode: res.ErrorCode}, nil
	}

	// the money is taken; the transition must not be lost to a cancelled ctx
	o, err = s.orders.AdvanceStatus(context.WithoutCancel(ctx), o.ID, models.EventPaymentSucceeded, store.WithPayment(method, res.Reference))
	if err != nil {
		return nil, fmt.Errorf("record payment for %s: %w", orderID, err)
	}
	s.logger.Info(ctx, "order paid", "order_id", o.ID, "method", method, "total", models.Cents(o.Total()))
	return &Outcome{Order: o, Paid: true, Change: res.Change}, nil
}

// Err is nil for a paid outcome and wraps common.ErrPaymentDeclined
// otherwise.
func (o *Outcome) Err() error {
	if o.Paid {
		return nil
	}
	return fmt.Errorf("%w: %s", common.ErrPaymentDeclined, o.ErrorCode)
}
