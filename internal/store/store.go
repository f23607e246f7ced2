// Package store is the Local Order Store: the register's durable record of
// baskets and orders and the only place order status changes.
//
// Mutations are serialized per basket session and per order id; reads go
// straight to the last committed state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/keylock"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repomanager"
	"github.com/google/uuid"
)

// Mutation adjusts an order while its transition is being applied.
type Mutation func(o *models.Order)

// WithPayment records how an order was paid.
func WithPayment(method, ref string) Mutation {
	return func(o *models.Order) {
		o.PaymentMethod = method
		o.PaymentRef = ref
	}
}

// WithRemoteID records the platform id assigned on sync.
func WithRemoteID(id string) Mutation {
	return func(o *models.Order) { o.Sync.RemoteID = id }
}

// WithSyncError records a failed sync attempt and when to try again.
func WithSyncError(kind, msg string, next time.Time) Mutation {
	return func(o *models.Order) {
		o.Sync.ErrorKind = kind
		o.Sync.LastError = msg
		o.Sync.NextAttemptAt = next
	}
}

type Store struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	registerID string
	locks      *keylock.Locker
	logger     logging.Logger
	now        func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(db *sql.DB, repos repomanager.RepositoryManager, registerID string, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		db:         db,
		repos:      repos,
		registerID: registerID,
		locks:      keylock.New(),
		logger:     logger.With("module", "store"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) RegisterID() string { return s.registerID }

// CreateOrderFromBasket snapshots the session's basket into a new order in
// cart status and clears the basket in the same transaction.
func (s *Store) CreateOrderFromBasket(ctx context.Context, sess models.Session) (*models.Order, error) {
	unlock, err := s.locks.Lock(ctx, basketKey(sess.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.loadBasket(ctx, sess)
	if err != nil {
		return nil, err
	}
	if b.Empty() {
		return nil, common.NewValidationError("basket", "is empty")
	}
	if !b.Total().IsPositive() {
		return nil, common.NewValidationError("total", "must be greater than zero")
	}

	now := s.now()
	o := &models.Order{
		ID:           uuid.NewString(),
		RegisterID:   s.registerID,
		SessionID:    sess.ID,
		Items:        append([]models.LineItem(nil), b.Items...),
		CustomerRef:  b.CustomerRef,
		DiscountCode: b.DiscountCode,
		Discount:     b.Discount,
		Note:         b.Note,
		CashierID:    b.CashierID,
		CashierName:  b.CashierName,
		Status:       models.StatusCart,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Orders(tx).Create(ctx, o); err != nil {
			return err
		}
		return s.repos.Baskets(tx).Delete(ctx, sess.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info(ctx, "order created", "order_id", o.ID, "total", models.Cents(o.Total()), "items", len(o.Items))
	return o, nil
}

// AdvanceStatus applies ev to the order and persists the result. A paid
// order is enqueued for sync in the same step. Illegal moves fail with
// *common.IllegalTransitionError and leave the stored order untouched.
func (s *Store) AdvanceStatus(ctx context.Context, orderID string, ev models.Event, muts ...Mutation) (*models.Order, error) {
	unlock, err := s.locks.Lock(ctx, orderKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, err := s.repos.Orders(s.db).GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from := o.Status

	now := s.now()
	if err := apply(o, ev, now); err != nil {
		return nil, err
	}
	for _, m := range muts {
		m(o)
	}
	if next, ok := models.FollowUp(o.Status); ok {
		if err := apply(o, next, now); err != nil {
			return nil, err
		}
	}
	o.UpdatedAt = now

	if err := s.repos.Orders(s.db).Update(ctx, o); err != nil {
		return nil, fmt.Errorf("advance %s: %w", orderID, err)
	}

	s.logger.Debug(ctx, "order transition", "order_id", orderID, "event", ev, "from", from, "to", o.Status)
	return o, nil
}

func apply(o *models.Order, ev models.Event, now time.Time) error {
	to, ok := models.Next(o.Status, ev)
	if !ok {
		return &common.IllegalTransitionError{OrderID: o.ID, From: string(o.Status), Event: string(ev)}
	}
	switch ev {
	case models.EventSyncFailed:
		o.Sync.RetryCount++
	case models.EventSyncSucceeded:
		o.Sync.LastError = ""
		o.Sync.ErrorKind = ""
		o.Sync.NextAttemptAt = time.Time{}
		o.Sync.SyncedAt = now
	}
	o.Status = to
	return nil
}

// ResetSyncRetries re-arms a sync_failed order whose retry budget ran out.
// This is the only way such an order is attempted again.
func (s *Store) ResetSyncRetries(ctx context.Context, orderID string) (*models.Order, error) {
	unlock, err := s.locks.Lock(ctx, orderKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, err := s.repos.Orders(s.db).GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.StatusSyncFailed {
		return nil, &common.IllegalTransitionError{OrderID: o.ID, From: string(o.Status), Event: "reset_retries"}
	}
	o.Sync.RetryCount = 0
	o.Sync.NextAttemptAt = time.Time{}
	o.UpdatedAt = s.now()
	if err := s.repos.Orders(s.db).Update(ctx, o); err != nil {
		return nil, fmt.Errorf("reset retries %s: %w", orderID, err)
	}
	s.logger.Info(ctx, "sync retries reset", "order_id", orderID)
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.repos.Orders(s.db).GetByID(ctx, orderID)
}

// FindByDateRange lists orders created in [from, to), oldest first. An empty
// userID returns every cashier's orders.
func (s *Store) FindByDateRange(ctx context.Context, from, to time.Time, userID string) ([]*models.Order, error) {
	if !to.After(from) {
		return nil, common.NewValidationError("to", "must be after from")
	}
	return s.repos.Orders(s.db).ListByDateRange(ctx, from, to, userID)
}

func (s *Store) SyncCandidates(ctx context.Context, maxRetries int, now time.Time, limit int) ([]*models.Order, error) {
	return s.repos.Orders(s.db).ListSyncCandidates(ctx, maxRetries, now, limit)
}

func (s *Store) UnsyncedCount(ctx context.Context) (int, error) {
	return s.repos.Orders(s.db).CountUnsynced(ctx)
}

func (s *Store) SyncFailures(ctx context.Context, maxRetries int) ([]*models.Order, error) {
	return s.repos.Orders(s.db).ListSyncFailures(ctx, maxRetries)
}

func orderKey(id string) string  { return "order:" + id }
func basketKey(id string) string { return "basket:" + id }

func (s *Store) loadBasket(ctx context.Context, sess models.Session) (*models.Basket, error) {
	b, err := s.repos.Baskets(s.db).Get(ctx, sess.ID)
	if errors.Is(err, common.ErrNotFound) {
		return models.NewBasket(sess), nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
