package orders

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/models"
)

// Repository persists orders. Reads return ErrNotFound for unknown ids.
type Repository interface {
	// Create inserts a new order.
	Create(ctx context.Context, o *models.Order) error

	// Update rewrites the mutable columns (status, payment, sync metadata)
	// and the derived total.
	Update(ctx context.Context, o *models.Order) error

	GetByID(ctx context.Context, id string) (*models.Order, error)

	// ListByDateRange returns orders created in [from, to), oldest first.
	// An empty cashierID disables the cashier filter.
	ListByDateRange(ctx context.Context, from, to time.Time, cashierID string) ([]*models.Order, error)

	// ListSyncCandidates returns pending_sync and sync_failed orders with
	// retry budget left and next_attempt_at due, oldest first.
	ListSyncCandidates(ctx context.Context, maxRetries int, now time.Time, limit int) ([]*models.Order, error)

	// CountUnsynced counts every pending_sync or sync_failed order.
	CountUnsynced(ctx context.Context) (int, error)

	// ListSyncFailures returns sync_failed orders that need an operator:
	// retry budget exhausted or rejected by the platform.
	ListSyncFailures(ctx context.Context, maxRetries int) ([]*models.Order, error)
}
