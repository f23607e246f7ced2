// Package shifts is the Shift Ledger: cash-drawer open/close for this
// register and the reports built over a shift or a day.
package shifts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/reports"
	"github.com/dmitrijs2005/lanpos/internal/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderFinder reads orders for reports.
type OrderFinder interface {
	FindByDateRange(ctx context.Context, from, to time.Time, userID string) ([]*models.Order, error)
}

// Ledger serializes open and close per register. The shifts table also
// enforces one open shift per register, so two processes sharing a
// database cannot both open one.
type Ledger struct {
	mu         sync.Mutex
	db         *sql.DB
	repos      repomanager.RepositoryManager
	orders     OrderFinder
	registerID string
	logger     logging.Logger
	now        func() time.Time
}

func NewLedger(db *sql.DB, repos repomanager.RepositoryManager, orders OrderFinder, registerID string, logger logging.Logger) *Ledger {
	return &Ledger{
		db:         db,
		repos:      repos,
		orders:     orders,
		registerID: registerID,
		logger:     logger.With("module", "shifts"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// OpenShift fails with common.ErrShiftAlreadyOpen while another shift is open.
func (l *Ledger) OpenShift(ctx context.Context, userID, userName string, openingCash decimal.Decimal) (*models.Shift, error) {
	if userID == "" {
		return nil, common.NewValidationError("user_id", "is required")
	}
	if openingCash.IsNegative() {
		return nil, common.NewValidationError("opening_cash", "must not be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	repo := l.repos.Shifts(l.db)
	if cur, err := repo.GetOpen(ctx, l.registerID); err == nil {
		return nil, fmt.Errorf("shift %s opened by %s: %w", cur.ID, cur.OpenedBy, common.ErrShiftAlreadyOpen)
	} else if !errors.Is(err, common.ErrNoOpenShift) {
		return nil, err
	}

	s := &models.Shift{
		ID:           uuid.NewString(),
		RegisterID:   l.registerID,
		OpenedBy:     userID,
		OpenedByName: userName,
		OpenedAt:     l.now(),
		OpeningCash:  openingCash,
	}
	if err := repo.Create(ctx, s); err != nil {
		return nil, err
	}
	l.logger.Info(ctx, "shift opened", "shift_id", s.ID, "user_id", userID, "opening_cash", models.Cents(openingCash))
	return s, nil
}

// CloseShift records the counted cash and makes the shift immutable.
func (l *Ledger) CloseShift(ctx context.Context, closingCash decimal.Decimal) (*models.Shift, error) {
	if closingCash.IsNegative() {
		return nil, common.NewValidationError("closing_cash", "must not be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	repo := l.repos.Shifts(l.db)
	cur, err := repo.GetOpen(ctx, l.registerID)
	if err != nil {
		return nil, err
	}
	closedAt := l.now()
	if err := repo.Close(ctx, cur.ID, closingCash, closedAt); err != nil {
		return nil, err
	}
	cur.ClosedAt = &closedAt
	cur.ClosingCash = decimal.NewNullDecimal(closingCash)
	l.logger.Info(ctx, "shift closed", "shift_id", cur.ID, "closing_cash", models.Cents(closingCash))
	return cur, nil
}

// Current returns the open shift or common.ErrNoOpenShift.
func (l *Ledger) Current(ctx context.Context) (*models.Shift, error) {
	return l.repos.Shifts(l.db).GetOpen(ctx, l.registerID)
}

func (l *Ledger) Recent(ctx context.Context, limit int) ([]*models.Shift, error) {
	return l.repos.Shifts(l.db).ListRecent(ctx, l.registerID, limit)
}

// ShiftReport reports on one shift. An empty id means the open shift.
func (l *Ledger) ShiftReport(ctx context.Context, shiftID string) (models.DailyReport, error) {
	var (
		s   *models.Shift
		err error
	)
	if shiftID == "" {
		s, err = l.Current(ctx)
	} else {
		s, err = l.repos.Shifts(l.db).GetByID(ctx, shiftID)
	}
	if err != nil {
		return models.DailyReport{}, err
	}

	to := l.now().Add(time.Nanosecond)
	if s.ClosedAt != nil {
		to = s.ClosedAt.Add(time.Nanosecond)
	}
	orders, err := l.orders.FindByDateRange(ctx, s.OpenedAt, to, "")
	if err != nil {
		return models.DailyReport{}, err
	}
	return reports.Generate(orders, s), nil
}

// DayReport reports on the UTC calendar day containing day.
func (l *Ledger) DayReport(ctx context.Context, day time.Time, userID string) (models.DailyReport, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	orders, err := l.orders.FindByDateRange(ctx, from, from.AddDate(0, 0, 1), userID)
	if err != nil {
		return models.DailyReport{}, err
	}
	r := reports.Generate(orders, nil)
	r.RegisterID = l.registerID
	r.From = from
	r.To = from.AddDate(0, 0, 1)
	return r, nil
}
