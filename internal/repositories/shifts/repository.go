// Package shifts stores cash-drawer shifts. A partial unique index keeps at
// most one open shift per register.
package shifts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create inserts an open shift; ErrShiftAlreadyOpen if the register
	// already has one.
	Create(ctx context.Context, s *models.Shift) error
	GetOpen(ctx context.Context, registerID string) (*models.Shift, error)
	GetByID(ctx context.Context, id string) (*models.Shift, error)
	// Close sets the closing fields of an open shift.
	Close(ctx context.Context, id string, closingCash decimal.Decimal, closedAt time.Time) error
	// ListRecent returns the register's shifts, newest first.
	ListRecent(ctx context.Context, registerID string, limit int) ([]*models.Shift, error)
}

const columns = `id, register_id, opened_by, opened_by_name, opened_at, opening_cash, closing_cash, closed_at`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Create(ctx context.Context, s *models.Shift) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`INSERT INTO shifts (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, NULL, NULL)`),
		s.ID, s.RegisterID, s.OpenedBy, s.OpenedByName, dbx.ToNanos(s.OpenedAt), s.OpeningCash.String())
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("register %s: %w", s.RegisterID, common.ErrShiftAlreadyOpen)
	}
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetOpen(ctx context.Context, registerID string) (*models.Shift, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+columns+` FROM shifts WHERE register_id = ? AND closed_at IS NULL`), registerID)
	s, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("register %s: %w", registerID, common.ErrNoOpenShift)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open shift: %w", err)
	}
	return s, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.Shift, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+columns+` FROM shifts WHERE id = ?`), id)
	s, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shift %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift %s: %w", id, err)
	}
	return s, nil
}

func (r *SQLRepository) Close(ctx context.Context, id string, closingCash decimal.Decimal, closedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`UPDATE shifts SET closing_cash = ?, closed_at = ? WHERE id = ? AND closed_at IS NULL`),
		closingCash.String(), dbx.ToNanos(closedAt), id)
	if err != nil {
		return fmt.Errorf("failed to close shift %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("shift %s: %w", id, common.ErrNoOpenShift)
	}
	return nil
}

func (r *SQLRepository) ListRecent(ctx context.Context, registerID string, limit int) ([]*models.Shift, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`SELECT `+columns+` FROM shifts WHERE register_id = ? ORDER BY opened_at DESC LIMIT ?`),
		registerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	defer rows.Close()

	var result []*models.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shift rows: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShift(sc scanner) (*models.Shift, error) {
	var (
		s        models.Shift
		openedAt int64
		opening  string
		closing  sql.NullString
		closedAt sql.NullInt64
	)
	if err := sc.Scan(&s.ID, &s.RegisterID, &s.OpenedBy, &s.OpenedByName, &openedAt, &opening, &closing, &closedAt); err != nil {
		return nil, err
	}

	var err error
	s.OpenedAt = dbx.FromNanos(openedAt)
	if s.OpeningCash, err = decimal.NewFromString(opening); err != nil {
		return nil, fmt.Errorf("shift %s: bad opening cash: %w", s.ID, err)
	}
	if closing.Valid {
		d, err := decimal.NewFromString(closing.String)
		if err != nil {
			return nil, fmt.Errorf("shift %s: bad closing cash: %w", s.ID, err)
		}
		s.ClosingCash = decimal.NewNullDecimal(d)
	}
	if closedAt.Valid {
		t := dbx.FromNanos(closedAt.Int64)
		s.ClosedAt = &t
	}
	return &s, nil
}
