// Package orders stores orders in the orders table. Line items are kept as
// a JSON document; amounts are decimal strings.
package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/shopspring/decimal"
)

const columns = `id, register_id, session_id, cashier_id, cashier_name, customer_ref, discount_code,
	discount, note, items, status, payment_method, payment_ref, remote_id, last_error, error_kind,
	retry_count, next_attempt_at, synced_at, created_at, updated_at`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) q(query string) string { return r.dialect.Rebind(query) }

func (r *SQLRepository) Create(ctx context.Context, o *models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items of order %s: %w", o.ID, err)
	}

	query := `INSERT INTO orders (` + columns + `, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.q(query),
		o.ID, o.RegisterID, o.SessionID, o.CashierID, o.CashierName, o.CustomerRef, o.DiscountCode,
		o.Discount.String(), o.Note, string(items), string(o.Status), o.PaymentMethod, o.PaymentRef,
		o.Sync.RemoteID, o.Sync.LastError, o.Sync.ErrorKind, o.Sync.RetryCount,
		dbx.ToNanos(o.Sync.NextAttemptAt), dbx.ToNanos(o.Sync.SyncedAt),
		dbx.ToNanos(o.CreatedAt), dbx.ToNanos(o.UpdatedAt), o.Total().String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}
	return nil
}

func (r *SQLRepository) Update(ctx context.Context, o *models.Order) error {
	query := `UPDATE orders SET status = ?, payment_method = ?, payment_ref = ?, remote_id = ?,
		last_error = ?, error_kind = ?, retry_count = ?, next_attempt_at = ?, synced_at = ?,
		updated_at = ?, total = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.q(query),
		string(o.Status), o.PaymentMethod, o.PaymentRef, o.Sync.RemoteID,
		o.Sync.LastError, o.Sync.ErrorKind, o.Sync.RetryCount,
		dbx.ToNanos(o.Sync.NextAttemptAt), dbx.ToNanos(o.Sync.SyncedAt),
		dbx.ToNanos(o.UpdatedAt), o.Total().String(), o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", o.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", o.ID, common.ErrNotFound)
	}
	return nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+columns+` FROM orders WHERE id = ?`), id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return o, nil
}

func (r *SQLRepository) ListByDateRange(ctx context.Context, from, to time.Time, cashierID string) ([]*models.Order, error) {
	query := `SELECT ` + columns + ` FROM orders WHERE created_at >= ? AND created_at < ?`
	args := []any{dbx.ToNanos(from), dbx.ToNanos(to)}
	if cashierID != "" {
		query += ` AND cashier_id = ?`
		args = append(args, cashierID)
	}
	query += ` ORDER BY created_at, id`
	return r.list(ctx, "list orders by date", query, args...)
}

func (r *SQLRepository) ListSyncCandidates(ctx context.Context, maxRetries int, now time.Time, limit int) ([]*models.Order, error) {
	query := `SELECT ` + columns + ` FROM orders
		WHERE status IN (?, ?) AND retry_count < ? AND next_attempt_at <= ?
		ORDER BY created_at, id`
	args := []any{string(models.StatusPendingSync), string(models.StatusSyncFailed), maxRetries, dbx.ToNanos(now)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.list(ctx, "list sync candidates", query, args...)
}

func (r *SQLRepository) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM orders WHERE status IN (?, ?)`),
		string(models.StatusPendingSync), string(models.StatusSyncFailed)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced orders: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) ListSyncFailures(ctx context.Context, maxRetries int) ([]*models.Order, error) {
	query := `SELECT ` + columns + ` FROM orders
		WHERE status = ? AND (retry_count >= ? OR error_kind = ?)
		ORDER BY created_at, id`
	return r.list(ctx, "list sync failures", query,
		string(models.StatusSyncFailed), maxRetries, common.SyncErrorTerminal)
}

func (r *SQLRepository) list(ctx context.Context, op, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	result := []*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*models.Order, error) {
	var (
		o                                 models.Order
		discount, items, status           string
		nextAttempt, synced, created, upd int64
	)
	err := s.Scan(&o.ID, &o.RegisterID, &o.SessionID, &o.CashierID, &o.CashierName, &o.CustomerRef,
		&o.DiscountCode, &discount, &o.Note, &items, &status, &o.PaymentMethod, &o.PaymentRef,
		&o.Sync.RemoteID, &o.Sync.LastError, &o.Sync.ErrorKind, &o.Sync.RetryCount,
		&nextAttempt, &synced, &created, &upd)
	if err != nil {
		return nil, err
	}

	if o.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("order %s: bad discount %q: %w", o.ID, discount, err)
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("order %s: bad items: %w", o.ID, err)
	}
	o.Status = models.Status(status)
	o.Sync.NextAttemptAt = dbx.FromNanos(nextAttempt)
	o.Sync.SyncedAt = dbx.FromNanos(synced)
	o.CreatedAt = dbx.FromNanos(created)
	o.UpdatedAt = dbx.FromNanos(upd)
	return &o, nil
}
