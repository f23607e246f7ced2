// Package baskets persists the one open basket per session so a register
// restart does not lose a sale in progress.
package baskets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/models"
)

type Repository interface {
	Get(ctx context.Context, sessionID string) (*models.Basket, error)
	Save(ctx context.Context, b *models.Basket) error
	Delete(ctx context.Context, sessionID string) error
}

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Get(ctx context.Context, sessionID string) (*models.Basket, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT payload FROM baskets WHERE session_id = ?`), sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("basket %s: %w", sessionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get basket %s: %w", sessionID, err)
	}

	b := &models.Basket{}
	if err := json.Unmarshal([]byte(payload), b); err != nil {
		return nil, fmt.Errorf("failed to decode basket %s: %w", sessionID, err)
	}
	return b, nil
}

func (r *SQLRepository) Save(ctx context.Context, b *models.Basket) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode basket %s: %w", b.SessionID, err)
	}
	_, err = r.db.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO baskets (session_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`), b.SessionID, string(payload), dbx.ToNanos(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save basket %s: %w", b.SessionID, err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM baskets WHERE session_id = ?`), sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete basket %s: %w", sessionID, err)
	}
	return nil
}
