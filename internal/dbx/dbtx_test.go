package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db))
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, countRows(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		require.NotNil(t, recover(), "expected panic to propagate")
		require.Equal(t, 0, countRows(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := `SELECT id FROM orders WHERE status IN (?, ?) AND note <> '?' AND created_at >= ?`

	assert.Equal(t, q, DialectSQLite.Rebind(q))
	assert.Equal(t,
		`SELECT id FROM orders WHERE status IN ($1, $2) AND note <> '?' AND created_at >= $3`,
		DialectPostgres.Rebind(q))
}

func TestDialectFromDSN(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFromDSN("postgres://u:p@db:5432/pos?sslmode=disable"))
	assert.Equal(t, DialectPostgres, DialectFromDSN("PostgreSQL://db/pos"))
	assert.Equal(t, DialectSQLite, DialectFromDSN("pos.db"))
	assert.Equal(t, DialectSQLite, DialectFromDSN("file:pos.db?_pragma=busy_timeout(5000)"))

	assert.Equal(t, "pgx", DialectPostgres.DriverName())
	assert.Equal(t, "sqlite", DialectSQLite.DriverName())
	assert.Equal(t, "sqlite3", DialectSQLite.GooseDialect())
}

func TestNanosRoundTrip(t *testing.T) {
	assert.Equal(t, int64(0), ToNanos(time.Time{}))
	assert.True(t, FromNanos(0).IsZero())

	ts := time.Date(2026, 3, 1, 10, 30, 0, 123, time.FixedZone("EET", 2*3600))
	back := FromNanos(ToNanos(ts))
	assert.True(t, ts.Equal(back))
	assert.Equal(t, time.UTC, back.Location())
}

func TestIsUniqueViolation(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO t(id, v) VALUES (1, 'a')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t(id, v) VALUES (1, 'b')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.True(t, IsUniqueViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}
