// Package repomanager vends repositories bound to a dbx.DBTX and runs the
// embedded goose migrations for the configured dialect.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/lanpos/internal/dbx"
	"github.com/dmitrijs2005/lanpos/internal/filex"
	"github.com/dmitrijs2005/lanpos/internal/migrations"
	"github.com/dmitrijs2005/lanpos/internal/repositories/baskets"
	"github.com/dmitrijs2005/lanpos/internal/repositories/metadata"
	"github.com/dmitrijs2005/lanpos/internal/repositories/orders"
	"github.com/dmitrijs2005/lanpos/internal/repositories/shifts"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type RepositoryManager interface {
	Dialect() dbx.Dialect
	RunMigrations(context.Context, *sql.DB) error
	Orders(db dbx.DBTX) orders.Repository
	Baskets(db dbx.DBTX) baskets.Repository
	Shifts(db dbx.DBTX) shifts.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

// SQLRepositoryManager serves both SQLite and PostgreSQL; the dialect only
// changes placeholders and the migration directory.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

func NewSQLRepositoryManager(dialect dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}

func (m *SQLRepositoryManager) Dialect() dbx.Dialect { return m.dialect }

func (m *SQLRepositoryManager) Orders(db dbx.DBTX) orders.Repository {
	return orders.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Baskets(db dbx.DBTX) baskets.Repository {
	return baskets.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Shifts(db dbx.DBTX) shifts.Repository {
	return shifts.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLRepository(db, m.dialect)
}

// goose keeps its FS and dialect in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, migrations.Dir(m.dialect.GooseDialect())); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Open connects to dsn, picks the dialect from it and migrates the schema.
// SQLite is limited to one connection: writes are serialized by the engine
// anyway, and ":memory:" databases are per connection.
func Open(ctx context.Context, dsn string) (*sql.DB, *SQLRepositoryManager, error) {
	dialect := dbx.DialectFromDSN(dsn)
	if path := filex.SQLitePath(dsn); dialect == dbx.DialectSQLite && path != "" {
		if _, err := filex.EnsureParentDir(path); err != nil {
			return nil, nil, fmt.Errorf("db dir error: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if dialect == dbx.DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	m := NewSQLRepositoryManager(dialect)
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, m, nil
}
