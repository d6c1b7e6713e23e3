package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"ruleflow/internal/config"
	"ruleflow/pkg/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Open builds the configured ledger. The postgres driver reuses the service's connection pool
// unless ledger.url names a separate database; sqlite opens its own database file. The returned
// close function releases what Open created.
func Open(ctx context.Context, cfg config.LedgerConfig, postgres *sql.DB, serviceName string, runMigrations bool) (Ledger, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case DriverPostgres:
		if cfg.URL == "" {
			if postgres == nil {
				return nil, noop, fmt.Errorf("ledger driver postgres requires database.postgres to be configured")
			}
			l, err := NewSQLLedger(postgres, "postgres", serviceName)
			return l, noop, err
		}
		return openOwned(ctx, "postgres", "postgres", cfg.URL, serviceName, runMigrations, migrations.Postgres)

	case DriverSQLite:
		return openOwned(ctx, "sqlite3", "sqlite", cfg.URL, serviceName, runMigrations, migrations.SQLite)

	case DriverMemory, "":
		return NewMemoryLedger(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

func openOwned(ctx context.Context, driver, name, url, serviceName string, runMigrations bool, migrate func(*sql.DB) error) (Ledger, func() error, error) {
	noop := func() error { return nil }

	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open %s ledger: %w", name, err)
	}
	if driver == "sqlite3" {
		// One writer avoids SQLITE_BUSY on concurrent claims.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, noop, fmt.Errorf("failed to open %s ledger: %w", name, err)
	}
	if runMigrations {
		if err := migrate(db); err != nil {
			db.Close()
			return nil, noop, err
		}
	}
	l, err := NewSQLLedger(db, driver, serviceName)
	if err != nil {
		db.Close()
		return nil, noop, err
	}
	return l, db.Close, nil
}
