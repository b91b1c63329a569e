package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "pgx" database/sql driver for the postgres dialect.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Registers the "clickhouse" database/sql driver for the clickhouse dialect.
	_ "github.com/ClickHouse/clickhouse-go/v2"
	// Registers the "sqlite" database/sql driver for the sqlite dialect.
	_ "modernc.org/sqlite"

	"manifold/internal/dialect"
)

// driverName maps a dialect name to its registered database/sql driver.
//
// DuckDB has no entry: no Go DuckDB driver appears anywhere in the
// reference corpus, so a "duckdb" dialect.Dialect is only usable with a
// *sql.DB the caller opened themselves against a driver they registered
// out-of-band (e.g. via an external CGo build tag). OpenDSN refuses to
// guess one.
func driverName(dialectName string) (string, bool) {
	switch dialectName {
	case "postgres":
		return "pgx", true
	case "clickhouse":
		return "clickhouse", true
	case "sqlite":
		return "sqlite", true
	default:
		return "", false
	}
}

// OpenDSN opens a *sql.DB for d's backend, pings it with a bounded
// timeout, and wraps it in a SQLRepository with the schema applied.
// Mirrors the connect-then-ping-with-timeout shape of
// internal/persistence/databases' pool construction, minus the
// pgxpool-specific tuning knobs that only apply to Postgres.
func OpenDSN(ctx context.Context, d dialect.Dialect, dsn string) (*SQLRepository, error) {
	driver, ok := driverName(d.Name())
	if !ok {
		return nil, fmt.Errorf("repository: no registered database/sql driver for dialect %q; open the *sql.DB yourself and call Open", d.Name())
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", d.Name(), err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping %s: %w", d.Name(), err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return Open(ctx, db, d)
}
