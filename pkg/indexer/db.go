// Package indexer projects ledger events into SQL tables shaped for reads:
// listings by lender, rentals by borrower and what is still available.
package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// opens the database and creates the tables
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		//one writer, readers wait instead of failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var migrations = []struct {
	name  string
	query string
}{
	{"listings table", `
CREATE TABLE IF NOT EXISTS listings (
    id             BIGINT    NOT NULL PRIMARY KEY,
    lender         TEXT      NOT NULL,
    registry       TEXT      NOT NULL,
    instance       TEXT      NOT NULL,
    daily_price    TEXT      NOT NULL,
    max_duration   INTEGER   NOT NULL,
    collateral     TEXT      NOT NULL,
    payment_asset  TEXT      NOT NULL,
    is_borrowed    BOOLEAN   NOT NULL DEFAULT FALSE,
    delisted       BOOLEAN   NOT NULL DEFAULT FALSE,
    created_at     BIGINT    NOT NULL,
    updated_seq    BIGINT    NOT NULL
);`},
	{"listings lender index", `
CREATE INDEX IF NOT EXISTS listings_lender_idx ON listings (lender);`},
	{"rentals table", `
CREATE TABLE IF NOT EXISTS rentals (
    id           BIGINT    NOT NULL PRIMARY KEY,
    listing_id   BIGINT    NOT NULL,
    borrower     TEXT      NOT NULL,
    duration     INTEGER   NOT NULL,
    started_at   BIGINT    NOT NULL,
    due_at       BIGINT    NOT NULL,
    status       TEXT      NOT NULL,
    closed_at    BIGINT,
    updated_seq  BIGINT    NOT NULL
);`},
	{"rentals borrower index", `
CREATE INDEX IF NOT EXISTS rentals_borrower_idx ON rentals (borrower);`},
	{"user activity table", `
CREATE TABLE IF NOT EXISTS user_activity (
    identity   TEXT     NOT NULL,
    role       TEXT     NOT NULL,
    entity_id  BIGINT   NOT NULL,
    at         BIGINT   NOT NULL,

    PRIMARY KEY (identity, role, entity_id)
);`},
	{"indexer state table", `
CREATE TABLE IF NOT EXISTS indexer_state (
    id        INTEGER  NOT NULL PRIMARY KEY,
    last_seq  BIGINT   NOT NULL
);`},
}

// Migrate creates the projection tables and indexes.
func Migrate(ctx context.Context, db DBTX) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", m.name, err)
		}
	}
	return nil
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// queries are written with $N placeholders, sqlite gets ?N
func rebind(driver, query string) string {
	if driver != DriverSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}
