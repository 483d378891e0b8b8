// Package sqlite counts records in a SQLite database, e.g. a local replica of
// the production D1 database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/hupe1980/sentinel/oracle"
)

// DefaultQuery counts the live lessons.
const DefaultQuery = "SELECT COUNT(*) FROM lessons"

// Oracle implements oracle.CountOracle with a single-value SQL query.
type Oracle struct {
	db    *sql.DB
	query string
}

// New creates an oracle on an open database handle.
// If query is empty, DefaultQuery is used.
func New(db *sql.DB, query string) *Oracle {
	if query == "" {
		query = DefaultQuery
	}
	return &Oracle{db: db, query: query}
}

// Open opens the database file at path read-only.
func Open(path, query string) (*Oracle, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	return New(db, query), nil
}

// Close closes the underlying database handle.
func (o *Oracle) Close() error {
	return o.db.Close()
}

// Count implements oracle.CountOracle.
func (o *Oracle) Count(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	if err := o.db.QueryRowContext(ctx, o.query).Scan(&n); err != nil {
		return 0, oracle.Unavailablef("sqlite: %v", err)
	}
	if !n.Valid {
		return 0, oracle.Unavailablef("sqlite: query returned NULL")
	}
	return n.Int64, nil
}
