// Package postgres counts records in a PostgreSQL database with pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hupe1980/sentinel/oracle"
)

// DefaultQuery counts the live lessons.
const DefaultQuery = "SELECT COUNT(*) FROM lessons"

// Querier is the subset of *pgx.Conn and *pgxpool.Pool the oracle needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Oracle implements oracle.CountOracle with a single-value SQL query.
type Oracle struct {
	db    Querier
	query string
}

// New creates an oracle on db. If query is empty, DefaultQuery is used.
func New(db Querier, query string) *Oracle {
	if query == "" {
		query = DefaultQuery
	}
	return &Oracle{db: db, query: query}
}

// Connect opens a connection to dsn.
//
// The caller closes the returned connection once the oracle is no longer used.
func Connect(ctx context.Context, dsn, query string) (*Oracle, *pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return New(conn, query), conn, nil
}

// Count implements oracle.CountOracle.
func (o *Oracle) Count(ctx context.Context) (int64, error) {
	var n *int64
	if err := o.db.QueryRow(ctx, o.query).Scan(&n); err != nil {
		return 0, oracle.Unavailablef("postgres: %v", err)
	}
	if n == nil {
		return 0, oracle.Unavailablef("postgres: query returned NULL")
	}
	return *n, nil
}
