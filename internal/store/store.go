// Package store is the hand-written Postgres access layer. Each service
// consumes a narrow interface over the methods it needs so tests can stub
// persistence without a database.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store executes queries against the provided connection or transaction.
type Store struct {
	db DBTX
}

// New constructs a Store over a pool or connection.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to the transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}
