// Package db owns Postgres connectivity and the embedded schema migrations.
package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open opens a pgx connection pool using the given DSN and verifies it with a
// ping. Caller must call Close when done.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
