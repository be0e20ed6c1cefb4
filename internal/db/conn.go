package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hurou927/kin-subset/internal/config"
)

// NewPool creates a new pgx connection pool from config. Workers bounds the
// pool size when positive.
func NewPool(ctx context.Context, conn *config.Connection, workers int) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(conn.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: parsing DSN: %w", config.ErrConfiguration, err)
	}
	if workers > 0 {
		poolCfg.MaxConns = int32(workers)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database %s@%s:%d/%s: %w", conn.User, conn.Host, conn.Port, conn.Database, err)
	}

	return pool, nil
}
