// Package postgres persists completed-session records using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tobyv/gamenight/internal/config"
)

// connectTimeout bounds the initial reachability check at startup.
const connectTimeout = 10 * time.Second

// Pool owns the pgx connection pool and its lifecycle.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool opens a connection pool for cfg and verifies the database is
// reachable before returning.
//
// Precondition: cfg must carry valid connection parameters.
// Postcondition: Returns a Pool that answered a ping, or a non-nil error
// with no resources held.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Health reports whether the database answers a ping within timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Close releases every pooled connection. The Pool is unusable afterwards.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB exposes the underlying pool to repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
