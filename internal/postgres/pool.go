package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption configures NewPool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	maxConns int32
	slow     time.Duration
	logArgs  bool
}

// WithMaxConns caps the pool size. Zero keeps the pgx default.
func WithMaxConns(n int32) PoolOption {
	return func(o *poolOptions) { o.maxConns = n }
}

// WithSlowQueryThreshold logs only successful queries that take at least d.
// Failed queries are always logged.
func WithSlowQueryThreshold(d time.Duration) PoolOption {
	return func(o *poolOptions) { o.slow = d }
}

// WithQueryArgs includes bind arguments in query log lines.
func WithQueryArgs(on bool) PoolOption {
	return func(o *poolOptions) { o.logArgs = on }
}

// NewPool parses databaseURL, installs the otel and logging query tracers,
// and returns a pool that has answered a ping.
func NewPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	o := poolOptions{slow: 100 * time.Millisecond}
	for _, fn := range opts {
		fn(&o)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}
	cfg.ConnConfig.Tracer = wrapQueryTracer(
		otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName()),
		o.slow,
		o.logArgs,
	)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}
