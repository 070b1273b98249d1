// Package historystore exposes read-only async queries against the
// relational datastore that backs the investigation engine: velocity,
// device/IP fanout, escalation, structuring, connected users, coordinated
// timing, fraud history, and similar patterns (§4.1).
package historystore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
)

// Store wraps the PostgreSQL connection pool backing every HistoryStore
// read. Constructed once at startup, passed by reference into workers
// (§9 Singleton lifecycle).
type Store struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// New opens a bounded connection pool against cfg.URL.
func New(ctx context.Context, cfg configs.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MinOpenConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().Msg("historystore connection pool established")

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}

	return &Store{pool: pool, queryTimeout: timeout}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		log.Info().Msg("historystore connection pool closed")
	}
}

// HealthCheck pings the pool.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Stats returns pool statistics for the admin server.
func (s *Store) Stats() *pgxpool.Stat {
	return s.pool.Stat()
}

// queryCtx derives a per-query context bounded by the 50ms budget (§4.1,
// §5: "queries must not block the engine's worker pool longer than 50 ms").
func (s *Store) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.queryTimeout)
}
