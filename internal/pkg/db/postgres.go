// Package db opens the PostgreSQL pool and the Redis client.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/config"
)

const (
	defaultPoolSize       = 10
	defaultConnectTimeout = 10 * time.Second
	defaultMaxLifetime    = time.Hour
	defaultMaxIdleTime    = 30 * time.Minute
	healthCheckPeriod     = 30 * time.Second

	// connectAttempts bounds the retries while the database comes up.
	connectAttempts = 5
)

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// PoolConfig builds the pgx pool configuration from cfg, filling in
// defaults for unset limits.
func PoolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = defaultPoolSize
	}
	pc.MaxConns = int32(size)
	pc.MinConns = max(int32(size/4), 1)

	pc.ConnConfig.ConnectTimeout = orDefault(cfg.ConnectTimeout, defaultConnectTimeout)
	pc.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, defaultMaxLifetime)
	pc.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, defaultMaxIdleTime)
	pc.HealthCheckPeriod = healthCheckPeriod
	return pc, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// NewPool connects to PostgreSQL, retrying the first ping with exponential
// backoff.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("pool_size", pc.MaxConns).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ping := func() error { return pool.Ping(ctx) }
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectAttempts), ctx)
	err = backoff.RetryNotify(ping, b, func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("PostgreSQL not ready")
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")
	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL connection pool closed")
	}
}

// HealthCheck pings the database.
func (p *Pool) HealthCheck(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
