// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	return retry(ctx, connectAttempts, connectBackoff, logger, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
}

// retry calls connect up to attempts times, waiting backoff between
// failures. No wait follows the last attempt.
func retry(ctx context.Context, attempts int, backoff time.Duration, logger zerolog.Logger,
	connect func(context.Context) (*pgxpool.Pool, error)) (*pgxpool.Pool, error) {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var pool *pgxpool.Pool
		if pool, err = connect(ctx); err == nil {
			return pool, nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("database connect failed, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to postgres: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", attempts, err)
}
