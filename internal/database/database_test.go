package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

func failingConnect(calls *int) func(context.Context) (*pgxpool.Pool, error) {
	return func(context.Context) (*pgxpool.Pool, error) {
		*calls++
		return nil, errRefused
	}
}

func TestRetryNoWaitAfterLastAttempt(t *testing.T) {
	// A single attempt with an hour of backoff must return at once.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var calls int
	start := time.Now()
	_, err := retry(ctx, 1, time.Hour, zerolog.Nop(), failingConnect(&calls))
	require.Error(t, err)
	assert.ErrorIs(t, err, errRefused)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryAttemptsAndWaits(t *testing.T) {
	const backoff = 20 * time.Millisecond
	var calls int
	start := time.Now()
	_, err := retry(context.Background(), 3, backoff, zerolog.Nop(), failingConnect(&calls))
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, elapsed, 2*backoff)
}

func TestRetrySucceedsAfterFailure(t *testing.T) {
	var calls int
	pool := &pgxpool.Pool{}
	got, err := retry(context.Background(), 3, time.Millisecond, zerolog.Nop(),
		func(context.Context) (*pgxpool.Pool, error) {
			calls++
			if calls == 1 {
				return nil, errRefused
			}
			return pool, nil
		})
	require.NoError(t, err)
	assert.Same(t, pool, got)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := retry(ctx, 5, time.Hour, zerolog.Nop(), func(context.Context) (*pgxpool.Pool, error) {
		calls++
		cancel()
		return nil, errRefused
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
