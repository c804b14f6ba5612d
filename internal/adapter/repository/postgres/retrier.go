package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// PostgreSQL error codes a whole ledger mutation may be replayed after.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

// Retrier implements usecase.Retrier. It replays a ledger mutation after deadlocks,
// serialization failures and lost version races; every other error is returned as is.
type Retrier struct {
	maxRetries uint64
	newBackoff func() *backoff.ExponentialBackOff
	logger     zerolog.Logger
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithMaxRetries bounds the number of replays after the first attempt.
func WithMaxRetries(n uint64) RetrierOption {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithRetryInterval sets the first and the largest wait between attempts.
func WithRetryInterval(initial, maxInterval time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.newBackoff = func() *backoff.ExponentialBackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxInterval
			b.MaxElapsedTime = 0
			return b
		}
	}
}

// NewRetrier creates a Retrier with three replays starting at 20ms.
func NewRetrier(logger zerolog.Logger, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		maxRetries: 3,
		logger:     logger.With().Str("component", "pg_retrier").Logger(),
	}
	WithRetryInterval(20*time.Millisecond, 500*time.Millisecond)(r)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Retry runs operation until it succeeds, fails permanently, runs out of replays or
// ctx is done.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackoff(), r.maxRetries), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := operation()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("ledger mutation conflicted, replaying")
	})
	if err != nil && attempt > 1 && isRetryableError(err) {
		r.logger.Error().Err(err).Int("attempts", attempt).Msg("ledger mutation kept conflicting")
	}

	return err
}

func isRetryableError(err error) bool {
	if errors.Is(err, ErrStaleVersion) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure:
			return true
		}
	}
	return false
}
