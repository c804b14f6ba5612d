package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/wagerledger/internal/domain"
)

func fastRetrier(maxRetries uint64) *Retrier {
	return NewRetrier(zerolog.Nop(),
		WithMaxRetries(maxRetries),
		WithRetryInterval(time.Millisecond, 2*time.Millisecond),
	)
}

func TestRetrierReplaysConflicts(t *testing.T) {
	tests := []struct {
		name     string
		conflict error
	}{
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}},
		{"serialization failure", &pgconn.PgError{Code: pgErrSerializationFailure}},
		{"stale version", fmt.Errorf("%w: user u1 version 3", ErrStaleVersion)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := fastRetrier(3).Retry(context.Background(), func() error {
				attempts++
				if attempts < 3 {
					return tt.conflict
				}
				return nil
			})

			if err != nil {
				t.Fatalf("expected success after replay, got %v", err)
			}
			if attempts != 3 {
				t.Fatalf("expected 3 attempts, got %d", attempts)
			}
		})
	}
}

func TestRetrierReturnsDomainErrorsImmediately(t *testing.T) {
	attempts := 0
	err := fastRetrier(3).Retry(context.Background(), func() error {
		attempts++
		return domain.ErrInsufficientFunds
	})

	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := fastRetrier(2).Retry(context.Background(), func() error {
		attempts++
		return &pgconn.PgError{Code: pgErrDeadlock}
	})

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgErrDeadlock {
		t.Fatalf("expected the last deadlock error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 1 attempt plus 2 replays, got %d", attempts)
	}
}

func TestRetrierStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := NewRetrier(zerolog.Nop(), WithRetryInterval(time.Hour, time.Hour)).Retry(ctx, func() error {
		attempts++
		cancel()
		return &pgconn.PgError{Code: pgErrSerializationFailure}
	})

	if err == nil {
		t.Fatal("expected an error once the context is cancelled")
	}
	if attempts != 1 {
		t.Fatalf("expected no replay after cancellation, got %d attempts", attempts)
	}
}

func TestIsRetryableError(t *testing.T) {
	if isRetryableError(&pgconn.PgError{Code: pgErrUniqueViolation}) {
		t.Fatal("unique violations must not be replayed")
	}
	if isRetryableError(domain.ErrAccountNotFound) {
		t.Fatal("domain errors must not be replayed")
	}
	if !isRetryableError(fmt.Errorf("update: %w", &pgconn.PgError{Code: pgErrDeadlock})) {
		t.Fatal("wrapped deadlocks must be replayed")
	}
}
