package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds a ledger mutation once the account lock is held.
	// The mutation runs on a context detached from the request, so this is its only deadline.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultRatesTTL is how long an exchange rate snapshot is served before refresh.
	DefaultRatesTTL = 5 * time.Minute

	// DefaultRatesFetchTimeout bounds a single upstream rate fetch.
	DefaultRatesFetchTimeout = 5 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// IdempotencyPending is stored under a key while its first request is in flight.
	IdempotencyPending = "processing"
)
