package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByUserID(ctx context.Context, userID string) (*domain.Account, error)
	GetByUserIDForUpdate(ctx context.Context, tx Transaction, userID string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, userID string, balance decimal.Decimal, version int64, updatedAt time.Time) error
}

// TransactionRepository defines data access for the append-only transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.Transaction) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)
}

// GameRoundRepository defines data access for settled game rounds.
type GameRoundRepository interface {
	Create(ctx context.Context, tx Transaction, round *domain.GameRound) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.GameRound, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier retries operations that failed on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// RateProvider fetches live exchange rates quoted per one unit of the base currency.
type RateProvider interface {
	FetchRates(ctx context.Context) (map[domain.Currency]decimal.Decimal, error)
}

// RateCache shares rate snapshots between service instances.
type RateCache interface {
	GetSnapshot(ctx context.Context) (*domain.ExchangeRateSnapshot, error)
	SetSnapshot(ctx context.Context, snapshot *domain.ExchangeRateSnapshot, ttl time.Duration) error
}

// BalanceNotifier receives committed balance changes. Delivery is best effort.
type BalanceNotifier interface {
	OnBalanceChanged(ctx context.Context, delta domain.BalanceDelta)
}

// Random supplies uniform draws in [0, 1).
type Random interface {
	Float64() float64
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key whose request failed so it can be retried.
	Delete(ctx context.Context, key string) error
}
