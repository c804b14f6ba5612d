package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
)

// RateCache implements usecase.RateCache, sharing snapshots between instances.
type RateCache struct {
	client *redis.Client
	key    string
}

// NewRateCache creates a new RateCache storing the snapshot under key.
func NewRateCache(client *redis.Client, key string) *RateCache {
	return &RateCache{client: client, key: key}
}

type snapshotRecord struct {
	FetchedAt    time.Time                  `json:"fetched_at"`
	BaseCurrency domain.Currency            `json:"base_currency"`
	Source       string                     `json:"source"`
	Rates        map[string]decimal.Decimal `json:"rates"`
}

// GetSnapshot returns the shared snapshot, or nil when none is stored.
func (c *RateCache) GetSnapshot(ctx context.Context) (*domain.ExchangeRateSnapshot, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec snapshotRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode rate snapshot: %w", err)
	}

	snap := &domain.ExchangeRateSnapshot{
		FetchedAt:    rec.FetchedAt,
		BaseCurrency: rec.BaseCurrency,
		Source:       rec.Source,
		Rates:        make(map[domain.Currency]decimal.Decimal, len(rec.Rates)),
	}
	for code, rate := range rec.Rates {
		currency := domain.Currency(code)
		if currency.IsValid() {
			snap.Rates[currency] = rate
		}
	}

	return snap, nil
}

// SetSnapshot stores snapshot with ttl.
func (c *RateCache) SetSnapshot(ctx context.Context, snapshot *domain.ExchangeRateSnapshot, ttl time.Duration) error {
	rec := snapshotRecord{
		FetchedAt:    snapshot.FetchedAt,
		BaseCurrency: snapshot.BaseCurrency,
		Source:       snapshot.Source,
		Rates:        make(map[string]decimal.Decimal, len(snapshot.Rates)),
	}
	for currency, rate := range snapshot.Rates {
		rec.Rates[string(currency)] = rate
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.key, raw, ttl).Err()
}
