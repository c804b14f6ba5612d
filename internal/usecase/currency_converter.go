package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/infrastructure/metrics"
)

const refreshKey = "rates"

// ConverterConfig holds CurrencyConverter dependencies. Provider and Cache are optional:
// without a provider every refresh serves the fallback table.
type ConverterConfig struct {
	Provider     RateProvider
	Cache        RateCache
	TTL          time.Duration
	FetchTimeout time.Duration
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	Clock        func() time.Time
}

// CurrencyConverter prices amounts across currencies using a cached rate snapshot
// pivoted on USD. Snapshots are swapped atomically and never mutated.
type CurrencyConverter struct {
	provider     RateProvider
	cache        RateCache
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	snapshot atomic.Pointer[domain.ExchangeRateSnapshot]
	group    singleflight.Group
}

// NewCurrencyConverter creates a new CurrencyConverter.
func NewCurrencyConverter(cfg ConverterConfig) *CurrencyConverter {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRatesTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultRatesFetchTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &CurrencyConverter{
		provider:     cfg.Provider,
		cache:        cfg.Cache,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		logger:       cfg.Logger.With().Str("component", "currency_converter").Logger(),
		metrics:      cfg.Metrics,
		now:          cfg.Clock,
	}
}

// GetRates returns the current snapshot, refreshing it when older than the TTL.
// It never fails: upstream errors degrade to the fallback table.
func (c *CurrencyConverter) GetRates(ctx context.Context) *domain.ExchangeRateSnapshot {
	if snap := c.snapshot.Load(); snap != nil && snap.Fresh(c.now(), c.ttl) {
		return snap
	}

	v, _, _ := c.group.Do(refreshKey, func() (any, error) {
		if snap := c.snapshot.Load(); snap != nil && snap.Fresh(c.now(), c.ttl) {
			return snap, nil
		}

		snap := c.refresh(ctx)
		c.snapshot.Store(snap)

		return snap, nil
	})

	return v.(*domain.ExchangeRateSnapshot)
}

// Convert converts amount into the target currency, rounded to its precision.
func (c *CurrencyConverter) Convert(ctx context.Context, amount domain.Money, to domain.Currency) (domain.Money, error) {
	if amount.Currency == to {
		return amount, nil
	}

	return ConvertWith(c.GetRates(ctx), amount, to)
}

// ExchangeRate returns how many units of to one unit of from buys.
func (c *CurrencyConverter) ExchangeRate(ctx context.Context, from, to domain.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	snap := c.GetRates(ctx)

	fromRate, err := snap.Rate(from)
	if err != nil {
		return decimal.Zero, &domain.ConversionError{From: from, To: to, Reason: err.Error()}
	}

	toRate, err := snap.Rate(to)
	if err != nil {
		return decimal.Zero, &domain.ConversionError{From: from, To: to, Reason: err.Error()}
	}

	return toRate.Div(fromRate), nil
}

// ConvertWith converts amount against a specific snapshot.
func ConvertWith(snap *domain.ExchangeRateSnapshot, amount domain.Money, to domain.Currency) (domain.Money, error) {
	if amount.Currency == to {
		return amount, nil
	}

	fromRate, err := snap.Rate(amount.Currency)
	if err != nil {
		return domain.Money{}, &domain.ConversionError{From: amount.Currency, To: to, Reason: err.Error()}
	}

	toRate, err := snap.Rate(to)
	if err != nil {
		return domain.Money{}, &domain.ConversionError{From: amount.Currency, To: to, Reason: err.Error()}
	}

	converted := amount.Amount.Mul(toRate).DivRound(fromRate, to.Precision())

	return domain.Money{Amount: converted, Currency: to}, nil
}

func (c *CurrencyConverter) refresh(ctx context.Context) *domain.ExchangeRateSnapshot {
	// Refresh is shared by every waiter, so it must not die with the first caller's request.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	now := c.now()

	if c.cache != nil {
		snap, err := c.cache.GetSnapshot(fetchCtx)
		switch {
		case err != nil:
			c.logger.Debug().Err(err).Msg("shared rate cache unavailable")
		case snap != nil && snap.Fresh(now, c.ttl):
			c.observe(domain.RateSourceCache)
			return snap.WithSource(domain.RateSourceCache)
		}
	}

	if c.provider == nil {
		c.observe(domain.RateSourceFallback)
		return domain.NewFallbackSnapshot(now)
	}

	rates, err := c.provider.FetchRates(fetchCtx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("rate fetch failed, serving fallback rates")
		c.observe(domain.RateSourceFallback)
		return domain.NewFallbackSnapshot(now)
	}

	snap := mergeWithFallback(rates, now)
	if filled := len(snap.Rates) - countLive(rates); filled > 0 {
		c.logger.Debug().Int("filled", filled).Msg("live feed missing currencies, filled from fallback")
	}

	if c.cache != nil {
		if err := c.cache.SetSnapshot(fetchCtx, snap, c.ttl); err != nil {
			c.logger.Warn().Err(err).Msg("failed to share rate snapshot")
		}
	}

	c.observe(domain.RateSourceLive)

	return snap
}

func (c *CurrencyConverter) observe(source string) {
	if c.metrics != nil {
		c.metrics.RateRefreshes.WithLabelValues(source).Inc()
	}
}

// mergeWithFallback overlays positive live rates for supported currencies on the
// fallback table, so every supported currency stays priced.
func mergeWithFallback(live map[domain.Currency]decimal.Decimal, now time.Time) *domain.ExchangeRateSnapshot {
	snap := domain.NewFallbackSnapshot(now)
	snap.Source = domain.RateSourceLive

	for c, r := range live {
		if c.IsValid() && r.IsPositive() {
			snap.Rates[c] = r
		}
	}
	snap.Rates[domain.BaseCurrency] = decimal.NewFromInt(1)

	return snap
}

func countLive(live map[domain.Currency]decimal.Decimal) int {
	n := 0
	for c, r := range live {
		if c.IsValid() && r.IsPositive() {
			n++
		}
	}
	return n
}
