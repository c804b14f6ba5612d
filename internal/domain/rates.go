package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate snapshot sources.
const (
	RateSourceLive     = "live"
	RateSourceCache    = "cache"
	RateSourceFallback = "fallback"
)

// ExchangeRateSnapshot is an immutable table of rates quoted as units of
// currency per one unit of BaseCurrency.
type ExchangeRateSnapshot struct {
	FetchedAt    time.Time
	Rates        map[Currency]decimal.Decimal
	BaseCurrency Currency
	Source       string
}

// FallbackRates is the hardcoded table used when the upstream source is unreachable.
var FallbackRates = map[Currency]string{
	USD:  "1",
	EUR:  "0.92",
	GBP:  "0.79",
	BDT:  "110",
	INR:  "83",
	PKR:  "278",
	NPR:  "133",
	CAD:  "1.36",
	AUD:  "1.52",
	JPY:  "150",
	BTC:  "0.000015",
	ETH:  "0.00029",
	LTC:  "0.012",
	USDT: "1",
}

// NewFallbackSnapshot builds a snapshot from FallbackRates stamped at now.
func NewFallbackSnapshot(now time.Time) *ExchangeRateSnapshot {
	rates := make(map[Currency]decimal.Decimal, len(FallbackRates))
	for c, r := range FallbackRates {
		rates[c] = decimal.RequireFromString(r)
	}

	return &ExchangeRateSnapshot{
		BaseCurrency: BaseCurrency,
		Rates:        rates,
		FetchedAt:    now,
		Source:       RateSourceFallback,
	}
}

// Rate returns the rate for c or a ConversionError when it is absent or non-positive.
func (s *ExchangeRateSnapshot) Rate(c Currency) (decimal.Decimal, error) {
	r, ok := s.Rates[c]
	if !ok {
		return decimal.Zero, &ConversionError{From: s.BaseCurrency, To: c, Reason: "rate missing from snapshot"}
	}
	if !r.IsPositive() {
		return decimal.Zero, &ConversionError{From: s.BaseCurrency, To: c, Reason: "rate is not positive"}
	}
	return r, nil
}

// Age returns how long ago the snapshot was fetched.
func (s *ExchangeRateSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// AgeInMinutes returns the snapshot age in whole minutes.
func (s *ExchangeRateSnapshot) AgeInMinutes(now time.Time) int {
	return int(s.Age(now) / time.Minute)
}

// Fresh reports whether the snapshot is younger than ttl.
func (s *ExchangeRateSnapshot) Fresh(now time.Time, ttl time.Duration) bool {
	return s.Age(now) < ttl
}

// WithSource returns a copy tagged with a different source. Rates are shared since
// snapshots are never mutated.
func (s *ExchangeRateSnapshot) WithSource(source string) *ExchangeRateSnapshot {
	cp := *s
	cp.Source = source
	return &cp
}
