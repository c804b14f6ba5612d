package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/wagerledger/internal/adapter/http/dto"
	"github.com/iho/wagerledger/internal/domain"
)

// RateService defines the behavior needed by RatesHandler.
type RateService interface {
	GetRates(ctx context.Context) *domain.ExchangeRateSnapshot
}

// RatesHandler exposes the exchange rate snapshot.
type RatesHandler struct {
	rates RateService
	now   func() time.Time
}

// NewRatesHandler creates a new RatesHandler.
func NewRatesHandler(rates RateService) *RatesHandler {
	return &RatesHandler{rates: rates, now: time.Now}
}

// Get returns the current snapshot. It never fails: stale upstreams serve fallback rates.
func (h *RatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.RatesFromSnapshot(h.rates.GetRates(r.Context()), h.now()))
}
