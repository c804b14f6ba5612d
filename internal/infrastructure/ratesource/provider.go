// Package ratesource fetches live exchange rates from an HTTP endpoint that
// answers {"base":"USD","rates":{"EUR":0.92,...}}.
package ratesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
)

const maxBodyBytes = 1 << 20

// StatusCodeError is returned for non-200 upstream responses.
type StatusCodeError struct {
	Code int
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("rate source responded %d", e.Code)
}

// Config configures an HTTPProvider.
type Config struct {
	URL        string
	Client     *http.Client
	MaxRetries uint64
	Logger     zerolog.Logger
}

// HTTPProvider implements usecase.RateProvider against a JSON rate endpoint.
type HTTPProvider struct {
	url        string
	client     *http.Client
	maxRetries uint64
	logger     zerolog.Logger
	newBackoff func() backoff.BackOff
}

// NewHTTPProvider creates a new HTTPProvider.
func NewHTTPProvider(cfg Config) *HTTPProvider {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	return &HTTPProvider{
		url:        cfg.URL,
		client:     cfg.Client,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger.With().Str("component", "rate_source").Logger(),
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

type ratesResponse struct {
	Base  string                 `json:"base"`
	Rates map[string]json.Number `json:"rates"`
}

// FetchRates returns rates quoted per one unit of USD. Transient failures
// (network errors, 5xx, 429) are retried with exponential backoff.
func (p *HTTPProvider) FetchRates(ctx context.Context) (map[domain.Currency]decimal.Decimal, error) {
	var rates map[domain.Currency]decimal.Decimal

	attempt := 0
	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackoff(), p.maxRetries), ctx)

	err := backoff.Retry(func() error {
		attempt++

		r, err := p.fetch(ctx)
		if err == nil {
			rates = r
			return nil
		}

		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}

		p.logger.Debug().Err(err).Int("attempt", attempt).Msg("rate fetch failed, retrying")

		return err
	}, b)
	if err != nil {
		return nil, err
	}

	return rates, nil
}

func (p *HTTPProvider) fetch(ctx context.Context) (rates map[domain.Currency]decimal.Decimal, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusCodeError{Code: resp.StatusCode}
	}

	var body ratesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse response: %w", err))
	}

	if body.Base != "" && domain.Currency(strings.ToUpper(body.Base)) != domain.BaseCurrency {
		return nil, backoff.Permanent(fmt.Errorf("unexpected base currency %q", body.Base))
	}

	rates = make(map[domain.Currency]decimal.Decimal, len(body.Rates))
	for code, raw := range body.Rates {
		r, err := decimal.NewFromString(raw.String())
		if err != nil {
			continue
		}
		rates[domain.Currency(strings.ToUpper(code))] = r
	}

	if len(rates) == 0 {
		return nil, backoff.Permanent(errors.New("rate source returned no rates"))
	}

	return rates, nil
}

func retryable(err error) bool {
	var status *StatusCodeError
	if errors.As(err, &status) {
		return status.Code >= http.StatusInternalServerError || status.Code == http.StatusTooManyRequests
	}

	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
