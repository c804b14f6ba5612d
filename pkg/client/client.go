// Package client talks to the wagerledger HTTP and websocket API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	userIDHeader         = "X-User-ID"
	idempotencyKeyHeader = "Idempotency-Key"
	maxResponseBytes     = 1 << 20
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Code)
}

// IsInsufficientFunds reports whether err is the ledger rejecting an overdraw.
func IsInsufficientFunds(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// Balance is the authoritative balance returned by every wallet call.
type Balance struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// Round is a settled game round.
type Round struct {
	ID         string          `json:"id"`
	GameType   string          `json:"gameType"`
	BetAmount  decimal.Decimal `json:"betAmount"`
	WinAmount  decimal.Decimal `json:"winAmount"`
	Currency   string          `json:"currency"`
	Multiplier decimal.Decimal `json:"multiplier"`
	IsWin      bool            `json:"isWin"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// PlayResult is the response of a server-decided round.
type PlayResult struct {
	Round *Round `json:"round"`
	Balance
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserID identifies the caller through the X-User-ID header.
func WithUserID(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// WithToken identifies the caller with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	userID  string
	token   string
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Balance returns the caller's balance, opening an account on first use.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	var out Balance
	if err := c.do(ctx, http.MethodGet, "/api/wallet/balance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deposit credits amount.
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal, currency string) (*Balance, error) {
	body := map[string]any{"amount": amount, "currency": currency}

	var out Balance
	if err := c.do(ctx, http.MethodPost, "/api/wallet/deposit", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Withdraw debits amount.
func (c *Client) Withdraw(ctx context.Context, amount decimal.Decimal, currency string) (*Balance, error) {
	body := map[string]any{"amount": amount, "currency": currency}

	var out Balance
	if err := c.do(ctx, http.MethodPost, "/api/wallet/withdraw", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bet debits a stake for a round decided elsewhere.
func (c *Client) Bet(ctx context.Context, gameType string, amount decimal.Decimal, currency string) (*Balance, error) {
	body := map[string]any{"gameType": gameType, "betAmount": amount, "currency": currency}

	var out Balance
	if err := c.do(ctx, http.MethodPost, "/api/games/bet", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Win credits a payout for a round decided elsewhere.
func (c *Client) Win(ctx context.Context, gameType string, amount, multiplier decimal.Decimal, currency string) (*Balance, error) {
	body := map[string]any{"gameType": gameType, "winAmount": amount, "currency": currency, "multiplier": multiplier}

	var out Balance
	if err := c.do(ctx, http.MethodPost, "/api/games/win", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Play has the server decide and settle a round.
func (c *Client) Play(ctx context.Context, gameType string, amount decimal.Decimal, currency string) (*PlayResult, error) {
	body := map[string]any{"gameType": gameType, "betAmount": amount, "currency": currency}

	var out PlayResult
	if err := c.do(ctx, http.MethodPost, "/api/games/play", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//nolint:nonamedreturns
func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("encode request: %w", marshalErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(idempotencyKeyHeader, ulid.Make().String())
	}
	c.authorize(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	if c.userID != "" {
		h.Set(userIDHeader, c.userID)
	}
}
