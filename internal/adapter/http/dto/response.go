package dto

import (
	"time"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

// BalanceResponse is returned by every balance-changing endpoint.
type BalanceResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// BalanceFromAccount converts an account to a balance response.
func BalanceFromAccount(a *domain.Account) *BalanceResponse {
	return &BalanceResponse{
		Balance:  a.Balance.StringFixed(a.Currency.Precision()),
		Currency: string(a.Currency),
	}
}

// TransactionResponse represents a ledger transaction in API responses.
type TransactionResponse struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	OriginalAmount   string    `json:"originalAmount"`
	OriginalCurrency string    `json:"originalCurrency"`
	BalanceAfter     string    `json:"balanceAfter"`
	RoundID          string    `json:"roundId,omitempty"`
	Sequence         int64     `json:"sequence"`
	CreatedAt        time.Time `json:"createdAt"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:               t.ID,
		Kind:             string(t.Kind),
		Amount:           t.Amount.StringFixed(t.Currency.Precision()),
		Currency:         string(t.Currency),
		OriginalAmount:   t.OriginalAmount.Amount.StringFixed(t.OriginalAmount.Currency.Precision()),
		OriginalCurrency: string(t.OriginalAmount.Currency),
		BalanceAfter:     t.BalanceAfter.StringFixed(t.Currency.Precision()),
		RoundID:          t.RoundID,
		Sequence:         t.Sequence,
		CreatedAt:        t.CreatedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txs []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txs))
	for i, t := range txs {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// RoundResponse represents a settled game round.
type RoundResponse struct {
	ID         string    `json:"id"`
	GameType   string    `json:"gameType"`
	BetAmount  string    `json:"betAmount"`
	WinAmount  string    `json:"winAmount"`
	Currency   string    `json:"currency"`
	Multiplier string    `json:"multiplier"`
	IsWin      bool      `json:"isWin"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RoundFromDomain converts a domain round to a response. Suppression is an
// internal flag and is not exposed.
func RoundFromDomain(r *domain.GameRound) *RoundResponse {
	precision := r.BetAmount.Currency.Precision()

	return &RoundResponse{
		ID:         r.ID,
		GameType:   string(r.GameType),
		BetAmount:  r.BetAmount.Amount.StringFixed(precision),
		WinAmount:  r.WinAmount.Amount.StringFixed(precision),
		Currency:   string(r.BetAmount.Currency),
		Multiplier: r.Multiplier.StringFixed(2),
		IsWin:      r.IsWin,
		CreatedAt:  r.CreatedAt,
	}
}

// RoundsFromDomain converts domain rounds to responses.
func RoundsFromDomain(rounds []*domain.GameRound) []*RoundResponse {
	result := make([]*RoundResponse, len(rounds))
	for i, r := range rounds {
		result[i] = RoundFromDomain(r)
	}
	return result
}

// PlayResponse is returned by the play endpoint.
type PlayResponse struct {
	Round *RoundResponse `json:"round"`
	BalanceResponse
}

// PlayFromResult converts a settlement to a play response.
func PlayFromResult(res *usecase.SettlementResult) *PlayResponse {
	return &PlayResponse{
		Round:           RoundFromDomain(res.Round),
		BalanceResponse: *BalanceFromAccount(res.Account),
	}
}

// RatesResponse represents the current exchange rate snapshot.
type RatesResponse struct {
	BaseCurrency string            `json:"baseCurrency"`
	Rates        map[string]string `json:"rates"`
	FetchedAt    time.Time         `json:"fetchedAt"`
	AgeInMinutes int               `json:"ageInMinutes"`
	Source       string            `json:"source"`
}

// RatesFromSnapshot converts a snapshot to a response.
func RatesFromSnapshot(s *domain.ExchangeRateSnapshot, now time.Time) *RatesResponse {
	rates := make(map[string]string, len(s.Rates))
	for c, r := range s.Rates {
		rates[string(c)] = r.String()
	}

	return &RatesResponse{
		BaseCurrency: string(s.BaseCurrency),
		Rates:        rates,
		FetchedAt:    s.FetchedAt,
		AgeInMinutes: s.AgeInMinutes(now),
		Source:       s.Source,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ListResponse wraps a page of results.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
