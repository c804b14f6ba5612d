package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

// BetRequest represents a request to place a bet.
type BetRequest struct {
	GameType  string          `json:"gameType"`
	BetAmount decimal.Decimal `json:"betAmount"`
	Currency  string          `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *BetRequest) ToUseCaseInput(userID string) (usecase.BetInput, error) {
	amount, err := toMoney(r.BetAmount, r.Currency)
	if err != nil {
		return usecase.BetInput{}, err
	}

	return usecase.BetInput{
		UserID:   userID,
		GameType: gameType(r.GameType),
		Amount:   amount,
	}, nil
}

// PlayInput converts the same payload into a server-decided round.
func (r *BetRequest) PlayInput(userID string) (usecase.PlayInput, error) {
	amount, err := toMoney(r.BetAmount, r.Currency)
	if err != nil {
		return usecase.PlayInput{}, err
	}

	return usecase.PlayInput{
		UserID:   userID,
		GameType: gameType(r.GameType),
		Bet:      amount,
	}, nil
}

// WinRequest represents a request to credit a win.
type WinRequest struct {
	GameType   string          `json:"gameType"`
	WinAmount  decimal.Decimal `json:"winAmount"`
	Currency   string          `json:"currency"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// ToUseCaseInput converts to use case input.
func (r *WinRequest) ToUseCaseInput(userID string) (usecase.WinInput, error) {
	amount, err := toMoney(r.WinAmount, r.Currency)
	if err != nil {
		return usecase.WinInput{}, err
	}

	return usecase.WinInput{
		UserID:     userID,
		GameType:   gameType(r.GameType),
		Amount:     amount,
		Multiplier: r.Multiplier,
	}, nil
}

// AmountRequest represents a deposit or withdrawal.
type AmountRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ToMoney validates the currency code and tags the amount with it.
func (r *AmountRequest) ToMoney() (domain.Money, error) {
	return toMoney(r.Amount, r.Currency)
}

func toMoney(amount decimal.Decimal, currency string) (domain.Money, error) {
	c, err := domain.ParseCurrency(currency)
	if err != nil {
		return domain.Money{}, err
	}

	return domain.NewMoney(amount, c), nil
}

func gameType(s string) domain.GameType {
	return domain.GameType(s)
}
