package dto

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
)

func TestBetRequest_ToUseCaseInput(t *testing.T) {
	req := &BetRequest{GameType: "dice", BetAmount: decimal.RequireFromString("12.50"), Currency: "usd"}

	got, err := req.ToUseCaseInput("player-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.UserID != "player-1" || got.GameType != domain.GameDice {
		t.Fatalf("unexpected input %+v", got)
	}
	if got.Amount.Currency != domain.USD || !got.Amount.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected amount %+v", got.Amount)
	}

	play, err := req.PlayInput("player-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !play.Bet.Amount.Equal(got.Amount.Amount) || play.Bet.Currency != got.Amount.Currency {
		t.Fatalf("play input bet %+v differs from %+v", play.Bet, got.Amount)
	}
}

func TestWinRequest_ToUseCaseInput(t *testing.T) {
	req := &WinRequest{
		GameType:   "slots",
		WinAmount:  decimal.NewFromInt(30),
		Currency:   "BDT",
		Multiplier: decimal.RequireFromString("3"),
	}

	got, err := req.ToUseCaseInput("player-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.GameType != domain.GameSlots || !got.Multiplier.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestRequestsRejectUnknownCurrency(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"bet", func() error {
			_, err := (&BetRequest{GameType: "dice", BetAmount: decimal.NewFromInt(1), Currency: "XYZ"}).ToUseCaseInput("u")
			return err
		}},
		{"win", func() error {
			_, err := (&WinRequest{GameType: "dice", WinAmount: decimal.NewFromInt(1), Currency: ""}).ToUseCaseInput("u")
			return err
		}},
		{"amount", func() error {
			_, err := (&AmountRequest{Amount: decimal.NewFromInt(1), Currency: "DOGE"}).ToMoney()
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, domain.ErrInvalidCurrency) {
				t.Fatalf("expected ErrInvalidCurrency, got %v", err)
			}
		})
	}
}
