package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

type walletServiceStub struct {
	ensureFn   func(ctx context.Context, userID string) (*domain.Account, error)
	depositFn  func(ctx context.Context, userID string, amount domain.Money) (*usecase.MutationResult, error)
	withdrawFn func(ctx context.Context, userID string, amount domain.Money) (*usecase.MutationResult, error)
	listFn     func(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)
}

func (s *walletServiceStub) EnsureAccount(ctx context.Context, userID string) (*domain.Account, error) {
	return s.ensureFn(ctx, userID)
}

func (s *walletServiceStub) Deposit(ctx context.Context, userID string, amount domain.Money) (*usecase.MutationResult, error) {
	return s.depositFn(ctx, userID, amount)
}

func (s *walletServiceStub) Withdraw(ctx context.Context, userID string, amount domain.Money) (*usecase.MutationResult, error) {
	return s.withdrawFn(ctx, userID, amount)
}

func (s *walletServiceStub) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	return s.listFn(ctx, userID, limit, offset)
}

type gameServiceStub struct {
	betFn    func(ctx context.Context, input usecase.BetInput) (*usecase.MutationResult, error)
	winFn    func(ctx context.Context, input usecase.WinInput) (*usecase.MutationResult, error)
	playFn   func(ctx context.Context, input usecase.PlayInput) (*usecase.SettlementResult, error)
	roundsFn func(ctx context.Context, userID string, limit, offset int) ([]*domain.GameRound, error)
}

func (s *gameServiceStub) PlaceBet(ctx context.Context, input usecase.BetInput) (*usecase.MutationResult, error) {
	return s.betFn(ctx, input)
}

func (s *gameServiceStub) RecordWin(ctx context.Context, input usecase.WinInput) (*usecase.MutationResult, error) {
	return s.winFn(ctx, input)
}

func (s *gameServiceStub) Play(ctx context.Context, input usecase.PlayInput) (*usecase.SettlementResult, error) {
	return s.playFn(ctx, input)
}

func (s *gameServiceStub) ListRounds(ctx context.Context, userID string, limit, offset int) ([]*domain.GameRound, error) {
	return s.roundsFn(ctx, userID, limit, offset)
}

// userRequest builds a request already resolved to userID.
func userRequest(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(domain.ContextWithUserID(req.Context(), userID))
	}
	return req
}

func account(balance string) *domain.Account {
	return &domain.Account{UserID: "player-1", Currency: domain.BDT, Balance: domain.MustMoney(balance, domain.BDT).Amount}
}
