package handler

import (
	"context"
	"net/http"

	"github.com/iho/wagerledger/internal/adapter/http/dto"
	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

// WalletService defines the behavior needed by WalletHandler.
type WalletService interface {
	EnsureAccount(ctx context.Context, userID string) (*domain.Account, error)
	Deposit(ctx context.Context, userID string, amount domain.Money) (*usecase.MutationResult, error)
	Withdraw(ctx context.Context, userID string, amount domain.Money) (*usecase.MutationResult, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)
}

// WalletHandler handles wallet HTTP requests.
type WalletHandler struct {
	wallet WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallet WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// Balance returns the caller's balance, opening the wallet on first use.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	account, err := h.wallet.EnsureAccount(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromAccount(account))
}

// Deposit credits the caller's wallet.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "deposit failed", h.wallet.Deposit)
}

// Withdraw debits the caller's wallet.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, "withdrawal failed", h.wallet.Withdraw)
}

func (h *WalletHandler) move(
	w http.ResponseWriter,
	r *http.Request,
	failure string,
	op func(context.Context, string, domain.Money) (*usecase.MutationResult, error),
) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := req.ToMoney()
	if err != nil {
		writeDomainError(w, "invalid amount", err)
		return
	}

	res, err := op(r.Context(), userID, amount)
	if err != nil {
		writeDomainError(w, failure, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromAccount(res.Account))
}

// Transactions lists the caller's transactions, newest first.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, offset := domain.ValidatePagination(
		parseIntQuery(r, "limit", domain.DefaultPageSize),
		parseIntQuery(r, "offset", 0),
	)

	txs, err := h.wallet.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.TransactionResponse]{
		Items:  dto.TransactionsFromDomain(txs),
		Limit:  limit,
		Offset: offset,
	})
}
