package handler

import (
	"context"
	"net/http"

	"github.com/iho/wagerledger/internal/adapter/http/dto"
	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

// GameService defines the behavior needed by GameHandler.
type GameService interface {
	PlaceBet(ctx context.Context, input usecase.BetInput) (*usecase.MutationResult, error)
	RecordWin(ctx context.Context, input usecase.WinInput) (*usecase.MutationResult, error)
	Play(ctx context.Context, input usecase.PlayInput) (*usecase.SettlementResult, error)
	ListRounds(ctx context.Context, userID string, limit, offset int) ([]*domain.GameRound, error)
}

// GameHandler handles game HTTP requests.
type GameHandler struct {
	games GameService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games GameService) *GameHandler {
	return &GameHandler{games: games}
}

// Bet debits a stake for a client-decided round.
func (h *GameHandler) Bet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.BetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(userID)
	if err != nil {
		writeDomainError(w, "invalid bet", err)
		return
	}

	res, err := h.games.PlaceBet(r.Context(), input)
	if err != nil {
		writeDomainError(w, "bet failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromAccount(res.Account))
}

// Win credits a payout for a client-decided round.
func (h *GameHandler) Win(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.WinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(userID)
	if err != nil {
		writeDomainError(w, "invalid win", err)
		return
	}

	res, err := h.games.RecordWin(r.Context(), input)
	if err != nil {
		writeDomainError(w, "win failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromAccount(res.Account))
}

// Play decides and settles a round server-side.
func (h *GameHandler) Play(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.BetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.PlayInput(userID)
	if err != nil {
		writeDomainError(w, "invalid bet", err)
		return
	}

	res, err := h.games.Play(r.Context(), input)
	if err != nil {
		writeDomainError(w, "play failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PlayFromResult(res))
}

// Rounds lists the caller's settled rounds, newest first.
func (h *GameHandler) Rounds(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, offset := domain.ValidatePagination(
		parseIntQuery(r, "limit", domain.DefaultPageSize),
		parseIntQuery(r, "offset", 0),
	)

	rounds, err := h.games.ListRounds(r.Context(), userID, limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list rounds", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.RoundResponse]{
		Items:  dto.RoundsFromDomain(rounds),
		Limit:  limit,
		Offset: offset,
	})
}
