package memory

import (
	"context"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Create stages a transaction record.
func (r *TransactionRepository) Create(_ context.Context, tx usecase.Transaction, record *domain.Transaction) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	cp := *record

	return mtx.stage(op{
		apply: func(s *Store) {
			s.transactions[cp.UserID] = append(s.transactions[cp.UserID], &cp)
		},
	})
}

// ListByUser returns a user's transactions, newest first.
func (r *TransactionRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return newestFirst(r.store.transactions[userID], limit, offset), nil
}

// GameRoundRepository implements usecase.GameRoundRepository.
type GameRoundRepository struct {
	store *Store
}

// NewGameRoundRepository creates a new GameRoundRepository.
func NewGameRoundRepository(store *Store) *GameRoundRepository {
	return &GameRoundRepository{store: store}
}

// Create stages a settled round.
func (r *GameRoundRepository) Create(_ context.Context, tx usecase.Transaction, round *domain.GameRound) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	cp := *round

	return mtx.stage(op{
		apply: func(s *Store) {
			s.rounds[cp.UserID] = append(s.rounds[cp.UserID], &cp)
		},
	})
}

// ListByUser returns a user's rounds, newest first.
func (r *GameRoundRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]*domain.GameRound, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return newestFirst(r.store.rounds[userID], limit, offset), nil
}

// newestFirst pages items stored in append order, copying each element.
func newestFirst[T any](items []*T, limit, offset int) []*T {
	out := make([]*T, 0, limit)
	for i := len(items) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *items[i]
		out = append(out, &cp)
	}
	return out
}
