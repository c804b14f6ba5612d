package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create stages a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	_, exists := r.store.accounts[account.UserID]
	r.store.mu.RUnlock()
	if exists {
		return domain.ErrAccountExists
	}

	cp := account.Snapshot()

	return mtx.stage(op{
		check: func(s *Store) error {
			if _, ok := s.accounts[cp.UserID]; ok {
				return domain.ErrAccountExists
			}
			return nil
		},
		apply: func(s *Store) {
			s.accounts[cp.UserID] = cp
		},
	})
}

// GetByUserID retrieves an account by user ID.
func (r *AccountRepository) GetByUserID(_ context.Context, userID string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	account, ok := r.store.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return account.Snapshot(), nil
}

// GetByUserIDForUpdate reads committed state. Callers serialise writers per user;
// Commit rejects a stale version.
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Account, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// UpdateBalance stages a balance update. version must be one past the committed version.
func (r *AccountRepository) UpdateBalance(
	ctx context.Context,
	tx usecase.Transaction,
	userID string,
	balance decimal.Decimal,
	version int64,
	updatedAt time.Time,
) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	return mtx.stageUpdate(userID, version, op{
		check: func(s *Store) error {
			account, ok := s.accounts[userID]
			if !ok {
				return domain.ErrAccountNotFound
			}
			if account.Version != version-1 {
				return fmt.Errorf("memory: stale account version %d, committed %d", version-1, account.Version)
			}
			return nil
		},
		apply: func(s *Store) {
			account := s.accounts[userID].Snapshot()
			account.Balance = balance
			account.Version = version
			account.UpdatedAt = updatedAt
			s.accounts[userID] = account
		},
	})
}
