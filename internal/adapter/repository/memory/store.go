// Package memory is a process-local storage backend. Writes made through a Tx are
// staged and become visible together at Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

// ErrTxClosed is returned when a committed or rolled back Tx is reused.
var ErrTxClosed = errors.New("memory: transaction already closed")

// Store holds all committed state.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	transactions map[string][]*domain.Transaction
	rounds       map[string][]*domain.GameRound
	outbox       []*domain.OutboxEvent
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string][]*domain.Transaction),
		rounds:       make(map[string][]*domain.GameRound),
	}
}

// op is one staged write. check runs against committed state before any apply.
type op struct {
	check func(s *Store) error
	apply func(s *Store)
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{store: m.store}, nil
}

// Tx stages writes until Commit.
type Tx struct {
	store    *Store
	mu       sync.Mutex
	ops      []op
	versions map[string]int64
	closed   bool
}

// Commit validates every staged write and applies them all, or none.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTxClosed
	}
	t.closed = true

	if err := ctx.Err(); err != nil {
		return err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, o := range t.ops {
		if o.check == nil {
			continue
		}
		if err := o.check(t.store); err != nil {
			return err
		}
	}

	for _, o := range t.ops {
		o.apply(t.store)
	}

	return nil
}

// Rollback discards staged writes. It is a no-op on a closed Tx.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.ops = nil

	return nil
}

func (t *Tx) stage(o op) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTxClosed
	}
	t.ops = append(t.ops, o)

	return nil
}

// stageUpdate stages an account version bump. Only the first bump per account in a
// Tx is checked against committed state; later ones must follow it.
func (t *Tx) stageUpdate(userID string, version int64, o op) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTxClosed
	}

	if prev, ok := t.versions[userID]; ok {
		if prev != version-1 {
			return fmt.Errorf("memory: account version %d does not follow staged %d", version, prev)
		}
		o.check = nil
	}

	if t.versions == nil {
		t.versions = make(map[string]int64)
	}
	t.versions[userID] = version
	t.ops = append(t.ops, o)

	return nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("memory: unexpected transaction type %T", tx)
	}
	return mtx, nil
}
