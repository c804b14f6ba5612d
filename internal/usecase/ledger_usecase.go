package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/infrastructure/metrics"
)

// LedgerConfig holds BalanceLedger dependencies. Outbox, Notifier, Engine, Retrier and
// Metrics are optional.
type LedgerConfig struct {
	TxManager       TransactionManager
	Accounts        AccountRepository
	Transactions    TransactionRepository
	Rounds          GameRoundRepository
	Outbox          OutboxRepository
	Converter       *CurrencyConverter
	Engine          *GameOutcomeEngine
	Notifier        BalanceNotifier
	IDGen           IDGenerator
	Retrier         Retrier
	Locker          *AccountLocker
	DefaultCurrency domain.Currency
	Logger          zerolog.Logger
	Metrics         *metrics.Metrics
	Clock           func() time.Time
}

// BalanceLedger owns every balance mutation. Mutations for one user are serialised;
// each commits the balance, its transaction records and outbox events in one
// storage transaction.
type BalanceLedger struct {
	txManager       TransactionManager
	accounts        AccountRepository
	transactions    TransactionRepository
	rounds          GameRoundRepository
	outbox          OutboxRepository
	converter       *CurrencyConverter
	engine          *GameOutcomeEngine
	notifier        BalanceNotifier
	idGen           IDGenerator
	retrier         Retrier
	locker          *AccountLocker
	defaultCurrency domain.Currency
	logger          zerolog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

// NewBalanceLedger creates a new BalanceLedger.
func NewBalanceLedger(cfg LedgerConfig) *BalanceLedger {
	if cfg.Locker == nil {
		cfg.Locker = NewAccountLocker()
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = domain.BDT
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &BalanceLedger{
		txManager:       cfg.TxManager,
		accounts:        cfg.Accounts,
		transactions:    cfg.Transactions,
		rounds:          cfg.Rounds,
		outbox:          cfg.Outbox,
		converter:       cfg.Converter,
		engine:          cfg.Engine,
		notifier:        cfg.Notifier,
		idGen:           cfg.IDGen,
		retrier:         cfg.Retrier,
		locker:          cfg.Locker,
		defaultCurrency: cfg.DefaultCurrency,
		logger:          cfg.Logger.With().Str("component", "balance_ledger").Logger(),
		metrics:         cfg.Metrics,
		now:             cfg.Clock,
	}
}

// SettlementResult is the committed outcome of a settled round.
type SettlementResult struct {
	Account *domain.Account
	Round   *domain.GameRound
	Bet     *domain.Transaction
	// Win is nil for lost rounds.
	Win *domain.Transaction
}

// MutationResult is the committed outcome of a single debit or credit.
type MutationResult struct {
	Account     *domain.Account
	Transaction *domain.Transaction
}

// GetAccount returns the user's account.
func (l *BalanceLedger) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	return l.accounts.GetByUserID(ctx, userID)
}

// OpenAccount opens an empty account in currency.
func (l *BalanceLedger) OpenAccount(ctx context.Context, userID string, currency domain.Currency) (*domain.Account, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, currency)
	}

	unlock, err := l.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTransactionTimeout)
	defer cancel()

	tx, err := l.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := l.now().UTC()
	account := &domain.Account{
		UserID:    userID,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.accounts.Create(txCtx, tx, account); err != nil {
		return nil, err
	}

	if err := l.emit(txCtx, tx, userID, domain.AggregateTypeAccount, domain.EventTypeAccountOpened, domain.AccountOpenedPayload(account), now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	l.logger.Info().Str("user_id", userID).Str("currency", string(currency)).Msg("account opened")

	return account, nil
}

// EnsureAccount returns the user's account, opening one in the default currency
// when none exists.
func (l *BalanceLedger) EnsureAccount(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := l.GetAccount(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	account, err = l.OpenAccount(ctx, userID, l.defaultCurrency)
	if errors.Is(err, domain.ErrAccountExists) {
		return l.accounts.GetByUserID(ctx, userID)
	}

	return account, err
}

// Deposit credits amount, opening the account on first use.
func (l *BalanceLedger) Deposit(ctx context.Context, userID string, amount domain.Money) (*MutationResult, error) {
	if _, err := l.EnsureAccount(ctx, userID); err != nil {
		return nil, err
	}

	return l.Credit(ctx, userID, amount, domain.TransactionKindDeposit)
}

// Withdraw debits amount from an existing account.
func (l *BalanceLedger) Withdraw(ctx context.Context, userID string, amount domain.Money) (*MutationResult, error) {
	return l.Debit(ctx, userID, amount, domain.TransactionKindWithdrawal)
}

// Debit converts amount into the account currency and subtracts it. The balance
// never goes negative.
func (l *BalanceLedger) Debit(ctx context.Context, userID string, amount domain.Money, kind domain.TransactionKind) (*MutationResult, error) {
	if !kind.IsDebit() {
		return nil, fmt.Errorf("%w: %s is not a debit", domain.ErrInvalidTransactionKind, kind)
	}

	return l.mutate(ctx, userID, amount, kind)
}

// Credit converts amount into the account currency and adds it.
func (l *BalanceLedger) Credit(ctx context.Context, userID string, amount domain.Money, kind domain.TransactionKind) (*MutationResult, error) {
	if !kind.IsValid() || kind.IsDebit() {
		return nil, fmt.Errorf("%w: %s is not a credit", domain.ErrInvalidTransactionKind, kind)
	}

	return l.mutate(ctx, userID, amount, kind)
}

// BetInput is a standalone wager on a game.
type BetInput struct {
	UserID   string
	GameType domain.GameType
	Amount   domain.Money
}

// PlaceBet debits a wager for a known game.
func (l *BalanceLedger) PlaceBet(ctx context.Context, input BetInput) (*MutationResult, error) {
	if _, err := l.rule(input.GameType); err != nil {
		return nil, err
	}

	return l.Debit(ctx, input.UserID, input.Amount, domain.TransactionKindBet)
}

// WinInput is an externally decided payout.
type WinInput struct {
	UserID     string
	GameType   domain.GameType
	Amount     domain.Money
	Multiplier decimal.Decimal
}

// RecordWin credits a payout after checking the multiplier against the game's range.
func (l *BalanceLedger) RecordWin(ctx context.Context, input WinInput) (*MutationResult, error) {
	rule, err := l.rule(input.GameType)
	if err != nil {
		return nil, err
	}
	if !rule.AllowsMultiplier(input.Multiplier) {
		return nil, fmt.Errorf("%w: %s for %s", domain.ErrInvalidMultiplier, input.Multiplier, input.GameType)
	}

	return l.Credit(ctx, input.UserID, input.Amount, domain.TransactionKindWin)
}

// Settle debits the round's bet and credits its win, if any, in one atomic step.
// A round whose bet exceeds the balance is rejected without any change.
func (l *BalanceLedger) Settle(ctx context.Context, round *domain.GameRound) (*SettlementResult, error) {
	if err := round.Validate(); err != nil {
		return nil, err
	}
	if _, err := l.rule(round.GameType); err != nil {
		return nil, err
	}

	if _, err := l.GetAccount(ctx, round.UserID); err != nil {
		return nil, err
	}

	snap := l.converter.GetRates(ctx)

	var result *SettlementResult
	_, err := l.withAccount(ctx, round.UserID, domain.ReasonSettlement, func(txCtx context.Context, tx Transaction, locked *domain.Account) error {
		res, err := l.settleLocked(txCtx, tx, locked, round, snap)
		result = res
		return err
	})
	if err != nil {
		return nil, err
	}

	l.observeSettlement(result)

	return result, nil
}

// PlayInput is a wager the engine decides.
type PlayInput struct {
	UserID   string
	GameType domain.GameType
	Bet      domain.Money
}

// Play evaluates a round against the locked balance and settles it atomically.
func (l *BalanceLedger) Play(ctx context.Context, input PlayInput) (*SettlementResult, error) {
	if l.engine == nil {
		return nil, errors.New("game engine not configured")
	}
	if err := domain.ValidateUserID(input.UserID); err != nil {
		return nil, err
	}
	if _, err := l.rule(input.GameType); err != nil {
		return nil, err
	}
	if err := input.Bet.Validate(); err != nil {
		return nil, err
	}

	if _, err := l.GetAccount(ctx, input.UserID); err != nil {
		return nil, err
	}

	// Warm the snapshot so nothing under the lock waits on the rate feed.
	snap := l.converter.GetRates(ctx)

	// A replayed attempt keeps the first decision unless the balance it was judged
	// against moved in between.
	var (
		result  *SettlementResult
		decided *domain.GameRound
		judged  domain.Money
	)
	_, err := l.withAccount(ctx, input.UserID, domain.ReasonSettlement, func(txCtx context.Context, tx Transaction, locked *domain.Account) error {
		balance := locked.Money()
		if decided == nil || !balance.Amount.Equal(judged.Amount) || balance.Currency != judged.Currency {
			round, err := l.engine.Evaluate(txCtx, EvaluateInput{
				UserID:   input.UserID,
				GameType: input.GameType,
				Bet:      input.Bet,
				Balance:  balance,
			})
			if err != nil {
				return err
			}
			decided, judged = round, balance
		}

		round := *decided
		res, err := l.settleLocked(txCtx, tx, locked, &round, snap)
		result = res
		return err
	})
	if err != nil {
		return nil, err
	}

	l.observeSettlement(result)

	return result, nil
}

// ListTransactions returns the user's transactions, newest first.
func (l *BalanceLedger) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	limit, offset = domain.ValidatePagination(limit, offset)

	return l.transactions.ListByUser(ctx, userID, limit, offset)
}

// ListRounds returns the user's settled rounds, newest first.
func (l *BalanceLedger) ListRounds(ctx context.Context, userID string, limit, offset int) ([]*domain.GameRound, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	limit, offset = domain.ValidatePagination(limit, offset)

	return l.rounds.ListByUser(ctx, userID, limit, offset)
}

func (l *BalanceLedger) mutate(ctx context.Context, userID string, amount domain.Money, kind domain.TransactionKind) (*MutationResult, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}

	account, err := l.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	converted, err := l.converter.Convert(ctx, amount, account.Currency)
	if err != nil {
		return nil, err
	}
	if !converted.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s is worth nothing in %s", domain.ErrAmountTooSmall, amount, account.Currency)
	}

	var record *domain.Transaction
	updated, err := l.withAccount(ctx, userID, string(kind), func(txCtx context.Context, tx Transaction, locked *domain.Account) error {
		rec, err := l.apply(txCtx, tx, locked, kind, converted.Amount, amount, "")
		record = rec
		return err
	})
	if err != nil {
		return nil, err
	}

	if l.metrics != nil {
		l.metrics.LedgerMutations.WithLabelValues(string(kind)).Inc()
	}

	return &MutationResult{Account: updated, Transaction: record}, nil
}

// withAccount runs fn under the user's lock on the row-locked account and commits.
// Once the lock is held the work is detached from ctx cancellation.
func (l *BalanceLedger) withAccount(
	ctx context.Context,
	userID, reason string,
	fn func(ctx context.Context, tx Transaction, account *domain.Account) error,
) (*domain.Account, error) {
	start := l.now()

	unlock, err := l.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTransactionTimeout)
	defer cancel()

	var committed *domain.Account
	run := func() error {
		tx, err := l.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		account, err := l.accounts.GetByUserIDForUpdate(txCtx, tx, userID)
		if err != nil {
			return err
		}

		if err := fn(txCtx, tx, account); err != nil {
			return err
		}

		if err := tx.Commit(txCtx); err != nil {
			return err
		}

		committed = account.Snapshot()
		return nil
	}

	if l.retrier != nil {
		err = l.retrier.Retry(txCtx, run)
	} else {
		err = run()
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) && l.metrics != nil {
			l.metrics.InsufficientFunds.Inc()
		}
		return nil, err
	}

	// Notify before unlocking so deltas for one user leave in commit order.
	if l.notifier != nil {
		l.notifier.OnBalanceChanged(txCtx, domain.NewBalanceDelta(committed, reason))
	}

	if l.metrics != nil {
		l.metrics.MutationDuration.WithLabelValues(reason).Observe(time.Since(start).Seconds())
	}

	return committed, nil
}

func (l *BalanceLedger) settleLocked(
	ctx context.Context,
	tx Transaction,
	account *domain.Account,
	round *domain.GameRound,
	snap *domain.ExchangeRateSnapshot,
) (*SettlementResult, error) {
	bet, err := ConvertWith(snap, round.BetAmount, account.Currency)
	if err != nil {
		return nil, err
	}
	if !bet.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s is worth nothing in %s", domain.ErrAmountTooSmall, round.BetAmount, account.Currency)
	}

	var win domain.Money
	if round.IsWin {
		win, err = ConvertWith(snap, round.WinAmount, account.Currency)
		if err != nil {
			return nil, err
		}
	}

	if round.ID == "" {
		round.ID = l.idGen.Generate()
	}
	if round.CreatedAt.IsZero() {
		round.CreatedAt = l.now().UTC()
	}

	result := &SettlementResult{Round: round}

	result.Bet, err = l.apply(ctx, tx, account, domain.TransactionKindBet, bet.Amount, round.BetAmount, round.ID)
	if err != nil {
		return nil, err
	}

	if err := l.rounds.Create(ctx, tx, round); err != nil {
		return nil, err
	}

	if round.IsWin && win.Amount.IsPositive() {
		result.Win, err = l.apply(ctx, tx, account, domain.TransactionKindWin, win.Amount, round.WinAmount, round.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := l.emit(ctx, tx, round.ID, domain.AggregateTypeRound, domain.EventTypeRoundSettled, domain.RoundSettledPayload(round), round.CreatedAt); err != nil {
		return nil, err
	}

	result.Account = account.Snapshot()

	return result, nil
}

// apply records one mutation against the locked account and updates it in place.
func (l *BalanceLedger) apply(
	ctx context.Context,
	tx Transaction,
	account *domain.Account,
	kind domain.TransactionKind,
	amount decimal.Decimal,
	original domain.Money,
	roundID string,
) (*domain.Transaction, error) {
	var newBalance decimal.Decimal
	if kind.IsDebit() {
		if err := account.ValidateDebit(amount); err != nil {
			return nil, err
		}
		newBalance = account.ApplyDebit(amount)
	} else {
		if err := account.ValidateCredit(amount); err != nil {
			return nil, err
		}
		newBalance = account.ApplyCredit(amount)
	}

	now := l.now().UTC()
	version := account.Version + 1

	record := &domain.Transaction{
		ID:             l.idGen.Generate(),
		UserID:         account.UserID,
		RoundID:        roundID,
		Kind:           kind,
		Currency:       account.Currency,
		Amount:         amount,
		OriginalAmount: original,
		BalanceAfter:   newBalance,
		Sequence:       version,
		CreatedAt:      now,
	}

	if err := l.transactions.Create(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := l.accounts.UpdateBalance(ctx, tx, account.UserID, newBalance, version, now); err != nil {
		return nil, err
	}

	if err := l.emit(ctx, tx, account.UserID, domain.AggregateTypeAccount, domain.EventTypeTransactionCreated, domain.TransactionCreatedPayload(record), now); err != nil {
		return nil, err
	}

	account.Balance = newBalance
	account.Version = version
	account.UpdatedAt = now

	return record, nil
}

func (l *BalanceLedger) emit(ctx context.Context, tx Transaction, aggregateID, aggregateType, eventType string, payload map[string]any, at time.Time) error {
	if l.outbox == nil {
		return nil
	}

	return l.outbox.Create(ctx, tx, &domain.OutboxEvent{
		ID:            l.idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
	})
}

func (l *BalanceLedger) rule(gameType domain.GameType) (domain.GameRule, error) {
	if l.engine != nil {
		return l.engine.Rule(gameType)
	}
	return domain.DefaultGameRules().Lookup(gameType)
}

func (l *BalanceLedger) observeSettlement(result *SettlementResult) {
	if l.metrics == nil {
		return
	}

	l.metrics.Settlements.WithLabelValues(settlementOutcome(result.Round)).Inc()
	l.metrics.LedgerMutations.WithLabelValues(string(domain.TransactionKindBet)).Inc()
	if result.Win != nil {
		l.metrics.LedgerMutations.WithLabelValues(string(domain.TransactionKindWin)).Inc()
	}
}

func settlementOutcome(round *domain.GameRound) string {
	switch {
	case round.Suppressed:
		return "suppressed"
	case round.IsWin:
		return "win"
	default:
		return "loss"
	}
}
