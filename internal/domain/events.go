package domain

import "time"

// Event types
const (
	EventTypeTransactionCreated = "transaction.created"
	EventTypeRoundSettled       = "round.settled"
	EventTypeAccountOpened      = "account.opened"
)

// Aggregate types
const (
	AggregateTypeAccount = "account"
	AggregateTypeRound   = "round"
)

// Balance change reasons carried by BalanceDelta.
const (
	ReasonDeposit    = "deposit"
	ReasonWithdrawal = "withdrawal"
	ReasonBet        = "bet"
	ReasonWin        = "win"
	ReasonSettlement = "settlement"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// BalanceDelta is broadcast after each committed mutation. It is never persisted.
type BalanceDelta struct {
	UserID     string
	NewBalance Money
	Reason     string
}

// NewBalanceDelta builds a delta from the committed account state.
func NewBalanceDelta(account *Account, reason string) BalanceDelta {
	return BalanceDelta{
		UserID:     account.UserID,
		NewBalance: account.Money(),
		Reason:     reason,
	}
}

// TransactionCreatedPayload describes a committed transaction.
func TransactionCreatedPayload(tx *Transaction) map[string]any {
	return map[string]any{
		"transaction_id":  tx.ID,
		"user_id":         tx.UserID,
		"kind":            string(tx.Kind),
		"amount":          tx.Amount.String(),
		"currency":        string(tx.Currency),
		"original_amount": tx.OriginalAmount.Amount.String(),
		"original_ccy":    string(tx.OriginalAmount.Currency),
		"balance_after":   tx.BalanceAfter.String(),
		"sequence":        tx.Sequence,
		"round_id":        tx.RoundID,
	}
}

// RoundSettledPayload describes a settled round for downstream consumers.
func RoundSettledPayload(round *GameRound) map[string]any {
	return map[string]any{
		"round_id":   round.ID,
		"user_id":    round.UserID,
		"game_type":  string(round.GameType),
		"bet_amount": round.BetAmount.Amount.String(),
		"win_amount": round.WinAmount.Amount.String(),
		"currency":   string(round.BetAmount.Currency),
		"multiplier": round.Multiplier.String(),
		"is_win":     round.IsWin,
		"suppressed": round.Suppressed,
	}
}

// AccountOpenedPayload describes a newly opened account.
func AccountOpenedPayload(account *Account) map[string]any {
	return map[string]any{
		"user_id":  account.UserID,
		"currency": string(account.Currency),
	}
}
