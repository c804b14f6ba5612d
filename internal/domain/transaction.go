package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a balance mutation.
type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
	TransactionKindBet        TransactionKind = "bet"
	TransactionKindWin        TransactionKind = "win"
)

// IsDebit reports whether the kind decreases the balance.
func (k TransactionKind) IsDebit() bool {
	return k == TransactionKindBet || k == TransactionKindWithdrawal
}

// IsValid reports whether k is a known kind.
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindBet, TransactionKindWin:
		return true
	}
	return false
}

// Transaction is the immutable record of one balance mutation.
// Amount is always positive and in the account currency; Kind carries the sign.
type Transaction struct {
	CreatedAt      time.Time
	ID             string
	UserID         string
	RoundID        string
	Kind           TransactionKind
	Currency       Currency
	Amount         decimal.Decimal
	OriginalAmount Money
	BalanceAfter   decimal.Decimal
	Sequence       int64
}

// SignedAmount returns the amount with the sign of its effect on the balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Kind.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}
