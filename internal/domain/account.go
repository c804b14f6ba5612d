package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user's wallet. Exactly one per user, denominated in a single currency.
type Account struct {
	UserID    string
	Currency  Currency
	Balance   decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Money returns the balance tagged with the account currency.
func (a *Account) Money() Money {
	return Money{Amount: a.Balance, Currency: a.Currency}
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if a.Balance.Sub(amount).IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

// ValidateCredit checks if account can be credited by amount.
func (a *Account) ValidateCredit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

// ApplyDebit returns new balance after debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}

// Snapshot returns a copy that callers may hold without sharing state with the ledger.
func (a *Account) Snapshot() *Account {
	cp := *a
	return &cp
}
