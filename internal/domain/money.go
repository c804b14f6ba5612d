package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount tagged with its currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// NewMoney builds Money from a decimal amount.
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// MustMoney parses amount and panics on malformed input. Intended for constants and tests.
func MustMoney(amount string, currency Currency) Money {
	return Money{Amount: decimal.RequireFromString(amount), Currency: currency}
}

// Round returns m rounded half away from zero to its currency precision.
func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(m.Currency.Precision()), Currency: m.Currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Validate checks that the currency is supported and the amount is a positive
// value representable at the currency precision.
func (m Money) Validate() error {
	if !m.Currency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, m.Currency)
	}

	return ValidateAmount(m.Amount, m.Currency)
}

func (m Money) String() string {
	return m.Amount.StringFixed(m.Currency.Precision()) + " " + string(m.Currency)
}
