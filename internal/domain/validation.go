package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrAmountTooLarge  = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall  = errors.New("amount below minimum allowed")
	ErrAmountPrecision = errors.New("amount has too many decimal places")
)

// Validation constants
const (
	MaxUserIDLength = 128
	MaxAmount       = "1000000000" // 1 billion
	MaxPageSize     = 100
	DefaultPageSize = 20
)

var maxAmount = decimal.RequireFromString(MaxAmount)

// ValidateUserID validates a user id resolved upstream.
func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)

	if userID == "" {
		return fmt.Errorf("%w: user id cannot be empty", ErrInvalidUserID)
	}

	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("%w: user id exceeds %d characters", ErrInvalidUserID, MaxUserIDLength)
	}

	return nil
}

// ValidateAmount validates an amount against the precision of its currency.
func ValidateAmount(amount decimal.Decimal, currency Currency) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if !amount.Equal(amount.Round(currency.Precision())) {
		return fmt.Errorf("%w: %s allows %d", ErrAmountPrecision, currency, currency.Precision())
	}

	if amount.LessThan(currency.Unit()) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, currency.Unit())
	}

	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
