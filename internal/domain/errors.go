package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")

	// Amount errors
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionKind = errors.New("invalid transaction kind")

	// Game errors
	ErrUnknownGameType   = errors.New("unknown game type")
	ErrInvalidMultiplier = errors.New("multiplier outside the game's range")
	ErrInvalidRound      = errors.New("invalid game round")

	// Conversion errors
	ErrConversion = errors.New("currency conversion failed")
)

// ConversionError reports a currency pair that could not be priced.
type ConversionError struct {
	From   Currency
	To     Currency
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to %s: %s", e.From, e.To, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConversion).
func (e *ConversionError) Unwrap() error {
	return ErrConversion
}

// UnknownGameTypeError is returned for a game type missing from the rules table.
type UnknownGameTypeError struct {
	GameType GameType
}

func (e *UnknownGameTypeError) Error() string {
	return fmt.Sprintf("unknown game type %q", string(e.GameType))
}

// Unwrap allows errors.Is(err, ErrUnknownGameType).
func (e *UnknownGameTypeError) Unwrap() error {
	return ErrUnknownGameType
}
