package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
)

// DefaultHouseEdgeCeiling is the balance, in DefaultHouseEdgeCurrency, at or above
// which rounds are forced to lose.
var DefaultHouseEdgeCeiling = decimal.NewFromInt(150)

// DefaultHouseEdgeCurrency is the currency balances are normalised to before the
// ceiling comparison.
const DefaultHouseEdgeCurrency = domain.BDT

// multiplierPrecision is the number of decimal places multipliers are drawn at.
const multiplierPrecision = 2

// Converter is the part of CurrencyConverter the engine needs.
type Converter interface {
	Convert(ctx context.Context, amount domain.Money, to domain.Currency) (domain.Money, error)
}

// EngineConfig configures GameOutcomeEngine.
type EngineConfig struct {
	Converter       Converter
	Rules           domain.GameRules
	Random          Random
	IDGen           IDGenerator
	// Ceiling defaults to DefaultHouseEdgeCeiling when nil. Zero suppresses every win.
	Ceiling         *decimal.Decimal
	CeilingCurrency domain.Currency
	Clock           func() time.Time
}

// GameOutcomeEngine decides wins, multipliers and payouts. It holds no mutable state.
type GameOutcomeEngine struct {
	converter       Converter
	rules           domain.GameRules
	random          Random
	idGen           IDGenerator
	ceiling         decimal.Decimal
	ceilingCurrency domain.Currency
	now             func() time.Time
}

// NewGameOutcomeEngine creates a new GameOutcomeEngine.
func NewGameOutcomeEngine(cfg EngineConfig) *GameOutcomeEngine {
	if cfg.Rules == nil {
		cfg.Rules = domain.DefaultGameRules()
	}
	if cfg.Random == nil {
		cfg.Random = mathRandom{}
	}
	ceiling := DefaultHouseEdgeCeiling
	if cfg.Ceiling != nil {
		ceiling = *cfg.Ceiling
	}
	if cfg.CeilingCurrency == "" {
		cfg.CeilingCurrency = DefaultHouseEdgeCurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &GameOutcomeEngine{
		converter:       cfg.Converter,
		rules:           cfg.Rules,
		random:          cfg.Random,
		idGen:           cfg.IDGen,
		ceiling:         ceiling,
		ceilingCurrency: cfg.CeilingCurrency,
		now:             cfg.Clock,
	}
}

// EvaluateInput is the bet context a round is decided from.
type EvaluateInput struct {
	UserID   string
	GameType domain.GameType
	Bet      domain.Money
	// Balance is the player's balance before the bet, in the account currency.
	Balance domain.Money
}

// Evaluate decides the outcome of one round. The returned round is not persisted;
// the caller settles it atomically with the balance mutation.
func (e *GameOutcomeEngine) Evaluate(ctx context.Context, input EvaluateInput) (*domain.GameRound, error) {
	rule, err := e.rules.Lookup(input.GameType)
	if err != nil {
		return nil, err
	}

	if err := input.Bet.Validate(); err != nil {
		return nil, err
	}

	suppressed, err := e.AboveCeiling(ctx, input.Balance)
	if err != nil {
		return nil, err
	}

	round := &domain.GameRound{
		UserID:     input.UserID,
		GameType:   input.GameType,
		BetAmount:  input.Bet,
		WinAmount:  domain.Money{Amount: decimal.Zero, Currency: input.Bet.Currency},
		Multiplier: decimal.Zero,
		Suppressed: suppressed,
		CreatedAt:  e.now().UTC(),
	}
	if e.idGen != nil {
		round.ID = e.idGen.Generate()
	}

	if suppressed || e.random.Float64() >= rule.WinChance {
		return round, nil
	}

	multiplier := e.drawMultiplier(rule)

	round.IsWin = true
	round.Multiplier = multiplier
	round.WinAmount = domain.Money{Amount: input.Bet.Amount.Mul(multiplier), Currency: input.Bet.Currency}.Round()

	return round, nil
}

// AboveCeiling reports whether balance, normalised to the ceiling currency, is at or
// above the house-edge ceiling. The boundary counts as above.
func (e *GameOutcomeEngine) AboveCeiling(ctx context.Context, balance domain.Money) (bool, error) {
	normalised, err := e.converter.Convert(ctx, balance, e.ceilingCurrency)
	if err != nil {
		return false, fmt.Errorf("normalise balance: %w", err)
	}

	return normalised.Amount.GreaterThanOrEqual(e.ceiling), nil
}

// Rule returns the payout profile for a game.
func (e *GameOutcomeEngine) Rule(gameType domain.GameType) (domain.GameRule, error) {
	return e.rules.Lookup(gameType)
}

// Rules returns the configured payout table.
func (e *GameOutcomeEngine) Rules() domain.GameRules {
	return e.rules
}

func (e *GameOutcomeEngine) drawMultiplier(rule domain.GameRule) decimal.Decimal {
	span := rule.MaxMultiplier.Sub(rule.MinMultiplier)
	u := decimal.NewFromFloat(e.random.Float64())

	m := rule.MinMultiplier.Add(span.Mul(u)).Round(multiplierPrecision)
	if m.GreaterThan(rule.MaxMultiplier) {
		m = rule.MaxMultiplier
	}

	return m
}

// mathRandom draws from the runtime's auto-seeded ChaCha8 source, which is safe for
// concurrent use.
type mathRandom struct{}

func (mathRandom) Float64() float64 {
	return rand.Float64()
}
