package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GameType names a game offered by the platform.
type GameType string

const (
	GameSlots  GameType = "slots"
	GameDice   GameType = "dice"
	GamePlinko GameType = "plinko"
	GameMines  GameType = "mines"
)

// GameRule is the payout profile of a single game.
type GameRule struct {
	WinChance     float64
	MinMultiplier decimal.Decimal
	MaxMultiplier decimal.Decimal
}

// Validate checks the rule is internally consistent.
func (r GameRule) Validate() error {
	if r.WinChance < 0 || r.WinChance > 1 {
		return fmt.Errorf("win chance %v outside [0,1]", r.WinChance)
	}
	if r.MinMultiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("min multiplier %s below 1", r.MinMultiplier)
	}
	if r.MaxMultiplier.LessThan(r.MinMultiplier) {
		return fmt.Errorf("max multiplier %s below min %s", r.MaxMultiplier, r.MinMultiplier)
	}
	return nil
}

// AllowsMultiplier reports whether m lies inside [MinMultiplier, MaxMultiplier].
func (r GameRule) AllowsMultiplier(m decimal.Decimal) bool {
	return m.GreaterThanOrEqual(r.MinMultiplier) && m.LessThanOrEqual(r.MaxMultiplier)
}

// GameRules maps each game to its payout profile.
type GameRules map[GameType]GameRule

// DefaultGameRules returns the built-in payout table.
func DefaultGameRules() GameRules {
	return GameRules{
		GameSlots:  {WinChance: 0.30, MinMultiplier: decimal.RequireFromString("1.2"), MaxMultiplier: decimal.RequireFromString("10")},
		GameDice:   {WinChance: 0.45, MinMultiplier: decimal.RequireFromString("1.5"), MaxMultiplier: decimal.RequireFromString("2")},
		GamePlinko: {WinChance: 0.40, MinMultiplier: decimal.RequireFromString("1.1"), MaxMultiplier: decimal.RequireFromString("5")},
		GameMines:  {WinChance: 0.35, MinMultiplier: decimal.RequireFromString("1.2"), MaxMultiplier: decimal.RequireFromString("3")},
	}
}

// Lookup returns the rule for a game or an UnknownGameTypeError.
func (g GameRules) Lookup(gameType GameType) (GameRule, error) {
	rule, ok := g[gameType]
	if !ok {
		return GameRule{}, &UnknownGameTypeError{GameType: gameType}
	}
	return rule, nil
}

// ParseGameRules parses "game:chance:min:max" entries separated by commas.
// Entries override the defaults; games not mentioned keep their default rule.
func ParseGameRules(s string) (GameRules, error) {
	rules := DefaultGameRules()
	s = strings.TrimSpace(s)
	if s == "" {
		return rules, nil
	}

	for _, entry := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("game rule %q: expected game:chance:min:max", entry)
		}

		chance, err := decimal.NewFromString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("game rule %q: win chance: %w", entry, err)
		}
		minMul, err := decimal.NewFromString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("game rule %q: min multiplier: %w", entry, err)
		}
		maxMul, err := decimal.NewFromString(parts[3])
		if err != nil {
			return nil, fmt.Errorf("game rule %q: max multiplier: %w", entry, err)
		}

		rule := GameRule{
			WinChance:     chance.InexactFloat64(),
			MinMultiplier: minMul,
			MaxMultiplier: maxMul,
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("game rule %q: %w", entry, err)
		}

		rules[GameType(strings.ToLower(strings.TrimSpace(parts[0])))] = rule
	}

	return rules, nil
}

// Games returns the configured game types in stable order.
func (g GameRules) Games() []GameType {
	games := make([]GameType, 0, len(g))
	for gt := range g {
		games = append(games, gt)
	}
	sort.Slice(games, func(i, j int) bool { return games[i] < games[j] })
	return games
}

// GameRound is the outcome of a single wager.
type GameRound struct {
	CreatedAt  time.Time
	ID         string
	UserID     string
	GameType   GameType
	BetAmount  Money
	WinAmount  Money
	Multiplier decimal.Decimal
	IsWin      bool
	// Suppressed is set when the house-edge ceiling forced the loss.
	Suppressed bool
}

// Validate checks that a round is self-consistent before it is settled.
func (r *GameRound) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidRound)
	}
	if err := r.BetAmount.Validate(); err != nil {
		return err
	}
	if !r.IsWin {
		return nil
	}
	if r.WinAmount.Currency != r.BetAmount.Currency {
		return fmt.Errorf("%w: win currency %s differs from bet currency %s", ErrInvalidRound, r.WinAmount.Currency, r.BetAmount.Currency)
	}
	return r.WinAmount.Validate()
}
