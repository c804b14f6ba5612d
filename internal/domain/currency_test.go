package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" bdt ")
	require.NoError(t, err)
	assert.Equal(t, BDT, c)

	_, err = ParseCurrency("XYZ")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestCurrencyPrecision(t *testing.T) {
	assert.Equal(t, int32(2), USD.Precision())
	assert.Equal(t, int32(2), BDT.Precision())
	assert.Equal(t, int32(8), BTC.Precision())
	assert.True(t, BTC.IsCrypto())
	assert.False(t, INR.IsCrypto())
	assert.True(t, USD.Unit().Equal(decimal.RequireFromString("0.01")))
	assert.True(t, BTC.Unit().Equal(decimal.RequireFromString("0.00000001")))
}

func TestCurrencyUnmarshalJSON(t *testing.T) {
	var body struct {
		Currency Currency `json:"currency"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"currency":"inr"}`), &body))
	assert.Equal(t, INR, body.Currency)

	err := json.Unmarshal([]byte(`{"currency":"DOGE"}`), &body)
	assert.True(t, errors.Is(err, ErrInvalidCurrency))
}

func TestMoneyRound(t *testing.T) {
	assert.Equal(t, "10.01", MustMoney("10.005", USD).Round().Amount.String())
	assert.Equal(t, "0.00000002", MustMoney("0.000000015", BTC).Round().Amount.String())
	assert.Equal(t, "12.50 BDT", MustMoney("12.5", BDT).String())
}

func TestFallbackSnapshotCoversEveryCurrency(t *testing.T) {
	snap := NewFallbackSnapshot(time.Now())

	for _, c := range Currencies() {
		rate, err := snap.Rate(c)
		require.NoError(t, err, c)
		assert.True(t, rate.IsPositive(), c)
	}
	assert.Equal(t, RateSourceFallback, snap.Source)
}

func TestSnapshotRateMissing(t *testing.T) {
	snap := &ExchangeRateSnapshot{BaseCurrency: USD, Rates: map[Currency]decimal.Decimal{USD: decimal.NewFromInt(1)}}

	_, err := snap.Rate(BDT)
	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.ErrorIs(t, err, ErrConversion)
}

func TestSnapshotAge(t *testing.T) {
	now := time.Now()
	snap := &ExchangeRateSnapshot{FetchedAt: now.Add(-6 * time.Minute)}

	assert.Equal(t, 6, snap.AgeInMinutes(now))
	assert.False(t, snap.Fresh(now, 5*time.Minute))
	assert.True(t, snap.Fresh(now, 10*time.Minute))
}

func TestParseGameRules(t *testing.T) {
	rules, err := ParseGameRules("dice:0.5:1.5:1.9, crash:0.2:1.1:50")
	require.NoError(t, err)

	dice, err := rules.Lookup(GameDice)
	require.NoError(t, err)
	assert.Equal(t, 0.5, dice.WinChance)
	assert.True(t, dice.MaxMultiplier.Equal(decimal.RequireFromString("1.9")))

	_, err = rules.Lookup("crash")
	require.NoError(t, err)

	_, err = rules.Lookup(GameSlots)
	require.NoError(t, err, "defaults kept for games not overridden")

	_, err = ParseGameRules("dice:0.5:3:2")
	assert.Error(t, err)

	_, err = ParseGameRules("dice:1.5")
	assert.Error(t, err)
}

func TestGameRulesLookupUnknown(t *testing.T) {
	_, err := DefaultGameRules().Lookup("roulette")

	var unknown *UnknownGameTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, GameType("roulette"), unknown.GameType)
	assert.ErrorIs(t, err, ErrUnknownGameType)
}

func TestGameRoundValidate(t *testing.T) {
	round := &GameRound{
		UserID:    "u1",
		GameType:  GameDice,
		BetAmount: MustMoney("10", BDT),
		IsWin:     true,
		WinAmount: MustMoney("18", USD),
	}
	assert.ErrorIs(t, round.Validate(), ErrInvalidRound)

	round.WinAmount = MustMoney("18", BDT)
	assert.NoError(t, round.Validate())
}
