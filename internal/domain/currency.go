package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-like currency code from the closed set the platform settles in.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	BDT Currency = "BDT"
	INR Currency = "INR"
	PKR Currency = "PKR"
	NPR Currency = "NPR"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	JPY Currency = "JPY"

	BTC  Currency = "BTC"
	ETH  Currency = "ETH"
	LTC  Currency = "LTC"
	USDT Currency = "USDT"
)

// BaseCurrency is the pivot every exchange rate is quoted against.
const BaseCurrency = USD

const (
	FiatPrecision   int32 = 2
	CryptoPrecision int32 = 8
)

var currencyPrecision = map[Currency]int32{
	USD: FiatPrecision,
	EUR: FiatPrecision,
	GBP: FiatPrecision,
	BDT: FiatPrecision,
	INR: FiatPrecision,
	PKR: FiatPrecision,
	NPR: FiatPrecision,
	CAD: FiatPrecision,
	AUD: FiatPrecision,
	JPY: FiatPrecision,

	BTC:  CryptoPrecision,
	ETH:  CryptoPrecision,
	LTC:  CryptoPrecision,
	USDT: CryptoPrecision,
}

// Currencies returns every supported currency.
func Currencies() []Currency {
	return []Currency{USD, EUR, GBP, BDT, INR, PKR, NPR, CAD, AUD, JPY, BTC, ETH, LTC, USDT}
}

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}

	return c, nil
}

// IsValid reports whether c belongs to the supported set.
func (c Currency) IsValid() bool {
	_, ok := currencyPrecision[c]
	return ok
}

// IsCrypto reports whether c settles with crypto precision.
func (c Currency) IsCrypto() bool {
	return currencyPrecision[c] == CryptoPrecision
}

// Precision returns the number of decimal places amounts in c are kept at.
// Unknown currencies fall back to fiat precision.
func (c Currency) Precision() int32 {
	if p, ok := currencyPrecision[c]; ok {
		return p
	}
	return FiatPrecision
}

// Unit is the smallest representable amount of c (0.01 for fiat).
func (c Currency) Unit() decimal.Decimal {
	return decimal.New(1, -c.Precision())
}

func (c Currency) String() string {
	return string(c)
}

// UnmarshalText lets currencies be decoded from JSON and env values with validation.
func (c *Currency) UnmarshalText(text []byte) error {
	parsed, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
