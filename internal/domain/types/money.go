package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "BRL"

// Fixed-point scales.
const (
	centsPerUnit     = 100
	RateUnitsPerUnit = 1_000_000
	rateUnitsPerCent = RateUnitsPerUnit / centsPerUnit
)

// Money is an amount in minor units (cents) of a currency.
type Money struct {
	Amount   int64
	Currency string
}

// NewMoney returns an amount of cents in currency.
func NewMoney(cents int64, currency string) Money {
	return Money{Amount: cents, Currency: currency}
}

// MoneyFromMajor converts a decimal amount such as 10.5 to cents, rounding
// half away from zero.
func MoneyFromMajor(major float64, currency string) Money {
	return Money{Amount: int64(math.Round(major * centsPerUnit)), Currency: currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// Add returns m+o. Currencies are not converted; the receiver's wins.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}
}

// FormatMajor renders the amount with two decimals, e.g. "18.00".
func (m Money) FormatMajor() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/centsPerUnit, amount%centsPerUnit)
}

// Major returns the amount as a float in major units. Display only.
func (m Money) Major() float64 {
	return float64(m.Amount) / centsPerUnit
}

// Decimal returns the amount as a JSON number literal with two decimals.
func (m Money) Decimal() json.Number {
	return json.Number(m.FormatMajor())
}

func (m Money) String() string {
	if m.Currency == "" {
		return m.FormatMajor()
	}
	return m.FormatMajor() + " " + m.Currency
}

// Rate is an hourly price in millionths of a currency unit. The extra
// precision keeps base price times occupancy multiplier exact.
type Rate int64

// RateFromMoney lifts a cent amount into rate units.
func RateFromMoney(m Money) Rate {
	return Rate(m.Amount * rateUnitsPerCent)
}

// Money rounds the rate half-up to cents.
func (r Rate) Money(currency string) Money {
	return Money{Amount: DivRoundHalfUp(int64(r), rateUnitsPerCent), Currency: currency}
}

// DivRoundHalfUp divides n by a positive d rounding half away from zero.
func DivRoundHalfUp(n, d int64) int64 {
	if n < 0 {
		return -((-n + d/2) / d)
	}
	return (n + d/2) / d
}
