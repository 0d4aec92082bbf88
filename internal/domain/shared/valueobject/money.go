package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

// USD is the only currency invoices are issued in
const USD Currency = "USD"

// CentPlaces is the number of minor-unit digits every stored amount is rounded to
const CentPlaces int32 = 2

// Money is an immutable USD amount rounded to cents
type Money struct {
	amount decimal.Decimal
}

// NewMoneyUSD creates Money in USD
func NewMoneyUSD(amount decimal.Decimal) Money {
	return Money{amount: RoundCents(amount)}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Cents returns the amount in integer minor units
func (m Money) Cents() int64 {
	return m.amount.Shift(CentPlaces).Round(0).IntPart()
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(CentPlaces), USD)
}

// Format renders the amount as "$1,234.56" (negative values as "-$1,234.56")
func (m Money) Format() string {
	return FormatUSD(m.amount)
}

// FormatUSD formats a decimal value as US currency with thousand separators.
// Example: 1234.5 -> "$1,234.50"
func FormatUSD(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	parts := strings.Split(d.StringFixed(CentPlaces), ".")
	intPart := parts[0]
	decPart := "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	return sign + "$" + result.String() + "." + decPart
}

// RoundCents rounds a raw decimal to cents
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// MinDecimal returns the smallest of the given values
func MinDecimal(first decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	return decimal.Min(first, rest...)
}
