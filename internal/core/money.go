// Package core provides money parsing and handling utilities.
//
// Amounts are arbitrary precision decimals so that category and month
// totals never drift the way float sums do.
package core

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is a non-currency-aware decimal amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// maxAmountDigits bounds the integer part of an amount.
const maxAmountDigits = 15

// MoneyFromInt builds an integral amount, mostly useful in tests.
func MoneyFromInt(v int64) Money {
	return Money{d: decimal.NewFromInt(v)}
}

// ParseAmount converts user input into a non-negative amount rounded to two
// decimal places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Signs, blanks, exponents, more than 15 integer digits and anything that
// is not a plain decimal number are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil (half-up)
//	ParseAmount("0") -> 0, nil
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	if s == "." {
		return Money{}, ErrInvalidAmount
	}
	if whole, _, _ := strings.Cut(s, "."); len(whole) > maxAmountDigits {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{d: d.Round(2)}, nil
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Equal compares by value, so 1.50 equals 1.5.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Float64 returns an approximation for ratios and display.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String renders the shortest exact representation, e.g. "50000" or "12.5".
func (m Money) String() string { return m.d.String() }

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string under the
// ParseAmount rules. A leading minus is kept so stored deficits round-trip
// and callers can report negative input themselves.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		m.d = decimal.Zero
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	neg := strings.HasPrefix(s, "-")
	v, err := ParseAmount(strings.TrimPrefix(s, "-"))
	if err != nil {
		return err
	}
	if neg {
		v.d = v.d.Neg()
	}
	*m = v
	return nil
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	total := Money{}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
