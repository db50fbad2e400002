// Package money provides an exact, non-negative monetary amount with
// 1e-18 resolution (one "wei" of the display unit).
//
// All arithmetic is exact decimal arithmetic; floating point is never
// involved. Amounts round-trip through decimal strings without loss, and
// repeated additions cannot accumulate drift.
package money

import (
	"math/big"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MaxFractionalDigits is the number of decimal places one display unit is
// divisible into. One smallest unit is 10^-18 of the display unit.
const MaxFractionalDigits = 18

var (
	// ErrNegativeAmount is returned when constructing an amount from a
	// negative value.
	ErrNegativeAmount = errors.New("money amount cannot be negative")
	// ErrNegativeResult is returned when a subtraction would produce a
	// negative amount.
	ErrNegativeResult = errors.New("subtraction would result in negative amount")
	// ErrNegativeFactor is returned when multiplying by a negative factor.
	ErrNegativeFactor = errors.New("multiplication factor cannot be negative")
	// ErrTooManyDecimals is returned when a decimal string carries more
	// than MaxFractionalDigits fractional digits.
	ErrTooManyDecimals = errors.New("too many decimal places (max 18)")
)

var smallestUnitExp = decimal.New(1, MaxFractionalDigits) // 10^18

// Money is an immutable non-negative amount. The zero value is zero money.
type Money struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// FromSmallestUnit builds an amount from an integer count of smallest units.
func FromSmallestUnit(units *big.Int) (Money, error) {
	if units.Sign() < 0 {
		return Money{}, ErrNegativeAmount
	}
	return Money{d: decimal.NewFromBigInt(units, -MaxFractionalDigits)}, nil
}

// FromDecimal builds an amount from a decimal value. The value must be
// non-negative and must not require more than MaxFractionalDigits fractional
// digits.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	if d.Exponent() < -MaxFractionalDigits {
		// The representation carries sub-wei digits; accept it only when
		// they are insignificant zeros.
		truncated := d.Truncate(MaxFractionalDigits)
		if !truncated.Equal(d) {
			return Money{}, ErrTooManyDecimals
		}
		d = truncated
	}
	return Money{d: d}, nil
}

// FromDecimalString parses a decimal string such as "75", "0.1" or
// "1.000000000000000001". Strings with more than 18 fractional digits are
// rejected, even when the excess digits are zeros.
func FromDecimalString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errors.Wrap(err, "parse amount")
	}
	if d.Exponent() < -MaxFractionalDigits {
		return Money{}, ErrTooManyDecimals
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{d: d}, nil
}

// MustFromDecimalString is FromDecimalString that panics on error.
// Intended for constants and tests.
func MustFromDecimalString(s string) Money {
	m, err := FromDecimalString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ToSmallestUnit returns the amount as an integer count of smallest units.
func (m Money) ToSmallestUnit() *big.Int {
	return m.d.Mul(smallestUnitExp).BigInt()
}

// String renders the amount as an exact decimal string with insignificant
// trailing zeros removed. The integer part is always present ("0.5", "75").
func (m Money) String() string {
	return m.d.String()
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other, or ErrNegativeResult when other exceeds m.
func (m Money) Sub(other Money) (Money, error) {
	r := m.d.Sub(other.d)
	if r.IsNegative() {
		return Money{}, ErrNegativeResult
	}
	return Money{d: r}, nil
}

// MulInt returns m multiplied by a non-negative integer factor.
func (m Money) MulInt(factor int) (Money, error) {
	if factor < 0 {
		return Money{}, ErrNegativeFactor
	}
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(factor)))}, nil
}

// Equal reports whether two amounts represent the same value.
func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.d.LessThan(other.d)
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.d.GreaterThan(other.d)
}
