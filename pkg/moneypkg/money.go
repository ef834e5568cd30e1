// Package moneypkg provides non-negative fixed-point money arithmetic.
//
// Amounts are kept as exact decimals with a smallest unit of 0.01, so repeated
// fee calculations never drift the way binary floating point would.
package moneypkg

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places of the smallest currency unit.
const Scale = 2

var (
	// ErrNegativeResult indicates that an operation would produce a negative amount.
	ErrNegativeResult = errors.New("negative money result")
	// ErrInvalidMoney indicates that the value cannot represent a money amount.
	ErrInvalidMoney = errors.New("invalid money amount")
)

// Money is a non-negative amount in the single supported currency.
//
// The zero value is a valid zero amount.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// Parse converts s into Money.
//
// It rejects negative values and values finer than the smallest unit.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidMoney
	}

	return fromDecimal(d)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("moneypkg: MustParse(%q): %v", s, err))
	}

	return m
}

// FromMinorUnits returns the amount made of units smallest currency units.
func FromMinorUnits(units int64) Money {
	if units < 0 {
		panic("moneypkg: negative minor units")
	}

	return Money{d: decimal.New(units, -Scale)}
}

func fromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidMoney
	}

	if !d.Equal(d.Truncate(Scale)) {
		return Money{}, ErrInvalidMoney
	}

	return Money{d: d}, nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Sub returns m - o or ErrNegativeResult when o is greater than m.
func (m Money) Sub(o Money) (Money, error) {
	r := m.d.Sub(o.d)
	if r.IsNegative() {
		return Money{}, ErrNegativeResult
	}

	return Money{d: r}, nil
}

// Percent returns p percent of m truncated to the smallest unit.
func (m Money) Percent(p int64) Money {
	return Money{d: m.d.Mul(decimal.New(p, -2)).Truncate(Scale)}
}

// Div returns m divided by n truncated to the smallest unit. n must be positive.
func (m Money) Div(n int64) Money {
	if n <= 0 {
		panic("moneypkg: non-positive divisor")
	}

	return Money{d: m.d.Div(decimal.NewFromInt(n)).Truncate(Scale)}
}

// Cmp compares m and o and returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

// Equal reports whether m and o are the same amount.
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// LessThan reports whether m < o.
func (m Money) LessThan(o Money) bool {
	return m.d.LessThan(o.d)
}

// IsZero reports whether m is zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// IsPositive reports whether m is greater than zero.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// String formats m with exactly Scale decimals, e.g. "899.00".
func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

// MarshalJSON encodes m as a JSON string to keep precision across clients.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both JSON strings and numbers.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrInvalidMoney
	}

	parsed, err := fromDecimal(d)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// Scan implements the sql.Scanner interface for NUMERIC columns.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}

	if d.IsNegative() {
		return ErrInvalidMoney
	}

	*m = Money{d: d.Truncate(Scale)}

	return nil
}

// Value implements the driver.Valuer interface.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
