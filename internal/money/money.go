// Package money validates and formats monetary amounts. Amounts are always
// decimal.Decimal with at most two fractional digits.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for non-positive, malformed or sub-cent amounts.
var ErrInvalidAmount = errors.New("invalid amount")

var cents = decimal.NewFromInt(100)

// ParseAmount parses a positive amount such as "12.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := Validate(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Validate checks that d is positive and has no more than two decimal places.
func Validate(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, d)
	}
	if !WholeCents(d) {
		return fmt.Errorf("%w: %s has more than 2 decimal places", ErrInvalidAmount, d)
	}
	return nil
}

// WholeCents reports whether d has no more than two decimal places.
func WholeCents(d decimal.Decimal) bool {
	scaled := d.Mul(cents)
	return scaled.Equal(scaled.Floor())
}

// Format renders d with exactly two decimal places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Amount is a decimal that encodes to JSON as a string with exactly two
// decimal places, e.g. "10.50".
type Amount decimal.Decimal

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Format(decimal.Decimal(a)) + `"`), nil
}

// UnmarshalJSON accepts anything decimal.Decimal does.
func (a *Amount) UnmarshalJSON(b []byte) error {
	return (*decimal.Decimal)(a).UnmarshalJSON(b)
}
