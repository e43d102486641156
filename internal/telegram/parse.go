package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidNumber is returned for input that is not a usable number.
var ErrInvalidNumber = errors.New("invalid number")

var hundred = decimal.NewFromInt(100)

// parseDecimal accepts "1234.5", "1 234,5" and "$1,234.50". A single comma
// with no dot is read as the decimal separator.
func parseDecimal(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, " ", "")
	switch {
	case strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty input", ErrInvalidNumber)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return v, nil
}

// ParseAmount parses a positive USD amount. Fractions of a cent are
// truncated.
func ParseAmount(s string) (decimal.Decimal, error) {
	v, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	v = v.Truncate(2)
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be at least $0.01", ErrInvalidNumber)
	}
	return v, nil
}

// ParsePercentage parses a percentage between 0 and 100 with at most two
// decimals.
func ParsePercentage(s string) (decimal.Decimal, error) {
	v, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if v.IsNegative() || v.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidNumber)
	}
	if !v.Equal(v.Truncate(2)) {
		return decimal.Zero, fmt.Errorf("%w: percentage takes at most two decimals", ErrInvalidNumber)
	}
	return v, nil
}

// ParseQuantity parses a positive quantity or price.
func ParseQuantity(s string) (decimal.Decimal, error) {
	v, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidNumber)
	}
	return v, nil
}

// ParseID parses a row id.
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q is not an id", ErrInvalidNumber, s)
	}
	return uint(id), nil
}
