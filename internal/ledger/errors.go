package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies a ValidationError.
type Kind string

const (
	KindPercentageSum       Kind = "percentage_sum"
	KindPercentageOverflow  Kind = "percentage_overflow"
	KindNotFound            Kind = "not_found"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindOversell            Kind = "oversell"
	KindEmptySector         Kind = "empty_sector"
	KindDuplicate           Kind = "duplicate"
	KindInvalidAmount       Kind = "invalid_amount"
	KindInvalidName         Kind = "invalid_name"
	KindOpenPosition        Kind = "open_position"
)

// ValidationError is a business rule rejection. It carries the value that
// was found, the value that was required and what the user can do about it.
// Ledger operations that return it leave persisted state unchanged.
type ValidationError struct {
	Kind     Kind
	Subject  string
	Current  decimal.Decimal
	Required decimal.Decimal
	Remedy   string

	msg string
}

func (e *ValidationError) Error() string {
	if e.Remedy == "" {
		return e.msg
	}
	return e.msg + ": " + e.Remedy
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	_, ok := AsValidation(err)
	return ok
}

// AsValidation unwraps a ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

func errPercentageSum(level string, current decimal.Decimal) *ValidationError {
	diff := hundred.Sub(current)
	remedy := fmt.Sprintf("add %s%% to %s", diff.String(), level)
	if diff.IsNegative() {
		remedy = fmt.Sprintf("remove %s%% from %s", diff.Neg().String(), level)
	}
	return &ValidationError{
		Kind:     KindPercentageSum,
		Subject:  level,
		Current:  current,
		Required: hundred,
		Remedy:   remedy,
		msg:      fmt.Sprintf("%s percentages sum to %s%%, required 100%%", level, current.String()),
	}
}

func errPercentageOverflow(subject string, requested, available decimal.Decimal) *ValidationError {
	return &ValidationError{
		Kind:     KindPercentageOverflow,
		Subject:  subject,
		Current:  requested,
		Required: available,
		Remedy:   fmt.Sprintf("available: %s%%", available.String()),
		msg:      fmt.Sprintf("%s%% for %s would push the total over 100%%", requested.String(), subject),
	}
}

func errNotFound(entity, key string) *ValidationError {
	return &ValidationError{
		Kind:    KindNotFound,
		Subject: key,
		msg:     fmt.Sprintf("%s %q not found", entity, key),
	}
}

func errInsufficientBalance(symbol string, required, available decimal.Decimal) *ValidationError {
	return &ValidationError{
		Kind:     KindInsufficientBalance,
		Subject:  symbol,
		Current:  available,
		Required: required,
		Remedy:   fmt.Sprintf("reduce the order to at most $%s or deposit more", available.StringFixed(2)),
		msg: fmt.Sprintf("order for %s costs $%s but only $%s is available",
			symbol, required.StringFixed(2), available.StringFixed(2)),
	}
}

func errOversell(symbol string, requested, held decimal.Decimal) *ValidationError {
	return &ValidationError{
		Kind:     KindOversell,
		Subject:  symbol,
		Current:  held,
		Required: requested,
		Remedy:   fmt.Sprintf("sell at most %s", held.String()),
		msg:      fmt.Sprintf("cannot sell %s %s, position holds %s", requested.String(), symbol, held.String()),
	}
}

func errEmptySector(name string, amount decimal.Decimal) *ValidationError {
	return &ValidationError{
		Kind:    KindEmptySector,
		Subject: name,
		Current: amount,
		Remedy:  fmt.Sprintf("add tokens to %s or set its percentage to 0", name),
		msg:     fmt.Sprintf("%s has no tokens to receive $%s", name, amount.StringFixed(2)),
	}
}

func errDuplicate(entity, name string) *ValidationError {
	return &ValidationError{
		Kind:    KindDuplicate,
		Subject: name,
		msg:     fmt.Sprintf("%s %q already exists", entity, name),
	}
}

func errInvalidAmount(what string, value decimal.Decimal, reason string) *ValidationError {
	return &ValidationError{
		Kind:    KindInvalidAmount,
		Subject: what,
		Current: value,
		msg:     fmt.Sprintf("invalid %s %s: %s", what, value.String(), reason),
	}
}

func errOpenPosition(symbol string) *ValidationError {
	return &ValidationError{
		Kind:    KindOpenPosition,
		Subject: symbol,
		Remedy:  fmt.Sprintf("sell the %s position first", symbol),
		msg:     fmt.Sprintf("%s has an open position", symbol),
	}
}

func errInvalidName(entity, name string) *ValidationError {
	return &ValidationError{
		Kind:    KindInvalidName,
		Subject: name,
		msg:     fmt.Sprintf("invalid %s name %q", entity, name),
	}
}
