// Package format renders amounts for chat messages and logs.
package format

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// USD renders amount as dollars and cents, e.g. "$1,234.56". Sub-cent
// digits are rounded half away from zero.
func USD(amount decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	cents := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(cents.IntPart(), money.USD).Display()
}

// Number renders a quantity or price with at most eight decimals and no
// trailing zeros.
func Number(v decimal.Decimal) string {
	return v.Round(8).String()
}

// Price renders a unit price in dollars without rounding to cents, so
// sub-cent tokens keep their digits, e.g. "$0.0000231".
func Price(v decimal.Decimal) string {
	return "$" + Number(v)
}

// Percent renders a percentage such as "33.33%".
func Percent(v decimal.Decimal) string {
	return v.Round(2).String() + "%"
}
