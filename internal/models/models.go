package models

// Scale is the number of fractional digits kept for USD amounts.
const Scale = 2

// PriceScale is the number of fractional digits kept for prices and
// quantities.
const PriceScale = 18

// All returns every persisted model, in migration order.
func All() []any {
	return []any{
		&Direction{},
		&Sector{},
		&Token{},
		&Position{},
		&Order{},
		&Deposit{},
	}
}
