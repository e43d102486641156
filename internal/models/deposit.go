package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Deposit records cash credited to the portfolio.
type Deposit struct {
	gorm.Model
	AmountUSD decimal.Decimal `gorm:"type:varchar(64);not null" json:"amount_usd"`
}
