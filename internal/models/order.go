package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order types.
const (
	OrderBuy  = "buy"
	OrderSell = "sell"
)

// Order is an immutable record of an accepted buy or sell.
type Order struct {
	gorm.Model
	TokenID    uint            `gorm:"index;not null" json:"token_id"`
	Name       string          `gorm:"size:64" json:"name"`
	Amount     decimal.Decimal `gorm:"type:varchar(64);not null" json:"amount"`
	EntryPrice decimal.Decimal `gorm:"type:varchar(64);not null" json:"entry_price"` // zero for sells
	Type       string          `gorm:"size:4;not null" json:"type"`
}
