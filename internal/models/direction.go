package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is a top-level allocation bucket such as "Liquidity" or
// "Working Capital".
type Direction struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	Name       string          `gorm:"size:20;uniqueIndex;not null" json:"name"`
	Percentage decimal.Decimal `gorm:"type:varchar(16);not null" json:"percentage"`
	BalanceUSD decimal.Decimal `gorm:"type:varchar(64);not null" json:"balance_usd"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
