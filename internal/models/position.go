package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the open holding of a single token.
type Position struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	Name            string          `gorm:"size:20;uniqueIndex;not null" json:"name"`
	TokenID         uint            `gorm:"uniqueIndex;not null" json:"token_id"`
	Amount          decimal.Decimal `gorm:"type:varchar(64);not null" json:"amount"`
	EntryPrice      decimal.Decimal `gorm:"type:varchar(64);not null" json:"entry_price"`
	InvestedUSD     decimal.Decimal `gorm:"type:varchar(64);not null" json:"invested_usd"`
	BodyfixPriceUSD decimal.Decimal `gorm:"type:varchar(64);not null" json:"bodyfix_price_usd"`
	TotalUSD        decimal.Decimal `gorm:"type:varchar(64);not null" json:"total_usd"`
	Token           *Token          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
