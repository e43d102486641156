package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sector is a thematic share of the investable direction. It owns its tokens.
type Sector struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	Name       string          `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Percentage decimal.Decimal `gorm:"type:varchar(16);not null" json:"percentage"`
	BalanceUSD decimal.Decimal `gorm:"type:varchar(64);not null" json:"balance_usd"`
	Tokens     []Token         `gorm:"foreignKey:SectorID" json:"tokens,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
