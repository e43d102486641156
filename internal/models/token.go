package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token is a tradable asset inside a sector. BalanceUSD is the pool buys are
// paid from; BalanceEntryUSD is the slice of it reserved for a single entry.
type Token struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	SectorID        uint            `gorm:"index;not null" json:"sector_id"`
	Symbol          string          `gorm:"size:20;uniqueIndex;not null" json:"symbol"`
	Percentage      decimal.Decimal `gorm:"type:varchar(16);not null" json:"percentage"`
	BalanceUSD      decimal.Decimal `gorm:"type:varchar(64);not null" json:"balance_usd"`
	BalanceEntryUSD decimal.Decimal `gorm:"type:varchar(64);not null" json:"balance_entry_usd"`
	CurrentPriceUSD decimal.Decimal `gorm:"column:current_coinprice_usd;type:varchar(64);not null" json:"current_price_usd"`
	Sector          *Sector         `json:"-"`
	Position        *Position       `gorm:"foreignKey:TokenID" json:"position,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
