package ledger

import (
	"context"
	"fmt"

	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Summary is the portfolio at a glance. TotalUSD counts cash at every
// level plus the cost basis of open positions; MarketValueUSD marks the
// positions at their last known price instead.
type Summary struct {
	DepositedUSD   decimal.Decimal `json:"deposited_usd"`
	LiquidityUSD   decimal.Decimal `json:"liquidity_usd"`
	CashUSD        decimal.Decimal `json:"cash_usd"`
	TokensUSD      decimal.Decimal `json:"tokens_usd"`
	InvestedUSD    decimal.Decimal `json:"invested_usd"`
	MarketValueUSD decimal.Decimal `json:"market_value_usd"`
	UnrealizedUSD  decimal.Decimal `json:"unrealized_usd"`
	TotalUSD       decimal.Decimal `json:"total_usd"`
	Positions      int             `json:"positions"`
}

// Summary computes the portfolio totals.
func (l *Ledger) Summary(ctx context.Context) (*Summary, error) {
	db := l.db.WithContext(ctx)
	s := &Summary{}

	var deposits []decimal.Decimal
	if err := db.Model(&models.Deposit{}).Pluck("amount_usd", &deposits).Error; err != nil {
		return nil, fmt.Errorf("failed to load deposits: %w", err)
	}
	s.DepositedUSD = Sum(deposits)

	directions, err := l.Directions(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range directions {
		s.CashUSD = s.CashUSD.Add(d.BalanceUSD)
		if d.Name == l.opts.LiquidityDirection {
			s.LiquidityUSD = d.BalanceUSD
		}
	}

	var sectorBalances, tokenBalances []decimal.Decimal
	if err := db.Model(&models.Sector{}).Pluck("balance_usd", &sectorBalances).Error; err != nil {
		return nil, fmt.Errorf("failed to load sector balances: %w", err)
	}
	if err := db.Model(&models.Token{}).Pluck("balance_usd", &tokenBalances).Error; err != nil {
		return nil, fmt.Errorf("failed to load token balances: %w", err)
	}
	s.TokensUSD = Sum(tokenBalances)
	s.CashUSD = s.CashUSD.Add(Sum(sectorBalances)).Add(s.TokensUSD)

	positions, err := l.Positions(ctx)
	if err != nil {
		return nil, err
	}
	s.Positions = len(positions)
	for _, p := range positions {
		s.InvestedUSD = s.InvestedUSD.Add(p.InvestedUSD)
		s.MarketValueUSD = s.MarketValueUSD.Add(p.TotalUSD)
	}
	s.UnrealizedUSD = s.MarketValueUSD.Sub(s.InvestedUSD)
	s.TotalUSD = s.CashUSD.Add(s.InvestedUSD)
	return s, nil
}

// Directions lists the directions ordered by id.
func (l *Ledger) Directions(ctx context.Context) ([]models.Direction, error) {
	var directions []models.Direction
	if err := l.db.WithContext(ctx).Order("id asc").Find(&directions).Error; err != nil {
		return nil, fmt.Errorf("failed to load directions: %w", err)
	}
	return directions, nil
}

// Sectors lists the sectors with their tokens, ordered by id.
func (l *Ledger) Sectors(ctx context.Context) ([]models.Sector, error) {
	var tree Tree
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tree, err = loadTree(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tree.Sectors, nil
}

// Sector loads one sector with its tokens.
func (l *Ledger) Sector(ctx context.Context, id uint) (*models.Sector, error) {
	return l.Repository().SectorByID(ctx, id)
}

// Positions lists the open positions ordered by name.
func (l *Ledger) Positions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	if err := l.db.WithContext(ctx).Preload("Token").Order("name asc").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	return positions, nil
}

// Position loads one open position.
func (l *Ledger) Position(ctx context.Context, id uint) (*models.Position, error) {
	return l.Repository().PositionByID(ctx, id)
}

// Orders lists the most recent orders first. A non-positive limit returns
// all of them.
func (l *Ledger) Orders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	q := l.db.WithContext(ctx).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	return orders, nil
}

// TrackedSymbols returns the symbols of tokens with an open position.
func (l *Ledger) TrackedSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := l.db.WithContext(ctx).Model(&models.Position{}).Order("name asc").Pluck("name", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked symbols: %w", err)
	}
	return symbols, nil
}
