package ledger

import (
	"context"
	"fmt"
	"sort"

	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Quote is the marked-to-market state of an open position after a price
// update.
type Quote struct {
	Symbol       string
	TokenID      uint
	PositionID   uint
	Amount       decimal.Decimal
	EntryPrice   decimal.Decimal
	BodyfixPrice decimal.Decimal
	Price        decimal.Decimal
	TotalUSD     decimal.Decimal
	// Revision is the ledger revision the quote was taken at. A position
	// event with a higher revision makes the quote stale.
	Revision uint64
}

// ApplyPrices stores the latest price of every known symbol and re-marks
// the open positions. Unknown symbols and non-positive prices are skipped.
// It returns one quote per open position touched, ordered by symbol.
func (l *Ledger) ApplyPrices(ctx context.Context, prices map[string]decimal.Decimal) ([]Quote, error) {
	if len(prices) == 0 {
		return nil, nil
	}

	symbols := make([]string, 0, len(prices))
	for symbol := range prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var quotes []Quote
	err := l.write(ctx, func(tx *gorm.DB) error {
		quotes = quotes[:0]
		normalized := make([]string, len(symbols))
		for i, s := range symbols {
			normalized[i] = NormalizeSymbol(s)
		}

		var tokens []models.Token
		if err := tx.Preload("Position").Where("symbol IN ?", normalized).Order("symbol asc").Find(&tokens).Error; err != nil {
			return fmt.Errorf("failed to load tokens: %w", err)
		}
		byName := make(map[string]decimal.Decimal, len(prices))
		for symbol, price := range prices {
			byName[NormalizeSymbol(symbol)] = price
		}

		for _, t := range tokens {
			price := byName[t.Symbol]
			if !price.IsPositive() {
				l.logger.Warn("Ignoring non-positive price", zap.String("symbol", t.Symbol), zap.String("price", price.String()))
				continue
			}
			if err := tx.Model(&models.Token{ID: t.ID}).Update("current_coinprice_usd", price).Error; err != nil {
				return fmt.Errorf("failed to store price of %s: %w", t.Symbol, err)
			}
			p := t.Position
			if p == nil {
				continue
			}
			p.TotalUSD = p.Amount.Mul(price).Round(models.Scale)
			if err := tx.Model(&models.Position{ID: p.ID}).Update("total_usd", p.TotalUSD).Error; err != nil {
				return fmt.Errorf("failed to mark position %s: %w", p.Name, err)
			}
			quotes = append(quotes, Quote{
				Symbol:       t.Symbol,
				TokenID:      t.ID,
				PositionID:   p.ID,
				Amount:       p.Amount,
				EntryPrice:   p.EntryPrice,
				BodyfixPrice: p.BodyfixPriceUSD,
				Price:        price,
				TotalUSD:     p.TotalUSD,
				Revision:     l.revision,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Prices applied", zap.Int("prices", len(prices)), zap.Int("positions", len(quotes)))
	return quotes, nil
}
