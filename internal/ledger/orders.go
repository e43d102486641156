package ledger

import (
	"context"
	"fmt"

	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var two = decimal.NewFromInt(2)

// BuyResult reports an accepted buy order.
type BuyResult struct {
	Order    models.Order
	Position models.Position
	// Opened is true when the order created the position.
	Opened bool
	// TokenFunded and LiquidityFunded split the cost between the token's
	// balance and the liquidity direction.
	TokenFunded     decimal.Decimal
	LiquidityFunded decimal.Decimal
}

// SellResult reports an accepted sell order.
type SellResult struct {
	Order models.Order
	// Position is nil when the sell closed it.
	Position *models.Position
	Closed   bool
	// CostReleased is the cost basis removed from the position.
	CostReleased decimal.Decimal
}

func checkOrderAmount(what string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return errInvalidAmount(what, v, "must be positive")
	}
	return nil
}

// Buy records the purchase of amount units of symbol at price. The cost,
// rounded to cents, must fit in the token's buy capacity. The average entry
// price is computed from the unrounded cost.
func (l *Ledger) Buy(ctx context.Context, symbol string, amount, price decimal.Decimal) (*BuyResult, error) {
	if err := checkOrderAmount("amount", amount); err != nil {
		return nil, err
	}
	if err := checkOrderAmount("price", price); err != nil {
		return nil, err
	}

	var result BuyResult
	err := l.write(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		token, err := repo.TokenBySymbol(ctx, symbol)
		if err != nil {
			return err
		}

		exact := amount.Mul(price)
		cost := exact.Round(models.Scale)

		tokenFunded, liquidityFunded, err := l.fund(ctx, repo, token, cost)
		if err != nil {
			return err
		}

		token.BalanceUSD = token.BalanceUSD.Sub(tokenFunded)
		token.BalanceEntryUSD = l.entryBalance(token.BalanceUSD)
		err = tx.Model(&models.Token{ID: token.ID}).Updates(map[string]any{
			"balance_usd":       token.BalanceUSD,
			"balance_entry_usd": token.BalanceEntryUSD,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to debit token %s: %w", token.Symbol, err)
		}
		if liquidityFunded.IsPositive() {
			if err := l.debitLiquidity(ctx, tx, liquidityFunded); err != nil {
				return err
			}
		}

		order, err := createOrder(tx, token, models.OrderBuy, amount, price)
		if err != nil {
			return err
		}

		position := token.Position
		opened := position == nil
		if opened {
			position = &models.Position{
				Name:            token.Symbol,
				TokenID:         token.ID,
				Amount:          amount,
				EntryPrice:      price,
				InvestedUSD:     cost,
				BodyfixPriceUSD: price.Mul(two),
			}
		} else {
			held := position.Amount.Mul(position.EntryPrice)
			position.Amount = position.Amount.Add(amount)
			position.InvestedUSD = position.InvestedUSD.Add(exact).Round(models.Scale)
			position.EntryPrice = held.Add(exact).DivRound(position.Amount, models.PriceScale)
			position.BodyfixPriceUSD = position.EntryPrice.Mul(two)
		}
		position.TotalUSD = position.Amount.Mul(price).Round(models.Scale)
		if err := tx.Omit(clause.Associations).Save(position).Error; err != nil {
			return fmt.Errorf("failed to save position %s: %w", token.Symbol, err)
		}

		result = BuyResult{
			Order:           *order,
			Position:        *position,
			Opened:          opened,
			TokenFunded:     tokenFunded,
			LiquidityFunded: liquidityFunded,
		}
		return nil
	}, func() {
		kind := PositionAveraged
		if result.Opened {
			kind = PositionOpened
		}
		l.emit(positionEvent(kind, result.Position, l.revision))
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Buy order recorded",
		zap.String("order", result.Order.Name),
		zap.String("amount", amount.String()),
		zap.String("price", price.String()),
		zap.String("entry_price", result.Position.EntryPrice.String()),
		zap.String("liquidity_used_usd", result.LiquidityFunded.StringFixed(models.Scale)),
	)
	return &result, nil
}

// fund decides how much of cost is paid by the token and how much by the
// liquidity direction, rejecting the order when capacity is short.
func (l *Ledger) fund(ctx context.Context, repo *Repository, token *models.Token, cost decimal.Decimal) (fromToken, fromLiquidity decimal.Decimal, err error) {
	if l.opts.BuyCapacity != BlendedCapacity {
		if cost.GreaterThan(token.BalanceUSD) {
			return decimal.Zero, decimal.Zero, errInsufficientBalance(token.Symbol, cost, token.BalanceUSD)
		}
		return cost, decimal.Zero, nil
	}

	capacity := token.BalanceEntryUSD
	if token.Position != nil || token.BalanceEntryUSD.LessThan(l.opts.MinEntryBalance) {
		liquidity, err := repo.DirectionByName(ctx, l.opts.LiquidityDirection)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		reserve := liquidity.BalanceUSD.Mul(l.opts.ReserveFraction).Round(models.Scale)
		capacity = capacity.Add(decimal.Max(reserve, decimal.Zero))
	}
	if cost.GreaterThan(capacity) {
		return decimal.Zero, decimal.Zero, errInsufficientBalance(token.Symbol, cost, capacity)
	}

	fromToken = decimal.Min(token.BalanceEntryUSD, cost)
	return fromToken, cost.Sub(fromToken), nil
}

func (l *Ledger) debitLiquidity(ctx context.Context, tx *gorm.DB, amount decimal.Decimal) error {
	liquidity, err := NewRepository(tx).DirectionByName(ctx, l.opts.LiquidityDirection)
	if err != nil {
		return err
	}
	balance := liquidity.BalanceUSD.Sub(amount)
	if err := tx.Model(liquidity).Update("balance_usd", balance).Error; err != nil {
		return fmt.Errorf("failed to debit %s: %w", liquidity.Name, err)
	}
	return nil
}

// Sell records the sale of amount units of symbol. The position's cost
// basis is reduced at its average entry price; the position is closed when
// nothing is left. Sale proceeds are not credited to any balance.
func (l *Ledger) Sell(ctx context.Context, symbol string, amount decimal.Decimal) (*SellResult, error) {
	if err := checkOrderAmount("amount", amount); err != nil {
		return nil, err
	}

	var (
		result SellResult
		last   models.Position
	)
	err := l.write(ctx, func(tx *gorm.DB) error {
		token, err := NewRepository(tx).TokenBySymbol(ctx, symbol)
		if err != nil {
			return err
		}
		position := token.Position
		if position == nil {
			return errNotFound("position", token.Symbol)
		}
		if amount.GreaterThan(position.Amount) {
			return errOversell(token.Symbol, amount, position.Amount)
		}

		order, err := createOrder(tx, token, models.OrderSell, amount, decimal.Zero)
		if err != nil {
			return err
		}
		result.Order = *order

		remaining := position.Amount.Sub(amount)
		if remaining.IsZero() {
			if err := tx.Delete(&models.Position{}, position.ID).Error; err != nil {
				return fmt.Errorf("failed to close position %s: %w", position.Name, err)
			}
			result.Closed = true
			result.CostReleased = position.InvestedUSD
			position.Amount = remaining
			position.InvestedUSD = decimal.Zero
			position.TotalUSD = decimal.Zero
			last = *position
			return nil
		}

		released := amount.Mul(position.EntryPrice).Round(models.Scale)
		position.Amount = remaining
		position.InvestedUSD = decimal.Max(position.InvestedUSD.Sub(released), decimal.Zero)
		mark := token.CurrentPriceUSD
		if !mark.IsPositive() {
			mark = position.EntryPrice
		}
		position.TotalUSD = remaining.Mul(mark).Round(models.Scale)
		if err := tx.Omit(clause.Associations).Save(position).Error; err != nil {
			return fmt.Errorf("failed to save position %s: %w", position.Name, err)
		}
		result.Position = position
		result.CostReleased = released
		last = *position
		return nil
	}, func() {
		kind := PositionReduced
		if result.Closed {
			kind = PositionClosed
		}
		l.emit(positionEvent(kind, last, l.revision))
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Sell order recorded",
		zap.String("order", result.Order.Name),
		zap.String("amount", amount.String()),
		zap.Bool("closed", result.Closed),
	)
	return &result, nil
}

func createOrder(tx *gorm.DB, token *models.Token, kind string, amount, price decimal.Decimal) (*models.Order, error) {
	order := models.Order{
		TokenID:    token.ID,
		Amount:     amount,
		EntryPrice: price,
		Type:       kind,
	}
	if err := tx.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to record %s order for %s: %w", kind, token.Symbol, err)
	}
	order.Name = fmt.Sprintf("%s #%d - %s", kind, order.ID, token.Symbol)
	if err := tx.Model(&order).Update("name", order.Name).Error; err != nil {
		return nil, fmt.Errorf("failed to name order %d: %w", order.ID, err)
	}
	return &order, nil
}

func positionEvent(kind PositionEventKind, p models.Position, revision uint64) PositionEvent {
	return PositionEvent{
		Kind:         kind,
		Symbol:       p.Name,
		TokenID:      p.TokenID,
		PositionID:   p.ID,
		Amount:       p.Amount,
		EntryPrice:   p.EntryPrice,
		BodyfixPrice: p.BodyfixPriceUSD,
		Revision:     revision,
	}
}
