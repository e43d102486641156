package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Percentage edits never let a level go above 100%. A level may sit below
// 100% while the strategy is being edited; Deposit refuses to run until it
// is back at exactly 100%.

func checkPercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return errInvalidAmount("percentage", pct, "must be between 0 and 100")
	}
	if !pct.Equal(pct.Round(2)) {
		return errInvalidAmount("percentage", pct, "at most two decimal places")
	}
	return nil
}

// checkRoom rejects pct when the siblings already use more than 100 - pct.
func checkRoom(subject string, pct, siblings decimal.Decimal) error {
	available := hundred.Sub(siblings)
	if pct.GreaterThan(available) {
		return errPercentageOverflow(subject, pct, decimal.Max(available, decimal.Zero))
	}
	return nil
}

func sumColumn(tx *gorm.DB, model any, query string, args ...any) (decimal.Decimal, error) {
	var values []decimal.Decimal
	q := tx.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Pluck("percentage", &values).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum percentages: %w", err)
	}
	return Sum(values), nil
}

// AddDirection creates a top-level direction.
func (l *Ledger) AddDirection(ctx context.Context, name string, pct decimal.Decimal) (*models.Direction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errInvalidName("direction", name)
	}
	if err := checkPercentage(pct); err != nil {
		return nil, err
	}

	direction := models.Direction{Name: name, Percentage: pct}
	err := l.write(ctx, func(tx *gorm.DB) error {
		if _, err := NewRepository(tx).DirectionByName(ctx, name); err == nil {
			return errDuplicate("direction", name)
		} else if !isNotFound(err) {
			return err
		}
		siblings, err := sumColumn(tx, &models.Direction{}, "")
		if err != nil {
			return err
		}
		if err := checkRoom(name, pct, siblings); err != nil {
			return err
		}
		if err := tx.Create(&direction).Error; err != nil {
			return fmt.Errorf("failed to create direction %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &direction, nil
}

// SetDirectionPercentage changes the share of the direction called name.
func (l *Ledger) SetDirectionPercentage(ctx context.Context, name string, pct decimal.Decimal) error {
	if err := checkPercentage(pct); err != nil {
		return err
	}
	return l.write(ctx, func(tx *gorm.DB) error {
		d, err := NewRepository(tx).DirectionByName(ctx, strings.TrimSpace(name))
		if err != nil {
			return err
		}
		siblings, err := sumColumn(tx, &models.Direction{}, "id <> ?", d.ID)
		if err != nil {
			return err
		}
		if err := checkRoom(d.Name, pct, siblings); err != nil {
			return err
		}
		if err := tx.Model(d).Update("percentage", pct).Error; err != nil {
			return fmt.Errorf("failed to update direction %s: %w", d.Name, err)
		}
		l.logger.Info("Direction percentage changed", zap.String("direction", d.Name), zap.String("percentage", pct.String()))
		return nil
	})
}

// AddSector creates a sector inside the investable direction.
func (l *Ledger) AddSector(ctx context.Context, name string, pct decimal.Decimal) (*models.Sector, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errInvalidName("sector", name)
	}
	if err := checkPercentage(pct); err != nil {
		return nil, err
	}

	sector := models.Sector{Name: name, Percentage: pct}
	err := l.write(ctx, func(tx *gorm.DB) error {
		if _, err := NewRepository(tx).SectorByName(ctx, name); err == nil {
			return errDuplicate("sector", name)
		} else if !isNotFound(err) {
			return err
		}
		siblings, err := sumColumn(tx, &models.Sector{}, "")
		if err != nil {
			return err
		}
		if err := checkRoom(name, pct, siblings); err != nil {
			return err
		}
		if err := tx.Create(&sector).Error; err != nil {
			return fmt.Errorf("failed to create sector %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("Sector added", zap.String("sector", name), zap.String("percentage", pct.String()))
	return &sector, nil
}

// SetSectorPercentage changes the share of a sector.
func (l *Ledger) SetSectorPercentage(ctx context.Context, id uint, pct decimal.Decimal) error {
	if err := checkPercentage(pct); err != nil {
		return err
	}
	return l.write(ctx, func(tx *gorm.DB) error {
		s, err := NewRepository(tx).SectorByID(ctx, id)
		if err != nil {
			return err
		}
		siblings, err := sumColumn(tx, &models.Sector{}, "id <> ?", s.ID)
		if err != nil {
			return err
		}
		if err := checkRoom(s.Name, pct, siblings); err != nil {
			return err
		}
		if err := tx.Model(&models.Sector{ID: s.ID}).Update("percentage", pct).Error; err != nil {
			return fmt.Errorf("failed to update sector %s: %w", s.Name, err)
		}
		l.logger.Info("Sector percentage changed", zap.String("sector", s.Name), zap.String("percentage", pct.String()))
		return nil
	})
}

// DeleteSector removes a sector and its tokens. Cash still held by the
// sector or its tokens is returned to the liquidity direction. The returned
// amount is the cash moved.
func (l *Ledger) DeleteSector(ctx context.Context, id uint) (decimal.Decimal, error) {
	refund := decimal.Zero
	err := l.write(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		s, err := repo.SectorByID(ctx, id)
		if err != nil {
			return err
		}

		tokenIDs := make([]uint, 0, len(s.Tokens))
		refund = s.BalanceUSD
		for _, t := range s.Tokens {
			tokenIDs = append(tokenIDs, t.ID)
			refund = refund.Add(t.BalanceUSD)
		}
		if len(tokenIDs) > 0 {
			var open models.Position
			err := tx.Where("token_id IN ?", tokenIDs).First(&open).Error
			if err == nil {
				return errOpenPosition(open.Name)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check positions of sector %s: %w", s.Name, err)
			}
			if err := tx.Where("sector_id = ?", s.ID).Delete(&models.Token{}).Error; err != nil {
				return fmt.Errorf("failed to delete tokens of sector %s: %w", s.Name, err)
			}
		}
		if err := tx.Delete(&models.Sector{}, s.ID).Error; err != nil {
			return fmt.Errorf("failed to delete sector %s: %w", s.Name, err)
		}
		return l.refund(ctx, tx, refund)
	})
	if err != nil {
		return decimal.Zero, err
	}
	l.logger.Info("Sector deleted", zap.Uint("sector_id", id), zap.String("refund_usd", refund.StringFixed(models.Scale)))
	return refund, nil
}

// AddToken creates a token inside a sector.
func (l *Ledger) AddToken(ctx context.Context, sectorID uint, symbol string, pct decimal.Decimal) (*models.Token, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" || strings.ContainsAny(symbol, " /") {
		return nil, errInvalidName("token", symbol)
	}
	if err := checkPercentage(pct); err != nil {
		return nil, err
	}

	token := models.Token{SectorID: sectorID, Symbol: symbol, Percentage: pct}
	err := l.write(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		s, err := repo.SectorByID(ctx, sectorID)
		if err != nil {
			return err
		}
		if _, err := repo.TokenBySymbol(ctx, symbol); err == nil {
			return errDuplicate("token", symbol)
		} else if !isNotFound(err) {
			return err
		}
		if err := checkRoom(symbol, pct, sumTokens(s.Tokens)); err != nil {
			return err
		}
		if err := tx.Create(&token).Error; err != nil {
			return fmt.Errorf("failed to create token %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Debug("Token added", zap.String("symbol", symbol), zap.Uint("sector_id", sectorID))
	return &token, nil
}

// SetTokenPercentage changes a token's share of its sector.
func (l *Ledger) SetTokenPercentage(ctx context.Context, symbol string, pct decimal.Decimal) error {
	if err := checkPercentage(pct); err != nil {
		return err
	}
	return l.write(ctx, func(tx *gorm.DB) error {
		t, err := NewRepository(tx).TokenBySymbol(ctx, symbol)
		if err != nil {
			return err
		}
		siblings, err := sumColumn(tx, &models.Token{}, "sector_id = ? AND id <> ?", t.SectorID, t.ID)
		if err != nil {
			return err
		}
		if err := checkRoom(t.Symbol, pct, siblings); err != nil {
			return err
		}
		if err := tx.Model(&models.Token{ID: t.ID}).Update("percentage", pct).Error; err != nil {
			return fmt.Errorf("failed to update token %s: %w", t.Symbol, err)
		}
		l.logger.Info("Token percentage changed", zap.String("symbol", t.Symbol), zap.String("percentage", pct.String()))
		return nil
	})
}

// DeleteToken removes a token without an open position and returns its
// cash to the liquidity direction. Its order history is kept.
func (l *Ledger) DeleteToken(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var refund decimal.Decimal
	err := l.write(ctx, func(tx *gorm.DB) error {
		t, err := NewRepository(tx).TokenBySymbol(ctx, symbol)
		if err != nil {
			return err
		}
		if t.Position != nil {
			return errOpenPosition(t.Symbol)
		}
		if err := tx.Delete(&models.Token{}, t.ID).Error; err != nil {
			return fmt.Errorf("failed to delete token %s: %w", t.Symbol, err)
		}
		refund = t.BalanceUSD
		return l.refund(ctx, tx, refund)
	})
	if err != nil {
		return decimal.Zero, err
	}
	l.logger.Info("Token deleted", zap.String("symbol", NormalizeSymbol(symbol)), zap.String("refund_usd", refund.StringFixed(models.Scale)))
	return refund, nil
}

func (l *Ledger) refund(ctx context.Context, tx *gorm.DB, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	liquidity, err := NewRepository(tx).DirectionByName(ctx, l.opts.LiquidityDirection)
	if err != nil {
		return err
	}
	balance := liquidity.BalanceUSD.Add(amount)
	if err := tx.Model(liquidity).Update("balance_usd", balance).Error; err != nil {
		return fmt.Errorf("failed to credit %s: %w", liquidity.Name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	verr, ok := AsValidation(err)
	return ok && verr.Kind == KindNotFound
}
