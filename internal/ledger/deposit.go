package ledger

import (
	"context"
	"fmt"

	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DepositResult reports a committed deposit.
type DepositResult struct {
	Deposit    models.Deposit
	Tree       Tree
	Allocation Allocation
}

// Deposit credits amount to the portfolio and distributes it over the
// allocation tree. The tree is validated first; on any error nothing is
// written.
func (l *Ledger) Deposit(ctx context.Context, amount decimal.Decimal) (*DepositResult, error) {
	if !amount.IsPositive() {
		return nil, errInvalidAmount("deposit", amount, "must be positive")
	}
	if !amount.Equal(amount.Round(models.Scale)) {
		return nil, errInvalidAmount("deposit", amount, "must be whole cents")
	}

	var result DepositResult
	err := l.write(ctx, func(tx *gorm.DB) error {
		tree, err := loadTree(tx)
		if err != nil {
			return err
		}
		if err := ValidateTree(tree); err != nil {
			return err
		}
		alloc, err := Allocate(amount, tree, l.opts.InvestableDirection)
		if err != nil {
			return err
		}

		deposit := models.Deposit{AmountUSD: amount}
		if err := tx.Create(&deposit).Error; err != nil {
			return fmt.Errorf("failed to record deposit: %w", err)
		}
		if err := l.applyAllocation(tx, &tree, alloc); err != nil {
			return err
		}

		result = DepositResult{Deposit: deposit, Tree: tree, Allocation: alloc}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Deposit allocated",
		zap.Uint("deposit_id", result.Deposit.ID),
		zap.String("amount_usd", amount.StringFixed(models.Scale)),
		zap.Int("tokens", countTokens(result.Tree)),
	)
	return &result, nil
}

// applyAllocation writes alloc into tree and persists every changed row.
// The investable direction and the sectors pass their share straight down;
// tokens and the other directions accumulate.
func (l *Ledger) applyAllocation(tx *gorm.DB, tree *Tree, alloc Allocation) error {
	for i := range tree.Directions {
		d := &tree.Directions[i]
		delta := alloc.Directions[i]
		if i == alloc.Investable {
			delta = delta.Sub(Sum(alloc.Sectors))
		}
		if delta.IsZero() {
			continue
		}
		d.BalanceUSD = d.BalanceUSD.Add(delta)
		if err := tx.Model(d).Update("balance_usd", d.BalanceUSD).Error; err != nil {
			return fmt.Errorf("failed to update direction %s: %w", d.Name, err)
		}
	}

	for i := range tree.Sectors {
		s := &tree.Sectors[i]
		if delta := alloc.Sectors[i].Sub(Sum(alloc.Tokens[i])); !delta.IsZero() {
			s.BalanceUSD = s.BalanceUSD.Add(delta)
			if err := tx.Model(s).Update("balance_usd", s.BalanceUSD).Error; err != nil {
				return fmt.Errorf("failed to update sector %s: %w", s.Name, err)
			}
		}

		for j := range s.Tokens {
			t := &s.Tokens[j]
			t.BalanceUSD = t.BalanceUSD.Add(alloc.Tokens[i][j])
			t.BalanceEntryUSD = l.entryBalance(t.BalanceUSD)
			err := tx.Model(t).Updates(map[string]any{
				"balance_usd":       t.BalanceUSD,
				"balance_entry_usd": t.BalanceEntryUSD,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to update token %s: %w", t.Symbol, err)
			}
		}
	}
	return nil
}

func (l *Ledger) entryBalance(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(l.opts.EntryFraction).Round(models.Scale)
}

// loadTree reads the whole allocation tree ordered by id.
func loadTree(tx *gorm.DB) (Tree, error) {
	var tree Tree
	if err := tx.Order("id asc").Find(&tree.Directions).Error; err != nil {
		return Tree{}, fmt.Errorf("failed to load directions: %w", err)
	}
	if err := tx.Preload("Tokens", orderByID).Order("id asc").Find(&tree.Sectors).Error; err != nil {
		return Tree{}, fmt.Errorf("failed to load sectors: %w", err)
	}
	return tree, nil
}

func countTokens(tree Tree) int {
	n := 0
	for _, s := range tree.Sectors {
		n += len(s.Tokens)
	}
	return n
}
