package ledger

import (
	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Tree is a snapshot of the allocation tree. Directions, sectors and each
// sector's tokens are ordered by id; the last element at every level absorbs
// the rounding remainder of a split.
type Tree struct {
	Directions []models.Direction
	Sectors    []models.Sector
}

// ValidateTree checks that directions, sectors and the tokens of every sector
// each sum to exactly 100%. A sector without tokens is left to the allocator,
// which rejects it only if it would receive money.
func ValidateTree(tree Tree) error {
	if sum := sumDirections(tree.Directions); !sum.Equal(hundred) {
		return errPercentageSum("directions", sum)
	}
	if sum := sumSectors(tree.Sectors); !sum.Equal(hundred) {
		return errPercentageSum("sectors", sum)
	}
	for _, sector := range tree.Sectors {
		if len(sector.Tokens) == 0 {
			continue
		}
		if sum := sumTokens(sector.Tokens); !sum.Equal(hundred) {
			return errPercentageSum(sector.Name+" tokens", sum)
		}
	}
	return nil
}

func sumDirections(directions []models.Direction) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range directions {
		sum = sum.Add(d.Percentage)
	}
	return sum
}

func sumSectors(sectors []models.Sector) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range sectors {
		sum = sum.Add(s.Percentage)
	}
	return sum
}

func sumTokens(tokens []models.Token) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range tokens {
		sum = sum.Add(t.Percentage)
	}
	return sum
}
