package ledger

import (
	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
)

// Allocation holds the balance deltas of one deposit. Slices are aligned
// with the Tree the allocation was computed from.
type Allocation struct {
	Amount     decimal.Decimal
	Investable int
	Directions []decimal.Decimal
	Sectors    []decimal.Decimal
	Tokens     [][]decimal.Decimal
}

// Split divides amount by percentages, rounding every share to cents
// (half away from zero). The last share receives whatever is left, so the
// shares always add up to amount exactly.
func Split(amount decimal.Decimal, percentages []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(percentages))
	if len(percentages) == 0 {
		return shares
	}

	allocated := decimal.Zero
	last := len(percentages) - 1
	for i, pct := range percentages[:last] {
		shares[i] = amount.Mul(pct).Div(hundred).Round(models.Scale)
		allocated = allocated.Add(shares[i])
	}
	shares[last] = amount.Sub(allocated)
	return shares
}

// Allocate computes the waterfall of amount over tree. Only the direction
// named investable is split further into sectors and tokens.
func Allocate(amount decimal.Decimal, tree Tree, investable string) (Allocation, error) {
	alloc := Allocation{Amount: amount, Investable: -1}

	pcts := make([]decimal.Decimal, len(tree.Directions))
	for i, d := range tree.Directions {
		pcts[i] = d.Percentage
		if d.Name == investable {
			alloc.Investable = i
		}
	}
	if alloc.Investable < 0 {
		return Allocation{}, errNotFound("direction", investable)
	}
	alloc.Directions = Split(amount, pcts)

	investableDelta := alloc.Directions[alloc.Investable]
	if len(tree.Sectors) == 0 && !investableDelta.IsZero() {
		return Allocation{}, errEmptySector(investable, investableDelta)
	}

	pcts = make([]decimal.Decimal, len(tree.Sectors))
	for i, s := range tree.Sectors {
		pcts[i] = s.Percentage
	}
	alloc.Sectors = Split(investableDelta, pcts)

	alloc.Tokens = make([][]decimal.Decimal, len(tree.Sectors))
	for i, s := range tree.Sectors {
		delta := alloc.Sectors[i]
		if len(s.Tokens) == 0 {
			if !delta.IsZero() {
				return Allocation{}, errEmptySector(s.Name, delta)
			}
			continue
		}
		pcts := make([]decimal.Decimal, len(s.Tokens))
		for j, t := range s.Tokens {
			pcts[j] = t.Percentage
		}
		alloc.Tokens[i] = Split(delta, pcts)
	}
	return alloc, nil
}

// Sum adds up deltas.
func Sum(deltas []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range deltas {
		sum = sum.Add(d)
	}
	return sum
}
