package ledger

import (
	"context"
	"testing"

	"cryptofolio-bot-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind Kind) *ValidationError {
	t.Helper()
	verr, ok := AsValidation(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	require.Equal(t, kind, verr.Kind, verr.Error())
	return verr
}

func TestPercentageEdits(t *testing.T) {
	ctx := context.Background()

	t.Run("Direction overflow reports the residue", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		err := l.SetDirectionPercentage(ctx, "Liquidity", d("70"))

		verr := requireKind(t, err, KindPercentageOverflow)
		assertDecimal(t, "60", verr.Required)
		assert.Contains(t, err.Error(), "available: 60%")
	})

	t.Run("Direction can be lowered", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		require.NoError(t, l.SetDirectionPercentage(ctx, "Liquidity", d("55.5")))

		v, err := l.Repository().DirectionValue(ctx, "Liquidity", DirectionPercentage)
		require.NoError(t, err)
		assertDecimal(t, "55.5", v)
	})

	t.Run("Unknown direction", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		err := l.SetDirectionPercentage(ctx, "Savings", d("10"))

		requireKind(t, err, KindNotFound)
	})

	t.Run("Duplicate direction", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		_, err := l.AddDirection(ctx, "Liquidity", d("0"))

		requireKind(t, err, KindDuplicate)
	})

	t.Run("Sector overflow", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		_, err := l.AddSector(ctx, "Gamma", d("0.01"))

		verr := requireKind(t, err, KindPercentageOverflow)
		assertDecimal(t, "0", verr.Required)
	})

	t.Run("Sector replaced after lowering another", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())
		beta, err := l.Repository().SectorByName(ctx, "Beta")
		require.NoError(t, err)

		require.NoError(t, l.SetSectorPercentage(ctx, beta.ID, d("30")))
		_, err = l.AddSector(ctx, "Gamma", d("20"))
		require.NoError(t, err)

		err = l.SetSectorPercentage(ctx, beta.ID, d("30.01"))
		verr := requireKind(t, err, KindPercentageOverflow)
		assertDecimal(t, "30", verr.Required)
	})

	t.Run("Duplicate sector", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		_, err := l.AddSector(ctx, "Alpha", d("0"))

		requireKind(t, err, KindDuplicate)
	})

	t.Run("Token overflow within its sector", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		err := l.SetTokenPercentage(ctx, "ETH", d("41"))

		verr := requireKind(t, err, KindPercentageOverflow)
		assertDecimal(t, "40", verr.Required)
	})

	t.Run("Duplicate token across sectors", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())
		beta, err := l.Repository().SectorByName(ctx, "Beta")
		require.NoError(t, err)
		require.NoError(t, l.SetTokenPercentage(ctx, "SOL", d("50")))

		_, err = l.AddToken(ctx, beta.ID, "btc", d("10"))

		requireKind(t, err, KindDuplicate)
	})

	t.Run("Token symbols are upper-cased", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())
		beta, err := l.Repository().SectorByName(ctx, "Beta")
		require.NoError(t, err)
		require.NoError(t, l.SetTokenPercentage(ctx, "sol", d("90")))

		tok, err := l.AddToken(ctx, beta.ID, " ada ", d("10"))

		require.NoError(t, err)
		assert.Equal(t, "ADA", tok.Symbol)
	})

	t.Run("Token in unknown sector", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		_, err := l.AddToken(ctx, 999, "ADA", d("10"))

		requireKind(t, err, KindNotFound)
	})

	t.Run("Invalid percentages", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		for _, pct := range []string{"-1", "100.01", "10.005"} {
			err := l.SetTokenPercentage(ctx, "ETH", d(pct))
			requireKind(t, err, KindInvalidAmount)
		}
	})
}

func TestDeleteToken(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns cash to liquidity", func(t *testing.T) {
		l, db := setupLedger(t, DefaultOptions())
		_, err := l.Deposit(ctx, d("1000"))
		require.NoError(t, err)

		refund, err := l.DeleteToken(ctx, "ETH")

		require.NoError(t, err)
		assertDecimal(t, "80", refund)
		assertDecimal(t, "680", directionBalance(t, l, "Liquidity"))
		_, err = l.Repository().TokenBySymbol(ctx, "ETH")
		requireKind(t, err, KindNotFound)

		var count int64
		db.Model(&models.Token{}).Count(&count)
		assert.Equal(t, int64(2), count)
	})

	t.Run("Rejected with an open position", func(t *testing.T) {
		l, _ := setupLedger(t, plainOptions())
		_, err := l.Deposit(ctx, d("1000"))
		require.NoError(t, err)
		_, err = l.Buy(ctx, "ETH", d("1"), d("10"))
		require.NoError(t, err)

		_, err = l.DeleteToken(ctx, "ETH")

		requireKind(t, err, KindOpenPosition)
		assertDecimal(t, "70", tokenBalance(t, l, "ETH"))
	})
}

func TestDeleteSector(t *testing.T) {
	ctx := context.Background()

	t.Run("Deletes tokens and refunds their cash", func(t *testing.T) {
		l, db := setupLedger(t, DefaultOptions())
		_, err := l.Deposit(ctx, d("1000"))
		require.NoError(t, err)
		alpha, err := l.Repository().SectorByName(ctx, "Alpha")
		require.NoError(t, err)

		refund, err := l.DeleteSector(ctx, alpha.ID)

		require.NoError(t, err)
		assertDecimal(t, "200", refund)
		assertDecimal(t, "800", directionBalance(t, l, "Liquidity"))

		var tokens []models.Token
		require.NoError(t, db.Find(&tokens).Error)
		require.Len(t, tokens, 1)
		assert.Equal(t, "SOL", tokens[0].Symbol)
	})

	t.Run("Rejected with an open position", func(t *testing.T) {
		l, db := setupLedger(t, plainOptions())
		_, err := l.Deposit(ctx, d("1000"))
		require.NoError(t, err)
		_, err = l.Buy(ctx, "BTC", d("1"), d("10"))
		require.NoError(t, err)
		alpha, err := l.Repository().SectorByName(ctx, "Alpha")
		require.NoError(t, err)

		_, err = l.DeleteSector(ctx, alpha.ID)

		requireKind(t, err, KindOpenPosition)
		var count int64
		db.Model(&models.Token{}).Count(&count)
		assert.Equal(t, int64(3), count)
		assertDecimal(t, "600", directionBalance(t, l, "Liquidity"))
	})

	t.Run("Unknown sector", func(t *testing.T) {
		l, _ := setupLedger(t, DefaultOptions())

		_, err := l.DeleteSector(ctx, 42)

		requireKind(t, err, KindNotFound)
	})
}
