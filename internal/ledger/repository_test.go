package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	l, _ := fundedLedger(t, plainOptions(), "1000")
	_, err := l.Buy(ctx, "ETH", d("2"), d("10"))
	require.NoError(t, err)
	repo := l.Repository()

	t.Run("Direction lookups", func(t *testing.T) {
		dir, err := repo.DirectionByName(ctx, "Working Capital")
		require.NoError(t, err)
		byID, err := repo.DirectionByID(ctx, dir.ID)
		require.NoError(t, err)
		assert.Equal(t, dir.Name, byID.Name)

		pct, err := repo.DirectionValue(ctx, "Working Capital", DirectionPercentage)
		require.NoError(t, err)
		assertDecimal(t, "40", pct)
	})

	t.Run("Sector lookups preload ordered tokens", func(t *testing.T) {
		s, err := repo.SectorByName(ctx, "Alpha")
		require.NoError(t, err)
		require.Len(t, s.Tokens, 2)
		assert.Equal(t, "BTC", s.Tokens[0].Symbol)
		assert.Equal(t, "ETH", s.Tokens[1].Symbol)

		bal, err := repo.SectorValue(ctx, s.ID, SectorBalance)
		require.NoError(t, err)
		assertDecimal(t, "0", bal)
	})

	t.Run("Token lookups preload the position", func(t *testing.T) {
		tok, err := repo.TokenBySymbol(ctx, "eth")
		require.NoError(t, err)
		require.NotNil(t, tok.Position)
		assertDecimal(t, "2", tok.Position.Amount)

		byID, err := repo.TokenByID(ctx, tok.ID)
		require.NoError(t, err)
		assert.Equal(t, "ETH", byID.Symbol)

		btc, err := repo.TokenBySymbol(ctx, "BTC")
		require.NoError(t, err)
		assert.Nil(t, btc.Position)
	})

	t.Run("Position lookups", func(t *testing.T) {
		p, err := repo.PositionByName(ctx, "ETH")
		require.NoError(t, err)
		require.NotNil(t, p.Token)
		assert.Equal(t, "ETH", p.Token.Symbol)

		invested, err := repo.PositionValue(ctx, p.ID, PositionInvested)
		require.NoError(t, err)
		assertDecimal(t, "20", invested)
	})

	t.Run("Missing rows", func(t *testing.T) {
		_, err := repo.DirectionByName(ctx, "Savings")
		requireKind(t, err, KindNotFound)
		_, err = repo.TokenValue(ctx, "XYZ", TokenBalance)
		requireKind(t, err, KindNotFound)
		_, err = repo.PositionByID(ctx, 99)
		requireKind(t, err, KindNotFound)
	})

	t.Run("Unknown columns", func(t *testing.T) {
		_, err := repo.TokenValue(ctx, "BTC", TokenColumn("symbol"))
		assert.Error(t, err)
		assert.False(t, IsValidation(err))
		_, err = repo.DirectionValue(ctx, "Liquidity", DirectionColumn("name; drop table tokens"))
		assert.Error(t, err)
	})
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	l, _ := fundedLedger(t, plainOptions(), "1000")
	_, err := l.Buy(ctx, "BTC", d("10"), d("2"))
	require.NoError(t, err)
	_, err = l.ApplyPrices(ctx, map[string]decimal.Decimal{"BTC": d("3")})
	require.NoError(t, err)

	s, err := l.Summary(ctx)

	require.NoError(t, err)
	assertDecimal(t, "1000", s.DepositedUSD)
	assertDecimal(t, "600", s.LiquidityUSD)
	assertDecimal(t, "380", s.TokensUSD)
	assertDecimal(t, "980", s.CashUSD)
	assertDecimal(t, "20", s.InvestedUSD)
	assertDecimal(t, "30", s.MarketValueUSD)
	assertDecimal(t, "10", s.UnrealizedUSD)
	assertDecimal(t, "1000", s.TotalUSD)
	assert.Equal(t, 1, s.Positions)

	symbols, err := l.TrackedSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, symbols)
}
