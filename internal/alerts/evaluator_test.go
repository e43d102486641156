package alerts

import (
	"testing"

	"cryptofolio-bot-go/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quote(symbol, entry, price string) ledger.Quote {
	e := d(entry)
	return ledger.Quote{
		Symbol:       symbol,
		PositionID:   7,
		Amount:       d("1"),
		EntryPrice:   e,
		BodyfixPrice: e.Mul(decimal.NewFromInt(2)),
		Price:        d(price),
	}
}

func newEvaluator() *Evaluator {
	return NewEvaluator(zap.NewNop(), NewState(), d("10"))
}

func TestEvaluate_TakeProfit(t *testing.T) {
	t.Run("Fires once until the marker is reset", func(t *testing.T) {
		// Arrange
		e := newEvaluator()

		// Act
		first := e.Evaluate([]ledger.Quote{quote("BTC", "3", "6.5")})
		second := e.Evaluate([]ledger.Quote{quote("BTC", "3", "6.5")})
		third := e.Evaluate([]ledger.Quote{quote("BTC", "3", "7")})

		// Assert
		require.Len(t, first, 1)
		assert.Equal(t, TakeProfit, first[0].Kind)
		assert.Equal(t, "BTC", first[0].Symbol)
		assert.True(t, first[0].Reference.Equal(d("6")))
		assert.NotEmpty(t, first[0].ID)
		assert.Empty(t, second)
		assert.Empty(t, third)
		assert.True(t, e.state.TakeProfitNotified("BTC"))

		e.PositionChanged(ledger.PositionEvent{Kind: ledger.PositionAveraged, Symbol: "BTC"})
		again := e.Evaluate([]ledger.Quote{quote("BTC", "3", "6.5")})
		require.Len(t, again, 1)
		assert.Equal(t, TakeProfit, again[0].Kind)
	})

	t.Run("Exactly at body-fix fires", func(t *testing.T) {
		e := newEvaluator()

		events := e.Evaluate([]ledger.Quote{quote("ETH", "3", "6")})

		require.Len(t, events, 1)
	})

	t.Run("Below body-fix is silent", func(t *testing.T) {
		e := newEvaluator()

		events := e.Evaluate([]ledger.Quote{quote("ETH", "3", "5.99")})

		assert.Empty(t, events)
		assert.False(t, e.state.TakeProfitNotified("ETH"))
	})

	t.Run("Reduced position keeps the marker", func(t *testing.T) {
		e := newEvaluator()
		require.Len(t, e.Evaluate([]ledger.Quote{quote("SOL", "3", "6")}), 1)

		e.PositionChanged(ledger.PositionEvent{Kind: ledger.PositionReduced, Symbol: "SOL"})

		assert.Empty(t, e.Evaluate([]ledger.Quote{quote("SOL", "3", "6")}))
	})
}

func TestEvaluate_DrawdownStepping(t *testing.T) {
	e := newEvaluator()
	steps := []struct {
		price     string
		fires     bool
		reference string
	}{
		{price: "95", fires: false},
		{price: "89", fires: true, reference: "100"},
		{price: "85", fires: false},
		{price: "92", fires: false},
		{price: "79", fires: true, reference: "89"},
		{price: "72", fires: false},
		{price: "71.1", fires: true, reference: "79"},
	}

	for _, step := range steps {
		events := e.Evaluate([]ledger.Quote{quote("ADA", "100", step.price)})

		if !step.fires {
			assert.Empty(t, events, "price %s", step.price)
			continue
		}
		require.Len(t, events, 1, "price %s", step.price)
		assert.Equal(t, Drawdown, events[0].Kind)
		assert.True(t, events[0].Reference.Equal(d(step.reference)), "price %s: reference %s", step.price, events[0].Reference)
		last, ok := e.state.LastDrawdown("ADA")
		require.True(t, ok)
		assert.True(t, last.Equal(d(step.price)))
	}
}

func TestEvaluate_DrawdownFall(t *testing.T) {
	e := newEvaluator()

	events := e.Evaluate([]ledger.Quote{quote("ADA", "100", "89")})
	require.Len(t, events, 1)
	assert.True(t, events[0].Fall.Equal(d("11")))

	events = e.Evaluate([]ledger.Quote{quote("ADA", "100", "79")})
	require.Len(t, events, 1)
	assert.True(t, events[0].Fall.Equal(d("11.24")), events[0].Fall.String())
}

func TestEvaluate_ResetOnBuyAndClose(t *testing.T) {
	for _, kind := range []ledger.PositionEventKind{ledger.PositionOpened, ledger.PositionAveraged, ledger.PositionClosed} {
		t.Run(kind.String(), func(t *testing.T) {
			e := newEvaluator()
			require.Len(t, e.Evaluate([]ledger.Quote{quote("ADA", "100", "89")}), 1)

			e.PositionChanged(ledger.PositionEvent{Kind: kind, Symbol: "ADA"})

			_, ok := e.state.LastDrawdown("ADA")
			assert.False(t, ok)
			assert.Len(t, e.Evaluate([]ledger.Quote{quote("ADA", "100", "88")}), 1)
		})
	}
}

func TestEvaluate_SkipsQuotesOlderThanReset(t *testing.T) {
	// Arrange
	e := newEvaluator()
	stale := quote("BTC", "3", "6.5")
	stale.Revision = 2

	// Act
	e.PositionChanged(ledger.PositionEvent{Kind: ledger.PositionAveraged, Symbol: "BTC", Revision: 3})
	skipped := e.Evaluate([]ledger.Quote{stale})
	fresh := quote("BTC", "4.75", "10")
	fresh.Revision = 4
	fired := e.Evaluate([]ledger.Quote{fresh})

	// Assert
	assert.Empty(t, skipped)
	require.Len(t, fired, 1)
	assert.True(t, fired[0].Reference.Equal(d("9.5")))
}

func TestEvaluate_IndependentSymbols(t *testing.T) {
	e := newEvaluator()

	events := e.Evaluate([]ledger.Quote{
		quote("BTC", "3", "6.5"),
		quote("ADA", "100", "50"),
		quote("ETH", "10", "10"),
	})

	require.Len(t, events, 2)
	assert.Equal(t, "BTC", events[0].Symbol)
	assert.Equal(t, TakeProfit, events[0].Kind)
	assert.Equal(t, "ADA", events[1].Symbol)
	assert.Equal(t, Drawdown, events[1].Kind)
}

func TestEvent_Notification(t *testing.T) {
	ev := Event{
		ID:         "abc",
		Kind:       Drawdown,
		Symbol:     "ADA",
		PositionID: 12,
		Price:      d("89"),
		Reference:  d("100"),
		EntryPrice: d("100"),
		Fall:       d("11"),
	}

	n := ev.Notification()

	assert.Equal(t, "abc", n.ID)
	assert.Contains(t, n.Text, "<b>ADA</b> fell 11%")
	assert.Contains(t, n.Text, "Price: $89\n")
	require.NotNil(t, n.Action)
	assert.Equal(t, PositionAction, n.Action.Unique)
	assert.Equal(t, "12", n.Action.Data)

	ev.Kind = TakeProfit
	ev.Reference = d("200")
	n = ev.Notification()
	assert.Contains(t, n.Text, "body-fix")
	assert.Contains(t, n.Text, "Body-fix: $200\n")

	t.Run("Sub-cent prices keep their digits", func(t *testing.T) {
		pepe := Event{
			Kind:       TakeProfit,
			Symbol:     "PEPE",
			PositionID: 3,
			Price:      d("0.0000231"),
			Reference:  d("0.000022"),
			EntryPrice: d("0.000011"),
		}

		text := pepe.Notification().Text

		assert.Contains(t, text, "Price: $0.0000231")
		assert.Contains(t, text, "Body-fix: $0.000022")
		assert.Contains(t, text, "Entry: $0.000011")
		assert.NotContains(t, text, "$0.00\n")
	})
}
