package ledger

import (
	"context"
	"sync"
	"testing"

	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// assertDecimal compares decimals by value, ignoring their exponent.
func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// setupTestDB opens a private in-memory database with the ledger schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A single connection keeps the in-memory database alive and shared.
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func plainOptions() Options {
	opts := DefaultOptions()
	opts.BuyCapacity = PlainCapacity
	return opts
}

// setupLedger builds a ledger over a small valid tree:
//
//	Liquidity 60 / Working Capital 40
//	Alpha 50: BTC 60, ETH 40
//	Beta  50: SOL 100
func setupLedger(t *testing.T, opts Options) (*Ledger, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	l := New(db, zap.NewNop(), opts)
	ctx := context.Background()

	_, err := l.AddDirection(ctx, "Liquidity", d("60"))
	require.NoError(t, err)
	_, err = l.AddDirection(ctx, "Working Capital", d("40"))
	require.NoError(t, err)

	alpha, err := l.AddSector(ctx, "Alpha", d("50"))
	require.NoError(t, err)
	beta, err := l.AddSector(ctx, "Beta", d("50"))
	require.NoError(t, err)

	for _, tok := range []struct {
		sector uint
		symbol string
		pct    string
	}{
		{alpha.ID, "BTC", "60"},
		{alpha.ID, "ETH", "40"},
		{beta.ID, "SOL", "100"},
	} {
		_, err := l.AddToken(ctx, tok.sector, tok.symbol, d(tok.pct))
		require.NoError(t, err)
	}
	return l, db
}

func tokenBalance(t *testing.T, l *Ledger, symbol string) decimal.Decimal {
	t.Helper()
	v, err := l.Repository().TokenValue(context.Background(), symbol, TokenBalance)
	require.NoError(t, err)
	return v
}

func directionBalance(t *testing.T, l *Ledger, name string) decimal.Decimal {
	t.Helper()
	v, err := l.Repository().DirectionValue(context.Background(), name, DirectionBalance)
	require.NoError(t, err)
	return v
}

type recordingListener struct {
	mu     sync.Mutex
	events []PositionEvent
}

func (r *recordingListener) PositionChanged(event PositionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingListener) kinds() []PositionEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]PositionEventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}
