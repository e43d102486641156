package ledger

import (
	"context"
	"fmt"
	"sync"

	"cryptofolio-bot-go/internal/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BuyCapacity selects how much a buy order may spend on a token.
type BuyCapacity string

const (
	// PlainCapacity caps a buy at the token's balance.
	PlainCapacity BuyCapacity = config.BuyCapacityPlain
	// BlendedCapacity caps a buy at the token's entry balance, topped up with
	// a share of the liquidity direction when the token already has a
	// position or its entry balance is below MinEntryBalance.
	BlendedCapacity BuyCapacity = config.BuyCapacityBlended
)

// Options are the allocation and order rules of a Ledger.
type Options struct {
	LiquidityDirection  string
	InvestableDirection string
	BuyCapacity         BuyCapacity
	EntryFraction       decimal.Decimal
	ReserveFraction     decimal.Decimal
	MinEntryBalance     decimal.Decimal
}

// DefaultOptions returns the rules the bot ships with.
func DefaultOptions() Options {
	return Options{
		LiquidityDirection:  "Liquidity",
		InvestableDirection: "Working Capital",
		BuyCapacity:         BlendedCapacity,
		EntryFraction:       decimal.RequireFromString("0.10"),
		ReserveFraction:     decimal.RequireFromString("0.02"),
		MinEntryBalance:     decimal.NewFromInt(5),
	}
}

// OptionsFromConfig converts the ledger section of the configuration.
func OptionsFromConfig(cfg config.Ledger) (Options, error) {
	opts := Options{
		LiquidityDirection:  cfg.LiquidityDirection,
		InvestableDirection: cfg.InvestableDirection,
		BuyCapacity:         BuyCapacity(cfg.BuyCapacity),
	}

	var err error
	if opts.EntryFraction, err = decimal.NewFromString(cfg.EntryFraction); err != nil {
		return Options{}, fmt.Errorf("invalid entry fraction: %w", err)
	}
	if opts.ReserveFraction, err = decimal.NewFromString(cfg.ReserveFraction); err != nil {
		return Options{}, fmt.Errorf("invalid reserve fraction: %w", err)
	}
	if opts.MinEntryBalance, err = decimal.NewFromString(cfg.MinEntryBalance); err != nil {
		return Options{}, fmt.Errorf("invalid minimum entry balance: %w", err)
	}
	return opts, nil
}

// Ledger owns every mutation of balances, percentages, orders and
// positions. Mutations are serialized and each one runs in a single
// transaction.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
	opts   Options

	writeMu sync.Mutex
	// revision counts write transactions; guarded by writeMu.
	revision uint64

	listenersMu sync.RWMutex
	listeners   []PositionListener
}

// New creates a Ledger over db.
func New(db *gorm.DB, logger *zap.Logger, opts Options) *Ledger {
	return &Ledger{
		db:     db,
		logger: logger.Named("ledger"),
		opts:   opts,
	}
}

// Options returns the rules the ledger was built with.
func (l *Ledger) Options() Options {
	return l.opts
}

// Repository returns typed read access to the ledger's entities.
func (l *Ledger) Repository() *Repository {
	return NewRepository(l.db)
}

// write runs fn in a transaction while holding the writer lock. Every call
// takes the next revision, readable from fn as l.revision. committed runs
// after a successful commit, before the lock is released.
func (l *Ledger) write(ctx context.Context, fn func(tx *gorm.DB) error, committed ...func()) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.revision++
	if err := l.db.WithContext(ctx).Transaction(fn); err != nil {
		return err
	}
	for _, f := range committed {
		f()
	}
	return nil
}
