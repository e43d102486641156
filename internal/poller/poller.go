// Package poller periodically fetches prices of tracked symbols, marks
// positions to market and delivers the alerts that fire.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"cryptofolio-bot-go/internal/alerts"
	"cryptofolio-bot-go/internal/bybit"
	"cryptofolio-bot-go/internal/config"
	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// PriceFeed is the external source of prices.
type PriceFeed interface {
	CheckHealth(ctx context.Context) error
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PriceSink stores fetched prices and knows which symbols hold positions.
type PriceSink interface {
	TrackedSymbols(ctx context.Context) ([]string, error)
	ApplyPrices(ctx context.Context, prices map[string]decimal.Decimal) ([]ledger.Quote, error)
}

// AlertEvaluator decides which alerts a batch of quotes fires.
type AlertEvaluator interface {
	Evaluate(quotes []ledger.Quote) []alerts.Event
}

var (
	_ PriceFeed      = (*bybit.RestClient)(nil)
	_ PriceSink      = (*ledger.Ledger)(nil)
	_ AlertEvaluator = (*alerts.Evaluator)(nil)
)

// Poller runs the price polling loop.
type Poller struct {
	logger      *zap.Logger
	interval    time.Duration
	concurrency int
	feed        PriceFeed
	sink        PriceSink
	evaluator   AlertEvaluator
	notifier    notify.Notifier
	tracker     *Tracker
	// seeded is set once the tracker was loaded from open positions. Only
	// the loop goroutine touches it.
	seeded bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Poller.
func New(logger *zap.Logger, cfg config.Poller, feed PriceFeed, sink PriceSink, evaluator AlertEvaluator, notifier notify.Notifier, tracker *Tracker) *Poller {
	return &Poller{
		logger:      logger.Named("poller"),
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		feed:        feed,
		sink:        sink,
		evaluator:   evaluator,
		notifier:    notifier,
		tracker:     tracker,
	}
}

// Start runs the loop in the background until Stop is called or ctx ends.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		p.Run(ctx)
	}(p.done)
}

// Stop cancels the loop, including in-flight fetches and the sleep, and
// waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if done == nil {
		return
	}
	cancel()
	<-done
}

// Run seeds the tracked symbols from open positions, runs a cycle right away
// and then one every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.seeded = p.seed(ctx)
	p.logger.Info("Starting price poller",
		zap.Duration("interval", p.interval),
		zap.Int("concurrency", p.concurrency),
		zap.Int("symbols", p.tracker.Len()),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stopping price poller...")
			return
		case <-timer.C:
			p.cycle(ctx)
			timer.Reset(p.interval)
		}
	}
}

// seed adds the symbols of open positions to the tracker.
func (p *Poller) seed(ctx context.Context) bool {
	symbols, err := p.sink.TrackedSymbols(ctx)
	if err != nil {
		p.logger.Error("Failed to load tracked symbols", zap.Error(err))
		return false
	}
	p.tracker.Seed(symbols)
	return true
}

type fetchResult struct {
	symbol string
	price  decimal.Decimal
	err    error
}

// cycle performs one round of fetching, marking and alerting. Seeding is
// retried until it succeeds once.
func (p *Poller) cycle(ctx context.Context) {
	if !p.seeded {
		p.seeded = p.seed(ctx)
	}
	symbols := p.tracker.List()
	if len(symbols) == 0 {
		p.logger.Warn("No symbols to track")
		return
	}
	if err := p.feed.CheckHealth(ctx); err != nil {
		p.logger.Warn("Price feed is unhealthy, skipping cycle", zap.Error(err))
		return
	}

	prices := p.fetch(ctx, symbols)
	if len(prices) == 0 {
		return
	}

	// Prices already gathered are stored even when shutdown began mid-cycle.
	quotes, err := p.sink.ApplyPrices(context.WithoutCancel(ctx), prices)
	if err != nil {
		p.logger.Error("Failed to apply prices", zap.Error(err))
		return
	}
	p.logger.Debug("Prices applied", zap.Int("prices", len(prices)), zap.Int("positions", len(quotes)))

	for _, ev := range p.evaluator.Evaluate(quotes) {
		if err := p.notifier.Notify(ctx, ev.Notification()); err != nil {
			p.logger.Error("Failed to deliver alert",
				zap.String("id", ev.ID),
				zap.String("symbol", ev.Symbol),
				zap.Error(err),
			)
		}
	}
}

// fetch gets the price of every symbol with at most concurrency requests in
// flight. Failed symbols are left out of the result.
func (p *Poller) fetch(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	workers := pool.NewWithResults[fetchResult]().WithMaxGoroutines(p.concurrency)
	for _, symbol := range symbols {
		workers.Go(func() fetchResult {
			price, err := p.feed.GetPrice(ctx, symbol)
			return fetchResult{symbol: symbol, price: price, err: err}
		})
	}

	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, r := range workers.Wait() {
		switch {
		case r.err == nil:
			prices[r.symbol] = r.price
		case errors.Is(r.err, bybit.ErrSymbolNotFound):
			p.tracker.Remove(r.symbol)
			p.logger.Warn("Symbol is no longer listed, untracking", zap.String("symbol", r.symbol), zap.Error(r.err))
		case ctx.Err() != nil:
			p.logger.Debug("Fetch cancelled", zap.String("symbol", r.symbol))
		default:
			p.logger.Warn("Failed to fetch price", zap.String("symbol", r.symbol), zap.Error(r.err))
		}
	}
	return prices
}
