package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cryptofolio-bot-go/internal/alerts"
	"cryptofolio-bot-go/internal/bybit"
	"cryptofolio-bot-go/internal/config"
	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockFeed is a mock implementation of PriceFeed.
type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) CheckHealth(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockFeed) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockSink is a mock implementation of PriceSink.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) TrackedSymbols(ctx context.Context) ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSink) ApplyPrices(ctx context.Context, prices map[string]decimal.Decimal) ([]ledger.Quote, error) {
	args := m.Called(prices)
	return args.Get(0).([]ledger.Quote), args.Error(1)
}

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n notify.Notification) error {
	args := m.Called(n)
	return args.Error(0)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pricesEqual(want map[string]string) interface{} {
	return mock.MatchedBy(func(got map[string]decimal.Decimal) bool {
		if len(got) != len(want) {
			return false
		}
		for symbol, price := range want {
			if p, ok := got[symbol]; !ok || !p.Equal(d(price)) {
				return false
			}
		}
		return true
	})
}

func setupPoller(tracker *Tracker) (*Poller, *MockFeed, *MockSink, *MockNotifier) {
	feed := new(MockFeed)
	sink := new(MockSink)
	notifier := new(MockNotifier)
	evaluator := alerts.NewEvaluator(zap.NewNop(), alerts.NewState(), d("10"))
	cfg := config.Poller{Interval: 10 * time.Millisecond, Concurrency: 2}
	p := New(zap.NewNop(), cfg, feed, sink, evaluator, notifier, tracker)
	// cycle tests start from a tracker Run has already seeded
	p.seeded = true
	return p, feed, sink, notifier
}

// countingFeed records the peak number of concurrent GetPrice calls.
type countingFeed struct {
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *countingFeed) CheckHealth(ctx context.Context) error {
	return nil
}

func (f *countingFeed) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return d("1"), nil
}

// blockingFeed holds every GetPrice until its context ends.
type blockingFeed struct {
	started chan string
}

func (f *blockingFeed) CheckHealth(ctx context.Context) error {
	return nil
}

func (f *blockingFeed) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	select {
	case f.started <- symbol:
	default:
	}
	<-ctx.Done()
	return decimal.Zero, ctx.Err()
}

func TestCycle(t *testing.T) {
	t.Run("Fetches, applies and notifies", func(t *testing.T) {
		// Arrange
		tracker := NewTracker("BTC", "ETH", "GONE", "FLAKY")
		p, feed, sink, notifier := setupPoller(tracker)
		feed.On("CheckHealth").Return(nil)
		feed.On("GetPrice", "BTC").Return(d("7"), nil)
		feed.On("GetPrice", "ETH").Return(d("10"), nil)
		feed.On("GetPrice", "GONE").Return(decimal.Zero, fmt.Errorf("%w: GONEUSDT", bybit.ErrSymbolNotFound))
		feed.On("GetPrice", "FLAKY").Return(decimal.Zero, errors.New("connection reset"))
		sink.On("ApplyPrices", pricesEqual(map[string]string{"BTC": "7", "ETH": "10"})).Return([]ledger.Quote{
			{Symbol: "BTC", PositionID: 1, Amount: d("1"), EntryPrice: d("3"), BodyfixPrice: d("6"), Price: d("7")},
			{Symbol: "ETH", PositionID: 2, Amount: d("1"), EntryPrice: d("10"), BodyfixPrice: d("20"), Price: d("10")},
		}, nil)
		notifier.On("Notify", mock.MatchedBy(func(n notify.Notification) bool {
			return n.Action != nil && n.Action.Data == "1"
		})).Return(nil).Once()

		// Act
		p.cycle(context.Background())

		// Assert
		feed.AssertExpectations(t)
		sink.AssertExpectations(t)
		notifier.AssertExpectations(t)
		assert.Equal(t, []string{"BTC", "ETH", "FLAKY"}, tracker.List())
	})

	t.Run("Unhealthy feed skips the cycle", func(t *testing.T) {
		p, feed, sink, notifier := setupPoller(NewTracker("BTC"))
		feed.On("CheckHealth").Return(errors.New("maintenance"))

		p.cycle(context.Background())

		feed.AssertExpectations(t)
		feed.AssertNotCalled(t, "GetPrice", mock.Anything)
		sink.AssertNotCalled(t, "ApplyPrices", mock.Anything)
		notifier.AssertNotCalled(t, "Notify", mock.Anything)
	})

	t.Run("No tracked symbols", func(t *testing.T) {
		p, feed, _, _ := setupPoller(NewTracker())

		p.cycle(context.Background())

		feed.AssertNotCalled(t, "CheckHealth")
	})

	t.Run("Seeding is retried after a failed start", func(t *testing.T) {
		// Arrange
		tracker := NewTracker()
		p, feed, sink, _ := setupPoller(tracker)
		p.seeded = false
		sink.On("TrackedSymbols").Return([]string(nil), errors.New("database is locked")).Once()
		sink.On("TrackedSymbols").Return([]string{"btc"}, nil).Once()
		feed.On("CheckHealth").Return(nil)
		feed.On("GetPrice", "BTC").Return(d("2"), nil)
		sink.On("ApplyPrices", pricesEqual(map[string]string{"BTC": "2"})).Return([]ledger.Quote{}, nil)

		// Act
		p.cycle(context.Background())
		first := tracker.Len()
		p.cycle(context.Background())
		p.cycle(context.Background())

		// Assert
		assert.Equal(t, 0, first)
		assert.Equal(t, []string{"BTC"}, tracker.List())
		sink.AssertNumberOfCalls(t, "TrackedSymbols", 2)
		sink.AssertNumberOfCalls(t, "ApplyPrices", 2)
	})

	t.Run("Fetches are bounded by concurrency", func(t *testing.T) {
		// Arrange
		p, _, sink, _ := setupPoller(NewTracker("ADA", "BTC", "DOT", "ETH", "SOL", "XRP"))
		feed := &countingFeed{}
		p.feed = feed
		sink.On("ApplyPrices", mock.Anything).Return([]ledger.Quote{}, nil)

		// Act
		p.cycle(context.Background())

		// Assert
		assert.Positive(t, feed.peak.Load())
		assert.LessOrEqual(t, int(feed.peak.Load()), p.concurrency)
		sink.AssertCalled(t, "ApplyPrices", pricesEqual(map[string]string{
			"ADA": "1", "BTC": "1", "DOT": "1", "ETH": "1", "SOL": "1", "XRP": "1",
		}))
	})

	t.Run("All fetches failed", func(t *testing.T) {
		p, feed, sink, _ := setupPoller(NewTracker("BTC"))
		feed.On("CheckHealth").Return(nil)
		feed.On("GetPrice", "BTC").Return(decimal.Zero, errors.New("timeout"))

		p.cycle(context.Background())

		sink.AssertNotCalled(t, "ApplyPrices", mock.Anything)
		assert.True(t, p.tracker.Contains("BTC"))
	})

	t.Run("Delivery failure does not stop other alerts", func(t *testing.T) {
		p, feed, sink, notifier := setupPoller(NewTracker("BTC", "SOL"))
		feed.On("CheckHealth").Return(nil)
		feed.On("GetPrice", "BTC").Return(d("7"), nil)
		feed.On("GetPrice", "SOL").Return(d("50"), nil)
		sink.On("ApplyPrices", mock.Anything).Return([]ledger.Quote{
			{Symbol: "BTC", PositionID: 1, Amount: d("1"), EntryPrice: d("3"), BodyfixPrice: d("6"), Price: d("7")},
			{Symbol: "SOL", PositionID: 2, Amount: d("1"), EntryPrice: d("100"), BodyfixPrice: d("200"), Price: d("50")},
		}, nil)
		notifier.On("Notify", mock.Anything).Return(errors.New("chat not found")).Twice()

		p.cycle(context.Background())

		notifier.AssertExpectations(t)
	})

	t.Run("Sink failure", func(t *testing.T) {
		p, feed, sink, notifier := setupPoller(NewTracker("BTC"))
		feed.On("CheckHealth").Return(nil)
		feed.On("GetPrice", "BTC").Return(d("7"), nil)
		sink.On("ApplyPrices", mock.Anything).Return([]ledger.Quote(nil), errors.New("database is locked"))

		p.cycle(context.Background())

		notifier.AssertNotCalled(t, "Notify", mock.Anything)
	})
}

func TestPoller_StartStop(t *testing.T) {
	// Arrange
	tracker := NewTracker()
	p, feed, sink, notifier := setupPoller(tracker)
	applied := make(chan struct{}, 16)
	sink.On("TrackedSymbols").Return([]string{"btc"}, nil)
	feed.On("CheckHealth").Return(nil)
	feed.On("GetPrice", "BTC").Return(d("2"), nil)
	sink.On("ApplyPrices", mock.Anything).Return([]ledger.Quote{}, nil).Run(func(mock.Arguments) {
		select {
		case applied <- struct{}{}:
		default:
		}
	})

	// Act
	p.Start(context.Background())
	for i := 0; i < 2; i++ {
		select {
		case <-applied:
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not run a cycle")
		}
	}
	p.Stop()
	p.Stop()

	// Assert
	assert.True(t, tracker.Contains("BTC"))
	notifier.AssertNotCalled(t, "Notify", mock.Anything)
	sink.AssertCalled(t, "TrackedSymbols")
}

func TestPoller_StopCancelsInFlightFetch(t *testing.T) {
	// Arrange
	p, _, sink, _ := setupPoller(NewTracker())
	feed := &blockingFeed{started: make(chan string, 1)}
	p.feed = feed
	sink.On("TrackedSymbols").Return([]string{"BTC"}, nil)

	p.Start(context.Background())
	select {
	case <-feed.started:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not start fetching")
	}

	// Act
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		p.Stop()
	}()

	// Assert
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a fetch was blocked")
	}
	sink.AssertNotCalled(t, "ApplyPrices", mock.Anything)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	p, _, sink, _ := setupPoller(NewTracker())
	sink.On("TrackedSymbols").Return([]string(nil), errors.New("no database"))
	p.interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Equal(t, 0, p.tracker.Len())
}
