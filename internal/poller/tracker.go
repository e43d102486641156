package poller

import (
	"sort"
	"sync"

	"cryptofolio-bot-go/internal/ledger"
)

// Tracker is the set of symbols the poller fetches prices for.
type Tracker struct {
	mu      sync.RWMutex
	symbols map[string]struct{}
}

// NewTracker creates a Tracker holding symbols.
func NewTracker(symbols ...string) *Tracker {
	t := &Tracker{symbols: make(map[string]struct{})}
	t.Seed(symbols)
	return t
}

// Seed adds every symbol in symbols.
func (t *Tracker) Seed(symbols []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range symbols {
		if s = ledger.NormalizeSymbol(s); s != "" {
			t.symbols[s] = struct{}{}
		}
	}
}

func (t *Tracker) Add(symbol string) {
	t.Seed([]string{symbol})
}

func (t *Tracker) Remove(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.symbols, ledger.NormalizeSymbol(symbol))
}

func (t *Tracker) Contains(symbol string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.symbols[ledger.NormalizeSymbol(symbol)]
	return ok
}

// List returns the tracked symbols in alphabetical order.
func (t *Tracker) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.symbols))
	for s := range t.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.symbols)
}

// PositionChanged starts tracking a symbol when its position opens and stops
// when it closes.
func (t *Tracker) PositionChanged(event ledger.PositionEvent) {
	switch event.Kind {
	case ledger.PositionOpened, ledger.PositionAveraged:
		t.Add(event.Symbol)
	case ledger.PositionClosed:
		t.Remove(event.Symbol)
	}
}

var _ ledger.PositionListener = (*Tracker)(nil)
