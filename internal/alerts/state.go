package alerts

import (
	"sync"

	"github.com/shopspring/decimal"
)

// State is the de-duplication memory of the evaluator, keyed by symbol.
// It lives in memory only and starts empty after a restart.
type State struct {
	mu           sync.Mutex
	notified     map[string]struct{}
	lastDrawdown map[string]decimal.Decimal
	// resetAt is the ledger revision of the last reset per symbol. Quotes
	// taken before it describe a position that no longer exists.
	resetAt map[string]uint64
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		notified:     make(map[string]struct{}),
		lastDrawdown: make(map[string]decimal.Decimal),
		resetAt:      make(map[string]uint64),
	}
}

// TakeProfitNotified reports whether the take-profit alert of symbol has
// fired for the current body-fix price.
func (s *State) TakeProfitNotified(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notified[symbol]
	return ok
}

// LastDrawdown returns the price of the last drawdown alert of symbol.
func (s *State) LastDrawdown(symbol string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.lastDrawdown[symbol]
	return price, ok
}

// Reset forgets everything about symbol as of the ledger revision.
func (s *State) Reset(symbol string, revision uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notified, symbol)
	delete(s.lastDrawdown, symbol)
	if revision > s.resetAt[symbol] {
		s.resetAt[symbol] = revision
	}
}

// stale reports whether a quote taken at revision predates the last reset
// of symbol. Callers hold s.mu.
func (s *State) stale(symbol string, revision uint64) bool {
	return revision < s.resetAt[symbol]
}
