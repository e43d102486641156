package ledger

import (
	"github.com/shopspring/decimal"
)

// PositionEventKind tells how a position changed.
type PositionEventKind int

const (
	PositionOpened PositionEventKind = iota + 1
	PositionAveraged
	PositionReduced
	PositionClosed
)

func (k PositionEventKind) String() string {
	switch k {
	case PositionOpened:
		return "opened"
	case PositionAveraged:
		return "averaged"
	case PositionReduced:
		return "reduced"
	case PositionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PositionEvent describes a committed change to a position.
type PositionEvent struct {
	Kind         PositionEventKind
	Symbol       string
	TokenID      uint
	PositionID   uint
	Amount       decimal.Decimal
	EntryPrice   decimal.Decimal
	BodyfixPrice decimal.Decimal
	// Revision orders the event against the quotes of ApplyPrices.
	Revision uint64
}

// PositionListener is notified after a position change has been committed,
// while the ledger still holds its writer lock. Implementations must not
// block or call back into the ledger.
type PositionListener interface {
	PositionChanged(event PositionEvent)
}

// PositionListenerFunc adapts a function to PositionListener.
type PositionListenerFunc func(event PositionEvent)

func (f PositionListenerFunc) PositionChanged(event PositionEvent) {
	f(event)
}

// AddListener registers pl for position events.
func (l *Ledger) AddListener(pl PositionListener) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, pl)
}

func (l *Ledger) emit(event PositionEvent) {
	l.listenersMu.RLock()
	defer l.listenersMu.RUnlock()
	for _, pl := range l.listeners {
		pl.PositionChanged(event)
	}
}
