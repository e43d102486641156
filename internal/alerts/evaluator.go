// Package alerts turns price updates of open positions into take-profit
// and drawdown notifications.
package alerts

import (
	"fmt"
	"time"

	"cryptofolio-bot-go/internal/format"
	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Kind is the type of an alert.
type Kind string

const (
	TakeProfit Kind = "take_profit"
	Drawdown   Kind = "drawdown"
)

// PositionAction is the button data prefix used to open a position from an
// alert.
const PositionAction = "position"

// Event is a fired alert.
type Event struct {
	ID         string
	Kind       Kind
	Symbol     string
	PositionID uint
	Price      decimal.Decimal
	// Reference is the body-fix price for take-profit alerts and the price
	// the fall is measured from for drawdown alerts.
	Reference  decimal.Decimal
	EntryPrice decimal.Decimal
	// Fall is the percentage drop from Reference, drawdown alerts only.
	Fall decimal.Decimal
	At   time.Time
}

// Notification renders the event for the admin chat.
func (e Event) Notification() notify.Notification {
	var text string
	switch e.Kind {
	case TakeProfit:
		text = fmt.Sprintf("🎯 <b>%s</b> reached its body-fix price\n\nPrice: %s\nBody-fix: %s\nEntry: %s",
			e.Symbol, format.Price(e.Price), format.Price(e.Reference), format.Price(e.EntryPrice))
	default:
		text = fmt.Sprintf("📉 <b>%s</b> fell %s\n\nPrice: %s\nFrom: %s\nEntry: %s",
			e.Symbol, format.Percent(e.Fall), format.Price(e.Price), format.Price(e.Reference), format.Price(e.EntryPrice))
	}
	return notify.Notification{
		ID:   e.ID,
		Text: text,
		Action: &notify.Action{
			Label:  "Open position",
			Unique: PositionAction,
			Data:   fmt.Sprintf("%d", e.PositionID),
		},
	}
}

// Evaluator checks quotes against the take-profit and drawdown rules.
type Evaluator struct {
	logger    *zap.Logger
	state     *State
	threshold decimal.Decimal
	now       func() time.Time
}

// NewEvaluator creates an Evaluator. threshold is the drawdown step in
// percent.
func NewEvaluator(logger *zap.Logger, state *State, threshold decimal.Decimal) *Evaluator {
	return &Evaluator{
		logger:    logger.Named("alerts"),
		state:     state,
		threshold: threshold,
		now:       time.Now,
	}
}

// Evaluate returns the alerts fired by quotes and records them in the
// state, so the same condition does not fire twice. The state is updated
// whether or not the caller manages to deliver the alerts. Quotes taken
// before the last position change of their symbol are skipped.
func (e *Evaluator) Evaluate(quotes []ledger.Quote) []Event {
	s := e.state
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := hundred.Sub(e.threshold).Div(hundred)
	var events []Event
	for _, q := range quotes {
		if !q.Price.IsPositive() || s.stale(q.Symbol, q.Revision) {
			continue
		}

		if q.BodyfixPrice.IsPositive() && q.Price.GreaterThanOrEqual(q.BodyfixPrice) {
			if _, done := s.notified[q.Symbol]; !done {
				s.notified[q.Symbol] = struct{}{}
				events = append(events, e.event(TakeProfit, q, q.BodyfixPrice))
			}
		}

		if !q.EntryPrice.IsPositive() || q.Price.GreaterThan(q.EntryPrice.Mul(keep)) {
			continue
		}
		reference, stepped := s.lastDrawdown[q.Symbol]
		if stepped && q.Price.GreaterThan(reference.Mul(keep)) {
			continue
		}
		if !stepped {
			reference = q.EntryPrice
		}
		s.lastDrawdown[q.Symbol] = q.Price
		ev := e.event(Drawdown, q, reference)
		ev.Fall = reference.Sub(q.Price).Div(reference).Mul(hundred).Round(2)
		events = append(events, ev)
	}

	for _, ev := range events {
		e.logger.Info("Alert fired",
			zap.String("kind", string(ev.Kind)),
			zap.String("symbol", ev.Symbol),
			zap.String("price", ev.Price.String()),
			zap.String("reference", ev.Reference.String()),
		)
	}
	return events
}

func (e *Evaluator) event(kind Kind, q ledger.Quote, reference decimal.Decimal) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Symbol:     q.Symbol,
		PositionID: q.PositionID,
		Price:      q.Price,
		Reference:  reference,
		EntryPrice: q.EntryPrice,
		At:         e.now(),
	}
}

// PositionChanged clears the state of a symbol whose body-fix price was
// recomputed or whose position was closed.
func (e *Evaluator) PositionChanged(event ledger.PositionEvent) {
	switch event.Kind {
	case ledger.PositionOpened, ledger.PositionAveraged, ledger.PositionClosed:
		e.state.Reset(event.Symbol, event.Revision)
		e.logger.Debug("Alert state reset", zap.String("symbol", event.Symbol), zap.Stringer("change", event.Kind))
	}
}

var _ ledger.PositionListener = (*Evaluator)(nil)
