// Package digest sends a scheduled summary of the portfolio to the admin.
package digest

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"cryptofolio-bot-go/internal/format"
	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/models"
	"cryptofolio-bot-go/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source provides the figures of the digest.
type Source interface {
	Summary(ctx context.Context) (*ledger.Summary, error)
	Positions(ctx context.Context) ([]models.Position, error)
}

var _ Source = (*ledger.Ledger)(nil)

type Job struct {
	logger   *zap.Logger
	source   Source
	notifier notify.Notifier
	now      func() time.Time
}

func NewJob(logger *zap.Logger, source Source, notifier notify.Notifier) *Job {
	return &Job{
		logger:   logger.Named("digest"),
		source:   source,
		notifier: notifier,
		now:      time.Now,
	}
}

// Schedule registers the job on r.
func (j *Job) Schedule(r *Runner, spec string) error {
	if _, err := r.Add(spec, j.Run); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	j.logger.Info("Digest scheduled", zap.String("schedule", spec))
	return nil
}

// Run builds and sends one digest. Failures are logged.
func (j *Job) Run(ctx context.Context) {
	if err := j.send(ctx); err != nil {
		j.logger.Error("Failed to send digest", zap.Error(err))
	}
}

func (j *Job) send(ctx context.Context) error {
	summary, err := j.source.Summary(ctx)
	if err != nil {
		return fmt.Errorf("failed to load summary: %w", err)
	}
	positions, err := j.source.Positions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}
	return j.notifier.Notify(ctx, notify.Notification{
		ID:   uuid.NewString(),
		Text: Render(j.now(), summary, positions),
	})
}

// Render formats the digest as Telegram HTML. Positions are listed by
// unrealized result, best first.
func Render(at time.Time, s *ledger.Summary, positions []models.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓 <b>Daily digest</b> %s\n\n", at.Format("2006-01-02"))
	fmt.Fprintf(&b, "Total: %s\n", format.USD(s.TotalUSD))
	fmt.Fprintf(&b, "Liquidity: %s\n", format.USD(s.LiquidityUSD))
	fmt.Fprintf(&b, "Invested: %s, market value %s\n", format.USD(s.InvestedUSD), format.USD(s.MarketValueUSD))

	if len(positions) == 0 {
		b.WriteString("\nNo open positions.")
		return b.String()
	}

	type row struct {
		name string
		pnl  decimal.Decimal
	}
	rows := make([]row, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, row{name: p.Name, pnl: p.TotalUSD.Sub(p.InvestedUSD)})
	}
	sort.SliceStable(rows, func(i, k int) bool { return rows[i].pnl.GreaterThan(rows[k].pnl) })

	b.WriteString("\n")
	for _, r := range rows {
		sign := "+"
		pnl := r.pnl
		if pnl.IsNegative() {
			sign = "-"
			pnl = pnl.Neg()
		}
		fmt.Fprintf(&b, "• %s %s%s\n", html.EscapeString(r.name), sign, format.USD(pnl))
	}
	return strings.TrimRight(b.String(), "\n")
}
