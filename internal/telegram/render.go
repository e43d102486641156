package telegram

import (
	"fmt"
	"html"
	"strings"

	"cryptofolio-bot-go/internal/format"
	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
)

// Messages are rendered as Telegram HTML. Every user-supplied name goes
// through html.EscapeString.

func esc(s string) string {
	return html.EscapeString(s)
}

func RenderSummary(s *ledger.Summary) string {
	var b strings.Builder
	b.WriteString("💼 <b>Portfolio</b>\n\n")
	fmt.Fprintf(&b, "Deposited: %s\n", format.USD(s.DepositedUSD))
	fmt.Fprintf(&b, "Liquidity: %s\n", format.USD(s.LiquidityUSD))
	fmt.Fprintf(&b, "Token balances: %s\n", format.USD(s.TokensUSD))
	fmt.Fprintf(&b, "Invested: %s in %d positions\n", format.USD(s.InvestedUSD), s.Positions)
	fmt.Fprintf(&b, "Market value: %s (%s)\n", format.USD(s.MarketValueUSD), signedUSD(s.UnrealizedUSD))
	fmt.Fprintf(&b, "\n<b>Total: %s</b>", format.USD(s.TotalUSD))
	return b.String()
}

func signedUSD(v decimal.Decimal) string {
	if v.IsNegative() {
		return "-" + format.USD(v.Neg())
	}
	return "+" + format.USD(v)
}

func RenderStrategy(directions []models.Direction, sectors []models.Sector) string {
	var b strings.Builder
	b.WriteString("🧭 <b>Directions</b>\n")
	for _, d := range directions {
		fmt.Fprintf(&b, "• %s: %s, %s\n", esc(d.Name), format.Percent(d.Percentage), format.USD(d.BalanceUSD))
	}
	b.WriteString("\n")
	b.WriteString(RenderSectors(sectors))
	return b.String()
}

// RenderSectors lists sectors with their ids and the percentage still
// unassigned.
func RenderSectors(sectors []models.Sector) string {
	var b strings.Builder
	b.WriteString("🗂 <b>Sectors</b>\n")
	if len(sectors) == 0 {
		b.WriteString("No sectors yet. Add one with /addsector &lt;name&gt; &lt;pct&gt;")
		return b.String()
	}
	used := decimal.Zero
	for _, s := range sectors {
		used = used.Add(s.Percentage)
		fmt.Fprintf(&b, "#%d %s: %s, %d tokens, %s\n", s.ID, esc(s.Name), format.Percent(s.Percentage), len(s.Tokens), format.USD(s.BalanceUSD))
	}
	if free := hundred.Sub(used); !free.IsZero() {
		fmt.Fprintf(&b, "\n⚠️ Unassigned: %s", format.Percent(free))
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderSector(s *models.Sector) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗂 <b>%s</b> (#%d), %s\n\n", esc(s.Name), s.ID, format.Percent(s.Percentage))
	if len(s.Tokens) == 0 {
		b.WriteString("No tokens yet.")
		return b.String()
	}
	used := decimal.Zero
	for _, t := range s.Tokens {
		used = used.Add(t.Percentage)
		fmt.Fprintf(&b, "• <b>%s</b> %s: %s (entry %s)", esc(t.Symbol), format.Percent(t.Percentage), format.USD(t.BalanceUSD), format.USD(t.BalanceEntryUSD))
		if t.Position != nil {
			b.WriteString(" 📌")
		}
		b.WriteString("\n")
	}
	if free := hundred.Sub(used); !free.IsZero() {
		fmt.Fprintf(&b, "\n⚠️ Unassigned: %s", format.Percent(free))
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderPosition(p *models.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 <b>%s</b> (#%d)\n\n", esc(p.Name), p.ID)
	fmt.Fprintf(&b, "Amount: %s\n", format.Number(p.Amount))
	fmt.Fprintf(&b, "Entry price: %s\n", format.Price(p.EntryPrice))
	fmt.Fprintf(&b, "Body-fix price: %s\n", format.Price(p.BodyfixPriceUSD))
	if p.Token != nil && p.Token.CurrentPriceUSD.IsPositive() {
		fmt.Fprintf(&b, "Current price: %s\n", format.Price(p.Token.CurrentPriceUSD))
	}
	fmt.Fprintf(&b, "Invested: %s\n", format.USD(p.InvestedUSD))
	fmt.Fprintf(&b, "Value: %s", format.USD(p.TotalUSD))
	return b.String()
}

func RenderPositions(positions []models.Position) string {
	if len(positions) == 0 {
		return "📋 No open positions"
	}
	var b strings.Builder
	b.WriteString("📋 <b>Open positions</b>\n\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "#%d <b>%s</b> %s @ %s, value %s\n", p.ID, esc(p.Name), format.Number(p.Amount), format.Price(p.EntryPrice), format.USD(p.TotalUSD))
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderOrders(orders []models.Order) string {
	if len(orders) == 0 {
		return "🧾 No orders yet"
	}
	var b strings.Builder
	b.WriteString("🧾 <b>Recent orders</b>\n\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "%s %s, %s", o.CreatedAt.Format("2006-01-02 15:04"), esc(o.Name), format.Number(o.Amount))
		if o.Type == models.OrderBuy {
			fmt.Fprintf(&b, " @ %s", format.Price(o.EntryPrice))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderDeposit(r *ledger.DepositResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Deposited %s\n\n", format.USD(r.Deposit.AmountUSD))
	for i, d := range r.Tree.Directions {
		fmt.Fprintf(&b, "• %s: +%s\n", esc(d.Name), format.USD(r.Allocation.Directions[i]))
	}
	for i, s := range r.Tree.Sectors {
		if r.Allocation.Sectors[i].IsZero() {
			continue
		}
		fmt.Fprintf(&b, "  ◦ %s: +%s\n", esc(s.Name), format.USD(r.Allocation.Sectors[i]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderBuy(r *ledger.BuyResult) string {
	var b strings.Builder
	verb := "Added to"
	if r.Opened {
		verb = "Opened"
	}
	fmt.Fprintf(&b, "🟢 %s <b>%s</b>\n\n", verb, esc(r.Position.Name))
	fmt.Fprintf(&b, "Order: %s\n", esc(r.Order.Name))
	fmt.Fprintf(&b, "Bought %s @ %s\n", format.Number(r.Order.Amount), format.Price(r.Order.EntryPrice))
	fmt.Fprintf(&b, "Paid from token: %s\n", format.USD(r.TokenFunded))
	if r.LiquidityFunded.IsPositive() {
		fmt.Fprintf(&b, "Paid from liquidity: %s\n", format.USD(r.LiquidityFunded))
	}
	fmt.Fprintf(&b, "\nAmount: %s\nEntry price: %s\nBody-fix price: %s",
		format.Number(r.Position.Amount), format.Price(r.Position.EntryPrice), format.Price(r.Position.BodyfixPriceUSD))
	return b.String()
}

func RenderSell(r *ledger.SellResult) string {
	if r.Closed {
		return fmt.Sprintf("🔴 Sold %s, position closed\n\nOrder: %s", format.Number(r.Order.Amount), esc(r.Order.Name))
	}
	return fmt.Sprintf("🟠 Sold %s of <b>%s</b>\n\nOrder: %s\nRemaining: %s\nInvested: %s",
		format.Number(r.Order.Amount), esc(r.Position.Name), esc(r.Order.Name),
		format.Number(r.Position.Amount), format.USD(r.Position.InvestedUSD))
}
