// Package telegram is the chat front-end of the ledger: one admin user
// drives deposits, the strategy and orders with slash commands, and
// receives alerts.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cryptofolio-bot-go/internal/alerts"
	"cryptofolio-bot-go/internal/config"
	"cryptofolio-bot-go/internal/format"
	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const defaultOrdersLimit = 10

// Portfolio is the part of the ledger the bot drives.
type Portfolio interface {
	Summary(ctx context.Context) (*ledger.Summary, error)
	Deposit(ctx context.Context, amount decimal.Decimal) (*ledger.DepositResult, error)
	Directions(ctx context.Context) ([]models.Direction, error)
	SetDirectionPercentage(ctx context.Context, name string, pct decimal.Decimal) error
	Sectors(ctx context.Context) ([]models.Sector, error)
	Sector(ctx context.Context, id uint) (*models.Sector, error)
	AddSector(ctx context.Context, name string, pct decimal.Decimal) (*models.Sector, error)
	SetSectorPercentage(ctx context.Context, id uint, pct decimal.Decimal) error
	DeleteSector(ctx context.Context, id uint) (decimal.Decimal, error)
	AddToken(ctx context.Context, sectorID uint, symbol string, pct decimal.Decimal) (*models.Token, error)
	SetTokenPercentage(ctx context.Context, symbol string, pct decimal.Decimal) error
	DeleteToken(ctx context.Context, symbol string) (decimal.Decimal, error)
	Buy(ctx context.Context, symbol string, amount, price decimal.Decimal) (*ledger.BuyResult, error)
	Sell(ctx context.Context, symbol string, amount decimal.Decimal) (*ledger.SellResult, error)
	Positions(ctx context.Context) ([]models.Position, error)
	Position(ctx context.Context, id uint) (*models.Position, error)
	Orders(ctx context.Context, limit int) ([]models.Order, error)
}

var _ Portfolio = (*ledger.Ledger)(nil)

// usageError is returned when a command got the wrong arguments.
type usageError string

func (e usageError) Error() string {
	return "usage: " + string(e)
}

// command runs a chat command and returns the HTML reply.
type command func(ctx context.Context, args []string) (string, error)

var (
	btnPortfolio = tele.Btn{Text: "💼 Portfolio", Unique: "portfolio"}
	btnPositions = tele.Btn{Text: "📋 Positions", Unique: "positions"}
	btnStrategy  = tele.Btn{Text: "🧭 Strategy", Unique: "strategy"}
	btnOrders    = tele.Btn{Text: "🧾 Orders", Unique: "orders"}
	btnPosition  = tele.Btn{Unique: alerts.PositionAction}
)

type Bot struct {
	bot       *tele.Bot
	portfolio Portfolio
	logger    *zap.Logger
	adminID   int64
}

// NewBot creates the bot and registers its handlers. It does not start
// polling.
func NewBot(cfg config.Telegram, portfolio Portfolio, logger *zap.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			logger.Error("Telegram handler failed", zap.Error(err))
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	b := newBot(portfolio, logger, cfg.AdminID)
	b.bot = tb
	b.setupHandlers()
	return b, nil
}

func newBot(portfolio Portfolio, logger *zap.Logger, adminID int64) *Bot {
	return &Bot{
		portfolio: portfolio,
		logger:    logger.Named("telegram"),
		adminID:   adminID,
	}
}

// Start polls Telegram for updates. It blocks until Stop is called.
func (b *Bot) Start() {
	b.logger.Info("Telegram bot started", zap.String("username", b.bot.Me.Username))
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
	b.logger.Info("Telegram bot stopped")
}

// Notifier returns a Notifier sending to the admin chat through this bot.
func (b *Bot) Notifier() *Notifier {
	return NewNotifier(b.bot, b.adminID, b.logger)
}

func (b *Bot) setupHandlers() {
	// Middleware for authorization
	b.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != b.adminID {
				b.logger.Warn("Rejected message from unknown user", zap.Int64("sender", senderID(c)))
				return c.Send("⛔ Unauthorized")
			}
			return next(c)
		}
	})

	// Commands
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/help", b.handleStart)
	b.bot.Handle("/portfolio", b.handle(b.cmdPortfolio))
	b.bot.Handle("/deposit", b.handle(b.cmdDeposit))
	b.bot.Handle("/strategy", b.handle(b.cmdStrategy))
	b.bot.Handle("/direction", b.handle(b.cmdDirection))
	b.bot.Handle("/sectors", b.handle(b.cmdSectors))
	b.bot.Handle("/addsector", b.handle(b.cmdAddSector))
	b.bot.Handle("/sectorpct", b.handle(b.cmdSectorPercentage))
	b.bot.Handle("/delsector", b.handle(b.cmdDeleteSector))
	b.bot.Handle("/tokens", b.handle(b.cmdTokens))
	b.bot.Handle("/addtoken", b.handle(b.cmdAddToken))
	b.bot.Handle("/tokenpct", b.handle(b.cmdTokenPercentage))
	b.bot.Handle("/deltoken", b.handle(b.cmdDeleteToken))
	b.bot.Handle("/buy", b.handle(b.cmdBuy))
	b.bot.Handle("/sell", b.handle(b.cmdSell))
	b.bot.Handle("/positions", b.handle(b.cmdPositions))
	b.bot.Handle("/position", b.handle(b.cmdPosition))
	b.bot.Handle("/orders", b.handle(b.cmdOrders))

	// Buttons
	b.bot.Handle(&btnPortfolio, b.handle(b.cmdPortfolio))
	b.bot.Handle(&btnPositions, b.handle(b.cmdPositions))
	b.bot.Handle(&btnStrategy, b.handle(b.cmdStrategy))
	b.bot.Handle(&btnOrders, b.handle(b.cmdOrders))
	b.bot.Handle(&btnPosition, b.handle(b.cmdPosition))
}

func senderID(c tele.Context) int64 {
	if c.Sender() == nil {
		return 0
	}
	return c.Sender().ID
}

const helpText = `🤖 <b>Cryptofolio</b>

/portfolio - totals
/deposit &lt;usd&gt; - credit and distribute a deposit
/strategy - directions and sectors
/direction &lt;name&gt; &lt;pct&gt; - change a direction
/sectors - list sectors
/addsector &lt;name&gt; &lt;pct&gt; - add a sector
/sectorpct &lt;id&gt; &lt;pct&gt; - change a sector
/delsector &lt;id&gt; - delete a sector and its tokens
/tokens &lt;sector id&gt; - list tokens of a sector
/addtoken &lt;sector id&gt; &lt;symbol&gt; &lt;pct&gt; - add a token
/tokenpct &lt;symbol&gt; &lt;pct&gt; - change a token
/deltoken &lt;symbol&gt; - delete a token
/buy &lt;symbol&gt; &lt;amount&gt; &lt;price&gt; - record a buy
/sell &lt;symbol&gt; &lt;amount&gt; - record a sell
/positions - open positions
/position &lt;id&gt; - position details
/orders [limit] - recent orders`

func (b *Bot) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnPortfolio, btnPositions),
		menu.Row(btnStrategy, btnOrders),
	)
	return c.Send(helpText, menu, tele.ModeHTML)
}

// handle adapts a command to a telebot handler. Callback buttons pass their
// data as the arguments.
func (b *Bot) handle(cmd command) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			_ = c.Respond()
		}
		text, err := cmd(context.Background(), c.Args())
		if err != nil {
			text = b.errorText(err)
		}
		return c.Send(text, tele.ModeHTML)
	}
}

// errorText turns an error into a reply. Rejections are shown to the user as
// they are; anything else is logged and hidden.
func (b *Bot) errorText(err error) string {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		return "ℹ️ Usage: " + esc(string(usage))
	case errors.Is(err, ErrInvalidNumber):
		return "⚠️ " + esc(err.Error()) + "\nPlease re-enter."
	case ledger.IsValidation(err):
		return "⚠️ " + esc(err.Error())
	default:
		b.logger.Error("Command failed", zap.Error(err))
		return "❌ Something went wrong, please try again later."
	}
}

func (b *Bot) cmdPortfolio(ctx context.Context, _ []string) (string, error) {
	s, err := b.portfolio.Summary(ctx)
	if err != nil {
		return "", err
	}
	return RenderSummary(s), nil
}

func (b *Bot) cmdDeposit(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/deposit <usd>")
	}
	amount, err := ParseAmount(args[0])
	if err != nil {
		return "", err
	}
	res, err := b.portfolio.Deposit(ctx, amount)
	if err != nil {
		return "", err
	}
	return RenderDeposit(res), nil
}

func (b *Bot) cmdStrategy(ctx context.Context, _ []string) (string, error) {
	directions, err := b.portfolio.Directions(ctx)
	if err != nil {
		return "", err
	}
	sectors, err := b.portfolio.Sectors(ctx)
	if err != nil {
		return "", err
	}
	return RenderStrategy(directions, sectors), nil
}

// cmdDirection takes the percentage last so names may contain spaces.
func (b *Bot) cmdDirection(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", usageError("/direction <name> <pct>")
	}
	name := strings.Join(args[:len(args)-1], " ")
	pct, err := ParsePercentage(args[len(args)-1])
	if err != nil {
		return "", err
	}
	if err := b.portfolio.SetDirectionPercentage(ctx, name, pct); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s set to %s", esc(name), format.Percent(pct)), nil
}

func (b *Bot) cmdSectors(ctx context.Context, _ []string) (string, error) {
	sectors, err := b.portfolio.Sectors(ctx)
	if err != nil {
		return "", err
	}
	return RenderSectors(sectors), nil
}

func (b *Bot) cmdAddSector(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", usageError("/addsector <name> <pct>")
	}
	pct, err := ParsePercentage(args[len(args)-1])
	if err != nil {
		return "", err
	}
	sector, err := b.portfolio.AddSector(ctx, strings.Join(args[:len(args)-1], " "), pct)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Sector #%d %s added with %s", sector.ID, esc(sector.Name), format.Percent(sector.Percentage)), nil
}

func (b *Bot) cmdSectorPercentage(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "", usageError("/sectorpct <id> <pct>")
	}
	id, err := ParseID(args[0])
	if err != nil {
		return "", err
	}
	pct, err := ParsePercentage(args[1])
	if err != nil {
		return "", err
	}
	if err := b.portfolio.SetSectorPercentage(ctx, id, pct); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Sector #%d set to %s", id, format.Percent(pct)), nil
}

func (b *Bot) cmdDeleteSector(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/delsector <id>")
	}
	id, err := ParseID(args[0])
	if err != nil {
		return "", err
	}
	refund, err := b.portfolio.DeleteSector(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🗑 Sector #%d deleted, %s returned to liquidity", id, format.USD(refund)), nil
}

func (b *Bot) cmdTokens(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/tokens <sector id>")
	}
	id, err := ParseID(args[0])
	if err != nil {
		return "", err
	}
	sector, err := b.portfolio.Sector(ctx, id)
	if err != nil {
		return "", err
	}
	return RenderSector(sector), nil
}

func (b *Bot) cmdAddToken(ctx context.Context, args []string) (string, error) {
	if len(args) != 3 {
		return "", usageError("/addtoken <sector id> <symbol> <pct>")
	}
	id, err := ParseID(args[0])
	if err != nil {
		return "", err
	}
	pct, err := ParsePercentage(args[2])
	if err != nil {
		return "", err
	}
	token, err := b.portfolio.AddToken(ctx, id, args[1], pct)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s added to sector #%d with %s", esc(token.Symbol), id, format.Percent(token.Percentage)), nil
}

func (b *Bot) cmdTokenPercentage(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "", usageError("/tokenpct <symbol> <pct>")
	}
	pct, err := ParsePercentage(args[1])
	if err != nil {
		return "", err
	}
	if err := b.portfolio.SetTokenPercentage(ctx, args[0], pct); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s set to %s", esc(ledger.NormalizeSymbol(args[0])), format.Percent(pct)), nil
}

func (b *Bot) cmdDeleteToken(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/deltoken <symbol>")
	}
	refund, err := b.portfolio.DeleteToken(ctx, args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🗑 %s deleted, %s returned to liquidity", esc(ledger.NormalizeSymbol(args[0])), format.USD(refund)), nil
}

func (b *Bot) cmdBuy(ctx context.Context, args []string) (string, error) {
	if len(args) != 3 {
		return "", usageError("/buy <symbol> <amount> <price>")
	}
	amount, err := ParseQuantity(args[1])
	if err != nil {
		return "", err
	}
	price, err := ParseQuantity(args[2])
	if err != nil {
		return "", err
	}
	res, err := b.portfolio.Buy(ctx, args[0], amount, price)
	if err != nil {
		return "", err
	}
	return RenderBuy(res), nil
}

func (b *Bot) cmdSell(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "", usageError("/sell <symbol> <amount>")
	}
	amount, err := ParseQuantity(args[1])
	if err != nil {
		return "", err
	}
	res, err := b.portfolio.Sell(ctx, args[0], amount)
	if err != nil {
		return "", err
	}
	return RenderSell(res), nil
}

func (b *Bot) cmdPositions(ctx context.Context, _ []string) (string, error) {
	positions, err := b.portfolio.Positions(ctx)
	if err != nil {
		return "", err
	}
	return RenderPositions(positions), nil
}

func (b *Bot) cmdPosition(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError("/position <id>")
	}
	id, err := ParseID(args[0])
	if err != nil {
		return "", err
	}
	p, err := b.portfolio.Position(ctx, id)
	if err != nil {
		return "", err
	}
	return RenderPosition(p), nil
}

func (b *Bot) cmdOrders(ctx context.Context, args []string) (string, error) {
	limit := defaultOrdersLimit
	if len(args) > 0 && args[0] != "" {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return "", usageError("/orders [limit]")
		}
		limit = n
	}
	orders, err := b.portfolio.Orders(ctx, limit)
	if err != nil {
		return "", err
	}
	return RenderOrders(orders), nil
}
