package database

import (
	"context"
	"fmt"

	"cryptofolio-bot-go/internal/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedToken struct {
	symbol string
	pct    int64
}

type seedSector struct {
	name   string
	pct    int64
	tokens []seedToken
}

// ones gives every symbol a 1% share.
func ones(symbols ...string) []seedToken {
	out := make([]seedToken, len(symbols))
	for i, s := range symbols {
		out[i] = seedToken{symbol: s, pct: 1}
	}
	return out
}

func tokens(weighted []seedToken, rest ...string) []seedToken {
	return append(weighted, ones(rest...)...)
}

var defaultDirections = []struct {
	name string
	pct  int64
}{
	{name: "Liquidity", pct: 60},
	{name: "Working Capital", pct: 40},
}

var defaultSectors = []seedSector{
	{name: "Layer 1", pct: 32, tokens: tokens([]seedToken{
		{"BTC", 30}, {"ETH", 17}, {"BNB", 8}, {"SOL", 5}, {"XRP", 4},
		{"TON", 3}, {"ADA", 3}, {"TRX", 2}, {"AVAX", 2}, {"DOT", 2},
	}, "XLM", "HBAR", "LTC", "SUI", "NEAR", "ATOM", "ICP", "ETC", "BCH", "ALGO", "SEI", "XTZ",
		"EGLD", "APT", "FIL", "CSPR", "KDA", "TIA", "KAVA", "ZETA", "KAS", "XEC", "BERA", "IP")},
	{name: "Layer 2", pct: 20, tokens: []seedToken{
		{"ARB", 17}, {"OP", 16}, {"STRK", 13}, {"IMX", 13}, {"MNT", 8}, {"STX", 8}, {"POL", 5},
		{"ZK", 5}, {"AEVO", 4}, {"MOVE", 4}, {"LRC", 3}, {"INJ", 3}, {"ALT", 1},
	}},
	{name: "DeFi", pct: 15, tokens: tokens([]seedToken{
		{"AAVE", 10}, {"UNI", 8}, {"LDO", 7}, {"DYDX", 6}, {"MKR", 5}, {"GMX", 5}, {"RPL", 5},
		{"COMP", 5}, {"CRV", 4}, {"SUSHI", 4}, {"FXS", 4}, {"SNX", 3}, {"1INCH", 3}, {"YFI", 3},
		{"UMA", 3}, {"AERO", 2}, {"JUP", 2}, {"ONDO", 2}, {"PENDLE", 2}, {"ENA", 2}, {"LAYER", 2},
		{"STG", 2}, {"WOO", 2},
	}, "ZRX", "DRIFT", "FIDA", "CPOOL", "SPELL", "OM", "MORPHO", "RUNE", "ETHFI")},
	{name: "AI", pct: 10, tokens: []seedToken{
		{"FET", 25}, {"RENDER", 25}, {"GRT", 32}, {"GRASS", 9}, {"VIRTUAL", 9},
	}},
	{name: "Oracle", pct: 10, tokens: []seedToken{
		{"LINK", 43}, {"PYTH", 27}, {"FLR", 11}, {"RED", 11}, {"SUPRA", 8},
	}},
	{name: "GameFi", pct: 5, tokens: []seedToken{
		{"AXS", 17}, {"SAND", 17}, {"MANA", 14}, {"FLOW", 11}, {"ENJ", 11}, {"GALA", 9},
		{"NOT", 7}, {"PRIME", 7}, {"G", 7},
	}},
	{name: "Memes", pct: 5, tokens: []seedToken{
		{"DOGE", 34}, {"SHIB", 27}, {"FLOKI", 16}, {"PEPE", 11}, {"BONK", 5}, {"POPCAT", 2},
		{"WIF", 2}, {"TRUMP", 1}, {"DOGS", 1}, {"MOG", 1},
	}},
	{name: "NFT", pct: 3, tokens: []seedToken{
		{"APE", 35}, {"BLUR", 29}, {"LOOKS", 18}, {"GODS", 12}, {"PENGU", 6},
	}},
}

// Seed creates the default strategy when no direction exists yet. It goes
// through the ledger so the defaults obey the same percentage rules as edits
// made from the chat.
func Seed(ctx context.Context, l *ledger.Ledger, logger *zap.Logger) error {
	existing, err := l.Directions(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing strategy: %w", err)
	}
	if len(existing) > 0 {
		logger.Debug("Strategy already present, skipping seed", zap.Int("directions", len(existing)))
		return nil
	}

	for _, dir := range defaultDirections {
		if _, err := l.AddDirection(ctx, dir.name, decimal.NewFromInt(dir.pct)); err != nil {
			return fmt.Errorf("failed to seed direction %s: %w", dir.name, err)
		}
	}

	count := 0
	for _, s := range defaultSectors {
		sector, err := l.AddSector(ctx, s.name, decimal.NewFromInt(s.pct))
		if err != nil {
			return fmt.Errorf("failed to seed sector %s: %w", s.name, err)
		}
		for _, tok := range s.tokens {
			if _, err := l.AddToken(ctx, sector.ID, tok.symbol, decimal.NewFromInt(tok.pct)); err != nil {
				return fmt.Errorf("failed to seed token %s: %w", tok.symbol, err)
			}
			count++
		}
	}

	logger.Info("Seeded default strategy",
		zap.Int("directions", len(defaultDirections)),
		zap.Int("sectors", len(defaultSectors)),
		zap.Int("tokens", count),
	)
	return nil
}
