package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cryptofolio-bot-go/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DirectionColumn is a direction value that can be read on its own.
type DirectionColumn string

const (
	DirectionPercentage DirectionColumn = "percentage"
	DirectionBalance    DirectionColumn = "balance_usd"
)

// SectorColumn is a sector value that can be read on its own.
type SectorColumn string

const (
	SectorPercentage SectorColumn = "percentage"
	SectorBalance    SectorColumn = "balance_usd"
)

// TokenColumn is a token value that can be read on its own.
type TokenColumn string

const (
	TokenPercentage   TokenColumn = "percentage"
	TokenBalance      TokenColumn = "balance_usd"
	TokenEntryBalance TokenColumn = "balance_entry_usd"
	TokenPrice        TokenColumn = "current_coinprice_usd"
)

// PositionColumn is a position value that can be read on its own.
type PositionColumn string

const (
	PositionAmount       PositionColumn = "amount"
	PositionEntryPrice   PositionColumn = "entry_price"
	PositionInvested     PositionColumn = "invested_usd"
	PositionBodyfixPrice PositionColumn = "bodyfix_price_usd"
	PositionTotal        PositionColumn = "total_usd"
)

// Repository provides typed lookups of ledger entities. Missing rows are
// reported as a ValidationError of kind KindNotFound.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository over db, which may be a transaction.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) first(ctx context.Context, dest any, entity, key string, query string, args ...any) error {
	err := r.db.WithContext(ctx).Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errNotFound(entity, key)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s %q: %w", entity, key, err)
	}
	return nil
}

func (r *Repository) column(ctx context.Context, model any, column, entity, key string, query string, args ...any) (decimal.Decimal, error) {
	var value decimal.Decimal
	err := r.db.WithContext(ctx).Model(model).Where(query, args...).Select(column).Row().Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, errNotFound(entity, key)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read %s of %s %q: %w", column, entity, key, err)
	}
	return value, nil
}

// DirectionByID loads a direction.
func (r *Repository) DirectionByID(ctx context.Context, id uint) (*models.Direction, error) {
	var d models.Direction
	if err := r.first(ctx, &d, "direction", idKey(id), "id = ?", id); err != nil {
		return nil, err
	}
	return &d, nil
}

// DirectionByName loads a direction.
func (r *Repository) DirectionByName(ctx context.Context, name string) (*models.Direction, error) {
	var d models.Direction
	if err := r.first(ctx, &d, "direction", name, "name = ?", name); err != nil {
		return nil, err
	}
	return &d, nil
}

// DirectionValue reads one column of the direction called name.
func (r *Repository) DirectionValue(ctx context.Context, name string, column DirectionColumn) (decimal.Decimal, error) {
	switch column {
	case DirectionPercentage, DirectionBalance:
	default:
		return decimal.Zero, fmt.Errorf("unknown direction column %q", column)
	}
	return r.column(ctx, &models.Direction{}, string(column), "direction", name, "name = ?", name)
}

// SectorByID loads a sector with its tokens.
func (r *Repository) SectorByID(ctx context.Context, id uint) (*models.Sector, error) {
	var s models.Sector
	if err := r.withTokens().first(ctx, &s, "sector", idKey(id), "id = ?", id); err != nil {
		return nil, err
	}
	return &s, nil
}

// SectorByName loads a sector with its tokens.
func (r *Repository) SectorByName(ctx context.Context, name string) (*models.Sector, error) {
	var s models.Sector
	if err := r.withTokens().first(ctx, &s, "sector", name, "name = ?", name); err != nil {
		return nil, err
	}
	return &s, nil
}

// SectorValue reads one column of a sector.
func (r *Repository) SectorValue(ctx context.Context, id uint, column SectorColumn) (decimal.Decimal, error) {
	switch column {
	case SectorPercentage, SectorBalance:
	default:
		return decimal.Zero, fmt.Errorf("unknown sector column %q", column)
	}
	return r.column(ctx, &models.Sector{}, string(column), "sector", idKey(id), "id = ?", id)
}

// TokenByID loads a token with its position, if any.
func (r *Repository) TokenByID(ctx context.Context, id uint) (*models.Token, error) {
	var t models.Token
	if err := r.withPosition().first(ctx, &t, "token", idKey(id), "id = ?", id); err != nil {
		return nil, err
	}
	return &t, nil
}

// TokenBySymbol loads a token with its position, if any. Symbols are
// matched case-insensitively.
func (r *Repository) TokenBySymbol(ctx context.Context, symbol string) (*models.Token, error) {
	symbol = NormalizeSymbol(symbol)
	var t models.Token
	if err := r.withPosition().first(ctx, &t, "token", symbol, "symbol = ?", symbol); err != nil {
		return nil, err
	}
	return &t, nil
}

// TokenValue reads one column of a token.
func (r *Repository) TokenValue(ctx context.Context, symbol string, column TokenColumn) (decimal.Decimal, error) {
	switch column {
	case TokenPercentage, TokenBalance, TokenEntryBalance, TokenPrice:
	default:
		return decimal.Zero, fmt.Errorf("unknown token column %q", column)
	}
	symbol = NormalizeSymbol(symbol)
	return r.column(ctx, &models.Token{}, string(column), "token", symbol, "symbol = ?", symbol)
}

// PositionByID loads a position with its token.
func (r *Repository) PositionByID(ctx context.Context, id uint) (*models.Position, error) {
	var p models.Position
	if err := r.withToken().first(ctx, &p, "position", idKey(id), "id = ?", id); err != nil {
		return nil, err
	}
	return &p, nil
}

// PositionByName loads a position with its token.
func (r *Repository) PositionByName(ctx context.Context, name string) (*models.Position, error) {
	name = NormalizeSymbol(name)
	var p models.Position
	if err := r.withToken().first(ctx, &p, "position", name, "name = ?", name); err != nil {
		return nil, err
	}
	return &p, nil
}

// PositionValue reads one column of a position.
func (r *Repository) PositionValue(ctx context.Context, id uint, column PositionColumn) (decimal.Decimal, error) {
	switch column {
	case PositionAmount, PositionEntryPrice, PositionInvested, PositionBodyfixPrice, PositionTotal:
	default:
		return decimal.Zero, fmt.Errorf("unknown position column %q", column)
	}
	return r.column(ctx, &models.Position{}, string(column), "position", idKey(id), "id = ?", id)
}

func (r *Repository) withTokens() *Repository {
	return &Repository{db: r.db.Preload("Tokens", orderByID)}
}

func (r *Repository) withPosition() *Repository {
	return &Repository{db: r.db.Preload("Position")}
}

func (r *Repository) withToken() *Repository {
	return &Repository{db: r.db.Preload("Token")}
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id asc")
}

func idKey(id uint) string {
	return "#" + strconv.FormatUint(uint64(id), 10)
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
