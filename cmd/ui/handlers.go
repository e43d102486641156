package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/models"
	"go.uber.org/zap"
)

const (
	defaultOrdersLimit = 50
	maxOrdersLimit     = 500
)

// Reader is the read side of the ledger served by the dashboard.
type Reader interface {
	Summary(ctx context.Context) (*ledger.Summary, error)
	Directions(ctx context.Context) ([]models.Direction, error)
	Sectors(ctx context.Context) ([]models.Sector, error)
	Positions(ctx context.Context) ([]models.Position, error)
	Orders(ctx context.Context, limit int) ([]models.Order, error)
}

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log    *zap.Logger
	reader Reader
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, reader Reader) *APIHandler {
	return &APIHandler{log: log, reader: reader}
}

// Routes returns the dashboard's mux.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthHandler)
	mux.HandleFunc("GET /api/portfolio", h.PortfolioHandler)
	mux.HandleFunc("GET /api/strategy", h.StrategyHandler)
	mux.HandleFunc("GET /api/positions", h.PositionsHandler)
	mux.HandleFunc("GET /api/orders", h.OrdersHandler)
	return mux
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// PortfolioHandler returns the portfolio totals.
func (h *APIHandler) PortfolioHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reader.Summary(r.Context())
	if err != nil {
		h.fail(w, "Failed to get portfolio summary", err)
		return
	}
	writeJSON(w, summary)
}

// StrategyResponse is the structure for the /api/strategy endpoint.
type StrategyResponse struct {
	Directions []models.Direction `json:"directions"`
	Sectors    []models.Sector    `json:"sectors"`
}

// StrategyHandler returns the allocation tree.
func (h *APIHandler) StrategyHandler(w http.ResponseWriter, r *http.Request) {
	directions, err := h.reader.Directions(r.Context())
	if err != nil {
		h.fail(w, "Failed to get directions", err)
		return
	}
	sectors, err := h.reader.Sectors(r.Context())
	if err != nil {
		h.fail(w, "Failed to get sectors", err)
		return
	}
	writeJSON(w, StrategyResponse{Directions: directions, Sectors: sectors})
}

// PositionsHandler returns every open position.
func (h *APIHandler) PositionsHandler(w http.ResponseWriter, r *http.Request) {
	positions, err := h.reader.Positions(r.Context())
	if err != nil {
		h.fail(w, "Failed to get positions", err)
		return
	}
	writeJSON(w, positions)
}

// OrdersHandler returns the most recent orders first. ?limit= caps the count.
func (h *APIHandler) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrdersLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxOrdersLimit)
	}

	orders, err := h.reader.Orders(r.Context(), limit)
	if err != nil {
		h.fail(w, "Failed to get orders", err)
		return
	}
	writeJSON(w, orders)
}

func (h *APIHandler) fail(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
