package bybit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptofolio-bot-go/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.bybit.com"
	// retCodeParamsError covers any invalid request parameter, unknown
	// symbols included.
	retCodeParamsError = 10001
)

// ErrSymbolNotFound is returned when Bybit does not list the symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// APIError is a response Bybit rejected with a non-zero retCode.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit error %d: %s", e.Code, e.Message)
}

// RestClientInterface defines the Bybit market endpoints the bot uses.
type RestClientInterface interface {
	CheckHealth(ctx context.Context) error
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// RestClient is a client for the Bybit v5 public market API.
// It implements the RestClientInterface.
type RestClient struct {
	client   *resty.Client
	logger   *zap.Logger
	limiter  *rate.Limiter
	category string
	quote    string
	backoff  time.Duration
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Bybit REST API client.
func NewRestClient(cfg *config.Feed, logger *zap.Logger) *RestClient {
	url := cfg.BaseURL
	if url == "" {
		url = defaultBaseURL
	}
	logger = logger.Named("bybit")
	logger.Info("Using Bybit market API", zap.String("base_url", url), zap.String("category", cfg.Category))

	client := resty.New().
		SetBaseURL(url).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:   client,
		logger:   logger,
		limiter:  limiter,
		category: cfg.Category,
		quote:    cfg.Quote,
		backoff:  time.Second,
	}
}

// envelope is the common shape of every v5 response.
type envelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type serverTime struct {
	TimeSecond string `json:"timeSecond"`
	TimeNano   string `json:"timeNano"`
}

// Ticker is a single entry of the /v5/market/tickers response.
type Ticker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

type tickers struct {
	Category string   `json:"category"`
	List     []Ticker `json:"list"`
}

// CheckHealth asks Bybit for its server time. Any failure means the feed
// should not be polled this cycle.
func (c *RestClient) CheckHealth(ctx context.Context) error {
	var out envelope[serverTime]
	req := c.client.R().SetResult(&out)

	if _, err := c.doRequest(ctx, http.MethodGet, "/v5/market/time", req); err != nil {
		return fmt.Errorf("failed to get server time: %w", err)
	}
	if out.RetCode != 0 {
		return fmt.Errorf("failed to get server time: %w", &APIError{Code: out.RetCode, Message: out.RetMsg})
	}
	return nil
}

// GetPrice returns the last traded price of symbol against the configured
// quote currency.
func (c *RestClient) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair := strings.ToUpper(symbol) + c.quote

	var out envelope[tickers]
	req := c.client.R().
		SetQueryParams(map[string]string{
			"category": c.category,
			"symbol":   pair,
		}).
		SetResult(&out)

	if _, err := c.doRequest(ctx, http.MethodGet, "/v5/market/tickers", req); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get ticker %s: %w", pair, err)
	}
	if out.RetCode == retCodeParamsError && rejectsSymbol(out.RetMsg, pair) {
		return decimal.Zero, fmt.Errorf("%w: %s (%s)", ErrSymbolNotFound, pair, out.RetMsg)
	}
	if out.RetCode != 0 {
		return decimal.Zero, fmt.Errorf("failed to get ticker %s: %w", pair, &APIError{Code: out.RetCode, Message: out.RetMsg})
	}
	if len(out.Result.List) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrSymbolNotFound, pair)
	}

	price, err := decimal.NewFromString(out.Result.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q for %s: %w", out.Result.List[0].LastPrice, pair, err)
	}
	return price, nil
}

// rejectsSymbol reports whether a params error blames the symbol rather than
// another parameter such as the category.
func rejectsSymbol(msg, pair string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, strings.ToLower(pair)) || strings.Contains(msg, "symbol")
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	req.SetContext(ctx)
	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.RawResponse != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == http.StatusForbidden {
				// Bybit answers 403 when the IP rate limit is hit.
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
			if !shouldRetry {
				return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if i == maxRetries-1 {
			break
		}
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil && resp != nil {
		err = fmt.Errorf("status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
