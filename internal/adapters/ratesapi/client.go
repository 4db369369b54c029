// Package ratesapi implements the market data gateway against an HTTP
// foreign exchange quote service.
package ratesapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

// Client implements ports.MarketDataGateway over the quote service's REST
// API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     ports.Logger
}

// Config holds configuration for the rates API client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // Per-request timeout; the caller's context still applies
	Logger  ports.Logger
}

// New creates a rates API client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for rates API client")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: rates API base URL is required", ports.ErrConfiguration)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid rates API base URL: %v", ports.ErrConfiguration, err)
	}
	if cfg.APIKey == "" {
		cfg.Logger.Warn(context.Background(), "Rates API key is empty, requests may be rejected")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}, nil
}

// quoteResponse is the wire format of the latest-rate endpoint.
type quoteResponse struct {
	Base      string    `json:"base"`
	Quote     string    `json:"quote"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Rate      float64   `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}

// FetchLatest retrieves the most recent quote for a pair. Rate limiting,
// server outages and deadlines are mapped to the matching sentinels so the
// control loop can classify the failure without parsing messages.
func (c *Client) FetchLatest(ctx context.Context, pair domain.CurrencyPair) (domain.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/v1/rates/latest?base=%s&quote=%s",
		c.baseURL, url.QueryEscape(pair.Base), url.QueryEscape(pair.Quote))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("%w: failed to build request for %s: %v", ports.ErrDataFetch, pair, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PricePoint{}, c.classifyTransportError(ctx, err, pair)
	}
	defer resp.Body.Close()

	if err := c.classifyStatus(ctx, resp, pair); err != nil {
		return domain.PricePoint{}, err
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return domain.PricePoint{}, fmt.Errorf("%w: failed to decode quote for %s: %v", ports.ErrDataFetch, pair, err)
	}

	point, err := toPricePoint(pair, quote)
	if err != nil {
		return domain.PricePoint{}, err
	}

	c.logger.Debug(ctx, "Quote fetched", map[string]interface{}{
		"pair": pair.String(),
		"bid":  point.Bid,
		"ask":  point.Ask,
		"ts":   point.Timestamp,
	})
	return point, nil
}

func (c *Client) classifyTransportError(ctx context.Context, err error, pair domain.CurrencyPair) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: quote request for %s: %v", ports.ErrTimeout, pair, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: quote request for %s: %v", ports.ErrContextCanceled, pair, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: quote request for %s: %v", ports.ErrTimeout, pair, err)
	}
	c.logger.Error(ctx, err, "Quote request failed", map[string]interface{}{"pair": pair.String()})
	return fmt.Errorf("%w: quote request for %s: %v", ports.ErrGatewayUnavailable, pair, err)
}

func (c *Client) classifyStatus(ctx context.Context, resp *http.Response, pair domain.CurrencyPair) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	fields := map[string]interface{}{
		"pair":   pair.String(),
		"status": resp.StatusCode,
		"body":   string(body),
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn(ctx, "Rates API rate limit hit", fields)
		return fmt.Errorf("%w: quote for %s: HTTP %d", ports.ErrRateLimited, pair, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: rates API rejected credentials: HTTP %d", ports.ErrConfiguration, resp.StatusCode)
	case resp.StatusCode >= 500:
		c.logger.Warn(ctx, "Rates API unavailable", fields)
		return fmt.Errorf("%w: quote for %s: HTTP %d", ports.ErrGatewayUnavailable, pair, resp.StatusCode)
	default:
		return fmt.Errorf("%w: quote for %s: HTTP %d: %s", ports.ErrDataFetch, pair, resp.StatusCode, body)
	}
}

func toPricePoint(pair domain.CurrencyPair, quote quoteResponse) (domain.PricePoint, error) {
	if quote.Timestamp.IsZero() {
		return domain.PricePoint{}, fmt.Errorf("%w: quote for %s has no timestamp", ports.ErrDataFetch, pair)
	}
	bid, ask := quote.Bid, quote.Ask
	if bid <= 0 && ask <= 0 {
		if quote.Rate <= 0 {
			return domain.PricePoint{}, fmt.Errorf("%w: quote for %s has no usable rate", ports.ErrDataFetch, pair)
		}
		// Sources without a bid/ask spread publish a single rate.
		bid, ask = quote.Rate, quote.Rate
	}
	return domain.PricePoint{
		Pair:      pair,
		Timestamp: quote.Timestamp.UTC(),
		Bid:       bid,
		Ask:       ask,
	}, nil
}
