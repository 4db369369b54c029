package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

// Broker implements ports.ExecutionGateway against the brokerage's REST
// order API.
type Broker struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	logger     ports.Logger
}

// BrokerConfig holds configuration for the live broker gateway.
type BrokerConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	Logger    ports.Logger
}

// NewBroker creates a live execution gateway.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for broker gateway")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: broker base URL is required", ports.ErrConfiguration)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: broker API credentials are required for live trading", ports.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Broker{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}, nil
}

// orderPayload is the wire format of the order endpoint.
type orderPayload struct {
	ClientID string `json:"client_id"`
	Pair     string `json:"pair"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
	Type     string `json:"type"`
}

type orderResponse struct {
	ClientID    string    `json:"client_id"`
	Status      string    `json:"status"`
	FillPrice   float64   `json:"fill_price"`
	ExecutedQty string    `json:"executed_qty"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// SubmitOrder places a market order. The client ID doubles as the
// brokerage's idempotency key, so a retried request cannot double-fill.
// A rejection reported by the brokerage comes back as a rejected outcome;
// transport failures come back as errors with the order state unknown.
func (b *Broker) SubmitOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderOutcome, error) {
	payload := orderPayload{
		ClientID: req.ClientID,
		Pair:     req.Pair.String(),
		Side:     string(req.Side),
		Quantity: req.Quantity.String(),
		Type:     "market",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode order %s: %v", ports.ErrExecutionFailed, req.ClientID, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build order request %s: %v", ports.ErrExecutionFailed, req.ClientID, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", b.apiKey)
	httpReq.Header.Set("X-API-Secret", b.apiSecret)
	httpReq.Header.Set("X-Idempotency-Key", req.ClientID)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, b.classifyTransportError(ctx, err, req.ClientID)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: order %s: HTTP %d", ports.ErrRateLimited, req.ClientID, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: brokerage rejected credentials: HTTP %d", ports.ErrConfiguration, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: order %s: HTTP %d", ports.ErrGatewayUnavailable, req.ClientID, resp.StatusCode)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: order %s: HTTP %d: %s", ports.ErrExecutionFailed, req.ClientID, resp.StatusCode, raw)
	}

	var result orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode order response %s: %v", ports.ErrExecutionFailed, req.ClientID, err)
	}
	return b.toOutcome(ctx, req, result)
}

func (b *Broker) classifyTransportError(ctx context.Context, err error, clientID string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: order %s: %v", ports.ErrTimeout, clientID, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: order %s: %v", ports.ErrContextCanceled, clientID, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: order %s: %v", ports.ErrTimeout, clientID, err)
	}
	b.logger.Error(ctx, err, "Order request failed", map[string]interface{}{"clientID": clientID})
	return fmt.Errorf("%w: order %s: %v", ports.ErrGatewayUnavailable, clientID, err)
}

func (b *Broker) toOutcome(ctx context.Context, req ports.OrderRequest, result orderResponse) (*ports.OrderOutcome, error) {
	outcome := &ports.OrderOutcome{
		ClientID:  req.ClientID,
		Reason:    result.Reason,
		Timestamp: result.Timestamp,
	}
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = time.Now().UTC()
	}

	switch result.Status {
	case "filled":
		outcome.Status = domain.OrderFilled
		outcome.FillPrice = result.FillPrice
		outcome.ExecutedQty = req.Quantity
		if result.ExecutedQty != "" {
			qty, err := decimal.NewFromString(result.ExecutedQty)
			if err != nil {
				return nil, fmt.Errorf("%w: order %s reported invalid quantity %q", ports.ErrExecutionFailed, req.ClientID, result.ExecutedQty)
			}
			outcome.ExecutedQty = qty
		}
		if outcome.FillPrice <= 0 {
			return nil, fmt.Errorf("%w: order %s filled without a price", ports.ErrExecutionFailed, req.ClientID)
		}
	case "rejected":
		outcome.Status = domain.OrderRejected
		b.logger.Warn(ctx, "Brokerage rejected order", map[string]interface{}{
			"clientID": req.ClientID,
			"reason":   result.Reason,
		})
	case "cancelled":
		outcome.Status = domain.OrderCancelled
	default:
		return nil, fmt.Errorf("%w: order %s has unknown status %q", ports.ErrExecutionFailed, req.ClientID, result.Status)
	}
	return outcome, nil
}
