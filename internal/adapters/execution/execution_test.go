package execution

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var usdjpy = domain.CurrencyPair{Base: "USD", Quote: "JPY"}

func orderRequest(side domain.OrderSide) ports.OrderRequest {
	return ports.OrderRequest{
		ClientID:       "ord-1",
		Pair:           usdjpy,
		Side:           side,
		Quantity:       decimal.NewFromInt(1000),
		RequestedPrice: 110.60,
		Mode:           domain.ModePaper,
	}
}

func TestPaper_FillsAtQuotedPrice(t *testing.T) {
	quote := func(pair domain.CurrencyPair) (domain.PricePoint, bool) {
		return domain.PricePoint{Pair: pair, Timestamp: time.Now(), Bid: 110.58, Ask: 110.62}, true
	}
	paper, err := NewPaper(PaperConfig{Quote: quote, Logger: nopLogger{}})
	require.NoError(t, err)

	buy, err := paper.SubmitOrder(context.Background(), orderRequest(domain.Buy))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, buy.Status)
	assert.Equal(t, 110.62, buy.FillPrice, "buys fill at the ask")
	assert.True(t, buy.ExecutedQty.Equal(decimal.NewFromInt(1000)))

	sell, err := paper.SubmitOrder(context.Background(), orderRequest(domain.Sell))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, sell.Status)
	assert.Equal(t, 110.58, sell.FillPrice, "sells fill at the bid")
}

func TestPaper_RejectsWithoutQuote(t *testing.T) {
	quote := func(pair domain.CurrencyPair) (domain.PricePoint, bool) {
		return domain.PricePoint{}, false
	}
	paper, err := NewPaper(PaperConfig{Quote: quote, Logger: nopLogger{}})
	require.NoError(t, err)

	outcome, err := paper.SubmitOrder(context.Background(), orderRequest(domain.Buy))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRejected, outcome.Status)
	assert.NotEmpty(t, outcome.Reason)
}

func TestPaper_CanceledContext(t *testing.T) {
	quote := func(pair domain.CurrencyPair) (domain.PricePoint, bool) {
		return domain.PricePoint{Bid: 110.58, Ask: 110.62}, true
	}
	paper, err := NewPaper(PaperConfig{Quote: quote, Logger: nopLogger{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = paper.SubmitOrder(ctx, orderRequest(domain.Buy))
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

func newBrokerForTest(t *testing.T, handler http.HandlerFunc) *Broker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	broker, err := NewBroker(BrokerConfig{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
		Timeout:   2 * time.Second,
		Logger:    nopLogger{},
	})
	require.NoError(t, err)
	return broker
}

func TestBroker_SubmitOrder(t *testing.T) {
	broker := newBrokerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "ord-1", r.Header.Get("X-Idempotency-Key"))
		fmt.Fprintf(w, `{"client_id":"ord-1","status":"filled","fill_price":110.61,"executed_qty":"1000","timestamp":%q}`,
			time.Now().UTC().Format(time.RFC3339))
	})

	outcome, err := broker.SubmitOrder(context.Background(), orderRequest(domain.Buy))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, outcome.Status)
	assert.Equal(t, 110.61, outcome.FillPrice)
	assert.True(t, outcome.ExecutedQty.Equal(decimal.NewFromInt(1000)))
}

func TestBroker_Rejection(t *testing.T) {
	broker := newBrokerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"client_id":"ord-1","status":"rejected","reason":"market closed"}`)
	})

	outcome, err := broker.SubmitOrder(context.Background(), orderRequest(domain.Buy))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRejected, outcome.Status)
	assert.Equal(t, "market closed", outcome.Reason)
}

func TestBroker_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ports.ErrRateLimited},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantErr: ports.ErrGatewayUnavailable},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ports.ErrConfiguration},
		{name: "bad request", status: http.StatusBadRequest, wantErr: ports.ErrExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := newBrokerForTest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := broker.SubmitOrder(context.Background(), orderRequest(domain.Buy))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBroker_Timeout(t *testing.T) {
	// The handler must also unblock at teardown: the server never notices
	// the client disconnect (the unread request body suppresses the
	// background read), so srv.Close would otherwise wait on it forever.
	done := make(chan struct{})
	broker := newBrokerForTest(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-done:
		}
	})
	t.Cleanup(func() { close(done) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := broker.SubmitOrder(ctx, orderRequest(domain.Buy))
	assert.ErrorIs(t, err, ports.ErrTimeout)
}

func TestNewBroker_RequiresCredentials(t *testing.T) {
	_, err := NewBroker(BrokerConfig{BaseURL: "http://localhost", Logger: nopLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfiguration)
}
