package risk

import (
	"context"
	"testing"

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

func request(qty float64, price float64) ports.OrderRequest {
	return ports.OrderRequest{
		ClientID:       "test-order",
		Pair:           domain.CurrencyPair{Base: "USD", Quote: "JPY"},
		Side:           domain.Buy,
		Quantity:       decimal.NewFromFloat(qty),
		RequestedPrice: price,
		Mode:           domain.ModePaper,
	}
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Config{TradeCap: 1000, Logger: nil})
	assert.Error(t, err)

	_, err = NewManager(Config{TradeCap: -1, Logger: nopLogger{}})
	assert.Error(t, err)

	_, err = NewManager(Config{MaxTradesPerDay: -1, Logger: nopLogger{}})
	assert.Error(t, err)
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		req         ports.OrderRequest
		tradesToday int
		wantErr     error
	}{
		{
			name: "within all limits",
			cfg:  Config{TradeCap: 1000, AvailableFunds: 200000, MaxTradesPerDay: 5},
			req:  request(1000, 110.50),
		},
		{
			name:    "zero quantity",
			cfg:     Config{TradeCap: 1000},
			req:     request(0, 110.50),
			wantErr: ports.ErrOrderRejected,
		},
		{
			name:    "negative quantity",
			cfg:     Config{TradeCap: 1000},
			req:     request(-10, 110.50),
			wantErr: ports.ErrOrderRejected,
		},
		{
			name:    "zero price",
			cfg:     Config{TradeCap: 1000},
			req:     request(1000, 0),
			wantErr: ports.ErrOrderRejected,
		},
		{
			name:    "over trade cap",
			cfg:     Config{TradeCap: 1000},
			req:     request(1001, 110.50),
			wantErr: ports.ErrTradeCapExceeded,
		},
		{
			name:    "over available funds",
			cfg:     Config{AvailableFunds: 100000},
			req:     request(1000, 110.50),
			wantErr: ports.ErrInsufficientFunds,
		},
		{
			name:        "daily limit reached",
			cfg:         Config{MaxTradesPerDay: 3},
			req:         request(1000, 110.50),
			tradesToday: 3,
			wantErr:     ports.ErrDailyLimitReached,
		},
		{
			name:        "daily limit not yet reached",
			cfg:         Config{MaxTradesPerDay: 3},
			req:         request(1000, 110.50),
			tradesToday: 2,
		},
		{
			name: "zero limits disable checks",
			cfg:  Config{},
			req:  request(1e9, 110.50),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Logger = nopLogger{}
			m, err := NewManager(tt.cfg)
			require.NoError(t, err)

			err = m.ValidateOrder(context.Background(), tt.req, tt.tradesToday)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
