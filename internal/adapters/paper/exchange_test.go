package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newExchange(t *testing.T) *Exchange {
	t.Helper()
	e, err := New("USDT", 10_000, &mockLogger{})
	require.NoError(t, err)
	return e
}

func TestNew_Validation(t *testing.T) {
	_, err := New("USDT", 1000, nil)
	assert.Error(t, err)
	_, err = New("USDT", 0, &mockLogger{})
	assert.Error(t, err)
}

func TestGetPrice(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()

	_, err := e.GetPrice(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	e.SetPrice("BTCUSDT", 65000)
	price, err := e.GetPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 65000.0, price)
}

func TestLongRoundTrip(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()

	open, err := e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 2, Price: 100})
	require.NoError(t, err)
	assert.NotEmpty(t, open.OrderID)
	assert.Equal(t, "FILLED", open.Status)
	assert.Equal(t, 2.0, e.Exposure("BTCUSDT"))

	_, err = e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "BTCUSDT", Side: domain.Sell, Quantity: 2, Price: 110})
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Exposure("BTCUSDT"))

	bal, err := e.GetAccountBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 10_020.0, bal, 1e-9)
}

func TestShortRoundTripAtMarket(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()
	e.SetPrice("ETHUSDT", 100)

	_, err := e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "ETHUSDT", Side: domain.Sell, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, -5.0, e.Exposure("ETHUSDT"))

	e.SetPrice("ETHUSDT", 90)
	resp, err := e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "ETHUSDT", Side: domain.Buy, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 90.0, resp.AvgPrice)

	bal, _ := e.GetAccountBalance(ctx, "USDT")
	assert.InDelta(t, 10_050.0, bal, 1e-9)
}

func TestAveragingAndFlip(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()

	_, _ = e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "X", Side: domain.Buy, Quantity: 1, Price: 100})
	_, _ = e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "X", Side: domain.Buy, Quantity: 1, Price: 110})
	// avg 105, sell 3 @ 120: realize 2*15, then short 1 @ 120
	_, err := e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "X", Side: domain.Sell, Quantity: 3, Price: 120})
	require.NoError(t, err)
	assert.Equal(t, -1.0, e.Exposure("X"))

	bal, _ := e.GetAccountBalance(ctx, "USDT")
	assert.InDelta(t, 10_030.0, bal, 1e-9)
}

func TestPlaceOrder_Errors(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	_, err = e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "BTCUSDT", Side: "HOLD", Quantity: 1, Price: 1})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	_, err = e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 1})
	assert.ErrorIs(t, err, ports.ErrInvalidPrice)
}

func TestCancelOrder_AlwaysFilled(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()
	resp, err := e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 1, Price: 100})
	require.NoError(t, err)

	assert.ErrorIs(t, e.CancelOrder(ctx, "BTCUSDT", resp.OrderID), ports.ErrOrderNotFound)
	assert.ErrorIs(t, e.CancelOrder(ctx, "BTCUSDT", "missing"), ports.ErrOrderNotFound)

	_, err = e.GetAccountBalance(ctx, "BTC")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

type stubQuotes struct {
	price float64
	err   error
}

func (s *stubQuotes) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return s.price, s.err
}

func TestGetPrice_FromSource(t *testing.T) {
	quotes := &stubQuotes{price: 250}
	e := newExchange(t).WithPriceSource(quotes)
	ctx := context.Background()

	price, err := e.GetPrice(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 250.0, price)

	// The fetched quote becomes the fill price for market orders.
	resp, err := e.PlaceOrder(ctx, ports.OrderRequest{Symbol: "ETHUSDT", Side: domain.Buy, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 250.0, resp.AvgPrice)

	quotes.err = ports.ErrExchangeUnavailable
	_, err = e.GetPrice(ctx, "ETHUSDT")
	assert.ErrorIs(t, err, ports.ErrExchangeUnavailable)
}
