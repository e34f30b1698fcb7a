package ports

import (
	"context"
	"time"

	"ytcbot/internal/domain"
)

// OrderRequest describes an order to submit to the execution venue.
type OrderRequest struct {
	Symbol   string
	Side     domain.OrderSide
	Quantity float64
	Price    float64 // Reference price; market venues may fill elsewhere
}

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID      string           // Venue order ID
	Symbol       string           // Symbol for the order
	Side         domain.OrderSide // Order side (BUY, SELL)
	Price        float64          // Requested price
	AvgPrice     float64          // Average filled price
	OrigQuantity float64          // Original quantity requested
	ExecutedQty  float64          // Quantity filled
	Status       string           // Order status (e.g., NEW, FILLED, CANCELED)
	Timestamp    time.Time        // Time the order response was generated
}

// ExecutionClient is the order-routing boundary. The position lifecycle only
// calls it at open and close transitions.
type ExecutionClient interface {
	// GetPrice retrieves the current reference price for a symbol.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// PlaceOrder submits an order and returns the venue's acknowledgement.
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)

	// CancelOrder cancels an existing order by its ID.
	// Implementations wrap ErrOrderNotFound when the order no longer exists.
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// MarketData supplies historical and streaming bars.
type MarketData interface {
	// GetBars retrieves the most recent bars for a symbol and interval, oldest first.
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error)

	// StreamBars starts a bar stream. Handlers are invoked from the stream goroutine.
	StreamBars(ctx context.Context, symbol, interval string, handler func(bar *domain.Bar), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error)
}

// AccountReader reports the balance available for sizing.
type AccountReader interface {
	GetAccountBalance(ctx context.Context, asset string) (float64, error)
}
