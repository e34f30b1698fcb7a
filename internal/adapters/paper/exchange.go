package paper

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// Exchange is an in-memory venue that fills every order immediately.
// It is used for dry runs and offline analysis.
type Exchange struct {
	mu        sync.Mutex
	logger    ports.Logger
	asset     string
	balance   float64
	prices    map[string]float64
	positions map[string]*holding
	filled    map[string]*ports.OrderResponse
	quotes    PriceSource
	now       func() time.Time
}

// PriceSource supplies live reference prices, e.g. the exchange client in a dry run.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

type holding struct {
	qty      float64 // signed: positive long, negative short
	avgPrice float64
}

var (
	_ ports.ExecutionClient = (*Exchange)(nil)
	_ ports.AccountReader   = (*Exchange)(nil)
)

// New creates a paper exchange holding the given balance of asset.
func New(asset string, balance float64, logger ports.Logger) (*Exchange, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for paper exchange")
	}
	if balance <= 0 {
		return nil, fmt.Errorf("paper balance must be positive, got %.2f", balance)
	}
	return &Exchange{
		logger:    logger,
		asset:     asset,
		balance:   balance,
		prices:    make(map[string]float64),
		positions: make(map[string]*holding),
		filled:    make(map[string]*ports.OrderResponse),
		now:       time.Now,
	}, nil
}

// SetPrice updates the reference price used for GetPrice and market fills.
func (e *Exchange) SetPrice(symbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[symbol] = price
}

// WithPriceSource makes GetPrice pull quotes from src and remember them for fills.
func (e *Exchange) WithPriceSource(src PriceSource) *Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotes = src
	return e
}

// GetPrice returns the latest quote from the price source, or the last price set for symbol.
func (e *Exchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	e.mu.Lock()
	quotes := e.quotes
	e.mu.Unlock()
	if quotes != nil {
		price, err := quotes.GetPrice(ctx, symbol)
		if err != nil {
			return 0, fmt.Errorf("GetPrice failed: %w", err)
		}
		e.SetPrice(symbol, price)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	price, ok := e.prices[symbol]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("GetPrice failed: %w: no price for %s", ports.ErrNotFound, symbol)
	}
	return price, nil
}

// GetAccountBalance returns the cash balance plus realized PnL.
func (e *Exchange) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if asset != e.asset {
		return 0, fmt.Errorf("GetAccountBalance failed: %w: asset %s", ports.ErrNotFound, asset)
	}
	return e.balance, nil
}

// PlaceOrder fills the whole quantity at req.Price, or at the last set price when req.Price is zero.
func (e *Exchange) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	const op = "PlaceOrder"
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%s failed: %w: quantity must be positive", op, ports.ErrInvalidRequest)
	}
	if req.Side != domain.Buy && req.Side != domain.Sell {
		return nil, fmt.Errorf("%s failed: %w: side %q", op, ports.ErrInvalidRequest, req.Side)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	price := req.Price
	if price <= 0 {
		price = e.prices[req.Symbol]
	}
	if price <= 0 {
		return nil, fmt.Errorf("%s failed: %w: no fill price for %s", op, ports.ErrInvalidPrice, req.Symbol)
	}

	signed := req.Quantity
	if req.Side == domain.Sell {
		signed = -signed
	}
	realized := e.apply(req.Symbol, signed, price)
	e.balance += realized

	resp := &ports.OrderResponse{
		OrderID:      uuid.NewString(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Price:        req.Price,
		AvgPrice:     price,
		OrigQuantity: req.Quantity,
		ExecutedQty:  req.Quantity,
		Status:       "FILLED",
		Timestamp:    e.now(),
	}
	e.filled[resp.OrderID] = resp

	e.logger.Info(ctx, "Paper order filled", map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"quantity": req.Quantity,
		"price":    price,
		"realized": realized,
		"orderID":  resp.OrderID,
	})
	return resp, nil
}

// CancelOrder always reports ErrOrderNotFound because paper orders fill on submission.
func (e *Exchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	e.mu.Lock()
	_, known := e.filled[orderID]
	e.mu.Unlock()
	if known {
		return fmt.Errorf("CancelOrder failed: %w: order %s already filled", ports.ErrOrderNotFound, orderID)
	}
	return fmt.Errorf("CancelOrder failed: %w: order %s", ports.ErrOrderNotFound, orderID)
}

// Exposure returns the signed open quantity for symbol.
func (e *Exchange) Exposure(symbol string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.positions[symbol]; ok {
		return h.qty
	}
	return 0
}

// apply books a fill and returns the PnL realized by any reduction of the holding.
func (e *Exchange) apply(symbol string, signed, price float64) float64 {
	h, ok := e.positions[symbol]
	if !ok {
		h = &holding{}
		e.positions[symbol] = h
	}

	if h.qty == 0 || sameSign(h.qty, signed) {
		total := h.qty + signed
		h.avgPrice = (h.avgPrice*math.Abs(h.qty) + price*math.Abs(signed)) / math.Abs(total)
		h.qty = total
		return 0
	}

	closing := math.Min(math.Abs(signed), math.Abs(h.qty))
	realized := (price - h.avgPrice) * closing
	if h.qty < 0 {
		realized = -realized
	}
	remaining := h.qty + signed
	switch {
	case math.Abs(remaining) < 1e-12:
		delete(e.positions, symbol)
	case sameSign(remaining, h.qty):
		h.qty = remaining
	default:
		// flipped through zero: the excess opens a new holding at the fill price
		h.qty, h.avgPrice = remaining, price
	}
	return realized
}

func sameSign(a, b float64) bool {
	return (a > 0) == (b > 0)
}
