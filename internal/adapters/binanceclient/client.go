package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	maxKlinesPerRequest = 1500
)

// Client implements ports.ExecutionClient, ports.MarketData and ports.AccountReader
// over Binance USD-M futures.
type Client struct {
	futuresClient        *futures.Client
	logger               ports.Logger
	limiter              *rate.Limiter
	reconnectDelay       time.Duration
	maxReconnectAttempts int
	quantityPrecision    int32
	pricePrecision       int32
	limitOrders          bool
}

var (
	_ ports.ExecutionClient = (*Client)(nil)
	_ ports.MarketData      = (*Client)(nil)
	_ ports.AccountReader   = (*Client)(nil)
)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey               string
	SecretKey            string
	UseTestnet           bool
	Logger               ports.Logger
	ReconnectDelay       time.Duration // Reconnect delay (e.g., 1 * time.Second)
	MaxReconnectAttempts int           // Max attempts before giving up
	RequestsPerSecond    float64       // Client-side REST throttle, default 10
	QuantityPrecision    int32         // Decimal places sent for quantities, default 3
	PricePrecision       int32         // Decimal places sent for prices, default 2
	LimitOrders          bool          // Submit GTC limit orders at the requested price instead of market orders
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 1 * time.Second
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	qtyPrec, pricePrec := cfg.QuantityPrecision, cfg.PricePrecision
	if qtyPrec <= 0 {
		qtyPrec = 3
	}
	if pricePrec <= 0 {
		pricePrec = 2
	}

	return &Client{
		futuresClient:        client,
		logger:               cfg.Logger,
		limiter:              rate.NewLimiter(rate.Limit(rps), int(rps)*2),
		reconnectDelay:       reconnectDelay,
		maxReconnectAttempts: maxAttempts,
		quantityPrecision:    qtyPrec,
		pricePrecision:       pricePrec,
		limitOrders:          cfg.LimitOrders,
	}, nil
}

// wait blocks until the REST limiter admits another request.
func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrRateLimited, err)
	}
	return nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mapAPIError(apiErr.Code), err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// mapAPIError maps Binance error codes onto port errors.
func mapAPIError(code int64) error {
	switch code {
	case -1001, -1016: // Internal disconnect, service shutting down
		return ports.ErrExchangeUnavailable
	case -1003:
		return ports.ErrRateLimited
	case -1021: // Timestamp outside of recvWindow
		return ports.ErrTimeout
	case -1022:
		return ports.ErrAuthenticationFailed
	case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
		return ports.ErrInvalidRequest
	case -2010, -2022:
		return ports.ErrOrderPlacementFailed
	case -2011:
		return ports.ErrOrderCancelFailed
	case -2013:
		return ports.ErrOrderNotFound
	case -2014, -2015:
		return ports.ErrInvalidAPIKeys
	case -2019, -3005, -3041, -4047:
		return ports.ErrInsufficientFunds
	case -4003, -4014, -4015:
		return ports.ErrInvalidRequest
	default:
		return ports.ErrUnknown
	}
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetPrice retrieves the current mark price for a given symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetPrice"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	tickers, err := c.futuresClient.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return 0, c.handleError(ctx, fmt.Errorf("no price data returned for symbol %s", symbol), op)
	}
	price, err := strconv.ParseFloat(tickers[0].MarkPrice, 64)
	if err != nil {
		return 0, c.handleError(ctx, fmt.Errorf("could not parse price '%s': %w", tickers[0].MarkPrice, err), op)
	}
	return price, nil
}

// GetAccountBalance retrieves the wallet balance for a specific asset (e.g., "USDT").
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	op := "GetAccountBalance"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	for _, bal := range account.Assets {
		if bal.Asset != asset {
			continue
		}
		balance, err := strconv.ParseFloat(bal.WalletBalance, 64)
		if err != nil {
			return 0, c.handleError(ctx, fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.WalletBalance, asset, err), op)
		}
		return balance, nil
	}
	return 0, c.handleError(ctx, fmt.Errorf("asset %s not found in account balance", asset), op)
}

// PlaceOrder submits a market order, or a GTC limit order at req.Price when limit orders are enabled.
func (c *Client) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	op := "PlaceOrder"
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%s failed: %w: quantity must be positive", op, ports.ErrInvalidRequest)
	}
	qty := FormatDecimal(req.Quantity, c.quantityPrecision)
	if qty == "0" {
		return nil, fmt.Errorf("%s failed: %w: quantity %.8f rounds to zero", op, ports.ErrInvalidRequest, req.Quantity)
	}
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Quantity(qty)
	if c.limitOrders && req.Price > 0 {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(FormatDecimal(req.Price, c.pricePrecision))
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOrderResponse(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"quantity": qty,
		"orderID":  resp.OrderID,
		"avgPrice": resp.AvgPrice,
		"status":   resp.Status,
	})
	return resp, nil
}

// CancelOrder cancels an open order on Binance.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	op := "CancelOrder"
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("%s failed: %w: order id %q: %w", op, ports.ErrInvalidRequest, orderID, err)
	}
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})

	res, err := c.futuresClient.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": res.Status})
	return nil
}

// GetBars retrieves the most recent bars for the given symbol, oldest first.
func (c *Client) GetBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error) {
	op := "GetBars"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	klines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	bars := make([]*domain.Bar, 0, len(klines))
	for _, bk := range klines {
		bar, err := translateBinanceKline(bk, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// GetBarsRange fetches all bars for a symbol/interval between start and end time.
func (c *Client) GetBarsRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Bar, error) {
	op := "GetBarsRange"
	var all []*domain.Bar
	from := start

	for {
		if err := c.wait(ctx, op); err != nil {
			return nil, err
		}
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			bar, err := translateBinanceKline(bk, symbol, interval)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline range: %w", err), op)
			}
			all = append(all, bar)
		}
		from = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		if from.After(end) || len(klines) < maxKlinesPerRequest {
			break
		}
	}
	return all, nil
}

// StreamBars starts a WebSocket kline stream with reconnection.
func (c *Client) StreamBars(ctx context.Context, symbol, interval string, handler func(bar *domain.Bar), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error) {
	op := "StreamBars"
	wsCtx, cancelWs := context.WithCancel(ctx)
	fields := map[string]interface{}{"symbol": symbol, "interval": interval}

	binanceHandler := func(event *futures.WsKlineEvent) {
		bar, err := translateWsKline(event)
		if err != nil {
			c.logger.Error(wsCtx, err, op+": Failed to translate WebSocket kline event")
			return
		}
		handler(bar)
	}
	binanceErrHandler := func(err error) {
		translated := c.handleError(wsCtx, err, op+" WebSocket")
		errHandler(translated)
	}

	go func() {
		defer cancelWs()

		attempt := 0
		for {
			select {
			case <-wsCtx.Done():
				c.logger.Info(wsCtx, op+": Context cancelled, stopping connection attempts.", fields)
				return
			default:
			}

			innerDoneCh, innerStopCh, connectErr := futures.WsKlineServe(symbol, interval, binanceHandler, binanceErrHandler)
			if connectErr != nil {
				c.handleError(wsCtx, connectErr, op+" connection attempt")
				attempt++
				if attempt >= c.maxReconnectAttempts {
					c.logger.Error(wsCtx, connectErr, op+": Max reconnection attempts exceeded, giving up.", map[string]interface{}{
						"symbol": symbol, "interval": interval, "maxAttempts": c.maxReconnectAttempts,
					})
					return
				}
				delay := c.reconnectDelay * time.Duration(1<<uint(attempt-1))
				c.logger.Info(wsCtx, op+": Connection failed, retrying...", map[string]interface{}{
					"symbol": symbol, "interval": interval, "attempt": attempt + 1, "delay": delay.String(),
				})
				select {
				case <-time.After(delay):
					continue
				case <-wsCtx.Done():
					return
				}
			}

			c.logger.Info(wsCtx, op+": WebSocket connection established.", fields)
			attempt = 0

			select {
			case <-innerDoneCh:
				c.logger.Warn(wsCtx, op+": WebSocket connection closed unexpectedly. Reconnecting...", fields)
			case <-wsCtx.Done():
				select {
				case innerStopCh <- struct{}{}:
				default:
					c.logger.Warn(wsCtx, op+": Failed to send stop signal to inner WebSocket (already closed?).", fields)
				}
				return
			}
		}
	}()

	doneCh = make(chan struct{})
	stopCh = make(chan struct{})

	go func() {
		select {
		case <-stopCh:
			c.logger.Info(ctx, op+": Received external stop signal, cancelling WebSocket context.", fields)
			cancelWs()
		case <-wsCtx.Done():
		}
	}()

	go func() {
		<-wsCtx.Done()
		close(doneCh)
	}()

	return doneCh, stopCh, nil
}

// FormatDecimal truncates v to the given number of decimal places for the wire.
func FormatDecimal(v float64, places int32) string {
	return decimal.NewFromFloat(v).Truncate(places).String()
}

// --- Translation Helpers ---

func translateOrderResponse(order *futures.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	price, _ := strconv.ParseFloat(order.Price, 64)
	avgPrice, _ := strconv.ParseFloat(order.AvgPrice, 64)
	origQty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)

	ts := time.Now()
	if order.UpdateTime > 0 {
		ts = time.UnixMilli(order.UpdateTime)
	}
	return &ports.OrderResponse{
		OrderID:      strconv.FormatInt(order.OrderID, 10),
		Symbol:       order.Symbol,
		Side:         domain.OrderSide(order.Side),
		Price:        price,
		AvgPrice:     avgPrice,
		OrigQuantity: origQty,
		ExecutedQty:  execQty,
		Status:       string(order.Status),
		Timestamp:    ts,
	}
}

func translateWsKline(event *futures.WsKlineEvent) (*domain.Bar, error) {
	if event == nil {
		return nil, errors.New("received nil kline event")
	}
	k := event.Kline
	vals, err := parsePrices(k.Open, k.High, k.Low, k.Close, k.Volume)
	if err != nil {
		return nil, err
	}
	return &domain.Bar{
		OpenTime:  time.UnixMilli(k.StartTime),
		CloseTime: time.UnixMilli(k.EndTime),
		Symbol:    k.Symbol,
		Interval:  k.Interval,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		IsFinal:   k.IsFinal,
	}, nil
}

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (*domain.Bar, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	vals, err := parsePrices(bk.Open, bk.High, bk.Low, bk.Close, bk.Volume)
	if err != nil {
		return nil, err
	}
	return &domain.Bar{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		IsFinal:   true,
	}, nil
}

// parsePrices parses open, high, low, close and volume in that order.
func parsePrices(raw ...string) ([]float64, error) {
	names := []string{"open", "high", "low", "close", "volume"}
	out := make([]float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s '%s': %w", names[i], s, err)
		}
		out[i] = v
	}
	return out, nil
}
