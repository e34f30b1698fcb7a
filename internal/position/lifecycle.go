package position

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// Exit signal descriptions reported by Manage.
const (
	SignalDivergence    = "Divergence detected - potential reversal"
	SignalMomentumDown  = "Strong downside momentum - reversal risk"
	SignalMomentumUp    = "Strong upside momentum - reversal risk"
	SignalRSIOverbought = "RSI overbought - extreme level"
	SignalRSIOversold   = "RSI oversold - extreme level"
)

// Config holds position sizing and management parameters.
type Config struct {
	MaxPositionPct      float64 // Max position value as % of balance, default 5
	BreakevenTriggerPct float64 // Open PnL % that moves the stop to entry, default 1
	TrailingPct         float64 // Trailing distance from price in %, default 2
	PartialProfitPct    float64 // Open PnL % that allows partial profit, default 2
	RSIOverbought       float64 // default 85
	RSIOversold         float64 // default 15
	PriceTolerance      float64 // Absolute tolerance when matching exit price to TP/SL, default 0.01
}

// DefaultConfig returns the standard lifecycle parameters.
func DefaultConfig() Config {
	return Config{
		MaxPositionPct:      5,
		BreakevenTriggerPct: 1,
		TrailingPct:         2,
		PartialProfitPct:    2,
		RSIOverbought:       85,
		RSIOversold:         15,
		PriceTolerance:      0.01,
	}
}

// Lifecycle opens, manages and closes a single position at a time per caller.
type Lifecycle struct {
	cfg    Config
	exec   ports.ExecutionClient
	logger ports.Logger
}

// New creates a position lifecycle manager.
func New(cfg Config, exec ports.ExecutionClient, logger ports.Logger) (*Lifecycle, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for position lifecycle")
	}
	if exec == nil {
		return nil, fmt.Errorf("execution client is required for position lifecycle")
	}
	if cfg.MaxPositionPct <= 0 || cfg.MaxPositionPct > 100 {
		return nil, fmt.Errorf("max position percent must be within (0,100], got %.2f", cfg.MaxPositionPct)
	}
	if cfg.BreakevenTriggerPct <= 0 || cfg.TrailingPct <= 0 || cfg.PartialProfitPct <= 0 {
		return nil, fmt.Errorf("management thresholds must be positive")
	}
	if cfg.RSIOversold >= cfg.RSIOverbought {
		return nil, fmt.Errorf("RSI oversold (%.2f) must be below overbought (%.2f)", cfg.RSIOversold, cfg.RSIOverbought)
	}
	return &Lifecycle{cfg: cfg, exec: exec, logger: logger}, nil
}

// Open sizes a position from the risk budget and submits the entry order.
// Entry is the setup's ideal price, the stop its stop loss and the target its first target.
func (l *Lifecycle) Open(ctx context.Context, symbol string, setup *domain.Setup, balance, riskBudget, currentPrice float64) (*domain.Position, error) {
	const op = "open position"
	if setup == nil {
		return nil, fmt.Errorf("%s failed: %w: setup is nil", op, ports.ErrInvalidPosition)
	}
	if !setup.Direction.IsValid() {
		return nil, fmt.Errorf("%s failed: %w: unknown direction %q", op, ports.ErrInvalidPosition, setup.Direction)
	}
	entry, stop, target := setup.EntryZone.Ideal, setup.StopLoss, setup.FirstTarget()
	if entry <= 0 || stop <= 0 || target <= 0 || currentPrice <= 0 {
		return nil, fmt.Errorf("%s failed: %w: entry=%.8f stop=%.8f target=%.8f price=%.8f",
			op, ports.ErrInvalidPosition, entry, stop, target, currentPrice)
	}

	pos := &domain.Position{
		TradeID:         newTradeID(),
		Symbol:          symbol,
		Direction:       setup.Direction,
		SetupType:       setup.Type,
		EntryPrice:      entry,
		StopLoss:        stop,
		InitialStopLoss: stop,
		TakeProfit:      target,
		RiskRewardRatio: setup.RiskRewardRatio,
	}
	if !pos.HasValidGeometry() {
		return nil, fmt.Errorf("%s failed: %w: stop %.8f / entry %.8f / target %.8f out of order for %s",
			op, ports.ErrInvalidPosition, stop, entry, target, setup.Direction)
	}

	size, err := l.size(balance, riskBudget, entry, stop)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	pos.Size = size
	pos.Value = size * entry

	resp, err := l.exec.PlaceOrder(ctx, ports.OrderRequest{
		Symbol:   symbol,
		Side:     setup.Direction.EntrySide(),
		Quantity: size,
		Price:    entry,
	})
	if err != nil {
		l.logger.Error(ctx, err, "Entry order failed", map[string]interface{}{
			"tradeID": pos.TradeID,
			"symbol":  symbol,
			"side":    setup.Direction.EntrySide(),
		})
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrOrderPlacementFailed, err)
	}

	pos.EntryOrderID = resp.OrderID
	pos.EntryTime = resp.Timestamp
	if pos.EntryTime.IsZero() {
		pos.EntryTime = time.Now()
	}
	pos.Status = domain.StatusOpen

	l.logger.Info(ctx, "Position opened", map[string]interface{}{
		"tradeID":    pos.TradeID,
		"symbol":     symbol,
		"setupType":  pos.SetupType,
		"direction":  pos.Direction,
		"entryPrice": entry,
		"stopLoss":   stop,
		"takeProfit": target,
		"size":       size,
		"value":      pos.Value,
		"orderID":    resp.OrderID,
	})
	return pos, nil
}

// size converts the risk budget into a quantity, capped at MaxPositionPct of balance.
func (l *Lifecycle) size(balance, riskBudget, entry, stop float64) (float64, error) {
	if balance <= 0 || riskBudget <= 0 {
		return 0, fmt.Errorf("%w: balance=%.8f risk budget=%.8f", ports.ErrInvalidPosition, balance, riskBudget)
	}
	perUnit := math.Abs(entry - stop)
	if perUnit == 0 {
		return 0, fmt.Errorf("%w: entry equals stop", ports.ErrInvalidPosition)
	}
	size := riskBudget / perUnit
	if maxValue := balance * l.cfg.MaxPositionPct / 100; size*entry > maxValue {
		size = maxValue / entry
	}
	if size <= 0 || math.IsInf(size, 0) || math.IsNaN(size) {
		return 0, fmt.Errorf("%w: computed size %.8f", ports.ErrInvalidPosition, size)
	}
	if size*entry > balance {
		return 0, fmt.Errorf("%w: position value %.2f exceeds balance %.2f", ports.ErrInvalidPosition, size*entry, balance)
	}
	return size, nil
}

// Manage evaluates an open position against the current price and tightens its stop.
// It mutates pos.StopLoss and pos.BreakevenApplied and performs no I/O.
func (l *Lifecycle) Manage(ctx context.Context, pos *domain.Position, currentPrice float64, momentum domain.MomentumBias, rsi float64, divergence bool) (*domain.ManagementUpdate, error) {
	const op = "manage position"
	if pos == nil {
		return nil, fmt.Errorf("%s failed: %w: position is nil", op, ports.ErrInvalidPosition)
	}
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%s failed: %w: %s", op, ports.ErrPositionClosed, pos.TradeID)
	}
	if currentPrice <= 0 {
		return nil, fmt.Errorf("%s failed: %w: %.8f", op, ports.ErrInvalidPrice, currentPrice)
	}

	sign := pos.Direction.Sign()
	upd := &domain.ManagementUpdate{CurrentPrice: currentPrice}
	upd.UnrealizedPnL = (currentPrice - pos.EntryPrice) * pos.Size * sign
	upd.UnrealizedPnLPct = (currentPrice - pos.EntryPrice) / pos.EntryPrice * 100 * sign
	switch {
	case upd.UnrealizedPnL > 0:
		upd.Status = domain.ManagementWinning
	case upd.UnrealizedPnL < 0:
		upd.Status = domain.ManagementLosing
	default:
		upd.Status = domain.ManagementBreakeven
	}

	switch {
	case upd.UnrealizedPnLPct >= l.cfg.BreakevenTriggerPct && !pos.BreakevenApplied:
		upd.StopMoved = l.tighten(pos, pos.EntryPrice)
		pos.BreakevenApplied = true
		upd.BreakevenApplied = true
	case upd.Status == domain.ManagementWinning:
		trail := currentPrice * (1 - sign*l.cfg.TrailingPct/100)
		upd.StopMoved = l.tighten(pos, trail)
		upd.TrailingApplied = upd.StopMoved
	}
	upd.StopLoss = pos.StopLoss
	upd.PartialProfitReady = upd.UnrealizedPnLPct >= l.cfg.PartialProfitPct

	if pos.Direction == domain.Long {
		upd.StopHit = currentPrice <= pos.StopLoss
		upd.TargetHit = currentPrice >= pos.TakeProfit
	} else {
		upd.StopHit = currentPrice >= pos.StopLoss
		upd.TargetHit = currentPrice <= pos.TakeProfit
	}
	upd.ExitSignalReason = l.exitSignal(pos.Direction, momentum, rsi, divergence)
	upd.ExitSignal = upd.ExitSignalReason != ""
	upd.Message = managementMessage(pos, upd)

	l.logger.Debug(ctx, "Position managed", map[string]interface{}{
		"tradeID":    pos.TradeID,
		"status":     upd.Status,
		"pnl":        upd.UnrealizedPnL,
		"pnlPct":     upd.UnrealizedPnLPct,
		"stopLoss":   upd.StopLoss,
		"stopMoved":  upd.StopMoved,
		"exitSignal": upd.ExitSignalReason,
	})
	return upd, nil
}

// tighten moves the stop to level only when that reduces risk.
func (l *Lifecycle) tighten(pos *domain.Position, level float64) bool {
	if pos.Direction == domain.Long && level > pos.StopLoss {
		pos.StopLoss = level
		return true
	}
	if pos.Direction == domain.Short && level < pos.StopLoss {
		pos.StopLoss = level
		return true
	}
	return false
}

func (l *Lifecycle) exitSignal(dir domain.Direction, momentum domain.MomentumBias, rsi float64, divergence bool) string {
	switch {
	case divergence:
		return SignalDivergence
	case dir == domain.Long && momentum == domain.MomentumStrongDown:
		return SignalMomentumDown
	case dir == domain.Short && momentum == domain.MomentumStrongUp:
		return SignalMomentumUp
	case rsi > l.cfg.RSIOverbought:
		return SignalRSIOverbought
	case rsi < l.cfg.RSIOversold:
		return SignalRSIOversold
	}
	return ""
}

func managementMessage(pos *domain.Position, upd *domain.ManagementUpdate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s | P&L: %.2f (%.2f%%)", pos.TradeID, strings.ToUpper(string(upd.Status)), upd.UnrealizedPnL, upd.UnrealizedPnLPct)
	if upd.StopMoved {
		fmt.Fprintf(&b, " | Stop adjusted to %.8f", upd.StopLoss)
	}
	if upd.ExitSignal {
		fmt.Fprintf(&b, " | EXIT SIGNAL: %s", upd.ExitSignalReason)
	}
	return b.String()
}

// Close submits the exit order and records the trade result. An empty reason is
// resolved from the exit price: take profit, then stop loss, then exit signal, then manual.
// When the exit order fails the position stays open.
func (l *Lifecycle) Close(ctx context.Context, pos *domain.Position, currentPrice float64, reason domain.ExitReason, exitSignal bool) (*domain.TradeResult, error) {
	const op = "close position"
	if pos == nil {
		return nil, fmt.Errorf("%s failed: %w: position is nil", op, ports.ErrInvalidPosition)
	}
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%s failed: %w: %s", op, ports.ErrPositionClosed, pos.TradeID)
	}
	if currentPrice <= 0 {
		return nil, fmt.Errorf("%s failed: %w: %.8f", op, ports.ErrInvalidPrice, currentPrice)
	}
	if reason != "" && !reason.IsValid() {
		return nil, fmt.Errorf("%s failed: %w: unknown exit reason %q", op, ports.ErrInvalidRequest, reason)
	}

	lo, hi := math.Min(pos.StopLoss, pos.TakeProfit), math.Max(pos.StopLoss, pos.TakeProfit)
	exit := math.Max(lo, math.Min(hi, currentPrice))
	if reason == "" {
		reason = l.resolveReason(pos, exit, exitSignal)
	}

	resp, err := l.exec.PlaceOrder(ctx, ports.OrderRequest{
		Symbol:   pos.Symbol,
		Side:     pos.Direction.ExitSide(),
		Quantity: pos.Size,
		Price:    exit,
	})
	if err != nil {
		l.logger.Error(ctx, err, "Exit order failed; position remains open", map[string]interface{}{
			"tradeID": pos.TradeID,
			"reason":  reason,
		})
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrOrderPlacementFailed, err)
	}

	gross := (exit - pos.EntryPrice) * pos.Size * pos.Direction.Sign()
	pct := gross / (pos.EntryPrice * pos.Size) * 100
	result := &domain.TradeResult{
		TradeID:     pos.TradeID,
		Symbol:      pos.Symbol,
		Direction:   pos.Direction,
		SetupType:   pos.SetupType,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exit,
		Size:        pos.Size,
		GrossPnL:    decimal.NewFromFloat(gross).Round(8).InexactFloat64(),
		PnLPercent:  decimal.NewFromFloat(pct).Round(4).InexactFloat64(),
		ExitReason:  reason,
		EntryTime:   pos.EntryTime,
		ExitTime:    resp.Timestamp,
		ExitOrderID: resp.OrderID,
	}
	if result.ExitTime.IsZero() {
		result.ExitTime = time.Now()
	}
	pos.Status = domain.StatusClosed

	l.logger.Info(ctx, "Position closed", map[string]interface{}{
		"tradeID":   pos.TradeID,
		"exitPrice": exit,
		"pnl":       result.GrossPnL,
		"pnlPct":    result.PnLPercent,
		"reason":    reason,
	})
	return result, nil
}

func (l *Lifecycle) resolveReason(pos *domain.Position, exit float64, exitSignal bool) domain.ExitReason {
	switch {
	case math.Abs(exit-pos.TakeProfit) <= l.cfg.PriceTolerance:
		return domain.ExitReasonTakeProfit
	case math.Abs(exit-pos.StopLoss) <= l.cfg.PriceTolerance:
		return domain.ExitReasonStopLoss
	case exitSignal:
		return domain.ExitReasonSignal
	default:
		return domain.ExitReasonManual
	}
}

// Abort unwinds a freshly opened position, e.g. when it could not be persisted.
// A resting entry order is canceled; an already filled one is flattened.
func (l *Lifecycle) Abort(ctx context.Context, pos *domain.Position) error {
	const op = "abort position"
	if pos == nil || !pos.IsOpen() {
		return nil
	}
	err := l.exec.CancelOrder(ctx, pos.Symbol, pos.EntryOrderID)
	switch {
	case err == nil:
		pos.Status = domain.StatusClosed
		l.logger.Warn(ctx, "Entry order canceled", map[string]interface{}{"tradeID": pos.TradeID, "orderID": pos.EntryOrderID})
		return nil
	case !errors.Is(err, ports.ErrOrderNotFound):
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrOrderCancelFailed, err)
	}

	if _, err := l.exec.PlaceOrder(ctx, ports.OrderRequest{
		Symbol:   pos.Symbol,
		Side:     pos.Direction.ExitSide(),
		Quantity: pos.Size,
		Price:    pos.EntryPrice,
	}); err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrOrderPlacementFailed, err)
	}
	pos.Status = domain.StatusClosed
	l.logger.Warn(ctx, "Filled entry flattened", map[string]interface{}{"tradeID": pos.TradeID, "size": pos.Size})
	return nil
}

func newTradeID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRD-" + strings.ToUpper(raw[:8])
}
