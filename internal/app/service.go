package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ytcbot/config"
	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
	"ytcbot/internal/risk"
)

const defaultRefreshTimeout = 30 * time.Second

// TradingService streams final entry-timeframe bars and runs one pipeline
// cycle per bar, carrying the open position between cycles.
type TradingService struct {
	cfg       *config.Config
	logger    ports.Logger
	market    ports.MarketData
	pipeline  *Pipeline
	positions ports.PositionRepository
	results   ports.TradeResultRepository
	risk      *risk.RiskManager

	refreshTimeout time.Duration // max elapsed time of the bar-refresh backoff
	runCtx         context.Context // canceled on shutdown; set by Start before streaming

	// State fields
	mu              sync.Mutex // Protects access to state fields below
	currentPosition *domain.Position
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	market ports.MarketData,
	pipeline *Pipeline,
	positions ports.PositionRepository,
	results ports.TradeResultRepository,
	riskManager *risk.RiskManager,
) (*TradingService, error) {
	if cfg == nil || logger == nil || market == nil || pipeline == nil || positions == nil || results == nil || riskManager == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if cfg.Symbol == "" || cfg.BarLimit <= 0 {
		return nil, fmt.Errorf("configuration Symbol and BarLimit must be set")
	}
	return &TradingService{
		cfg:            cfg,
		logger:         logger,
		market:         market,
		pipeline:       pipeline,
		positions:      positions,
		results:        results,
		risk:           riskManager,
		refreshTimeout: defaultRefreshTimeout,
	}, nil
}

// Start syncs persisted state, then processes the bar stream until the context
// is canceled, a shutdown signal arrives or the stream dies.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{"symbol": s.cfg.Symbol, "dryRun": s.cfg.DryRun})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.syncState(ctx); err != nil {
		return err
	}
	s.runCtx = ctx

	wsDoneCh, wsStopCh, err := s.market.StreamBars(ctx, s.cfg.Symbol, s.cfg.EntryInterval, s.handleBarEvent, s.handleWsError)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to start WebSocket stream")
		return fmt.Errorf("failed to start WebSocket stream: %w", err)
	}
	s.logger.Info(ctx, "WebSocket stream started", map[string]interface{}{"symbol": s.cfg.Symbol, "interval": s.cfg.EntryInterval})

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Main context cancelled, initiating shutdown...")
		select {
		case wsStopCh <- struct{}{}:
			s.logger.Info(ctx, "Stop signal sent to WebSocket stream")
		default:
			s.logger.Warn(ctx, "Failed to send stop signal to WebSocket (already closed?)")
		}
		select {
		case <-wsDoneCh:
			s.logger.Info(ctx, "WebSocket stream shut down gracefully")
		case <-time.After(5 * time.Second):
			s.logger.Warn(ctx, "Timeout waiting for WebSocket stream to shut down")
		}
	case <-wsDoneCh:
		err := fmt.Errorf("websocket stream stopped unexpectedly")
		s.logger.Error(ctx, err, "WebSocket stream stopped")
		return err
	}

	s.logger.Info(ctx, "Trading Service stopped.")
	return nil
}

// syncState restores the open position and today's trade count from storage.
func (s *TradingService) syncState(ctx context.Context) error {
	s.logger.Info(ctx, "Synchronizing initial state...")
	openPos, err := s.positions.FindOpenBySymbol(ctx, s.cfg.Symbol)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to check for existing open position")
		return fmt.Errorf("failed to query open position: %w", err)
	}

	if openPos != nil {
		if openPos, err = s.reconcileOpen(ctx, openPos); err != nil {
			return err
		}
	}

	tradesCount, err := s.results.CountTodayBySymbol(ctx, s.cfg.Symbol)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to count trades for today")
		return fmt.Errorf("failed to count today's trades: %w", err)
	}
	s.risk.RestoreDailyTrades(tradesCount)

	s.mu.Lock()
	s.currentPosition = openPos
	s.mu.Unlock()

	fields := map[string]interface{}{"tradesToday": tradesCount}
	if openPos != nil {
		fields["tradeID"] = openPos.TradeID
		fields["entryPrice"] = openPos.EntryPrice
		fields["stopLoss"] = openPos.StopLoss
		fields["takeProfit"] = openPos.TakeProfit
	}
	s.logger.Info(ctx, "Initial state synchronized", fields)
	return nil
}

// reconcileOpen drops a stored open position whose trade result is already
// the newest journal entry, marking its row closed.
func (s *TradingService) reconcileOpen(ctx context.Context, pos *domain.Position) (*domain.Position, error) {
	recent, err := s.results.FindResultsBySymbol(ctx, s.cfg.Symbol, 1)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to check journal for open position")
		return nil, fmt.Errorf("failed to check journal for open position: %w", err)
	}
	for _, r := range recent {
		if r.TradeID != pos.TradeID {
			continue
		}
		s.logger.Warn(ctx, "Stored open position is already journaled as closed", map[string]interface{}{
			"tradeID":    pos.TradeID,
			"exitReason": r.ExitReason,
		})
		pos.Status = domain.StatusClosed
		if err := s.positions.Update(ctx, pos); err != nil {
			s.logger.Error(ctx, err, "Failed to mark journaled position closed", map[string]interface{}{"tradeID": pos.TradeID})
		}
		return nil, nil
	}
	return pos, nil
}

// CurrentPosition returns the open position carried between cycles, if any.
func (s *TradingService) CurrentPosition() *domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPosition
}

// handleBarEvent is invoked from the stream goroutine.
func (s *TradingService) handleBarEvent(bar *domain.Bar) {
	if !bar.IsFinal {
		return
	}
	ctx := s.streamContext()
	if ctx.Err() != nil {
		s.logger.Debug(ctx, "Shutting down; final bar ignored", map[string]interface{}{"closeTime": bar.CloseTime})
		return
	}
	s.ProcessBar(ctx, bar)
}

// handleWsError handles errors reported by the WebSocket stream.
func (s *TradingService) handleWsError(err error) {
	s.logger.Error(s.streamContext(), err, "WebSocket stream error reported")
}

// streamContext is the context of the running Start call, so stream callbacks
// stop retrying once shutdown begins.
func (s *TradingService) streamContext() context.Context {
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}

// ProcessBar refreshes all three timeframes and runs one cycle. It returns nil
// when the data refresh fails.
func (s *TradingService) ProcessBar(ctx context.Context, bar *domain.Bar) *CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug(ctx, "Processing final bar", map[string]interface{}{
		"symbol":    bar.Symbol,
		"interval":  bar.Interval,
		"closeTime": bar.CloseTime,
		"close":     bar.Close,
	})

	in, err := s.refreshBars(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Bar refresh failed; cycle skipped", map[string]interface{}{"symbol": s.cfg.Symbol})
		return nil
	}
	in.Position = s.currentPosition

	res := s.pipeline.RunCycle(ctx, in)
	s.currentPosition = res.Position

	if res.Failed() {
		s.logger.Warn(ctx, "Cycle failed", map[string]interface{}{
			"stage":  res.Failure.Stage,
			"reason": res.Failure.Reason,
		})
		return res
	}
	fields := map[string]interface{}{"symbol": s.cfg.Symbol, "price": res.CurrentPrice, "events": len(res.Events)}
	if res.Opened != nil {
		fields["opened"] = res.Opened.TradeID
	}
	if res.Trade != nil {
		fields["closed"] = res.Trade.TradeID
		fields["pnl"] = res.Trade.GrossPnL
	}
	s.logger.Info(ctx, "Cycle complete", fields)
	return res
}

// refreshBars fetches the structural, trend and entry timeframes, retrying
// transient failures with exponential backoff.
func (s *TradingService) refreshBars(ctx context.Context) (CycleInput, error) {
	in := CycleInput{Symbol: s.cfg.Symbol}
	targets := []struct {
		interval string
		dst      *[]*domain.Bar
	}{
		{s.cfg.StructureInterval, &in.StructureBars},
		{s.cfg.TrendInterval, &in.TrendBars},
		{s.cfg.EntryInterval, &in.EntryBars},
	}

	for _, t := range targets {
		operation := func() error {
			bars, err := s.market.GetBars(ctx, s.cfg.Symbol, t.interval, s.cfg.BarLimit)
			if err != nil {
				if errors.Is(err, ports.ErrInvalidRequest) || errors.Is(err, ports.ErrAuthenticationFailed) {
					return backoff.Permanent(err)
				}
				s.logger.Warn(ctx, "Bar fetch failed, retrying", map[string]interface{}{"interval": t.interval, "error": err.Error()})
				return err
			}
			*t.dst = bars
			return nil
		}

		backoffStrategy := backoff.NewExponentialBackOff()
		backoffStrategy.MaxElapsedTime = s.refreshTimeout

		if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
			return in, fmt.Errorf("refresh %s bars failed: %w", t.interval, err)
		}
	}
	return in, nil
}
