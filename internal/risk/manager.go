package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	RiskPercent         float64 // Share of balance risked per trade, in %
	MaxDrawdownPercent  float64 // Max drawdown from peak balance, in %
	MaxDailyTrades      int
	MinAvailableBalance float64
}

// RiskManager implements risk management functionality
type RiskManager struct {
	mu     sync.Mutex
	config RiskConfig
	stats  RiskStats
	now    func() time.Time
}

// RiskStats holds risk management statistics
type RiskStats struct {
	DailyPnL        float64
	PeakBalance     float64
	CurrentDrawdown float64 // in %
	DailyTrades     int
	LastResetTime   time.Time
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) (*RiskManager, error) {
	if config.RiskPercent <= 0 || config.RiskPercent > 100 {
		return nil, fmt.Errorf("risk percent must be within (0,100], got %.2f", config.RiskPercent)
	}
	if config.MaxDrawdownPercent <= 0 || config.MaxDrawdownPercent > 100 {
		return nil, fmt.Errorf("max drawdown percent must be within (0,100], got %.2f", config.MaxDrawdownPercent)
	}
	if config.MaxDailyTrades <= 0 {
		return nil, fmt.Errorf("max daily trades must be positive")
	}
	if config.MinAvailableBalance < 0 {
		return nil, fmt.Errorf("min available balance cannot be negative")
	}
	r := &RiskManager{config: config, now: time.Now}
	r.stats.LastResetTime = r.now()
	return r, nil
}

// Budget returns the amount of quote currency that may be lost on one trade.
func (r *RiskManager) Budget(balance float64) float64 {
	if balance <= 0 {
		return 0
	}
	return balance * r.config.RiskPercent / 100
}

// CheckLimits checks if any account-level limit blocks a new entry.
func (r *RiskManager) CheckLimits(ctx context.Context, balance float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()
	r.trackBalance(balance)

	if balance < r.config.MinAvailableBalance {
		return fmt.Errorf("%w: balance %.2f below minimum %.2f", ports.ErrRiskLimitExceeded, balance, r.config.MinAvailableBalance)
	}
	if r.stats.CurrentDrawdown > r.config.MaxDrawdownPercent {
		return fmt.Errorf("%w: drawdown %.2f%% exceeds maximum %.2f%%", ports.ErrRiskLimitExceeded, r.stats.CurrentDrawdown, r.config.MaxDrawdownPercent)
	}
	if r.stats.DailyTrades >= r.config.MaxDailyTrades {
		return fmt.Errorf("%w: daily trades %d reached maximum %d", ports.ErrRiskLimitExceeded, r.stats.DailyTrades, r.config.MaxDailyTrades)
	}
	return nil
}

// RecordResult updates daily PnL, trade count and drawdown after a closed trade.
func (r *RiskManager) RecordResult(ctx context.Context, result *domain.TradeResult, balanceAfter float64) {
	if result == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()
	r.stats.DailyPnL += result.GrossPnL
	r.stats.DailyTrades++
	r.trackBalance(balanceAfter)
}

// RestoreDailyTrades seeds today's trade count, e.g. from the trade journal after a restart.
func (r *RiskManager) RestoreDailyTrades(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollDay()
	if n > r.stats.DailyTrades {
		r.stats.DailyTrades = n
	}
}

// ResetDailyStats resets daily statistics
func (r *RiskManager) ResetDailyStats(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetDay()
}

// GetStats returns a snapshot of the current risk statistics
func (r *RiskManager) GetStats() RiskStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *RiskManager) trackBalance(balance float64) {
	if balance <= 0 {
		return
	}
	if balance > r.stats.PeakBalance {
		r.stats.PeakBalance = balance
	}
	r.stats.CurrentDrawdown = (r.stats.PeakBalance - balance) / r.stats.PeakBalance * 100
}

func (r *RiskManager) rollDay() {
	now := r.now().UTC()
	last := r.stats.LastResetTime.UTC()
	if now.YearDay() != last.YearDay() || now.Year() != last.Year() {
		r.resetDay()
	}
}

func (r *RiskManager) resetDay() {
	r.stats.DailyPnL = 0
	r.stats.DailyTrades = 0
	r.stats.LastResetTime = r.now()
}
