package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"ytcbot/internal/domain"
)

// PerformanceMetrics summarizes a set of closed trades
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	GrossProfit        float64
	GrossLoss          float64 // negative
	MaxDrawdown        float64 // fraction of peak balance
	ProfitFactor       float64
	AverageWin         float64
	AverageLoss        float64
	FinalBalance       float64
	ReturnOnInvestment float64

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration
	RecoveryFactor       float64
	Expectancy           float64
	RiskRewardRatio      float64
	DailyReturns         map[string]float64
	BySetup              map[domain.SetupType]*SetupStats
	ByExitReason         map[domain.ExitReason]int
	EquityCurve          []EquityPoint
}

// SetupStats breaks results down per setup type
type SetupStats struct {
	Trades      int
	Wins        int
	WinRate     float64
	TotalProfit float64
	AvgPnLPct   float64
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePerformance calculates performance metrics from closed trades, in exit order.
func AnalyzePerformance(results []*domain.TradeResult, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance: initialBalance,
		DailyReturns: make(map[string]float64),
		BySetup:      make(map[domain.SetupType]*SetupStats),
		ByExitReason: make(map[domain.ExitReason]int),
		EquityCurve:  make([]EquityPoint, 0, len(results)),
	}
	if len(results) == 0 {
		return metrics
	}

	trades := make([]*domain.TradeResult, len(results))
	copy(trades, results)
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ExitTime.Before(trades[j].ExitTime)
	})

	currentBalance, peakBalance := initialBalance, initialBalance
	var consecutiveWins, consecutiveLosses int
	var totalDuration time.Duration

	for _, trade := range trades {
		metrics.TotalTrades++
		if trade.IsWin() {
			metrics.WinningTrades++
			metrics.GrossProfit += trade.GrossPnL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			metrics.LosingTrades++
			metrics.GrossLoss += trade.GrossPnL
			consecutiveLosses++
			consecutiveWins = 0
		}
		metrics.MaxConsecutiveWins = max(metrics.MaxConsecutiveWins, consecutiveWins)
		metrics.MaxConsecutiveLosses = max(metrics.MaxConsecutiveLosses, consecutiveLosses)

		currentBalance += trade.GrossPnL
		metrics.TotalProfit += trade.GrossPnL
		metrics.DailyReturns[trade.ExitTime.Format("2006-01-02")] += trade.GrossPnL
		metrics.ByExitReason[trade.ExitReason]++
		totalDuration += trade.ExitTime.Sub(trade.EntryTime)

		st, ok := metrics.BySetup[trade.SetupType]
		if !ok {
			st = &SetupStats{}
			metrics.BySetup[trade.SetupType] = st
		}
		st.Trades++
		st.TotalProfit += trade.GrossPnL
		st.AvgPnLPct += (trade.PnLPercent - st.AvgPnLPct) / float64(st.Trades)
		if trade.IsWin() {
			st.Wins++
		}
		st.WinRate = float64(st.Wins) / float64(st.Trades)

		peakBalance = math.Max(peakBalance, currentBalance)
		drawdown := 0.0
		if peakBalance > 0 {
			drawdown = (peakBalance - currentBalance) / peakBalance
		}
		metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, drawdown)
		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.ExitTime,
			Value:    currentBalance,
			Drawdown: drawdown,
		})
	}

	metrics.FinalBalance = currentBalance
	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = metrics.GrossProfit / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = metrics.GrossLoss / float64(metrics.LosingTrades)
	}
	if metrics.GrossLoss != 0 {
		metrics.ProfitFactor = metrics.GrossProfit / -metrics.GrossLoss
	}
	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}
	if initialBalance > 0 {
		metrics.ReturnOnInvestment = (metrics.FinalBalance - initialBalance) / initialBalance
		if metrics.MaxDrawdown > 0 {
			metrics.RecoveryFactor = metrics.TotalProfit / (initialBalance * metrics.MaxDrawdown)
		}
	}
	metrics.Expectancy = metrics.WinRate*metrics.AverageWin + (1-metrics.WinRate)*metrics.AverageLoss
	metrics.AverageTradeDuration = totalDuration / time.Duration(len(trades))
	return metrics
}

// GetDailyReturns returns the daily returns as a sorted slice
func (m *PerformanceMetrics) GetDailyReturns() []DailyReturn {
	returns := make([]DailyReturn, 0, len(m.DailyReturns))
	for day, profit := range m.DailyReturns {
		date, _ := time.Parse("2006-01-02", day)
		returns = append(returns, DailyReturn{Day: date, Return: profit})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Day.Before(returns[j].Day)
	})
	return returns
}

// DailyReturn represents a daily return value
type DailyReturn struct {
	Day    time.Time
	Return float64
}

// Observations turns the metrics into short session-review notes.
func (m *PerformanceMetrics) Observations() []string {
	if m.TotalTrades == 0 {
		return []string{"No trades closed in this session"}
	}
	notes := []string{fmt.Sprintf("%d trades, win rate %.1f%%, net %.2f", m.TotalTrades, m.WinRate*100, m.TotalProfit)}

	types := make([]domain.SetupType, 0, len(m.BySetup))
	for t := range m.BySetup {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		st := m.BySetup[t]
		notes = append(notes, fmt.Sprintf("%s: %d trades, %.0f%% wins, avg %.2f%%", t, st.Trades, st.WinRate*100, st.AvgPnLPct))
	}

	if m.MaxConsecutiveLosses >= 3 {
		notes = append(notes, fmt.Sprintf("Losing streak of %d trades; review setup selection", m.MaxConsecutiveLosses))
	}
	if m.ByExitReason[domain.ExitReasonSignal] > 0 {
		notes = append(notes, fmt.Sprintf("%d exits on technical reversal signals", m.ByExitReason[domain.ExitReasonSignal]))
	}
	return notes
}
