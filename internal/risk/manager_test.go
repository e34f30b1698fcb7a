package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

func newManager(t *testing.T) *RiskManager {
	t.Helper()
	m, err := NewRiskManager(RiskConfig{
		RiskPercent:         1,
		MaxDrawdownPercent:  10,
		MaxDailyTrades:      3,
		MinAvailableBalance: 100,
	})
	require.NoError(t, err)
	return m
}

func TestNewRiskManager_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  RiskConfig
	}{
		{"zero risk", RiskConfig{RiskPercent: 0, MaxDrawdownPercent: 10, MaxDailyTrades: 1}},
		{"drawdown above 100", RiskConfig{RiskPercent: 1, MaxDrawdownPercent: 150, MaxDailyTrades: 1}},
		{"no daily trades", RiskConfig{RiskPercent: 1, MaxDrawdownPercent: 10}},
		{"negative minimum", RiskConfig{RiskPercent: 1, MaxDrawdownPercent: 10, MaxDailyTrades: 1, MinAvailableBalance: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRiskManager(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestBudget(t *testing.T) {
	m := newManager(t)
	assert.InDelta(t, 100.0, m.Budget(10_000), 1e-9)
	assert.Equal(t, 0.0, m.Budget(-5))
}

func TestCheckLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy account", func(t *testing.T) {
		assert.NoError(t, newManager(t).CheckLimits(ctx, 10_000))
	})

	t.Run("balance below minimum", func(t *testing.T) {
		assert.ErrorIs(t, newManager(t).CheckLimits(ctx, 50), ports.ErrRiskLimitExceeded)
	})

	t.Run("drawdown from peak", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, m.CheckLimits(ctx, 10_000))
		require.NoError(t, m.CheckLimits(ctx, 9_100))
		err := m.CheckLimits(ctx, 8_900)
		assert.ErrorIs(t, err, ports.ErrRiskLimitExceeded)
		assert.InDelta(t, 11.0, m.GetStats().CurrentDrawdown, 1e-9)
	})

	t.Run("daily trade cap", func(t *testing.T) {
		m := newManager(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, m.CheckLimits(ctx, 10_000))
			m.RecordResult(ctx, &domain.TradeResult{GrossPnL: 10}, 10_000+float64(i+1)*10)
		}
		assert.ErrorIs(t, m.CheckLimits(ctx, 10_030), ports.ErrRiskLimitExceeded)
		stats := m.GetStats()
		assert.Equal(t, 3, stats.DailyTrades)
		assert.InDelta(t, 30.0, stats.DailyPnL, 1e-9)
		assert.InDelta(t, 10_030.0, stats.PeakBalance, 1e-9)
	})
}

func TestDailyRollover(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return day }
	m.ResetDailyStats(ctx)

	m.RestoreDailyTrades(3)
	assert.ErrorIs(t, m.CheckLimits(ctx, 10_000), ports.ErrRiskLimitExceeded)

	day = day.Add(24 * time.Hour)
	assert.NoError(t, m.CheckLimits(ctx, 10_000))
	assert.Equal(t, 0, m.GetStats().DailyTrades)
}

func TestRecordResult_Nil(t *testing.T) {
	m := newManager(t)
	m.RecordResult(context.Background(), nil, 1000)
	assert.Equal(t, 0, m.GetStats().DailyTrades)
}
