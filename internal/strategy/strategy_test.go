package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

func zigzag(n int, start, slope float64) []*domain.Bar {
	offsets := []float64{0, 1.5, 3, 1.5}
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		c := start + slope*float64(i) + offsets[i%4]
		bars[i] = &domain.Bar{OpenTime: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
	}
	return bars
}

func TestNew(t *testing.T) {
	badStrength := DefaultConfig()
	badStrength.Strength.LookbackBars = 2
	badSwing := DefaultConfig()
	badSwing.Structure.SwingWindow = 0

	tests := []struct {
		name    string
		cfg     Config
		logger  ports.Logger
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultConfig(), logger: &mockLogger{}},
		{name: "nil logger", cfg: DefaultConfig(), logger: nil, wantErr: true},
		{name: "invalid strength lookback", cfg: badStrength, logger: &mockLogger{}, wantErr: true},
		{name: "invalid swing window", cfg: badSwing, logger: &mockLogger{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, tt.logger)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 7, s.RequiredDataPoints())
		})
	}
}

func TestAnalyze_InvalidPrice(t *testing.T) {
	s, err := New(DefaultConfig(), &mockLogger{})
	require.NoError(t, err)

	_, err = s.Analyze(context.Background(), ports.AnalysisInput{Symbol: "BTCUSDT", CurrentPrice: 0})
	assert.ErrorIs(t, err, ports.ErrInvalidPrice)
}

func TestAnalyze_Uptrend(t *testing.T) {
	logger := &mockLogger{}
	s, err := New(DefaultConfig(), logger)
	require.NoError(t, err)

	in := ports.AnalysisInput{
		Symbol:        "BTCUSDT",
		StructureBars: zigzag(40, 100, 0.25),
		TrendBars:     zigzag(40, 100, 0.25),
		EntryBars:     zigzag(30, 102.5, 0.25),
		CurrentPrice:  112,
	}
	a, err := s.Analyze(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", a.Symbol)
	require.NotNil(t, a.Structure)
	assert.True(t, a.Structure.Complete)
	assert.Equal(t, domain.StageStrongUp, a.Structure.Stage)

	require.NotNil(t, a.Trend)
	assert.Equal(t, domain.TrendUp, a.Trend.Direction)
	assert.Equal(t, domain.TrendUp, a.Trend.HTFDirection)
	assert.True(t, a.Trend.HTFAligned)

	require.NotNil(t, a.Strength)
	require.NotNil(t, a.Scan)
	assert.True(t, a.Scan.Complete)
	assert.Equal(t, len(a.Scan.Setups), a.Scan.Summary.Total)
	assert.Contains(t, logger.infoMsgs, "Analysis complete")
}

func TestAnalyze_HTFOverride(t *testing.T) {
	s, err := New(DefaultConfig(), &mockLogger{})
	require.NoError(t, err)

	a, err := s.Analyze(context.Background(), ports.AnalysisInput{
		Symbol:        "BTCUSDT",
		StructureBars: zigzag(40, 100, 0.25),
		TrendBars:     zigzag(40, 100, 0.25),
		CurrentPrice:  112,
		HTFDirection:  domain.TrendDown,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TrendDown, a.Trend.HTFDirection)
	assert.False(t, a.Trend.HTFAligned)
	assert.NotEmpty(t, a.Trend.Conflict)
}

func TestAnalyze_SparseData(t *testing.T) {
	logger := &mockLogger{}
	s, err := New(DefaultConfig(), logger)
	require.NoError(t, err)

	a, err := s.Analyze(context.Background(), ports.AnalysisInput{
		Symbol:        "BTCUSDT",
		StructureBars: zigzag(4, 100, 0.25),
		CurrentPrice:  100,
	})
	require.NoError(t, err)
	assert.False(t, a.Structure.Complete)
	assert.Equal(t, domain.LocationUnknown, a.Structure.Location)
	assert.Equal(t, domain.TrendSideways, a.Trend.Direction)
	assert.False(t, a.Scan.Complete)
	assert.Empty(t, a.Scan.Setups)
	assert.NotEmpty(t, logger.warnMsgs)
}
