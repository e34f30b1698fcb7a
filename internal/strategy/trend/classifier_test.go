package trend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcbot/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func zigzag(n int, start, slope float64) []*domain.Bar {
	offsets := []float64{0, 1.5, 3, 1.5}
	bars := make([]*domain.Bar, n)
	for i := 0; i < n; i++ {
		c := start + slope*float64(i) + offsets[i%4]
		bars[i] = &domain.Bar{OpenTime: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
	}
	return bars
}

// wave alternates trough and peak bars starting with a trough, so every
// interior point becomes a swing with a window of 1.
func wave(points ...float64) []*domain.Bar {
	bars := make([]*domain.Bar, len(points))
	for i, p := range points {
		high, low := p+1, p
		if i%2 == 1 {
			high, low = p, p-1
		}
		mid := (high + low) / 2
		bars[i] = &domain.Bar{OpenTime: t0.Add(time.Duration(i) * time.Hour), Open: mid, High: high, Low: low, Close: mid}
	}
	return bars
}

func newClassifier(t *testing.T, window int) *Classifier {
	t.Helper()
	c, err := New(Config{SwingWindow: window}, &mockLogger{})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)
	_, err = New(Config{SwingWindow: 0}, &mockLogger{})
	assert.Error(t, err)
}

func TestClassify_Direction(t *testing.T) {
	c := newClassifier(t, 3)
	ctx := context.Background()

	tests := []struct {
		name       string
		bars       []*domain.Bar
		direction  domain.TrendDirection
		confidence float64
		strength   domain.TrendStrength
	}{
		{"rising swings", zigzag(40, 100, 0.25), domain.TrendUp, 1.0, domain.StrengthStrong},
		{"falling swings", zigzag(40, 100, -0.25), domain.TrendDown, 1.0, domain.StrengthStrong},
		{"flat swings count as lower", zigzag(40, 100, 0), domain.TrendDown, 1.0, domain.StrengthStrong},
		{"not enough swings", zigzag(8, 100, 0.25), domain.TrendSideways, 0.5, domain.StrengthWeak},
		{"no bars", nil, domain.TrendSideways, 0.5, domain.StrengthWeak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := c.Classify(ctx, tt.bars, domain.TrendSideways)
			assert.Equal(t, tt.direction, state.Direction)
			assert.InDelta(t, tt.confidence, state.Confidence, 1e-9)
			assert.Equal(t, tt.strength, state.Strength)
			assert.GreaterOrEqual(t, state.Confidence, 0.0)
			assert.LessOrEqual(t, state.Confidence, 1.0)
		})
	}
}

func TestClassify_StructureBreaks(t *testing.T) {
	c := newClassifier(t, 1)
	ctx := context.Background()

	t.Run("single lower low keeps trend strong", func(t *testing.T) {
		bars := wave(100, 105, 102, 107, 101, 109, 104, 111, 106, 113)
		state := c.Classify(ctx, bars, domain.TrendUp)
		assert.Equal(t, domain.TrendUp, state.Direction)
		assert.Equal(t, 1, state.StructureBreaks)
		assert.Equal(t, domain.StrengthStrong, state.Strength)
		assert.False(t, state.Integrity.Intact)
		assert.Equal(t, "LL formed in uptrend at 101.00", state.Integrity.LastBreak)
	})

	t.Run("two lower lows weaken trend", func(t *testing.T) {
		bars := wave(100, 105, 102, 107, 101, 109, 104, 111, 103, 113, 106, 115)
		state := c.Classify(ctx, bars, domain.TrendUp)
		assert.Equal(t, domain.TrendUp, state.Direction)
		assert.Equal(t, 4, state.HigherHighs)
		assert.Equal(t, 2, state.HigherLows)
		assert.Equal(t, 2, state.LowerLows)
		assert.Equal(t, 2, state.StructureBreaks)
		assert.Equal(t, domain.StrengthWeak, state.Strength)
		assert.Equal(t, "LL formed in uptrend at 103.00", state.Integrity.LastBreak)
		assert.Equal(t, t0.Add(8*time.Hour), state.Integrity.LastBreakTime)

		broken := 0
		for _, s := range state.Swings {
			if s.IsBroken {
				broken++
				assert.Equal(t, domain.SwingLow, s.Kind)
			}
		}
		assert.Equal(t, 2, broken)
		assert.Equal(t, t0.Add(9*time.Hour), state.InceptionTime)
		assert.Equal(t, 2, state.BarsSinceStart)
	})
}

func TestClassify_EqualSwingsCountAsLower(t *testing.T) {
	c := newClassifier(t, 1)
	state := c.Classify(context.Background(), wave(100, 110, 100, 110, 100, 110, 100, 110, 100), domain.TrendSideways)

	assert.Equal(t, 0, state.HigherHighs)
	assert.Equal(t, 0, state.HigherLows)
	assert.Equal(t, 3, state.LowerHighs)
	assert.Equal(t, 2, state.LowerLows)
	assert.Equal(t, domain.TrendDown, state.Direction)
	assert.Equal(t, 0, state.StructureBreaks)
}

func TestClassify_ReversalWarning(t *testing.T) {
	c := newClassifier(t, 3)
	bars := zigzag(40, 100, 0.25)
	bars = append(bars, &domain.Bar{OpenTime: t0.Add(40 * time.Hour), Open: 110, High: 110, Low: 99, Close: 100})

	state := c.Classify(context.Background(), bars, domain.TrendUp)
	assert.Equal(t, domain.TrendUp, state.Direction)
	assert.Equal(t, domain.StrengthReversalWarning, state.Strength)
}

func TestClassify_HTFAlignment(t *testing.T) {
	c := newClassifier(t, 3)
	ctx := context.Background()
	up := zigzag(40, 100, 0.25)

	state := c.Classify(ctx, up, domain.TrendDown)
	assert.False(t, state.HTFAligned)
	assert.Equal(t, "Trading TF up conflicts with HTF down", state.Alignment)
	assert.NotEmpty(t, state.Conflict)

	state = c.Classify(ctx, up, domain.TrendUp)
	assert.True(t, state.HTFAligned)
	assert.Empty(t, state.Conflict)

	state = c.Classify(ctx, up, "")
	assert.True(t, state.HTFAligned)
	assert.Equal(t, domain.TrendSideways, state.HTFDirection)
}

func TestAligned(t *testing.T) {
	tests := []struct {
		trading, htf domain.TrendDirection
		want         bool
	}{
		{domain.TrendUp, domain.TrendUp, true},
		{domain.TrendUp, domain.TrendDown, false},
		{domain.TrendDown, domain.TrendSideways, true},
		{domain.TrendSideways, domain.TrendSideways, true},
		{domain.TrendSideways, domain.TrendUp, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Aligned(tt.trading, tt.htf), "%s vs %s", tt.trading, tt.htf)
	}
}
