package strength

import (
	"context"
	"math/rand"
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

func bar(o, h, l, c float64) *domain.Bar {
	return &domain.Bar{OpenTime: t0, Open: o, High: h, Low: l, Close: c}
}

func sameBars(n int, o, c float64) []*domain.Bar {
	bars := make([]*domain.Bar, n)
	for i := range bars {
		bars[i] = bar(o, max(o, c)+0.1, min(o, c)-0.1, c)
	}
	return bars
}

// upSwings is a clean up-leg sequence: legs of 10 from 100→110 and 105→115.
func upSwings() []domain.Swing {
	return []domain.Swing{
		{Kind: domain.SwingLow, Price: 100, BarIndex: 0},
		{Kind: domain.SwingHigh, Price: 110, BarIndex: 4},
		{Kind: domain.SwingLow, Price: 105, BarIndex: 8},
		{Kind: domain.SwingHigh, Price: 115, BarIndex: 12},
		{Kind: domain.SwingLow, Price: 110, BarIndex: 16},
	}
}

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(DefaultConfig(), &mockLogger{})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)
	_, err = New(Config{LookbackBars: 3, ZoneProximityPct: 1, RejectionWickRate: 1.5}, &mockLogger{})
	assert.Error(t, err)
}

func TestCombinedScore(t *testing.T) {
	assert.InDelta(t, 100.0, CombinedScore(100, 100, 100), 1e-9)
	assert.InDelta(t, 0.0, CombinedScore(0, 0, 0), 1e-9)
	assert.InDelta(t, 62.0, CombinedScore(80, 60, 40), 1e-9)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		c := CombinedScore(rng.Float64()*100, rng.Float64()*100, rng.Float64()*100)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 100.0)
	}
}

func TestMomentum(t *testing.T) {
	tests := []struct {
		name string
		bars []*domain.Bar
		dir  domain.TrendDirection
		want float64
	}{
		{"no bars is neutral", nil, domain.TrendUp, 50},
		{"uniform bullish bars in uptrend", sameBars(20, 100, 101), domain.TrendUp, 100},
		{"sideways has no with-trend bars", sameBars(20, 100, 101), domain.TrendSideways, 100.0 / 3},
		{"bullish bars against downtrend", sameBars(20, 100, 101), domain.TrendDown, 100.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, momentum(tt.bars, tt.dir), 1e-6)
		})
	}
}

func TestAcceleration(t *testing.T) {
	assert.Equal(t, 50.0, acceleration(sameBars(5, 100, 101)))

	flatPrior := append(sameBars(3, 100, 100), sameBars(3, 100, 101)...)
	assert.Equal(t, 50.0, acceleration(flatPrior))

	slowing := append(sameBars(3, 100, 102), sameBars(3, 100, 101)...)
	assert.InDelta(t, 50.0, acceleration(slowing), 1e-9)

	faster := append(sameBars(3, 100, 101), sameBars(3, 100, 103)...)
	assert.Equal(t, 100.0, acceleration(faster))
}

func TestProjection(t *testing.T) {
	tests := []struct {
		name      string
		close     float64
		wantScore float64
		wantRatio float64
		wantState domain.ProjectionState
	}{
		{"at upper normal bound", 122, 70, 1.2, domain.ProjectionNormal},
		{"at lower normal bound", 118, 40, 0.8, domain.ProjectionNormal},
		{"extending", 125, 100, 1.5, domain.ProjectionExtending},
		{"contracting", 114, 20, 0.4, domain.ProjectionContracting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Direction: domain.TrendUp, Swings: upSwings(), Bars: []*domain.Bar{bar(tt.close, tt.close, tt.close, tt.close)}}
			score, ratio, state := projection(in)
			assert.InDelta(t, tt.wantScore, score, 1e-6)
			assert.InDelta(t, tt.wantRatio, ratio, 1e-9)
			assert.Equal(t, tt.wantState, state)
		})
	}

	t.Run("current leg excluded from baseline", func(t *testing.T) {
		swings := append(upSwings(), domain.Swing{Kind: domain.SwingHigh, Price: 140, BarIndex: 20})
		in := Input{Direction: domain.TrendUp, Swings: swings, Bars: []*domain.Bar{bar(122, 122, 122, 122)}}
		score, ratio, state := projection(in)
		assert.InDelta(t, 1.2, ratio, 1e-9)
		assert.InDelta(t, 70.0, score, 1e-6)
		assert.Equal(t, domain.ProjectionNormal, state)
	})

	t.Run("no prior legs", func(t *testing.T) {
		score, ratio, state := projection(Input{Direction: domain.TrendUp, Bars: sameBars(3, 100, 101)})
		assert.Equal(t, 50.0, score)
		assert.Equal(t, 1.0, ratio)
		assert.Equal(t, domain.ProjectionNormal, state)
	})
}

func TestDepth(t *testing.T) {
	tests := []struct {
		name      string
		minLow    float64
		wantScore float64
		wantRatio float64
		wantState domain.DepthState
	}{
		{"shallow", 112, 100 - 0.3/0.382*30, 0.3, domain.DepthShallow},
		{"normal", 110, 55, 0.5, domain.DepthNormal},
		{"deep", 107, 0.2 / 0.382 * 40, 0.8, domain.DepthDeep},
		{"full reversal", 104, 0, 1.1, domain.DepthFullReversal},
		{"new highs clamp to zero", 116, 100, 0, domain.DepthShallow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := sameBars(4, 117, 117.5)
			bars = append(bars, bar(tt.minLow+1, tt.minLow+2, tt.minLow, tt.minLow+1.5))
			score, ratio, state := depth(Input{Direction: domain.TrendUp, Swings: upSwings(), Bars: bars})
			assert.InDelta(t, tt.wantScore, score, 1e-6)
			assert.InDelta(t, tt.wantRatio, ratio, 1e-9)
			assert.Equal(t, tt.wantState, state)
		})
	}

	t.Run("sideways is neutral", func(t *testing.T) {
		score, ratio, state := depth(Input{Direction: domain.TrendSideways, Swings: upSwings(), Bars: sameBars(10, 100, 101)})
		assert.Equal(t, 50.0, score)
		assert.Equal(t, 0.5, ratio)
		assert.Equal(t, domain.DepthNormal, state)
	})
}

func TestScore_ReversalWarning(t *testing.T) {
	s := newScorer(t)
	bars := []*domain.Bar{
		bar(112, 113, 107, 108),
		bar(108, 110, 108, 109.5),
		bar(109.5, 112, 109, 111.5),
		bar(111.5, 113, 111, 112.5),
		bar(113, 118, 112.8, 114), // long upper wick
	}
	score := s.Score(context.Background(), Input{Direction: domain.TrendUp, Swings: upSwings(), Bars: bars})

	assert.True(t, score.Weakness.RejectionBars)
	assert.True(t, score.Weakness.DeepPullback)
	assert.True(t, score.Weakness.ProjectionFailure)
	assert.Equal(t, domain.ProjectionContracting, score.ProjectionState)
	assert.True(t, score.Weakness.ReversalWarning)
	assert.True(t, score.Applicability.Reversal)
	assert.Equal(t, ActionReversal, score.Applicability.ExpectedAction)
	assert.InDelta(t, CombinedScore(score.Momentum, score.Projection, score.Depth), score.Combined, 1e-9)
}

func TestScore_MomentumDivergence(t *testing.T) {
	s := newScorer(t)
	bars := sameBars(5, 101, 99) // bearish, body 2
	bars = append(bars,
		bar(100.5, 100.6, 99.9, 100),
		bar(100.5, 105, 99.9, 100), // new high against weak momentum
		bar(100.5, 100.6, 99.9, 100),
	)
	score := s.Score(context.Background(), Input{Direction: domain.TrendUp, Bars: bars})
	assert.Less(t, score.Momentum, 30.0)
	assert.True(t, score.Weakness.MomentumDivergence)
}

func TestScore_FadeAtZone(t *testing.T) {
	s := newScorer(t)
	bars := sameBars(8, 101, 100) // bearish bars in an uptrend keep momentum low
	bars = append(bars,
		bar(100.1, 100.15, 99.95, 100),
		bar(100.1, 100.15, 99.95, 100),
		bar(100, 103, 99.9, 100.1),
	)
	zone := &domain.Zone{Level: 100.5, Kind: domain.ZoneResistance}

	score := s.Score(context.Background(), Input{Direction: domain.TrendUp, Bars: bars, ApproachingZone: zone})
	require.Less(t, score.Combined, 40.0)
	assert.True(t, score.Weakness.RejectionBars)
	assert.True(t, score.Applicability.Fade)
	assert.Equal(t, ActionFade, score.Applicability.ExpectedAction)

	score = s.Score(context.Background(), Input{Direction: domain.TrendUp, Bars: bars})
	assert.False(t, score.Applicability.Fade, "no zone means no fade")
}

func TestScore_StrongContinuation(t *testing.T) {
	s := newScorer(t)
	bars := make([]*domain.Bar, 20)
	for i := range bars {
		o := 100 + float64(i)
		bars[i] = bar(o, o+1.05, o-0.05, o+1)
	}
	swings := []domain.Swing{
		{Kind: domain.SwingLow, Price: 95},
		{Kind: domain.SwingHigh, Price: 105},
		{Kind: domain.SwingLow, Price: 100},
		{Kind: domain.SwingHigh, Price: 110},
		{Kind: domain.SwingLow, Price: 106},
	}
	score := s.Score(context.Background(), Input{Direction: domain.TrendUp, Swings: swings, Bars: bars})
	assert.Equal(t, domain.RatingStrong, score.MomentumRating)
	assert.Equal(t, domain.MomentumStrongUp, score.Bias)
	assert.Equal(t, domain.RatingStrong, score.CloseQuality)
	assert.True(t, score.Applicability.Continuation)
	assert.Equal(t, ActionContinuation, score.Applicability.ExpectedAction)
}

func TestScore_EmptyInputIsNeutral(t *testing.T) {
	score := newScorer(t).Score(context.Background(), Input{Direction: domain.TrendSideways})
	assert.Equal(t, 50.0, score.Combined)
	assert.Equal(t, domain.MomentumNeutral, score.Bias)
	assert.Equal(t, ActionNeutral, score.Applicability.ExpectedAction)
	assert.False(t, score.Weakness.Any())
}

func TestHasRejectionWick(t *testing.T) {
	assert.True(t, HasRejectionWick(bar(100, 104, 99.5, 101), 1.5))
	assert.False(t, HasRejectionWick(bar(100, 101.1, 99.9, 101), 1.5))
	assert.False(t, HasRejectionWick(bar(100, 100, 100, 100), 1.5))
}
