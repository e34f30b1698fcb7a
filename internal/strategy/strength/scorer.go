package strength

import (
	"context"
	"fmt"
	"math"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
	"ytcbot/internal/strategy/structure"
)

const (
	momentumWeight   = 0.40
	projectionWeight = 0.30
	depthWeight      = 0.30

	fibShallow = 0.382
	fibDeep    = 0.618
)

// Expected-action texts attached to the applicability assessment.
const (
	ActionContinuation = "Expect pullback continuation; favorable for BPB, PB, CPB setups in trend direction"
	ActionReversal     = "Reversal warning: multiple weakness signals detected; avoid counter-trend entries"
	ActionFade         = "Fade weakness at S/R level; enter opposite to weakness direction"
	ActionNeutral      = "Neutral strength; context dependent; confirm with HTF bias"
	ActionMonitor      = "Monitor for continuation or reversal based on next bars"
)

// Config holds parameters for strength scoring.
type Config struct {
	LookbackBars      int     `yaml:"lookback_bars"`       // momentum window, default 20
	ZoneProximityPct  float64 `yaml:"zone_proximity_pct"`  // distance that counts as approaching a zone, default 1.0
	RejectionWickRate float64 `yaml:"rejection_wick_rate"` // wick/body ratio for a rejection bar, default 1.5
}

// DefaultConfig returns the standard scorer parameters.
func DefaultConfig() Config {
	return Config{LookbackBars: 20, ZoneProximityPct: 1.0, RejectionWickRate: 1.5}
}

// Input is what the scorer needs from earlier stages.
type Input struct {
	Direction       domain.TrendDirection
	Swings          []domain.Swing // chronological
	Bars            []*domain.Bar  // entry timeframe, oldest first
	ApproachingZone *domain.Zone   // nearest zone, if any
}

// Scorer measures momentum, projection and pullback depth of the current move.
type Scorer struct {
	cfg    Config
	logger ports.Logger
}

// New creates a strength scorer.
func New(cfg Config, logger ports.Logger) (*Scorer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strength scorer")
	}
	if cfg.LookbackBars < 6 {
		return nil, fmt.Errorf("lookback bars must be at least 6, got %d", cfg.LookbackBars)
	}
	if cfg.ZoneProximityPct <= 0 || cfg.RejectionWickRate <= 0 {
		return nil, fmt.Errorf("zone proximity and rejection wick rate must be positive")
	}
	return &Scorer{cfg: cfg, logger: logger}, nil
}

// CombinedScore weights the three components and clamps the result to [0,100].
func CombinedScore(momentum, projection, depth float64) float64 {
	return clamp(momentumWeight*momentum+projectionWeight*projection+depthWeight*depth, 0, 100)
}

// Score evaluates the entry timeframe. It never fails; missing inputs fall back to neutral scores.
func (s *Scorer) Score(ctx context.Context, in Input) *domain.StrengthScore {
	window := tail(in.Bars, s.cfg.LookbackBars)
	score := &domain.StrengthScore{}

	score.Momentum = momentum(window, in.Direction)
	score.MomentumRating = domain.RateScore(score.Momentum)
	score.Projection, score.ProjectionRatio, score.ProjectionState = projection(in)
	score.Depth, score.DepthRatio, score.DepthState = depth(in)
	score.Combined = CombinedScore(score.Momentum, score.Projection, score.Depth)
	score.CombinedRating = domain.RateScore(score.Combined)
	score.CloseQuality = closeQuality(tail(in.Bars, 5), in.Direction)

	score.Weakness = s.weakness(in, score)
	score.Applicability = s.applicability(in, score)
	score.Bias = bias(in.Direction, score.MomentumRating)

	s.logger.Debug(ctx, "Strength scored", map[string]interface{}{
		"momentum":   score.Momentum,
		"projection": score.Projection,
		"depth":      score.Depth,
		"combined":   score.Combined,
		"weakness":   score.Weakness.Any(),
	})
	return score
}

// momentum averages body-size, consecutive-close and acceleration sub-scores.
func momentum(window []*domain.Bar, dir domain.TrendDirection) float64 {
	if len(window) == 0 {
		return 50
	}

	var total, withTrend float64
	withCount := 0
	for _, b := range window {
		total += b.Body()
		if movesWith(b, dir) {
			withTrend += b.Body()
			withCount++
		}
	}
	bodyScore := 50.0
	if avg := total / float64(len(window)); avg > 0 {
		trendAvg := 0.0
		if withCount > 0 {
			trendAvg = withTrend / float64(withCount)
		}
		bodyScore = math.Min(100, trendAvg/avg*100)
	}

	consecutive := 0
	for i := len(window) - 1; i >= 0 && movesWith(window[i], dir); i-- {
		consecutive++
	}
	consecutiveScore := float64(consecutive) / float64(len(window)) * 100

	return (bodyScore + consecutiveScore + acceleration(window)) / 3
}

func acceleration(window []*domain.Bar) float64 {
	if len(window) < 6 {
		return 50
	}
	recent := avgBody(window[len(window)-3:])
	prior := avgBody(window[len(window)-6 : len(window)-3])
	if prior == 0 {
		return 50
	}
	return clamp(recent/prior*100, 0, 100)
}

// projection compares the current leg against the average of the last three
// completed legs in the trend direction.
func projection(in Input) (float64, float64, domain.ProjectionState) {
	idx := legStart(in.Swings, in.Direction)
	if idx < 0 || len(in.Bars) == 0 {
		return 50, 1, domain.ProjectionNormal
	}
	start := in.Swings[idx]
	legs := trendLegs(in.Swings[:idx], in.Direction)
	if len(legs) == 0 {
		return 50, 1, domain.ProjectionNormal
	}
	prior := mean(tailFloats(legs, 3))
	if prior == 0 {
		return 50, 1, domain.ProjectionNormal
	}
	current := math.Abs(in.Bars[len(in.Bars)-1].Close - start.Price)
	ratio := current / prior
	switch {
	case ratio > 1.2:
		return math.Min(100, ratio*100/1.5), ratio, domain.ProjectionExtending
	case ratio >= 0.8:
		return 40 + (ratio-0.8)/0.4*30, ratio, domain.ProjectionNormal
	default:
		return ratio * 50, ratio, domain.ProjectionContracting
	}
}

// depth measures how much of the last impulse leg the recent bars gave back.
func depth(in Input) (float64, float64, domain.DepthState) {
	if in.Direction == domain.TrendSideways || len(in.Bars) < 5 {
		return 50, 0.5, domain.DepthNormal
	}
	extremeKind := domain.SwingHigh
	if in.Direction == domain.TrendDown {
		extremeKind = domain.SwingLow
	}
	idx := lastIndexOf(in.Swings, extremeKind)
	if idx < 1 || in.Swings[idx-1].Kind == extremeKind {
		return 50, 0.5, domain.DepthNormal
	}
	extreme := in.Swings[idx].Price
	leg := math.Abs(extreme - in.Swings[idx-1].Price)
	if leg == 0 {
		return 50, 0.5, domain.DepthNormal
	}

	recent := tail(in.Bars, 5)
	var retrace float64
	if in.Direction == domain.TrendUp {
		low := recent[0].Low
		for _, b := range recent[1:] {
			low = math.Min(low, b.Low)
		}
		retrace = extreme - low
	} else {
		high := recent[0].High
		for _, b := range recent[1:] {
			high = math.Max(high, b.High)
		}
		retrace = high - extreme
	}
	r := clamp(retrace/leg, 0, 2)

	switch {
	case r < fibShallow:
		return 100 - r/fibShallow*30, r, domain.DepthShallow
	case r <= fibDeep:
		return 40 + (fibDeep-r)/(fibDeep-fibShallow)*30, r, domain.DepthNormal
	case r < 1:
		return (1 - r) / (1 - fibDeep) * 40, r, domain.DepthDeep
	default:
		return 0, r, domain.DepthFullReversal
	}
}

func closeQuality(bars []*domain.Bar, dir domain.TrendDirection) domain.Rating {
	if len(bars) == 0 || dir == domain.TrendSideways {
		return domain.RatingWeak
	}
	want := domain.CloseHigh
	if dir == domain.TrendDown {
		want = domain.CloseLow
	}
	good := 0
	for _, b := range bars {
		if b.ClosePosition() == want {
			good++
		}
	}
	frac := float64(good) / float64(len(bars))
	switch {
	case frac >= 0.6:
		return domain.RatingStrong
	case frac >= 0.3:
		return domain.RatingModerate
	default:
		return domain.RatingWeak
	}
}

func (s *Scorer) weakness(in Input, score *domain.StrengthScore) domain.WeaknessSignals {
	var w domain.WeaknessSignals
	for _, b := range tail(in.Bars, 3) {
		if HasRejectionWick(b, s.cfg.RejectionWickRate) {
			w.RejectionBars = true
			break
		}
	}
	w.MomentumDivergence = score.Momentum < 30 && newExtreme(in.Bars, in.Direction)
	w.ProjectionFailure = score.ProjectionRatio < 0.8
	w.DeepPullback = score.DepthRatio > fibDeep
	w.ReversalWarning = w.RejectionBars && w.DeepPullback && score.ProjectionState == domain.ProjectionContracting
	return w
}

func (s *Scorer) applicability(in Input, score *domain.StrengthScore) domain.SetupApplicability {
	w := score.Weakness
	app := domain.SetupApplicability{
		Continuation: score.Combined >= 60,
		Reversal:     score.Combined < 40 || w.RejectionBars || w.DeepPullback,
	}
	approaching := false
	if in.ApproachingZone != nil && len(in.Bars) > 0 {
		approaching = structure.PercentDistance(in.Bars[len(in.Bars)-1].Close, in.ApproachingZone.Level) <= s.cfg.ZoneProximityPct
	}
	app.Fade = approaching && score.Combined < 40 && w.RejectionBars

	switch {
	case w.ReversalWarning:
		app.ExpectedAction = ActionReversal
	case app.Fade:
		app.ExpectedAction = ActionFade
	case app.Continuation:
		app.ExpectedAction = ActionContinuation
	case score.Combined >= 40:
		app.ExpectedAction = ActionNeutral
	default:
		app.ExpectedAction = ActionMonitor
	}
	return app
}

func bias(dir domain.TrendDirection, rating domain.Rating) domain.MomentumBias {
	if rating != domain.RatingStrong {
		return domain.MomentumNeutral
	}
	switch dir {
	case domain.TrendUp:
		return domain.MomentumStrongUp
	case domain.TrendDown:
		return domain.MomentumStrongDown
	default:
		return domain.MomentumNeutral
	}
}

// HasRejectionWick reports whether the longer wick is at least rate times the body.
func HasRejectionWick(b *domain.Bar, rate float64) bool {
	if b.Range() <= 0 {
		return false
	}
	return math.Max(b.UpperWick(), b.LowerWick()) >= rate*b.Body()
}

// newExtreme reports whether any of the last five bars pushed beyond the bar six back.
func newExtreme(bars []*domain.Bar, dir domain.TrendDirection) bool {
	if len(bars) < 6 || dir == domain.TrendSideways {
		return false
	}
	ref := bars[len(bars)-6]
	for _, b := range bars[len(bars)-5:] {
		if dir == domain.TrendUp && b.High > ref.High {
			return true
		}
		if dir == domain.TrendDown && b.Low < ref.Low {
			return true
		}
	}
	return false
}

func movesWith(b *domain.Bar, dir domain.TrendDirection) bool {
	switch dir {
	case domain.TrendUp:
		return b.IsBullish()
	case domain.TrendDown:
		return b.IsBearish()
	default:
		return false
	}
}

// legStart returns the index of the swing the current trend-direction leg
// started from, or -1.
func legStart(swings []domain.Swing, dir domain.TrendDirection) int {
	switch dir {
	case domain.TrendUp:
		return lastIndexOf(swings, domain.SwingLow)
	case domain.TrendDown:
		return lastIndexOf(swings, domain.SwingHigh)
	default:
		return -1
	}
}

// trendLegs lists leg distances that moved in the trend direction. Callers
// pass only the swings before the current leg.
func trendLegs(swings []domain.Swing, dir domain.TrendDirection) []float64 {
	from, to := domain.SwingLow, domain.SwingHigh
	switch dir {
	case domain.TrendUp:
	case domain.TrendDown:
		from, to = domain.SwingHigh, domain.SwingLow
	default:
		return nil
	}
	var legs []float64
	for i := 1; i < len(swings); i++ {
		if swings[i-1].Kind == from && swings[i].Kind == to {
			legs = append(legs, math.Abs(swings[i].Price-swings[i-1].Price))
		}
	}
	return legs
}

func lastIndexOf(swings []domain.Swing, kind domain.SwingKind) int {
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].Kind == kind {
			return i
		}
	}
	return -1
}

func avgBody(bars []*domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range bars {
		total += b.Body()
	}
	return total / float64(len(bars))
}

func tail(bars []*domain.Bar, n int) []*domain.Bar {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

func tailFloats(v []float64, n int) []float64 {
	if len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range v {
		total += x
	}
	return total / float64(len(v))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
