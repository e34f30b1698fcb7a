package trend

import (
	"context"
	"fmt"
	"math"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
	"ytcbot/internal/strategy/structure"
)

// Config holds parameters for trend classification.
type Config struct {
	SwingWindow int `yaml:"swing_window"` // default 3
}

// DefaultConfig returns the standard classifier parameters.
func DefaultConfig() Config {
	return Config{SwingWindow: 3}
}

// Classifier grades direction, confidence and strength of the trading timeframe.
type Classifier struct {
	cfg    Config
	logger ports.Logger
}

// New creates a trend classifier.
func New(cfg Config, logger ports.Logger) (*Classifier, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for trend classifier")
	}
	if cfg.SwingWindow <= 0 {
		return nil, fmt.Errorf("swing window must be positive")
	}
	return &Classifier{cfg: cfg, logger: logger}, nil
}

type swingCounts struct {
	hh, hl, lh, ll int
}

// Classify derives the trend state from bars. htf is the higher-timeframe
// direction; an empty or sideways htf never conflicts.
func (c *Classifier) Classify(ctx context.Context, bars []*domain.Bar, htf domain.TrendDirection) *domain.TrendState {
	if htf == "" {
		htf = domain.TrendSideways
	}
	state := &domain.TrendState{
		Direction:    domain.TrendSideways,
		Confidence:   0.5,
		Strength:     domain.StrengthWeak,
		HTFDirection: htf,
		Integrity:    domain.StructureIntegrity{Intact: true},
	}

	highs, lows := structure.DetectSwings(bars, c.cfg.SwingWindow)
	state.Swings = structure.Chronological(highs, lows)

	counts := swingCounts{hh: countRises(highs), hl: countRises(lows)}
	counts.lh = max(0, len(highs)-1-counts.hh)
	counts.ll = max(0, len(lows)-1-counts.hl)
	state.HigherHighs, state.HigherLows = counts.hh, counts.hl
	state.LowerHighs, state.LowerLows = counts.lh, counts.ll

	state.Direction = direction(len(state.Swings), len(highs), len(lows), counts)
	c.markBreaks(state)
	state.Confidence = confidence(state.Direction, len(state.Swings), counts)
	state.Strength = strength(state, lastClose(bars))
	c.assessAlignment(state)

	if n := len(state.Swings); n >= 2 {
		start := state.Swings[n-2]
		state.InceptionTime = start.Timestamp
		state.BarsSinceStart = len(bars) - 1 - start.BarIndex
	}

	c.logger.Debug(ctx, "Trend classified", map[string]interface{}{
		"direction":  state.Direction,
		"strength":   state.Strength,
		"confidence": state.Confidence,
		"swings":     len(state.Swings),
		"breaks":     state.StructureBreaks,
		"htfAligned": state.HTFAligned,
	})
	return state
}

func direction(total, nHighs, nLows int, c swingCounts) domain.TrendDirection {
	if total < 3 || nHighs < 2 || nLows < 2 {
		return domain.TrendSideways
	}
	up := c.hh + c.hl
	down := c.lh + c.ll
	switch {
	case c.hh >= 2 && c.hl >= 2:
		return domain.TrendUp
	case c.lh >= 2 && c.ll >= 2:
		return domain.TrendDown
	case up > down+1:
		return domain.TrendUp
	case down > up+1:
		return domain.TrendDown
	default:
		return domain.TrendSideways
	}
}

// markBreaks flags swings that violate the trend: lower lows in an uptrend,
// higher highs in a downtrend.
func (c *Classifier) markBreaks(state *domain.TrendState) {
	var kind domain.SwingKind
	var violates func(cur, prev float64) bool
	switch state.Direction {
	case domain.TrendUp:
		kind = domain.SwingLow
		violates = func(cur, prev float64) bool { return cur < prev }
	case domain.TrendDown:
		kind = domain.SwingHigh
		violates = func(cur, prev float64) bool { return cur > prev }
	default:
		return
	}

	prev := -1
	for i := range state.Swings {
		if state.Swings[i].Kind != kind {
			continue
		}
		if prev >= 0 && violates(state.Swings[i].Price, state.Swings[prev].Price) {
			state.Swings[i].IsBroken = true
			state.StructureBreaks++
			state.Integrity.LastBreak = breakDescription(state.Direction, state.Swings[i].Price)
			state.Integrity.LastBreakTime = state.Swings[i].Timestamp
		}
		prev = i
	}
	state.Integrity.BrokenSwingCnt = state.StructureBreaks
	state.Integrity.Intact = state.StructureBreaks == 0
}

func breakDescription(dir domain.TrendDirection, price float64) string {
	if dir == domain.TrendUp {
		return fmt.Sprintf("LL formed in uptrend at %.2f", price)
	}
	return fmt.Sprintf("HH formed in downtrend at %.2f", price)
}

func confidence(dir domain.TrendDirection, swings int, c swingCounts) float64 {
	if dir == domain.TrendSideways {
		return 0.5
	}
	conf := math.Min(0.15*float64(swings), 0.95)
	if (dir == domain.TrendUp && c.hh >= 2 && c.hl >= 2) || (dir == domain.TrendDown && c.lh >= 2 && c.ll >= 2) {
		conf += 0.15
	}
	return math.Min(conf, 1.0)
}

func strength(state *domain.TrendState, close float64) domain.TrendStrength {
	switch state.Direction {
	case domain.TrendUp:
		if low := state.LeadingSwing(domain.SwingLow); low != nil && close < low.Price {
			return domain.StrengthReversalWarning
		}
	case domain.TrendDown:
		if high := state.LeadingSwing(domain.SwingHigh); high != nil && close > high.Price {
			return domain.StrengthReversalWarning
		}
	default:
		return domain.StrengthWeak
	}

	swings, breaks := len(state.Swings), state.StructureBreaks
	switch {
	case swings >= 5 && breaks == 0, swings >= 3 && breaks <= 1:
		return domain.StrengthStrong
	case swings >= 2 && breaks == 0:
		return domain.StrengthModerate
	default:
		return domain.StrengthWeak
	}
}

func (c *Classifier) assessAlignment(state *domain.TrendState) {
	state.HTFAligned = Aligned(state.Direction, state.HTFDirection)
	if state.HTFAligned {
		state.Alignment = fmt.Sprintf("Trading TF %s aligned with HTF %s", state.Direction, state.HTFDirection)
		return
	}
	state.Alignment = fmt.Sprintf("Trading TF %s conflicts with HTF %s", state.Direction, state.HTFDirection)
	state.Conflict = fmt.Sprintf("HTF is %s while trading timeframe is %s", state.HTFDirection, state.Direction)
}

// Aligned reports whether a trading-timeframe direction agrees with the HTF.
// A sideways HTF never conflicts.
func Aligned(trading, htf domain.TrendDirection) bool {
	if htf == domain.TrendSideways || htf == "" {
		return true
	}
	return trading == htf
}

// countRises counts consecutive pairs where the later swing is strictly higher.
// Every other pair, equal ones included, is a lower high or lower low.
func countRises(swings []domain.Swing) int {
	n := 0
	for i := 1; i < len(swings); i++ {
		if swings[i].Price > swings[i-1].Price {
			n++
		}
	}
	return n
}

func lastClose(bars []*domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Close
}
