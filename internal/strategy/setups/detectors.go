package setups

import (
	"fmt"
	"math"

	"ytcbot/internal/domain"
	"ytcbot/internal/strategy/strength"
	"ytcbot/internal/strategy/structure"
)

// tradeDirection maps a trend onto the with-trend trade side.
func tradeDirection(t domain.TrendDirection) (domain.Direction, bool) {
	switch t {
	case domain.TrendUp:
		return domain.Long, true
	case domain.TrendDown:
		return domain.Short, true
	default:
		return "", false
	}
}

// stageWithTrend reports whether the stage is strong in the trend's direction.
func stageWithTrend(stage domain.TrendStage, t domain.TrendDirection) bool {
	return (stage == domain.StageStrongUp && t == domain.TrendUp) ||
		(stage == domain.StageStrongDown && t == domain.TrendDown)
}

func band(level, pct float64) domain.EntryZone {
	return domain.EntryZone{Lower: level * (1 - pct), Upper: level * (1 + pct)}
}

// scanTST looks for a test of a with-trend zone showing rejection.
func (s *Scanner) scanTST(in Input) []candidate {
	dir, ok := tradeDirection(in.Trend.Direction)
	if !ok || len(in.Bars) < 3 {
		return nil
	}
	last3 := in.Bars[len(in.Bars)-3:]
	if !s.hasRejection(last3) || !validatesAgainstTrend(last3, in.Trend.Direction) {
		return nil
	}

	wantKind := domain.ZoneSupport
	if dir == domain.Short {
		wantKind = domain.ZoneResistance
	}
	var out []candidate
	for _, z := range in.Zones {
		if z.Kind != wantKind || z.Level <= 0 {
			continue
		}
		p := structure.PercentDistance(in.CurrentPrice, z.Level)
		if p <= 0 || p > s.cfg.ProximityPct {
			continue
		}

		c := candidate{typ: domain.SetupTST, dir: dir, zone: band(z.Level, 0.005), reference: fmt.Sprintf("%s %.4f", z.Kind, z.Level)}
		if dir == domain.Long {
			c.zone.Ideal, c.stop = z.Level*1.001, z.Level*0.99
		} else {
			c.zone.Ideal, c.stop = z.Level*0.999, z.Level*1.01
		}
		c.target = zoneTarget(in, dir, z.Level, c.zone.Ideal)

		c.factors = []string{fmt.Sprintf("rejection bars at %s", z.Kind)}
		if in.Trend.HTFAligned {
			c.factors = append(c.factors, "HTF trend alignment")
		}
		if z.Strength >= 6 {
			c.factors = append(c.factors, fmt.Sprintf("strong %s zone", z.Kind))
		}

		c.prob = 70 + 3
		switch {
		case stageWithTrend(in.Stage, in.Trend.Direction):
			c.prob += 20
		case in.Stage == domain.StageRanging:
			c.prob -= 10
		}
		c.prob = math.Min(100, c.prob)
		out = append(out, c)
	}
	return out
}

// scanBOF looks for a breakout ten bars back that failed to follow through.
func (s *Scanner) scanBOF(in Input) []candidate {
	if len(in.Bars) < 10 {
		return nil
	}
	recent := in.Bars[len(in.Bars)-10:]
	breakout, follow := recent[0], recent[1:]
	hi, lo := extremes(recent)

	var out []candidate
	for _, z := range in.Zones {
		level := z.Level
		up := breakout.Low <= level && breakout.Close > level
		down := breakout.High >= level && breakout.Close < level
		if !up && !down {
			continue
		}
		if !weakFollowThrough(follow) && !closesBackThrough(follow, level, up) {
			continue
		}

		c := candidate{typ: domain.SetupBOF, zone: band(level, 0.002), reference: fmt.Sprintf("%s %.4f", z.Kind, level)}
		if up {
			c.dir = domain.Short
			c.zone.Ideal, c.stop = level*0.999, hi*1.001
		} else {
			c.dir = domain.Long
			c.zone.Ideal, c.stop = level*1.001, lo*0.999
		}
		c.target = zoneTarget(in, c.dir, level, c.zone.Ideal)
		c.factors = []string{"failed breakout", "trapped trader reversal"}

		c.prob = 75 + 15
		if in.Stage == domain.StageRanging {
			c.prob -= 10
		}
		c.prob = math.Max(50, math.Min(100, c.prob))
		out = append(out, c)
	}
	return out
}

// scanBPB looks for a with-trend breakout over the last five bars whose
// pullback holds the broken level.
func (s *Scanner) scanBPB(in Input) []candidate {
	dir, ok := tradeDirection(in.Trend.Direction)
	if !ok || len(in.Bars) < 15 {
		return nil
	}
	last5 := in.Bars[len(in.Bars)-5:]
	first, follow := last5[0], last5[1:]

	var legs []*domain.Bar
	for _, b := range last5 {
		if !b.IsStrongBody() {
			legs = append(legs, b)
		}
	}
	if len(legs) == 0 || strongShare(follow) < 0.4 {
		return nil
	}
	leg := legs[len(legs)-1]

	var out []candidate
	for _, z := range in.Zones {
		level := z.Level
		var crossed, holds bool
		if dir == domain.Long {
			crossed = first.Low <= level && first.Close > level
			holds = allClose(legs, func(c float64) bool { return c > level })
		} else {
			crossed = first.High >= level && first.Close < level
			holds = allClose(legs, func(c float64) bool { return c < level })
		}
		if !crossed || !holds {
			continue
		}

		c := candidate{
			typ:       domain.SetupBPB,
			dir:       dir,
			zone:      domain.EntryZone{Lower: leg.Low * 0.995, Upper: leg.High * 1.005},
			reference: fmt.Sprintf("%s %.4f", z.Kind, level),
		}
		if dir == domain.Long {
			c.zone.Ideal, c.stop = leg.High*1.001, leg.Low*0.99
		} else {
			c.zone.Ideal, c.stop = leg.Low*0.999, leg.High*1.01
		}
		c.target = zoneTarget(in, dir, level, c.zone.Ideal)
		c.factors = []string{"sustained breakout", fmt.Sprintf("pullback holds %s", z.Kind)}

		c.prob = 70 + 10
		if stageWithTrend(in.Stage, in.Trend.Direction) {
			c.prob += 15
		}
		c.prob = math.Min(100, c.prob)
		out = append(out, c)
	}
	return out
}

// pullback describes the pivot sequence after the most recent trend extreme.
type pullback struct {
	extreme  domain.Swing   // highest high (up) or lowest low (down)
	after    []domain.Swing // pivots after the extreme
	legs     int            // against-trend transitions after the extreme
	complete bool           // last pivot is an against-trend extreme
	pivots   []domain.Swing
	index    int // index of extreme within pivots
}

func findPullback(bars []*domain.Bar, t domain.TrendDirection) (pullback, bool) {
	highs, lows := structure.DetectSwings(bars, 1)
	pivots := structure.Chronological(highs, lows)
	if len(pivots) == 0 {
		return pullback{}, false
	}
	extKind, againstKind := domain.SwingHigh, domain.SwingLow
	better := func(a, b float64) bool { return a > b }
	if t == domain.TrendDown {
		extKind, againstKind = domain.SwingLow, domain.SwingHigh
		better = func(a, b float64) bool { return a < b }
	}

	idx := -1
	for i, p := range pivots {
		if p.Kind == extKind && (idx < 0 || better(p.Price, pivots[idx].Price)) {
			idx = i
		}
	}
	if idx < 0 {
		return pullback{}, false
	}
	pb := pullback{extreme: pivots[idx], after: pivots[idx+1:], pivots: pivots, index: idx}
	prev := pivots[idx]
	for _, p := range pb.after {
		if prev.Kind == extKind && p.Kind == againstKind {
			pb.legs++
		}
		prev = p
	}
	pb.complete = len(pb.after) > 0 && pb.after[len(pb.after)-1].Kind == againstKind
	return pb, true
}

// scanPB looks for a single against-trend leg that held the prior pivot.
func (s *Scanner) scanPB(in Input) []candidate {
	dir, ok := tradeDirection(in.Trend.Direction)
	if !ok || len(in.Bars) < 5 {
		return nil
	}
	pb, ok := findPullback(in.Bars, in.Trend.Direction)
	if !ok || pb.legs != 1 || !pb.complete {
		return nil
	}
	pivot := pb.after[len(pb.after)-1]

	// The pullback must hold above (below for shorts) the last opposite pivot before the extreme.
	for i := pb.index - 1; i >= 0; i-- {
		prior := pb.pivots[i]
		if prior.Kind != pivot.Kind {
			continue
		}
		if (dir == domain.Long && pivot.Price <= prior.Price) || (dir == domain.Short && pivot.Price >= prior.Price) {
			return nil
		}
		break
	}

	c := candidate{typ: domain.SetupPB, dir: dir, target: pb.extreme.Price, reference: fmt.Sprintf("pivot %.4f", pivot.Price)}
	if dir == domain.Long {
		c.zone.Ideal, c.stop = pivot.Price*1.001, pivot.Price*0.99
	} else {
		c.zone.Ideal, c.stop = pivot.Price*0.999, pivot.Price*1.01
	}
	c.zone.Lower, c.zone.Upper = c.zone.Ideal*0.998, c.zone.Ideal*1.002

	c.factors = []string{"trend alignment"}
	last := in.Bars[len(in.Bars)-1]
	if (dir == domain.Long && last.IsBullish()) || (dir == domain.Short && last.IsBearish()) {
		c.factors = append(c.factors, "pullback reversal")
	}
	if in.Trend.HTFAligned {
		c.factors = append(c.factors, "order flow balance")
	}

	c.prob = 65
	if in.Trend.Strength == domain.StrengthStrong {
		c.prob += 10
	}
	return []candidate{c}
}

// scanCPB looks for a completed multi-leg pullback after the trend extreme.
func (s *Scanner) scanCPB(in Input) []candidate {
	dir, ok := tradeDirection(in.Trend.Direction)
	if !ok || len(in.Bars) < 15 {
		return nil
	}
	pb, ok := findPullback(in.Bars, in.Trend.Direction)
	if !ok || len(pb.pivots) < 5 || pb.legs < 2 || !pb.complete {
		return nil
	}

	ext := 0.0
	for _, p := range pb.after {
		if p.Kind == domain.SwingLow && dir == domain.Long && (ext == 0 || p.Price < ext) {
			ext = p.Price
		}
		if p.Kind == domain.SwingHigh && dir == domain.Short && p.Price > ext {
			ext = p.Price
		}
	}
	if ext <= 0 {
		return nil
	}

	c := candidate{
		typ:       domain.SetupCPB,
		dir:       dir,
		target:    pb.extreme.Price,
		factors:   []string{"multi-swing pullback", "trapped traders accumulated", "structure confirmation"},
		reference: fmt.Sprintf("pullback extreme %.4f", ext),
	}
	if dir == domain.Long {
		c.zone.Ideal, c.stop = ext*1.001, ext*0.98
	} else {
		c.zone.Ideal, c.stop = ext*0.999, ext*1.02
	}
	c.zone.Lower, c.zone.Upper = c.zone.Ideal*0.997, c.zone.Ideal*1.003

	c.prob = 80 + 15
	switch {
	case stageWithTrend(in.Stage, in.Trend.Direction):
		c.prob += 10
	case in.Stage == domain.StageRanging:
		c.prob += 5
	}
	c.prob = math.Min(100, c.prob)
	return []candidate{c}
}

// zoneTarget picks the nearest zone beyond the entry, falling back to a measured move.
func zoneTarget(in Input, dir domain.Direction, level, ideal float64) float64 {
	best := 0.0
	for _, z := range in.Zones {
		if dir == domain.Long && z.Level > ideal && (best == 0 || z.Level < best) {
			best = z.Level
		}
		if dir == domain.Short && z.Level < ideal && z.Level > best {
			best = z.Level
		}
	}
	if best > 0 {
		return best
	}

	hi, lo := extremes(in.Bars)
	for _, sw := range in.Trend.Swings {
		if sw.Kind == domain.SwingLow && sw.Price < lo {
			lo = sw.Price
		}
		if sw.Kind == domain.SwingHigh && sw.Price > hi {
			hi = sw.Price
		}
	}
	if dir == domain.Long {
		return level + (level - lo)
	}
	return level - (hi - level)
}

func (s *Scanner) hasRejection(bars []*domain.Bar) bool {
	for _, b := range bars {
		if strength.HasRejectionWick(b, s.cfg.RejectionWickRate) {
			return true
		}
	}
	return false
}

// validatesAgainstTrend: an uptrend test needs a weak (low) close, a downtrend test a high close.
func validatesAgainstTrend(bars []*domain.Bar, t domain.TrendDirection) bool {
	want := domain.CloseLow
	if t == domain.TrendDown {
		want = domain.CloseHigh
	}
	for _, b := range bars {
		if b.ClosePosition() == want {
			return true
		}
	}
	return false
}

func weakFollowThrough(bars []*domain.Bar) bool {
	if len(bars) == 0 {
		return true
	}
	return 1-strongShare(bars) >= 0.5
}

func closesBackThrough(bars []*domain.Bar, level float64, wasUp bool) bool {
	for _, b := range bars {
		if (wasUp && b.Close < level) || (!wasUp && b.Close > level) {
			return true
		}
	}
	return false
}

func strongShare(bars []*domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	n := 0
	for _, b := range bars {
		if b.IsStrongBody() {
			n++
		}
	}
	return float64(n) / float64(len(bars))
}

func allClose(bars []*domain.Bar, ok func(float64) bool) bool {
	for _, b := range bars {
		if !ok(b.Close) {
			return false
		}
	}
	return true
}

func extremes(bars []*domain.Bar) (hi, lo float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	hi, lo = bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		hi = math.Max(hi, b.High)
		lo = math.Min(lo, b.Low)
	}
	return hi, lo
}
