package structure

import (
	"context"
	"fmt"
	"math"
	"sort"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
	"ytcbot/internal/strategy/indicators"
)

// Config holds parameters for structural-timeframe analysis.
type Config struct {
	SwingWindow      int     `yaml:"swing_window"`       // bars on each side of a swing, default 3
	ZoneThicknessPct float64 `yaml:"zone_thickness_pct"` // zone half-width as % of level, default 0.5
	ZoneSwingCount   int     `yaml:"zone_swing_count"`   // recent swings per kind turned into zones, default 5
	ShortMAPeriod    int     `yaml:"short_ma_period"`    // default 10
	MediumMAPeriod   int     `yaml:"medium_ma_period"`   // default 25
	ProximityPct     float64 `yaml:"proximity_pct"`      // at_support/at_resistance band, default 1.0
}

// DefaultConfig returns the standard structural analysis parameters.
func DefaultConfig() Config {
	return Config{
		SwingWindow:      3,
		ZoneThicknessPct: 0.5,
		ZoneSwingCount:   5,
		ShortMAPeriod:    10,
		MediumMAPeriod:   25,
		ProximityPct:     1.0,
	}
}

// Analyzer derives swings, zones, trend stage and price context from structural bars.
type Analyzer struct {
	cfg      Config
	logger   ports.Logger
	shortMA  *indicators.MovingAverage
	mediumMA *indicators.MovingAverage
}

// New creates a market structure analyzer.
func New(cfg Config, logger ports.Logger) (*Analyzer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for structure analyzer")
	}
	if cfg.SwingWindow <= 0 || cfg.ZoneSwingCount <= 0 {
		return nil, fmt.Errorf("swing window and zone swing count must be positive")
	}
	if cfg.ZoneThicknessPct <= 0 || cfg.ProximityPct <= 0 {
		return nil, fmt.Errorf("zone thickness and proximity percentages must be positive")
	}
	if cfg.ShortMAPeriod <= 0 || cfg.ShortMAPeriod >= cfg.MediumMAPeriod {
		return nil, fmt.Errorf("short MA period must be positive and less than medium MA period")
	}
	return &Analyzer{
		cfg:      cfg,
		logger:   logger,
		shortMA:  indicators.NewSMA(cfg.ShortMAPeriod),
		mediumMA: indicators.NewSMA(cfg.MediumMAPeriod),
	}, nil
}

// RequiredDataPoints is the minimum bar count for a complete result.
func (a *Analyzer) RequiredDataPoints() int {
	return 2*a.cfg.SwingWindow + 1
}

// Analyze never fails; missing data yields an incomplete result with location unknown.
func (a *Analyzer) Analyze(ctx context.Context, bars []*domain.Bar, currentPrice float64) *domain.MarketStructure {
	ms := &domain.MarketStructure{
		CurrentPrice: currentPrice,
		Stage:        domain.StageRanging,
		Location:     domain.LocationUnknown,
	}
	if currentPrice <= 0 {
		ms.Reason = fmt.Sprintf("current price must be positive, got %.8f", currentPrice)
		a.logger.Warn(ctx, "Market structure incomplete", map[string]interface{}{"reason": ms.Reason})
		return ms
	}
	if len(bars) < a.RequiredDataPoints() {
		ms.Reason = fmt.Sprintf("need at least %d bars, have %d", a.RequiredDataPoints(), len(bars))
		a.logger.Warn(ctx, "Market structure incomplete", map[string]interface{}{"reason": ms.Reason})
		return ms
	}

	ms.SwingHighs, ms.SwingLows = DetectSwings(bars, a.cfg.SwingWindow)
	ms.SupportZones = a.buildZones(recent(ms.SwingLows, a.cfg.ZoneSwingCount), domain.ZoneSupport, bars)
	ms.ResistanceZones = a.buildZones(recent(ms.SwingHighs, a.cfg.ZoneSwingCount), domain.ZoneResistance, bars)
	ms.Stage = a.classifyStage(ctx, bars, currentPrice)

	ms.NearestSupport = nearestBelow(ms.SupportZones, currentPrice)
	ms.NearestResistance = nearestAbove(ms.ResistanceZones, currentPrice)
	ms.Location = a.locate(currentPrice, ms.NearestSupport, ms.NearestResistance)
	if ms.NearestSupport != nil {
		ms.DistanceToSupportPct = (currentPrice - ms.NearestSupport.Level) / currentPrice * 100
	}
	if ms.NearestResistance != nil {
		ms.DistanceToResistancePct = (ms.NearestResistance.Level - currentPrice) / currentPrice * 100
	}
	prior := bars[len(bars)-2]
	ms.PriorSession = &domain.PriorSession{High: prior.High, Low: prior.Low, Close: prior.Close}
	ms.Complete = true

	a.logger.Debug(ctx, "Market structure analyzed", map[string]interface{}{
		"swingHighs": len(ms.SwingHighs),
		"swingLows":  len(ms.SwingLows),
		"stage":      ms.Stage,
		"location":   ms.Location,
	})
	return ms
}

// BuildZones turns swings into zones using the given thickness percentage.
func BuildZones(swings []domain.Swing, kind domain.ZoneKind, bars []*domain.Bar, thicknessPct float64) []domain.Zone {
	zones := make([]domain.Zone, 0, len(swings))
	for _, s := range swings {
		half := s.Price * thicknessPct / 100
		lower, upper := s.Price-half, s.Price+half
		touches := 0
		for _, b := range bars {
			if b.Close >= lower && b.Close <= upper {
				touches++
			}
		}
		zones = append(zones, domain.Zone{
			Level:      s.Price,
			Strength:   min(10, 3+touches),
			Kind:       kind,
			TouchCount: touches,
			LowerBound: lower,
			UpperBound: upper,
		})
	}
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Level < zones[j].Level })
	return zones
}

func (a *Analyzer) buildZones(swings []domain.Swing, kind domain.ZoneKind, bars []*domain.Bar) []domain.Zone {
	return BuildZones(swings, kind, bars, a.cfg.ZoneThicknessPct)
}

func (a *Analyzer) classifyStage(ctx context.Context, bars []*domain.Bar, price float64) domain.TrendStage {
	if len(bars) < a.mediumMA.RequiredDataPoints() {
		return domain.StageRanging
	}
	short, err := a.shortMA.Calculate(ctx, bars)
	if err != nil {
		a.logger.Warn(ctx, "Short MA unavailable for stage", map[string]interface{}{"error": err.Error()})
		return domain.StageRanging
	}
	medium, err := a.mediumMA.Calculate(ctx, bars)
	if err != nil {
		a.logger.Warn(ctx, "Medium MA unavailable for stage", map[string]interface{}{"error": err.Error()})
		return domain.StageRanging
	}
	switch {
	case price > short && short > medium:
		return domain.StageStrongUp
	case price < short && short < medium:
		return domain.StageStrongDown
	default:
		return domain.StageRanging
	}
}

func (a *Analyzer) locate(price float64, support, resistance *domain.Zone) domain.Location {
	band := a.cfg.ProximityPct / 100
	switch {
	case resistance != nil && price >= resistance.Level*(1-band):
		return domain.LocationAtResistance
	case support != nil && price <= support.Level*(1+band):
		return domain.LocationAtSupport
	case support != nil && resistance != nil:
		return domain.LocationInRange
	default:
		return domain.LocationBreakout
	}
}

// nearestBelow returns the highest zone strictly below price. Zones are ascending.
func nearestBelow(zones []domain.Zone, price float64) *domain.Zone {
	for i := len(zones) - 1; i >= 0; i-- {
		if zones[i].Level < price {
			z := zones[i]
			return &z
		}
	}
	return nil
}

// nearestAbove returns the lowest zone strictly above price.
func nearestAbove(zones []domain.Zone, price float64) *domain.Zone {
	for _, z := range zones {
		if z.Level > price {
			z := z
			return &z
		}
	}
	return nil
}

func recent(swings []domain.Swing, n int) []domain.Swing {
	if len(swings) <= n {
		return swings
	}
	return swings[len(swings)-n:]
}

// PercentDistance is |a-b| as a percentage of b.
func PercentDistance(a, b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / b * 100
}
