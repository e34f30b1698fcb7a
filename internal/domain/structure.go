package domain

import "time"

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// Swing is a local extreme confirmed by a window of bars on both sides.
type Swing struct {
	Kind      SwingKind
	Price     float64
	Timestamp time.Time
	BarIndex  int
	IsLeading bool // Most recent swing of its kind
	IsBroken  bool // Violated the prevailing trend structure
}

// ZoneKind distinguishes support from resistance.
type ZoneKind string

const (
	ZoneSupport    ZoneKind = "support"
	ZoneResistance ZoneKind = "resistance"
)

// Zone is a price band derived from a swing level.
type Zone struct {
	Level      float64
	Strength   int // 3..10
	Kind       ZoneKind
	TouchCount int
	LowerBound float64
	UpperBound float64
}

// Contains reports whether price falls inside the zone band.
func (z Zone) Contains(price float64) bool {
	return price >= z.LowerBound && price <= z.UpperBound
}

// TrendStage summarizes the moving-average posture of the structural timeframe.
type TrendStage string

const (
	StageStrongUp   TrendStage = "strong_up"
	StageStrongDown TrendStage = "strong_down"
	StageRanging    TrendStage = "ranging"
)

// IsStrong reports whether the stage is a strong trend in either direction.
func (s TrendStage) IsStrong() bool {
	return s == StageStrongUp || s == StageStrongDown
}

// Direction maps a stage onto the higher-timeframe trend direction.
func (s TrendStage) Direction() TrendDirection {
	switch s {
	case StageStrongUp:
		return TrendUp
	case StageStrongDown:
		return TrendDown
	default:
		return TrendSideways
	}
}

// Location describes where price sits relative to the nearest zones.
type Location string

const (
	LocationAtSupport    Location = "at_support"
	LocationAtResistance Location = "at_resistance"
	LocationInRange      Location = "in_range"
	LocationBreakout     Location = "breakout"
	LocationUnknown      Location = "unknown"
)

// PriorSession holds the levels of the last completed structural bar.
type PriorSession struct {
	High  float64
	Low   float64
	Close float64
}

// MarketStructure is the output of structural-timeframe analysis.
type MarketStructure struct {
	Complete          bool
	Reason            string // Set when Complete is false
	CurrentPrice      float64
	SwingHighs        []Swing
	SwingLows         []Swing
	SupportZones      []Zone // ascending by level
	ResistanceZones   []Zone // ascending by level
	Stage             TrendStage
	NearestSupport    *Zone
	NearestResistance *Zone
	Location          Location

	DistanceToSupportPct    float64
	DistanceToResistancePct float64
	PriorSession            *PriorSession
}

// Zones returns support and resistance zones combined.
func (m *MarketStructure) Zones() []Zone {
	out := make([]Zone, 0, len(m.SupportZones)+len(m.ResistanceZones))
	out = append(out, m.SupportZones...)
	return append(out, m.ResistanceZones...)
}
