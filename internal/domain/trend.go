package domain

import "time"

// TrendDirection is the classified direction of a timeframe.
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

// IsValid reports whether d is a known trend direction.
func (d TrendDirection) IsValid() bool {
	return d == TrendUp || d == TrendDown || d == TrendSideways
}

// TrendStrength grades the health of a trend.
type TrendStrength string

const (
	StrengthStrong          TrendStrength = "strong"
	StrengthModerate        TrendStrength = "moderate"
	StrengthWeak            TrendStrength = "weak"
	StrengthReversalWarning TrendStrength = "reversal_warning"
)

// StructureIntegrity describes whether the swing sequence still supports the trend.
type StructureIntegrity struct {
	Intact         bool
	LastBreak      string
	LastBreakTime  time.Time
	BrokenSwingCnt int
}

// TrendState is the classification of the trading timeframe.
type TrendState struct {
	Direction       TrendDirection
	Confidence      float64 // 0..1
	Strength        TrendStrength
	StructureBreaks int
	HTFAligned      bool
	HTFDirection    TrendDirection

	Swings         []Swing // chronological, highs and lows interleaved
	HigherHighs    int
	HigherLows     int
	LowerHighs     int
	LowerLows      int
	Alignment      string
	Conflict       string
	Integrity      StructureIntegrity
	InceptionTime  time.Time
	BarsSinceStart int
}

// LeadingSwing returns the most recent swing of the given kind, or nil.
func (t *TrendState) LeadingSwing(kind SwingKind) *Swing {
	for i := len(t.Swings) - 1; i >= 0; i-- {
		if t.Swings[i].Kind == kind {
			return &t.Swings[i]
		}
	}
	return nil
}
