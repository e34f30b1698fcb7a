package domain

// Rating grades a 0..100 component score.
type Rating string

const (
	RatingStrong   Rating = "strong"
	RatingModerate Rating = "moderate"
	RatingWeak     Rating = "weak"
)

// RateScore maps a 0..100 score onto a rating (>=70 strong, >=40 moderate).
func RateScore(score float64) Rating {
	switch {
	case score >= 70:
		return RatingStrong
	case score >= 40:
		return RatingModerate
	default:
		return RatingWeak
	}
}

// ProjectionState describes the current leg relative to prior legs.
type ProjectionState string

const (
	ProjectionExtending   ProjectionState = "extending"
	ProjectionNormal      ProjectionState = "normal"
	ProjectionContracting ProjectionState = "contracting"
)

// DepthState describes how far the latest pullback retraced.
type DepthState string

const (
	DepthShallow      DepthState = "shallow"
	DepthNormal       DepthState = "normal"
	DepthDeep         DepthState = "deep"
	DepthFullReversal DepthState = "full_reversal"
)

// MomentumBias summarizes directional momentum for trade management.
type MomentumBias string

const (
	MomentumStrongUp   MomentumBias = "strong_up"
	MomentumStrongDown MomentumBias = "strong_down"
	MomentumNeutral    MomentumBias = "neutral"
)

// WeaknessSignals are the warning flags raised by the scorer.
type WeaknessSignals struct {
	RejectionBars      bool
	MomentumDivergence bool
	ProjectionFailure  bool
	DeepPullback       bool
	ReversalWarning    bool
}

// Any reports whether at least one signal is raised.
func (w WeaknessSignals) Any() bool {
	return w.RejectionBars || w.MomentumDivergence || w.ProjectionFailure || w.DeepPullback || w.ReversalWarning
}

// SetupApplicability says which setup families the strength reading favors.
type SetupApplicability struct {
	Continuation   bool
	Reversal       bool
	Fade           bool
	ExpectedAction string
}

// StrengthScore is the momentum/projection/depth assessment of the entry timeframe.
type StrengthScore struct {
	Momentum   float64
	Projection float64
	Depth      float64
	Combined   float64

	MomentumRating  Rating
	CombinedRating  Rating
	ProjectionRatio float64
	ProjectionState ProjectionState
	DepthRatio      float64
	DepthState      DepthState
	CloseQuality    Rating

	Weakness      WeaknessSignals
	Applicability SetupApplicability
	Bias          MomentumBias
}
