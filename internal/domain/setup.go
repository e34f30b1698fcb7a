package domain

// SetupType identifies one of the five trade setup patterns.
type SetupType string

const (
	SetupTST SetupType = "TST" // test of support/resistance
	SetupBOF SetupType = "BOF" // breakout failure
	SetupBPB SetupType = "BPB" // breakout pullback
	SetupPB  SetupType = "PB"  // simple pullback
	SetupCPB SetupType = "CPB" // complex pullback
)

// AllSetupTypes lists every setup type in scan order.
var AllSetupTypes = []SetupType{SetupTST, SetupBOF, SetupBPB, SetupPB, SetupCPB}

// IsValid reports whether t is a known setup type.
func (t SetupType) IsValid() bool {
	switch t {
	case SetupTST, SetupBOF, SetupBPB, SetupPB, SetupCPB:
		return true
	}
	return false
}

// Quality grades a setup.
type Quality string

const (
	QualityA Quality = "A"
	QualityB Quality = "B"
	QualityC Quality = "C"
)

// EntryZone is the acceptable entry band around the ideal price.
type EntryZone struct {
	Lower float64
	Upper float64
	Ideal float64
}

// Target is a profit objective expressed in price and R multiples.
type Target struct {
	Price     float64
	RMultiple float64
}

// Setup is a ranked trade candidate. It is never mutated after the scan returns.
type Setup struct {
	ID                string
	Type              SetupType
	Direction         Direction
	EntryZone         EntryZone
	StopLoss          float64
	Targets           []Target
	RiskRewardRatio   float64
	ConfluenceFactors []string
	ProbabilityScore  float64
	Quality           Quality
	ReadyToTrade      bool
}

// FirstTarget returns the first target price, or 0 if none.
func (s *Setup) FirstTarget() float64 {
	if len(s.Targets) == 0 {
		return 0
	}
	return s.Targets[0].Price
}

// ScanSummary aggregates a scan.
type ScanSummary struct {
	Total         int
	TradeReady    int
	TopSetupID    string
	MarketVerdict string
}

// ScanResult is the ordered output of the setup scanner.
type ScanResult struct {
	Complete bool
	Reason   string
	Setups   []*Setup // probability descending
	Summary  ScanSummary
}

// BestReady returns the highest-probability trade-ready setup, or nil.
func (r *ScanResult) BestReady() *Setup {
	if r == nil {
		return nil
	}
	for _, s := range r.Setups {
		if s.ReadyToTrade {
			return s
		}
	}
	return nil
}

// ReferencePattern is a historical pattern record used to corroborate setups.
type ReferencePattern struct {
	ID          string         `yaml:"id" json:"id"`
	SetupType   SetupType      `yaml:"setup_type" json:"setup_type"`
	Trend       TrendDirection `yaml:"trend" json:"trend"`
	Description string         `yaml:"description" json:"description"`
	WinRate     float64        `yaml:"win_rate" json:"win_rate"`
	AvgRR       float64        `yaml:"avg_rr" json:"avg_rr"`
	Samples     int            `yaml:"samples" json:"samples"`
}
