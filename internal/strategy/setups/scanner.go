package setups

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

const (
	factorKnowledge    = "historical pattern corroboration"
	factorContinuation = "strength supports continuation"
	factorReversal     = "weakness supports reversal"

	knowledgeMinWinRate = 0.55
	knowledgeBonus      = 5.0
)

// Config holds parameters for setup scanning.
type Config struct {
	MinConfluenceFactors int                `yaml:"min_confluence_factors"` // default 2
	MinRiskReward        float64            `yaml:"min_risk_reward"`        // default 1.5
	MinProbability       float64            `yaml:"min_probability"`        // default 65
	EnabledTypes         []domain.SetupType `yaml:"enabled_types"`          // default all five
	ProximityPct         float64            `yaml:"proximity_pct"`          // TST distance to level, default 1.0
	RejectionWickRate    float64            `yaml:"rejection_wick_rate"`    // default 1.5
}

// DefaultConfig returns the standard scanner parameters.
func DefaultConfig() Config {
	return Config{
		MinConfluenceFactors: 2,
		MinRiskReward:        1.5,
		MinProbability:       65,
		EnabledTypes:         append([]domain.SetupType(nil), domain.AllSetupTypes...),
		ProximityPct:         1.0,
		RejectionWickRate:    1.5,
	}
}

// Input carries the outputs of earlier stages plus the entry-timeframe bars.
type Input struct {
	Trend        *domain.TrendState
	Stage        domain.TrendStage
	Bars         []*domain.Bar
	Zones        []domain.Zone
	CurrentPrice float64
	Strength     *domain.StrengthScore // optional
}

// Option configures optional scanner collaborators.
type Option func(*Scanner)

// WithKnowledge lets the scanner corroborate candidates against reference patterns.
func WithKnowledge(lookup ports.KnowledgeLookup) Option {
	return func(s *Scanner) { s.knowledge = lookup }
}

// Scanner runs the five setup detectors and ranks their candidates.
type Scanner struct {
	cfg       Config
	logger    ports.Logger
	enabled   map[domain.SetupType]bool
	knowledge ports.KnowledgeLookup
}

// New creates a setup scanner.
func New(cfg Config, logger ports.Logger, opts ...Option) (*Scanner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for setup scanner")
	}
	if cfg.MinConfluenceFactors < 0 || cfg.MinRiskReward <= 0 || cfg.ProximityPct <= 0 || cfg.RejectionWickRate <= 0 {
		return nil, fmt.Errorf("invalid scanner thresholds")
	}
	if cfg.MinProbability < 0 || cfg.MinProbability > 100 {
		return nil, fmt.Errorf("min probability must be within [0,100], got %.2f", cfg.MinProbability)
	}
	enabled := make(map[domain.SetupType]bool, len(cfg.EnabledTypes))
	for _, t := range cfg.EnabledTypes {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: unknown setup type %q", ports.ErrInvalidRequest, t)
		}
		enabled[t] = true
	}
	s := &Scanner{cfg: cfg, logger: logger, enabled: enabled}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// candidate is a detector hit before ranking.
type candidate struct {
	typ       domain.SetupType
	dir       domain.Direction
	zone      domain.EntryZone
	stop      float64
	target    float64
	factors   []string
	prob      float64
	reference string // level or pivot the setup is built on, for logs
}

// Scan runs every enabled detector. Missing inputs yield an incomplete, empty result.
func (s *Scanner) Scan(ctx context.Context, in Input) *domain.ScanResult {
	result := &domain.ScanResult{Setups: []*domain.Setup{}}
	switch {
	case in.Trend == nil:
		result.Reason = "trend state is required"
	case in.CurrentPrice <= 0:
		result.Reason = fmt.Sprintf("current price must be positive, got %.8f", in.CurrentPrice)
	case len(in.Bars) == 0:
		result.Reason = "no bars to scan"
	}
	if result.Reason != "" {
		s.logger.Warn(ctx, "Setup scan incomplete", map[string]interface{}{"reason": result.Reason})
		result.Summary = s.summarize(nil, in.Stage)
		return result
	}

	var cands []candidate
	for _, t := range domain.AllSetupTypes {
		if !s.enabled[t] {
			continue
		}
		switch t {
		case domain.SetupTST:
			cands = append(cands, s.scanTST(in)...)
		case domain.SetupBOF:
			cands = append(cands, s.scanBOF(in)...)
		case domain.SetupBPB:
			cands = append(cands, s.scanBPB(in)...)
		case domain.SetupPB:
			cands = append(cands, s.scanPB(in)...)
		case domain.SetupCPB:
			cands = append(cands, s.scanCPB(in)...)
		}
	}

	refs := map[domain.SetupType][]domain.ReferencePattern{}
	for _, c := range cands {
		if !validGeometry(c, in.CurrentPrice) {
			s.logger.Debug(ctx, "Discarding setup with invalid geometry", map[string]interface{}{
				"type": c.typ, "direction": c.dir, "ideal": c.zone.Ideal, "stop": c.stop, "target": c.target, "ref": c.reference,
			})
			continue
		}
		c = s.applyStrength(c, in.Strength)
		c = s.corroborate(ctx, c, in.Trend.Direction, refs)
		result.Setups = append(result.Setups, s.finalize(c))
	}

	sort.SliceStable(result.Setups, func(i, j int) bool {
		return result.Setups[i].ProbabilityScore > result.Setups[j].ProbabilityScore
	})
	result.Complete = true
	result.Summary = s.summarize(result.Setups, in.Stage)

	s.logger.Info(ctx, "Setup scan complete", map[string]interface{}{
		"total":      result.Summary.Total,
		"tradeReady": result.Summary.TradeReady,
		"topSetup":   result.Summary.TopSetupID,
	})
	return result
}

func (s *Scanner) applyStrength(c candidate, st *domain.StrengthScore) candidate {
	if st == nil {
		return c
	}
	switch c.typ {
	case domain.SetupBOF:
		if st.Applicability.Reversal {
			c.factors = append(c.factors, factorReversal)
		}
	default:
		if st.Applicability.Continuation {
			c.factors = append(c.factors, factorContinuation)
		}
	}
	return c
}

func (s *Scanner) corroborate(ctx context.Context, c candidate, trend domain.TrendDirection, cache map[domain.SetupType][]domain.ReferencePattern) candidate {
	if s.knowledge == nil {
		return c
	}
	refs, ok := cache[c.typ]
	if !ok {
		var err error
		refs, err = s.knowledge.Query(ctx, ports.PatternQuery{SetupType: c.typ, Trend: trend, TopK: 3})
		if err != nil {
			s.logger.Warn(ctx, "Pattern knowledge lookup failed; continuing without it", map[string]interface{}{
				"setupType": c.typ,
				"error":     err.Error(),
			})
			refs = nil
		}
		cache[c.typ] = refs
	}
	if len(refs) > 0 && refs[0].WinRate >= knowledgeMinWinRate {
		c.factors = append(c.factors, factorKnowledge)
		c.prob = math.Min(100, c.prob+knowledgeBonus)
	}
	return c
}

func (s *Scanner) finalize(c candidate) *domain.Setup {
	rr := RiskReward(c.zone.Ideal, c.stop, c.target)
	setup := &domain.Setup{
		ID:                uuid.NewString(),
		Type:              c.typ,
		Direction:         c.dir,
		EntryZone:         c.zone,
		StopLoss:          c.stop,
		Targets:           []domain.Target{{Price: c.target, RMultiple: rr}},
		RiskRewardRatio:   rr,
		ConfluenceFactors: c.factors,
		ProbabilityScore:  c.prob,
	}
	setup.Quality = s.rate(c.prob, len(c.factors), rr)
	setup.ReadyToTrade = len(c.factors) >= s.cfg.MinConfluenceFactors &&
		rr >= s.cfg.MinRiskReward &&
		c.prob >= s.cfg.MinProbability
	return setup
}

func (s *Scanner) rate(prob float64, confluence int, rr float64) domain.Quality {
	need := s.cfg.MinConfluenceFactors
	switch {
	case prob >= 80 && confluence >= need+1 && rr >= 2.5:
		return domain.QualityA
	case prob >= 70 && confluence >= need && rr >= 1.5:
		return domain.QualityB
	default:
		return domain.QualityC
	}
}

func (s *Scanner) summarize(setups []*domain.Setup, stage domain.TrendStage) domain.ScanSummary {
	sum := domain.ScanSummary{Total: len(setups), MarketVerdict: marketVerdict(stage)}
	for _, st := range setups {
		if st.ReadyToTrade {
			sum.TradeReady++
		}
	}
	if len(setups) > 0 {
		sum.TopSetupID = setups[0].ID
	}
	return sum
}

func marketVerdict(stage domain.TrendStage) string {
	switch stage {
	case domain.StageStrongUp, domain.StageStrongDown:
		return "Excellent conditions for trend-following setups (TST, PB, CPB)"
	case domain.StageRanging:
		return "Caution: BOF/BPB less reliable in ranges"
	default:
		return "Neutral market conditions"
	}
}

// RiskReward is |target-entry| / |entry-stop|; zero when risk is zero.
func RiskReward(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

// validGeometry checks stop < ideal < target for longs (mirrored for shorts)
// and that the current price has not already breached the stop.
func validGeometry(c candidate, price float64) bool {
	if c.zone.Ideal <= 0 || c.stop <= 0 || c.target <= 0 {
		return false
	}
	switch c.dir {
	case domain.Long:
		return c.stop < c.zone.Ideal && c.zone.Ideal < c.target && price > c.stop
	case domain.Short:
		return c.target < c.zone.Ideal && c.zone.Ideal < c.stop && price < c.stop
	default:
		return false
	}
}
