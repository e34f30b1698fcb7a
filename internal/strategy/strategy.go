package strategy

import (
	"context"
	"fmt"
	"math"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
	"ytcbot/internal/strategy/setups"
	"ytcbot/internal/strategy/strength"
	"ytcbot/internal/strategy/structure"
	"ytcbot/internal/strategy/trend"
)

// Config bundles the tuning of every analytical stage.
type Config struct {
	Structure structure.Config `yaml:"structure"`
	Trend     trend.Config     `yaml:"trend"`
	Strength  strength.Config  `yaml:"strength"`
	Setups    setups.Config    `yaml:"setups"`
}

// DefaultConfig returns the default parameters of all stages.
func DefaultConfig() Config {
	return Config{
		Structure: structure.DefaultConfig(),
		Trend:     trend.DefaultConfig(),
		Strength:  strength.DefaultConfig(),
		Setups:    setups.DefaultConfig(),
	}
}

// Strategy implements ports.Analyzer by running the stages in order.
type Strategy struct {
	cfg       Config
	logger    ports.Logger
	structure *structure.Analyzer
	trend     *trend.Classifier
	strength  *strength.Scorer
	scanner   *setups.Scanner
}

var _ ports.Analyzer = (*Strategy)(nil)

// New creates a new Strategy instance. Scanner options (e.g. setups.WithKnowledge) are passed through.
func New(cfg Config, logger ports.Logger, opts ...setups.Option) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	sa, err := structure.New(cfg.Structure, logger)
	if err != nil {
		return nil, fmt.Errorf("structure analyzer: %w", err)
	}
	tc, err := trend.New(cfg.Trend, logger)
	if err != nil {
		return nil, fmt.Errorf("trend classifier: %w", err)
	}
	sc, err := strength.New(cfg.Strength, logger)
	if err != nil {
		return nil, fmt.Errorf("strength scorer: %w", err)
	}
	scan, err := setups.New(cfg.Setups, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("setup scanner: %w", err)
	}
	return &Strategy{
		cfg:       cfg,
		logger:    logger,
		structure: sa,
		trend:     tc,
		strength:  sc,
		scanner:   scan,
	}, nil
}

// RequiredDataPoints returns the minimum number of structural bars for a complete analysis.
func (s *Strategy) RequiredDataPoints() int {
	return s.structure.RequiredDataPoints()
}

// Analyze runs structure -> trend -> strength -> setup scan. Only a non-positive
// current price is fatal; data gaps surface as incomplete stage results.
func (s *Strategy) Analyze(ctx context.Context, in ports.AnalysisInput) (*domain.Analysis, error) {
	if in.CurrentPrice <= 0 {
		return nil, fmt.Errorf("analyze %s failed: %w: current price %.8f", in.Symbol, ports.ErrInvalidPrice, in.CurrentPrice)
	}
	out := &domain.Analysis{Symbol: in.Symbol}

	out.Structure = s.structure.Analyze(ctx, in.StructureBars, in.CurrentPrice)

	htf := in.HTFDirection
	if !htf.IsValid() {
		htf = out.Structure.Stage.Direction()
	}
	out.Trend = s.trend.Classify(ctx, in.TrendBars, htf)

	entryBars := in.EntryBars
	if len(entryBars) == 0 {
		entryBars = in.TrendBars
	}
	out.Strength = s.strength.Score(ctx, strength.Input{
		Direction:       out.Trend.Direction,
		Swings:          out.Trend.Swings,
		Bars:            entryBars,
		ApproachingZone: nearestZone(out.Structure, in.CurrentPrice),
	})

	out.Scan = s.scanner.Scan(ctx, setups.Input{
		Trend:        out.Trend,
		Stage:        out.Structure.Stage,
		Bars:         entryBars,
		Zones:        out.Structure.Zones(),
		CurrentPrice: in.CurrentPrice,
		Strength:     out.Strength,
	})

	s.logger.Info(ctx, "Analysis complete", map[string]interface{}{
		"symbol":     in.Symbol,
		"stage":      out.Structure.Stage,
		"trend":      out.Trend.Direction,
		"confidence": out.Trend.Confidence,
		"combined":   out.Strength.Combined,
		"setups":     out.Scan.Summary.Total,
		"tradeReady": out.Scan.Summary.TradeReady,
	})
	return out, nil
}

// nearestZone returns whichever of the nearest support/resistance is closer to price.
func nearestZone(ms *domain.MarketStructure, price float64) *domain.Zone {
	switch {
	case ms.NearestSupport == nil:
		return ms.NearestResistance
	case ms.NearestResistance == nil:
		return ms.NearestSupport
	}
	if math.Abs(price-ms.NearestSupport.Level) <= math.Abs(ms.NearestResistance.Level-price) {
		return ms.NearestSupport
	}
	return ms.NearestResistance
}
