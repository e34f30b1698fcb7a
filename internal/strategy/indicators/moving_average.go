package indicators

import (
	"context"
	"fmt"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// MovingAverageType defines the type of moving average.
type MovingAverageType string

const (
	SimpleMovingAverage      MovingAverageType = "SMA"
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators.
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA over bar closes.
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance.
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// NewSMA is shorthand for a simple moving average of the given period.
func NewSMA(period int) *MovingAverage {
	return NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: period},
		Type:            SimpleMovingAverage,
	})
}

func (m *MovingAverage) Name() string {
	return fmt.Sprintf("%s(%d)", m.config.Type, m.Config.Period)
}

// Calculate computes the moving average of the latest closes.
func (m *MovingAverage) Calculate(ctx context.Context, bars []*domain.Bar) (float64, error) {
	if m.Config.Period <= 0 {
		return 0, fmt.Errorf("%s: %w: period must be positive", m.Name(), ports.ErrInvalidRequest)
	}
	closes := domain.Closes(bars)
	switch m.config.Type {
	case SimpleMovingAverage:
		return m.sma(closes)
	case ExponentialMovingAverage:
		return m.ema(closes)
	default:
		return 0, fmt.Errorf("%w: unsupported moving average type: %s", ports.ErrInvalidRequest, m.config.Type)
	}
}

func (m *MovingAverage) sma(closes []float64) (float64, error) {
	period := m.Config.Period
	if len(closes) < period {
		return 0, fmt.Errorf("%w: have %d closes, SMA period %d", ports.ErrInsufficientData, len(closes), period)
	}
	total := 0.0
	for _, c := range closes[len(closes)-period:] {
		total += c
	}
	return total / float64(period), nil
}

// ema seeds with the SMA of the first period closes.
func (m *MovingAverage) ema(closes []float64) (float64, error) {
	period := m.Config.Period
	if len(closes) < period {
		return 0, fmt.Errorf("%w: have %d closes, EMA period %d", ports.ErrInsufficientData, len(closes), period)
	}
	seed, err := m.sma(closes[:period])
	if err != nil {
		return 0, err
	}
	k := 2.0 / float64(period+1)
	ema := seed
	for _, c := range closes[period:] {
		ema = (c-ema)*k + ema
	}
	return ema, nil
}
