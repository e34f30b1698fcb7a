package indicators

import (
	"context"
	"fmt"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// RSIConfig holds configuration for the RSI indicator.
type RSIConfig struct {
	IndicatorConfig
}

// DefaultRSIConfig is RSI(14).
func DefaultRSIConfig() RSIConfig {
	return RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}}
}

// RSI implements the Relative Strength Index with Wilder smoothing.
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance.
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints is one more than the period since RSI works on changes.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate returns RSI in [0,100]; 50 when price never moved, 100 on gains only.
func (r *RSI) Calculate(ctx context.Context, bars []*domain.Bar) (float64, error) {
	period := r.Config.Period
	if period <= 0 {
		return 0, fmt.Errorf("RSI: %w: period must be positive", ports.ErrInvalidRequest)
	}
	if len(bars) <= period {
		return 0, fmt.Errorf("%w: have %d bars, RSI period %d", ports.ErrInsufficientData, len(bars), period)
	}

	var avgGain, avgLoss float64
	n := float64(period)
	for i := 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		if i <= period {
			avgGain += gain / n
			avgLoss += loss / n
			continue
		}
		avgGain = (avgGain*(n-1) + gain) / n
		avgLoss = (avgLoss*(n-1) + loss) / n
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	return clamp(rsi, 0, 100), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
