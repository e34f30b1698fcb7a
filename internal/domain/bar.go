package domain

import (
	"math"
	"time"
)

// Bar represents a single OHLCV candlestick.
type Bar struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Bar interval (e.g., "5m", "4h")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	IsFinal   bool // Whether this bar is closed for the interval
}

// ClosePosition buckets where a bar closed within its range.
type ClosePosition string

const (
	CloseHigh ClosePosition = "high"
	CloseMid  ClosePosition = "mid"
	CloseLow  ClosePosition = "low"
)

// Body returns the absolute open-to-close distance.
func (b *Bar) Body() float64 { return math.Abs(b.Close - b.Open) }

// Range returns the high-to-low distance.
func (b *Bar) Range() float64 { return b.High - b.Low }

// UpperWick returns the distance from the body top to the high.
func (b *Bar) UpperWick() float64 { return b.High - math.Max(b.Open, b.Close) }

// LowerWick returns the distance from the low to the body bottom.
func (b *Bar) LowerWick() float64 { return math.Min(b.Open, b.Close) - b.Low }

func (b *Bar) IsBullish() bool { return b.Close > b.Open }
func (b *Bar) IsBearish() bool { return b.Close < b.Open }

// IsStrongBody reports whether the body covers at least half of the range.
func (b *Bar) IsStrongBody() bool {
	r := b.Range()
	if r <= 0 {
		return false
	}
	return b.Body()/r >= 0.5
}

// ClosePosition classifies the close into the top 30%, bottom 30% or middle of the range.
func (b *Bar) ClosePosition() ClosePosition {
	r := b.Range()
	if r <= 0 {
		return CloseMid
	}
	pos := (b.Close - b.Low) / r
	switch {
	case pos >= 0.7:
		return CloseHigh
	case pos <= 0.3:
		return CloseLow
	default:
		return CloseMid
	}
}

// Closes extracts the close prices of bars in order.
func Closes(bars []*Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
