package structure

import (
	"sort"

	"ytcbot/internal/domain"
)

// DetectSwings finds local extremes using a symmetric window of n bars.
// A bar is a swing high when its high is strictly above every high within n bars
// on both sides; swing lows use the strict mirror rule. Bars without n neighbours
// on each side are never swings. A bar that qualifies both ways is kept as a high
// only, so the two slices never share a bar index.
func DetectSwings(bars []*domain.Bar, n int) (highs, lows []domain.Swing) {
	if n <= 0 || len(bars) < 2*n+1 {
		return nil, nil
	}
	for i := n; i < len(bars)-n; i++ {
		isHigh, isLow := true, true
		for j := i - n; j <= i+n; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
		}
		switch {
		case isHigh:
			highs = append(highs, newSwing(domain.SwingHigh, bars[i].High, bars[i], i))
		case isLow:
			lows = append(lows, newSwing(domain.SwingLow, bars[i].Low, bars[i], i))
		}
	}
	if len(highs) > 0 {
		highs[len(highs)-1].IsLeading = true
	}
	if len(lows) > 0 {
		lows[len(lows)-1].IsLeading = true
	}
	return highs, lows
}

func newSwing(kind domain.SwingKind, price float64, bar *domain.Bar, idx int) domain.Swing {
	return domain.Swing{Kind: kind, Price: price, Timestamp: bar.OpenTime, BarIndex: idx}
}

// Chronological merges highs and lows into a single slice ordered by bar index.
func Chronological(highs, lows []domain.Swing) []domain.Swing {
	all := make([]domain.Swing, 0, len(highs)+len(lows))
	all = append(all, highs...)
	all = append(all, lows...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].BarIndex < all[j].BarIndex })
	return all
}
