package ports

import (
	"context"

	"ytcbot/internal/domain"
)

// AnalysisInput carries the three timeframes needed for one analysis pass.
type AnalysisInput struct {
	Symbol        string
	StructureBars []*domain.Bar // higher timeframe
	TrendBars     []*domain.Bar // trading timeframe
	EntryBars     []*domain.Bar // entry timeframe
	CurrentPrice  float64
	// HTFDirection overrides the direction derived from the structural stage when set.
	HTFDirection domain.TrendDirection
}

// Analyzer runs structure, trend, strength and setup scanning in order.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalysisInput) (*domain.Analysis, error)
}
