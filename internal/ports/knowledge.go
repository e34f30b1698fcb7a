package ports

import (
	"context"

	"ytcbot/internal/domain"
)

// PatternQuery selects reference patterns by setup type and trend.
type PatternQuery struct {
	SetupType domain.SetupType
	Trend     domain.TrendDirection
	TopK      int
}

// KnowledgeLookup returns ranked reference patterns. It is optional; callers
// treat its failures as missing corroboration.
type KnowledgeLookup interface {
	Query(ctx context.Context, q PatternQuery) ([]domain.ReferencePattern, error)
}
