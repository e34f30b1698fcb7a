package ports

import (
	"context"

	"ytcbot/internal/domain"
)

// PositionRepository defines the interface for storing and retrieving positions.
type PositionRepository interface {
	// Create saves a new position and returns its assigned ID.
	Create(ctx context.Context, pos *domain.Position) (int64, error)
	// Update modifies an existing position.
	Update(ctx context.Context, pos *domain.Position) error
	// FindOpenBySymbol retrieves the currently open position for a given symbol, if any.
	// Returns nil, nil if no open position is found.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error)
	// FindByTradeID retrieves a position by its trade ID.
	// Returns nil, nil if not found.
	FindByTradeID(ctx context.Context, tradeID string) (*domain.Position, error)
}

// TradeResultRepository defines the interface for the closed-trade journal.
type TradeResultRepository interface {
	// SaveResult appends a trade result and returns its assigned ID.
	SaveResult(ctx context.Context, result *domain.TradeResult) (int64, error)
	// FindResultsBySymbol retrieves the most recent results for a symbol, up to a limit.
	FindResultsBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeResult, error)
	// CountTodayBySymbol counts the trades closed today for a given symbol.
	CountTodayBySymbol(ctx context.Context, symbol string) (int, error)
}
