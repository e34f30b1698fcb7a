package domain

import "time"

// Position represents an open or closed trading position.
type Position struct {
	ID              int64     // Database identifier (0 until persisted)
	TradeID         string    // "TRD-XXXXXXXX"
	Symbol          string    // Trading symbol (e.g., "BTCUSDT")
	Direction       Direction // long or short
	SetupType       SetupType
	EntryPrice      float64
	StopLoss        float64 // Current stop level, only ever tightened
	TakeProfit      float64
	Size            float64 // Units of the base asset
	Value           float64 // EntryPrice * Size
	RiskRewardRatio float64
	EntryTime       time.Time
	EntryOrderID    string
	Status          PositionStatus

	BreakevenApplied bool
	InitialStopLoss  float64
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// HasValidGeometry checks stop < entry < target for longs and the mirror for shorts.
func (p *Position) HasValidGeometry() bool {
	switch p.Direction {
	case Long:
		return p.StopLoss < p.EntryPrice && p.EntryPrice < p.TakeProfit
	case Short:
		return p.TakeProfit < p.EntryPrice && p.EntryPrice < p.StopLoss
	}
	return false
}

// ManagementStatus labels the open P&L of a position.
type ManagementStatus string

const (
	ManagementWinning   ManagementStatus = "winning"
	ManagementLosing    ManagementStatus = "losing"
	ManagementBreakeven ManagementStatus = "breakeven"
)

// ManagementUpdate is the result of one management pass over an open position.
type ManagementUpdate struct {
	Status             ManagementStatus
	CurrentPrice       float64
	UnrealizedPnL      float64
	UnrealizedPnLPct   float64
	StopLoss           float64 // Stop after this pass
	StopMoved          bool
	BreakevenApplied   bool
	TrailingApplied    bool
	PartialProfitReady bool
	StopHit            bool
	TargetHit          bool
	ExitSignal         bool
	ExitSignalReason   string
	Message            string
}

// ShouldExit reports whether the update calls for closing the position.
func (u *ManagementUpdate) ShouldExit() bool {
	return u.StopHit || u.TargetHit || u.ExitSignal
}

// TradeResult is the immutable record of a closed position.
type TradeResult struct {
	ID          int64
	TradeID     string
	Symbol      string
	Direction   Direction
	SetupType   SetupType
	EntryPrice  float64
	ExitPrice   float64
	Size        float64
	GrossPnL    float64
	PnLPercent  float64
	ExitReason  ExitReason
	EntryTime   time.Time
	ExitTime    time.Time
	ExitOrderID string
}

// IsWin reports whether the trade closed with a positive P&L.
func (t *TradeResult) IsWin() bool {
	return t.GrossPnL > 0
}
