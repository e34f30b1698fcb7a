package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Direction is the side of a setup or position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == Long || d == Short
}

// Sign returns +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// EntrySide returns the order side that opens a position in this direction.
func (d Direction) EntrySide() OrderSide {
	if d == Short {
		return Sell
	}
	return Buy
}

// ExitSide returns the order side that flattens a position in this direction.
func (d Direction) ExitSide() OrderSide {
	if d == Short {
		return Buy
	}
	return Sell
}

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitReasonTakeProfit ExitReason = "Take Profit Hit"
	ExitReasonStopLoss   ExitReason = "Stop Loss Hit"
	ExitReasonSignal     ExitReason = "Exit Signal - Technical Reversal"
	ExitReasonManual     ExitReason = "Manual Exit"
)

// IsValid reports whether r is one of the known exit reasons.
func (r ExitReason) IsValid() bool {
	switch r {
	case ExitReasonTakeProfit, ExitReasonStopLoss, ExitReasonSignal, ExitReasonManual:
		return true
	}
	return false
}
