// Package store provides the derived data models produced by the
// aggregation pipeline and consumed by the presentation layer.
package store

// FillRecord is one normalized trade execution row.
type FillRecord struct {
	// Time is the fill timestamp as an ISO-8601 UTC string, empty when
	// the upstream timestamp is absent or malformed
	Time string

	// Label is the display label of the watch-list entry this row belongs to
	Label string

	// Trader is the wallet address the fill was fetched for
	Trader string

	// Coin is the traded asset symbol
	Coin string

	// Side is B or A (bid/ask) as reported upstream
	Side string

	// Direction is the upstream "dir" field, e.g. "Open Long"
	Direction string

	// Price is the execution price
	Price float64

	// Size is the executed size
	Size float64

	// Notional is Price*Size, NaN when either input is NaN
	Notional float64

	// ClosedPnl is the realized PnL attributed to this fill
	ClosedPnl float64

	// Fee is the fee charged for this fill
	Fee float64

	// Liquidation reports whether the fill was part of a liquidation
	Liquidation bool
}

// PositionRecord is one normalized open-position row. Zero-size positions
// are filtered out before a record is built.
type PositionRecord struct {
	Label  string
	Trader string
	Coin   string

	// Size is the signed position size (negative for shorts)
	Size float64

	EntryPrice       float64
	PositionValue    float64
	UnrealizedPnl    float64
	ReturnOnEquity   float64
	LiquidationPrice float64
	MarginUsed       float64

	// LeverageKind is "cross" or "isolated" (empty when not reported)
	LeverageKind  string
	LeverageValue float64
}

// RowError records a per-address fetch failure for one table.
type RowError struct {
	Address string
	Message string
}

// FillsTable is the sorted fills view plus the addresses that failed.
type FillsTable struct {
	Rows   []FillRecord
	Errors []RowError
}

// PositionsTable is the sorted positions view plus the addresses that failed.
type PositionsTable struct {
	Rows   []PositionRecord
	Errors []RowError
}
