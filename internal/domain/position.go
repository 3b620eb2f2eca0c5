package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open long holding tracked by the ledger.
type Position struct {
	Ticker        string
	Quantity      int64
	EntryPrice    decimal.Decimal
	EntryDate     time.Time
	CurrentPrice  decimal.Decimal
	UnrealizedPnL decimal.Decimal
	// StopPrice is zero until the stop manager arms the position.
	StopPrice decimal.Decimal
	// HighestPrice is the highest price observed since entry.
	HighestPrice decimal.Decimal
}

// Qty returns the quantity as a decimal.
func (p Position) Qty() decimal.Decimal {
	return decimal.NewFromInt(p.Quantity)
}

// MarketValue returns quantity times the last observed price.
func (p Position) MarketValue() decimal.Decimal {
	return p.Qty().Mul(p.CurrentPrice)
}

// PnL calculates unrealized profit and loss for the given market price.
func (p Position) PnL(currentPrice decimal.Decimal) decimal.Decimal {
	return currentPrice.Sub(p.EntryPrice).Mul(p.Qty())
}

// Gain returns the fractional gain of price over the entry price.
func (p Position) Gain(price decimal.Decimal) decimal.Decimal {
	if !p.EntryPrice.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(p.EntryPrice).Div(p.EntryPrice)
}

// IsOpen returns true if the position holds a positive quantity.
func (p Position) IsOpen() bool {
	return p.Quantity > 0
}

// StopState is the per-ticker state of the protective stop.
type StopState int

const (
	StateNoPosition StopState = iota
	StateArmed
	StateTrailing
)

// String returns the string representation of the state.
func (s StopState) String() string {
	switch s {
	case StateNoPosition:
		return "NO_POSITION"
	case StateArmed:
		return "ARMED"
	case StateTrailing:
		return "TRAILING"
	default:
		return "UNKNOWN"
	}
}
