package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable entry of the trade log.
type Trade struct {
	ID          int64
	Timestamp   time.Time
	Ticker      string
	Action      Action
	Quantity    int64
	Price       decimal.Decimal
	Reason      string
	RealizedPnL decimal.Decimal
}

// Notional returns quantity times price.
func (t Trade) Notional() decimal.Decimal {
	return decimal.NewFromInt(t.Quantity).Mul(t.Price)
}

// TradeRequest is the input of a ledger mutation.
type TradeRequest struct {
	Ticker   string
	Action   Action
	Quantity int64
	Price    decimal.Decimal
	Reason   string
}
