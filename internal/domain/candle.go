package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLC bar of a price history.
type Candle struct {
	Time  time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}
