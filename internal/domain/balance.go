package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for balance rows.
const DateLayout = "2006-01-02"

// Balance is the latest cash and total equity of the account.
type Balance struct {
	Date        string
	Cash        decimal.Decimal
	TotalEquity decimal.Decimal
}

// EquitySnapshot is the daily summary consumed by analytics.
type EquitySnapshot struct {
	Date        string          `json:"date"`
	Cash        decimal.Decimal `json:"cash"`
	TotalEquity decimal.Decimal `json:"total_equity"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// EquitySnapshotRecord bundles a snapshot with its stream index.
type EquitySnapshotRecord struct {
	Index    uint64
	Snapshot EquitySnapshot
}

// Drawdown computes (initial - equity) / initial. A non-positive initial yields zero.
func Drawdown(initialCapital, totalEquity decimal.Decimal) decimal.Decimal {
	if !initialCapital.IsPositive() {
		return decimal.Zero
	}
	return initialCapital.Sub(totalEquity).Div(initialCapital)
}
