package notify

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Summary is the operator-facing result of one trading cycle.
type Summary struct {
	CycleID     string
	Date        string
	Currency    string
	Cash        decimal.Decimal
	TotalEquity decimal.Decimal
	Drawdown    decimal.Decimal
	Executed    []string
	Rejected    int
	Skipped     int
	StaleQuotes int
	Halted      bool
}

// FormatMoney renders amount in the currency's own notation, e.g. $1,234.50.
// Unknown currency codes fall back to two decimals and the code.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// FormatSummary renders s as a short multi-line message.
func FormatSummary(s Summary) string {
	var b strings.Builder

	if s.Halted {
		fmt.Fprintf(&b, "RISK HALT: drawdown %s%%, no orders placed\n", s.Drawdown.Shift(2).StringFixed(2))
	}
	fmt.Fprintf(&b, "Date: %s\n", s.Date)
	fmt.Fprintf(&b, "Cash: %s\n", FormatMoney(s.Cash, s.Currency))
	fmt.Fprintf(&b, "Equity: %s\n", FormatMoney(s.TotalEquity, s.Currency))
	fmt.Fprintf(&b, "Drawdown: %s%%\n", s.Drawdown.Shift(2).StringFixed(2))
	fmt.Fprintf(&b, "Orders: %d executed, %d rejected, %d skipped", len(s.Executed), s.Rejected, s.Skipped)
	for _, e := range s.Executed {
		fmt.Fprintf(&b, "\n  %s", e)
	}
	if s.StaleQuotes > 0 {
		fmt.Fprintf(&b, "\nStale quotes: %d", s.StaleQuotes)
	}

	return b.String()
}

// Title returns the message title for s.
func (s Summary) Title() string {
	if s.Halted {
		return "papertrader: risk halt"
	}
	return "papertrader: cycle " + s.Date
}
