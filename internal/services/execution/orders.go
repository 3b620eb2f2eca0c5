package execution

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/storage/orderjournal"
)

// skip reasons
const (
	skipNoPrice   = "no price available"
	skipNoSize    = "position size below minimum order"
	skipNoHolding = "no position to sell"
)

// Outcome is the decision taken for one signal.
type Outcome struct {
	Signal   domain.Signal
	Status   orderjournal.Status
	Quantity int64
	Price    decimal.Decimal
	Trade    domain.Trade
	// Cause explains a rejection or skip.
	Cause string
	Err   error
}

// Report lists the outcomes of one ExecuteOrders batch in signal order.
type Report struct {
	Halted   bool
	Drawdown decimal.Decimal
	Outcomes []Outcome
}

// Executed returns the booked trades.
func (r Report) Executed() []domain.Trade {
	var out []domain.Trade
	for _, o := range r.Outcomes {
		if o.Status == orderjournal.StatusExecuted {
			out = append(out, o.Trade)
		}
	}
	return out
}

// Count returns the number of outcomes with status s.
func (r Report) Count(s orderjournal.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// ExecuteOrders runs a batch of signals in order. When the drawdown breaker
// is tripped nothing is booked and the error wraps domain.ErrRiskHalt.
// Per-signal failures are recorded in the report and never stop the batch;
// storage failures do.
func (g *RiskGate) ExecuteOrders(ctx context.Context, signals []domain.Signal, prices map[string]decimal.Decimal) (Report, error) {
	ok, drawdown, err := g.CheckRisk(ctx)
	if err != nil {
		return Report{}, err
	}
	report := Report{Drawdown: drawdown}

	if !ok {
		report.Halted = true
		for _, s := range signals {
			report.Outcomes = append(report.Outcomes, g.record(ctx, Outcome{
				Signal: s,
				Status: orderjournal.StatusHalted,
				Price:  prices[s.Ticker],
				Cause:  "drawdown " + drawdown.StringFixed(4) + " exceeds limit " + g.cfg.MaxDrawdownPct.String(),
			}))
		}
		return report, errors.Wrapf(domain.ErrRiskHalt, "drawdown %s > %s", drawdown.StringFixed(4), g.cfg.MaxDrawdownPct)
	}

	for _, s := range signals {
		outcome, err := g.executeSignal(ctx, s, prices)
		report.Outcomes = append(report.Outcomes, g.record(ctx, outcome))
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

// executeSignal returns an error only for failures that must stop the batch.
func (g *RiskGate) executeSignal(ctx context.Context, s domain.Signal, prices map[string]decimal.Decimal) (Outcome, error) {
	out := Outcome{Signal: s}

	if err := s.Validate(); err != nil {
		out.Status, out.Err, out.Cause = orderjournal.StatusRejected, err, err.Error()
		return out, nil
	}

	price, found := prices[s.Ticker]
	if !found || !price.IsPositive() {
		out.Status, out.Cause = orderjournal.StatusSkipped, skipNoPrice
		return out, nil
	}
	out.Price = price

	var qty int64
	switch s.Action {
	case domain.ActionBuy:
		n, err := g.CalculatePositionSize(ctx, s.Ticker, price, s.Confidence)
		if err != nil {
			return g.failed(out, err)
		}
		if n == 0 {
			out.Status, out.Cause = orderjournal.StatusSkipped, skipNoSize
			return out, nil
		}
		qty = n

	case domain.ActionSell:
		pos, held, err := g.ledger.Position(ctx, s.Ticker)
		if err != nil {
			return g.failed(out, err)
		}
		if !held {
			out.Status, out.Cause = orderjournal.StatusSkipped, skipNoHolding
			return out, nil
		}
		qty = pos.Quantity
	}
	out.Quantity = qty

	trade, err := g.ledger.ExecuteTrade(ctx, domain.TradeRequest{
		Ticker:   s.Ticker,
		Action:   s.Action,
		Quantity: qty,
		Price:    price,
		Reason:   s.Reason,
	})
	if err != nil {
		return g.failed(out, err)
	}

	out.Status, out.Trade = orderjournal.StatusExecuted, trade
	return out, nil
}

// failed classifies err: storage failures stop the batch, the rest reject the signal.
func (g *RiskGate) failed(out Outcome, err error) (Outcome, error) {
	out.Status, out.Err, out.Cause = orderjournal.StatusRejected, err, err.Error()
	if domain.KindOf(err) == domain.KindStorage {
		return out, err
	}
	return out, nil
}

func (g *RiskGate) record(ctx context.Context, o Outcome) Outcome {
	fields := []zap.Field{
		zap.String("ticker", o.Signal.Ticker),
		zap.String("action", o.Signal.Action.String()),
		zap.String("status", string(o.Status)),
		zap.Int64("quantity", o.Quantity),
		zap.Stringer("price", o.Price),
	}
	switch o.Status {
	case orderjournal.StatusExecuted:
		g.logger.Info("order executed", append(fields, zap.Int64("trade_id", o.Trade.ID))...)
	case orderjournal.StatusRejected, orderjournal.StatusSkipped:
		g.logger.Warn("order not executed", append(fields, zap.String("cause", o.Cause))...)
	}

	if g.journal == nil {
		return o
	}

	entry := orderjournal.Entry{
		CycleID:  cycleID(ctx),
		Status:   o.Status,
		Ticker:   o.Signal.Ticker,
		Action:   o.Signal.Action.String(),
		Quantity: o.Quantity,
		Price:    o.Price,
		Reason:   o.Signal.Reason,
		Error:    o.Cause,
		TradeID:  o.Trade.ID,
	}
	if _, err := g.journal.Record(entry); err != nil {
		g.logger.Error("failed to journal order decision", zap.String("ticker", o.Signal.Ticker), zap.Error(err))
	}
	return o
}
