// Package execution sizes orders from signals and books them in the ledger
// behind a portfolio-wide drawdown circuit breaker.
package execution

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/storage/orderjournal"
)

type ledger interface {
	InitialCapital(ctx context.Context) (decimal.Decimal, error)
	CurrentBalance(ctx context.Context) (domain.Balance, error)
	Position(ctx context.Context, ticker string) (domain.Position, bool, error)
	ExecuteTrade(ctx context.Context, req domain.TradeRequest) (domain.Trade, error)
}

type journal interface {
	Record(e orderjournal.Entry) (orderjournal.Entry, error)
}

type cycleIDKey struct{}

// WithCycleID tags ctx with the id of the running cycle for the order journal.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

func cycleID(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

// RiskGate turns signals into bounded orders.
type RiskGate struct {
	cfg     config.RiskConfig
	ledger  ledger
	journal journal
	logger  *zap.Logger
}

// Option configures the RiskGate.
type Option func(*RiskGate)

// WithJournal records every order decision in j.
func WithJournal(j journal) Option {
	return func(g *RiskGate) {
		g.journal = j
	}
}

// NewRiskGate creates a risk gate over the ledger.
func NewRiskGate(cfg config.RiskConfig, l ledger, logger *zap.Logger, opts ...Option) *RiskGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &RiskGate{cfg: cfg, ledger: l, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckRisk returns false when the drawdown from the initial capital exceeds
// the configured limit. The drawdown is returned in both cases.
func (g *RiskGate) CheckRisk(ctx context.Context) (bool, decimal.Decimal, error) {
	initial, err := g.ledger.InitialCapital(ctx)
	if err != nil {
		return false, decimal.Zero, errors.Wrap(err, "read initial capital")
	}
	bal, err := g.ledger.CurrentBalance(ctx)
	if err != nil {
		return false, decimal.Zero, errors.Wrap(err, "read balance")
	}

	drawdown := domain.Drawdown(initial, bal.TotalEquity)
	if drawdown.GreaterThan(g.cfg.MaxDrawdownPct) {
		g.logger.Error("drawdown limit breached",
			zap.Stringer("drawdown", drawdown),
			zap.Stringer("limit", g.cfg.MaxDrawdownPct),
			zap.Stringer("total_equity", bal.TotalEquity),
			zap.Stringer("initial_capital", initial),
		)
		return false, drawdown, nil
	}
	return true, drawdown, nil
}

// CalculatePositionSize returns the number of shares to buy, a multiple of
// the ticker's lot size. Zero means no trade.
func (g *RiskGate) CalculatePositionSize(ctx context.Context, ticker string, price, confidence decimal.Decimal) (int64, error) {
	if !price.IsPositive() {
		return 0, errors.Wrapf(domain.ErrInvalidPrice, "size %s: got %s", ticker, price)
	}
	bal, err := g.ledger.CurrentBalance(ctx)
	if err != nil {
		return 0, err
	}

	target := bal.TotalEquity.Mul(g.cfg.MaxPositionPct).Mul(confidence)
	if target.GreaterThan(bal.Cash) {
		target = bal.Cash
	}
	if !target.IsPositive() || target.LessThan(g.cfg.MinOrderNotional) {
		return 0, nil
	}

	lot := g.cfg.LotSizeFor(ticker)
	lots := target.Div(price).Div(decimal.NewFromInt(lot)).Floor()
	return lots.IntPart() * lot, nil
}
