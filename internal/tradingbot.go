package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/execution"
	"github.com/vadiminshakov/papertrader/internal/services/notify"
	"github.com/vadiminshakov/papertrader/internal/services/stops"
	"github.com/vadiminshakov/papertrader/internal/storage/cyclestate"
	"github.com/vadiminshakov/papertrader/internal/storage/ledger"
	"github.com/vadiminshakov/papertrader/internal/storage/orderjournal"
)

// Book is the part of the ledger the cycle reads and writes directly.
type Book interface {
	InitialCapital(ctx context.Context) (decimal.Decimal, error)
	Positions(ctx context.Context) ([]domain.Position, error)
	UpdateStop(ctx context.Context, ticker string, stop, highest decimal.Decimal) (domain.Position, error)
	MarkToMarket(ctx context.Context, prices ledger.LatestPricer) (ledger.MarkResult, error)
}

// Prices is a price source whose lookups are reused until Reset.
type Prices interface {
	GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	GetRecentRange(ctx context.Context, ticker string, window int) ([]domain.Candle, error)
	Reset()
}

type SignalSource interface {
	Signals(ctx context.Context) ([]domain.Signal, error)
}

type OrderExecutor interface {
	ExecuteOrders(ctx context.Context, signals []domain.Signal, prices map[string]decimal.Decimal) (execution.Report, error)
}

type EquityRecorder interface {
	RecordToday(ctx context.Context) (domain.EquitySnapshot, error)
}

type Notifier interface {
	Send(ctx context.Context, title, message string)
}

type CycleStateStore interface {
	Save(state cyclestate.State) error
}

// Deps are the collaborators of a TradingBot.
type Deps struct {
	Ledger   Book
	Prices   Prices
	Signals  SignalSource
	Gate     OrderExecutor
	Stops    *stops.Manager
	Recorder EquityRecorder
	Notifier Notifier
	State    CycleStateStore
	Logger   *zap.Logger
}

// StopUpdate is the stop evaluation of one open position.
type StopUpdate struct {
	Ticker   string
	Price    decimal.Decimal
	Levels   stops.Levels
	Exit     bool
	Reason   string
	Position domain.Position
}

// CycleReport is the result of one RunCycle.
type CycleReport struct {
	CycleID string
	Stops   []StopUpdate
	// Stale lists open positions skipped by stop evaluation for lack of a price.
	Stale    []string
	Orders   execution.Report
	Mark     ledger.MarkResult
	Snapshot domain.EquitySnapshot
	Drawdown decimal.Decimal
}

// TradingBot runs the stop → execute → mark → snapshot cycle over one account.
type TradingBot struct {
	cfg *config.Config
	Deps
}

// NewTradingBot validates deps and creates the bot.
func NewTradingBot(cfg *config.Config, deps Deps) (*TradingBot, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	switch {
	case deps.Ledger == nil:
		return nil, errors.New("ledger is required")
	case deps.Prices == nil:
		return nil, errors.New("price source is required")
	case deps.Gate == nil:
		return nil, errors.New("risk gate is required")
	case deps.Stops == nil:
		return nil, errors.New("stop manager is required")
	case deps.Recorder == nil:
		return nil, errors.New("equity recorder is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &TradingBot{cfg: cfg, Deps: deps}, nil
}

// Run executes a cycle right away and then on every poll interval until ctx
// is done. Failed or halted cycles are logged and the loop goes on: the next
// cycle re-evaluates the breaker.
func (b *TradingBot) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	b.Logger.Info("starting trading loop", zap.Duration("poll_interval", b.cfg.PollInterval))
	b.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			b.Logger.Info("context done, stopping trading loop")
			return ctx.Err()
		case <-ticker.C:
			b.runLogged(ctx)
		}
	}
}

func (b *TradingBot) runLogged(ctx context.Context) {
	report, err := b.RunCycle(ctx)
	if err != nil {
		kind := domain.KindOf(err)
		if kind == domain.KindRiskHalt {
			b.Logger.Error("cycle halted", zap.String("cycle_id", report.CycleID), zap.Error(err))
			return
		}
		b.Logger.Error("cycle failed", zap.String("cycle_id", report.CycleID), zap.Stringer("kind", kind), zap.Error(err))
		return
	}
	b.Logger.Info("cycle completed",
		zap.String("cycle_id", report.CycleID),
		zap.Int("executed", len(report.Orders.Executed())),
		zap.Stringer("total_equity", report.Snapshot.TotalEquity),
	)
}

// RunCycle runs one full cycle. Stop-forced exits are booked before new
// signals so their cash is available in the same cycle. A risk halt books no
// orders, marks and records the account and is returned. A storage failure
// stops the cycle. Every other failure is isolated to its ticker or signal
// and reported.
func (b *TradingBot) RunCycle(ctx context.Context) (CycleReport, error) {
	started := time.Now()
	report, err := b.runCycle(ctx, uuid.NewString())
	b.saveState(report, started, err)
	return report, err
}

func (b *TradingBot) runCycle(ctx context.Context, id string) (CycleReport, error) {
	report := CycleReport{CycleID: id}
	ctx = execution.WithCycleID(ctx, report.CycleID)
	logger := b.Logger.With(zap.String("cycle_id", report.CycleID))

	b.Prices.Reset()
	prices := make(map[string]decimal.Decimal)

	exits, err := b.evaluateStops(ctx, logger, &report, prices)
	if err != nil {
		return report, err
	}

	scanned := b.scanSignals(ctx, logger, prices)

	orders, execErr := b.Gate.ExecuteOrders(ctx, append(exits, scanned...), prices)
	report.Orders = orders
	if execErr != nil && domain.KindOf(execErr) != domain.KindRiskHalt {
		return report, errors.Wrap(execErr, "execute orders")
	}

	// A halted cycle books nothing but is still marked and recorded, so the
	// next breaker check reads today's equity.
	report.Mark, err = b.Ledger.MarkToMarket(ctx, b.Prices)
	if err != nil {
		return report, errors.Wrap(err, "mark to market")
	}

	report.Snapshot, err = b.Recorder.RecordToday(ctx)
	if err != nil {
		return report, err
	}

	initial, err := b.Ledger.InitialCapital(ctx)
	if err != nil {
		return report, errors.Wrap(err, "read initial capital")
	}
	report.Drawdown = domain.Drawdown(initial, report.Snapshot.TotalEquity)

	b.notify(ctx, report.summary(b.cfg.Account.Currency))
	if execErr != nil {
		return report, errors.Wrap(execErr, "execute orders")
	}
	return report, nil
}

// evaluateStops ratchets the stop of every open position, writes it back and
// returns the forced exits.
func (b *TradingBot) evaluateStops(ctx context.Context, logger *zap.Logger, report *CycleReport, prices map[string]decimal.Decimal) ([]domain.Signal, error) {
	positions, err := b.Ledger.Positions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read positions")
	}

	var exits []domain.Signal
	for _, p := range positions {
		ticker := p.Ticker
		price, err := b.Prices.GetLatestPrice(ctx, p.Ticker)
		if err != nil {
			logger.Warn("no price for open position, stop kept", zap.String("ticker", p.Ticker), zap.Error(err))
			report.Stale = append(report.Stale, p.Ticker)
			continue
		}
		prices[p.Ticker] = price

		history, err := b.Prices.GetRecentRange(ctx, p.Ticker, b.cfg.Stops.HistoryWindow)
		if err != nil {
			logger.Warn("no price history, volatility floor skipped", zap.String("ticker", p.Ticker), zap.Error(err))
		}

		levels := b.Stops.UpdateStop(p, price, history)
		if !levels.Stop.Equal(p.StopPrice) || !levels.Highest.Equal(p.HighestPrice) {
			p, err = b.Ledger.UpdateStop(ctx, p.Ticker, levels.Stop, levels.Highest)
			if err != nil {
				return nil, errors.Wrapf(err, "write back stop for %s", ticker)
			}
		}

		exit, reason := b.Stops.CheckExit(p, price)
		report.Stops = append(report.Stops, StopUpdate{
			Ticker:   p.Ticker,
			Price:    price,
			Levels:   levels,
			Exit:     exit,
			Reason:   reason,
			Position: p,
		})
		if !exit {
			continue
		}

		logger.Info("forced exit",
			zap.String("ticker", p.Ticker),
			zap.String("reason", reason),
			zap.Stringer("price", price),
			zap.Stringer("stop", p.StopPrice),
		)
		exits = append(exits, domain.Signal{
			Ticker:     p.Ticker,
			Action:     domain.ActionSell,
			Confidence: decimal.NewFromInt(1),
			Reason:     fmt.Sprintf("%s: price %s, stop %s, entry %s", reason, price, p.StopPrice, p.EntryPrice),
		})
	}

	return exits, nil
}

// scanSignals reads external signals and fetches their prices. Signals without
// a price stay in the batch so the gate records the skip.
func (b *TradingBot) scanSignals(ctx context.Context, logger *zap.Logger, prices map[string]decimal.Decimal) []domain.Signal {
	if b.Signals == nil {
		return nil
	}

	scanned, err := b.Signals.Signals(ctx)
	if err != nil {
		logger.Warn("signal source failed, only forced exits run", zap.Error(err))
		return nil
	}

	for _, s := range scanned {
		if _, ok := prices[s.Ticker]; ok {
			continue
		}
		price, err := b.Prices.GetLatestPrice(ctx, s.Ticker)
		if err != nil {
			logger.Warn("no price for signal", zap.String("ticker", s.Ticker), zap.Error(err))
			continue
		}
		prices[s.Ticker] = price
	}

	return scanned
}

// StaleTickers returns every ticker that had no price this cycle, once.
func (r CycleReport) StaleTickers() []string {
	seen := make(map[string]struct{}, len(r.Stale)+len(r.Mark.Skipped))
	var out []string
	for _, list := range [][]string{r.Stale, r.Mark.Skipped} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func (r CycleReport) summary(currency string) notify.Summary {
	s := notify.Summary{
		CycleID:     r.CycleID,
		Date:        r.Snapshot.Date,
		Currency:    currency,
		Cash:        r.Snapshot.Cash,
		TotalEquity: r.Snapshot.TotalEquity,
		Drawdown:    r.Drawdown,
		Rejected:    r.Orders.Count(orderjournal.StatusRejected),
		Skipped:     r.Orders.Count(orderjournal.StatusSkipped),
		StaleQuotes: len(r.StaleTickers()),
		Halted:      r.Orders.Halted,
	}
	for _, t := range r.Orders.Executed() {
		s.Executed = append(s.Executed, fmt.Sprintf("%s %d %s @ %s", t.Action, t.Quantity, t.Ticker, t.Price))
	}
	return s
}

func (b *TradingBot) notify(ctx context.Context, s notify.Summary) {
	if b.Notifier == nil {
		return
	}
	b.Notifier.Send(ctx, s.Title(), notify.FormatSummary(s))
}

func (b *TradingBot) saveState(report CycleReport, started time.Time, cycleErr error) {
	if b.State == nil {
		return
	}

	state := cyclestate.State{
		CycleID:     report.CycleID,
		StartedAt:   started.UTC(),
		FinishedAt:  time.Now().UTC(),
		Outcome:     cyclestate.OutcomeCompleted,
		Executed:    len(report.Orders.Executed()),
		Rejected:    report.Orders.Count(orderjournal.StatusRejected),
		Skipped:     report.Orders.Count(orderjournal.StatusSkipped),
		StaleQuotes: len(report.StaleTickers()),
		Drawdown:    report.Drawdown.String(),
	}
	for _, u := range report.Stops {
		if u.Exit {
			state.Exits = append(state.Exits, u.Ticker+": "+u.Reason)
		}
	}
	if report.Snapshot.Date != "" {
		state.Cash = report.Snapshot.Cash.String()
		state.TotalEquity = report.Snapshot.TotalEquity.String()
	}
	if cycleErr != nil {
		state.Outcome = cyclestate.OutcomeFailed
		if domain.KindOf(cycleErr) == domain.KindRiskHalt {
			state.Outcome = cyclestate.OutcomeHalted
		}
		state.Error = cycleErr.Error()
	}

	if err := b.State.Save(state); err != nil {
		b.Logger.Warn("failed to save cycle state", zap.String("cycle_id", report.CycleID), zap.Error(err))
	}
}
