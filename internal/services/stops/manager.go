// Package stops maintains the ratcheting protective stop of every open position
// and decides forced exits.
package stops

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/pkg/indicators"
)

// Exit reasons recorded on forced sells.
const (
	ReasonStopHit   = "stop hit"
	ReasonTargetHit = "target hit"
)

// Levels is the result of a stop update, to be written back to the ledger.
type Levels struct {
	Stop    decimal.Decimal
	Highest decimal.Decimal
	State   domain.StopState
	// ATR is zero when the history was too short to compute it.
	ATR decimal.Decimal
}

// Manager computes stop levels. It holds no per-ticker state: the ledger
// position carries the stop and the highest price.
type Manager struct {
	cfg    config.StopConfig
	logger *zap.Logger
}

// NewManager creates a stop manager.
func NewManager(cfg config.StopConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ATRPeriod < 1 {
		cfg.ATRPeriod = indicators.DefaultATRPeriod
	}
	return &Manager{cfg: cfg, logger: logger}
}

// State returns the stop state of p. TRAILING is derived from the highest
// price since entry, so once reached it survives restarts and pullbacks.
func (m *Manager) State(p domain.Position) domain.StopState {
	if !p.IsOpen() {
		return domain.StateNoPosition
	}
	if p.Gain(p.HighestPrice).GreaterThan(m.cfg.TrailingActivationPct) {
		return domain.StateTrailing
	}
	return domain.StateArmed
}

// UpdateStop raises the highest price and the stop of p for latestPrice.
// The returned stop is never below p.StopPrice.
func (m *Manager) UpdateStop(p domain.Position, latestPrice decimal.Decimal, history []domain.Candle) Levels {
	if !p.IsOpen() {
		return Levels{State: domain.StateNoPosition}
	}

	p.HighestPrice = decimal.Max(p.HighestPrice, latestPrice)
	state := m.State(p)

	var (
		candidate decimal.Decimal
		haveFloor bool
	)

	atr, err := indicators.LatestATR(history, m.cfg.ATRPeriod)
	if err != nil {
		m.logger.Debug("ATR unavailable, volatility floor skipped",
			zap.String("ticker", p.Ticker),
			zap.Int("candles", len(history)),
			zap.Error(err),
		)
		atr = decimal.Zero
	} else {
		candidate = p.EntryPrice.Sub(m.cfg.ATRMultiplier.Mul(atr))
		haveFloor = true
	}

	if state == domain.StateTrailing {
		trailing := p.HighestPrice.Mul(decimal.NewFromInt(1).Sub(m.cfg.TrailingStopPct))
		if !haveFloor || trailing.GreaterThan(candidate) {
			candidate = trailing
		}
		haveFloor = true
	}

	stop := p.StopPrice
	if haveFloor {
		stop = decimal.Max(stop, candidate)
	}
	if stop.IsNegative() {
		stop = decimal.Zero
	}

	m.logger.Debug("stop updated",
		zap.String("ticker", p.Ticker),
		zap.String("state", state.String()),
		zap.Stringer("price", latestPrice),
		zap.Stringer("highest", p.HighestPrice),
		zap.Stringer("atr", atr),
		zap.Stringer("stop", stop),
	)

	return Levels{Stop: stop, Highest: p.HighestPrice, State: state, ATR: atr}
}

// CheckExit reports whether p must be closed at latestPrice and why.
// An unarmed stop (zero) never fires.
func (m *Manager) CheckExit(p domain.Position, latestPrice decimal.Decimal) (bool, string) {
	if !p.IsOpen() {
		return false, ""
	}
	if p.StopPrice.IsPositive() && latestPrice.LessThanOrEqual(p.StopPrice) {
		return true, ReasonStopHit
	}
	if m.cfg.TakeProfitPct.IsPositive() && p.Gain(latestPrice).GreaterThanOrEqual(m.cfg.TakeProfitPct) {
		return true, ReasonTargetHit
	}
	return false, ""
}
