package ledger

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// ExecuteTrade books one trade. The balance update, the position upsert or
// removal and the trade append commit together or not at all.
func (l *Ledger) ExecuteTrade(ctx context.Context, req domain.TradeRequest) (domain.Trade, error) {
	req.Ticker = strings.TrimSpace(req.Ticker)
	if err := validateRequest(req); err != nil {
		return domain.Trade{}, err
	}

	now := l.now()
	trade := domain.Trade{
		Timestamp:   now,
		Ticker:      req.Ticker,
		Action:      req.Action,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Reason:      req.Reason,
		RealizedPnL: decimal.Zero,
	}

	err := l.withTx(ctx, "execute trade", func(tx *sql.Tx) error {
		bal, err := latestBalance(ctx, tx)
		if err != nil {
			return err
		}
		pos, held, err := getPosition(ctx, tx, req.Ticker)
		if err != nil {
			return err
		}

		qty := decimal.NewFromInt(req.Quantity)
		notional := qty.Mul(req.Price)
		cash := bal.Cash

		switch req.Action {
		case domain.ActionBuy:
			if notional.GreaterThan(cash) {
				return errors.Wrapf(domain.ErrInsufficientFunds,
					"buy %d %s @ %s: need %s have %s",
					req.Quantity, req.Ticker, req.Price, notional, cash)
			}
			cash = cash.Sub(notional)
			pos = applyBuy(pos, held, req, l.now().In(l.loc))
			if err := savePosition(ctx, tx, pos); err != nil {
				return err
			}

		case domain.ActionSell:
			if !held || req.Quantity > pos.Quantity {
				return errors.Wrapf(domain.ErrInsufficientShares,
					"sell %d %s: hold %d", req.Quantity, req.Ticker, pos.Quantity)
			}
			cash = cash.Add(notional)
			trade.RealizedPnL = req.Price.Sub(pos.EntryPrice).Mul(qty)

			pos.Quantity -= req.Quantity
			if pos.Quantity == 0 {
				if err := deletePosition(ctx, tx, req.Ticker); err != nil {
					return err
				}
			} else {
				pos.CurrentPrice = req.Price
				pos.UnrealizedPnL = pos.PnL(req.Price)
				if err := savePosition(ctx, tx, pos); err != nil {
					return err
				}
			}
		}

		id, err := insertTrade(ctx, tx, trade)
		if err != nil {
			return err
		}
		trade.ID = id

		holdings, err := holdingsValue(ctx, tx)
		if err != nil {
			return err
		}
		if cash.IsNegative() || pos.Quantity < 0 {
			panic(errors.Wrapf(domain.ErrInvariantViolation,
				"%s %s left cash %s quantity %d", req.Action, req.Ticker, cash, pos.Quantity))
		}

		return upsertBalance(ctx, tx, l.today(), cash, cash.Add(holdings), now)
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			l.logger.Warn("trade rejected",
				zap.String("ticker", req.Ticker),
				zap.String("action", req.Action.String()),
				zap.Int64("quantity", req.Quantity),
				zap.Error(err),
			)
		}
		return domain.Trade{}, err
	}

	l.logger.Info("trade executed",
		zap.Int64("id", trade.ID),
		zap.String("ticker", trade.Ticker),
		zap.String("action", trade.Action.String()),
		zap.Int64("quantity", trade.Quantity),
		zap.Stringer("price", trade.Price),
		zap.Stringer("realized_pnl", trade.RealizedPnL),
	)

	return trade, nil
}

// applyBuy opens a position or adds to it at the volume-weighted average price.
// Stop and highest price of an existing position are kept as stored.
func applyBuy(pos domain.Position, held bool, req domain.TradeRequest, now time.Time) domain.Position {
	if !held {
		entryDate, _ := time.Parse(domain.DateLayout, now.Format(domain.DateLayout))
		pos = domain.Position{
			Ticker:       req.Ticker,
			Quantity:     req.Quantity,
			EntryPrice:   req.Price,
			EntryDate:    entryDate,
			CurrentPrice: req.Price,
			StopPrice:    decimal.Zero,
			HighestPrice: req.Price,
		}
		pos.UnrealizedPnL = decimal.Zero
		return pos
	}

	existingNotional := pos.Qty().Mul(pos.EntryPrice)
	addedNotional := decimal.NewFromInt(req.Quantity).Mul(req.Price)
	totalQty := pos.Quantity + req.Quantity

	pos.EntryPrice = existingNotional.Add(addedNotional).Div(decimal.NewFromInt(totalQty))
	pos.Quantity = totalQty
	pos.CurrentPrice = req.Price
	pos.UnrealizedPnL = pos.PnL(req.Price)
	return pos
}

// TradeHistory returns the most recent trades, newest first. A non-positive limit returns all.
func (l *Ledger) TradeHistory(ctx context.Context, limit int) ([]domain.Trade, error) {
	query := `SELECT id, timestamp, ticker, action, quantity, price, reason, realized_pnl
		FROM trades ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("read trades", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t      domain.Trade
			ts     string
			action string
		)
		if err := rows.Scan(&t.ID, &ts, &t.Ticker, &action, &t.Quantity, &t.Price, &t.Reason, &t.RealizedPnL); err != nil {
			return nil, storageErr("scan trade", err)
		}
		if t.Timestamp, err = parseTime(ts); err != nil {
			return nil, storageErr("decode trade timestamp", err)
		}
		if t.Action, err = domain.ParseAction(action); err != nil {
			return nil, storageErr("decode trade action", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate trades", err)
	}

	return trades, nil
}

func insertTrade(ctx context.Context, q queryer, t domain.Trade) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO trades (timestamp, ticker, action, quantity, price, reason, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(t.Timestamp), t.Ticker, t.Action.String(), t.Quantity, t.Price, t.Reason, t.RealizedPnL,
	)
	if err != nil {
		return 0, storageErr("append trade", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("read trade id", err)
	}
	return id, nil
}

func validateRequest(req domain.TradeRequest) error {
	if req.Ticker == "" {
		return errors.Wrap(domain.ErrInvalidSignal, "ticker is required")
	}
	if !req.Action.Valid() {
		return errors.Wrapf(domain.ErrInvalidSignal, "unknown action %d for %s", int(req.Action), req.Ticker)
	}
	if req.Quantity <= 0 {
		return errors.Wrapf(domain.ErrInvalidQuantity, "%s %s: got %d", req.Action, req.Ticker, req.Quantity)
	}
	if !req.Price.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidPrice, "%s %s: got %s", req.Action, req.Ticker, req.Price)
	}
	return nil
}
