package ledger

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// LatestPricer provides the last traded price of a ticker.
type LatestPricer interface {
	GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// MarkResult summarizes one mark-to-market pass.
type MarkResult struct {
	Updated  int
	Skipped  []string
	Snapshot domain.EquitySnapshot
}

// MarkToMarket refreshes current prices of open positions and writes today's
// equity snapshot. Tickers whose price cannot be fetched keep their previous
// price and are reported in Skipped.
func (l *Ledger) MarkToMarket(ctx context.Context, prices LatestPricer) (MarkResult, error) {
	positions, err := l.Positions(ctx)
	if err != nil {
		return MarkResult{}, err
	}

	// prices are fetched before the transaction so no write lock is held
	// across network calls.
	latest := make(map[string]decimal.Decimal, len(positions))
	var result MarkResult
	for _, p := range positions {
		price, err := prices.GetLatestPrice(ctx, p.Ticker)
		if err != nil || !price.IsPositive() {
			l.logger.Debug("no price for mark-to-market", zap.String("ticker", p.Ticker), zap.Error(err))
			result.Skipped = append(result.Skipped, p.Ticker)
			continue
		}
		latest[p.Ticker] = price
	}

	err = l.withTx(ctx, "mark to market", func(tx *sql.Tx) error {
		for ticker, price := range latest {
			p, ok, err := getPosition(ctx, tx, ticker)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE positions SET current_price = ?, unrealized_pnl = ? WHERE ticker = ?`,
				price, p.PnL(price), ticker,
			); err != nil {
				return storageErr("mark position", err)
			}
			result.Updated++
		}

		snap, err := l.snapshot(ctx, tx)
		if err != nil {
			return err
		}
		result.Snapshot = snap
		return nil
	})
	if err != nil {
		return MarkResult{}, err
	}

	if len(result.Skipped) > 0 {
		l.logger.Warn("mark-to-market skipped tickers",
			zap.Int("skipped", len(result.Skipped)),
			zap.Int("updated", result.Updated),
		)
	}

	return result, nil
}

// RecordSnapshot recomputes total equity from stored prices and upserts
// today's balance row.
func (l *Ledger) RecordSnapshot(ctx context.Context) (domain.EquitySnapshot, error) {
	var snap domain.EquitySnapshot
	err := l.withTx(ctx, "record snapshot", func(tx *sql.Tx) error {
		var err error
		snap, err = l.snapshot(ctx, tx)
		return err
	})
	return snap, err
}

// Snapshots returns daily equity snapshots, newest first. A non-positive limit returns all.
func (l *Ledger) Snapshots(ctx context.Context, limit int) ([]domain.EquitySnapshot, error) {
	query := `SELECT date, cash, total_equity, updated_at FROM balance ORDER BY date DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("read snapshots", err)
	}
	defer rows.Close()

	var snaps []domain.EquitySnapshot
	for rows.Next() {
		var (
			s  domain.EquitySnapshot
			at string
		)
		if err := rows.Scan(&s.Date, &s.Cash, &s.TotalEquity, &at); err != nil {
			return nil, storageErr("scan snapshot", err)
		}
		if s.RecordedAt, err = parseTime(at); err != nil {
			return nil, storageErr("decode snapshot time", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate snapshots", err)
	}

	return snaps, nil
}

func (l *Ledger) snapshot(ctx context.Context, tx *sql.Tx) (domain.EquitySnapshot, error) {
	bal, err := latestBalance(ctx, tx)
	if err != nil {
		return domain.EquitySnapshot{}, err
	}
	holdings, err := holdingsValue(ctx, tx)
	if err != nil {
		return domain.EquitySnapshot{}, err
	}

	now := l.now()
	snap := domain.EquitySnapshot{
		Date:        l.today(),
		Cash:        bal.Cash,
		TotalEquity: bal.Cash.Add(holdings),
		RecordedAt:  now.UTC(),
	}
	if err := upsertBalance(ctx, tx, snap.Date, snap.Cash, snap.TotalEquity, now); err != nil {
		return domain.EquitySnapshot{}, err
	}
	return snap, nil
}
