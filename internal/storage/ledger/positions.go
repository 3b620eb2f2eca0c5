package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

const positionColumns = `ticker, quantity, entry_price, entry_date, current_price,
	unrealized_pnl, stop_price, highest_price_since_entry`

// Positions returns all open positions ordered by ticker.
func (l *Ledger) Positions(ctx context.Context) ([]domain.Position, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions ORDER BY ticker`)
	if err != nil {
		return nil, storageErr("read positions", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate positions", err)
	}

	return positions, nil
}

// Position returns the open position for ticker, if any.
func (l *Ledger) Position(ctx context.Context, ticker string) (domain.Position, bool, error) {
	return getPosition(ctx, l.db, ticker)
}

// UpdateStop writes back the stop and highest price of an open position.
// Both columns only move up: a lower value than the stored one is ignored.
func (l *Ledger) UpdateStop(ctx context.Context, ticker string, stop, highest decimal.Decimal) (domain.Position, error) {
	var updated domain.Position
	err := l.withTx(ctx, "update stop", func(tx *sql.Tx) error {
		p, ok, err := getPosition(ctx, tx, ticker)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(domain.ErrPositionNotFound, "update stop for %s", ticker)
		}

		newStop := decimal.Max(p.StopPrice, stop)
		newHighest := decimal.Max(p.HighestPrice, highest)
		if _, err := tx.ExecContext(ctx,
			`UPDATE positions SET stop_price = ?, highest_price_since_entry = ? WHERE ticker = ?`,
			newStop, newHighest, ticker,
		); err != nil {
			return storageErr("write stop", err)
		}

		if !newStop.Equal(p.StopPrice) {
			l.logger.Debug("stop raised",
				zap.String("ticker", ticker),
				zap.Stringer("from", p.StopPrice),
				zap.Stringer("to", newStop),
			)
		}

		p.StopPrice = newStop
		p.HighestPrice = newHighest
		updated = p
		return nil
	})

	return updated, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(r rowScanner) (domain.Position, error) {
	var (
		p         domain.Position
		entryDate string
	)
	if err := r.Scan(
		&p.Ticker, &p.Quantity, &p.EntryPrice, &entryDate, &p.CurrentPrice,
		&p.UnrealizedPnL, &p.StopPrice, &p.HighestPrice,
	); err != nil {
		return domain.Position{}, err
	}

	d, err := time.Parse(domain.DateLayout, entryDate)
	if err != nil {
		return domain.Position{}, storageErr("decode entry date", err)
	}
	p.EntryDate = d

	return p, nil
}

func getPosition(ctx context.Context, q queryer, ticker string) (domain.Position, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE ticker = ?`, ticker)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{}, false, nil
	}
	if err != nil {
		if errors.Is(err, domain.ErrStorage) {
			return domain.Position{}, false, err
		}
		return domain.Position{}, false, storageErr("read position", err)
	}
	return p, true, nil
}

func savePosition(ctx context.Context, q queryer, p domain.Position) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			quantity = excluded.quantity,
			entry_price = excluded.entry_price,
			current_price = excluded.current_price,
			unrealized_pnl = excluded.unrealized_pnl,
			stop_price = excluded.stop_price,
			highest_price_since_entry = excluded.highest_price_since_entry`,
		p.Ticker, p.Quantity, p.EntryPrice, p.EntryDate.Format(domain.DateLayout), p.CurrentPrice,
		p.UnrealizedPnL, p.StopPrice, p.HighestPrice,
	)
	if err != nil {
		return storageErr("save position", err)
	}
	return nil
}

func deletePosition(ctx context.Context, q queryer, ticker string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM positions WHERE ticker = ?`, ticker); err != nil {
		return storageErr("delete position", err)
	}
	return nil
}
