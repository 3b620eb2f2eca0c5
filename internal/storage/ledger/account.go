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

// OpenAccount seeds cash and total equity with initialCapital. It is a no-op
// when a balance row already exists.
func (l *Ledger) OpenAccount(ctx context.Context, initialCapital decimal.Decimal) error {
	if !initialCapital.IsPositive() {
		return errors.Errorf("initial capital must be greater than zero, got %s", initialCapital)
	}

	return l.withTx(ctx, "open account", func(tx *sql.Tx) error {
		var rows int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM balance`).Scan(&rows); err != nil {
			return storageErr("count balance rows", err)
		}
		if rows > 0 {
			l.logger.Debug("account already open")
			return nil
		}

		now := l.now()
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO account (id, initial_capital, opened_at) VALUES (1, ?, ?)`,
			initialCapital, formatTime(now),
		); err != nil {
			return storageErr("insert account", err)
		}
		if err := upsertBalance(ctx, tx, l.today(), initialCapital, initialCapital, now); err != nil {
			return err
		}

		l.logger.Info("account opened", zap.Stringer("initial_capital", initialCapital))
		return nil
	})
}

// InitialCapital returns the capital the account was opened with.
func (l *Ledger) InitialCapital(ctx context.Context) (decimal.Decimal, error) {
	var capital decimal.Decimal
	err := l.db.QueryRowContext(ctx, `SELECT initial_capital FROM account WHERE id = 1`).Scan(&capital)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, domain.ErrAccountNotOpen
	}
	if err != nil {
		return decimal.Zero, storageErr("read initial capital", err)
	}
	return capital, nil
}

// CurrentBalance returns the latest balance row.
func (l *Ledger) CurrentBalance(ctx context.Context) (domain.Balance, error) {
	return latestBalance(ctx, l.db)
}

func latestBalance(ctx context.Context, q queryer) (domain.Balance, error) {
	var b domain.Balance
	err := q.QueryRowContext(ctx,
		`SELECT date, cash, total_equity FROM balance ORDER BY date DESC LIMIT 1`,
	).Scan(&b.Date, &b.Cash, &b.TotalEquity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Balance{}, domain.ErrAccountNotOpen
	}
	if err != nil {
		return domain.Balance{}, storageErr("read balance", err)
	}
	return b, nil
}

// upsertBalance writes the row for date, replacing it if it exists.
func upsertBalance(ctx context.Context, q queryer, date string, cash, equity decimal.Decimal, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balance (date, cash, total_equity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			cash = excluded.cash,
			total_equity = excluded.total_equity,
			updated_at = excluded.updated_at`,
		date, cash, equity, formatTime(at),
	)
	if err != nil {
		return storageErr("upsert balance", err)
	}
	return nil
}

// holdingsValue sums quantity times current price over all open positions.
func holdingsValue(ctx context.Context, q queryer) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `SELECT quantity, current_price FROM positions`)
	if err != nil {
		return decimal.Zero, storageErr("read holdings", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var (
			qty   int64
			price decimal.Decimal
		)
		if err := rows.Scan(&qty, &price); err != nil {
			return decimal.Zero, storageErr("scan holdings", err)
		}
		total = total.Add(decimal.NewFromInt(qty).Mul(price))
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, storageErr("iterate holdings", err)
	}
	return total, nil
}
