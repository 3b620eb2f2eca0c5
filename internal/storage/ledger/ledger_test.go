package ledger

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type mapPricer map[string]decimal.Decimal

func (m mapPricer) GetLatestPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	price, ok := m[ticker]
	if !ok {
		return decimal.Zero, errors.Wrapf(domain.ErrDataUnavailable, "no quote for %s", ticker)
	}
	return price, nil
}

func newTestLedger(t *testing.T) (*Ledger, *testClock, string) {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(context.Background(), path, WithLogger(zap.NewNop()), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	require.NoError(t, l.OpenAccount(context.Background(), decimal.NewFromInt(1000000)))
	return l, clock, path
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func buy(ticker string, qty, price int64) domain.TradeRequest {
	return domain.TradeRequest{Ticker: ticker, Action: domain.ActionBuy, Quantity: qty, Price: d(price), Reason: "test"}
}

func sell(ticker string, qty, price int64) domain.TradeRequest {
	return domain.TradeRequest{Ticker: ticker, Action: domain.ActionSell, Quantity: qty, Price: d(price), Reason: "test"}
}

func requireCash(t *testing.T, l *Ledger, expected int64) {
	t.Helper()
	bal, err := l.CurrentBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, bal.Cash.Equal(d(expected)), "cash: expected %d, got %s", expected, bal.Cash)
}

func TestOpenAccount_Idempotent(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.OpenAccount(ctx, d(5)))

	bal, err := l.CurrentBalance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Cash.Equal(d(1000000)))
	assert.True(t, bal.TotalEquity.Equal(d(1000000)))
	assert.Equal(t, "2024-03-01", bal.Date)

	capital, err := l.InitialCapital(ctx)
	require.NoError(t, err)
	assert.True(t, capital.Equal(d(1000000)))
}

func TestOpenAccount_RejectsNonPositiveCapital(t *testing.T) {
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	require.Error(t, l.OpenAccount(context.Background(), decimal.Zero))

	_, err = l.CurrentBalance(context.Background())
	assert.True(t, errors.Is(err, domain.ErrAccountNotOpen))
}

func TestExecuteTrade_AccountNotOpen(t *testing.T) {
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	_, err = l.ExecuteTrade(context.Background(), buy("T", 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAccountNotOpen))
}

func TestExecuteTrade_BuyThenPartialSell(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	trade, err := l.ExecuteTrade(ctx, buy("T", 100, 1000))
	require.NoError(t, err)
	assert.True(t, trade.RealizedPnL.IsZero())
	assert.Positive(t, trade.ID)

	requireCash(t, l, 900000)
	positions, err := l.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "T", positions[0].Ticker)
	assert.Equal(t, int64(100), positions[0].Quantity)
	assert.True(t, positions[0].EntryPrice.Equal(d(1000)))
	assert.True(t, positions[0].HighestPrice.Equal(d(1000)))
	assert.True(t, positions[0].StopPrice.IsZero())

	trade, err = l.ExecuteTrade(ctx, sell("T", 50, 1100))
	require.NoError(t, err)
	assert.True(t, trade.RealizedPnL.Equal(d(5000)), "realized pnl: %s", trade.RealizedPnL)

	requireCash(t, l, 955000)
	positions, err = l.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(50), positions[0].Quantity)
	assert.True(t, positions[0].EntryPrice.Equal(d(1000)))

	history, err := l.TradeHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ActionSell, history[0].Action)
	assert.True(t, history[0].RealizedPnL.Equal(d(5000)))
}

func TestExecuteTrade_InsufficientFunds(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ExecuteTrade(ctx, buy("T", 100, 20000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))
	assert.Contains(t, err.Error(), "need 2000000 have 1000000")

	requireCash(t, l, 1000000)
	positions, err := l.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
	history, err := l.TradeHistory(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestExecuteTrade_InsufficientShares(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ExecuteTrade(ctx, sell("T", 100, 1000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientShares))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = l.ExecuteTrade(ctx, buy("T", 10, 1000))
	require.NoError(t, err)
	_, err = l.ExecuteTrade(ctx, sell("T", 11, 1000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientShares))

	requireCash(t, l, 990000)
	p, ok, err := l.Position(ctx, "T")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), p.Quantity)
}

func TestExecuteTrade_StorageFailureRollsBack(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ExecuteTrade(ctx, buy("HELD", 10, 1000))
	require.NoError(t, err)

	// the trade insert runs after the position and before the balance write
	_, err = l.db.ExecContext(ctx, `CREATE TRIGGER fail_trades BEFORE INSERT ON trades
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	_, err = l.ExecuteTrade(ctx, buy("NEW", 100, 1000))
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))
	var storageErr *domain.StorageError
	assert.True(t, errors.As(err, &storageErr))

	_, err = l.ExecuteTrade(ctx, sell("HELD", 4, 1000))
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))

	requireCash(t, l, 990000)
	_, held, err := l.Position(ctx, "NEW")
	require.NoError(t, err)
	assert.False(t, held)
	p, held, err := l.Position(ctx, "HELD")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, int64(10), p.Quantity)

	history, err := l.TradeHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestExecuteTrade_InvalidRequest(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		req    domain.TradeRequest
		target error
	}{
		{name: "zero quantity", req: buy("T", 0, 1000), target: domain.ErrInvalidQuantity},
		{name: "negative quantity", req: sell("T", -5, 1000), target: domain.ErrInvalidQuantity},
		{name: "zero price", req: buy("T", 1, 0), target: domain.ErrInvalidPrice},
		{name: "no ticker", req: buy(" ", 1, 1), target: domain.ErrInvalidSignal},
		{name: "no action", req: domain.TradeRequest{Ticker: "T", Quantity: 1, Price: d(1)}, target: domain.ErrInvalidSignal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.ExecuteTrade(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}

	requireCash(t, l, 1000000)
}

func TestExecuteTrade_RoundTrip(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ExecuteTrade(ctx, buy("T", 100, 1000))
	require.NoError(t, err)
	_, err = l.ExecuteTrade(ctx, sell("T", 100, 1000))
	require.NoError(t, err)

	requireCash(t, l, 1000000)
	_, ok, err := l.Position(ctx, "T")
	require.NoError(t, err)
	assert.False(t, ok)

	bal, err := l.CurrentBalance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.TotalEquity.Equal(d(1000000)))
}

func TestExecuteTrade_WeightedAverageEntry(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ExecuteTrade(ctx, buy("T", 100, 1000))
	require.NoError(t, err)
	_, err = l.UpdateStop(ctx, "T", d(960), d(1050))
	require.NoError(t, err)
	_, err = l.ExecuteTrade(ctx, buy("T", 300, 1200))
	require.NoError(t, err)

	p, ok, err := l.Position(ctx, "T")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(400), p.Quantity)
	assert.True(t, p.EntryPrice.Equal(d(1150)), "entry: %s", p.EntryPrice)
	assert.True(t, p.CurrentPrice.Equal(d(1200)))
	assert.True(t, p.StopPrice.Equal(d(960)), "stop must survive an add")
	assert.True(t, p.HighestPrice.Equal(d(1050)), "highest must survive an add")
	assert.Equal(t, "2024-03-01", p.EntryDate.Format(domain.DateLayout))

	bal, err := l.CurrentBalance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Cash.Equal(d(540000)))
	assert.True(t, bal.TotalEquity.Equal(d(540000+400*1200)))
}

func TestTradeHistory_NewestFirst(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	for i, ticker := range []string{"A", "B", "C"} {
		clock.advance(time.Minute)
		_, err := l.ExecuteTrade(ctx, buy(ticker, int64(i+1), 10))
		require.NoError(t, err)
	}

	history, err := l.TradeHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "C", history[0].Ticker)
	assert.Equal(t, "B", history[1].Ticker)
	assert.True(t, history[0].Timestamp.After(history[1].Timestamp))

	all, err := l.TradeHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateStop_Ratchet(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ExecuteTrade(ctx, buy("T", 10, 1000))
	require.NoError(t, err)

	p, err := l.UpdateStop(ctx, "T", d(960), d(1100))
	require.NoError(t, err)
	assert.True(t, p.StopPrice.Equal(d(960)))
	assert.True(t, p.HighestPrice.Equal(d(1100)))

	p, err = l.UpdateStop(ctx, "T", d(900), d(1050))
	require.NoError(t, err)
	assert.True(t, p.StopPrice.Equal(d(960)), "stop must not decrease")
	assert.True(t, p.HighestPrice.Equal(d(1100)), "highest must not decrease")

	_, err = l.UpdateStop(ctx, "MISSING", d(1), d(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPositionNotFound))
}

func TestUpdateStop_SurvivesRestart(t *testing.T) {
	l, clock, path := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ExecuteTrade(ctx, buy("T", 10, 1000))
	require.NoError(t, err)
	_, err = l.UpdateStop(ctx, "T", d(1045), d(1100))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := Open(ctx, path, WithClock(clock.Now))
	require.NoError(t, err)
	defer reopened.Close()

	p, ok, err := reopened.Position(ctx, "T")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.StopPrice.Equal(d(1045)))
	assert.True(t, p.HighestPrice.Equal(d(1100)))
}

func TestMarkToMarket(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ExecuteTrade(ctx, buy("A", 100, 1000))
	require.NoError(t, err)
	_, err = l.ExecuteTrade(ctx, buy("B", 10, 500))
	require.NoError(t, err)
	_, err = l.ExecuteTrade(ctx, buy("C", 1, 100))
	require.NoError(t, err)

	res, err := l.MarkToMarket(ctx, mapPricer{"A": d(1100), "C": d(90)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, []string{"B"}, res.Skipped)

	a, _, err := l.Position(ctx, "A")
	require.NoError(t, err)
	assert.True(t, a.CurrentPrice.Equal(d(1100)))
	assert.True(t, a.UnrealizedPnL.Equal(d(10000)))

	b, _, err := l.Position(ctx, "B")
	require.NoError(t, err)
	assert.True(t, b.CurrentPrice.Equal(d(500)), "skipped ticker keeps its last price")

	positions, err := l.Positions(ctx)
	require.NoError(t, err)
	bal, err := l.CurrentBalance(ctx)
	require.NoError(t, err)

	expected := bal.Cash
	for _, p := range positions {
		expected = expected.Add(p.MarketValue())
	}
	assert.True(t, bal.TotalEquity.Equal(expected), "equity %s != cash + holdings %s", bal.TotalEquity, expected)
	assert.True(t, res.Snapshot.TotalEquity.Equal(expected))
	assert.True(t, bal.TotalEquity.Equal(d(1000000-100000-5000-100+110000+5000+90)))
}

func TestRecordSnapshot_OneRowPerDate(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.RecordSnapshot(ctx)
	require.NoError(t, err)
	second, err := l.RecordSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Date, second.Date)
	assert.True(t, first.Cash.Equal(second.Cash))
	assert.True(t, first.TotalEquity.Equal(second.TotalEquity))

	snaps, err := l.Snapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	_, err = l.ExecuteTrade(ctx, buy("T", 10, 1000))
	require.NoError(t, err)
	_, err = l.RecordSnapshot(ctx)
	require.NoError(t, err)

	snaps, err = l.Snapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Cash.Equal(d(990000)))

	clock.advance(24 * time.Hour)
	_, err = l.RecordSnapshot(ctx)
	require.NoError(t, err)

	snaps, err = l.Snapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "2024-03-02", snaps[0].Date)
	assert.Equal(t, "2024-03-01", snaps[1].Date)

	bal, err := l.CurrentBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", bal.Date)
	assert.True(t, bal.Cash.Equal(d(990000)))
}

func TestExecuteTrade_RandomSequenceKeepsInvariants(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	tickers := []string{"A", "B", "C"}

	for i := 0; i < 200; i++ {
		ticker := tickers[rng.Intn(len(tickers))]
		req := buy(ticker, int64(rng.Intn(50)+1), int64(rng.Intn(5000)+1))
		if rng.Intn(2) == 0 {
			req.Action = domain.ActionSell
		}

		_, err := l.ExecuteTrade(ctx, req)
		if err != nil {
			require.Equal(t, domain.KindValidation, domain.KindOf(err), "unexpected error: %v", err)
		}

		bal, err := l.CurrentBalance(ctx)
		require.NoError(t, err)
		require.False(t, bal.Cash.IsNegative(), "cash went negative at step %d", i)

		positions, err := l.Positions(ctx)
		require.NoError(t, err)
		holdings := decimal.Zero
		for _, p := range positions {
			require.Positive(t, p.Quantity)
			holdings = holdings.Add(p.MarketValue())
		}
		require.True(t, bal.TotalEquity.Equal(bal.Cash.Add(holdings)), "equity invariant broken at step %d", i)
	}
}
