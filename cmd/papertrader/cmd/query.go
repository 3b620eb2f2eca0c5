package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/notify"
	"github.com/vadiminshakov/papertrader/internal/services/stops"
	"github.com/vadiminshakov/papertrader/internal/storage/cyclestate"
	"github.com/vadiminshakov/papertrader/internal/storage/ledger"
)

func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, error) {
	return ledger.Open(ctx, cfg.Storage.LedgerPath, ledger.WithLocation(cfg.Account.Location))
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show balance, open positions with their stops, and the last cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			l, err := openLedger(ctx, cfg)
			if err != nil {
				return err
			}
			defer l.Close()

			bal, err := l.CurrentBalance(ctx)
			if err != nil {
				return err
			}
			initial, err := l.InitialCapital(ctx)
			if err != nil {
				return err
			}
			positions, err := l.Positions(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			cur := cfg.Account.Currency
			drawdown := domain.Drawdown(initial, bal.TotalEquity)

			fmt.Fprintln(out, titleStyle.Render("Account"))
			fmt.Fprintln(out, renderTable(
				[]string{"Date", "Initial", "Cash", "Equity", "Drawdown"},
				[][]string{{
					bal.Date,
					notify.FormatMoney(initial, cur),
					notify.FormatMoney(bal.Cash, cur),
					notify.FormatMoney(bal.TotalEquity, cur),
					drawdown.Shift(2).StringFixed(2) + "%",
				}},
			))

			fmt.Fprintln(out, titleStyle.Render("Positions"))
			if len(positions) == 0 {
				fmt.Fprintln(out, "no open positions")
			} else {
				m := stops.NewManager(cfg.Stops, nil)
				rows := make([][]string, 0, len(positions))
				for _, p := range positions {
					rows = append(rows, []string{
						p.Ticker,
						strconv.FormatInt(p.Quantity, 10),
						p.EntryPrice.StringFixed(2),
						p.CurrentPrice.StringFixed(2),
						p.StopPrice.StringFixed(2),
						p.HighestPrice.StringFixed(2),
						m.State(p).String(),
						signed(notify.FormatMoney(p.UnrealizedPnL, cur), p.UnrealizedPnL.IsNegative()),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Ticker", "Qty", "Entry", "Price", "Stop", "Highest", "State", "Unrealized"},
					rows,
				))
			}

			store, err := cyclestate.NewStore(cfg.Storage.CycleStatePath)
			if err != nil {
				return err
			}
			last, err := store.Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, titleStyle.Render("Last cycle"))
			if last == nil {
				fmt.Fprintln(out, "no cycle has run yet")
				return nil
			}
			row := []string{
				last.FinishedAt.In(cfg.Account.Location).Format("2006-01-02 15:04:05"),
				last.Outcome,
				strconv.Itoa(last.Executed),
				strconv.Itoa(last.Rejected),
				strconv.Itoa(last.Skipped),
				strconv.Itoa(last.StaleQuotes),
			}
			fmt.Fprintln(out, renderTable([]string{"Finished", "Outcome", "Executed", "Rejected", "Skipped", "Stale"}, [][]string{row}))
			if last.Error != "" {
				fmt.Fprintln(out, lossStyle.Render(last.Error))
			}
			return nil
		},
	}
}

func newTradesCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List booked trades, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer l.Close()

			trades, err := l.TradeHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no trades")
				return nil
			}

			rows := make([][]string, 0, len(trades))
			for _, t := range trades {
				pnl := ""
				if t.Action == domain.ActionSell {
					pnl = signed(notify.FormatMoney(t.RealizedPnL, cfg.Account.Currency), t.RealizedPnL.IsNegative())
				}
				rows = append(rows, []string{
					strconv.FormatInt(t.ID, 10),
					t.Timestamp.In(cfg.Account.Location).Format("2006-01-02 15:04"),
					t.Ticker,
					t.Action.String(),
					strconv.FormatInt(t.Quantity, 10),
					t.Price.StringFixed(2),
					pnl,
					t.Reason,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Time", "Ticker", "Action", "Qty", "Price", "Realized", "Reason"},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of trades to show (0 for all)")
	return cmd
}

func newSnapshotsCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List daily equity snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer l.Close()

			snaps, err := l.Snapshots(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshots")
				return nil
			}

			rows := make([][]string, 0, len(snaps))
			for _, s := range snaps {
				rows = append(rows, []string{
					s.Date,
					notify.FormatMoney(s.Cash, cfg.Account.Currency),
					notify.FormatMoney(s.TotalEquity, cfg.Account.Currency),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Date", "Cash", "Equity"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 30, "number of days to show (0 for all)")
	return cmd
}
