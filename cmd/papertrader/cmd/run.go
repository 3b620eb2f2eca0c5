package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal"
	"github.com/vadiminshakov/papertrader/internal/services/notify"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run trading cycles on the poll interval",
		Long: `Run trading cycles until interrupted. The first cycle starts immediately.

Examples:
  papertrader run --config config.yaml
  papertrader run --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := opts.logger(cfg)
			if err != nil {
				return errors.Wrap(err, "create logger")
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("configuration loaded", zap.Any("config", cfg.Redacted()))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := internal.NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Error("failed to close stores", zap.Error(err))
				}
			}()

			if !once {
				if err := app.Bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}

			report, err := app.Bot.RunCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cycle %s\n", report.CycleID)
			fmt.Fprintf(cmd.OutOrStdout(), "equity %s, cash %s, %d executed\n",
				notify.FormatMoney(report.Snapshot.TotalEquity, cfg.Account.Currency),
				notify.FormatMoney(report.Snapshot.Cash, cfg.Account.Currency),
				len(report.Orders.Executed()),
			)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}
