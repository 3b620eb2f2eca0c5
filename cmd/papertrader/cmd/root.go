package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/config"
)

type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "papertrader",
		Short: "Paper trading ledger with risk-gated execution and ratcheting stops",
		Long: `papertrader keeps a single simulated account in a SQLite ledger.

Each cycle it:
  - ratchets the stop of every open position and books forced exits
  - sizes external buy/sell signals behind a drawdown circuit breaker
  - marks positions to market and records the daily equity snapshot
  - sends a cycle summary`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (defaults are used when empty)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")

	root.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newTradesCmd(opts),
		newSnapshotsCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

// logger builds a production logger at cfg.LogLevel, or a development one with --debug.
func (o *rootOptions) logger(cfg *config.Config) (*zap.Logger, error) {
	if o.debug {
		return zap.NewDevelopment()
	}

	zc := zap.NewProductionConfig()
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", cfg.LogLevel)
		}
		zc.Level = level
	}
	return zc.Build()
}
