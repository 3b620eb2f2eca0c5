package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/services/equity"
	"github.com/vadiminshakov/papertrader/internal/services/execution"
	"github.com/vadiminshakov/papertrader/internal/services/notify"
	"github.com/vadiminshakov/papertrader/internal/services/pricer"
	"github.com/vadiminshakov/papertrader/internal/services/signals"
	"github.com/vadiminshakov/papertrader/internal/services/stops"
	"github.com/vadiminshakov/papertrader/internal/storage/cyclestate"
	"github.com/vadiminshakov/papertrader/internal/storage/equitysnapshots"
	"github.com/vadiminshakov/papertrader/internal/storage/ledger"
	"github.com/vadiminshakov/papertrader/internal/storage/orderjournal"
	"github.com/vadiminshakov/papertrader/pkg/retrier"
)

// App is a TradingBot wired to its stores.
type App struct {
	Bot       *TradingBot
	Ledger    *ledger.Ledger
	Journal   *orderjournal.WALJournal
	Snapshots *equitysnapshots.WALStore
	State     *cyclestate.Store
	Notifier  *notify.Notifier
}

// NewApp opens the stores named in cfg, opens the account if needed and
// wires the bot.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (app *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app = &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	app.Ledger, err = ledger.Open(ctx, cfg.Storage.LedgerPath,
		ledger.WithLogger(logger.Named("ledger")),
		ledger.WithLocation(cfg.Account.Location),
	)
	if err != nil {
		return nil, err
	}
	if err := app.Ledger.OpenAccount(ctx, cfg.Account.InitialCapital); err != nil {
		return nil, errors.Wrap(err, "open account")
	}

	app.Journal, err = orderjournal.NewWALJournal(cfg.Storage.OrderJournalDir)
	if err != nil {
		return nil, errors.Wrap(err, "open order journal")
	}
	app.Snapshots, err = equitysnapshots.NewWALStore(cfg.Storage.SnapshotWALDir)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot stream")
	}

	prices := pricer.NewCycleCache(pricer.NewRetryingSource(
		pricer.NewFileSource(cfg.Prices.Dir),
		logger.Named("pricer"),
		retrier.WithMaxRetries(cfg.Prices.MaxRetries),
		retrier.WithInitialInterval(cfg.Prices.InitialInterval),
		retrier.WithMaxInterval(cfg.Prices.MaxInterval),
	))

	app.State, err = cyclestate.NewStore(cfg.Storage.CycleStatePath)
	if err != nil {
		return nil, err
	}

	app.Notifier = notify.NewNotifier(senders(cfg.Notify, logger), cfg.Notify.Timeout, logger.Named("notify"))

	app.Bot, err = NewTradingBot(cfg, Deps{
		Ledger:  app.Ledger,
		Prices:  prices,
		Signals: signals.NewFileSource(cfg.Signals.File, logger.Named("signals")),
		Gate: execution.NewRiskGate(cfg.Risk, app.Ledger, logger.Named("execution"),
			execution.WithJournal(app.Journal)),
		Stops:    stops.NewManager(cfg.Stops, logger.Named("stops")),
		Recorder: equity.NewRecorder(app.Ledger, app.Snapshots, logger.Named("equity")),
		Notifier: app.Notifier,
		State:    app.State,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return app, nil
}

// senders returns the Telegram sender when it is configured, the log sender otherwise.
func senders(cfg config.NotifyConfig, logger *zap.Logger) []notify.Sender {
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		return []notify.Sender{notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID)}
	}
	return []notify.Sender{notify.NewLogSender(logger.Named("summary"))}
}

// Close waits for pending notifications and closes every store.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.Notifier.Wait()

	var err error
	if a.Snapshots != nil {
		err = multierr.Append(err, a.Snapshots.Close())
	}
	if a.Journal != nil {
		err = multierr.Append(err, a.Journal.Close())
	}
	if a.Ledger != nil {
		err = multierr.Append(err, a.Ledger.Close())
	}
	return err
}
