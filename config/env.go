package config

import (
	"os"
	"strconv"
	"time"
)

const envPrefix = "PAPERTRADER_"

func applyEnvOverrides(c *configTmp) {
	setFloat64(&c.Account.InitialCapital, "INITIAL_CAPITAL")
	setStr(&c.Account.Currency, "CURRENCY")
	setStr(&c.Account.Timezone, "TIMEZONE")

	setFloat64(&c.Risk.MaxPositionPct, "MAX_POSITION_PCT")
	setFloat64(&c.Risk.MaxDrawdownPct, "MAX_DRAWDOWN_PCT")
	setFloat64(&c.Risk.MinOrderNotional, "MIN_ORDER_NOTIONAL")
	setInt64(&c.Risk.LotSize, "LOT_SIZE")

	setFloat64(&c.Stops.ATRMultiplier, "STOP_ATR_MULTIPLIER")
	setInt(&c.Stops.ATRPeriod, "ATR_PERIOD")
	setFloat64(&c.Stops.TrailingActivationPct, "TRAILING_ACTIVATION_PCT")
	setFloat64(&c.Stops.TrailingStopPct, "TRAILING_STOP_PCT")
	setFloat64(&c.Stops.TakeProfitPct, "TAKE_PROFIT_PCT")
	setInt(&c.Stops.HistoryWindow, "HISTORY_WINDOW")

	setStr(&c.Storage.LedgerPath, "LEDGER_PATH")
	setStr(&c.Storage.SnapshotWALDir, "SNAPSHOT_WAL_DIR")
	setStr(&c.Storage.OrderJournalDir, "ORDER_JOURNAL_DIR")
	setStr(&c.Storage.CycleStatePath, "CYCLE_STATE_PATH")

	setStr(&c.Prices.Dir, "PRICES_DIR")
	setInt(&c.Prices.MaxRetries, "PRICES_MAX_RETRIES")
	setDuration(&c.Prices.InitialInterval, "PRICES_INITIAL_INTERVAL")
	setDuration(&c.Prices.MaxInterval, "PRICES_MAX_INTERVAL")

	setStr(&c.Signals.File, "SIGNALS_FILE")

	setStr(&c.Notify.TelegramToken, "TELEGRAM_TOKEN")
	setStr(&c.Notify.TelegramChatID, "TELEGRAM_CHAT_ID")
	setDuration(&c.Notify.Timeout, "NOTIFY_TIMEOUT")

	setDuration(&c.PollInterval, "POLL_INTERVAL")
	setStr(&c.LogLevel, "LOG_LEVEL")
}

func lookup(key string) string {
	return os.Getenv(envPrefix + key)
}

func setStr(dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := lookup(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
