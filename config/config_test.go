package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Account.InitialCapital.Equal(decimal.NewFromInt(1000000)))
	assert.Equal(t, "JPY", cfg.Account.Currency)
	assert.Equal(t, "Asia/Tokyo", cfg.Account.Location.String())
	assert.Equal(t, "0.2", cfg.Risk.MaxPositionPct.String())
	assert.Equal(t, "0.15", cfg.Risk.MaxDrawdownPct.String())
	assert.Equal(t, "2", cfg.Stops.ATRMultiplier.String())
	assert.Equal(t, "0.1", cfg.Stops.TakeProfitPct.String())
	assert.Equal(t, 14, cfg.Stops.ATRPeriod)
	assert.Equal(t, 2, cfg.Prices.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Prices.InitialInterval)
	assert.Equal(t, 10*time.Second, cfg.Prices.MaxInterval)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
account:
  initial_capital: 5000000
  currency: usd
  timezone: UTC
risk:
  max_position_pct: 0.1
  lot_size: 10
stops:
  take_profit_pct: 0.2
storage:
  ledger_path: /tmp/ledger.db
poll_interval: 1h
`)
	t.Setenv("PAPERTRADER_MAX_DRAWDOWN_PCT", "0.25")
	t.Setenv("PAPERTRADER_TELEGRAM_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Account.InitialCapital.Equal(decimal.NewFromInt(5000000)))
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, "0.1", cfg.Risk.MaxPositionPct.String())
	assert.Equal(t, "0.25", cfg.Risk.MaxDrawdownPct.String())
	assert.Equal(t, int64(10), cfg.Risk.LotSize)
	assert.Equal(t, "0.2", cfg.Stops.TakeProfitPct.String())
	assert.Equal(t, "0.03", cfg.Stops.TrailingActivationPct.String(), "unset keys keep defaults")
	assert.Equal(t, "/tmp/ledger.db", cfg.Storage.LedgerPath)
	assert.Equal(t, time.Hour, cfg.PollInterval)

	assert.Equal(t, "secret", cfg.Notify.TelegramToken)
	assert.Equal(t, "***", cfg.Redacted().Notify.TelegramToken)
	assert.Equal(t, "secret", cfg.Notify.TelegramToken, "redaction must not touch the original")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{name: "position pct above one", content: "risk:\n  max_position_pct: 1.5\n", errPart: "max_position_pct"},
		{name: "zero capital", content: "account:\n  initial_capital: 0\n", errPart: "initial_capital"},
		{name: "lot size zero", content: "risk:\n  lot_size: 0\n", errPart: "lot_size"},
		{name: "bad timezone", content: "account:\n  timezone: Mars/Olympus\n", errPart: "timezone"},
		{name: "short history", content: "stops:\n  history_window: 10\n", errPart: "history_window"},
		{name: "malformed yaml", content: "risk: [", errPart: "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestRiskConfig_LotSizeFor(t *testing.T) {
	r := RiskConfig{LotSize: 1, LotSizes: map[string]int64{".T": 100, ".HK": 500}}

	assert.Equal(t, int64(100), r.LotSizeFor("7203.T"))
	assert.Equal(t, int64(500), r.LotSizeFor("0700.HK"))
	assert.Equal(t, int64(1), r.LotSizeFor("AAPL"))
	assert.Equal(t, int64(1), RiskConfig{}.LotSizeFor("AAPL"))
}
