// Package config loads the papertrader configuration from YAML, .env and
// PAPERTRADER_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the typed configuration passed to every component constructor.
type Config struct {
	Account      AccountConfig
	Risk         RiskConfig
	Stops        StopConfig
	Storage      StorageConfig
	Prices       PriceConfig
	Signals      SignalConfig
	Notify       NotifyConfig
	PollInterval time.Duration
	LogLevel     string
}

// AccountConfig describes the simulated account.
type AccountConfig struct {
	InitialCapital decimal.Decimal
	Currency       string
	Location       *time.Location
}

// RiskConfig drives position sizing and the drawdown circuit breaker.
type RiskConfig struct {
	MaxPositionPct   decimal.Decimal
	MaxDrawdownPct   decimal.Decimal
	MinOrderNotional decimal.Decimal
	LotSize          int64
	// LotSizes maps a ticker suffix such as ".T" to its market lot size.
	LotSizes map[string]int64
}

// LotSizeFor returns the lot size of ticker. The longest matching suffix wins.
func (r RiskConfig) LotSizeFor(ticker string) int64 {
	suffixes := make([]string, 0, len(r.LotSizes))
	for s := range r.LotSizes {
		suffixes = append(suffixes, s)
	}
	sort.Slice(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })

	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(ticker, s) {
			return r.LotSizes[s]
		}
	}
	if r.LotSize < 1 {
		return 1
	}
	return r.LotSize
}

// StopConfig drives the dynamic stop manager.
type StopConfig struct {
	ATRMultiplier         decimal.Decimal
	ATRPeriod             int
	TrailingActivationPct decimal.Decimal
	TrailingStopPct       decimal.Decimal
	TakeProfitPct         decimal.Decimal
	HistoryWindow         int
}

// StorageConfig locates the ledger database and WAL directories.
type StorageConfig struct {
	LedgerPath      string
	SnapshotWALDir  string
	OrderJournalDir string
	CycleStatePath  string
}

// PriceConfig configures the file price source and its retry policy.
type PriceConfig struct {
	Dir             string
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// SignalConfig locates externally generated signals.
type SignalConfig struct {
	File string
}

// NotifyConfig configures cycle summary delivery.
type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID string
	Timeout        time.Duration
}

type configTmp struct {
	Account      accountTmp    `yaml:"account"`
	Risk         riskTmp       `yaml:"risk"`
	Stops        stopsTmp      `yaml:"stops"`
	Storage      storageTmp    `yaml:"storage"`
	Prices       pricesTmp     `yaml:"prices"`
	Signals      signalsTmp    `yaml:"signals"`
	Notify       notifyTmp     `yaml:"notify"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogLevel     string        `yaml:"log_level"`
}

type accountTmp struct {
	InitialCapital float64 `yaml:"initial_capital"`
	Currency       string  `yaml:"currency"`
	Timezone       string  `yaml:"timezone"`
}

type riskTmp struct {
	MaxPositionPct   float64          `yaml:"max_position_pct"`
	MaxDrawdownPct   float64          `yaml:"max_drawdown_pct"`
	MinOrderNotional float64          `yaml:"min_order_notional"`
	LotSize          int64            `yaml:"lot_size"`
	LotSizes         map[string]int64 `yaml:"lot_sizes"`
}

type stopsTmp struct {
	ATRMultiplier         float64 `yaml:"stop_atr_multiplier"`
	ATRPeriod             int     `yaml:"atr_period"`
	TrailingActivationPct float64 `yaml:"trailing_activation_pct"`
	TrailingStopPct       float64 `yaml:"trailing_stop_pct"`
	TakeProfitPct         float64 `yaml:"take_profit_pct"`
	HistoryWindow         int     `yaml:"history_window"`
}

type storageTmp struct {
	LedgerPath      string `yaml:"ledger_path"`
	SnapshotWALDir  string `yaml:"snapshot_wal_dir"`
	OrderJournalDir string `yaml:"order_journal_dir"`
	CycleStatePath  string `yaml:"cycle_state_path"`
}

type pricesTmp struct {
	Dir             string        `yaml:"dir"`
	MaxRetries      int           `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

type signalsTmp struct {
	File string `yaml:"file"`
}

type notifyTmp struct {
	TelegramToken  string        `yaml:"telegram_token"`
	TelegramChatID string        `yaml:"telegram_chat_id"`
	Timeout        time.Duration `yaml:"timeout"`
}

func defaultTmp() configTmp {
	return configTmp{
		Account: accountTmp{
			InitialCapital: 1000000,
			Currency:       "JPY",
			Timezone:       "Asia/Tokyo",
		},
		Risk: riskTmp{
			MaxPositionPct:   0.20,
			MaxDrawdownPct:   0.15,
			MinOrderNotional: 0,
			LotSize:          1,
			LotSizes:         map[string]int64{".T": 100},
		},
		Stops: stopsTmp{
			ATRMultiplier:         2,
			ATRPeriod:             14,
			TrailingActivationPct: 0.03,
			TrailingStopPct:       0.05,
			TakeProfitPct:         0.10,
			HistoryWindow:         30,
		},
		Storage: storageTmp{
			LedgerPath:      "./data/ledger.db",
			SnapshotWALDir:  "./wal/equity",
			OrderJournalDir: "./wal/orders",
			CycleStatePath:  "./data/last_cycle.json",
		},
		Prices: pricesTmp{
			Dir:             "./prices",
			MaxRetries:      2,
			InitialInterval: 2 * time.Second,
			MaxInterval:     10 * time.Second,
		},
		Signals: signalsTmp{File: "./signals.yaml"},
		Notify:  notifyTmp{Timeout: 10 * time.Second},

		PollInterval: 24 * time.Hour,
		LogLevel:     "info",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := defaultTmp().build()
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Load reads the YAML file at path (optional), then .env and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	tmp := defaultTmp()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// a missing .env file is not an error
	_ = godotenv.Load()
	applyEnvOverrides(&tmp)

	cfg, err := tmp.build()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c configTmp) build() (*Config, error) {
	loc, err := time.LoadLocation(c.Account.Timezone)
	if err != nil {
		return nil, fmt.Errorf("incorrect 'timezone' param in config: %s, error: %w", c.Account.Timezone, err)
	}

	lotSizes := make(map[string]int64, len(c.Risk.LotSizes))
	for suffix, size := range c.Risk.LotSizes {
		lotSizes[suffix] = size
	}

	return &Config{
		Account: AccountConfig{
			InitialCapital: decimal.NewFromFloat(c.Account.InitialCapital),
			Currency:       strings.ToUpper(c.Account.Currency),
			Location:       loc,
		},
		Risk: RiskConfig{
			MaxPositionPct:   decimal.NewFromFloat(c.Risk.MaxPositionPct),
			MaxDrawdownPct:   decimal.NewFromFloat(c.Risk.MaxDrawdownPct),
			MinOrderNotional: decimal.NewFromFloat(c.Risk.MinOrderNotional),
			LotSize:          c.Risk.LotSize,
			LotSizes:         lotSizes,
		},
		Stops: StopConfig{
			ATRMultiplier:         decimal.NewFromFloat(c.Stops.ATRMultiplier),
			ATRPeriod:             c.Stops.ATRPeriod,
			TrailingActivationPct: decimal.NewFromFloat(c.Stops.TrailingActivationPct),
			TrailingStopPct:       decimal.NewFromFloat(c.Stops.TrailingStopPct),
			TakeProfitPct:         decimal.NewFromFloat(c.Stops.TakeProfitPct),
			HistoryWindow:         c.Stops.HistoryWindow,
		},
		Storage: StorageConfig{
			LedgerPath:      c.Storage.LedgerPath,
			SnapshotWALDir:  c.Storage.SnapshotWALDir,
			OrderJournalDir: c.Storage.OrderJournalDir,
			CycleStatePath:  c.Storage.CycleStatePath,
		},
		Prices: PriceConfig{
			Dir:             c.Prices.Dir,
			MaxRetries:      c.Prices.MaxRetries,
			InitialInterval: c.Prices.InitialInterval,
			MaxInterval:     c.Prices.MaxInterval,
		},
		Signals: SignalConfig{File: c.Signals.File},
		Notify: NotifyConfig{
			TelegramToken:  c.Notify.TelegramToken,
			TelegramChatID: c.Notify.TelegramChatID,
			Timeout:        c.Notify.Timeout,
		},
		PollInterval: c.PollInterval,
		LogLevel:     c.LogLevel,
	}, nil
}

// Validate checks ranges of every numeric parameter.
func (c *Config) Validate() error {
	one := decimal.NewFromInt(1)
	fraction := func(name string, v decimal.Decimal) error {
		if !v.IsPositive() || v.GreaterThan(one) {
			return fmt.Errorf("incorrect '%s' param in config: must be in (0, 1], got %s", name, v)
		}
		return nil
	}

	if !c.Account.InitialCapital.IsPositive() {
		return fmt.Errorf("incorrect 'initial_capital' param in config: must be greater than zero, got %s", c.Account.InitialCapital)
	}
	if c.Account.Currency == "" {
		return fmt.Errorf("incorrect 'currency' param in config: must not be empty")
	}
	for name, v := range map[string]decimal.Decimal{
		"max_position_pct":        c.Risk.MaxPositionPct,
		"max_drawdown_pct":        c.Risk.MaxDrawdownPct,
		"trailing_activation_pct": c.Stops.TrailingActivationPct,
		"trailing_stop_pct":       c.Stops.TrailingStopPct,
		"take_profit_pct":         c.Stops.TakeProfitPct,
	} {
		if err := fraction(name, v); err != nil {
			return err
		}
	}
	if c.Risk.MinOrderNotional.IsNegative() {
		return fmt.Errorf("incorrect 'min_order_notional' param in config: must not be negative, got %s", c.Risk.MinOrderNotional)
	}
	if c.Risk.LotSize < 1 {
		return fmt.Errorf("incorrect 'lot_size' param in config: must be at least 1, got %d", c.Risk.LotSize)
	}
	for suffix, size := range c.Risk.LotSizes {
		if size < 1 {
			return fmt.Errorf("incorrect 'lot_sizes' param in config: lot size for %q must be at least 1, got %d", suffix, size)
		}
	}
	if !c.Stops.ATRMultiplier.IsPositive() {
		return fmt.Errorf("incorrect 'stop_atr_multiplier' param in config: must be greater than zero, got %s", c.Stops.ATRMultiplier)
	}
	if c.Stops.ATRPeriod < 1 {
		return fmt.Errorf("incorrect 'atr_period' param in config: must be at least 1, got %d", c.Stops.ATRPeriod)
	}
	if c.Stops.HistoryWindow <= c.Stops.ATRPeriod {
		return fmt.Errorf("incorrect 'history_window' param in config: must exceed atr_period %d, got %d",
			c.Stops.ATRPeriod, c.Stops.HistoryWindow)
	}
	for name, v := range map[string]string{
		"ledger_path":       c.Storage.LedgerPath,
		"snapshot_wal_dir":  c.Storage.SnapshotWALDir,
		"order_journal_dir": c.Storage.OrderJournalDir,
		"cycle_state_path":  c.Storage.CycleStatePath,
	} {
		if v == "" {
			return fmt.Errorf("incorrect '%s' param in config: must not be empty", name)
		}
	}
	if c.Prices.MaxRetries < 0 {
		return fmt.Errorf("incorrect 'max_retries' param in config: must not be negative, got %d", c.Prices.MaxRetries)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("incorrect 'poll_interval' param in config: must be positive, got %s", c.PollInterval)
	}

	return nil
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.Notify.TelegramToken != "" {
		out.Notify.TelegramToken = "***"
	}
	return out
}
