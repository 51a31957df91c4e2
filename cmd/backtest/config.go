package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/middleware"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const envPrefix = "BARSIM"

const (
	SourceSynthetic = "synthetic"
	SourceCSV       = "csv"
	SourceBinary    = "binary"
	SourceDuckDB    = "duckdb"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type DataConfig struct {
	Source       string `mapstructure:"source"`
	Path         string `mapstructure:"path"`
	Symbol       string `mapstructure:"symbol"`
	Frequency    string `mapstructure:"frequency"`
	Resample     string `mapstructure:"resample"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
	BusinessDays bool   `mapstructure:"business_days"`
}

type SyntheticConfig struct {
	Seed  int64   `mapstructure:"seed"`
	Days  int64   `mapstructure:"days"`
	Mu    float64 `mapstructure:"mu"`
	Sigma float64 `mapstructure:"sigma"`
}

type ExchangeConfig struct {
	Cash          string `mapstructure:"cash"`
	Commission    string `mapstructure:"commission"`
	Slippage      bool   `mapstructure:"slippage"`
	Adjusted      bool   `mapstructure:"adjusted"`
	AllowFraction bool   `mapstructure:"allow_fractions"`
}

type StrategyConfig struct {
	Quantity    string `mapstructure:"quantity"`
	Fast        uint   `mapstructure:"fast"`
	Slow        uint   `mapstructure:"slow"`
	AtrPeriod   int    `mapstructure:"atr_period"`
	AtrMultiple string `mapstructure:"atr_multiple"`

	RiskPercent     string `mapstructure:"risk_percent"`
	KellyTrades     int    `mapstructure:"kelly_trades"`
	DrawdownScaling bool   `mapstructure:"drawdown_scaling"`
	MaxExposure     string `mapstructure:"max_exposure"`
}

type ExportConfig struct {
	DuckDB   string `mapstructure:"duckdb"`
	Postgres string `mapstructure:"postgres"`
}

type PushoverConfig struct {
	User   string `mapstructure:"user"`
	Token  string `mapstructure:"token"`
	Device string `mapstructure:"device"`
}

type Config struct {
	LogLevel   string   `mapstructure:"log_level"`
	Production bool     `mapstructure:"production"`
	Monitor    []string `mapstructure:"monitor"`
	Listen     string   `mapstructure:"listen"`

	Data      DataConfig      `mapstructure:"data"`
	Synthetic SyntheticConfig `mapstructure:"synthetic"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Export    ExportConfig    `mapstructure:"export"`
	Pushover  PushoverConfig  `mapstructure:"pushover"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("production", false)
	v.SetDefault("monitor", []string{"positions_closed"})
	v.SetDefault("listen", "")

	v.SetDefault("data.source", SourceSynthetic)
	v.SetDefault("data.path", "")
	v.SetDefault("data.symbol", "SYN")
	v.SetDefault("data.frequency", common.FrequencyDay.String())
	v.SetDefault("data.resample", "")
	v.SetDefault("data.from", "")
	v.SetDefault("data.to", "")
	v.SetDefault("data.business_days", false)

	v.SetDefault("synthetic.seed", 1)
	v.SetDefault("synthetic.days", 365)
	v.SetDefault("synthetic.mu", 0.05)
	v.SetDefault("synthetic.sigma", 0.2)

	v.SetDefault("exchange.cash", "100000")
	v.SetDefault("exchange.commission", "0")
	v.SetDefault("exchange.slippage", false)
	v.SetDefault("exchange.adjusted", false)
	v.SetDefault("exchange.allow_fractions", false)

	v.SetDefault("strategy.quantity", "100")
	v.SetDefault("strategy.fast", 10)
	v.SetDefault("strategy.slow", 30)
	v.SetDefault("strategy.atr_period", 0)
	v.SetDefault("strategy.atr_multiple", "2")
	v.SetDefault("strategy.risk_percent", "0")
	v.SetDefault("strategy.kelly_trades", 0)
	v.SetDefault("strategy.drawdown_scaling", false)
	v.SetDefault("strategy.max_exposure", "100")

	v.SetDefault("export.duckdb", "")
	v.SetDefault("export.postgres", "")

	v.SetDefault("pushover.user", "")
	v.SetDefault("pushover.token", "")
	v.SetDefault("pushover.device", "")
}

// newViper layers defaults, an optional config file and BARSIM_* variables.
// Nested keys map to variables with dots replaced, e.g. BARSIM_DATA_SOURCE.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

func decodeConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Data.Source {
	case SourceSynthetic:
	case SourceCSV, SourceBinary, SourceDuckDB:
		if c.Data.Path == "" {
			return fmt.Errorf("%w: data.path is required for source %s", ErrInvalidConfig, c.Data.Source)
		}
	default:
		return fmt.Errorf("%w: unknown data source %q", ErrInvalidConfig, c.Data.Source)
	}

	if c.Data.Symbol == "" {
		return fmt.Errorf("%w: data.symbol is required", ErrInvalidConfig)
	}
	if c.Strategy.Fast == 0 || c.Strategy.Fast >= c.Strategy.Slow {
		return fmt.Errorf("%w: strategy.fast must be positive and below strategy.slow", ErrInvalidConfig)
	}
	if risk, err := fixed.Parse(c.Strategy.RiskPercent); err == nil && risk.IsPos() && c.Strategy.AtrPeriod <= 0 {
		return fmt.Errorf("%w: strategy.risk_percent needs strategy.atr_period", ErrInvalidConfig)
	}
	if _, err := c.Frequency(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, _, err := c.DateRange(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.MonitorFlags(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	for key, value := range map[string]string{
		"exchange.cash":         c.Exchange.Cash,
		"exchange.commission":   c.Exchange.Commission,
		"strategy.quantity":     c.Strategy.Quantity,
		"strategy.atr_multiple": c.Strategy.AtrMultiple,
		"strategy.risk_percent": c.Strategy.RiskPercent,
		"strategy.max_exposure": c.Strategy.MaxExposure,
	} {
		if _, err := fixed.Parse(value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}
	}
	return nil
}

// Frequency returns the bar frequency the engine runs on, the resample target if set.
func (c Config) Frequency() (common.Frequency, error) {
	if c.Data.Resample != "" {
		return common.ParseFrequency(c.Data.Resample)
	}
	return common.ParseFrequency(c.Data.Frequency)
}

func (c Config) SourceFrequency() common.Frequency {
	f, err := common.ParseFrequency(c.Data.Frequency)
	if err != nil {
		return common.FrequencyDay
	}
	return f
}

func (c Config) DateRange() (from, to time.Time, err error) {
	if from, err = parseDate(c.Data.From); err != nil {
		return
	}
	to, err = parseDate(c.Data.To)
	return
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.DateOnly, time.DateTime, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q", s)
}

var monitorFlagNames = map[string]middleware.MonitorFlags{
	"none":             middleware.MonitorNone,
	"all":              middleware.MonitorAll,
	"bars":             middleware.MonitorBars,
	"orders":           middleware.MonitorOrders,
	"fills":            middleware.MonitorFills,
	"cancellations":    middleware.MonitorCancellations,
	"positions_closed": middleware.MonitorPositionsClosed,
	"equity":           middleware.MonitorEquity,
}

func (c Config) MonitorFlags() (middleware.MonitorFlags, error) {
	flags := middleware.MonitorNone
	for _, name := range c.Monitor {
		for _, part := range strings.Split(name, ",") {
			part = strings.TrimSpace(strings.ToLower(part))
			if part == "" {
				continue
			}
			flag, ok := monitorFlagNames[part]
			if !ok {
				return 0, fmt.Errorf("unknown monitor flag %q", part)
			}
			flags |= flag
		}
	}
	return flags, nil
}
