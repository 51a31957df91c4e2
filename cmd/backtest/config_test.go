package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/middleware"
)

func TestConfig_Defaults(t *testing.T) {
	v, err := newViper("")
	require.NoError(t, err)

	cfg, err := decodeConfig(v)
	require.NoError(t, err)

	assert.Equal(t, SourceSynthetic, cfg.Data.Source)
	assert.Equal(t, "SYN", cfg.Data.Symbol)
	assert.Equal(t, uint(10), cfg.Strategy.Fast)
	assert.Equal(t, uint(30), cfg.Strategy.Slow)
	assert.Equal(t, int64(365), cfg.Synthetic.Days)

	freq, err := cfg.Frequency()
	require.NoError(t, err)
	assert.Equal(t, common.FrequencyDay, freq)

	flags, err := cfg.MonitorFlags()
	require.NoError(t, err)
	assert.Equal(t, middleware.MonitorNone|middleware.MonitorPositionsClosed, flags)
}

func TestConfig_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
monitor: [orders, fills]
data:
  source: csv
  path: /tmp/aapl.csv
  symbol: AAPL
  from: "2024-01-02"
  frequency: hour
  resample: day
strategy:
  fast: 5
  slow: 20
`), 0o600))

	t.Setenv("BARSIM_DATA_SYMBOL", "MSFT")
	t.Setenv("BARSIM_EXCHANGE_CASH", "2500.50")

	v, err := newViper(path)
	require.NoError(t, err)
	cfg, err := decodeConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, SourceCSV, cfg.Data.Source)
	assert.Equal(t, "MSFT", cfg.Data.Symbol)
	assert.Equal(t, "2500.50", cfg.Exchange.Cash)
	assert.Equal(t, uint(5), cfg.Strategy.Fast)

	from, to, err := cfg.DateRange()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), from)
	assert.True(t, to.IsZero())

	freq, err := cfg.Frequency()
	require.NoError(t, err)
	assert.Equal(t, common.FrequencyDay, freq)
	assert.Equal(t, common.FrequencyHour, cfg.SourceFrequency())

	flags, err := cfg.MonitorFlags()
	require.NoError(t, err)
	assert.Equal(t, middleware.MonitorNone|middleware.MonitorOrders|middleware.MonitorFills, flags)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  any
		errMsg string
	}{
		{name: "unknown source", key: "data.source", value: "parquet", errMsg: "unknown data source"},
		{name: "missing path", key: "data.source", value: SourceBinary, errMsg: "data.path is required"},
		{name: "periods", key: "strategy.fast", value: 40, errMsg: "strategy.fast"},
		{name: "frequency", key: "data.frequency", value: "fortnight", errMsg: "unknown frequency"},
		{name: "date", key: "data.to", value: "yesterday", errMsg: "unable to parse date"},
		{name: "monitor", key: "monitor", value: []string{"ticks"}, errMsg: "unknown monitor flag"},
		{name: "cash", key: "exchange.cash", value: "lots", errMsg: "exchange.cash"},
		{name: "risk without atr", key: "strategy.risk_percent", value: "1", errMsg: "strategy.atr_period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := newViper("")
			require.NoError(t, err)
			v.Set(tt.key, tt.value)

			_, err = decodeConfig(v)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestConfig_MissingFile(t *testing.T) {
	_, err := newViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBacktest_Synthetic(t *testing.T) {
	v, err := newViper("")
	require.NoError(t, err)
	v.Set("synthetic.days", 120)
	v.Set("strategy.fast", 3)
	v.Set("strategy.slow", 8)
	v.Set("strategy.atr_period", 5)
	v.Set("strategy.risk_percent", "2")
	v.Set("strategy.drawdown_scaling", true)
	v.Set("strategy.kelly_trades", 3)
	v.Set("data.business_days", true)
	v.Set("export.duckdb", filepath.Join(t.TempDir(), "trades.duckdb"))

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.NoError(t, backtest(context.Background(), zap.NewNop(), cfg))
}

func TestLoadBars_Resample(t *testing.T) {
	v, err := newViper("")
	require.NoError(t, err)
	v.Set("synthetic.days", 3)
	v.Set("data.frequency", "hour")
	v.Set("data.resample", "day")

	cfg, err := decodeConfig(v)
	require.NoError(t, err)

	rows, err := loadBars(context.Background(), zap.NewNop(), cfg)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), rows[1].Time)
	assert.Equal(t, common.FrequencyDay, rows[1].Value.Frequency)
}
