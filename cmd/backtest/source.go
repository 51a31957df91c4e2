package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/data/duckdb"
	"github.com/peter-kozarec/barsim/pkg/datasource/historical"
	"github.com/peter-kozarec/barsim/pkg/datasource/synthetic"
	"github.com/peter-kozarec/barsim/pkg/simulation"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var defaultSyntheticStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// loadBars reads the configured source and resamples it when requested.
func loadBars(ctx context.Context, logger *zap.Logger, cfg Config) ([]common.Row[common.Bar], error) {
	from, to, err := cfg.DateRange()
	if err != nil {
		return nil, err
	}
	frequency := cfg.SourceFrequency()

	var rows []common.Row[common.Bar]
	switch cfg.Data.Source {
	case SourceSynthetic:
		rows, err = syntheticBars(cfg, from, frequency)
	case SourceCSV:
		rows, err = csvBars(cfg.Data.Path, frequency)
	case SourceBinary:
		rows, err = binaryBars(cfg.Data.Path, frequency, from, to)
	case SourceDuckDB:
		rows, err = duckdbBars(ctx, cfg.Data.Path, cfg.Data.Symbol, frequency, from, to)
	default:
		err = fmt.Errorf("%w: unknown data source %q", ErrInvalidConfig, cfg.Data.Source)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("bars loaded",
		zap.String("source", cfg.Data.Source),
		zap.String("symbol", cfg.Data.Symbol),
		zap.Stringer("frequency", frequency),
		zap.Int("count", len(rows)))

	if cfg.Data.Resample != "" {
		target, err := common.ParseFrequency(cfg.Data.Resample)
		if err != nil {
			return nil, err
		}
		if target != frequency {
			rows = simulation.Resample(rows, target)
			logger.Info("bars resampled",
				zap.Stringer("frequency", target),
				zap.Int("count", len(rows)))
		}
	}
	return rows, nil
}

func syntheticBars(cfg Config, start time.Time, frequency common.Frequency) ([]common.Row[common.Bar], error) {
	if start.IsZero() {
		start = defaultSyntheticStart
	}
	rng := rand.New(rand.NewSource(cfg.Synthetic.Seed))

	if frequency == common.FrequencyDay {
		return synthetic.NewStockBarGenerator(rng, start, cfg.Synthetic.Days, cfg.Synthetic.Mu, cfg.Synthetic.Sigma).ReadAll()
	}

	if frequency.Duration() == 0 {
		return nil, fmt.Errorf("%w: synthetic bars need a fixed frequency, got %s", ErrInvalidConfig, frequency)
	}

	// Days of bars at the finer frequency, with the year as time unit.
	steps := cfg.Synthetic.Days * int64(24*time.Hour/frequency.Duration())
	deltaT := fixed.FromInt64(int64(frequency.Duration()), 0).Div(fixed.FromInt64(int64(365*24*time.Hour), 0))

	g := synthetic.NewBarGenerator(rng, start, fixed.FromInt(100, 0),
		fixed.FromFloat64(cfg.Synthetic.Mu), fixed.FromFloat64(cfg.Synthetic.Sigma),
		deltaT, frequency, steps)
	g.SetPriceDigits(4)
	g.SetVolumeDigits(0)
	return g.ReadAll()
}

func csvBars(path string, frequency common.Frequency) ([]common.Row[common.Bar], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return historical.ReadCSV(f, frequency, time.UTC)
}

func binaryBars(path string, frequency common.Frequency, from, to time.Time) ([]common.Row[common.Bar], error) {
	source := historical.NewSource[historical.BinaryBar](path)
	if err := source.Open(); err != nil {
		return nil, err
	}
	defer source.Close()

	return historical.NewBarReader(source, frequency, from, to).ReadAll()
}

func duckdbBars(ctx context.Context, dsn, symbol string, frequency common.Frequency, from, to time.Time) ([]common.Row[common.Bar], error) {
	r := duckdb.NewReader(dsn)
	if err := r.Connect(); err != nil {
		return nil, err
	}
	defer r.Close()

	return r.LoadBars(ctx, symbol, from, to, frequency)
}
