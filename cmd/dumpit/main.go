package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/internal/dbg"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/data/duckdb"
	"github.com/peter-kozarec/barsim/pkg/datasource/historical"
)

const dumpitComponentName = "cmd.dumpit"

var ErrNoOutput = errors.New("neither a binary output nor a duckdb database was given")

type dumpConfig struct {
	inputs    []string
	symbol    string
	output    string
	duckdb    string
	frequency common.Frequency
	location  *time.Location
}

func main() {
	app := cli.NewApp()
	app.Name = "dumpit"
	app.Usage = "convert yahoo style csv bars to the binary bar format or a duckdb table"
	app.ArgsUsage = "<csv file>..."
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "symbol", Usage: "symbol of the bars", Required: true},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "binary output file, defaults to <symbol>.bin"},
		&cli.StringFlag{Name: "duckdb", Usage: "also store the bars in the <symbol>_bars table of this database"},
		&cli.StringFlag{Name: "frequency", Value: common.FrequencyDay.String(), Usage: "frequency of the bars"},
		&cli.StringFlag{Name: "timezone", Value: "UTC", Usage: "location of timestamps without an offset"},
		&cli.BoolFlag{Name: "no-binary", Usage: "skip the binary output"},
	}
	app.Action = func(c *cli.Context) error {
		logger := dbg.NewDevLogger()
		defer func(logger *zap.Logger) {
			_ = logger.Sync()
		}(logger)

		cfg, err := configFromContext(c)
		if err != nil {
			return err
		}
		return dumpAll(c.Context, logger, cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func configFromContext(c *cli.Context) (dumpConfig, error) {
	frequency, err := common.ParseFrequency(c.String("frequency"))
	if err != nil {
		return dumpConfig{}, err
	}
	loc, err := time.LoadLocation(c.String("timezone"))
	if err != nil {
		return dumpConfig{}, fmt.Errorf("unknown timezone: %w", err)
	}
	if c.NArg() == 0 {
		return dumpConfig{}, errors.New("at least one csv file is required")
	}

	cfg := dumpConfig{
		inputs:    c.Args().Slice(),
		symbol:    c.String("symbol"),
		output:    c.String("output"),
		duckdb:    c.String("duckdb"),
		frequency: frequency,
		location:  loc,
	}
	switch {
	case c.Bool("no-binary"):
		cfg.output = ""
	case cfg.output == "":
		cfg.output = strings.ToUpper(cfg.symbol) + ".bin"
	}
	return cfg, nil
}

// dumpAll merges every input file, in time order, into the configured outputs.
func dumpAll(ctx context.Context, logger *zap.Logger, cfg dumpConfig) error {
	if cfg.output == "" && cfg.duckdb == "" {
		return ErrNoOutput
	}

	rows, err := readInputs(logger, cfg)
	if err != nil {
		return err
	}

	if cfg.output != "" {
		if err := writeBinary(cfg.output, rows); err != nil {
			return err
		}
		logger.Info("binary file written",
			zap.String("component", dumpitComponentName),
			zap.String("file", cfg.output),
			zap.Int("bars", len(rows)))
	}

	if cfg.duckdb != "" {
		w := duckdb.NewWriter(cfg.duckdb)
		if err := w.Connect(ctx); err != nil {
			return err
		}
		defer w.Close()

		if err := w.WriteBars(ctx, cfg.symbol, rows); err != nil {
			return err
		}
		logger.Info("duckdb table written",
			zap.String("component", dumpitComponentName),
			zap.String("symbol", cfg.symbol),
			zap.Int("bars", len(rows)))
	}
	return nil
}

func readInputs(logger *zap.Logger, cfg dumpConfig) ([]common.Row[common.Bar], error) {
	var rows []common.Row[common.Bar]
	for _, input := range cfg.inputs {
		fileRows, err := readCSVFile(input, cfg.frequency, cfg.location)
		if err != nil {
			return nil, err
		}
		logger.Info("csv file read",
			zap.String("component", dumpitComponentName),
			zap.String("file", input),
			zap.Int("bars", len(fileRows)))
		rows = append(rows, fileRows...)
	}

	for idx := 1; idx < len(rows); idx++ {
		if !rows[idx].Time.After(rows[idx-1].Time) {
			return nil, fmt.Errorf("%w: input files overlap at %s", historical.ErrDuplicateTime, rows[idx].Time)
		}
	}
	return rows, nil
}

func readCSVFile(path string, frequency common.Frequency, loc *time.Location) ([]common.Row[common.Bar], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	rows, err := historical.ReadCSV(f, frequency, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func writeBinary(path string, rows []common.Row[common.Bar]) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}(f)

	return historical.WriteBars(f, rows)
}
