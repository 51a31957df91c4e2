package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/examples/strategy"
	"github.com/peter-kozarec/barsim/internal/dbg"
	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/data/db/psql"
	"github.com/peter-kozarec/barsim/pkg/data/duckdb"
	"github.com/peter-kozarec/barsim/pkg/datasource/synthetic"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/exchange/sandbox"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/middleware"
	"github.com/peter-kozarec/barsim/pkg/risk"
	"github.com/peter-kozarec/barsim/pkg/simulation"
	bstrategy "github.com/peter-kozarec/barsim/pkg/strategy"
	"github.com/peter-kozarec/barsim/pkg/utility"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const (
	Version = "0.1.0"

	backtestComponentName = "cmd.backtest"
)

// flagKeys maps command line flags to configuration keys. A flag set on the
// command line wins over the config file and the environment.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"monitor":       "monitor",
	"listen":        "listen",
	"source":        "data.source",
	"path":          "data.path",
	"symbol":        "data.symbol",
	"frequency":     "data.frequency",
	"resample":      "data.resample",
	"from":          "data.from",
	"to":            "data.to",
	"business-days": "data.business_days",
	"seed":          "synthetic.seed",
	"days":          "synthetic.days",
	"cash":          "exchange.cash",
	"commission":    "exchange.commission",
	"slippage":      "exchange.slippage",
	"adjusted":      "exchange.adjusted",
	"quantity":      "strategy.quantity",
	"fast":          "strategy.fast",
	"slow":          "strategy.slow",
	"atr-period":    "strategy.atr_period",
	"risk-percent":  "strategy.risk_percent",
	"export-duckdb": "export.duckdb",
	"export-psql":   "export.postgres",
}

func main() {
	app := cli.NewApp()
	app.Name = "backtest"
	app.Version = Version
	app.Usage = "replay bars through the sma cross strategy and report the results"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file (yaml, toml or json)"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringSliceFlag{Name: "monitor", Usage: "events to log: bars, orders, fills, cancellations, positions_closed, equity or all"},
		&cli.StringFlag{Name: "listen", Usage: "serve the websocket event stream on this address"},
		&cli.StringFlag{Name: "source", Usage: "synthetic, csv, binary or duckdb"},
		&cli.StringFlag{Name: "path", Usage: "csv or binary file, or duckdb database"},
		&cli.StringFlag{Name: "symbol", Usage: "symbol to trade"},
		&cli.StringFlag{Name: "frequency", Usage: "frequency of the source bars"},
		&cli.StringFlag{Name: "resample", Usage: "aggregate the source bars to this frequency"},
		&cli.StringFlag{Name: "from", Usage: "first bar time, inclusive"},
		&cli.StringFlag{Name: "to", Usage: "last bar time, inclusive"},
		&cli.BoolFlag{Name: "business-days", Usage: "drop weekend and holiday bars"},
		&cli.Int64Flag{Name: "seed", Usage: "synthetic generator seed"},
		&cli.Int64Flag{Name: "days", Usage: "synthetic days to generate"},
		&cli.StringFlag{Name: "cash", Usage: "starting cash"},
		&cli.StringFlag{Name: "commission", Usage: "fixed commission per order"},
		&cli.BoolFlag{Name: "slippage", Usage: "apply volume share slippage"},
		&cli.BoolFlag{Name: "adjusted", Usage: "trade on adjusted prices"},
		&cli.StringFlag{Name: "quantity", Usage: "shares per entry"},
		&cli.UintFlag{Name: "fast", Usage: "fast moving average period"},
		&cli.UintFlag{Name: "slow", Usage: "slow moving average period"},
		&cli.IntFlag{Name: "atr-period", Usage: "protect entries with an ATR stop of this period, 0 disables"},
		&cli.StringFlag{Name: "risk-percent", Usage: "size entries to risk this percent of equity at the ATR stop"},
		&cli.StringFlag{Name: "export-duckdb", Usage: "store closed trades in this duckdb database"},
		&cli.StringFlag{Name: "export-psql", Usage: "store closed trades in this postgres database"},
	}
	app.Action = run

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func applyFlags(v *viper.Viper, c *cli.Context) {
	for name, key := range flagKeys {
		if !c.IsSet(name) {
			continue
		}
		if name == "monitor" {
			v.Set(key, c.StringSlice(name))
		} else {
			v.Set(key, c.Value(name))
		}
	}
}

func run(c *cli.Context) error {
	v, err := newViper(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(v, c)

	cfg, err := decodeConfig(v)
	if err != nil {
		return err
	}

	logger, err := dbg.NewLogger(cfg.LogLevel, cfg.Production)
	if err != nil {
		return err
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	logger.Info(fmt.Sprintf("backtest %s", Version),
		zap.String("component", backtestComponentName),
		zap.Stringer("execution_id", utility.GetExecutionID()))
	defer logger.Info("done", zap.String("component", backtestComponentName))

	return backtest(c.Context, logger, cfg)
}

func backtest(ctx context.Context, logger *zap.Logger, cfg Config) error {
	rows, err := loadBars(ctx, logger, cfg)
	if err != nil {
		return err
	}

	frequency, _ := cfg.Frequency()
	from, to, _ := cfg.DateRange()

	feedOptions := []feed.Option{
		feed.WithLogger(logger),
		feed.WithFrequency(frequency),
		feed.WithDateRange(from, to),
	}
	if cfg.Data.BusinessDays {
		feedOptions = append(feedOptions, feed.WithRowFilter(synthetic.BusinessDays()))
	}

	barFeed := feed.New[common.Bar](feedOptions...)
	if err := barFeed.RegisterTimeseries(cfg.Data.Symbol); err != nil {
		return err
	}
	if err := barFeed.AddValues(cfg.Data.Symbol, rows); err != nil {
		return err
	}

	exch := sandbox.NewExchange(barFeed, fixed.MustParse(cfg.Exchange.Cash), exchangeOptions(logger, cfg)...)

	var crossOptions []strategy.SmaCrossOption
	crossOptions = append(crossOptions, strategy.WithSmaCrossLogger(logger))
	if cfg.Strategy.AtrPeriod > 0 {
		crossOptions = append(crossOptions, strategy.WithAtrStop(cfg.Strategy.AtrPeriod, fixed.MustParse(cfg.Strategy.AtrMultiple)))
	}
	if sizer := newSizer(cfg); sizer != nil {
		crossOptions = append(crossOptions, strategy.WithSizer(sizer))
	}
	cross := strategy.NewSmaCross(cfg.Data.Symbol, fixed.MustParse(cfg.Strategy.Quantity),
		cfg.Strategy.Fast, cfg.Strategy.Slow, cfg.Exchange.Adjusted, crossOptions...)

	performance := middleware.NewPerformance(logger)
	s := bstrategy.New(exch, performance.WrapCallbacks(cross), bstrategy.WithLogger(logger))
	if err := cross.Attach(s); err != nil {
		return err
	}

	monitorFlags, _ := cfg.MonitorFlags()
	middleware.NewMonitor(logger, monitorFlags).Attach(s)

	telemetry := middleware.NewTelemetry(logger)
	telemetry.Attach(s)

	audit := simulation.NewAudit(0)
	audit.Attach(s)

	ledgers, closeExports, err := exportLedgers(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeExports()
	for _, ledger := range ledgers {
		ledger.Attach(s)
	}

	var pushover *middleware.Pushover
	if cfg.Pushover.User != "" && cfg.Pushover.Token != "" {
		pushover = middleware.NewPushover(logger, cfg.Pushover.User, cfg.Pushover.Token, cfg.Pushover.Device)
		s.PositionClosedEvent.Subscribe(pushover.WithPositionClosed(bus.NoopHandler[*bstrategy.Position]()))
	}

	if cfg.Listen != "" {
		shutdown := serveStream(ctx, logger, cfg.Listen, s)
		defer shutdown()
	}

	runErr := s.Run(ctx)

	for _, ledger := range ledgers {
		if failed := ledger.Wait(); failed > 0 {
			logger.Warn("trade export incomplete",
				zap.String("component", backtestComponentName),
				zap.Int("failed", failed))
		}
	}

	telemetry.PrintStatistics()
	performance.PrintStatistics()

	report, err := audit.GenerateReport()
	if err != nil {
		logger.Warn("no report", zap.String("component", backtestComponentName), zap.Error(err))
	} else {
		report.Print(logger)
		if pushover != nil {
			msg := fmt.Sprintf("symbol = %s\ntrades = %d\nreturn = %s%%", cfg.Data.Symbol, report.TotalTrades, report.TotalReturn.Rescale(2))
			if err := pushover.Notify(context.WithoutCancel(ctx), "Backtest Finished", msg); err != nil {
				logger.Warn("unable to send notification", zap.String("component", backtestComponentName), zap.Error(err))
			}
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func newSizer(cfg Config) risk.Sizer {
	riskPercent := fixed.MustParse(cfg.Strategy.RiskPercent)
	if !riskPercent.IsPos() {
		return nil
	}

	options := []risk.Option{
		risk.WithMaxExposure(fixed.MustParse(cfg.Strategy.MaxExposure)),
	}
	if cfg.Exchange.AllowFraction {
		options = append(options, risk.WithSizeDigits(4))
	}
	if cfg.Strategy.KellyTrades > 0 {
		options = append(options, risk.WithKelly(cfg.Strategy.KellyTrades))
	}
	if cfg.Strategy.DrawdownScaling {
		options = append(options, risk.WithDrawdownMultiplier(risk.DefaultDrawdownMultiplier()))
	}
	return risk.NewFixedRisk(riskPercent, options...)
}

func exchangeOptions(logger *zap.Logger, cfg Config) []sandbox.Option {
	options := []sandbox.Option{
		sandbox.WithLogger(logger),
		sandbox.WithAdjustedValues(cfg.Exchange.Adjusted),
		sandbox.WithAllowFractions(cfg.Exchange.AllowFraction),
	}
	if commission := fixed.MustParse(cfg.Exchange.Commission); commission.IsPos() {
		options = append(options, sandbox.WithCommission(exchange.FixedPerTrade{Amount: commission}))
	}
	if cfg.Exchange.Slippage {
		options = append(options, sandbox.WithFillStrategy(
			sandbox.NewDefaultFillStrategy(sandbox.WithSlippage(exchange.NewVolumeShareSlippage()))))
	}
	return options
}

// exportLedgers connects the configured trade stores. The returned func closes them.
func exportLedgers(ctx context.Context, logger *zap.Logger, cfg Config) ([]*middleware.Ledger, func(), error) {
	var (
		ledgers []*middleware.Ledger
		closers []func()
	)
	closeAll := func() {
		for _, closer := range closers {
			closer()
		}
	}

	if cfg.Export.DuckDB != "" {
		w := duckdb.NewWriter(cfg.Export.DuckDB)
		if err := w.Connect(ctx); err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, w.Close)
		ledgers = append(ledgers, middleware.NewLedger(logger, w))
	}

	if cfg.Export.Postgres != "" {
		db, err := psql.ConnectDSN(ctx, cfg.Export.Postgres)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := psql.EnsureSchema(ctx, db); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		ledgers = append(ledgers, middleware.NewLedger(logger, psql.NewTradeStore(db)))
	}

	return ledgers, closeAll, nil
}

func serveStream(ctx context.Context, logger *zap.Logger, addr string, s *bstrategy.Strategy) func() {
	stream := middleware.NewStream(logger)
	stream.Attach(s)

	streamCtx, cancel := context.WithCancel(ctx)
	go stream.Run(streamCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           stream,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("stream server stopped",
				zap.String("component", backtestComponentName),
				zap.String("addr", addr),
				zap.Error(err))
		}
	}()

	logger.Info("streaming events",
		zap.String("component", backtestComponentName),
		zap.String("addr", addr))

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
}
