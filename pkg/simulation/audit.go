package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/strategy"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var ErrNoSnapshots = errors.New("audit has no equity snapshots")

type accountSnapshot struct {
	cash   fixed.Point
	equity fixed.Point
	t      time.Time
}

// Audit collects equity snapshots and closed trades of one run.
type Audit struct {
	minSnapshotInterval time.Duration

	accountSnapshots []accountSnapshot
	trades           []common.Trade
}

func NewAudit(minSnapshotInterval time.Duration) *Audit {
	return &Audit{
		minSnapshotInterval: minSnapshotInterval,
	}
}

// Attach records a snapshot after every processed step of s and every trade it closes.
func (a *Audit) Attach(s *strategy.Strategy) {
	s.BarsProcessedEvent.Subscribe(func(_ context.Context, bars feed.Values[common.Bar]) {
		a.AddAccountSnapshot(s.Exchange().Cash(), s.Exchange().Equity(), bars.Time)
	})
	s.PositionClosedEvent.Subscribe(func(_ context.Context, p *strategy.Position) {
		if trade, ok := p.Trade(); ok {
			a.AddTrade(trade)
		}
	})
}

func (a *Audit) AddAccountSnapshot(cash, equity fixed.Point, t time.Time) {
	if len(a.accountSnapshots) == 0 ||
		t.Sub(a.accountSnapshots[len(a.accountSnapshots)-1].t) >= a.minSnapshotInterval {
		a.accountSnapshots = append(a.accountSnapshots, accountSnapshot{
			cash:   cash,
			equity: equity,
			t:      t,
		})
	}
}

func (a *Audit) AddTrade(trade common.Trade) {
	a.trades = append(a.trades, trade)
}

func (a *Audit) Trades() []common.Trade {
	return a.trades
}

func (a *Audit) SnapshotCount() int {
	return len(a.accountSnapshots)
}

func (a *Audit) GenerateReport() (Report, error) {
	if len(a.accountSnapshots) == 0 {
		return Report{}, ErrNoSnapshots
	}

	report := Report{}

	first := a.accountSnapshots[0]
	last := a.accountSnapshots[len(a.accountSnapshots)-1]

	report.StartDate = first.t
	report.EndDate = last.t
	report.InitialEquity = first.equity
	report.FinalEquity = last.equity
	report.FinalCash = last.cash

	// --- Return Metrics ---
	if report.InitialEquity.IsPos() {
		report.TotalReturn = report.FinalEquity.Div(report.InitialEquity).Sub(fixed.One).MulInt64(100).Rescale(2)
	}
	auditedDays := a.dayCount()
	if auditedDays > 1 && report.InitialEquity.IsPos() && report.FinalEquity.IsPos() {
		ratio := report.FinalEquity.Div(report.InitialEquity)
		exponent := fixed.FromInt64(365, 0).DivInt64(int64(auditedDays))
		report.AnnualizedReturn = ratio.Pow(exponent).Sub(fixed.One).MulInt64(100).Rescale(2)
	}

	// --- Max Drawdown ---
	maxEquity := report.InitialEquity
	for _, snapshot := range a.accountSnapshots {
		if snapshot.equity.Gt(maxEquity) {
			maxEquity = snapshot.equity
		}
		if !maxEquity.IsPos() {
			continue
		}
		drawdown := maxEquity.Sub(snapshot.equity).Div(maxEquity)
		if drawdown.Gt(report.MaxDrawdown) {
			report.MaxDrawdown = drawdown
		}
	}

	// --- Trade Statistics ---
	var (
		totalDuration time.Duration
		totalProfit   fixed.Point
		totalLoss     fixed.Point
	)
	for _, trade := range a.trades {
		report.TotalTrades++

		if trade.ExitTime.After(trade.EntryTime) && !trade.EntryTime.IsZero() {
			totalDuration += trade.ExitTime.Sub(trade.EntryTime)
		}

		if trade.NetProfit.IsPos() {
			totalProfit = totalProfit.Add(trade.NetProfit)
			report.WinningTrades++
		} else {
			totalLoss = totalLoss.Add(trade.NetProfit.Neg())
			report.LosingTrades++
		}
		report.TotalCommission = report.TotalCommission.Add(trade.Commission)
	}

	if report.WinningTrades > 0 {
		report.AverageWin = totalProfit.DivInt64(int64(report.WinningTrades))
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = totalLoss.DivInt64(int64(report.LosingTrades))
	}
	if totalLoss.IsPos() {
		report.ProfitFactor = totalProfit.Div(totalLoss)
	}
	if report.AverageLoss.IsPos() {
		report.RiskRewardRatio = report.AverageWin.Div(report.AverageLoss)
	}
	if report.TotalTrades > 0 {
		report.Expectancy = totalProfit.Sub(totalLoss).DivInt64(int64(report.TotalTrades))
		report.AverageTradeDuration = totalDuration / time.Duration(report.TotalTrades)
		report.WinRate = fixed.FromInt(report.WinningTrades, 0).DivInt(report.TotalTrades).MulInt64(100).Rescale(2)
	}
	if report.MaxDrawdown.IsPos() {
		report.RecoveryFactor = report.TotalReturn.Div(report.MaxDrawdown.MulInt64(100)).Rescale(5)
	}
	report.MaxDrawdown = report.MaxDrawdown.MulInt64(100).Rescale(2)

	// --- Risk Metrics ---
	dailyReturns := a.dailyReturns()
	meanReturn := fixed.Mean(dailyReturns)
	vol := fixed.StdDev(dailyReturns, meanReturn)

	if !vol.IsZero() {
		report.AnnualizedVolatility = vol.Mul(fixed.Sqrt252).MulInt64(100).Rescale(2)
		report.SharpeRatio = fixed.SharpeRatio(dailyReturns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
		report.SortinoRatio = fixed.SortinoRatio(dailyReturns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
	}

	return report, nil
}

func (a *Audit) dayCount() int {
	if len(a.accountSnapshots) < 2 {
		return 1
	}
	start := a.accountSnapshots[0].t
	end := a.accountSnapshots[len(a.accountSnapshots)-1].t
	return int(end.Sub(start).Hours()/24) + 1
}

// dailyReturns compares the closing equity of each calendar day with the previous day's.
func (a *Audit) dailyReturns() []fixed.Point {
	var closes []fixed.Point
	var prevDate time.Time
	for idx, snapshot := range a.accountSnapshots {
		currDate := snapshot.t.Truncate(24 * time.Hour)
		if idx > 0 && currDate.Equal(prevDate) {
			closes[len(closes)-1] = snapshot.equity
			continue
		}
		closes = append(closes, snapshot.equity)
		prevDate = currDate
	}

	var dailyReturns []fixed.Point
	for idx := 1; idx < len(closes); idx++ {
		if !closes[idx-1].IsPos() {
			continue
		}
		dailyReturns = append(dailyReturns, closes[idx].Div(closes[idx-1]).Sub(fixed.One))
	}
	return dailyReturns
}
