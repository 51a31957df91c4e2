package simulation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const (
	reportComponentName = "simulation.report"
)

// Report holds percentages already multiplied by 100.
type Report struct {
	StartDate            time.Time     `json:"start_date"`
	EndDate              time.Time     `json:"end_date"`
	InitialEquity        fixed.Point   `json:"initial_equity"`
	FinalEquity          fixed.Point   `json:"final_equity"`
	FinalCash            fixed.Point   `json:"final_cash"`
	TotalReturn          fixed.Point   `json:"total_return"`
	AnnualizedReturn     fixed.Point   `json:"annualized_return"`
	MaxDrawdown          fixed.Point   `json:"max_drawdown"`
	RecoveryFactor       fixed.Point   `json:"recovery_factor"`
	TotalTrades          int           `json:"total_trades"`
	WinningTrades        int           `json:"winning_trades"`
	LosingTrades         int           `json:"losing_trades"`
	WinRate              fixed.Point   `json:"win_rate"`
	Expectancy           fixed.Point   `json:"expectancy"`
	ProfitFactor         fixed.Point   `json:"profit_factor"`
	AverageWin           fixed.Point   `json:"average_win"`
	AverageLoss          fixed.Point   `json:"average_loss"`
	RiskRewardRatio      fixed.Point   `json:"risk_reward_ratio"`
	AverageTradeDuration time.Duration `json:"average_trade_duration"`
	TotalCommission      fixed.Point   `json:"total_commission"`
	SharpeRatio          fixed.Point   `json:"sharpe_ratio"`
	SortinoRatio         fixed.Point   `json:"sortino_ratio"`
	AnnualizedVolatility fixed.Point   `json:"annualized_volatility"`
}

func (report Report) Print(logger *zap.Logger) {
	logger.Info("performance report",
		zap.String("component", reportComponentName),
		zap.Time("start_date", report.StartDate),
		zap.Time("end_date", report.EndDate),
		zap.Stringer("initial_equity", report.InitialEquity),
		zap.Stringer("final_equity", report.FinalEquity),
		zap.Stringer("final_cash", report.FinalCash),
		zap.String("total_return", percent(report.TotalReturn)),
		zap.String("annualized_return", percent(report.AnnualizedReturn)),
		zap.String("max_drawdown", percent(report.MaxDrawdown)),
		zap.Stringer("recovery_factor", report.RecoveryFactor),
	)

	logger.Info("trade statistics",
		zap.String("component", reportComponentName),
		zap.Int("total_trades", report.TotalTrades),
		zap.Int("winning_trades", report.WinningTrades),
		zap.Int("losing_trades", report.LosingTrades),
		zap.String("win_rate", percent(report.WinRate)),
		zap.Stringer("expectancy", report.Expectancy),
		zap.Stringer("profit_factor", report.ProfitFactor),
		zap.Stringer("average_win", report.AverageWin),
		zap.Stringer("average_loss", report.AverageLoss),
		zap.Stringer("risk_reward_ratio", report.RiskRewardRatio),
		zap.Duration("average_trade_duration", report.AverageTradeDuration),
		zap.Stringer("total_commission", report.TotalCommission),
	)

	logger.Info("risk metrics",
		zap.String("component", reportComponentName),
		zap.Stringer("sharpe_ratio", report.SharpeRatio),
		zap.Stringer("sortino_ratio", report.SortinoRatio),
		zap.String("annualized_volatility", percent(report.AnnualizedVolatility)),
	)
}

func percent(p fixed.Point) string {
	return fmt.Sprintf("%s%%", p.String())
}
