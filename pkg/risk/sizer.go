package risk

import (
	"errors"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var ErrNoStopDistance = errors.New("entry and stop prices are equal")

// Sizer decides the quantity of an entry at entry price protected by a stop.
type Sizer interface {
	Size(equity, entry, stop fixed.Point) (fixed.Point, error)
}

// TradeObserver is implemented by sizers that adapt to closed trades.
type TradeObserver interface {
	OnTrade(trade common.Trade)
}

type FixedQuantity struct {
	Quantity fixed.Point
}

func (s FixedQuantity) Size(_, _, _ fixed.Point) (fixed.Point, error) {
	return s.Quantity, nil
}

type Option func(*FixedRisk)

func WithDrawdownMultiplier(f DrawdownMultiplierFunc) Option {
	return func(r *FixedRisk) {
		r.drawdownMultiplier = f
	}
}

// WithKelly scales sizes by KellySize once minTrades trades were observed.
func WithKelly(minTrades int) Option {
	return func(r *FixedRisk) {
		r.kellyMinTrades = max(minTrades, 1)
	}
}

// WithMaxExposure caps the entry value at percent of equity.
func WithMaxExposure(percent fixed.Point) Option {
	return func(r *FixedRisk) {
		r.maxExposure = percent
	}
}

func WithSizeDigits(digits int) Option {
	return func(r *FixedRisk) {
		r.sizeDigits = digits
	}
}

// FixedRisk sizes entries so hitting the stop loses riskPercent of equity.
type FixedRisk struct {
	riskPercent        fixed.Point
	sizeDigits         int
	maxExposure        fixed.Point
	drawdownMultiplier DrawdownMultiplierFunc
	kellyMinTrades     int

	peakEquity fixed.Point
	wins       int
	losses     int
	grossWin   fixed.Point
	grossLoss  fixed.Point
}

func NewFixedRisk(riskPercent fixed.Point, options ...Option) *FixedRisk {
	r := &FixedRisk{
		riskPercent: riskPercent,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *FixedRisk) Size(equity, entry, stop fixed.Point) (fixed.Point, error) {
	distance := entry.Sub(stop).Abs()
	if distance.IsZero() {
		return fixed.Zero, ErrNoStopDistance
	}
	if !equity.IsPos() {
		return fixed.Zero, nil
	}

	r.peakEquity = fixed.Max(r.peakEquity, equity)

	size := equity.Mul(r.riskPercent).DivInt(100).Div(distance)

	if r.drawdownMultiplier != nil {
		size = size.Mul(r.drawdownMultiplier(r.Drawdown(equity)))
	}

	if r.kellyMinTrades > 0 && r.wins+r.losses >= r.kellyMinTrades {
		size = KellySize(size, r.WinRate(), r.AverageWinLoss(), r.riskPercent)
	}

	if r.maxExposure.IsPos() && entry.IsPos() {
		size = fixed.Min(size, equity.Mul(r.maxExposure).DivInt(100).Div(entry))
	}

	return size.Trunc(r.sizeDigits), nil
}

// Drawdown returns how far equity is below the highest equity seen, in percent.
func (r *FixedRisk) Drawdown(equity fixed.Point) fixed.Point {
	if !r.peakEquity.IsPos() || equity.Gte(r.peakEquity) {
		return fixed.Zero
	}
	return r.peakEquity.Sub(equity).Div(r.peakEquity).MulInt(100)
}

func (r *FixedRisk) OnTrade(trade common.Trade) {
	if trade.NetProfit.IsPos() {
		r.wins++
		r.grossWin = r.grossWin.Add(trade.NetProfit)
	} else {
		r.losses++
		r.grossLoss = r.grossLoss.Add(trade.NetProfit.Abs())
	}
}

func (r *FixedRisk) WinRate() fixed.Point {
	total := r.wins + r.losses
	if total == 0 {
		return fixed.Zero
	}
	return fixed.FromInt(r.wins, 0).DivInt(total)
}

// AverageWinLoss is the average win divided by the average loss.
func (r *FixedRisk) AverageWinLoss() fixed.Point {
	if r.wins == 0 || r.losses == 0 || r.grossLoss.IsZero() {
		return fixed.Zero
	}
	avgWin := r.grossWin.DivInt(r.wins)
	avgLoss := r.grossLoss.DivInt(r.losses)
	return avgWin.Div(avgLoss)
}
