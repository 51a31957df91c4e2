package atr

import (
	"context"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

// Indicator is Wilder's average true range. The first bar only seeds the previous close.
type Indicator struct {
	period   int
	adjusted bool

	seeded     bool
	lastClose  fixed.Point
	currentAtr fixed.Point
	currentTr  fixed.Point
	samples    int
}

func NewIndicator(period int, adjusted bool) *Indicator {
	if period <= 0 {
		panic("atr: period must be positive")
	}
	return &Indicator{
		period:   period,
		adjusted: adjusted,
	}
}

// Attach updates the indicator with every bar of ts.
func (i *Indicator) Attach(ts *feed.Timeseries[common.Bar]) bus.SubscriptionId {
	return ts.NewValueEvent.Subscribe(func(_ context.Context, row common.Row[common.Bar]) {
		i.OnBar(row.Value)
	})
}

func (i *Indicator) OnBar(bar common.Bar) {
	high := bar.HighPrice(i.adjusted)
	low := bar.LowPrice(i.adjusted)
	closePrice := bar.ClosePrice(i.adjusted)

	defer func() {
		i.lastClose = closePrice
		i.seeded = true
	}()

	if !i.seeded {
		return
	}

	i.currentTr = fixed.Max(high.Sub(low), fixed.Max(high.Sub(i.lastClose).Abs(), low.Sub(i.lastClose).Abs()))

	if i.samples == 0 {
		i.currentAtr = i.currentTr
	} else {
		i.currentAtr = i.currentAtr.MulInt(i.period - 1).Add(i.currentTr).DivInt(i.period)
	}
	i.samples++
}

func (i *Indicator) AverageTrueRange() fixed.Point {
	return i.currentAtr
}

func (i *Indicator) TrueRange() fixed.Point {
	return i.currentTr
}

func (i *Indicator) Ready() bool {
	return i.samples > 0
}

func (i *Indicator) Reset() {
	*i = Indicator{period: i.period, adjusted: i.adjusted}
}
