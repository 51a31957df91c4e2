package sma

import (
	"context"
	"time"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/utility/circular"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const defaultMaxLen = 256

// Indicator is a simple moving average. It produces a value once period inputs were seen.
type Indicator struct {
	window *circular.PointBuffer
	out    *circular.Buffer[common.Row[fixed.Point]]

	NewValueEvent bus.Event[common.Row[fixed.Point]]
}

func NewIndicator(period uint) *Indicator {
	return &Indicator{
		window: circular.NewPointBuffer(period),
		out:    circular.NewBuffer[common.Row[fixed.Point]](defaultMaxLen),
	}
}

// AttachClose feeds the indicator with the closes of a bar timeseries.
func (i *Indicator) AttachClose(ts *feed.Timeseries[common.Bar], adjusted bool) bus.SubscriptionId {
	return ts.NewValueEvent.Subscribe(func(ctx context.Context, row common.Row[common.Bar]) {
		i.OnValue(ctx, row.Time, row.Value.ClosePrice(adjusted))
	})
}

func (i *Indicator) OnValue(ctx context.Context, t time.Time, value fixed.Point) {
	i.window.PushUpdate(value)
	if !i.window.IsFull() {
		return
	}

	row := common.NewRow(t, i.window.Mean())
	i.out.Push(row)
	i.NewValueEvent.Emit(ctx, row)
}

func (i *Indicator) Ready() bool {
	return !i.out.IsEmpty()
}

// Value returns the newest average.
func (i *Indicator) Value() (fixed.Point, bool) {
	return i.At(0)
}

// At returns the average idx steps back from the newest one.
func (i *Indicator) At(idx int) (fixed.Point, bool) {
	if idx < 0 || uint(idx) >= i.out.Size() {
		return fixed.Zero, false
	}
	return i.out.Get(uint(idx)).Value, true
}

func (i *Indicator) Reset() {
	i.window.Reset()
	i.out.Reset()
}
