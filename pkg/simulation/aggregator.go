package simulation

import (
	"fmt"
	"time"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

// Aggregator merges bars into coarser bars of a fixed frequency. Output bars are
// stamped with the start of their interval.
type Aggregator struct {
	frequency common.Frequency
	interval  time.Duration
	current   *common.Row[common.Bar]
}

func NewAggregator(frequency common.Frequency) *Aggregator {
	interval := frequency.Duration()
	if interval == 0 {
		panic(fmt.Sprintf("simulation: cannot aggregate into %s bars", frequency))
	}
	return &Aggregator{
		frequency: frequency,
		interval:  interval,
	}
}

// OnBar adds bar at t. It returns the previous aggregate once t falls into a new interval.
func (a *Aggregator) OnBar(t time.Time, bar common.Bar) (common.Row[common.Bar], bool) {
	barTime := t.Truncate(a.interval)

	var (
		done common.Row[common.Bar]
		ok   bool
	)
	if a.current != nil && !a.current.Time.Equal(barTime) {
		done, ok = *a.current, true
		a.current = nil
	}

	if a.current == nil {
		bar.Frequency = a.frequency
		a.current = &common.Row[common.Bar]{Time: barTime, Value: bar}
		return done, ok
	}

	agg := &a.current.Value
	agg.High = fixed.Max(agg.High, bar.High)
	agg.Low = fixed.Min(agg.Low, bar.Low)
	agg.Close = bar.Close
	agg.AdjClose = bar.AdjClose
	agg.Volume = agg.Volume.Add(bar.Volume)

	return done, ok
}

// Flush returns the pending aggregate, if any.
func (a *Aggregator) Flush() (common.Row[common.Bar], bool) {
	if a.current == nil {
		return common.Row[common.Bar]{}, false
	}
	done := *a.current
	a.current = nil
	return done, true
}

// Resample aggregates time ordered rows into frequency bars.
func Resample(rows []common.Row[common.Bar], frequency common.Frequency) []common.Row[common.Bar] {
	a := NewAggregator(frequency)
	out := make([]common.Row[common.Bar], 0, len(rows))
	for _, row := range rows {
		if done, ok := a.OnBar(row.Time, row.Value); ok {
			out = append(out, done)
		}
	}
	if done, ok := a.Flush(); ok {
		out = append(out, done)
	}
	return out
}
