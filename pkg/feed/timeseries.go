package feed

import (
	"context"
	"time"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/circular"
)

// Timeseries caches the most recent rows dispatched for one symbol.
type Timeseries[T any] struct {
	symbol string
	rows   *circular.Buffer[common.Row[T]]

	NewValueEvent bus.Event[common.Row[T]]
}

func newTimeseries[T any](symbol string, maxLen uint) *Timeseries[T] {
	return &Timeseries[T]{
		symbol: symbol,
		rows:   circular.NewBuffer[common.Row[T]](maxLen),
	}
}

func (ts *Timeseries[T]) Symbol() string { return ts.symbol }
func (ts *Timeseries[T]) Len() int       { return int(ts.rows.Size()) }
func (ts *Timeseries[T]) MaxLen() int    { return int(ts.rows.Capacity()) }

// At returns the row idx steps back from the newest one (0 is the newest).
func (ts *Timeseries[T]) At(idx int) (common.Row[T], bool) {
	if idx < 0 || idx >= ts.Len() {
		return common.Row[T]{}, false
	}
	return ts.rows.Get(uint(idx)), true
}

func (ts *Timeseries[T]) Last() (common.Row[T], bool) {
	return ts.At(0)
}

// Values returns the cached values from the oldest to the newest.
func (ts *Timeseries[T]) Values() []T {
	rows := ts.rows.Values()
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = row.Value
	}
	return out
}

func (ts *Timeseries[T]) append(ctx context.Context, t time.Time, value T) {
	row := common.NewRow(t, value)
	ts.rows.Push(row)
	ts.NewValueEvent.Emit(ctx, row)
}

func (ts *Timeseries[T]) reset() {
	ts.rows.Reset()
}
