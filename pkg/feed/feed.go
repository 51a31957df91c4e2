package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
)

const (
	feedComponentName = "feed"
	defaultMaxLen     = 1024
)

var (
	ErrFeedStarted   = errors.New("feed already started")
	ErrUnknownSymbol = errors.New("symbol is not registered")
	ErrUnsortedRows  = errors.New("rows are not in strictly increasing time order")
	ErrNullTimestamp = errors.New("row has a null timestamp")
)

// Values is one synchronized step: every symbol with a row at Time.
type Values[T any] struct {
	Time   time.Time
	Values map[string]T
}

func (v Values[T]) Get(symbol string) (T, bool) {
	value, ok := v.Values[symbol]
	return value, ok
}

// Symbols returns the symbols present in the step, sorted.
func (v Values[T]) Symbols() []string {
	out := make([]string, 0, len(v.Values))
	for symbol := range v.Values {
		out = append(out, symbol)
	}
	slices.Sort(out)
	return out
}

type queue[T any] struct {
	rows []common.Row[T]
	next int
}

func (q *queue[T]) exhausted() bool { return q.next >= len(q.rows) }

type Option func(*options)

type options struct {
	logger    *zap.Logger
	frequency common.Frequency
	maxLen    uint
	filter    RowFilter
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithFrequency(frequency common.Frequency) Option {
	return func(o *options) {
		o.frequency = frequency
	}
}

// WithMaxLen bounds every per-symbol timeseries cache.
func WithMaxLen(maxLen uint) Option {
	return func(o *options) {
		if maxLen > 0 {
			o.maxLen = maxLen
		}
	}
}

func WithRowFilter(filter RowFilter) Option {
	return func(o *options) {
		if o.filter == nil {
			o.filter = filter
		} else {
			o.filter = AllOf(o.filter, filter)
		}
	}
}

// WithDateRange drops rows outside [from, to] at load time.
func WithDateRange(from, to time.Time) Option {
	return WithRowFilter(DateRange{From: from, To: to})
}

// Feed multiplexes independently sized per-symbol row sequences into one stream of
// timestamped steps. It implements datasource.Subject.
type Feed[T any] struct {
	options

	symbols    []string
	queues     map[string]*queue[T]
	timeseries map[string]*Timeseries[T]

	started     bool
	currentTime time.Time
	dropped     int

	NewValuesEvent bus.Event[Values[T]]
}

func New[T any](opts ...Option) *Feed[T] {
	f := &Feed[T]{
		options: options{
			logger:    zap.NewNop(),
			frequency: common.FrequencyDay,
			maxLen:    defaultMaxLen,
		},
		queues:     make(map[string]*queue[T]),
		timeseries: make(map[string]*Timeseries[T]),
	}

	for _, opt := range opts {
		opt(&f.options)
	}

	return f
}

// RegisterTimeseries adds a symbol. Registering a known symbol is a no-op.
func (f *Feed[T]) RegisterTimeseries(symbol string) error {
	if f.started {
		return ErrFeedStarted
	}
	if _, ok := f.queues[symbol]; ok {
		return nil
	}

	f.symbols = append(f.symbols, symbol)
	f.queues[symbol] = &queue[T]{}
	f.timeseries[symbol] = newTimeseries[T](symbol, f.maxLen)
	return nil
}

// AddValues appends rows for a registered symbol. Rows must be strictly increasing
// in time, also relative to rows already loaded. Nothing is appended on error.
func (f *Feed[T]) AddValues(symbol string, rows []common.Row[T]) error {
	if f.started {
		return ErrFeedStarted
	}
	q, ok := f.queues[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	var last time.Time
	if len(q.rows) > 0 {
		last = q.rows[len(q.rows)-1].Time
	}

	accepted := make([]common.Row[T], 0, len(rows))
	for idx, row := range rows {
		if row.Time.IsZero() {
			return fmt.Errorf("%w: %s row %d", ErrNullTimestamp, symbol, idx)
		}
		if !last.IsZero() && !row.Time.After(last) {
			return fmt.Errorf("%w: %s row %d at %s", ErrUnsortedRows, symbol, idx, row.Time)
		}
		last = row.Time

		if f.filter != nil && !f.filter.Include(row.Time) {
			continue
		}
		accepted = append(accepted, row)
	}

	q.rows = append(q.rows, accepted...)
	f.dropped += len(rows) - len(accepted)

	f.logger.Debug("rows loaded",
		zap.String("component", feedComponentName),
		zap.String("symbol", symbol),
		zap.Int("accepted", len(accepted)),
		zap.Int("dropped", len(rows)-len(accepted)))

	return nil
}

func (f *Feed[T]) Start() error {
	f.started = true
	return nil
}

func (f *Feed[T]) Stop() error {
	return nil
}

// Dispatch emits the next step. It returns false when every queue is exhausted.
func (f *Feed[T]) Dispatch(ctx context.Context) bool {
	t := f.PeekTime()
	if t.IsZero() {
		return false
	}

	values := make(map[string]T)
	for _, symbol := range f.symbols {
		q := f.queues[symbol]
		if q.exhausted() || !q.rows[q.next].Time.Equal(t) {
			continue
		}
		row := q.rows[q.next]
		q.next++

		values[symbol] = row.Value
		f.timeseries[symbol].append(ctx, t, row.Value)
	}

	f.currentTime = t
	f.NewValuesEvent.Emit(ctx, Values[T]{Time: t, Values: values})
	return true
}

func (f *Feed[T]) EOF() bool {
	for _, q := range f.queues {
		if !q.exhausted() {
			return false
		}
	}
	return true
}

// PeekTime returns the earliest pending row time, or the zero time when nothing is left.
func (f *Feed[T]) PeekTime() time.Time {
	var peek time.Time
	for _, symbol := range f.symbols {
		q := f.queues[symbol]
		if q.exhausted() {
			continue
		}
		if t := q.rows[q.next].Time; peek.IsZero() || t.Before(peek) {
			peek = t
		}
	}
	return peek
}

// Reset rewinds every cursor to the loaded data and clears the timeseries caches.
func (f *Feed[T]) Reset() {
	for _, symbol := range f.symbols {
		f.queues[symbol].next = 0
		f.timeseries[symbol].reset()
	}
	f.currentTime = time.Time{}
	f.started = false
}

func (f *Feed[T]) Symbols() []string {
	return slices.Clone(f.symbols)
}

func (f *Feed[T]) HasSymbol(symbol string) bool {
	_, ok := f.queues[symbol]
	return ok
}

func (f *Feed[T]) Timeseries(symbol string) (*Timeseries[T], bool) {
	ts, ok := f.timeseries[symbol]
	return ts, ok
}

// Remaining returns the number of rows of symbol not dispatched yet.
func (f *Feed[T]) Remaining(symbol string) int {
	q, ok := f.queues[symbol]
	if !ok {
		return 0
	}
	return len(q.rows) - q.next
}

func (f *Feed[T]) CurrentTime() time.Time {
	return f.currentTime
}

func (f *Feed[T]) Frequency() common.Frequency {
	return f.frequency
}

func (f *Feed[T]) Dropped() int {
	return f.dropped
}
