package middleware

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/strategy"
)

const (
	performanceComponentName = "middleware.performance"
)

type handlerTiming struct {
	calls int64
	total time.Duration
	max   time.Duration
}

// Performance accumulates the time spent in wrapped handlers, per name.
type Performance struct {
	logger  *zap.Logger
	clock   func() time.Time
	timings map[string]*handlerTiming
}

func NewPerformance(logger *zap.Logger) *Performance {
	return &Performance{
		logger:  logger,
		clock:   time.Now,
		timings: make(map[string]*handlerTiming),
	}
}

// Measure wraps handler so every call is timed under name.
func Measure[T any](p *Performance, name string, handler bus.EventHandler[T]) bus.EventHandler[T] {
	timing, ok := p.timings[name]
	if !ok {
		timing = &handlerTiming{}
		p.timings[name] = timing
	}

	return func(ctx context.Context, value T) {
		startTime := p.clock()
		handler(ctx, value)
		elapsed := p.clock().Sub(startTime)

		timing.calls++
		timing.total += elapsed
		timing.max = max(timing.max, elapsed)
	}
}

type timedCallbacks struct {
	strategy.Callbacks

	onBars         bus.EventHandler[feed.Values[common.Bar]]
	onEnter        bus.EventHandler[*strategy.Position]
	onExit         bus.EventHandler[*strategy.Position]
	onOrderUpdated bus.EventHandler[exchange.OrderEvent]
}

func (c *timedCallbacks) OnBars(ctx context.Context, bars feed.Values[common.Bar]) {
	c.onBars(ctx, bars)
}

func (c *timedCallbacks) OnEnter(ctx context.Context, position *strategy.Position) {
	c.onEnter(ctx, position)
}

func (c *timedCallbacks) OnExit(ctx context.Context, position *strategy.Position) {
	c.onExit(ctx, position)
}

func (c *timedCallbacks) OnOrderUpdated(ctx context.Context, event exchange.OrderEvent) {
	c.onOrderUpdated(ctx, event)
}

// WrapCallbacks times the bar, enter, exit and order callbacks of cb.
func (p *Performance) WrapCallbacks(cb strategy.Callbacks) strategy.Callbacks {
	return &timedCallbacks{
		Callbacks:      cb,
		onBars:         Measure(p, "on_bars", cb.OnBars),
		onEnter:        Measure(p, "on_enter", cb.OnEnter),
		onExit:         Measure(p, "on_exit", cb.OnExit),
		onOrderUpdated: Measure(p, "on_order_updated", cb.OnOrderUpdated),
	}
}

func (p *Performance) Calls(name string) int64 {
	if timing, ok := p.timings[name]; ok {
		return timing.calls
	}
	return 0
}

func (p *Performance) Total(name string) time.Duration {
	if timing, ok := p.timings[name]; ok {
		return timing.total
	}
	return 0
}

func (p *Performance) Average(name string) time.Duration {
	timing, ok := p.timings[name]
	if !ok || timing.calls == 0 {
		return 0
	}
	return timing.total / time.Duration(timing.calls)
}

func (p *Performance) PrintStatistics() {
	names := make([]string, 0, len(p.timings))
	for name := range p.timings {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		timing := p.timings[name]
		if timing.calls == 0 {
			continue
		}
		p.logger.Info("performance statistics",
			zap.String("component", performanceComponentName),
			zap.String("handler", name),
			zap.Int64("calls", timing.calls),
			zap.Duration("avg_duration", timing.total/time.Duration(timing.calls)),
			zap.Duration("max_duration", timing.max),
			zap.Duration("total_duration", timing.total))
	}
}
