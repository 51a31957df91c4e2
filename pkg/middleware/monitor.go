package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/strategy"
)

const (
	monitorComponentName = "middleware.monitor"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorBars
	MonitorOrders
	MonitorFills
	MonitorCancellations
	MonitorPositionsClosed
	MonitorEquity
)

// Monitor logs the events selected by its flags and passes them on unchanged.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithBars(handler bus.EventHandler[feed.Values[common.Bar]]) bus.EventHandler[feed.Values[common.Bar]] {
	return func(ctx context.Context, bars feed.Values[common.Bar]) {
		if m.enabled(MonitorBars) {
			for _, symbol := range bars.Symbols() {
				bar := bars.Values[symbol]
				m.logger.Info("bar",
					zap.String("component", monitorComponentName),
					zap.Time("ts", bars.Time),
					zap.String("symbol", symbol),
					zap.Stringer("open", bar.Open),
					zap.Stringer("high", bar.High),
					zap.Stringer("low", bar.Low),
					zap.Stringer("close", bar.Close),
					zap.Stringer("volume", bar.Volume))
			}
		}
		handler(ctx, bars)
	}
}

func (m *Monitor) WithOrderEvent(handler bus.EventHandler[exchange.OrderEvent]) bus.EventHandler[exchange.OrderEvent] {
	return func(ctx context.Context, event exchange.OrderEvent) {
		switch {
		case event.IsFill() && (m.enabled(MonitorFills) || m.enabled(MonitorOrders)):
			m.logger.Info("order filled",
				zap.String("component", monitorComponentName),
				zap.Time("ts", event.Time),
				zap.Uint64("order_id", uint64(event.OrderId)),
				zap.Stringer("type", event.Type),
				zap.String("symbol", event.Order.Symbol()),
				zap.Stringer("action", event.Order.Action()),
				zap.Stringer("price", event.Info.Price),
				zap.Stringer("quantity", event.Info.Quantity),
				zap.Stringer("commission", event.Info.Commission))
		case event.Type == exchange.OrderEventCanceled && (m.enabled(MonitorCancellations) || m.enabled(MonitorOrders)):
			fields := []zap.Field{
				zap.String("component", monitorComponentName),
				zap.Time("ts", event.Time),
				zap.Uint64("order_id", uint64(event.OrderId)),
				zap.String("symbol", event.Order.Symbol()),
			}
			if event.Info != nil && event.Info.Err != nil {
				fields = append(fields, zap.Error(event.Info.Err))
			}
			m.logger.Info("order canceled", fields...)
		case m.enabled(MonitorOrders):
			m.logger.Info("order",
				zap.String("component", monitorComponentName),
				zap.Time("ts", event.Time),
				zap.Uint64("order_id", uint64(event.OrderId)),
				zap.Stringer("type", event.Type),
				zap.Stringer("order_type", event.Order.Type()),
				zap.String("symbol", event.Order.Symbol()),
				zap.Stringer("action", event.Order.Action()),
				zap.Stringer("quantity", event.Order.Quantity()))
		}
		handler(ctx, event)
	}
}

func (m *Monitor) WithPositionClosed(handler bus.EventHandler[*strategy.Position]) bus.EventHandler[*strategy.Position] {
	return func(ctx context.Context, position *strategy.Position) {
		if m.enabled(MonitorPositionsClosed) {
			if trade, ok := position.Trade(); ok {
				m.logger.Info("position closed",
					zap.String("component", monitorComponentName),
					zap.Uint64("position_id", trade.PositionId),
					zap.String("symbol", trade.Symbol),
					zap.String("direction", string(trade.Direction)),
					zap.Stringer("quantity", trade.Quantity),
					zap.Stringer("entry_price", trade.EntryPrice),
					zap.Stringer("exit_price", trade.ExitPrice),
					zap.Stringer("net_profit", trade.NetProfit))
			} else {
				m.logger.Info("position closed without trade",
					zap.String("component", monitorComponentName),
					zap.Uint64("position_id", uint64(position.Id())),
					zap.String("symbol", position.Symbol()))
			}
		}
		handler(ctx, position)
	}
}

// Attach logs the events of s without changing how they are handled.
func (m *Monitor) Attach(s *strategy.Strategy) {
	s.Feed().NewValuesEvent.Subscribe(m.WithBars(bus.NoopHandler[feed.Values[common.Bar]]()))
	s.Exchange().OrderEvent.Subscribe(m.WithOrderEvent(bus.NoopHandler[exchange.OrderEvent]()))
	s.PositionClosedEvent.Subscribe(m.WithPositionClosed(bus.NoopHandler[*strategy.Position]()))
	s.BarsProcessedEvent.Subscribe(func(_ context.Context, bars feed.Values[common.Bar]) {
		if m.enabled(MonitorEquity) {
			m.logger.Info("equity",
				zap.String("component", monitorComponentName),
				zap.Time("ts", bars.Time),
				zap.Stringer("cash", s.Exchange().Cash()),
				zap.Stringer("equity", s.Exchange().Equity()))
		}
	})
}
