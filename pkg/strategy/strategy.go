package strategy

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/datasource"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/exchange/sandbox"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const (
	strategyComponentName = "strategy"
)

type Option func(*Strategy)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Strategy) {
		s.logger = logger
	}
}

// Strategy connects user Callbacks to an exchange and the bar feed it trades on.
// Positions route their own order events; everything else goes to OnOrderUpdated.
type Strategy struct {
	logger     *zap.Logger
	callbacks  Callbacks
	dispatcher *datasource.Dispatcher
	exchange   *sandbox.Exchange
	feed       *feed.Feed[common.Bar]

	lastPositionId  PositionId
	positions       map[PositionId]*Position
	orderToPosition map[*exchange.Order]*Position

	BarsProcessedEvent  bus.Event[feed.Values[common.Bar]]
	PositionClosedEvent bus.Event[*Position]
}

// New wires callbacks to exch. The exchange must be created first so it matches
// orders against a bar before OnBars sees it.
func New(exch *sandbox.Exchange, callbacks Callbacks, options ...Option) *Strategy {
	s := &Strategy{
		logger:          zap.NewNop(),
		callbacks:       callbacks,
		exchange:        exch,
		feed:            exch.Feed(),
		positions:       make(map[PositionId]*Position),
		orderToPosition: make(map[*exchange.Order]*Position),
	}

	for _, option := range options {
		option(s)
	}

	s.dispatcher = datasource.NewDispatcher(datasource.WithLogger(s.logger))
	if err := s.dispatcher.AddSubject(s.feed); err != nil {
		panic(fmt.Sprintf("strategy: unable to register bar feed: %v", err))
	}

	s.dispatcher.StartEvent.Subscribe(func(ctx context.Context, _ time.Time) { s.callbacks.OnStart(ctx) })
	s.dispatcher.IdleEvent.Subscribe(func(ctx context.Context, _ time.Time) { s.callbacks.OnIdle(ctx) })
	s.dispatcher.StopEvent.Subscribe(func(ctx context.Context, _ time.Time) { s.callbacks.OnStop(ctx) })

	s.exchange.OrderEvent.Subscribe(s.onOrderEvent)
	s.feed.NewValuesEvent.Subscribe(s.onBars)

	return s
}

func (s *Strategy) Logger() *zap.Logger                { return s.logger }
func (s *Strategy) Exchange() *sandbox.Exchange        { return s.exchange }
func (s *Strategy) Feed() *feed.Feed[common.Bar]       { return s.feed }
func (s *Strategy) Dispatcher() *datasource.Dispatcher { return s.dispatcher }
func (s *Strategy) CurrentTime() time.Time             { return s.feed.CurrentTime() }

// Result is the exchange equity: cash plus open positions marked at their last close.
func (s *Strategy) Result() fixed.Point {
	return s.exchange.Equity()
}

// LastPrice returns the last close of symbol, zero before its first bar.
func (s *Strategy) LastPrice(symbol string) fixed.Point {
	bar, ok := s.exchange.LastBar(symbol)
	if !ok {
		return fixed.Zero
	}
	return bar.ClosePrice(s.exchange.UseAdjustedValues())
}

func (s *Strategy) Position(id PositionId) (*Position, bool) {
	p, ok := s.positions[id]
	return p, ok
}

// ActivePositions returns the positions that are not closed yet, oldest first.
func (s *Strategy) ActivePositions() []*Position {
	ids := slices.Sorted(maps.Keys(s.positions))
	out := make([]*Position, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.positions[id])
	}
	return out
}

// Run dispatches the bar feed until it is exhausted, Stop is called or ctx is canceled.
func (s *Strategy) Run(ctx context.Context) error {
	s.logger.Info("strategy started",
		zap.String("component", strategyComponentName),
		zap.Strings("symbols", s.feed.Symbols()),
		zap.Stringer("cash", s.exchange.Cash()))

	if err := s.dispatcher.Run(ctx); err != nil {
		return fmt.Errorf("dispatcher stopped: %w", err)
	}

	s.logger.Info("strategy finished",
		zap.String("component", strategyComponentName),
		zap.Stringer("equity", s.Result()),
		zap.Int("active_positions", len(s.positions)))
	return nil
}

func (s *Strategy) Stop() {
	s.dispatcher.Stop()
}

func (s *Strategy) EnterLong(ctx context.Context, symbol string, quantity fixed.Point, opts ...exchange.OrderOption) (*Position, error) {
	return s.enter(ctx, DirectionLong, exchange.NewMarketOrder(exchange.OrderActionBuy, symbol, quantity, opts...))
}

func (s *Strategy) EnterShort(ctx context.Context, symbol string, quantity fixed.Point, opts ...exchange.OrderOption) (*Position, error) {
	return s.enter(ctx, DirectionShort, exchange.NewMarketOrder(exchange.OrderActionSellShort, symbol, quantity, opts...))
}

func (s *Strategy) EnterLongLimit(ctx context.Context, symbol string, limitPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*Position, error) {
	return s.enter(ctx, DirectionLong, exchange.NewLimitOrder(exchange.OrderActionBuy, symbol, limitPrice, quantity, opts...))
}

func (s *Strategy) EnterShortLimit(ctx context.Context, symbol string, limitPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*Position, error) {
	return s.enter(ctx, DirectionShort, exchange.NewLimitOrder(exchange.OrderActionSellShort, symbol, limitPrice, quantity, opts...))
}

func (s *Strategy) EnterLongStop(ctx context.Context, symbol string, stopPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*Position, error) {
	return s.enter(ctx, DirectionLong, exchange.NewStopOrder(exchange.OrderActionBuy, symbol, stopPrice, quantity, opts...))
}

func (s *Strategy) EnterShortStop(ctx context.Context, symbol string, stopPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*Position, error) {
	return s.enter(ctx, DirectionShort, exchange.NewStopOrder(exchange.OrderActionSellShort, symbol, stopPrice, quantity, opts...))
}

func (s *Strategy) EnterLongStopLimit(ctx context.Context, symbol string, stopPrice, limitPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*Position, error) {
	return s.enter(ctx, DirectionLong, exchange.NewStopLimitOrder(exchange.OrderActionBuy, symbol, stopPrice, limitPrice, quantity, opts...))
}

func (s *Strategy) EnterShortStopLimit(ctx context.Context, symbol string, stopPrice, limitPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*Position, error) {
	return s.enter(ctx, DirectionShort, exchange.NewStopLimitOrder(exchange.OrderActionSellShort, symbol, stopPrice, limitPrice, quantity, opts...))
}

func (s *Strategy) enter(ctx context.Context, direction Direction, entry *exchange.Order) (*Position, error) {
	p := newPosition(s, direction, entry)
	s.positions[p.id] = p

	if err := s.submit(ctx, p, entry); err != nil {
		delete(s.positions, p.id)
		return nil, fmt.Errorf("unable to enter position: %w", err)
	}
	return p, nil
}

// MarketOrder submits an order outside of any position; its events go to OnOrderUpdated.
func (s *Strategy) MarketOrder(ctx context.Context, action exchange.OrderAction, symbol string, quantity fixed.Point, opts ...exchange.OrderOption) (*exchange.Order, error) {
	return s.submitOrder(ctx, exchange.NewMarketOrder(action, symbol, quantity, opts...))
}

func (s *Strategy) LimitOrder(ctx context.Context, action exchange.OrderAction, symbol string, limitPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*exchange.Order, error) {
	return s.submitOrder(ctx, exchange.NewLimitOrder(action, symbol, limitPrice, quantity, opts...))
}

func (s *Strategy) StopOrder(ctx context.Context, action exchange.OrderAction, symbol string, stopPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*exchange.Order, error) {
	return s.submitOrder(ctx, exchange.NewStopOrder(action, symbol, stopPrice, quantity, opts...))
}

func (s *Strategy) StopLimitOrder(ctx context.Context, action exchange.OrderAction, symbol string, stopPrice, limitPrice, quantity fixed.Point, opts ...exchange.OrderOption) (*exchange.Order, error) {
	return s.submitOrder(ctx, exchange.NewStopLimitOrder(action, symbol, stopPrice, limitPrice, quantity, opts...))
}

func (s *Strategy) submitOrder(ctx context.Context, order *exchange.Order) (*exchange.Order, error) {
	if err := s.exchange.SubmitOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// submit registers order with p before the exchange emits its first event.
func (s *Strategy) submit(ctx context.Context, p *Position, order *exchange.Order) error {
	s.orderToPosition[order] = p
	if err := s.exchange.SubmitOrder(ctx, order); err != nil {
		delete(s.orderToPosition, order)
		return err
	}
	return nil
}

func (s *Strategy) unregisterOrder(order *exchange.Order) {
	delete(s.orderToPosition, order)
}

func (s *Strategy) releasePosition(ctx context.Context, p *Position) {
	delete(s.positions, p.id)
	s.unregisterOrder(p.entryOrder)
	if p.exitOrder != nil {
		s.unregisterOrder(p.exitOrder)
	}
	s.PositionClosedEvent.Emit(ctx, p)
}

func (s *Strategy) onOrderEvent(ctx context.Context, event exchange.OrderEvent) {
	p, ok := s.orderToPosition[event.Order]
	if !ok {
		s.callbacks.OnOrderUpdated(ctx, event)
		return
	}

	p.onOrderEvent(ctx, event)

	if !event.Order.IsActive() {
		s.unregisterOrder(event.Order)
	}
}

func (s *Strategy) onBars(ctx context.Context, bars feed.Values[common.Bar]) {
	s.callbacks.OnBars(ctx, bars)
	s.BarsProcessedEvent.Emit(ctx, bars)
}
