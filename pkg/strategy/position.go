package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/utility"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var (
	ErrExitActive     = errors.New("exit order already active")
	ErrPositionClosed = errors.New("position is closed")
	ErrNoActiveEntry  = errors.New("entry order is not active")
	ErrNoActiveExit   = errors.New("exit order is not active")
)

type PositionId uint64

type PositionState uint8

const (
	PositionStateIdle PositionState = iota
	PositionStateOpen
	PositionStateClosed
)

func (s PositionState) String() string {
	switch s {
	case PositionStateIdle:
		return "idle"
	case PositionStateOpen:
		return "open"
	case PositionStateClosed:
		return "closed"
	default:
		return fmt.Sprintf("position_state(%d)", uint8(s))
	}
}

type Direction uint8

const (
	DirectionLong Direction = iota
	DirectionShort
)

func (d Direction) String() string {
	if d == DirectionShort {
		return string(common.TradeDirectionShort)
	}
	return string(common.TradeDirectionLong)
}

// Position pairs one entry order with at most one active exit order at a time.
// Shares are signed: positive when long, negative when short.
type Position struct {
	strategy *Strategy

	id        PositionId
	symbol    string
	direction Direction
	state     PositionState

	allOrNone bool

	entryOrder *exchange.Order
	exitOrder  *exchange.Order
	entryTime  time.Time
	exitTime   time.Time

	shares  fixed.Point
	tracker Tracker

	exitQuantity fixed.Point
	exitValue    fixed.Point
}

func newPosition(s *Strategy, direction Direction, entry *exchange.Order) *Position {
	s.lastPositionId++
	return &Position{
		strategy:   s,
		id:         s.lastPositionId,
		symbol:     entry.Symbol(),
		direction:  direction,
		state:      PositionStateIdle,
		allOrNone:  entry.AllOrNone(),
		entryOrder: entry,
	}
}

func (p *Position) Id() PositionId              { return p.id }
func (p *Position) Symbol() string              { return p.symbol }
func (p *Position) Direction() Direction        { return p.direction }
func (p *Position) State() PositionState        { return p.state }
func (p *Position) EntryOrder() *exchange.Order { return p.entryOrder }
func (p *Position) ExitOrder() *exchange.Order  { return p.exitOrder }
func (p *Position) EntryTime() time.Time        { return p.entryTime }
func (p *Position) ExitTime() time.Time         { return p.exitTime }
func (p *Position) Shares() fixed.Point         { return p.shares }
func (p *Position) Tracker() Tracker            { return p.tracker }
func (p *Position) IsOpen() bool                { return p.state == PositionStateOpen }
func (p *Position) IsClosed() bool              { return p.state == PositionStateClosed }
func (p *Position) IsLong() bool                { return p.direction == DirectionLong }
func (p *Position) IsShort() bool               { return p.direction == DirectionShort }
func (p *Position) IsEntryActive() bool         { return p.entryOrder.IsActive() }
func (p *Position) IsEntryFilled() bool         { return p.entryOrder.IsFilled() }
func (p *Position) IsExitActive() bool          { return p.exitOrder != nil && p.exitOrder.IsActive() }
func (p *Position) IsExitFilled() bool          { return p.exitOrder != nil && p.exitOrder.IsFilled() }
func (p *Position) AllOrNone() bool             { return p.allOrNone }

// Age is the time the position has been open, measured to the exit or to the current bar.
func (p *Position) Age() time.Duration {
	if p.entryTime.IsZero() {
		return 0
	}
	if !p.exitTime.IsZero() {
		return p.exitTime.Sub(p.entryTime)
	}
	return p.strategy.CurrentTime().Sub(p.entryTime)
}

// LastPrice is the close of the most recent bar of the position's symbol.
func (p *Position) LastPrice() fixed.Point {
	return p.strategy.LastPrice(p.symbol)
}

func (p *Position) Pnl(includeCommissions bool) fixed.Point {
	return p.tracker.Pnl(p.LastPrice(), includeCommissions)
}

func (p *Position) Return(includeCommissions bool) fixed.Point {
	return p.tracker.Return(p.LastPrice(), includeCommissions)
}

func (p *Position) ExitMarket(ctx context.Context, opts ...exchange.OrderOption) error {
	return p.exit(ctx, func(action exchange.OrderAction, quantity fixed.Point, opts []exchange.OrderOption) *exchange.Order {
		return exchange.NewMarketOrder(action, p.symbol, quantity, opts...)
	}, opts)
}

func (p *Position) ExitLimit(ctx context.Context, limitPrice fixed.Point, opts ...exchange.OrderOption) error {
	return p.exit(ctx, func(action exchange.OrderAction, quantity fixed.Point, opts []exchange.OrderOption) *exchange.Order {
		return exchange.NewLimitOrder(action, p.symbol, limitPrice, quantity, opts...)
	}, opts)
}

func (p *Position) ExitStop(ctx context.Context, stopPrice fixed.Point, opts ...exchange.OrderOption) error {
	return p.exit(ctx, func(action exchange.OrderAction, quantity fixed.Point, opts []exchange.OrderOption) *exchange.Order {
		return exchange.NewStopOrder(action, p.symbol, stopPrice, quantity, opts...)
	}, opts)
}

func (p *Position) ExitStopLimit(ctx context.Context, stopPrice, limitPrice fixed.Point, opts ...exchange.OrderOption) error {
	return p.exit(ctx, func(action exchange.OrderAction, quantity fixed.Point, opts []exchange.OrderOption) *exchange.Order {
		return exchange.NewStopLimitOrder(action, p.symbol, stopPrice, limitPrice, quantity, opts...)
	}, opts)
}

type exitOrderBuilder func(action exchange.OrderAction, quantity fixed.Point, opts []exchange.OrderOption) *exchange.Order

// exit cancels an active entry and, when shares are held, submits the exit order.
// Exiting a position that has no fills yet only cancels its entry.
func (p *Position) exit(ctx context.Context, build exitOrderBuilder, opts []exchange.OrderOption) error {
	if p.state == PositionStateClosed {
		return ErrPositionClosed
	}
	if p.IsExitActive() {
		return ErrExitActive
	}

	if p.IsEntryActive() {
		if err := p.strategy.exchange.CancelOrder(ctx, p.entryOrder.Id()); err != nil {
			return fmt.Errorf("unable to cancel entry order: %w", err)
		}
	}
	if p.state != PositionStateOpen || p.shares.IsZero() {
		return nil
	}

	action := exchange.OrderActionSell
	if p.shares.IsNeg() {
		action = exchange.OrderActionBuyToCover
	}
	if p.allOrNone {
		opts = append(opts, exchange.AllOrNone())
	}

	order := build(action, p.shares.Abs(), opts)
	p.exitOrder = order
	if err := p.strategy.submit(ctx, p, order); err != nil {
		p.exitOrder = nil
		return err
	}
	return nil
}

func (p *Position) CancelEntry(ctx context.Context) error {
	if !p.IsEntryActive() {
		return ErrNoActiveEntry
	}
	return p.strategy.exchange.CancelOrder(ctx, p.entryOrder.Id())
}

func (p *Position) CancelExit(ctx context.Context) error {
	if !p.IsExitActive() {
		return ErrNoActiveExit
	}
	return p.strategy.exchange.CancelOrder(ctx, p.exitOrder.Id())
}

// Trade returns the round trip record of a closed position.
func (p *Position) Trade() (common.Trade, bool) {
	if p.state != PositionStateClosed || p.exitQuantity.IsZero() {
		return common.Trade{}, false
	}

	quantity := p.entryOrder.Filled()
	exitPrice := p.exitValue.Div(p.exitQuantity)
	gross := p.tracker.Pnl(exitPrice, false)

	return common.Trade{
		ExecutionId: utility.GetExecutionID(),
		PositionId:  uint64(p.id),
		Symbol:      p.symbol,
		Direction:   common.TradeDirection(p.direction.String()),
		EntryTime:   p.entryTime,
		ExitTime:    p.exitTime,
		Quantity:    quantity,
		EntryPrice:  p.entryOrder.AvgFillPrice(),
		ExitPrice:   exitPrice,
		Commission:  p.tracker.Commissions(),
		GrossProfit: gross,
		NetProfit:   gross.Sub(p.tracker.Commissions()),
	}, true
}

func (p *Position) onOrderEvent(ctx context.Context, event exchange.OrderEvent) {
	switch {
	case event.IsFill():
		p.onFill(ctx, event)
	case event.Type == exchange.OrderEventCanceled:
		p.onCanceled(ctx, event)
	}
}

func (p *Position) onFill(ctx context.Context, event exchange.OrderEvent) {
	info := event.Info
	order := event.Order

	if order.IsBuy() {
		p.shares = p.shares.Add(info.Quantity)
		p.tracker.Buy(info.Quantity, info.Price, info.Commission)
	} else {
		p.shares = p.shares.Sub(info.Quantity)
		p.tracker.Sell(info.Quantity, info.Price, info.Commission)
	}

	if order == p.entryOrder {
		if p.state == PositionStateIdle {
			p.state = PositionStateOpen
			p.entryTime = event.Time
			p.strategy.logger.Debug("position opened",
				zap.String("component", strategyComponentName),
				zap.Uint64("position_id", uint64(p.id)),
				zap.String("symbol", p.symbol),
				zap.Stringer("direction", p.direction))
			p.strategy.callbacks.OnEnter(ctx, p)
		}
		return
	}

	p.exitQuantity = p.exitQuantity.Add(info.Quantity)
	p.exitValue = p.exitValue.Add(info.Quantity.Mul(info.Price))

	if order.IsFilled() && p.shares.IsZero() {
		p.exitTime = event.Time
		p.close(ctx)
		p.strategy.callbacks.OnExit(ctx, p)
	}
}

func (p *Position) onCanceled(ctx context.Context, event exchange.OrderEvent) {
	if event.Order == p.entryOrder {
		if p.shares.IsZero() {
			p.exitTime = event.Time
			p.close(ctx)
			p.strategy.callbacks.OnEnterCanceled(ctx, p)
		}
		return
	}

	p.exitOrder = nil
	p.strategy.callbacks.OnExitCanceled(ctx, p)
}

func (p *Position) close(ctx context.Context) {
	p.state = PositionStateClosed
	p.strategy.logger.Debug("position closed",
		zap.String("component", strategyComponentName),
		zap.Uint64("position_id", uint64(p.id)),
		zap.String("symbol", p.symbol),
		zap.Stringer("pnl", p.tracker.Pnl(p.LastPrice(), true)))
	p.strategy.releasePosition(ctx, p)
}
