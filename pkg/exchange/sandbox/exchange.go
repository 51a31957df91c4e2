package sandbox

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const (
	exchangeComponentName = "exchange.sandbox"
)

// Exchange is a simulated broker that matches orders against the bars of a feed.
// Orders submitted while a step is processed become eligible on the next bar.
type Exchange struct {
	logger            *zap.Logger
	commission        exchange.Commission
	fillStrategy      FillStrategy
	allowFractions    bool
	allowNegativeCash bool
	useAdjustedValues bool

	feed        *feed.Feed[common.Bar]
	cash        fixed.Point
	nextOrderId exchange.OrderId
	active      map[exchange.OrderId]*exchange.Order
	shares      map[string]fixed.Point
	lastBars    map[string]common.Bar
	currentTime time.Time

	OrderEvent bus.Event[exchange.OrderEvent]
}

func NewExchange(barFeed *feed.Feed[common.Bar], cash fixed.Point, options ...Option) *Exchange {
	e := &Exchange{
		logger:     zap.NewNop(),
		commission: exchange.NoCommission{},
		feed:       barFeed,
		cash:       cash,
		active:     make(map[exchange.OrderId]*exchange.Order),
		shares:     make(map[string]fixed.Point),
		lastBars:   make(map[string]common.Bar),
	}

	for _, option := range options {
		option(e)
	}

	if e.fillStrategy == nil {
		e.fillStrategy = NewDefaultFillStrategy()
	}

	barFeed.NewValuesEvent.Subscribe(e.onBars)

	return e
}

func (e *Exchange) UseAdjustedValues() bool { return e.useAdjustedValues }
func (e *Exchange) AllowFractions() bool    { return e.allowFractions }

func (e *Exchange) Feed() *feed.Feed[common.Bar] { return e.feed }
func (e *Exchange) FillStrategy() FillStrategy   { return e.fillStrategy }
func (e *Exchange) CurrentTime() time.Time       { return e.currentTime }
func (e *Exchange) Cash() fixed.Point            { return e.cash }

// Shares returns the signed position in symbol, negative when short.
func (e *Exchange) Shares(symbol string) fixed.Point {
	return e.shares[symbol]
}

// Positions returns every symbol with a non zero share count.
func (e *Exchange) Positions() map[string]fixed.Point {
	out := make(map[string]fixed.Point, len(e.shares))
	for symbol, shares := range e.shares {
		if !shares.IsZero() {
			out[symbol] = shares
		}
	}
	return out
}

func (e *Exchange) LastBar(symbol string) (common.Bar, bool) {
	bar, ok := e.lastBars[symbol]
	return bar, ok
}

// ActiveOrders returns the registered orders sorted by id.
func (e *Exchange) ActiveOrders() []*exchange.Order {
	ids := slices.Sorted(maps.Keys(e.active))
	out := make([]*exchange.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.active[id])
	}
	return out
}

func (e *Exchange) Order(id exchange.OrderId) (*exchange.Order, bool) {
	order, ok := e.active[id]
	return order, ok
}

// Equity is cash plus every open position marked at its symbol's last close.
func (e *Exchange) Equity() fixed.Point {
	equity := e.cash
	for symbol, shares := range e.shares {
		if shares.IsZero() {
			continue
		}
		bar, ok := e.lastBars[symbol]
		if !ok {
			continue
		}
		equity = equity.Add(shares.Mul(bar.ClosePrice(e.useAdjustedValues)))
	}
	return equity
}

// SubmitOrder validates order, assigns it the next id and registers it.
func (e *Exchange) SubmitOrder(ctx context.Context, order *exchange.Order) error {
	if order.State() != exchange.OrderStateInitial {
		return fmt.Errorf("%w: %s", exchange.ErrOrderNotInitial, order)
	}
	if !order.Quantity().IsPos() {
		return fmt.Errorf("%w: %s", exchange.ErrInvalidQuantity, order.Quantity())
	}
	if !e.feed.HasSymbol(order.Symbol()) {
		return fmt.Errorf("%w: %s", exchange.ErrUnknownSymbol, order.Symbol())
	}
	if !e.allowFractions && !order.Quantity().IsInt() {
		return fmt.Errorf("%w: %s", exchange.ErrFractionalQuantity, order.Quantity())
	}

	e.nextOrderId++
	order.Submit(e.nextOrderId, e.feed.CurrentTime())
	e.active[order.Id()] = order

	e.logger.Debug("order submitted",
		zap.String("component", exchangeComponentName),
		zap.Uint64("order_id", uint64(order.Id())),
		zap.Stringer("type", order.Type()),
		zap.Stringer("action", order.Action()),
		zap.String("symbol", order.Symbol()),
		zap.Stringer("quantity", order.Quantity()))

	e.OrderEvent.Emit(ctx, exchange.NewOrderEvent(order.SubmittedAt(), order, exchange.OrderEventSubmitted, nil))
	return nil
}

// CancelOrder cancels an active order. Nothing changes when an error is returned.
func (e *Exchange) CancelOrder(ctx context.Context, id exchange.OrderId) error {
	if id == 0 || id > e.nextOrderId {
		return fmt.Errorf("%w: %d", exchange.ErrOrderNotFound, id)
	}
	order, ok := e.active[id]
	if !ok {
		return fmt.Errorf("%w: %d", exchange.ErrOrderNotActive, id)
	}

	e.cancel(ctx, order, exchange.ErrOrderCanceled)
	return nil
}

func (e *Exchange) cancel(ctx context.Context, order *exchange.Order, reason error) {
	order.Cancel()
	delete(e.active, order.Id())

	e.logger.Debug("order canceled",
		zap.String("component", exchangeComponentName),
		zap.Uint64("order_id", uint64(order.Id())),
		zap.Error(reason))

	info := &exchange.OrderInfo{Time: e.currentTime, Err: reason}
	e.OrderEvent.Emit(ctx, exchange.NewOrderEvent(e.currentTime, order, exchange.OrderEventCanceled, info))
}

func (e *Exchange) onBars(ctx context.Context, values feed.Values[common.Bar]) {
	e.currentTime = values.Time
	for symbol, bar := range values.Values {
		e.lastBars[symbol] = bar
	}

	e.fillStrategy.OnBars(e, values)

	for _, order := range e.ActiveOrders() {
		if !order.IsActive() {
			continue
		}
		bar, ok := values.Get(order.Symbol())
		if !ok {
			continue
		}
		e.processOrder(ctx, order, bar)
	}
}

func (e *Exchange) processOrder(ctx context.Context, order *exchange.Order, bar common.Bar) {
	if order.State() == exchange.OrderStateSubmitted {
		order.Accept(e.currentTime)
		e.OrderEvent.Emit(ctx, exchange.NewOrderEvent(e.currentTime, order, exchange.OrderEventAccepted, nil))
		// A handler may have canceled it.
		if !order.IsActive() {
			return
		}
	}

	if fill := e.fillStrategy.Fill(e, order, bar); fill != nil {
		if err := e.commit(ctx, order, fill); err != nil {
			e.logger.Info("fill rejected",
				zap.String("component", exchangeComponentName),
				zap.Uint64("order_id", uint64(order.Id())),
				zap.Stringer("price", fill.Price),
				zap.Stringer("quantity", fill.Quantity),
				zap.Error(err))
		}
	}

	if order.IsActive() && !order.GoodTillCanceled() && e.lastBarOfSession() {
		e.cancel(ctx, order, exchange.ErrOrderExpired)
	}
}

// lastBarOfSession reports whether the current step closes the trading day.
// Daily or coarser bars close it with every step; intraday bars when the next
// pending row falls on another calendar day or no rows are left.
func (e *Exchange) lastBarOfSession() bool {
	if e.feed.Frequency() >= common.FrequencyDay {
		return true
	}
	next := e.feed.PeekTime()
	if next.IsZero() {
		return true
	}
	ny, nm, nd := next.Date()
	cy, cm, cd := e.currentTime.Date()
	return ny != cy || nm != cm || nd != cd
}

func (e *Exchange) commit(ctx context.Context, order *exchange.Order, fill *Fill) error {
	commission := e.commission.Calculate(order, fill.Price, fill.Quantity)

	cost := fill.Price.Mul(fill.Quantity)
	var cashDelta, sharesDelta fixed.Point
	if order.IsBuy() {
		cashDelta = cost.Add(commission).Neg()
		sharesDelta = fill.Quantity
	} else {
		cashDelta = cost.Sub(commission)
		sharesDelta = fill.Quantity.Neg()
	}

	resultingCash := e.cash.Add(cashDelta)
	if resultingCash.IsNeg() && !e.allowNegativeCash {
		return fmt.Errorf("%w: need %s, have %s", exchange.ErrInsufficientCash, cashDelta.Neg(), e.cash)
	}

	info := exchange.OrderInfo{
		Price:      fill.Price,
		Quantity:   fill.Quantity,
		Commission: commission,
		Time:       e.currentTime,
	}
	order.AddExecution(info)

	e.cash = resultingCash
	e.shares[order.Symbol()] = e.shares[order.Symbol()].Add(sharesDelta)
	e.fillStrategy.OnOrderFilled(e, order, info)

	eventType := exchange.OrderEventPartiallyFilled
	if order.IsFilled() {
		eventType = exchange.OrderEventFilled
		delete(e.active, order.Id())
	}

	e.logger.Debug("order executed",
		zap.String("component", exchangeComponentName),
		zap.Uint64("order_id", uint64(order.Id())),
		zap.Stringer("event", eventType),
		zap.Stringer("price", info.Price),
		zap.Stringer("quantity", info.Quantity),
		zap.Stringer("commission", info.Commission),
		zap.Stringer("cash", e.cash))

	e.OrderEvent.Emit(ctx, exchange.NewOrderEvent(e.currentTime, order, eventType, &info))
	return nil
}
