package sandbox

import (
	"time"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var defaultVolumeLimit = fixed.Quarter

// Broker exposes the exchange settings a fill strategy depends on.
type Broker interface {
	UseAdjustedValues() bool
	AllowFractions() bool
	CurrentTime() time.Time
}

// Fill is a proposed execution. A nil *Fill means the order does not fill on this bar.
type Fill struct {
	Price    fixed.Point
	Quantity fixed.Point
}

// FillStrategy matches active orders against bars.
type FillStrategy interface {
	// OnBars runs once per step before any order is matched.
	OnBars(broker Broker, values feed.Values[common.Bar])
	// OnOrderFilled runs after an execution was committed.
	OnOrderFilled(broker Broker, order *exchange.Order, info exchange.OrderInfo)
	Fill(broker Broker, order *exchange.Order, bar common.Bar) *Fill
}

type FillOption func(*DefaultFillStrategy)

// WithVolumeLimit caps the share of each bar volume orders may consume, 0.25 by default.
func WithVolumeLimit(limit fixed.Point) FillOption {
	return func(s *DefaultFillStrategy) {
		s.volumeLimit = limit
	}
}

func WithSlippage(slippage exchange.Slippage) FillOption {
	return func(s *DefaultFillStrategy) {
		s.slippage = slippage
	}
}

// DefaultFillStrategy fills market and stop orders at the open (or close), limit orders at
// the better of the open and the limit, and shares a per-bar volume budget across orders.
type DefaultFillStrategy struct {
	volumeLimit fixed.Point
	slippage    exchange.Slippage

	volumeLeft map[string]fixed.Point
	volumeUsed map[string]fixed.Point
}

func NewDefaultFillStrategy(options ...FillOption) *DefaultFillStrategy {
	s := &DefaultFillStrategy{
		volumeLimit: defaultVolumeLimit,
		slippage:    exchange.NoSlippage{},
		volumeLeft:  make(map[string]fixed.Point),
		volumeUsed:  make(map[string]fixed.Point),
	}

	for _, option := range options {
		option(s)
	}

	return s
}

func (s *DefaultFillStrategy) VolumeLeft(symbol string) fixed.Point { return s.volumeLeft[symbol] }
func (s *DefaultFillStrategy) VolumeUsed(symbol string) fixed.Point { return s.volumeUsed[symbol] }

func (s *DefaultFillStrategy) OnBars(broker Broker, values feed.Values[common.Bar]) {
	for symbol, bar := range values.Values {
		left := bar.Volume.Mul(s.volumeLimit)
		if !broker.AllowFractions() {
			left = left.Trunc(0)
		}
		s.volumeLeft[symbol] = left
		s.volumeUsed[symbol] = fixed.Zero
	}
}

func (s *DefaultFillStrategy) OnOrderFilled(_ Broker, order *exchange.Order, info exchange.OrderInfo) {
	symbol := order.Symbol()
	s.volumeLeft[symbol] = fixed.Max(fixed.Zero, s.volumeLeft[symbol].Sub(info.Quantity))
	s.volumeUsed[symbol] = s.volumeUsed[symbol].Add(info.Quantity)
}

func (s *DefaultFillStrategy) Fill(broker Broker, order *exchange.Order, bar common.Bar) *Fill {
	switch order.Type() {
	case exchange.OrderTypeMarket:
		return s.fillMarket(broker, order, bar)
	case exchange.OrderTypeLimit:
		return s.fillLimit(broker, order, bar)
	case exchange.OrderTypeStop:
		return s.fillStop(broker, order, bar)
	case exchange.OrderTypeStopLimit:
		return s.fillStopLimit(broker, order, bar)
	default:
		return nil
	}
}

func (s *DefaultFillStrategy) fillMarket(broker Broker, order *exchange.Order, bar common.Bar) *Fill {
	quantity := s.fillSize(order)
	if quantity.IsZero() {
		return nil
	}

	// Only the bar the order was accepted on fills at the open.
	price := bar.ClosePrice(broker.UseAdjustedValues())
	if !order.FillOnClose() && order.AcceptedAt().Equal(broker.CurrentTime()) {
		price = bar.OpenPrice(broker.UseAdjustedValues())
	}
	price = s.slippage.AdjustPrice(order, bar, price, quantity, s.volumeUsed[order.Symbol()])

	return &Fill{Price: price, Quantity: quantity}
}

func (s *DefaultFillStrategy) fillLimit(broker Broker, order *exchange.Order, bar common.Bar) *Fill {
	price, ok := limitPriceTrigger(order.Action(), order.LimitPrice(), broker.UseAdjustedValues(), bar)
	if !ok {
		return nil
	}

	quantity := s.fillSize(order)
	if quantity.IsZero() {
		return nil
	}

	return &Fill{Price: price, Quantity: quantity}
}

func (s *DefaultFillStrategy) fillStop(broker Broker, order *exchange.Order, bar common.Bar) *Fill {
	var (
		trigger   fixed.Point
		triggered bool
	)

	if !order.StopHit() {
		trigger, triggered = stopPriceTrigger(order.Action(), order.StopPrice(), broker.UseAdjustedValues(), bar)
		order.SetStopHit(triggered)
	}
	if !order.StopHit() {
		return nil
	}

	quantity := s.fillSize(order)
	if quantity.IsZero() {
		return nil
	}

	// Gaps are filled at the trigger price on the trigger bar and at the open afterwards.
	price := bar.OpenPrice(broker.UseAdjustedValues())
	if triggered {
		price = trigger
	}
	price = s.slippage.AdjustPrice(order, bar, price, quantity, s.volumeUsed[order.Symbol()])

	return &Fill{Price: price, Quantity: quantity}
}

func (s *DefaultFillStrategy) fillStopLimit(broker Broker, order *exchange.Order, bar common.Bar) *Fill {
	var (
		trigger   fixed.Point
		triggered bool
	)

	if !order.StopHit() {
		trigger, triggered = stopPriceTrigger(order.Action(), order.StopPrice(), broker.UseAdjustedValues(), bar)
		order.SetStopHit(triggered)
	}
	if !order.StopHit() {
		return nil
	}

	price, ok := limitPriceTrigger(order.Action(), order.LimitPrice(), broker.UseAdjustedValues(), bar)
	if !ok {
		return nil
	}

	quantity := s.fillSize(order)
	if quantity.IsZero() {
		return nil
	}

	// On the trigger bar the stop price is the earliest price the limit can apply from.
	if triggered {
		if order.IsBuy() {
			price = fixed.Min(trigger, order.LimitPrice())
		} else {
			price = fixed.Max(trigger, order.LimitPrice())
		}
	}

	return &Fill{Price: price, Quantity: quantity}
}

func (s *DefaultFillStrategy) fillSize(order *exchange.Order) fixed.Point {
	available := s.volumeLeft[order.Symbol()]
	remaining := order.Remaining()

	if order.AllOrNone() {
		if remaining.Lte(available) {
			return remaining
		}
		return fixed.Zero
	}
	return fixed.Min(remaining, available)
}

// limitPriceTrigger returns the fill price of a limit order on bar, if it fills.
func limitPriceTrigger(action exchange.OrderAction, limit fixed.Point, adjusted bool, bar common.Bar) (fixed.Point, bool) {
	open := bar.OpenPrice(adjusted)

	if action.IsBuy() {
		if bar.LowPrice(adjusted).Lte(limit) {
			return fixed.Min(open, limit), true
		}
		return fixed.Point{}, false
	}

	if bar.HighPrice(adjusted).Gte(limit) {
		return fixed.Max(open, limit), true
	}
	return fixed.Point{}, false
}

// stopPriceTrigger returns the price a stop order triggers at on bar, if it triggers.
func stopPriceTrigger(action exchange.OrderAction, stop fixed.Point, adjusted bool, bar common.Bar) (fixed.Point, bool) {
	open := bar.OpenPrice(adjusted)

	if action.IsBuy() {
		if bar.HighPrice(adjusted).Gte(stop) {
			return fixed.Max(open, stop), true
		}
		return fixed.Point{}, false
	}

	if bar.LowPrice(adjusted).Lte(stop) {
		return fixed.Min(open, stop), true
	}
	return fixed.Point{}, false
}
