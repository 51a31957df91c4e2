package exchange

import (
	"fmt"
	"slices"
	"time"

	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

type OrderId uint64

type OrderType uint8

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStop
	OrderTypeStopLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeStop:
		return "stop"
	case OrderTypeStopLimit:
		return "stop_limit"
	default:
		return fmt.Sprintf("order_type(%d)", uint8(t))
	}
}

type OrderAction uint8

const (
	OrderActionBuy OrderAction = iota
	OrderActionBuyToCover
	OrderActionSell
	OrderActionSellShort
)

func (a OrderAction) String() string {
	switch a {
	case OrderActionBuy:
		return "buy"
	case OrderActionBuyToCover:
		return "buy_to_cover"
	case OrderActionSell:
		return "sell"
	case OrderActionSellShort:
		return "sell_short"
	default:
		return fmt.Sprintf("order_action(%d)", uint8(a))
	}
}

func (a OrderAction) IsBuy() bool  { return a == OrderActionBuy || a == OrderActionBuyToCover }
func (a OrderAction) IsSell() bool { return a == OrderActionSell || a == OrderActionSellShort }

// OrderInfo is the record of one execution, or of a cancellation when Err is set.
type OrderInfo struct {
	Price      fixed.Point `json:"price"`
	Quantity   fixed.Point `json:"quantity"`
	Commission fixed.Point `json:"commission"`
	Time       time.Time   `json:"ts"`
	Err        error       `json:"-"`
}

type OrderOption func(*Order)

// GoodTillCanceled keeps the order active across sessions.
func GoodTillCanceled() OrderOption {
	return func(o *Order) { o.goodTillCanceled = true }
}

// AllOrNone forbids partial fills.
func AllOrNone() OrderOption {
	return func(o *Order) { o.allOrNone = true }
}

// FillOnClose makes a market order fill at the close instead of the open.
func FillOnClose() OrderOption {
	return func(o *Order) { o.fillOnClose = true }
}

// Order is owned by the exchange once submitted; only the exchange changes its state.
type Order struct {
	id         OrderId
	typ        OrderType
	action     OrderAction
	symbol     string
	quantity   fixed.Point
	stopPrice  fixed.Point
	limitPrice fixed.Point

	goodTillCanceled bool
	allOrNone        bool
	fillOnClose      bool
	stopHit          bool

	state        OrderState
	filled       fixed.Point
	avgFillPrice fixed.Point
	commissions  fixed.Point
	submittedAt  time.Time
	acceptedAt   time.Time
	executions   []OrderInfo
}

func newOrder(typ OrderType, action OrderAction, symbol string, quantity fixed.Point, opts []OrderOption) *Order {
	o := &Order{
		typ:      typ,
		action:   action,
		symbol:   symbol,
		quantity: quantity,
		state:    OrderStateInitial,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func NewMarketOrder(action OrderAction, symbol string, quantity fixed.Point, opts ...OrderOption) *Order {
	return newOrder(OrderTypeMarket, action, symbol, quantity, opts)
}

func NewLimitOrder(action OrderAction, symbol string, limitPrice, quantity fixed.Point, opts ...OrderOption) *Order {
	o := newOrder(OrderTypeLimit, action, symbol, quantity, opts)
	o.limitPrice = limitPrice
	return o
}

func NewStopOrder(action OrderAction, symbol string, stopPrice, quantity fixed.Point, opts ...OrderOption) *Order {
	o := newOrder(OrderTypeStop, action, symbol, quantity, opts)
	o.stopPrice = stopPrice
	return o
}

func NewStopLimitOrder(action OrderAction, symbol string, stopPrice, limitPrice, quantity fixed.Point, opts ...OrderOption) *Order {
	o := newOrder(OrderTypeStopLimit, action, symbol, quantity, opts)
	o.stopPrice = stopPrice
	o.limitPrice = limitPrice
	return o
}

func (o *Order) Id() OrderId             { return o.id }
func (o *Order) Type() OrderType         { return o.typ }
func (o *Order) Action() OrderAction     { return o.action }
func (o *Order) Symbol() string          { return o.symbol }
func (o *Order) Quantity() fixed.Point   { return o.quantity }
func (o *Order) StopPrice() fixed.Point  { return o.stopPrice }
func (o *Order) LimitPrice() fixed.Point { return o.limitPrice }
func (o *Order) State() OrderState       { return o.state }
func (o *Order) Filled() fixed.Point     { return o.filled }

func (o *Order) Commissions() fixed.Point { return o.commissions }

// AvgFillPrice is the volume weighted price of all executions, zero before the first one.
func (o *Order) AvgFillPrice() fixed.Point { return o.avgFillPrice }
func (o *Order) Remaining() fixed.Point    { return o.quantity.Sub(o.filled) }

func (o *Order) GoodTillCanceled() bool { return o.goodTillCanceled }
func (o *Order) AllOrNone() bool        { return o.allOrNone }
func (o *Order) FillOnClose() bool      { return o.fillOnClose }
func (o *Order) StopHit() bool          { return o.stopHit }

func (o *Order) SubmittedAt() time.Time { return o.submittedAt }
func (o *Order) AcceptedAt() time.Time  { return o.acceptedAt }

func (o *Order) IsBuy() bool      { return o.action.IsBuy() }
func (o *Order) IsSell() bool     { return o.action.IsSell() }
func (o *Order) IsActive() bool   { return o.state.IsActive() }
func (o *Order) IsFilled() bool   { return o.state == OrderStateFilled }
func (o *Order) IsCanceled() bool { return o.state == OrderStateCanceled }

// Executions returns the fills recorded so far.
func (o *Order) Executions() []OrderInfo {
	return slices.Clone(o.executions)
}

func (o *Order) LastExecution() (OrderInfo, bool) {
	if len(o.executions) == 0 {
		return OrderInfo{}, false
	}
	return o.executions[len(o.executions)-1], true
}

// SwitchState moves the order to next. An illegal transition is a broken invariant and panics.
func (o *Order) SwitchState(next OrderState) {
	if !CanTransition(o.state, next) {
		panic(fmt.Sprintf("exchange: illegal order %d state transition %s -> %s", o.id, o.state, next))
	}
	o.state = next
}

// Submit assigns the exchange id and moves Initial -> Submitted.
func (o *Order) Submit(id OrderId, t time.Time) {
	o.SwitchState(OrderStateSubmitted)
	o.id = id
	o.submittedAt = t
}

func (o *Order) Accept(t time.Time) {
	o.SwitchState(OrderStateAccepted)
	o.acceptedAt = t
}

func (o *Order) Cancel() {
	o.SwitchState(OrderStateCanceled)
}

func (o *Order) SetStopHit(hit bool) {
	o.stopHit = hit
}

// AddExecution records a fill and moves the order to PartiallyFilled or Filled.
func (o *Order) AddExecution(info OrderInfo) {
	if !info.Quantity.IsPos() || info.Quantity.Gt(o.Remaining()) {
		panic(fmt.Sprintf("exchange: invalid fill quantity %s for order %d with %s remaining", info.Quantity, o.id, o.Remaining()))
	}

	filled := o.filled.Add(info.Quantity)
	if filled.Eq(o.quantity) {
		o.SwitchState(OrderStateFilled)
	} else {
		o.SwitchState(OrderStatePartiallyFilled)
	}

	o.avgFillPrice = o.avgFillPrice.Mul(o.filled).Add(info.Price.Mul(info.Quantity)).Div(filled)
	o.filled = filled
	o.commissions = o.commissions.Add(info.Commission)
	o.executions = append(o.executions, info)
}

func (o *Order) String() string {
	return fmt.Sprintf("order{id=%d type=%s action=%s symbol=%s qty=%s state=%s filled=%s}",
		o.id, o.typ, o.action, o.symbol, o.quantity, o.state, o.filled)
}
