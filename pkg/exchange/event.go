package exchange

import (
	"fmt"
	"time"
)

type OrderEventType uint8

const (
	OrderEventSubmitted OrderEventType = iota
	OrderEventAccepted
	OrderEventCanceled
	OrderEventPartiallyFilled
	OrderEventFilled
)

func (t OrderEventType) String() string {
	switch t {
	case OrderEventSubmitted:
		return "submitted"
	case OrderEventAccepted:
		return "accepted"
	case OrderEventCanceled:
		return "canceled"
	case OrderEventPartiallyFilled:
		return "partially_filled"
	case OrderEventFilled:
		return "filled"
	default:
		return fmt.Sprintf("order_event(%d)", uint8(t))
	}
}

func (t OrderEventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// OrderEvent announces one order state transition. Info is set for fills and cancellations.
type OrderEvent struct {
	Time    time.Time      `json:"ts"`
	OrderId OrderId        `json:"order_id"`
	Type    OrderEventType `json:"type"`
	Order   *Order         `json:"-"`
	Info    *OrderInfo     `json:"info,omitempty"`
}

func (e OrderEvent) IsFill() bool {
	return e.Type == OrderEventPartiallyFilled || e.Type == OrderEventFilled
}

func NewOrderEvent(t time.Time, order *Order, typ OrderEventType, info *OrderInfo) OrderEvent {
	return OrderEvent{
		Time:    t,
		OrderId: order.Id(),
		Type:    typ,
		Order:   order,
		Info:    info,
	}
}
