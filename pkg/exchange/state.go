package exchange

import "fmt"

type OrderState uint8

const (
	OrderStateInitial OrderState = iota
	OrderStateSubmitted
	OrderStateAccepted
	OrderStateCanceled
	OrderStatePartiallyFilled
	OrderStateFilled
)

func (s OrderState) String() string {
	switch s {
	case OrderStateInitial:
		return "initial"
	case OrderStateSubmitted:
		return "submitted"
	case OrderStateAccepted:
		return "accepted"
	case OrderStateCanceled:
		return "canceled"
	case OrderStatePartiallyFilled:
		return "partially_filled"
	case OrderStateFilled:
		return "filled"
	default:
		return fmt.Sprintf("order_state(%d)", uint8(s))
	}
}

func (s OrderState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderState) IsTerminal() bool {
	return s == OrderStateFilled || s == OrderStateCanceled
}

// IsActive reports whether the order lives in an exchange registry.
func (s OrderState) IsActive() bool {
	return s == OrderStateSubmitted || s == OrderStateAccepted || s == OrderStatePartiallyFilled
}

var transitions = map[OrderState][]OrderState{
	OrderStateInitial:         {OrderStateSubmitted},
	OrderStateSubmitted:       {OrderStateAccepted, OrderStateCanceled},
	OrderStateAccepted:        {OrderStatePartiallyFilled, OrderStateFilled, OrderStateCanceled},
	OrderStatePartiallyFilled: {OrderStatePartiallyFilled, OrderStateFilled, OrderStateCanceled},
}

func CanTransition(from, to OrderState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
