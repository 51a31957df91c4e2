package exchange

import (
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

// Commission computes the fee charged for one execution.
type Commission interface {
	Calculate(order *Order, price, quantity fixed.Point) fixed.Point
}

type NoCommission struct{}

func (NoCommission) Calculate(*Order, fixed.Point, fixed.Point) fixed.Point {
	return fixed.Zero
}

// FixedPerTrade charges Amount once per order, on its first execution.
type FixedPerTrade struct {
	Amount fixed.Point
}

func (c FixedPerTrade) Calculate(order *Order, _, _ fixed.Point) fixed.Point {
	if len(order.executions) == 0 {
		return c.Amount
	}
	return fixed.Zero
}

// TradePercentage charges a fraction of the traded value, 0.01 being 1%.
type TradePercentage struct {
	Percentage fixed.Point
}

func (c TradePercentage) Calculate(_ *Order, price, quantity fixed.Point) fixed.Point {
	return price.Mul(quantity).Mul(c.Percentage)
}
