package strategy

import (
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

// Tracker accumulates the cash flows of one position. Buys take cash, sells return it,
// and open shares are marked at the price handed to Pnl and Return.
type Tracker struct {
	shares      fixed.Point
	cash        fixed.Point
	commissions fixed.Point
	cost        fixed.Point
}

func (t *Tracker) Shares() fixed.Point      { return t.shares }
func (t *Tracker) Cash() fixed.Point        { return t.cash }
func (t *Tracker) Commissions() fixed.Point { return t.commissions }

// Cost is the capital committed over the life of the position, the base of Return.
func (t *Tracker) Cost() fixed.Point { return t.cost }

func (t *Tracker) Buy(quantity, price, commission fixed.Point) {
	t.update(quantity, price, commission)
}

func (t *Tracker) Sell(quantity, price, commission fixed.Point) {
	t.update(quantity.Neg(), price, commission)
}

func (t *Tracker) update(quantity, price, commission fixed.Point) {
	t.cost = t.cost.Add(t.addedCost(quantity, price))
	t.cash = t.cash.Sub(quantity.Mul(price))
	t.shares = t.shares.Add(quantity)
	t.commissions = t.commissions.Add(commission)
}

// addedCost is the value of the part of quantity that grows the exposure.
func (t *Tracker) addedCost(quantity, price fixed.Point) fixed.Point {
	switch {
	case t.shares.IsZero():
		return quantity.Abs().Mul(price)
	case t.shares.IsPos():
		if quantity.IsPos() {
			return quantity.Mul(price)
		}
		if rest := t.shares.Add(quantity); rest.IsNeg() {
			return rest.Abs().Mul(price)
		}
	default:
		if quantity.IsNeg() {
			return quantity.Abs().Mul(price)
		}
		if rest := t.shares.Add(quantity); rest.IsPos() {
			return rest.Mul(price)
		}
	}
	return fixed.Zero
}

func (t *Tracker) Pnl(price fixed.Point, includeCommissions bool) fixed.Point {
	pnl := t.cash.Add(t.shares.Mul(price))
	if includeCommissions {
		pnl = pnl.Sub(t.commissions)
	}
	return pnl
}

// Return is Pnl relative to Cost, zero before anything was traded.
func (t *Tracker) Return(price fixed.Point, includeCommissions bool) fixed.Point {
	if t.cost.IsZero() {
		return fixed.Zero
	}
	return t.Pnl(price, includeCommissions).Div(t.cost)
}
