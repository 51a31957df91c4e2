package exchange

import (
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var defaultPriceImpact = fixed.FromInt64(1, 1)

// Slippage adjusts a fill price given the volume already consumed on the bar.
type Slippage interface {
	AdjustPrice(order *Order, bar common.Bar, price, quantity, volumeUsed fixed.Point) fixed.Point
}

type NoSlippage struct{}

func (NoSlippage) AdjustPrice(_ *Order, _ common.Bar, price, _, _ fixed.Point) fixed.Point {
	return price
}

// VolumeShareSlippage moves the price against the order by
// PriceImpact * (share of the bar volume taken)^2.
type VolumeShareSlippage struct {
	PriceImpact fixed.Point
}

func NewVolumeShareSlippage() VolumeShareSlippage {
	return VolumeShareSlippage{PriceImpact: defaultPriceImpact}
}

func (s VolumeShareSlippage) AdjustPrice(order *Order, bar common.Bar, price, quantity, volumeUsed fixed.Point) fixed.Point {
	if !bar.Volume.IsPos() {
		return price
	}

	volumeShare := volumeUsed.Add(quantity).Div(bar.Volume)
	impact := volumeShare.Mul(volumeShare).Mul(s.PriceImpact)

	if order.IsBuy() {
		return price.Mul(fixed.One.Add(impact))
	}
	return price.Mul(fixed.One.Sub(impact))
}
