package common

import (
	"errors"
	"fmt"

	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var (
	ErrInvalidBar       = errors.New("invalid bar")
	ErrHighBelowLow     = fmt.Errorf("%w: high < low", ErrInvalidBar)
	ErrHighBelowOpen    = fmt.Errorf("%w: high < open", ErrInvalidBar)
	ErrHighBelowClose   = fmt.Errorf("%w: high < close", ErrInvalidBar)
	ErrLowAboveOpen     = fmt.Errorf("%w: low > open", ErrInvalidBar)
	ErrLowAboveClose    = fmt.Errorf("%w: low > close", ErrInvalidBar)
	ErrNegativeVolume   = fmt.Errorf("%w: negative volume", ErrInvalidBar)
	ErrNegativeAdjClose = fmt.Errorf("%w: negative adjusted close", ErrInvalidBar)
)

// Bar is an OHLCV aggregate for one symbol over one interval. Construct it with NewBar
// so the price relations are validated.
type Bar struct {
	Open      fixed.Point `json:"open"`
	High      fixed.Point `json:"high"`
	Low       fixed.Point `json:"low"`
	Close     fixed.Point `json:"close"`
	AdjClose  fixed.Point `json:"adj_close"`
	Volume    fixed.Point `json:"volume"`
	Frequency Frequency   `json:"frequency"`
}

// NewBar validates the OHLC relations. A zero adjClose defaults to close.
func NewBar(open, high, low, close, volume, adjClose fixed.Point, frequency Frequency) (Bar, error) {
	switch {
	case high.Lt(low):
		return Bar{}, ErrHighBelowLow
	case high.Lt(open):
		return Bar{}, ErrHighBelowOpen
	case high.Lt(close):
		return Bar{}, ErrHighBelowClose
	case low.Gt(open):
		return Bar{}, ErrLowAboveOpen
	case low.Gt(close):
		return Bar{}, ErrLowAboveClose
	case volume.IsNeg():
		return Bar{}, ErrNegativeVolume
	case adjClose.IsNeg():
		return Bar{}, ErrNegativeAdjClose
	}

	if adjClose.IsZero() {
		adjClose = close
	}

	return Bar{
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		AdjClose:  adjClose,
		Volume:    volume,
		Frequency: frequency,
	}, nil
}

func MustNewBar(open, high, low, close, volume, adjClose fixed.Point, frequency Frequency) Bar {
	bar, err := NewBar(open, high, low, close, volume, adjClose, frequency)
	if err != nil {
		panic(err)
	}
	return bar
}

func (b Bar) OpenPrice(adjusted bool) fixed.Point  { return b.adjust(b.Open, adjusted) }
func (b Bar) HighPrice(adjusted bool) fixed.Point  { return b.adjust(b.High, adjusted) }
func (b Bar) LowPrice(adjusted bool) fixed.Point   { return b.adjust(b.Low, adjusted) }
func (b Bar) ClosePrice(adjusted bool) fixed.Point { return b.adjust(b.Close, adjusted) }

// Typical returns (high + low + close) / 3.
func (b Bar) Typical(adjusted bool) fixed.Point {
	return b.HighPrice(adjusted).Add(b.LowPrice(adjusted)).Add(b.ClosePrice(adjusted)).DivInt(3)
}

func (b Bar) adjust(price fixed.Point, adjusted bool) fixed.Point {
	if !adjusted || b.Close.IsZero() || b.AdjClose.IsZero() || b.AdjClose.Eq(b.Close) {
		return price
	}
	return b.AdjClose.Mul(price).Div(b.Close)
}
