package risk

import "github.com/peter-kozarec/barsim/pkg/utility/fixed"

// DrawdownMultiplierFunc maps the current drawdown in percent to a size multiplier.
type DrawdownMultiplierFunc func(drawdown fixed.Point) fixed.Point

// DefaultDrawdownMultiplier sizes up slightly near the equity peak and stops
// trading beyond a 15% drawdown.
func DefaultDrawdownMultiplier() DrawdownMultiplierFunc {
	var (
		lowDrawdownThreshold     = fixed.FromInt(2, 0)
		normalDrawdownThreshold  = fixed.FromInt(5, 0)
		highDrawdownThreshold    = fixed.FromInt(10, 0)
		extremeDrawdownThreshold = fixed.FromInt(15, 0)

		noDrawdownMultiplier     = fixed.FromFloat64(1.2)
		lowDrawdownMultiplier    = fixed.One
		normalDrawdownMultiplier = fixed.FromFloat64(0.7)
		highDrawdownMultiplier   = fixed.Half
	)

	return func(drawdown fixed.Point) fixed.Point {
		switch {
		case drawdown.Lte(lowDrawdownThreshold):
			return noDrawdownMultiplier
		case drawdown.Lte(normalDrawdownThreshold):
			return lowDrawdownMultiplier
		case drawdown.Lte(highDrawdownThreshold):
			return normalDrawdownMultiplier
		case drawdown.Lte(extremeDrawdownThreshold):
			return highDrawdownMultiplier
		default:
			return fixed.Zero
		}
	}
}
