package risk

import "github.com/peter-kozarec/barsim/pkg/utility/fixed"

var (
	kellySafety        = fixed.Quarter
	kellyMaxFraction   = fixed.Quarter
	kellyMinMultiplier = fixed.FromFloat64(0.3)
	kellyMaxMultiplier = fixed.FromInt(3, 0)
)

// KellySize scales baseSize by a quarter Kelly fraction relative to the base risk
// percentage. Without an edge the size is halved.
func KellySize(baseSize, winRate, avgWinLoss, baseRiskPercentage fixed.Point) fixed.Point {
	// f = p - q/b
	if !avgWinLoss.IsPos() || !winRate.IsPos() || winRate.Gt(fixed.One) || !baseRiskPercentage.IsPos() {
		return baseSize.Mul(fixed.Half)
	}

	q := fixed.One.Sub(winRate)
	kelly := winRate.Sub(q.Div(avgWinLoss))
	if !kelly.IsPos() {
		return baseSize.Mul(fixed.Half)
	}

	fraction := fixed.Min(kelly.Mul(kellySafety), kellyMaxFraction)
	multiplier := fraction.Div(baseRiskPercentage.DivInt(100))
	multiplier = fixed.Max(kellyMinMultiplier, fixed.Min(multiplier, kellyMaxMultiplier))

	return baseSize.Mul(multiplier)
}
