package fixed

var (
	NegOne  = FromInt64(-1, 0)
	Zero    = FromInt64(0, 0)
	One     = FromInt64(1, 0)
	Two     = FromInt64(2, 0)
	Ten     = FromInt64(10, 0)
	Hundred = FromInt64(100, 0)

	Half    = FromInt64(5, 1)
	Quarter = FromInt64(25, 2)

	// Sqrt252 annualizes daily ratios over the trading days of a year.
	Sqrt252 = FromInt64(252, 0).Sqrt()
)
