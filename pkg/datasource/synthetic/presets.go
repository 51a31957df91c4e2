package synthetic

import (
	"math/rand"
	"time"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

// NewStockBarGenerator returns daily bars of a liquid stock starting at 100.
// Weekends and holidays are generated too; drop them with BusinessDays.
func NewStockBarGenerator(rng *rand.Rand, startTime time.Time, days int64, mu, sigma float64) *BarGenerator {
	const (
		stockStartPrice   = 100
		tradingDaysYear   = 252
		avgVolumeShares   = 1_000_000
		volumeVariability = 0.35
	)

	g := NewBarGenerator(
		rng,
		startTime,
		fixed.FromInt(stockStartPrice, 0),
		fixed.FromFloat64(mu),
		fixed.FromFloat64(sigma),
		fixed.One.DivInt(tradingDaysYear),
		common.FrequencyDay,
		days)

	g.SetVolumeParameters(fixed.FromInt(avgVolumeShares, 0), volumeVariability)
	g.SetPriceDigits(2)
	g.SetVolumeDigits(0)

	return g
}
