package synthetic

import (
	"errors"
	"math/rand"
	"time"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

const (
	defaultIntrabarSteps = 4
)

var (
	ErrEof = errors.New("EOF")
)

// BarGenerator produces OHLCV bars from a geometric Brownian motion price path.
// Every bar samples intrabarSteps points of the path; the open is the previous close.
type BarGenerator struct {
	rng *rand.Rand

	frequency common.Frequency
	interval  time.Duration
	steps     int64
	t         int64

	deltaLogPre1 fixed.Point
	deltaLogPre2 fixed.Point

	intrabarSteps  int
	avgVolume      fixed.Point
	volumeVariance float64

	normPriceDigits  int
	normVolumeDigits int

	lastTime  time.Time
	lastPrice fixed.Point
}

// NewBarGenerator emits steps bars, the first one at startTime. mu and sigma are
// annualized, deltaT is the bar length in years.
func NewBarGenerator(
	rng *rand.Rand,
	startTime time.Time,
	startPrice, mu, sigma, deltaT fixed.Point,
	frequency common.Frequency,
	steps int64) *BarGenerator {

	subDeltaT := deltaT.DivInt(defaultIntrabarSteps)

	return &BarGenerator{
		rng: rng,

		frequency: frequency,
		interval:  frequency.Duration(),
		steps:     steps,

		// Pre-calculated values for GBM, per intrabar step
		deltaLogPre1: mu.Sub(sigma.Mul(sigma).Mul(fixed.Half)).Mul(subDeltaT),
		deltaLogPre2: sigma.Mul(subDeltaT.Sqrt()),

		intrabarSteps:  defaultIntrabarSteps,
		avgVolume:      fixed.FromInt64(100_000, 0),
		volumeVariance: 0.3,

		normPriceDigits:  2,
		normVolumeDigits: 0,

		lastTime:  startTime,
		lastPrice: startPrice,
	}
}

func (g *BarGenerator) SetVolumeParameters(avgVolume fixed.Point, variance float64) {
	g.avgVolume = avgVolume
	g.volumeVariance = variance
}

func (g *BarGenerator) SetPriceDigits(digits int) {
	g.normPriceDigits = digits
}

func (g *BarGenerator) SetVolumeDigits(digits int) {
	g.normVolumeDigits = digits
}

func (g *BarGenerator) GetNext() (common.Row[common.Bar], error) {
	if g.t >= g.steps {
		return common.Row[common.Bar]{}, ErrEof
	}

	open := g.lastPrice.Rescale(g.normPriceDigits)
	high, low := open, open

	for range g.intrabarSteps {
		z := g.rng.NormFloat64()
		deltaLog := g.deltaLogPre1.Add(g.deltaLogPre2.Mul(fixed.FromFloat64(z)))
		g.lastPrice = g.lastPrice.Mul(deltaLog.Exp())

		price := g.lastPrice.Rescale(g.normPriceDigits)
		high = fixed.Max(high, price)
		low = fixed.Min(low, price)
	}
	closePrice := g.lastPrice.Rescale(g.normPriceDigits)

	bar, err := common.NewBar(open, high, low, closePrice, g.generateVolume(), fixed.Zero, g.frequency)
	if err != nil {
		return common.Row[common.Bar]{}, err
	}

	row := common.NewRow(g.lastTime, bar)
	g.lastTime = g.lastTime.Add(g.interval)
	g.t++

	return row, nil
}

// ReadAll generates the remaining bars.
func (g *BarGenerator) ReadAll() ([]common.Row[common.Bar], error) {
	rows := make([]common.Row[common.Bar], 0, max(g.steps-g.t, 0))
	for {
		row, err := g.GetNext()
		if errors.Is(err, ErrEof) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// generateVolume draws a log-normal multiple of the average volume.
func (g *BarGenerator) generateVolume() fixed.Point {
	variation := g.rng.NormFloat64() * g.volumeVariance
	volume := g.avgVolume.Mul(fixed.FromFloat64(variation).Exp()).Rescale(g.normVolumeDigits)
	if !volume.IsPos() {
		return fixed.One
	}
	return volume
}
