package indicators

import (
	"math"

	"spot_trader/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// BollingerPeriod is the trailing window of the bands.
	BollingerPeriod = 21
	// BollingerFactor is the standard deviation multiplier.
	BollingerFactor = 2.0
)

// BollingerBands computes bands over a sliding window using a running sum and sum of squares.
// Only candles with a defined band (index >= period-1) are returned.
func BollingerBands(candles []models.Candle, period int, factor float64) []models.BollingerCandle {
	if period <= 0 || len(candles) < period {
		return nil
	}

	out := make([]models.BollingerCandle, 0, len(candles)-period+1)
	var sum, sumSq float64
	n := float64(period)

	for i, c := range candles {
		sum += c.Close
		sumSq += c.Close * c.Close
		if i >= period {
			old := candles[i-period].Close
			sum -= old
			sumSq -= old * old
		}
		if i < period-1 {
			continue
		}

		avg := sum / n
		variance := sumSq/n - avg*avg
		// Float cancellation can push a flat window slightly negative.
		if variance < 0 {
			variance = 0
		}
		stdev := math.Sqrt(variance)

		var prevVolume float64
		if i > 0 {
			prevVolume = candles[i-1].Volume
		}
		bc := models.BollingerCandle{
			Candle:        c,
			MovingAverage: avg,
			UpperBand:     avg + factor*stdev,
			LowerBand:     avg - factor*stdev,
		}
		if i > 0 {
			bc.VolumeDelta = c.Volume - prevVolume
			bc.VolumePercent = VolumeMomentum(prevVolume, c.Volume) * 100
		}
		out = append(out, bc)
	}
	return out
}

// PercentChange is current/reference - 1. ok is false when the reference is unset,
// in which case no threshold may be considered reached.
func PercentChange(current, reference float64) (change float64, ok bool) {
	if reference <= 0 || math.IsNaN(reference) || math.IsInf(reference, 0) {
		return 0, false
	}
	return current/reference - 1, true
}

// VolumeMomentum is currVolume/prevVolume - 1, or zero when there is no previous volume.
func VolumeMomentum(prevVolume, currVolume float64) float64 {
	if prevVolume == 0 {
		return 0
	}
	return currVolume/prevVolume - 1
}

var hundred = decimal.NewFromInt(100)

// RiseReached reports whether price is at least pct percent above reference.
// Both sides are compared as decimals, price*100 >= reference*(100+pct), so a
// price sitting exactly on the threshold always counts.
func RiseReached(price, reference, pct float64) bool {
	p, ref, ok := exactPair(price, reference)
	if !ok {
		return false
	}
	target := ref.Mul(hundred.Add(decimal.NewFromFloat(pct)))
	return p.Mul(hundred).GreaterThanOrEqual(target)
}

// DropReached reports whether price is at least |pct| percent below reference.
func DropReached(price, reference, pct float64) bool {
	p, ref, ok := exactPair(price, reference)
	if !ok {
		return false
	}
	target := ref.Mul(hundred.Sub(decimal.NewFromFloat(math.Abs(pct))))
	return p.Mul(hundred).LessThanOrEqual(target)
}

// exactPair converts price and reference to decimals. ok is false for an unset reference.
func exactPair(price, reference float64) (decimal.Decimal, decimal.Decimal, bool) {
	if _, ok := PercentChange(price, reference); !ok || math.IsNaN(price) || math.IsInf(price, 0) {
		return decimal.Zero, decimal.Zero, false
	}
	return decimal.NewFromFloat(price), decimal.NewFromFloat(reference), true
}

// AverageVolume is the mean volume of candles, zero for an empty slice.
func AverageVolume(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var total float64
	for _, c := range candles {
		total += c.Volume
	}
	return total / float64(len(candles))
}
