// Package quant provides pure-math indicator and risk calculations over
// daily candles. Inputs are newest first; every function returns a zero
// value rather than panicking when history is too short.
package quant

import (
	"math"
	"sort"

	"github.com/bobmcallan/argus/internal/models"
)

// SMA calculates Simple Moving Average for the given period.
func SMA(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// EMA calculates Exponential Moving Average for the given period.
func EMA(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	multiplier := 2.0 / float64(period+1)
	ema := SMA(candles[len(candles)-period:], period)

	for i := period - 1; i >= 0; i-- {
		ema = (candles[i].Close-ema)*multiplier + ema
	}
	return ema
}

// RSI calculates Relative Strength Index.
func RSI(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50 // Neutral default
	}

	var gains, losses float64
	for i := 0; i < period; i++ {
		change := candles[i].Close - candles[i+1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD calculates Moving Average Convergence Divergence.
// Returns MACD line, signal line, and histogram.
func MACD(candles []models.Candle, fastPeriod, slowPeriod, signalPeriod int) (float64, float64, float64) {
	if len(candles) < slowPeriod+signalPeriod {
		return 0, 0, 0
	}

	macdLine := EMA(candles, fastPeriod) - EMA(candles, slowPeriod)

	// Signal line is the EMA of the MACD line over the signal period
	multiplier := 2.0 / float64(signalPeriod+1)
	signal := macdLine
	for i := signalPeriod - 1; i >= 1; i-- {
		m := EMA(candles[i:], fastPeriod) - EMA(candles[i:], slowPeriod)
		signal = (m-signal)*multiplier + signal
	}
	signal = (macdLine-signal)*multiplier + signal

	return macdLine, signal, macdLine - signal
}

// Bollinger calculates Bollinger Bands (upper, middle, lower) for the
// given period and standard deviation multiplier.
func Bollinger(candles []models.Candle, period int, mult float64) (float64, float64, float64) {
	if len(candles) < period {
		return 0, 0, 0
	}

	mid := SMA(candles, period)
	variance := 0.0
	for i := 0; i < period; i++ {
		d := candles[i].Close - mid
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))

	return mid + mult*std, mid, mid - mult*std
}

// BollingerPctB returns %B: where the last close sits inside the bands.
// Above 1 means above the upper band, below 0 below the lower band.
func BollingerPctB(candles []models.Candle, period int, mult float64) float64 {
	if len(candles) < period {
		return 0
	}
	upper, _, lower := Bollinger(candles, period, mult)
	if upper == lower {
		return 0.5
	}
	return (candles[0].Close - lower) / (upper - lower)
}

// ZScore returns how many standard deviations the last close is from the
// trailing mean over the period.
func ZScore(candles []models.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}

	mean := SMA(candles, period)
	variance := 0.0
	for i := 0; i < period; i++ {
		d := candles[i].Close - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))
	if std == 0 {
		return 0
	}
	return (candles[0].Close - mean) / std
}

// RobustZScore is a MAD-based z-score, resistant to outliers. The 1.4826
// constant scales MAD to the standard deviation of a normal distribution.
func RobustZScore(candles []models.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}

	closes := make([]float64, period)
	for i := 0; i < period; i++ {
		closes[i] = candles[i].Close
	}
	med := median(closes)

	deviations := make([]float64, period)
	for i, c := range closes {
		deviations[i] = math.Abs(c - med)
	}
	mad := median(deviations)
	if mad == 0 {
		return 0
	}
	return (candles[0].Close - med) / (1.4826 * mad)
}

// PercentileRankPrice ranks the last close against the trailing window,
// as a percentage in [0,100].
func PercentileRankPrice(candles []models.Candle, window int) float64 {
	return percentileRank(candles, window, func(c models.Candle) float64 { return c.Close })
}

// PercentileRankVolume ranks the last volume against the trailing window.
func PercentileRankVolume(candles []models.Candle, window int) float64 {
	return percentileRank(candles, window, func(c models.Candle) float64 { return float64(c.Volume) })
}

func percentileRank(candles []models.Candle, window int, value func(models.Candle) float64) float64 {
	if len(candles) < 2 {
		return 0
	}
	if window > len(candles) {
		window = len(candles)
	}

	last := value(candles[0])
	below := 0
	for i := 1; i < window; i++ {
		if value(candles[i]) < last {
			below++
		}
	}
	return 100 * float64(below) / float64(window-1)
}

// ATR calculates Average True Range.
func ATR(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i+1].Close

		tr := high - low
		if d := math.Abs(high - prevClose); d > tr {
			tr = d
		}
		if d := math.Abs(low - prevClose); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(period)
}

// VWAP calculates the volume-weighted average price over the period.
func VWAP(candles []models.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}

	var priceVolume, volume float64
	for i := 0; i < period; i++ {
		typical := (candles[i].High + candles[i].Low + candles[i].Close) / 3
		priceVolume += typical * float64(candles[i].Volume)
		volume += float64(candles[i].Volume)
	}
	if volume == 0 {
		return 0
	}
	return priceVolume / volume
}

// VWAPDeviation returns the fractional deviation of the last close from
// the period VWAP.
func VWAPDeviation(candles []models.Candle, period int) float64 {
	vwap := VWAP(candles, period)
	if vwap == 0 {
		return 0
	}
	return (candles[0].Close - vwap) / vwap
}

// MeanReversionScore is the z of the last close against SMA-50, a crude
// stretch measure for mean-reversion setups.
func MeanReversionScore(candles []models.Candle) float64 {
	return ZScore(candles, 50)
}

// OBV calculates On-Balance Volume over the available history.
func OBV(candles []models.Candle) float64 {
	obv := 0.0
	for i := len(candles) - 2; i >= 0; i-- {
		switch {
		case candles[i].Close > candles[i+1].Close:
			obv += float64(candles[i].Volume)
		case candles[i].Close < candles[i+1].Close:
			obv -= float64(candles[i].Volume)
		}
	}
	return obv
}

// Stochastic calculates the %K and %D stochastic oscillator values.
func Stochastic(candles []models.Candle, kPeriod, dPeriod int) (float64, float64) {
	if len(candles) < kPeriod+dPeriod {
		return 50, 50
	}

	k := stochasticK(candles, kPeriod)
	dSum := k
	for i := 1; i < dPeriod; i++ {
		dSum += stochasticK(candles[i:], kPeriod)
	}
	return k, dSum / float64(dPeriod)
}

func stochasticK(candles []models.Candle, period int) float64 {
	if len(candles) < period {
		return 50
	}

	highest := candles[0].High
	lowest := candles[0].Low
	for i := 1; i < period; i++ {
		if candles[i].High > highest {
			highest = candles[i].High
		}
		if candles[i].Low < lowest {
			lowest = candles[i].Low
		}
	}
	if highest == lowest {
		return 50
	}
	return 100 * (candles[0].Close - lowest) / (highest - lowest)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
