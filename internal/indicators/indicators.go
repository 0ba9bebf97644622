package indicators

import (
	"math"

	"options-trading-engine/internal/market"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates Simple Moving Average over the closing prices
func CalculateSMA(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	startIdx := len(candles) - period

	for i := startIdx; i < len(candles); i++ {
		sum += candles[i].Close
	}

	return sum / float64(period)
}

// CalculateEMA calculates Exponential Moving Average seeded with an SMA
func CalculateEMA(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	sma := CalculateSMA(candles[:period], period)
	multiplier := 2.0 / float64(period+1)

	ema := sma
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
	}

	return ema
}

// emaSeries computes an EMA over an arbitrary value series, returning one
// smoothed value per input from index period-1 onward.
func emaSeries(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}

	multiplier := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	ema := sum / float64(period)
	out = append(out, ema)

	for i := period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
		out = append(out, ema)
	}

	return out
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// CalculateRSI calculates the Relative Strength Index using Wilder smoothing
func CalculateRSI(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 50.0 // Neutral RSI
	}

	gains := 0.0
	losses := 0.0

	// Seed with the first period of changes
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// Wilder smoothing across the remaining history
	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgGain == 0 && avgLoss == 0 {
		return 50.0 // No movement either way
	}
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds MACD indicator values
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD calculates the MACD line, its EMA signal line and histogram
func CalculateMACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(candles) < slowPeriod+signalPeriod {
		return &MACDResult{}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// Align the two series on the slow EMA start and build the MACD history
	offset := len(fast) - len(slow)
	macdLine := make([]float64, len(slow))
	for i := range slow {
		macdLine[i] = fast[i+offset] - slow[i]
	}

	signal := emaSeries(macdLine, signalPeriod)
	if len(signal) == 0 {
		return &MACDResult{MACD: macdLine[len(macdLine)-1]}
	}

	macd := macdLine[len(macdLine)-1]
	sig := signal[len(signal)-1]

	return &MACDResult{
		MACD:      macd,
		Signal:    sig,
		Histogram: macd - sig,
	}
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerBandsResult holds Bollinger Bands values
type BollingerBandsResult struct {
	Upper    float64
	Middle   float64
	Lower    float64
	PercentB float64
}

// CalculateBollingerBands calculates Bollinger Bands and %B for the last close
func CalculateBollingerBands(candles []market.Candle, period int, stdDevMultiplier float64) *BollingerBandsResult {
	if len(candles) < period || period <= 0 {
		return &BollingerBandsResult{PercentB: 0.5}
	}

	middle := CalculateSMA(candles, period)

	variance := 0.0
	startIdx := len(candles) - period
	for i := startIdx; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}

	stdDev := math.Sqrt(variance / float64(period))
	upper := middle + (stdDev * stdDevMultiplier)
	lower := middle - (stdDev * stdDevMultiplier)

	percentB := 0.5
	if upper != lower {
		percentB = (candles[len(candles)-1].Close - lower) / (upper - lower)
	}

	return &BollingerBandsResult{
		Upper:    upper,
		Middle:   middle,
		Lower:    lower,
		PercentB: percentB,
	}
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// CalculateATR calculates Average True Range
func CalculateATR(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 0
	}

	trSum := 0.0
	startIdx := len(candles) - period

	for i := startIdx; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(
			high-low,
			math.Max(
				math.Abs(high-prevClose),
				math.Abs(low-prevClose),
			),
		)

		trSum += tr
	}

	return trSum / float64(period)
}

// ============================================================================
// STOCHASTIC OSCILLATOR
// ============================================================================

// StochasticResult holds Stochastic Oscillator values
type StochasticResult struct {
	K float64
	D float64
}

// CalculateStochastic calculates the Stochastic Oscillator (%K and SMA %D)
func CalculateStochastic(candles []market.Candle, kPeriod, dPeriod int) *StochasticResult {
	if len(candles) < kPeriod+dPeriod-1 {
		return &StochasticResult{50, 50}
	}

	percentKAt := func(end int) float64 {
		start := end - kPeriod + 1
		highest := candles[start].High
		lowest := candles[start].Low
		for i := start; i <= end; i++ {
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
		return (candles[end].Close - lowest) / (highest - lowest) * 100
	}

	last := len(candles) - 1
	k := percentKAt(last)

	dSum := 0.0
	for i := 0; i < dPeriod; i++ {
		dSum += percentKAt(last - i)
	}

	return &StochasticResult{K: k, D: dSum / float64(dPeriod)}
}

// ============================================================================
// ADX (Average Directional Index)
// ============================================================================

// ADXResult holds trend strength and directional movement values
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// CalculateADX calculates ADX with +DI/-DI using Wilder smoothing
func CalculateADX(candles []market.Candle, period int) *ADXResult {
	if len(candles) < 2*period+1 || period <= 0 {
		return &ADXResult{ADX: 25, PlusDI: 20, MinusDI: 20} // Neutral defaults
	}

	var trSmooth, plusSmooth, minusSmooth float64
	var dxValues []float64
	alpha := 1.0 / float64(period)

	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}

		tr := math.Max(
			candles[i].High-candles[i].Low,
			math.Max(
				math.Abs(candles[i].High-candles[i-1].Close),
				math.Abs(candles[i].Low-candles[i-1].Close),
			),
		)

		if i == 1 {
			trSmooth, plusSmooth, minusSmooth = tr, plusDM, minusDM
			continue
		}

		trSmooth = trSmooth*(1-alpha) + tr*alpha
		plusSmooth = plusSmooth*(1-alpha) + plusDM*alpha
		minusSmooth = minusSmooth*(1-alpha) + minusDM*alpha

		if trSmooth == 0 {
			continue
		}

		plusDI := 100 * plusSmooth / trSmooth
		minusDI := 100 * minusSmooth / trSmooth
		if plusDI+minusDI > 0 {
			dxValues = append(dxValues, 100*math.Abs(plusDI-minusDI)/(plusDI+minusDI))
		}
	}

	if len(dxValues) == 0 || trSmooth == 0 {
		return &ADXResult{ADX: 25, PlusDI: 20, MinusDI: 20}
	}

	adx := dxValues[0]
	for i := 1; i < len(dxValues); i++ {
		adx = adx*(1-alpha) + dxValues[i]*alpha
	}

	return &ADXResult{
		ADX:     adx,
		PlusDI:  100 * plusSmooth / trSmooth,
		MinusDI: 100 * minusSmooth / trSmooth,
	}
}

// ============================================================================
// SUPERTREND
// ============================================================================

// SupertrendResult holds the Supertrend level and direction (+1 up, -1 down)
type SupertrendResult struct {
	Value     float64
	Direction int
}

// CalculateSupertrend calculates the Supertrend indicator
func CalculateSupertrend(candles []market.Candle, period int, multiplier float64) *SupertrendResult {
	if len(candles) < period+1 || period <= 0 {
		return &SupertrendResult{Direction: 0}
	}

	atrAt := func(end int) float64 {
		sum := 0.0
		for i := end - period + 1; i <= end; i++ {
			tr := math.Max(
				candles[i].High-candles[i].Low,
				math.Max(
					math.Abs(candles[i].High-candles[i-1].Close),
					math.Abs(candles[i].Low-candles[i-1].Close),
				),
			)
			sum += tr
		}
		return sum / float64(period)
	}

	var finalUpper, finalLower float64
	direction := 1
	ranged := false

	for i := period; i < len(candles); i++ {
		atr := atrAt(i)
		if atr > 0 {
			ranged = true
		}
		mid := (candles[i].High + candles[i].Low) / 2
		basicUpper := mid + multiplier*atr
		basicLower := mid - multiplier*atr

		if i == period {
			finalUpper, finalLower = basicUpper, basicLower
			continue
		}

		// Bands only ratchet toward price until a close breaks through
		prevClose := candles[i-1].Close
		if basicUpper < finalUpper || prevClose > finalUpper {
			finalUpper = basicUpper
		}
		if basicLower > finalLower || prevClose < finalLower {
			finalLower = basicLower
		}

		close := candles[i].Close
		if direction == 1 && close < finalLower {
			direction = -1
		} else if direction == -1 && close > finalUpper {
			direction = 1
		}
	}

	// A series with no range has no trend to follow
	if !ranged {
		return &SupertrendResult{Value: candles[len(candles)-1].Close, Direction: 0}
	}

	value := finalLower
	if direction == -1 {
		value = finalUpper
	}
	return &SupertrendResult{Value: value, Direction: direction}
}

// ============================================================================
// VWAP
// ============================================================================

// CalculateVWAP calculates the volume-weighted average price since the most
// recent 09:15 IST session open in the candle history.
func CalculateVWAP(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	// Walk back to the first candle of the current trading day
	start := 0
	last := candles[len(candles)-1].Timestamp.In(market.ISTLocation)
	for i := len(candles) - 1; i >= 0; i-- {
		ts := candles[i].Timestamp.In(market.ISTLocation)
		if ts.Year() != last.Year() || ts.YearDay() != last.YearDay() {
			start = i + 1
			break
		}
	}

	var pvSum, volSum float64
	for i := start; i < len(candles); i++ {
		typical := (candles[i].High + candles[i].Low + candles[i].Close) / 3
		pvSum += typical * candles[i].Volume
		volSum += candles[i].Volume
	}

	if volSum == 0 {
		return candles[len(candles)-1].Close
	}
	return pvSum / volSum
}

// ============================================================================
// VOLUME
// ============================================================================

// CalculateAverageVolume calculates average volume over the period
func CalculateAverageVolume(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}

	return sum / float64(period)
}

// IsVolumeSpike reports whether the last candle traded more than
// spikeMultiplier times the trailing average volume.
func IsVolumeSpike(candles []market.Candle, period int, spikeMultiplier float64) bool {
	if len(candles) < period+1 {
		return false
	}

	avg := CalculateAverageVolume(candles[:len(candles)-1], period)
	if avg == 0 {
		return false
	}

	return candles[len(candles)-1].Volume > avg*spikeMultiplier
}

// CalculateMomentum returns the percent price change over the period
func CalculateMomentum(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 0
	}

	past := candles[len(candles)-1-period].Close
	if past == 0 {
		return 0
	}

	return (candles[len(candles)-1].Close - past) / past * 100
}
