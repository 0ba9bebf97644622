package indicators

import (
	"math"

	"options-trading-engine/internal/market"
)

// ============================================================================
// KELTNER CHANNELS
// ============================================================================

// KeltnerResult holds Keltner Channel levels
type KeltnerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateKeltner calculates Keltner Channels around an EMA with ATR bands
func CalculateKeltner(candles []market.Candle, period int, atrMultiplier float64) *KeltnerResult {
	if len(candles) < period+1 || period <= 0 {
		last := 0.0
		if len(candles) > 0 {
			last = candles[len(candles)-1].Close
		}
		return &KeltnerResult{Upper: last, Middle: last, Lower: last}
	}

	middle := CalculateEMA(candles, period)
	atr := CalculateATR(candles, period)

	return &KeltnerResult{
		Upper:  middle + atr*atrMultiplier,
		Middle: middle,
		Lower:  middle - atr*atrMultiplier,
	}
}

// ============================================================================
// DONCHIAN CHANNELS
// ============================================================================

// DonchianResult holds Donchian Channel levels and breakout flags
type DonchianResult struct {
	Upper        float64
	Middle       float64
	Lower        float64
	BreakoutUp   bool
	BreakoutDown bool
}

// CalculateDonchian calculates Donchian Channels over the period. Breakouts
// compare the last close against the channel ending at the previous bar.
func CalculateDonchian(candles []market.Candle, period int) *DonchianResult {
	if len(candles) < period+1 || period <= 0 {
		last := 0.0
		if len(candles) > 0 {
			last = candles[len(candles)-1].Close
		}
		return &DonchianResult{Upper: last, Middle: last, Lower: last}
	}

	channel := func(end int) (float64, float64) {
		highest := candles[end-period+1].High
		lowest := candles[end-period+1].Low
		for i := end - period + 1; i <= end; i++ {
			if candles[i].High > highest {
				highest = candles[i].High
			}
			if candles[i].Low < lowest {
				lowest = candles[i].Low
			}
		}
		return highest, lowest
	}

	last := len(candles) - 1
	upper, lower := channel(last)
	prevUpper, prevLower := channel(last - 1)
	close := candles[last].Close

	return &DonchianResult{
		Upper:        upper,
		Middle:       (upper + lower) / 2,
		Lower:        lower,
		BreakoutUp:   close > prevUpper,
		BreakoutDown: close < prevLower,
	}
}

// ============================================================================
// VOLATILITY RATIO
// ============================================================================

// CalculateVolatilityRatio compares short-term true range against long-term
// to flag volatility expansion (>1.2) or contraction (<0.8)
func CalculateVolatilityRatio(candles []market.Candle, shortPeriod, longPeriod int) float64 {
	if len(candles) < longPeriod+1 || shortPeriod <= 0 || longPeriod <= 0 {
		return 1.0
	}

	shortATR := CalculateATR(candles, shortPeriod)
	longATR := CalculateATR(candles, longPeriod)
	if longATR == 0 {
		return 1.0
	}

	return shortATR / longATR
}

// ============================================================================
// HISTORICAL VOLATILITY
// ============================================================================

// CalculateHistoricalVolatility calculates annualized volatility as the
// standard deviation of log returns, in percent.
func CalculateHistoricalVolatility(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 1 {
		return 20 // Common market volatility value
	}

	returns := make([]float64, 0, period)
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		if candles[i-1].Close <= 0 || candles[i].Close <= 0 {
			continue
		}
		r := math.Log(candles[i].Close / candles[i-1].Close)
		returns = append(returns, r)
		sum += r
	}

	if len(returns) < 2 {
		return 20
	}

	mean := sum / float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance) * math.Sqrt(252) * 100
}

// ============================================================================
// BOLLINGER BANDWIDTH
// ============================================================================

// bbBandwidthAt computes (upper-lower)/middle for the window ending at end
func bbBandwidthAt(candles []market.Candle, end, period int, stdDevMultiplier float64) float64 {
	start := end - period + 1
	sum := 0.0
	for i := start; i <= end; i++ {
		sum += candles[i].Close
	}
	middle := sum / float64(period)
	if middle == 0 {
		return 0
	}

	variance := 0.0
	for i := start; i <= end; i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return (2 * stdDev * stdDevMultiplier) / middle
}

// CalculateBBBandwidth calculates Bollinger Bandwidth for the last bar
func CalculateBBBandwidth(candles []market.Candle, period int, stdDevMultiplier float64) float64 {
	if len(candles) < period || period <= 0 {
		return 0.2 // Neutral width
	}
	return bbBandwidthAt(candles, len(candles)-1, period, stdDevMultiplier)
}

// CalculateBBBandwidthPercentile ranks the current bandwidth against the
// trailing lookback window, returning 0-100.
func CalculateBBBandwidthPercentile(candles []market.Candle, period int, stdDevMultiplier float64, lookback int) float64 {
	if len(candles) < period+lookback-1 || lookback <= 1 {
		return 50
	}

	last := len(candles) - 1
	current := bbBandwidthAt(candles, last, period, stdDevMultiplier)

	below := 0
	for i := 0; i < lookback; i++ {
		if bbBandwidthAt(candles, last-i, period, stdDevMultiplier) <= current {
			below++
		}
	}

	return float64(below) / float64(lookback) * 100
}

// IsBBSqueeze reports whether the current bandwidth sits in the bottom fifth
// of the trailing 50 bars, a common pre-breakout compression signal.
func IsBBSqueeze(candles []market.Candle, period int, stdDevMultiplier float64) bool {
	const lookback = 50
	if len(candles) < period+lookback-1 {
		return false
	}
	return CalculateBBBandwidthPercentile(candles, period, stdDevMultiplier, lookback) < 20
}
