package indicators

import (
	"math"

	"options-trading-engine/internal/market"
)

// ============================================================================
// CCI (Commodity Channel Index)
// ============================================================================

// CalculateCCI calculates the Commodity Channel Index over typical prices
func CalculateCCI(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	startIdx := len(candles) - period
	typical := make([]float64, period)
	sum := 0.0
	for i := 0; i < period; i++ {
		c := candles[startIdx+i]
		typical[i] = (c.High + c.Low + c.Close) / 3
		sum += typical[i]
	}

	mean := sum / float64(period)

	meanDev := 0.0
	for _, tp := range typical {
		meanDev += math.Abs(tp - mean)
	}
	meanDev /= float64(period)

	if meanDev == 0 {
		return 0
	}

	return (typical[period-1] - mean) / (0.015 * meanDev)
}

// ============================================================================
// WILLIAMS %R
// ============================================================================

// CalculateWilliamsR calculates Williams %R (0 to -100)
func CalculateWilliamsR(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return -50 // Neutral
	}

	startIdx := len(candles) - period
	highest := candles[startIdx].High
	lowest := candles[startIdx].Low
	for i := startIdx; i < len(candles); i++ {
		if candles[i].High > highest {
			highest = candles[i].High
		}
		if candles[i].Low < lowest {
			lowest = candles[i].Low
		}
	}

	if highest == lowest {
		return -50
	}

	return -100 * (highest - candles[len(candles)-1].Close) / (highest - lowest)
}

// ============================================================================
// MFI (Money Flow Index)
// ============================================================================

// CalculateMFI calculates the Money Flow Index, a volume-weighted RSI
func CalculateMFI(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 50 // Neutral
	}

	typicalAt := func(i int) float64 {
		return (candles[i].High + candles[i].Low + candles[i].Close) / 3
	}

	var positiveFlow, negativeFlow float64
	for i := len(candles) - period; i < len(candles); i++ {
		tp := typicalAt(i)
		prevTP := typicalAt(i - 1)
		rawFlow := tp * candles[i].Volume

		if tp > prevTP {
			positiveFlow += rawFlow
		} else if tp < prevTP {
			negativeFlow += rawFlow
		}
	}

	if negativeFlow == 0 {
		if positiveFlow == 0 {
			return 50
		}
		return 100
	}

	ratio := positiveFlow / negativeFlow
	return 100 - (100 / (1 + ratio))
}
