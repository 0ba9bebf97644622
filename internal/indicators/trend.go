package indicators

import (
	"options-trading-engine/internal/market"
)

// TrendDirection represents the prevailing price trend
type TrendDirection string

const (
	UPTREND   TrendDirection = "UPTREND"
	DOWNTREND TrendDirection = "DOWNTREND"
	SIDEWAYS  TrendDirection = "SIDEWAYS"
)

// DetectTrend detects the trend from SMA alignment
func DetectTrend(candles []market.Candle) TrendDirection {
	if len(candles) < 50 {
		return SIDEWAYS
	}

	sma20 := CalculateSMA(candles, 20)
	sma50 := CalculateSMA(candles, 50)
	price := candles[len(candles)-1].Close

	if price > sma20 && sma20 > sma50 {
		return UPTREND
	}
	if price < sma20 && sma20 < sma50 {
		return DOWNTREND
	}
	return SIDEWAYS
}

// TrendStrengthResult holds the weighted trend vote outcome
type TrendStrengthResult struct {
	Trend        TrendDirection
	Strength     float64 // winning votes / total votes, 0..1
	BullishVotes int
	BearishVotes int
	TotalVotes   int
}

// TrendStrength scores the trend by voting across the indicator suite.
// Point weights: MA ordering 3, RSI up to 2, MACD 2, Bollinger %B up to 2,
// Supertrend 3, price vs VWAP 1, ADX confirmation 2, volume spike 2,
// high delivery 2.
func TrendStrength(candles []market.Candle) *TrendStrengthResult {
	if len(candles) < 50 {
		return &TrendStrengthResult{Trend: SIDEWAYS, Strength: 0.5}
	}

	last := candles[len(candles)-1]
	price := last.Close

	bull, bear, total := 0, 0, 0
	vote := func(points int, bullish, bearish bool) {
		total += points
		if bullish {
			bull += points
		} else if bearish {
			bear += points
		}
	}

	// Moving average alignment
	sma20 := CalculateSMA(candles, 20)
	sma50 := CalculateSMA(candles, 50)
	vote(3, price > sma20 && sma20 > sma50, price < sma20 && sma20 < sma50)

	// RSI, graded; exactly 50 votes for neither side
	rsi := CalculateRSI(candles, 14)
	switch {
	case rsi > 60:
		vote(2, true, false)
	case rsi > 50:
		vote(1, true, false)
		total++ // second RSI point stays uncontested
	case rsi < 40:
		vote(2, false, true)
	case rsi < 50:
		vote(1, false, true)
		total++
	default:
		total += 2
	}

	// MACD vs signal line
	macd := CalculateMACD(candles, 12, 26, 9)
	vote(2, macd.MACD > macd.Signal, macd.MACD < macd.Signal)

	// Bollinger %B, graded; mid-band votes for neither side
	bb := CalculateBollingerBands(candles, 20, 2)
	switch {
	case bb.PercentB > 0.8:
		vote(2, true, false)
	case bb.PercentB > 0.5:
		vote(1, true, false)
		total++
	case bb.PercentB < 0.2:
		vote(2, false, true)
	case bb.PercentB < 0.5:
		vote(1, false, true)
		total++
	default:
		total += 2
	}

	// Supertrend direction
	st := CalculateSupertrend(candles, 10, 3)
	vote(3, st.Direction == 1, st.Direction == -1)

	// Price vs VWAP
	vwap := CalculateVWAP(candles)
	vote(1, price > vwap, price < vwap)

	// ADX confirms whichever side is leading
	adx := CalculateADX(candles, 14)
	if adx.ADX > 25 {
		vote(2, bull > bear, bear > bull)
	} else {
		total += 2
	}

	// Volume spike in the direction of the last candle
	if IsVolumeSpike(candles, 20, 2) {
		vote(2, last.Bullish(), !last.Bullish())
	} else {
		total += 2
	}

	// High delivery percentage backs the candle direction
	if last.DeliveryPercent > 60 {
		vote(2, last.Bullish(), !last.Bullish())
	} else {
		total += 2
	}

	result := &TrendStrengthResult{
		BullishVotes: bull,
		BearishVotes: bear,
		TotalVotes:   total,
	}

	switch {
	case bull > bear:
		result.Trend = UPTREND
		result.Strength = float64(bull) / float64(total)
	case bear > bull:
		result.Trend = DOWNTREND
		result.Strength = float64(bear) / float64(total)
	default:
		result.Trend = SIDEWAYS
		result.Strength = 0.5
	}

	return result
}

// ============================================================================
// ADX CLASSIFICATION
// ============================================================================

// ADXStrength classifies an ADX reading into a trend strength bucket
func ADXStrength(adx float64) string {
	switch {
	case adx <= 20:
		return "Weak"
	case adx <= 40:
		return "Moderate"
	case adx <= 60:
		return "Strong"
	default:
		return "Very Strong"
	}
}

// ============================================================================
// ICHIMOKU CLOUD
// ============================================================================

// IchimokuResult holds Ichimoku Cloud component values for the last bar
type IchimokuResult struct {
	TenkanSen       float64
	KijunSen        float64
	SenkouSpanA     float64
	SenkouSpanB     float64
	ChikouSpan      float64
	CloudDirection  int // +1 span A above span B, -1 below
	PriceAboveCloud bool
	PriceBelowCloud bool
}

// CalculateIchimoku calculates Ichimoku components with the standard 9/26/52
// periods. The senkou spans are projected forward 26 bars, so the cloud under
// the last bar comes from values computed 26 bars back.
func CalculateIchimoku(candles []market.Candle) *IchimokuResult {
	const (
		tenkanPeriod = 9
		kijunPeriod  = 26
		senkouPeriod = 52
		shift        = 26
	)

	last := len(candles) - 1
	if len(candles) < senkouPeriod+shift {
		close := 0.0
		if len(candles) > 0 {
			close = candles[last].Close
		}
		return &IchimokuResult{
			TenkanSen: close, KijunSen: close,
			SenkouSpanA: close, SenkouSpanB: close, ChikouSpan: close,
		}
	}

	midpoint := func(end, period int) float64 {
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
		return (highest + lowest) / 2
	}

	tenkan := midpoint(last, tenkanPeriod)
	kijun := midpoint(last, kijunPeriod)

	shifted := last - shift
	spanA := (midpoint(shifted, tenkanPeriod) + midpoint(shifted, kijunPeriod)) / 2
	spanB := midpoint(shifted, senkouPeriod)

	close := candles[last].Close
	direction := -1
	if spanA > spanB {
		direction = 1
	}

	return &IchimokuResult{
		TenkanSen:       tenkan,
		KijunSen:        kijun,
		SenkouSpanA:     spanA,
		SenkouSpanB:     spanB,
		ChikouSpan:      close, // plotted 26 bars back
		CloudDirection:  direction,
		PriceAboveCloud: close > spanA && close > spanB,
		PriceBelowCloud: close < spanA && close < spanB,
	}
}

// ============================================================================
// PARABOLIC SAR
// ============================================================================

// ParabolicSARResult holds the SAR level and its side of price
type ParabolicSARResult struct {
	Value  float64
	Signal int // +1 price above SAR, -1 below
}

// CalculateParabolicSAR calculates Parabolic SAR with the given acceleration
// factor and maximum, conventionally 0.02 and 0.2.
func CalculateParabolicSAR(candles []market.Candle, acceleration, maximum float64) *ParabolicSARResult {
	if len(candles) < 2 {
		close := 0.0
		if len(candles) > 0 {
			close = candles[len(candles)-1].Close
		}
		return &ParabolicSARResult{Value: close}
	}

	rising := candles[1].Close >= candles[0].Close
	sar := candles[0].Low
	ep := candles[0].High
	if !rising {
		sar = candles[0].High
		ep = candles[0].Low
	}
	af := acceleration

	for i := 1; i < len(candles); i++ {
		sar += af * (ep - sar)

		if rising {
			// SAR never rises above the prior two lows
			if sar > candles[i-1].Low {
				sar = candles[i-1].Low
			}
			if i >= 2 && sar > candles[i-2].Low {
				sar = candles[i-2].Low
			}
			if candles[i].Low < sar {
				rising = false
				sar = ep
				ep = candles[i].Low
				af = acceleration
			} else if candles[i].High > ep {
				ep = candles[i].High
				if af += acceleration; af > maximum {
					af = maximum
				}
			}
		} else {
			if sar < candles[i-1].High {
				sar = candles[i-1].High
			}
			if i >= 2 && sar < candles[i-2].High {
				sar = candles[i-2].High
			}
			if candles[i].High > sar {
				rising = true
				sar = ep
				ep = candles[i].High
				af = acceleration
			} else if candles[i].Low < ep {
				ep = candles[i].Low
				if af += acceleration; af > maximum {
					af = maximum
				}
			}
		}
	}

	signal := -1
	if candles[len(candles)-1].Close > sar {
		signal = 1
	}

	return &ParabolicSARResult{Value: sar, Signal: signal}
}

// ============================================================================
// AROON
// ============================================================================

// AroonResult holds Aroon up/down lines and their oscillator
type AroonResult struct {
	Up         float64
	Down       float64
	Oscillator float64
}

// CalculateAroon calculates the Aroon indicator over period+1 bars
func CalculateAroon(candles []market.Candle, period int) *AroonResult {
	if len(candles) < period+1 || period <= 0 {
		return &AroonResult{Up: 50, Down: 50}
	}

	start := len(candles) - period - 1
	highIdx, lowIdx := start, start
	for i := start; i < len(candles); i++ {
		if candles[i].High >= candles[highIdx].High {
			highIdx = i
		}
		if candles[i].Low <= candles[lowIdx].Low {
			lowIdx = i
		}
	}

	last := len(candles) - 1
	up := 100 * float64(period-(last-highIdx)) / float64(period)
	down := 100 * float64(period-(last-lowIdx)) / float64(period)

	return &AroonResult{Up: up, Down: down, Oscillator: up - down}
}
