package indicators

import (
	"math"

	"options-trading-engine/internal/market"
)

// SignalSummary collects named indicator signals and the resulting bias
type SignalSummary struct {
	Signal         market.Signal
	Confidence     float64
	Trend          TrendDirection
	TrendStrength  float64
	BullishSignals []string
	BearishSignals []string
}

// AnalyzeSignals inspects the indicator suite and produces a directional
// signal. A BUY is only issued when the signal majority agrees with the
// prevailing trend; everything else is a WAIT.
func AnalyzeSignals(candles []market.Candle) *SignalSummary {
	summary := &SignalSummary{Signal: market.SignalWait, Confidence: 0.5, Trend: SIDEWAYS, TrendStrength: 0.5}
	if len(candles) < 50 {
		return summary
	}

	price := candles[len(candles)-1].Close

	// Oversold reads as a bounce setup, overbought as momentum still running;
	// neither fights the prevailing trend.
	rsi := CalculateRSI(candles, 14)
	switch {
	case rsi < 30:
		summary.BullishSignals = append(summary.BullishSignals, "RSI Oversold")
	case rsi > 70:
		summary.BullishSignals = append(summary.BullishSignals, "RSI Strong Momentum")
	case rsi > 55:
		summary.BullishSignals = append(summary.BullishSignals, "RSI Bullish")
	case rsi < 45:
		summary.BearishSignals = append(summary.BearishSignals, "RSI Bearish")
	}

	// Crossovers are events, not states: the lines must actually cross
	// between the previous bar and the last one.
	prev := candles[:len(candles)-1]

	macd := CalculateMACD(candles, 12, 26, 9)
	prevMACD := CalculateMACD(prev, 12, 26, 9)
	if prevMACD.MACD <= prevMACD.Signal && macd.MACD > macd.Signal {
		summary.BullishSignals = append(summary.BullishSignals, "MACD Bullish Crossover")
	} else if prevMACD.MACD >= prevMACD.Signal && macd.MACD < macd.Signal {
		summary.BearishSignals = append(summary.BearishSignals, "MACD Bearish Crossover")
	}

	ema9, ema20 := CalculateEMA(candles, 9), CalculateEMA(candles, 20)
	prevEMA9, prevEMA20 := CalculateEMA(prev, 9), CalculateEMA(prev, 20)
	if prevEMA9 <= prevEMA20 && ema9 > ema20 {
		summary.BullishSignals = append(summary.BullishSignals, "EMA Bullish Crossover")
	} else if prevEMA9 >= prevEMA20 && ema9 < ema20 {
		summary.BearishSignals = append(summary.BearishSignals, "EMA Bearish Crossover")
	}

	bb := CalculateBollingerBands(candles, 20, 2)
	if bb.PercentB > 1 {
		summary.BullishSignals = append(summary.BullishSignals, "Bollinger Breakout")
	} else if bb.PercentB < 0 {
		summary.BearishSignals = append(summary.BearishSignals, "Bollinger Breakdown")
	}

	st := CalculateSupertrend(candles, 10, 3)
	if st.Direction == 1 {
		summary.BullishSignals = append(summary.BullishSignals, "Supertrend Bullish")
	} else if st.Direction == -1 {
		summary.BearishSignals = append(summary.BearishSignals, "Supertrend Bearish")
	}

	vwap := CalculateVWAP(candles)
	if price > vwap {
		summary.BullishSignals = append(summary.BullishSignals, "Price Above VWAP")
	} else if price < vwap {
		summary.BearishSignals = append(summary.BearishSignals, "Price Below VWAP")
	}

	stoch := CalculateStochastic(candles, 14, 3)
	if stoch.K < 20 && stoch.K > stoch.D {
		summary.BullishSignals = append(summary.BullishSignals, "Stochastic Oversold Reversal")
	} else if stoch.K > 80 && stoch.K < stoch.D {
		summary.BearishSignals = append(summary.BearishSignals, "Stochastic Overbought Reversal")
	}

	ts := TrendStrength(candles)
	summary.Trend = ts.Trend
	summary.TrendStrength = ts.Strength

	bullCount := len(summary.BullishSignals)
	bearCount := len(summary.BearishSignals)

	if bullCount > bearCount && ts.Trend == UPTREND {
		summary.Signal = market.SignalBuyCall
		summary.Confidence = math.Min(0.5+float64(bullCount)/10+ts.Strength, 0.95)
	} else if bearCount > bullCount && ts.Trend == DOWNTREND {
		summary.Signal = market.SignalBuyPut
		summary.Confidence = math.Min(0.5+float64(bearCount)/10+ts.Strength, 0.95)
	}

	return summary
}

// TradeLevels holds ATR-derived entry and exit prices
type TradeLevels struct {
	Entry    float64
	StopLoss float64
	Target   float64
}

// CalculateTradeLevels derives entry, stop loss and target from the ATR.
// WAIT signals get zero stop and target.
func CalculateTradeLevels(candles []market.Candle, signal market.Signal) *TradeLevels {
	if len(candles) == 0 {
		return &TradeLevels{}
	}

	entry := candles[len(candles)-1].Close
	atr := CalculateATR(candles, 14)
	if atr == 0 && len(candles) >= 5 {
		// Approximate from the recent range when history is short
		high, low := candles[len(candles)-1].High, candles[len(candles)-1].Low
		for i := len(candles) - 5; i < len(candles); i++ {
			high = math.Max(high, candles[i].High)
			low = math.Min(low, candles[i].Low)
		}
		atr = (high - low) / 5
	}

	levels := &TradeLevels{Entry: round2(entry)}
	switch signal {
	case market.SignalBuyCall:
		levels.StopLoss = round2(entry - atr*1.5)
		levels.Target = round2(entry + atr*2.5)
	case market.SignalBuyPut:
		levels.StopLoss = round2(entry + atr*1.5)
		levels.Target = round2(entry - atr*2.5)
	}

	return levels
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
