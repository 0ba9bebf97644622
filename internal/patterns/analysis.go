package patterns

import (
	"math"

	"options-trading-engine/internal/indicators"
	"options-trading-engine/internal/market"
)

// PatternWeight returns the aggregation weight for a pattern type
func PatternWeight(t PatternType) float64 {
	switch t {
	case ThreeWhiteSoldiers, ThreeBlackCrows:
		return 0.9
	case MorningStar, EveningStar, AbandonedBaby:
		return 0.8
	case BullishEngulfing, BearishEngulfing, Marubozu, DarkCloudCover, PiercingPattern:
		return 0.7
	case Hammer, ShootingStar, TweezerTop, TweezerBottom:
		return 0.6
	case BullishHarami, BearishHarami:
		return 0.5
	default: // doji family
		return 0.3
	}
}

// Analysis is the weighted pattern signal over a candle window
type Analysis struct {
	Signal           market.Signal
	Confidence       float64
	Trend            indicators.TrendDirection
	PatternsDetected []string
	BullishWeight    float64
	BearishWeight    float64
}

// Analyze detects patterns over the most recent candles and converts them to
// a directional signal. Only patterns on the last three bars count toward the
// signal; the trend filter keeps bullish continuation and bearish reversal
// patterns in an UPTREND (mirrored in a DOWNTREND), everything in SIDEWAYS.
func Analyze(index market.Index, timeframe string, candles []market.Candle) *Analysis {
	result := &Analysis{Signal: market.SignalWait, Confidence: 0.5, Trend: indicators.SIDEWAYS}
	if len(candles) == 0 {
		return result
	}

	result.Trend = indicators.DetectTrend(candles)

	detected := NewDetector().Detect(index, timeframe, candles)

	var bullish, bearish float64
	var maxWeight float64
	count := 0

	recent := len(candles) - 3
	for _, p := range detected {
		if p.CandleIndex < recent {
			continue
		}

		if !keepUnderTrend(p, result.Trend) {
			continue
		}

		result.PatternsDetected = append(result.PatternsDetected, string(p.Type))
		count++
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}

		switch p.Direction {
		case "bullish":
			bullish += p.Weight
		case "bearish":
			bearish += p.Weight
		}
	}

	result.BullishWeight = bullish
	result.BearishWeight = bearish

	if count == 0 || bullish == bearish {
		return result
	}

	result.Confidence = math.Min(maxWeight/(float64(count)*0.9), 1.0)
	if bullish > bearish {
		result.Signal = market.SignalBuyCall
	} else {
		result.Signal = market.SignalBuyPut
	}

	return result
}

// keepUnderTrend applies the trend filter to a detected pattern.
func keepUnderTrend(p DetectedPattern, trend indicators.TrendDirection) bool {
	switch trend {
	case indicators.UPTREND:
		if p.Reversal {
			return p.Direction == "bearish"
		}
		return p.Direction == "bullish"
	case indicators.DOWNTREND:
		if p.Reversal {
			return p.Direction == "bullish"
		}
		return p.Direction == "bearish"
	default:
		return true
	}
}
