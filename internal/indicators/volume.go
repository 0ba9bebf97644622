package indicators

import (
	"sort"

	"options-trading-engine/internal/market"
)

// ============================================================================
// OBV (On-Balance Volume)
// ============================================================================

// OBVResult holds On-Balance Volume with its EMA and divergence flags
type OBVResult struct {
	OBV               float64
	EMA               float64
	BullishDivergence bool
	BearishDivergence bool
}

// obvSeries builds the cumulative OBV line over the candle history
func obvSeries(candles []market.Candle) []float64 {
	if len(candles) == 0 {
		return nil
	}

	out := make([]float64, len(candles))
	out[0] = candles[0].Volume
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] = out[i-1] + candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			out[i] = out[i-1] - candles[i].Volume
		default:
			out[i] = out[i-1]
		}
	}

	return out
}

// AnalyzeOBV calculates OBV, its 20-period EMA, and flags a divergence when
// price and OBV moved in opposite directions on the last bar.
func AnalyzeOBV(candles []market.Candle) *OBVResult {
	obv := obvSeries(candles)
	if len(obv) == 0 {
		return &OBVResult{}
	}

	result := &OBVResult{OBV: obv[len(obv)-1], EMA: obv[len(obv)-1]}

	if ema := emaSeries(obv, 20); len(ema) > 0 {
		result.EMA = ema[len(ema)-1]
	}

	if len(candles) >= 2 {
		last := len(candles) - 1
		priceUp := candles[last].Close > candles[last-1].Close
		obvUp := obv[last] > obv[last-1]
		result.BullishDivergence = !priceUp && obvUp
		result.BearishDivergence = priceUp && !obvUp
	}

	return result
}

// ============================================================================
// VOLUME PROFILE
// ============================================================================

// VolumeZone is a price level with the volume traded around it
type VolumeZone struct {
	Price  float64
	Volume float64
}

// CalculateVolumeProfile buckets traded volume into price zones and returns
// the top three zones by volume, candidates for support and resistance.
func CalculateVolumeProfile(candles []market.Candle, zones int) []VolumeZone {
	if len(candles) == 0 || zones <= 0 {
		return nil
	}

	priceMin := candles[0].Low
	priceMax := candles[0].High
	for _, c := range candles {
		if c.Low < priceMin {
			priceMin = c.Low
		}
		if c.High > priceMax {
			priceMax = c.High
		}
	}

	if priceMax == priceMin {
		return []VolumeZone{{Price: priceMin, Volume: CalculateAverageVolume(candles, len(candles)) * float64(len(candles))}}
	}

	zoneSize := (priceMax - priceMin) / float64(zones)
	volumeByZone := make([]float64, zones)
	for _, c := range candles {
		z := int((c.Close - priceMin) / zoneSize)
		if z >= zones {
			z = zones - 1
		}
		if z < 0 {
			z = 0
		}
		volumeByZone[z] += c.Volume
	}

	profile := make([]VolumeZone, 0, zones)
	for z, vol := range volumeByZone {
		if vol == 0 {
			continue
		}
		profile = append(profile, VolumeZone{
			Price:  priceMin + (float64(z)+0.5)*zoneSize,
			Volume: vol,
		})
	}

	sort.Slice(profile, func(i, j int) bool { return profile[i].Volume > profile[j].Volume })

	if len(profile) > 3 {
		profile = profile[:3]
	}
	return profile
}

// ============================================================================
// RELATIVE VOLUME
// ============================================================================

// CalculateRelativeVolume compares the last bar's volume to the trailing
// average, 1.0 meaning in line with recent activity.
func CalculateRelativeVolume(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 1.0
	}

	avg := CalculateAverageVolume(candles, period)
	if avg == 0 {
		return 1.0
	}

	return candles[len(candles)-1].Volume / avg
}

// ============================================================================
// DELIVERY ANALYTICS
// ============================================================================

// DeliveryResult summarizes delivery-based conviction for the last bar.
// Delivery percentage above 60 signals genuine position-taking rather than
// intraday speculation; below 40 signals churn.
type DeliveryResult struct {
	Percent      float64
	SMA5         float64
	HighDelivery bool
	LowDelivery  bool
	TrendUp      bool
}

// AnalyzeDelivery evaluates delivery percentages. Bars with no delivery data
// are assumed at 50 percent.
func AnalyzeDelivery(candles []market.Candle) *DeliveryResult {
	if len(candles) == 0 {
		return &DeliveryResult{Percent: 50, SMA5: 50}
	}

	pctAt := func(i int) float64 {
		if candles[i].DeliveryPercent == 0 {
			return 50
		}
		return candles[i].DeliveryPercent
	}

	last := len(candles) - 1
	pct := pctAt(last)

	window := 5
	if len(candles) < window {
		window = len(candles)
	}
	sum := 0.0
	for i := len(candles) - window; i < len(candles); i++ {
		sum += pctAt(i)
	}
	sma5 := sum / float64(window)

	return &DeliveryResult{
		Percent:      pct,
		SMA5:         sma5,
		HighDelivery: pct > 60,
		LowDelivery:  pct < 40,
		TrendUp:      pct > sma5,
	}
}
