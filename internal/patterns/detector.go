package patterns

import (
	"time"

	"options-trading-engine/internal/market"
)

// PatternType represents different candlestick patterns
type PatternType string

const (
	// Single-candle
	Doji           PatternType = "doji"
	LongLeggedDoji PatternType = "long_legged_doji"
	DragonflyDoji  PatternType = "dragonfly_doji"
	GravestoneDoji PatternType = "gravestone_doji"
	Hammer         PatternType = "hammer"
	ShootingStar   PatternType = "shooting_star"
	Marubozu       PatternType = "marubozu"

	// Two-candle
	BullishEngulfing PatternType = "bullish_engulfing"
	BearishEngulfing PatternType = "bearish_engulfing"
	BullishHarami    PatternType = "bullish_harami"
	BearishHarami    PatternType = "bearish_harami"
	TweezerTop       PatternType = "tweezer_top"
	TweezerBottom    PatternType = "tweezer_bottom"
	DarkCloudCover   PatternType = "dark_cloud_cover"
	PiercingPattern  PatternType = "piercing_pattern"

	// Three-candle
	MorningStar        PatternType = "morning_star"
	EveningStar        PatternType = "evening_star"
	ThreeWhiteSoldiers PatternType = "three_white_soldiers"
	ThreeBlackCrows    PatternType = "three_black_crows"
	AbandonedBaby      PatternType = "abandoned_baby"
)

// DetectedPattern represents a pattern found in the candle series
type DetectedPattern struct {
	Type        PatternType
	Index       market.Index
	Timeframe   string
	DetectedAt  time.Time
	CandleIndex int
	Weight      float64
	Direction   string // "bullish" or "bearish"
	Reversal    bool   // false for continuation patterns
}

// Detector detects candlestick patterns with configurable thresholds
type Detector struct {
	dojiThreshold    float64 // max body/range ratio for a doji
	shadowMultiplier float64 // min shadow/body ratio for hammer family
	gapThreshold     float64 // min gap as a fraction of price for abandoned baby
}

// NewDetector creates a detector with the standard thresholds
func NewDetector() *Detector {
	return &Detector{
		dojiThreshold:    0.1,
		shadowMultiplier: 2,
		gapThreshold:     0.001,
	}
}

// Detect scans the candle series for every supported pattern.
// Single-candle patterns are checked from index 0, two-candle from 1,
// three-candle from 2.
func (d *Detector) Detect(index market.Index, timeframe string, candles []market.Candle) []DetectedPattern {
	var found []DetectedPattern

	mark := func(i int, t PatternType, direction string, reversal bool) {
		found = append(found, DetectedPattern{
			Type:        t,
			Index:       index,
			Timeframe:   timeframe,
			DetectedAt:  candles[i].Timestamp,
			CandleIndex: i,
			Weight:      PatternWeight(t),
			Direction:   direction,
			Reversal:    reversal,
		})
	}

	for i := range candles {
		c := candles[i]

		if d.isDoji(c) {
			switch {
			case d.isDragonflyDoji(c):
				mark(i, DragonflyDoji, "bullish", true)
			case d.isGravestoneDoji(c):
				mark(i, GravestoneDoji, "bearish", true)
			case d.isLongLeggedDoji(c):
				mark(i, LongLeggedDoji, "neutral", true)
			default:
				mark(i, Doji, "neutral", true)
			}
		}

		if d.isHammer(c) {
			mark(i, Hammer, "bullish", true)
		}
		if d.isShootingStar(c) {
			mark(i, ShootingStar, "bearish", true)
		}
		if ok, dir := d.isMarubozu(c); ok {
			direction := "bullish"
			if dir < 0 {
				direction = "bearish"
			}
			mark(i, Marubozu, direction, false)
		}

		if i >= 1 {
			prev := candles[i-1]

			if d.isBullishEngulfing(prev, c) {
				mark(i, BullishEngulfing, "bullish", true)
			}
			if d.isBearishEngulfing(prev, c) {
				mark(i, BearishEngulfing, "bearish", true)
			}
			if d.isBullishHarami(prev, c) {
				mark(i, BullishHarami, "bullish", true)
			}
			if d.isBearishHarami(prev, c) {
				mark(i, BearishHarami, "bearish", true)
			}
			if d.isTweezerTop(prev, c) {
				mark(i, TweezerTop, "bearish", true)
			}
			if d.isTweezerBottom(prev, c) {
				mark(i, TweezerBottom, "bullish", true)
			}
			if d.isDarkCloudCover(prev, c) {
				mark(i, DarkCloudCover, "bearish", true)
			}
			if d.isPiercingPattern(prev, c) {
				mark(i, PiercingPattern, "bullish", true)
			}
		}

		if i >= 2 {
			c1, c2 := candles[i-2], candles[i-1]

			if d.isMorningStar(c1, c2, c) {
				mark(i, MorningStar, "bullish", true)
			}
			if d.isEveningStar(c1, c2, c) {
				mark(i, EveningStar, "bearish", true)
			}
			if d.isThreeWhiteSoldiers(c1, c2, c) {
				mark(i, ThreeWhiteSoldiers, "bullish", false)
			}
			if d.isThreeBlackCrows(c1, c2, c) {
				mark(i, ThreeBlackCrows, "bearish", false)
			}
			if ok, bullish := d.isAbandonedBaby(c1, c2, c); ok {
				direction := "bearish"
				if bullish {
					direction = "bullish"
				}
				mark(i, AbandonedBaby, direction, true)
			}
		}
	}

	return found
}

// ============================================================================
// SINGLE-CANDLE PREDICATES
// ============================================================================

func (d *Detector) isDoji(c market.Candle) bool {
	r := c.Range()
	return r > 0 && c.Body()/r < d.dojiThreshold
}

func (d *Detector) isLongLeggedDoji(c market.Candle) bool {
	body := c.Body()
	if body == 0 || c.Range() == 0 {
		return false
	}
	return c.Body()/c.Range() < d.dojiThreshold &&
		c.UpperWick() > body*3 &&
		c.LowerWick() > body*3
}

func (d *Detector) isDragonflyDoji(c market.Candle) bool {
	body := c.Body()
	if body == 0 || c.Range() == 0 {
		return false
	}
	return body/c.Range() < d.dojiThreshold &&
		c.UpperWick() < body &&
		c.LowerWick() > body*5
}

func (d *Detector) isGravestoneDoji(c market.Candle) bool {
	body := c.Body()
	if body == 0 || c.Range() == 0 {
		return false
	}
	return body/c.Range() < d.dojiThreshold &&
		c.LowerWick() < body &&
		c.UpperWick() > body*5
}

func (d *Detector) isHammer(c market.Candle) bool {
	body := c.Body()
	if body == 0 {
		return false
	}
	return c.LowerWick() > d.shadowMultiplier*body && c.UpperWick() < body
}

func (d *Detector) isShootingStar(c market.Candle) bool {
	body := c.Body()
	if body == 0 {
		return false
	}
	return c.UpperWick() > d.shadowMultiplier*body && c.LowerWick() < body
}

func (d *Detector) isMarubozu(c market.Candle) (bool, int) {
	body := c.Body()
	if body == 0 {
		return false, 0
	}
	isMaru := c.UpperWick() <= 0.1*body && c.LowerWick() <= 0.1*body
	direction := 1
	if c.Close < c.Open {
		direction = -1
	}
	return isMaru, direction
}

// ============================================================================
// TWO-CANDLE PREDICATES
// ============================================================================

func (d *Detector) isBullishEngulfing(c1, c2 market.Candle) bool {
	return c1.Close < c1.Open &&
		c2.Open < c1.Close &&
		c2.Close > c1.Open &&
		c2.Close > c2.Open
}

func (d *Detector) isBearishEngulfing(c1, c2 market.Candle) bool {
	return c1.Close > c1.Open &&
		c2.Open > c1.Close &&
		c2.Close < c1.Open &&
		c2.Close < c2.Open
}

func (d *Detector) isBullishHarami(c1, c2 market.Candle) bool {
	return c1.Close < c1.Open &&
		c2.Close > c2.Open &&
		c2.Open > c1.Close &&
		c2.Close < c1.Open &&
		c2.Body() < c1.Body()
}

func (d *Detector) isBearishHarami(c1, c2 market.Candle) bool {
	return c1.Close > c1.Open &&
		c2.Close < c2.Open &&
		c2.Open < c1.Close &&
		c2.Close > c1.Open &&
		c2.Body() < c1.Body()
}

func (d *Detector) isTweezerTop(c1, c2 market.Candle) bool {
	avgRange := (c1.Range() + c2.Range()) / 2
	highDiff := abs(c1.High - c2.High)
	return c1.Close > c1.Open &&
		c2.Close < c2.Open &&
		highDiff < avgRange*0.2
}

func (d *Detector) isTweezerBottom(c1, c2 market.Candle) bool {
	avgRange := (c1.Range() + c2.Range()) / 2
	lowDiff := abs(c1.Low - c2.Low)
	return c1.Close < c1.Open &&
		c2.Close > c2.Open &&
		lowDiff < avgRange*0.2
}

func (d *Detector) isDarkCloudCover(c1, c2 market.Candle) bool {
	body1 := c1.Close - c1.Open
	if body1 <= 0 {
		return false
	}
	penetrationPoint := c1.Close - body1*0.5
	return c2.Close < c2.Open &&
		c2.Open > c1.High &&
		c2.Close < penetrationPoint
}

func (d *Detector) isPiercingPattern(c1, c2 market.Candle) bool {
	body1 := c1.Open - c1.Close
	if body1 <= 0 {
		return false
	}
	penetrationPoint := c1.Close + body1*0.5
	return c2.Close > c2.Open &&
		c2.Open < c1.Low &&
		c2.Close > penetrationPoint
}

// ============================================================================
// THREE-CANDLE PREDICATES
// ============================================================================

func (d *Detector) isMorningStar(c1, c2, c3 market.Candle) bool {
	body1 := c1.Body()
	if body1 == 0 || c3.Body() == 0 {
		return false
	}
	return c1.Close < c1.Open &&
		c2.Body() < body1*0.3 &&
		c3.Close > c3.Open &&
		c3.Close > (c1.Open+c1.Close)/2
}

func (d *Detector) isEveningStar(c1, c2, c3 market.Candle) bool {
	body1 := c1.Body()
	if body1 == 0 || c3.Body() == 0 {
		return false
	}
	return c1.Close > c1.Open &&
		c2.Body() < body1*0.3 &&
		c3.Close < c3.Open &&
		c3.Close < (c1.Open+c1.Close)/2
}

func (d *Detector) isThreeWhiteSoldiers(c1, c2, c3 market.Candle) bool {
	if c1.Close <= c1.Open || c2.Close <= c2.Open || c3.Close <= c3.Open {
		return false
	}
	return c2.Open > c1.Open && c3.Open > c2.Open &&
		c2.Close > c1.Close && c3.Close > c2.Close &&
		c1.High-c1.Close < (c1.Close-c1.Open)*0.3 &&
		c2.High-c2.Close < (c2.Close-c2.Open)*0.3 &&
		c3.High-c3.Close < (c3.Close-c3.Open)*0.3
}

func (d *Detector) isThreeBlackCrows(c1, c2, c3 market.Candle) bool {
	if c1.Close >= c1.Open || c2.Close >= c2.Open || c3.Close >= c3.Open {
		return false
	}
	return c2.Open < c1.Open && c3.Open < c2.Open &&
		c2.Close < c1.Close && c3.Close < c2.Close &&
		c1.Close-c1.Low < (c1.Open-c1.Close)*0.3 &&
		c2.Close-c2.Low < (c2.Open-c2.Close)*0.3 &&
		c3.Close-c3.Low < (c3.Open-c3.Close)*0.3
}

func (d *Detector) isAbandonedBaby(c1, c2, c3 market.Candle) (bool, bool) {
	if !d.isDoji(c2) {
		return false, false
	}

	bullish := c1.Close < c1.Open && c3.Close > c3.Open
	bearish := c1.Close > c1.Open && c3.Close < c3.Open
	if !bullish && !bearish {
		return false, false
	}

	minGap := c2.Close * d.gapThreshold
	if bullish {
		// Star gaps below the first candle, third gaps back up
		return c2.High < c1.Low-minGap && c3.Low > c2.High+minGap, true
	}
	// Star gaps above the first candle, third gaps back down
	return c2.Low > c1.High+minGap && c3.High < c2.Low-minGap, false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
