// Package ml blends a trained weight model with indicator and pattern
// signals into a single prediction with entry and exit levels.
package ml

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"options-trading-engine/internal/indicators"
	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
	"options-trading-engine/internal/patterns"
)

// Source weights for blending the three signal sources
const (
	weightML        = 0.5
	weightIndicator = 0.3
	weightPattern   = 0.2
)

// Prediction is the blended trading signal for one index and timeframe
type Prediction struct {
	Index            market.Index  `json:"index"`
	Timeframe        string        `json:"timeframe"`
	Signal           market.Signal `json:"signal"`
	Confidence       float64       `json:"confidence"`
	MLSignal         market.Signal `json:"ml_signal"`
	MLConfidence     float64       `json:"ml_confidence"`
	Entry            float64       `json:"entry"`
	StopLoss         float64       `json:"stop_loss"`
	Target           float64       `json:"target"`
	Strike           float64       `json:"strike"`
	PatternsDetected []string      `json:"patterns_detected"`
	Trend            string        `json:"trend"`
	ConfidenceReason string        `json:"confidence_reason"`
	Timestamp        time.Time     `json:"timestamp"`
}

// CacheStats counts prediction cache hits and misses
type CacheStats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

type cachedPrediction struct {
	prediction *Prediction
	expires    time.Time
}

// Predictor runs the blend. A nil model falls back to indicator rules.
type Predictor struct {
	model  *Model
	ttl    time.Duration
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[string]*cachedPrediction
	stats CacheStats
}

// NewPredictor creates a predictor. A zero TTL defaults to 30 seconds.
func NewPredictor(model *Model, ttl time.Duration) *Predictor {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Predictor{
		model:  model,
		ttl:    ttl,
		logger: logging.WithComponent("ml"),
		cache:  make(map[string]*cachedPrediction),
	}
}

// Predict blends the ML model with indicator and pattern signals over the
// candle history. Results are cached per index and timeframe.
func (p *Predictor) Predict(index market.Index, timeframe string, candles []market.Candle) *Prediction {
	key := fmt.Sprintf("%s_%s", index, timeframe)

	p.mu.RLock()
	if c, ok := p.cache[key]; ok && time.Now().Before(c.expires) {
		p.mu.RUnlock()
		p.mu.Lock()
		p.stats.Hits++
		p.mu.Unlock()
		return c.prediction
	}
	p.mu.RUnlock()

	frame := indicators.BuildFrame(candles)
	pattern := patterns.Analyze(index, timeframe, candles)
	indicator := indicators.AnalyzeSignals(candles)

	mlSignal, mlConfidence := p.modelSignal(candles, frame, pattern)

	signal, confidence := blend(
		mlSignal, mlConfidence,
		indicator.Signal, indicator.Confidence,
		pattern.Signal, pattern.Confidence,
	)

	levels := indicators.CalculateTradeLevels(candles, signal)

	prediction := &Prediction{
		Index:            index,
		Timeframe:        timeframe,
		Signal:           signal,
		Confidence:       round2(confidence),
		MLSignal:         mlSignal,
		MLConfidence:     round2(mlConfidence),
		Entry:            levels.Entry,
		StopLoss:         levels.StopLoss,
		Target:           levels.Target,
		Strike:           OptimalStrike(levels.Entry, signal, index),
		PatternsDetected: pattern.PatternsDetected,
		Trend:            string(frame.Trend),
		ConfidenceReason: confidenceReason(pattern, frame),
		Timestamp:        time.Now(),
	}

	p.mu.Lock()
	p.stats.Misses++
	p.cache[key] = &cachedPrediction{prediction: prediction, expires: time.Now().Add(p.ttl)}
	p.mu.Unlock()

	p.logger.Debug("Prediction generated",
		"index", string(index),
		"timeframe", timeframe,
		"signal", string(signal),
		"confidence", prediction.Confidence)

	return prediction
}

// Stats returns a copy of the cache counters
func (p *Predictor) Stats() CacheStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// modelSignal scores the feature vector with the weight model, or applies
// the RSI/MACD rule fallback when no model is loaded.
func (p *Predictor) modelSignal(candles []market.Candle, frame *indicators.Frame, pattern *patterns.Analysis) (market.Signal, float64) {
	if p.model != nil && len(candles) > 0 {
		return p.model.Score(FeatureVector(candles, frame, pattern))
	}

	if frame.MACD != nil {
		if frame.RSI < 30 && frame.MACD.MACD > frame.MACD.Signal {
			return market.SignalBuyCall, 0.70
		}
		if frame.RSI > 70 && frame.MACD.MACD < frame.MACD.Signal {
			return market.SignalBuyPut, 0.70
		}
	}
	return market.SignalWait, 0.50
}

// FeatureVector assembles the model input in FeatureNames order
func FeatureVector(candles []market.Candle, frame *indicators.Frame, pattern *patterns.Analysis) []float64 {
	last := candles[len(candles)-1]

	bullish, bearish := 0.0, 0.0
	if pattern != nil {
		if pattern.Signal == market.SignalBuyCall {
			bullish = 1
		} else if pattern.Signal == market.SignalBuyPut {
			bearish = 1
		}
	}

	var macd, macdSignal float64
	if frame.MACD != nil {
		macd = frame.MACD.MACD
		macdSignal = frame.MACD.Signal
	}
	var supertrendDir float64
	if frame.Supertrend != nil {
		supertrendDir = float64(frame.Supertrend.Direction)
	}

	return []float64{
		last.Open, last.High, last.Low, last.Close,
		bullish, bearish,
		frame.RSI, macd, macdSignal,
		last.Volume, frame.VWAP, supertrendDir, frame.ATR,
	}
}

// blend combines the three sources by weighted vote. The winner takes the
// summed weighted confidence; unanimous non-WAIT agreement adds 0.10
// capped at 0.95.
func blend(ml market.Signal, mlConf float64, ind market.Signal, indConf float64, pat market.Signal, patConf float64) (market.Signal, float64) {
	scores := map[market.Signal]float64{}
	scores[ml] += weightML * mlConf
	scores[ind] += weightIndicator * indConf
	scores[pat] += weightPattern * patConf

	best := market.SignalBuyCall
	for _, s := range []market.Signal{market.SignalWait, market.SignalBuyPut} {
		if scores[s] > scores[best] {
			best = s
		}
	}

	confidence := scores[best]
	if ml == ind && ind == pat && ml != market.SignalWait {
		confidence = math.Min(confidence+0.10, 0.95)
	}

	return best, confidence
}

// OptimalStrike picks a slightly in-the-money strike for better delta;
// WAIT gets the at-the-money strike.
func OptimalStrike(price float64, signal market.Signal, index market.Index) float64 {
	step := index.StrikeStep()
	atm := math.Round(price/step) * step

	switch signal {
	case market.SignalBuyCall:
		return atm - step
	case market.SignalBuyPut:
		return atm + step
	default:
		return atm
	}
}

func confidenceReason(pattern *patterns.Analysis, frame *indicators.Frame) string {
	trend := strings.ToLower(string(frame.Trend))
	if pattern != nil && len(pattern.PatternsDetected) > 0 {
		names := pattern.PatternsDetected
		if len(names) > 2 {
			names = names[:2]
		}
		return fmt.Sprintf("Based on %s in a %s market", strings.Join(names, ", "), trend)
	}
	return fmt.Sprintf("Based on technical indicators in a %s market", trend)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
