package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"options-trading-engine/internal/market"
)

// FeatureNames is the fixed order of the model feature vector
var FeatureNames = []string{
	"open", "high", "low", "close",
	"bullish_pattern", "bearish_pattern",
	"rsi", "macd", "macd_signal",
	"volume", "vwap", "supertrend_direction", "atr",
}

// Model is a linear scorer over the feature vector, one weight row per
// signal class, loaded from a JSON weight file produced by training.
type Model struct {
	Features []string             `json:"features"`
	Weights  map[string][]float64 `json:"weights"` // class -> weight per feature
	Bias     map[string]float64   `json:"bias"`
}

// LoadModel reads a weight file from disk
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding model file: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("model file %s has no weights", path)
	}
	for class, w := range m.Weights {
		if len(w) != len(m.Features) {
			return nil, fmt.Errorf("model class %s has %d weights for %d features",
				class, len(w), len(m.Features))
		}
	}
	return &m, nil
}

// Score evaluates the feature vector and returns the winning signal with a
// softmax probability as confidence.
func (m *Model) Score(features []float64) (market.Signal, float64) {
	scores := make(map[string]float64, len(m.Weights))
	maxScore := math.Inf(-1)
	best := string(market.SignalWait)

	for class, weights := range m.Weights {
		s := m.Bias[class]
		n := len(weights)
		if len(features) < n {
			n = len(features)
		}
		for i := 0; i < n; i++ {
			s += weights[i] * features[i]
		}
		scores[class] = s
		if s > maxScore || (s == maxScore && class < best) {
			maxScore = s
			best = class
		}
	}

	// Softmax with the usual max-shift for stability
	sum := 0.0
	for _, s := range scores {
		sum += math.Exp(s - maxScore)
	}
	confidence := 1.0
	if sum > 0 {
		confidence = 1.0 / sum
	}

	switch market.Signal(best) {
	case market.SignalBuyCall, market.SignalBuyPut:
		return market.Signal(best), confidence
	default:
		return market.SignalWait, confidence
	}
}
