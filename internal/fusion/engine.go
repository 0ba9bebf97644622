// Package fusion combines ML, indicator and pattern signals into the final
// trading decision, applying risk-profile weights and trade gates.
package fusion

import (
	"fmt"
	"math"
	"strings"
	"time"

	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
)

// SourceSignal is one upstream signal feeding the fusion
type SourceSignal struct {
	Signal     market.Signal `json:"signal"`
	Confidence float64       `json:"confidence"`
}

// SourceBreakdown preserves the inputs on the decision for auditing
type SourceBreakdown struct {
	ML        SourceSignal  `json:"ml"`
	Indicator SourceSignal  `json:"indicator"`
	Pattern   *SourceSignal `json:"pattern,omitempty"`
}

// Decision is the fused output
type Decision struct {
	Signal      market.Signal      `json:"signal"`
	Confidence  float64            `json:"confidence"`
	Action      string             `json:"action"` // EXECUTE TRADE, SUGGEST TRADE, NO ACTION
	Lots        int                `json:"lots"`
	Reasoning   string             `json:"reasoning"`
	RiskProfile market.RiskProfile `json:"risk_profile"`
	Timestamp   time.Time          `json:"timestamp"`
	Sources     SourceBreakdown    `json:"source_signals"`
}

type profileWeights struct {
	ml, indicator, pattern float64
	threshold              float64
}

func weightsFor(profile market.RiskProfile) profileWeights {
	switch profile {
	case market.RiskConservative:
		// Lean on technicals, demand more conviction
		return profileWeights{ml: 0.3, indicator: 0.5, pattern: 0.2, threshold: 0.80}
	case market.RiskAggressive:
		return profileWeights{ml: 0.5, indicator: 0.3, pattern: 0.2, threshold: 0.65}
	default:
		return profileWeights{ml: 0.4, indicator: 0.4, pattern: 0.2, threshold: 0.75}
	}
}

// Engine fuses upstream signals per risk profile
type Engine struct {
	logger *logging.Logger
}

func NewEngine() *Engine {
	return &Engine{logger: logging.WithComponent("fusion")}
}

// Fuse weighs the sources, boosts unanimous agreement and maps confidence
// to an action. A nil pattern renormalizes the ML and indicator weights.
func (e *Engine) Fuse(ml, indicator SourceSignal, pattern *SourceSignal, profile market.RiskProfile) *Decision {
	w := weightsFor(profile)
	if pattern == nil {
		total := w.ml + w.indicator
		w.ml /= total
		w.indicator /= total
		w.pattern = 0
	}

	scores := map[market.Signal]float64{}
	scores[ml.Signal] += w.ml * ml.Confidence
	scores[indicator.Signal] += w.indicator * indicator.Confidence
	if pattern != nil {
		scores[pattern.Signal] += w.pattern * pattern.Confidence
	}

	final := market.SignalBuyCall
	for _, s := range []market.Signal{market.SignalWait, market.SignalBuyPut} {
		if scores[s] > scores[final] {
			final = s
		}
	}
	confidence := scores[final]

	agree := ml.Signal == indicator.Signal
	if pattern != nil {
		agree = agree && indicator.Signal == pattern.Signal
	}
	if agree {
		confidence = math.Min(confidence+0.10, 0.98)
	}

	action := "SUGGEST TRADE"
	if confidence >= w.threshold {
		action = "EXECUTE TRADE"
	}
	if final == market.SignalWait {
		action = "NO ACTION"
	}

	lots := 1
	if confidence > 0.9 {
		lots = 3
	} else if confidence > 0.8 {
		lots = 2
	}

	d := &Decision{
		Signal:      final,
		Confidence:  round2(confidence),
		Action:      action,
		Lots:        lots,
		Reasoning:   reasoning(final, agree, ml, indicator, pattern),
		RiskProfile: profile,
		Timestamp:   time.Now(),
		Sources: SourceBreakdown{
			ML:        ml,
			Indicator: indicator,
			Pattern:   pattern,
		},
	}

	e.logger.Debug("Signals fused",
		"signal", string(d.Signal),
		"confidence", d.Confidence,
		"action", d.Action,
		"profile", string(profile))

	return d
}

func reasoning(final market.Signal, agree bool, ml, indicator SourceSignal, pattern *SourceSignal) string {
	if agree {
		return fmt.Sprintf("All sources agree on %s with high confidence", final)
	}

	parts := []string{
		fmt.Sprintf("ML: %s (%.2f)", ml.Signal, ml.Confidence),
		fmt.Sprintf("Indicators: %s (%.2f)", indicator.Signal, indicator.Confidence),
	}
	if pattern != nil {
		parts = append(parts, fmt.Sprintf("Patterns: %s (%.2f)", pattern.Signal, pattern.Confidence))
	}
	return fmt.Sprintf("Mixed signals: %s. Choosing %s based on weighted confidence.",
		strings.Join(parts, ", "), final)
}

// TechnicalFactors are the market conditions checked by the trade gate
type TechnicalFactors struct {
	RiskReward float64 `json:"risk_reward"`
	ATRPercent float64 `json:"atr_percent"`
	ADX        float64 `json:"adx"`
}

// ShouldTakeTrade applies the risk gate on top of a fused decision:
// minimum risk-reward, maximum volatility and minimum trend strength,
// all scaled by the risk profile.
func ShouldTakeTrade(signal market.Signal, confidence float64, factors TechnicalFactors, profile market.RiskProfile) bool {
	if signal == market.SignalWait || confidence < 0.6 {
		return false
	}

	var minRR, maxVol, minADX float64
	switch profile {
	case market.RiskConservative:
		minRR, maxVol, minADX = 2.0, 1.5, 25
	case market.RiskAggressive:
		minRR, maxVol, minADX = 1.2, 2.5, 15
	default:
		minRR, maxVol, minADX = 1.5, 2.0, 20
	}

	if factors.RiskReward < minRR {
		return false
	}
	if factors.ATRPercent > maxVol {
		return false
	}
	if factors.ADX < minADX {
		return false
	}
	return true
}

// LotSize sizes the position so the stop-loss risk stays within the
// per-trade risk budget. Always at least one lot.
func LotSize(balance, riskPerTrade, entry, stopLoss float64, index market.Index) int {
	riskPerPoint := math.Abs(entry - stopLoss)
	if riskPerPoint <= 0 || balance <= 0 {
		return 1
	}

	riskAmount := balance * riskPerTrade
	riskPerLot := riskPerPoint * float64(index.LotSize())
	lots := int(riskAmount / riskPerLot)
	if lots < 1 {
		return 1
	}
	return lots
}

// ExpiryStrategy picks the weekly contract: roll to next week when the
// current one is too close for the risk profile.
func ExpiryStrategy(daysToExpiry int, profile market.RiskProfile) string {
	if daysToExpiry <= 1 {
		return "next_weekly"
	}

	switch profile {
	case market.RiskConservative:
		if daysToExpiry < 3 {
			return "next_weekly"
		}
	case market.RiskAggressive:
		if daysToExpiry < 1 {
			return "next_weekly"
		}
	default:
		if daysToExpiry < 2 {
			return "next_weekly"
		}
	}
	return "current_weekly"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
