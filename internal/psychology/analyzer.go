// Package psychology reads market sentiment out of option chain analytics:
// a fear & greed score, smart money vs retail positioning, contrarian
// signals and volume-based bias.
package psychology

import (
	"fmt"
	"math"

	"options-trading-engine/internal/chain"
)

// FearGreed is the 0-100 sentiment score with its interpretation
type FearGreed struct {
	Score              int    `json:"score"`
	Sentiment          string `json:"sentiment"`
	Description        string `json:"description"`
	PCRContribution    string `json:"pcr_contribution"`
	IVSkewContribution string `json:"iv_skew_contribution"`
}

// SmartMoneyIndication is one detected institutional positioning pattern
type SmartMoneyIndication struct {
	Pattern     string  `json:"pattern"`
	Strike      float64 `json:"strike,omitempty"`
	OI          float64 `json:"oi,omitempty"`
	ChangeOI    float64 `json:"change_oi,omitempty"`
	Indication  string  `json:"indication"`
	Implication string  `json:"implication"`
}

// RetailPositioning describes what the crowd is likely doing
type RetailPositioning struct {
	Activity     string `json:"activity"`
	Implications string `json:"implications"`
}

// SmartMoney aggregates institutional positioning reads
type SmartMoney struct {
	Indications  []SmartMoneyIndication `json:"indications"`
	Retail       RetailPositioning      `json:"retail_positioning"`
	HedgingLevel string                 `json:"institutional_hedging_level"`
}

// ContrarianSignal is a single trade-against-the-crowd setup
type ContrarianSignal struct {
	Signal   string `json:"signal"`
	Strength string `json:"strength"`
	Reason   string `json:"reason"`
	Strategy string `json:"strategy"`
}

// Contrarian holds all contrarian setups plus the overall bias
type Contrarian struct {
	Signals []ContrarianSignal `json:"signals"`
	Bias    string             `json:"overall_bias"` // Bullish, Bearish or Neutral
}

// VolumeSentiment classifies the call/put volume ratio
type VolumeSentiment struct {
	CallPutVolumeRatio float64 `json:"call_put_volume_ratio"`
	Bias               string  `json:"bias"`
	Interpretation     string  `json:"interpretation"`
}

// Report is the complete psychology view over one chain analysis
type Report struct {
	FearGreed  *FearGreed       `json:"fear_greed_index"`
	SmartMoney *SmartMoney      `json:"smart_money_analysis"`
	Contrarian *Contrarian      `json:"contrarian_signals"`
	Volume     *VolumeSentiment `json:"volume_sentiment"`
	Summary    []string         `json:"summary"`
}

// Analyze builds the full psychology report from a chain analysis
func Analyze(a *chain.Analysis) *Report {
	r := &Report{
		FearGreed:  FearGreedIndex(a),
		SmartMoney: AnalyzeSmartMoney(a),
		Volume:     VolumeBias(a),
	}
	r.Contrarian = ContrarianSignals(a, r.FearGreed.Score)
	r.Summary = buildSummary(a, r)
	return r
}

// FearGreedIndex scores sentiment 0-100 from PCR, OI momentum, max pain
// distance and IV skew. 50 is neutral; low is fear, high is greed.
func FearGreedIndex(a *chain.Analysis) *FearGreed {
	score := 50

	// PCR: heavy put positioning reads as fear
	switch {
	case a.PCR > 1.5:
		score -= 20
	case a.PCR > 1.2:
		score -= 10
	case a.PCR > 0 && a.PCR < 0.5:
		score += 20
	case a.PCR > 0 && a.PCR < 0.8:
		score += 10
	}

	if a.Momentum != nil {
		switch a.Momentum.OIMomentum {
		case "Bullish":
			score += 10
		case "Bearish":
			score -= 10
		}
	}

	// Max pain above spot exerts upward pull toward expiry
	if a.MaxPainDistance > 1 {
		score += 5
	} else if a.MaxPainDistance < -1 {
		score -= 5
	}

	var putDelta, callDelta float64
	if a.IVSkew != nil {
		putDelta = a.IVSkew.AvgPutDelta()
		callDelta = a.IVSkew.AvgCallDelta()
		if putDelta != 0 && callDelta != 0 {
			if putDelta > callDelta*1.5 {
				score -= 10
			} else if callDelta > putDelta*1.5 {
				score += 10
			}
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	fg := &FearGreed{Score: score}
	switch {
	case score >= 75:
		fg.Sentiment = "Extreme Greed"
		fg.Description = "Market shows excessive optimism, potentially overvalued. Contrarian traders might consider defensive positions."
	case score >= 60:
		fg.Sentiment = "Greed"
		fg.Description = "Bullish sentiment with increasing risk appetite. Be cautious about chasing momentum at this stage."
	case score >= 45:
		fg.Sentiment = "Neutral to Bullish"
		fg.Description = "Balanced sentiment with slight bullish bias. Favorable for measured position building."
	case score >= 30:
		fg.Sentiment = "Neutral to Bearish"
		fg.Description = "Balanced sentiment with slight bearish bias. Consider protection strategies."
	case score >= 15:
		fg.Sentiment = "Fear"
		fg.Description = "Bearish sentiment with increasing risk aversion. Potential opportunity for contrarians."
	default:
		fg.Sentiment = "Extreme Fear"
		fg.Description = "Market shows excessive pessimism, potentially oversold. Contrarian opportunity for the brave."
	}

	fg.PCRContribution = "Neutral"
	if a.PCR > 1.2 {
		fg.PCRContribution = "Bearish"
	} else if a.PCR > 0 && a.PCR < 0.8 {
		fg.PCRContribution = "Bullish"
	}

	fg.IVSkewContribution = "Neutral"
	if putDelta != 0 && callDelta != 0 {
		if putDelta > callDelta {
			fg.IVSkewContribution = "Fearful"
		} else if callDelta > putDelta {
			fg.IVSkewContribution = "Complacent"
		}
	}

	return fg
}

// AnalyzeSmartMoney looks for institutional footprints: steep put skew,
// concentrated writing at key levels and outsized single-strike OI changes.
func AnalyzeSmartMoney(a *chain.Analysis) *SmartMoney {
	sm := &SmartMoney{HedgingLevel: "Normal"}

	if a.IVSkew != nil && len(a.IVSkew.OTMPuts) > 0 {
		if a.IVSkew.AvgPutDelta() > 5 {
			sm.Indications = append(sm.Indications, SmartMoneyIndication{
				Pattern:     "Institutional Hedging",
				Indication:  "Smart money adding downside protection",
				Implication: "Potential caution while maintaining long positions",
			})
			sm.HedgingLevel = "High"
		}
	}

	if a.KeyLevels != nil {
		for i, level := range a.KeyLevels.PutSupport {
			if i >= 2 {
				break
			}
			if a.UnderlyingValue > 0 && level.Strike > 0 && level.Strike < a.UnderlyingValue {
				sm.Indications = append(sm.Indications, SmartMoneyIndication{
					Pattern:     "Strong Put Support",
					Strike:      level.Strike,
					OI:          level.OI,
					Indication:  "Significant put writing at key level",
					Implication: "Smart money providing price support / selling insurance",
				})
			}
		}

		for i, level := range a.KeyLevels.CallResistance {
			if i >= 2 {
				break
			}
			if a.UnderlyingValue > 0 && level.Strike > a.UnderlyingValue {
				sm.Indications = append(sm.Indications, SmartMoneyIndication{
					Pattern:     "Strong Call Resistance",
					Strike:      level.Strike,
					OI:          level.OI,
					Indication:  "Significant call writing at key level",
					Implication: "Smart money creating price ceiling / selling insurance",
				})
			}
		}

		if len(a.KeyLevels.SignificantPEChange) > 0 {
			top := a.KeyLevels.SignificantPEChange[0]
			if top.ChangeOI > 200000 {
				sm.Indications = append(sm.Indications, SmartMoneyIndication{
					Pattern:     "Large Put OI Change",
					Strike:      top.Strike,
					ChangeOI:    top.ChangeOI,
					Indication:  "Significant put position change",
					Implication: "Institutional activity at this strike",
				})
			}
		}

		if len(a.KeyLevels.SignificantCEChange) > 0 {
			top := a.KeyLevels.SignificantCEChange[0]
			if top.ChangeOI > 200000 {
				sm.Indications = append(sm.Indications, SmartMoneyIndication{
					Pattern:     "Large Call OI Change",
					Strike:      top.Strike,
					ChangeOI:    top.ChangeOI,
					Indication:  "Significant call position change",
					Implication: "Institutional activity at this strike",
				})
			}
		}
	}

	sm.Retail = RetailPositioning{
		Activity:     "Neutral",
		Implications: "No clear retail positioning detected",
	}
	if a.PCR > 0 && a.PCR < 0.6 {
		sm.Retail = RetailPositioning{
			Activity:     "Bullish Chasing",
			Implications: "Retail traders likely chasing bullish momentum, potentially overextended",
		}
	} else if a.PCR > 1.4 {
		sm.Retail = RetailPositioning{
			Activity:     "Excessive Fear",
			Implications: "Retail traders showing excessive fear, potentially oversold",
		}
	}

	return sm
}

// ContrarianSignals flags trade-against-the-crowd setups: sentiment
// extremes, PCR extremes, max pain reversion and one-sided OI exhaustion.
func ContrarianSignals(a *chain.Analysis, fearGreedScore int) *Contrarian {
	c := &Contrarian{Bias: "Neutral"}
	if fearGreedScore < 30 {
		c.Bias = "Bullish"
	} else if fearGreedScore > 70 {
		c.Bias = "Bearish"
	}

	if fearGreedScore <= 15 {
		c.Signals = append(c.Signals, ContrarianSignal{
			Signal:   "Potential Bullish Reversal",
			Strength: "Strong",
			Reason:   fmt.Sprintf("Extreme fear (score: %d) often precedes market bottoms", fearGreedScore),
			Strategy: "Consider bullish positions against the prevailing sentiment",
		})
	} else if fearGreedScore >= 85 {
		c.Signals = append(c.Signals, ContrarianSignal{
			Signal:   "Potential Bearish Reversal",
			Strength: "Strong",
			Reason:   fmt.Sprintf("Extreme greed (score: %d) often precedes market tops", fearGreedScore),
			Strategy: "Consider bearish positions against the prevailing sentiment",
		})
	}

	if a.PCR > 1.5 {
		c.Signals = append(c.Signals, ContrarianSignal{
			Signal:   "Contrarian Bullish Signal",
			Strength: "Moderate to Strong",
			Reason:   fmt.Sprintf("Very high PCR (%.2f) indicates excessive fear or hedging", a.PCR),
			Strategy: "Consider bullish positions, especially if technical support is present",
		})
	} else if a.PCR > 0 && a.PCR < 0.5 {
		c.Signals = append(c.Signals, ContrarianSignal{
			Signal:   "Contrarian Bearish Signal",
			Strength: "Moderate to Strong",
			Reason:   fmt.Sprintf("Very low PCR (%.2f) indicates excessive complacency or euphoria", a.PCR),
			Strategy: "Consider bearish positions, especially if technical resistance is present",
		})
	}

	if a.MaxPainDistance > 3 {
		c.Signals = append(c.Signals, ContrarianSignal{
			Signal:   "Potential Upward Reversion",
			Strength: "Moderate",
			Reason:   fmt.Sprintf("Price (%.2f) significantly below max pain (%.2f)", a.UnderlyingValue, a.MaxPain),
			Strategy: "Consider bullish positions anticipating mean reversion to max pain",
		})
	} else if a.MaxPainDistance < -3 {
		c.Signals = append(c.Signals, ContrarianSignal{
			Signal:   "Potential Downward Reversion",
			Strength: "Moderate",
			Reason:   fmt.Sprintf("Price (%.2f) significantly above max pain (%.2f)", a.UnderlyingValue, a.MaxPain),
			Strategy: "Consider bearish positions anticipating mean reversion to max pain",
		})
	}

	if a.Momentum != nil {
		ce, pe := a.Momentum.CEOIChange, a.Momentum.PEOIChange
		if ce > 500000 && pe != 0 && ce > pe*3 {
			c.Signals = append(c.Signals, ContrarianSignal{
				Signal:   "Potential Call Exhaustion",
				Strength: "Moderate",
				Reason:   fmt.Sprintf("Extremely high call OI buildup (change: %.0f)", ce),
				Strategy: "Be cautious of buying calls at these levels, potential reversal",
			})
		}
		if pe > 500000 && ce != 0 && pe > ce*3 {
			c.Signals = append(c.Signals, ContrarianSignal{
				Signal:   "Potential Put Exhaustion",
				Strength: "Moderate",
				Reason:   fmt.Sprintf("Extremely high put OI buildup (change: %.0f)", pe),
				Strategy: "Be cautious of buying puts at these levels, potential reversal",
			})
		}
	}

	return c
}

// VolumeBias classifies sentiment from the call/put traded volume ratio
func VolumeBias(a *chain.Analysis) *VolumeSentiment {
	vs := &VolumeSentiment{
		Bias:           "Neutral",
		Interpretation: "Volume data not available",
	}
	if a.Momentum == nil || a.Momentum.PEVolume <= 0 {
		return vs
	}

	ratio := a.Momentum.CEVolume / a.Momentum.PEVolume
	vs.CallPutVolumeRatio = round2(ratio)

	switch {
	case ratio > 2.0:
		vs.Bias = "Extremely Bullish"
		vs.Interpretation = "Significantly more call volume than put volume indicates strong bullish sentiment or FOMO"
	case ratio > 1.5:
		vs.Bias = "Bullish"
		vs.Interpretation = "More call volume than put volume indicates bullish sentiment"
	case ratio > 1.0:
		vs.Bias = "Slightly Bullish"
		vs.Interpretation = "Slightly more call volume than put volume indicates mildly bullish sentiment"
	case ratio > 0.7:
		vs.Bias = "Neutral"
		vs.Interpretation = "Roughly balanced call and put volume indicates neutral sentiment"
	case ratio > 0.5:
		vs.Bias = "Slightly Bearish"
		vs.Interpretation = "Slightly more put volume than call volume indicates mildly bearish sentiment"
	case ratio > 0.3:
		vs.Bias = "Bearish"
		vs.Interpretation = "More put volume than call volume indicates bearish sentiment"
	default:
		vs.Bias = "Extremely Bearish"
		vs.Interpretation = "Significantly more put volume than call volume indicates strong bearish sentiment or panic"
	}

	return vs
}

func buildSummary(a *chain.Analysis, r *Report) []string {
	var summary []string

	switch {
	case r.FearGreed.Score < 30:
		summary = append(summary, "Market sentiment is fearful, with psychological indicators suggesting pessimism.")
	case r.FearGreed.Score > 70:
		summary = append(summary, "Market sentiment is greedy, with psychological indicators suggesting optimism.")
	default:
		summary = append(summary, "Market sentiment is relatively balanced between fear and greed.")
	}

	if len(r.SmartMoney.Indications) > 0 {
		summary = append(summary, "Institutional activity detected at key strike prices, suggesting smart money positioning.")
	}

	if len(r.Contrarian.Signals) > 0 {
		if r.Contrarian.Bias == "Bullish" {
			summary = append(summary, "Contrarian indicators suggest potential bullish reversal against prevailing bearish sentiment.")
		} else if r.Contrarian.Bias == "Bearish" {
			summary = append(summary, "Contrarian indicators suggest potential bearish reversal against prevailing bullish sentiment.")
		}
	}

	if diff := a.MaxPainDistance; a.MaxPain > 0 && (diff > 1 || diff < -1) {
		direction, pressure := "above", "downward"
		if diff > 0 {
			direction, pressure = "below", "upward"
		}
		summary = append(summary, fmt.Sprintf(
			"Current price is %.2f%% %s max pain (%.2f), suggesting potential %s pressure.",
			abs(diff), direction, a.MaxPain, pressure))
	}

	if a.PCR > 1.2 {
		summary = append(summary, fmt.Sprintf("Put-Call Ratio of %.2f indicates elevated hedging or bearish positioning.", a.PCR))
	} else if a.PCR > 0 && a.PCR < 0.8 {
		summary = append(summary, fmt.Sprintf("Put-Call Ratio of %.2f indicates low hedging or bullish positioning.", a.PCR))
	}

	return summary
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
