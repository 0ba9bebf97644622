// Package strategy turns option chain analytics into directional trade
// signals and multi-leg strategy recommendations.
package strategy

import (
	"fmt"
	"math"
	"time"

	"options-trading-engine/internal/chain"
	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
)

// MicroSignal is one rule firing over the chain analytics
type MicroSignal struct {
	Signal     market.Signal `json:"signal"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
	Target     float64       `json:"target,omitempty"`
	Timeframe  string        `json:"timeframe"`
}

// FinalSignal is the aggregated recommendation across all micro signals
type FinalSignal struct {
	Signal     market.Signal `json:"signal"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
	Target     float64       `json:"target,omitempty"`
	Timeframe  string        `json:"timeframe,omitempty"`
}

// SignalSet bundles the micro signals with their aggregation
type SignalSet struct {
	Index           market.Index  `json:"index"`
	Timestamp       time.Time     `json:"timestamp"`
	UnderlyingValue float64       `json:"underlying_value"`
	PCR             float64       `json:"pcr"`
	MaxPain         float64       `json:"max_pain"`
	Signals         []MicroSignal `json:"signals"`
	Final           FinalSignal   `json:"final_signal"`
}

// Position is a concrete trade suggestion derived from a final signal
type Position struct {
	Index      market.Index  `json:"index"`
	Signal     market.Signal `json:"signal"`
	Confidence float64       `json:"confidence"`
	Reason     string        `json:"reason"`
	Entry      float64       `json:"entry"`
	Strike     float64       `json:"strike"`
	Premium    float64       `json:"premium"`
	StopLoss   float64       `json:"stop_loss"`
	Target     float64       `json:"target"`
	Lots       int           `json:"lots"`
	Expiry     string        `json:"expiry"`
	RiskReward float64       `json:"risk_reward"`
	Action     string        `json:"action"` // EXECUTE or MONITOR
}

// Generator applies the signal rules over chain analytics
type Generator struct {
	logger *logging.Logger
}

func NewGenerator() *Generator {
	return &Generator{logger: logging.WithComponent("strategy")}
}

// Generate runs every signal rule over the analysis and aggregates the
// result. Per-direction confidence is the sum over the five rules divided
// by five; the winning side must clear 0.65 or the final signal is WAIT.
func (g *Generator) Generate(a *chain.Analysis) *SignalSet {
	set := &SignalSet{
		Index:           a.Index,
		Timestamp:       a.Timestamp,
		UnderlyingValue: a.UnderlyingValue,
		PCR:             a.PCR,
		MaxPain:         a.MaxPain,
	}

	// Rule 1: PCR extremes are contrarian
	if a.PCR > 1.5 {
		set.Signals = append(set.Signals, MicroSignal{
			Signal:     market.SignalBuyCall,
			Reason:     fmt.Sprintf("Extremely high PCR (%.2f) indicates potential reversal (contrarian)", a.PCR),
			Confidence: 0.70,
			Timeframe:  "Intraday",
		})
	} else if a.PCR > 0 && a.PCR < 0.5 {
		set.Signals = append(set.Signals, MicroSignal{
			Signal:     market.SignalBuyPut,
			Reason:     fmt.Sprintf("Extremely low PCR (%.2f) indicates potential reversal (contrarian)", a.PCR),
			Confidence: 0.70,
			Timeframe:  "Intraday",
		})
	}

	// Rule 2: heavy single-strike OI buildup creates walls
	if a.KeyLevels != nil {
		if len(a.KeyLevels.SignificantCEChange) > 0 {
			top := a.KeyLevels.SignificantCEChange[0]
			if top.Strike > a.UnderlyingValue && top.ChangeOI > 100000 {
				set.Signals = append(set.Signals, MicroSignal{
					Signal:     market.SignalBuyPut,
					Reason:     fmt.Sprintf("Strong call writing at %.0f creating resistance", top.Strike),
					Confidence: 0.65,
					Target:     top.Strike,
					Timeframe:  "Intraday",
				})
			}
		}
		if len(a.KeyLevels.SignificantPEChange) > 0 {
			top := a.KeyLevels.SignificantPEChange[0]
			if top.Strike > 0 && top.Strike < a.UnderlyingValue && top.ChangeOI > 100000 {
				set.Signals = append(set.Signals, MicroSignal{
					Signal:     market.SignalBuyCall,
					Reason:     fmt.Sprintf("Strong put writing at %.0f creating support", top.Strike),
					Confidence: 0.65,
					Target:     top.Strike,
					Timeframe:  "Intraday",
				})
			}
		}
	}

	// Rule 3: price gravitates toward max pain
	if a.MaxPainDistance > 1 {
		set.Signals = append(set.Signals, MicroSignal{
			Signal:     market.SignalBuyCall,
			Reason:     fmt.Sprintf("Price (%.2f) below max pain (%.2f), potential upward movement", a.UnderlyingValue, a.MaxPain),
			Confidence: 0.60,
			Timeframe:  "Intraday to Swing",
		})
	} else if a.MaxPainDistance < -1 {
		set.Signals = append(set.Signals, MicroSignal{
			Signal:     market.SignalBuyPut,
			Reason:     fmt.Sprintf("Price (%.2f) above max pain (%.2f), potential downward movement", a.UnderlyingValue, a.MaxPain),
			Confidence: 0.60,
			Timeframe:  "Intraday to Swing",
		})
	}

	// Rule 4: steep IV skew marks sentiment extremes
	if a.IVSkew != nil && len(a.IVSkew.OTMPuts) > 0 && len(a.IVSkew.OTMCalls) > 0 {
		putDelta := a.IVSkew.AvgPutDelta()
		callDelta := a.IVSkew.AvgCallDelta()
		if putDelta > 5 && putDelta > callDelta*1.5 {
			set.Signals = append(set.Signals, MicroSignal{
				Signal:     market.SignalBuyCall,
				Reason:     "Steep put IV skew indicates market fear and potential reversal",
				Confidence: 0.55,
				Timeframe:  "Swing",
			})
		} else if callDelta > 5 && callDelta > putDelta*1.5 {
			set.Signals = append(set.Signals, MicroSignal{
				Signal:     market.SignalBuyPut,
				Reason:     "Steep call IV skew indicates excessive optimism and potential reversal",
				Confidence: 0.55,
				Timeframe:  "Swing",
			})
		}
	}

	// Rule 5: one-sided OI momentum shows the writers' conviction
	if a.Momentum != nil {
		ce, pe := a.Momentum.CEOIChange, a.Momentum.PEOIChange
		if ce > 500000 && ce > pe*2 {
			set.Signals = append(set.Signals, MicroSignal{
				Signal:     market.SignalBuyPut,
				Reason:     "Heavy call writing indicating bearish sentiment",
				Confidence: 0.60,
				Timeframe:  "Intraday",
			})
		}
		if pe > 500000 && pe > ce*2 {
			set.Signals = append(set.Signals, MicroSignal{
				Signal:     market.SignalBuyCall,
				Reason:     "Heavy put writing indicating bullish sentiment",
				Confidence: 0.60,
				Timeframe:  "Intraday",
			})
		}
	}

	set.Final = aggregate(set.Signals)

	g.logger.Debug("Signals generated",
		"index", string(a.Index),
		"count", len(set.Signals),
		"final", string(set.Final.Signal),
		"confidence", set.Final.Confidence)

	return set
}

func aggregate(signals []MicroSignal) FinalSignal {
	if len(signals) == 0 {
		return FinalSignal{Signal: market.SignalWait, Reason: "No clear signals detected"}
	}

	var callConf, putConf float64
	var bestCall, bestPut *MicroSignal
	for i := range signals {
		s := &signals[i]
		switch s.Signal {
		case market.SignalBuyCall:
			callConf += s.Confidence
			if bestCall == nil || s.Confidence > bestCall.Confidence {
				bestCall = s
			}
		case market.SignalBuyPut:
			putConf += s.Confidence
			if bestPut == nil || s.Confidence > bestPut.Confidence {
				bestPut = s
			}
		}
	}
	callConf /= 5
	putConf /= 5

	switch {
	case callConf > putConf && callConf > 0.65:
		return FinalSignal{
			Signal:     market.SignalBuyCall,
			Reason:     bestCall.Reason,
			Confidence: round2(callConf),
			Target:     bestCall.Target,
			Timeframe:  bestCall.Timeframe,
		}
	case putConf > callConf && putConf > 0.65:
		return FinalSignal{
			Signal:     market.SignalBuyPut,
			Reason:     bestPut.Reason,
			Confidence: round2(putConf),
			Target:     bestPut.Target,
			Timeframe:  bestPut.Timeframe,
		}
	default:
		return FinalSignal{
			Signal:     market.SignalWait,
			Reason:     "Conflicting signals or low confidence",
			Confidence: round2(math.Max(callConf, putConf)),
		}
	}
}

// SuggestPosition turns an actionable final signal into a concrete trade:
// a slightly in-the-money strike, a 1% stop and a 2% target off the spot.
// Returns nil when the final signal is WAIT or the spot is unknown.
func (g *Generator) SuggestPosition(s *chain.Snapshot, set *SignalSet) *Position {
	final := set.Final
	if final.Signal == market.SignalWait || set.UnderlyingValue <= 0 {
		return nil
	}

	spot := set.UnderlyingValue
	step := set.Index.StrikeStep()
	atm := math.Round(spot/step) * step

	p := &Position{
		Index:      set.Index,
		Signal:     final.Signal,
		Confidence: final.Confidence,
		Reason:     final.Reason,
		Entry:      spot,
		Lots:       1,
		RiskReward: 2,
	}
	if s != nil {
		p.Expiry = s.Expiry
	}

	if final.Signal == market.SignalBuyCall {
		p.Strike = atm - step
		p.StopLoss = spot - spot*0.01
		p.Target = spot + spot*0.02
	} else {
		p.Strike = atm + step
		p.StopLoss = spot + spot*0.01
		p.Target = spot - spot*0.02
	}

	if s != nil {
		for _, r := range s.Rows {
			if r.Strike != p.Strike {
				continue
			}
			if final.Signal == market.SignalBuyCall {
				p.Premium = r.CE.LTP
			} else {
				p.Premium = r.PE.LTP
			}
			break
		}
	}

	if final.Confidence > 0.8 {
		p.Lots = 3
	} else if final.Confidence > 0.7 {
		p.Lots = 2
	}

	p.Action = "MONITOR"
	if final.Confidence > 0.7 {
		p.Action = "EXECUTE"
	}

	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
