package strategy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"options-trading-engine/internal/chain"
)

// Outlook carries the descriptive header every strategy shares
type Outlook struct {
	Strategy      string `json:"strategy"`
	Description   string `json:"description"`
	MarketOutlook string `json:"market_outlook"`
	IVOutlook     string `json:"iv_outlook"`
}

// Straddle buys a call and a put at the same strike
type Straddle struct {
	Outlook
	Strike        float64 `json:"strike"`
	CallIV        float64 `json:"call_iv"`
	PutIV         float64 `json:"put_iv"`
	CallPrice     float64 `json:"call_price"`
	PutPrice      float64 `json:"put_price"`
	TotalCost     float64 `json:"total_cost"`
	BreakEvenUp   float64 `json:"break_even_up"`
	BreakEvenDown float64 `json:"break_even_down"`
}

// Strangle buys an OTM call and an OTM put
type Strangle struct {
	Outlook
	CallStrike    float64 `json:"call_strike"`
	PutStrike     float64 `json:"put_strike"`
	CallIV        float64 `json:"call_iv"`
	PutIV         float64 `json:"put_iv"`
	CallPrice     float64 `json:"call_price"`
	PutPrice      float64 `json:"put_price"`
	TotalCost     float64 `json:"total_cost"`
	BreakEvenUp   float64 `json:"break_even_up"`
	BreakEvenDown float64 `json:"break_even_down"`
}

// VerticalSpread is a two-leg debit spread (bull call or bear put)
type VerticalSpread struct {
	Outlook
	LowerStrike float64 `json:"lower_strike"`
	UpperStrike float64 `json:"upper_strike"`
	LowerPrice  float64 `json:"lower_price"`
	UpperPrice  float64 `json:"upper_price"`
	MaxProfit   float64 `json:"max_profit"`
	MaxLoss     float64 `json:"max_loss"`
	RiskReward  float64 `json:"risk_reward"`
}

// IronCondor sells an OTM put and call, buying further OTM protection
type IronCondor struct {
	Outlook
	PutShortStrike  float64 `json:"put_short_strike"`
	PutLongStrike   float64 `json:"put_long_strike"`
	CallShortStrike float64 `json:"call_short_strike"`
	CallLongStrike  float64 `json:"call_long_strike"`
	NetPremium      float64 `json:"net_premium"`
	MaxRisk         float64 `json:"max_risk"`
	RiskReward      float64 `json:"risk_reward"`
	BreakEvenLower  float64 `json:"break_even_lower"`
	BreakEvenUpper  float64 `json:"break_even_upper"`
}

// Butterfly buys the wings and sells twice the body, all calls
type Butterfly struct {
	Outlook
	LowerStrike    float64 `json:"lower_strike"`
	MiddleStrike   float64 `json:"middle_strike"`
	UpperStrike    float64 `json:"upper_strike"`
	LowerPrice     float64 `json:"lower_price"`
	MiddlePrice    float64 `json:"middle_price"`
	UpperPrice     float64 `json:"upper_price"`
	NetDebit       float64 `json:"net_debit"`
	MaxProfit      float64 `json:"max_profit"`
	RiskReward     float64 `json:"risk_reward"`
	BreakEvenLower float64 `json:"break_even_lower"`
	BreakEvenUpper float64 `json:"break_even_upper"`
}

// LongOption is a plain directional long call or long put
type LongOption struct {
	Outlook
	Strike     float64 `json:"strike"`
	Premium    float64 `json:"premium"`
	BreakEven  float64 `json:"break_even"`
	Confidence string  `json:"confidence"` // High or Medium
}

func atmRowIndex(rows []chain.StrikeRow, spot float64) int {
	best := 0
	for i, r := range rows {
		if math.Abs(r.Strike-spot) < math.Abs(rows[best].Strike-spot) {
			best = i
		}
	}
	return best
}

// BuildStraddle picks the strike with the lowest combined IV, usually ATM
func BuildStraddle(s *chain.Snapshot) (*Straddle, error) {
	if len(s.Rows) == 0 {
		return nil, fmt.Errorf("straddle: no strikes available")
	}

	best := 0
	for i, r := range s.Rows {
		if r.CE.IV+r.PE.IV < s.Rows[best].CE.IV+s.Rows[best].PE.IV {
			best = i
		}
	}
	r := s.Rows[best]
	cost := r.CE.LTP + r.PE.LTP

	return &Straddle{
		Outlook: Outlook{
			Strategy:      "Straddle",
			Description:   "Buy both a call and put at the same strike price",
			MarketOutlook: "Expecting significant move but direction uncertain",
			IVOutlook:     "Expecting volatility to increase",
		},
		Strike:        r.Strike,
		CallIV:        r.CE.IV,
		PutIV:         r.PE.IV,
		CallPrice:     r.CE.LTP,
		PutPrice:      r.PE.LTP,
		TotalCost:     cost,
		BreakEvenUp:   r.Strike + cost,
		BreakEvenDown: r.Strike - cost,
	}, nil
}

// BuildStrangle buys the OTM call and put closest to 5% away from spot
func BuildStrangle(s *chain.Snapshot) (*Strangle, error) {
	if len(s.Rows) == 0 || s.UnderlyingValue <= 0 {
		return nil, fmt.Errorf("strangle: no strikes available")
	}

	atm := s.Rows[atmRowIndex(s.Rows, s.UnderlyingValue)].Strike
	targetCall := s.UnderlyingValue * 1.05
	targetPut := s.UnderlyingValue * 0.95

	var call, put *chain.StrikeRow
	for i := range s.Rows {
		r := &s.Rows[i]
		if r.Strike > atm {
			if call == nil || math.Abs(r.Strike-targetCall) < math.Abs(call.Strike-targetCall) {
				call = r
			}
		}
		if r.Strike < atm {
			if put == nil || math.Abs(r.Strike-targetPut) < math.Abs(put.Strike-targetPut) {
				put = r
			}
		}
	}
	if call == nil || put == nil {
		return nil, fmt.Errorf("strangle: not enough OTM strikes")
	}

	cost := call.CE.LTP + put.PE.LTP
	return &Strangle{
		Outlook: Outlook{
			Strategy:      "Strangle",
			Description:   "Buy OTM call and OTM put",
			MarketOutlook: "Expecting significant move but direction uncertain",
			IVOutlook:     "Expecting volatility to increase",
		},
		CallStrike:    call.Strike,
		PutStrike:     put.Strike,
		CallIV:        call.CE.IV,
		PutIV:         put.PE.IV,
		CallPrice:     call.CE.LTP,
		PutPrice:      put.PE.LTP,
		TotalCost:     cost,
		BreakEvenUp:   call.Strike + cost,
		BreakEvenDown: put.Strike - cost,
	}, nil
}

// BuildBullCallSpread scans adjacent OTM call pairs for the best risk/reward
func BuildBullCallSpread(s *chain.Snapshot) (*VerticalSpread, error) {
	atm := 0.0
	if len(s.Rows) > 0 {
		atm = s.Rows[atmRowIndex(s.Rows, s.UnderlyingValue)].Strike
	}

	var otm []chain.StrikeRow
	for _, r := range s.Rows {
		if r.Strike > atm {
			otm = append(otm, r)
		}
	}
	if len(otm) < 2 {
		return nil, fmt.Errorf("bull call spread: not enough OTM strikes")
	}

	var best *VerticalSpread
	for i := 0; i < len(otm)-1; i++ {
		lower, upper := otm[i], otm[i+1]
		maxLoss := lower.CE.LTP - upper.CE.LTP
		if maxLoss <= 0 {
			continue
		}
		maxProfit := (upper.Strike - lower.Strike) - maxLoss
		rr := maxProfit / maxLoss
		if best == nil || rr > best.RiskReward {
			best = &VerticalSpread{
				LowerStrike: lower.Strike,
				UpperStrike: upper.Strike,
				LowerPrice:  lower.CE.LTP,
				UpperPrice:  upper.CE.LTP,
				MaxProfit:   maxProfit,
				MaxLoss:     maxLoss,
				RiskReward:  rr,
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("bull call spread: no valid spreads found")
	}

	best.Outlook = Outlook{
		Strategy:      "Bull Call Spread",
		Description:   "Buy lower strike call, sell higher strike call",
		MarketOutlook: "Moderately bullish",
		IVOutlook:     "Neutral to slightly bearish on volatility",
	}
	return best, nil
}

// BuildBearPutSpread scans adjacent OTM put pairs for the best risk/reward
func BuildBearPutSpread(s *chain.Snapshot) (*VerticalSpread, error) {
	atm := 0.0
	if len(s.Rows) > 0 {
		atm = s.Rows[atmRowIndex(s.Rows, s.UnderlyingValue)].Strike
	}

	// Walk downward from the money
	var otm []chain.StrikeRow
	for i := len(s.Rows) - 1; i >= 0; i-- {
		if s.Rows[i].Strike < atm {
			otm = append(otm, s.Rows[i])
		}
	}
	if len(otm) < 2 {
		return nil, fmt.Errorf("bear put spread: not enough OTM strikes")
	}

	var best *VerticalSpread
	for i := 0; i < len(otm)-1; i++ {
		upper, lower := otm[i], otm[i+1]
		maxLoss := upper.PE.LTP - lower.PE.LTP
		if maxLoss <= 0 {
			continue
		}
		maxProfit := (upper.Strike - lower.Strike) - maxLoss
		rr := maxProfit / maxLoss
		if best == nil || rr > best.RiskReward {
			best = &VerticalSpread{
				LowerStrike: lower.Strike,
				UpperStrike: upper.Strike,
				LowerPrice:  lower.PE.LTP,
				UpperPrice:  upper.PE.LTP,
				MaxProfit:   maxProfit,
				MaxLoss:     maxLoss,
				RiskReward:  rr,
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("bear put spread: no valid spreads found")
	}

	best.Outlook = Outlook{
		Strategy:      "Bear Put Spread",
		Description:   "Buy higher strike put, sell lower strike put",
		MarketOutlook: "Moderately bearish",
		IVOutlook:     "Neutral to slightly bearish on volatility",
	}
	return best, nil
}

// BuildIronCondor sells the strikes nearest the money on each side and buys
// the next ones out for protection
func BuildIronCondor(s *chain.Snapshot) (*IronCondor, error) {
	atm := 0.0
	if len(s.Rows) > 0 {
		atm = s.Rows[atmRowIndex(s.Rows, s.UnderlyingValue)].Strike
	}

	var puts, calls []chain.StrikeRow
	for i := len(s.Rows) - 1; i >= 0; i-- {
		if s.Rows[i].Strike < atm {
			puts = append(puts, s.Rows[i])
		}
	}
	for _, r := range s.Rows {
		if r.Strike > atm {
			calls = append(calls, r)
		}
	}
	if len(puts) < 2 || len(calls) < 2 {
		return nil, fmt.Errorf("iron condor: not enough strikes")
	}

	putCredit := puts[0].PE.LTP - puts[1].PE.LTP
	callCredit := calls[0].CE.LTP - calls[1].CE.LTP
	netPremium := putCredit + callCredit

	maxRiskPut := puts[0].Strike - puts[1].Strike - putCredit
	maxRiskCall := calls[1].Strike - calls[0].Strike - callCredit
	maxRisk := math.Max(maxRiskPut, maxRiskCall)

	rr := 0.0
	if netPremium > 0 {
		rr = maxRisk / netPremium
	}

	return &IronCondor{
		Outlook: Outlook{
			Strategy:      "Iron Condor",
			Description:   "Sell OTM put and call, buy further OTM put and call for protection",
			MarketOutlook: "Neutral, expecting consolidation",
			IVOutlook:     "Expecting volatility to decrease",
		},
		PutShortStrike:  puts[0].Strike,
		PutLongStrike:   puts[1].Strike,
		CallShortStrike: calls[0].Strike,
		CallLongStrike:  calls[1].Strike,
		NetPremium:      netPremium,
		MaxRisk:         maxRisk,
		RiskReward:      rr,
		BreakEvenLower:  puts[0].Strike - netPremium,
		BreakEvenUpper:  calls[0].Strike + netPremium,
	}, nil
}

// BuildButterfly centers on the ATM strike with wings two strike steps out
func BuildButterfly(s *chain.Snapshot) (*Butterfly, error) {
	if len(s.Rows) < 3 {
		return nil, fmt.Errorf("butterfly: not enough strikes")
	}

	middleIdx := atmRowIndex(s.Rows, s.UnderlyingValue)
	middle := s.Rows[middleIdx]

	wingWidth := medianStrikeGap(s.Rows) * 2
	lowerIdx := nearestRowIndex(s.Rows, middle.Strike-wingWidth)
	upperIdx := nearestRowIndex(s.Rows, middle.Strike+wingWidth)

	lower, upper := s.Rows[lowerIdx], s.Rows[upperIdx]

	netDebit := lower.CE.LTP + upper.CE.LTP - 2*middle.CE.LTP
	maxProfit := middle.Strike - lower.Strike - netDebit

	rr := 0.0
	if netDebit > 0 {
		rr = maxProfit / netDebit
	}

	return &Butterfly{
		Outlook: Outlook{
			Strategy:      "Call Butterfly",
			Description:   "Buy lower and upper strikes, sell 2x middle strike",
			MarketOutlook: "Highly neutral, expecting price to stay near middle strike",
			IVOutlook:     "Neutral to slightly bearish on volatility",
		},
		LowerStrike:    lower.Strike,
		MiddleStrike:   middle.Strike,
		UpperStrike:    upper.Strike,
		LowerPrice:     lower.CE.LTP,
		MiddlePrice:    middle.CE.LTP,
		UpperPrice:     upper.CE.LTP,
		NetDebit:       netDebit,
		MaxProfit:      maxProfit,
		RiskReward:     rr,
		BreakEvenLower: lower.Strike + netDebit,
		BreakEvenUpper: upper.Strike - netDebit,
	}, nil
}

func medianStrikeGap(rows []chain.StrikeRow) float64 {
	if len(rows) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		gaps = append(gaps, rows[i].Strike-rows[i-1].Strike)
	}
	sort.Float64s(gaps)
	return gaps[len(gaps)/2]
}

func nearestRowIndex(rows []chain.StrikeRow, target float64) int {
	best := 0
	for i, r := range rows {
		if math.Abs(r.Strike-target) < math.Abs(rows[best].Strike-target) {
			best = i
		}
	}
	return best
}

// MarketContext summarizes conditions alongside strategy recommendations
type MarketContext struct {
	PCR           float64   `json:"pcr"`
	MaxPain       float64   `json:"max_pain"`
	IVEnvironment string    `json:"iv_environment"` // High or Normal
	MarketView    string    `json:"market_view"`
	Timestamp     time.Time `json:"timestamp"`
}

// Recommendation is the strategy menu for the current market view
type Recommendation struct {
	Context    MarketContext   `json:"market_context"`
	LongOption *LongOption     `json:"long_option,omitempty"`
	Spread     *VerticalSpread `json:"spread,omitempty"`
	IronCondor *IronCondor     `json:"iron_condor,omitempty"`
	Butterfly  *Butterfly      `json:"butterfly,omitempty"`
	Straddle   *Straddle       `json:"straddle,omitempty"`
	Strangle   *Strangle       `json:"strangle,omitempty"`
}

// Recommend builds the strategy menu for the given market view. An empty
// view is inferred from the PCR: above 1.2 bearish, below 0.8 bullish,
// otherwise neutral. Builders that lack data are skipped silently.
func Recommend(s *chain.Snapshot, a *chain.Analysis, view string) *Recommendation {
	if view == "" {
		switch {
		case a.PCR > 1.2:
			view = "bearish"
		case a.PCR > 0 && a.PCR < 0.8:
			view = "bullish"
		default:
			view = "neutral"
		}
	}

	rec := &Recommendation{
		Context: MarketContext{
			PCR:           a.PCR,
			MaxPain:       a.MaxPain,
			IVEnvironment: ivEnvironment(s),
			MarketView:    view,
			Timestamp:     a.Timestamp,
		},
	}

	switch view {
	case "bullish":
		if st, err := BuildStraddle(s); err == nil {
			conf := "Medium"
			if a.PCR > 0 && a.PCR < 0.7 {
				conf = "High"
			}
			rec.LongOption = &LongOption{
				Outlook: Outlook{
					Strategy:      "Long Call",
					Description:   "Buy a call option to profit from upward movement",
					MarketOutlook: "Bullish",
					IVOutlook:     "Neutral to bullish on volatility",
				},
				Strike:     st.Strike,
				Premium:    st.CallPrice,
				BreakEven:  st.Strike + st.CallPrice,
				Confidence: conf,
			}
		}
		if sp, err := BuildBullCallSpread(s); err == nil {
			rec.Spread = sp
		}

	case "bearish":
		if st, err := BuildStraddle(s); err == nil {
			conf := "Medium"
			if a.PCR > 1.3 {
				conf = "High"
			}
			rec.LongOption = &LongOption{
				Outlook: Outlook{
					Strategy:      "Long Put",
					Description:   "Buy a put option to profit from downward movement",
					MarketOutlook: "Bearish",
					IVOutlook:     "Neutral to bullish on volatility",
				},
				Strike:     st.Strike,
				Premium:    st.PutPrice,
				BreakEven:  st.Strike - st.PutPrice,
				Confidence: conf,
			}
		}
		if sp, err := BuildBearPutSpread(s); err == nil {
			rec.Spread = sp
		}

	case "volatile":
		if st, err := BuildStraddle(s); err == nil {
			rec.Straddle = st
		}
		if sg, err := BuildStrangle(s); err == nil {
			rec.Strangle = sg
		}

	default: // neutral
		if ic, err := BuildIronCondor(s); err == nil {
			rec.IronCondor = ic
		}
		if bf, err := BuildButterfly(s); err == nil {
			rec.Butterfly = bf
		}
	}

	return rec
}

func ivEnvironment(s *chain.Snapshot) string {
	if s == nil || len(s.Rows) == 0 {
		return "Normal"
	}
	sum := 0.0
	for _, r := range s.Rows {
		sum += r.CE.IV
	}
	if sum/float64(len(s.Rows)) > 25 {
		return "High"
	}
	return "Normal"
}
