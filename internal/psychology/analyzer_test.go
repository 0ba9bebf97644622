package psychology

import (
	"strings"
	"testing"

	"options-trading-engine/internal/chain"
	"options-trading-engine/internal/market"
)

// fearfulAnalysis models a market with heavy put positioning: high PCR,
// bearish OI flow, max pain well above spot and a steep put IV skew.
func fearfulAnalysis() *chain.Analysis {
	return &chain.Analysis{
		Index:           market.IndexNifty,
		UnderlyingValue: 22000,
		PCR:             1.6,
		MaxPain:         23100,
		MaxPainDistance: 5,
		Momentum:        &chain.Momentum{OIMomentum: "Bearish", CEVolume: 1000, PEVolume: 3000},
		IVSkew: &chain.IVSkew{
			ATMStrike: 22000,
			OTMPuts:   []chain.SkewPoint{{Strike: 21900, IV: 22, DeltaFromATM: 8}},
			OTMCalls:  []chain.SkewPoint{{Strike: 22100, IV: 15, DeltaFromATM: 3}},
		},
		KeyLevels: &chain.KeyLevels{},
	}
}

func greedyAnalysis() *chain.Analysis {
	return &chain.Analysis{
		Index:           market.IndexNifty,
		UnderlyingValue: 22000,
		PCR:             0.4,
		MaxPain:         21560,
		MaxPainDistance: -2,
		Momentum:        &chain.Momentum{OIMomentum: "Bullish", CEVolume: 3000, PEVolume: 1000},
		IVSkew: &chain.IVSkew{
			ATMStrike: 22000,
			OTMPuts:   []chain.SkewPoint{{Strike: 21900, DeltaFromATM: 2}},
			OTMCalls:  []chain.SkewPoint{{Strike: 22100, DeltaFromATM: 6}},
		},
	}
}

func TestFearGreedIndexFearfulMarket(t *testing.T) {
	fg := FearGreedIndex(fearfulAnalysis())

	// 50 - 20 (PCR) - 10 (OI) + 5 (max pain above) - 10 (put skew) = 15
	if fg.Score != 15 {
		t.Errorf("expected score 15, got %d", fg.Score)
	}
	if fg.Sentiment != "Fear" {
		t.Errorf("expected Fear, got %s", fg.Sentiment)
	}
	if fg.PCRContribution != "Bearish" {
		t.Errorf("expected Bearish PCR contribution, got %s", fg.PCRContribution)
	}
	if fg.IVSkewContribution != "Fearful" {
		t.Errorf("expected Fearful skew contribution, got %s", fg.IVSkewContribution)
	}
}

func TestFearGreedIndexGreedyMarket(t *testing.T) {
	fg := FearGreedIndex(greedyAnalysis())

	// 50 + 20 + 10 - 5 + 10 = 85
	if fg.Score != 85 {
		t.Errorf("expected score 85, got %d", fg.Score)
	}
	if fg.Sentiment != "Extreme Greed" {
		t.Errorf("expected Extreme Greed, got %s", fg.Sentiment)
	}
	if fg.IVSkewContribution != "Complacent" {
		t.Errorf("expected Complacent skew contribution, got %s", fg.IVSkewContribution)
	}
}

func TestFearGreedIndexNeutralDefaults(t *testing.T) {
	fg := FearGreedIndex(&chain.Analysis{Index: market.IndexNifty})

	if fg.Score != 50 {
		t.Errorf("missing metrics should leave the score at 50, got %d", fg.Score)
	}
	if fg.Sentiment != "Neutral to Bullish" {
		t.Errorf("expected Neutral to Bullish at 50, got %s", fg.Sentiment)
	}
	if fg.PCRContribution != "Neutral" || fg.IVSkewContribution != "Neutral" {
		t.Errorf("missing inputs should read Neutral, got pcr=%s skew=%s",
			fg.PCRContribution, fg.IVSkewContribution)
	}
}

func TestAnalyzeSmartMoney(t *testing.T) {
	a := fearfulAnalysis()
	a.KeyLevels = &chain.KeyLevels{
		PutSupport: []chain.LevelPoint{
			{Strike: 21800, OI: 500000},
			{Strike: 21700, OI: 400000},
			{Strike: 22500, OI: 300000}, // third level is ignored
		},
		CallResistance: []chain.LevelPoint{
			{Strike: 22500, OI: 600000},
			{Strike: 21500, OI: 450000}, // below spot, not resistance
		},
		SignificantPEChange: []chain.LevelPoint{{Strike: 21800, ChangeOI: 250000}},
		SignificantCEChange: []chain.LevelPoint{{Strike: 22500, ChangeOI: 50000}},
	}

	sm := AnalyzeSmartMoney(a)

	patterns := make(map[string]int)
	for _, ind := range sm.Indications {
		patterns[ind.Pattern]++
	}

	if patterns["Institutional Hedging"] != 1 {
		t.Error("steep put skew should flag institutional hedging")
	}
	if patterns["Strong Put Support"] != 2 {
		t.Errorf("expected 2 put support indications, got %d", patterns["Strong Put Support"])
	}
	if patterns["Strong Call Resistance"] != 1 {
		t.Errorf("only the strike above spot is resistance, got %d", patterns["Strong Call Resistance"])
	}
	if patterns["Large Put OI Change"] != 1 {
		t.Error("put OI change above 200000 should be flagged")
	}
	if patterns["Large Call OI Change"] != 0 {
		t.Error("call OI change of 50000 should not be flagged")
	}
	if sm.HedgingLevel != "High" {
		t.Errorf("hedging present should read High, got %s", sm.HedgingLevel)
	}
	if sm.Retail.Activity != "Excessive Fear" {
		t.Errorf("PCR 1.6 should read Excessive Fear, got %s", sm.Retail.Activity)
	}
}

func TestAnalyzeSmartMoneyQuietMarket(t *testing.T) {
	sm := AnalyzeSmartMoney(&chain.Analysis{UnderlyingValue: 22000, PCR: 1.0})

	if len(sm.Indications) != 0 {
		t.Errorf("quiet market should have no indications, got %d", len(sm.Indications))
	}
	if sm.HedgingLevel != "Normal" {
		t.Errorf("expected Normal hedging level, got %s", sm.HedgingLevel)
	}
	if sm.Retail.Activity != "Neutral" {
		t.Errorf("expected Neutral retail activity, got %s", sm.Retail.Activity)
	}
}

func TestContrarianSignalsFearExtreme(t *testing.T) {
	a := fearfulAnalysis()
	c := ContrarianSignals(a, 15)

	if c.Bias != "Bullish" {
		t.Errorf("score 15 should give Bullish bias, got %s", c.Bias)
	}

	signals := make(map[string]bool)
	for _, s := range c.Signals {
		signals[s.Signal] = true
	}
	if !signals["Potential Bullish Reversal"] {
		t.Error("score at 15 should flag a potential bullish reversal")
	}
	if !signals["Contrarian Bullish Signal"] {
		t.Error("PCR above 1.5 should flag a contrarian bullish signal")
	}
	if !signals["Potential Upward Reversion"] {
		t.Error("max pain 5% above spot should flag upward reversion")
	}
}

func TestContrarianSignalsGreedExtreme(t *testing.T) {
	c := ContrarianSignals(greedyAnalysis(), 85)

	if c.Bias != "Bearish" {
		t.Errorf("score 85 should give Bearish bias, got %s", c.Bias)
	}

	signals := make(map[string]bool)
	for _, s := range c.Signals {
		signals[s.Signal] = true
	}
	if !signals["Potential Bearish Reversal"] {
		t.Error("score at 85 should flag a potential bearish reversal")
	}
	if !signals["Contrarian Bearish Signal"] {
		t.Error("PCR below 0.5 should flag a contrarian bearish signal")
	}
	if signals["Potential Downward Reversion"] {
		t.Error("max pain only 2% below spot should not flag reversion")
	}
}

func TestContrarianSignalsExhaustion(t *testing.T) {
	a := &chain.Analysis{
		UnderlyingValue: 22000,
		PCR:             1.0,
		Momentum:        &chain.Momentum{CEOIChange: 600000, PEOIChange: 100000},
	}
	c := ContrarianSignals(a, 50)

	if len(c.Signals) != 1 || c.Signals[0].Signal != "Potential Call Exhaustion" {
		t.Fatalf("one-sided call buildup should flag call exhaustion, got %+v", c.Signals)
	}
	if c.Bias != "Neutral" {
		t.Errorf("score 50 should give Neutral bias, got %s", c.Bias)
	}
}

func TestVolumeBiasBuckets(t *testing.T) {
	cases := []struct {
		ce, pe float64
		bias   string
	}{
		{2500, 1000, "Extremely Bullish"},
		{1600, 1000, "Bullish"},
		{1200, 1000, "Slightly Bullish"},
		{800, 1000, "Neutral"},
		{600, 1000, "Slightly Bearish"},
		{400, 1000, "Bearish"},
		{200, 1000, "Extremely Bearish"},
	}

	for _, tc := range cases {
		a := &chain.Analysis{Momentum: &chain.Momentum{CEVolume: tc.ce, PEVolume: tc.pe}}
		if vs := VolumeBias(a); vs.Bias != tc.bias {
			t.Errorf("ratio %.2f: expected %s, got %s", tc.ce/tc.pe, tc.bias, vs.Bias)
		}
	}

	if vs := VolumeBias(&chain.Analysis{}); vs.Bias != "Neutral" {
		t.Errorf("missing volume data should read Neutral, got %s", vs.Bias)
	}
}

func TestAnalyzeReport(t *testing.T) {
	r := Analyze(fearfulAnalysis())

	if r.FearGreed == nil || r.SmartMoney == nil || r.Contrarian == nil || r.Volume == nil {
		t.Fatal("all report sections should be populated")
	}
	if r.FearGreed.Score != 15 {
		t.Errorf("expected score 15, got %d", r.FearGreed.Score)
	}
	if r.Contrarian.Bias != "Bullish" {
		t.Errorf("expected Bullish contrarian bias, got %s", r.Contrarian.Bias)
	}
	if len(r.Summary) == 0 {
		t.Fatal("summary should not be empty")
	}
	if !strings.Contains(r.Summary[0], "fearful") {
		t.Errorf("score below 30 should summarize as fearful, got %q", r.Summary[0])
	}

	var sawPCR bool
	for _, line := range r.Summary {
		if strings.Contains(line, "Put-Call Ratio") {
			sawPCR = true
		}
	}
	if !sawPCR {
		t.Error("elevated PCR should appear in the summary")
	}
}
