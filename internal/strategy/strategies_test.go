package strategy

import (
	"testing"

	"options-trading-engine/internal/chain"
	"options-trading-engine/internal/market"
)

func strategySnapshot() *chain.Snapshot {
	return &chain.Snapshot{
		Index:           market.IndexNifty,
		UnderlyingValue: 22000,
		Expiry:          "30-Jan-2025",
		Rows: []chain.StrikeRow{
			{Strike: 21800, CE: chain.Leg{LTP: 250, IV: 13}, PE: chain.Leg{LTP: 35, IV: 15}},
			{Strike: 21900, CE: chain.Leg{LTP: 180, IV: 12.5}, PE: chain.Leg{LTP: 60, IV: 14.5}},
			{Strike: 22000, CE: chain.Leg{LTP: 120, IV: 12}, PE: chain.Leg{LTP: 110, IV: 14}},
			{Strike: 22100, CE: chain.Leg{LTP: 70, IV: 12.5}, PE: chain.Leg{LTP: 170, IV: 14.5}},
			{Strike: 22200, CE: chain.Leg{LTP: 40, IV: 13}, PE: chain.Leg{LTP: 240, IV: 15}},
		},
	}
}

func TestBuildStraddle(t *testing.T) {
	st, err := BuildStraddle(strategySnapshot())
	if err != nil {
		t.Fatalf("straddle failed: %v", err)
	}

	// Lowest combined IV sits at the money
	if st.Strike != 22000 {
		t.Errorf("expected strike 22000, got %f", st.Strike)
	}
	if st.TotalCost != 230 {
		t.Errorf("expected cost 230, got %f", st.TotalCost)
	}
	if st.BreakEvenUp != 22230 || st.BreakEvenDown != 21770 {
		t.Errorf("unexpected breakevens: up %f down %f", st.BreakEvenUp, st.BreakEvenDown)
	}

	if _, err := BuildStraddle(&chain.Snapshot{}); err == nil {
		t.Error("empty snapshot should error")
	}
}

func TestBuildStrangle(t *testing.T) {
	sg, err := BuildStrangle(strategySnapshot())
	if err != nil {
		t.Fatalf("strangle failed: %v", err)
	}

	// 5% wings are off the board, so the farthest strikes win
	if sg.CallStrike != 22200 || sg.PutStrike != 21800 {
		t.Errorf("expected wings 22200/21800, got %f/%f", sg.CallStrike, sg.PutStrike)
	}
	if sg.TotalCost != 75 {
		t.Errorf("expected cost 75, got %f", sg.TotalCost)
	}
	if sg.BreakEvenUp != 22275 || sg.BreakEvenDown != 21725 {
		t.Errorf("unexpected breakevens: up %f down %f", sg.BreakEvenUp, sg.BreakEvenDown)
	}
}

func TestBuildBullCallSpread(t *testing.T) {
	sp, err := BuildBullCallSpread(strategySnapshot())
	if err != nil {
		t.Fatalf("bull call spread failed: %v", err)
	}

	if sp.LowerStrike != 22100 || sp.UpperStrike != 22200 {
		t.Errorf("expected 22100/22200, got %f/%f", sp.LowerStrike, sp.UpperStrike)
	}
	// Debit 30, width 100
	if sp.MaxLoss != 30 || sp.MaxProfit != 70 {
		t.Errorf("expected loss 30 profit 70, got %f/%f", sp.MaxLoss, sp.MaxProfit)
	}
}

func TestBuildBearPutSpread(t *testing.T) {
	sp, err := BuildBearPutSpread(strategySnapshot())
	if err != nil {
		t.Fatalf("bear put spread failed: %v", err)
	}

	if sp.UpperStrike != 21900 || sp.LowerStrike != 21800 {
		t.Errorf("expected 21900/21800, got %f/%f", sp.UpperStrike, sp.LowerStrike)
	}
	// Debit 25, width 100
	if sp.MaxLoss != 25 || sp.MaxProfit != 75 {
		t.Errorf("expected loss 25 profit 75, got %f/%f", sp.MaxLoss, sp.MaxProfit)
	}
	if sp.RiskReward != 3 {
		t.Errorf("expected risk/reward 3, got %f", sp.RiskReward)
	}
}

func TestBuildIronCondor(t *testing.T) {
	ic, err := BuildIronCondor(strategySnapshot())
	if err != nil {
		t.Fatalf("iron condor failed: %v", err)
	}

	if ic.PutShortStrike != 21900 || ic.PutLongStrike != 21800 {
		t.Errorf("put wing should be 21900/21800, got %f/%f", ic.PutShortStrike, ic.PutLongStrike)
	}
	if ic.CallShortStrike != 22100 || ic.CallLongStrike != 22200 {
		t.Errorf("call wing should be 22100/22200, got %f/%f", ic.CallShortStrike, ic.CallLongStrike)
	}
	// Put credit 25, call credit 30
	if ic.NetPremium != 55 {
		t.Errorf("expected net premium 55, got %f", ic.NetPremium)
	}
	// Put wing risk 75, call wing risk 70
	if ic.MaxRisk != 75 {
		t.Errorf("expected max risk 75, got %f", ic.MaxRisk)
	}
	if ic.BreakEvenLower != 21845 || ic.BreakEvenUpper != 22155 {
		t.Errorf("unexpected breakevens: %f / %f", ic.BreakEvenLower, ic.BreakEvenUpper)
	}
}

func TestBuildButterfly(t *testing.T) {
	bf, err := BuildButterfly(strategySnapshot())
	if err != nil {
		t.Fatalf("butterfly failed: %v", err)
	}

	if bf.LowerStrike != 21800 || bf.MiddleStrike != 22000 || bf.UpperStrike != 22200 {
		t.Errorf("expected 21800/22000/22200, got %f/%f/%f",
			bf.LowerStrike, bf.MiddleStrike, bf.UpperStrike)
	}
	// 250 + 40 - 2*120 = 50 debit
	if bf.NetDebit != 50 {
		t.Errorf("expected net debit 50, got %f", bf.NetDebit)
	}
	if bf.MaxProfit != 150 {
		t.Errorf("expected max profit 150, got %f", bf.MaxProfit)
	}
	if bf.BreakEvenLower != 21850 || bf.BreakEvenUpper != 22150 {
		t.Errorf("unexpected breakevens: %f / %f", bf.BreakEvenLower, bf.BreakEvenUpper)
	}
}

func TestRecommendInfersView(t *testing.T) {
	s := strategySnapshot()

	bearish := Recommend(s, &chain.Analysis{PCR: 1.4, UnderlyingValue: 22000}, "")
	if bearish.Context.MarketView != "bearish" {
		t.Fatalf("PCR 1.4 should infer bearish, got %s", bearish.Context.MarketView)
	}
	if bearish.LongOption == nil || bearish.LongOption.Strategy != "Long Put" {
		t.Error("bearish view should recommend a long put")
	}
	if bearish.LongOption.Confidence != "High" {
		t.Errorf("PCR above 1.3 should be High confidence, got %s", bearish.LongOption.Confidence)
	}
	if bearish.Spread == nil || bearish.Spread.Strategy != "Bear Put Spread" {
		t.Error("bearish view should include a bear put spread")
	}

	bullish := Recommend(s, &chain.Analysis{PCR: 0.6, UnderlyingValue: 22000}, "")
	if bullish.Context.MarketView != "bullish" {
		t.Fatalf("PCR 0.6 should infer bullish, got %s", bullish.Context.MarketView)
	}
	if bullish.LongOption == nil || bullish.LongOption.Strategy != "Long Call" {
		t.Error("bullish view should recommend a long call")
	}
	if bullish.LongOption.Confidence != "High" {
		t.Errorf("PCR below 0.7 should be High confidence, got %s", bullish.LongOption.Confidence)
	}

	neutral := Recommend(s, &chain.Analysis{PCR: 1.0, UnderlyingValue: 22000}, "")
	if neutral.Context.MarketView != "neutral" {
		t.Fatalf("PCR 1.0 should infer neutral, got %s", neutral.Context.MarketView)
	}
	if neutral.IronCondor == nil || neutral.Butterfly == nil {
		t.Error("neutral view should include iron condor and butterfly")
	}

	volatile := Recommend(s, &chain.Analysis{PCR: 1.0, UnderlyingValue: 22000}, "volatile")
	if volatile.Straddle == nil || volatile.Strangle == nil {
		t.Error("volatile view should include straddle and strangle")
	}
	if volatile.Context.IVEnvironment != "Normal" {
		t.Errorf("average IV under 25 should read Normal, got %s", volatile.Context.IVEnvironment)
	}
}
