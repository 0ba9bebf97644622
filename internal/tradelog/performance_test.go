package tradelog

import (
	"math"
	"testing"
	"time"

	"options-trading-engine/internal/market"
)

func closedTrade(index market.Index, pnl float64, exit time.Time) *Trade {
	t := openTrade(index, market.SignalBuyCall, exit.Add(-time.Hour))
	t.Status = StatusClosed
	t.ExitTime = &exit
	t.ExitPrice = t.EntryPrice + pnl/float64(t.Quantity)
	t.PnL = pnl
	return t
}

func metricsFixture() []*Trade {
	base := time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC)
	pnls := []float64{100, -50, 200, -50, 300, -100}

	trades := make([]*Trade, len(pnls))
	for i, pnl := range pnls {
		trades[i] = closedTrade(market.IndexNifty, pnl, base.Add(time.Duration(i)*24*time.Hour))
	}
	return trades
}

func TestCalculateMetricsBasic(t *testing.T) {
	r, err := CalculateMetrics(metricsFixture(), MetricsFilter{})
	if err != nil {
		t.Fatal(err)
	}

	if r.Basic.TotalTrades != 6 || r.Basic.WinningTrades != 3 || r.Basic.LosingTrades != 3 {
		t.Fatalf("trade counts wrong: %+v", r.Basic)
	}
	if r.Basic.WinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %f", r.Basic.WinRate)
	}
	if r.Basic.TotalPnL != 400 {
		t.Errorf("expected total pnl 400, got %f", r.Basic.TotalPnL)
	}
	// 600 in wins against 200 in losses
	if r.Basic.ProfitFactor != 3 {
		t.Errorf("expected profit factor 3, got %f", r.Basic.ProfitFactor)
	}
	if r.Basic.AvgWin != 200 {
		t.Errorf("expected avg win 200, got %f", r.Basic.AvgWin)
	}
	if math.Abs(r.Basic.AvgLoss-(-200.0/3)) > 1e-9 {
		t.Errorf("expected avg loss -66.67, got %f", r.Basic.AvgLoss)
	}
	if math.Abs(r.Basic.WinLossRatio-3) > 1e-9 {
		t.Errorf("expected win/loss ratio 3, got %f", r.Basic.WinLossRatio)
	}
}

func TestCalculateMetricsAdvanced(t *testing.T) {
	r, err := CalculateMetrics(metricsFixture(), MetricsFilter{})
	if err != nil {
		t.Fatal(err)
	}

	// Equity walks 100, 50, 250, 200, 500, 400
	if r.Advanced.MaxDrawdown != 100 {
		t.Errorf("expected max drawdown 100, got %f", r.Advanced.MaxDrawdown)
	}
	if r.Advanced.LongestUnderwater != 1 {
		t.Errorf("expected longest underwater 1, got %d", r.Advanced.LongestUnderwater)
	}
	if r.Advanced.RecoveryFactor != 4 {
		t.Errorf("expected recovery factor 4, got %f", r.Advanced.RecoveryFactor)
	}
	if r.Advanced.SharpeRatio <= 0 {
		t.Errorf("profitable history should have positive Sharpe, got %f", r.Advanced.SharpeRatio)
	}
	if r.Advanced.SortinoRatio <= r.Advanced.SharpeRatio {
		t.Errorf("downside deviation is smaller here, Sortino %f should exceed Sharpe %f",
			r.Advanced.SortinoRatio, r.Advanced.SharpeRatio)
	}
	if r.Advanced.StdDeviation <= 0 {
		t.Error("mixed outcomes should have positive std deviation")
	}
}

func TestCalculateMetricsConsistency(t *testing.T) {
	r, err := CalculateMetrics(metricsFixture(), MetricsFilter{})
	if err != nil {
		t.Fatal(err)
	}

	// One trade per day, alternating win/loss
	if r.Consistency.DailyWinRateMean != 0.5 {
		t.Errorf("expected daily win rate mean 0.5, got %f", r.Consistency.DailyWinRateMean)
	}
	if r.Consistency.DailyWinRateMedian != 0.5 {
		t.Errorf("expected daily win rate median 0.5, got %f", r.Consistency.DailyWinRateMedian)
	}
	if r.Consistency.DailyWinRateStd != 0.5 {
		t.Errorf("expected daily win rate std 0.5, got %f", r.Consistency.DailyWinRateStd)
	}
	if r.Consistency.WinRateConsistency != 0.5 {
		t.Errorf("expected consistency 0.5, got %f", r.Consistency.WinRateConsistency)
	}
}

func TestCalculateMetricsFilters(t *testing.T) {
	trades := metricsFixture()
	trades = append(trades, closedTrade(market.IndexBankNifty, 500,
		time.Date(2025, 2, 3, 15, 0, 0, 0, time.UTC)))

	banknifty, err := CalculateMetrics(trades, MetricsFilter{Index: market.IndexBankNifty})
	if err != nil {
		t.Fatal(err)
	}
	if banknifty.Basic.TotalTrades != 1 || banknifty.Basic.TotalPnL != 500 {
		t.Errorf("index filter wrong: %+v", banknifty.Basic)
	}

	ranged, err := CalculateMetrics(trades, MetricsFilter{
		Start: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if ranged.Basic.TotalTrades != 3 {
		t.Errorf("date filter should keep 3 trades, got %d", ranged.Basic.TotalTrades)
	}

	if _, err := CalculateMetrics(trades, MetricsFilter{Index: market.IndexSensex}); err == nil {
		t.Error("empty filter result should error")
	}
}

func TestCalculateMetricsNoLosses(t *testing.T) {
	base := time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC)
	trades := []*Trade{
		closedTrade(market.IndexNifty, 100, base),
		closedTrade(market.IndexNifty, 200, base.Add(24*time.Hour)),
	}

	r, err := CalculateMetrics(trades, MetricsFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Basic.ProfitFactor != 300 {
		t.Errorf("no losses should report the win sum, got %f", r.Basic.ProfitFactor)
	}
	if r.Basic.WinLossRatio != 150 {
		t.Errorf("no losses should report the avg win, got %f", r.Basic.WinLossRatio)
	}
}

func TestPatternEffectivenessRanking(t *testing.T) {
	base := time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC)

	hammerWin := closedTrade(market.IndexNifty, 200, base)
	hammerWin.PatternsDetected = []string{"Hammer"}
	hammerLoss := closedTrade(market.IndexNifty, -50, base.Add(time.Hour))
	hammerLoss.PatternsDetected = []string{"Hammer"}
	engulfing := closedTrade(market.IndexNifty, 300, base.Add(2*time.Hour))
	engulfing.PatternsDetected = []string{"Bullish Engulfing"}
	bare := closedTrade(market.IndexNifty, -100, base.Add(3*time.Hour))
	stillOpen := openTrade(market.IndexNifty, market.SignalBuyCall, base)

	perf, ranking := PatternEffectiveness([]*Trade{hammerWin, hammerLoss, engulfing, bare, stillOpen})

	hammer := perf["Hammer"]
	if hammer == nil || hammer.Trades != 2 || hammer.WinRate != 0.5 || hammer.AvgPnL != 75 {
		t.Errorf("Hammer bucket wrong: %+v", hammer)
	}
	if perf["No Pattern"] == nil || perf["No Pattern"].Trades != 1 {
		t.Error("patternless trades should bucket under No Pattern")
	}

	// Engulfing 1.0*300 beats Hammer 0.5*75 beats No Pattern 0*-100
	if len(ranking) != 3 || ranking[0].Pattern != "Bullish Engulfing" {
		t.Fatalf("expected Bullish Engulfing on top, got %+v", ranking)
	}
	if ranking[0].Score != 300 {
		t.Errorf("expected top score 300, got %f", ranking[0].Score)
	}
	if ranking[1].Pattern != "Hammer" || ranking[1].Score != 37.5 {
		t.Errorf("expected Hammer at 37.5, got %+v", ranking[1])
	}
}

func TestCorrelatePsychology(t *testing.T) {
	base := time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC)

	fearWin := closedTrade(market.IndexNifty, 200, base)
	fearWin.Psychology = &Psychology{FearGreedScore: 20, Sentiment: "Fear", ContrarianBias: "Bullish"}
	greedLoss := closedTrade(market.IndexNifty, -100, base.Add(time.Hour))
	greedLoss.Psychology = &Psychology{FearGreedScore: 80, Sentiment: "Greed"}
	noPsych := closedTrade(market.IndexNifty, 50, base.Add(2*time.Hour))

	c := CorrelatePsychology([]*Trade{fearWin, greedLoss, noPsych})
	if c.Trades != 2 {
		t.Fatalf("expected 2 psychological trades, got %d", c.Trades)
	}
	if c.Sentiment["Fear"] == nil || c.Sentiment["Fear"].WinRate != 1 {
		t.Errorf("Fear sentiment bucket wrong: %+v", c.Sentiment)
	}
	if c.FearGreed["Fear (10-30)"] == nil || c.FearGreed["Greed (70-90)"] == nil {
		t.Errorf("fear-greed bands wrong: %+v", c.FearGreed)
	}
	if c.Contrarian["Bullish"] == nil || c.Contrarian["Bullish"].Trades != 1 {
		t.Errorf("contrarian bucket wrong: %+v", c.Contrarian)
	}
}

func TestFearGreedBands(t *testing.T) {
	cases := map[int]string{
		5:  "Extreme Fear (0-10)",
		10: "Fear (10-30)",
		30: "Neutral (30-70)",
		70: "Greed (70-90)",
		95: "Extreme Greed (90-100)",
	}
	for score, want := range cases {
		if got := fearGreedBand(score); got != want {
			t.Errorf("score %d: got %s, want %s", score, got, want)
		}
	}
}
