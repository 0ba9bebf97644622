package ml

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"options-trading-engine/internal/indicators"
	"options-trading-engine/internal/market"
	"options-trading-engine/internal/patterns"
)

func flatCandles(n int) []market.Candle {
	base := time.Date(2025, 1, 20, 9, 15, 0, 0, time.FixedZone("IST", 5*3600+1800))
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = market.Candle{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      98, High: 101, Low: 97, Close: 100,
			Volume: 1000,
		}
	}
	return candles
}

func TestRuleFallback(t *testing.T) {
	p := NewPredictor(nil, 0)

	oversold := &indicators.Frame{RSI: 25, MACD: &indicators.MACDResult{MACD: 5, Signal: 2}}
	if sig, conf := p.modelSignal(nil, oversold, nil); sig != market.SignalBuyCall || conf != 0.70 {
		t.Errorf("oversold with bullish MACD should be BUY CALL 0.70, got %s %f", sig, conf)
	}

	overbought := &indicators.Frame{RSI: 75, MACD: &indicators.MACDResult{MACD: -5, Signal: -2}}
	if sig, conf := p.modelSignal(nil, overbought, nil); sig != market.SignalBuyPut || conf != 0.70 {
		t.Errorf("overbought with bearish MACD should be BUY PUT 0.70, got %s %f", sig, conf)
	}

	neutral := &indicators.Frame{RSI: 50, MACD: &indicators.MACDResult{}}
	if sig, conf := p.modelSignal(nil, neutral, nil); sig != market.SignalWait || conf != 0.50 {
		t.Errorf("neutral conditions should be WAIT 0.50, got %s %f", sig, conf)
	}
}

func TestBlend(t *testing.T) {
	sig, conf := blend(
		market.SignalBuyCall, 0.8,
		market.SignalBuyCall, 0.6,
		market.SignalWait, 0.5,
	)
	if sig != market.SignalBuyCall {
		t.Fatalf("expected BUY CALL, got %s", sig)
	}
	// 0.5*0.8 + 0.3*0.6 = 0.58
	if conf < 0.5799 || conf > 0.5801 {
		t.Errorf("expected 0.58, got %f", conf)
	}
}

func TestBlendUnanimityBoost(t *testing.T) {
	sig, conf := blend(
		market.SignalBuyCall, 0.8,
		market.SignalBuyCall, 0.6,
		market.SignalBuyCall, 0.7,
	)
	if sig != market.SignalBuyCall {
		t.Fatalf("expected BUY CALL, got %s", sig)
	}
	// 0.4 + 0.18 + 0.14 = 0.72, plus the 0.10 agreement boost
	if conf < 0.8199 || conf > 0.8201 {
		t.Errorf("expected 0.82, got %f", conf)
	}

	_, capped := blend(
		market.SignalBuyPut, 0.95,
		market.SignalBuyPut, 0.95,
		market.SignalBuyPut, 0.95,
	)
	if capped != 0.95 {
		t.Errorf("boost should cap at 0.95, got %f", capped)
	}
}

func TestBlendWaitUnanimityNotBoosted(t *testing.T) {
	sig, conf := blend(
		market.SignalWait, 0.5,
		market.SignalWait, 0.5,
		market.SignalWait, 0.5,
	)
	if sig != market.SignalWait || conf != 0.5 {
		t.Errorf("unanimous WAIT stays at its score, got %s %f", sig, conf)
	}
}

func TestOptimalStrike(t *testing.T) {
	if s := OptimalStrike(22030, market.SignalBuyCall, market.IndexNifty); s != 22000 {
		t.Errorf("call strike should be one step in the money, got %f", s)
	}
	if s := OptimalStrike(22030, market.SignalBuyPut, market.IndexNifty); s != 22100 {
		t.Errorf("put strike should be one step in the money, got %f", s)
	}
	if s := OptimalStrike(22030, market.SignalWait, market.IndexNifty); s != 22050 {
		t.Errorf("WAIT should return the ATM strike, got %f", s)
	}
	if s := OptimalStrike(48260, market.SignalBuyCall, market.IndexBankNifty); s != 48200 {
		t.Errorf("BANKNIFTY uses 100-point steps, got %f", s)
	}
}

func TestModelScore(t *testing.T) {
	m := &Model{
		Features: []string{"rsi", "macd"},
		Weights: map[string][]float64{
			"BUY CALL": {1, 0},
			"BUY PUT":  {-1, 0},
			"WAIT":     {0, 0},
		},
		Bias: map[string]float64{},
	}

	sig, conf := m.Score([]float64{2, 0})
	if sig != market.SignalBuyCall {
		t.Fatalf("expected BUY CALL, got %s", sig)
	}
	// softmax(2, -2, 0) gives the winner about 0.87
	if conf < 0.8 || conf > 0.9 {
		t.Errorf("expected confidence near 0.87, got %f", conf)
	}

	if sig, _ := m.Score([]float64{-2, 0}); sig != market.SignalBuyPut {
		t.Errorf("negative feature should flip to BUY PUT, got %s", sig)
	}
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	content := `{
		"features": ["rsi", "macd"],
		"weights": {"BUY CALL": [1, 0], "BUY PUT": [-1, 0], "WAIT": [0, 0]},
		"bias": {"WAIT": 0.1}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(m.Weights) != 3 || m.Bias["WAIT"] != 0.1 {
		t.Errorf("model not decoded correctly: %+v", m)
	}

	if _, err := LoadModel(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should error")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"features": ["rsi"], "weights": {"BUY CALL": [1, 2]}}`), 0o644)
	if _, err := LoadModel(bad); err == nil {
		t.Error("weight length mismatch should error")
	}
}

func TestFeatureVectorOrder(t *testing.T) {
	candles := flatCandles(1)
	frame := &indicators.Frame{
		RSI:        42,
		MACD:       &indicators.MACDResult{MACD: 1.5, Signal: 1.2},
		Supertrend: &indicators.SupertrendResult{Direction: -1},
		VWAP:       99.5,
		ATR:        2.5,
	}
	pattern := &patterns.Analysis{Signal: market.SignalBuyCall}

	vec := FeatureVector(candles, frame, pattern)
	if len(vec) != len(FeatureNames) {
		t.Fatalf("expected %d features, got %d", len(FeatureNames), len(vec))
	}
	if vec[0] != 98 || vec[3] != 100 {
		t.Errorf("OHLC misplaced: %v", vec[:4])
	}
	if vec[4] != 1 || vec[5] != 0 {
		t.Errorf("bullish pattern flags wrong: %v", vec[4:6])
	}
	if vec[6] != 42 || vec[7] != 1.5 || vec[8] != 1.2 {
		t.Errorf("momentum features wrong: %v", vec[6:9])
	}
	if vec[11] != -1 || vec[12] != 2.5 {
		t.Errorf("trend/volatility features wrong: %v", vec[11:])
	}
}

func TestPredictCachesByIndexAndTimeframe(t *testing.T) {
	p := NewPredictor(nil, time.Minute)
	candles := flatCandles(10)

	first := p.Predict(market.IndexNifty, "5m", candles)
	if first.Signal != market.SignalWait {
		t.Errorf("quiet short history should be WAIT, got %s", first.Signal)
	}
	if first.Entry != 100 {
		t.Errorf("entry should be the last close, got %f", first.Entry)
	}
	if first.StopLoss != 0 || first.Target != 0 {
		t.Error("WAIT should have zero stop and target")
	}
	if first.Strike != 100 {
		t.Errorf("WAIT strike should be ATM, got %f", first.Strike)
	}

	second := p.Predict(market.IndexNifty, "5m", candles)
	if second != first {
		t.Error("second call within the TTL should return the cached prediction")
	}

	p.Predict(market.IndexBankNifty, "5m", candles)
	stats := p.Stats()
	if stats.Hits != 1 || stats.Misses != 2 {
		t.Errorf("expected 1 hit and 2 misses, got %+v", stats)
	}
}
