package indicators

import (
	"testing"
	"time"

	"options-trading-engine/internal/market"
)

func makeCandles(n int, start, step float64) []market.Candle {
	base := time.Date(2025, 1, 7, 9, 15, 0, 0, market.ISTLocation)
	candles := make([]market.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		candles[i] = market.Candle{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      price - 2,
			High:      price + 1,
			Low:       price - 3,
			Close:     price,
			Volume:    1000,
		}
		price += step
	}
	return candles
}

// makeConstantCandles builds bars with O=H=L=C at one price, the dead-market
// case where every indicator must stay neutral.
func makeConstantCandles(n int, price float64) []market.Candle {
	base := time.Date(2025, 1, 7, 9, 15, 0, 0, market.ISTLocation)
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = market.Candle{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

func TestCalculateSMA(t *testing.T) {
	candles := makeCandles(10, 100, 1)

	sma := CalculateSMA(candles, 5)
	// Last 5 closes: 105..109
	if sma != 107 {
		t.Errorf("expected SMA 107, got %f", sma)
	}

	if got := CalculateSMA(candles, 20); got != 0 {
		t.Errorf("expected 0 for insufficient history, got %f", got)
	}
}

func TestCalculateEMAFollowsTrend(t *testing.T) {
	up := makeCandles(60, 100, 1)
	down := makeCandles(60, 200, -1)

	emaUp := CalculateEMA(up, 20)
	if emaUp <= CalculateSMA(up, 60) {
		t.Errorf("EMA should sit above the long average in an uptrend: %f", emaUp)
	}

	emaDown := CalculateEMA(down, 20)
	if emaDown >= CalculateSMA(down, 60) {
		t.Errorf("EMA should sit below the long average in a downtrend: %f", emaDown)
	}
}

func TestCalculateRSI(t *testing.T) {
	up := makeCandles(40, 100, 2)
	if rsi := CalculateRSI(up, 14); rsi != 100 {
		t.Errorf("expected RSI 100 for straight rally, got %f", rsi)
	}

	down := makeCandles(40, 300, -2)
	if rsi := CalculateRSI(down, 14); rsi != 0 {
		t.Errorf("expected RSI 0 for straight selloff, got %f", rsi)
	}

	short := makeCandles(5, 100, 1)
	if rsi := CalculateRSI(short, 14); rsi != 50 {
		t.Errorf("expected neutral RSI 50 on short history, got %f", rsi)
	}

	flat := makeConstantCandles(60, 100)
	if rsi := CalculateRSI(flat, 14); rsi != 50 {
		t.Errorf("expected neutral RSI 50 for a constant series, got %f", rsi)
	}
}

func TestCalculateMACD(t *testing.T) {
	up := makeCandles(80, 100, 1)
	macd := CalculateMACD(up, 12, 26, 9)
	if macd.MACD <= 0 {
		t.Errorf("MACD should be positive in an uptrend, got %f", macd.MACD)
	}
	if macd.Histogram != macd.MACD-macd.Signal {
		t.Error("histogram must equal MACD minus signal")
	}

	short := makeCandles(10, 100, 1)
	res := CalculateMACD(short, 12, 26, 9)
	if res.MACD != 0 || res.Signal != 0 {
		t.Error("expected zero MACD on short history")
	}
}

func TestCalculateBollingerBands(t *testing.T) {
	candles := makeCandles(40, 100, 1)
	bb := CalculateBollingerBands(candles, 20, 2)

	if !(bb.Lower < bb.Middle && bb.Middle < bb.Upper) {
		t.Errorf("bands out of order: %f %f %f", bb.Lower, bb.Middle, bb.Upper)
	}
	if bb.PercentB <= 0.5 {
		t.Errorf("last close of a rally should sit in the upper band, %%B=%f", bb.PercentB)
	}
}

func TestCalculateATR(t *testing.T) {
	candles := makeCandles(30, 100, 1)
	atr := CalculateATR(candles, 14)
	if atr <= 0 {
		t.Errorf("ATR should be positive, got %f", atr)
	}
	if got := CalculateATR(candles[:5], 14); got != 0 {
		t.Errorf("expected 0 ATR on short history, got %f", got)
	}
}

func TestCalculateStochastic(t *testing.T) {
	up := makeCandles(30, 100, 2)
	stoch := CalculateStochastic(up, 14, 3)
	if stoch.K < 80 {
		t.Errorf("expected overbought %%K in a rally, got %f", stoch.K)
	}

	short := makeCandles(5, 100, 1)
	res := CalculateStochastic(short, 14, 3)
	if res.K != 50 || res.D != 50 {
		t.Error("expected neutral stochastic on short history")
	}
}

func TestCalculateADX(t *testing.T) {
	up := makeCandles(60, 100, 2)
	adx := CalculateADX(up, 14)
	if adx.ADX < 50 {
		t.Errorf("expected strong ADX in a one-way trend, got %f", adx.ADX)
	}
	if adx.PlusDI <= adx.MinusDI {
		t.Errorf("+DI should dominate in an uptrend: +%f -%f", adx.PlusDI, adx.MinusDI)
	}

	short := makeCandles(10, 100, 1)
	res := CalculateADX(short, 14)
	if res.ADX != 25 {
		t.Errorf("expected neutral ADX 25 on short history, got %f", res.ADX)
	}
}

func TestCalculateSupertrend(t *testing.T) {
	up := makeCandles(60, 100, 2)
	if st := CalculateSupertrend(up, 10, 3); st.Direction != 1 {
		t.Errorf("expected bullish supertrend in a rally, got %d", st.Direction)
	}

	down := makeCandles(60, 300, -2)
	if st := CalculateSupertrend(down, 10, 3); st.Direction != -1 {
		t.Errorf("expected bearish supertrend in a selloff, got %d", st.Direction)
	}

	// A rally that rolls over must flip the direction back down
	turn := append(makeCandles(40, 100, 2), makeCandles(40, 178, -4)...)
	if st := CalculateSupertrend(turn, 10, 3); st.Direction != -1 {
		t.Errorf("expected the supertrend to flip bearish after the turn, got %d", st.Direction)
	}

	flat := makeConstantCandles(60, 100)
	if st := CalculateSupertrend(flat, 10, 3); st.Direction != 0 {
		t.Errorf("a rangeless series has no trend, got direction %d", st.Direction)
	}
}

func TestCalculateVWAP(t *testing.T) {
	candles := makeCandles(20, 100, 0)
	vwap := CalculateVWAP(candles)
	// Flat prices: typical price is (high+low+close)/3 = (101+97+100)/3
	want := (101.0 + 97.0 + 100.0) / 3
	if diff := vwap - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected VWAP %f, got %f", want, vwap)
	}

	// A previous-day candle must not leak into today's VWAP
	prev := market.Candle{
		Timestamp: candles[0].Timestamp.AddDate(0, 0, -1),
		Open:      10, High: 10, Low: 10, Close: 10, Volume: 1e9,
	}
	withPrev := append([]market.Candle{prev}, candles...)
	if v := CalculateVWAP(withPrev); v < 90 {
		t.Errorf("VWAP should reset at the session boundary, got %f", v)
	}
}

func TestIsVolumeSpike(t *testing.T) {
	candles := makeCandles(30, 100, 1)
	candles[len(candles)-1].Volume = 5000

	if !IsVolumeSpike(candles, 20, 2) {
		t.Error("5x average volume should register as a spike")
	}

	candles[len(candles)-1].Volume = 1100
	if IsVolumeSpike(candles, 20, 2) {
		t.Error("1.1x average volume should not register as a spike")
	}
}

func TestDetectTrend(t *testing.T) {
	if trend := DetectTrend(makeCandles(60, 100, 1)); trend != UPTREND {
		t.Errorf("expected UPTREND, got %s", trend)
	}
	if trend := DetectTrend(makeCandles(60, 300, -1)); trend != DOWNTREND {
		t.Errorf("expected DOWNTREND, got %s", trend)
	}
	if trend := DetectTrend(makeCandles(10, 100, 1)); trend != SIDEWAYS {
		t.Errorf("expected SIDEWAYS on short history, got %s", trend)
	}
}

func TestTrendStrength(t *testing.T) {
	up := TrendStrength(makeCandles(80, 100, 2))
	if up.Trend != UPTREND {
		t.Errorf("expected UPTREND, got %s", up.Trend)
	}
	if up.Strength <= 0.5 || up.Strength > 1 {
		t.Errorf("uptrend strength out of range: %f", up.Strength)
	}
	if up.BullishVotes <= up.BearishVotes {
		t.Error("bullish votes should dominate in a rally")
	}

	short := TrendStrength(makeCandles(10, 100, 0))
	if short.Trend != SIDEWAYS || short.Strength != 0.5 {
		t.Errorf("short history should be neutral, got %s %f", short.Trend, short.Strength)
	}

	// A dead market must not lean either way
	flat := TrendStrength(makeConstantCandles(60, 100))
	if flat.Trend != SIDEWAYS || flat.Strength != 0.5 {
		t.Errorf("constant series should be SIDEWAYS 0.5, got %s %f (bull=%d bear=%d)",
			flat.Trend, flat.Strength, flat.BullishVotes, flat.BearishVotes)
	}
	if flat.BullishVotes != 0 || flat.BearishVotes != 0 {
		t.Errorf("constant series should cast no votes, got bull=%d bear=%d",
			flat.BullishVotes, flat.BearishVotes)
	}
}

func TestAnalyzeSignals(t *testing.T) {
	up := AnalyzeSignals(makeCandles(80, 100, 2))
	if up.Signal != market.SignalBuyCall {
		t.Errorf("expected BUY CALL in a strong rally, got %s", up.Signal)
	}
	if up.Confidence <= 0.5 || up.Confidence > 0.95 {
		t.Errorf("confidence out of bounds: %f", up.Confidence)
	}
	if len(up.BullishSignals) == 0 {
		t.Error("expected named bullish signals")
	}

	down := AnalyzeSignals(makeCandles(80, 400, -2))
	if down.Signal != market.SignalBuyPut {
		t.Errorf("expected BUY PUT in a selloff, got %s", down.Signal)
	}

	short := AnalyzeSignals(makeCandles(10, 100, 1))
	if short.Signal != market.SignalWait {
		t.Errorf("expected WAIT on short history, got %s", short.Signal)
	}

	flat := AnalyzeSignals(makeConstantCandles(60, 100))
	if flat.Signal != market.SignalWait || flat.Trend != SIDEWAYS || flat.TrendStrength != 0.5 {
		t.Errorf("constant series should be a neutral WAIT, got %s %s %f",
			flat.Signal, flat.Trend, flat.TrendStrength)
	}
	if len(flat.BullishSignals) != 0 || len(flat.BearishSignals) != 0 {
		t.Errorf("constant series should name no signals: %v %v",
			flat.BullishSignals, flat.BearishSignals)
	}
}

func TestAnalyzeSignalsCrossoversAreEvents(t *testing.T) {
	// A sustained rally holds MACD above its signal line the whole way;
	// float noise between the two must not read as a fresh crossover.
	up := AnalyzeSignals(makeCandles(80, 100, 2))
	for _, name := range up.BearishSignals {
		if name == "MACD Bearish Crossover" || name == "EMA Bearish Crossover" {
			t.Errorf("steady rally must not report %s", name)
		}
	}

	// A flat stretch ending in a sharp thrust crosses EMA9 above EMA20 on
	// the final bar.
	thrust := makeConstantCandles(60, 100)
	last := thrust[len(thrust)-1]
	last.Timestamp = last.Timestamp.Add(5 * time.Minute)
	last.Open, last.High, last.Low, last.Close = 100, 106, 100, 105
	thrust = append(thrust, last)

	got := AnalyzeSignals(thrust)
	found := false
	for _, name := range got.BullishSignals {
		if name == "EMA Bullish Crossover" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an EMA crossover event on the thrust bar, got %v", got.BullishSignals)
	}
}

func TestCalculateTradeLevels(t *testing.T) {
	candles := makeCandles(40, 100, 1)
	levels := CalculateTradeLevels(candles, market.SignalBuyCall)
	if !(levels.StopLoss < levels.Entry && levels.Entry < levels.Target) {
		t.Errorf("call levels out of order: %f %f %f", levels.StopLoss, levels.Entry, levels.Target)
	}

	put := CalculateTradeLevels(candles, market.SignalBuyPut)
	if !(put.Target < put.Entry && put.Entry < put.StopLoss) {
		t.Errorf("put levels out of order: %f %f %f", put.Target, put.Entry, put.StopLoss)
	}

	wait := CalculateTradeLevels(candles, market.SignalWait)
	if wait.StopLoss != 0 || wait.Target != 0 {
		t.Error("WAIT should carry no stop or target")
	}
}

func BenchmarkTrendStrength(b *testing.B) {
	candles := makeCandles(200, 100, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TrendStrength(candles)
	}
}
