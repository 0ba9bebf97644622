package indicators

import (
	"time"

	"options-trading-engine/internal/market"
)

// Frame is a snapshot of the full indicator suite for the latest bar. It is
// serialized into cycle reports and feeds the ML feature vector.
type Frame struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`

	// Moving averages
	SMA9   float64 `json:"sma_9"`
	SMA20  float64 `json:"sma_20"`
	SMA50  float64 `json:"sma_50"`
	SMA200 float64 `json:"sma_200"`
	EMA9   float64 `json:"ema_9"`
	EMA20  float64 `json:"ema_20"`
	EMA50  float64 `json:"ema_50"`
	EMA200 float64 `json:"ema_200"`

	// Momentum
	RSI        float64           `json:"rsi"`
	MACD       *MACDResult       `json:"macd"`
	Stochastic *StochasticResult `json:"stochastic"`
	CCI        float64           `json:"cci"`
	WilliamsR  float64           `json:"williams_r"`
	MFI        float64           `json:"mfi"`
	Momentum   float64           `json:"momentum"`

	// Trend
	ADX          *ADXResult          `json:"adx"`
	ADXStrength  string              `json:"adx_trend_strength"`
	Supertrend   *SupertrendResult   `json:"supertrend"`
	Ichimoku     *IchimokuResult     `json:"ichimoku"`
	ParabolicSAR *ParabolicSARResult `json:"psar"`
	Aroon        *AroonResult        `json:"aroon"`

	// Volatility
	Bollinger            *BollingerBandsResult `json:"bollinger"`
	BBBandwidth          float64               `json:"bb_bandwidth"`
	BBSqueeze            bool                  `json:"bb_squeeze"`
	ATR                  float64               `json:"atr"`
	ATRPercent           float64               `json:"atr_percent"`
	Volatility           string                `json:"volatility"`
	Keltner              *KeltnerResult        `json:"keltner"`
	Donchian             *DonchianResult       `json:"donchian"`
	VolatilityRatio      float64               `json:"volatility_ratio"`
	HistoricalVolatility float64               `json:"hist_volatility"`

	// Volume
	VWAP            float64      `json:"vwap"`
	OBV             *OBVResult   `json:"obv"`
	VolumeProfile   []VolumeZone `json:"volume_profile"`
	VolumeSMA5      float64      `json:"volume_sma_5"`
	VolumeSMA20     float64      `json:"volume_sma_20"`
	RelativeVolume  float64      `json:"relative_volume"`
	VolumeSpike     bool         `json:"volume_spike"`
	UltraHighVolume bool         `json:"ultra_high_volume"`

	// Delivery (NSE-specific conviction measure)
	Delivery *DeliveryResult `json:"delivery"`

	// Aggregates
	Trend         TrendDirection       `json:"trend"`
	TrendStrength *TrendStrengthResult `json:"trend_strength"`
}

// BuildFrame computes the full indicator suite for the candle history. Short
// history yields neutral values throughout, never an error.
func BuildFrame(candles []market.Candle) *Frame {
	f := &Frame{}
	if len(candles) == 0 {
		f.MACD = &MACDResult{}
		f.Stochastic = &StochasticResult{50, 50}
		f.RSI = 50
		f.WilliamsR = -50
		f.MFI = 50
		f.ADX = &ADXResult{ADX: 25, PlusDI: 20, MinusDI: 20}
		f.ADXStrength = ADXStrength(25)
		f.Supertrend = &SupertrendResult{}
		f.Ichimoku = &IchimokuResult{}
		f.ParabolicSAR = &ParabolicSARResult{}
		f.Aroon = &AroonResult{Up: 50, Down: 50}
		f.Bollinger = &BollingerBandsResult{PercentB: 0.5}
		f.BBBandwidth = 0.2
		f.Keltner = &KeltnerResult{}
		f.Donchian = &DonchianResult{}
		f.VolatilityRatio = 1
		f.HistoricalVolatility = 20
		f.RelativeVolume = 1
		f.Delivery = &DeliveryResult{Percent: 50, SMA5: 50}
		f.Volatility = "Normal"
		f.Trend = SIDEWAYS
		f.TrendStrength = &TrendStrengthResult{Trend: SIDEWAYS, Strength: 0.5}
		return f
	}

	last := candles[len(candles)-1]
	f.Timestamp = last.Timestamp
	f.Close = last.Close

	f.SMA9 = CalculateSMA(candles, 9)
	f.SMA20 = CalculateSMA(candles, 20)
	f.SMA50 = CalculateSMA(candles, 50)
	f.SMA200 = CalculateSMA(candles, 200)
	f.EMA9 = CalculateEMA(candles, 9)
	f.EMA20 = CalculateEMA(candles, 20)
	f.EMA50 = CalculateEMA(candles, 50)
	f.EMA200 = CalculateEMA(candles, 200)

	f.RSI = CalculateRSI(candles, 14)
	f.MACD = CalculateMACD(candles, 12, 26, 9)
	f.Stochastic = CalculateStochastic(candles, 14, 3)
	f.CCI = CalculateCCI(candles, 20)
	f.WilliamsR = CalculateWilliamsR(candles, 14)
	f.MFI = CalculateMFI(candles, 14)
	f.Momentum = CalculateMomentum(candles, 14)

	f.ADX = CalculateADX(candles, 14)
	f.ADXStrength = ADXStrength(f.ADX.ADX)
	f.Supertrend = CalculateSupertrend(candles, 10, 3)
	f.Ichimoku = CalculateIchimoku(candles)
	f.ParabolicSAR = CalculateParabolicSAR(candles, 0.02, 0.2)
	f.Aroon = CalculateAroon(candles, 25)

	f.Bollinger = CalculateBollingerBands(candles, 20, 2)
	f.BBBandwidth = CalculateBBBandwidth(candles, 20, 2)
	f.BBSqueeze = IsBBSqueeze(candles, 20, 2)
	f.ATR = CalculateATR(candles, 14)
	if last.Close > 0 {
		f.ATRPercent = f.ATR / last.Close * 100
	}
	f.Volatility = volatilityBucket(f.ATRPercent)
	f.Keltner = CalculateKeltner(candles, 20, 2)
	f.Donchian = CalculateDonchian(candles, 20)
	f.VolatilityRatio = CalculateVolatilityRatio(candles, 5, 20)
	f.HistoricalVolatility = CalculateHistoricalVolatility(candles, 20)

	f.VWAP = CalculateVWAP(candles)
	f.OBV = AnalyzeOBV(candles)
	f.VolumeProfile = CalculateVolumeProfile(candles, 10)
	f.VolumeSMA5 = CalculateAverageVolume(candles, 5)
	f.VolumeSMA20 = CalculateAverageVolume(candles, 20)
	f.RelativeVolume = CalculateRelativeVolume(candles, 20)
	f.VolumeSpike = IsVolumeSpike(candles, 20, 2)
	f.UltraHighVolume = IsVolumeSpike(candles, 20, 3)
	f.Delivery = AnalyzeDelivery(candles)

	f.Trend = DetectTrend(candles)
	f.TrendStrength = TrendStrength(candles)

	return f
}

// volatilityBucket classifies ATR as a percent of price
func volatilityBucket(atrPercent float64) string {
	switch {
	case atrPercent < 0.5:
		return "Low"
	case atrPercent < 1.0:
		return "Normal"
	case atrPercent < 1.5:
		return "High"
	default:
		return "Extreme"
	}
}
