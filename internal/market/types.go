package market

import (
	"strings"
	"time"
)

// Index identifies an NSE/BSE index with listed weekly options.
type Index string

const (
	IndexNifty      Index = "NIFTY"
	IndexBankNifty  Index = "BANKNIFTY"
	IndexFinNifty   Index = "FINNIFTY"
	IndexSensex     Index = "SENSEX"
	IndexMidcpNifty Index = "MIDCPNIFTY"
)

// AllIndices lists every supported index in display order.
var AllIndices = []Index{IndexNifty, IndexBankNifty, IndexFinNifty, IndexSensex, IndexMidcpNifty}

// ParseIndex normalizes a user-supplied index name. Unknown names fall back to NIFTY.
func ParseIndex(s string) Index {
	switch Index(strings.ToUpper(strings.TrimSpace(s))) {
	case IndexBankNifty:
		return IndexBankNifty
	case IndexFinNifty:
		return IndexFinNifty
	case IndexSensex:
		return IndexSensex
	case IndexMidcpNifty:
		return IndexMidcpNifty
	default:
		return IndexNifty
	}
}

// LotSize returns the exchange lot size for the index.
func (i Index) LotSize() int {
	switch i {
	case IndexBankNifty:
		return 25
	case IndexFinNifty:
		return 40
	case IndexSensex:
		return 10
	case IndexMidcpNifty:
		return 75
	default:
		return 50
	}
}

// StrikeStep returns the strike interval for the index option chain.
func (i Index) StrikeStep() float64 {
	switch i {
	case IndexBankNifty, IndexSensex:
		return 100
	case IndexMidcpNifty:
		return 25
	default:
		return 50
	}
}

// Signal is a directional option-buying signal.
type Signal string

const (
	SignalBuyCall Signal = "BUY CALL"
	SignalBuyPut  Signal = "BUY PUT"
	SignalWait    Signal = "WAIT"
)

// Direction returns +1 for calls, -1 for puts and 0 for WAIT.
func (s Signal) Direction() int {
	switch s {
	case SignalBuyCall:
		return 1
	case SignalBuyPut:
		return -1
	default:
		return 0
	}
}

// RiskProfile controls fusion weights, thresholds and expiry selection.
type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

// ParseRiskProfile normalizes a profile name, defaulting to moderate.
func ParseRiskProfile(s string) RiskProfile {
	switch RiskProfile(strings.ToLower(strings.TrimSpace(s))) {
	case RiskConservative:
		return RiskConservative
	case RiskAggressive:
		return RiskAggressive
	default:
		return RiskModerate
	}
}

// Candle is a single OHLCV bar.
type Candle struct {
	Timestamp       time.Time `json:"timestamp"`
	Open            float64   `json:"open"`
	High            float64   `json:"high"`
	Low             float64   `json:"low"`
	Close           float64   `json:"close"`
	Volume          float64   `json:"volume"`
	DeliveryPercent float64   `json:"delivery_percent,omitempty"`
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Body returns the absolute body size.
func (c Candle) Body() float64 {
	b := c.Close - c.Open
	if b < 0 {
		return -b
	}
	return b
}

// Range returns high minus low.
func (c Candle) Range() float64 { return c.High - c.Low }

// UpperWick returns the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	top := c.Open
	if c.Close > c.Open {
		top = c.Close
	}
	return c.High - top
}

// LowerWick returns the distance from the low to the body bottom.
func (c Candle) LowerWick() float64 {
	bottom := c.Open
	if c.Close < c.Open {
		bottom = c.Close
	}
	return bottom - c.Low
}
