package chain

import (
	"time"

	"options-trading-engine/internal/market"
)

// Leg holds one side (CE or PE) of a strike row
type Leg struct {
	OI       float64 `json:"oi"`
	ChangeOI float64 `json:"change_oi"`
	Volume   float64 `json:"volume"`
	IV       float64 `json:"iv"`
	LTP      float64 `json:"ltp"`
	Change   float64 `json:"change"`
	BidQty   float64 `json:"bid_qty"`
	BidPrice float64 `json:"bid_price"`
	AskPrice float64 `json:"ask_price"`
	AskQty   float64 `json:"ask_qty"`
}

// StrikeRow is one strike of the option chain with both legs
type StrikeRow struct {
	Strike float64 `json:"strike"`
	Expiry string  `json:"expiry"`
	CE     Leg     `json:"ce"`
	PE     Leg     `json:"pe"`
}

// Snapshot is a parsed option chain for one index at one point in time.
// Rows are filtered to the selected expiry and sorted by strike.
type Snapshot struct {
	Index           market.Index `json:"index"`
	FetchedAt       time.Time    `json:"fetched_at"`
	UnderlyingValue float64      `json:"underlying_value"`
	Expiry          string       `json:"expiry"`
	ExpiryDates     []string     `json:"expiry_dates"`
	Rows            []StrikeRow  `json:"rows"`
}

// Fresh reports whether the snapshot is younger than five minutes
func (s *Snapshot) Fresh() bool {
	return time.Since(s.FetchedAt) < 5*time.Minute
}

// Age returns the snapshot age in seconds
func (s *Snapshot) Age() float64 {
	return time.Since(s.FetchedAt).Seconds()
}

// NSE option-chain-indices payload

type nsePayload struct {
	Records  nseRecords `json:"records"`
	Filtered nseRecords `json:"filtered"`
}

type nseRecords struct {
	ExpiryDates     []string `json:"expiryDates"`
	Data            []nseRow `json:"data"`
	UnderlyingValue float64  `json:"underlyingValue"`
}

type nseRow struct {
	StrikePrice float64 `json:"strikePrice"`
	ExpiryDate  string  `json:"expiryDate"`
	CE          *nseLeg `json:"CE"`
	PE          *nseLeg `json:"PE"`
}

type nseLeg struct {
	OpenInterest      float64 `json:"openInterest"`
	ChangeInOI        float64 `json:"changeinOpenInterest"`
	TotalTradedVolume float64 `json:"totalTradedVolume"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	LastPrice         float64 `json:"lastPrice"`
	Change            float64 `json:"change"`
	BidQty            float64 `json:"bidQty"`
	BidPrice          float64 `json:"bidprice"`
	AskPrice          float64 `json:"askPrice"`
	AskQty            float64 `json:"askQty"`
}

func (l *nseLeg) toLeg() Leg {
	if l == nil {
		return Leg{}
	}
	return Leg{
		OI:       l.OpenInterest,
		ChangeOI: l.ChangeInOI,
		Volume:   l.TotalTradedVolume,
		IV:       l.ImpliedVolatility,
		LTP:      l.LastPrice,
		Change:   l.Change,
		BidQty:   l.BidQty,
		BidPrice: l.BidPrice,
		AskPrice: l.AskPrice,
		AskQty:   l.AskQty,
	}
}
