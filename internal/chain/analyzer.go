package chain

import (
	"math"
	"sort"
	"time"

	"options-trading-engine/internal/market"
)

// ============================================================================
// ANALYSIS TYPES
// ============================================================================

// Momentum summarizes change-in-OI and volume flows across the chain
type Momentum struct {
	CEOIChange     float64 `json:"ce_oi_change"`
	PEOIChange     float64 `json:"pe_oi_change"`
	NetOIChange    float64 `json:"net_oi_change"`
	OIMomentum     string  `json:"oi_momentum"` // "Bullish" or "Bearish"
	CEVolume       float64 `json:"ce_volume"`
	PEVolume       float64 `json:"pe_volume"`
	PCRVolume      float64 `json:"pcr_volume"`
	VolumeMomentum string  `json:"volume_momentum"`
}

// SkewPoint is one OTM strike in the IV skew ladder
type SkewPoint struct {
	Strike       float64 `json:"strike"`
	IV           float64 `json:"iv"`
	DeltaFromATM float64 `json:"delta_from_atm"`
}

// IVSkew captures at-the-money IVs and the first OTM strikes each side
type IVSkew struct {
	ATMStrike float64     `json:"atm_strike"`
	ATMCallIV float64     `json:"atm_call_iv"`
	ATMPutIV  float64     `json:"atm_put_iv"`
	OTMCalls  []SkewPoint `json:"otm_calls"`
	OTMPuts   []SkewPoint `json:"otm_puts"`
}

// AvgPutDelta averages the OTM put IV deltas from ATM
func (s *IVSkew) AvgPutDelta() float64 {
	return avgDelta(s.OTMPuts)
}

// AvgCallDelta averages the OTM call IV deltas from ATM
func (s *IVSkew) AvgCallDelta() float64 {
	return avgDelta(s.OTMCalls)
}

func avgDelta(points []SkewPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points {
		sum += p.DeltaFromATM
	}
	return sum / float64(len(points))
}

// LevelPoint is a strike flagged as significant by OI or OI change
type LevelPoint struct {
	Strike   float64 `json:"strike"`
	OI       float64 `json:"oi"`
	ChangeOI float64 `json:"change_oi"`
}

// KeyLevels holds OI-derived support and resistance candidates
type KeyLevels struct {
	PutSupport          []LevelPoint `json:"put_support"`
	CallResistance      []LevelPoint `json:"call_resistance"`
	SignificantPEChange []LevelPoint `json:"significant_pe_change"`
	SignificantCEChange []LevelPoint `json:"significant_ce_change"`
}

// StrikeDistribution summarizes OI concentration around the spot
type StrikeDistribution struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	CEOIWithin      float64 `json:"ce_oi_within_range"`
	PEOIWithin      float64 `json:"pe_oi_within_range"`
	TotalOIWithin   float64 `json:"total_oi_within_range"`
	MaxCallOIStrike float64 `json:"max_call_oi_strike"`
	MaxPutOIStrike  float64 `json:"max_put_oi_strike"`
}

// Analysis is the full analytic view over one chain snapshot
type Analysis struct {
	Index           market.Index        `json:"index"`
	Timestamp       time.Time           `json:"timestamp"`
	UnderlyingValue float64             `json:"underlying_value"`
	Expiry          string              `json:"expiry"`
	PCR             float64             `json:"pcr"`
	PCRVolume       float64             `json:"pcr_volume"`
	TotalCEOI       float64             `json:"total_ce_oi"`
	TotalPEOI       float64             `json:"total_pe_oi"`
	ATMStrike       float64             `json:"atm_strike"`
	MaxPain         float64             `json:"max_pain"`
	MaxPainDistance float64             `json:"max_pain_distance"` // percent of spot
	Momentum        *Momentum           `json:"momentum"`
	IVSkew          *IVSkew             `json:"iv_skew"`
	KeyLevels       *KeyLevels          `json:"key_levels"`
	Distribution    *StrikeDistribution `json:"strike_distribution"`
}

// ============================================================================
// ANALYZER
// ============================================================================

// Analyze computes the full metric set over a snapshot. It never fails: an
// empty snapshot yields zero-valued metrics.
func Analyze(s *Snapshot) *Analysis {
	a := &Analysis{
		Index:           s.Index,
		Timestamp:       s.FetchedAt,
		UnderlyingValue: s.UnderlyingValue,
		Expiry:          s.Expiry,
	}

	for _, r := range s.Rows {
		a.TotalCEOI += r.CE.OI
		a.TotalPEOI += r.PE.OI
	}

	a.PCR = CalculatePCR(s.Rows)
	a.PCRVolume = CalculateVolumePCR(s.Rows)
	a.ATMStrike = atmStrike(s.Rows, s.UnderlyingValue)
	a.MaxPain = CalculateMaxPain(s.Rows)
	if s.UnderlyingValue > 0 && a.MaxPain > 0 {
		a.MaxPainDistance = (a.MaxPain - s.UnderlyingValue) / s.UnderlyingValue * 100
	}
	a.Momentum = CalculateMomentum(s.Rows)
	a.IVSkew = CalculateIVSkew(s.Rows, s.UnderlyingValue)
	a.KeyLevels = IdentifyKeyLevels(s.Rows)
	a.Distribution = StrikeDistributionAround(s.Rows, s.UnderlyingValue, 5)

	return a
}

// CalculatePCR returns put OI over call OI rounded to two decimals,
// 0 when there is no call OI.
func CalculatePCR(rows []StrikeRow) float64 {
	var ce, pe float64
	for _, r := range rows {
		ce += r.CE.OI
		pe += r.PE.OI
	}
	if ce <= 0 {
		return 0
	}
	return round2(pe / ce)
}

// CalculateVolumePCR returns put volume over call volume rounded to two decimals
func CalculateVolumePCR(rows []StrikeRow) float64 {
	var ce, pe float64
	for _, r := range rows {
		ce += r.CE.Volume
		pe += r.PE.Volume
	}
	if ce <= 0 {
		return 0
	}
	return round2(pe / ce)
}

// CalculateMaxPain finds the strike where option writers lose the least:
// pain(K) = sum of ceOI*(K-strike) for strikes below K plus peOI*(strike-K)
// for strikes above. Ties resolve to the lowest strike.
func CalculateMaxPain(rows []StrikeRow) float64 {
	if len(rows) == 0 {
		return 0
	}

	best := 0.0
	bestPain := math.MaxFloat64

	for _, candidate := range rows {
		k := candidate.Strike
		pain := 0.0
		for _, r := range rows {
			if r.Strike < k {
				pain += r.CE.OI * (k - r.Strike)
			}
			if r.Strike > k {
				pain += r.PE.OI * (r.Strike - k)
			}
		}
		if pain < bestPain || (pain == bestPain && k < best) {
			bestPain = pain
			best = k
		}
	}

	return best
}

// CalculateMomentum sums OI changes and volumes per side. Put writing
// outpacing call writing reads as Bullish.
func CalculateMomentum(rows []StrikeRow) *Momentum {
	m := &Momentum{OIMomentum: "Bearish", VolumeMomentum: "Bearish"}

	for _, r := range rows {
		m.CEOIChange += r.CE.ChangeOI
		m.PEOIChange += r.PE.ChangeOI
		m.CEVolume += r.CE.Volume
		m.PEVolume += r.PE.Volume
	}

	m.NetOIChange = m.PEOIChange - m.CEOIChange
	if m.PEOIChange > m.CEOIChange {
		m.OIMomentum = "Bullish"
	}
	if m.PEVolume > m.CEVolume {
		m.VolumeMomentum = "Bullish"
	}
	if m.CEVolume > 0 {
		m.PCRVolume = round2(m.PEVolume / m.CEVolume)
	}

	return m
}

// CalculateIVSkew reads ATM IVs and up to three OTM strikes each side
func CalculateIVSkew(rows []StrikeRow, spot float64) *IVSkew {
	skew := &IVSkew{}
	if len(rows) == 0 || spot <= 0 {
		return skew
	}

	atmIdx := 0
	for i, r := range rows {
		if math.Abs(r.Strike-spot) < math.Abs(rows[atmIdx].Strike-spot) {
			atmIdx = i
		}
	}

	skew.ATMStrike = rows[atmIdx].Strike
	skew.ATMCallIV = rows[atmIdx].CE.IV
	skew.ATMPutIV = rows[atmIdx].PE.IV

	// Rows are sorted by strike: calls above ATM, puts below walking down
	for i := atmIdx + 1; i < len(rows) && len(skew.OTMCalls) < 3; i++ {
		skew.OTMCalls = append(skew.OTMCalls, SkewPoint{
			Strike:       rows[i].Strike,
			IV:           rows[i].CE.IV,
			DeltaFromATM: rows[i].CE.IV - skew.ATMCallIV,
		})
	}
	for i := atmIdx - 1; i >= 0 && len(skew.OTMPuts) < 3; i-- {
		skew.OTMPuts = append(skew.OTMPuts, SkewPoint{
			Strike:       rows[i].Strike,
			IV:           rows[i].PE.IV,
			DeltaFromATM: rows[i].PE.IV - skew.ATMPutIV,
		})
	}

	return skew
}

// IdentifyKeyLevels ranks strikes by put OI (support), call OI (resistance)
// and change in OI per side, top three each.
func IdentifyKeyLevels(rows []StrikeRow) *KeyLevels {
	top3 := func(less func(i, j StrikeRow) bool, pick func(StrikeRow) LevelPoint) []LevelPoint {
		sorted := make([]StrikeRow, len(rows))
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

		n := 3
		if len(sorted) < n {
			n = len(sorted)
		}
		out := make([]LevelPoint, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, pick(sorted[i]))
		}
		return out
	}

	return &KeyLevels{
		PutSupport: top3(
			func(i, j StrikeRow) bool { return i.PE.OI > j.PE.OI },
			func(r StrikeRow) LevelPoint { return LevelPoint{r.Strike, r.PE.OI, r.PE.ChangeOI} },
		),
		CallResistance: top3(
			func(i, j StrikeRow) bool { return i.CE.OI > j.CE.OI },
			func(r StrikeRow) LevelPoint { return LevelPoint{r.Strike, r.CE.OI, r.CE.ChangeOI} },
		),
		SignificantPEChange: top3(
			func(i, j StrikeRow) bool { return i.PE.ChangeOI > j.PE.ChangeOI },
			func(r StrikeRow) LevelPoint { return LevelPoint{r.Strike, r.PE.OI, r.PE.ChangeOI} },
		),
		SignificantCEChange: top3(
			func(i, j StrikeRow) bool { return i.CE.ChangeOI > j.CE.ChangeOI },
			func(r StrikeRow) LevelPoint { return LevelPoint{r.Strike, r.CE.OI, r.CE.ChangeOI} },
		),
	}
}

// StrikeDistributionAround sums OI within rangePercent of the spot
func StrikeDistributionAround(rows []StrikeRow, spot float64, rangePercent float64) *StrikeDistribution {
	if spot <= 0 {
		return &StrikeDistribution{}
	}

	d := &StrikeDistribution{
		Lower: spot * (1 - rangePercent/100),
		Upper: spot * (1 + rangePercent/100),
	}

	var maxCE, maxPE float64
	for _, r := range rows {
		if r.Strike < d.Lower || r.Strike > d.Upper {
			continue
		}
		d.CEOIWithin += r.CE.OI
		d.PEOIWithin += r.PE.OI
		if r.CE.OI > maxCE {
			maxCE = r.CE.OI
			d.MaxCallOIStrike = r.Strike
		}
		if r.PE.OI > maxPE {
			maxPE = r.PE.OI
			d.MaxPutOIStrike = r.Strike
		}
	}
	d.TotalOIWithin = d.CEOIWithin + d.PEOIWithin

	return d
}

func atmStrike(rows []StrikeRow, spot float64) float64 {
	if len(rows) == 0 || spot <= 0 {
		return 0
	}
	best := rows[0].Strike
	for _, r := range rows {
		if math.Abs(r.Strike-spot) < math.Abs(best-spot) {
			best = r.Strike
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
