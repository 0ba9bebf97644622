package tradelog

import (
	"fmt"
	"math"
	"sort"
	"time"

	"options-trading-engine/internal/market"
)

// BucketStats aggregates outcomes for one grouping key
type BucketStats struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"win_rate"`
	TotalPnL float64 `json:"total_pnl"`
	AvgPnL   float64 `json:"avg_pnl"`
}

// Summary is the journal-level rollup persisted to performance.json
type Summary struct {
	TotalTrades   int                     `json:"total_trades"`
	ClosedTrades  int                     `json:"closed_trades"`
	OpenTrades    int                     `json:"open_trades"`
	WinningTrades int                     `json:"winning_trades"`
	LosingTrades  int                     `json:"losing_trades"`
	WinRate       float64                 `json:"win_rate"`
	WinLossRatio  float64                 `json:"win_loss_ratio"`
	TotalPnL      float64                 `json:"total_pnl"`
	AvgPnL        float64                 `json:"avg_pnl_per_trade"`
	MaxDrawdown   float64                 `json:"max_drawdown"`
	SharpeRatio   float64                 `json:"sharpe_ratio"`
	ByIndex       map[string]*BucketStats `json:"by_index,omitempty"`
	BySignal      map[string]*BucketStats `json:"by_signal,omitempty"`
	ByMonth       map[string]*BucketStats `json:"by_month,omitempty"`
	LastUpdated   time.Time               `json:"last_updated"`
}

// HourStats is one slot of the time-of-day breakdown
type HourStats struct {
	Trades  int     `json:"trades"`
	WinRate float64 `json:"win_rate"`
	PnL     float64 `json:"pnl"`
}

// Stats holds streaks and time-of-day analysis, persisted to stats.json
type Stats struct {
	MaxWinStreak     int                     `json:"max_win_streak"`
	MaxLossStreak    int                     `json:"max_loss_streak"`
	HourPerformance  map[string]*HourStats   `json:"hour_performance,omitempty"`
	AvgHoldMinutes   float64                 `json:"avg_hold_time_minutes"`
	SentimentWinRate map[string]*BucketStats `json:"psychology_correlation,omitempty"`
	LastUpdated      time.Time               `json:"last_updated"`
}

func summarize(trades []*Trade) *Summary {
	s := &Summary{
		TotalTrades: len(trades),
		LastUpdated: time.Now(),
	}

	closed := closedByExit(trades)
	s.ClosedTrades = len(closed)
	s.OpenTrades = len(trades) - len(closed)
	if len(closed) == 0 {
		return s
	}

	for _, t := range closed {
		s.TotalPnL += t.PnL
		if t.PnL > 0 {
			s.WinningTrades++
		} else if t.PnL < 0 {
			s.LosingTrades++
		}
	}
	s.WinRate = float64(s.WinningTrades) / float64(len(closed))
	s.AvgPnL = s.TotalPnL / float64(len(closed))
	// Count ratio with a divisor floor of 1 so it stays encodable
	s.WinLossRatio = float64(s.WinningTrades) / math.Max(float64(s.LosingTrades), 1)

	curve := EquityCurve(closed)
	s.MaxDrawdown, _ = drawdown(curve)
	if len(closed) > 5 {
		s.SharpeRatio = sharpe(dailyReturns(closed))
	}

	s.ByIndex = bucketBy(closed, func(t *Trade) string { return string(t.Index) })
	s.BySignal = bucketBy(closed, func(t *Trade) string { return string(t.Signal) })
	s.ByMonth = bucketBy(closed, func(t *Trade) string { return exitOrEntry(t).Format("2006-01") })
	return s
}

func computeStats(trades []*Trade) *Stats {
	st := &Stats{LastUpdated: time.Now()}

	closed := closedByExit(trades)
	if len(closed) == 0 {
		return st
	}

	streak, winStreak := 0, false
	for i, t := range closed {
		isWin := t.PnL > 0
		if i == 0 || isWin != winStreak {
			winStreak = isWin
			streak = 1
		} else {
			streak++
		}
		if winStreak && streak > st.MaxWinStreak {
			st.MaxWinStreak = streak
		}
		if !winStreak && streak > st.MaxLossStreak {
			st.MaxLossStreak = streak
		}
	}

	st.HourPerformance = map[string]*HourStats{}
	wins := map[string]int{}
	for _, t := range closed {
		hour := fmt.Sprintf("%d", t.EntryTime.Hour())
		h := st.HourPerformance[hour]
		if h == nil {
			h = &HourStats{}
			st.HourPerformance[hour] = h
		}
		h.Trades++
		h.PnL += t.PnL
		if t.PnL > 0 {
			wins[hour]++
		}
	}
	for hour, h := range st.HourPerformance {
		h.WinRate = float64(wins[hour]) / float64(h.Trades)
	}

	var holdMinutes float64
	var held int
	for _, t := range closed {
		if t.ExitTime != nil {
			holdMinutes += t.ExitTime.Sub(t.EntryTime).Minutes()
			held++
		}
	}
	if held > 0 {
		st.AvgHoldMinutes = holdMinutes / float64(held)
	}

	var withPsych []*Trade
	for _, t := range closed {
		if t.Psychology != nil {
			withPsych = append(withPsych, t)
		}
	}
	if len(withPsych) > 0 {
		st.SentimentWinRate = bucketBy(withPsych, func(t *Trade) string { return t.Psychology.Sentiment })
	}
	return st
}

func bucketBy(trades []*Trade, key func(*Trade) string) map[string]*BucketStats {
	out := map[string]*BucketStats{}
	for _, t := range trades {
		k := key(t)
		b := out[k]
		if b == nil {
			b = &BucketStats{}
			out[k] = b
		}
		b.Trades++
		b.TotalPnL += t.PnL
		if t.PnL > 0 {
			b.Wins++
		} else if t.PnL < 0 {
			b.Losses++
		}
	}
	for _, b := range out {
		b.WinRate = float64(b.Wins) / float64(b.Trades)
		b.AvgPnL = b.TotalPnL / float64(b.Trades)
	}
	return out
}

// EquityPoint is one step of the cumulative pnl curve
type EquityPoint struct {
	Time       time.Time `json:"time"`
	Cumulative float64   `json:"cumulative_pnl"`
}

// EquityCurve walks the closed trades in exit order accumulating pnl
func EquityCurve(closed []*Trade) []EquityPoint {
	curve := make([]EquityPoint, 0, len(closed))
	total := 0.0
	for _, t := range closed {
		total += t.PnL
		curve = append(curve, EquityPoint{Time: exitOrEntry(t), Cumulative: total})
	}
	return curve
}

// drawdown returns the max peak-to-trough fall and the longest
// underwater stretch measured in trades.
func drawdown(curve []EquityPoint) (maxDD float64, longestUnderwater int) {
	if len(curve) == 0 {
		return 0, 0
	}

	peak := curve[0].Cumulative
	underwater := 0
	for _, p := range curve {
		if p.Cumulative > peak {
			peak = p.Cumulative
		}
		dd := peak - p.Cumulative
		if dd > maxDD {
			maxDD = dd
		}
		if dd > 0 {
			underwater++
			if underwater > longestUnderwater {
				longestUnderwater = underwater
			}
		} else {
			underwater = 0
		}
	}
	return maxDD, longestUnderwater
}

// dailyReturns sums closed pnl per exit day, in exit order
func dailyReturns(closed []*Trade) []float64 {
	var returns []float64
	var currentDay time.Time
	dayPnL := 0.0

	for i, t := range closed {
		day := truncateDay(exitOrEntry(t))
		if i == 0 {
			currentDay = day
		} else if !day.Equal(currentDay) {
			returns = append(returns, dayPnL)
			currentDay = day
			dayPnL = 0
		}
		dayPnL += t.PnL
	}
	if len(closed) > 0 {
		returns = append(returns, dayPnL)
	}
	return returns
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	avg := mean(returns)
	sd := stddev(returns)
	if sd <= 0 {
		return 0
	}
	return avg / sd * math.Sqrt(252)
}

func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	dd := stddev(downside)
	if dd <= 0 {
		return 0
	}
	return mean(returns) / dd * math.Sqrt(252)
}

// Report is the full metrics breakdown produced by CalculateMetrics
type Report struct {
	Basic struct {
		TotalTrades     int     `json:"total_trades"`
		WinningTrades   int     `json:"winning_trades"`
		LosingTrades    int     `json:"losing_trades"`
		BreakevenTrades int     `json:"breakeven_trades"`
		WinRate         float64 `json:"win_rate"`
		ProfitFactor    float64 `json:"profit_factor"`
		TotalPnL        float64 `json:"total_pnl"`
		AvgPnL          float64 `json:"avg_pnl_per_trade"`
		AvgWin          float64 `json:"avg_win"`
		AvgLoss         float64 `json:"avg_loss"`
		WinLossRatio    float64 `json:"win_loss_ratio"`
	} `json:"basic_metrics"`
	Advanced struct {
		StdDeviation      float64 `json:"std_deviation"`
		MaxDrawdown       float64 `json:"max_drawdown"`
		RecoveryFactor    float64 `json:"recovery_factor"`
		LongestUnderwater int     `json:"longest_underwater_period"`
		AnnualizedReturn  float64 `json:"annualized_return"`
		SharpeRatio       float64 `json:"sharpe_ratio"`
		SortinoRatio      float64 `json:"sortino_ratio"`
	} `json:"advanced_metrics"`
	Consistency struct {
		WinRateConsistency float64 `json:"win_rate_consistency"`
		DailyWinRateMean   float64 `json:"daily_win_rate_mean"`
		DailyWinRateMedian float64 `json:"daily_win_rate_median"`
		DailyWinRateStd    float64 `json:"daily_win_rate_std"`
	} `json:"consistency_metrics"`
}

// MetricsFilter narrows a report to an index and/or an entry date range
type MetricsFilter struct {
	Index market.Index
	Start time.Time
	End   time.Time
}

// CalculateMetrics computes the full report over the closed trades that
// pass the filter. It errors when nothing matches.
func CalculateMetrics(trades []*Trade, filter MetricsFilter) (*Report, error) {
	selected := trades
	if filter.Index != "" {
		var out []*Trade
		for _, t := range selected {
			if t.Index == filter.Index {
				out = append(out, t)
			}
		}
		selected = out
	}
	if !filter.Start.IsZero() {
		end := filter.End
		if end.IsZero() {
			end = time.Now()
		}
		startDay := truncateDay(filter.Start)
		endDay := truncateDay(end).AddDate(0, 0, 1)
		var out []*Trade
		for _, t := range selected {
			day := truncateDay(t.EntryTime)
			if !day.Before(startDay) && day.Before(endDay) {
				out = append(out, t)
			}
		}
		selected = out
	}

	closed := closedByExit(selected)
	if len(closed) == 0 {
		return nil, fmt.Errorf("no closed trades found for the specified filters")
	}

	r := &Report{}
	pnls := make([]float64, len(closed))
	var winSum, lossSum float64
	for i, t := range closed {
		pnls[i] = t.PnL
		r.Basic.TotalPnL += t.PnL
		switch {
		case t.PnL > 0:
			r.Basic.WinningTrades++
			winSum += t.PnL
		case t.PnL < 0:
			r.Basic.LosingTrades++
			lossSum += t.PnL
		default:
			r.Basic.BreakevenTrades++
		}
	}

	r.Basic.TotalTrades = len(closed)
	r.Basic.WinRate = float64(r.Basic.WinningTrades) / float64(len(closed))
	r.Basic.AvgPnL = r.Basic.TotalPnL / float64(len(closed))
	if r.Basic.WinningTrades > 0 {
		r.Basic.AvgWin = winSum / float64(r.Basic.WinningTrades)
	}
	if r.Basic.LosingTrades > 0 {
		r.Basic.AvgLoss = lossSum / float64(r.Basic.LosingTrades)
		r.Basic.ProfitFactor = winSum / math.Abs(lossSum)
		r.Basic.WinLossRatio = r.Basic.AvgWin / math.Abs(r.Basic.AvgLoss)
	} else {
		// No losers: report the gross win sum so the value stays finite
		r.Basic.ProfitFactor = winSum
		r.Basic.WinLossRatio = r.Basic.AvgWin
	}

	if len(closed) > 1 {
		r.Advanced.StdDeviation = stddev(pnls)
		curve := EquityCurve(closed)
		r.Advanced.MaxDrawdown, r.Advanced.LongestUnderwater = drawdown(curve)
		if r.Advanced.MaxDrawdown > 0 {
			r.Advanced.RecoveryFactor = r.Basic.TotalPnL / r.Advanced.MaxDrawdown
		}

		first, last := exitOrEntry(closed[0]), exitOrEntry(closed[len(closed)-1])
		tradingDays := math.Max(1, float64(last.Sub(first).Hours()/24)*5/7)
		r.Advanced.AnnualizedReturn = r.Basic.TotalPnL / tradingDays * 252

		returns := dailyReturns(closed)
		r.Advanced.SharpeRatio = sharpe(returns)
		r.Advanced.SortinoRatio = sortino(returns)
	}

	if len(closed) > 5 {
		rates := dailyWinRates(closed)
		if len(rates) > 0 {
			r.Consistency.DailyWinRateMean = mean(rates)
			r.Consistency.DailyWinRateMedian = median(rates)
			r.Consistency.DailyWinRateStd = stddev(rates)
			r.Consistency.WinRateConsistency = 1 - r.Consistency.DailyWinRateStd
		}
	}
	return r, nil
}

func dailyWinRates(closed []*Trade) []float64 {
	type counts struct{ wins, losses int }
	byDay := map[time.Time]*counts{}
	var days []time.Time

	for _, t := range closed {
		day := truncateDay(exitOrEntry(t))
		c := byDay[day]
		if c == nil {
			c = &counts{}
			byDay[day] = c
			days = append(days, day)
		}
		if t.PnL > 0 {
			c.wins++
		} else if t.PnL < 0 {
			c.losses++
		}
	}

	var rates []float64
	for _, day := range days {
		c := byDay[day]
		if total := c.wins + c.losses; total > 0 {
			rates = append(rates, float64(c.wins)/float64(total))
		}
	}
	return rates
}

// PatternRank pairs a pattern with its effectiveness score
type PatternRank struct {
	Pattern string  `json:"pattern"`
	Score   float64 `json:"score"`
}

// PatternEffectiveness buckets closed trades by the patterns detected
// at entry and ranks patterns by win rate times average pnl.
func PatternEffectiveness(trades []*Trade) (map[string]*BucketStats, []PatternRank) {
	perPattern := map[string]*BucketStats{}
	record := func(name string, t *Trade) {
		b := perPattern[name]
		if b == nil {
			b = &BucketStats{}
			perPattern[name] = b
		}
		b.Trades++
		b.TotalPnL += t.PnL
		if t.PnL > 0 {
			b.Wins++
		} else if t.PnL < 0 {
			b.Losses++
		}
	}

	for _, t := range trades {
		if t.Status != StatusClosed {
			continue
		}
		if len(t.PatternsDetected) == 0 {
			record("No Pattern", t)
			continue
		}
		for _, p := range t.PatternsDetected {
			record(p, t)
		}
	}

	ranking := make([]PatternRank, 0, len(perPattern))
	for name, b := range perPattern {
		b.WinRate = float64(b.Wins) / float64(b.Trades)
		b.AvgPnL = b.TotalPnL / float64(b.Trades)
		ranking = append(ranking, PatternRank{Pattern: name, Score: b.WinRate * b.AvgPnL})
	}
	sort.SliceStable(ranking, func(i, k int) bool { return ranking[i].Score > ranking[k].Score })
	return perPattern, ranking
}

// fearGreedBand labels a score for the psychology correlation
func fearGreedBand(score int) string {
	switch {
	case score < 10:
		return "Extreme Fear (0-10)"
	case score < 30:
		return "Fear (10-30)"
	case score < 70:
		return "Neutral (30-70)"
	case score < 90:
		return "Greed (70-90)"
	default:
		return "Extreme Greed (90-100)"
	}
}

// PsychologyCorrelation groups closed trades by the sentiment and
// fear-greed band recorded at entry.
type PsychologyCorrelation struct {
	Trades     int                     `json:"total_psychological_trades"`
	Sentiment  map[string]*BucketStats `json:"sentiment_analysis,omitempty"`
	Contrarian map[string]*BucketStats `json:"contrarian_analysis,omitempty"`
	FearGreed  map[string]*BucketStats `json:"fear_greed_analysis,omitempty"`
}

// CorrelatePsychology analyzes how the entry mood related to outcomes
func CorrelatePsychology(trades []*Trade) *PsychologyCorrelation {
	var withPsych []*Trade
	for _, t := range trades {
		if t.Status == StatusClosed && t.Psychology != nil {
			withPsych = append(withPsych, t)
		}
	}

	out := &PsychologyCorrelation{Trades: len(withPsych)}
	if len(withPsych) == 0 {
		return out
	}

	out.Sentiment = bucketBy(withPsych, func(t *Trade) string { return t.Psychology.Sentiment })
	out.FearGreed = bucketBy(withPsych, func(t *Trade) string {
		return fearGreedBand(t.Psychology.FearGreedScore)
	})

	var withBias []*Trade
	for _, t := range withPsych {
		if t.Psychology.ContrarianBias != "" {
			withBias = append(withBias, t)
		}
	}
	if len(withBias) > 0 {
		out.Contrarian = bucketBy(withBias, func(t *Trade) string { return t.Psychology.ContrarianBias })
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// stddev is the population standard deviation
func stddev(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	avg := mean(v)
	sum := 0.0
	for _, x := range v {
		d := x - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(v)))
}
