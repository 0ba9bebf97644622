// Command analyze_trades prints a performance breakdown of the trade
// journal: headline metrics, per-bucket stats, pattern effectiveness and
// psychology correlation.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"options-trading-engine/internal/market"
	"options-trading-engine/internal/tradelog"
)

const dateLayout = "2006-01-02"

func main() {
	godotenv.Load()

	dir := flag.String("dir", envOrDefault("JOURNAL_DIR", "trade_logs"), "trade journal directory")
	index := flag.String("index", "", "filter by index (NIFTY, BANKNIFTY, ...)")
	from := flag.String("from", "", "start date (YYYY-MM-DD)")
	to := flag.String("to", "", "end date (YYYY-MM-DD)")
	flag.Parse()

	journal, err := tradelog.NewJournal(*dir)
	if err != nil {
		fmt.Printf("❌ Failed to open journal at %s: %v\n", *dir, err)
		os.Exit(1)
	}

	var filter tradelog.MetricsFilter
	if *index != "" {
		filter.Index = market.ParseIndex(*index)
	}
	if *from != "" {
		start, err := time.Parse(dateLayout, *from)
		if err != nil {
			fmt.Printf("❌ Invalid -from date %q, expected YYYY-MM-DD\n", *from)
			os.Exit(1)
		}
		filter.Start = start
	}
	if *to != "" {
		end, err := time.Parse(dateLayout, *to)
		if err != nil {
			fmt.Printf("❌ Invalid -to date %q, expected YYYY-MM-DD\n", *to)
			os.Exit(1)
		}
		filter.End = end
	}

	trades := journal.All()
	fmt.Println("================================================================================")
	fmt.Println("📊 OPTIONS TRADE JOURNAL ANALYSIS")
	fmt.Println("================================================================================")
	fmt.Printf("Journal: %s (%d trades)\n", *dir, len(trades))

	report, err := tradelog.CalculateMetrics(trades, filter)
	if err != nil {
		fmt.Printf("\n❌ %v\n", err)
		os.Exit(1)
	}

	b := report.Basic
	fmt.Println("\n📈 HEADLINE METRICS")
	fmt.Printf("   Trades:        %d closed (%d wins / %d losses)\n", b.TotalTrades, b.WinningTrades, b.LosingTrades)
	fmt.Printf("   Win rate:      %.1f%%\n", b.WinRate*100)
	fmt.Printf("   Total PnL:     %+.2f\n", b.TotalPnL)
	fmt.Printf("   Profit factor: %.2f\n", b.ProfitFactor)
	fmt.Printf("   Avg win/loss:  %+.2f / %+.2f\n", b.AvgWin, b.AvgLoss)

	if a := report.Advanced; a.MaxDrawdown > 0 || a.SharpeRatio != 0 {
		fmt.Println("\n📉 RISK METRICS")
		fmt.Printf("   Max drawdown:    %.2f\n", a.MaxDrawdown)
		fmt.Printf("   Recovery factor: %.2f\n", a.RecoveryFactor)
		fmt.Printf("   Sharpe ratio:    %.2f\n", a.SharpeRatio)
		fmt.Printf("   Sortino ratio:   %.2f\n", a.SortinoRatio)
	}

	summary := journal.Performance()
	printBuckets("🗂  BY INDEX", summary.ByIndex)
	printBuckets("🎯 BY SIGNAL", summary.BySignal)
	printBuckets("📅 BY MONTH", summary.ByMonth)

	perPattern, ranking := tradelog.PatternEffectiveness(trades)
	if len(ranking) > 0 {
		fmt.Println("\n🕯  PATTERN EFFECTIVENESS")
		for i, r := range ranking {
			stats := perPattern[r.Pattern]
			fmt.Printf("   %d. %-22s score %+.2f (win rate %.0f%%, avg pnl %+.2f)\n",
				i+1, r.Pattern, r.Score, stats.WinRate*100, stats.AvgPnL)
		}
	}

	psych := tradelog.CorrelatePsychology(trades)
	if psych != nil && len(psych.Sentiment) > 0 {
		fmt.Println("\n🧠 PSYCHOLOGY CORRELATION")
		for _, sentiment := range sortedKeys(psych.Sentiment) {
			s := psych.Sentiment[sentiment]
			fmt.Printf("   %-16s %3d trades, win rate %.0f%%, total pnl %+.2f\n",
				sentiment, s.Trades, s.WinRate*100, s.TotalPnL)
		}
	}

	fmt.Println("\n================================================================================")
}

func printBuckets(title string, buckets map[string]*tradelog.BucketStats) {
	if len(buckets) == 0 {
		return
	}
	fmt.Println("\n" + title)
	for _, key := range sortedKeys(buckets) {
		s := buckets[key]
		fmt.Printf("   %-12s %3d trades, win rate %.0f%%, total pnl %+.2f\n",
			key, s.Trades, s.WinRate*100, s.TotalPnL)
	}
}

func sortedKeys(m map[string]*tradelog.BucketStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
