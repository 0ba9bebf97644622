package tradelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"options-trading-engine/internal/market"
)

func openTrade(index market.Index, signal market.Signal, entry time.Time) *Trade {
	return &Trade{
		Index:      index,
		Signal:     signal,
		EntryTime:  entry,
		EntryPrice: 100,
		Quantity:   10,
		Strike:     22000,
		Expiry:     "30-Jan-2025",
	}
}

func TestLogAndCloseComputesPnL(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	entry := time.Date(2025, 1, 20, 10, 30, 0, 0, time.UTC)
	id, err := j.Log(openTrade(market.IndexNifty, market.SignalBuyCall, entry))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "TRADE_1_") {
		t.Errorf("first trade should be TRADE_1_<timestamp>, got %s", id)
	}

	trade, ok := j.Get(id)
	if !ok {
		t.Fatal("trade should be retrievable")
	}
	if trade.Status != StatusOpen {
		t.Errorf("new trade should default to OPEN, got %s", trade.Status)
	}

	exit := entry.Add(2 * time.Hour)
	if err := j.Close(id, 130, exit); err != nil {
		t.Fatal(err)
	}

	trade, _ = j.Get(id)
	if trade.Status != StatusClosed {
		t.Errorf("closed trade should flip to CLOSED, got %s", trade.Status)
	}
	// BUY CALL: (130-100) * 10
	if trade.PnL != 300 {
		t.Errorf("expected pnl 300, got %f", trade.PnL)
	}
}

func TestLogPutPnLSign(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	entry := time.Date(2025, 1, 20, 11, 0, 0, 0, time.UTC)
	exit := entry.Add(time.Hour)
	put := openTrade(market.IndexBankNifty, market.SignalBuyPut, entry)
	put.ExitTime = &exit
	put.ExitPrice = 80

	id, err := j.Log(put)
	if err != nil {
		t.Fatal(err)
	}

	trade, _ := j.Get(id)
	if trade.Status != StatusClosed {
		t.Error("trade logged with an exit should close immediately")
	}
	// BUY PUT: -(80-100) * 10
	if trade.PnL != 200 {
		t.Errorf("expected pnl 200, got %f", trade.PnL)
	}
}

func TestLogValidatesRequiredFields(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		field  string
		mutate func(*Trade)
	}{
		{"index", func(tr *Trade) { tr.Index = "" }},
		{"signal", func(tr *Trade) { tr.Signal = "" }},
		{"entry_time", func(tr *Trade) { tr.EntryTime = time.Time{} }},
		{"entry_price", func(tr *Trade) { tr.EntryPrice = 0 }},
		{"quantity", func(tr *Trade) { tr.Quantity = 0 }},
		{"strike", func(tr *Trade) { tr.Strike = 0 }},
		{"expiry", func(tr *Trade) { tr.Expiry = "" }},
	}
	for _, tc := range cases {
		tr := openTrade(market.IndexNifty, market.SignalBuyCall, time.Now())
		tc.mutate(tr)
		if _, err := j.Log(tr); err == nil || !strings.Contains(err.Error(), tc.field) {
			t.Errorf("missing %s should be rejected, got %v", tc.field, err)
		}
	}
}

func TestJournalPersistsAcrossReloads(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJournal(dir)
	if err != nil {
		t.Fatal(err)
	}

	entry := time.Date(2025, 1, 20, 9, 30, 0, 0, time.UTC)
	id, err := j.Log(openTrade(market.IndexNifty, market.SignalBuyCall, entry))
	if err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewJournal(dir)
	if err != nil {
		t.Fatal(err)
	}
	trade, ok := reloaded.Get(id)
	if !ok {
		t.Fatal("trade should survive a reload")
	}
	if trade.Index != market.IndexNifty || trade.EntryPrice != 100 {
		t.Errorf("reloaded trade lost fields: %+v", trade)
	}

	for _, name := range []string{"trades.json", "performance.json", "stats.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should exist: %v", name, err)
		}
	}
}

func TestJournalSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "trades.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	j, err := NewJournal(dir)
	if err != nil {
		t.Fatalf("malformed file should not block startup: %v", err)
	}
	if len(j.All()) != 0 {
		t.Error("malformed file should load as empty")
	}
}

func TestJournalQueries(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	jan20 := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)
	jan22 := time.Date(2025, 1, 22, 10, 0, 0, 0, time.UTC)
	jan25 := time.Date(2025, 1, 25, 10, 0, 0, 0, time.UTC)

	id1, _ := j.Log(openTrade(market.IndexNifty, market.SignalBuyCall, jan20))
	j.Log(openTrade(market.IndexBankNifty, market.SignalBuyPut, jan22))
	j.Log(openTrade(market.IndexNifty, market.SignalBuyCall, jan25))

	if err := j.Close(id1, 110, jan20.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if got := len(j.Open()); got != 2 {
		t.Errorf("expected 2 open trades, got %d", got)
	}
	if got := len(j.ByIndex(market.IndexNifty)); got != 2 {
		t.Errorf("expected 2 NIFTY trades, got %d", got)
	}
	if got := len(j.ByStatus(StatusClosed)); got != 1 {
		t.Errorf("expected 1 closed trade, got %d", got)
	}

	// End date is inclusive to the whole day
	ranged := j.ByDateRange(
		time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC),
	)
	if len(ranged) != 2 {
		t.Errorf("expected 2 trades in range, got %d", len(ranged))
	}

	before := j.ByDateRange(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC),
	)
	if len(before) != 0 {
		t.Errorf("expected no trades before the journal, got %d", len(before))
	}
}

func TestApplyWhitelistedFields(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	id, _ := j.Log(openTrade(market.IndexNifty, market.SignalBuyCall, time.Now()))

	stop, target, notes := 95.0, 115.0, "trailing stop moved"
	if err := j.Apply(id, Update{StopLoss: &stop, Target: &target, Notes: &notes}); err != nil {
		t.Fatal(err)
	}

	trade, _ := j.Get(id)
	if trade.StopLoss != 95 || trade.Target != 115 || trade.Notes != notes {
		t.Errorf("update not applied: %+v", trade)
	}
	if trade.Status != StatusOpen {
		t.Error("non-exit update should leave the trade open")
	}

	if err := j.Apply("TRADE_99_20250101000000", Update{Notes: &notes}); err == nil {
		t.Error("unknown trade ID should error")
	}
}

func TestSummaryBuckets(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	entry := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)
	id1, _ := j.Log(openTrade(market.IndexNifty, market.SignalBuyCall, entry))
	id2, _ := j.Log(openTrade(market.IndexNifty, market.SignalBuyPut, entry.Add(time.Hour)))
	j.Log(openTrade(market.IndexBankNifty, market.SignalBuyCall, entry.Add(2*time.Hour)))

	j.Close(id1, 120, entry.Add(3*time.Hour)) // +200
	j.Close(id2, 110, entry.Add(4*time.Hour)) // -100

	s := j.Performance()
	if s.TotalTrades != 3 || s.ClosedTrades != 2 || s.OpenTrades != 1 {
		t.Fatalf("trade counts wrong: %+v", s)
	}
	if s.WinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %f", s.WinRate)
	}
	if s.TotalPnL != 100 {
		t.Errorf("expected total pnl 100, got %f", s.TotalPnL)
	}

	nifty := s.ByIndex["NIFTY"]
	if nifty == nil || nifty.Trades != 2 || nifty.TotalPnL != 100 {
		t.Errorf("NIFTY bucket wrong: %+v", nifty)
	}
	calls := s.BySignal["BUY CALL"]
	if calls == nil || calls.Trades != 1 || calls.TotalPnL != 200 {
		t.Errorf("BUY CALL bucket wrong: %+v", calls)
	}
	month := s.ByMonth["2025-01"]
	if month == nil || month.Trades != 2 {
		t.Errorf("month bucket wrong: %+v", month)
	}
}

func TestStatsStreaksAndHours(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// Win, win, loss, win: max win streak 2, max loss streak 1
	outcomes := []float64{120, 130, 90, 115}
	base := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)
	for i, exitPrice := range outcomes {
		entry := base.Add(time.Duration(i) * 24 * time.Hour)
		id, _ := j.Log(openTrade(market.IndexNifty, market.SignalBuyCall, entry))
		j.Close(id, exitPrice, entry.Add(30*time.Minute))
	}

	st := j.Stats()
	if st.MaxWinStreak != 2 {
		t.Errorf("expected max win streak 2, got %d", st.MaxWinStreak)
	}
	if st.MaxLossStreak != 1 {
		t.Errorf("expected max loss streak 1, got %d", st.MaxLossStreak)
	}

	ten := st.HourPerformance["10"]
	if ten == nil || ten.Trades != 4 {
		t.Fatalf("all entries were at 10:00, got %+v", st.HourPerformance)
	}
	if ten.WinRate != 0.75 {
		t.Errorf("expected hour win rate 0.75, got %f", ten.WinRate)
	}
	if st.AvgHoldMinutes != 30 {
		t.Errorf("expected 30 minute average hold, got %f", st.AvgHoldMinutes)
	}
}
