package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"options-trading-engine/internal/market"
)

func chainServer(t *testing.T, homeVisits *int) *httptest.Server {
	t.Helper()

	payload := nsePayload{
		Records: nseRecords{
			UnderlyingValue: 22000,
			ExpiryDates:     []string{"30-Jan-2025", "06-Feb-2025"},
		},
		Filtered: nseRecords{
			Data: []nseRow{
				{
					StrikePrice: 22100, ExpiryDate: "30-Jan-2025",
					CE: &nseLeg{OpenInterest: 130000, ImpliedVolatility: 13, LastPrice: 80},
					PE: &nseLeg{OpenInterest: 100000, ImpliedVolatility: 15, LastPrice: 140},
				},
				{
					StrikePrice: 22000, ExpiryDate: "30-Jan-2025",
					CE: &nseLeg{OpenInterest: 100000, ImpliedVolatility: 12, LastPrice: 120},
					PE: &nseLeg{OpenInterest: 120000, ImpliedVolatility: 14, LastPrice: 110},
				},
				{
					StrikePrice: 22000, ExpiryDate: "06-Feb-2025",
					CE: &nseLeg{OpenInterest: 40000},
					PE: &nseLeg{OpenInterest: 50000},
				},
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		*homeVisits++
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session"})
	})
	mux.HandleFunc("/api/option-chain-indices", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "" {
			http.Error(w, "missing symbol", http.StatusBadRequest)
			return
		}
		if r.Header.Get("User-Agent") != userAgent {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	})

	return httptest.NewServer(mux)
}

func testFetcher(srv *httptest.Server) *Fetcher {
	f := NewFetcher()
	f.homeURL = srv.URL + "/"
	f.chainURL = srv.URL + "/api/option-chain-indices"
	f.limiter = rate.NewLimiter(rate.Inf, 1)
	f.retryInterval = time.Millisecond
	return f
}

func TestFetcherFetch(t *testing.T) {
	homeVisits := 0
	srv := chainServer(t, &homeVisits)
	defer srv.Close()

	f := testFetcher(srv)
	snapshot, err := f.Fetch(context.Background(), market.IndexNifty, "")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if homeVisits != 1 {
		t.Errorf("homepage should be visited once to prime cookies, got %d", homeVisits)
	}
	if snapshot.UnderlyingValue != 22000 {
		t.Errorf("expected spot 22000, got %f", snapshot.UnderlyingValue)
	}
	if snapshot.Expiry != "30-Jan-2025" {
		t.Errorf("should select the nearest expiry, got %s", snapshot.Expiry)
	}
	if len(snapshot.Rows) != 2 {
		t.Fatalf("expected 2 rows for the selected expiry, got %d", len(snapshot.Rows))
	}
	if snapshot.Rows[0].Strike != 22000 {
		t.Errorf("rows should be sorted by strike, got %f first", snapshot.Rows[0].Strike)
	}
	if !snapshot.Fresh() {
		t.Error("a just-fetched snapshot should be fresh")
	}
}

func TestFetcherSelectsRequestedExpiry(t *testing.T) {
	homeVisits := 0
	srv := chainServer(t, &homeVisits)
	defer srv.Close()

	f := testFetcher(srv)
	snapshot, err := f.Fetch(context.Background(), market.IndexNifty, "06-Feb-2025")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if snapshot.Expiry != "06-Feb-2025" || len(snapshot.Rows) != 1 {
		t.Errorf("expected the requested expiry only, got %s with %d rows",
			snapshot.Expiry, len(snapshot.Rows))
	}
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/option-chain-indices" {
			return
		}
		attempts++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := testFetcher(srv)
	if _, err := f.Fetch(context.Background(), market.IndexNifty, ""); err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if attempts != 4 {
		t.Errorf("expected initial attempt plus 3 retries, got %d", attempts)
	}
}

func TestBuildSnapshotFallsBackToRecords(t *testing.T) {
	payload := &nsePayload{
		Records: nseRecords{
			UnderlyingValue: 48000,
			Data: []nseRow{
				{StrikePrice: 48000, ExpiryDate: "30-Jan-2025", CE: &nseLeg{OpenInterest: 1000}},
			},
		},
	}

	s := buildSnapshot(payload, market.IndexBankNifty, "")
	if len(s.Rows) != 1 {
		t.Fatalf("records data should be used when filtered is empty, got %d rows", len(s.Rows))
	}
	if s.Rows[0].PE.OI != 0 {
		t.Error("missing PE leg should decode to a zero leg")
	}
}
