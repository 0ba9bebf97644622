package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
)

const (
	nseHomeURL  = "https://www.nseindia.com"
	nseChainURL = "https://www.nseindia.com/api/option-chain-indices"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Fetcher pulls option chain snapshots from NSE. The site rejects bare API
// clients, so the fetcher presents browser headers and visits the homepage
// first to collect session cookies.
type Fetcher struct {
	client        *http.Client
	limiter       *rate.Limiter
	logger        *logging.Logger
	homeURL       string
	chainURL      string
	retryInterval time.Duration

	mu     sync.Mutex
	primed bool
}

// NewFetcher creates a fetcher with a cookie jar and a 1 req/s throttle
func NewFetcher() *Fetcher {
	jar, _ := cookiejar.New(nil)
	return &Fetcher{
		client: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
		limiter:       rate.NewLimiter(rate.Every(time.Second), 1),
		logger:        logging.WithComponent("chain.fetcher"),
		homeURL:       nseHomeURL,
		chainURL:      nseChainURL,
		retryInterval: 2 * time.Second,
	}
}

// SetBaseURL points the fetcher at an alternate NSE host
func (f *Fetcher) SetBaseURL(base string) {
	f.homeURL = base
	f.chainURL = base + "/api/option-chain-indices"
}

// prime visits the NSE homepage to establish session cookies
func (f *Fetcher) prime(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primed {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.homeURL, nil)
	if err != nil {
		return err
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("priming session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	f.primed = true
	return nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.nseindia.com/option-chain")
}

// Fetch retrieves and parses the option chain for the index. An empty expiry
// selects the nearest available one. Retries up to three times with backoff.
func (f *Fetcher) Fetch(ctx context.Context, index market.Index, expiry string) (*Snapshot, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if err := f.prime(ctx); err != nil {
		f.logger.Warn("Session priming failed", "error", err)
	}

	var payload nsePayload

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.chainURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		q := req.URL.Query()
		q.Set("symbol", string(index))
		req.URL.RawQuery = q.Encode()
		f.setHeaders(req)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// Cookies expire server-side; re-prime before the next attempt
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				f.mu.Lock()
				f.primed = false
				f.mu.Unlock()
			}
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("nse returned status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decoding chain payload: %w", err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.retryInterval

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx)); err != nil {
		return nil, fmt.Errorf("fetching option chain for %s: %w", index, err)
	}

	snapshot := buildSnapshot(&payload, index, expiry)
	if len(snapshot.Rows) == 0 {
		return nil, fmt.Errorf("option chain for %s has no rows for expiry %q", index, snapshot.Expiry)
	}

	f.logger.Debug("Option chain fetched",
		"index", string(index),
		"expiry", snapshot.Expiry,
		"rows", len(snapshot.Rows),
		"spot", snapshot.UnderlyingValue)

	return snapshot, nil
}

// buildSnapshot converts the raw NSE payload into a Snapshot filtered to the
// selected expiry, preferring the filtered record set when present.
func buildSnapshot(payload *nsePayload, index market.Index, expiry string) *Snapshot {
	rows := payload.Filtered.Data
	if len(rows) == 0 {
		rows = payload.Records.Data
	}

	expirySet := make(map[string]struct{})
	for _, r := range rows {
		if r.ExpiryDate != "" {
			expirySet[r.ExpiryDate] = struct{}{}
		}
	}
	expiries := make([]string, 0, len(expirySet))
	for e := range expirySet {
		expiries = append(expiries, e)
	}
	sort.Slice(expiries, func(i, j int) bool {
		return expiryBefore(expiries[i], expiries[j])
	})

	selected := expiry
	if selected == "" && len(expiries) > 0 {
		selected = expiries[0]
	}

	snapshot := &Snapshot{
		Index:           index,
		FetchedAt:       time.Now(),
		UnderlyingValue: payload.Records.UnderlyingValue,
		Expiry:          selected,
		ExpiryDates:     expiries,
	}

	for _, r := range rows {
		if r.StrikePrice == 0 {
			continue
		}
		if selected != "" && r.ExpiryDate != selected {
			continue
		}
		snapshot.Rows = append(snapshot.Rows, StrikeRow{
			Strike: r.StrikePrice,
			Expiry: r.ExpiryDate,
			CE:     r.CE.toLeg(),
			PE:     r.PE.toLeg(),
		})
	}

	sort.Slice(snapshot.Rows, func(i, j int) bool {
		return snapshot.Rows[i].Strike < snapshot.Rows[j].Strike
	})

	return snapshot
}

// expiryBefore orders NSE expiry strings ("02-Jan-2025") chronologically,
// falling back to lexical order for anything unparseable.
func expiryBefore(a, b string) bool {
	ta, errA := time.Parse("02-Jan-2006", a)
	tb, errB := time.Parse("02-Jan-2006", b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}
