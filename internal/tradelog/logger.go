// Package tradelog journals trades to disk (or Postgres) and computes
// performance metrics over the closed ones.
package tradelog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
)

// Status of a journaled trade
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)

// Psychology captures the market mood at entry for later correlation
type Psychology struct {
	FearGreedScore int    `json:"fear_greed_score"`
	Sentiment      string `json:"sentiment"`
	ContrarianBias string `json:"contrarian_bias,omitempty"`
}

// Trade is one journal entry
type Trade struct {
	ID               string        `json:"trade_id"`
	LogTime          time.Time     `json:"log_time"`
	Index            market.Index  `json:"index"`
	Signal           market.Signal `json:"signal"`
	EntryTime        time.Time     `json:"entry_time"`
	EntryPrice       float64       `json:"entry_price"`
	ExitTime         *time.Time    `json:"exit_time,omitempty"`
	ExitPrice        float64       `json:"exit_price,omitempty"`
	Quantity         int           `json:"quantity"`
	Strike           float64       `json:"strike"`
	Expiry           string        `json:"expiry"`
	Status           Status        `json:"status"`
	PnL              float64       `json:"pnl"`
	StopLoss         float64       `json:"stop_loss,omitempty"`
	Target           float64       `json:"target,omitempty"`
	Confidence       float64       `json:"confidence,omitempty"`
	PatternsDetected []string      `json:"patterns_detected,omitempty"`
	Psychology       *Psychology   `json:"psychology,omitempty"`
	Notes            string        `json:"notes,omitempty"`
}

// Update carries the fields a caller may change on an existing trade.
// Nil pointers leave the field untouched.
type Update struct {
	ExitTime  *time.Time
	ExitPrice *float64
	PnL       *float64
	Status    *Status
	StopLoss  *float64
	Target    *float64
	Notes     *string
}

// direction maps the option signal to the sign of the underlying move
// that profits the position.
func direction(s market.Signal) float64 {
	switch s {
	case market.SignalBuyCall:
		return 1
	case market.SignalBuyPut:
		return -1
	default:
		return 0
	}
}

// Journal is the file-backed trade log. All mutations rewrite
// trades.json and refresh performance.json and stats.json.
type Journal struct {
	dir    string
	logger *logging.Logger

	mu          sync.Mutex
	trades      []*Trade
	performance *Summary
	stats       *Stats
}

// NewJournal opens (or creates) a journal directory and loads any
// existing trades. A malformed trades file is skipped with a warning
// rather than blocking startup.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	j := &Journal{
		dir:    dir,
		logger: logging.WithComponent("tradelog"),
	}

	data, err := os.ReadFile(j.tradesPath())
	if err == nil {
		if err := json.Unmarshal(data, &j.trades); err != nil {
			j.logger.Warn("Trades file is malformed, starting empty",
				"path", j.tradesPath(), "error", err.Error())
			j.trades = nil
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading trades file: %w", err)
	}

	j.refreshLocked()
	return j, nil
}

func (j *Journal) tradesPath() string      { return filepath.Join(j.dir, "trades.json") }
func (j *Journal) performancePath() string { return filepath.Join(j.dir, "performance.json") }
func (j *Journal) statsPath() string       { return filepath.Join(j.dir, "stats.json") }

// Log records a new trade and returns its ID. A trade arriving with an
// exit already set is closed and its pnl computed immediately.
func (j *Journal) Log(t *Trade) (string, error) {
	if err := validate(t); err != nil {
		return "", err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	t.ID = fmt.Sprintf("TRADE_%d_%s", len(j.trades)+1, time.Now().Format("20060102150405"))
	t.LogTime = time.Now()
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.ExitTime != nil && t.ExitPrice > 0 {
		t.PnL = direction(t.Signal) * (t.ExitPrice - t.EntryPrice) * float64(t.Quantity)
		t.Status = StatusClosed
	}

	j.trades = append(j.trades, t)
	j.refreshLocked()
	if err := j.saveLocked(); err != nil {
		return "", err
	}

	j.logger.Info("Trade logged",
		"trade_id", t.ID,
		"index", string(t.Index),
		"signal", string(t.Signal),
		"status", string(t.Status))
	return t.ID, nil
}

func validate(t *Trade) error {
	switch {
	case t.Index == "":
		return fmt.Errorf("required field missing in trade data: index")
	case t.Signal == "":
		return fmt.Errorf("required field missing in trade data: signal")
	case t.EntryTime.IsZero():
		return fmt.Errorf("required field missing in trade data: entry_time")
	case t.EntryPrice <= 0:
		return fmt.Errorf("required field missing in trade data: entry_price")
	case t.Quantity <= 0:
		return fmt.Errorf("required field missing in trade data: quantity")
	case t.Strike <= 0:
		return fmt.Errorf("required field missing in trade data: strike")
	case t.Expiry == "":
		return fmt.Errorf("required field missing in trade data: expiry")
	}
	return nil
}

// Apply updates an existing trade. Setting both exit price and time on
// an open trade closes it and computes pnl unless one was supplied.
func (j *Journal) Apply(id string, u Update) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	t := j.findLocked(id)
	if t == nil {
		return fmt.Errorf("trade not found: %s", id)
	}

	if u.ExitTime != nil {
		t.ExitTime = u.ExitTime
	}
	if u.ExitPrice != nil {
		t.ExitPrice = *u.ExitPrice
	}
	if u.StopLoss != nil {
		t.StopLoss = *u.StopLoss
	}
	if u.Target != nil {
		t.Target = *u.Target
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.Status != nil {
		t.Status = *u.Status
	}

	if u.ExitTime != nil && u.ExitPrice != nil && t.Status != StatusCancelled {
		t.Status = StatusClosed
		if u.PnL != nil {
			t.PnL = *u.PnL
		} else {
			t.PnL = direction(t.Signal) * (t.ExitPrice - t.EntryPrice) * float64(t.Quantity)
		}
	} else if u.PnL != nil {
		t.PnL = *u.PnL
	}

	j.refreshLocked()
	if err := j.saveLocked(); err != nil {
		return err
	}

	j.logger.Info("Trade updated", "trade_id", id, "status", string(t.Status), "pnl", t.PnL)
	return nil
}

// Close is shorthand for closing a trade at a price and time
func (j *Journal) Close(id string, exitPrice float64, exitTime time.Time) error {
	return j.Apply(id, Update{ExitTime: &exitTime, ExitPrice: &exitPrice})
}

func (j *Journal) findLocked(id string) *Trade {
	for _, t := range j.trades {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Get returns a trade by ID
func (j *Journal) Get(id string) (*Trade, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	t := j.findLocked(id)
	return t, t != nil
}

// All returns a copy of every journaled trade
func (j *Journal) All() []*Trade {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Trade, len(j.trades))
	copy(out, j.trades)
	return out
}

// Open returns the trades still open
func (j *Journal) Open() []*Trade {
	return j.filter(func(t *Trade) bool { return t.Status == StatusOpen })
}

// ByIndex returns all trades for one index
func (j *Journal) ByIndex(index market.Index) []*Trade {
	return j.filter(func(t *Trade) bool { return t.Index == index })
}

// ByStatus returns all trades in one status
func (j *Journal) ByStatus(status Status) []*Trade {
	return j.filter(func(t *Trade) bool { return t.Status == status })
}

// ByDateRange returns trades entered between start and end, start
// inclusive and end inclusive to the whole day. A zero end means today.
func (j *Journal) ByDateRange(start, end time.Time) []*Trade {
	if end.IsZero() {
		end = time.Now()
	}
	startDay := truncateDay(start)
	endDay := truncateDay(end).AddDate(0, 0, 1)

	return j.filter(func(t *Trade) bool {
		day := truncateDay(t.EntryTime)
		return !day.Before(startDay) && day.Before(endDay)
	})
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (j *Journal) filter(keep func(*Trade) bool) []*Trade {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*Trade
	for _, t := range j.trades {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// Performance returns the journal-level summary
func (j *Journal) Performance() *Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.performance
}

// Stats returns the streak and time-of-day statistics
func (j *Journal) Stats() *Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

func (j *Journal) refreshLocked() {
	j.performance = summarize(j.trades)
	j.stats = computeStats(j.trades)
}

func (j *Journal) saveLocked() error {
	if err := writeJSON(j.tradesPath(), j.trades); err != nil {
		return err
	}
	if err := writeJSON(j.performancePath(), j.performance); err != nil {
		return err
	}
	return writeJSON(j.statsPath(), j.stats)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// closedByExit returns the closed trades sorted by exit time, falling
// back to entry time when a close never recorded one.
func closedByExit(trades []*Trade) []*Trade {
	var closed []*Trade
	for _, t := range trades {
		if t.Status == StatusClosed {
			closed = append(closed, t)
		}
	}
	sort.SliceStable(closed, func(i, k int) bool {
		return exitOrEntry(closed[i]).Before(exitOrEntry(closed[k]))
	})
	return closed
}

func exitOrEntry(t *Trade) time.Time {
	if t.ExitTime != nil {
		return *t.ExitTime
	}
	return t.EntryTime
}
