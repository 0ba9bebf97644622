// Package orchestrator runs the periodic analysis pipeline: option chain
// and candles in, fused trading decision out, with optional order dispatch
// and trade journaling.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"options-trading-engine/internal/chain"
	"options-trading-engine/internal/dispatch"
	"options-trading-engine/internal/events"
	"options-trading-engine/internal/fusion"
	"options-trading-engine/internal/indicators"
	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
	"options-trading-engine/internal/ml"
	"options-trading-engine/internal/patterns"
	"options-trading-engine/internal/psychology"
	"options-trading-engine/internal/strategy"
	"options-trading-engine/internal/tradelog"
)

const maxCandleHistory = 200

// ChainSource provides option chain snapshots
type ChainSource interface {
	Fetch(ctx context.Context, index market.Index, expiry string) (*chain.Snapshot, error)
}

// CandleSource provides intraday candles. When nil the engine synthesizes
// a candle series from the chain underlying value, one bar per cycle.
type CandleSource interface {
	Candles(ctx context.Context, index market.Index, timeframe string) ([]market.Candle, error)
}

// Dispatcher places orders for executable decisions
type Dispatcher interface {
	ExecuteSignal(ctx context.Context, index market.Index, signal market.Signal,
		confidence, entry, stopLoss, target float64, lots int) (*dispatch.Execution, error)
}

// Config holds the engine loop settings
type Config struct {
	Indices       []market.Index
	RiskProfile   market.RiskProfile
	Interval      time.Duration
	Timeframe     string
	Balance       float64
	RiskPerTrade  float64
	IgnoreSession bool
	ReportDir     string
}

// Deps are the engine's collaborators. Candles, Cache and Dispatcher are
// optional.
type Deps struct {
	Chains     ChainSource
	Candles    CandleSource
	Cache      *chain.Cache
	Predictor  *ml.Predictor
	Journal    *tradelog.Journal
	Dispatcher Dispatcher
	Bus        *events.Bus
}

// Result is the cycle outcome a report reader cares about
type Result struct {
	Signal     market.Signal `json:"signal,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Report is the full output of one analysis cycle for one index
type Report struct {
	ID          string                     `json:"id"`
	Index       market.Index               `json:"index"`
	Timeframe   string                     `json:"timeframe"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Result      Result                     `json:"result"`
	Chain       *chain.Analysis            `json:"chain,omitempty"`
	Psychology  *psychology.Report         `json:"psychology,omitempty"`
	Indicators  *indicators.SignalSummary  `json:"indicators,omitempty"`
	Patterns    *patterns.Analysis         `json:"patterns,omitempty"`
	Prediction  *ml.Prediction             `json:"prediction,omitempty"`
	Signals     *strategy.SignalSet        `json:"signals,omitempty"`
	Strategies  *strategy.Recommendation   `json:"strategies,omitempty"`
	Decision    *fusion.Decision           `json:"decision,omitempty"`
	Execution   *dispatch.Execution        `json:"execution,omitempty"`
}

// Engine drives the per-index analysis cycles
type Engine struct {
	cfg        Config
	chains     ChainSource
	candles    CandleSource
	cache      *chain.Cache
	predictor  *ml.Predictor
	journal    *tradelog.Journal
	dispatcher Dispatcher
	bus        *events.Bus
	fuser      *fusion.Engine
	generator  *strategy.Generator
	logger     *logging.Logger

	mu      sync.RWMutex
	history map[market.Index][]market.Candle
	reports map[market.Index]*Report
}

// New creates an engine. A zero interval defaults to five minutes.
func New(cfg Config, deps Deps) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "5m"
	}
	if cfg.RiskProfile == "" {
		cfg.RiskProfile = market.RiskModerate
	}
	return &Engine{
		cfg:        cfg,
		chains:     deps.Chains,
		candles:    deps.Candles,
		cache:      deps.Cache,
		predictor:  deps.Predictor,
		journal:    deps.Journal,
		dispatcher: deps.Dispatcher,
		bus:        deps.Bus,
		fuser:      fusion.NewEngine(),
		generator:  strategy.NewGenerator(),
		logger:     logging.WithComponent("orchestrator"),
		history:    make(map[market.Index][]market.Candle),
		reports:    make(map[market.Index]*Report),
	}
}

// Run executes cycles on the configured interval until the context is
// cancelled. Session open/close jobs run on an IST cron schedule.
func (e *Engine) Run(ctx context.Context) error {
	e.bus.Publish(events.Event{Type: events.EventEngineStarted, Data: map[string]any{
		"indices":      indexNames(e.cfg.Indices),
		"risk_profile": string(e.cfg.RiskProfile),
		"interval":     e.cfg.Interval.String(),
	}})
	defer e.bus.Publish(events.Event{Type: events.EventEngineStopped, Data: map[string]any{}})

	scheduler := cron.New(cron.WithLocation(market.ISTLocation))
	scheduler.AddFunc("15 9 * * MON-FRI", func() {
		e.logger.Info("Market session open")
		e.bus.Publish(events.Event{Type: events.EventSessionOpen, Data: map[string]any{}})
	})
	scheduler.AddFunc("30 15 * * MON-FRI", func() {
		e.logger.Info("Market session close")
		e.markOpenPositions(ctx)
		e.bus.Publish(events.Event{Type: events.EventSessionClose, Data: map[string]any{}})
	})
	scheduler.Start()
	defer scheduler.Stop()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine shutting down")
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one analysis cycle for every configured index in parallel.
// Outside NSE session hours the tick is skipped unless overridden.
func (e *Engine) Tick(ctx context.Context) {
	if !e.cfg.IgnoreSession && !market.InSessionHours(time.Now()) {
		e.logger.Debug("Outside session hours, skipping cycle")
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, index := range e.cfg.Indices {
		index := index
		g.Go(func() error {
			report := e.runCycle(ctx, index)
			e.mu.Lock()
			e.reports[index] = report
			e.mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

func (e *Engine) runCycle(ctx context.Context, index market.Index) *Report {
	report := &Report{
		ID:          uuid.New().String(),
		Index:       index,
		Timeframe:   e.cfg.Timeframe,
		GeneratedAt: time.Now(),
	}

	// Cycle-scoped logger: every line of this cycle carries the report ID
	logger := e.logger.WithTraceID(report.ID)
	ctx = logging.WithLogger(ctx, logger)

	snapshot, err := e.chains.Fetch(ctx, index, "")
	if err != nil {
		logger.Error("Option chain fetch failed", "index", string(index), "error", err)
		e.bus.PublishError("orchestrator", "option chain fetch failed", err)
		report.Result.Error = fmt.Sprintf("option chain fetch failed: %v", err)
		e.writeReport(report)
		return report
	}

	if e.cache != nil {
		e.cache.Put(ctx, snapshot)
	}

	analysis := chain.Analyze(snapshot)
	report.Chain = analysis
	e.bus.PublishChainUpdate(string(index), analysis.UnderlyingValue, analysis.PCR)

	candles := e.candleSeries(ctx, index, snapshot)

	summary := indicators.AnalyzeSignals(candles)
	report.Indicators = summary
	e.bus.PublishSignal(string(index), "indicators", string(summary.Signal), summary.Confidence)

	pat := patterns.Analyze(index, e.cfg.Timeframe, candles)
	report.Patterns = pat
	e.bus.PublishSignal(string(index), "patterns", string(pat.Signal), pat.Confidence)

	pred := e.predictor.Predict(index, e.cfg.Timeframe, candles)
	report.Prediction = pred
	e.bus.PublishSignal(string(index), "ml", string(pred.Signal), pred.Confidence)

	report.Psychology = psychology.Analyze(analysis)
	report.Signals = e.generator.Generate(analysis)
	report.Strategies = strategy.Recommend(snapshot, analysis, "")

	var patternSrc *fusion.SourceSignal
	if len(pat.PatternsDetected) > 0 {
		patternSrc = &fusion.SourceSignal{Signal: pat.Signal, Confidence: pat.Confidence}
	}
	decision := e.fuser.Fuse(
		fusion.SourceSignal{Signal: pred.MLSignal, Confidence: pred.MLConfidence},
		fusion.SourceSignal{Signal: summary.Signal, Confidence: summary.Confidence},
		patternSrc,
		e.cfg.RiskProfile,
	)
	report.Decision = decision
	report.Result = Result{
		Signal:     decision.Signal,
		Confidence: decision.Confidence,
		Reason:     decision.Reasoning,
	}
	e.bus.PublishDecision(string(index), string(decision.Signal), decision.Confidence, decision.Action)

	if decision.Action == "EXECUTE TRADE" || decision.Action == "SUGGEST TRADE" {
		report.Execution = e.execute(ctx, index, decision, candles)
	}

	e.writeReport(report)
	return report
}

func (e *Engine) execute(ctx context.Context, index market.Index, decision *fusion.Decision, candles []market.Candle) *dispatch.Execution {
	logger := logging.FromContext(ctx)
	levels := indicators.CalculateTradeLevels(candles, decision.Signal)

	factors := fusion.TechnicalFactors{
		ATRPercent: atrPercent(candles),
		ADX:        indicators.CalculateADX(candles, 14).ADX,
	}
	if stop := math.Abs(levels.Entry - levels.StopLoss); stop > 0 {
		factors.RiskReward = math.Abs(levels.Target-levels.Entry) / stop
	}

	if !fusion.ShouldTakeTrade(decision.Signal, decision.Confidence, factors, e.cfg.RiskProfile) {
		logger.Info("Decision rejected by trade filters",
			"index", string(index),
			"signal", string(decision.Signal),
			"risk_reward", factors.RiskReward,
			"adx", factors.ADX,
		)
		return &dispatch.Execution{Executed: false, Reason: "rejected by trade filters"}
	}

	lots := fusion.LotSize(e.cfg.Balance, e.cfg.RiskPerTrade, levels.Entry, levels.StopLoss, index)

	if decision.Action == "EXECUTE TRADE" && e.dispatcher != nil {
		exec, err := e.dispatcher.ExecuteSignal(ctx, index, decision.Signal, decision.Confidence,
			levels.Entry, levels.StopLoss, levels.Target, lots)
		if err != nil {
			logger.Error("Order dispatch failed", "index", string(index), "error", err)
			e.bus.PublishError("dispatch", "order dispatch failed", err)
			return &dispatch.Execution{Executed: false, Reason: err.Error()}
		}
		if exec.Executed {
			e.bus.PublishTradeOpened(exec.TradeID, string(index), string(decision.Signal),
				levels.Entry, exec.Lots*index.LotSize())
		}
		return exec
	}

	// SUGGEST decisions (and EXECUTE without a dispatcher) still leave a
	// journal entry so the suggestion can be reviewed and tracked.
	return e.journalSuggestion(ctx, index, decision, levels, lots)
}

func (e *Engine) journalSuggestion(ctx context.Context, index market.Index, decision *fusion.Decision,
	levels *indicators.TradeLevels, lots int) *dispatch.Execution {

	if e.journal == nil {
		return &dispatch.Execution{Executed: false, Reason: "suggestion only, no journal configured"}
	}

	step := index.StrikeStep()
	strike := math.Round(levels.Entry/step)*step + step
	if decision.Signal == market.SignalBuyPut {
		strike = math.Round(levels.Entry/step)*step - step
	}

	id, err := e.journal.Log(&tradelog.Trade{
		Index:      index,
		Signal:     decision.Signal,
		EntryTime:  time.Now(),
		EntryPrice: levels.Entry,
		Quantity:   lots * index.LotSize(),
		Strike:     strike,
		Expiry:     market.NextWeeklyExpiry(time.Now()).Format("02-Jan-2006"),
		StopLoss:   levels.StopLoss,
		Target:     levels.Target,
		Confidence: decision.Confidence,
		Notes:      "suggested, not dispatched",
	})
	if err != nil {
		logging.FromContext(ctx).Warn("Suggestion journaling failed", "index", string(index), "error", err)
		return &dispatch.Execution{Executed: false, Reason: err.Error()}
	}

	e.bus.PublishTradeOpened(id, string(index), string(decision.Signal),
		levels.Entry, lots*index.LotSize())
	return &dispatch.Execution{
		Executed: false,
		Reason:   "suggested, not dispatched",
		TradeID:  id,
		Strike:   strike,
		Lots:     lots,
	}
}

// candleSeries returns candles from the configured feed, falling back to a
// synthetic series built from the chain underlying value.
func (e *Engine) candleSeries(ctx context.Context, index market.Index, snapshot *chain.Snapshot) []market.Candle {
	if e.candles != nil {
		candles, err := e.candles.Candles(ctx, index, e.cfg.Timeframe)
		if err == nil {
			return candles
		}
		logging.FromContext(ctx).Warn("Candle feed failed, using synthetic series", "index", string(index), "error", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.history == nil {
		e.history = make(map[market.Index][]market.Candle)
	}

	spot := snapshot.UnderlyingValue
	bar := market.Candle{
		Timestamp: snapshot.FetchedAt,
		Open:      spot,
		High:      spot,
		Low:       spot,
		Close:     spot,
	}
	if prev := e.history[index]; len(prev) > 0 {
		last := prev[len(prev)-1]
		bar.Open = last.Close
		bar.High = math.Max(bar.Open, spot)
		bar.Low = math.Min(bar.Open, spot)
	}

	series := append(e.history[index], bar)
	if len(series) > maxCandleHistory {
		series = series[len(series)-maxCandleHistory:]
	}
	e.history[index] = series

	out := make([]market.Candle, len(series))
	copy(out, series)
	return out
}

// markOpenPositions estimates the intrinsic value of each open trade
// against the latest spot at session close.
func (e *Engine) markOpenPositions(ctx context.Context) {
	if e.journal == nil {
		return
	}

	open := e.journal.Open()
	if len(open) == 0 {
		return
	}

	for _, t := range open {
		spot := e.latestSpot(t.Index)
		if spot == 0 {
			continue
		}
		intrinsic := math.Max(0, spot-t.Strike)
		if t.Signal == market.SignalBuyPut {
			intrinsic = math.Max(0, t.Strike-spot)
		}
		unrealized := (intrinsic - t.EntryPrice) * float64(t.Quantity)
		e.logger.Info("Open position at session close",
			"trade_id", t.ID,
			"index", t.Index,
			"entry_price", t.EntryPrice,
			"spot", spot,
			"unrealized_pnl", math.Round(unrealized*100)/100,
		)
	}
}

func (e *Engine) latestSpot(index market.Index) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.reports[index]; ok && r.Chain != nil {
		return r.Chain.UnderlyingValue
	}
	return 0
}

// LatestReport returns the most recent cycle report for an index
func (e *Engine) LatestReport(index market.Index) *Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reports[index]
}

// LatestDecision returns the most recent fused decision for an index
func (e *Engine) LatestDecision(index market.Index) *fusion.Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.reports[index]; ok {
		return r.Decision
	}
	return nil
}

// Indices returns the configured index list
func (e *Engine) Indices() []market.Index {
	out := make([]market.Index, len(e.cfg.Indices))
	copy(out, e.cfg.Indices)
	return out
}

// writeReport serializes the cycle report as
// <INDEX>_report_<YYYYMMDD_HHMMSS>.json under the report directory.
func (e *Engine) writeReport(r *Report) {
	if e.cfg.ReportDir == "" {
		return
	}
	if err := os.MkdirAll(e.cfg.ReportDir, 0o755); err != nil {
		e.logger.Warn("Report directory unavailable", "error", err)
		return
	}

	name := fmt.Sprintf("%s_report_%s.json", r.Index, r.GeneratedAt.Format("20060102_150405"))
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		e.logger.Warn("Report serialization failed", "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(e.cfg.ReportDir, name), data, 0o644); err != nil {
		e.logger.Warn("Report write failed", "error", err)
	}
}

func indexNames(indices []market.Index) []string {
	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = string(idx)
	}
	return names
}

func atrPercent(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	price := candles[len(candles)-1].Close
	if price == 0 {
		return 0
	}
	return indicators.CalculateATR(candles, 14) / price * 100
}
