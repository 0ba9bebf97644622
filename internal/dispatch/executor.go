// Package dispatch places option orders through the Fyers API, or
// acknowledges them synthetically when real trading is disabled.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"options-trading-engine/internal/market"
	"options-trading-engine/internal/tradelog"
)

const (
	defaultBaseURL   = "https://api.fyers.in/api/v2"
	defaultTokenFile = "fyers_token.json"
	tokenLifetime    = 24 * time.Hour
)

// OptionType is the contract leg suffix in NSE symbols
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// Order describes one option order to place
type Order struct {
	Index      market.Index
	Strike     float64
	Signal     market.Signal
	Lots       int
	Expiry     time.Time
	OrderType  string // MARKET or LIMIT
	LimitPrice float64
}

// OrderResponse is the broker acknowledgement
type OrderResponse struct {
	Status      string `json:"s"`
	OrderNumber string `json:"orderNumber"`
	Message     string `json:"message"`
}

// OrderStatus reports the current state of a placed order
type OrderStatus struct {
	Status      string `json:"s"`
	OrderNumber string `json:"orderNumber"`
	State       string `json:"status"`
	FilledQty   string `json:"filledQty"`
	Message     string `json:"message"`
}

type orderPayload struct {
	Symbol       string  `json:"symbol"`
	Qty          int     `json:"qty"`
	Type         int     `json:"type"` // 1 limit, 2 market
	Side         int     `json:"side"` // 1 buy, -1 sell
	ProductType  string  `json:"productType"`
	Validity     string  `json:"validity"`
	DisclosedQty int     `json:"disclosedQty"`
	OfflineOrder bool    `json:"offlineOrder"`
	LimitPrice   float64 `json:"limitPrice,omitempty"`
}

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// Config holds the executor settings, typically filled from env
type Config struct {
	APIKey      string
	APISecret   string
	BaseURL     string
	TokenFile   string
	RealTrading bool
}

// ConfigFromEnv reads FYERS_API_KEY, FYERS_API_SECRET and
// ENABLE_REAL_TRADING.
func ConfigFromEnv() Config {
	return Config{
		APIKey:      os.Getenv("FYERS_API_KEY"),
		APISecret:   os.Getenv("FYERS_API_SECRET"),
		RealTrading: strings.EqualFold(os.Getenv("ENABLE_REAL_TRADING"), "true"),
	}
}

// Executor places orders and optionally records them in the journal
type Executor struct {
	cfg     Config
	client  *http.Client
	logger  zerolog.Logger
	journal *tradelog.Journal
}

// NewExecutor creates an executor. The journal may be nil when trades
// should not be recorded.
func NewExecutor(cfg Config, journal *tradelog.Journal, logger zerolog.Logger) *Executor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = defaultTokenFile
	}
	return &Executor{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("component", "dispatch").Logger(),
		journal: journal,
	}
}

// Symbol builds the Fyers contract symbol, NSE:<INDEX><YYMMDD><STRIKE><CE|PE>
func Symbol(index market.Index, expiry time.Time, strike float64, opt OptionType) string {
	return fmt.Sprintf("NSE:%s%s%d%s", index, expiry.Format("060102"), int(strike), opt)
}

func optionTypeFor(signal market.Signal) (OptionType, error) {
	switch signal {
	case market.SignalBuyCall:
		return OptionCall, nil
	case market.SignalBuyPut:
		return OptionPut, nil
	default:
		return "", fmt.Errorf("invalid direction: %s", signal)
	}
}

// Place submits one order. With real trading disabled it returns a
// synthetic acknowledgement without touching the network.
func (e *Executor) Place(ctx context.Context, o Order) (*OrderResponse, error) {
	opt, err := optionTypeFor(o.Signal)
	if err != nil {
		return nil, err
	}
	if o.Lots <= 0 {
		o.Lots = 1
	}

	expiry := o.Expiry
	if expiry.IsZero() {
		expiry = market.NextWeeklyExpiry(time.Now())
	}

	payload := orderPayload{
		Symbol:       Symbol(o.Index, expiry, o.Strike, opt),
		Qty:          o.Lots * o.Index.LotSize(),
		Type:         2,
		Side:         1,
		ProductType:  "INTRADAY",
		Validity:     "DAY",
		DisclosedQty: 0,
		OfflineOrder: false,
	}
	if o.OrderType == "LIMIT" && o.LimitPrice > 0 {
		payload.Type = 1
		payload.LimitPrice = o.LimitPrice
	}

	e.logger.Info().
		Str("symbol", payload.Symbol).
		Int("qty", payload.Qty).
		Int("type", payload.Type).
		Msg("Placing order")

	if !e.cfg.RealTrading {
		e.logger.Info().Msg("Real trading disabled, returning mock order response")
		return &OrderResponse{
			Status:      "ok",
			OrderNumber: fmt.Sprintf("mockorder_%d", time.Now().Unix()),
			Message:     "Order placed successfully (MOCK)",
		}, nil
	}

	token, err := e.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp OrderResponse
	if err := e.post(ctx, "/orders", token, payload, &resp); err != nil {
		return nil, err
	}
	e.logger.Info().Str("order_number", resp.OrderNumber).Msg("Order placed")
	return &resp, nil
}

// Status checks a placed order. Mock orders report FILLED immediately.
func (e *Executor) Status(ctx context.Context, orderID string) (*OrderStatus, error) {
	if !e.cfg.RealTrading || strings.HasPrefix(orderID, "mockorder_") {
		return &OrderStatus{
			Status:      "ok",
			OrderNumber: orderID,
			State:       "FILLED",
			FilledQty:   "1",
			Message:     "Order filled (MOCK)",
		}, nil
	}

	token, err := e.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/orders?id=%s", e.cfg.BaseURL, orderID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("%s:%s", e.cfg.APIKey, token))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking order status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("order status check failed: %s", string(body))
	}

	var status OrderStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding order status: %w", err)
	}
	return &status, nil
}

// Execution is what ExecuteSignal returns for the caller to act on
type Execution struct {
	Executed bool    `json:"executed"`
	Reason   string  `json:"reason,omitempty"`
	OrderID  string  `json:"order_id,omitempty"`
	TradeID  string  `json:"trade_id,omitempty"`
	Strike   float64 `json:"strike,omitempty"`
	Lots     int     `json:"lots,omitempty"`
}

// ExecuteSignal places an order for a signal and records it in the
// journal. WAIT or low confidence skips without placing anything.
func (e *Executor) ExecuteSignal(ctx context.Context, index market.Index, signal market.Signal,
	confidence, entry, stopLoss, target float64, lots int) (*Execution, error) {

	if signal == market.SignalWait || confidence < 0.7 {
		e.logger.Info().
			Str("signal", string(signal)).
			Float64("confidence", confidence).
			Msg("Not executing trade")
		return &Execution{Executed: false, Reason: "Signal is WAIT or confidence too low"}, nil
	}

	// Slightly OTM strike for better risk/reward
	step := index.StrikeStep()
	atm := math.Round(entry/step) * step
	strike := atm + step
	if signal == market.SignalBuyPut {
		strike = atm - step
	}

	expiry := market.NextWeeklyExpiry(time.Now())
	resp, err := e.Place(ctx, Order{
		Index:  index,
		Strike: strike,
		Signal: signal,
		Lots:   lots,
		Expiry: expiry,
	})
	if err != nil {
		return &Execution{Executed: false, Reason: err.Error()}, err
	}

	result := &Execution{
		Executed: true,
		OrderID:  resp.OrderNumber,
		Strike:   strike,
		Lots:     lots,
	}

	if e.journal != nil {
		tradeID, err := e.journal.Log(&tradelog.Trade{
			Index:      index,
			Signal:     signal,
			EntryTime:  time.Now(),
			EntryPrice: entry,
			Quantity:   lots * index.LotSize(),
			Strike:     strike,
			Expiry:     expiry.Format("02-Jan-2006"),
			StopLoss:   stopLoss,
			Target:     target,
			Confidence: confidence,
		})
		if err != nil {
			e.logger.Error().Err(err).Msg("Failed to journal executed trade")
		} else {
			result.TradeID = tradeID
		}
	}
	return result, nil
}

// accessToken returns a cached token when still valid, otherwise
// refreshes it and caches the result for a day.
func (e *Executor) accessToken(ctx context.Context) (string, error) {
	if data, err := os.ReadFile(e.cfg.TokenFile); err == nil {
		var cached cachedToken
		if err := json.Unmarshal(data, &cached); err == nil && time.Now().Before(cached.Expiry) {
			e.logger.Debug().Msg("Using cached access token")
			return cached.AccessToken, nil
		}
	}

	if e.cfg.APIKey == "" || e.cfg.APISecret == "" {
		return "", fmt.Errorf("missing broker API credentials")
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{
		"client_id":  e.cfg.APIKey,
		"secret_key": e.cfg.APISecret,
		"grant_type": "client_credentials",
	}
	if err := e.post(ctx, "/token", "", body, &tokenResp); err != nil {
		return "", fmt.Errorf("refreshing access token: %w", err)
	}

	cached := cachedToken{
		AccessToken: tokenResp.AccessToken,
		Expiry:      time.Now().Add(tokenLifetime),
	}
	if data, err := json.Marshal(cached); err == nil {
		if err := os.WriteFile(e.cfg.TokenFile, data, 0o600); err != nil {
			e.logger.Warn().Err(err).Msg("Could not cache access token")
		}
	}
	return tokenResp.AccessToken, nil
}

func (e *Executor) post(ctx context.Context, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("%s:%s", e.cfg.APIKey, token))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request to %s failed: %s", path, string(respBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
