// Package events is the in-process pub/sub bus connecting the analysis
// pipeline to the API and WebSocket layers.
package events

import (
	"sync"
	"time"
)

// EventType tags the events flowing through the bus
type EventType string

const (
	EventEngineStarted  EventType = "ENGINE_STARTED"
	EventEngineStopped  EventType = "ENGINE_STOPPED"
	EventSessionOpen    EventType = "SESSION_OPEN"
	EventSessionClose   EventType = "SESSION_CLOSE"
	EventChainUpdate    EventType = "CHAIN_UPDATE"
	EventAnalysisReady  EventType = "ANALYSIS_READY"
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventDecisionMade   EventType = "DECISION_MADE"
	EventOrderPlaced    EventType = "ORDER_PLACED"
	EventTradeOpened    EventType = "TRADE_OPENED"
	EventTradeClosed    EventType = "TRADE_CLOSED"
	EventError          EventType = "ERROR"
)

// Event is one message on the bus
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// Bus manages event publishing and subscriptions
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all matching subscribers. Each subscriber
// runs in its own goroutine so a slow consumer never blocks the pipeline.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range b.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishDecision publishes the fused decision for one index
func (b *Bus) PublishDecision(index, signal string, confidence float64, action string) {
	b.Publish(Event{
		Type: EventDecisionMade,
		Data: map[string]any{
			"index":      index,
			"signal":     signal,
			"confidence": confidence,
			"action":     action,
		},
	})
}

// PublishSignal publishes an intermediate signal from one source
func (b *Bus) PublishSignal(index, source, signal string, confidence float64) {
	b.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]any{
			"index":      index,
			"source":     source,
			"signal":     signal,
			"confidence": confidence,
		},
	})
}

// PublishChainUpdate publishes a fresh option chain snapshot marker
func (b *Bus) PublishChainUpdate(index string, underlying, pcr float64) {
	b.Publish(Event{
		Type: EventChainUpdate,
		Data: map[string]any{
			"index":      index,
			"underlying": underlying,
			"pcr":        pcr,
		},
	})
}

// PublishTradeOpened publishes a journaled trade entry
func (b *Bus) PublishTradeOpened(tradeID, index, signal string, entryPrice float64, quantity int) {
	b.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]any{
			"trade_id":    tradeID,
			"index":       index,
			"signal":      signal,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed publishes a trade exit with its pnl
func (b *Bus) PublishTradeClosed(tradeID, index string, exitPrice, pnl float64) {
	b.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]any{
			"trade_id":   tradeID,
			"index":      index,
			"exit_price": exitPrice,
			"pnl":        pnl,
		},
	})
}

// PublishError publishes a pipeline error
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]any{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{Type: EventError, Data: data})
}
