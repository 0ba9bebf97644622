package events

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 1)

	bus.Subscribe(EventDecisionMade, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.PublishChainUpdate("NIFTY", 22030, 1.1)
	bus.PublishDecision("NIFTY", "BUY CALL", 0.85, "EXECUTE TRADE")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the decision event")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected only the decision event, got %d", len(got))
	}
	if got[0].Data["index"] != "NIFTY" || got[0].Data["action"] != "EXECUTE TRADE" {
		t.Errorf("unexpected payload: %+v", got[0].Data)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("publish should stamp the event")
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()

	received := make(chan EventType, 4)
	bus.SubscribeAll(func(e Event) { received <- e.Type })

	bus.PublishTradeOpened("TRADE_1_20250120103000", "NIFTY", "BUY CALL", 120, 50)
	bus.PublishTradeClosed("TRADE_1_20250120103000", "NIFTY", 150, 1500)
	bus.PublishError("orchestrator", "cycle failed", nil)

	seen := map[EventType]bool{}
	for i := 0; i < 3; i++ {
		select {
		case et := <-received:
			seen[et] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	for _, want := range []EventType{EventTradeOpened, EventTradeClosed, EventError} {
		if !seen[want] {
			t.Errorf("missing %s", want)
		}
	}
}
