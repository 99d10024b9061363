package wsfeed

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub(zerolog.Nop())
	ch := h.subscribe("alpha")
	defer h.unsubscribe("alpha", ch)

	h.Publish(Event{Kind: EventFateRollStarted, SessionID: "alpha"})

	select {
	case ev := <-ch:
		if ev.Kind != EventFateRollStarted {
			t.Fatalf("expected EventFateRollStarted, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected event delivery")
	}
}

func TestPublishIgnoresOtherSessions(t *testing.T) {
	h := NewHub(zerolog.Nop())
	ch := h.subscribe("alpha")
	defer h.unsubscribe("alpha", ch)

	h.Publish(Event{Kind: EventFateRollStarted, SessionID: "beta"})

	select {
	case ev := <-ch:
		t.Fatalf("expected no event for unrelated session, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	h := NewHub(zerolog.Nop())
	ch := h.subscribe("alpha")
	defer h.unsubscribe("alpha", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			h.Publish(Event{Kind: EventCountdownTick, SessionID: "alpha"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Publish to never block even with a full subscriber channel")
	}
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	h := NewHub(zerolog.Nop())
	ch := h.subscribe("alpha")
	h.unsubscribe("alpha", ch)

	h.mu.Lock()
	_, stillPresent := h.subs["alpha"]
	h.mu.Unlock()
	if stillPresent {
		t.Fatalf("expected session entry to be cleaned up after last unsubscribe")
	}
}

func TestMarshalForLogProducesJSON(t *testing.T) {
	out := MarshalForLog(Event{Kind: EventPhaseAResult, SessionID: "alpha", Payload: map[string]string{"dispatch": "d"}})
	if out == "" {
		t.Fatalf("expected non-empty JSON")
	}
}
