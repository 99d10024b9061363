// Package wsfeed pushes purely observational per-session events over a
// WebSocket connection (spec SPEC_FULL §B). It delivers whatever its
// callers publish; within this module those are phase results, death-begun
// and restart events. The fate-roll and countdown-tick kinds are defined
// but no caller in this module publishes them. It never gates the Scheduler's
// admission or ordering guarantees — a client that never connects, or
// that disconnects mid-turn, has no effect on turn processing.
//
// Uses the teacher's own WebSocket dependency, github.com/coder/websocket
// (go.mod: github.com/coder/websocket v1.8.14).
package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/sessionid"
)

// EventKind discriminates the event envelope pushed to a session's feed.
type EventKind string

const (
	EventFateRollStarted EventKind = "fate_roll_started"
	EventCountdownTick   EventKind = "countdown_tick"
	EventPhaseAResult    EventKind = "phase_a_result"
	EventPhaseBResult    EventKind = "phase_b_result"
	EventDeathBegun      EventKind = "death_begun"
	EventRestart         EventKind = "restart"
)

// Event is the envelope pushed to every connection subscribed to a
// session's feed.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Payload   any       `json:"payload,omitempty"`
}

// Hub fans out Events to the WebSocket connections subscribed to each
// session. One Hub serves the whole process; subscriptions are keyed by
// session_id exactly like every other per-session collaborator.
type Hub struct {
	log zerolog.Logger

	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewHub returns an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{log: log, subs: make(map[string]map[chan Event]struct{})}
}

// Publish pushes ev to every connection currently subscribed to
// ev.SessionID. Non-blocking: a slow or stalled subscriber drops the
// event rather than stalling turn processing.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	subscribers := h.subs[ev.SessionID]
	chans := make([]chan Event, 0, len(subscribers))
	for ch := range subscribers {
		chans = append(chans, ch)
	}
	h.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
			h.log.Warn().Str("session_id", ev.SessionID).Msg("wsfeed: subscriber too slow, dropping event")
		}
	}
}

func (h *Hub) subscribe(id string) chan Event {
	ch := make(chan Event, 32)
	h.mu.Lock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[chan Event]struct{})
	}
	h.subs[id][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(id string, ch chan Event) {
	h.mu.Lock()
	if set, ok := h.subs[id]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the request to a WebSocket and streams Events for
// the session named by the "id" path value until the client disconnects
// or the request context is cancelled.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := sessionid.Validate(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", id).Msg("wsfeed: accept failed")
		return
	}
	defer conn.CloseNow()

	ch := h.subscribe(id)
	defer h.unsubscribe(id, ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				h.log.Warn().Err(err).Str("session_id", id).Msg("wsfeed: write failed, closing")
				return
			}
		}
	}
}

// MarshalForLog renders ev as compact JSON for structured log lines,
// falling back to the event kind if ev cannot be marshalled.
func MarshalForLog(ev Event) string {
	data, err := json.Marshal(ev)
	if err != nil {
		return ev.Kind.String()
	}
	return string(data)
}

func (k EventKind) String() string { return string(k) }
