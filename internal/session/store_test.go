package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/apperrors"
)

type fixedWall struct{ t time.Time }

func (f fixedWall) NowUTC() time.Time { return f.t }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), fixedWall{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, zerolog.Nop(), nil)
}

func TestCreateSessionExplicitID(t *testing.T) {
	store := newTestStore(t)
	meta, err := store.CreateSession("Alpha Run", "first test session", "alpha")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if meta.SessionID != "alpha" {
		t.Fatalf("expected session id alpha, got %s", meta.SessionID)
	}
	if !meta.PlayerAlive {
		t.Fatalf("expected new session to start alive")
	}

	if _, err := store.CreateSession("dup", "", "alpha"); !apperrors.Is(err, apperrors.KindAlreadyExists) {
		t.Fatalf("expected AlreadyExists on duplicate id, got %v", err)
	}
}

func TestCreateSessionInvalidID(t *testing.T) {
	store := newTestStore(t)
	for _, bad := range []string{"", ".", "..", "a/b", "a b", "../etc"} {
		if _, err := store.CreateSession("n", "", bad); !apperrors.Is(err, apperrors.KindInvalidInput) {
			t.Errorf("id %q: expected InvalidInput, got %v", bad, err)
		}
	}
}

func TestCreateSessionGeneratesUUID(t *testing.T) {
	store := newTestStore(t)
	meta, err := store.CreateSession("Auto", "", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if meta.SessionID == "" {
		t.Fatalf("expected a generated session id")
	}
}

func TestLoadStateMissingReturnsDefaultAndPersists(t *testing.T) {
	store := newTestStore(t)
	st, err := store.LoadState("fresh")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st.WorldPrompt != DefaultWorldPrompt {
		t.Fatalf("expected default world prompt, got %q", st.WorldPrompt)
	}
	if !st.PlayerState.Alive {
		t.Fatalf("expected default player alive")
	}

	reread, err := store.LoadState("fresh")
	if err != nil {
		t.Fatalf("reload state: %v", err)
	}
	if reread.WorldPrompt != st.WorldPrompt {
		t.Fatalf("expected persisted default state on reload")
	}
}

func TestSaveStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateSession("Round Trip", "", "rt"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	want := DefaultState()
	want.TurnCount = 3
	want.WorldPrompt = "a changed world"
	want.PlayerState = PlayerState{Alive: true, Health: 80}
	if err := store.SaveState("rt", want); err != nil {
		t.Fatalf("save state: %v", err)
	}

	got, err := store.LoadState("rt")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if got.TurnCount != want.TurnCount || got.WorldPrompt != want.WorldPrompt {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if got.LastSaved == "" {
		t.Fatalf("expected last_saved to be stamped")
	}

	meta, err := store.GetMetadata("rt")
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if meta.TurnCount != 3 {
		t.Fatalf("expected meta.turn_count mirrored to 3, got %d", meta.TurnCount)
	}
}

func TestAppendHistoryAndGetHistory(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateSession("History", "", "hist"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	for i := 1; i <= 3; i++ {
		entry := HistoryEntry{Turn: i, Choice: "go", CreatedAt: "now"}
		if err := store.AppendHistory("hist", entry); err != nil {
			t.Fatalf("append history turn %d: %v", i, err)
		}
	}

	all, err := store.GetHistory("hist", 0)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(all))
	}

	tail, err := store.GetHistory("hist", 1)
	if err != nil {
		t.Fatalf("get history tail: %v", err)
	}
	if len(tail) != 1 || tail[0].Turn != 3 {
		t.Fatalf("expected tail of last 1 entry to be turn 3, got %+v", tail)
	}
}

func TestDeleteSessionRefusesDefault(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateSession("Default", "", "default"); err != nil {
		t.Fatalf("create default session: %v", err)
	}
	if err := store.DeleteSession("default"); !apperrors.Is(err, apperrors.KindInvalidInput) {
		t.Fatalf("expected InvalidInput deleting default, got %v", err)
	}
}

func TestDeleteSessionRemovesDirectory(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateSession("Doomed", "", "doomed"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := store.DeleteSession("doomed"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.GetMetadata("doomed"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestListSessionsRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.CreateSession(id, "", id); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	metas, err := store.ListSessions("last_accessed", 2)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(metas))
	}
}

func TestResetClearsHistoryAndState(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateSession("Resettable", "", "rs"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := store.AppendHistory("rs", HistoryEntry{Turn: 1}); err != nil {
		t.Fatalf("append history: %v", err)
	}
	changed := DefaultState()
	changed.TurnCount = 5
	changed.PlayerState.Alive = false
	if err := store.SaveState("rs", changed); err != nil {
		t.Fatalf("save state: %v", err)
	}

	reset, err := store.Reset("rs")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.TurnCount != 0 || !reset.PlayerState.Alive {
		t.Fatalf("expected reset state to be defaults, got %+v", reset)
	}

	hist, err := store.GetHistory("rs", 0)
	if err != nil {
		t.Fatalf("get history after reset: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("expected history cleared after reset, got %d entries", len(hist))
	}
}

func TestSessionIsolation(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateSession("Alpha", "", "alpha"); err != nil {
		t.Fatalf("create alpha: %v", err)
	}
	if _, err := store.CreateSession("Beta", "", "beta"); err != nil {
		t.Fatalf("create beta: %v", err)
	}

	alphaState := DefaultState()
	alphaState.TurnCount = 1
	if err := store.SaveState("alpha", alphaState); err != nil {
		t.Fatalf("save alpha: %v", err)
	}

	betaState, err := store.LoadState("beta")
	if err != nil {
		t.Fatalf("load beta: %v", err)
	}
	if betaState.TurnCount != 0 {
		t.Fatalf("expected beta unaffected by alpha write, got turn_count=%d", betaState.TurnCount)
	}
}
