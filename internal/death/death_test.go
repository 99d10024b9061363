package death

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/clock"
	"github.com/turnengine/core/internal/frames"
	"github.com/turnengine/core/internal/generators"
	"github.com/turnengine/core/internal/scheduler"
	"github.com/turnengine/core/internal/session"
	"github.com/turnengine/core/internal/turn"
	"github.com/turnengine/core/internal/world"
)

type fixedWall struct{ t time.Time }

func (f fixedWall) NowUTC() time.Time { return f.t }

type stubReplay struct {
	data []byte
	err  error
}

func (s stubReplay) Assemble(paths []string, budget int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

type stubNarrative struct{}

func (stubNarrative) Generate(ctx context.Context, b generators.PromptBundle) (generators.NarrativeResult, error) {
	return generators.NarrativeResult{Dispatch: "d", Vision: "v", PlayerAliveAfter: true}, nil
}

type stubImage struct{}

func (stubImage) Generate(ctx context.Context, prompt string, refs []string) (string, error) {
	return "", nil
}

type stubChoices struct{}

func (stubChoices) Generate(ctx context.Context, snap generators.WorldSnapshot) (generators.ChoicesResult, error) {
	return generators.ChoicesResult{Choices: [3]string{"a", "b", "c"}, TimeoutPenalty: "p"}, nil
}

type stubEvolver struct{}

func (stubEvolver) Evolve(ctx context.Context, in world.Input) (world.Output, error) {
	return world.Output{WorldPrompt: in.Previous.WorldPrompt, EvolutionSummary: "s"}, nil
}

type stubFate struct{}

func (stubFate) Roll() (session.Fate, error) { return session.FateNormal, nil }

func newHarness(t *testing.T, restartDeadline time.Duration) (*Orchestrator, *frames.Buffer, *session.Store) {
	t.Helper()
	store := session.New(t.TempDir(), fixedWall{t: time.Now()}, zerolog.Nop(), nil)
	fb := frames.New()
	p := &turn.Pipeline{
		Store:              store,
		Frames:             fb,
		Wall:               fixedWall{t: time.Now()},
		Narrative:          stubNarrative{},
		Image:              stubImage{},
		Choices:            stubChoices{},
		Evolver:            stubEvolver{},
		Fate:               stubFate{},
		ReferenceWidth:     1,
		NarrativeTimeout:   time.Second,
		ImageBaseTimeout:   time.Second,
		ImagePerRefTimeout: time.Second,
		ImageMaxTimeout:    5 * time.Second,
		ChoicesTimeout:     time.Second,
		Log:                zerolog.Nop(),
	}
	sched := scheduler.New(p, fb, zerolog.Nop())
	orch := New(fb, stubReplay{data: []byte("GIF89a-fake-bytes")}, store.TapesDir, sched, clock.System{}, restartDeadline, 1<<20, zerolog.Nop())
	return orch, fb, store
}

func TestBeginRejectsWhenFewerThanTwoFrames(t *testing.T) {
	orch, fb, store := newHarness(t, time.Second)
	if _, err := store.CreateSession("One", "", "one"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := fb.Append("one", frames.Ref{Path: "images/intro.png"}); err != nil {
		t.Fatalf("append frame: %v", err)
	}

	_, _, err := orch.Begin(context.Background(), "one")
	if err == nil {
		t.Fatalf("expected not-enough-frames error")
	}
}

func TestBeginAssemblesAndPersistsTape(t *testing.T) {
	orch, fb, store := newHarness(t, 100*time.Millisecond)
	if _, err := store.CreateSession("Two", "", "two"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	_ = fb.Append("two", frames.Ref{Path: "images/a.png"})
	_ = fb.Append("two", frames.Ref{Path: "images/b.png"})

	artifact, cd, err := orch.Begin(context.Background(), "two")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if artifact.SizeBytes == 0 {
		t.Fatalf("expected non-empty artifact")
	}
	if cd == nil {
		t.Fatalf("expected a countdown for the restart race")
	}
	cd.Cancel()
}

func TestBeginPropagatesReplayFailure(t *testing.T) {
	orch, fb, store := newHarness(t, time.Second)
	orch.Replay = stubReplay{err: errors.New("assembler exhausted quality ladder")}
	if _, err := store.CreateSession("Three", "", "three"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	_ = fb.Append("three", frames.Ref{Path: "images/a.png"})
	_ = fb.Append("three", frames.Ref{Path: "images/b.png"})

	_, _, err := orch.Begin(context.Background(), "three")
	if err == nil {
		t.Fatalf("expected replay failure to propagate")
	}
}

func TestPlayAgainResolvesExactlyOnceAgainstDeadline(t *testing.T) {
	orch, fb, store := newHarness(t, 500*time.Millisecond)
	if _, err := store.CreateSession("Four", "", "four"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	_ = fb.Append("four", frames.Ref{Path: "images/a.png"})
	_ = fb.Append("four", frames.Ref{Path: "images/b.png"})

	_, _, err := orch.Begin(context.Background(), "four")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if !orch.PlayAgain("four") {
		t.Fatalf("expected first PlayAgain to win the race")
	}
	if orch.PlayAgain("four") {
		t.Fatalf("expected second PlayAgain to be a no-op")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, loadErr := store.LoadState("four")
		if loadErr == nil && st.TurnCount == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	st, err := store.LoadState("four")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st.TurnCount != 0 {
		t.Fatalf("expected Restart to reset turn_count, got %d", st.TurnCount)
	}
	count, err := fb.Count("four")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected Restart to clear the frame buffer, got %d frames", count)
	}
}

func TestAutoDeadlineEmitsRestartWithoutManualClick(t *testing.T) {
	orch, fb, store := newHarness(t, 40*time.Millisecond)
	if _, err := store.CreateSession("Five", "", "five"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	_ = fb.Append("five", frames.Ref{Path: "images/a.png"})
	_ = fb.Append("five", frames.Ref{Path: "images/b.png"})

	_, _, err := orch.Begin(context.Background(), "five")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, loadErr := store.LoadState("five")
		if loadErr == nil && st.TurnCount == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected auto-deadline Restart to reset state within timeout")
}
