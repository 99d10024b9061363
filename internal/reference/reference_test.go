package reference

import (
	"reflect"
	"testing"

	"github.com/turnengine/core/internal/session"
)

func TestSelectCollectsUpToWidth(t *testing.T) {
	history := []session.HistoryEntry{
		{Turn: 1, ImagePath: "t1.png"},
		{Turn: 2, ImagePath: "t2.png"},
		{Turn: 3, ImagePath: "t3.png"},
	}
	got := Select(history, 1)
	want := []string{"t3.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSelectStopsAtHardTransitionInclusive(t *testing.T) {
	// Scenario E4: T1 no transition, T2 hard_transition=true, T3 plain.
	history := []session.HistoryEntry{
		{Turn: 1, ImagePath: "t1.png", HardTransition: false},
		{Turn: 2, ImagePath: "t2.png", HardTransition: true},
	}
	got := Select(history, 3)
	want := []string{"t2.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected only the transition frame, got %v", got)
	}
}

func TestSelectSkipsMissingImages(t *testing.T) {
	history := []session.HistoryEntry{
		{Turn: 1, ImagePath: "t1.png"},
		{Turn: 2, ImagePath: ""},
		{Turn: 3, ImagePath: "t3.png"},
	}
	got := Select(history, 2)
	want := []string{"t3.png", "t1.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSelectStopsAtHardTransitionWithMissingImage(t *testing.T) {
	// The hard-transition entry's own image generation failed (spec §4.4
	// step 8 graceful degradation); the walk must still stop there and
	// must not reach back to a frame from before it.
	history := []session.HistoryEntry{
		{Turn: 1, ImagePath: "t1.png", HardTransition: false},
		{Turn: 2, ImagePath: "", HardTransition: true},
	}
	got := Select(history, 1)
	if len(got) != 0 {
		t.Fatalf("expected no references (transition entry has no image, and no earlier frame may be used), got %v", got)
	}
}

func TestSelectIntroReturnsEverythingAvailable(t *testing.T) {
	got := SelectIntro([]string{"intro.png"})
	if !reflect.DeepEqual(got, []string{"intro.png"}) {
		t.Fatalf("got %v", got)
	}
}

func TestSelectEmptyHistory(t *testing.T) {
	got := Select(nil, DefaultWidth)
	if len(got) != 0 {
		t.Fatalf("expected no references for empty history, got %v", got)
	}
}
