package fate

import (
	"testing"

	"github.com/turnengine/core/internal/session"
)

func TestRollDistribution(t *testing.T) {
	counts := map[session.Fate]int{}
	const trials = 4000
	for i := 0; i < trials; i++ {
		f, err := Roll()
		if err != nil {
			t.Fatalf("roll: %v", err)
		}
		counts[f]++
	}

	if counts[session.FateLucky] == 0 || counts[session.FateNormal] == 0 || counts[session.FateUnlucky] == 0 {
		t.Fatalf("expected all three fates to appear over %d trials, got %+v", trials, counts)
	}

	// Normal should roughly double Lucky/Unlucky; allow generous slack
	// since this is a statistical, not exact, property.
	if counts[session.FateNormal] < counts[session.FateLucky] || counts[session.FateNormal] < counts[session.FateUnlucky] {
		t.Fatalf("expected NORMAL to be the most frequent outcome, got %+v", counts)
	}
}

func TestRollOnlyValidValues(t *testing.T) {
	for i := 0; i < 200; i++ {
		f, err := Roll()
		if err != nil {
			t.Fatalf("roll: %v", err)
		}
		switch f {
		case session.FateLucky, session.FateNormal, session.FateUnlucky:
		default:
			t.Fatalf("unexpected fate value: %q", f)
		}
	}
}
