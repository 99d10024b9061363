package frames

import "testing"

func TestAppendSnapshotOrder(t *testing.T) {
	b := New()
	if err := b.Append("alpha", Ref{Path: "images/1.png"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Append("alpha", Ref{Path: "images/2.png"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	snap, err := b.Snapshot("alpha")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != 2 || snap[0].Path != "images/1.png" || snap[1].Path != "images/2.png" {
		t.Fatalf("unexpected frame order: %+v", snap)
	}
}

func TestClearRemovesOnlyThatSession(t *testing.T) {
	b := New()
	_ = b.Append("alpha", Ref{Path: "a.png"})
	_ = b.Append("beta", Ref{Path: "b.png"})

	if err := b.Clear("alpha"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	alphaSnap, _ := b.Snapshot("alpha")
	betaSnap, _ := b.Snapshot("beta")
	if len(alphaSnap) != 0 {
		t.Fatalf("expected alpha cleared, got %+v", alphaSnap)
	}
	if len(betaSnap) != 1 {
		t.Fatalf("expected beta untouched, got %+v", betaSnap)
	}
}

func TestCountAndIsolation(t *testing.T) {
	b := New()
	_ = b.Append("alpha", Ref{Path: "a1.png"})
	_ = b.Append("alpha", Ref{Path: "a2.png"})
	_ = b.Append("beta", Ref{Path: "b1.png"})

	n, err := b.Count("alpha")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 frames for alpha, got %d", n)
	}

	snap, err := b.Snapshot("alpha")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, f := range snap {
		if f.Path == "b1.png" {
			t.Fatalf("beta frame leaked into alpha snapshot")
		}
	}
}

func TestInvalidSessionIDRejected(t *testing.T) {
	b := New()
	if err := b.Append("../etc", Ref{Path: "x.png"}); err == nil {
		t.Fatalf("expected error for invalid session id")
	}
}
