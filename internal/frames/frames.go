// Package frames implements the Frame Buffer (spec §4.2): the ordered
// list of image-file references captured during one session's current
// run, used to assemble replay artifacts. Keyed strictly by session_id,
// never global.
//
// Grounded on the teacher's pkg/simpleruntime per-key registry shape; here
// a single mutex guards one map keyed by session id.
package frames

import (
	"sync"

	"github.com/turnengine/core/internal/apperrors"
	"github.com/turnengine/core/internal/sessionid"
)

// Ref is a FrameRef: a path to a generated image, or the branding frame.
type Ref struct {
	Path      string
	IsBranded bool
}

// Buffer holds one append-only, per-session ordered sequence of frame
// references. Safe for concurrent use across sessions; serialized per
// session internally.
type Buffer struct {
	mu        sync.Mutex
	bySession map[string][]Ref
}

// New returns an empty Frame Buffer.
func New() *Buffer {
	return &Buffer{bySession: make(map[string][]Ref)}
}

// Append adds ref to the end of S's frame sequence. Never reorders.
func (b *Buffer) Append(id string, ref Ref) error {
	if err := sessionid.Validate(id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bySession[id] = append(b.bySession[id], ref)
	return nil
}

// Snapshot returns a copy of S's current frame sequence, safe for the
// caller to range over without holding the buffer's lock.
func (b *Buffer) Snapshot(id string) ([]Ref, error) {
	if err := sessionid.Validate(id); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	existing := b.bySession[id]
	out := make([]Ref, len(existing))
	copy(out, existing)
	return out, nil
}

// Clear empties S's frame sequence, used at Restart and at the tail of
// Death once the replay artifact has been produced.
func (b *Buffer) Clear(id string) error {
	if err := sessionid.Validate(id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bySession, id)
	return nil
}

// Count returns the number of frames currently buffered for S without
// copying them.
func (b *Buffer) Count(id string) (int, error) {
	if err := sessionid.Validate(id); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bySession[id]), nil
}

// ErrNotEnoughFrames is an InvalidState error describing a frame count
// below the replay minimum. No function in this package returns it.
var ErrNotEnoughFrames = apperrors.InvalidState("not enough frames recorded for replay")
