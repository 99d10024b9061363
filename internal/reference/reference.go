// Package reference implements the Reference Buffer (spec §4.8): which
// prior frame(s) to pass to the image generator for visual continuity,
// walking history in reverse and stopping at (and including) the most
// recent hard-transition entry.
package reference

import "github.com/turnengine/core/internal/session"

// DefaultWidth is N from the spec's selection algorithm: the number of
// image-bearing frames collected before a hard transition is hit.
const DefaultWidth = 1

// Select walks history in reverse, collecting up to width image-bearing
// entries, stopping after (and including) the first hard_transition entry
// it encounters. For the very first action after session start (empty
// history), callers should instead pass all available references — this
// function operates on whatever history it is given and does not special
// case emptiness beyond returning no references.
func Select(history []session.HistoryEntry, width int) []string {
	if width <= 0 {
		width = DefaultWidth
	}
	var refs []string
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if entry.ImagePath != "" {
			refs = append(refs, entry.ImagePath)
		}
		// A hard transition stops the walk even when its own image
		// generation failed (spec §4.4 step 8's graceful degradation):
		// no frame from before that entry may be included, image or not.
		if entry.HardTransition {
			break
		}
		if len(refs) >= width {
			break
		}
	}
	return refs
}

// SelectIntro returns every available frame reference for the very first
// action after session start (the spec's "intro exception"): typically
// just the intro/branding frame.
func SelectIntro(available []string) []string {
	out := make([]string, len(available))
	copy(out, available)
	return out
}
