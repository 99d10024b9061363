// Package turn implements the Turn Pipeline (spec §4.4): the two-phase
// per-turn state machine that drives Phase A (consequence & image) and
// Phase B (next choices) for one session.
package turn

import "github.com/turnengine/core/internal/session"

// Input describes the trigger for one Phase A invocation: a player choice
// (typed or picked from the offered list) or a timeout penalty.
type Input struct {
	ChoiceText     string
	IsCustomAction bool
	IsTimeout      bool
}

// PhaseAResult is returned to the UI after Phase A completes.
type PhaseAResult struct {
	Turn           int
	Dispatch       string
	Vision         string
	ImagePath      string
	Fate           session.Fate
	PlayerAlive    bool
	HardTransition bool
}

// PhaseBResult is returned to the UI after Phase B completes. Phase B
// never mutates state; it is a pure derivation from post-Phase-A state.
type PhaseBResult struct {
	Choices [3]string
	Penalty string
}

// FateRoller produces the per-turn fate modifier. Defined here (consumer
// owns the interface) so tests can stub the Fate Resolver, per spec
// scenario E1 ("Fate Resolver stubbed to NORMAL").
type FateRoller interface {
	Roll() (session.Fate, error)
}

// fallbackDispatch is used when the narrative generator fails twice in a
// row (spec §4.4 step 6 failure semantics).
const fallbackDispatch = "You make a tense move in the chaos."

// fallbackChoices is used when the choice generator fails (not specified
// exactly by the spec, but §4.4/§7's degradation pattern — log and
// continue with a deterministic substitute rather than aborting a turn
// that has already committed).
var fallbackChoices = [3]string{
	"Press onward cautiously",
	"Search your surroundings",
	"Retreat to safety",
}

const fallbackPenalty = "Hesitation costs you dearly."
