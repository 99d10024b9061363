package main

import (
	"context"

	"github.com/turnengine/core/internal/generators"
	"github.com/turnengine/core/internal/world"
)

// The turn orchestration core treats narrative, image, and choice
// generation as external black boxes (spec §6); this binary is a runnable
// reference wiring, not a generator backend, so it plugs in small
// deterministic local implementations rather than shipping an LLM client.
// A production deployment embedding these packages supplies its own
// generators.Narrative/Image/Choices/world.Evolver and skips this file
// entirely.

type localNarrative struct{}

func (localNarrative) Generate(ctx context.Context, bundle generators.PromptBundle) (generators.NarrativeResult, error) {
	return generators.NarrativeResult{
		Dispatch:         "The scene shifts in response to your action.",
		Vision:           bundle.LastVision,
		PlayerAliveAfter: true,
		HardTransition:   false,
	}, nil
}

type localImage struct{}

func (localImage) Generate(ctx context.Context, prompt string, references []string) (string, error) {
	// No image backend wired; Phase A already degrades gracefully to an
	// empty image path (spec §4.4 step 8).
	return "", nil
}

type localChoices struct{}

func (localChoices) Generate(ctx context.Context, snap generators.WorldSnapshot) (generators.ChoicesResult, error) {
	return generators.ChoicesResult{
		Choices:        [3]string{"Press onward", "Look around", "Wait and listen"},
		TimeoutPenalty: "Hesitation costs you dearly.",
	}, nil
}

type localEvolver struct{}

func (localEvolver) Evolve(ctx context.Context, in world.Input) (world.Output, error) {
	return world.Output{
		WorldPrompt:      in.Previous.WorldPrompt,
		EvolutionSummary: "The world shifts around you.",
	}, nil
}
