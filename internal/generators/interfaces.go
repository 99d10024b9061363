// Package generators declares the external generator interfaces consumed
// by the core (spec §6) and implements the one component the spec fully
// specifies rather than treating as a black box: the Replay Assembler's
// size-budget reduction.
package generators

import (
	"context"

	"github.com/turnengine/core/internal/session"
)

// PromptBundle seeds the narrative generator call at Phase A step 6.
type PromptBundle struct {
	WorldPrompt  string
	LastVision   string
	Choice       string
	Fate         session.Fate
	SeenElements []string
	RecentEvents []string
}

// NarrativeResult is the structured record the narrative generator must
// return, including the two fields the Turn Pipeline treats as authoritative
// rather than deriving from text: PlayerAliveAfter and HardTransition.
type NarrativeResult struct {
	Dispatch         string
	Vision           string
	PlayerAliveAfter bool
	HardTransition   bool
}

// Narrative is the external narrative text generator boundary.
type Narrative interface {
	Generate(ctx context.Context, bundle PromptBundle) (NarrativeResult, error)
}

// Image is the external single- or multi-reference image generator
// boundary. references is a list of existing FrameRef paths.
type Image interface {
	Generate(ctx context.Context, prompt string, references []string) (string, error)
}

// WorldSnapshot seeds the choice generator call at Phase B step 1.
type WorldSnapshot struct {
	WorldPrompt  string
	LastDispatch string
	LastVision   string
	SeenElements []string
}

// ChoicesResult is the structured record the choice generator returns:
// exactly three short action phrases and one timeout-penalty phrase.
type ChoicesResult struct {
	Choices        [3]string
	TimeoutPenalty string
}

// Choices is the external choice-list generator boundary.
type Choices interface {
	Generate(ctx context.Context, snapshot WorldSnapshot) (ChoicesResult, error)
}

// Replay is the external Replay Assembler boundary: frames are never
// dropped to satisfy size; dimensions and color palette may be reduced
// until the artifact fits size_budget_bytes, or an error is returned
// describing that even minimum quality exceeds the budget.
type Replay interface {
	Assemble(frames []string, sizeBudgetBytes int) ([]byte, error)
}
