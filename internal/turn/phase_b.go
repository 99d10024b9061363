package turn

import (
	"context"

	"github.com/turnengine/core/internal/generators"
)

// RunPhaseB generates the next three choices and the timeout-penalty
// phrase from post-Phase-A state. It never mutates state (spec §4.4).
func (p *Pipeline) RunPhaseB(ctx context.Context, id string) (PhaseBResult, error) {
	log := p.Log.With().Str("session_id", id).Logger()

	state, err := p.Store.LoadState(id)
	if err != nil {
		return PhaseBResult{}, err
	}

	snapshot := generators.WorldSnapshot{
		WorldPrompt:  state.WorldPrompt,
		LastDispatch: state.LastDispatch,
		LastVision:   state.LastVision,
		SeenElements: state.SeenElements,
	}

	cctx, cancel := context.WithTimeout(ctx, p.ChoicesTimeout)
	defer cancel()
	result, err := p.Choices.Generate(cctx, snapshot)
	if err != nil {
		log.Warn().Err(err).Msg("choice generator failed, using deterministic fallback choices")
		result = generators.ChoicesResult{Choices: fallbackChoices, TimeoutPenalty: fallbackPenalty}
	}

	return PhaseBResult{Choices: result.Choices, Penalty: result.TimeoutPenalty}, nil
}
