package turn

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/apperrors"
	"github.com/turnengine/core/internal/clock"
	"github.com/turnengine/core/internal/frames"
	"github.com/turnengine/core/internal/generators"
	"github.com/turnengine/core/internal/reference"
	"github.com/turnengine/core/internal/session"
	"github.com/turnengine/core/internal/world"
)

// Pipeline drives one turn for one session at a time (exclusivity is the
// Session Scheduler's responsibility, not this package's).
type Pipeline struct {
	Store  *session.Store
	Frames *frames.Buffer
	Wall   clock.Wall

	Narrative generators.Narrative
	Image     generators.Image
	Choices   generators.Choices
	Evolver   world.Evolver
	Fate      FateRoller

	ReferenceWidth int

	NarrativeTimeout   time.Duration
	ImageBaseTimeout   time.Duration
	ImagePerRefTimeout time.Duration
	ImageMaxTimeout    time.Duration
	ChoicesTimeout     time.Duration

	Log zerolog.Logger
}

// imageTimeout implements §5's dynamic scaling: ImageBaseTimeout +
// ImagePerRefTimeout*refs, clamped to ImageMaxTimeout when that is set.
func (p *Pipeline) imageTimeout(refCount int) time.Duration {
	d := p.ImageBaseTimeout + time.Duration(refCount)*p.ImagePerRefTimeout
	if p.ImageMaxTimeout > 0 && d > p.ImageMaxTimeout {
		d = p.ImageMaxTimeout
	}
	return d
}

// RunPhaseA executes Phase A: consequence + image (spec §4.4). It is
// guaranteed to write state and append history exactly once per accepted
// invocation, or to leave no trace at all on failure before the first
// persistent write.
func (p *Pipeline) RunPhaseA(ctx context.Context, id string, in Input) (PhaseAResult, error) {
	log := p.Log.With().Str("session_id", id).Logger()

	state, err := p.Store.LoadState(id)
	if err != nil {
		return PhaseAResult{}, err
	}
	if !state.PlayerState.Alive {
		return PhaseAResult{}, apperrors.InvalidState("player is dead; awaiting restart")
	}

	fateVal := session.FateNormal
	if !in.IsTimeout {
		fateVal, err = p.Fate.Roll()
		if err != nil {
			return PhaseAResult{}, apperrors.TransientGeneratorFailure(err, "fate resolver failed")
		}
	}

	history, err := p.Store.LoadHistory(id)
	if err != nil {
		return PhaseAResult{}, err
	}

	var refs []string
	if len(history) == 0 {
		snap, serr := p.Frames.Snapshot(id)
		if serr != nil {
			return PhaseAResult{}, serr
		}
		paths := make([]string, 0, len(snap))
		for _, f := range snap {
			paths = append(paths, f.Path)
		}
		refs = reference.SelectIntro(paths)
	} else {
		refs = reference.Select(history, p.ReferenceWidth)
	}

	bundle := generators.PromptBundle{
		WorldPrompt:  state.WorldPrompt,
		LastVision:   state.LastVision,
		Choice:       in.ChoiceText,
		Fate:         fateVal,
		SeenElements: state.SeenElements,
		RecentEvents: state.RecentEvents,
	}
	narr := p.generateNarrative(ctx, bundle, &log)

	imagePath := p.generateImage(ctx, narr.Vision, refs, &log)

	turnNumber := state.TurnCount + 1
	next := state
	next.LastChoice = in.ChoiceText
	next.LastDispatch = narr.Dispatch
	next.LastVision = narr.Vision
	next.LastImagePath = imagePath
	next.LastHardTransition = narr.HardTransition
	next.TurnCount = turnNumber
	next.PlayerState.Alive = narr.PlayerAliveAfter

	evolved := world.Mutate(ctx, p.Evolver, world.Input{
		Previous:   next,
		Choice:     in.ChoiceText,
		Dispatch:   narr.Dispatch,
		Vision:     narr.Vision,
		TurnNumber: turnNumber,
	}, &log)

	entry := session.HistoryEntry{
		Turn:                turnNumber,
		Choice:              in.ChoiceText,
		IsCustomAction:      in.IsCustomAction,
		Fate:                fateVal,
		Dispatch:            narr.Dispatch,
		Vision:              narr.Vision,
		ImagePath:           imagePath,
		WorldPromptSnapshot: evolved.WorldPrompt,
		HardTransition:      narr.HardTransition,
		CreatedAt:           clock.ISO8601(p.Wall.NowUTC()),
	}

	// A cancelled turn must not write state, history, or append frames
	// (spec §5): the Scheduler can cancel an in-flight PlayerChoice's
	// context out from under it on a concurrent Restart, and a cancelled
	// generator call resolves through the ordinary failure path above
	// (retry, then deterministic fallback) rather than surfacing an
	// error, so this check has to happen here, immediately before the
	// first persistent write, not rely on an error return from above.
	if ctx.Err() != nil {
		return PhaseAResult{}, apperrors.Cancelled("turn cancelled before commit")
	}

	// History append failure aborts the whole turn: no state save, no
	// frame append (spec §4.4 failure semantics).
	if err := p.Store.AppendHistory(id, entry); err != nil {
		return PhaseAResult{}, err
	}
	if err := p.Store.SaveState(id, evolved); err != nil {
		return PhaseAResult{}, err
	}

	// Past this point the turn is committed; frame append is best-effort
	// (spec §7 propagation policy).
	if imagePath != "" {
		if err := p.Frames.Append(id, frames.Ref{Path: imagePath}); err != nil {
			log.Warn().Err(err).Msg("frame buffer append failed after committed turn")
		}
	}

	return PhaseAResult{
		Turn:           turnNumber,
		Dispatch:       narr.Dispatch,
		Vision:         narr.Vision,
		ImagePath:      imagePath,
		Fate:           fateVal,
		PlayerAlive:    narr.PlayerAliveAfter,
		HardTransition: narr.HardTransition,
	}, nil
}

// generateNarrative retries once with a reduced prompt on failure, then
// falls back to a deterministic dispatch. It never returns an error: the
// turn always has something to commit.
func (p *Pipeline) generateNarrative(ctx context.Context, bundle generators.PromptBundle, log *zerolog.Logger) generators.NarrativeResult {
	attempt := func(b generators.PromptBundle) (generators.NarrativeResult, error) {
		cctx, cancel := context.WithTimeout(ctx, p.NarrativeTimeout)
		defer cancel()
		return p.Narrative.Generate(cctx, b)
	}

	res, err := attempt(bundle)
	if err == nil {
		return res
	}
	log.Warn().Err(err).Msg("narrative generator failed, retrying with reduced prompt")

	reduced := bundle
	reduced.RecentEvents = tail(bundle.RecentEvents, 3)
	reduced.SeenElements = tail(bundle.SeenElements, 5)
	res, err = attempt(reduced)
	if err == nil {
		return res
	}
	log.Error().Err(err).Msg("narrative generator failed twice, using deterministic fallback")

	return generators.NarrativeResult{
		Dispatch:         fallbackDispatch,
		Vision:           bundle.LastVision,
		PlayerAliveAfter: true,
		HardTransition:   false,
	}
}

// generateImage degrades gracefully: on failure the turn still completes
// with a null image path (spec §4.4 step 8 / §7's user-visible behavior).
func (p *Pipeline) generateImage(ctx context.Context, prompt string, refs []string, log *zerolog.Logger) string {
	cctx, cancel := context.WithTimeout(ctx, p.imageTimeout(len(refs)))
	defer cancel()
	path, err := p.Image.Generate(cctx, prompt, refs)
	if err != nil {
		log.Warn().Err(err).Msg("image generation failed, continuing without image")
		return ""
	}
	return path
}

func tail(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
