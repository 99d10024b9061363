// Package world implements the World Evolver (spec §4.3): serialized
// mutation of the world narrative and bounded context, using an external
// LLM as a black box behind the Evolver interface this package defines
// (Go idiom: the consumer owns the interface; implementations are
// supplied by the embedding program, such as cmd/turnengine's local one).
package world

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/session"
)

// Input bundles everything the Evolver needs to mutate state for one turn.
type Input struct {
	Previous            session.WorldState
	Choice              string
	Dispatch            string
	Vision              string
	PriorVisionAnalysis string // optional, for grounding
	TurnNumber          int
}

// Output is the mutated narrative fields an Evolve call produces.
type Output struct {
	WorldPrompt      string
	EvolutionSummary string
}

// Evolver is the external black-box LLM boundary this component drives.
type Evolver interface {
	Evolve(ctx context.Context, in Input) (Output, error)
}

const (
	recentEventsCap          = 10
	seenElementsCap          = 50
	condensationInterval     = 30
	condensedRecentEventsCap = 8
	condensedSeenElementsCap = 40
	transientDescWordLimit   = 100
	fallbackEvolutionSummary = "The world shifts around you."
)

// genericEnvironmentTerms are excluded from entity extraction (§4.3's
// "exclude generic environment terms" rule).
var genericEnvironmentTerms = map[string]bool{
	"ground": true, "sky": true, "wall": true, "floor": true, "ceiling": true,
	"air": true, "dirt": true, "grass": true, "water": true, "road": true,
	"path": true, "corridor": true, "room": true, "door": true,
}

// Mutate runs the World Evolver for one turn: it calls evolver.Evolve,
// merges the result into a copy of prev, appends recent_events, merges
// seen_elements, and applies periodic condensation. On evolver failure it
// keeps the previous world_prompt and uses the fallback evolution
// summary, per §4.4's degradation rule — the turn still commits.
func Mutate(ctx context.Context, evolver Evolver, in Input, log *zerolog.Logger) session.WorldState {
	next := in.Previous

	out, err := evolver.Evolve(ctx, in)
	if err != nil {
		log.Warn().Err(err).Int("turn", in.TurnNumber).Msg("world evolver failed, keeping previous world_prompt")
		next.EvolutionSummary = fallbackEvolutionSummary
	} else {
		next.WorldPrompt = enforceLength(out.WorldPrompt, log)
		next.EvolutionSummary = out.EvolutionSummary
		if driftsThirdPerson(next.EvolutionSummary) {
			log.Warn().Str("evolution_summary", next.EvolutionSummary).Msg("content defect: third-person drift detected")
		}
	}

	next.RecentEvents = appendCapped(in.Previous.RecentEvents, fmt.Sprintf("Turn %d: %s", in.TurnNumber, shortAction(in.Choice)), recentEventsCap)
	next.SeenElements = mergeSeenElements(in.Previous.SeenElements, extractEntities(in.Dispatch+" "+in.Vision), seenElementsCap)

	if in.TurnNumber > 0 && in.TurnNumber%condensationInterval == 0 {
		next.RecentEvents = capTail(next.RecentEvents, condensedRecentEventsCap)
		next.SeenElements = capTail(next.SeenElements, condensedSeenElementsCap)
	}

	return next
}

func shortAction(choice string) string {
	choice = strings.TrimSpace(choice)
	const maxWords = 12
	words := strings.Fields(choice)
	if len(words) <= maxWords {
		return choice
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func appendCapped(existing []string, item string, limit int) []string {
	out := append(append([]string{}, existing...), item)
	return capTail(out, limit)
}

func capTail(items []string, limit int) []string {
	if len(items) <= limit {
		return items
	}
	return append([]string{}, items[len(items)-limit:]...)
}

// enforceLength applies §4.3's length enforcement: a transient
// intermediate description over 100 words is truncated deterministically
// to the first 100 words. (Requesting an LLM condensation to 50-70 words
// is the generator's responsibility upstream; this is the deterministic
// fallback guaranteed regardless of generator behavior.)
func enforceLength(text string, log *zerolog.Logger) string {
	words := strings.Fields(text)
	if len(words) <= transientDescWordLimit {
		return text
	}
	log.Warn().Int("word_count", len(words)).Msg("world_prompt exceeded transient length limit, truncating")
	return strings.Join(words[:transientDescWordLimit], " ")
}

// thirdPersonMarkers is a coarse heuristic for detecting drift away from
// second-person player-facing text: pronouns that only make sense when
// narrating about someone other than "you".
var thirdPersonMarkers = regexp.MustCompile(`(?i)\b(he|him|his|she|her|hers)\b`)

func driftsThirdPerson(text string) bool {
	return thirdPersonMarkers.MatchString(text)
}

// namedEntityPattern finds capitalized word runs (1-3 words), the
// heuristic used for named people/creatures/objects/landmarks extraction.
var namedEntityPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+){0,2})\b`)

func extractEntities(text string) []string {
	matches := namedEntityPattern.FindAllString(text, -1)
	var entities []string
	seen := map[string]bool{}
	for _, m := range matches {
		key := strings.ToLower(m)
		if genericEnvironmentTerms[key] || seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, m)
	}
	return entities
}

// mergeSeenElements merges newly discovered entities into existing,
// prepending them so character/threat names float to the front of the
// list per §4.3, then trims to cap by dropping the oldest (tail) entries.
func mergeSeenElements(existing []string, discovered []string, limit int) []string {
	present := map[string]bool{}
	for _, e := range existing {
		present[strings.ToLower(e)] = true
	}
	var fresh []string
	for _, d := range discovered {
		key := strings.ToLower(d)
		if present[key] {
			continue
		}
		present[key] = true
		fresh = append(fresh, d)
	}
	merged := append(fresh, existing...)
	return capHead(merged, limit)
}

func capHead(items []string, limit int) []string {
	if len(items) <= limit {
		return items
	}
	return append([]string{}, items[:limit]...)
}
