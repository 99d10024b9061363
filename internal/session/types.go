// Package session implements the Session Store (spec §4.1): per-session
// on-disk layout, atomic state/history writes, session CRUD, and metadata,
// backed by a SQLite metadata index for fast listing.
//
// Grounded on the teacher's pkg/simpleruntime/session_store.go for the
// per-key-locked read-modify-write shape, and the other_examples
// go-mizu-mizu filestore for the on-disk index + atomic write protocol.
package session

// PlayerState mirrors the spec's player_state sub-record.
type PlayerState struct {
	Alive  bool `json:"alive"`
	Health int  `json:"health"`
}

// WorldState is persisted at <session>/state.json.
type WorldState struct {
	WorldPrompt        string      `json:"world_prompt"`
	EvolutionSummary   string      `json:"evolution_summary"`
	RecentEvents       []string    `json:"recent_events"`
	SeenElements       []string    `json:"seen_elements"`
	TurnCount          int         `json:"turn_count"`
	PlayerState        PlayerState `json:"player_state"`
	LastChoice         string      `json:"last_choice"`
	LastDispatch       string      `json:"last_dispatch"`
	LastVision         string      `json:"last_vision"`
	LastImagePath      string      `json:"last_image_path"`
	LastMovementKind   string      `json:"last_movement_kind"`
	LastHardTransition bool        `json:"last_hard_transition"`
	LastSaved          string      `json:"last_saved"`
}

// SessionMetadata is persisted at <session>/meta.json.
type SessionMetadata struct {
	SessionID    string `json:"session_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at"`
	LastAccessed string `json:"last_accessed"`
	TurnCount    int    `json:"turn_count"`
	PlayerAlive  bool   `json:"player_alive"`
	Version      string `json:"version"`
}

// Fate is the Fate Resolver's modifier as recorded into history.
type Fate string

const (
	FateLucky   Fate = "LUCKY"
	FateNormal  Fate = "NORMAL"
	FateUnlucky Fate = "UNLUCKY"
)

// HistoryEntry is an append-only per-turn record persisted as a sequence
// in <session>/history.json.
type HistoryEntry struct {
	EntryID             string `json:"entry_id"`
	Turn                int    `json:"turn"`
	Choice              string `json:"choice"`
	IsCustomAction      bool   `json:"is_custom_action"`
	Fate                Fate   `json:"fate"`
	Dispatch            string `json:"dispatch"`
	Vision              string `json:"vision"`
	ImagePath           string `json:"image_path,omitempty"`
	WorldPromptSnapshot string `json:"world_prompt_snapshot"`
	HardTransition      bool   `json:"hard_transition"`
	CreatedAt           string `json:"created_at"`
}

// DefaultWorldPrompt seeds a freshly created session's world_prompt,
// referenced by LoadState when no state.json exists yet (§4.3's "initial
// world_prompt").
const DefaultWorldPrompt = "You stand at the threshold of an unfamiliar place, senses sharp, the path ahead unknown."

// DefaultState returns the state a brand-new or reset session starts with.
func DefaultState() WorldState {
	return WorldState{
		WorldPrompt:  DefaultWorldPrompt,
		RecentEvents: []string{},
		SeenElements: []string{},
		PlayerState:  PlayerState{Alive: true, Health: 100},
	}
}

// CurrentVersion is written into every new SessionMetadata.
const CurrentVersion = "1"
