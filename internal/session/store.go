package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/apperrors"
	"github.com/turnengine/core/internal/clock"
	"github.com/turnengine/core/internal/fsatomic"
	"github.com/turnengine/core/internal/lock"
	"github.com/turnengine/core/internal/sessionid"
)

// Store owns the on-disk session layout and provides atomic, serialized
// access to state, metadata, and history (spec §4.1). All writes to a
// given session go through the per-session lock for the whole
// read-modify-write, matching the teacher's per-key session store lock.
type Store struct {
	root  string
	locks *lock.Registry
	wall  clock.Wall
	log   zerolog.Logger
	index *Index // metadata index kept in sync; may be nil if disabled
}

// New returns a Store rooted at storageRoot (sessions live under
// <storageRoot>/sessions/<id>/). index may be nil to disable the SQLite
// metadata index entirely (falls back to directory scans for ListSessions).
func New(storageRoot string, wall clock.Wall, log zerolog.Logger, index *Index) *Store {
	return &Store{
		root:  storageRoot,
		locks: lock.NewRegistry(),
		wall:  wall,
		log:   log,
		index: index,
	}
}

// lockFor serializes every read-modify-write for session id.
func (s *Store) lockFor(id string) func() {
	mu := s.locks.For(id)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) nowISO() string {
	return clock.ISO8601(s.wall.NowUTC())
}

// ensureDirs creates the session's directory tree if it does not exist.
func (s *Store) ensureDirs(l layout) error {
	if err := os.MkdirAll(l.dir(), 0o700); err != nil {
		return apperrors.PersistentDiskFailure(err, "create session directory")
	}
	for _, d := range l.subdirs() {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return apperrors.PersistentDiskFailure(err, "create session subdirectory %s", d)
		}
	}
	return nil
}

// CreateSession validates id (if supplied), generates a v4 UUID otherwise,
// and writes an initial meta.json + default state.json. A collision on an
// explicit id fails with AlreadyExists.
func (s *Store) CreateSession(name, description, explicitID string) (SessionMetadata, error) {
	id := explicitID
	if id == "" {
		id = uuid.NewString()
	} else if err := sessionid.Validate(id); err != nil {
		return SessionMetadata{}, err
	}

	unlock := s.lockFor(id)
	defer unlock()

	l := newLayout(s.root, id)
	if _, err := os.Stat(l.metaFile()); err == nil {
		return SessionMetadata{}, apperrors.AlreadyExists("session %q already exists", id)
	}

	if err := s.ensureDirs(l); err != nil {
		return SessionMetadata{}, err
	}

	now := s.nowISO()
	meta := SessionMetadata{
		SessionID:    id,
		Name:         name,
		Description:  description,
		CreatedAt:    now,
		LastAccessed: now,
		TurnCount:    0,
		PlayerAlive:  true,
		Version:      CurrentVersion,
	}
	if err := fsatomic.WriteJSON(l.metaFile(), meta); err != nil {
		return SessionMetadata{}, apperrors.PersistentDiskFailure(err, "write meta.json for %s", id)
	}
	if err := fsatomic.WriteJSON(l.stateFile(), DefaultState()); err != nil {
		return SessionMetadata{}, apperrors.PersistentDiskFailure(err, "write state.json for %s", id)
	}
	if err := fsatomic.WriteJSON(l.historyFile(), []HistoryEntry{}); err != nil {
		return SessionMetadata{}, apperrors.PersistentDiskFailure(err, "write history.json for %s", id)
	}

	if s.index != nil {
		if err := s.index.Upsert(meta); err != nil {
			s.log.Warn().Err(err).Str("session_id", id).Msg("metadata index upsert failed on create")
		}
	}

	s.log.Info().Str("session_id", id).Msg("session created")
	return meta, nil
}

// LoadState returns the current state for S. On a missing or unparseable
// file it returns (and persists) a fresh default state, per §4.1's failure
// semantics: the caller must never observe a partial state.
func (s *Store) LoadState(id string) (WorldState, error) {
	if err := sessionid.Validate(id); err != nil {
		return WorldState{}, err
	}
	unlock := s.lockFor(id)
	defer unlock()
	return s.loadStateLocked(id)
}

func (s *Store) loadStateLocked(id string) (WorldState, error) {
	l := newLayout(s.root, id)
	var st WorldState
	err := fsatomic.ReadJSON(l.stateFile(), &st)
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, os.ErrNotExist):
		fresh := DefaultState()
		if werr := s.writeStateLocked(id, fresh); werr != nil {
			return WorldState{}, werr
		}
		return fresh, nil
	default:
		s.log.Warn().Err(err).Str("session_id", id).Msg("state.json parse failure, returning default state")
		fresh := DefaultState()
		if werr := s.writeStateLocked(id, fresh); werr != nil {
			return WorldState{}, werr
		}
		return fresh, nil
	}
}

// SaveState serializes state to state.json via the atomic temp-rename
// protocol, touches meta.last_accessed, and mirrors turn_count/player_alive
// into meta.json.
func (s *Store) SaveState(id string, state WorldState) error {
	if err := sessionid.Validate(id); err != nil {
		return err
	}
	unlock := s.lockFor(id)
	defer unlock()
	return s.writeStateLocked(id, state)
}

func (s *Store) writeStateLocked(id string, state WorldState) error {
	l := newLayout(s.root, id)
	if err := s.ensureDirs(l); err != nil {
		return err
	}
	state.LastSaved = s.nowISO()
	if err := fsatomic.WriteJSON(l.stateFile(), state); err != nil {
		return apperrors.PersistentDiskFailure(err, "save state for %s", id)
	}

	var meta SessionMetadata
	now := s.nowISO()
	if err := fsatomic.ReadJSON(l.metaFile(), &meta); err != nil {
		meta = SessionMetadata{SessionID: id, CreatedAt: now, Version: CurrentVersion}
	}
	meta.LastAccessed = now
	meta.TurnCount = state.TurnCount
	meta.PlayerAlive = state.PlayerState.Alive
	if err := fsatomic.WriteJSON(l.metaFile(), meta); err != nil {
		return apperrors.PersistentDiskFailure(err, "update meta for %s", id)
	}

	if s.index != nil {
		if err := s.index.Upsert(meta); err != nil {
			s.log.Warn().Err(err).Str("session_id", id).Msg("metadata index upsert failed on save")
		}
	}
	return nil
}

// LoadHistory returns the full history for S.
func (s *Store) LoadHistory(id string) ([]HistoryEntry, error) {
	if err := sessionid.Validate(id); err != nil {
		return nil, err
	}
	unlock := s.lockFor(id)
	defer unlock()
	return s.loadHistoryLocked(id)
}

func (s *Store) loadHistoryLocked(id string) ([]HistoryEntry, error) {
	l := newLayout(s.root, id)
	var hist []HistoryEntry
	if err := fsatomic.ReadJSON(l.historyFile(), &hist); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []HistoryEntry{}, nil
		}
		s.log.Warn().Err(err).Str("session_id", id).Msg("history.json parse failure, treating as empty")
		return []HistoryEntry{}, nil
	}
	return hist, nil
}

// GetHistory returns the last lastN entries (0 or negative means all).
func (s *Store) GetHistory(id string, lastN int) ([]HistoryEntry, error) {
	hist, err := s.LoadHistory(id)
	if err != nil {
		return nil, err
	}
	if lastN > 0 && lastN < len(hist) {
		return hist[len(hist)-lastN:], nil
	}
	return hist, nil
}

// AppendHistory appends entry under the session lock and rewrites
// history.json atomically. A write failure here must abort the whole turn
// per §4.4's "History append failure" rule; the caller is responsible for
// not having saved state yet when this is invoked in that order, or for
// treating the combined failure as TurnFailed.
func (s *Store) AppendHistory(id string, entry HistoryEntry) error {
	if err := sessionid.Validate(id); err != nil {
		return err
	}
	unlock := s.lockFor(id)
	defer unlock()

	hist, err := s.loadHistoryLocked(id)
	if err != nil {
		return err
	}
	if entry.EntryID == "" {
		// A compact, sortable, locally-unique id: cheaper than a v4 UUID
		// and orderable by generation time, which a full history replay
		// benefits from. Session ids themselves still use uuid.NewString
		// since they are caller-facing and collision-checked explicitly.
		entry.EntryID = xid.New().String()
	}
	hist = append(hist, entry)
	l := newLayout(s.root, id)
	if err := fsatomic.WriteJSON(l.historyFile(), hist); err != nil {
		return apperrors.PersistentDiskFailure(err, "append history for %s", id)
	}
	return nil
}

// ListSessions returns session metadata sorted by sortKey ("last_accessed"
// or "created_at", descending), capped at limit (0 means no cap). Uses the
// SQLite index when available; falls back to a directory scan otherwise.
func (s *Store) ListSessions(sortKey string, limit int) ([]SessionMetadata, error) {
	if s.index != nil {
		metas, err := s.index.List(sortKey, limit)
		if err == nil {
			return metas, nil
		}
		s.log.Warn().Err(err).Msg("metadata index list failed, falling back to directory scan")
	}
	return s.scanSessions(sortKey, limit)
}

func (s *Store) scanSessions(sortKey string, limit int) ([]SessionMetadata, error) {
	sessionsDir := fmt.Sprintf("%s/sessions", s.root)
	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []SessionMetadata{}, nil
		}
		return nil, apperrors.PersistentDiskFailure(err, "scan sessions directory")
	}

	var metas []SessionMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		l := newLayout(s.root, e.Name())
		var meta SessionMetadata
		if err := fsatomic.ReadJSON(l.metaFile(), &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		if sortKey == "created_at" {
			return metas[i].CreatedAt > metas[j].CreatedAt
		}
		return metas[i].LastAccessed > metas[j].LastAccessed
	})
	if limit > 0 && limit < len(metas) {
		metas = metas[:limit]
	}
	return metas, nil
}

// DeleteSession refuses the reserved "default" id; otherwise removes the
// entire session directory recursively, including tapes/films/images.
func (s *Store) DeleteSession(id string) error {
	if err := sessionid.Validate(id); err != nil {
		return err
	}
	if id == sessionid.DefaultID {
		return apperrors.InvalidInput("the %q session cannot be deleted", sessionid.DefaultID)
	}
	unlock := s.lockFor(id)
	defer unlock()

	l := newLayout(s.root, id)
	if _, err := os.Stat(l.dir()); errors.Is(err, os.ErrNotExist) {
		return apperrors.NotFound("session %q not found", id)
	}
	if err := os.RemoveAll(l.dir()); err != nil {
		return apperrors.PersistentDiskFailure(err, "delete session %s", id)
	}
	if s.index != nil {
		if err := s.index.Delete(id); err != nil {
			s.log.Warn().Err(err).Str("session_id", id).Msg("metadata index delete failed")
		}
	}
	s.log.Info().Str("session_id", id).Msg("session deleted")
	return nil
}

// Reset loads default state and writes it out, used by the Death/Restart
// Orchestrator's Restart path. Unlike DeleteSession, Reset is permitted on
// the "default" id.
func (s *Store) Reset(id string) (WorldState, error) {
	if err := sessionid.Validate(id); err != nil {
		return WorldState{}, err
	}
	unlock := s.lockFor(id)
	defer unlock()

	fresh := DefaultState()
	if err := s.writeStateLocked(id, fresh); err != nil {
		return WorldState{}, err
	}
	l := newLayout(s.root, id)
	if err := fsatomic.WriteJSON(l.historyFile(), []HistoryEntry{}); err != nil {
		return WorldState{}, apperrors.PersistentDiskFailure(err, "clear history for %s", id)
	}
	return fresh, nil
}

// GetMetadata returns the metadata record for id without touching state.
func (s *Store) GetMetadata(id string) (SessionMetadata, error) {
	if err := sessionid.Validate(id); err != nil {
		return SessionMetadata{}, err
	}
	unlock := s.lockFor(id)
	defer unlock()

	l := newLayout(s.root, id)
	var meta SessionMetadata
	if err := fsatomic.ReadJSON(l.metaFile(), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SessionMetadata{}, apperrors.NotFound("session %q not found", id)
		}
		return SessionMetadata{}, apperrors.PersistentDiskFailure(err, "read meta for %s", id)
	}
	return meta, nil
}

// RebuildIndex rescans the sessions directory and repopulates the SQLite
// metadata index from disk, used at process startup and on every
// maintenance sweep so the index never drifts permanently from the JSON
// files that remain authoritative.
// A no-op when the index is disabled.
func (s *Store) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	metas, err := s.scanSessions("last_accessed", 0)
	if err != nil {
		return err
	}
	return s.index.Rebuild(ctx, metas)
}

// ImagePath returns the absolute path a new generated frame for id should
// be written to under its images/ directory.
func (s *Store) ImagePath(id, filename string) string {
	return newLayout(s.root, id).imagesDir() + "/" + filename
}

// ImagesDir returns the images/ directory for id, used by the HTTP
// surface's static file handler.
func (s *Store) ImagesDir(id string) string {
	return newLayout(s.root, id).imagesDir()
}

// TapesDir returns the tapes/ directory for id, used by the Death
// Orchestrator to persist replay artifacts.
func (s *Store) TapesDir(id string) string {
	return newLayout(s.root, id).tapesDir()
}

// VideosDir returns the films/final/ directory for id, used by the HTTP
// surface's static video file handler.
func (s *Store) VideosDir(id string) string {
	return newLayout(s.root, id).filmFinal()
}
