// Package httpapi serves the minimal HTTP surface from spec §6. The
// teacher and the rest of the retrieval pack never pull in a router
// library for a from-scratch HTTP API (the teacher's own HTTP surface is
// Matrix's, not something exposed in the retrieved files), so this
// surface is served with the standard library's http.ServeMux Go 1.22+
// method+pattern routing, which needs no additional dependency.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/apperrors"
	"github.com/turnengine/core/internal/death"
	"github.com/turnengine/core/internal/scheduler"
	"github.com/turnengine/core/internal/session"
	"github.com/turnengine/core/internal/sessionid"
	"github.com/turnengine/core/internal/turn"
	"github.com/turnengine/core/internal/wsfeed"
)

// Server wires the Session Store, Scheduler, Turn Pipeline, and Death
// Orchestrator behind net/http handlers.
//
// The spec's two action endpoints map onto one scheduler event:
// POST .../action/image submits a PlayerChoice (which the Scheduler runs
// as Phase A followed immediately by Phase B, per spec §4.5) and returns
// only the Phase A result in its response body (the Phase B result is
// published to the feed); POST .../action/choices calls Phase B directly
// against the pipeline, bypassing the Scheduler's admission control,
// since Phase B is a pure derivation from already-committed state (spec
// §4.4: "Phase B never mutates state") and a client may want to re-fetch
// or refresh the choice list without re-running Phase A.
type Server struct {
	Store     *session.Store
	Scheduler *scheduler.Scheduler
	Pipeline  *turn.Pipeline
	Death     *death.Orchestrator
	Feed      *wsfeed.Hub // optional; nil disables event publishing
	Log       zerolog.Logger

	mux *http.ServeMux
}

// New builds the Server's route table. feed may be nil if the WebSocket
// surface is not wired up.
func New(store *session.Store, sched *scheduler.Scheduler, pipeline *turn.Pipeline, deathOrch *death.Orchestrator, feed *wsfeed.Hub, log zerolog.Logger) *Server {
	s := &Server{Store: store, Scheduler: sched, Pipeline: pipeline, Death: deathOrch, Feed: feed, Log: log}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) publish(ev wsfeed.Event) {
	if s.Feed != nil {
		s.Feed.Publish(ev)
	}
}

// ServeHTTP lets Server be used directly as an http.Handler (e.g. with
// http.ListenAndServe).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{id}/status", s.handleSessionStatus)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	s.mux.HandleFunc("POST /api/game/intro", s.handleIntro)
	s.mux.HandleFunc("POST /api/game/action/image", s.handleActionImage)
	s.mux.HandleFunc("POST /api/game/action/choices", s.handleActionChoices)

	s.mux.HandleFunc("GET /api/sessions/{id}/images/{file}", s.staticHandler(s.Store.ImagesDir))
	s.mux.HandleFunc("GET /api/sessions/{id}/tapes/{file}", s.staticHandler(s.Store.TapesDir))
	s.mux.HandleFunc("GET /api/sessions/{id}/videos/{file}", s.staticHandler(s.Store.VideosDir))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, map[string]string{"error": appErr.Code, "message": appErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "INTERNAL", "message": err.Error()})
}

type createSessionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SessionID   string `json:"session_id"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		// An empty body is a valid request (all fields default); only
		// reject bodies that are present but malformed.
		writeAppError(w, apperrors.InvalidInput("malformed request body: %v", err))
		return
	}

	meta, err := s.Store.CreateSession(req.Name, req.Description, req.SessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sortKey := r.URL.Query().Get("sort")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeAppError(w, apperrors.InvalidInput("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	metas, err := s.Store.ListSessions(sortKey, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

type sessionDetails struct {
	Metadata    session.SessionMetadata `json:"metadata"`
	State       session.WorldState      `json:"state"`
	HistoryTail []session.HistoryEntry  `json:"history_tail"`
}

const historyTailLength = 10

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := sessionid.Validate(id); err != nil {
		writeAppError(w, err)
		return
	}

	meta, err := s.Store.GetMetadata(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	state, err := s.Store.LoadState(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	tail, err := s.Store.GetHistory(id, historyTailLength)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionDetails{Metadata: meta, State: state, HistoryTail: tail})
}

type sessionStatus struct {
	SessionID   string `json:"session_id"`
	TurnCount   int    `json:"turn_count"`
	PlayerAlive bool   `json:"player_alive"`
	InFlight    bool   `json:"in_flight"`
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := sessionid.Validate(id); err != nil {
		writeAppError(w, err)
		return
	}

	state, err := s.Store.LoadState(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionStatus{
		SessionID:   id,
		TurnCount:   state.TurnCount,
		PlayerAlive: state.PlayerState.Alive,
		InFlight:    s.Scheduler.IsInFlight(id),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Store.DeleteSession(id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type introRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleIntro(w http.ResponseWriter, r *http.Request) {
	var req introRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperrors.InvalidInput("malformed request body: %v", err))
		return
	}
	meta, err := s.Store.CreateSession("", "", req.SessionID)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Kind == apperrors.KindAlreadyExists {
			// Re-entering an existing session's intro path is fine; fall
			// through with its existing metadata.
			meta, err = s.Store.GetMetadata(req.SessionID)
			if err != nil {
				writeAppError(w, err)
				return
			}
		} else {
			writeAppError(w, err)
			return
		}
	}
	state, err := s.Store.LoadState(meta.SessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": meta, "state": state})
}

type actionImageRequest struct {
	SessionID      string `json:"session_id"`
	Choice         string `json:"choice"`
	IsCustomAction bool   `json:"is_custom_action"`
}

func (s *Server) handleActionImage(w http.ResponseWriter, r *http.Request) {
	var req actionImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperrors.InvalidInput("malformed request body: %v", err))
		return
	}

	result, err := s.Scheduler.Submit(r.Context(), req.SessionID, scheduler.Event{
		Kind:           scheduler.EventPlayerChoice,
		ChoiceText:     req.Choice,
		IsCustomAction: req.IsCustomAction,
	})
	if result.Err != nil {
		writeAppError(w, result.Err)
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}

	s.publish(wsfeed.Event{Kind: wsfeed.EventPhaseAResult, SessionID: req.SessionID, Payload: result.PhaseA})
	if result.PhaseB.Choices[0] != "" {
		s.publish(wsfeed.Event{Kind: wsfeed.EventPhaseBResult, SessionID: req.SessionID, Payload: result.PhaseB})
	}

	if !result.PhaseA.PlayerAlive {
		s.beginDeathSequence(r.Context(), req.SessionID)
	}
	writeJSON(w, http.StatusOK, result.PhaseA)
}

func (s *Server) beginDeathSequence(ctx context.Context, id string) {
	if s.Death == nil {
		return
	}
	artifact, _, err := s.Death.Begin(ctx, id)
	if err != nil {
		s.Log.Warn().Err(err).Str("session_id", id).Msg("httpapi: death sequence could not begin")
		return
	}
	s.publish(wsfeed.Event{Kind: wsfeed.EventDeathBegun, SessionID: id, Payload: artifact})
}

type actionChoicesRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleActionChoices(w http.ResponseWriter, r *http.Request) {
	var req actionChoicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperrors.InvalidInput("malformed request body: %v", err))
		return
	}

	result, err := s.Pipeline.RunPhaseB(r.Context(), req.SessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// staticHandler builds a handler serving files from dirFor(id) under the
// binding filename validation (spec §6): the filename must match
// ^[A-Za-z0-9._-]+$ and must not contain path separators or "..".
func (s *Server) staticHandler(dirFor func(id string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		file := r.PathValue("file")
		if err := sessionid.Validate(id); err != nil {
			writeAppError(w, err)
			return
		}
		if err := sessionid.ValidateFilename(file); err != nil {
			writeAppError(w, err)
			return
		}
		http.ServeFile(w, r, filepath.Join(dirFor(id), file))
	}
}
