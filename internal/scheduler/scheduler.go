// Package scheduler implements the Session Scheduler (spec §4.5): one
// cooperative worker per session, at-most-one-in-flight admission
// control, and per-turn cancellation.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/apperrors"
	"github.com/turnengine/core/internal/countdown"
	"github.com/turnengine/core/internal/frames"
	"github.com/turnengine/core/internal/sessionid"
	"github.com/turnengine/core/internal/turn"
)

// EventKind discriminates the scheduler.Event sum type (SPEC_FULL §C: a
// Go-idiom completion giving the three admitted event kinds one concrete
// representation instead of three ad-hoc call signatures).
type EventKind int

const (
	EventPlayerChoice EventKind = iota
	EventTimeoutPenalty
	EventRestart
)

// Event is the admitted trigger envelope dispatched to a session's
// worker.
type Event struct {
	Kind           EventKind
	ChoiceText     string // PlayerChoice
	IsCustomAction bool   // PlayerChoice
	PenaltyPhrase  string // TimeoutPenalty
}

// Result is delivered back to the caller once an accepted event finishes
// processing (or is rejected outright by admission control).
type Result struct {
	PhaseA turn.PhaseAResult
	PhaseB turn.PhaseBResult
	Err    error
}

// sessionWorker tracks the per-session mutable state the scheduler owns: the
// admission flag, the in-flight cancellation context, and the active
// countdown, if any. Spec §5: "No Frame Buffer, lock, or queue is indexed
// by anything other than session_id."
type sessionWorker struct {
	mu        sync.Mutex
	inFlight  bool
	startedAt time.Time
	cancel    context.CancelFunc
	countdown *countdown.Countdown
}

// Scheduler enforces at-most-one in-flight turn per session and routes
// admitted events to the Turn Pipeline.
type Scheduler struct {
	pipeline *turn.Pipeline
	frameBuf *frames.Buffer
	log      zerolog.Logger

	mu      sync.Mutex
	workers map[string]*sessionWorker
}

// New returns a Scheduler dispatching to pipeline.
func New(pipeline *turn.Pipeline, frameBuf *frames.Buffer, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		frameBuf: frameBuf,
		log:      log,
		workers:  make(map[string]*sessionWorker),
	}
}

func (s *Scheduler) workerFor(id string) *sessionWorker {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[id]
	if !ok {
		w = &sessionWorker{}
		s.workers[id] = w
	}
	return w
}

// Submit admits ev for session id if no turn is currently in flight.
// Admission is a single atomic check-and-set on the session's "turn in
// flight" flag: reject, never queue (spec §4.5/§9).
func (s *Scheduler) Submit(ctx context.Context, id string, ev Event) (Result, error) {
	if err := sessionid.Validate(id); err != nil {
		return Result{}, err
	}
	w := s.workerFor(id)

	w.mu.Lock()
	if ev.Kind != EventRestart && w.inFlight {
		w.mu.Unlock()
		return Result{}, apperrors.InvalidState("a turn is already in flight for session %q", id)
	}
	if ev.Kind == EventRestart {
		if w.cancel != nil {
			w.cancel()
		}
		if w.countdown != nil {
			w.countdown.Cancel()
		}
	}
	w.inFlight = true
	w.startedAt = time.Now()
	turnCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.inFlight = false
		w.startedAt = time.Time{}
		w.cancel = nil
		w.mu.Unlock()
	}()

	return s.run(turnCtx, id, ev)
}

func (s *Scheduler) run(ctx context.Context, id string, ev Event) (Result, error) {
	switch ev.Kind {
	case EventRestart:
		if _, err := s.pipeline.Store.Reset(id); err != nil {
			return Result{Err: err}, err
		}
		if err := s.frameBuf.Clear(id); err != nil {
			return Result{Err: err}, err
		}
		return Result{}, nil
	case EventTimeoutPenalty:
		res, err := s.pipeline.RunPhaseA(ctx, id, turn.Input{ChoiceText: ev.PenaltyPhrase, IsTimeout: true})
		return s.finishPhaseA(ctx, id, res, err)
	default: // EventPlayerChoice
		res, err := s.pipeline.RunPhaseA(ctx, id, turn.Input{ChoiceText: ev.ChoiceText, IsCustomAction: ev.IsCustomAction})
		return s.finishPhaseA(ctx, id, res, err)
	}
}

func (s *Scheduler) finishPhaseA(ctx context.Context, id string, phaseA turn.PhaseAResult, err error) (Result, error) {
	if err != nil {
		return Result{Err: err}, err
	}
	if ctx.Err() != nil {
		// Cancelled after Phase A committed: the write already happened
		// (Phase A's own commit point precedes this check), so there is
		// nothing left to roll back; only Phase B is skipped.
		return Result{PhaseA: phaseA, Err: apperrors.Cancelled("turn cancelled after commit")}, nil
	}
	if !phaseA.PlayerAlive {
		// Death Orchestrator takes over; no Phase B.
		return Result{PhaseA: phaseA}, nil
	}
	phaseB, err := s.pipeline.RunPhaseB(ctx, id)
	return Result{PhaseA: phaseA, PhaseB: phaseB, Err: err}, err
}

// AttachCountdown registers the active countdown for id so a subsequent
// Restart or explicit cancel can resolve it with neither event.
func (s *Scheduler) AttachCountdown(id string, c *countdown.Countdown) {
	w := s.workerFor(id)
	w.mu.Lock()
	w.countdown = c
	w.mu.Unlock()
}

// IsInFlight reports whether a turn is currently admitted for id, for
// diagnostics/tests.
func (s *Scheduler) IsInFlight(id string) bool {
	w := s.workerFor(id)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

// SessionsInFlightLongerThan returns the ids of every session whose
// admission flag has been held for longer than d, used by the
// maintenance sweep to flag a worker that likely crashed mid-turn
// without ever reaching Submit's deferred release.
func (s *Scheduler) SessionsInFlightLongerThan(d time.Duration) []string {
	s.mu.Lock()
	workers := make(map[string]*sessionWorker, len(s.workers))
	for id, w := range s.workers {
		workers[id] = w
	}
	s.mu.Unlock()

	now := time.Now()
	var stuck []string
	for id, w := range workers {
		w.mu.Lock()
		if w.inFlight && !w.startedAt.IsZero() && now.Sub(w.startedAt) > d {
			stuck = append(stuck, id)
		}
		w.mu.Unlock()
	}
	return stuck
}
