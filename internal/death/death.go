// Package death implements the Death / Restart Orchestrator (spec §4.9):
// detecting a terminal turn, assembling a replay artifact from the Frame
// Buffer, and coordinating an at-most-once restart against a deadline.
package death

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/apperrors"
	"github.com/turnengine/core/internal/clock"
	"github.com/turnengine/core/internal/countdown"
	"github.com/turnengine/core/internal/frames"
	"github.com/turnengine/core/internal/fsatomic"
	"github.com/turnengine/core/internal/generators"
	"github.com/turnengine/core/internal/scheduler"
	"github.com/turnengine/core/internal/sessionid"
	"github.com/turnengine/core/internal/wsfeed"
)

// ReplayArtifact describes the assembled artifact presented to the UI
// alongside the PlayAgain affordance.
type ReplayArtifact struct {
	Path      string
	SizeBytes int
}

// Orchestrator drives the Death sequence for terminal turns: replay
// assembly, tape persistence, and the PlayAgain/deadline race feeding
// exactly one Restart event into the Scheduler.
type Orchestrator struct {
	Frames          FrameSnapshotter
	Replay          generators.Replay
	TapesDir        func(id string) string
	Scheduler       *scheduler.Scheduler
	Mono            clock.Monotonic
	RestartDeadline time.Duration
	SizeBudgetBytes int
	Feed            *wsfeed.Hub // optional; nil disables event publishing
	Log             zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingDeath
}

// FrameSnapshotter is the subset of frames.Buffer the orchestrator needs
// (snapshot for replay assembly, clear once the tape is persisted), named
// here so death depends on a narrow consumer-owned interface rather than
// the concrete Frame Buffer type.
type FrameSnapshotter interface {
	Snapshot(id string) ([]frames.Ref, error)
	Clear(id string) error
}

// pendingDeath tracks the live countdown for one session's active death
// sequence, so a second PlayAgain after resolution is a verified no-op.
type pendingDeath struct {
	mu        sync.Mutex
	countdown *countdown.Countdown
	resolved  bool
}

// New returns an Orchestrator wired to its collaborators.
func New(fb FrameSnapshotter, replay generators.Replay, tapesDir func(id string) string, sched *scheduler.Scheduler, mono clock.Monotonic, restartDeadline time.Duration, sizeBudgetBytes int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Frames:          fb,
		Replay:          replay,
		TapesDir:        tapesDir,
		Scheduler:       sched,
		Mono:            mono,
		RestartDeadline: restartDeadline,
		SizeBudgetBytes: sizeBudgetBytes,
		Log:             log,
		pending:         make(map[string]*pendingDeath),
	}
}

// Begin is invoked when a turn result marks the player terminal. It
// snapshots the Frame Buffer, assembles and persists the replay artifact,
// clears the Frame Buffer, and starts the restart deadline countdown. The returned artifact and
// countdown back the UI's PlayAgain affordance; the countdown resolves
// automatically (step 7) if PlayAgain is never called.
func (o *Orchestrator) Begin(ctx context.Context, id string) (ReplayArtifact, *countdown.Countdown, error) {
	if err := sessionid.Validate(id); err != nil {
		return ReplayArtifact{}, nil, err
	}

	refs, err := o.Frames.Snapshot(id)
	if err != nil {
		return ReplayArtifact{}, nil, err
	}
	if len(refs) < 2 {
		return ReplayArtifact{}, nil, apperrors.InvalidState("not enough frames recorded for replay (have %d, need at least 2)", len(refs))
	}

	paths := make([]string, 0, len(refs))
	for _, r := range refs {
		paths = append(paths, r.Path)
	}

	data, err := o.Replay.Assemble(paths, o.SizeBudgetBytes)
	if err != nil {
		return ReplayArtifact{}, nil, err
	}

	tapePath := filepath.Join(o.TapesDir(id), "replay.gif")
	if err := fsatomic.Write(tapePath, data); err != nil {
		return ReplayArtifact{}, nil, apperrors.PersistentDiskFailure(err, "persist replay artifact for %s", id)
	}
	if err := o.Frames.Clear(id); err != nil {
		o.Log.Warn().Err(err).Str("session_id", id).Msg("death: frame buffer clear after replay failed")
	}

	pd := &pendingDeath{countdown: countdown.Start(o.Mono, o.RestartDeadline, o.RestartDeadline/10)}
	o.mu.Lock()
	o.pending[id] = pd
	o.mu.Unlock()
	o.Scheduler.AttachCountdown(id, pd.countdown)

	go o.awaitResolution(ctx, id, pd)

	return ReplayArtifact{Path: tapePath, SizeBytes: len(data)}, pd.countdown, nil
}

// PlayAgain is the manual-click path (step 6): it resolves the deadline
// in the player's favor if the death sequence has not already resolved.
// A call after resolution (double-click, or a click racing the auto
// deadline) is a verified no-op.
func (o *Orchestrator) PlayAgain(id string) bool {
	o.mu.Lock()
	pd, ok := o.pending[id]
	o.mu.Unlock()
	if !ok {
		return false
	}
	return pd.countdown.PlayerInput()
}

// awaitResolution blocks for the countdown's single outcome and emits
// exactly one Restart event through the Scheduler, regardless of which
// of {PlayerInput, Deadline} won (step 8: at-most-once guarantee).
func (o *Orchestrator) awaitResolution(ctx context.Context, id string, pd *pendingDeath) {
	outcome := pd.countdown.Outcome()

	pd.mu.Lock()
	if pd.resolved {
		pd.mu.Unlock()
		return
	}
	pd.resolved = true
	pd.mu.Unlock()

	o.mu.Lock()
	delete(o.pending, id)
	o.mu.Unlock()

	if outcome == countdown.OutcomeCancelled {
		// Resolved by an external cancel (e.g. a concurrent Restart
		// already in flight for this session); do not emit a second one.
		return
	}

	if _, err := o.Scheduler.Submit(ctx, id, scheduler.Event{Kind: scheduler.EventRestart}); err != nil {
		o.Log.Warn().Err(err).Str("session_id", id).Msg("death: restart submission failed")
		return
	}
	if o.Feed != nil {
		o.Feed.Publish(wsfeed.Event{Kind: wsfeed.EventRestart, SessionID: id})
	}
}
