// Package countdown implements the Countdown/Timeout Coordinator (spec
// §4.6): a wall-clock deadline race against player input, resolved by a
// single compare-and-set so exactly one of {PlayerInput, Deadline} is
// ever delivered.
package countdown

import (
	"sync/atomic"
	"time"

	"github.com/turnengine/core/internal/clock"
)

// Outcome is the resolution event delivered by a Countdown.
type Outcome int

const (
	// OutcomeNone is never observed through Outcome(); it exists only as
	// the unresolved zero value.
	OutcomeNone Outcome = iota
	OutcomePlayerInput
	OutcomeDeadline
	OutcomeCancelled
)

// Countdown races a deadline timer against player input for one turn's
// Phase-B window. It is single-use: create a new Countdown per window.
type Countdown struct {
	resolved atomic.Bool
	result   Outcome
	done     chan struct{}
	progress chan struct{}
	timer    clock.Timer
}

// Start begins the countdown: a timer fires Deadline after d; Progress()
// emits opaque tick signals at progressInterval until resolution.
func Start(mono clock.Monotonic, d, progressInterval time.Duration) *Countdown {
	c := &Countdown{
		done:     make(chan struct{}),
		progress: make(chan struct{}, 64),
		timer:    mono.NewTimer(d),
	}

	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.timer.C():
				c.resolve(OutcomeDeadline)
				return
			case <-ticker.C:
				select {
				case c.progress <- struct{}{}:
				default:
				}
			case <-c.done:
				return
			}
		}
	}()

	return c
}

// resolve performs the single compare-and-set: only the first caller
// (timer fire, player input, or explicit cancel) wins.
func (c *Countdown) resolve(outcome Outcome) bool {
	if !c.resolved.CompareAndSwap(false, true) {
		return false
	}
	c.timer.Stop()
	c.result = outcome
	close(c.done)
	return true
}

// PlayerInput resolves the countdown in favor of the player, cancelling
// the timer. Returns false if the countdown was already resolved (the
// deadline won, or it was cancelled) — a no-op in that case.
func (c *Countdown) PlayerInput() bool {
	return c.resolve(OutcomePlayerInput)
}

// Cancel resolves the countdown with neither event, used by Restart or an
// explicit external cancel (spec: "resolves the countdown with neither
// event, treated as a no-op").
func (c *Countdown) Cancel() bool {
	return c.resolve(OutcomeCancelled)
}

// Outcome blocks until the countdown resolves and returns the winning
// event. Safe to call from multiple goroutines and more than once.
func (c *Countdown) Outcome() Outcome {
	<-c.done
	return c.result
}

// Progress returns the channel of opaque progress ticks. Purely
// observational; has no effect on resolution.
func (c *Countdown) Progress() <-chan struct{} {
	return c.progress
}
