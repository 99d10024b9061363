// Package fate implements the Fate Resolver (spec §4.7): a weighted
// random modifier drawn from a cryptographic-quality source, consumed by
// the Turn Pipeline's narrative prompt.
//
// No library in the retrieval pack wraps crypto/rand for weighted
// selection, so this is a small hand-written inversion-sampling helper
// over the stdlib primitive (documented in DESIGN.md as a justified
// standard-library use: the spec's own requirement names crypto/rand's
// "cryptographic-quality source", which is itself the stdlib package).
package fate

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/turnengine/core/internal/session"
)

const rollSpace = 100

// Resolver is the production Fate Resolver, wrapping Roll behind an
// interface so the Turn Pipeline can substitute a stub in tests (spec
// scenario E1 stubs the resolver to NORMAL).
type Resolver struct{}

// Roll draws a fate value via the package-level Roll function.
func (Resolver) Roll() (session.Fate, error) { return Roll() }

// Roll draws LUCKY (25%), NORMAL (50%), or UNLUCKY (25%) from
// crypto/rand. Not applied to TimeoutPenalty events; those are always
// recorded as NORMAL by the caller without invoking Roll.
func Roll() (session.Fate, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(rollSpace))
	if err != nil {
		return "", fmt.Errorf("fate: draw random value: %w", err)
	}
	v := n.Int64()
	switch {
	case v < 25:
		return session.FateLucky, nil
	case v < 75:
		return session.FateNormal, nil
	default:
		return session.FateUnlucky, nil
	}
}
