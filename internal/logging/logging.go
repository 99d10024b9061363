// Package logging sets up the process zerolog.Logger and provides the
// context-aware accessor every component uses instead of a package-level
// global. Grounded on the teacher's pkg/aiutil/logger_util.go.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds the process logger. When stderr is a terminal it uses
// zerolog's human-readable console writer (matching local development in
// the teacher's own CLI entrypoints); otherwise it emits newline-delimited
// JSON suitable for log aggregation.
func New(levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: colorable.NewColorableStderr(), TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// FromContext returns the logger attached to ctx if present and enabled,
// otherwise falls back to the supplied logger.
func FromContext(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if ctx != nil {
		if ctxLog := zerolog.Ctx(ctx); ctxLog != nil && ctxLog.GetLevel() != zerolog.Disabled {
			return ctxLog
		}
	}
	return fallback
}

// WithSession returns a logger with the session id attached, the unit of
// correlation used throughout the turn orchestration core.
func WithSession(log *zerolog.Logger, sessionID string) zerolog.Logger {
	return log.With().Str("session_id", sessionID).Logger()
}
