// Package durationspec parses the compact duration strings used in
// configuration (countdown deadlines, restart deadlines, generator
// timeouts). Adapted from the teacher's cron duration grammar
// (pkg/cron/duration.go), trimmed to the units this domain needs.
package durationspec

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var pattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ms|s|m|h)?$`)

// Parse parses a duration string such as "15s", "30s", "1.5m", or "250ms".
// A bare number is interpreted using defaultUnit ("s", "ms", "m", or "h").
func Parse(raw string, defaultUnit string) (time.Duration, error) {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	if trimmed == "" {
		return 0, fmt.Errorf("durationspec: empty duration")
	}
	matches := pattern.FindStringSubmatch(trimmed)
	if matches == nil {
		return 0, fmt.Errorf("durationspec: invalid duration %q", raw)
	}
	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("durationspec: invalid duration %q", raw)
	}
	unit := matches[2]
	if unit == "" {
		unit = defaultUnit
	}
	var scale time.Duration
	switch unit {
	case "ms":
		scale = time.Millisecond
	case "s":
		scale = time.Second
	case "m":
		scale = time.Minute
	case "h":
		scale = time.Hour
	default:
		return 0, fmt.Errorf("durationspec: invalid unit in %q", raw)
	}
	return time.Duration(value * float64(scale)), nil
}

// MustParse parses raw and panics on error. Intended for constant
// defaults defined in code, not for parsing user-supplied configuration.
func MustParse(raw string, defaultUnit string) time.Duration {
	d, err := Parse(raw, defaultUnit)
	if err != nil {
		panic(err)
	}
	return d
}
