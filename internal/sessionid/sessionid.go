// Package sessionid validates the session identifier format binding from
// the session directory layout contract.
package sessionid

import (
	"regexp"

	"github.com/turnengine/core/internal/apperrors"
)

// DefaultID is the reserved session id. It may be created implicitly or
// reset, but never deleted.
const DefaultID = "default"

var pattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// Validate rejects anything outside the binding pattern, including empty
// strings, path separators, and "." or "..".
func Validate(id string) error {
	if !pattern.MatchString(id) {
		return apperrors.InvalidInput("invalid session id: %q", id)
	}
	return nil
}

// filenamePattern is the binding pattern for static-served file names
// (images, tapes, videos).
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateFilename rejects filenames containing path separators, "." or
// ".." components, or characters outside the binding pattern.
func ValidateFilename(name string) error {
	if name == "" || name == "." || name == ".." {
		return apperrors.InvalidInput("invalid filename: %q", name)
	}
	if !filenamePattern.MatchString(name) {
		return apperrors.InvalidInput("invalid filename: %q", name)
	}
	for i := 0; i+1 < len(name); i++ {
		if name[i] == '.' && name[i+1] == '.' {
			return apperrors.InvalidInput("invalid filename: %q", name)
		}
	}
	return nil
}
