// Package fsatomic provides crash-safe JSON file persistence: every write
// lands in a temp file in the same directory and is then renamed over the
// target, so a crash mid-write never leaves a half-written file in place.
//
// Grounded on the other_examples filestore pattern
// (go-mizu-mizu/blueprints-bot pkg/session saveIndexLocked): write to a
// uniquely named ".fsatomic-*.tmp" file beside path, fsync, then
// os.Rename(tmp, path), cleaning up the temp file on any failure before
// the rename.
package fsatomic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSON marshals v as indented JSON and atomically replaces path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("fsatomic: marshal %s: %w", path, err)
	}
	return Write(path, data)
}

// Write atomically replaces path with data.
func Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".fsatomic-*.tmp")
	if err != nil {
		return fmt.Errorf("fsatomic: create temp in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("fsatomic: write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsatomic: sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsatomic: close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsatomic: chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsatomic: rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}

// ReadJSON reads path and unmarshals it into v. A missing file returns
// os.ErrNotExist unwrapped so callers can use errors.Is.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("fsatomic: unmarshal %s: %w", path, err)
	}
	return nil
}

// AppendLine appends a single line (a newline is added) to path, creating
// it if necessary. The append is not atomic: a crash can leave a partial
// line. (history.json is rewritten whole through WriteJSON, not this.)
func AppendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("fsatomic: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("fsatomic: append %s: %w", path, err)
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return fmt.Errorf("fsatomic: append newline %s: %w", path, err)
	}
	return f.Sync()
}
