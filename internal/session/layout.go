package session

import "path/filepath"

// layout resolves every path under a session's directory. Centralizing
// this keeps the binding directory layout from spec §4.1/§6 in one place.
type layout struct {
	root string
}

func newLayout(storageRoot, id string) layout {
	return layout{root: filepath.Join(storageRoot, "sessions", id)}
}

func (l layout) dir() string          { return l.root }
func (l layout) metaFile() string     { return filepath.Join(l.root, "meta.json") }
func (l layout) stateFile() string    { return filepath.Join(l.root, "state.json") }
func (l layout) historyFile() string  { return filepath.Join(l.root, "history.json") }
func (l layout) imagesDir() string    { return filepath.Join(l.root, "images") }
func (l layout) tapesDir() string     { return filepath.Join(l.root, "tapes") }
func (l layout) filmsDir() string     { return filepath.Join(l.root, "films") }
func (l layout) filmSegments() string { return filepath.Join(l.root, "films", "segments") }
func (l layout) filmFinal() string    { return filepath.Join(l.root, "films", "final") }

func (l layout) subdirs() []string {
	return []string{l.imagesDir(), l.tapesDir(), l.filmSegments(), l.filmFinal()}
}
