package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileAppliesDefaults(t *testing.T) {
	resolved, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json5"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved.CountdownDeadline != 30*time.Second {
		t.Fatalf("expected default 30s countdown deadline, got %v", resolved.CountdownDeadline)
	}
	if resolved.ReferenceWidth != 1 {
		t.Fatalf("expected default reference width 1, got %d", resolved.ReferenceWidth)
	}
}

func TestLoadParsesJSON5WithCommentsAndTrailingCommas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	body := `{
		// local dev override
		storage_root: "` + dir + `",
		http: { bind_address: "0.0.0.0:9090" },
		turn: {
			countdown_deadline: "45s",
			restart_deadline: "20s",
			reference_width: 2,
		},
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resolved, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved.StorageRoot != dir {
		t.Fatalf("expected storage_root %q, got %q", dir, resolved.StorageRoot)
	}
	if resolved.HTTPBindAddress != "0.0.0.0:9090" {
		t.Fatalf("expected bind address override, got %q", resolved.HTTPBindAddress)
	}
	if resolved.CountdownDeadline != 45*time.Second {
		t.Fatalf("expected countdown_deadline 45s, got %v", resolved.CountdownDeadline)
	}
	if resolved.ReferenceWidth != 2 {
		t.Fatalf("expected reference_width 2, got %d", resolved.ReferenceWidth)
	}
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	if err := os.WriteFile(path, []byte(`{ http: { bind_address: "127.0.0.1:1111" } }`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TURNENGINE_HTTP_BIND_ADDRESS", "127.0.0.1:2222")

	resolved, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved.HTTPBindAddress != "127.0.0.1:2222" {
		t.Fatalf("expected env override to win, got %q", resolved.HTTPBindAddress)
	}
}

func TestPlaceholderExpansionUsesHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	t.Setenv("TURNENGINE_STORAGE_ROOT", "{dataHome}/turnengine-test")

	resolved, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	expected := filepath.Join(home, "turnengine-test")
	if resolved.StorageRoot != expected {
		t.Fatalf("expected %q, got %q", expected, resolved.StorageRoot)
	}
}

func TestInvalidDurationReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	if err := os.WriteFile(path, []byte(`{ turn: { countdown_deadline: "not-a-duration" } }`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected invalid duration to error")
	}
}
