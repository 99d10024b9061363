// Package config loads process configuration from a JSON5 file (the
// teacher's tolerant-JSON parser, pkg/cron/store.go) describing a YAML
// shaped config struct (go.mau.fi/util-adjacent yaml.v3 tags, matching
// the teacher's pkg/connector/config.go), with environment-variable
// overrides and {placeholder} expansion grounded on the teacher's
// resolveSessionStorePath pattern (pkg/simpleruntime/session_store.go).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/turnengine/core/internal/durationspec"
)

// Config is the turn orchestration core's process configuration.
type Config struct {
	StorageRoot string     `yaml:"storage_root" json:"storage_root"`
	HTTP        HTTPConfig `yaml:"http" json:"http"`
	Turn        TurnConfig `yaml:"turn" json:"turn"`
	LogLevel    string     `yaml:"log_level" json:"log_level"`
	IndexDSN    string     `yaml:"index_dsn" json:"index_dsn"`
}

// HTTPConfig configures the optional HTTP/WebSocket surface (spec §6).
type HTTPConfig struct {
	BindAddress string `yaml:"bind_address" json:"bind_address"`
}

// TurnConfig configures the deadlines and generator timeouts the Turn
// Pipeline, Countdown Coordinator, and Reference Buffer need (spec
// §4.4/§4.6/§4.8/§4.9).
type TurnConfig struct {
	CountdownDeadline  string `yaml:"countdown_deadline" json:"countdown_deadline"`
	RestartDeadline    string `yaml:"restart_deadline" json:"restart_deadline"`
	ReferenceWidth     int    `yaml:"reference_width" json:"reference_width"`
	NarrativeTimeout   string `yaml:"narrative_timeout" json:"narrative_timeout"`
	ImageBaseTimeout   string `yaml:"image_base_timeout" json:"image_base_timeout"`
	ImagePerRefTimeout string `yaml:"image_per_ref_timeout" json:"image_per_ref_timeout"`
	ImageMaxTimeout    string `yaml:"image_max_timeout" json:"image_max_timeout"`
	ChoicesTimeout     string `yaml:"choices_timeout" json:"choices_timeout"`
	ReplaySizeBudget   int    `yaml:"replay_size_budget_bytes" json:"replay_size_budget_bytes"`
}

// Resolved is Config with every duration string parsed and every
// {placeholder} expanded, ready to hand to the components that need
// concrete time.Duration values.
type Resolved struct {
	StorageRoot        string
	HTTPBindAddress    string
	CountdownDeadline  time.Duration
	RestartDeadline    time.Duration
	ReferenceWidth     int
	NarrativeTimeout   time.Duration
	ImageBaseTimeout   time.Duration
	ImagePerRefTimeout time.Duration
	ImageMaxTimeout    time.Duration
	ChoicesTimeout     time.Duration
	ReplaySizeBudget   int
	LogLevel           string
	IndexDSN           string
}

func defaults() Config {
	return Config{
		StorageRoot: "{dataHome}/turnengine",
		HTTP:        HTTPConfig{BindAddress: "127.0.0.1:8080"},
		Turn: TurnConfig{
			CountdownDeadline:  "30s",
			RestartDeadline:    "30s",
			ReferenceWidth:     1,
			NarrativeTimeout:   "15s",
			ImageBaseTimeout:   "20s",
			ImagePerRefTimeout: "5s",
			ImageMaxTimeout:    "60s",
			ChoicesTimeout:     "10s",
			ReplaySizeBudget:   5 << 20,
		},
		LogLevel: "info",
		IndexDSN: "{dataHome}/turnengine/index.db",
	}
}

// Load reads path, applies defaults for anything unset, then
// TURNENGINE_-prefixed environment overrides, then placeholder expansion,
// and returns a fully Resolved configuration. A missing path falls back
// to defaults with only env/placeholder resolution applied.
//
// Two file formats are accepted, chosen by extension: ".yaml"/".yml" is
// parsed with the struct's yaml tags (a deployment's checked-in config,
// matching the teacher's yaml.v3-shaped connector config), anything else
// is parsed as JSON5 so a local development copy may carry comments and
// trailing commas (the teacher's own tolerant-JSON parser).
func Load(path string) (Resolved, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Resolved{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			loaded := defaults()
			if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
				if err := yaml.Unmarshal(data, &loaded); err != nil {
					return Resolved{}, fmt.Errorf("config: parse %s: %w", path, err)
				}
			} else if err := json5.Unmarshal(data, &loaded); err != nil {
				return Resolved{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
			cfg = loaded
		}
	}

	applyEnvOverrides(&cfg)
	cfg.StorageRoot = expandPlaceholders(cfg.StorageRoot)
	cfg.IndexDSN = expandPlaceholders(cfg.IndexDSN)

	return resolve(cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TURNENGINE_STORAGE_ROOT"); v != "" {
		cfg.StorageRoot = v
	}
	if v := os.Getenv("TURNENGINE_HTTP_BIND_ADDRESS"); v != "" {
		cfg.HTTP.BindAddress = v
	}
	if v := os.Getenv("TURNENGINE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TURNENGINE_INDEX_DSN"); v != "" {
		cfg.IndexDSN = v
	}
	if v := os.Getenv("TURNENGINE_COUNTDOWN_DEADLINE"); v != "" {
		cfg.Turn.CountdownDeadline = v
	}
	if v := os.Getenv("TURNENGINE_RESTART_DEADLINE"); v != "" {
		cfg.Turn.RestartDeadline = v
	}
}

// expandPlaceholders resolves the {dataHome} placeholder against the
// user's home directory, mirroring the teacher's {agentId} expansion in
// resolveSessionStorePath, generalized to the one placeholder this
// domain needs.
func expandPlaceholders(raw string) string {
	if !strings.Contains(raw, "{dataHome}") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return strings.ReplaceAll(raw, "{dataHome}", home)
}

func resolve(cfg Config) (Resolved, error) {
	var out Resolved
	var err error

	out.StorageRoot = cfg.StorageRoot
	out.HTTPBindAddress = cfg.HTTP.BindAddress
	out.ReferenceWidth = cfg.Turn.ReferenceWidth
	out.ReplaySizeBudget = cfg.Turn.ReplaySizeBudget
	out.LogLevel = cfg.LogLevel
	out.IndexDSN = cfg.IndexDSN

	if out.CountdownDeadline, err = durationspec.Parse(cfg.Turn.CountdownDeadline, "s"); err != nil {
		return Resolved{}, fmt.Errorf("config: countdown_deadline: %w", err)
	}
	if out.RestartDeadline, err = durationspec.Parse(cfg.Turn.RestartDeadline, "s"); err != nil {
		return Resolved{}, fmt.Errorf("config: restart_deadline: %w", err)
	}
	if out.NarrativeTimeout, err = durationspec.Parse(cfg.Turn.NarrativeTimeout, "s"); err != nil {
		return Resolved{}, fmt.Errorf("config: narrative_timeout: %w", err)
	}
	if out.ImageBaseTimeout, err = durationspec.Parse(cfg.Turn.ImageBaseTimeout, "s"); err != nil {
		return Resolved{}, fmt.Errorf("config: image_base_timeout: %w", err)
	}
	if out.ImagePerRefTimeout, err = durationspec.Parse(cfg.Turn.ImagePerRefTimeout, "s"); err != nil {
		return Resolved{}, fmt.Errorf("config: image_per_ref_timeout: %w", err)
	}
	if out.ImageMaxTimeout, err = durationspec.Parse(cfg.Turn.ImageMaxTimeout, "s"); err != nil {
		return Resolved{}, fmt.Errorf("config: image_max_timeout: %w", err)
	}
	if out.ChoicesTimeout, err = durationspec.Parse(cfg.Turn.ChoicesTimeout, "s"); err != nil {
		return Resolved{}, fmt.Errorf("config: choices_timeout: %w", err)
	}

	if out.ReferenceWidth <= 0 {
		out.ReferenceWidth = 1
	}
	if out.ReplaySizeBudget <= 0 {
		out.ReplaySizeBudget = 5 << 20
	}

	return out, nil
}
