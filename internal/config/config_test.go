package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points every XDG/HOME lookup at temp dirs so tests never read
// the developer's real configuration.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	return home
}

func TestDefaultValues(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() with no config file: %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"enabled", cfg.Enabled, true},
		{"verbose", cfg.Verbose, false},
		{"rules.mode", cfg.Rules.Mode, "append"},
		{"rules.file", cfg.Rules.File, ""},
		{"tracking.enabled", cfg.Tracking.Enabled, true},
		{"tracking.db_path", cfg.Tracking.DBPath, filepath.Join(home, "data", "openrtklaw", "history.db")},
		{"tracking.history_days", cfg.Tracking.HistoryDays, 90},
		{"decision_log.enabled", cfg.DecisionLog.Enabled, false},
		{"decision_log.path", cfg.DecisionLog.Path, filepath.Join(home, "state", "openrtklaw", "decisions.jsonl")},
		{"decision_log.max_size_mb", cfg.DecisionLog.MaxSizeMB, 10},
		{"decision_log.sample_unchanged", cfg.DecisionLog.SampleUnchanged, 10},
		{"server.addr", cfg.Server.Addr, "127.0.0.1:7878"},
		{"server.watch_rules", cfg.Server.WatchRules, true},
		{"logging.format", cfg.Logging.Format, "text"},
		{"logging.level", cfg.Logging.Level, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("default %s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	content := `enabled: false
verbose: true
rules:
  file: /etc/openrtklaw/rules.yaml
  mode: prepend
  disable: [cat, curl]
guards:
  skip_patterns:
    - "*terraform apply*"
  policy_file: /etc/openrtklaw/skip.rego
tracking:
  enabled: false
  history_days: 30
server:
  addr: "0.0.0.0:9000"
logging:
  format: json
  level: debug
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load(%s): %v", cfgPath, err)
	}

	if cfg.Enabled {
		t.Error("enabled = true, want false")
	}
	if !cfg.Verbose {
		t.Error("verbose = false, want true")
	}
	if cfg.Rules.Mode != "prepend" {
		t.Errorf("rules.mode = %q, want prepend", cfg.Rules.Mode)
	}
	if len(cfg.Rules.Disable) != 2 || cfg.Rules.Disable[1] != "curl" {
		t.Errorf("rules.disable = %v", cfg.Rules.Disable)
	}
	if len(cfg.Guards.SkipPatterns) != 1 || cfg.Guards.SkipPatterns[0] != "*terraform apply*" {
		t.Errorf("guards.skip_patterns = %v", cfg.Guards.SkipPatterns)
	}
	if cfg.Guards.PolicyFile != "/etc/openrtklaw/skip.rego" {
		t.Errorf("guards.policy_file = %q", cfg.Guards.PolicyFile)
	}
	if cfg.Tracking.Enabled || cfg.Tracking.HistoryDays != 30 {
		t.Errorf("tracking = %+v", cfg.Tracking)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestEnvVarOverrides(t *testing.T) {
	isolate(t)

	t.Setenv("OPENRTKLAW_ENABLED", "false")
	t.Setenv("OPENRTKLAW_VERBOSE", "true")
	t.Setenv("OPENRTKLAW_RULES_MODE", "replace")
	t.Setenv("OPENRTKLAW_TRACKING_HISTORY_DAYS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}

	if cfg.Enabled {
		t.Error("enabled should be false from OPENRTKLAW_ENABLED")
	}
	if !cfg.Verbose {
		t.Error("verbose should be true from OPENRTKLAW_VERBOSE")
	}
	if cfg.Rules.Mode != "replace" {
		t.Errorf("rules.mode = %q, want replace", cfg.Rules.Mode)
	}
	if cfg.Tracking.HistoryDays != 7 {
		t.Errorf("tracking.history_days = %d, want 7", cfg.Tracking.HistoryDays)
	}
}

func TestDefaultIgnoresEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("OPENRTKLAW_ENABLED", "false")
	t.Setenv("OPENRTKLAW_RULES_MODE", "bogus")

	cfg := Default()
	if !cfg.Enabled || cfg.Rules.Mode != "append" {
		t.Errorf("Default() = enabled %v, mode %q; want true, append", cfg.Enabled, cfg.Rules.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() should validate: %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("enabled: [true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() with malformed YAML should return error")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() with missing explicit path should return error")
	}
}

func TestWriteDefault(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	path, err := WriteDefault(cfgPath)
	if err != nil {
		t.Fatalf("WriteDefault(): %v", err)
	}
	if path != cfgPath {
		t.Errorf("WriteDefault returned %q, want %q", path, cfgPath)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load(written default): %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written default should validate: %v", err)
	}

	if err := os.WriteFile(cfgPath, []byte("custom content"), 0o644); err != nil {
		t.Fatalf("writing custom content: %v", err)
	}
	if _, err := WriteDefault(cfgPath); err != nil {
		t.Fatalf("WriteDefault() on existing file: %v", err)
	}
	data, _ := os.ReadFile(cfgPath)
	if string(data) != "custom content" {
		t.Error("WriteDefault should not overwrite existing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Enabled:     true,
			Rules:       RulesConfig{Mode: "append"},
			Tracking:    TrackingConfig{Enabled: true, DBPath: "/tmp/h.db", HistoryDays: 90},
			DecisionLog: DecisionLogConfig{Enabled: true, Path: "/tmp/d.jsonl", MaxSizeMB: 1},
			Server:      ServerConfig{Addr: "127.0.0.1:7878"},
			Logging:     LoggingConfig{Format: "text", Level: "info"},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad mode", func(c *Config) { c.Rules.Mode = "merge" }, "rules.mode"},
		{"replace without file", func(c *Config) { c.Rules.Mode = "replace" }, "requires rules.file"},
		{"empty skip pattern", func(c *Config) { c.Guards.SkipPatterns = []string{" "} }, "skip_patterns[0]"},
		{"no db path", func(c *Config) { c.Tracking.DBPath = "" }, "tracking.db_path"},
		{"zero history", func(c *Config) { c.Tracking.HistoryDays = 0 }, "history_days"},
		{"no log path", func(c *Config) { c.DecisionLog.Path = "" }, "decision_log.path"},
		{"zero log size", func(c *Config) { c.DecisionLog.MaxSizeMB = 0 }, "max_size_mb"},
		{"negative sample", func(c *Config) { c.DecisionLog.SampleUnchanged = -1 }, "sample_unchanged"},
		{"bad addr", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}
