package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "OPENRTKLAW"

// Config is the top-level configuration for openrtklaw.
type Config struct {
	Enabled     bool              `yaml:"enabled" mapstructure:"enabled"`
	Verbose     bool              `yaml:"verbose" mapstructure:"verbose"` // log every rewrite as "original -> rewritten"
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Guards      GuardsConfig      `yaml:"guards" mapstructure:"guards"`
	Tracking    TrackingConfig    `yaml:"tracking" mapstructure:"tracking"`
	DecisionLog DecisionLogConfig `yaml:"decision_log" mapstructure:"decision_log"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// RulesConfig controls the effective rule table.
type RulesConfig struct {
	File    string   `yaml:"file" mapstructure:"file"`       // custom rules YAML, optional
	Mode    string   `yaml:"mode" mapstructure:"mode"`       // append, prepend or replace
	Disable []string `yaml:"disable" mapstructure:"disable"` // rule names to drop
}

// GuardsConfig holds additional skip guards.
type GuardsConfig struct {
	SkipPatterns []string `yaml:"skip_patterns" mapstructure:"skip_patterns"` // glob patterns
	PolicyFile   string   `yaml:"policy_file" mapstructure:"policy_file"`     // Rego module
}

// TrackingConfig controls the SQLite rewrite history.
type TrackingConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath      string `yaml:"db_path" mapstructure:"db_path"`
	HistoryDays int    `yaml:"history_days" mapstructure:"history_days"`
}

// DecisionLogConfig controls the JSONL decision audit log.
type DecisionLogConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Path            string `yaml:"path" mapstructure:"path"`
	MaxSizeMB       int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	SampleUnchanged int    `yaml:"sample_unchanged" mapstructure:"sample_unchanged"` // log 1-in-N unchanged decisions
}

// ServerConfig holds settings for the HTTP rewrite service.
type ServerConfig struct {
	Addr       string `yaml:"addr" mapstructure:"addr"`
	WatchRules bool   `yaml:"watch_rules" mapstructure:"watch_rules"`
}

// LoggingConfig holds logging preferences.
type LoggingConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // text or json
	Level  string `yaml:"level" mapstructure:"level"`
}

// setDefaults registers default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("enabled", true)
	v.SetDefault("verbose", false)
	v.SetDefault("rules.file", "")
	v.SetDefault("rules.mode", "append")
	v.SetDefault("rules.disable", []string{})
	v.SetDefault("guards.skip_patterns", []string{})
	v.SetDefault("guards.policy_file", "")
	v.SetDefault("tracking.enabled", true)
	v.SetDefault("tracking.db_path", DefaultTrackingPath())
	v.SetDefault("tracking.history_days", 90)
	v.SetDefault("decision_log.enabled", false)
	v.SetDefault("decision_log.path", DefaultDecisionLogPath())
	v.SetDefault("decision_log.max_size_mb", 10)
	v.SetDefault("decision_log.sample_unchanged", 10)
	v.SetDefault("server.addr", "127.0.0.1:7878")
	v.SetDefault("server.watch_rules", true)
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")
}

// DefaultConfigDir returns the default configuration directory path.
func DefaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "openrtklaw"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "openrtklaw"), nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultTrackingPath returns the default SQLite history location under
// the XDG data directory.
func DefaultTrackingPath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "openrtklaw", "history.db")
}

// DefaultDecisionLogPath returns the default decision log location under
// the XDG state directory.
func DefaultDecisionLogPath() string {
	return filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), "openrtklaw", "decisions.jsonl")
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// Load builds the configuration from defaults, the YAML file and
// OPENRTKLAW_* environment variables, in increasing precedence. An empty
// path looks for config.yaml in DefaultConfigDir; a missing default file
// is not an error, a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	// Every key has a default, so AutomaticEnv covers all of them.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readFile(v, path); err != nil {
		return nil, err
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading a file or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	return cfg
}

func readFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else if dir, err := DefaultConfigDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	} else {
		slog.Warn("no config directory, using defaults", "error", err)
		return nil
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		slog.Debug("config loaded", "path", v.ConfigFileUsed())
		return nil
	case path == "" && errors.As(err, &notFound):
		slog.Debug("no config file, using defaults")
		return nil
	default:
		return fmt.Errorf("read config: %w", err)
	}
}

// WriteDefault creates a default config file at the given path (or the
// default location if path is empty). It does not overwrite an existing file.
func WriteDefault(path string) (string, error) {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return "", err
		}
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	content := `# openrtklaw configuration
# See: openrtklaw --help

enabled: true
verbose: false        # log every rewrite as "original -> rewritten"

rules:
  file: ""            # extra rules (YAML), see "openrtklaw rules validate"
  mode: append        # append, prepend or replace
  disable: []         # built-in rule names to turn off, e.g. [cat, curl]

guards:
  skip_patterns: []   # glob patterns never rewritten, e.g. ["*terraform apply*"]
  policy_file: ""     # Rego module defining data.openrtklaw.skip

tracking:
  enabled: true
  db_path: "` + DefaultTrackingPath() + `"
  history_days: 90

decision_log:
  enabled: false
  path: "` + DefaultDecisionLogPath() + `"
  max_size_mb: 10
  sample_unchanged: 10

server:
  addr: "127.0.0.1:7878"
  watch_rules: true

logging:
  format: text        # text or json
  level: info
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}

	return path, nil
}
