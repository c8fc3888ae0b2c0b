package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Backend kinds accepted by backend.kind.
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Backend selects the record and identity provider.
type Backend struct {
	Kind string `toml:"kind"`
}

// Supabase contains connection settings for the hosted backend.
type Supabase struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Auth controls bearer-token handling on the HTTP API.
type Auth struct {
	// Required rejects API requests that carry no resolvable identity.
	Required bool `toml:"required"`
	// APIToken is a static operator token accepted in addition to user sessions.
	APIToken string `toml:"api_token"`
}

// Flow contains the pipeline-flow simulator timings and session limits.
type Flow struct {
	DwellMillis         int `toml:"dwell_ms"`
	GapMillis           int `toml:"gap_ms"`
	SessionTTLSeconds   int `toml:"session_ttl_seconds"`
	ReapIntervalSeconds int `toml:"reap_interval_seconds"`
	MaxSessions         int `toml:"max_sessions"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic         string `toml:"ntfy_topic"`
	RequestTimeout    int    `toml:"request_timeout"`
	AssessmentCreated bool   `toml:"assessment_created"`
	HighRisk          bool   `toml:"high_risk"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Triage.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Backend: which record provider serves assessments (sqlite or supabase)
//   - Supabase: hosted backend connection settings
//   - Auth: bearer token policy for the HTTP API
//   - Flow: simulator dwell/gap timings and session limits
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Backend       Backend       `toml:"backend"`
	Supabase      Supabase      `toml:"supabase"`
	Auth          Auth          `toml:"auth"`
	Flow          Flow          `toml:"flow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/triage/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("triage.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location used by the local backend.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "triage.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "triaged.lock")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "triaged.pid")
}

// LogPath returns the daemon log file, or "" when file logging is disabled.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "triaged.log")
}

// Dwell is how long each flow stage stays in the processing state.
func (c *Config) Dwell() time.Duration {
	return time.Duration(c.Flow.DwellMillis) * time.Millisecond
}

// Gap is the pause between a stage completing and the next one starting.
func (c *Config) Gap() time.Duration {
	return time.Duration(c.Flow.GapMillis) * time.Millisecond
}

// SessionTTL is the idle time after which a flow session is reaped.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Flow.SessionTTLSeconds) * time.Second
}

// ReapInterval is how often idle flow sessions are swept.
func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Flow.ReapIntervalSeconds) * time.Second
}

// SupabaseTimeout bounds individual hosted backend requests.
func (c *Config) SupabaseTimeout() time.Duration {
	return time.Duration(c.Supabase.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
