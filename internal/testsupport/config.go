package testsupport

import (
	"path/filepath"
	"testing"

	"triage/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Auth.APIToken = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the static operator token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Auth.APIToken = token
	}
}

// WithAuthRequired toggles bearer-token enforcement.
func WithAuthRequired(required bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Auth.Required = required
	}
}

// WithFlowTiming overrides the simulator dwell and gap in milliseconds.
func WithFlowTiming(dwellMillis, gapMillis int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Flow.DwellMillis = dwellMillis
		b.cfg.Flow.GapMillis = gapMillis
	}
}

// WithNtfyTopic points notifications at topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithMaxFlowSessions caps concurrent flow sessions.
func WithMaxFlowSessions(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Flow.MaxSessions = n
	}
}
