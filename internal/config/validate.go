package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateFlow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend.Kind {
	case BackendSQLite:
		return nil
	case BackendSupabase:
	default:
		return fmt.Errorf("backend.kind must be %q or %q, got %q", BackendSQLite, BackendSupabase, c.Backend.Kind)
	}
	if c.Supabase.URL == "" {
		return errors.New("supabase.url must be set when backend.kind is supabase")
	}
	parsed, err := url.Parse(c.Supabase.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("supabase.url must be an absolute URL, got %q", c.Supabase.URL)
	}
	if strings.TrimSpace(c.Supabase.APIKey) == "" {
		return errors.New("supabase.api_key is required when backend.kind is supabase. Set TRIAGE_SUPABASE_KEY or edit the config file")
	}
	if c.Supabase.TimeoutSeconds <= 0 {
		return errors.New("supabase.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateFlow() error {
	if err := ensurePositive([]namedInt{
		{"flow.dwell_ms", c.Flow.DwellMillis},
		{"flow.session_ttl_seconds", c.Flow.SessionTTLSeconds},
		{"flow.reap_interval_seconds", c.Flow.ReapIntervalSeconds},
		{"flow.max_sessions", c.Flow.MaxSessions},
	}); err != nil {
		return err
	}
	if c.Flow.GapMillis < 0 {
		return errors.New("flow.gap_ms must not be negative")
	}
	if c.Flow.GapMillis > c.Flow.DwellMillis {
		return errors.New("flow.gap_ms must not exceed flow.dwell_ms")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

type namedInt struct {
	key   string
	value int
}

// ensurePositive reports the first non-positive value in declaration order.
func ensurePositive(values []namedInt) error {
	for _, v := range values {
		if v.value <= 0 {
			return fmt.Errorf("%s must be positive", v.key)
		}
	}
	return nil
}
