// Package config loads, normalizes, and validates the Triage TOML
// configuration.
//
// Load resolves the configuration file (explicit path, the user config
// directory, or ./triage.toml), decodes it over Default(), applies
// environment overrides, expands paths, and validates the result. Callers
// receive a fully-populated Config whose helpers (DatabasePath, LockPath,
// Dwell, Gap, SessionTTL) hide unit conversions from the rest of the
// codebase.
//
// When adding a setting, give it a default in defaults.go, a normalization
// rule if it is a path or enum, a validation rule, and an entry in
// sample_config.toml.
package config
