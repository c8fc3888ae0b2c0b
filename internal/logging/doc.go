// Package logging assembles structured slog loggers and formatting helpers used
// across Triage services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request handlers and flow
// sessions automatically tag log lines with assessment IDs, flow session IDs,
// and correlation IDs. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
