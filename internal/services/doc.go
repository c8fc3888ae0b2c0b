// Package services defines shared utilities consumed by the HTTP handlers,
// backends, and flow sessions.
//
// Key responsibilities:
//   - Context helpers that stamp assessment IDs, flow session IDs, user IDs,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent kinds and HTTP status codes.
//
// Use these helpers when wiring new handlers or backends so operational
// behaviour (error reporting, observability) stays uniform across the service.
package services
