// Package api defines wire-format types and converters for the HTTP API
// layer. It translates assessment records and flow simulator state into
// transport-friendly DTOs that the dashboard and the CLI can render without
// coupling to internal types.
//
// # Key Types
//
// TriageData: the full assessment record with its AI outcome and possible
// diagnoses.
//
// AssessmentSummary: one dashboard list row.
//
// DashboardStats: the dashboard counters.
//
// FlowSnapshot/FlowEvent/FlowSession: pipeline-flow state for the visualizer
// and its event stream.
//
// DaemonStatus: aggregated runtime information for `triage status`.
//
// # Converters
//
// FromAssessment, FromSummary, FromStats, FromSnapshot, FromEvent and
// FromSessionInfo map internal models to DTOs. CreateAssessmentRequest.Payload
// maps the intake request back to assessment.NewAssessment.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Enums are
// exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
// Numeric intake fields accept numbers, numeric strings or empty strings
// because browser forms submit all three.
package api
