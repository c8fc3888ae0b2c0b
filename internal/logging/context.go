package logging

import (
	"context"
	"log/slog"

	"triage/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldAssessmentID is the standardized structured logging key for assessment record identifiers.
	FieldAssessmentID = "assessment_id"
	// FieldFlowSession is the standardized structured logging key for flow session identifiers.
	FieldFlowSession = "flow_session"
	// FieldStage is the standardized structured logging key for pipeline stage identifiers.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldUserID is the standardized structured logging key for the authenticated user.
	FieldUserID = "user_id"
	// FieldEventType classifies a log line for filtering (e.g. stage_completed).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.AssessmentIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAssessmentID, id))
	}
	if session, ok := services.FlowSessionFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldFlowSession, session))
	}
	if user, ok := services.UserIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldUserID, user))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
