package services

import "context"

type contextKey string

const (
	assessmentIDKey contextKey = "assessment_id"
	flowSessionKey  contextKey = "flow_session"
	userIDKey       contextKey = "user_id"
	requestIDKey    contextKey = "request_id"
)

// WithAssessmentID annotates context with the assessment record identifier.
func WithAssessmentID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, assessmentIDKey, id)
}

// AssessmentIDFromContext extracts the assessment identifier if present.
func AssessmentIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(assessmentIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithFlowSession annotates context with the flow session identifier.
func WithFlowSession(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, flowSessionKey, id)
}

// FlowSessionFromContext returns the flow session identifier if present.
func FlowSessionFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(flowSessionKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithUserID annotates context with the authenticated user identifier.
func WithUserID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the authenticated user identifier if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(userIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
