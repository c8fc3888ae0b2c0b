package api

import (
	"context"
	"log/slog"
	"time"

	"triage/internal/assessment"
	"triage/internal/logging"
	"triage/internal/notifications"
)

// AssessmentStore abstracts the record provider needed for API queries.
type AssessmentStore interface {
	List(ctx context.Context) ([]assessment.Assessment, error)
	Get(ctx context.Context, id string) (*assessment.Assessment, error)
	Create(ctx context.Context, payload assessment.NewAssessment) (string, error)
	AttachOutcome(ctx context.Context, id string, outcome assessment.Outcome) error
}

// AssessmentService exposes assessment operations returning API DTOs.
type AssessmentService struct {
	store    AssessmentStore
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// NewAssessmentService constructs an AssessmentService around the provided store.
func NewAssessmentService(store AssessmentStore) *AssessmentService {
	if store == nil {
		return nil
	}
	return &AssessmentService{store: store, logger: logging.NewNop(), now: time.Now}
}

// WithClock replaces the time source used for dashboard stats.
func (s *AssessmentService) WithClock(now func() time.Time) *AssessmentService {
	if s != nil && now != nil {
		s.now = now
	}
	return s
}

// WithNotifier sends push notifications for new and high-risk assessments.
// Delivery failures are logged and never fail the request.
func (s *AssessmentService) WithNotifier(notifier notifications.Service, logger *slog.Logger) *AssessmentService {
	if s == nil {
		return s
	}
	s.notifier = notifier
	if logger != nil {
		s.logger = logging.NewComponentLogger(logger, "assessments")
	}
	return s
}

// List returns every assessment summary, newest first.
func (s *AssessmentService) List(ctx context.Context) ([]AssessmentSummary, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	assessment.SortNewestFirst(records)
	out := make([]AssessmentSummary, 0, len(records))
	for _, record := range records {
		out = append(out, FromSummary(assessment.Summarize(record)))
	}
	return out, nil
}

// Describe fetches a full record with its diagnoses.
func (s *AssessmentService) Describe(ctx context.Context, id string) (*TriageData, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	record, err := s.store.Get(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	dto := FromAssessment(record)
	return &dto, nil
}

// Create normalizes, validates and stores an intake request. userID is the
// authenticated caller and takes precedence over the body.
func (s *AssessmentService) Create(ctx context.Context, req CreateAssessmentRequest, userID string) (CreateAssessmentResponse, error) {
	if s == nil || s.store == nil {
		return CreateAssessmentResponse{}, nil
	}
	payload := req.Payload(userID)
	payload.Normalize()
	if err := payload.Validate(); err != nil {
		return CreateAssessmentResponse{}, err
	}
	id, err := s.store.Create(ctx, payload)
	if err != nil {
		return CreateAssessmentResponse{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyAssessmentCreated(ctx, id, payload.Symptoms); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "assessment notification failed", "notification_failed",
				logging.String(logging.FieldAssessmentID, id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ntfy topic and connectivity"),
				logging.String(logging.FieldImpact, "push notification not delivered"),
			)
		}
	}
	return CreateAssessmentResponse{AssessmentID: id}, nil
}

// RecordOutcome attaches a classifier result and returns the updated record.
func (s *AssessmentService) RecordOutcome(ctx context.Context, id string, outcome TriageOutcome) (*TriageData, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	if err := s.store.AttachOutcome(ctx, id, outcome.Outcome()); err != nil {
		return nil, err
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil && record.HighRisk() {
		if err := s.notifier.NotifyHighRisk(ctx, *record); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "high-risk notification failed", "notification_failed",
				logging.String(logging.FieldAssessmentID, id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ntfy topic and connectivity"),
				logging.String(logging.FieldImpact, "push notification not delivered"),
			)
		}
	}
	dto := FromAssessment(record)
	return &dto, nil
}

// Stats computes the dashboard counters over every record.
func (s *AssessmentService) Stats(ctx context.Context) (DashboardStats, error) {
	if s == nil || s.store == nil {
		return DashboardStats{}, nil
	}
	records, err := s.store.List(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	return FromStats(assessment.ComputeStats(records, s.now())), nil
}
