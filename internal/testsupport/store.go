package testsupport

import (
	"context"
	"testing"
	"time"

	"triage/internal/assessment"
	"triage/internal/config"
	"triage/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// AssessmentOption customizes a fixture record.
type AssessmentOption func(*assessment.Assessment)

// Completed attaches an AI outcome to the fixture.
func Completed(label string, status assessment.RecommendationStatus, score int) AssessmentOption {
	return func(a *assessment.Assessment) {
		a.PredictedInjuryLabel = label
		a.RecommendationStatus = status
		a.SeverityScore = &score
	}
}

// CreatedAt sets the fixture's creation and update time.
func CreatedAt(ts time.Time) AssessmentOption {
	return func(a *assessment.Assessment) {
		a.CreatedAt = ts
		a.UpdatedAt = ts
	}
}

// WithDiagnoses attaches possible diagnoses to the fixture.
func WithDiagnoses(diagnoses ...assessment.Diagnosis) AssessmentOption {
	return func(a *assessment.Assessment) {
		a.Diagnoses = diagnoses
	}
}

// SeedAssessment inserts a fixture record for user-1 and returns it.
func SeedAssessment(t testing.TB, st *store.Store, id, symptoms string, opts ...AssessmentOption) assessment.Assessment {
	t.Helper()

	record := assessment.Assessment{
		ID:                 id,
		UserID:             "user-1",
		SymptomDescription: symptoms,
		CreatedAt:          time.Now().UTC(),
	}
	record.UpdatedAt = record.CreatedAt
	for _, opt := range opts {
		opt(&record)
	}
	if err := st.Seed(context.Background(), record); err != nil {
		t.Fatalf("store.Seed: %v", err)
	}
	return record
}

// SeedUser registers a user and returns it with a fresh bearer token.
func SeedUser(t testing.TB, st *store.Store, email string, role assessment.Role) (assessment.User, string) {
	t.Helper()

	ctx := context.Background()
	user, err := st.CreateUser(ctx, email, role)
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	token, err := st.IssueToken(ctx, user.ID, 0)
	if err != nil {
		t.Fatalf("store.IssueToken: %v", err)
	}
	return user, token
}
