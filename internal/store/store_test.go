package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"triage/internal/assessment"
	"triage/internal/services"
	"triage/internal/store"
	"triage/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if st.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected path: %q", st.Path())
	}
	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %#v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", health.MissingTables)
	}
	if health.SchemaVersion != 1 {
		t.Fatalf("unexpected schema version: %d", health.SchemaVersion)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.SeedAssessment(t, st, "a-1", "cut on thumb")
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	records, err := reopened.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].ID != "a-1" {
		t.Fatalf("unexpected records after reopen: %#v", records)
	}
}

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	age := 42.0
	temp := 38.5
	id, err := st.Create(ctx, assessment.NewAssessment{
		UserID:       "user-1",
		Symptoms:     " swollen wrist ",
		PatientName:  "Sam",
		PatientAge:   &age,
		Temperature:  &temp,
		PatientSex:   "other",
		RecentTravel: "No",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected id to be assigned")
	}

	record, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.SymptomDescription != "swollen wrist" || record.PatientName != "Sam" {
		t.Fatalf("unexpected record: %#v", record)
	}
	if record.PatientAge == nil || *record.PatientAge != 42 {
		t.Fatalf("unexpected age: %v", record.PatientAge)
	}
	if record.TemperatureCelsius == nil || *record.TemperatureCelsius != 38.5 {
		t.Fatalf("unexpected temperature: %v", record.TemperatureCelsius)
	}
	if record.PatientSex != assessment.SexOther || record.RecentTravel != "no" {
		t.Fatalf("expected normalized enums, got %q/%q", record.PatientSex, record.RecentTravel)
	}
	if record.HasFever || record.Completed() {
		t.Fatalf("unexpected flags: fever=%v completed=%v", record.HasFever, record.Completed())
	}
	if record.CreatedAt.IsZero() || !record.CreatedAt.Equal(record.UpdatedAt) {
		t.Fatalf("unexpected timestamps: %v %v", record.CreatedAt, record.UpdatedAt)
	}
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.Create(context.Background(), assessment.NewAssessment{UserID: "user-1"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	records, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(records))
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.Get(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	testsupport.SeedAssessment(t, st, "old", "a", testsupport.CreatedAt(base))
	testsupport.SeedAssessment(t, st, "new", "b", testsupport.CreatedAt(base.Add(time.Hour)))
	testsupport.SeedAssessment(t, st, "mid", "c", testsupport.CreatedAt(base.Add(500*time.Millisecond)))

	records, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	got := []string{records[0].ID, records[1].ID, records[2].ID}
	want := []string{"new", "mid", "old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
	if !records[2].CreatedAt.Equal(base) {
		t.Fatalf("timestamp did not round-trip: %v", records[2].CreatedAt)
	}
}

func TestAttachOutcomeReplacesDiagnoses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedAssessment(t, st, "a-1", "deep cut on forearm",
		testsupport.WithDiagnoses(assessment.Diagnosis{Name: "Old Guess", Confidence: 0.2}))

	outcome := assessment.Outcome{
		InjuryType:           "Laceration",
		Description:          "A wound produced by tearing of soft tissue.",
		SeverityScore:        4,
		SeverityReason:       "Deep cut",
		TriageRecommendation: "Seek urgent care",
		RecommendationStatus: assessment.StatusSevere,
		Diagnoses: []assessment.Diagnosis{
			{Name: "Superficial Laceration", Confidence: 0.10},
			{Name: "Deep Laceration", Confidence: 0.85, Description: "Requires closure"},
		},
	}
	if err := st.AttachOutcome(ctx, "a-1", outcome); err != nil {
		t.Fatalf("AttachOutcome: %v", err)
	}

	record, err := st.Get(ctx, "a-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !record.Completed() || !record.HighRisk() {
		t.Fatalf("expected completed high-risk record, got %#v", record)
	}
	if record.SeverityScore == nil || *record.SeverityScore != 4 {
		t.Fatalf("unexpected severity: %v", record.SeverityScore)
	}
	if len(record.Diagnoses) != 2 {
		t.Fatalf("expected diagnoses to be replaced, got %#v", record.Diagnoses)
	}
	if record.Diagnoses[0].Name != "Deep Laceration" || record.Diagnoses[0].AssessmentID != "a-1" {
		t.Fatalf("expected most confident diagnosis first, got %#v", record.Diagnoses[0])
	}

	if err := st.AttachOutcome(ctx, "missing", outcome); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	outcome.SeverityScore = 9
	if err := st.AttachOutcome(ctx, "a-1", outcome); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteCascadesDiagnoses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedAssessment(t, st, "a-1", "rash",
		testsupport.WithDiagnoses(assessment.Diagnosis{Name: "Dermatitis", Confidence: 0.7}))
	removed, err := st.Delete(ctx, "a-1", "missing")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	diagnoses, err := st.Diagnoses(ctx, "a-1")
	if err != nil {
		t.Fatalf("Diagnoses: %v", err)
	}
	if len(diagnoses) != 0 {
		t.Fatalf("expected diagnoses to cascade, got %d", len(diagnoses))
	}
}

func TestIdentityLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	user, token := testsupport.SeedUser(t, st, " Nurse@Example.com ", assessment.RoleHealthcareWorker)
	if user.Email != "nurse@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}

	found, err := st.Lookup(ctx, token)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found.ID != user.ID || found.Role != assessment.RoleHealthcareWorker {
		t.Fatalf("unexpected user: %#v", found)
	}

	for _, bad := range []string{"", "nope"} {
		if _, err := st.Lookup(ctx, bad); !errors.Is(err, services.ErrUnauthorized) {
			t.Fatalf("expected unauthorized for %q, got %v", bad, err)
		}
	}

	if err := st.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := st.Lookup(ctx, token); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestExpiredTokensAreRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	user, _ := testsupport.SeedUser(t, st, "patient@example.com", assessment.RolePatient)
	token, err := st.IssueToken(ctx, user.ID, time.Millisecond)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := st.Lookup(ctx, token); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	purged, err := st.PurgeExpiredTokens(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredTokens: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one purged token, got %d", purged)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := st.CreateUser(context.Background(), "x@example.com", "admin"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
