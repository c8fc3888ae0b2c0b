package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"triage/internal/assessment"
	"triage/internal/config"
	"triage/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCapture(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func newConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.AssessmentCreated = true
	cfg.Notifications.HighRisk = true
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := notifications.NewService(newConfig(""))
	if err := svc.NotifyAssessmentCreated(context.Background(), "a-1", "cough"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNotifyAssessmentCreated(t *testing.T) {
	server, captured := newCapture(t)
	svc := notifications.NewService(newConfig(server.URL))

	if err := svc.NotifyAssessmentCreated(context.Background(), "a-1", "sharp pain in lower back"); err != nil {
		t.Fatalf("NotifyAssessmentCreated: %v", err)
	}
	reqs := captured()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	got := reqs[0]
	if got.title != "Triage - New Assessment" || got.tags != "triage,assessment,created" {
		t.Fatalf("unexpected headers: %#v", got)
	}
	if !strings.Contains(got.body, "a-1") || !strings.Contains(got.body, "sharp pain in lower back") {
		t.Fatalf("unexpected body: %q", got.body)
	}
}

func TestNotifyHighRiskOnlyForHighRiskRecords(t *testing.T) {
	server, captured := newCapture(t)
	svc := notifications.NewService(newConfig(server.URL))
	score := 5

	mild := assessment.Assessment{ID: "a-1", PredictedInjuryLabel: "Bruise", RecommendationStatus: assessment.StatusMild}
	if err := svc.NotifyHighRisk(context.Background(), mild); err != nil {
		t.Fatalf("NotifyHighRisk: %v", err)
	}
	critical := assessment.Assessment{
		ID:                   "a-2",
		PatientName:          "Lee",
		PredictedInjuryLabel: "Head Injury",
		SeverityScore:        &score,
		RecommendationStatus: assessment.StatusCritical,
		TriageRecommendation: "Call emergency services",
	}
	if err := svc.NotifyHighRisk(context.Background(), critical); err != nil {
		t.Fatalf("NotifyHighRisk: %v", err)
	}

	reqs := captured()
	if len(reqs) != 1 {
		t.Fatalf("expected only the critical record to notify, got %d", len(reqs))
	}
	got := reqs[0]
	if got.priority != "urgent" || got.tags != "triage,high-risk,critical" {
		t.Fatalf("unexpected headers: %#v", got)
	}
	want := "Critical: Lee (Head Injury)\nSeverity 5/5\nCall emergency services"
	if got.body != want {
		t.Fatalf("unexpected body:\nwant %q\ngot  %q", want, got.body)
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	server, captured := newCapture(t)
	cfg := newConfig(server.URL)
	cfg.Notifications.AssessmentCreated = false
	svc := notifications.NewService(cfg)

	if err := svc.NotifyAssessmentCreated(context.Background(), "a-1", "x"); err != nil {
		t.Fatalf("NotifyAssessmentCreated: %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	reqs := captured()
	if len(reqs) != 1 || reqs[0].title != "Triage - Test" {
		t.Fatalf("expected only the test notification, got %#v", reqs)
	}
}

func TestSendReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic blocked", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)
	svc := notifications.NewService(newConfig(server.URL))

	err := svc.NotifyError(context.Background(), nil, "flow")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
}
