package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"triage/internal/assessment"
	"triage/internal/config"
)

const userAgent = "Triage-Go/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyAssessmentCreated(ctx context.Context, id, symptoms string) error
	NotifyHighRisk(ctx context.Context, record assessment.Assessment) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:          topic,
		client:            &http.Client{Timeout: timeout},
		assessmentCreated: cfg.Notifications.AssessmentCreated,
		highRisk:          cfg.Notifications.HighRisk,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint          string
	client            *http.Client
	assessmentCreated bool
	highRisk          bool
}

func (n *ntfyService) NotifyAssessmentCreated(ctx context.Context, id, symptoms string) error {
	if !n.assessmentCreated {
		return nil
	}
	message := fmt.Sprintf("New assessment %s", strings.TrimSpace(id))
	if snippet := assessment.Snippet(symptoms, 80); snippet != "" {
		message = fmt.Sprintf("%s\nSymptoms: %s", message, snippet)
	}
	return n.send(ctx, payload{
		title:   "Triage - New Assessment",
		message: message,
		tags:    []string{"triage", "assessment", "created"},
	})
}

func (n *ntfyService) NotifyHighRisk(ctx context.Context, record assessment.Assessment) error {
	if !n.highRisk || !record.HighRisk() {
		return nil
	}
	subject := strings.TrimSpace(record.PatientName)
	if subject == "" {
		subject = record.ID
	}
	message := fmt.Sprintf("%s: %s", record.RecommendationStatus.Label(), subject)
	if label := strings.TrimSpace(record.PredictedInjuryLabel); label != "" {
		message = fmt.Sprintf("%s (%s)", message, label)
	}
	if record.SeverityScore != nil {
		message = fmt.Sprintf("%s\nSeverity %d/5", message, *record.SeverityScore)
	}
	if rec := strings.TrimSpace(record.TriageRecommendation); rec != "" {
		message = fmt.Sprintf("%s\n%s", message, rec)
	}
	priority := "high"
	if record.RecommendationStatus == assessment.StatusCritical {
		priority = "urgent"
	}
	return n.send(ctx, payload{
		title:    "Triage - High Risk",
		message:  message,
		tags:     []string{"triage", "high-risk", string(record.RecommendationStatus)},
		priority: priority,
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "Triage - Error",
		message:  builder.String(),
		tags:     []string{"triage", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Triage - Test",
		message:  "Notification system test",
		tags:     []string{"triage", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyAssessmentCreated(context.Context, string, string) error { return nil }
func (noopService) NotifyHighRisk(context.Context, assessment.Assessment) error   { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
