package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"triage/internal/config"
	"triage/internal/logging"
	"triage/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon ready", logging.String("address", "127.0.0.1:0"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "triaged.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon ready") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerPrefixesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "flow").Info("stage completed", logging.Int("index", 2))

	line := buf.String()
	if !strings.Contains(line, "INFO flow: stage completed") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "index=2") {
		t.Fatalf("expected index attribute, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestConsoleLoggerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("created", logging.String("label", "Image Upload"))
	if !strings.Contains(buf.String(), `label="Image Upload"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("filtered out")
	logger.Warn("slow backend", logging.Int("attempt", 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected a single warn line, got %d: %q", len(lines), buf.String())
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "warn" || payload["msg"] != "slow backend" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRequestID(context.Background(), "req-1")
	ctx = services.WithAssessmentID(ctx, "a-42")
	ctx = services.WithFlowSession(ctx, "sess-9")
	logging.WithContext(ctx, logger).Info("flow started")

	line := buf.String()
	for _, want := range []string{"INFO [sess-9]: flow started", "correlation_id=req-1", "assessment_id=a-42"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "notification failed", "notify_failed")

	line := buf.String()
	for _, want := range []string{"event_type=notify_failed", "error_hint=", "impact="} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestConsoleLoggerTagsFlowSessionAndStage(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithFlowSession(context.Background(), "3f2a9c1e-0000-4000-8000-000000000000")
	logger = logging.NewComponentLogger(logging.WithContext(ctx, logger), "flow")
	logger.Info("stage completed", logging.Stage("upload"))

	line := buf.String()
	if !strings.Contains(line, "INFO flow [3f2a9c1e…/upload]: stage completed") {
		t.Fatalf("expected flow tag, got %q", line)
	}
	if strings.Contains(line, "flow_session=") || strings.Contains(line, "stage=") {
		t.Fatalf("expected tagged fields to be removed from attrs, got %q", line)
	}
}

func TestLoggersRedactSecrets(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		var buf bytes.Buffer
		logger, err := logging.New(logging.Options{Format: format, Writer: &buf})
		if err != nil {
			t.Fatalf("New(%s) returned error: %v", format, err)
		}
		logger.Info("auth", logging.String("token", "s3cret"), logging.String("api_key", "k3y"))
		if strings.Contains(buf.String(), "s3cret") || strings.Contains(buf.String(), "k3y") {
			t.Fatalf("%s output leaked a secret: %q", format, buf.String())
		}
		if !strings.Contains(buf.String(), "[redacted]") {
			t.Fatalf("%s output missing redaction marker: %q", format, buf.String())
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := logging.New(logging.Options{Level: "verbose", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported level")
	}
	if _, err := logging.New(logging.Options{Level: "WARNING", Writer: &bytes.Buffer{}}); err != nil {
		t.Fatalf("expected warning alias to parse, got %v", err)
	}
}

func TestFromConfigAddsLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/log/triage"
	opts := logging.FromConfig(&cfg)
	if len(opts.Outputs) != 2 || opts.Outputs[0] != "stdout" || opts.Outputs[1] != cfg.LogPath() {
		t.Fatalf("unexpected outputs %v", opts.Outputs)
	}
}
