package backend_test

import (
	"context"
	"errors"
	"testing"

	"triage/internal/assessment"
	"triage/internal/backend"
	"triage/internal/config"
	"triage/internal/services"
	"triage/internal/testsupport"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Backend.Kind = ""

	provider, err := backend.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { provider.Close() })

	if got := backend.Kind(provider); got != config.BackendSQLite {
		t.Fatalf("expected sqlite provider, got %q", got)
	}

	id, err := provider.Create(context.Background(), assessment.NewAssessment{UserID: "u", Symptoms: "headache"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	record, err := provider.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.SymptomDescription != "headache" {
		t.Fatalf("unexpected record: %#v", record)
	}
	if _, err := provider.Lookup(context.Background(), "nope"); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestOpenSupabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Backend.Kind = config.BackendSupabase
	cfg.Supabase.URL = "https://example.supabase.co"
	cfg.Supabase.APIKey = "anon"

	provider, err := backend.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := backend.Kind(provider); got != config.BackendSupabase {
		t.Fatalf("expected supabase provider, got %q", got)
	}
	if err := provider.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenRejectsUnknownKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Backend.Kind = "mongo"
	if _, err := backend.Open(cfg); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}
