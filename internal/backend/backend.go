// Package backend selects the record and identity provider the daemon serves
// assessments from.
package backend

import (
	"context"
	"fmt"

	"triage/internal/assessment"
	"triage/internal/config"
	"triage/internal/store"
	"triage/internal/supabase"
)

// Records reads and creates assessments.
type Records interface {
	List(ctx context.Context) ([]assessment.Assessment, error)
	Get(ctx context.Context, id string) (*assessment.Assessment, error)
	Create(ctx context.Context, payload assessment.NewAssessment) (string, error)
}

// Outcomes records results produced by the external classifier.
type Outcomes interface {
	AttachOutcome(ctx context.Context, id string, outcome assessment.Outcome) error
}

// Identity resolves bearer tokens to users.
type Identity interface {
	Lookup(ctx context.Context, token string) (*assessment.User, error)
}

// Provider is an opened backend.
type Provider interface {
	Records
	Outcomes
	Identity
	Close() error
}

// Kind reports which implementation a provider is.
func Kind(p Provider) string {
	switch p.(type) {
	case *store.Store:
		return config.BackendSQLite
	case *supabase.Client:
		return config.BackendSupabase
	default:
		return "custom"
	}
}

// Open returns the provider selected by backend.kind.
func Open(cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend: config is required")
	}
	switch cfg.Backend.Kind {
	case "", config.BackendSQLite:
		st, err := store.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		return st, nil
	case config.BackendSupabase:
		client, err := supabase.New(supabase.Options{
			URL:     cfg.Supabase.URL,
			APIKey:  cfg.Supabase.APIKey,
			Timeout: cfg.SupabaseTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("open supabase backend: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("backend: unknown kind %q", cfg.Backend.Kind)
	}
}
