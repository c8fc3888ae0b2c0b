// Package supabase reads and writes assessments through a hosted Supabase
// project's PostgREST and GoTrue endpoints.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"triage/internal/assessment"
	"triage/internal/services"
)

const (
	component      = "supabase"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// Options configures a Client.
type Options struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the project REST API. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
}

type accessTokenKey struct{}

// WithAccessToken forwards the caller's bearer token so row-level security
// applies to subsequent requests made with ctx.
func WithAccessToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func accessToken(ctx context.Context) string {
	if v, ok := ctx.Value(accessTokenKey{}).(string); ok {
		return v
	}
	return ""
}

// New validates opts and returns a client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.URL)
	if raw == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new client", "supabase url is required", nil)
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new client", "invalid supabase url "+raw, err)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new client", "supabase api key is required", nil)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, apiKey: key, http: client}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// List returns every visible assessment, newest first.
func (c *Client) List(ctx context.Context) ([]assessment.Assessment, error) {
	values := url.Values{}
	values.Set("select", "*")
	values.Set("order", "created_at.desc")

	var rows []assessmentRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/assessments", values, nil, "", &rows); err != nil {
		return nil, err
	}
	out := make([]assessment.Assessment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

// Get fetches a record and its diagnoses concurrently.
func (c *Client) Get(ctx context.Context, id string) (*assessment.Assessment, error) {
	id = strings.TrimSpace(id)
	var (
		rows      []assessmentRow
		diagnoses []diagnosisRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values := url.Values{}
		values.Set("select", "*")
		values.Set("id", "eq."+id)
		values.Set("limit", "1")
		return c.do(gctx, http.MethodGet, "/rest/v1/assessments", values, nil, "", &rows)
	})
	g.Go(func() error {
		values := url.Values{}
		values.Set("select", "*")
		values.Set("assessment_id", "eq."+id)
		values.Set("order", "confidence.desc")
		return c.do(gctx, http.MethodGet, "/rest/v1/possible_diagnoses", values, nil, "", &diagnoses)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, services.Wrap(services.ErrNotFound, component, "get assessment", "assessment "+id+" not found", nil)
	}

	record := rows[0].record()
	for _, d := range diagnoses {
		record.Diagnoses = append(record.Diagnoses, d.diagnosis())
	}
	return &record, nil
}

// Create inserts a new assessment and returns the id assigned by the database.
func (c *Client) Create(ctx context.Context, payload assessment.NewAssessment) (string, error) {
	payload.Normalize()
	if err := payload.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal([]insertRow{newInsertRow(payload)})
	if err != nil {
		return "", fmt.Errorf("encode assessment: %w", err)
	}

	var rows []assessmentRow
	if err := c.do(ctx, http.MethodPost, "/rest/v1/assessments", nil, body, "return=representation", &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return "", services.Wrap(services.ErrExternal, component, "create assessment", "insert returned no row", nil)
	}
	return rows[0].ID, nil
}

// Lookup resolves an access token to the signed-in user and their role.
func (c *Client) Lookup(ctx context.Context, token string) (*assessment.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, services.Wrap(services.ErrUnauthorized, component, "lookup", "missing token", nil)
	}
	ctx = WithAccessToken(ctx, token)

	var authUser struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, "", &authUser); err != nil {
		return nil, err
	}
	if authUser.ID == "" {
		return nil, services.Wrap(services.ErrUnauthorized, component, "lookup", "token has no user", nil)
	}

	values := url.Values{}
	values.Set("select", "role")
	values.Set("user_id", "eq."+authUser.ID)
	values.Set("limit", "1")
	var roles []struct {
		Role string `json:"role"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/user_roles", values, nil, "", &roles); err != nil {
		return nil, err
	}

	user := &assessment.User{ID: authUser.ID, Email: authUser.Email}
	if len(roles) > 0 {
		user.Role = assessment.Role(roles[0].Role)
	}
	return user, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, prefer string, out any) error {
	endpoint := c.base.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	bearer := accessToken(ctx)
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	operation := method + " " + path
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, component, operation, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternal, component, operation, "decode response", err)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error_description"`
	}
	message := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		for _, candidate := range []string{body.Message, body.Msg, body.Error} {
			if strings.TrimSpace(candidate) != "" {
				message = candidate
				break
			}
		}
	}
	cause := errors.New(message)
	detail := fmt.Sprintf("status %d", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrUnauthorized, component, operation, detail, cause)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, component, operation, detail, cause)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return services.Wrap(services.ErrValidation, component, operation, detail, cause)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, component, operation, detail, cause)
	default:
		return services.Wrap(services.ErrExternal, component, operation, detail, cause)
	}
}

// AttachOutcome stores a classifier result and replaces the record's
// diagnoses. New diagnoses are inserted before the old ones are deleted, so a
// failed insert leaves the previous set in place.
func (c *Client) AttachOutcome(ctx context.Context, id string, outcome assessment.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	filter := url.Values{}
	filter.Set("id", "eq."+id)

	body, err := json.Marshal(newOutcomeRow(outcome))
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	var updated []assessmentRow
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/assessments", filter, body, "return=representation", &updated); err != nil {
		return err
	}
	if len(updated) == 0 {
		return services.Wrap(services.ErrNotFound, component, "attach outcome", "assessment "+id+" not found", nil)
	}

	var inserted []diagnosisRow
	if len(outcome.Diagnoses) > 0 {
		rows := make([]diagnosisInsertRow, 0, len(outcome.Diagnoses))
		for _, d := range outcome.Diagnoses {
			rows = append(rows, diagnosisInsertRow{
				AssessmentID: id,
				Name:         d.Name,
				Confidence:   d.Confidence,
				Description:  optional(d.Description),
			})
		}
		body, err = json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("encode diagnoses: %w", err)
		}
		selectID := url.Values{}
		selectID.Set("select", "id")
		if err := c.do(ctx, http.MethodPost, "/rest/v1/possible_diagnoses", selectID, body, "return=representation", &inserted); err != nil {
			return err
		}
	}

	stale := url.Values{}
	stale.Set("assessment_id", "eq."+id)
	if len(inserted) > 0 {
		ids := make([]string, 0, len(inserted))
		for _, row := range inserted {
			ids = append(ids, row.ID)
		}
		stale.Set("id", "not.in.("+strings.Join(ids, ",")+")")
	}
	return c.do(ctx, http.MethodDelete, "/rest/v1/possible_diagnoses", stale, nil, "", nil)
}
