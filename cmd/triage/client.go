package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"triage/internal/api"
)

var errAPIUnavailable = errors.New("triage API unavailable")

// apiError is a non-2xx response from the daemon.
type apiError struct {
	Status        int
	Kind          string
	Message       string
	CorrelationID string
}

func (e *apiError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Kind != "" {
		msg = e.Kind + ": " + msg
	}
	if e.CorrelationID != "" {
		msg += " (correlation id " + e.CorrelationID + ")"
	}
	return msg
}

type apiClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

func newAPIClient(baseURL, token string) (*apiClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errAPIUnavailable
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &apiClient{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: event streams block until the caller cancels.
		http: &http.Client{},
	}, nil
}

func (c *apiClient) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

func (c *apiClient) ListAssessments(ctx context.Context) ([]api.AssessmentSummary, error) {
	var out api.AssessmentListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/triage", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *apiClient) DescribeAssessment(ctx context.Context, id string) (api.TriageData, error) {
	var out api.TriageData
	err := c.doJSON(ctx, http.MethodGet, "/api/triage/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *apiClient) CreateAssessment(ctx context.Context, req api.CreateAssessmentRequest) (api.CreateAssessmentResponse, error) {
	var out api.CreateAssessmentResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/triage/new", req, &out)
	return out, err
}

func (c *apiClient) Stats(ctx context.Context) (api.DashboardStats, error) {
	var out api.DashboardStats
	err := c.doJSON(ctx, http.MethodGet, "/api/stats", nil, &out)
	return out, err
}

func (c *apiClient) StartFlow(ctx context.Context, assessmentID string) (api.FlowSession, error) {
	var out api.FlowSession
	err := c.doJSON(ctx, http.MethodPost, "/api/flows", api.StartFlowRequest{AssessmentID: assessmentID}, &out)
	return out, err
}

func (c *apiClient) FlowGraph(ctx context.Context, sessionID, rankdir string) (string, error) {
	path := "/api/flows/" + url.PathEscape(sessionID) + "/graph"
	if rankdir != "" {
		path += "?rankdir=" + url.QueryEscape(rankdir)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WatchFlow streams a session's events to fn until the stream ends, ctx is
// cancelled or fn returns an error.
func (c *apiClient) WatchFlow(ctx context.Context, sessionID string, fn func(api.FlowEvent) error) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/flows/"+url.PathEscape(sessionID)+"/events", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return readEvents(resp.Body, fn)
}

// readEvents parses a text/event-stream body. Comment lines are keepalives.
func readEvents(r io.Reader, fn func(api.FlowEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var event api.FlowEvent
			if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
				return fmt.Errorf("decode flow event: %w", err)
			}
			data.Reset()
			if err := fn(event); err != nil {
				return err
			}
			if event.Kind == "end" {
				return nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return scanner.Err()
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	if i := strings.IndexByte(path, '?'); i >= 0 {
		endpoint = c.base.ResolveReference(&url.URL{Path: path[:i], RawQuery: path[i+1:]})
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isAPIUnavailable(err) {
			return nil, fmt.Errorf("%w at %s; start it with `triage start`", errAPIUnavailable, c.base.String())
		}
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		apiErr := &apiError{Status: resp.StatusCode}
		var payload api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Kind = payload.Kind
			apiErr.Message = payload.Error
			apiErr.CorrelationID = payload.CorrelationID
		}
		return nil, apiErr
	}
	return resp, nil
}

func isAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, errAPIUnavailable) || errors.As(err, &opErr)
}
