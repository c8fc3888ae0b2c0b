package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/api"
	"triage/internal/assessment"
	"triage/internal/daemonctl"
	"triage/internal/flow"
	"triage/internal/flowsession"
	"triage/internal/logging"
	"triage/internal/services"
	"triage/internal/store"
	"triage/internal/testsupport"
)

type harness struct {
	server *httptest.Server
	store  *store.Store
	daemon *Daemon
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithFlowTiming(1, 0)}, opts...)...)
	st := testsupport.MustOpenStore(t, cfg)

	d, err := New(cfg, st, logging.NewNop(), nil)
	require.NoError(t, err)
	srv, err := newAPIServer(cfg, d, logging.NewNop())
	require.NoError(t, err)
	require.NotNil(t, srv)

	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		_ = d.Flows().Shutdown(context.Background())
	})
	return &harness{server: ts, store: st, daemon: d}
}

func (h *harness) do(t *testing.T, method, path, token string, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// readStream collects SSE frames until the end frame or EOF.
func readStream(t *testing.T, body io.Reader) []api.FlowEvent {
	t.Helper()
	var (
		events []api.FlowEvent
		kind   string
	)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var event api.FlowEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
			assert.Equal(t, kind, event.Kind)
			events = append(events, event)
			if event.Kind == eventStreamEnd {
				return events
			}
		}
	}
	return events
}

func TestListAssessments(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedAssessment(t, h.store, "a-1", "twisted ankle while running",
		testsupport.Completed("Sprain", assessment.StatusMild, 2))

	resp := h.do(t, http.MethodGet, "/api/triage", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.AssessmentListResponse](t, resp)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "a-1", list.Items[0].ID)
	assert.Equal(t, "Sprain", list.Items[0].InjuryType)
	assert.Equal(t, 2, list.Items[0].SeverityScore)
}

func TestListAssessmentsEmptyIsArray(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/api/triage", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(raw))
}

func TestDescribeMissingAssessment(t *testing.T) {
	h := newHarness(t)
	req, err := http.NewRequest(http.MethodGet, h.server.URL+"/api/triage/missing", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get("X-Correlation-ID"))
	body := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "not_found", body.Kind)
	assert.Equal(t, "req-42", body.CorrelationID)
}

func TestCreateAndDescribeAssessment(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodPost, "/api/triage/new", "",
		`{"userId":"user-9","symptoms":"burn on left hand","patientAge":"31","temperature":"","patientSex":"female"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[api.CreateAssessmentResponse](t, resp)
	require.NotEmpty(t, created.AssessmentID)

	resp = h.do(t, http.MethodGet, "/api/triage/"+created.AssessmentID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode[api.TriageData](t, resp)
	assert.Equal(t, "user-9", data.UserID)
	assert.Equal(t, "burn on left hand", data.SymptomDescription)
	require.NotNil(t, data.PatientAge)
	assert.Equal(t, 31, *data.PatientAge)
	assert.Nil(t, data.TemperatureCelsius)
}

func TestCreateRejectsBadBody(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodPost, "/api/triage/new", "", `{"userId":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/triage/new", "", `{"userId":"u","symptoms":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", decode[api.ErrorResponse](t, resp).Kind)
}

func TestRecordOutcome(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedAssessment(t, h.store, "a-1", "deep cut on forearm")

	resp := h.do(t, http.MethodPost, "/api/triage/a-1/outcome", "", `{
		"injuryType": "Laceration",
		"severityScore": 4,
		"recommendationStatus": "Severe",
		"topPossibleDiagnoses": [{"name": "Deep Laceration", "confidence": 0.8}]
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode[api.TriageData](t, resp)
	assert.Equal(t, "Laceration", data.PredictedInjuryLabel)
	assert.Equal(t, "severe", data.RecommendationStatus)
	require.Len(t, data.TopPossibleDiagnoses, 1)

	resp = h.do(t, http.MethodGet, "/api/stats", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[api.DashboardStats](t, resp)
	assert.Equal(t, 1, stats.TotalAssessments)
	assert.Equal(t, 1, stats.HighRiskCount)
}

func TestStaticTokenAuth(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIToken("secret"))

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/triage", "", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/triage", "wrong", "").StatusCode)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/triage", "secret", "").StatusCode)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/me?access_token=secret", "", "").StatusCode)

	me := decode[api.UserResponse](t, h.do(t, http.MethodGet, "/api/me", "secret", ""))
	assert.Equal(t, operatorID, me.ID)
}

func TestUserTokenAuth(t *testing.T) {
	h := newHarness(t, testsupport.WithAuthRequired(true))
	user, token := testsupport.SeedUser(t, h.store, "nurse@example.com", assessment.RoleHealthcareWorker)

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/me", "", "").StatusCode)

	resp := h.do(t, http.MethodGet, "/api/me", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[api.UserResponse](t, resp)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "nurse@example.com", me.Email)
	assert.Equal(t, string(assessment.RoleHealthcareWorker), me.Role)

	resp = h.do(t, http.MethodPost, "/api/triage/new", token, `{"userId":"someone-else","symptoms":"sore throat"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[api.CreateAssessmentResponse](t, resp)
	record, err := h.store.Get(context.Background(), created.AssessmentID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
}

func TestFlowSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/flows", "", `{"assessmentId":"a-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[api.FlowSession](t, resp)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, "a-1", session.AssessmentID)
	assert.Len(t, session.Snapshot.Stages, len(flow.TriagePipeline()))

	list := decode[[]api.FlowSession](t, h.do(t, http.MethodGet, "/api/flows", "", ""))
	assert.Len(t, list, 1)

	resp = h.do(t, http.MethodGet, "/api/flows/"+session.ID+"/graph?rankdir=lr", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/vnd.graphviz")
	dot, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(dot), "strict digraph")
	assert.Contains(t, string(dot), `rankdir="LR"`)

	resp = h.do(t, http.MethodGet, "/api/flows/"+session.ID+"/graph?rankdir=sideways", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodDelete, "/api/flows/"+session.ID, "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/api/flows/"+session.ID, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFlowSessionLimit(t *testing.T) {
	h := newHarness(t, testsupport.WithMaxFlowSessions(1))

	resp := h.do(t, http.MethodPost, "/api/flows", "", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = h.do(t, http.MethodPost, "/api/flows", "", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestFlowEventStream(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodPost, "/api/flows", "", `{"assessmentId":"a-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[api.FlowSession](t, resp)

	stream := h.do(t, http.MethodGet, "/api/flows/"+session.ID+"/events", "", "")
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	events := readStream(t, stream.Body)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, eventSnapshot, events[0].Kind)
	last := events[len(events)-1]
	assert.Equal(t, eventStreamEnd, last.Kind)
	assert.Equal(t, string(flow.PhaseCompleted), last.Snapshot.Phase)
	assert.Equal(t, last.Snapshot.Total, last.Snapshot.Completed)
}

func TestFlowEventStreamUnknownSession(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/api/flows/nope/events", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMountedFlowRunsToCompletion(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedAssessment(t, h.store, "a-1", "bee sting on neck")

	resp := h.do(t, http.MethodGet, "/api/triage/a-1/flow", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := readStream(t, resp.Body)
	require.NotEmpty(t, events)

	assert.Equal(t, eventSnapshot, events[0].Kind)
	assert.Equal(t, string(flow.PhaseIdle), events[0].Snapshot.Phase)

	var processing int
	for i, event := range events {
		if event.Kind == string(flow.EventStageProcessing) {
			processing++
		}
		if i > 1 && event.Seq > 0 {
			assert.Greater(t, event.Seq, events[i-1].Seq)
		}
	}
	assert.Equal(t, len(flow.TriagePipeline()), processing)
	assert.Equal(t, eventStreamEnd, events[len(events)-1].Kind)
	assert.Equal(t, string(flow.PhaseCompleted), events[len(events)-1].Snapshot.Phase)
	assert.Equal(t, 0, h.daemon.Flows().Len(), "mounted runs do not register sessions")

	resp = h.do(t, http.MethodGet, "/api/triage/missing/flow", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[api.DaemonStatus](t, resp)
	assert.False(t, status.Running)
	assert.Equal(t, "sqlite", status.Backend.Kind)
	assert.True(t, status.Backend.Healthy)
}

func TestStatusIsPublicWhenAuthRequired(t *testing.T) {
	h := newHarness(t, testsupport.WithAuthRequired(true))

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/triage", "", "").StatusCode)
	resp := h.do(t, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[api.DaemonStatus](t, resp)
	assert.True(t, status.AuthRequired)

	got, err := daemonctl.Probe(context.Background(), h.server.URL, "")
	require.NoError(t, err)
	assert.True(t, got.AuthRequired)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(flowsession.ErrTooManySessions, "flow-session", "start", "limit", nil), http.StatusTooManyRequests},
		{flowsession.ErrClosed, http.StatusServiceUnavailable},
		{services.Wrap(services.ErrValidation, "c", "op", "bad", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrUnauthorized, "c", "op", "no", nil), http.StatusUnauthorized},
		{services.Wrap(services.ErrTransient, "c", "op", "later", nil), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "%v", tc.err)
	}
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	st := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, st, logging.NewNop(), nil)
	require.NoError(t, err)

	srv, err := newAPIServer(cfg, d, logging.NewNop())
	require.NoError(t, err)
	assert.Nil(t, srv)
	assert.Equal(t, "", srv.address())
	srv.stop()
}
