package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"triage/internal/api"
	"triage/internal/backend"
	"triage/internal/config"
	"triage/internal/flowsession"
	"triage/internal/logging"
	"triage/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind         string
	logger       *slog.Logger
	daemon       *Daemon
	assessments  *api.AssessmentService
	identity     backend.Identity
	apiToken     string
	authRequired bool

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:         bind,
		logger:       logging.NewComponentLogger(logger, "api-server"),
		daemon:       d,
		assessments:  d.assessments,
		identity:     d.backend,
		apiToken:     strings.TrimSpace(cfg.Auth.APIToken),
		authRequired: cfg.Auth.Required,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.authMiddleware(h))
	}

	// Status stays public so daemonctl can probe a daemon that requires auth.
	mux.HandleFunc("GET /api/status", s.handleStatus)
	route("GET /api/me", s.handleMe)
	route("GET /api/stats", s.handleStats)

	route("GET /api/triage", s.handleListAssessments)
	route("POST /api/triage/new", s.handleCreateAssessment)
	route("GET /api/triage/{id}", s.handleDescribeAssessment)
	route("POST /api/triage/{id}/outcome", s.handleRecordOutcome)
	route("GET /api/triage/{id}/flow", s.handleMountedFlow)

	route("GET /api/flows", s.handleListFlows)
	route("POST /api/flows", s.handleStartFlow)
	route("GET /api/flows/{id}", s.handleGetFlow)
	route("DELETE /api/flows/{id}", s.handleStopFlow)
	route("GET /api/flows/{id}/events", s.handleFlowEvents)
	route("GET /api/flows/{id}/graph", s.handleFlowGraph)

	return s.correlate(mux)
}

// correlate tags every request with a correlation id, echoing a
// caller-supplied X-Request-ID when present.
func (s *apiServer) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.log()).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	// Request contexts end with the daemon so open event streams unwind
	// before Shutdown waits on them.
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		APIBind:      status.APIAddress,
		AuthRequired: s.authRequired || s.apiToken != "",
		FlowSessions: status.FlowSessions,
		Backend:      status.Backend,
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	switch {
	case identity.User != nil:
		s.writeJSON(w, http.StatusOK, api.FromUser(identity.User))
	case identity.Operator:
		s.writeJSON(w, http.StatusOK, api.UserResponse{ID: operatorID})
	default:
		s.writeError(w, r, services.Wrap(services.ErrUnauthorized, "api-server", "me", "no bearer token presented", nil))
	}
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.assessments.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	items, err := s.assessments.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []api.AssessmentSummary{}
	}
	s.writeJSON(w, http.StatusOK, api.AssessmentListResponse{Items: items})
}

func (s *apiServer) handleDescribeAssessment(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	ctx := services.WithAssessmentID(r.Context(), id)
	item, err := s.assessments.Describe(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if item == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api-server", "describe", "assessment "+id+" not found", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAssessmentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.assessments.Create(r.Context(), req, identityFromContext(r.Context()).userID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.WithContext(services.WithAssessmentID(r.Context(), resp.AssessmentID), s.log()).Info("assessment created",
		logging.String(logging.FieldEventType, "assessment_created"),
	)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	var req api.TriageOutcome
	if !s.decodeJSON(w, r, &req) {
		return
	}
	ctx := services.WithAssessmentID(r.Context(), id)
	item, err := s.assessments.RecordOutcome(ctx, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.WithContext(ctx, s.log()).Info("assessment outcome recorded",
		logging.String(logging.FieldEventType, "assessment_outcome_recorded"),
		logging.String("recommendation_status", item.RecommendationStatus),
	)
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleListFlows(w http.ResponseWriter, r *http.Request) {
	infos := s.daemon.Flows().List()
	out := make([]api.FlowSession, 0, len(infos))
	for _, info := range infos {
		out = append(out, api.FromSessionInfo(info))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req api.StartFlowRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	info, err := s.daemon.Flows().Start(r.Context(), req.AssessmentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromSessionInfo(info))
}

func (s *apiServer) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	info, err := s.daemon.Flows().Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSessionInfo(info))
}

func (s *apiServer) handleStopFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.Flows().Stop(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api-server", "decode request", "invalid JSON body", err))
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps err through the service error taxonomy.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	details := services.Details(err)
	correlationID, _ := services.RequestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{
		Error:         details.Message,
		Kind:          details.Kind,
		CorrelationID: correlationID,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, flowsession.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, flowsession.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return services.HTTPStatus(err)
	}
}

func (s *apiServer) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
