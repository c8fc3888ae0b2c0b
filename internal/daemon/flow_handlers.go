package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"triage/internal/api"
	"triage/internal/flow"
	"triage/internal/flowgraph"
	"triage/internal/logging"
	"triage/internal/services"
)

const (
	sseKeepAlive    = 15 * time.Second
	mountedBuffer   = 64
	eventSnapshot   = "snapshot"
	eventStreamEnd  = "end"
	graphvizContent = "text/vnd.graphviz; charset=utf-8"
)

// sseStream writes text/event-stream frames and flushes after each one.
type sseStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func openStream(w http.ResponseWriter) *sseStream {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()
	return &sseStream{w: w, rc: rc}
}

func (s *sseStream) send(event api.FlowEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		if _, err := fmt.Fprintf(s.w, "id: %d\n", event.Seq); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Kind, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseStream) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseStream) end(snap flow.Snapshot) error {
	return s.send(api.FlowEvent{Kind: eventStreamEnd, Snapshot: api.FromSnapshot(snap)})
}

// handleFlowEvents streams a session's events. The first frame is the
// current snapshot; the stream ends when the session's run finishes or the
// session is stopped. A disconnecting client only unsubscribes.
func (s *apiServer) handleFlowEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flows := s.daemon.Flows()
	events, unsubscribe, err := flows.Subscribe(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer unsubscribe()

	info, err := flows.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := services.WithFlowSession(services.WithAssessmentID(r.Context(), info.AssessmentID), info.ID)
	logger := logging.WithContext(ctx, s.log())
	stream := openStream(w)
	last := info.Snapshot
	if err := stream.send(api.FlowEvent{Kind: eventSnapshot, Snapshot: api.FromSnapshot(last)}); err != nil {
		return
	}
	logger.Debug("flow event stream opened")

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("flow event stream closed by client")
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				_ = stream.end(last)
				return
			}
			last = event.Snapshot
			if err := stream.send(api.FromEvent(event)); err != nil {
				return
			}
		}
	}
}

// handleMountedFlow runs a private simulation for one assessment whose
// lifetime is the request. Closing the connection cancels the run.
func (s *apiServer) handleMountedFlow(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	ctx := services.WithAssessmentID(r.Context(), id)
	if _, err := s.assessments.Describe(ctx, id); err != nil {
		s.writeError(w, r, err)
		return
	}

	streamCtx, cancelRun := context.WithCancel(ctx)
	events := make(chan flow.Event, mountedBuffer)
	opts := s.daemon.flowOpts
	sim, err := flow.New(opts.Stages,
		flow.WithTiming(opts.Timing),
		flow.WithClock(opts.Clock),
		flow.WithLogger(logging.WithContext(ctx, s.log())),
		flow.WithObserver(func(event flow.Event) {
			select {
			case events <- event:
			case <-streamCtx.Done():
			}
		}),
	)
	if err != nil {
		cancelRun()
		s.writeError(w, r, services.Wrap(services.ErrConfiguration, "api-server", "mount flow", "invalid stage list", err))
		return
	}
	defer sim.Stop()
	defer cancelRun()

	stream := openStream(w)
	if err := stream.send(api.FlowEvent{Kind: eventSnapshot, Snapshot: api.FromSnapshot(sim.Snapshot())}); err != nil {
		return
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = sim.Run(streamCtx)
	}()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-streamCtx.Done():
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return
			}
		case event := <-events:
			if err := stream.send(api.FromEvent(event)); err != nil {
				return
			}
		case <-runDone:
			for {
				select {
				case event := <-events:
					if err := stream.send(api.FromEvent(event)); err != nil {
						return
					}
				default:
					_ = stream.end(sim.Snapshot())
					return
				}
			}
		}
	}
}

func (s *apiServer) handleFlowGraph(w http.ResponseWriter, r *http.Request) {
	info, err := s.daemon.Flows().Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var opts []flowgraph.Option
	if dir := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("rankdir"))); dir != "" {
		if !flowgraph.ValidRankDir(dir) {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api-server", "flow graph", "rankdir must be one of LR, RL, TB, BT", nil))
			return
		}
		opts = append(opts, flowgraph.GraphAttribute("rankdir", dir))
	}
	dot, err := flowgraph.DOT(info.Snapshot, opts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", graphvizContent)
	w.Header().Set("Content-Length", strconv.Itoa(len(dot)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(dot))
}
