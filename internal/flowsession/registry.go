package flowsession

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"triage/internal/config"
	"triage/internal/flow"
	"triage/internal/logging"
	"triage/internal/services"
)

var (
	ErrSessionNotFound = errors.New("flow session not found")
	ErrTooManySessions = errors.New("too many flow sessions")
	ErrClosed          = errors.New("flow session registry closed")
)

const defaultBuffer = 32

// Options configures a Registry.
type Options struct {
	Stages       []flow.Descriptor
	Timing       flow.Timing
	Clock        flow.Clock
	TTL          time.Duration
	ReapInterval time.Duration
	MaxSessions  int
	Buffer       int
}

// OptionsFromConfig builds registry options for the triage pipeline.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{Stages: flow.TriagePipeline(), Timing: flow.DefaultTiming()}
	if cfg == nil {
		return opts
	}
	opts.Timing = flow.Timing{Dwell: cfg.Dwell(), Gap: cfg.Gap()}
	opts.TTL = cfg.SessionTTL()
	opts.ReapInterval = cfg.ReapInterval()
	opts.MaxSessions = cfg.Flow.MaxSessions
	return opts
}

// Registry owns every live flow session.
type Registry struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	reaperCancel context.CancelFunc
	reaperWG     sync.WaitGroup
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts Options, logger *slog.Logger) *Registry {
	if len(opts.Stages) == 0 {
		opts.Stages = flow.TriagePipeline()
	}
	if opts.Timing == (flow.Timing{}) {
		opts.Timing = flow.DefaultTiming()
	}
	if opts.Clock == nil {
		opts.Clock = flow.RealClock{}
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "flow-session"),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Start creates a session for assessmentID and begins its run from the first
// stage. The run outlives ctx; it ends with Stop, the reaper or Shutdown.
func (r *Registry) Start(ctx context.Context, assessmentID string) (Info, error) {
	assessmentID = strings.TrimSpace(assessmentID)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Info{}, ErrClosed
	}
	if r.opts.MaxSessions > 0 && len(r.sessions) >= r.opts.MaxSessions {
		r.mu.Unlock()
		return Info{}, services.Wrap(ErrTooManySessions, "flow-session", "start", "session limit reached", nil)
	}

	id := uuid.NewString()
	runCtx := services.WithFlowSession(services.WithAssessmentID(context.WithoutCancel(ctx), assessmentID), id)
	logger := logging.WithContext(runCtx, r.logger)
	sess := &session{
		id:           id,
		assessmentID: assessmentID,
		createdAt:    r.now(),
		logger:       logger,
		buffer:       r.opts.Buffer,
		runDone:      make(chan struct{}),
		subs:         make(map[int]chan flow.Event),
	}
	sess.lastAccess = sess.createdAt

	sim, err := flow.New(r.opts.Stages,
		flow.WithTiming(r.opts.Timing),
		flow.WithClock(r.opts.Clock),
		flow.WithObserver(sess.publish),
		flow.WithLogger(logger),
	)
	if err != nil {
		r.mu.Unlock()
		return Info{}, services.Wrap(services.ErrConfiguration, "flow-session", "start", "invalid stage list", err)
	}
	sess.sim = sim
	runCtx, sess.cancel = context.WithCancel(runCtx)
	r.sessions[id] = sess
	count := len(r.sessions)
	r.mu.Unlock()

	go func() {
		defer close(sess.runDone)
		if err := sim.Run(runCtx); err != nil {
			logger.Warn("flow run failed to start",
				logging.Error(err),
				logging.String(logging.FieldEventType, "flow_run_failed"),
			)
		}
	}()

	logger.Info("flow session started",
		logging.String(logging.FieldEventType, "flow_session_started"),
		logging.Int("sessions", count),
	)
	return sess.info(), nil
}

// Get returns the session state and refreshes its idle timer.
func (r *Registry) Get(id string) (Info, error) {
	sess, err := r.lookup(id)
	if err != nil {
		return Info{}, err
	}
	sess.touch(r.now())
	return sess.info(), nil
}

// Subscribe returns the session's future events. The channel is closed when
// the run ends, the session stops, or cancel is called.
func (r *Registry) Subscribe(id string) (<-chan flow.Event, func(), error) {
	sess, err := r.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	sess.touch(r.now())
	ch, cancel := sess.subscribe()
	return ch, func() {
		cancel()
		sess.touch(r.now())
	}, nil
}

// Stop tears the session down. After Stop returns the session's stages no
// longer change.
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrNotFound, "flow-session", "stop", "session "+id+" not found", ErrSessionNotFound)
	}
	sess.stop()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns every live session, unordered.
func (r *Registry) List() []Info {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()
	out := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.info())
	}
	return out
}

// Reap stops sessions with no subscribers whose last access is older than
// the TTL. It returns the number of sessions removed.
func (r *Registry) Reap(now time.Time) int {
	if r.opts.TTL <= 0 {
		return 0
	}
	r.mu.Lock()
	var expired []*session
	for id, sess := range r.sessions {
		if sess.idle(now, r.opts.TTL) {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.stop()
	}
	if len(expired) > 0 {
		r.logger.Info("reaped idle flow sessions",
			logging.Int("count", len(expired)),
			logging.String(logging.FieldEventType, "flow_sessions_reaped"),
		)
	}
	return len(expired)
}

// StartReaper runs Reap on the configured interval until ctx is cancelled or
// the registry shuts down.
func (r *Registry) StartReaper(ctx context.Context) {
	if r.opts.ReapInterval <= 0 || r.opts.TTL <= 0 {
		return
	}
	r.mu.Lock()
	if r.reaperCancel != nil || r.closed {
		r.mu.Unlock()
		return
	}
	reapCtx, cancel := context.WithCancel(ctx)
	r.reaperCancel = cancel
	r.reaperWG.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.reaperWG.Done()
		ticker := time.NewTicker(r.opts.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-reapCtx.Done():
				return
			case <-ticker.C:
				r.Reap(r.now())
			}
		}
	}()
}

// Shutdown stops the reaper and every session concurrently. It returns
// ctx.Err() when the deadline passes first.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	cancel := r.reaperCancel
	r.reaperCancel = nil
	sessions := make([]*session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		sessions = append(sessions, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.reaperWG.Wait()

	var g errgroup.Group
	for _, sess := range sessions {
		g.Go(func() error {
			sess.stop()
			return nil
		})
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if len(sessions) > 0 {
			r.logger.Info("flow sessions stopped", logging.Int("count", len(sessions)))
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) lookup(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "flow-session", "lookup", "session "+id+" not found", ErrSessionNotFound)
	}
	return sess, nil
}
