package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"triage/internal/api"
	"triage/internal/backend"
	"triage/internal/config"
	"triage/internal/flow"
	"triage/internal/flowsession"
	"triage/internal/logging"
	"triage/internal/notifications"
	"triage/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Daemon coordinates the API server and flow sessions and enforces
// single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	backend     backend.Provider
	notifier    notifications.Service
	assessments *api.AssessmentService
	flowOpts    flowsession.Options

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	flows     *flowsession.Registry
	api       *apiServer
	startedAt time.Time

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	LockFilePath string
	APIAddress   string
	FlowSessions int
	Backend      api.BackendStatus
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithFlowOptions replaces the registry options derived from config.
func WithFlowOptions(opts flowsession.Options) Option {
	return func(d *Daemon) {
		d.flowOpts = opts
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, provider backend.Provider, logger *slog.Logger, notifier notifications.Service, opts ...Option) (*Daemon, error) {
	if cfg == nil || provider == nil || logger == nil {
		return nil, errors.New("daemon requires config, backend, and logger")
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		backend:  provider,
		notifier: notifier,
		flowOpts: flowsession.OptionsFromConfig(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.flowOpts.Stages) == 0 {
		d.flowOpts.Stages = flow.TriagePipeline()
	}
	if d.flowOpts.Timing == (flow.Timing{}) {
		d.flowOpts.Timing = flow.DefaultTiming()
	}
	d.assessments = api.NewAssessmentService(provider).WithNotifier(notifier, logger)
	d.flows = flowsession.NewRegistry(d.flowOpts, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the session reaper and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another triage daemon instance is already running")
	}

	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(ctx)
	flows := d.flows
	d.mu.Unlock()

	flows.StartReaper(d.ctx)
	d.purgeExpiredTokens(d.ctx)

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.abortStart()
		return err
	}
	if err := srv.start(d.ctx); err != nil {
		d.abortStart()
		return err
	}

	d.mu.Lock()
	d.api = srv
	d.startedAt = time.Now().UTC()
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("triage daemon started",
		logging.String("lock", d.lockPath),
		logging.String("backend", backend.Kind(d.backend)),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) purgeExpiredTokens(ctx context.Context) {
	st, ok := d.backend.(*store.Store)
	if !ok {
		return
	}
	purged, err := st.PurgeExpiredTokens(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to purge expired tokens", "token_purge_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "expired tokens stay in the database but are still rejected"),
		)
		return
	}
	if purged > 0 {
		d.logger.Info("purged expired tokens", logging.Int64("count", purged))
	}
}

func (d *Daemon) abortStart() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
	d.mu.Unlock()
	_ = d.lock.Unlock()
}

// Stop stops the API server and every flow session and releases the daemon
// lock. A stopped daemon can be started again.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	srv := d.api
	flows := d.flows
	d.cancel = nil
	d.ctx = nil
	d.api = nil
	d.flows = flowsession.NewRegistry(d.flowOpts, d.logger)
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	srv.stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := flows.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(d.logger, "flow sessions did not stop in time", "flow_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "a subscriber may be blocking; check open event streams"),
			logging.String(logging.FieldImpact, "some simulator goroutines may outlive the daemon"),
		)
	}

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("triage daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.backend != nil {
		return d.backend.Close()
	}
	return nil
}

// Flows returns the live flow-session registry.
func (d *Daemon) Flows() *flowsession.Registry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flows
}

// Assessments returns the assessment service backed by the configured provider.
func (d *Daemon) Assessments() *api.AssessmentService {
	return d.assessments
}

// APIAddress returns the bound listener address, or "" when the API is off.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	flows := d.flows
	address := d.api.address()
	d.mu.Unlock()

	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    startedAt,
		LockFilePath: d.lockPath,
		APIAddress:   address,
		FlowSessions: flows.Len(),
		Backend:      d.backendStatus(ctx),
	}
}

func (d *Daemon) backendStatus(ctx context.Context) api.BackendStatus {
	status := api.BackendStatus{Kind: backend.Kind(d.backend), Healthy: true}
	st, ok := d.backend.(*store.Store)
	if !ok {
		return status
	}
	health, err := st.CheckHealth(ctx)
	status.DatabasePath = health.DBPath
	status.SchemaVersion = health.SchemaVersion
	status.TotalAssessments = health.TotalAssessments
	switch {
	case err != nil:
		status.Healthy = false
		status.Detail = err.Error()
	case health.Error != "":
		status.Healthy = false
		status.Detail = health.Error
	case len(health.MissingTables) > 0 || !health.IntegrityCheck:
		status.Healthy = false
		status.Detail = "schema incomplete or integrity check failed"
	}
	return status
}
