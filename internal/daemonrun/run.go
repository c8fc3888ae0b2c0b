package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"triage/internal/backend"
	"triage/internal/config"
	"triage/internal/daemon"
	"triage/internal/logging"
	"triage/internal/notifications"
	"triage/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the triage daemon and blocks until SIGINT, SIGTERM or cmdCtx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logStartupSnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	provider, err := backend.Open(cfg)
	if err != nil {
		logger.Error("open backend", logging.Error(err), logging.String("backend", cfg.Backend.Kind))
		return err
	}

	notifier := notifications.NewService(cfg)
	d, err := daemon.New(cfg, provider, logger, notifier)
	if err != nil {
		_ = provider.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and that no other triaged holds "+cfg.LockPath()),
			logging.String(logging.FieldImpact, "the API is not served"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("triage daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// logPreflight warns about failed readiness checks without stopping startup.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String(logging.FieldErrorHint, result.Detail),
		)
	}
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	logOpts := logging.FromConfig(cfg)
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logOpts.Level = level
	}
	logOpts.Development = opts.Development
	return logging.New(logOpts)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.String("backend", cfg.Backend.Kind),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("auth_required", cfg.Auth.Required),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Auth.APIToken) != ""),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Duration("flow_dwell", cfg.Dwell()),
		logging.Duration("flow_gap", cfg.Gap()),
		logging.Int("flow_max_sessions", cfg.Flow.MaxSessions),
	)
}
