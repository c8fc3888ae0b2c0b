package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"triage/internal/api"
	"triage/internal/daemonctl"
	"triage/internal/daemonrun"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the triage daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.configValue(), exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}, 10*time.Second)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.Status.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the triage daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, backend and flow session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := ctx.apiBaseURL()
			status, err := daemonctl.Probe(cmd.Context(), baseURL, ctx.apiToken())
			if err != nil && !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}
			if ctx.jsonOutput() {
				if status == nil {
					status = &api.DaemonStatus{}
				}
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range statusLines(status, baseURL, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	var logLevel string
	var development bool
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the triage daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel, Development: development})
		},
	}
	daemonCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	daemonCmd.Flags().BoolVar(&development, "dev", false, "Development logging (source locations)")

	return []*cobra.Command{startCmd, stopCmd, statusCmd, daemonCmd}
}

func statusLines(status *api.DaemonStatus, baseURL string, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if status == nil || !status.Running {
		lines = append(lines, renderStatusLine("Triage daemon", statusError, "Not running ("+baseURL+")", colorize))
		return lines
	}
	lines = append(lines,
		renderStatusLine("Triage daemon", statusOK, "Running (pid "+strconv.Itoa(status.PID)+")", colorize),
		renderStatusLine("API", statusInfo, status.APIBind, colorize),
		renderStatusLine("Started", statusInfo, status.StartedAt, colorize),
		renderStatusLine("Auth required", statusInfo, yesNo(status.AuthRequired), colorize),
		renderStatusLine("Flow sessions", statusInfo, strconv.Itoa(status.FlowSessions), colorize),
	)
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Backend", colorize)...)
	backend := status.Backend
	kind := statusOK
	detail := humanize(backend.Kind)
	if !backend.Healthy {
		kind = statusError
		detail += ": " + backend.Detail
	}
	lines = append(lines, renderStatusLine("Provider", kind, detail, colorize))
	if backend.DatabasePath != "" {
		lines = append(lines,
			renderStatusLine("Database", statusInfo, backend.DatabasePath, colorize),
			renderStatusLine("Schema version", statusInfo, strconv.Itoa(backend.SchemaVersion), colorize),
			renderStatusLine("Assessments", statusInfo, strconv.Itoa(backend.TotalAssessments), colorize),
		)
	}
	return lines
}

// daemonExecutable finds triaged beside this binary, then on PATH.
func daemonExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "triaged")
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}
	path, err := exec.LookPath("triaged")
	if err != nil {
		return "", errors.New("triaged executable not found; install it next to triage or run `triage daemon`")
	}
	return path, nil
}
