package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"triage/internal/api"
	"triage/internal/flow"
	"triage/internal/flowgraph"
)

func newFlowCommand(ctx *commandContext) *cobra.Command {
	flowCmd := &cobra.Command{
		Use:   "flow",
		Short: "Pipeline-flow simulator",
	}
	flowCmd.AddCommand(newFlowRunCommand(ctx))
	flowCmd.AddCommand(newFlowGraphCommand(ctx))
	flowCmd.AddCommand(newFlowStartCommand(ctx))
	flowCmd.AddCommand(newFlowWatchCommand(ctx))
	return flowCmd
}

func newFlowRunCommand(ctx *commandContext) *cobra.Command {
	var dwell, gap time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Animate the triage pipeline locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			timing := flow.DefaultTiming()
			if cfg := ctx.configValue(); cfg != nil {
				timing = flow.Timing{Dwell: cfg.Dwell(), Gap: cfg.Gap()}
			}
			flags := cmd.Flags()
			if flags.Changed("dwell") {
				timing.Dwell = dwell
			}
			if flags.Changed("gap") {
				timing.Gap = gap
			}

			out := cmd.OutOrStdout()
			printer := newEventPrinter(out, ctx.jsonOutput(), shouldColorize(out))
			sim, err := flow.New(flow.TriagePipeline(),
				flow.WithTiming(timing),
				flow.WithObserver(func(event flow.Event) {
					printer.print(api.FromEvent(event))
				}),
			)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return sim.Run(runCtx)
		},
	}
	cmd.Flags().DurationVar(&dwell, "dwell", 0, "Time each stage spends processing (defaults to flow.dwell_ms)")
	cmd.Flags().DurationVar(&gap, "gap", 0, "Pause between stages (defaults to flow.gap_ms)")
	return cmd
}

func newFlowGraphCommand(ctx *commandContext) *cobra.Command {
	var sessionID, rankdir string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the pipeline as Graphviz DOT",
		Long: "Print the pipeline as Graphviz DOT. Without --session the idle pipeline is rendered " +
			"locally; with --session the daemon renders that session's current state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rankdir = strings.ToUpper(strings.TrimSpace(rankdir))
			if rankdir != "" && !flowgraph.ValidRankDir(rankdir) {
				return fmt.Errorf("invalid --rankdir %q: must be one of LR, RL, TB, BT", rankdir)
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(sessionID) != "" {
				client, err := ctx.client()
				if err != nil {
					return err
				}
				dot, err := client.FlowGraph(cmd.Context(), sessionID, rankdir)
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, dot)
				return err
			}

			sim, err := flow.New(flow.TriagePipeline())
			if err != nil {
				return err
			}
			var opts []flowgraph.Option
			if rankdir != "" {
				opts = append(opts, flowgraph.GraphAttribute("rankdir", rankdir))
			}
			return flowgraph.Render(out, sim.Snapshot(), opts...)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Render a live flow session from the daemon")
	cmd.Flags().StringVar(&rankdir, "rankdir", "", "Graph direction: LR, RL, TB or BT")
	return cmd
}

func newFlowStartCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "start [assessment-id]",
		Short: "Start a flow session on the daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var assessmentID string
			if len(args) == 1 {
				assessmentID = args[0]
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			session, err := client.StartFlow(cmd.Context(), assessmentID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !watch {
				if ctx.jsonOutput() {
					return writeJSON(cmd, session)
				}
				fmt.Fprintf(out, "Started flow session %s\n", session.ID)
				return nil
			}
			return watchFlow(cmd, ctx, client, session.ID)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the session's events")
	return cmd
}

func newFlowWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a flow session's events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			return watchFlow(cmd, ctx, client, args[0])
		},
	}
}

func watchFlow(cmd *cobra.Command, ctx *commandContext, client *apiClient, sessionID string) error {
	out := cmd.OutOrStdout()
	printer := newEventPrinter(out, ctx.jsonOutput(), shouldColorize(out))
	watchCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err := client.WatchFlow(watchCtx, sessionID, func(event api.FlowEvent) error {
		printer.print(event)
		return nil
	})
	if watchCtx.Err() != nil && errors.Is(err, watchCtx.Err()) {
		return nil
	}
	return err
}

// eventPrinter writes one line per flow event, or one JSON object per line.
type eventPrinter struct {
	out      io.Writer
	json     bool
	colorize bool
}

func newEventPrinter(out io.Writer, asJSON, colorize bool) *eventPrinter {
	return &eventPrinter{out: out, json: asJSON, colorize: colorize}
}

func (p *eventPrinter) print(event api.FlowEvent) {
	if p.json {
		_ = writeJSONLine(p.out, event)
		return
	}
	if line := formatFlowEvent(event, p.colorize); line != "" {
		fmt.Fprintln(p.out, line)
	}
}

func formatFlowEvent(event api.FlowEvent, colorize bool) string {
	snap := event.Snapshot
	switch event.Kind {
	case string(flow.EventStageProcessing), string(flow.EventStageCompleted):
		index, stage, ok := findStage(snap, event.StageID)
		if !ok {
			return ""
		}
		marker := "▶"
		if event.Kind == string(flow.EventStageCompleted) {
			marker = "✓"
		}
		label := stage.Label
		if colorize {
			label = categoryANSI(stage.Category) + label + ansiReset
		}
		return fmt.Sprintf("[%d/%d] %s %-28s %s", index+1, snap.Total, marker, label, humanize(stage.Status))
	case string(flow.EventRunCompleted):
		return fmt.Sprintf("Flow completed: %d/%d stages", snap.Completed, snap.Total)
	case string(flow.EventRunCancelled):
		return fmt.Sprintf("Flow cancelled: %d/%d stages completed", snap.Completed, snap.Total)
	case "snapshot":
		return fmt.Sprintf("Flow %s: %d/%d stages completed", humanize(snap.Phase), snap.Completed, snap.Total)
	default:
		return ""
	}
}

func findStage(snap api.FlowSnapshot, id string) (int, api.FlowStage, bool) {
	for i, stage := range snap.Stages {
		if stage.ID == id {
			return i, stage, true
		}
	}
	return -1, api.FlowStage{}, false
}

// categoryANSI returns a 24-bit foreground escape for the stage category.
func categoryANSI(category string) string {
	c := flow.CategoryRGB(category)
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", c.R, c.G, c.B)
}
