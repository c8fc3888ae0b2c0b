package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"triage/internal/api"
	"triage/internal/flow"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Triage daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Triage daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Triage daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestRecommendationRendering(t *testing.T) {
	if recommendationKind("Critical") != statusError || recommendationKind("mild") != statusOK {
		t.Fatal("unexpected recommendation kinds")
	}
	if recommendationLabel("") != "Pending" || recommendationLabel("severe") != "Severe" {
		t.Fatalf("unexpected labels %q %q", recommendationLabel(""), recommendationLabel("severe"))
	}
	if humanize("stage_completed") != "Stage Completed" {
		t.Fatalf("unexpected humanize result %q", humanize("stage_completed"))
	}
}

func TestFormatFlowEvent(t *testing.T) {
	snap := api.FlowSnapshot{
		Phase: string(flow.PhaseRunning),
		Total: 2,
		Stages: []api.FlowStage{
			{ID: "upload", Label: "Image Upload", Category: flow.CategoryIngest, Status: string(flow.StatusCompleted)},
			{ID: "final", Label: "Generate Final Report", Category: flow.CategoryReport, Status: string(flow.StatusProcessing)},
		},
	}

	line := formatFlowEvent(api.FlowEvent{Kind: string(flow.EventStageProcessing), StageID: "final", Snapshot: snap}, false)
	if !strings.HasPrefix(line, "[2/2] ▶ Generate Final Report") || !strings.HasSuffix(line, "Processing") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := formatFlowEvent(api.FlowEvent{Kind: string(flow.EventStageCompleted), StageID: "upload", Snapshot: snap}, true)
	if !strings.Contains(colored, "\x1b[38;2;59;130;246m") {
		t.Fatalf("expected category color, got %q", colored)
	}
	if formatFlowEvent(api.FlowEvent{Kind: string(flow.EventEdgeActivated), Snapshot: snap}, false) != "" {
		t.Fatal("edge events are not printed")
	}
	if formatFlowEvent(api.FlowEvent{Kind: string(flow.EventStageCompleted), StageID: "nope", Snapshot: snap}, false) != "" {
		t.Fatal("unknown stages are skipped")
	}
}

func TestReadEvents(t *testing.T) {
	stream := ": ping\n\n" +
		"event: snapshot\ndata: {\"seq\":0,\"kind\":\"snapshot\",\"snapshot\":{\"phase\":\"idle\"}}\n\n" +
		"id: 1\nevent: stage_processing\ndata: {\"seq\":1,\"kind\":\"stage_processing\",\"stageId\":\"upload\"}\n\n" +
		"event: end\ndata: {\"seq\":0,\"kind\":\"end\"}\n\n" +
		"event: stage_processing\ndata: {\"seq\":9,\"kind\":\"ignored\"}\n\n"

	var kinds []string
	err := readEvents(strings.NewReader(stream), func(event api.FlowEvent) error {
		kinds = append(kinds, event.Kind)
		return nil
	})
	if err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	if strings.Join(kinds, ",") != "snapshot,stage_processing,end" {
		t.Fatalf("unexpected kinds %v", kinds)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &apiError{Status: 404, Kind: "not_found", Message: "assessment x not found", CorrelationID: "c-1"}
	if err.Error() != "not_found: assessment x not found (correlation id c-1)" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if (&apiError{Status: 502}).Error() != "Bad Gateway" {
		t.Fatalf("unexpected fallback %q", (&apiError{Status: 502}).Error())
	}
}
