package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"triage/internal/assessment"
	"triage/internal/flow"
	"triage/internal/flowsession"
)

func TestFromAssessmentUsesCamelCase(t *testing.T) {
	temp := 38.2
	record := &assessment.Assessment{
		ID:                 "a-1",
		UserID:             "u-1",
		SymptomDescription: "fever",
		HasFever:           true,
		TemperatureCelsius: &temp,
		CreatedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	raw, err := json.Marshal(FromAssessment(record))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, want := range []string{`"symptomDescription":"fever"`, `"hasFever":true`, `"temperatureCelsius":38.2`, `"createdAt":"2026-01-02T03:04:05.000Z"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
	if strings.Contains(body, "severityScore") {
		t.Fatalf("expected unset severity to be omitted: %s", body)
	}
	if FromAssessment(nil).ID != "" {
		t.Fatal("expected zero DTO for nil record")
	}
}

func TestFromUser(t *testing.T) {
	got := FromUser(&assessment.User{ID: "u", Email: "e@x", Role: assessment.RoleHealthcareWorker})
	if got.Role != "healthcare_worker" || got.RoleLabel != "Healthcare Worker" {
		t.Fatalf("unexpected user: %#v", got)
	}
	if FromUser(&assessment.User{ID: "u"}).RoleLabel != "" {
		t.Fatal("expected no label for an unknown role")
	}
}

func TestFromSnapshot(t *testing.T) {
	snap := flow.Snapshot{
		Phase:   flow.PhaseRunning,
		Current: 1,
		Stages: []flow.Stage{
			{ID: "upload", Label: "Image Upload", Category: flow.CategoryIngest, Status: flow.StatusCompleted},
			{ID: "final", Label: "Final", Category: flow.CategoryReport, Status: flow.StatusProcessing},
		},
		Edges: []flow.Edge{{ID: flow.EdgeID("upload", "final"), Source: "upload", Target: "final", Active: true}},
	}
	dto := FromSnapshot(snap)
	if dto.Phase != "running" || dto.Completed != 1 || dto.Total != 2 || dto.Current != 1 {
		t.Fatalf("unexpected snapshot: %#v", dto)
	}
	if dto.Stages[0].Color != flow.CategoryColor(flow.CategoryIngest) || dto.Stages[0].Color == "" {
		t.Fatalf("unexpected color %q", dto.Stages[0].Color)
	}
	if !dto.Edges[0].Active || dto.Edges[0].ID != "upload->final" {
		t.Fatalf("unexpected edge: %#v", dto.Edges[0])
	}

	event := FromEvent(flow.Event{Seq: 4, Kind: flow.EventEdgeActivated, EdgeID: "upload->final", Snapshot: snap})
	if event.Kind != "edge_activated" || event.Seq != 4 || event.Snapshot.Total != 2 {
		t.Fatalf("unexpected event: %#v", event)
	}

	session := FromSessionInfo(flowsession.Info{ID: "s", AssessmentID: "a", Subscribers: 2, Snapshot: snap})
	if session.ID != "s" || session.Subscribers != 2 || session.Snapshot.Phase != "running" {
		t.Fatalf("unexpected session: %#v", session)
	}
}

func TestEmptySnapshotEncodesEmptyArrays(t *testing.T) {
	raw, err := json.Marshal(FromSnapshot(flow.Snapshot{Phase: flow.PhaseIdle, Current: -1}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"stages":[]`) || !strings.Contains(string(raw), `"edges":[]`) {
		t.Fatalf("expected empty arrays, got %s", raw)
	}
}
