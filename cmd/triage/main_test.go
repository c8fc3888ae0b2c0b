package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"triage/internal/api"
	"triage/internal/assessment"
	"triage/internal/flow"
	"triage/internal/testsupport"
)

func TestCLIListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No assessments") {
		t.Fatalf("expected empty message, got %q", out)
	}

	record := testsupport.SeedAssessment(t, env.store, "a-1", "deep cut on forearm",
		testsupport.Completed("Laceration", assessment.StatusSevere, 4),
		testsupport.WithDiagnoses(assessment.Diagnosis{Name: "Deep Laceration", Confidence: 0.85}))

	out, err = env.run(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{record.ID, "Laceration", "4/5", "Severe"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "show", "a-1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"deep cut on forearm", "Deep Laceration", "85%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}

	if _, err := env.run(t, "show", "missing"); err == nil || !strings.Contains(err.Error(), "not_found") {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func TestCLIListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedAssessment(t, env.store, "a-1", "rash")

	out, err := env.run(t, "--json", "list")
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var items []api.AssessmentSummary
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0].ID != "a-1" {
		t.Fatalf("unexpected items: %#v", items)
	}
}

func TestCLINewAssessment(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "new", "--user", "user-7", "--symptoms", "swollen ankle", "--age", "30", "--fever")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !strings.HasPrefix(out, "Created assessment ") {
		t.Fatalf("unexpected output %q", out)
	}
	id := strings.TrimSpace(strings.TrimPrefix(out, "Created assessment "))
	record, err := env.store.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.UserID != "user-7" || !record.HasFever || record.PatientAge == nil || *record.PatientAge != 30 {
		t.Fatalf("unexpected record: %#v", record)
	}

	if _, err := env.run(t, "new", "--user", "user-7"); err == nil {
		t.Fatal("expected missing symptoms to fail")
	}
}

func TestCLIStatsAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.SeedAssessment(t, env.store, "a-1", "burn",
		testsupport.Completed("Burn", assessment.StatusCritical, 5))

	out, err := env.run(t, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "Total assessments") || !strings.Contains(out, "[ERROR] 1") {
		t.Fatalf("unexpected stats output:\n%s", out)
	}

	out, err = env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "[OK] Running") || !strings.Contains(out, "Sqlite") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func TestCLIStatusWhenDaemonDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, err := runCLI(t, []string{"--config", configPath, "--api", "127.0.0.1:1", "status"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Not running") {
		t.Fatalf("expected not running, got:\n%s", out)
	}
}

func TestCLIFlowRun(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "flow", "run", "--dwell", "1ms", "--gap", "0s")
	if err != nil {
		t.Fatalf("flow run: %v", err)
	}
	stages := flow.TriagePipeline()
	if !strings.Contains(out, "Flow completed: 9/9 stages") {
		t.Fatalf("missing completion line:\n%s", out)
	}
	if !strings.Contains(out, "[1/9] ▶ "+stages[0].Label) || !strings.Contains(out, stages[len(stages)-1].Label) {
		t.Fatalf("missing stage lines:\n%s", out)
	}
}

func TestCLIFlowRunJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "--json", "flow", "run", "--dwell", "1ms", "--gap", "0s")
	if err != nil {
		t.Fatalf("flow run --json: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var last api.FlowEvent
	for i, line := range lines {
		var event api.FlowEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if event.Seq != uint64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, event.Seq)
		}
		last = event
	}
	if last.Kind != string(flow.EventRunCompleted) {
		t.Fatalf("expected run_completed last, got %q", last.Kind)
	}
}

func TestCLIFlowGraph(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "flow", "graph", "--rankdir", "lr")
	if err != nil {
		t.Fatalf("flow graph: %v", err)
	}
	if !strings.Contains(out, "strict digraph") || !strings.Contains(out, `rankdir="LR"`) {
		t.Fatalf("unexpected DOT:\n%s", out)
	}
	if !strings.Contains(out, `"upload" -> "preprocessing"`) {
		t.Fatalf("missing first edge:\n%s", out)
	}
}

func TestCLIFlowGraphRejectsUnknownRankDir(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "flow", "graph", "--rankdir", "sideways")
	if err == nil {
		t.Fatalf("expected error for bad rankdir, got output:\n%s", out)
	}
	if !strings.Contains(err.Error(), "rankdir") {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "digraph") {
		t.Fatalf("no DOT should be written on error:\n%s", out)
	}
}

func TestCLIFlowStartWatch(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "flow", "start", "a-1", "--watch")
	if err != nil {
		t.Fatalf("flow start --watch: %v", err)
	}
	if !strings.Contains(out, "9/9") {
		t.Fatalf("expected a completed flow, got:\n%s", out)
	}
	if env.daemon.Flows().Len() != 1 {
		t.Fatalf("expected one registered session, got %d", env.daemon.Flows().Len())
	}
}

func TestCLIConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected existing config to be protected")
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestCLIConfigValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, err := runCLI(t, []string{"--config", configPath, "config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, configPath) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
