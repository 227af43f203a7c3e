package testsuite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexcodex/planform/execution"
	"github.com/lexcodex/planform/store"
	"github.com/lexcodex/planform/task"
	"github.com/lexcodex/planform/tracker"
	"github.com/lexcodex/planform/workspace"
)

// executionPlan seeds a project whose plan has a file-producing subtask
// followed by a dependent verification subtask.
func executionPlan(t *testing.T, s *store.Store) *task.Task {
	t.Helper()
	tk := task.New("proj1", "proj1", "configure the pipeline")
	tk.State = task.StateNetworkPlanGenerated
	tk.NetworkPlan = &task.NetworkPlan{
		Stages: []task.Stage{{
			ID: "S1", Name: "Setup",
			WorkPackages: []task.Work{{
				ID: "S1_W1", StageID: "S1", Name: "Configure", SequenceOrder: 0,
				Tasks: []task.ExecutableTask{{
					ID: "S1_W1_ET1", WorkID: "S1_W1", Name: "Create config", SequenceOrder: 0,
					ValidationCriteria: []string{
						"config file exists",
						"file parses as valid yaml",
					},
					GeneratedArtifacts: []task.Artifact{{
						Name: "config/pipeline.yml", Type: task.ArtifactDocument, Location: task.LocationWorkspace,
					}},
					Subtasks: []task.Subtask{
						{
							ID: "S1_W1_ET1_ST1", ParentTaskID: "S1_W1_ET1",
							Name: "Write configuration file", Description: "create the pipeline config",
							ExecutorType: task.ExecutorAIAgent, SequenceOrder: 0, Status: task.StatusPending,
						},
						{
							ID: "S1_W1_ET1_ST2", ParentTaskID: "S1_W1_ET1",
							Name: "Review configuration file", Description: "confirm the config was written",
							ExecutorType: task.ExecutorAIAgent, SequenceOrder: 1, Status: task.StatusPending,
						},
					},
				}},
			}},
		}},
	}
	if _, err := s.CreateProject("proj1", "configure the pipeline"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := s.SaveTask("proj1", tk); err != nil {
		t.Fatalf("save task: %v", err)
	}
	return tk
}

// TestExecutionFlowRespectsSequenceAndValidates runs a two-subtask plan in
// order, checking dependency gating, on-disk artifacts, and progress.
func TestExecutionFlowRespectsSequenceAndValidates(t *testing.T) {
	base := t.TempDir()
	s, err := store.New(base, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	wm, err := workspace.NewManager(base, nil)
	if err != nil {
		t.Fatalf("workspace manager: %v", err)
	}
	engine := execution.NewEngine(s, wm, nil)
	tk := executionPlan(t, s)
	tr := tracker.NewTracker("proj1", "run")

	// The second subtask is blocked until its lower-sequence sibling is done.
	isBlocked, blockers := engine.CheckDependencies(tk, "S1_W1_ET1_ST2")
	if !isBlocked || len(blockers) != 1 || blockers[0] != "S1_W1_ET1_ST1" {
		t.Fatalf("expected ST1 to block ST2, got blocked=%v blockers=%v", isBlocked, blockers)
	}

	flow, err := engine.ExecuteTask(context.Background(), "proj1", "S1_W1_ET1_ST1", tr)
	if err != nil {
		t.Fatalf("execute ST1: %v", err)
	}
	if flow.Status != task.StatusCompleted || flow.Executor != "FileOperationExecutor" {
		t.Fatalf("unexpected flow: %+v", flow)
	}

	ws, err := wm.Get("proj1")
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws.Root(), "config", "pipeline.yml")); err != nil {
		t.Fatalf("expected config artifact on disk: %v", err)
	}

	reloaded, err := s.LoadTask("proj1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	isBlocked, blockers = engine.CheckDependencies(reloaded, "S1_W1_ET1_ST2")
	if isBlocked {
		t.Fatalf("ST2 should be unblocked after ST1 completes, got %v", blockers)
	}

	if reloaded.State != task.StateExecuting {
		t.Fatalf("expected task EXECUTING after first subtask, got %s", reloaded.State)
	}

	flow, err = engine.ExecuteTask(context.Background(), "proj1", "S1_W1_ET1_ST2", tr)
	if err != nil {
		t.Fatalf("execute ST2: %v", err)
	}
	if flow.Status != task.StatusCompleted {
		t.Fatalf("expected ST2 completed, got %+v", flow)
	}

	reloaded, err = s.LoadTask("proj1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.State != task.StateCompleted {
		t.Fatalf("expected task COMPLETED after last subtask, got %s", reloaded.State)
	}
	progress, err := engine.ProgressSummary(reloaded, "")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Total != 2 || progress.PercentComplete != 100 {
		t.Fatalf("expected full completion, got %+v", progress)
	}

	// Every executed subtask left a four-step activity trail.
	activities, _, _ := tr.Snapshot()
	if len(activities) != 8 {
		t.Fatalf("expected 8 tracked activities across two runs, got %d", len(activities))
	}
}
