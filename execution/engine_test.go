package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/planform/store"
	"github.com/lexcodex/planform/task"
	"github.com/lexcodex/planform/tracker"
	"github.com/lexcodex/planform/workspace"
)

func engineFixture(t *testing.T) (*Engine, *store.Store, *workspace.Manager) {
	t.Helper()
	base := t.TempDir()
	s, err := store.New(base, nil)
	require.NoError(t, err)
	wm, err := workspace.NewManager(base, nil)
	require.NoError(t, err)
	return NewEngine(s, wm, nil), s, wm
}

func executableFixture(t *testing.T, s *store.Store) *task.Task {
	t.Helper()
	tk := task.New("proj1", "proj1", "set up the service")
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
						"content contains keys 'application' and 'settings'",
					},
					GeneratedArtifacts: []task.Artifact{{
						Name: "config/config.yml", Type: task.ArtifactDocument, Location: task.LocationWorkspace,
					}},
					Subtasks: []task.Subtask{
						{
							ID: "S1_W1_ET1_ST1", ParentTaskID: "S1_W1_ET1",
							Name: "Write configuration file", Description: "create the config file",
							ExecutorType: task.ExecutorAIAgent, SequenceOrder: 0, Status: task.StatusPending,
						},
						{
							ID: "S1_W1_ET1_ST2", ParentTaskID: "S1_W1_ET1",
							Name: "Verify configuration file", Description: "check the written config",
							ExecutorType: task.ExecutorAIAgent, SequenceOrder: 1, Status: task.StatusPending,
						},
					},
				}, {
					ID: "S1_W1_ET2", WorkID: "S1_W1", Name: "Summarize outcome", SequenceOrder: 1,
					ValidationCriteria: []string{"summary report exists"},
					Subtasks: []task.Subtask{{
						ID: "S1_W1_ET2_ST1", ParentTaskID: "S1_W1_ET2",
						Name: "Summarize outcome", Description: "note what was done",
						ExecutorType: task.ExecutorAIAgent, SequenceOrder: 0, Status: task.StatusPending,
					}},
				}},
			}},
		}},
	}
	_, err := s.CreateProject("proj1", "set up the service")
	require.NoError(t, err)
	require.NoError(t, s.SaveTask("proj1", tk))
	return tk
}

func TestSelectExecutorPrefersFileOperations(t *testing.T) {
	e, _, _ := engineFixture(t)
	fileTask := &TaskDetails{Known: true, Name: "Write configuration file", Description: "create config"}
	require.Equal(t, "FileOperationExecutor", e.SelectExecutor(fileTask).Name())

	plain := &TaskDetails{Known: true, Name: "Summarize outcome", Description: "note results"}
	require.Equal(t, "GenericExecutor", e.SelectExecutor(plain).Name())
}

func TestGetTaskDetailsUnknownRefIsSynthetic(t *testing.T) {
	e, s, _ := engineFixture(t)
	tk := executableFixture(t, s)
	details := e.GetTaskDetails(tk, "S9_W9_ET9_ST9")
	require.False(t, details.Known)
	require.Equal(t, "unknown task", details.Name)
}

func TestExecuteFileSubtaskEndToEnd(t *testing.T) {
	e, s, wm := engineFixture(t)
	executableFixture(t, s)
	tr := tracker.NewTracker("proj1", "sess")

	flow, err := e.ExecuteTask(context.Background(), "proj1", "S1_W1_ET1_ST1", tr)
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, flow.Status)
	require.Equal(t, "FileOperationExecutor", flow.Executor)
	require.Empty(t, flow.FailedCriteria)

	ws, err := wm.Get("proj1")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(ws.Root(), "config", "config.yml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "application")
	require.Contains(t, string(data), "settings")

	reloaded, err := s.LoadTask("proj1")
	require.NoError(t, err)
	st := reloaded.FindSubtask("S1_W1_ET1_ST1")
	require.Equal(t, task.StatusCompleted, st.Status)
	require.NotNil(t, st.CompletedAt)
	require.Contains(t, st.Result, "artifacts_created")

	activities, _, _ := tr.Snapshot()
	require.Len(t, activities, 4, "resolve, select, execute, validate")
}

func TestExecuteUnknownRefWritesFailedFlow(t *testing.T) {
	e, s, _ := engineFixture(t)
	executableFixture(t, s)

	flow, err := e.ExecuteTask(context.Background(), "proj1", "S5_W1_ET1_ST1", nil)
	require.NoError(t, err, "unknown references fail the flow, not the call")
	require.Equal(t, task.StatusFailed, flow.Status)
	require.Contains(t, flow.Message, "no subtask found")
}

func TestExecuteGenericSubtaskFailsUnmetCriterion(t *testing.T) {
	e, s, _ := engineFixture(t)
	executableFixture(t, s)

	flow, err := e.ExecuteTask(context.Background(), "proj1", "S1_W1_ET2_ST1", nil)
	require.NoError(t, err)
	require.Equal(t, "GenericExecutor", flow.Executor)
	// The generic executor creates no artifacts, so the parent's
	// file-existence criterion fails and the subtask lands FAILED.
	require.Equal(t, task.StatusFailed, flow.Status)
	require.Equal(t, []string{"summary report exists"}, flow.FailedCriteria)

	reloaded, err := s.LoadTask("proj1")
	require.NoError(t, err)
	st := reloaded.FindSubtask("S1_W1_ET2_ST1")
	require.Equal(t, task.StatusFailed, st.Status)
	require.Contains(t, st.ErrorMessage, "failed criteria")
}

func TestValidateCompletionHeuristics(t *testing.T) {
	e, _, _ := engineFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "app.yml"), []byte("a: 1\n"), 0o644))

	details := &TaskDetails{ValidationCriteria: []string{
		"file exists",
		"valid yaml syntax",
		"contains key 'alpha'",
		"just succeed",
	}}
	result := &Result{
		Success:          true,
		ArtifactsCreated: []string{"config/app.yml"},
		FileContent:      "alpha: 1\nbeta: 2\n",
	}
	require.Empty(t, e.ValidateCompletion(details, result, dir))

	badYAML := &Result{Success: true, ArtifactsCreated: []string{"config/app.yml"}, FileContent: "a: [unclosed"}
	failed := e.ValidateCompletion(details, badYAML, dir)
	require.Contains(t, failed, "valid yaml syntax")
	require.Contains(t, failed, "contains key 'alpha'")
}

func TestValidateCompletionUnquotedKeys(t *testing.T) {
	e, _, _ := engineFixture(t)
	dir := t.TempDir()

	details := &TaskDetails{ValidationCriteria: []string{
		"config contains key api_base_url",
	}}
	missing := &Result{Success: true, FileContent: "log_level: info\n"}
	failed := e.ValidateCompletion(details, missing, dir)
	require.Equal(t, []string{"config contains key api_base_url"}, failed,
		"an unquoted key name must still be checked against the content")

	present := &Result{Success: true, FileContent: "api_base_url: http://localhost:8000\n"}
	require.Empty(t, e.ValidateCompletion(details, present, dir))

	several := &TaskDetails{ValidationCriteria: []string{
		"contains keys api_base_url and log_level",
	}}
	require.Empty(t, e.ValidateCompletion(several, present, dir))
	partial := &Result{Success: true, FileContent: "api_base_url: x\n"}
	require.Len(t, e.ValidateCompletion(several, partial, dir), 1)
}

func TestConfigTemplateSatisfiesKeyCriteria(t *testing.T) {
	e, s, _ := engineFixture(t)
	tk := executableFixture(t, s)
	et := tk.FindExecutableTask("S1_W1_ET1")
	et.ValidationCriteria = append(et.ValidationCriteria, "config contains key api_base_url")
	require.NoError(t, s.SaveTask("proj1", tk))

	flow, err := e.ExecuteTask(context.Background(), "proj1", "S1_W1_ET1_ST1", nil)
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, flow.Status)
	require.Empty(t, flow.FailedCriteria)
}

// singleSubtaskFixture seeds a plan whose one subtask fully completes, so the
// task can walk the entire EXECUTING to COMPLETED arc.
func singleSubtaskFixture(t *testing.T, s *store.Store) {
	t.Helper()
	tk := task.New("proj1", "proj1", "write the config")
	tk.State = task.StateNetworkPlanGenerated
	tk.NetworkPlan = &task.NetworkPlan{
		Stages: []task.Stage{{
			ID: "S1", Name: "Setup",
			WorkPackages: []task.Work{{
				ID: "S1_W1", StageID: "S1", Name: "Configure", SequenceOrder: 0,
				Tasks: []task.ExecutableTask{{
					ID: "S1_W1_ET1", WorkID: "S1_W1", Name: "Create config", SequenceOrder: 0,
					ValidationCriteria: []string{"config file exists"},
					Subtasks: []task.Subtask{{
						ID: "S1_W1_ET1_ST1", ParentTaskID: "S1_W1_ET1",
						Name: "Write configuration file", Description: "create the config file",
						ExecutorType: task.ExecutorAIAgent, SequenceOrder: 0, Status: task.StatusPending,
					}},
				}},
			}},
		}},
	}
	_, err := s.CreateProject("proj1", "write the config")
	require.NoError(t, err)
	require.NoError(t, s.SaveTask("proj1", tk))
}

func TestExecuteAdvancesTaskLifecycle(t *testing.T) {
	e, s, _ := engineFixture(t)
	singleSubtaskFixture(t, s)

	flow, err := e.ExecuteTask(context.Background(), "proj1", "S1_W1_ET1_ST1", nil)
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, flow.Status)

	reloaded, err := s.LoadTask("proj1")
	require.NoError(t, err)
	require.Equal(t, task.StateCompleted, reloaded.State,
		"finishing the last subtask completes the task")
}

func TestExecuteMovesTaskIntoExecuting(t *testing.T) {
	e, s, _ := engineFixture(t)
	executableFixture(t, s)

	_, err := e.ExecuteTask(context.Background(), "proj1", "S1_W1_ET1_ST1", nil)
	require.NoError(t, err)

	reloaded, err := s.LoadTask("proj1")
	require.NoError(t, err)
	require.Equal(t, task.StateExecuting, reloaded.State,
		"the task stays EXECUTING while siblings remain pending")
}

func TestCheckDependenciesSequenceOrder(t *testing.T) {
	e, s, _ := engineFixture(t)
	tk := executableFixture(t, s)

	blocked, blocking := e.CheckDependencies(tk, "S1_W1_ET1_ST2")
	require.True(t, blocked, "earlier sibling still pending")
	require.Equal(t, []string{"S1_W1_ET1_ST1"}, blocking)

	tk.FindSubtask("S1_W1_ET1_ST1").Complete("done")
	blocked, _ = e.CheckDependencies(tk, "S1_W1_ET1_ST2")
	require.False(t, blocked)
}

func TestProgressSummary(t *testing.T) {
	e, s, _ := engineFixture(t)
	tk := executableFixture(t, s)

	p, err := e.ProgressSummary(tk, "S1")
	require.NoError(t, err)
	require.Equal(t, 3, p.Total)
	require.Equal(t, 3, p.ByStatus[task.StatusPending])
	require.Equal(t, []string{"S1_W1_ET1_ST2"}, p.Blocked, "later sibling waits on the pending first subtask")

	tk.FindSubtask("S1_W1_ET1_ST1").Complete("done")
	p, err = e.ProgressSummary(tk, "S1")
	require.NoError(t, err)
	require.Equal(t, 1, p.ByStatus[task.StatusCompleted])
	require.InDelta(t, 100.0/3, p.PercentComplete, 0.01)
	require.Empty(t, p.Blocked)
}

func TestSuggestValidationWorkflow(t *testing.T) {
	e, s, _ := engineFixture(t)
	tk := executableFixture(t, s)

	steps, err := e.SuggestValidationWorkflow(tk, "S1_W1_ET1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Contains(t, steps[0], "complete subtask")

	tk.FindSubtask("S1_W1_ET1_ST1").Complete("done")
	tk.FindSubtask("S1_W1_ET1_ST2").Complete("done")
	steps, err = e.SuggestValidationWorkflow(tk, "S1_W1_ET1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(steps), 3)
	require.Contains(t, steps[len(steps)-1], "READY_FOR_VALIDATION")
}
