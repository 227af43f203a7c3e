package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lexcodex/planform/store"
	"github.com/lexcodex/planform/task"
	"github.com/lexcodex/planform/tracker"
	"github.com/lexcodex/planform/workspace"
)

// subtaskTimeout bounds a single executor run.
const subtaskTimeout = 30 * time.Second

// FlowResult is the combined record of one execution flow, returned to the
// caller for display.
type FlowResult struct {
	Ref            string      `json:"ref"`
	Executor       string      `json:"executor,omitempty"`
	Status         task.Status `json:"status"`
	Result         *Result     `json:"result,omitempty"`
	FailedCriteria []string    `json:"failed_criteria,omitempty"`
	Message        string      `json:"message,omitempty"`
}

// Engine executes subtasks against the project's workspace and persists
// status transitions through the store.
type Engine struct {
	store      *store.Store
	workspaces *workspace.Manager
	executors  []Executor
	log        *zap.Logger
}

// NewEngine wires an engine over the default executor chain.
func NewEngine(s *store.Store, workspaces *workspace.Manager, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:      s,
		workspaces: workspaces,
		executors:  DefaultExecutors(),
		log:        log.Named("execution"),
	}
}

// GetTaskDetails resolves a subtask reference into a typed detail record.
// Unknown references return a synthetic record rather than an error, so the
// caller can still record a failure against the reference.
func (e *Engine) GetTaskDetails(t *task.Task, ref string) *TaskDetails {
	parsed, err := task.ParseRef(ref)
	var st *task.Subtask
	if err == nil && parsed.Depth() == 4 {
		st, _ = t.SubtaskByPath(parsed.StageID, parsed.WorkID, parsed.ExecutableTaskID, parsed.SubtaskID)
	}
	if st == nil {
		st = t.FindSubtask(ref)
	}
	if st == nil {
		return &TaskDetails{
			Ref:         ref,
			Known:       false,
			Name:        "unknown task",
			Description: "no subtask found for reference " + ref,
		}
	}
	details := &TaskDetails{
		Ref:          st.ID,
		Known:        true,
		Name:         st.Name,
		Description:  st.Description,
		ExecutorType: st.ExecutorType,
	}
	if et := t.FindExecutableTask(st.ParentTaskID); et != nil {
		details.ValidationCriteria = et.ValidationCriteria
		details.Artifacts = et.GeneratedArtifacts
	}
	return details
}

// SelectExecutor walks the priority chain and returns the first executor
// accepting the task. The chain ends with GenericExecutor, which accepts
// everything.
func (e *Engine) SelectExecutor(d *TaskDetails) Executor {
	for _, ex := range e.executors {
		if ex.CanExecute(d) {
			return ex
		}
	}
	return &GenericExecutor{}
}

// ExecuteTask runs one subtask end to end: resolve, select, execute with a
// deadline, validate, and persist the final status. Every phase is reported
// to the tracker.
func (e *Engine) ExecuteTask(ctx context.Context, projectID, ref string, tr *tracker.Tracker) (*FlowResult, error) {
	lock := e.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := e.store.LoadTask(projectID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("project %s has no task", projectID)
	}

	details := e.GetTaskDetails(t, ref)
	e.track(tr, "resolve", "resolved "+ref, details.Known, "")
	if !details.Known {
		e.track(tr, "execute", "unknown reference", false, details.Description)
		return &FlowResult{
			Ref:     ref,
			Status:  task.StatusFailed,
			Message: details.Description,
		}, nil
	}

	executor := e.SelectExecutor(details)
	e.track(tr, "select", "selected "+executor.Name(), true, "")

	st := t.FindSubtask(details.Ref)
	st.Start()
	// The first subtask to start moves the whole task into execution.
	t.SyncLifecycle()
	if err := e.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}

	ws, err := e.workspaces.Get(projectID)
	if err != nil {
		return nil, err
	}
	execCtx, cancel := context.WithTimeout(ctx, subtaskTimeout)
	defer cancel()
	result, err := executor.Execute(execCtx, details, ws.Root())
	if err != nil {
		result = &Result{Success: false, Error: err.Error()}
	}
	e.track(tr, "execute", executor.Name()+" finished", result.Success, result.Error)

	failed := e.ValidateCompletion(details, result, ws.Root())
	e.track(tr, "validate", fmt.Sprintf("%d criteria failed", len(failed)), len(failed) == 0, strings.Join(failed, "; "))

	flow := &FlowResult{Ref: details.Ref, Executor: executor.Name(), Result: result, FailedCriteria: failed}
	if len(failed) == 0 && result.Success {
		serialized, _ := json.Marshal(result)
		st.Complete(string(serialized))
		flow.Status = task.StatusCompleted
		flow.Message = result.Message
		t.SyncLifecycle()
	} else {
		reason := result.Error
		if len(failed) > 0 {
			reason = "failed criteria: " + strings.Join(failed, "; ")
		}
		st.Fail(reason)
		flow.Status = task.StatusFailed
		flow.Message = reason
	}
	if err := e.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	e.log.Info("subtask executed",
		zap.String("ref", details.Ref),
		zap.String("executor", executor.Name()),
		zap.String("status", string(flow.Status)))
	return flow, nil
}

func (e *Engine) track(tr *tracker.Tracker, action, description string, success bool, errMsg string) {
	if tr == nil {
		return
	}
	tr.LogActivity("ExecutionEngine", action, description, nil, success, errMsg)
}

// ValidateCompletion evaluates each criterion heuristically and returns the
// ones that failed. With no criteria, success rides on the executor result.
func (e *Engine) ValidateCompletion(d *TaskDetails, result *Result, workspacePath string) []string {
	var failed []string
	for _, criterion := range d.ValidationCriteria {
		if !e.criterionPasses(criterion, result, workspacePath) {
			failed = append(failed, criterion)
		}
	}
	return failed
}

func (e *Engine) criterionPasses(criterion string, result *Result, workspacePath string) bool {
	lowered := strings.ToLower(criterion)
	switch {
	case strings.Contains(lowered, "exist") || strings.Contains(lowered, "created"):
		if len(result.ArtifactsCreated) == 0 {
			return false
		}
		for _, rel := range result.ArtifactsCreated {
			if _, err := os.Stat(filepath.Join(workspacePath, rel)); err != nil {
				return false
			}
		}
		return true
	case strings.Contains(lowered, "yaml") || strings.Contains(lowered, "yml"):
		var doc interface{}
		return yaml.Unmarshal([]byte(result.FileContent), &doc) == nil
	case strings.Contains(lowered, "key") || strings.Contains(lowered, "contain"):
		keys := quotedTokens(criterion)
		if len(keys) == 0 {
			keys = bareKeyTokens(criterion)
		}
		if len(keys) == 0 {
			return result.Success
		}
		for _, key := range keys {
			if !strings.Contains(result.FileContent, key) {
				return false
			}
		}
		return true
	default:
		return result.Success
	}
}

// bareKeyTokens extracts unquoted key names following "key" or "keys" in a
// criterion, e.g. "contains key api_base_url and log_level". Connective words
// are skipped; everything else identifier-like after the marker is a key.
func bareKeyTokens(criterion string) []string {
	connectives := map[string]bool{
		"and": true, "or": true, "the": true, "a": true, "an": true,
		"named": true, "called": true, "with": true, "for": true,
		"in": true, "is": true, "are": true, "be": true, "must": true,
		"present": true, "set": true,
	}
	var keys []string
	seen := false
	for _, raw := range strings.Fields(criterion) {
		word := strings.Trim(raw, ".,:;()")
		if word == "" {
			continue
		}
		lowered := strings.ToLower(word)
		if lowered == "key" || lowered == "keys" {
			seen = true
			continue
		}
		if !seen || connectives[lowered] {
			continue
		}
		if identifierLike(word) {
			keys = append(keys, word)
		}
	}
	return keys
}

func identifierLike(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return s != ""
}

// quotedTokens extracts 'single' and "double" quoted names from a criterion.
func quotedTokens(s string) []string {
	var tokens []string
	for _, quote := range []byte{'\'', '"'} {
		rest := s
		for {
			start := strings.IndexByte(rest, quote)
			if start < 0 {
				break
			}
			end := strings.IndexByte(rest[start+1:], quote)
			if end < 0 {
				break
			}
			token := rest[start+1 : start+1+end]
			if token != "" {
				tokens = append(tokens, token)
			}
			rest = rest[start+2+end:]
		}
	}
	return tokens
}
