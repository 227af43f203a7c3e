// Package execution runs individual subtasks end to end: resolve the
// reference, pick an executor, execute inside the project workspace, and
// validate the outcome against the parent's criteria.
package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexcodex/planform/task"
)

// TaskDetails is the typed record an executor receives. Unknown references
// produce a synthetic record with Known=false so the caller can still write
// a FAILED status instead of erroring out.
type TaskDetails struct {
	Ref                string
	Known              bool
	Name               string
	Description        string
	ExecutorType       task.ExecutorType
	ValidationCriteria []string
	Artifacts          []task.Artifact
}

// Result is what an executor reports back.
type Result struct {
	Success          bool                   `json:"success"`
	Message          string                 `json:"message"`
	ArtifactsCreated []string               `json:"artifacts_created,omitempty"`
	FileContent      string                 `json:"file_content,omitempty"`
	FilePath         string                 `json:"file_path,omitempty"`
	Error            string                 `json:"error,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Executor performs one class of subtask. Engines walk a priority-ordered
// list asking each CanExecute; the first to accept wins.
type Executor interface {
	Name() string
	CanExecute(d *TaskDetails) bool
	Execute(ctx context.Context, d *TaskDetails, workspacePath string) (*Result, error)
}

// FileOperationExecutor handles subtasks that create or configure files. It
// materializes the named artifact (or a default config file) with templated
// content.
type FileOperationExecutor struct{}

func (e *FileOperationExecutor) Name() string { return "FileOperationExecutor" }

// CanExecute accepts tasks whose description or artifacts mention files or
// configuration.
func (e *FileOperationExecutor) CanExecute(d *TaskDetails) bool {
	text := strings.ToLower(d.Name + " " + d.Description)
	if strings.Contains(text, "file") || strings.Contains(text, "config") {
		return true
	}
	for _, a := range d.Artifacts {
		if a.Type == task.ArtifactDocument || a.Type == task.ArtifactData ||
			strings.Contains(strings.ToLower(a.Name), "config") {
			return true
		}
	}
	return false
}

const configTemplate = `# Generated configuration
application:
  name: %s
  environment: development
settings:
  api_base_url: http://localhost:8000
  log_level: info
  timeout_seconds: 30
`

func (e *FileOperationExecutor) Execute(ctx context.Context, d *TaskDetails, workspacePath string) (*Result, error) {
	relPath := e.targetPath(d)
	absPath := filepath.Join(workspacePath, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	content := fmt.Sprintf(configTemplate, sanitizeName(d.Name))
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{
		Success:          true,
		Message:          "created " + relPath,
		ArtifactsCreated: []string{relPath},
		FileContent:      content,
		FilePath:         relPath,
		Metadata:         map[string]interface{}{"executor": e.Name()},
	}, nil
}

// targetPath picks the file to create: the first named artifact, or the
// default config location when the task only talks about configuration.
func (e *FileOperationExecutor) targetPath(d *TaskDetails) string {
	for _, a := range d.Artifacts {
		if a.Name != "" && a.Location != task.LocationExternal {
			return a.Name
		}
	}
	return filepath.Join("config", "config.yml")
}

func sanitizeName(name string) string {
	if name == "" {
		return "task"
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// GenericExecutor is the fallback: it accepts anything and marks the task
// done with a neutral message.
type GenericExecutor struct{}

func (e *GenericExecutor) Name() string                  { return "GenericExecutor" }
func (e *GenericExecutor) CanExecute(d *TaskDetails) bool { return true }

func (e *GenericExecutor) Execute(ctx context.Context, d *TaskDetails, workspacePath string) (*Result, error) {
	return &Result{
		Success:  true,
		Message:  "completed: " + d.Name,
		Metadata: map[string]interface{}{"executor": e.Name()},
	}, nil
}

// DefaultExecutors is the priority-ordered executor chain.
func DefaultExecutors() []Executor {
	return []Executor{&FileOperationExecutor{}, &GenericExecutor{}}
}
