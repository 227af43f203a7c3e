// Package workspace manages the per-task filesystem sandbox. Every path a
// tool supplies is resolved through the Workspace value type, which anchors
// it under the allowed base directory and rejects anything that escapes
// after symlink resolution.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexcodex/planform/framework"
)

// Workspace encapsulates the root of one task's sandbox. All filesystem
// access goes through Resolve so the containment invariant holds for every
// operation, not just the well-behaved ones.
type Workspace struct {
	root string
}

const (
	sessionHistoryFile = "session_history.txt"
	projectNotesFile   = "project_notes.md"
	currentStatusFile  = "current_status.json"
	generatedFilesDir  = "generated_files"
	tempDir            = "temp"
)

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string { return w.root }

// Resolve maps a caller-supplied path into the sandbox. The requested path
// has ~ expanded, is joined under the root, then symlinks are resolved; if
// the real path is not a descendant of the root the call fails with
// SandboxViolation. Escaping is fatal per call, never recoverable.
func (w *Workspace) Resolve(requested string) (string, error) {
	expanded := expandUser(requested)
	var absolute string
	if filepath.IsAbs(expanded) {
		absolute = filepath.Clean(expanded)
	} else {
		absolute = filepath.Join(w.root, expanded)
	}
	resolved, err := resolveSymlinks(absolute)
	if err != nil {
		return "", err
	}
	rootReal, err := resolveSymlinks(w.root)
	if err != nil {
		return "", err
	}
	if !isDescendant(rootReal, resolved) {
		return "", framework.SandboxViolationf("path %s escapes the allowed directory", requested)
	}
	return resolved, nil
}

// resolveSymlinks walks up to the nearest existing ancestor so paths that do
// not exist yet (a file about to be written) still get their parent chain
// checked for symlink tricks.
func resolveSymlinks(path string) (string, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real, nil
	}
	dir, base := filepath.Dir(path), filepath.Base(path)
	if dir == path {
		return path, nil
	}
	realDir, err := resolveSymlinks(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(realDir, base), nil
}

func isDescendant(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// CurrentStatus is the structured state file agents keep per workspace.
type CurrentStatus struct {
	LastUpdated     time.Time         `json:"last_updated"`
	CurrentFocus    string            `json:"current_focus"`
	CompletedTasks  []string          `json:"completed_tasks"`
	NextActions     []string          `json:"next_actions"`
	FilesCreated    []string          `json:"files_created"`
	UserPreferences map[string]string `json:"user_preferences"`
}

// AppendSessionHistory records one exchange in the append-only session log.
func (w *Workspace) AppendSessionHistory(sessionID, userMsg, agentReply string) error {
	line := fmt.Sprintf("[%s] session=%s\nuser: %s\nagent: %s\n\n",
		time.Now().UTC().Format(time.RFC3339), sessionID, userMsg, agentReply)
	return w.appendFile(sessionHistoryFile, line)
}

// AppendNotes adds a timestamped markdown section to the project notes.
func (w *Workspace) AppendNotes(section string) error {
	entry := fmt.Sprintf("\n## %s\n\n%s\n", time.Now().UTC().Format(time.RFC3339), section)
	return w.appendFile(projectNotesFile, entry)
}

// ReadStatus loads current_status.json, returning an empty status when the
// file does not exist yet.
func (w *Workspace) ReadStatus() (*CurrentStatus, error) {
	data, err := os.ReadFile(filepath.Join(w.root, currentStatusFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &CurrentStatus{UserPreferences: map[string]string{}}, nil
		}
		return nil, err
	}
	var status CurrentStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WriteStatus persists current_status.json with a fresh last_updated.
func (w *Workspace) WriteStatus(status *CurrentStatus) error {
	status.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.root, currentStatusFile), data, 0o644)
}

// GeneratedFilesDir returns the agent-writable artifacts directory.
func (w *Workspace) GeneratedFilesDir() string {
	return filepath.Join(w.root, generatedFilesDir)
}

func (w *Workspace) appendFile(name, content string) error {
	f, err := os.OpenFile(filepath.Join(w.root, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}
