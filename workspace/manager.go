package workspace

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
)

// Manager lazily creates and hands out per-task workspaces under the allowed
// base directory. Workspaces are keyed by the project's human-readable slug.
type Manager struct {
	base   string
	logger *zap.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewManager anchors the manager at the allowed base directory. The base
// must be absolute: a relative anchor would make the containment check
// depend on the process working directory.
func NewManager(base string, logger *zap.Logger) (*Manager, error) {
	if base == "" {
		return nil, framework.Validationf("allowed base dir required")
	}
	if !filepath.IsAbs(base) {
		return nil, framework.Validationf("allowed base dir must be absolute, got %s", base)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(base, "projects"), 0o755); err != nil {
		return nil, err
	}
	return &Manager{
		base:       base,
		logger:     logger.Named("workspace"),
		workspaces: make(map[string]*Workspace),
	}, nil
}

// Get returns the workspace for a project, creating the directory skeleton on
// first use.
func (m *Manager) Get(projectID string) (*Workspace, error) {
	if projectID == "" {
		return nil, framework.Validationf("project id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[projectID]; ok {
		return ws, nil
	}
	root := filepath.Join(m.base, "projects", "task_"+projectID)
	for _, dir := range []string{root, filepath.Join(root, generatedFilesDir), filepath.Join(root, tempDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	ws := &Workspace{root: root}
	m.workspaces[projectID] = ws
	m.logger.Info("workspace ready", zap.String("project", projectID), zap.String("root", root))
	return ws, nil
}

// Base returns the allowed base directory anchoring every workspace.
func (m *Manager) Base() string { return m.base }
