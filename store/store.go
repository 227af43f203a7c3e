// Package store persists each Task as a self-contained JSON document plus a
// metadata sidecar, one directory per project under the projects base dir.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/task"
)

const (
	metadataFile   = "metadata.json"
	projectFile    = "project.json"
	networkPlanDir = "network_plan"

	// taskCacheSize bounds the LRU of raw task documents kept hot for the
	// read-mostly HTTP endpoints.
	taskCacheSize = 64
)

// Metadata is the sidecar describing one project.
type Metadata struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Progress  float64   `json:"progress"`
}

// Store owns the on-disk project tree. One writer at a time per project is
// enforced with per-project mutexes held for the whole read-modify-write;
// readers may observe the pre- or post-write state but never a torn file
// because every write lands via temp file plus rename.
type Store struct {
	base   string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// cache holds raw JSON documents, not decoded tasks. Every LoadTask hit
	// decodes its own copy so concurrent callers never share a mutable Task.
	cache *lru.Cache[string, []byte]
}

// New opens (creating if needed) a store rooted at base/projects.
func New(base string, logger *zap.Logger) (*Store, error) {
	if base == "" {
		return nil, framework.Validationf("projects base dir required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	root := filepath.Join(base, "projects")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	cache, err := lru.New[string, []byte](taskCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		base:   root,
		logger: logger.Named("store"),
		locks:  make(map[string]*sync.Mutex),
		cache:  cache,
	}, nil
}

// Lock returns the advisory mutex for a project. Compound operations
// (load-mutate-save) in the pipeline and execution engine hold it for their
// whole duration.
func (s *Store) Lock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[projectID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[projectID] = l
	return l
}

func (s *Store) projectDir(projectID string) string {
	return filepath.Join(s.base, projectID)
}

// CreateProject creates the folder structure for a new project and writes
// the initial metadata. It fails when the project already exists.
func (s *Store) CreateProject(projectID, query string) (*Metadata, error) {
	dir := s.projectDir(projectID)
	if _, err := os.Stat(dir); err == nil {
		return nil, framework.Validationf("project %s already exists", projectID)
	}
	if err := os.MkdirAll(filepath.Join(dir, networkPlanDir), 0o755); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	meta := &Metadata{
		ID:        projectID,
		Query:     query,
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return nil, err
	}
	s.logger.Info("project created", zap.String("project", projectID))
	return meta, nil
}

// SaveTask atomically writes project.json and refreshes metadata.
func (s *Store) SaveTask(projectID string, t *task.Task) error {
	dir := s.projectDir(projectID)
	if _, err := os.Stat(dir); err != nil {
		return framework.NotFoundf("project %s not found", projectID)
	}
	if err := s.writeJSON(filepath.Join(dir, projectFile), t); err != nil {
		return err
	}
	s.cache.Remove(projectID)
	meta, err := s.Metadata(projectID)
	if err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	meta.Status = string(t.State)
	meta.Progress = progressOf(t)
	return s.writeJSON(filepath.Join(dir, metadataFile), meta)
}

// LoadTask returns the task for a project, or nil when none was saved yet.
// Each call decodes a fresh Task, so callers own the returned value.
func (s *Store) LoadTask(projectID string) (*task.Task, error) {
	if cached, ok := s.cache.Get(projectID); ok {
		return decodeTask(cached)
	}
	path := filepath.Join(s.projectDir(projectID), projectFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if _, statErr := os.Stat(s.projectDir(projectID)); statErr != nil {
				return nil, framework.NotFoundf("project %s not found", projectID)
			}
			return nil, nil
		}
		return nil, err
	}
	s.cache.Add(projectID, data)
	return decodeTask(data)
}

func decodeTask(data []byte) (*task.Task, error) {
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Metadata reads the project sidecar.
func (s *Store) Metadata(projectID string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.projectDir(projectID), metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, framework.NotFoundf("project %s not found", projectID)
		}
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ListProjects returns all project sidecars sorted by created_at descending.
func (s *Store) ListProjects() ([]Metadata, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, err
	}
	var metas []Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Metadata(entry.Name())
		if err != nil {
			s.logger.Warn("skipping project with unreadable metadata",
				zap.String("project", entry.Name()), zap.Error(err))
			continue
		}
		metas = append(metas, *meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// DeleteProject removes the whole project tree. It reports whether anything
// was deleted.
func (s *Store) DeleteProject(projectID string) (bool, error) {
	dir := s.projectDir(projectID)
	if _, err := os.Stat(dir); err != nil {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	s.cache.Remove(projectID)
	s.logger.Info("project deleted", zap.String("project", projectID))
	return true, nil
}

// SaveStage writes one stage into network_plan/ so very large plans can be
// inspected per stage without loading project.json.
func (s *Store) SaveStage(projectID string, stage *task.Stage) error {
	dir := filepath.Join(s.projectDir(projectID), networkPlanDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return s.writeJSON(filepath.Join(dir, stage.ID+".json"), stage)
}

// writeJSON lands the document via temp file plus rename so readers never
// observe a torn file. Two-space indentation keeps the files diffable.
func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// progressOf derives a coarse completion fraction from subtask statuses.
func progressOf(t *task.Task) float64 {
	subtasks := t.Subtasks()
	if len(subtasks) == 0 {
		return 0
	}
	done := 0
	for _, st := range subtasks {
		if st.Status == task.StatusCompleted {
			done++
		}
	}
	return float64(done) / float64(len(subtasks))
}
