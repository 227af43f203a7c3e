package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
)

func newWorkspace(t *testing.T) *Workspace {
	m, err := NewManager(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	ws, err := m.Get("demo")
	require.NoError(t, err)
	return ws
}

func TestManagerCreatesSkeleton(t *testing.T) {
	ws := newWorkspace(t)
	require.DirExists(t, ws.GeneratedFilesDir())
	require.DirExists(t, filepath.Join(ws.Root(), "temp"))
	require.True(t, strings.HasSuffix(ws.Root(), filepath.Join("projects", "task_demo")))
}

func TestManagerRejectsRelativeBase(t *testing.T) {
	_, err := NewManager("relative/dir", zap.NewNop())
	require.Error(t, err)
}

func TestResolveKeepsPathsInside(t *testing.T) {
	ws := newWorkspace(t)
	resolved, err := ws.Resolve("generated_files/report.csv")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resolved, ws.Root()))
}

func TestResolveRejectsTraversal(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.Resolve("../../etc/passwd")
	require.Error(t, err)
	require.ErrorIs(t, err, framework.ErrSandboxViolation)
}

func TestResolveRejectsAbsoluteOutside(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.Resolve("/etc/passwd")
	require.Error(t, err)
	require.ErrorIs(t, err, framework.ErrSandboxViolation)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	ws := newWorkspace(t)
	outside := t.TempDir()
	link := filepath.Join(ws.Root(), "sneaky")
	require.NoError(t, os.Symlink(outside, link))

	_, err := ws.Resolve("sneaky/secrets.txt")
	require.ErrorIs(t, err, framework.ErrSandboxViolation)
}

func TestResolveAllowsNewFiles(t *testing.T) {
	ws := newWorkspace(t)
	resolved, err := ws.Resolve("generated_files/new/deep/file.txt")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resolved, ws.Root()))
}

func TestSessionHistoryAppendOnly(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, ws.AppendSessionHistory("sess-1", "hello", "hi there"))
	require.NoError(t, ws.AppendSessionHistory("sess-1", "second", "reply"))

	data, err := os.ReadFile(filepath.Join(ws.Root(), "session_history.txt"))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, string(data), "second")
	require.Less(t, strings.Index(string(data), "hello"), strings.Index(string(data), "second"))
}

func TestStatusRoundTrip(t *testing.T) {
	ws := newWorkspace(t)
	status, err := ws.ReadStatus()
	require.NoError(t, err)
	require.Empty(t, status.CurrentFocus)

	status.CurrentFocus = "building the ingest pipeline"
	status.FilesCreated = []string{"config/config.yml"}
	require.NoError(t, ws.WriteStatus(status))

	reloaded, err := ws.ReadStatus()
	require.NoError(t, err)
	require.Equal(t, "building the ingest pipeline", reloaded.CurrentFocus)
	require.False(t, reloaded.LastUpdated.IsZero())
}
