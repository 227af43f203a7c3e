package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/planform/llm"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "https://api.openai.com", cfg.LLM.Endpoint)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, ":8000", cfg.Addr)
	require.Equal(t, llm.DefaultTimeout, cfg.LLMTimeout())
	require.True(t, filepath.IsAbs(cfg.WorkspaceDir))
	require.Equal(t, cfg.WorkspaceDir, cfg.ProjectsDir)
	require.Equal(t, filepath.Join(cfg.ProjectsDir, "chat.db"), cfg.MessageDB)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planform.yaml")
	body := "llm:\n" +
		"  endpoint: http://localhost:11434\n" +
		"  model: llama3\n" +
		"  timeout: 30\n" +
		"workspace_dir: " + dir + "\n" +
		"addr: \":9100\"\n" +
		"logging:\n  level: debug\n" +
		"router:\n  dont_know_markers: [\"keine ahnung\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:11434", cfg.LLM.Endpoint)
	require.Equal(t, "llama3", cfg.LLM.Model)
	require.Equal(t, 30*time.Second, cfg.LLMTimeout())
	require.Equal(t, ":9100", cfg.Addr)
	require.Equal(t, dir, cfg.WorkspaceDir)
	require.Equal(t, dir, cfg.ProjectsDir)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, []string{"keine ahnung"}, cfg.Router.DontKnowMarkers)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planform.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: llama3\n"), 0o644))
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("PLANFORM_ADDR", ":7777")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.Equal(t, "sk-test", cfg.LLM.APIKey)
	require.Equal(t, ":7777", cfg.Addr)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planform.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [broken"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}
