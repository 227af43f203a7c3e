package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/llm"
)

// Config is the file-plus-environment configuration for the daemon and CLI.
// Environment variables override file values so deployments can keep secrets
// out of the config file.
type Config struct {
	LLM struct {
		Endpoint       string `yaml:"endpoint"`
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout"`
	} `yaml:"llm"`
	ProjectsDir  string `yaml:"projects_dir"`
	WorkspaceDir string `yaml:"workspace_dir"`
	Addr         string `yaml:"addr"`
	MessageDB    string `yaml:"message_db"`
	Logging      struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Router struct {
		DontKnowMarkers []string `yaml:"dont_know_markers"`
	} `yaml:"router"`
}

// LLMTimeout converts the configured timeout into a duration.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds <= 0 {
		return llm.DefaultTimeout
	}
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// DefaultConfigPath is where LoadConfig looks when no --config is given.
func DefaultConfigPath() string {
	return "planform.yaml"
}

// LoadConfig reads the YAML file (missing files are fine), applies
// environment overrides, and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LLM.Endpoint = "https://api.openai.com"
	cfg.LLM.Model = "gpt-4o"
	cfg.Addr = ":8000"

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, framework.Validationf("config %s: %v", path, err)
		}
	}

	overlay(&cfg.LLM.Endpoint, "LLM_ENDPOINT")
	overlay(&cfg.LLM.APIKey, "LLM_API_KEY")
	overlay(&cfg.LLM.Model, "LLM_MODEL")
	overlay(&cfg.WorkspaceDir, "ALLOWED_BASE_DIR")
	overlay(&cfg.ProjectsDir, "PROJECTS_BASE_DIR")
	overlay(&cfg.Addr, "PLANFORM_ADDR")

	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = filepath.Join(os.TempDir(), "planform")
	}
	if cfg.ProjectsDir == "" {
		cfg.ProjectsDir = cfg.WorkspaceDir
	}
	if cfg.MessageDB == "" {
		cfg.MessageDB = filepath.Join(cfg.ProjectsDir, "chat.db")
	}
	for _, dir := range []*string{&cfg.WorkspaceDir, &cfg.ProjectsDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, err
		}
		*dir = abs
	}
	return cfg, nil
}

func overlay(target *string, env string) {
	if v := os.Getenv(env); v != "" {
		*target = v
	}
}
