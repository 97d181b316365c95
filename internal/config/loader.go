package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses an engine configuration from the given YAML file path.
// After parsing, it applies defaults to fields that aren't set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for an engine config in standard locations and loads
// the first one found. Search order: ./codeflow.yaml, ~/.codeflow/config.yaml.
// If none exists, a config with all defaults applied is returned.
func LoadDefault() (*Config, error) {
	candidates := []string{"codeflow.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".codeflow", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	var cfg Config
	applyDefaults(&cfg)
	return &cfg, nil
}

// DataDir returns ~/.codeflow, creating it if needed.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".codeflow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return dir, nil
}

func boolPtr(v bool) *bool { return &v }

// applyDefaults fills in defaults for every field the YAML didn't set.
func applyDefaults(cfg *Config) {
	e := &cfg.Engine

	if e.Name == "" {
		e.Name = "codeflow"
	}

	if e.Detector.Command == "" {
		e.Detector.Command = "ruff"
	}
	if e.Detector.Timeout == "" {
		e.Detector.Timeout = "2m"
	}

	if e.Queue.StaleAfter == "" {
		e.Queue.StaleAfter = "30m"
	}
	if e.Queue.RetainFor == "" {
		e.Queue.RetainFor = "168h"
	}
	if e.Queue.MaintainCron == "" {
		e.Queue.MaintainCron = "@every 10m"
	}

	if e.LLM.DefaultProvider == "" {
		e.LLM.DefaultProvider = "openai"
	}
	if e.LLM.Timeout == "" {
		e.LLM.Timeout = "120s"
	}
	if e.LLM.Providers == nil {
		e.LLM.Providers = map[string]Provider{}
	}
	if _, ok := e.LLM.Providers["openai"]; !ok {
		e.LLM.Providers["openai"] = Provider{APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4o-mini"}
	}
	if _, ok := e.LLM.Providers["anthropic"]; !ok {
		e.LLM.Providers["anthropic"] = Provider{APIKeyEnv: "ANTHROPIC_API_KEY", Model: "claude-3-5-sonnet-20240620"}
	}
	if _, ok := e.LLM.Providers["ollama"]; !ok {
		e.LLM.Providers["ollama"] = Provider{BaseURL: "http://localhost:11434", Model: "qwen2.5-coder"}
	}
	if len(e.LLM.Fallback) == 0 {
		e.LLM.Fallback = []FallbackEntry{
			{Provider: e.LLM.DefaultProvider, Model: e.LLM.Providers[e.LLM.DefaultProvider].Model},
		}
	}

	v := &e.Validation
	if v.SyntaxCheck == nil {
		v.SyntaxCheck = boolPtr(true)
	}
	if v.ImportCheck == nil {
		v.ImportCheck = boolPtr(true)
	}
	if v.LintDeltaCheck == nil {
		v.LintDeltaCheck = boolPtr(true)
	}
	if v.TestCheck == nil {
		v.TestCheck = boolPtr(false)
	}
	if v.RollbackOnSyntaxError == nil {
		v.RollbackOnSyntaxError = boolPtr(true)
	}
	if v.RollbackOnImportError == nil {
		v.RollbackOnImportError = boolPtr(true)
	}
	if v.RollbackOnTestFailure == nil {
		v.RollbackOnTestFailure = boolPtr(false)
	}
	if v.RollbackThreshold == 0 {
		v.RollbackThreshold = 0.5
	}
	if v.PythonCommand == "" {
		v.PythonCommand = "python3"
	}
	if v.CheckTimeout == "" {
		v.CheckTimeout = "30s"
	}
	if v.TestTimeout == "" {
		v.TestTimeout = "60s"
	}

	w := &e.Workflow
	if w.Strategy == "" {
		w.Strategy = "validation"
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 5
	}
	if w.MaxFixes <= 0 {
		w.MaxFixes = 20
	}
	if w.Workers <= 0 {
		w.Workers = 1
	}
	if w.CreateBackups == nil {
		w.CreateBackups = boolPtr(true)
	}
}
