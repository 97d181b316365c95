package config

// Config is the top-level configuration structure parsed from codeflow YAML.
type Config struct {
	Engine Engine `yaml:"engine"`
}

// Engine defines the full engine configuration: detector, queue, providers,
// validation gates, backups, and workflow defaults.
type Engine struct {
	Name       string     `yaml:"name"`
	Detector   Detector   `yaml:"detector"`
	Queue      Queue      `yaml:"queue"`
	LLM        LLM        `yaml:"llm"`
	Validation Validation `yaml:"validation"`
	Backup     Backup     `yaml:"backup"`
	Workflow   Workflow   `yaml:"workflow"`
}

// Detector configures linter invocation for issue detection.
type Detector struct {
	Command     string   `yaml:"command"`      // default "ruff"
	Timeout     string   `yaml:"timeout"`      // default "2m"
	SelectCodes []string `yaml:"select_codes"` // optional allow-list, e.g. [E501, F401]
}

// Queue configures the SQLite-backed issue queue.
type Queue struct {
	Path         string `yaml:"path"`           // default ~/.codeflow/queue.db
	StaleAfter   string `yaml:"stale_after"`    // processing items older than this are reset, default "30m"
	RetainFor    string `yaml:"retain_for"`     // terminal items older than this are purged, default "168h"
	MaintainCron string `yaml:"maintain_cron"`  // cron spec for the maintenance loop, default "@every 10m"
}

// LLM configures providers and the model fallback sequence.
type LLM struct {
	DefaultProvider string           `yaml:"default_provider"` // default "openai"
	Timeout         string           `yaml:"timeout"`          // per-completion timeout, default "120s"
	Providers       map[string]Provider `yaml:"providers"`
	Fallback        []FallbackEntry  `yaml:"fallback"` // ordered (provider, model) pairs
}

// Provider holds the connection settings for one LLM backend.
type Provider struct {
	APIKeyEnv string `yaml:"api_key_env"` // env var holding the API key
	BaseURL   string `yaml:"base_url"`    // optional override (OpenAI-compatible endpoints, Ollama host)
	Model     string `yaml:"model"`       // default model for this provider
}

// FallbackEntry is one step in the model fallback sequence.
type FallbackEntry struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Validation configures the post-fix gate checks.
type Validation struct {
	SyntaxCheck           *bool   `yaml:"syntax_check"`             // default true
	ImportCheck           *bool   `yaml:"import_check"`             // default true
	LintDeltaCheck        *bool   `yaml:"lint_delta_check"`         // default true
	TestCheck             *bool   `yaml:"test_check"`               // default false
	RollbackOnSyntaxError *bool   `yaml:"rollback_on_syntax_error"` // default true
	RollbackOnImportError *bool   `yaml:"rollback_on_import_error"` // default true
	RollbackOnTestFailure *bool   `yaml:"rollback_on_test_failure"` // default false
	RollbackThreshold     float64 `yaml:"rollback_threshold"`       // default 0.5
	PythonCommand         string  `yaml:"python_command"`           // default "python3"
	CheckTimeout          string  `yaml:"check_timeout"`            // per-subprocess timeout, default "30s"
	TestTimeout           string  `yaml:"test_timeout"`             // per-test-file timeout, default "60s"
}

// Backup configures where session file backups are stored.
type Backup struct {
	Dir string `yaml:"dir"` // default ~/.codeflow/backups
}

// Workflow holds orchestrator defaults.
type Workflow struct {
	Strategy        string `yaml:"strategy"`         // "basic" or "validation", default "validation"
	BatchSize       int    `yaml:"batch_size"`       // queue claim size, default 5
	MaxFixes        int    `yaml:"max_fixes"`        // default 20
	Workers         int    `yaml:"workers"`          // concurrent fix workers, default 1
	InteractionsDB  string `yaml:"interactions_db"`  // default ~/.codeflow/interactions.db
	CreateBackups   *bool  `yaml:"create_backups"`   // default true
}
