package config

import (
	"fmt"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedStrategies is the set of valid fix strategy names.
var recognizedStrategies = map[string]bool{
	"basic":      true,
	"validation": true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	e := cfg.Engine

	if e.Workflow.Strategy != "" && !recognizedStrategies[e.Workflow.Strategy] {
		errs = append(errs, ValidationError{
			Field:   "engine.workflow.strategy",
			Message: fmt.Sprintf("unrecognized strategy %q", e.Workflow.Strategy),
		})
	}

	if e.Validation.RollbackThreshold < 0 || e.Validation.RollbackThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "engine.validation.rollback_threshold",
			Message: "must be between 0.0 and 1.0",
		})
	}

	for field, val := range map[string]string{
		"engine.detector.timeout":         e.Detector.Timeout,
		"engine.queue.stale_after":        e.Queue.StaleAfter,
		"engine.queue.retain_for":         e.Queue.RetainFor,
		"engine.llm.timeout":              e.LLM.Timeout,
		"engine.validation.check_timeout": e.Validation.CheckTimeout,
		"engine.validation.test_timeout":  e.Validation.TestTimeout,
	} {
		if val == "" {
			continue
		}
		if _, err := time.ParseDuration(val); err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid duration %q", val),
			})
		}
	}

	if _, ok := e.LLM.Providers[e.LLM.DefaultProvider]; e.LLM.DefaultProvider != "" && !ok {
		errs = append(errs, ValidationError{
			Field:   "engine.llm.default_provider",
			Message: fmt.Sprintf("references undefined provider %q", e.LLM.DefaultProvider),
		})
	}
	for i, f := range e.LLM.Fallback {
		if f.Provider == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("engine.llm.fallback[%d].provider", i),
				Message: "is required",
			})
			continue
		}
		if _, ok := e.LLM.Providers[f.Provider]; !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("engine.llm.fallback[%d].provider", i),
				Message: fmt.Sprintf("references undefined provider %q", f.Provider),
			})
		}
	}

	return errs
}

// ParseDuration parses a duration string, falling back to a default when the
// string is empty or malformed.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
