// Package strategy implements the fix strategies: how a batch of issues in
// one file becomes a validated, persisted (or rolled back) fix.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lucasnoah/codeflow/internal/backup"
	"github.com/lucasnoah/codeflow/internal/config"
	"github.com/lucasnoah/codeflow/internal/detect"
	"github.com/lucasnoah/codeflow/internal/extract"
	"github.com/lucasnoah/codeflow/internal/llm"
	"github.com/lucasnoah/codeflow/internal/prompt"
	"github.com/lucasnoah/codeflow/internal/specialist"
	"github.com/lucasnoah/codeflow/internal/validate"
)

// Result is the structured outcome of one fix attempt. Failures are data,
// not errors: callers check Success and read Error.
type Result struct {
	Success           bool             `json:"success"`
	Code              string           `json:"-"`
	Content           string           `json:"-"`
	Prompt            string           `json:"-"`
	Confidence        float64          `json:"confidence"`
	AgentType         string           `json:"agent_type"`
	ModelUsed         string           `json:"model_used,omitempty"`
	ProviderUsed      string           `json:"provider_used,omitempty"`
	Error             string           `json:"error,omitempty"`
	Checks            []validate.Check `json:"checks,omitempty"`
	WriteSuccess      bool             `json:"write_success"`
	RollbackPerformed bool             `json:"rollback_performed"`
}

// Strategy turns a single-file batch of issues into a fix attempt.
type Strategy interface {
	Name() string
	Fix(ctx context.Context, issues []detect.LintingIssue, sessionID string) *Result
}

// Deps bundles everything a strategy needs. Workdir is the project root used
// for template overrides and relative issue paths.
type Deps struct {
	Client      *llm.Client
	Specialists *specialist.Manager
	Validator   *validate.Manager
	Backups     *backup.Manager
	Fallback    []config.FallbackEntry
	Workdir     string
	Logger      *slog.Logger

	// CreateBackups controls whether the validation strategy snapshots
	// files before persisting.
	CreateBackups bool
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Basic tries each (provider, model) pair in the fallback sequence until one
// yields extractable code that passes minimal validation. It never touches
// the file on disk.
type Basic struct {
	deps Deps
}

// NewBasic creates the basic strategy.
func NewBasic(deps Deps) *Basic { return &Basic{deps: deps} }

func (b *Basic) Name() string { return "basic" }

func (b *Basic) Fix(ctx context.Context, issues []detect.LintingIssue, sessionID string) *Result {
	return b.fix(ctx, issues)
}

func (b *Basic) fix(ctx context.Context, issues []detect.LintingIssue) *Result {
	if len(issues) == 0 {
		return &Result{Error: "no issues to fix"}
	}
	path := issues[0].FilePath

	original, err := os.ReadFile(path)
	if err != nil {
		return &Result{Error: fmt.Sprintf("read %s: %v", path, err)}
	}

	sp := b.deps.Specialists.ForIssues(issues)
	rendered, err := b.renderPrompt(sp, issues, string(original))
	if err != nil {
		return &Result{AgentType: sp.Type.String(), Error: fmt.Sprintf("build prompt: %v", err)}
	}

	messages := []llm.Message{
		{Role: "system", Content: "You are an automated Python lint-fixing agent. Respond only with corrected code."},
		{Role: "user", Content: rendered},
	}

	fallback := b.deps.Fallback
	if len(fallback) == 0 {
		fallback = []config.FallbackEntry{{}}
	}

	log := b.deps.logger()
	for _, entry := range fallback {
		req := b.deps.Client.NewRequest(messages, entry.Provider, entry.Model, 0.2, 0)
		resp := b.deps.Client.Complete(ctx, req)
		if resp == nil {
			continue
		}

		code, ok := b.extractFix(resp.Content, string(original))
		if !ok {
			log.Debug("no usable code in response", "provider", req.Provider, "model", req.Model, "file", path)
			continue
		}
		// Fence extraction trims trailing newlines, so compare modulo
		// trailing whitespace to catch "fixes" that change nothing.
		if strings.TrimSpace(code) == "" ||
			strings.TrimRight(code, "\n") == strings.TrimRight(string(original), "\n") {
			log.Debug("response did not change the file", "provider", req.Provider, "model", req.Model, "file", path)
			continue
		}
		if !validate.SyntaxValid(code) {
			log.Debug("extracted code does not parse", "provider", req.Provider, "model", req.Model, "file", path)
			continue
		}

		return &Result{
			Success:      true,
			Code:         code,
			Content:      resp.Content,
			Prompt:       rendered,
			Confidence:   sp.ConfidenceScore(issues, sp.PrimaryStrategy()),
			AgentType:    sp.Type.String(),
			ModelUsed:    resp.Model,
			ProviderUsed: resp.Provider,
		}
	}

	return &Result{
		AgentType: sp.Type.String(),
		Prompt:    rendered,
		Error:     fmt.Sprintf("all AI models failed to fix %s", issueCodeSummary(issues)),
	}
}

func (b *Basic) renderPrompt(sp *specialist.Specialist, issues []detect.LintingIssue, original string) (string, error) {
	tmpl, err := prompt.LoadTemplate(sp.Template, b.deps.Workdir)
	if err != nil {
		builtin, ok := prompt.Builtin(sp.Template)
		if !ok {
			return "", err
		}
		tmpl = builtin
	}
	return prompt.Render(tmpl, specialist.BuildVars(issues, original, ""))
}

// extractFix pulls fixed content out of a raw response: full file content
// when a code block is present, a patched file when the model answered with
// a unified diff.
func (b *Basic) extractFix(response, original string) (string, bool) {
	code, ok := extract.Code(response)
	if !ok {
		if extract.UnifiedDiff(response) {
			patched, err := extract.ApplyDiff(original, response)
			if err != nil {
				return "", false
			}
			return patched, true
		}
		return "", false
	}
	if extract.UnifiedDiff(code) {
		patched, err := extract.ApplyDiff(original, code)
		if err != nil {
			return "", false
		}
		return patched, true
	}
	return code, true
}

func issueCodeSummary(issues []detect.LintingIssue) string {
	seen := make(map[string]bool)
	var codes []string
	for _, i := range issues {
		if !seen[i.ErrorCode] {
			seen[i.ErrorCode] = true
			codes = append(codes, i.ErrorCode)
		}
	}
	return strings.Join(codes, ", ")
}

// Validation runs the basic strategy, gates the result through the full
// validation manager, and persists atomically with rollback on a failed
// gate.
type Validation struct {
	deps  Deps
	basic *Basic
}

// NewValidation creates the validation strategy.
func NewValidation(deps Deps) *Validation {
	return &Validation{deps: deps, basic: NewBasic(deps)}
}

func (v *Validation) Name() string { return "validation" }

func (v *Validation) Fix(ctx context.Context, issues []detect.LintingIssue, sessionID string) *Result {
	res := v.basic.fix(ctx, issues)
	if !res.Success {
		return res
	}
	path := issues[0].FilePath

	original, err := os.ReadFile(path)
	if err != nil {
		res.Success = false
		res.Error = fmt.Sprintf("re-read %s: %v", path, err)
		return res
	}

	keep, checks := v.deps.Validator.ValidateFileFix(ctx, path, string(original), res.Code, issueCodes(issues))
	res.Checks = checks
	if !keep {
		// The candidate never reached disk, so the rollback is a no-op
		// restore of whatever backup state exists for the session.
		v.deps.Backups.RollbackIfNeeded(path, false, sessionID)
		res.Success = false
		res.Error = "fix failed validation"
		return res
	}

	if !strings.HasSuffix(res.Code, "\n") {
		res.Code += "\n"
	}
	persist := v.deps.Backups.PersistFix(path, res.Code, sessionID, v.deps.CreateBackups)
	res.WriteSuccess = persist.WriteSuccess
	res.RollbackPerformed = persist.RollbackPerformed
	if !persist.WriteSuccess {
		res.Success = false
		res.Error = "failed to persist fix"
	}
	return res
}

func issueCodes(issues []detect.LintingIssue) []string {
	var codes []string
	for _, i := range issues {
		codes = append(codes, i.ErrorCode)
	}
	return codes
}

// Selector maps strategy names to constructed strategies. Unknown names get
// the validation strategy; selection never fails.
type Selector struct {
	basic      *Basic
	validation *Validation
}

// NewSelector builds both strategies over shared deps.
func NewSelector(deps Deps) *Selector {
	return &Selector{
		basic:      NewBasic(deps),
		validation: NewValidation(deps),
	}
}

// Get returns the named strategy, defaulting to validation.
func (s *Selector) Get(name string) Strategy {
	if name == "basic" {
		return s.basic
	}
	return s.validation
}
