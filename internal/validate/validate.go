// Package validate gates AI-generated fixes before they are kept. Each gate
// produces a Check; the manager scores the checks and decides whether the
// fix survives or gets rolled back.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/codeflow/internal/config"
	"github.com/lucasnoah/codeflow/internal/detect"
)

// Result classifies a single check outcome.
type Result string

const (
	ResultPassed  Result = "passed"
	ResultFailed  Result = "failed"
	ResultWarning Result = "warning"
	ResultSkipped Result = "skipped"
)

// Check is the outcome of one validation gate.
type Check struct {
	Name     string        `json:"name"`
	Result   Result        `json:"result"`
	Message  string        `json:"message"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Manager runs the validation gates over a proposed fix.
type Manager struct {
	cfg          config.Validation
	cmd          detect.CommandRunner
	logger       *slog.Logger
	checkTimeout time.Duration
	testTimeout  time.Duration
}

// NewManager builds a manager from validation config. A nil runner gets the
// default exec-backed one.
func NewManager(cfg config.Validation, cmd detect.CommandRunner, logger *slog.Logger) *Manager {
	if cmd == nil {
		cmd = &detect.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:          cfg,
		cmd:          cmd,
		logger:       logger,
		checkTimeout: config.ParseDuration(cfg.CheckTimeout, 30*time.Second),
		testTimeout:  config.ParseDuration(cfg.TestTimeout, time.Minute),
	}
}

func enabled(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// ValidateFileFix runs the gates in order against the fixed content and
// reports whether the fix should be kept. A fatal gate failure (per the
// rollback toggles) stops the pipeline immediately: later gates never run
// against content already known to be rejected.
func (m *Manager) ValidateFileFix(ctx context.Context, path, original, fixed string, issueCodes []string) (bool, []Check) {
	var checks []Check

	syntax := m.checkSyntax(fixed)
	checks = append(checks, syntax)
	if syntax.Result == ResultFailed {
		if enabled(m.cfg.RollbackOnSyntaxError, true) {
			return false, checks
		}
		// A file that doesn't parse won't compile either; don't burn a
		// subprocess on it.
		checks = append(checks, Check{Name: "compile", Result: ResultSkipped, Message: "skipped: syntax check failed"})
	} else {
		compile := m.checkCompile(ctx, fixed)
		checks = append(checks, compile)
		if compile.Result == ResultFailed && enabled(m.cfg.RollbackOnImportError, true) {
			return false, checks
		}
	}

	checks = append(checks, m.checkLintDelta(ctx, original, fixed, issueCodes))

	tests := m.checkTests(ctx, path)
	checks = append(checks, tests)
	if tests.Result == ResultFailed && enabled(m.cfg.RollbackOnTestFailure, false) {
		return false, checks
	}

	passed, scored := 0, 0
	for _, c := range checks {
		if c.Result == ResultSkipped {
			continue
		}
		scored++
		if c.Result == ResultPassed {
			passed++
		}
	}
	if scored == 0 {
		return true, checks
	}

	threshold := m.cfg.RollbackThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	score := float64(passed) / float64(scored)
	m.logger.Debug("validation scored", "file", path, "score", score, "threshold", threshold)
	return score >= threshold, checks
}

func (m *Manager) checkSyntax(fixed string) Check {
	start := time.Now()
	c := Check{Name: "syntax"}
	if !enabled(m.cfg.SyntaxCheck, true) {
		c.Result = ResultSkipped
		c.Message = "disabled"
		return c
	}
	if SyntaxValid(fixed) {
		c.Result = ResultPassed
		c.Message = "parses cleanly"
	} else {
		c.Result = ResultFailed
		c.Message = "syntax error in fixed content"
	}
	c.Duration = time.Since(start)
	return c
}

func (m *Manager) checkCompile(ctx context.Context, fixed string) Check {
	start := time.Now()
	c := Check{Name: "compile"}
	if !enabled(m.cfg.ImportCheck, true) {
		c.Result = ResultSkipped
		c.Message = "disabled"
		return c
	}

	tmp, err := writeTemp(fixed)
	if err != nil {
		c.Result = ResultWarning
		c.Message = fmt.Sprintf("could not stage temp file: %v", err)
		return c
	}
	defer os.Remove(tmp)

	py := m.cfg.PythonCommand
	if py == "" {
		py = "python3"
	}

	cctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()
	_, stderr, code, err := m.cmd.Run(cctx, "", fmt.Sprintf("%s -m py_compile %q", py, tmp))
	c.Duration = time.Since(start)

	switch {
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		c.Result = ResultWarning
		c.Message = "compile check timed out"
	case err != nil:
		c.Result = ResultWarning
		c.Message = fmt.Sprintf("could not run %s: %v", py, err)
	case code != 0:
		c.Result = ResultFailed
		c.Message = "py_compile rejected the fixed content"
		c.Details = strings.TrimSpace(stderr)
	default:
		c.Result = ResultPassed
		c.Message = "compiles cleanly"
	}
	return c
}

// lintFinding is the subset of a ruff JSON record the delta check needs.
type lintFinding struct {
	Code string `json:"code"`
}

const maxNewIssues = 2

func (m *Manager) checkLintDelta(ctx context.Context, original, fixed string, issueCodes []string) Check {
	start := time.Now()
	c := Check{Name: "lint-delta"}
	if !enabled(m.cfg.LintDeltaCheck, true) {
		c.Result = ResultSkipped
		c.Message = "disabled"
		return c
	}

	before, err := m.lintCodes(ctx, original)
	if err != nil {
		c.Result = ResultWarning
		c.Message = fmt.Sprintf("lint baseline unavailable: %v", err)
		return c
	}
	after, err := m.lintCodes(ctx, fixed)
	if err != nil {
		c.Result = ResultWarning
		c.Message = fmt.Sprintf("lint recheck unavailable: %v", err)
		return c
	}
	c.Duration = time.Since(start)

	targetedBefore := countTargeted(before, issueCodes)
	targetedAfter := countTargeted(after, issueCodes)
	newIssues := len(after) - len(before)

	switch {
	case targetedBefore > 0 && targetedAfter >= targetedBefore:
		c.Result = ResultWarning
		c.Message = fmt.Sprintf("targeted issues did not decrease (%d before, %d after)", targetedBefore, targetedAfter)
	case newIssues > maxNewIssues:
		c.Result = ResultWarning
		c.Message = fmt.Sprintf("fix introduced %d new lint issues", newIssues)
	default:
		c.Result = ResultPassed
		c.Message = fmt.Sprintf("targeted issues %d -> %d", targetedBefore, targetedAfter)
	}
	return c
}

func (m *Manager) lintCodes(ctx context.Context, content string) ([]string, error) {
	tmp, err := writeTemp(content)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	cctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()
	stdout, _, code, err := m.cmd.Run(cctx, "", fmt.Sprintf("ruff check --output-format json %q", tmp))
	if err != nil {
		return nil, err
	}
	if code > 1 {
		return nil, fmt.Errorf("ruff exited %d", code)
	}

	var findings []lintFinding
	if err := json.Unmarshal([]byte(stdout), &findings); err != nil {
		return nil, fmt.Errorf("parse ruff output: %w", err)
	}
	codes := make([]string, 0, len(findings))
	for _, f := range findings {
		codes = append(codes, f.Code)
	}
	return codes, nil
}

func countTargeted(codes, targets []string) int {
	n := 0
	for _, code := range codes {
		for _, t := range targets {
			if code == t || (t != "" && strings.HasPrefix(code, t)) {
				n++
				break
			}
		}
	}
	return n
}

func (m *Manager) checkTests(ctx context.Context, path string) Check {
	start := time.Now()
	c := Check{Name: "tests"}
	if !enabled(m.cfg.TestCheck, false) {
		c.Result = ResultSkipped
		c.Message = "disabled"
		return c
	}

	testFiles := relatedTestFiles(path)
	if len(testFiles) == 0 {
		c.Result = ResultSkipped
		c.Message = "no related test files found"
		return c
	}

	py := m.cfg.PythonCommand
	if py == "" {
		py = "python3"
	}

	for _, tf := range testFiles {
		tctx, cancel := context.WithTimeout(ctx, m.testTimeout)
		_, stderr, code, err := m.cmd.Run(tctx, "", fmt.Sprintf("%s -m pytest -q %q", py, tf))
		timedOut := errors.Is(tctx.Err(), context.DeadlineExceeded)
		cancel()

		switch {
		case timedOut:
			c.Result = ResultWarning
			c.Message = fmt.Sprintf("%s timed out", filepath.Base(tf))
			c.Duration = time.Since(start)
			return c
		case err != nil:
			c.Result = ResultWarning
			c.Message = fmt.Sprintf("could not run pytest: %v", err)
			c.Duration = time.Since(start)
			return c
		case code != 0:
			c.Result = ResultFailed
			c.Message = fmt.Sprintf("%s failed", filepath.Base(tf))
			c.Details = strings.TrimSpace(stderr)
			c.Duration = time.Since(start)
			return c
		}
	}

	c.Result = ResultPassed
	c.Message = fmt.Sprintf("%d test file(s) passed", len(testFiles))
	c.Duration = time.Since(start)
	return c
}

// relatedTestFiles locates tests for a source file by naming convention:
// test_<name>.py or <name>_test.py beside the file or under a tests/
// directory at the same level.
func relatedTestFiles(path string) []string {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), ".py")

	candidates := []string{
		filepath.Join(dir, "test_"+base+".py"),
		filepath.Join(dir, base+"_test.py"),
		filepath.Join(dir, "tests", "test_"+base+".py"),
		filepath.Join(filepath.Dir(dir), "tests", "test_"+base+".py"),
	}

	var found []string
	for _, cand := range candidates {
		if info, err := os.Stat(cand); err == nil && !info.IsDir() {
			found = append(found, cand)
		}
	}
	return found
}

func writeTemp(content string) (string, error) {
	f, err := os.CreateTemp("", "codeflow-*.py")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}
