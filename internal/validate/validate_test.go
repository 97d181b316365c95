package validate

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lucasnoah/codeflow/internal/config"
)

type mockRunner struct {
	run func(command string) (string, string, int, error)
}

func (m *mockRunner) Run(ctx context.Context, dir, command string) (string, string, int, error) {
	return m.run(command)
}

func boolp(v bool) *bool { return &v }

func testValidationConfig() config.Validation {
	return config.Validation{
		SyntaxCheck:           boolp(true),
		ImportCheck:           boolp(true),
		LintDeltaCheck:        boolp(true),
		TestCheck:             boolp(false),
		RollbackOnSyntaxError: boolp(true),
		RollbackOnImportError: boolp(true),
		RollbackOnTestFailure: boolp(false),
		RollbackThreshold:     0.5,
		PythonCommand:         "python3",
		CheckTimeout:          "5s",
		TestTimeout:           "5s",
	}
}

func testManager(t *testing.T, cfg config.Validation, run func(string) (string, string, int, error)) *Manager {
	t.Helper()
	if run == nil {
		run = func(string) (string, string, int, error) { return "[]", "", 0, nil }
	}
	return NewManager(cfg, &mockRunner{run: run}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func checkByName(checks []Check, name string) Check {
	for _, c := range checks {
		if c.Name == name {
			return c
		}
	}
	return Check{}
}

func TestSyntaxValid(t *testing.T) {
	if !SyntaxValid("def main():\n    return 1\n") {
		t.Error("valid python flagged as broken")
	}
	if SyntaxValid("def main(:\n    return\n") {
		t.Error("broken python flagged as valid")
	}
}

func TestValidateFileFix_AllPass(t *testing.T) {
	ruffCalls := 0
	m := testManager(t, testValidationConfig(), func(cmd string) (string, string, int, error) {
		if strings.Contains(cmd, "ruff check") {
			ruffCalls++
			if ruffCalls == 1 {
				return `[{"code":"E501"}]`, "", 1, nil // baseline has the issue
			}
			return "[]", "", 0, nil // fixed content is clean
		}
		return "", "", 0, nil // py_compile succeeds
	})

	keep, checks := m.ValidateFileFix(context.Background(), "src/app.py",
		"x = 1  # something way too long\n", "x = 1\n", []string{"E501"})
	if !keep {
		t.Fatalf("fix rejected: %+v", checks)
	}
	for _, name := range []string{"syntax", "compile", "lint-delta"} {
		if got := checkByName(checks, name).Result; got != ResultPassed {
			t.Errorf("%s = %s, want passed", name, got)
		}
	}
	if got := checkByName(checks, "tests").Result; got != ResultSkipped {
		t.Errorf("tests = %s, want skipped (disabled)", got)
	}
}

func TestValidateFileFix_SyntaxErrorRollsBack(t *testing.T) {
	subprocesses := 0
	m := testManager(t, testValidationConfig(), func(cmd string) (string, string, int, error) {
		subprocesses++
		return "[]", "", 0, nil
	})

	keep, checks := m.ValidateFileFix(context.Background(), "src/app.py",
		"x = 1\n", "def broken(:\n", []string{"E501"})
	if keep {
		t.Fatal("expected rollback on syntax error")
	}
	if got := checkByName(checks, "syntax").Result; got != ResultFailed {
		t.Errorf("syntax = %s, want failed", got)
	}
	// A fatal syntax failure stops the pipeline: no later gate runs and no
	// subprocess is spawned for content already known to be rejected.
	if len(checks) != 1 {
		t.Errorf("got %d checks after fatal syntax failure, want 1: %+v", len(checks), checks)
	}
	if subprocesses != 0 {
		t.Errorf("ran %d subprocesses after fatal syntax failure, want 0", subprocesses)
	}
}

func TestValidateFileFix_SyntaxErrorNonFatalSkipsCompileOnly(t *testing.T) {
	cfg := testValidationConfig()
	cfg.RollbackOnSyntaxError = boolp(false)
	m := testManager(t, cfg, func(cmd string) (string, string, int, error) {
		return "[]", "", 0, nil
	})

	_, checks := m.ValidateFileFix(context.Background(), "src/app.py",
		"x = 1\n", "def broken(:\n", []string{"E501"})
	if got := checkByName(checks, "compile").Result; got != ResultSkipped {
		t.Errorf("compile = %s, want skipped after non-fatal syntax failure", got)
	}
	if got := checkByName(checks, "lint-delta").Result; got == "" {
		t.Error("lint-delta gate missing: non-fatal syntax failure should not stop the pipeline")
	}
}

func TestValidateFileFix_CompileFailureRollsBack(t *testing.T) {
	ruffCalls := 0
	m := testManager(t, testValidationConfig(), func(cmd string) (string, string, int, error) {
		if strings.Contains(cmd, "py_compile") {
			return "", "SyntaxError: invalid syntax", 1, nil
		}
		if strings.Contains(cmd, "ruff check") {
			ruffCalls++
		}
		return "[]", "", 0, nil
	})

	keep, checks := m.ValidateFileFix(context.Background(), "src/app.py",
		"x = 1\n", "import os\n", nil)
	if keep {
		t.Fatal("expected rollback on compile failure")
	}
	if got := checkByName(checks, "compile").Result; got != ResultFailed {
		t.Errorf("compile = %s, want failed", got)
	}
	// The lint-delta gate must not run once the compile gate is fatal.
	if ruffCalls != 0 {
		t.Errorf("ran ruff %d times after fatal compile failure, want 0", ruffCalls)
	}
	if got := checkByName(checks, "lint-delta").Result; got != "" {
		t.Errorf("lint-delta = %s, want gate not to run after fatal compile failure", got)
	}
}

func TestValidateFileFix_LintWarningTolerated(t *testing.T) {
	// Targeted issue survives the fix. The delta check warns but the
	// overall score (2 of 3 passed) still clears the threshold.
	m := testManager(t, testValidationConfig(), func(cmd string) (string, string, int, error) {
		if strings.Contains(cmd, "ruff check") {
			return `[{"code":"E501"}]`, "", 1, nil
		}
		return "", "", 0, nil
	})

	keep, checks := m.ValidateFileFix(context.Background(), "src/app.py",
		"a = 1\n", "a = 2\n", []string{"E501"})
	if !keep {
		t.Fatalf("warning alone should not reject the fix: %+v", checks)
	}
	if got := checkByName(checks, "lint-delta").Result; got != ResultWarning {
		t.Errorf("lint-delta = %s, want warning", got)
	}
}

func TestValidateFileFix_DisabledChecksSkipped(t *testing.T) {
	cfg := testValidationConfig()
	cfg.SyntaxCheck = boolp(false)
	cfg.ImportCheck = boolp(false)
	cfg.LintDeltaCheck = boolp(false)
	m := testManager(t, cfg, nil)

	keep, checks := m.ValidateFileFix(context.Background(), "src/app.py", "a\n", "b\n", nil)
	if !keep {
		t.Fatal("all-skipped validation should keep the fix")
	}
	for _, c := range checks {
		if c.Result != ResultSkipped {
			t.Errorf("%s = %s, want skipped", c.Name, c.Result)
		}
	}
}

func TestValidateFileFix_TestFailureNotFatalByDefault(t *testing.T) {
	cfg := testValidationConfig()
	cfg.TestCheck = boolp(true)
	m := testManager(t, cfg, func(cmd string) (string, string, int, error) {
		if strings.Contains(cmd, "pytest") {
			return "", "1 failed", 1, nil
		}
		if strings.Contains(cmd, "ruff check") {
			return "[]", "", 0, nil
		}
		return "", "", 0, nil
	})

	// No related test files exist on disk, so the gate is skipped and the
	// rest of the pipeline decides.
	keep, checks := m.ValidateFileFix(context.Background(), "src/app.py",
		"x = 1\n", "x = 2\n", nil)
	if !keep {
		t.Fatalf("fix rejected: %+v", checks)
	}
	if got := checkByName(checks, "tests").Result; got != ResultSkipped {
		t.Errorf("tests = %s, want skipped (no test files)", got)
	}
}

func TestRelatedTestFiles_NamingConvention(t *testing.T) {
	files := relatedTestFiles("/nonexistent/pkg/app.py")
	if len(files) != 0 {
		t.Errorf("found %v for nonexistent file", files)
	}
}
