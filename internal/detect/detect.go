package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LintingIssue is one detected problem in a source file.
// Issues are read-only after detection; fixes produce new file content,
// never mutated issues.
type LintingIssue struct {
	FilePath     string `json:"file_path"`
	LineNumber   int    `json:"line_number"` // 1-indexed
	ColumnNumber int    `json:"column_number"`
	ErrorCode    string `json:"error_code"` // e.g. "E501"
	Message      string `json:"message"`
	LineContent  string `json:"line_content,omitempty"`
}

// Key identifies an issue uniquely within a detection run.
func (i LintingIssue) Key() string {
	return fmt.Sprintf("%s:%d:%d:%s", i.FilePath, i.LineNumber, i.ColumnNumber, i.ErrorCode)
}

// Detector runs ruff against a path and parses its diagnostics.
type Detector struct {
	cmd         CommandRunner
	command     string // linter executable, default "ruff"
	timeout     time.Duration
	selectCodes []string // optional allow-list of error-code prefixes
	logger      *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithCommand overrides the linter executable.
func WithCommand(cmd string) Option {
	return func(d *Detector) { d.command = cmd }
}

// WithTimeout overrides the linter invocation timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Detector) { d.timeout = t }
}

// WithSelectCodes restricts detection to issues whose code matches one of
// the given prefixes.
func WithSelectCodes(codes []string) Option {
	return func(d *Detector) { d.selectCodes = codes }
}

// NewDetector creates a Detector using the given command runner.
func NewDetector(cmd CommandRunner, logger *slog.Logger, opts ...Option) *Detector {
	d := &Detector{
		cmd:     cmd,
		command: "ruff",
		timeout: 2 * time.Minute,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// ruffDiagnostic mirrors one entry of `ruff check --output-format json`.
type ruffDiagnostic struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
	Location struct {
		Row    int `json:"row"`
		Column int `json:"column"`
	} `json:"location"`
}

// Detect runs the linter against path and returns structured issues.
// A missing linter, non-zero exit with unparseable output, or any other
// invocation failure yields an empty list with a logged warning — detection
// errors are recovered locally, never propagated.
func (d *Detector) Detect(path string) []LintingIssue {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	command := fmt.Sprintf("%s check --output-format json %q", d.command, path)
	stdout, stderr, exitCode, err := d.cmd.Run(ctx, "", command)
	if err != nil {
		d.logger.Warn("linter invocation failed", "command", d.command, "error", err)
		return nil
	}
	// ruff exits 1 when issues are found; only exit codes >1 indicate
	// the linter itself failed.
	if exitCode > 1 {
		d.logger.Warn("linter exited abnormally", "command", d.command, "exit_code", exitCode, "stderr", strings.TrimSpace(stderr))
		return nil
	}

	var diags []ruffDiagnostic
	if err := json.Unmarshal([]byte(stdout), &diags); err != nil {
		d.logger.Warn("could not parse linter JSON output", "error", err)
		return nil
	}

	seen := make(map[string]bool)
	var issues []LintingIssue
	for _, diag := range diags {
		if diag.Code == "" {
			continue
		}
		if len(d.selectCodes) > 0 && !matchesAny(diag.Code, d.selectCodes) {
			continue
		}
		issue := LintingIssue{
			FilePath:     diag.Filename,
			LineNumber:   diag.Location.Row,
			ColumnNumber: diag.Location.Column,
			ErrorCode:    diag.Code,
			Message:      diag.Message,
		}
		if seen[issue.Key()] {
			continue
		}
		seen[issue.Key()] = true
		issue.LineContent = readLine(diag.Filename, diag.Location.Row)
		issues = append(issues, issue)
	}
	return issues
}

// matchesAny reports whether code matches one of the given prefixes.
// "*" matches everything.
func matchesAny(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "*" || strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// readLine returns the 1-indexed line from path, or "" on any error.
func readLine(path string, line int) string {
	if line <= 0 {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		if n == line {
			return scanner.Text()
		}
	}
	return ""
}
