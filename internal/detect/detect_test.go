package detect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// mockCmd records calls and returns configured results.
type mockCmd struct {
	calls   []mockCall
	results []mockResult
	callIdx int
}

type mockCall struct {
	Dir     string
	Command string
}

type mockResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (m *mockCmd) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	m.calls = append(m.calls, mockCall{Dir: dir, Command: command})
	if m.callIdx >= len(m.results) {
		return "", "", 0, nil
	}
	r := m.results[m.callIdx]
	m.callIdx++
	return r.Stdout, r.Stderr, r.ExitCode, r.Err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ruffJSON(file string, row int, col int, code string, msg string) string {
	return fmt.Sprintf(`[{"code":%q,"filename":%q,"message":%q,"location":{"row":%d,"column":%d}}]`,
		code, file, msg, row, col)
}

func TestDetect_SingleE501(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "long.py")
	content := "short = 1\nreally_long_variable_name = \"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\"\n"
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := &mockCmd{
		results: []mockResult{
			{Stdout: ruffJSON(src, 2, 89, "E501", "Line too long"), ExitCode: 1},
		},
	}
	d := NewDetector(mock, testLogger())

	issues := d.Detect(dir)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
	got := issues[0]
	if got.ErrorCode != "E501" {
		t.Errorf("error code = %q, want E501", got.ErrorCode)
	}
	if got.LineNumber != 2 || got.ColumnNumber != 89 {
		t.Errorf("position = %d:%d, want 2:89", got.LineNumber, got.ColumnNumber)
	}
	if got.LineContent == "" {
		t.Error("expected line content to be read from source file")
	}
}

func TestDetect_DeduplicatesIssues(t *testing.T) {
	diag := `[
		{"code":"F401","filename":"a.py","message":"unused import","location":{"row":1,"column":1}},
		{"code":"F401","filename":"a.py","message":"unused import","location":{"row":1,"column":1}},
		{"code":"F401","filename":"a.py","message":"unused import","location":{"row":3,"column":1}}
	]`
	mock := &mockCmd{results: []mockResult{{Stdout: diag, ExitCode: 1}}}
	d := NewDetector(mock, testLogger())

	issues := d.Detect(".")
	if len(issues) != 2 {
		t.Fatalf("expected 2 deduplicated issues, got %d", len(issues))
	}
}

func TestDetect_SelectCodesFilter(t *testing.T) {
	diag := `[
		{"code":"E501","filename":"a.py","message":"long","location":{"row":1,"column":1}},
		{"code":"F401","filename":"a.py","message":"unused","location":{"row":2,"column":1}},
		{"code":"E711","filename":"a.py","message":"compare","location":{"row":3,"column":1}}
	]`
	mock := &mockCmd{results: []mockResult{{Stdout: diag, ExitCode: 1}}}
	d := NewDetector(mock, testLogger(), WithSelectCodes([]string{"E"}))

	issues := d.Detect(".")
	if len(issues) != 2 {
		t.Fatalf("expected 2 E-prefixed issues, got %d", len(issues))
	}
	for _, i := range issues {
		if i.ErrorCode[0] != 'E' {
			t.Errorf("unexpected code %q after filtering", i.ErrorCode)
		}
	}
}

func TestDetect_LinterMissingReturnsEmpty(t *testing.T) {
	mock := &mockCmd{
		results: []mockResult{
			{Err: fmt.Errorf("exec: \"ruff\": executable file not found in $PATH"), ExitCode: -1},
		},
	}
	d := NewDetector(mock, testLogger())

	issues := d.Detect(".")
	if issues != nil {
		t.Fatalf("expected nil issues when linter is missing, got %v", issues)
	}
}

func TestDetect_AbnormalExitReturnsEmpty(t *testing.T) {
	mock := &mockCmd{
		results: []mockResult{
			{Stderr: "ruff panicked", ExitCode: 2},
		},
	}
	d := NewDetector(mock, testLogger())

	if issues := d.Detect("."); issues != nil {
		t.Fatalf("expected nil issues on abnormal exit, got %v", issues)
	}
}

func TestDetect_GarbageOutputReturnsEmpty(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{Stdout: "not json at all", ExitCode: 1}}}
	d := NewDetector(mock, testLogger())

	if issues := d.Detect("."); issues != nil {
		t.Fatalf("expected nil issues on garbage output, got %v", issues)
	}
}

func TestDetect_CustomCommand(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{Stdout: "[]", ExitCode: 0}}}
	d := NewDetector(mock, testLogger(), WithCommand("/opt/ruff/bin/ruff"))

	d.Detect("src/")
	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.calls))
	}
	want := `/opt/ruff/bin/ruff check --output-format json "src/"`
	if mock.calls[0].Command != want {
		t.Errorf("command = %q, want %q", mock.calls[0].Command, want)
	}
}
