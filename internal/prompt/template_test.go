package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRender_SimpleVars(t *testing.T) {
	out, err := Render("Fix {{file_path}} ({{count}} issues)", Vars{
		"file_path": "src/app.py",
		"count":     "3",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if out != "Fix src/app.py (3 issues)" {
		t.Errorf("got %q", out)
	}
}

func TestRender_MissingVar(t *testing.T) {
	_, err := Render("Fix {{file_path}}", Vars{})
	if err == nil {
		t.Fatal("expected error for missing variable")
	}
	if !strings.Contains(err.Error(), "file_path") {
		t.Errorf("error should name the missing variable: %v", err)
	}
}

func TestRender_MultipleMissing(t *testing.T) {
	_, err := Render("{{a}} {{b}}", Vars{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "a") || !strings.Contains(err.Error(), "b") {
		t.Errorf("error should list all missing variables: %v", err)
	}
}

func TestRender_ConditionalBlock_Present(t *testing.T) {
	tmpl := "header{{#if prior_failure}}\nPrior: {{prior_failure}}{{/if}}"
	out, err := Render(tmpl, Vars{"prior_failure": "syntax error"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "Prior: syntax error") {
		t.Errorf("conditional body missing: %q", out)
	}
}

func TestRender_ConditionalBlock_Absent(t *testing.T) {
	tmpl := "header{{#if prior_failure}}\nPrior: {{prior_failure}}{{/if}}"
	out, err := Render(tmpl, Vars{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if out != "header" {
		t.Errorf("got %q, want conditional stripped", out)
	}
}

func TestRender_ConditionalBlock_EmptyString(t *testing.T) {
	out, err := Render("{{#if x}}shown{{/if}}", Vars{"x": ""})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if out != "" {
		t.Errorf("empty var should suppress block, got %q", out)
	}
}

func TestRender_NestedConditionals(t *testing.T) {
	tmpl := "{{#if a}}A{{#if b}}B{{/if}}{{/if}}"

	out, err := Render(tmpl, Vars{"a": "1", "b": "1"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if out != "AB" {
		t.Errorf("both set: got %q, want AB", out)
	}

	out, err = Render(tmpl, Vars{"a": "1"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if out != "A" {
		t.Errorf("inner unset: got %q, want A", out)
	}

	out, err = Render(tmpl, Vars{"b": "1"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if out != "" {
		t.Errorf("outer unset: got %q, want empty", out)
	}
}

func TestRender_UnclosedConditional(t *testing.T) {
	_, err := Render("{{#if a}}never closed", Vars{"a": "1"})
	if err == nil {
		t.Fatal("expected error for unclosed conditional")
	}
}

func TestRender_DanglingClose(t *testing.T) {
	_, err := Render("no open{{/if}}", Vars{})
	if err == nil {
		t.Fatal("expected error for dangling {{/if}}")
	}
}

func TestRender_GeneralTemplate(t *testing.T) {
	out, err := Render(builtinTemplates["fix-general.md"], Vars{
		"file_path":     "pkg/util.py",
		"issues":        "- E501 at 12:89: Line too long",
		"file_content":  "x = 1",
		"prior_failure": "",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "pkg/util.py") {
		t.Error("file path not rendered")
	}
	if !strings.Contains(out, "E501 at 12:89") {
		t.Error("issues not rendered")
	}
	if strings.Contains(out, "Prior Attempt") {
		t.Error("empty prior_failure should suppress the prior-attempt section")
	}
}

func TestRender_LineLengthTemplate_FlaggedLines(t *testing.T) {
	out, err := Render(builtinTemplates["fix-line-length.md"], Vars{
		"file_path":    "a.py",
		"issues":       "- E501",
		"line_content": "very long line",
		"file_content": "very long line",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "## Flagged Lines") {
		t.Error("flagged-lines section should render when line_content is set")
	}
}

func TestBuiltinTemplates_AllRenderable(t *testing.T) {
	vars := Vars{
		"file_path":     "a.py",
		"issues":        "- F401",
		"file_content":  "import os",
		"line_content":  "import os",
		"prior_failure": "",
	}
	for name, tmpl := range builtinTemplates {
		if _, err := Render(tmpl, vars); err != nil {
			t.Errorf("template %s failed to render: %v", name, err)
		}
	}
}

func TestLoadTemplate_ProjectOverride(t *testing.T) {
	dir := t.TempDir()
	custom := "custom {{file_path}}"
	if err := os.WriteFile(filepath.Join(dir, "fix-general.md"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadTemplate("fix-general.md", dir)
	if err != nil {
		t.Fatalf("LoadTemplate() error: %v", err)
	}
	if got != custom {
		t.Errorf("got %q, want project override", got)
	}
}

func TestLoadTemplate_PathTraversal(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTemplate("../outside.md", dir)
	if err == nil {
		t.Fatal("expected error for path escaping workdir")
	}
}
