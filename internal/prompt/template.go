// Package prompt renders the specialist fix templates. Templates use
// {{variable}} substitution and {{#if variable}}...{{/if}} conditional
// blocks; anything fancier belongs in the specialist building the vars.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	varPattern    = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifOpenPattern = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

const ifClose = "{{/if}}"

// Vars holds the variable values for one render.
type Vars map[string]string

// Render expands tmpl against vars. Conditional blocks are resolved first
// (a block survives only when its variable is set and non-empty), then every
// remaining {{variable}} must resolve or the render fails with the full list
// of missing names.
func Render(tmpl string, vars Vars) (string, error) {
	resolved, err := resolveConditionals(tmpl, vars)
	if err != nil {
		return "", err
	}

	var missing []string
	out := varPattern.ReplaceAllStringFunc(resolved, func(tag string) string {
		name := varPattern.FindStringSubmatch(tag)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		missing = append(missing, name)
		return tag
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// resolveConditionals collapses {{#if}} blocks innermost-first: each pass
// pairs the first {{/if}} with the nearest {{#if}} before it, so nested
// blocks reduce from the inside out.
func resolveConditionals(tmpl string, vars Vars) (string, error) {
	out := tmpl
	for {
		end := strings.Index(out, ifClose)
		if end == -1 {
			break
		}

		opens := ifOpenPattern.FindAllStringSubmatchIndex(out[:end], -1)
		if opens == nil {
			return "", fmt.Errorf("dangling %s without matching {{#if}}", ifClose)
		}
		open := opens[len(opens)-1]
		name := out[open[2]:open[3]]
		body := out[open[1]:end]

		keep := ""
		if val, ok := vars[name]; ok && val != "" {
			keep = body
		}
		out = out[:open[0]] + keep + out[end+len(ifClose):]
	}

	if tag := ifOpenPattern.FindString(out); tag != "" {
		return "", fmt.Errorf("unclosed conditional block: %s", tag)
	}
	return out, nil
}

// LoadTemplate resolves a template by name: a project-level override under
// workdir wins, otherwise the installed copy under ~/.codeflow/templates.
// Template names must stay inside the workdir; traversal is an error.
func LoadTemplate(templatePath string, workdir string) (string, error) {
	if workdir != "" {
		override := filepath.Join(workdir, templatePath)
		if err := insideDir(override, workdir); err != nil {
			return "", err
		}
		if data, err := os.ReadFile(override); err == nil {
			return string(data), nil
		}
	}

	dir := installDir()
	if dir == "" {
		return "", fmt.Errorf("template %q not found and no home directory for installed templates", templatePath)
	}
	installed := filepath.Join(dir, templatePath)
	data, err := os.ReadFile(installed)
	if err != nil {
		return "", fmt.Errorf("template not found at %q (also checked %q): %w", templatePath, installed, err)
	}
	return string(data), nil
}

// insideDir rejects paths that resolve outside dir.
func insideDir(path, dir string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	if absPath != absDir && !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return fmt.Errorf("template path %q escapes workdir", path)
	}
	return nil
}

func installDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codeflow", "templates")
}

// InstallBuiltinTemplates writes any built-in template that isn't already
// present under ~/.codeflow/templates. Existing files are never overwritten,
// so user edits survive upgrades.
func InstallBuiltinTemplates() error {
	dir := installDir()
	if dir == "" {
		return fmt.Errorf("could not determine home directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create templates dir: %w", err)
	}

	for name, content := range builtinTemplates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write template %q: %w", name, err)
		}
	}
	return nil
}
