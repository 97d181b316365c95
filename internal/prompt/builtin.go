package prompt

// Builtin returns the embedded template content by filename, for callers
// that need a template even when nothing is installed on disk.
func Builtin(name string) (string, bool) {
	content, ok := builtinTemplates[name]
	return content, ok
}

// builtinTemplates maps template filename to content. One fix template per
// specialist, plus the generic fallback.
var builtinTemplates = map[string]string{
	"fix-line-length.md": lineLengthTemplate,
	"fix-imports.md":     importsTemplate,
	"fix-style.md":       styleTemplate,
	"fix-annotations.md": annotationsTemplate,
	"fix-docstrings.md":  docstringsTemplate,
	"fix-complexity.md":  complexityTemplate,
	"fix-general.md":     generalTemplate,
}

const responseRules = `## Response Rules
- Return the COMPLETE corrected file content in a single ` + "```python" + ` code block.
- Do not add explanations inside the code block.
- Do not change behavior: fix only the issues listed above.
- Preserve the existing line count unless a fix requires otherwise.`

const lineLengthTemplate = `# Fix Line-Length Issues in {{file_path}}

You are a Python formatting specialist. Shorten the flagged lines without
changing program behavior. Prefer implicit string concatenation, parenthesized
continuations, and intermediate variables over backslash continuations.

## Issues
{{issues}}

{{#if line_content}}
## Flagged Lines
{{line_content}}
{{/if}}

## Current File Content
` + "```python\n{{file_content}}\n```" + `

` + responseRules + `
`

const importsTemplate = `# Fix Import Issues in {{file_path}}

You are a Python import specialist. Remove unused imports, add missing ones,
and order import blocks (stdlib, third-party, local) per PEP 8.

## Issues
{{issues}}

## Current File Content
` + "```python\n{{file_content}}\n```" + `

` + responseRules + `
`

const styleTemplate = `# Fix Style Issues in {{file_path}}

You are a Python style specialist (PEP 8). Fix whitespace, blank lines,
comparison idioms, and naming issues flagged below.

## Issues
{{issues}}

## Current File Content
` + "```python\n{{file_content}}\n```" + `

` + responseRules + `
`

const annotationsTemplate = `# Fix Type Annotation Issues in {{file_path}}

You are a Python typing specialist. Add or correct type annotations for the
flagged definitions. Use modern syntax (PEP 585/604) where the codebase
already does.

## Issues
{{issues}}

## Current File Content
` + "```python\n{{file_content}}\n```" + `

` + responseRules + `
`

const docstringsTemplate = `# Fix Docstring Issues in {{file_path}}

You are a Python documentation specialist. Add or correct docstrings for the
flagged definitions, matching the documentation style already used in the file.

## Issues
{{issues}}

## Current File Content
` + "```python\n{{file_content}}\n```" + `

` + responseRules + `
`

const complexityTemplate = `# Reduce Complexity in {{file_path}}

You are a Python refactoring specialist. Reduce the complexity of the flagged
functions by extracting helpers and flattening nesting, without changing
observable behavior.

## Issues
{{issues}}

{{#if prior_failure}}
## Prior Attempt
A previous fix attempt failed validation:
{{prior_failure}}
{{/if}}

## Current File Content
` + "```python\n{{file_content}}\n```" + `

` + responseRules + `
`

const generalTemplate = `# Fix Linting Issues in {{file_path}}

You are a Python code-quality assistant. Fix every issue listed below.

## Issues
{{issues}}

{{#if prior_failure}}
## Prior Attempt
A previous fix attempt failed validation:
{{prior_failure}}
{{/if}}

## Current File Content
` + "```python\n{{file_content}}\n```" + `

` + responseRules + `
`
