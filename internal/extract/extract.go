// Package extract pulls code payloads out of raw LLM responses. It is
// deliberately heuristic: model output is natural-language-adjacent, so the
// parser reports best-effort results and callers treat a miss as a
// recoverable failure.
package extract

import (
	"regexp"
	"strings"
)

var (
	pythonFenceRe  = regexp.MustCompile("(?s)```python\\s*\\n(.*?)```")
	genericFenceRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_-]*)\\s*\\n(.*?)```")
	codeTagRe      = regexp.MustCompile("(?s)<code>(.*?)</code>")
)

// codeKeywords marks a candidate block as "looks like real code". A block
// with none of these is prose, no matter how it was fenced.
var codeKeywords = []string{
	"def ", "class ", "import ", "from ", "if ", "for ", "while ",
	"try:", "with ", "return", "yield", "async def", "await ",
}

// Code extracts the most plausible code payload from an LLM response.
// Fenced python blocks win, then generic fences, then <code> tags; the
// first candidate containing a code keyword is returned. When no fenced
// block passes, it falls back to collecting a contiguous keyword-bearing
// region of raw lines. Reports false when nothing looks like code.
func Code(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{pythonFenceRe, genericFenceRe, codeTagRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.Trim(m[1], "\n")
			if looksLikeCode(candidate) {
				return candidate, true
			}
		}
	}
	return rawCodeRegion(text)
}

func looksLikeCode(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, kw := range codeKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// codeLine is the stricter per-line test used by the raw fallback: the
// keyword must open the line, otherwise prose like "let me know if you
// need more" would count as code.
func codeLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, kw := range codeKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

// rawCodeRegion scans unfenced text for a contiguous run of lines that
// starts at a keyword-bearing line. Indented and blank lines extend the
// region; a flush-left prose line ends it.
func rawCodeRegion(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if codeLine(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	end := start
	blanks := 0
scan:
	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			blanks++
			if blanks > 2 {
				break scan
			}
		case codeLine(line), strings.HasPrefix(line, " "), strings.HasPrefix(line, "\t"),
			strings.HasPrefix(trimmed, "#"), strings.HasPrefix(trimmed, "@"),
			strings.HasPrefix(trimmed, ")"), strings.HasPrefix(trimmed, "]"):
			end = i
			blanks = 0
		default:
			// A flush-left prose line ends the region.
			break scan
		}
	}

	region := strings.Trim(strings.Join(lines[start:end+1], "\n"), "\n")
	if !looksLikeCode(region) {
		return "", false
	}
	return region, true
}
