package extract

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// UnifiedDiff reports whether the text is a unified diff rather than full
// file content. Models occasionally answer with a patch even when asked
// for the whole file.
func UnifiedDiff(text string) bool {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, "@@") {
		return false
	}
	return strings.Contains(trimmed, "--- ") && strings.Contains(trimmed, "+++ ")
}

// ApplyDiff applies a single-file unified diff to the original content and
// returns the patched text.
func ApplyDiff(original, diffText string) (string, error) {
	fd, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return "", fmt.Errorf("parse diff: %w", err)
	}

	origLines := strings.Split(original, "\n")
	var out []string
	origIdx := 0

	for _, hunk := range fd.Hunks {
		hunkStart := int(hunk.OrigStartLine) - 1
		if hunkStart < 0 {
			hunkStart = 0
		}
		for origIdx < hunkStart && origIdx < len(origLines) {
			out = append(out, origLines[origIdx])
			origIdx++
		}

		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				out = append(out, line[1:])
			case strings.HasPrefix(line, "-"):
				if err := matchOriginal(origLines, origIdx, line[1:]); err != nil {
					return "", err
				}
				origIdx++
			case strings.HasPrefix(line, " "):
				if err := matchOriginal(origLines, origIdx, line[1:]); err != nil {
					return "", err
				}
				out = append(out, origLines[origIdx])
				origIdx++
			}
		}
	}

	for origIdx < len(origLines) {
		out = append(out, origLines[origIdx])
		origIdx++
	}

	return strings.Join(out, "\n"), nil
}

// matchOriginal confirms that a hunk's deleted or context line actually
// matches the original at idx. Models sometimes emit hunks with drifted
// line numbers; applying those silently would corrupt the file, so a
// mismatch fails the whole patch instead.
func matchOriginal(origLines []string, idx int, want string) error {
	if idx >= len(origLines) {
		return fmt.Errorf("hunk extends past end of original (line %d)", idx+1)
	}
	if origLines[idx] != want {
		return fmt.Errorf("hunk does not match original at line %d: have %q, diff expects %q",
			idx+1, origLines[idx], want)
	}
	return nil
}
