package extract

import (
	"strings"
	"testing"
)

func TestCode_PythonFencePreferred(t *testing.T) {
	text := "Here is the fix:\n```python\nimport os\n\ndef main():\n    pass\n```\nHope this helps!"
	code, ok := Code(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if !strings.Contains(code, "def main():") {
		t.Errorf("extracted %q", code)
	}
	if strings.Contains(code, "```") || strings.Contains(code, "Hope this helps") {
		t.Errorf("extracted block includes surrounding text: %q", code)
	}
}

func TestCode_PythonFenceWinsOverGeneric(t *testing.T) {
	text := "```\nimport json\n```\n```python\nimport os\n```"
	code, ok := Code(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if code != "import os" {
		t.Errorf("extracted %q, want the python-tagged block", code)
	}
}

func TestCode_GenericFence(t *testing.T) {
	code, ok := Code("Try this:\n```\nfrom pathlib import Path\nreturn Path(p)\n```")
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if !strings.Contains(code, "from pathlib import Path") {
		t.Errorf("extracted %q", code)
	}
}

func TestCode_CodeTags(t *testing.T) {
	code, ok := Code("<code>\ndef handler(x):\n    return x\n</code>")
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if !strings.Contains(code, "def handler(x):") {
		t.Errorf("extracted %q", code)
	}
}

func TestCode_ProseOnlyFenceSkipped(t *testing.T) {
	// The first fence is prose; extraction should move on to the second.
	text := "```\nThis code fixes the issue.\n```\n```\ndef fixed():\n    pass\n```"
	code, ok := Code(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if !strings.Contains(code, "def fixed():") {
		t.Errorf("extracted %q", code)
	}
}

func TestCode_RawLineFallback(t *testing.T) {
	text := "Sure! The corrected version is:\n\nimport os\n\ndef main():\n    print(os.getcwd())\n\nLet me know if you need anything else."
	code, ok := Code(text)
	if !ok {
		t.Fatal("expected raw-line fallback to succeed")
	}
	if !strings.Contains(code, "import os") || !strings.Contains(code, "def main():") {
		t.Errorf("extracted %q", code)
	}
	if strings.Contains(code, "Let me know") {
		t.Errorf("trailing prose leaked into region: %q", code)
	}
}

func TestCode_NoCode(t *testing.T) {
	if code, ok := Code("I cannot fix this issue without more context about the codebase."); ok {
		t.Errorf("expected failure, extracted %q", code)
	}
}

func TestCode_EmptyFenceRejected(t *testing.T) {
	if code, ok := Code("```python\n```"); ok {
		t.Errorf("expected failure for empty fence, extracted %q", code)
	}
}

func TestUnifiedDiff(t *testing.T) {
	patch := "--- a/app.py\n+++ b/app.py\n@@ -1,2 +1,2 @@\n-import  os\n+import os\n context"
	if !UnifiedDiff(patch) {
		t.Error("unified diff not detected")
	}
	if UnifiedDiff("def main():\n    pass") {
		t.Error("plain code misdetected as diff")
	}
}

func TestApplyDiff(t *testing.T) {
	original := "import  os\nimport sys\n\nprint(sys.argv)"
	patch := "--- a/app.py\n+++ b/app.py\n@@ -1,2 +1,2 @@\n-import  os\n+import os\n import sys\n"

	patched, err := ApplyDiff(original, patch)
	if err != nil {
		t.Fatalf("apply diff: %v", err)
	}
	want := "import os\nimport sys\n\nprint(sys.argv)"
	if patched != want {
		t.Errorf("patched = %q, want %q", patched, want)
	}
}

func TestApplyDiff_BadPatch(t *testing.T) {
	if _, err := ApplyDiff("x", "not a diff at all"); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyDiff_DriftedHunkRejected(t *testing.T) {
	// The hunk deletes a line the original doesn't have at that position.
	// Applying it anyway would corrupt the file, so it must error instead.
	original := "import sys\n\nprint(sys.argv)"
	patch := "--- a/app.py\n+++ b/app.py\n@@ -1,2 +1,2 @@\n-import json\n+import os\n import sys\n"

	if patched, err := ApplyDiff(original, patch); err == nil {
		t.Errorf("expected mismatch error, got %q", patched)
	}
}

func TestApplyDiff_ContextMismatchRejected(t *testing.T) {
	original := "import os\nimport sys"
	patch := "--- a/app.py\n+++ b/app.py\n@@ -1,2 +1,2 @@\n-import os\n+import io\n import collections\n"

	if patched, err := ApplyDiff(original, patch); err == nil {
		t.Errorf("expected context mismatch error, got %q", patched)
	}
}

func TestApplyDiff_HunkPastEndRejected(t *testing.T) {
	patch := "--- a/app.py\n+++ b/app.py\n@@ -5,2 +5,2 @@\n-import os\n+import io\n import sys\n"

	if patched, err := ApplyDiff("import os", patch); err == nil {
		t.Errorf("expected past-end error, got %q", patched)
	}
}
