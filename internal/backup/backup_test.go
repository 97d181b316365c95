package backup

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "backups"), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestBackupFile_RoundTrip(t *testing.T) {
	m := testManager(t)
	src := filepath.Join(t.TempDir(), "app.py")
	writeFile(t, src, "original content\n")

	fb, err := m.BackupFile(src, "sess-1")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if fb == nil {
		t.Fatal("expected a backup record")
	}
	if fb.OriginalContent != "original content\n" {
		t.Errorf("captured content = %q", fb.OriginalContent)
	}
	if readFile(t, fb.BackupPath) != "original content\n" {
		t.Error("backup file content mismatch")
	}
	if m.Latest(src, "sess-1") != fb {
		t.Error("latest backup not recorded")
	}
}

func TestBackupFile_MissingSource(t *testing.T) {
	m := testManager(t)
	fb, err := m.BackupFile(filepath.Join(t.TempDir(), "ghost.py"), "sess-1")
	if err != nil {
		t.Fatalf("missing source should not error: %v", err)
	}
	if fb != nil {
		t.Errorf("expected nil backup, got %+v", fb)
	}
}

func TestPersistFix_WritesAtomically(t *testing.T) {
	m := testManager(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "app.py")
	writeFile(t, src, "old\n")

	res := m.PersistFix(src, "new\n", "sess-1", true)
	if !res.WriteSuccess || !res.BackupCreated || res.RollbackPerformed {
		t.Errorf("result = %+v", res)
	}
	if readFile(t, src) != "new\n" {
		t.Error("content not persisted")
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("dangling temp file %s", e.Name())
		}
	}
}

func TestPersistFix_NoBackupRequested(t *testing.T) {
	m := testManager(t)
	src := filepath.Join(t.TempDir(), "app.py")
	writeFile(t, src, "old\n")

	res := m.PersistFix(src, "new\n", "sess-1", false)
	if !res.WriteSuccess || res.BackupCreated {
		t.Errorf("result = %+v", res)
	}
	if m.Latest(src, "sess-1") != nil {
		t.Error("backup recorded despite createBackup=false")
	}
}

func TestPersistFix_NewFile(t *testing.T) {
	m := testManager(t)
	src := filepath.Join(t.TempDir(), "fresh.py")

	res := m.PersistFix(src, "content\n", "sess-1", true)
	if !res.WriteSuccess {
		t.Errorf("result = %+v", res)
	}
	if res.BackupCreated {
		t.Error("backup reported for a file that did not exist")
	}
	if readFile(t, src) != "content\n" {
		t.Error("content not written")
	}
}

func TestRollbackIfNeeded(t *testing.T) {
	m := testManager(t)
	src := filepath.Join(t.TempDir(), "app.py")
	writeFile(t, src, "original\n")

	if _, err := m.BackupFile(src, "sess-1"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, src, "mangled\n")

	if !m.RollbackIfNeeded(src, true, "sess-1") {
		t.Fatal("rollback reported failure")
	}
	if readFile(t, src) != "original\n" {
		t.Error("content not restored")
	}

	// Idempotent: rolling back again is still a success.
	if !m.RollbackIfNeeded(src, true, "sess-1") {
		t.Error("second rollback reported failure")
	}
	if readFile(t, src) != "original\n" {
		t.Error("second rollback changed content")
	}
}

func TestRollbackIfNeeded_ShouldFalse(t *testing.T) {
	m := testManager(t)
	src := filepath.Join(t.TempDir(), "app.py")
	writeFile(t, src, "keep me\n")

	if !m.RollbackIfNeeded(src, false, "sess-1") {
		t.Error("should=false must report success")
	}
	if readFile(t, src) != "keep me\n" {
		t.Error("should=false must not touch the file")
	}
}

func TestRollbackIfNeeded_NoBackup(t *testing.T) {
	m := testManager(t)
	if !m.RollbackIfNeeded("/nonexistent/app.py", true, "sess-1") {
		t.Error("missing backup should be a no-op success")
	}
}

func TestRestoreFile(t *testing.T) {
	m := testManager(t)
	src := filepath.Join(t.TempDir(), "app.py")
	writeFile(t, src, "v1\n")

	fb, err := m.BackupFile(src, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, src, "v2\n")

	if err := m.RestoreFile(src, fb.BackupPath); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if readFile(t, src) != "v1\n" {
		t.Error("restore did not bring back backup content")
	}
}

func TestCleanupSession(t *testing.T) {
	m := testManager(t)
	src := filepath.Join(t.TempDir(), "app.py")
	writeFile(t, src, "x\n")

	fb, err := m.BackupFile(src, "sess-1")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.CleanupSession("sess-1"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(fb.BackupPath); !os.IsNotExist(err) {
		t.Error("backup file survived cleanup")
	}
	if m.Latest(src, "sess-1") != nil {
		t.Error("in-memory backup survived cleanup")
	}
}
