// Package backup snapshots files before fixes touch them and persists fixed
// content atomically, so a bad fix can always be rolled back to the exact
// bytes that were there before.
package backup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileBackup records one snapshot of a file taken before modification.
type FileBackup struct {
	FilePath        string            `json:"file_path"`
	BackupPath      string            `json:"backup_path"`
	OriginalContent string            `json:"-"`
	BackupTime      time.Time         `json:"backup_time"`
	SessionID       string            `json:"session_id"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// PersistResult reports what a PersistFix call actually did.
type PersistResult struct {
	WriteSuccess      bool `json:"write_success"`
	BackupCreated     bool `json:"backup_created"`
	RollbackPerformed bool `json:"rollback_performed"`
}

// Manager keeps the latest backup per (session, file) and owns the backup
// directory layout: <dir>/<session>/<base>.<microsecond-timestamp>.bak.
type Manager struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	backups map[string]map[string]*FileBackup // session -> file path -> latest
}

// NewManager creates a backup manager rooted at dir.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:     dir,
		logger:  logger,
		backups: make(map[string]map[string]*FileBackup),
	}
}

// BackupFile snapshots the current content of path under the session's
// backup directory. A missing source file is not an error: there is nothing
// to back up, so it returns (nil, nil).
func (m *Manager) BackupFile(path, sessionID string) (*FileBackup, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read source for backup: %w", err)
	}

	sessionDir := filepath.Join(m.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	stamp := time.Now().UnixMicro()
	backupPath := filepath.Join(sessionDir, fmt.Sprintf("%s.%d.bak", filepath.Base(path), stamp))
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("write backup file: %w", err)
	}

	fb := &FileBackup{
		FilePath:        path,
		BackupPath:      backupPath,
		OriginalContent: string(content),
		BackupTime:      time.Now(),
		SessionID:       sessionID,
	}

	m.mu.Lock()
	if m.backups[sessionID] == nil {
		m.backups[sessionID] = make(map[string]*FileBackup)
	}
	m.backups[sessionID][path] = fb
	m.mu.Unlock()

	m.logger.Debug("backed up file", "file", path, "backup", backupPath, "session", sessionID)
	return fb, nil
}

// Latest returns the most recent backup recorded for the file in the
// session, or nil.
func (m *Manager) Latest(path, sessionID string) *FileBackup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backups[sessionID][path]
}

// PersistFix writes the fixed content to path atomically, optionally taking
// a backup first. If the write fails after a backup exists, the original
// content is restored automatically.
func (m *Manager) PersistFix(path, content, sessionID string, createBackup bool) PersistResult {
	var res PersistResult

	if createBackup {
		fb, err := m.BackupFile(path, sessionID)
		if err != nil {
			m.logger.Warn("backup failed, refusing to persist", "file", path, "error", err)
			return res
		}
		res.BackupCreated = fb != nil
	}

	if err := writeAtomic(path, []byte(content)); err != nil {
		m.logger.Warn("atomic write failed", "file", path, "error", err)
		if m.RollbackIfNeeded(path, true, sessionID) {
			res.RollbackPerformed = true
		}
		return res
	}

	res.WriteSuccess = true
	return res
}

// RollbackIfNeeded restores the latest session backup of path when should
// is true. With should=false, or when no backup exists, it is a no-op that
// reports success so callers can invoke it unconditionally.
func (m *Manager) RollbackIfNeeded(path string, should bool, sessionID string) bool {
	if !should {
		return true
	}

	fb := m.Latest(path, sessionID)
	if fb == nil {
		m.logger.Debug("no backup to roll back to", "file", path, "session", sessionID)
		return true
	}

	if err := writeAtomic(path, []byte(fb.OriginalContent)); err != nil {
		m.logger.Error("rollback failed", "file", path, "error", err)
		return false
	}
	m.logger.Info("rolled back file", "file", path, "backup", fb.BackupPath)
	return true
}

// RestoreFile restores path from an explicit backup file.
func (m *Manager) RestoreFile(path, backupPath string) error {
	content, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", backupPath, err)
	}
	if err := writeAtomic(path, content); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return nil
}

// CleanupSession deletes all on-disk backups for the session and forgets
// its in-memory entries.
func (m *Manager) CleanupSession(sessionID string) error {
	m.mu.Lock()
	delete(m.backups, sessionID)
	m.mu.Unlock()

	sessionDir := filepath.Join(m.dir, sessionID)
	if err := os.RemoveAll(sessionDir); err != nil {
		return fmt.Errorf("remove session backups: %w", err)
	}
	return nil
}

// writeAtomic writes data via a same-directory temp file and rename, with a
// best-effort fsync of file and parent directory. The temp file never
// outlives a failure.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up temp file on any error path.
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	tmpName = ""

	// Directory fsync is best effort; rename durability is already good
	// enough for a fix that can be regenerated.
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
