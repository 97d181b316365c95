// Package interactions persists every AI fix attempt so runs can be
// searched, replayed, and analyzed after the fact.
package interactions

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Interaction is one logged fix attempt: the prompt that went out, the raw
// response that came back, and what happened with it.
type Interaction struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	FilePath   string    `json:"file_path"`
	ErrorCodes string    `json:"error_codes"`
	AgentType  string    `json:"agent_type"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Prompt     string    `json:"prompt,omitempty"`
	Response   string    `json:"response,omitempty"`
	Success    bool      `json:"success"`
	Confidence float64   `json:"confidence"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session aggregates one orchestrator run.
type Session struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Processed  int        `json:"processed"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	DurationMS int64      `json:"duration_ms"`
}

// Store wraps the interactions SQLite database.
type Store struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
}

// DefaultPath returns ~/.codeflow/interactions.db, creating the directory
// if needed.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".codeflow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "interactions.db"), nil
}

// Open opens or creates the interaction database at the given path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{conn: conn, path: path, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying *sql.DB for analytics queries.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ai_interactions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL,
    file_path   TEXT NOT NULL,
    error_codes TEXT NOT NULL DEFAULT '',
    agent_type  TEXT NOT NULL DEFAULT 'general',
    provider    TEXT NOT NULL DEFAULT '',
    model       TEXT NOT NULL DEFAULT '',
    prompt      TEXT NOT NULL DEFAULT '',
    response    TEXT NOT NULL DEFAULT '',
    success     INTEGER NOT NULL DEFAULT 0,
    confidence  REAL NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_interactions_session ON ai_interactions(session_id);
CREATE INDEX IF NOT EXISTS idx_interactions_created ON ai_interactions(created_at);

CREATE VIRTUAL TABLE IF NOT EXISTS interactions_fts USING fts5(
    file_path, prompt, response,
    content='ai_interactions',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS interactions_ai AFTER INSERT ON ai_interactions BEGIN
    INSERT INTO interactions_fts(rowid, file_path, prompt, response)
    VALUES (new.id, new.file_path, new.prompt, new.response);
END;
CREATE TRIGGER IF NOT EXISTS interactions_ad AFTER DELETE ON ai_interactions BEGIN
    INSERT INTO interactions_fts(interactions_fts, rowid, file_path, prompt, response)
    VALUES ('delete', old.id, old.file_path, old.prompt, old.response);
END;
CREATE TRIGGER IF NOT EXISTS interactions_au AFTER UPDATE ON ai_interactions BEGIN
    INSERT INTO interactions_fts(interactions_fts, rowid, file_path, prompt, response)
    VALUES ('delete', old.id, old.file_path, old.prompt, old.response);
    INSERT INTO interactions_fts(rowid, file_path, prompt, response)
    VALUES (new.id, new.file_path, new.prompt, new.response);
END;

CREATE TABLE IF NOT EXISTS performance_sessions (
    id          TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL DEFAULT (datetime('now')),
    finished_at TEXT,
    processed   INTEGER NOT NULL DEFAULT 0,
    completed   INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
`

// Migrate applies the database schema.
func (s *Store) Migrate() error {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (s *Store) Reset() error {
	for _, t := range []string{
		"interactions_ai", "interactions_ad", "interactions_au",
	} {
		if _, err := s.conn.Exec("DROP TRIGGER IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop trigger %s: %w", t, err)
		}
	}
	for _, t := range []string{
		"interactions_fts", "ai_interactions", "performance_sessions", "schema_version",
	} {
		if _, err := s.conn.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return s.Migrate()
}

// LogInteraction records one fix attempt. Logging failures are reported to
// the caller but are expected to be treated as non-fatal: losing a log row
// must not fail the fix itself.
func (s *Store) LogInteraction(in Interaction) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO ai_interactions
		    (session_id, file_path, error_codes, agent_type, provider, model,
		     prompt, response, success, confidence, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.SessionID, in.FilePath, in.ErrorCodes, in.AgentType, in.Provider,
		in.Model, in.Prompt, in.Response, in.Success, in.Confidence, in.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("insert interaction: %w", err)
	}
	return res.LastInsertId()
}

// StartSession records the beginning of an orchestrator run.
func (s *Store) StartSession(id string) error {
	if _, err := s.conn.Exec(
		"INSERT OR IGNORE INTO performance_sessions (id) VALUES (?)", id); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// FinishSession closes out a run with its final counters.
func (s *Store) FinishSession(id string, processed, completed, failed int, duration time.Duration) error {
	if _, err := s.conn.Exec(`
		UPDATE performance_sessions
		SET finished_at = datetime('now'), processed = ?, completed = ?,
		    failed = ?, duration_ms = ?
		WHERE id = ?`,
		processed, completed, failed, duration.Milliseconds(), id); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

const interactionColumns = `id, session_id, file_path, error_codes, agent_type,
	provider, model, prompt, response, success, confidence, duration_ms, created_at`

func scanInteraction(row interface{ Scan(...any) error }) (Interaction, error) {
	var in Interaction
	var created string
	err := row.Scan(&in.ID, &in.SessionID, &in.FilePath, &in.ErrorCodes,
		&in.AgentType, &in.Provider, &in.Model, &in.Prompt, &in.Response,
		&in.Success, &in.Confidence, &in.DurationMS, &created)
	if err != nil {
		return in, err
	}
	if t, perr := time.Parse("2006-01-02 15:04:05", created); perr == nil {
		in.CreatedAt = t
	}
	return in, nil
}

// Search runs a full-text query over prompts, responses, and file paths.
func (s *Store) Search(query string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(`
		SELECT `+interactionColumns+`
		FROM ai_interactions
		WHERE id IN (SELECT rowid FROM interactions_fts WHERE interactions_fts MATCH ?)
		ORDER BY created_at DESC
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search interactions: %w", err)
	}
	defer rows.Close()
	return collectInteractions(rows)
}

// RecentInteractions returns the newest interactions first.
func (s *Store) RecentInteractions(limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(`
		SELECT `+interactionColumns+`
		FROM ai_interactions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()
	return collectInteractions(rows)
}

func collectInteractions(rows *sql.Rows) ([]Interaction, error) {
	var out []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetSession returns one session's aggregate row.
func (s *Store) GetSession(id string) (*Session, error) {
	var sess Session
	var started string
	var finished sql.NullString
	err := s.conn.QueryRow(`
		SELECT id, started_at, finished_at, processed, completed, failed, duration_ms
		FROM performance_sessions WHERE id = ?`, id).
		Scan(&sess.ID, &started, &finished, &sess.Processed, &sess.Completed,
			&sess.Failed, &sess.DurationMS)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if t, perr := time.Parse("2006-01-02 15:04:05", started); perr == nil {
		sess.StartedAt = t
	}
	if finished.Valid {
		if t, perr := time.Parse("2006-01-02 15:04:05", finished.String); perr == nil {
			sess.FinishedAt = &t
		}
	}
	return &sess, nil
}
