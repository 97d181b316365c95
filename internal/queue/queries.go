package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lucasnoah/codeflow/internal/detect"
)

// Item represents a row in the issue_queue table.
type Item struct {
	ID           int64
	SessionID    string
	FilePath     string
	ErrorCode    string
	LineNumber   int
	ColumnNumber int
	Message      string
	Severity     string
	Priority     int
	Status       Status
	WorkerID     string
	Attempts     int
	FixResult    string
	Metadata     string
	CreatedAt    string
	UpdatedAt    string
}

// Issue converts a queue item back to its detection form.
func (it Item) Issue() detect.LintingIssue {
	return detect.LintingIssue{
		FilePath:     it.FilePath,
		LineNumber:   it.LineNumber,
		ColumnNumber: it.ColumnNumber,
		ErrorCode:    it.ErrorCode,
		Message:      it.Message,
	}
}

const itemColumns = `id, session_id, file_path, error_code, line_number, column_number,
	message, severity, priority, status, worker_id, attempts, fix_result, metadata,
	created_at, updated_at`

func scanItem(scan func(...any) error) (Item, error) {
	var it Item
	var workerID, fixResult, metadata sql.NullString
	err := scan(&it.ID, &it.SessionID, &it.FilePath, &it.ErrorCode, &it.LineNumber,
		&it.ColumnNumber, &it.Message, &it.Severity, &it.Priority, &it.Status,
		&workerID, &it.Attempts, &fixResult, &metadata, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	it.WorkerID = workerID.String
	it.FixResult = fixResult.String
	it.Metadata = metadata.String
	return it, nil
}

// priorityFor derives a claim priority from the error code. Undefined-name
// and import errors outrank formatting noise.
func priorityFor(code string) int {
	switch {
	case strings.HasPrefix(code, "F8"):
		return 3
	case strings.HasPrefix(code, "F"), strings.HasPrefix(code, "E9"):
		return 2
	default:
		return 1
	}
}

// severityFor maps an error code to a coarse severity label.
func severityFor(code string) string {
	if strings.HasPrefix(code, "F") || strings.HasPrefix(code, "E9") {
		return "error"
	}
	return "warning"
}

// QueueIssues inserts issues for a session, best-effort per row: a row that
// fails to insert (malformed, or a duplicate of an already-queued issue) is
// logged and skipped without aborting the batch. Returns the count actually
// inserted.
func (s *Store) QueueIssues(sessionID string, issues []detect.LintingIssue) int {
	stmt, err := s.conn.Prepare(`
		INSERT INTO issue_queue (session_id, file_path, error_code, line_number,
			column_number, message, severity, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		s.logger.Warn("queue issues: prepare failed", "error", err)
		return 0
	}
	defer stmt.Close()

	inserted := 0
	for _, issue := range issues {
		_, err := stmt.Exec(sessionID, issue.FilePath, issue.ErrorCode,
			issue.LineNumber, issue.ColumnNumber, issue.Message,
			severityFor(issue.ErrorCode), priorityFor(issue.ErrorCode))
		if err != nil {
			s.logger.Warn("queue issues: row skipped",
				"file", issue.FilePath, "line", issue.LineNumber,
				"code", issue.ErrorCode, "error", err)
			continue
		}
		inserted++
	}
	return inserted
}

// NextIssues claims up to limit of the oldest pending items for workerID,
// flipping them to processing in a single conditional UPDATE so no two
// concurrent callers can claim the same row. An empty workerID performs a
// read-only peek instead (no claiming). Optional filterCodes restricts claims
// to matching error-code prefixes.
//
// On any DB error the claim is rolled back and an empty slice is returned —
// callers see "no work", never an error. The failure is still logged so
// outages aren't silent.
func (s *Store) NextIssues(ctx context.Context, limit int, workerID string, filterCodes []string) []Item {
	if limit <= 0 {
		return nil
	}
	if workerID == "" {
		return s.peek(ctx, limit, filterCodes)
	}

	filterSQL, filterArgs := codeFilter(filterCodes)

	var items []Item
	err := retryOnBusy(ctx, 5, func() error {
		items = items[:0]

		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer tx.Rollback()

		args := append([]any{workerID}, filterArgs...)
		args = append(args, limit)
		rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
			UPDATE issue_queue
			SET status = 'processing', worker_id = ?, updated_at = datetime('now')
			WHERE id IN (
				SELECT id FROM issue_queue
				WHERE status = 'pending'%s
				ORDER BY priority DESC, created_at ASC, id ASC
				LIMIT ?
			)
			RETURNING %s`, filterSQL, itemColumns), args...)
		if err != nil {
			return fmt.Errorf("claim rows: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			it, err := scanItem(rows.Scan)
			if err != nil {
				return fmt.Errorf("scan claimed row: %w", err)
			}
			items = append(items, it)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		s.logger.Warn("claim next issues failed", "worker", workerID, "error", err)
		return nil
	}
	return items
}

// peek returns pending items in claim order without mutating them.
func (s *Store) peek(ctx context.Context, limit int, filterCodes []string) []Item {
	filterSQL, filterArgs := codeFilter(filterCodes)
	args := append(filterArgs, limit)

	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM issue_queue
		WHERE status = 'pending'%s
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT ?`, itemColumns, filterSQL), args...)
	if err != nil {
		s.logger.Warn("peek next issues failed", "error", err)
		return nil
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			s.logger.Warn("peek scan failed", "error", err)
			return nil
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("peek next issues failed", "error", err)
		return nil
	}
	return items
}

// codeFilter builds the optional error-code allow-list clause.
func codeFilter(prefixes []string) (string, []any) {
	if len(prefixes) == 0 {
		return "", nil
	}
	var clauses []string
	var args []any
	for _, p := range prefixes {
		if p == "*" {
			return "", nil
		}
		clauses = append(clauses, "error_code LIKE ?")
		args = append(args, p+"%")
	}
	return " AND (" + strings.Join(clauses, " OR ") + ")", args
}

// UpdateStatus sets an item's status and fix result and increments its
// attempt counter. No optimistic-lock check: last writer wins.
func (s *Store) UpdateStatus(id int64, status Status, fixResult string) error {
	var result sql.NullString
	if fixResult != "" {
		result = sql.NullString{String: fixResult, Valid: true}
	}
	res, err := s.conn.Exec(`
		UPDATE issue_queue
		SET status = ?, fix_result = ?, attempts = attempts + 1, updated_at = datetime('now')
		WHERE id = ?`,
		string(status), result, id)
	if err != nil {
		return fmt.Errorf("update issue status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("issue %d not found in queue", id)
	}
	return nil
}

// Stats summarizes the queue. Zero-safe: an empty queue reports all zeros and
// a 0.0 success rate.
type Stats struct {
	Total       int     `json:"total"`
	Pending     int     `json:"pending"`
	Processing  int     `json:"processing"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// GetStats returns aggregate queue counts.
func (s *Store) GetStats() (Stats, error) {
	rows, err := s.conn.Query(`SELECT status, COUNT(*) FROM issue_queue GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan queue stats: %w", err)
		}
		st.Total += count
		switch Status(status) {
		case StatusPending:
			st.Pending = count
		case StatusProcessing:
			st.Processing = count
		case StatusCompleted:
			st.Completed = count
		case StatusFailed:
			st.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if terminal := st.Completed + st.Failed; terminal > 0 {
		st.SuccessRate = float64(st.Completed) / float64(terminal)
	}
	return st, nil
}

// List returns all items, optionally filtered by session, in claim order.
func (s *Store) List(sessionID string) ([]Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM issue_queue`, itemColumns)
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY priority DESC, created_at ASC, id ASC`

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
