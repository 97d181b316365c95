package queue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ResetStale returns items stuck in processing longer than age back to
// pending, clearing their worker id. This is a maintenance operation for
// crashed workers — never part of the claim hot path.
func (s *Store) ResetStale(age time.Duration) (int, error) {
	res, err := s.conn.Exec(`
		UPDATE issue_queue
		SET status = 'pending', worker_id = NULL, updated_at = datetime('now')
		WHERE status = 'processing'
		AND updated_at < datetime('now', ?)`,
		fmt.Sprintf("-%d seconds", int(age.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reset stale items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return int(n), nil
}

// Purge deletes completed and failed items older than age, returning the
// count deleted. Pending and processing rows are never purged.
func (s *Store) Purge(age time.Duration) (int, error) {
	res, err := s.conn.Exec(`
		DELETE FROM issue_queue
		WHERE status IN ('completed', 'failed')
		AND updated_at < datetime('now', ?)`,
		fmt.Sprintf("-%d seconds", int(age.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("purge queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return int(n), nil
}

// Maintainer runs stale-claim reset and retention purge on a cron schedule.
type Maintainer struct {
	store      *Store
	cron       *cron.Cron
	staleAfter time.Duration
	retainFor  time.Duration
	logger     *slog.Logger
}

// NewMaintainer creates a Maintainer for the given store.
func NewMaintainer(store *Store, staleAfter, retainFor time.Duration, logger *slog.Logger) *Maintainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintainer{
		store:      store,
		cron:       cron.New(),
		staleAfter: staleAfter,
		retainFor:  retainFor,
		logger:     logger,
	}
}

// Start schedules maintenance with the given cron spec (e.g. "@every 10m")
// and begins running it in the background.
func (m *Maintainer) Start(spec string) error {
	if _, err := m.cron.AddFunc(spec, m.RunOnce); err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", spec, err)
	}
	m.cron.Start()
	return nil
}

// Stop halts the schedule and waits for any in-flight run.
func (m *Maintainer) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs a single maintenance pass.
func (m *Maintainer) RunOnce() {
	reset, err := m.store.ResetStale(m.staleAfter)
	if err != nil {
		m.logger.Warn("stale reset failed", "error", err)
	} else if reset > 0 {
		m.logger.Info("reset stale queue items", "count", reset, "stale_after", m.staleAfter)
	}

	purged, err := m.store.Purge(m.retainFor)
	if err != nil {
		m.logger.Warn("retention purge failed", "error", err)
	} else if purged > 0 {
		m.logger.Info("purged terminal queue items", "count", purged, "retain_for", m.retainFor)
	}
}
