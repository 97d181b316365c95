package interactions

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interactions.db")
	s, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func sampleInteraction(session, file, prompt, response string, success bool) Interaction {
	return Interaction{
		SessionID:  session,
		FilePath:   file,
		ErrorCodes: "E501",
		AgentType:  "line_length",
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		Prompt:     prompt,
		Response:   response,
		Success:    success,
		Confidence: 0.85,
		DurationMS: 1200,
	}
}

func TestLogInteraction(t *testing.T) {
	s := testStore(t)
	id, err := s.LogInteraction(sampleInteraction("sess-1", "src/app.py", "fix this", "```python\nx = 1\n```", true))
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if id == 0 {
		t.Error("expected a row id")
	}

	recent, err := s.RecentInteractions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("got %d interactions, want 1", len(recent))
	}
	got := recent[0]
	if got.SessionID != "sess-1" || got.AgentType != "line_length" || !got.Success {
		t.Errorf("interaction = %+v", got)
	}
	if got.Confidence != 0.85 || got.DurationMS != 1200 {
		t.Errorf("metrics = %v / %v", got.Confidence, got.DurationMS)
	}
}

func TestRecentInteractions_NewestFirst(t *testing.T) {
	s := testStore(t)
	for _, file := range []string{"a.py", "b.py", "c.py"} {
		if _, err := s.LogInteraction(sampleInteraction("sess-1", file, "p", "r", true)); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.RecentInteractions(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d interactions, want 2", len(recent))
	}
	if recent[0].FilePath != "c.py" || recent[1].FilePath != "b.py" {
		t.Errorf("order = %s, %s", recent[0].FilePath, recent[1].FilePath)
	}
}

func TestSearch(t *testing.T) {
	s := testStore(t)
	s.LogInteraction(sampleInteraction("sess-1", "src/payments.py", "fix the decimal rounding", "rounded", true))
	s.LogInteraction(sampleInteraction("sess-1", "src/auth.py", "fix the login import", "imported", false))

	hits, err := s.Search("decimal", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].FilePath != "src/payments.py" {
		t.Errorf("hit = %s", hits[0].FilePath)
	}

	// File paths are indexed too.
	hits, err = s.Search("auth", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].FilePath != "src/auth.py" {
		t.Errorf("path search hits = %+v", hits)
	}
}

func TestSearch_NoMatches(t *testing.T) {
	s := testStore(t)
	s.LogInteraction(sampleInteraction("sess-1", "a.py", "p", "r", true))

	hits, err := s.Search("zebra", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits, want 0", len(hits))
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := testStore(t)
	if err := s.StartSession("sess-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Starting twice is harmless.
	if err := s.StartSession("sess-1"); err != nil {
		t.Fatalf("restart: %v", err)
	}

	if err := s.FinishSession("sess-1", 10, 7, 3, 42*time.Second); err != nil {
		t.Fatalf("finish: %v", err)
	}

	sess, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Processed != 10 || sess.Completed != 7 || sess.Failed != 3 {
		t.Errorf("counters = %+v", sess)
	}
	if sess.DurationMS != 42000 {
		t.Errorf("duration = %d", sess.DurationMS)
	}
	if sess.FinishedAt == nil {
		t.Error("finished_at not set")
	}
}

func TestReset(t *testing.T) {
	s := testStore(t)
	s.LogInteraction(sampleInteraction("sess-1", "a.py", "p", "r", true))

	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	recent, err := s.RecentInteractions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 0 {
		t.Errorf("reset left %d rows", len(recent))
	}
}
