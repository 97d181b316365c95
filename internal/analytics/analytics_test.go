package analytics

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasnoah/codeflow/internal/interactions"
)

func testStore(t *testing.T) *interactions.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interactions.db")
	s, err := interactions.Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func log(t *testing.T, s *interactions.Store, in interactions.Interaction) {
	t.Helper()
	if _, err := s.LogInteraction(in); err != nil {
		t.Fatal(err)
	}
}

func TestQueryCodeStats(t *testing.T) {
	s := testStore(t)
	log(t, s, interactions.Interaction{SessionID: "s1", FilePath: "a.py", ErrorCodes: "E501", Success: true, Confidence: 0.9})
	log(t, s, interactions.Interaction{SessionID: "s1", FilePath: "b.py", ErrorCodes: "E501", Success: false, Confidence: 0.5})
	log(t, s, interactions.Interaction{SessionID: "s1", FilePath: "c.py", ErrorCodes: "E501, F401", Success: true, Confidence: 0.7})

	stats, err := QueryCodeStats(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d codes, want 2", len(stats))
	}

	// E501 has more attempts, so it sorts first.
	e501 := stats[0]
	if e501.Code != "E501" || e501.Attempts != 3 || e501.Successes != 2 {
		t.Errorf("E501 stats = %+v", e501)
	}
	if e501.SuccessRate != 66.7 {
		t.Errorf("E501 success rate = %v, want 66.7", e501.SuccessRate)
	}

	f401 := stats[1]
	if f401.Code != "F401" || f401.Attempts != 1 || f401.SuccessRate != 100.0 {
		t.Errorf("F401 stats = %+v", f401)
	}
}

func TestQueryCodeStats_Empty(t *testing.T) {
	s := testStore(t)
	stats, err := QueryCodeStats(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 0 {
		t.Errorf("got %d codes from empty db", len(stats))
	}
}

func TestQueryModelDurations(t *testing.T) {
	s := testStore(t)
	for i, ms := range []int64{100, 200, 300, 400} {
		log(t, s, interactions.Interaction{
			SessionID:  "s1",
			FilePath:   "a.py",
			ErrorCodes: "E501",
			Provider:   "openai",
			Model:      "gpt-4o-mini",
			Success:    i%2 == 0,
			DurationMS: ms,
		})
	}
	log(t, s, interactions.Interaction{
		SessionID: "s1", FilePath: "a.py", ErrorCodes: "E501",
		Provider: "ollama", Model: "qwen2.5-coder", Success: true, DurationMS: 900,
	})

	stats, err := QueryModelDurations(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d models, want 2", len(stats))
	}

	ollama := stats[0]
	if ollama.Provider != "ollama" || ollama.Count != 1 || ollama.P50 != 900 {
		t.Errorf("ollama stats = %+v", ollama)
	}

	openai := stats[1]
	if openai.Model != "gpt-4o-mini" || openai.Count != 4 {
		t.Errorf("openai stats = %+v", openai)
	}
	if openai.Avg != 250 {
		t.Errorf("avg = %v, want 250", openai.Avg)
	}
	if openai.P50 != 250 {
		t.Errorf("p50 = %v, want 250 (interpolated)", openai.P50)
	}
	if openai.SuccessRate != 50.0 {
		t.Errorf("success rate = %v, want 50.0", openai.SuccessRate)
	}
}

func TestQueryAgentStats(t *testing.T) {
	s := testStore(t)
	log(t, s, interactions.Interaction{SessionID: "s1", FilePath: "a.py", AgentType: "line_length", Success: true, Confidence: 0.8})
	log(t, s, interactions.Interaction{SessionID: "s1", FilePath: "b.py", AgentType: "line_length", Success: true, Confidence: 0.6})
	log(t, s, interactions.Interaction{SessionID: "s1", FilePath: "c.py", AgentType: "imports", Success: false, Confidence: 0.4})

	stats, err := QueryAgentStats(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d agents, want 2", len(stats))
	}
	if stats[0].AgentType != "line_length" || stats[0].SuccessRate != 100.0 || stats[0].AvgConf != 0.7 {
		t.Errorf("line_length stats = %+v", stats[0])
	}
	if stats[1].AgentType != "imports" || stats[1].SuccessRate != 0.0 {
		t.Errorf("imports stats = %+v", stats[1])
	}
}

func TestQuerySessionThroughput(t *testing.T) {
	s := testStore(t)
	if err := s.StartSession("s1"); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishSession("s1", 10, 8, 2, 2*time.Minute); err != nil {
		t.Fatal(err)
	}
	// Unfinished sessions are excluded.
	if err := s.StartSession("s2"); err != nil {
		t.Fatal(err)
	}

	stats, err := QuerySessionThroughput(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d periods, want 1", len(stats))
	}
	st := stats[0]
	if st.Sessions != 1 || st.Processed != 10 || st.Completed != 8 || st.Failed != 2 {
		t.Errorf("throughput = %+v", st)
	}
	if st.FixesPerMin != 4.0 {
		t.Errorf("fixes/min = %v, want 4.0", st.FixesPerMin)
	}
}

func TestPercentileHelpers(t *testing.T) {
	vals := []float64{10, 20, 30, 40}
	if got := percentile(vals, 50); got != 25 {
		t.Errorf("p50 = %v, want 25", got)
	}
	if got := percentile(vals, 95); got != 38.5 {
		t.Errorf("p95 = %v, want 38.5", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("p50 of empty = %v", got)
	}
	if got := avg(vals); got != 25 {
		t.Errorf("avg = %v, want 25", got)
	}
	if got := pct(2, 3); got != 66.7 {
		t.Errorf("pct = %v, want 66.7", got)
	}
}
