// Package analytics computes aggregate metrics over the interaction
// database: which error codes get fixed reliably, how each model performs,
// and how sessions move through the queue.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// CodeStats holds fix outcomes for one lint error code.
type CodeStats struct {
	Code        string  `json:"code"`
	Attempts    int     `json:"attempts"`
	Successes   int     `json:"successes"`
	SuccessRate float64 `json:"success_rate_pct"`
	AvgConf     float64 `json:"avg_confidence"`
}

// QueryCodeStats returns success rates per error code, highest attempt count
// first. A batch interaction covering several codes counts once per code.
func QueryCodeStats(database DB, since string) ([]CodeStats, error) {
	query := `SELECT error_codes, success, confidence FROM ai_interactions WHERE error_codes != ''`
	args := []interface{}{}
	if since != "" {
		query += ` AND created_at >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query code stats: %w", err)
	}
	defer rows.Close()

	type tally struct {
		attempts, successes int
		confSum             float64
	}
	byCode := make(map[string]*tally)

	for rows.Next() {
		var codes string
		var success bool
		var conf float64
		if err := rows.Scan(&codes, &success, &conf); err != nil {
			return nil, fmt.Errorf("scan code stats: %w", err)
		}
		for _, code := range splitCodes(codes) {
			t, ok := byCode[code]
			if !ok {
				t = &tally{}
				byCode[code] = t
			}
			t.attempts++
			if success {
				t.successes++
			}
			t.confSum += conf
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []CodeStats
	for code, t := range byCode {
		results = append(results, CodeStats{
			Code:        code,
			Attempts:    t.attempts,
			Successes:   t.successes,
			SuccessRate: pct(t.successes, t.attempts),
			AvgConf:     math.Round(t.confSum/float64(t.attempts)*100) / 100,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Attempts != results[j].Attempts {
			return results[i].Attempts > results[j].Attempts
		}
		return results[i].Code < results[j].Code
	})
	return results, nil
}

func splitCodes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if code := strings.TrimSpace(part); code != "" {
			out = append(out, code)
		}
	}
	return out
}

// ModelDuration holds completion latency stats for one (provider, model).
type ModelDuration struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Count       int     `json:"count"`
	SuccessRate float64 `json:"success_rate_pct"`
	Avg         float64 `json:"avg_ms"`
	P50         float64 `json:"p50_ms"`
	P95         float64 `json:"p95_ms"`
}

// QueryModelDurations returns per-model latency percentiles and success
// rates, sorted by provider then model.
func QueryModelDurations(database DB, since string) ([]ModelDuration, error) {
	query := `SELECT provider, model, duration_ms, success FROM ai_interactions WHERE model != ''`
	args := []interface{}{}
	if since != "" {
		query += ` AND created_at >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query model durations: %w", err)
	}
	defer rows.Close()

	type sample struct {
		durations []float64
		successes int
	}
	byModel := make(map[string]*sample)

	for rows.Next() {
		var provider, model string
		var durationMS int64
		var success bool
		if err := rows.Scan(&provider, &model, &durationMS, &success); err != nil {
			return nil, fmt.Errorf("scan model duration: %w", err)
		}
		key := provider + "\x00" + model
		s, ok := byModel[key]
		if !ok {
			s = &sample{}
			byModel[key] = s
		}
		s.durations = append(s.durations, float64(durationMS))
		if success {
			s.successes++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []ModelDuration
	for key, s := range byModel {
		provider, model, _ := strings.Cut(key, "\x00")
		sort.Float64s(s.durations)
		results = append(results, ModelDuration{
			Provider:    provider,
			Model:       model,
			Count:       len(s.durations),
			SuccessRate: pct(s.successes, len(s.durations)),
			Avg:         avg(s.durations),
			P50:         percentile(s.durations, 50),
			P95:         percentile(s.durations, 95),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Provider != results[j].Provider {
			return results[i].Provider < results[j].Provider
		}
		return results[i].Model < results[j].Model
	})
	return results, nil
}

// AgentStats holds outcomes per specialist type.
type AgentStats struct {
	AgentType   string  `json:"agent_type"`
	Attempts    int     `json:"attempts"`
	SuccessRate float64 `json:"success_rate_pct"`
	AvgConf     float64 `json:"avg_confidence"`
}

// QueryAgentStats returns per-specialist success rates.
func QueryAgentStats(database DB, since string) ([]AgentStats, error) {
	query := `
		SELECT agent_type,
			COUNT(*) as attempts,
			SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) as successes,
			AVG(confidence) as avg_conf
		FROM ai_interactions`
	args := []interface{}{}
	if since != "" {
		query += ` WHERE created_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY agent_type ORDER BY attempts DESC, agent_type`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agent stats: %w", err)
	}
	defer rows.Close()

	var results []AgentStats
	for rows.Next() {
		var a AgentStats
		var successes int
		var avgConf sql.NullFloat64
		if err := rows.Scan(&a.AgentType, &a.Attempts, &successes, &avgConf); err != nil {
			return nil, fmt.Errorf("scan agent stats: %w", err)
		}
		a.SuccessRate = pct(successes, a.Attempts)
		if avgConf.Valid {
			a.AvgConf = math.Round(avgConf.Float64*100) / 100
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// SessionThroughput holds per-day session aggregates.
type SessionThroughput struct {
	Period       string  `json:"period"`
	Sessions     int     `json:"sessions"`
	Processed    int     `json:"processed"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	FixesPerMin  float64 `json:"fixes_per_minute"`
}

// QuerySessionThroughput returns daily throughput over finished sessions,
// newest first.
func QuerySessionThroughput(database DB, since string) ([]SessionThroughput, error) {
	query := `
		SELECT
			strftime('%Y-%m-%d', started_at) as period,
			COUNT(*) as sessions,
			SUM(processed) as processed,
			SUM(completed) as completed,
			SUM(failed) as failed,
			SUM(duration_ms) as total_ms
		FROM performance_sessions
		WHERE finished_at IS NOT NULL`
	args := []interface{}{}
	if since != "" {
		query += ` AND started_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY period ORDER BY period DESC LIMIT 30`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session throughput: %w", err)
	}
	defer rows.Close()

	var results []SessionThroughput
	for rows.Next() {
		var st SessionThroughput
		var totalMS int64
		if err := rows.Scan(&st.Period, &st.Sessions, &st.Processed, &st.Completed, &st.Failed, &totalMS); err != nil {
			return nil, fmt.Errorf("scan session throughput: %w", err)
		}
		if totalMS > 0 {
			minutes := float64(totalMS) / 60000.0
			st.FixesPerMin = math.Round(float64(st.Completed)/minutes*10) / 10
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
