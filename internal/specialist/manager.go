package specialist

import (
	"sync"

	"github.com/lucasnoah/codeflow/internal/detect"
)

// Manager owns the specialist registry and their in-memory performance
// counters. All methods are safe for concurrent use; counters reset when the
// process restarts.
type Manager struct {
	mu          sync.Mutex
	specialists []*Specialist // registration order breaks scoring ties
	byType      map[AgentType]*Specialist
	general     *Specialist
}

// NewManager creates a Manager with the default registry. Registration order
// matters: cold-start scoring ties resolve to the earliest registered match.
func NewManager() *Manager {
	m := &Manager{byType: make(map[AgentType]*Specialist)}

	m.register(&Specialist{
		Type:           AgentLineLength,
		SupportedCodes: []string{"E501", "W505"},
		Expertise:      ExpertiseExpert,
		Template:       "fix-line-length.md",
		Strategies: []FixStrategy{
			{Name: "wrap_parenthesized", ConfidenceBoost: 0.15},
			{Name: "extract_variable", ConfidenceBoost: 0.10},
		},
	})
	m.register(&Specialist{
		Type:           AgentImports,
		SupportedCodes: []string{"F401", "F811", "E402", "I0", "TID"},
		Expertise:      ExpertiseAdvanced,
		Template:       "fix-imports.md",
		Strategies: []FixStrategy{
			{Name: "remove_unused", ConfidenceBoost: 0.20},
			{Name: "reorder_blocks", ConfidenceBoost: 0.10},
		},
	})
	m.register(&Specialist{
		Type:           AgentStyle,
		SupportedCodes: []string{"E1", "E2", "E3", "E7", "W1", "W2", "W3", "COM", "Q0"},
		Expertise:      ExpertiseIntermediate,
		Template:       "fix-style.md",
		Strategies: []FixStrategy{
			{Name: "pep8_rewrite", ConfidenceBoost: 0.10},
		},
	})
	m.register(&Specialist{
		Type:           AgentAnnotations,
		SupportedCodes: []string{"ANN", "TCH"},
		Expertise:      ExpertiseAdvanced,
		Template:       "fix-annotations.md",
		Strategies: []FixStrategy{
			{Name: "annotate_signatures", ConfidenceBoost: 0.10},
		},
	})
	m.register(&Specialist{
		Type:           AgentDocstrings,
		SupportedCodes: []string{"D1", "D2", "D4"},
		Expertise:      ExpertiseIntermediate,
		Template:       "fix-docstrings.md",
		Strategies: []FixStrategy{
			{Name: "add_docstrings", ConfidenceBoost: 0.10},
		},
	})
	m.register(&Specialist{
		Type:           AgentComplexity,
		SupportedCodes: []string{"C901", "PLR091"},
		Expertise:      ExpertiseExpert,
		Template:       "fix-complexity.md",
		Strategies: []FixStrategy{
			{Name: "extract_helper", ConfidenceBoost: 0.05},
		},
	})
	general := &Specialist{
		Type:           AgentGeneral,
		SupportedCodes: []string{"*"},
		Expertise:      ExpertiseBasic,
		Template:       "fix-general.md",
		Strategies: []FixStrategy{
			{Name: "direct_fix", ConfidenceBoost: 0.05},
		},
	}
	m.register(general)
	m.general = general

	return m
}

func (m *Manager) register(s *Specialist) {
	m.specialists = append(m.specialists, s)
	m.byType[s.Type] = s
}

// ForIssues scores every registered specialist against the batch and returns
// the argmax of coverage_ratio × success_rate × expertise_multiplier.
// Ties keep the earliest registered specialist. Empty input returns the
// general fallback. Deterministic for a fixed registry state.
func (m *Manager) ForIssues(issues []detect.LintingIssue) *Specialist {
	if len(issues) == 0 {
		return m.general
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	best := m.specialists[0]
	bestScore := m.score(best, issues)
	for _, s := range m.specialists[1:] {
		if score := m.score(s, issues); score > bestScore {
			best = s
			bestScore = score
		}
	}
	return best
}

// score must be called with m.mu held.
func (m *Manager) score(s *Specialist, issues []detect.LintingIssue) float64 {
	matched := 0
	for _, i := range issues {
		if s.Supports(i.ErrorCode) {
			matched++
		}
	}
	coverage := float64(matched) / float64(len(issues))
	return coverage * s.SuccessRate() * s.Expertise.Multiplier()
}

// ByType returns the specialist for the given type, falling back to the
// general specialist for unknown types.
func (m *Manager) ByType(t AgentType) *Specialist {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byType[t]; ok {
		return s
	}
	return m.general
}

// RecordResult updates a specialist's running counters after a fix attempt.
// The average confidence uses an incremental mean so each update is O(1).
func (m *Manager) RecordResult(t AgentType, success bool, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byType[t]
	if !ok {
		s = m.general
	}
	s.attempts++
	if success {
		s.successes++
	}
	n := float64(s.attempts)
	s.avgConfidence = (s.avgConfidence*(n-1) + confidence) / n
}

// Performance is a read-only snapshot of one specialist's counters.
type Performance struct {
	Type          AgentType `json:"type"`
	Expertise     string    `json:"expertise"`
	Attempts      int       `json:"attempts"`
	Successes     int       `json:"successes"`
	SuccessRate   float64   `json:"success_rate"`
	AvgConfidence float64   `json:"avg_confidence"`
}

// Snapshot returns performance counters for all specialists in registration
// order.
func (m *Manager) Snapshot() []Performance {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Performance, 0, len(m.specialists))
	for _, s := range m.specialists {
		out = append(out, Performance{
			Type:          s.Type,
			Expertise:     s.Expertise.String(),
			Attempts:      s.attempts,
			Successes:     s.successes,
			SuccessRate:   s.SuccessRate(),
			AvgConfidence: s.avgConfidence,
		})
	}
	return out
}
