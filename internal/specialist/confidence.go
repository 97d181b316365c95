package specialist

import "github.com/lucasnoah/codeflow/internal/detect"

// ConfidenceScore estimates how likely a specialist's fix for the batch is to
// be correct. Weighted scalar additions over a base score:
//
//	base 0.4
//	+ 0.3 × coverage of the batch by supported codes
//	+ 0.2 × historical success rate
//	+ the chosen strategy's confidence boost
//	- 0.05 per issue beyond the third (large batches fix less reliably)
//
// The result is always clamped to [0.0, 1.0].
func (s *Specialist) ConfidenceScore(issues []detect.LintingIssue, strategy FixStrategy) float64 {
	score := 0.4

	if len(issues) > 0 {
		matched := 0
		for _, i := range issues {
			if s.Supports(i.ErrorCode) {
				matched++
			}
		}
		score += 0.3 * float64(matched) / float64(len(issues))
	}

	score += 0.2 * s.SuccessRate()
	score += strategy.ConfidenceBoost

	if extra := len(issues) - 3; extra > 0 {
		score -= 0.05 * float64(extra)
	}

	return clamp01(score)
}

// PrimaryStrategy returns the specialist's first (preferred) strategy, or a
// zero-boost fallback when none are declared.
func (s *Specialist) PrimaryStrategy() FixStrategy {
	if len(s.Strategies) > 0 {
		return s.Strategies[0]
	}
	return FixStrategy{Name: "direct_fix"}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0.0
	}
	if v > 1 {
		return 1.0
	}
	return v
}
