package specialist

import (
	"fmt"
	"strings"

	"github.com/lucasnoah/codeflow/internal/detect"
	"github.com/lucasnoah/codeflow/internal/prompt"
)

// AgentType identifies a specialist category. The set is closed: adding a
// specialist means adding a constant here and a registration in NewManager,
// which the exhaustive switches below check at compile time.
type AgentType int

const (
	AgentGeneral AgentType = iota
	AgentLineLength
	AgentImports
	AgentStyle
	AgentAnnotations
	AgentDocstrings
	AgentComplexity
)

// String returns the stable name used in logs, the queue, and the CLI.
func (t AgentType) String() string {
	switch t {
	case AgentGeneral:
		return "general"
	case AgentLineLength:
		return "line_length"
	case AgentImports:
		return "imports"
	case AgentStyle:
		return "style"
	case AgentAnnotations:
		return "annotations"
	case AgentDocstrings:
		return "docstrings"
	case AgentComplexity:
		return "complexity"
	}
	return fmt.Sprintf("agent_type(%d)", int(t))
}

// ParseAgentType resolves a stable name back to its AgentType.
func ParseAgentType(s string) (AgentType, bool) {
	for _, t := range []AgentType{
		AgentGeneral, AgentLineLength, AgentImports, AgentStyle,
		AgentAnnotations, AgentDocstrings, AgentComplexity,
	} {
		if t.String() == s {
			return t, true
		}
	}
	return AgentGeneral, false
}

// Expertise is a specialist's declared skill level.
type Expertise int

const (
	ExpertiseBasic Expertise = iota
	ExpertiseIntermediate
	ExpertiseAdvanced
	ExpertiseExpert
)

// String returns the expertise level name.
func (e Expertise) String() string {
	switch e {
	case ExpertiseBasic:
		return "basic"
	case ExpertiseIntermediate:
		return "intermediate"
	case ExpertiseAdvanced:
		return "advanced"
	case ExpertiseExpert:
		return "expert"
	}
	return fmt.Sprintf("expertise(%d)", int(e))
}

// Multiplier returns the fixed scoring weight for this expertise level.
func (e Expertise) Multiplier() float64 {
	switch e {
	case ExpertiseExpert:
		return 1.2
	case ExpertiseAdvanced:
		return 1.1
	case ExpertiseIntermediate:
		return 1.0
	case ExpertiseBasic:
		return 0.9
	}
	return 1.0
}

// FixStrategy is one approach a specialist can take, with a confidence weight.
type FixStrategy struct {
	Name            string
	ConfidenceBoost float64
}

// Specialist is a rule-based classifier and prompt generator for one category
// of lint issue. The performance counters are mutated through Manager only.
type Specialist struct {
	Type           AgentType
	SupportedCodes []string // error-code prefixes; "*" matches everything
	Expertise      Expertise
	Template       string // prompt template filename
	Strategies     []FixStrategy

	attempts      int
	successes     int
	avgConfidence float64
}

// Supports reports whether the specialist handles the given error code.
func (s *Specialist) Supports(code string) bool {
	for _, p := range s.SupportedCodes {
		if p == "*" || strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// SuccessRate returns successes/attempts, or 0.0 for an untried specialist.
// The zero cold-start rate means selection among fresh specialists falls back
// to registration order.
func (s *Specialist) SuccessRate() float64 {
	if s.attempts == 0 {
		return 0.0
	}
	return float64(s.successes) / float64(s.attempts)
}

// BuildVars assembles the template variables for a fix prompt covering the
// given issues in one file.
func BuildVars(issues []detect.LintingIssue, fileContent string, priorFailure string) prompt.Vars {
	filePath := ""
	var issueLines, flagged []string
	for _, i := range issues {
		if filePath == "" {
			filePath = i.FilePath
		}
		issueLines = append(issueLines, fmt.Sprintf("- %s at %d:%d: %s", i.ErrorCode, i.LineNumber, i.ColumnNumber, i.Message))
		if i.LineContent != "" {
			flagged = append(flagged, fmt.Sprintf("%d: %s", i.LineNumber, i.LineContent))
		}
	}
	return prompt.Vars{
		"file_path":     filePath,
		"issues":        strings.Join(issueLines, "\n"),
		"line_content":  strings.Join(flagged, "\n"),
		"file_content":  fileContent,
		"prior_failure": priorFailure,
	}
}
