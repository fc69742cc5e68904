package schemas

import (
	"fmt"
	"strings"
)

// StructuredAnalysis is the root-cause verdict produced by the model. Every
// field must be a non-empty string; an instance that fails Validate must not
// be used or emitted.
type StructuredAnalysis struct {
	Summary      string `json:"summary"`
	RootCause    string `json:"root_cause"`
	FailedStep   string `json:"failed_step"`
	LogEvidence  string `json:"log_evidence"`
	SuggestedFix string `json:"suggested_fix"`
}

// Validate enforces the non-empty constraint on every field.
func (a StructuredAnalysis) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"summary", a.Summary},
		{"root_cause", a.RootCause},
		{"failed_step", a.FailedStep},
		{"log_evidence", a.LogEvidence},
		{"suggested_fix", a.SuggestedFix},
	}
	for _, f := range fields {
		if len(f.value) == 0 {
			return fmt.Errorf("%w: field %q is empty", ErrValidation, f.name)
		}
	}
	return nil
}

// GeneratedQuery is the single structured field the query-generation call is
// constrained to emit.
type GeneratedQuery struct {
	JQL string `json:"jql"`
}

// Empty reports whether the generated query carries nothing usable.
func (q GeneratedQuery) Empty() bool {
	return strings.TrimSpace(q.JQL) == ""
}

// CorrelatedIssue is one tracker hit, shaped for the terminal artifact.
type CorrelatedIssue struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Usage is the token accounting reported by the model backend.
type Usage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Zero reports whether the backend reported no accounting at all.
func (u Usage) Zero() bool {
	return u.Input == 0 && u.Output == 0
}

// Add accumulates the accounting of a second call into u.
func (u *Usage) Add(other Usage) {
	u.Input += other.Input
	u.Output += other.Output
}
