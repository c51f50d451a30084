package intent

import (
	"context"
	"fmt"
	"strings"
)

// Severity How a violated rule affects the operation
type Severity string

const (
	// SeverityBlock rejects the operation.
	SeverityBlock Severity = "block"
	// SeverityWarn is reported but does not reject.
	SeverityWarn Severity = "warn"
)

// Violation One itemized rule failure
type Violation struct {
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
	Hint     string   `json:"hint,omitempty"`
}

// ValidationResult Outcome of one rule evaluation
type ValidationResult struct {
	Valid           bool        `json:"valid"`
	Violations      []Violation `json:"violations,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`

	// Degraded is set when the evaluator failed and the policy decided.
	Degraded bool `json:"degraded,omitempty"`
}

// Accepted is the result of an evaluation with nothing to report.
func Accepted() ValidationResult {
	return ValidationResult{Valid: true}
}

// NewValidationResult derives Valid from the violations: any blocking
// violation rejects.
func NewValidationResult(violations []Violation, recommendations []string) ValidationResult {
	valid := true
	for _, v := range violations {
		if v.Severity != SeverityWarn {
			valid = false
			break
		}
	}
	return ValidationResult{Valid: valid, Violations: violations, Recommendations: recommendations}
}

// Blocking returns the violations that reject the operation.
func (r ValidationResult) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity != SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// Warnings returns the non-blocking violations.
func (r ValidationResult) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// Summary renders violations and hints as text for the caller.
func (r ValidationResult) Summary() string {
	var b strings.Builder
	for _, v := range r.Blocking() {
		fmt.Fprintf(&b, "- %s\n", v.Message)
		if v.Hint != "" {
			fmt.Fprintf(&b, "  hint: %s\n", v.Hint)
		}
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "* %s\n", rec)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RuleEvaluator Black-box business rule engine. group names the rule set to
// apply, derived from the operation category.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, group string, fact OperationFact, actor Actor) (ValidationResult, error)
}

// RuleEvaluatorFunc adapts a function to RuleEvaluator.
type RuleEvaluatorFunc func(ctx context.Context, group string, fact OperationFact, actor Actor) (ValidationResult, error)

func (f RuleEvaluatorFunc) Evaluate(ctx context.Context, group string, fact OperationFact, actor Actor) (ValidationResult, error) {
	return f(ctx, group, fact, actor)
}

// ValidationPolicy What the gateway does when the evaluator fails
type ValidationPolicy string

const (
	// FailOpen treats an unavailable evaluator as "valid".
	FailOpen ValidationPolicy = "fail_open"
	// FailClosed rejects the operation when the evaluator is unavailable.
	FailClosed ValidationPolicy = "fail_closed"
)

// ParseValidationPolicy defaults to FailOpen for an empty value.
func ParseValidationPolicy(s string) (ValidationPolicy, error) {
	switch ValidationPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	}
	return "", fmt.Errorf("unknown validation policy %q", s)
}
