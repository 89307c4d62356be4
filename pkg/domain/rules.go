package domain

import (
	"context"
	"fmt"
	"strings"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock rejects the candidate aggregate.
	SeverityBlock Severity = "block"
	// SeverityWarn surfaces a notification but allows the commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Target names the aggregate a change applies to.
type Target string

// Aggregates that changes and violations can refer to.
const (
	TargetCharacter Target = "character"
	TargetStatus    Target = "status"
)

// Change describes a candidate mutation evaluated by the rules engine.
type Change struct {
	Target Target
	Op     string
	Before any
	After  any
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Target   Target
	Field    string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// WithSeverity returns the violations of the given severity.
func (r Result) WithSeverity(sev Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	blocking := e.Result.WithSeverity(SeverityBlock)
	if len(blocking) == 0 {
		return "edit blocked by rules"
	}
	msgs := make([]string, 0, len(blocking))
	for _, v := range blocking {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Rule, v.Message))
	}
	return "edit blocked by rules: " + strings.Join(msgs, "; ")
}

// RuleView provides read-only access to the candidate state for rule evaluation.
type RuleView interface {
	Character() Character
	Status() Status
	BackpackCapacity() int
}

// Rule defines an evaluation executed before a candidate aggregate is committed.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}
