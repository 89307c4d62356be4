package core

import "charsheet/pkg/domain"

type (
	Character          = domain.Character
	Status             = domain.Status
	RecordStore        = domain.RecordStore
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleView           = domain.RuleView
	Change             = domain.Change
	Violation          = domain.Violation
	Result             = domain.Result
	Severity           = domain.Severity
	RuleViolationError = domain.RuleViolationError
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
