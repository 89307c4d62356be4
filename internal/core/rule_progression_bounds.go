package core

import (
	"context"
	"fmt"

	"charsheet/pkg/domain"
)

// NewProgressionBoundsRule rejects a level below 1 or negative experience.
func NewProgressionBoundsRule() domain.Rule {
	return progressionBoundsRule{}
}

type progressionBoundsRule struct{}

func (progressionBoundsRule) Name() string { return "progression_bounds" }

func (r progressionBoundsRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	c := view.Character()
	res := domain.Result{}
	if c.Level < 1 {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("level %d is below 1", c.Level),
			Target:   domain.TargetCharacter,
			Field:    "level",
		})
	}
	if c.Experience < 0 {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("experience %d is negative", c.Experience),
			Target:   domain.TargetCharacter,
			Field:    "experience",
		})
	}
	return res, nil
}
