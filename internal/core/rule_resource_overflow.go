package core

import (
	"context"
	"fmt"

	"charsheet/pkg/domain"
)

// NewResourceOverflowRule logs resource pairs whose current value exceeds max.
func NewResourceOverflowRule() domain.Rule {
	return resourceOverflowRule{}
}

type resourceOverflowRule struct{}

func (resourceOverflowRule) Name() string { return "resource_overflow" }

func (r resourceOverflowRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	resources := view.Character().Resources
	res := domain.Result{}
	for _, name := range domain.ResourceNames {
		pair, _ := resources.Get(name)
		if pair.Current > pair.Max {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityLog,
				Message:  fmt.Sprintf("%s above max: %s", name, pair),
				Target:   domain.TargetCharacter,
				Field:    "resources." + string(name),
			})
		}
	}
	return res, nil
}
