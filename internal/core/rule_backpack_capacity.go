package core

import (
	"context"
	"fmt"

	"charsheet/pkg/domain"
)

// NewBackpackCapacityRule warns when the backpack holds more items than the
// session's capacity. Capacity is a presentation setting so the edit is kept.
func NewBackpackCapacityRule() domain.Rule {
	return backpackCapacityRule{}
}

type backpackCapacityRule struct{}

func (backpackCapacityRule) Name() string { return "backpack_capacity" }

func (r backpackCapacityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	items := view.Character().Backpack
	capacity := view.BackpackCapacity()
	res := domain.Result{}
	if len(items) > capacity {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("backpack over capacity: %s", domain.Occupancy(items, capacity)),
			Target:   domain.TargetCharacter,
			Field:    "backpack",
		})
	}
	return res, nil
}
