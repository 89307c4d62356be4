package core

import (
	"context"
	"fmt"

	"charsheet/pkg/domain"
)

// NewSlotKeysUniqueRule rejects equipment whose keys collide after normalization.
func NewSlotKeysUniqueRule() domain.Rule {
	return slotKeysUniqueRule{}
}

type slotKeysUniqueRule struct{}

func (slotKeysUniqueRule) Name() string { return "slot_keys_unique" }

func (r slotKeysUniqueRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, key := range domain.DuplicateSlotKeys(view.Character().Equipment) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("equipment slot %q defined more than once", key),
			Target:   domain.TargetCharacter,
			Field:    "equipment",
		})
	}
	return res, nil
}
