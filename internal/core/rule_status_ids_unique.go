package core

import (
	"context"
	"fmt"

	"charsheet/pkg/domain"
)

// NewStatusIDsUniqueRule rejects status sequences with repeated attribute ids.
func NewStatusIDsUniqueRule() domain.Rule {
	return statusIDsUniqueRule{}
}

type statusIDsUniqueRule struct{}

func (statusIDsUniqueRule) Name() string { return "status_ids_unique" }

func (r statusIDsUniqueRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	st := view.Status()
	res := domain.Result{}
	for _, cat := range []domain.StatusCategory{domain.StatusRequirements, domain.StatusRolls} {
		attrs, _ := st.Attributes(cat)
		for _, id := range domain.DuplicateAttributeIDs(attrs) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s attribute id %d is not unique", cat, id),
				Target:   domain.TargetStatus,
				Field:    string(cat),
			})
		}
	}
	return res, nil
}
