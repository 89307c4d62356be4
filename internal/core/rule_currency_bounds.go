package core

import (
	"context"
	"fmt"

	"charsheet/pkg/domain"
)

// NewCurrencyBoundsRule rejects negative currency counters.
func NewCurrencyBoundsRule() domain.Rule {
	return currencyBoundsRule{}
}

type currencyBoundsRule struct{}

func (currencyBoundsRule) Name() string { return "currency_bounds" }

func (r currencyBoundsRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	cur := view.Character().Currency
	res := domain.Result{}
	for _, f := range []struct {
		name   string
		amount int
	}{
		{"gold", cur.Gold},
		{"steel", cur.Steel},
		{"asteri", cur.Asteri},
	} {
		if f.amount < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s is negative: %d", f.name, f.amount),
				Target:   domain.TargetCharacter,
				Field:    "currency." + f.name,
			})
		}
	}
	return res, nil
}
