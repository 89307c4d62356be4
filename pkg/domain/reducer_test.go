package domain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReducersLeaveInputUntouched(t *testing.T) {
	base := NewCharacterTemplate()
	base.ID = "c1"
	snapshot := base.Clone()

	steps := []struct {
		name string
		run  func(Character) (Character, error)
	}{
		{"scalar", func(c Character) (Character, error) { return UpdateScalar(c, FieldName, "Mira") }},
		{"currency", func(c Character) (Character, error) { return UpdateCurrency(c, CurrencyGold, 5) }},
		{"resource", func(c Character) (Character, error) { return UpdateResource(c, ResourceHP, 3, 10) }},
		{"list", func(c Character) (Character, error) { return UpdateList(c, ListBuffs, []string{"Haste"}) }},
		{"slot", func(c Character) (Character, error) {
			return UpdateEquipmentSlot(c, "weapon", &Item{ID: "i", Name: "Scythe"})
		}},
		{"slot-clear", func(c Character) (Character, error) { return UpdateEquipmentSlot(c, "armor", nil) }},
		{"backpack", func(c Character) (Character, error) { return UpdateBackpack(c, nil), nil }},
		{"spell-add", func(c Character) (Character, error) { return AddSpell(c, NewSpell("Bone Spear")) }},
		{"spell-update", func(c Character) (Character, error) {
			name := "Life Drain"
			out, _, err := UpdateSpell(c, "spell-drain-life", SpellPatch{Name: &name})
			return out, err
		}},
		{"spell-remove", func(c Character) (Character, error) {
			out, _ := RemoveSpell(c, "spell-drain-life")
			return out, nil
		}},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			out, err := step.run(base)
			if err != nil {
				t.Fatalf("%s: %v", step.name, err)
			}
			if diff := cmp.Diff(snapshot, base); diff != "" {
				t.Fatalf("input mutated (-want +got):\n%s", diff)
			}
			if out.ID != base.ID {
				t.Fatalf("id changed to %q", out.ID)
			}
		})
	}
}

func TestUpdateResourceIdempotent(t *testing.T) {
	base := NewCharacterTemplate()
	once, err := UpdateResource(base, ResourceMP, 7, 20)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	twice, err := UpdateResource(once, ResourceMP, 7, 20)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second application changed the aggregate:\n%s", diff)
	}
}

func TestUpdateResourceKeepsOverflow(t *testing.T) {
	out, err := UpdateResource(NewCharacterTemplate(), ResourceHP, 15, 10)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.Resources.HP != (ResourcePair{Current: 15, Max: 10}) {
		t.Fatalf("unexpected hp %v", out.Resources.HP)
	}
	if pct := out.Resources.HP.Percent(); pct != 100 {
		t.Fatalf("expected clamped 100, got %v", pct)
	}
}

func TestUpdateResourceUnknownName(t *testing.T) {
	base := NewCharacterTemplate()
	out, err := UpdateResource(base, ResourceName("stamina"), 1, 1)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if diff := cmp.Diff(base, out); diff != "" {
		t.Fatalf("aggregate changed on rejection:\n%s", diff)
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		pair ResourcePair
		want float64
	}{
		{ResourcePair{Current: 5, Max: 10}, 50},
		{ResourcePair{Current: 15, Max: 10}, 100},
		{ResourcePair{Current: -3, Max: 10}, 0},
		{ResourcePair{Current: 0, Max: 0}, 0},
		{ResourcePair{Current: 1, Max: 0}, 100},
		{ResourcePair{Current: 1, Max: -4}, 100},
	}
	for _, c := range cases {
		if got := c.pair.Percent(); got != c.want {
			t.Fatalf("Percent(%v)=%v want %v", c.pair, got, c.want)
		}
	}
}

func TestUpdateScalarBounds(t *testing.T) {
	base := NewCharacterTemplate()
	cases := []struct {
		field ScalarField
		value string
		ok    bool
	}{
		{FieldLevel, "3", true},
		{FieldLevel, "0", false},
		{FieldLevel, "three", false},
		{FieldExperience, "0", true},
		{FieldExperience, "-1", false},
		{FieldBuild, "Slim", true},
		{ScalarField("mood"), "happy", false},
	}
	for _, c := range cases {
		out, err := UpdateScalar(base, c.field, c.value)
		if c.ok && err != nil {
			t.Fatalf("UpdateScalar(%s, %q): %v", c.field, c.value, err)
		}
		if !c.ok {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("UpdateScalar(%s, %q): expected validation error, got %v", c.field, c.value, err)
			}
			if diff := cmp.Diff(base, out); diff != "" {
				t.Fatalf("rejected update changed aggregate:\n%s", diff)
			}
		}
	}
	out, _ := UpdateScalar(base, FieldLevel, " 4 ")
	if out.Level != 4 {
		t.Fatalf("expected level 4, got %d", out.Level)
	}
}

func TestUpdateCurrency(t *testing.T) {
	base := NewCharacterTemplate()
	out, err := UpdateCurrency(base, CurrencyAsteri, 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.Currency != (Currency{Gold: 100, Asteri: 7}) {
		t.Fatalf("unexpected currency %+v", out.Currency)
	}
	if _, err := UpdateCurrency(base, CurrencyGold, -1); err == nil {
		t.Fatalf("expected negative gold to be rejected")
	}
	if _, err := UpdateCurrency(base, CurrencyField("copper"), 1); err == nil {
		t.Fatalf("expected unknown currency to be rejected")
	}
}

func TestEditHeaderAppliesTogether(t *testing.T) {
	base := NewCharacterTemplate()
	name, level, xp := "Vex", 3, 250
	hp := ResourcePair{Current: 14, Max: 18}
	out, err := EditHeader(base, HeaderPatch{Name: &name, Level: &level, Experience: &xp, HP: &hp})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if out.Name != "Vex" || out.Level != 3 || out.Experience != 250 || out.Resources.HP != hp {
		t.Fatalf("header not applied: %+v", out)
	}
	if out.Class != base.Class || out.Resources.MP != base.Resources.MP {
		t.Fatalf("untouched fields changed")
	}

	bad := 0
	rejected, err := EditHeader(base, HeaderPatch{Name: &name, Level: &bad})
	if err == nil {
		t.Fatalf("expected level 0 to be rejected")
	}
	if rejected.Name != base.Name {
		t.Fatalf("partial header applied on rejection")
	}
}

func TestUpdateListCopiesSequence(t *testing.T) {
	seq := []string{"Haste", "Shield"}
	out, err := UpdateList(NewCharacterTemplate(), ListBuffs, seq)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	seq[0] = "mutated"
	if out.Buffs[0] != "Haste" {
		t.Fatalf("list aliases caller slice")
	}
	if _, err := UpdateList(out, ListField("friends"), nil); err == nil {
		t.Fatalf("expected unknown list to be rejected")
	}
}

func TestUpdateBackpackAcceptsOverCapacity(t *testing.T) {
	items := make([]Item, 13)
	for i := range items {
		items[i] = Item{ID: string(rune('a' + i)), Name: "Rock"}
	}
	out := UpdateBackpack(NewCharacterTemplate(), items)
	if len(out.Backpack) != 13 {
		t.Fatalf("expected 13 items, got %d", len(out.Backpack))
	}
	if got := Occupancy(out.Backpack, DefaultBackpackCapacity); got != "13/12" {
		t.Fatalf("unexpected occupancy %q", got)
	}
	if got := Occupancy(nil, DefaultBackpackCapacity); got != "0/12" {
		t.Fatalf("unexpected empty occupancy %q", got)
	}
}

func TestNormalizeFillsNilSequences(t *testing.T) {
	c := Character{Name: "bare"}.Normalize()
	if c.Spells == nil || c.Backpack == nil || c.Equipment == nil || c.Achievements == nil {
		t.Fatalf("expected empty sequences, got %+v", c)
	}
}
