package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUpdateSpellUnknownID(t *testing.T) {
	base := NewCharacterTemplate()
	name := "renamed"
	out, ok, err := UpdateSpell(base, "no-such-id", SpellPatch{Name: &name})
	if err != nil || ok {
		t.Fatalf("expected silent no-op, got ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(base.Spells, out.Spells); diff != "" {
		t.Fatalf("spells changed:\n%s", diff)
	}
}

func TestUpdateSpellMergesFields(t *testing.T) {
	base := NewCharacterTemplate()
	heal := SpellHeal
	amount := 8
	out, ok, err := UpdateSpell(base, "spell-drain-life", SpellPatch{Category: &heal, Healing: &amount})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got := out.Spells[0]
	if got.ID != "spell-drain-life" || got.Name != "Drain Life" || got.Category != SpellHeal {
		t.Fatalf("unexpected merge %+v", got)
	}
	if got.Healing == nil || *got.Healing != 8 {
		t.Fatalf("healing not set")
	}
	if got.Damage == nil || *got.Damage != 5 {
		t.Fatalf("damage should be kept")
	}
	if rel := got.RelevantFields(); !rel.Healing || rel.Damage {
		t.Fatalf("unexpected relevant fields %+v", rel)
	}
}

func TestMergeSpellJSON(t *testing.T) {
	base := NewCharacterTemplate()
	out, ok, err := MergeSpellJSON(base, "spell-drain-life", []byte(`{"id":"hijack","damage":null,"cost":{"type":"energy","value":3}}`))
	if err != nil || !ok {
		t.Fatalf("merge: ok=%v err=%v", ok, err)
	}
	got := out.Spells[0]
	if got.ID != "spell-drain-life" {
		t.Fatalf("id changed to %q", got.ID)
	}
	if got.Damage != nil {
		t.Fatalf("null should clear damage")
	}
	if got.Cost == nil || *got.Cost != (SpellCost{Type: CostEnergy, Value: 3}) {
		t.Fatalf("unexpected cost %+v", got.Cost)
	}
	if base.Spells[0].Damage == nil {
		t.Fatalf("input mutated")
	}
}

func TestMergeSpellJSONRejectsBadInput(t *testing.T) {
	base := NewCharacterTemplate()
	patches := []string{
		`{not json`,
		`{"category":"lullaby"}`,
		`{"cost":{"type":"gold","value":1}}`,
		`{"name":null,"category":null}`,
		`{"category":""}`,
		`{"name":"  "}`,
	}
	for _, patch := range patches {
		out, _, err := MergeSpellJSON(base, "spell-drain-life", []byte(patch))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("patch %s: expected validation error, got %v", patch, err)
		}
		if diff := cmp.Diff(base.Spells, out.Spells); diff != "" {
			t.Fatalf("patch %s changed spells:\n%s", patch, diff)
		}
	}
	if _, ok, err := MergeSpellJSON(base, "missing", []byte(`{}`)); ok || err != nil {
		t.Fatalf("unknown id should be a no-op")
	}
}

func TestAddSpellRejectsInvalidSpells(t *testing.T) {
	base := NewCharacterTemplate()
	if _, err := AddSpell(base, Spell{ID: "spell-drain-life", Name: "dup", Category: SpellAttack}); err == nil {
		t.Fatalf("expected duplicate id rejection")
	}
	if _, err := AddSpell(base, Spell{Name: "anon"}); err == nil {
		t.Fatalf("expected empty id rejection")
	}
	for _, bad := range []Spell{
		{ID: "spell-x", Name: "Bone Spear"},
		{ID: "spell-x", Name: "", Category: SpellAttack},
	} {
		out, err := AddSpell(base, bad)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("spell %+v: expected validation error, got %v", bad, err)
		}
		if len(out.Spells) != len(base.Spells) {
			t.Fatalf("spell %+v was appended", bad)
		}
	}
	spell := NewSpell("  Bone Spear ")
	if !strings.HasPrefix(spell.ID, "spell-") || spell.Name != "Bone Spear" || spell.Category != SpellAttack {
		t.Fatalf("unexpected new spell %+v", spell)
	}
	out, err := AddSpell(base, spell)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(out.Spells) != len(base.Spells)+1 || out.Spells[len(out.Spells)-1].ID != spell.ID {
		t.Fatalf("spell not appended")
	}
}

func TestRemoveSpell(t *testing.T) {
	base := NewCharacterTemplate()
	out, ok := RemoveSpell(base, "spell-drain-life")
	if !ok || len(out.Spells) != 0 {
		t.Fatalf("expected removal, got ok=%v spells=%v", ok, out.Spells)
	}
	if len(base.Spells) != 1 {
		t.Fatalf("input mutated")
	}
	if same, ok := RemoveSpell(base, "ghost"); ok || len(same.Spells) != 1 {
		t.Fatalf("unknown id should be a no-op")
	}
}
