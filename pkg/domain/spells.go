package domain

import (
	"encoding/json"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"
)

// SpellCategory classifies a spell.
type SpellCategory string

// Spell categories.
const (
	SpellAttack  SpellCategory = "attack"
	SpellDefense SpellCategory = "defense"
	SpellHeal    SpellCategory = "heal"
	SpellPassive SpellCategory = "passive"
)

// Valid reports whether c is a known category.
func (c SpellCategory) Valid() bool {
	switch c {
	case SpellAttack, SpellDefense, SpellHeal, SpellPassive:
		return true
	}
	return false
}

// CostType is the resource a spell consumes.
type CostType string

// Cost types.
const (
	CostMana   CostType = "mana"
	CostEnergy CostType = "energy"
)

// SpellCost is the resource cost of casting a spell.
type SpellCost struct {
	Type  CostType `json:"type"`
	Value int      `json:"value"`
}

// Spell is a castable entry of the spell book. Optional numerics are pointers
// so an absent value differs from zero.
type Spell struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Category    SpellCategory `json:"category"`
	Damage      *int          `json:"damage,omitempty"`
	Healing     *int          `json:"healing,omitempty"`
	Cost        *SpellCost    `json:"cost,omitempty"`
}

// Clone returns a deep copy of the spell.
func (s Spell) Clone() Spell {
	cp := s
	if s.Damage != nil {
		v := *s.Damage
		cp.Damage = &v
	}
	if s.Healing != nil {
		v := *s.Healing
		cp.Healing = &v
	}
	if s.Cost != nil {
		v := *s.Cost
		cp.Cost = &v
	}
	return cp
}

// SpellFields lists which optional numerics are meaningful for a spell.
type SpellFields struct {
	Damage  bool
	Healing bool
}

// RelevantFields reports the optional numerics shown for the spell's
// category: damage for attack spells and healing for heal spells.
func (s Spell) RelevantFields() SpellFields {
	return SpellFields{
		Damage:  s.Category == SpellAttack,
		Healing: s.Category == SpellHeal,
	}
}

// NewSpell builds an attack spell with a freshly generated id.
func NewSpell(name string) Spell {
	return Spell{
		ID:       "spell-" + uuid.NewString(),
		Name:     strings.TrimSpace(name),
		Category: SpellAttack,
		Cost:     &SpellCost{Type: CostMana, Value: 0},
	}
}

// SpellPatch is a partial spell update. Nil fields are left untouched.
type SpellPatch struct {
	Name        *string
	Description *string
	Category    *SpellCategory
	Damage      *int
	Healing     *int
	Cost        *SpellCost
}

// AddSpell appends a spell. Empty or duplicate ids are rejected.
func AddSpell(c Character, spell Spell) (Character, error) {
	if err := validateSpell(spell); err != nil {
		return c, err
	}
	if spellIndex(c.Spells, spell.ID) >= 0 {
		return c, invalid("spell.id", "duplicate id %q", spell.ID)
	}
	out := c.Clone()
	out.Spells = append(out.Spells, spell.Clone())
	return out, nil
}

// UpdateSpell merges patch onto the spell identified by id. An unknown id
// leaves the character unchanged and reports false. The id is never changed.
func UpdateSpell(c Character, id string, patch SpellPatch) (Character, bool, error) {
	idx := spellIndex(c.Spells, id)
	if idx < 0 {
		return c, false, nil
	}
	merged := c.Spells[idx].Clone()
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Category != nil {
		merged.Category = *patch.Category
	}
	if patch.Damage != nil {
		v := *patch.Damage
		merged.Damage = &v
	}
	if patch.Healing != nil {
		v := *patch.Healing
		merged.Healing = &v
	}
	if patch.Cost != nil {
		v := *patch.Cost
		merged.Cost = &v
	}
	return replaceSpell(c, idx, merged)
}

// MergeSpellJSON applies an RFC 7386 merge patch to the spell identified by
// id. A null member clears an optional field. The id is preserved even when
// the patch names another one.
func MergeSpellJSON(c Character, id string, patch []byte) (Character, bool, error) {
	idx := spellIndex(c.Spells, id)
	if idx < 0 {
		return c, false, nil
	}
	original, err := json.Marshal(c.Spells[idx])
	if err != nil {
		return c, false, err
	}
	doc, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return c, false, &ValidationError{Field: "spell", Reason: "malformed merge patch", Err: err}
	}
	var merged Spell
	if err := json.Unmarshal(doc, &merged); err != nil {
		return c, false, &ValidationError{Field: "spell", Reason: "patch does not describe a spell", Err: err}
	}
	merged.ID = id
	return replaceSpell(c, idx, merged)
}

// RemoveSpell drops the spell identified by id. An unknown id leaves the
// character unchanged and reports false.
func RemoveSpell(c Character, id string) (Character, bool) {
	idx := spellIndex(c.Spells, id)
	if idx < 0 {
		return c, false
	}
	out := c.Clone()
	out.Spells = append(out.Spells[:idx], out.Spells[idx+1:]...)
	return out, true
}

func replaceSpell(c Character, idx int, merged Spell) (Character, bool, error) {
	if err := validateSpell(merged); err != nil {
		return c, false, err
	}
	out := c.Clone()
	out.Spells[idx] = merged
	return out, true, nil
}

func validateSpell(s Spell) error {
	if strings.TrimSpace(s.ID) == "" {
		return invalid("spell.id", "must not be empty")
	}
	if strings.TrimSpace(s.Name) == "" {
		return invalid("spell.name", "must not be empty")
	}
	if s.Category == "" {
		return invalid("spell.category", "must not be empty")
	}
	if !s.Category.Valid() {
		return invalid("spell.category", "unknown category %q", s.Category)
	}
	if s.Cost != nil {
		if s.Cost.Type != CostMana && s.Cost.Type != CostEnergy {
			return invalid("spell.cost.type", "unknown cost type %q", s.Cost.Type)
		}
		if s.Cost.Value < 0 {
			return invalid("spell.cost.value", "must not be negative")
		}
	}
	return nil
}

func spellIndex(spells []Spell, id string) int {
	if id == "" {
		return -1
	}
	for i, s := range spells {
		if s.ID == id {
			return i
		}
	}
	return -1
}
