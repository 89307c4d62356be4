// Package domain defines the character aggregate, its status companion, the
// pure update operations applied to them, and the rule and persistence
// primitives used by charsheet.
package domain

import "fmt"

// ResourceName identifies one of the depletable resource pairs.
type ResourceName string

// Resource pairs carried by every character.
const (
	ResourceHP         ResourceName = "hp"
	ResourceMP         ResourceName = "mp"
	ResourceEnergy     ResourceName = "energy"
	ResourceCosmos     ResourceName = "cosmos"
	ResourcePopularity ResourceName = "popularity"
)

// ResourceNames lists the resource pairs in display order.
var ResourceNames = []ResourceName{ResourceHP, ResourceMP, ResourceEnergy, ResourceCosmos, ResourcePopularity}

// ResourcePair is a {current, max} tuple. Current above max is tolerated.
type ResourcePair struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Percent returns current/max as a percentage clamped to [0, 100]. A max of
// zero or less is treated as 1.
func (r ResourcePair) Percent() float64 {
	max := r.Max
	if max <= 0 {
		max = 1
	}
	pct := float64(r.Current) / float64(max) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func (r ResourcePair) String() string {
	return fmt.Sprintf("%d/%d", r.Current, r.Max)
}

// Resources groups the named resource pairs.
type Resources struct {
	HP         ResourcePair `json:"hp"`
	MP         ResourcePair `json:"mp"`
	Energy     ResourcePair `json:"energy"`
	Cosmos     ResourcePair `json:"cosmos"`
	Popularity ResourcePair `json:"popularity"`
}

// Get returns the pair stored under name.
func (r Resources) Get(name ResourceName) (ResourcePair, bool) {
	switch name {
	case ResourceHP:
		return r.HP, true
	case ResourceMP:
		return r.MP, true
	case ResourceEnergy:
		return r.Energy, true
	case ResourceCosmos:
		return r.Cosmos, true
	case ResourcePopularity:
		return r.Popularity, true
	}
	return ResourcePair{}, false
}

func (r Resources) with(name ResourceName, pair ResourcePair) (Resources, bool) {
	switch name {
	case ResourceHP:
		r.HP = pair
	case ResourceMP:
		r.MP = pair
	case ResourceEnergy:
		r.Energy = pair
	case ResourceCosmos:
		r.Cosmos = pair
	case ResourcePopularity:
		r.Popularity = pair
	default:
		return r, false
	}
	return r, true
}

// Profile holds descriptive demographic fields. Values are free text.
type Profile struct {
	Age    string `json:"age"`
	Weight string `json:"weight"`
	Height string `json:"height"`
	Build  string `json:"build"`
}

// Currency holds the named coin counters. Gold is the primary currency.
type Currency struct {
	Gold   int `json:"gold"`
	Steel  int `json:"steel"`
	Asteri int `json:"asteri"`
}

// ItemCategory classifies equipment and backpack items.
type ItemCategory string

// Item categories.
const (
	ItemWeapon    ItemCategory = "weapon"
	ItemArmor     ItemCategory = "armor"
	ItemAccessory ItemCategory = "accessory"
	ItemGeneric   ItemCategory = "item"
	ItemCustom    ItemCategory = "custom"
)

// Item is an equipment or backpack entry.
type Item struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    ItemCategory `json:"category,omitempty"`
	Quantity    int          `json:"quantity,omitempty"`
}

// EquipmentSlot is one entry of the equipment association list. A nil Item is
// the explicit empty marker; the slot itself persists.
type EquipmentSlot struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Item  *Item  `json:"item"`
}

// Empty reports whether the slot holds no item.
func (s EquipmentSlot) Empty() bool { return s.Item == nil }

// Equipment is an ordered association list from slot key to item. Keys are
// unique after NormalizeSlotKey.
type Equipment []EquipmentSlot

// Lookup returns the slot stored under the exact key.
func (e Equipment) Lookup(key string) (EquipmentSlot, bool) {
	if i := e.index(key); i >= 0 {
		return e[i], true
	}
	return EquipmentSlot{}, false
}

// Keys returns the slot keys in order.
func (e Equipment) Keys() []string {
	keys := make([]string, len(e))
	for i, slot := range e {
		keys[i] = slot.Key
	}
	return keys
}

func (e Equipment) index(key string) int {
	for i, slot := range e {
		if slot.Key == key {
			return i
		}
	}
	return -1
}

// ListField names one of the free-text list fields.
type ListField string

// Free-text list fields addressable through UpdateList.
const (
	ListSkills        ListField = "skills"
	ListSkillSlots    ListField = "skill_slots"
	ListPassives      ListField = "passives"
	ListBuffs         ListField = "buffs"
	ListDebuffs       ListField = "debuffs"
	ListAdvantages    ListField = "advantages"
	ListDisadvantages ListField = "disadvantages"
	ListAchievements  ListField = "achievements"
)

// ListFields enumerates every list field in display order.
var ListFields = []ListField{
	ListSkills, ListSkillSlots, ListPassives, ListBuffs,
	ListDebuffs, ListAdvantages, ListDisadvantages, ListAchievements,
}

// Character is the aggregate for one character sheet. Values are treated as
// immutable: every update returns a new Character.
type Character struct {
	ID         string    `json:"id,omitempty"`
	Name       string    `json:"name"`
	Class      string    `json:"class"`
	Race       string    `json:"race"`
	Level      int       `json:"level"`
	Experience int       `json:"experience"`
	Resources  Resources `json:"resources"`
	Profile    Profile   `json:"profile"`
	Currency   Currency  `json:"currency"`
	Equipment  Equipment `json:"equipment"`
	Backpack   []Item    `json:"backpack"`

	Skills        []string `json:"skills"`
	SkillSlots    []string `json:"skill_slots"`
	Passives      []string `json:"passives"`
	Buffs         []string `json:"buffs"`
	Debuffs       []string `json:"debuffs"`
	Advantages    []string `json:"advantages"`
	Disadvantages []string `json:"disadvantages"`
	Achievements  []string `json:"achievements"`

	Spells []Spell `json:"spells"`
	Notes  string  `json:"notes"`
}

// List returns the sequence stored under field.
func (c Character) List(field ListField) ([]string, bool) {
	switch field {
	case ListSkills:
		return c.Skills, true
	case ListSkillSlots:
		return c.SkillSlots, true
	case ListPassives:
		return c.Passives, true
	case ListBuffs:
		return c.Buffs, true
	case ListDebuffs:
		return c.Debuffs, true
	case ListAdvantages:
		return c.Advantages, true
	case ListDisadvantages:
		return c.Disadvantages, true
	case ListAchievements:
		return c.Achievements, true
	}
	return nil, false
}

func (c Character) withList(field ListField, seq []string) (Character, bool) {
	switch field {
	case ListSkills:
		c.Skills = seq
	case ListSkillSlots:
		c.SkillSlots = seq
	case ListPassives:
		c.Passives = seq
	case ListBuffs:
		c.Buffs = seq
	case ListDebuffs:
		c.Debuffs = seq
	case ListAdvantages:
		c.Advantages = seq
	case ListDisadvantages:
		c.Disadvantages = seq
	case ListAchievements:
		c.Achievements = seq
	default:
		return c, false
	}
	return c, true
}

// Normalize replaces nil sequences with empty ones so documents loaded from a
// store always carry every field.
func (c Character) Normalize() Character {
	if c.Equipment == nil {
		c.Equipment = Equipment{}
	}
	if c.Backpack == nil {
		c.Backpack = []Item{}
	}
	if c.Spells == nil {
		c.Spells = []Spell{}
	}
	for _, field := range ListFields {
		if seq, _ := c.List(field); seq == nil {
			c, _ = c.withList(field, []string{})
		}
	}
	return c
}

// Clone returns a deep copy of the character.
func (c Character) Clone() Character {
	cp := c
	cp.Equipment = cloneEquipment(c.Equipment)
	cp.Backpack = cloneItems(c.Backpack)
	cp.Skills = cloneStrings(c.Skills)
	cp.SkillSlots = cloneStrings(c.SkillSlots)
	cp.Passives = cloneStrings(c.Passives)
	cp.Buffs = cloneStrings(c.Buffs)
	cp.Debuffs = cloneStrings(c.Debuffs)
	cp.Advantages = cloneStrings(c.Advantages)
	cp.Disadvantages = cloneStrings(c.Disadvantages)
	cp.Achievements = cloneStrings(c.Achievements)
	if c.Spells != nil {
		cp.Spells = make([]Spell, len(c.Spells))
		for i, s := range c.Spells {
			cp.Spells[i] = s.Clone()
		}
	}
	return cp
}

// Occupancy renders backpack usage against a capacity, e.g. "0/12".
func Occupancy(backpack []Item, capacity int) string {
	return fmt.Sprintf("%d/%d", len(backpack), capacity)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneItems(in []Item) []Item {
	if in == nil {
		return nil
	}
	out := make([]Item, len(in))
	copy(out, in)
	return out
}

func cloneEquipment(in Equipment) Equipment {
	if in == nil {
		return nil
	}
	out := make(Equipment, len(in))
	for i, slot := range in {
		out[i] = slot
		if slot.Item != nil {
			item := *slot.Item
			out[i].Item = &item
		}
	}
	return out
}
