package domain

// DefaultBackpackCapacity is the initial backpack capacity of a session.
const DefaultBackpackCapacity = 12

// Backpack capacity bounds accepted by editing sessions.
const (
	MinBackpackCapacity = 1
	MaxBackpackCapacity = 36
)

// NewCharacterTemplate returns the aggregate used for a freshly created
// character. Every call returns an independent value.
func NewCharacterTemplate() Character {
	damage := 5
	return Character{
		Name:       "New Character",
		Class:      "Necromancer",
		Race:       "Human",
		Level:      1,
		Experience: 0,
		Resources: Resources{
			HP:         ResourcePair{Current: 10, Max: 10},
			MP:         ResourcePair{Current: 20, Max: 20},
			Energy:     ResourcePair{Current: 10, Max: 10},
			Cosmos:     ResourcePair{Current: 5, Max: 5},
			Popularity: ResourcePair{Current: 0, Max: 100},
		},
		Profile:  Profile{Age: "25", Weight: "70", Height: "1.75", Build: "Medium"},
		Currency: Currency{Gold: 100},
		Equipment: Equipment{
			{Key: "weapon", Label: "Weapon", Item: &Item{ID: "item-staff", Name: "Staff", Description: "A simple wooden staff", Category: ItemWeapon}},
			{Key: "armor", Label: "Armor", Item: &Item{ID: "item-tunic", Name: "Tunic", Description: "A worn cloth tunic", Category: ItemArmor}},
			{Key: "accessory", Label: "Accessory", Item: &Item{ID: "item-amulet", Name: "Amulet", Description: "An amulet carved from bone", Category: ItemAccessory}},
		},
		Backpack: []Item{
			{ID: "item-healing-potion", Name: "Healing Potion", Description: "Restores 5 health points", Category: ItemGeneric, Quantity: 3},
			{ID: "item-mana-potion", Name: "Mana Potion", Description: "Restores 5 mana points", Category: ItemGeneric, Quantity: 2},
		},
		Skills:        []string{"Summon Skeleton", "Touch of Death"},
		SkillSlots:    []string{"Skill Slot 1", "Skill Slot 2"},
		Passives:      []string{"Death Resistance", "Speak with the Dead"},
		Buffs:         []string{"Bone Armor: +5 DEF"},
		Debuffs:       []string{"Curse: -3 to all attributes"},
		Advantages:    []string{"Darkvision", "Disease resistance"},
		Disadvantages: []string{"Feared by NPCs", "Vulnerable to holy magic"},
		Achievements:  []string{"First Steps"},
		Spells: []Spell{{
			ID:          "spell-drain-life",
			Name:        "Drain Life",
			Description: "Drains 5 health points from the target",
			Category:    SpellAttack,
			Damage:      &damage,
			Cost:        &SpellCost{Type: CostMana, Value: 5},
		}},
		Notes: "Notes about the character...",
	}
}

// DefaultStatus returns the status created alongside a new character.
func DefaultStatus() Status {
	return Status{
		Requirements: []Attribute{
			{ID: 1, Name: "Strength", Value: 28, Description: "Physical power"},
			{ID: 2, Name: "Agility", Value: 23, Description: "Nimbleness and reflexes"},
			{ID: 3, Name: "Speed", Value: 23, Description: "Movement speed"},
			{ID: 4, Name: "Balance", Value: 23, Description: "Body control"},
			{ID: 5, Name: "Technique", Value: 25, Description: "General skill"},
			{ID: 6, Name: "Weapon technique", Value: 33, Description: "Skill with weapons"},
			{ID: 7, Name: "Magic technique", Value: 50, Description: "Skill with spells"},
			{ID: 8, Name: "Wisdom", Value: 50, Description: "Accumulated knowledge"},
			{ID: 9, Name: "Reasoning", Value: 50, Description: "Logical thinking"},
			{ID: 10, Name: "Courage", Value: 14, Description: "Bravery under pressure"},
			{ID: 11, Name: "Charisma", Value: 22, Description: "Social influence"},
			{ID: 12, Name: "Aim", Value: 19, Description: "Ranged accuracy"},
			{ID: 13, Name: "Precision", Value: 19, Description: "Fine control"},
			{ID: 14, Name: "Magic constitution", Value: 40, Description: "Magical resilience"},
			{ID: 15, Name: "Magic shaping", Value: 50, Description: "Control over spell form"},
			{ID: 16, Name: "Magic consistency", Value: 43, Description: "Stability of spells"},
			{ID: 17, Name: "Constitution", Value: 27, Description: "Physical resilience"},
		},
		Rolls: []Attribute{
			{ID: 1, Name: "Intuition", Value: 21, Description: "Gut feeling"},
			{ID: 2, Name: "Perception", Value: 20, Description: "Awareness of surroundings"},
			{ID: 3, Name: "Willpower", Value: 20, Description: "Mental fortitude"},
			{ID: 4, Name: "Stealth", Value: 17, Description: "Moving unseen"},
		},
	}
}

// DuplicateAttributeIDs returns ids occurring more than once within a sequence.
func DuplicateAttributeIDs(attrs []Attribute) []int {
	seen := make(map[int]int, len(attrs))
	var dups []int
	for _, a := range attrs {
		seen[a.ID]++
		if seen[a.ID] == 2 {
			dups = append(dups, a.ID)
		}
	}
	return dups
}
