// Package export renders character sheets as PDF or Markdown documents and
// stores them in blob storage.
package export

import (
	"fmt"
	"strconv"

	"charsheet/pkg/domain"
)

// Sheet is the presentation model shared by all renderers. It is derived
// from a character and its status and holds no references to either.
type Sheet struct {
	Title    string
	Subtitle string
	Level    string
	Bars     []Bar
	Sections []Section
	Notes    string
}

// Bar is a resource gauge.
type Bar struct {
	Label   string
	Current int
	Max     int
	Percent float64
	Color   RGB
}

// RGB is a fill colour for PDF bars.
type RGB struct{ R, G, B int }

// Section is a titled block of key/value rows or bullet items.
type Section struct {
	Title   string
	Rows    []Row
	Items   []string
	Empty   string
	Columns int
}

// Row is a labelled value.
type Row struct {
	Label string
	Value string
}

var barColors = map[domain.ResourceName]RGB{
	domain.ResourceHP:         {76, 175, 80},
	domain.ResourceMP:         {33, 150, 243},
	domain.ResourceEnergy:     {255, 193, 7},
	domain.ResourceCosmos:     {156, 39, 176},
	domain.ResourcePopularity: {255, 87, 34},
}

var barLabels = map[domain.ResourceName]string{
	domain.ResourceHP:         "HP",
	domain.ResourceMP:         "MP",
	domain.ResourceEnergy:     "Energy",
	domain.ResourceCosmos:     "Cosmos",
	domain.ResourcePopularity: "Popularity",
}

// BuildSheet lays out c and s for rendering.
func BuildSheet(c domain.Character, s domain.Status) Sheet {
	sheet := Sheet{
		Title:    c.Name,
		Subtitle: fmt.Sprintf("%s | %s", c.Race, c.Class),
		Level:    fmt.Sprintf("Level %d | XP: %d", c.Level, c.Experience),
		Notes:    c.Notes,
	}
	for _, name := range domain.ResourceNames {
		pair, _ := c.Resources.Get(name)
		sheet.Bars = append(sheet.Bars, Bar{
			Label:   barLabels[name],
			Current: pair.Current,
			Max:     pair.Max,
			Percent: pair.Percent(),
			Color:   barColors[name],
		})
	}

	sheet.Sections = append(sheet.Sections,
		Section{Title: "Profile", Columns: 2, Rows: []Row{
			{"Age", c.Profile.Age},
			{"Weight", withUnit(c.Profile.Weight, "kg")},
			{"Height", withUnit(c.Profile.Height, "m")},
			{"Build", c.Profile.Build},
		}},
		Section{Title: "Currency", Columns: 3, Rows: []Row{
			{"Gold", strconv.Itoa(c.Currency.Gold)},
			{"Steel", strconv.Itoa(c.Currency.Steel)},
			{"Asteri", strconv.Itoa(c.Currency.Asteri)},
		}},
		attributeSection("Status - Requirements", s.Requirements),
		attributeSection("Status - Rolls", s.Rolls),
		spellSection(c.Spells),
		listSection("Skills", c.Skills, "No skills"),
		listSection("Skill Slots", c.SkillSlots, "No skill slots"),
		listSection("Passives", c.Passives, "No passives"),
		listSection("Advantages", c.Advantages, "No advantages"),
		listSection("Disadvantages", c.Disadvantages, "No disadvantages"),
		listSection("Buffs", c.Buffs, "No buffs"),
		listSection("Debuffs", c.Debuffs, "No debuffs"),
		equipmentSection(c.Equipment),
		backpackSection(c.Backpack),
		listSection("Achievements", c.Achievements, "No achievements"),
	)
	return sheet
}

func withUnit(v, unit string) string {
	if v == "" {
		return ""
	}
	return v + " " + unit
}

func attributeSection(title string, attrs []domain.Attribute) Section {
	sec := Section{Title: title, Columns: 2, Empty: "No attributes"}
	for _, a := range attrs {
		sec.Rows = append(sec.Rows, Row{a.Name, strconv.Itoa(a.Value)})
	}
	return sec
}

func listSection(title string, items []string, empty string) Section {
	return Section{Title: title, Items: append([]string(nil), items...), Empty: empty}
}

func spellSection(spells []domain.Spell) Section {
	sec := Section{Title: "Spells", Empty: "No spells"}
	for _, sp := range spells {
		sec.Items = append(sec.Items, describeSpell(sp))
	}
	return sec
}

func describeSpell(sp domain.Spell) string {
	out := fmt.Sprintf("%s (%s)", sp.Name, sp.Category)
	fields := sp.RelevantFields()
	if fields.Damage && sp.Damage != nil {
		out += fmt.Sprintf(", damage %d", *sp.Damage)
	}
	if fields.Healing && sp.Healing != nil {
		out += fmt.Sprintf(", healing %d", *sp.Healing)
	}
	if sp.Cost != nil {
		out += fmt.Sprintf(", cost %d %s", sp.Cost.Value, sp.Cost.Type)
	}
	if sp.Description != "" {
		out += ": " + sp.Description
	}
	return out
}

func equipmentSection(e domain.Equipment) Section {
	sec := Section{Title: "Equipment", Columns: 2, Empty: "No equipment slots"}
	for _, slot := range e {
		value := "Empty"
		if !slot.Empty() {
			value = slot.Item.Name
		}
		label := slot.Label
		if label == "" {
			label = slot.Key
		}
		sec.Rows = append(sec.Rows, Row{label, value})
	}
	return sec
}

func backpackSection(items []domain.Item) Section {
	sec := Section{Title: "Backpack", Empty: "Empty backpack"}
	for _, it := range items {
		line := it.Name
		if it.Quantity > 1 {
			line = fmt.Sprintf("%s x%d", it.Name, it.Quantity)
		}
		if it.Description != "" {
			line += ": " + it.Description
		}
		sec.Items = append(sec.Items, line)
	}
	return sec
}
