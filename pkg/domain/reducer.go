package domain

import (
	"strconv"
	"strings"
)

// ScalarField names a scalar or profile field addressable by UpdateScalar.
type ScalarField string

// Scalar fields.
const (
	FieldName       ScalarField = "name"
	FieldClass      ScalarField = "class"
	FieldRace       ScalarField = "race"
	FieldLevel      ScalarField = "level"
	FieldExperience ScalarField = "experience"
	FieldNotes      ScalarField = "notes"
	FieldAge        ScalarField = "age"
	FieldWeight     ScalarField = "weight"
	FieldHeight     ScalarField = "height"
	FieldBuild      ScalarField = "build"
)

// ScalarFields enumerates the fields accepted by UpdateScalar.
var ScalarFields = []ScalarField{
	FieldName, FieldClass, FieldRace, FieldLevel, FieldExperience,
	FieldNotes, FieldAge, FieldWeight, FieldHeight, FieldBuild,
}

// UpdateScalar replaces one scalar or profile field. Level and experience
// are parsed as integers and must satisfy level >= 1 and experience >= 0.
func UpdateScalar(c Character, field ScalarField, value string) (Character, error) {
	out := c.Clone()
	switch field {
	case FieldName:
		out.Name = value
	case FieldClass:
		out.Class = value
	case FieldRace:
		out.Race = value
	case FieldNotes:
		out.Notes = value
	case FieldAge:
		out.Profile.Age = value
	case FieldWeight:
		out.Profile.Weight = value
	case FieldHeight:
		out.Profile.Height = value
	case FieldBuild:
		out.Profile.Build = value
	case FieldLevel:
		n, err := parseBounded(string(field), value, 1)
		if err != nil {
			return c, err
		}
		out.Level = n
	case FieldExperience:
		n, err := parseBounded(string(field), value, 0)
		if err != nil {
			return c, err
		}
		out.Experience = n
	default:
		return c, invalid(string(field), "unknown field")
	}
	return out, nil
}

// CurrencyField names a currency counter.
type CurrencyField string

// Currency fields.
const (
	CurrencyGold   CurrencyField = "gold"
	CurrencySteel  CurrencyField = "steel"
	CurrencyAsteri CurrencyField = "asteri"
)

// UpdateCurrency sets a currency counter. Negative amounts are rejected.
func UpdateCurrency(c Character, field CurrencyField, amount int) (Character, error) {
	if amount < 0 {
		return c, invalid("currency."+string(field), "must not be negative")
	}
	out := c.Clone()
	switch field {
	case CurrencyGold:
		out.Currency.Gold = amount
	case CurrencySteel:
		out.Currency.Steel = amount
	case CurrencyAsteri:
		out.Currency.Asteri = amount
	default:
		return c, invalid("currency."+string(field), "unknown currency")
	}
	return out, nil
}

// HeaderPatch groups the fields edited together in the sheet header. Nil
// fields are left untouched.
type HeaderPatch struct {
	Name       *string
	Class      *string
	Race       *string
	Level      *int
	Experience *int
	HP         *ResourcePair
	MP         *ResourcePair
}

// EditHeader applies a header patch atomically: either every field is
// applied or the character is returned unchanged with an error.
func EditHeader(c Character, patch HeaderPatch) (Character, error) {
	if patch.Level != nil && *patch.Level < 1 {
		return c, invalid(string(FieldLevel), "must be at least 1")
	}
	if patch.Experience != nil && *patch.Experience < 0 {
		return c, invalid(string(FieldExperience), "must not be negative")
	}
	out := c.Clone()
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Class != nil {
		out.Class = *patch.Class
	}
	if patch.Race != nil {
		out.Race = *patch.Race
	}
	if patch.Level != nil {
		out.Level = *patch.Level
	}
	if patch.Experience != nil {
		out.Experience = *patch.Experience
	}
	if patch.HP != nil {
		out.Resources.HP = *patch.HP
	}
	if patch.MP != nil {
		out.Resources.MP = *patch.MP
	}
	return out, nil
}

// UpdateResource replaces both components of a resource pair. Current above
// max is stored as given.
func UpdateResource(c Character, name ResourceName, current, max int) (Character, error) {
	out := c.Clone()
	res, ok := out.Resources.with(name, ResourcePair{Current: current, Max: max})
	if !ok {
		return c, invalid("resource", "unknown resource %q", name)
	}
	out.Resources = res
	return out, nil
}

// UpdateList replaces a free-text list field with a copy of seq.
func UpdateList(c Character, field ListField, seq []string) (Character, error) {
	cp := make([]string, len(seq))
	copy(cp, seq)
	out, ok := c.Clone().withList(field, cp)
	if !ok {
		return c, invalid("list", "unknown list %q", field)
	}
	return out, nil
}

// UpdateBackpack replaces the backpack contents. Capacity is not enforced
// here; it is a presentation setting checked by the rules engine.
func UpdateBackpack(c Character, items []Item) Character {
	out := c.Clone()
	out.Backpack = cloneItems(items)
	if out.Backpack == nil {
		out.Backpack = []Item{}
	}
	return out
}

func parseBounded(field, value string, min int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "not an integer", Err: err}
	}
	if n < min {
		return 0, invalid(field, "must be at least %d", min)
	}
	return n, nil
}
