package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSlotKey derives the storage key of an equipment slot from its
// display name: trimmed, NFC normalized, case folded, with inner whitespace
// runs collapsed to a single underscore.
func NormalizeSlotKey(name string) string {
	folded := cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
	return strings.Join(strings.FieldsFunc(folded, unicode.IsSpace), "_")
}

// UpdateEquipmentSlot sets or clears the item of a slot. An exact key match
// replaces the slot's item, and a nil item empties it without removing the
// slot. An unknown key creates a slot under its normalized form unless that
// form collides with an existing slot, which is rejected with ErrSlotCollision.
func UpdateEquipmentSlot(c Character, key string, item *Item) (Character, error) {
	if idx := c.Equipment.index(key); idx >= 0 {
		out := c.Clone()
		out.Equipment[idx].Item = cloneItem(item)
		return out, nil
	}
	normalized := NormalizeSlotKey(key)
	if normalized == "" {
		return c, invalid("equipment", "slot name must not be empty")
	}
	if collides(c.Equipment, normalized) {
		return c, &ValidationError{Field: "equipment", Reason: "slot " + normalized + " already exists", Err: ErrSlotCollision}
	}
	out := c.Clone()
	out.Equipment = append(out.Equipment, EquipmentSlot{
		Key:   normalized,
		Label: strings.TrimSpace(key),
		Item:  cloneItem(item),
	})
	return out, nil
}

// AddEquipmentSlot defines a new empty slot named name.
func AddEquipmentSlot(c Character, name string) (Character, error) {
	normalized := NormalizeSlotKey(name)
	if normalized == "" {
		return c, invalid("equipment", "slot name must not be empty")
	}
	if collides(c.Equipment, normalized) {
		return c, &ValidationError{Field: "equipment", Reason: "slot " + normalized + " already exists", Err: ErrSlotCollision}
	}
	out := c.Clone()
	out.Equipment = append(out.Equipment, EquipmentSlot{Key: normalized, Label: strings.TrimSpace(name)})
	return out, nil
}

// RemoveEquipmentSlot drops a slot definition. An unknown key reports false.
func RemoveEquipmentSlot(c Character, key string) (Character, bool) {
	idx := c.Equipment.index(key)
	if idx < 0 {
		return c, false
	}
	out := c.Clone()
	out.Equipment = append(out.Equipment[:idx], out.Equipment[idx+1:]...)
	return out, true
}

// DuplicateSlotKeys returns keys that occur more than once after normalization.
func DuplicateSlotKeys(e Equipment) []string {
	seen := make(map[string]int, len(e))
	var dups []string
	for _, slot := range e {
		k := NormalizeSlotKey(slot.Key)
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups
}

func collides(e Equipment, normalized string) bool {
	for _, slot := range e {
		if NormalizeSlotKey(slot.Key) == normalized {
			return true
		}
	}
	return false
}

func cloneItem(item *Item) *Item {
	if item == nil {
		return nil
	}
	cp := *item
	return &cp
}
