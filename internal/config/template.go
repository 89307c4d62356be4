package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"charsheet/pkg/domain"
)

// Template is the starting document for "new character".
type Template struct {
	Character domain.Character
	Status    domain.Status
}

// DefaultTemplate returns the built-in necromancer template.
func DefaultTemplate() Template {
	return Template{Character: domain.NewCharacterTemplate(), Status: domain.DefaultStatus()}
}

// LoadTemplate reads a YAML template with top-level `character` and `status`
// keys. Keys use the same names as the stored JSON documents; anything
// omitted keeps its built-in value. An empty path returns the default.
func LoadTemplate(path string) (Template, error) {
	tpl := DefaultTemplate()
	if path == "" {
		return tpl, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tpl, fmt.Errorf("reading template %s: %w", path, err)
	}
	var doc struct {
		Character map[string]any `yaml:"character"`
		Status    map[string]any `yaml:"status"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return tpl, fmt.Errorf("parsing template %s: %w", path, err)
	}
	// The domain types carry json tags only, so YAML is bridged through JSON.
	if doc.Character != nil {
		if err := overlay(doc.Character, &tpl.Character); err != nil {
			return tpl, fmt.Errorf("template %s character: %w", path, err)
		}
	}
	if doc.Status != nil {
		if err := overlay(doc.Status, &tpl.Status); err != nil {
			return tpl, fmt.Errorf("template %s status: %w", path, err)
		}
	}
	tpl.Character.ID = ""
	tpl.Character = tpl.Character.Normalize()
	tpl.Status = tpl.Status.Normalize()
	if err := tpl.Validate(); err != nil {
		return tpl, fmt.Errorf("template %s: %w", path, err)
	}
	return tpl, nil
}

// Validate applies the numeric bounds and uniqueness constraints a stored
// character must satisfy.
func (t Template) Validate() error {
	c := t.Character
	if c.Level < 1 {
		return fmt.Errorf("level must be at least 1, got %d", c.Level)
	}
	if c.Experience < 0 {
		return fmt.Errorf("experience must not be negative, got %d", c.Experience)
	}
	if c.Currency.Gold < 0 || c.Currency.Steel < 0 || c.Currency.Asteri < 0 {
		return fmt.Errorf("currency must not be negative")
	}
	if dups := domain.DuplicateSlotKeys(c.Equipment); len(dups) > 0 {
		return fmt.Errorf("duplicate equipment slots %v", dups)
	}
	if dups := domain.DuplicateAttributeIDs(t.Status.Requirements); len(dups) > 0 {
		return fmt.Errorf("duplicate requirement ids %v", dups)
	}
	if dups := domain.DuplicateAttributeIDs(t.Status.Rolls); len(dups) > 0 {
		return fmt.Errorf("duplicate roll ids %v", dups)
	}
	return nil
}

// overlay merges src onto the JSON form of dst. Objects merge key by key;
// arrays and scalars replace the existing value.
func overlay(src map[string]any, dst any) error {
	b, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	var base map[string]any
	if err := json.Unmarshal(b, &base); err != nil {
		return err
	}
	if b, err = json.Marshal(merge(base, src)); err != nil {
		return err
	}
	v := reflect.ValueOf(dst).Elem()
	v.SetZero()
	return json.Unmarshal(b, dst)
}

func merge(dst, src map[string]any) map[string]any {
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = merge(dm, sm)
				continue
			}
		}
		dst[k] = sv
	}
	return dst
}
