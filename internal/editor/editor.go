// Package editor implements the line-oriented command language used to edit
// an open character session from the CLI.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"charsheet/internal/core"
	"charsheet/internal/export"
	"charsheet/pkg/domain"
)

// Help lists the accepted commands. List and backpack indexes start at 1.
const Help = `Commands:
  set <name|class|race|level|experience|notes|age|weight|height|build> <value...>
  header <name|class|race|level|xp|hp|mp>=<value> ...   (hp/mp as current/max)
  currency <gold|steel|asteri> <n>
  resource <hp|mp|energy|cosmos|popularity> <current> <max>
  list <field> add <text...> | list <field> rm <index> | list <field> clear
  slot add <name...> | slot set <key> <item...> | slot desc <key> <text...>
  slot clear <key> | slot rm <key>
  bag add <name...> | bag set <index> <name...> | bag desc <index> <text...>
  bag rm <index> | bag capacity <n>
  spell add <name...> | spell set <id> <field> <value...> | spell patch <id> <json>
  spell rm <id> | spell ls
  attr <requirements|rolls> <id> <value>
  save | show | help | quit

List fields: skills, skill_slots, passives, buffs, debuffs, advantages,
disadvantages, achievements.
Spell fields: name, description, category, damage, healing, cost <mana|energy> <n>.`

// UsageError reports a command that does not match the grammar.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string { return "usage: " + e.Usage }

// Reply is the outcome of one command.
type Reply struct {
	// Message is a one-line confirmation.
	Message string
	// Markdown holds a document to display, set by show and help.
	Markdown string
	Result   core.Result
	Quit     bool
}

// Editor executes commands against a session.
type Editor struct {
	sess  *core.Session
	newID func() string
}

// Option configures an Editor.
type Option func(*Editor)

// WithIDGenerator replaces the generator used for new item ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Editor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New returns an editor bound to sess.
func New(sess *core.Session, opts ...Option) *Editor {
	e := &Editor{sess: sess, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session returns the edited session.
func (e *Editor) Session() *core.Session { return e.sess }

// Execute parses and runs one command line.
func (e *Editor) Execute(ctx context.Context, line string) (Reply, error) {
	verb, rest := cut(line)
	switch strings.ToLower(verb) {
	case "":
		return Reply{}, nil
	case "set":
		return e.set(ctx, rest)
	case "header":
		return e.header(ctx, rest)
	case "currency":
		return e.currency(ctx, rest)
	case "resource":
		return e.resource(ctx, rest)
	case "list":
		return e.list(ctx, rest)
	case "slot":
		return e.slot(ctx, rest)
	case "bag":
		return e.bag(ctx, rest)
	case "spell":
		return e.spell(ctx, rest)
	case "attr":
		return e.attr(ctx, rest)
	case "save":
		if err := e.sess.Save(ctx); err != nil {
			return Reply{}, err
		}
		return Reply{Message: "saved"}, nil
	case "show":
		return e.show()
	case "help", "?":
		return Reply{Markdown: "```\n" + Help + "\n```"}, nil
	case "quit", "exit":
		return Reply{Quit: true}, nil
	}
	return Reply{}, &UsageError{Usage: fmt.Sprintf("unknown command %q, try help", verb)}
}

func (e *Editor) set(ctx context.Context, args string) (Reply, error) {
	field, value := cut(args)
	if field == "" {
		return Reply{}, &UsageError{Usage: "set <field> <value...>"}
	}
	res, err := e.sess.SetScalar(ctx, domain.ScalarField(strings.ToLower(field)), value)
	return done(res, err, "%s set", field)
}

func (e *Editor) currency(ctx context.Context, args string) (Reply, error) {
	f := strings.Fields(args)
	if len(f) != 2 {
		return Reply{}, &UsageError{Usage: "currency <gold|steel|asteri> <n>"}
	}
	n, err := atoi(f[0], f[1])
	if err != nil {
		return Reply{}, err
	}
	res, err := e.sess.SetCurrency(ctx, domain.CurrencyField(strings.ToLower(f[0])), n)
	return done(res, err, "%s = %d", f[0], n)
}

func (e *Editor) resource(ctx context.Context, args string) (Reply, error) {
	f := strings.Fields(args)
	if len(f) != 3 {
		return Reply{}, &UsageError{Usage: "resource <name> <current> <max>"}
	}
	current, err := atoi("current", f[1])
	if err != nil {
		return Reply{}, err
	}
	max, err := atoi("max", f[2])
	if err != nil {
		return Reply{}, err
	}
	res, err := e.sess.SetResource(ctx, domain.ResourceName(strings.ToLower(f[0])), current, max)
	return done(res, err, "%s = %d/%d", f[0], current, max)
}

func (e *Editor) list(ctx context.Context, args string) (Reply, error) {
	const usage = "list <field> add <text...> | list <field> rm <index> | list <field> clear"
	name, rest := cut(args)
	action, value := cut(rest)
	field := domain.ListField(strings.ToLower(name))
	c, _ := e.sess.Snapshot()
	seq, known := c.List(field)
	var next []string
	switch strings.ToLower(action) {
	case "add":
		if value == "" {
			return Reply{}, &UsageError{Usage: usage}
		}
		next = append(append([]string(nil), seq...), value)
	case "rm":
		idx, err := atoi("index", value)
		if err != nil {
			return Reply{}, err
		}
		if known && (idx < 1 || idx > len(seq)) {
			return Reply{}, outOfRange(idx, len(seq))
		}
		if known {
			next = append(append([]string(nil), seq[:idx-1]...), seq[idx:]...)
		}
	case "clear":
		next = []string{}
	default:
		return Reply{}, &UsageError{Usage: usage}
	}
	res, err := e.sess.SetList(ctx, field, next)
	return done(res, err, "%s updated", name)
}

func (e *Editor) slot(ctx context.Context, args string) (Reply, error) {
	const usage = "slot add <name...> | slot set <key> <item...> | slot desc <key> <text...> | slot clear <key> | slot rm <key>"
	action, rest := cut(args)
	if rest == "" {
		return Reply{}, &UsageError{Usage: usage}
	}
	switch strings.ToLower(action) {
	case "add":
		res, err := e.sess.AddEquipmentSlot(ctx, rest)
		return done(res, err, "slot %s added", domain.NormalizeSlotKey(rest))
	case "set":
		key, name := cut(rest)
		if name == "" {
			return Reply{}, &UsageError{Usage: usage}
		}
		item := &domain.Item{ID: "item-" + e.newID(), Name: name, Category: domain.ItemCustom}
		res, err := e.sess.SetEquipmentSlot(ctx, key, item)
		return done(res, err, "%s equipped in %s", name, key)
	case "desc":
		key, text := cut(rest)
		c, _ := e.sess.Snapshot()
		slot, ok := c.Equipment.Lookup(key)
		if !ok {
			slot, ok = c.Equipment.Lookup(domain.NormalizeSlotKey(key))
		}
		if !ok {
			return Reply{}, &domain.ValidationError{Field: "equipment", Reason: fmt.Sprintf("no slot %q", key)}
		}
		if slot.Item == nil {
			return Reply{}, &domain.ValidationError{Field: "equipment", Reason: fmt.Sprintf("slot %s is empty", slot.Key)}
		}
		item := *slot.Item
		item.Description = text
		res, err := e.sess.SetEquipmentSlot(ctx, slot.Key, &item)
		return done(res, err, "%s description updated", item.Name)
	case "clear":
		res, err := e.sess.SetEquipmentSlot(ctx, rest, nil)
		return done(res, err, "slot %s cleared", rest)
	case "rm":
		res, err := e.sess.RemoveEquipmentSlot(ctx, rest)
		return done(res, err, "slot %s removed", rest)
	}
	return Reply{}, &UsageError{Usage: usage}
}

func (e *Editor) bag(ctx context.Context, args string) (Reply, error) {
	const usage = "bag add <name...> | bag set <index> <name...> | bag desc <index> <text...> | bag rm <index> | bag capacity <n>"
	action, rest := cut(args)
	c, _ := e.sess.Snapshot()
	items := c.Backpack
	switch verb := strings.ToLower(action); verb {
	case "add":
		if rest == "" {
			return Reply{}, &UsageError{Usage: usage}
		}
		item := domain.Item{ID: "item-" + e.newID(), Name: rest, Category: domain.ItemGeneric, Quantity: 1}
		res, err := e.sess.SetBackpack(ctx, append(items, item))
		return done(res, err, "%s added (%s)", rest, e.sess.Occupancy())
	case "set", "desc":
		arg, text := cut(rest)
		if arg == "" || (verb == "set" && text == "") {
			return Reply{}, &UsageError{Usage: usage}
		}
		idx, err := atoi("index", arg)
		if err != nil {
			return Reply{}, err
		}
		if idx < 1 || idx > len(items) {
			return Reply{}, outOfRange(idx, len(items))
		}
		if verb == "set" {
			items[idx-1].Name = text
		} else {
			items[idx-1].Description = text
		}
		res, err := e.sess.SetBackpack(ctx, items)
		return done(res, err, "item %d updated", idx)
	case "rm":
		idx, err := atoi("index", rest)
		if err != nil {
			return Reply{}, err
		}
		if idx < 1 || idx > len(items) {
			return Reply{}, outOfRange(idx, len(items))
		}
		res, err := e.sess.SetBackpack(ctx, append(items[:idx-1], items[idx:]...))
		return done(res, err, "item %d removed (%s)", idx, e.sess.Occupancy())
	case "capacity":
		n, err := atoi("capacity", rest)
		if err != nil {
			return Reply{}, err
		}
		res, err := e.sess.SetBackpackCapacity(ctx, n)
		return done(res, err, "capacity %s", e.sess.Occupancy())
	}
	return Reply{}, &UsageError{Usage: usage}
}

func (e *Editor) spell(ctx context.Context, args string) (Reply, error) {
	const usage = "spell add <name...> | spell set <id> <field> <value...> | spell patch <id> <json> | spell rm <id> | spell ls"
	action, rest := cut(args)
	switch strings.ToLower(action) {
	case "add":
		if rest == "" {
			return Reply{}, &UsageError{Usage: usage}
		}
		spell := domain.NewSpell(rest)
		res, err := e.sess.AddSpell(ctx, spell)
		return done(res, err, "spell %s added", spell.ID)
	case "set":
		id, assignment := cut(rest)
		field, value := cut(assignment)
		if id == "" || field == "" {
			return Reply{}, &UsageError{Usage: usage}
		}
		patch, err := spellPatch(strings.ToLower(field), value)
		if err != nil {
			return Reply{}, err
		}
		res, err := e.sess.UpdateSpell(ctx, id, patch)
		return done(res, err, "spell %s %s set", id, strings.ToLower(field))
	case "patch":
		id, patch := cut(rest)
		if id == "" || patch == "" {
			return Reply{}, &UsageError{Usage: usage}
		}
		res, err := e.sess.MergeSpellJSON(ctx, id, []byte(patch))
		return done(res, err, "spell %s updated", id)
	case "rm":
		if rest == "" {
			return Reply{}, &UsageError{Usage: usage}
		}
		res, err := e.sess.RemoveSpell(ctx, rest)
		return done(res, err, "spell %s removed", rest)
	case "ls", "list":
		c, _ := e.sess.Snapshot()
		var b strings.Builder
		for _, sp := range c.Spells {
			fmt.Fprintf(&b, "- `%s` %s (%s)\n", sp.ID, sp.Name, sp.Category)
		}
		if b.Len() == 0 {
			b.WriteString("_No spells_\n")
		}
		return Reply{Markdown: b.String()}, nil
	}
	return Reply{}, &UsageError{Usage: usage}
}

func spellPatch(field, value string) (domain.SpellPatch, error) {
	const usage = "spell set <id> <name|description|category|damage|healing|cost> <value...>"
	var patch domain.SpellPatch
	switch field {
	case "name":
		patch.Name = &value
	case "description", "desc":
		patch.Description = &value
	case "category":
		category := domain.SpellCategory(strings.ToLower(value))
		patch.Category = &category
	case "damage", "healing":
		n, err := atoi(field, value)
		if err != nil {
			return patch, err
		}
		if field == "damage" {
			patch.Damage = &n
		} else {
			patch.Healing = &n
		}
	case "cost":
		kind, amount := cut(value)
		n, err := atoi("cost", amount)
		if err != nil {
			return patch, err
		}
		patch.Cost = &domain.SpellCost{Type: domain.CostType(strings.ToLower(kind)), Value: n}
	default:
		return patch, &UsageError{Usage: usage}
	}
	return patch, nil
}

// header parses "key=value" assignments. A value runs until the next
// recognised key, so names may contain spaces.
func (e *Editor) header(ctx context.Context, args string) (Reply, error) {
	const usage = "header <name|class|race|level|xp|hp|mp>=<value> ..."
	values := map[string]string{}
	var order []string
	current := ""
	for _, word := range strings.Fields(args) {
		if key, value, ok := strings.Cut(word, "="); ok && headerKey(key) != "" {
			current = headerKey(key)
			if _, seen := values[current]; !seen {
				order = append(order, current)
			}
			values[current] = value
			continue
		}
		if current == "" {
			return Reply{}, &UsageError{Usage: usage}
		}
		values[current] = strings.TrimSpace(values[current] + " " + word)
	}
	if len(order) == 0 {
		return Reply{}, &UsageError{Usage: usage}
	}

	var patch domain.HeaderPatch
	for _, key := range order {
		value := values[key]
		switch key {
		case "name":
			patch.Name = &value
		case "class":
			patch.Class = &value
		case "race":
			patch.Race = &value
		case "level", "experience":
			n, err := atoi(key, value)
			if err != nil {
				return Reply{}, err
			}
			if key == "level" {
				patch.Level = &n
			} else {
				patch.Experience = &n
			}
		case "hp", "mp":
			pair, err := resourcePair(key, value)
			if err != nil {
				return Reply{}, err
			}
			if key == "hp" {
				patch.HP = &pair
			} else {
				patch.MP = &pair
			}
		}
	}
	res, err := e.sess.EditHeader(ctx, patch)
	return done(res, err, "header updated (%s)", strings.Join(order, ", "))
}

func headerKey(key string) string {
	switch k := strings.ToLower(key); k {
	case "name", "class", "race", "level", "hp", "mp":
		return k
	case "xp", "experience":
		return "experience"
	}
	return ""
}

// resourcePair parses "current/max".
func resourcePair(field, value string) (domain.ResourcePair, error) {
	left, right, ok := strings.Cut(value, "/")
	if !ok {
		return domain.ResourcePair{}, &domain.ValidationError{Field: field, Reason: "expected current/max"}
	}
	current, err := atoi(field, left)
	if err != nil {
		return domain.ResourcePair{}, err
	}
	maximum, err := atoi(field, right)
	if err != nil {
		return domain.ResourcePair{}, err
	}
	return domain.ResourcePair{Current: current, Max: maximum}, nil
}

func (e *Editor) attr(ctx context.Context, args string) (Reply, error) {
	f := strings.Fields(args)
	if len(f) != 3 {
		return Reply{}, &UsageError{Usage: "attr <requirements|rolls> <id> <value>"}
	}
	category := domain.StatusCategory(strings.ToLower(f[0]))
	if category != domain.StatusRequirements && category != domain.StatusRolls {
		return Reply{}, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown category %q", f[0])}
	}
	id, err := atoi("id", f[1])
	if err != nil {
		return Reply{}, err
	}
	value, err := atoi("value", f[2])
	if err != nil {
		return Reply{}, err
	}
	res, err := e.sess.SetStatusAttribute(ctx, category, id, value)
	return done(res, err, "%s %d = %d", category, id, value)
}

func (e *Editor) show() (Reply, error) {
	c, st := e.sess.Snapshot()
	var buf bytes.Buffer
	if err := (export.MarkdownRenderer{}).Render(&buf, c, st); err != nil {
		return Reply{}, err
	}
	fmt.Fprintf(&buf, "\n_Backpack %s, autosave %s_\n", e.sess.Occupancy(), e.sess.State())
	return Reply{Markdown: buf.String()}, nil
}

func done(res core.Result, err error, format string, args ...any) (Reply, error) {
	if err != nil {
		return Reply{Result: res}, err
	}
	return Reply{Message: fmt.Sprintf(format, args...), Result: res}, nil
}

// cut splits s into its first word and the trimmed remainder, which keeps
// its inner spacing.
func cut(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func atoi(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &domain.ValidationError{Field: field, Reason: "not an integer", Err: err}
	}
	return n, nil
}

func outOfRange(idx, n int) error {
	return &domain.ValidationError{Field: "index", Reason: fmt.Sprintf("%d is outside 1..%d", idx, n)}
}

// IsUsage reports whether err is a grammar error rather than a rejected edit.
func IsUsage(err error) bool {
	var u *UsageError
	return errors.As(err, &u)
}
