package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"charsheet/internal/autosave"
	"charsheet/internal/export"
	"charsheet/pkg/domain"
)

// CharacterReducer derives a candidate character from the committed one.
// The boolean reports whether anything matched; false leaves the session
// untouched.
type CharacterReducer func(Character) (Character, bool, error)

// StatusReducer is the status counterpart of CharacterReducer.
type StatusReducer func(Status) (Status, bool, error)

// Session is an open character being edited. It owns the committed
// character and status, the backpack capacity setting and the autosave
// scheduler. Edits are serialized; persistence never blocks them.
type Session struct {
	svc       *Service
	id        string
	scheduler *autosave.Scheduler

	mu        sync.RWMutex
	character Character
	status    Status
	capacity  int
	version   uint64
	saved     uint64
	closed    bool
	warned    map[string]struct{}
}

func newSession(svc *Service, c Character, st Status) *Session {
	sess := &Session{
		svc:       svc,
		id:        c.ID,
		character: c,
		status:    st,
		capacity:  svc.capacity,
		warned:    make(map[string]struct{}),
	}
	sess.scheduler = autosave.New(sess.persist,
		autosave.WithClock(svc.clock),
		autosave.WithQuietPeriod(svc.quiet),
		autosave.WithPersistTimeout(svc.persistTimeout),
		autosave.WithLogger(withFields(svc.logger, "character_id", c.ID)),
	)
	return sess
}

// ID returns the character id.
func (s *Session) ID() string { return s.id }

// Snapshot returns the committed character and status.
func (s *Session) Snapshot() (Character, Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.character.Clone(), s.status.Clone()
}

// Version counts committed edits since the session was opened.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Dirty reports whether committed edits have not been persisted yet.
func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.saved
}

// Capacity returns the backpack capacity setting.
func (s *Session) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// Occupancy renders backpack usage as "used/capacity".
func (s *Session) Occupancy() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Occupancy(s.character.Backpack, s.capacity)
}

// State reports the autosave state.
func (s *Session) State() autosave.State { return s.scheduler.State() }

// Apply runs fn against the committed character, evaluates the rules on the
// candidate and commits it unless a blocking violation is found. Committed
// edits arm the autosave timer.
func (s *Session) Apply(ctx context.Context, op string, fn CharacterReducer) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrSessionClosed
	}
	before := s.character
	after, changed, err := fn(before)
	if err != nil {
		s.mu.Unlock()
		s.reject(op, err)
		return Result{}, err
	}
	if !changed {
		s.mu.Unlock()
		s.unchanged(op)
		return Result{}, nil
	}
	change := Change{Target: domain.TargetCharacter, Op: op, Before: before, After: after}
	res, err := s.commitLocked(ctx, after, s.status, change)
	if err != nil {
		s.mu.Unlock()
		s.reject(op, err)
		return res, err
	}
	s.character = after
	s.version++
	fresh := s.freshWarningsLocked(res)
	s.mu.Unlock()

	s.report(op, res, fresh)
	s.scheduler.Notify()
	return res, nil
}

// ApplyStatus is Apply for the status aggregate.
func (s *Session) ApplyStatus(ctx context.Context, op string, fn StatusReducer) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrSessionClosed
	}
	before := s.status
	after, changed, err := fn(before)
	if err != nil {
		s.mu.Unlock()
		s.reject(op, err)
		return Result{}, err
	}
	if !changed {
		s.mu.Unlock()
		s.unchanged(op)
		return Result{}, nil
	}
	change := Change{Target: domain.TargetStatus, Op: op, Before: before, After: after}
	res, err := s.commitLocked(ctx, s.character, after, change)
	if err != nil {
		s.mu.Unlock()
		s.reject(op, err)
		return res, err
	}
	s.status = after
	s.version++
	fresh := s.freshWarningsLocked(res)
	s.mu.Unlock()

	s.report(op, res, fresh)
	s.scheduler.Notify()
	return res, nil
}

func (s *Session) commitLocked(ctx context.Context, c Character, st Status, change Change) (Result, error) {
	view := ruleView{character: c, status: st, capacity: s.capacity}
	res, err := s.svc.engine.Evaluate(ctx, view, []Change{change})
	if err != nil {
		return Result{}, err
	}
	if res.HasBlocking() {
		return res, RuleViolationError{Result: res}
	}
	return res, nil
}

// freshWarningsLocked returns warnings not reported by the previous
// evaluation and remembers the current set.
func (s *Session) freshWarningsLocked(res Result) []Violation {
	current := make(map[string]struct{})
	var fresh []Violation
	for _, v := range res.WithSeverity(SeverityWarn) {
		key := v.Rule + "/" + v.Field
		current[key] = struct{}{}
		if _, seen := s.warned[key]; !seen {
			fresh = append(fresh, v)
		}
	}
	s.warned = current
	return fresh
}

func (s *Session) report(op string, res Result, fresh []Violation) {
	for _, v := range res.WithSeverity(SeverityLog) {
		s.svc.logger.Debug("rule note", "id", s.id, "op", op, "rule", v.Rule, "message", v.Message)
	}
	for _, v := range fresh {
		s.svc.logger.Warn("rule warning", "id", s.id, "op", op, "rule", v.Rule, "message", v.Message)
		s.svc.notifier.Notify(Notification{Level: NotifyWarning, CharacterID: s.id, Message: v.Message})
	}
}

func (s *Session) reject(op string, err error) {
	level := NotifyError
	var verr *domain.ValidationError
	var rerr RuleViolationError
	if errors.As(err, &verr) || errors.As(err, &rerr) {
		level = NotifyWarning
	}
	s.svc.logger.Warn("edit rejected", "id", s.id, "op", op, "error", err)
	s.svc.notifier.Notify(Notification{Level: level, CharacterID: s.id, Message: err.Error(), Err: err})
}

func (s *Session) unchanged(op string) {
	s.svc.logger.Debug("edit matched nothing", "id", s.id, "op", op)
	s.svc.notifier.Notify(Notification{Level: NotifyWarning, CharacterID: s.id, Message: fmt.Sprintf("%s: no matching entry, nothing changed", op)})
}

func lift(fn func(Character) (Character, error)) CharacterReducer {
	return func(c Character) (Character, bool, error) {
		out, err := fn(c)
		return out, err == nil, err
	}
}

// SetScalar updates a scalar or profile field.
func (s *Session) SetScalar(ctx context.Context, field domain.ScalarField, value string) (Result, error) {
	return s.Apply(ctx, "set_"+string(field), lift(func(c Character) (Character, error) {
		return domain.UpdateScalar(c, field, value)
	}))
}

// SetCurrency updates a currency counter.
func (s *Session) SetCurrency(ctx context.Context, field domain.CurrencyField, amount int) (Result, error) {
	return s.Apply(ctx, "set_currency", lift(func(c Character) (Character, error) {
		return domain.UpdateCurrency(c, field, amount)
	}))
}

// EditHeader applies the header fields together.
func (s *Session) EditHeader(ctx context.Context, patch domain.HeaderPatch) (Result, error) {
	return s.Apply(ctx, "edit_header", lift(func(c Character) (Character, error) {
		return domain.EditHeader(c, patch)
	}))
}

// SetResource replaces a resource pair.
func (s *Session) SetResource(ctx context.Context, name domain.ResourceName, current, max int) (Result, error) {
	return s.Apply(ctx, "set_resource", lift(func(c Character) (Character, error) {
		return domain.UpdateResource(c, name, current, max)
	}))
}

// SetList replaces a free-text list field.
func (s *Session) SetList(ctx context.Context, field domain.ListField, seq []string) (Result, error) {
	return s.Apply(ctx, "set_list", lift(func(c Character) (Character, error) {
		return domain.UpdateList(c, field, seq)
	}))
}

// SetEquipmentSlot fills, clears or creates an equipment slot.
func (s *Session) SetEquipmentSlot(ctx context.Context, key string, item *domain.Item) (Result, error) {
	return s.Apply(ctx, "set_equipment_slot", lift(func(c Character) (Character, error) {
		return domain.UpdateEquipmentSlot(c, key, item)
	}))
}

// AddEquipmentSlot defines a new empty slot.
func (s *Session) AddEquipmentSlot(ctx context.Context, name string) (Result, error) {
	return s.Apply(ctx, "add_equipment_slot", lift(func(c Character) (Character, error) {
		return domain.AddEquipmentSlot(c, name)
	}))
}

// RemoveEquipmentSlot drops a slot definition.
func (s *Session) RemoveEquipmentSlot(ctx context.Context, key string) (Result, error) {
	return s.Apply(ctx, "remove_equipment_slot", func(c Character) (Character, bool, error) {
		out, ok := domain.RemoveEquipmentSlot(c, key)
		return out, ok, nil
	})
}

// SetBackpack replaces the backpack contents. Exceeding the capacity is
// accepted with a warning.
func (s *Session) SetBackpack(ctx context.Context, items []domain.Item) (Result, error) {
	return s.Apply(ctx, "set_backpack", func(c Character) (Character, bool, error) {
		return domain.UpdateBackpack(c, items), true, nil
	})
}

// AddSpell appends a spell.
func (s *Session) AddSpell(ctx context.Context, spell domain.Spell) (Result, error) {
	return s.Apply(ctx, "add_spell", lift(func(c Character) (Character, error) {
		return domain.AddSpell(c, spell)
	}))
}

// UpdateSpell merges patch onto the spell with the given id.
func (s *Session) UpdateSpell(ctx context.Context, id string, patch domain.SpellPatch) (Result, error) {
	return s.Apply(ctx, "update_spell", func(c Character) (Character, bool, error) {
		return domain.UpdateSpell(c, id, patch)
	})
}

// MergeSpellJSON applies a JSON merge patch to the spell with the given id.
func (s *Session) MergeSpellJSON(ctx context.Context, id string, patch []byte) (Result, error) {
	return s.Apply(ctx, "update_spell", func(c Character) (Character, bool, error) {
		return domain.MergeSpellJSON(c, id, patch)
	})
}

// RemoveSpell deletes the spell with the given id.
func (s *Session) RemoveSpell(ctx context.Context, id string) (Result, error) {
	return s.Apply(ctx, "remove_spell", func(c Character) (Character, bool, error) {
		out, ok := domain.RemoveSpell(c, id)
		return out, ok, nil
	})
}

// SetStatusAttribute sets the value of one status attribute.
func (s *Session) SetStatusAttribute(ctx context.Context, category domain.StatusCategory, id, value int) (Result, error) {
	return s.ApplyStatus(ctx, "set_status_attribute", func(st Status) (Status, bool, error) {
		out, ok := domain.UpdateStatusAttribute(st, category, id, value)
		return out, ok, nil
	})
}

// SetBackpackCapacity changes the capacity setting. It is not part of the
// persisted aggregate and does not arm autosave. Shrinking below the
// current occupancy is allowed and reported as a warning.
func (s *Session) SetBackpackCapacity(ctx context.Context, n int) (Result, error) {
	if n < domain.MinBackpackCapacity || n > domain.MaxBackpackCapacity {
		err := &domain.ValidationError{
			Field:  "backpack_capacity",
			Reason: fmt.Sprintf("must be between %d and %d", domain.MinBackpackCapacity, domain.MaxBackpackCapacity),
		}
		s.reject("set_backpack_capacity", err)
		return Result{}, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrSessionClosed
	}
	res, err := s.svc.engine.Evaluate(ctx, ruleView{character: s.character, status: s.status, capacity: n}, nil)
	if err != nil {
		s.mu.Unlock()
		s.reject("set_backpack_capacity", err)
		return Result{}, err
	}
	s.capacity = n
	fresh := s.freshWarningsLocked(res)
	s.mu.Unlock()
	s.report("set_backpack_capacity", res, fresh)
	return res, nil
}

// Save persists the committed state now, cancelling a pending autosave.
func (s *Session) Save(ctx context.Context) error {
	err := s.scheduler.Flush(ctx)
	if errors.Is(err, autosave.ErrClosed) {
		return ErrSessionClosed
	}
	return err
}

// Export renders the in-memory state, including unsaved edits.
func (s *Session) Export(ctx context.Context, format export.Format) (export.Artifact, error) {
	c, st := s.Snapshot()
	return s.svc.export(ctx, c, st, format)
}

// Close ends the session. Edits that were not saved are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dirty := s.version != s.saved
	s.mu.Unlock()

	s.scheduler.Cancel()
	s.scheduler.Close()
	s.svc.forget(s)
	if dirty {
		s.svc.logger.Info("unsaved changes discarded", "id", s.id)
	}
}

// persist writes the latest committed snapshot. It runs on the scheduler's
// goroutine or inside Save.
func (s *Session) persist(ctx context.Context) error {
	s.mu.RLock()
	c, st, version := s.character, s.status, s.version
	s.mu.RUnlock()

	err := s.svc.run(ctx, OpPersist, s.id, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return wrapStore("replace_character", s.id, s.svc.store.ReplaceCharacter(gctx, s.id, c))
		})
		g.Go(func() error {
			return wrapStore("put_status", s.id, s.svc.store.PutStatus(gctx, s.id, st))
		})
		return g.Wait()
	})
	if err != nil {
		s.svc.fail(ctx, OpPersist, s.id, err)
		return err
	}

	s.mu.Lock()
	if version > s.saved {
		s.saved = version
	}
	s.mu.Unlock()
	s.svc.logger.Info("character saved", "id", s.id, "version", version)
	s.svc.notifier.Notify(Notification{Level: NotifyInfo, CharacterID: s.id, Message: "Character saved"})
	return nil
}
