package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"charsheet/internal/autosave"
	"charsheet/internal/export"
	"charsheet/pkg/domain"
)

// Operation names reported to metrics, traces and logs.
const (
	OpListCharacters  = "list_characters"
	OpCreateCharacter = "create_character"
	OpOpenCharacter   = "open_character"
	OpDeleteCharacter = "delete_character"
	OpPersist         = "persist"
	OpExport          = "export"
	OpPurgeExports    = "purge_exports"
)

var (
	// ErrSessionClosed is returned by edits and saves on a closed session.
	ErrSessionClosed = errors.New("editing session closed")
	// ErrExportDisabled is returned by Export when no exporter is configured.
	ErrExportDisabled = errors.New("export not configured")
)

// Exporter renders a character document and stores it. *export.Exporter
// satisfies it.
type Exporter interface {
	Export(ctx context.Context, c Character, s Status, format export.Format) (export.Artifact, error)
}

// ExportPurger is implemented by exporters that can drop every stored
// document of a character. DeleteCharacter uses it when available.
type ExportPurger interface {
	DeleteAll(ctx context.Context, characterID string) (int, error)
}

// Service manages characters in a record store and hands out editing
// sessions for them.
type Service struct {
	store          RecordStore
	engine         *RulesEngine
	logger         Logger
	metrics        MetricsRecorder
	tracer         Tracer
	notifier       Notifier
	clock          clock.Clock
	quiet          time.Duration
	persistTimeout time.Duration
	capacity       int
	template       Character
	statusTemplate Status
	exporter       Exporter

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewService constructs a service backed by the supplied store.
func NewService(store RecordStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:          store,
		engine:         NewDefaultRulesEngine(),
		logger:         noopLogger{},
		metrics:        noopMetrics{},
		tracer:         noopTracer{},
		notifier:       noopNotifier{},
		clock:          clock.New(),
		quiet:          autosave.DefaultQuietPeriod,
		capacity:       domain.DefaultBackpackCapacity,
		template:       domain.NewCharacterTemplate(),
		statusTemplate: domain.DefaultStatus(),
		sessions:       make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying record store.
func (s *Service) Store() RecordStore {
	return s.store
}

// Engine returns the rules engine applied to session edits.
func (s *Service) Engine() *RulesEngine {
	return s.engine
}

// ListCharacters returns every stored character ordered by name.
func (s *Service) ListCharacters(ctx context.Context) ([]Character, error) {
	var out []Character
	err := s.run(ctx, OpListCharacters, "", func(ctx context.Context) error {
		var err error
		out, err = s.store.ListCharacters(ctx)
		return wrapStore(OpListCharacters, "", err)
	})
	if err != nil {
		s.fail(ctx, OpListCharacters, "", err)
		return nil, err
	}
	return out, nil
}

// CreateCharacter stores a copy of the new-character template together with
// its default status. A non-empty name replaces the template name.
func (s *Service) CreateCharacter(ctx context.Context, name string) (Character, error) {
	c := s.template.Clone()
	if name != "" {
		c.Name = name
	}
	err := s.run(ctx, OpCreateCharacter, "", func(ctx context.Context) error {
		id, err := s.store.CreateCharacter(ctx, c)
		if err != nil {
			return wrapStore(OpCreateCharacter, "", err)
		}
		c.ID = id
		return nil
	})
	if err != nil {
		s.fail(ctx, OpCreateCharacter, "", err)
		return Character{}, err
	}
	if err := s.store.PutStatus(ctx, c.ID, s.statusTemplate.Clone()); err != nil {
		// Open falls back to the template and the first save writes it.
		s.logger.Warn("initial status not stored", "id", c.ID, "error", err)
	}
	s.logger.Info("character created", "id", c.ID, "name", c.Name)
	return c, nil
}

// Load reads a character and its status. A missing status yields the
// status template; a missing character reports false.
func (s *Service) Load(ctx context.Context, id string) (Character, Status, bool, error) {
	var (
		c     Character
		st    Status
		found bool
	)
	err := s.run(ctx, OpOpenCharacter, id, func(ctx context.Context) error {
		var err error
		c, found, err = s.store.GetCharacter(ctx, id)
		if err != nil || !found {
			return wrapStore(OpOpenCharacter, id, err)
		}
		var ok bool
		st, ok, err = s.store.GetStatus(ctx, id)
		if err != nil {
			return wrapStore(OpOpenCharacter, id, err)
		}
		if !ok {
			s.logger.Debug("status missing, using template", "id", id)
			st = s.statusTemplate.Clone()
		}
		return nil
	})
	if err != nil {
		s.fail(ctx, OpOpenCharacter, id, err)
		return Character{}, Status{}, false, err
	}
	return c, st, found, nil
}

// Open starts an editing session. It returns nil, nil when the character
// does not exist.
func (s *Service) Open(ctx context.Context, id string) (*Session, error) {
	c, st, found, err := s.Load(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	sess := newSession(s, c, st)
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("session opened", "id", id)
	return sess, nil
}

// DeleteCharacter closes open sessions of the character, discarding their
// pending edits, and removes it with its status and stored exports. A failed
// export cleanup is reported but does not undo the deletion.
func (s *Service) DeleteCharacter(ctx context.Context, id string) error {
	for _, sess := range s.openSessions(id) {
		sess.Close()
	}
	err := s.run(ctx, OpDeleteCharacter, id, func(ctx context.Context) error {
		return wrapStore(OpDeleteCharacter, id, s.store.DeleteCharacter(ctx, id))
	})
	if err != nil {
		s.fail(ctx, OpDeleteCharacter, id, err)
		return err
	}
	s.logger.Info("character deleted", "id", id)
	s.purgeExports(ctx, id)
	return nil
}

func (s *Service) purgeExports(ctx context.Context, id string) {
	purger, ok := s.exporter.(ExportPurger)
	if !ok {
		return
	}
	var removed int
	err := s.run(ctx, OpPurgeExports, id, func(ctx context.Context) error {
		var err error
		removed, err = purger.DeleteAll(ctx, id)
		return err
	})
	if err != nil {
		s.fail(ctx, OpPurgeExports, id, err)
		return
	}
	if removed > 0 {
		s.logger.Info("exports removed", "id", id, "count", removed)
	}
}

// Export renders the stored version of a character.
func (s *Service) Export(ctx context.Context, id string, format export.Format) (export.Artifact, error) {
	c, st, found, err := s.Load(ctx, id)
	if err != nil {
		return export.Artifact{}, err
	}
	if !found {
		err := domain.ErrNotFound{Collection: domain.CollectionCharacters, ID: id}
		s.fail(ctx, OpExport, id, err)
		return export.Artifact{}, err
	}
	return s.export(ctx, c, st, format)
}

func (s *Service) export(ctx context.Context, c Character, st Status, format export.Format) (export.Artifact, error) {
	if s.exporter == nil {
		s.fail(ctx, OpExport, c.ID, ErrExportDisabled)
		return export.Artifact{}, ErrExportDisabled
	}
	var art export.Artifact
	err := s.run(ctx, OpExport, c.ID, func(ctx context.Context) error {
		var err error
		art, err = s.exporter.Export(ctx, c, st, format)
		return err
	})
	if err != nil {
		s.fail(ctx, OpExport, c.ID, err)
		return export.Artifact{}, err
	}
	s.logger.Info("character exported", "id", c.ID, "format", string(format), "key", art.Key)
	s.notifier.Notify(Notification{Level: NotifyInfo, CharacterID: c.ID, Message: "Exported " + art.Key})
	return art, nil
}

// Close closes every open session. Pending edits that were not saved are
// discarded. The record store stays open.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}

func (s *Service) openSessions(id string) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for sess := range s.sessions {
		if sess.id == id {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Service) forget(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// run wraps fn in a trace span and records its latency.
func (s *Service) run(ctx context.Context, op, id string, fn func(context.Context) error) error {
	ctx = ContextWithCharacterID(ctx, id)
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, s.clock.Since(start))
	span.End(err)
	return err
}

// fail logs err and surfaces it as an error notification.
func (s *Service) fail(ctx context.Context, op, id string, err error) {
	if id == "" {
		id = CharacterIDFromContext(ctx)
	}
	s.logger.Error("operation failed", "op", op, "id", id, "error", err)
	s.notifier.Notify(Notification{Level: NotifyError, CharacterID: id, Message: failureMessage(op), Err: err})
}

func failureMessage(op string) string {
	switch op {
	case OpPersist:
		return "Could not save character"
	case OpExport:
		return "Could not export character"
	case OpListCharacters:
		return "Could not load characters"
	case OpCreateCharacter:
		return "Could not create character"
	case OpDeleteCharacter:
		return "Could not delete character"
	case OpPurgeExports:
		return "Could not remove exports of deleted character"
	case OpOpenCharacter:
		return "Could not load character"
	}
	return fmt.Sprintf("%s failed", op)
}

// wrapStore marks store failures as persistence errors.
func wrapStore(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &domain.PersistenceError{Op: op, ID: id, Err: err}
}
