// Package memory provides an in-memory RecordStore used for tests and
// ephemeral sessions.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"charsheet/pkg/domain"
)

var _ domain.RecordStore = (*Store)(nil)

// Store keeps characters and statuses in maps guarded by a RWMutex. Values are
// cloned on the way in and out.
type Store struct {
	mu         sync.RWMutex
	characters map[string]domain.Character
	statuses   map[string]domain.Status
	newID      func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		characters: make(map[string]domain.Character),
		statuses:   make(map[string]domain.Status),
		newID:      uuid.NewString,
	}
}

// ListCharacters implements domain.RecordStore.
func (s *Store) ListCharacters(ctx context.Context) ([]domain.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Character, 0, len(s.characters))
	for _, c := range s.characters {
		out = append(out, c.Clone())
	}
	SortCharacters(out)
	return out, nil
}

// GetCharacter implements domain.RecordStore.
func (s *Store) GetCharacter(ctx context.Context, id string) (domain.Character, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Character{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[id]
	if !ok {
		return domain.Character{}, false, nil
	}
	return c.Clone(), true, nil
}

// CreateCharacter implements domain.RecordStore.
func (s *Store) CreateCharacter(ctx context.Context, c domain.Character) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	stored := c.Clone().Normalize()
	stored.ID = id
	s.characters[id] = stored
	return id, nil
}

// ReplaceCharacter implements domain.RecordStore.
func (s *Store) ReplaceCharacter(ctx context.Context, id string, c domain.Character) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.characters[id]; !ok {
		return domain.ErrNotFound{Collection: domain.CollectionCharacters, ID: id}
	}
	stored := c.Clone().Normalize()
	stored.ID = id
	s.characters[id] = stored
	return nil
}

// DeleteCharacter implements domain.RecordStore.
func (s *Store) DeleteCharacter(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.characters[id]; !ok {
		return domain.ErrNotFound{Collection: domain.CollectionCharacters, ID: id}
	}
	delete(s.characters, id)
	delete(s.statuses, id)
	return nil
}

// GetStatus implements domain.RecordStore.
func (s *Store) GetStatus(ctx context.Context, id string) (domain.Status, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Status{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[id]
	if !ok {
		return domain.Status{}, false, nil
	}
	return st.Clone(), true, nil
}

// PutStatus implements domain.RecordStore.
func (s *Store) PutStatus(ctx context.Context, id string, st domain.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = st.Clone().Normalize()
	return nil
}

// Close implements domain.RecordStore.
func (s *Store) Close() error { return nil }

// SortCharacters orders characters by name, breaking ties by id. Backends
// that cannot sort server-side share it.
func SortCharacters(cs []domain.Character) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Name != cs[j].Name {
			return cs[i].Name < cs[j].Name
		}
		return cs[i].ID < cs[j].ID
	})
}
