// Package sqlstore implements domain.RecordStore over database/sql. The
// sqlite and postgres packages supply the driver and a Dialect; tables are
// created by embedded goose migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"charsheet/pkg/domain"
)

//go:embed migrations
var migrations embed.FS

// Dialect captures the differences between SQL backends.
type Dialect struct {
	Name string
	// Goose selects the migration dialect.
	Goose database.Dialect
	// Numbered placeholders ($1, $2) instead of ?.
	Numbered bool
	// NameOrder is the ORDER BY clause giving byte-wise name ordering.
	NameOrder string
}

// Dialects understood by the store.
var (
	SQLite = Dialect{
		Name:      "sqlite",
		Goose:     database.DialectSQLite3,
		NameOrder: "name, id",
	}
	Postgres = Dialect{
		Name:      "postgres",
		Goose:     database.DialectPostgres,
		Numbered:  true,
		NameOrder: `name COLLATE "C", id COLLATE "C"`,
	}
)

var _ domain.RecordStore = (*Store)(nil)

// Store persists characters and statuses as JSON documents, one row each.
type Store struct {
	db      *sql.DB
	dialect Dialect
	clock   clock.Clock
	newID   func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the source of updated_at timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// New migrates db to the latest schema and returns a store over it. The
// store owns db and closes it on Close.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	if err := Migrate(ctx, db, dialect); err != nil {
		return nil, err
	}
	s := &Store{db: db, dialect: dialect, clock: clock.New(), newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Migrate applies the embedded migrations for dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	fsys, err := fs.Sub(migrations, "migrations/"+dialect.Name)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", dialect.Name, err)
	}
	provider, err := goose.NewProvider(dialect.Goose, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// ListCharacters implements domain.RecordStore.
func (s *Store) ListCharacters(ctx context.Context) ([]domain.Character, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM characters ORDER BY `+s.dialect.NameOrder)
	if err != nil {
		return nil, fmt.Errorf("select characters: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.Character{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		c, err := decodeCharacter(id, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}
	return out, nil
}

// GetCharacter implements domain.RecordStore.
func (s *Store) GetCharacter(ctx context.Context, id string) (domain.Character, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT payload FROM characters WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Character{}, false, nil
	}
	if err != nil {
		return domain.Character{}, false, fmt.Errorf("select character %s: %w", id, err)
	}
	c, err := decodeCharacter(id, payload)
	if err != nil {
		return domain.Character{}, false, err
	}
	return c, true, nil
}

// CreateCharacter implements domain.RecordStore.
func (s *Store) CreateCharacter(ctx context.Context, c domain.Character) (string, error) {
	id := s.newID()
	payload, err := encodeCharacter(c)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		s.bind(`INSERT INTO characters (id, name, payload, updated_at) VALUES (?, ?, ?, ?)`),
		id, c.Name, payload, s.clock.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert character: %w", err)
	}
	return id, nil
}

// ReplaceCharacter implements domain.RecordStore.
func (s *Store) ReplaceCharacter(ctx context.Context, id string, c domain.Character) error {
	payload, err := encodeCharacter(c)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		s.bind(`UPDATE characters SET name = ?, payload = ?, updated_at = ? WHERE id = ?`),
		c.Name, payload, s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update character %s: %w", id, err)
	}
	return requireRow(res, domain.CollectionCharacters, id)
}

// DeleteCharacter implements domain.RecordStore. Both rows go in one
// transaction.
func (s *Store) DeleteCharacter(ctx context.Context, id string) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM character_status WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete status %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM characters WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete character %s: %w", id, err)
	}
	if err := requireRow(res, domain.CollectionCharacters, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetStatus implements domain.RecordStore.
func (s *Store) GetStatus(ctx context.Context, id string) (domain.Status, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT payload FROM character_status WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Status{}, false, nil
	}
	if err != nil {
		return domain.Status{}, false, fmt.Errorf("select status %s: %w", id, err)
	}
	var st domain.Status
	if err := json.Unmarshal(payload, &st); err != nil {
		return domain.Status{}, false, fmt.Errorf("decode status %s: %w", id, err)
	}
	return st.Normalize(), true, nil
}

// PutStatus implements domain.RecordStore.
func (s *Store) PutStatus(ctx context.Context, id string, st domain.Status) error {
	payload, err := json.Marshal(st.Normalize())
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.bind(`INSERT INTO character_status (id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`),
		id, string(payload), s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert status %s: %w", id, err)
	}
	return nil
}

// Close implements domain.RecordStore.
func (s *Store) Close() error { return s.db.Close() }

// bind rewrites ? placeholders for dialects with numbered parameters.
func (s *Store) bind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func requireRow(res sql.Result, coll domain.Collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound{Collection: coll, ID: id}
	}
	return nil
}

func encodeCharacter(c domain.Character) (string, error) {
	c = c.Normalize()
	c.ID = ""
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode character: %w", err)
	}
	return string(b), nil
}

func decodeCharacter(id string, payload []byte) (domain.Character, error) {
	var c domain.Character
	if err := json.Unmarshal(payload, &c); err != nil {
		return domain.Character{}, fmt.Errorf("decode character %s: %w", id, err)
	}
	c.ID = id
	return c.Normalize(), nil
}
