package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"charsheet/internal/infra/persistence/sqlstore"
	"charsheet/internal/infra/persistence/storetest"
	"charsheet/pkg/domain"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.RecordStore {
		store, err := Open(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return store
	})
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sheets.db")
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id, err := store.CreateCharacter(ctx, domain.NewCharacterTemplate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.PutStatus(ctx, id, domain.DefaultStatus()); err != nil {
		t.Fatalf("put status: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, ok, err := reopened.GetCharacter(ctx, id)
	if err != nil || !ok {
		t.Fatalf("get after reopen: %v %v", ok, err)
	}
	if got.Name != "New Character" {
		t.Fatalf("unexpected character %+v", got)
	}
	if _, ok, _ := reopened.GetStatus(ctx, id); !ok {
		t.Fatalf("status lost across reopen")
	}
}

func TestStoreStampsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	mock.Set(at)
	store, err := Open(ctx, ":memory:", sqlstore.WithClock(mock))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	id, err := store.CreateCharacter(ctx, domain.NewCharacterTemplate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var stamped string
	if err := store.DB().QueryRowContext(ctx, `SELECT updated_at FROM characters WHERE id = ?`, id).Scan(&stamped); err != nil {
		t.Fatalf("select updated_at: %v", err)
	}
	if !strings.Contains(stamped, "2026-05-04") {
		t.Fatalf("updated_at %s, want %s", stamped, at)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := sqlstore.Migrate(ctx, store.DB(), sqlstore.SQLite); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
