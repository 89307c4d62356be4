package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"charsheet/internal/blob/core"
)

func newTempStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newTempStore(t, WithClock(mock))

	info, err := store.Put(ctx, "exports/c1/sheet.md", strings.NewReader("# Sheet"), core.PutOptions{
		ContentType: "text/markdown",
		Metadata:    map[string]string{"character": "c1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" || !info.LastModified.Equal(mock.Now()) {
		t.Fatalf("unexpected info %+v", info)
	}
	if !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("expected file url, got %s", info.URL)
	}

	head, err := store.Head(ctx, "exports/c1/sheet.md")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	got, rc, err := store.Get(ctx, "exports/c1/sheet.md")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(body) != "# Sheet" || got.ETag != head.ETag || got.Metadata["character"] != "c1" {
		t.Fatalf("unexpected get result %+v %q", got, body)
	}

	list, err := store.List(ctx, "exports/c1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "exports/c1/sheet.md" {
		t.Fatalf("unexpected list %+v", list)
	}
	if other, _ := store.List(ctx, "exports/c2/"); len(other) != 0 {
		t.Fatalf("prefix filter leaked %+v", other)
	}

	ok, err := store.Delete(ctx, "exports/c1/sheet.md")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "exports/c1/sheet.md")
	if err != nil || ok {
		t.Fatalf("second delete should report false, got %v %v", ok, err)
	}
}

func TestStorePutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "a.pdf", bytes.NewReader([]byte("1")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "a.pdf", bytes.NewReader([]byte("2")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestStoreMissingKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/../../b", "x.meta"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestStorePutHonoursCancelledContext(t *testing.T) {
	store := newTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "c.md", strings.NewReader("data"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "c.md")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cancelled put left a file behind: %v", err)
	}
}

func TestStorePresign(t *testing.T) {
	store := newTempStore(t)
	url, err := store.PresignURL(context.Background(), "exports/x.pdf", core.SignedURLOptions{})
	if err != nil || !strings.HasSuffix(url, "/exports/x.pdf") {
		t.Fatalf("presign: %v %s", err, url)
	}
	if _, err := store.PresignURL(context.Background(), "x", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported for PUT, got %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}

func TestStoreCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "bad.md", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), "bad.md.meta"), []byte("{"), 0o600); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := store.Head(ctx, "bad.md"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list to surface decode error")
	}
}
