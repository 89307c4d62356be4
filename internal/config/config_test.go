package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults changed (-want +got):\n%s", diff)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, "charsheet.yaml", `
storage:
  driver: postgres
  postgres_dsn: postgres://file
blob:
  driver: s3
  s3_bucket: sheets
autosave:
  quiet_period: 500ms
backpack_capacity: 20
`)
	t.Setenv("CHARSHEET_STORAGE_POSTGRES_DSN", "postgres://env")
	t.Setenv("CHARSHEET_AUTOSAVE_QUIET_PERIOD", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StoragePostgres || cfg.Storage.PostgresDSN != "postgres://env" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != BlobS3 || cfg.Blob.S3Bucket != "sheets" {
		t.Fatalf("unexpected blob %+v", cfg.Blob)
	}
	if cfg.Autosave.QuietPeriod != 3*time.Second {
		t.Fatalf("env should override file, got %s", cfg.Autosave.QuietPeriod)
	}
	if cfg.BackpackCapacity != 20 {
		t.Fatalf("expected capacity 20, got %d", cfg.BackpackCapacity)
	}
	if cfg.Autosave.PersistTimeout != Default().Autosave.PersistTimeout {
		t.Fatalf("unset keys should keep defaults, got %s", cfg.Autosave.PersistTimeout)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "storage: [")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("CHARSHEET_BACKPACK_CAPACITY", "lots")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown storage", func(c *Config) { c.Storage.Driver = "redis" }, "unknown storage driver"},
		{"sqlite path", func(c *Config) { c.Storage.SQLitePath = " " }, "sqlite_path"},
		{"postgres dsn", func(c *Config) { c.Storage.Driver = StoragePostgres }, "postgres_dsn"},
		{"mongo uri", func(c *Config) { c.Storage.Driver = StorageMongo }, "mongo_uri"},
		{"unknown blob", func(c *Config) { c.Blob.Driver = "ftp" }, "unknown blob driver"},
		{"s3 bucket", func(c *Config) { c.Blob.Driver = BlobS3 }, "s3_bucket"},
		{"quiet period", func(c *Config) { c.Autosave.QuietPeriod = 0 }, "quiet_period"},
		{"capacity low", func(c *Config) { c.BackpackCapacity = 0 }, "backpack_capacity"},
		{"capacity high", func(c *Config) { c.BackpackCapacity = 37 }, "backpack_capacity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
