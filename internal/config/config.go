// Package config loads charsheet settings from defaults, an optional YAML
// file and CHARSHEET_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CHARSHEET_"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

// Blob drivers. The values match blob.Driver.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Backpack capacity bounds, mirrored from the domain defaults.
const (
	MinBackpackCapacity = 1
	MaxBackpackCapacity = 36
)

// Config is the full runtime configuration.
type Config struct {
	Storage          StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Blob             BlobConfig     `yaml:"blob" envPrefix:"BLOB_"`
	Autosave         AutosaveConfig `yaml:"autosave" envPrefix:"AUTOSAVE_"`
	Log              LogConfig      `yaml:"log" envPrefix:"LOG_"`
	BackpackCapacity int            `yaml:"backpack_capacity" env:"BACKPACK_CAPACITY"`
	TemplatePath     string         `yaml:"template_path" env:"TEMPLATE_PATH"`
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	Driver        string `yaml:"driver" env:"DRIVER"`
	SQLitePath    string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN   string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	MongoURI      string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" env:"MONGO_DATABASE"`
}

// BlobConfig selects where exported documents are written.
type BlobConfig struct {
	Driver      string `yaml:"driver" env:"DRIVER"`
	FSRoot      string `yaml:"fs_root" env:"FS_ROOT"`
	S3Bucket    string `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Region    string `yaml:"s3_region" env:"S3_REGION"`
	S3Endpoint  string `yaml:"s3_endpoint" env:"S3_ENDPOINT"`
	S3PathStyle bool   `yaml:"s3_path_style" env:"S3_PATH_STYLE"`
}

// AutosaveConfig tunes the debounce cycle.
type AutosaveConfig struct {
	QuietPeriod    time.Duration `yaml:"quiet_period" env:"QUIET_PERIOD"`
	PersistTimeout time.Duration `yaml:"persist_timeout" env:"PERSIST_TIMEOUT"`
}

// LogConfig controls the zap logger built by the CLI.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration: a local SQLite file, exports
// on the filesystem and a two second quiet period.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:        StorageSQLite,
			SQLitePath:    "charsheet.db",
			MongoDatabase: "charsheet",
		},
		Blob: BlobConfig{
			Driver: BlobFilesystem,
			FSRoot: "./exports",
		},
		Autosave: AutosaveConfig{
			QuietPeriod:    2 * time.Second,
			PersistTimeout: 10 * time.Second,
		},
		Log:              LogConfig{Level: "info", Format: "console"},
		BackpackCapacity: 12,
	}
}

// Load builds a Config. A missing file at path is not an error; an empty path
// skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return fmt.Errorf("storage.sqlite_path required for sqlite driver")
		}
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return fmt.Errorf("storage.postgres_dsn required for postgres driver")
		}
	case StorageMongo:
		if strings.TrimSpace(c.Storage.MongoURI) == "" {
			return fmt.Errorf("storage.mongo_uri required for mongo driver")
		}
		if strings.TrimSpace(c.Storage.MongoDatabase) == "" {
			return fmt.Errorf("storage.mongo_database required for mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if strings.TrimSpace(c.Blob.S3Bucket) == "" {
			return fmt.Errorf("blob.s3_bucket required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Autosave.QuietPeriod <= 0 {
		return fmt.Errorf("autosave.quiet_period must be positive, got %s", c.Autosave.QuietPeriod)
	}
	if c.Autosave.PersistTimeout < 0 {
		return fmt.Errorf("autosave.persist_timeout must not be negative")
	}
	if c.BackpackCapacity < MinBackpackCapacity || c.BackpackCapacity > MaxBackpackCapacity {
		return fmt.Errorf("backpack_capacity must be within [%d, %d], got %d",
			MinBackpackCapacity, MaxBackpackCapacity, c.BackpackCapacity)
	}
	return nil
}
