package core

import (
	"context"
	"fmt"

	"charsheet/internal/config"
	"charsheet/internal/infra/persistence/memory"
	"charsheet/internal/infra/persistence/mongo"
	"charsheet/internal/infra/persistence/postgres"
	"charsheet/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete record store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = config.StorageMemory   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = config.StorageSQLite   // embedded sqlite file
	StoragePostgres StorageDriver = config.StoragePostgres // PostgreSQL server
	StorageMongo    StorageDriver = config.StorageMongo    // MongoDB server
)

// OpenRecordStore selects a backend from cfg. An empty driver means sqlite.
//
//	CHARSHEET_STORAGE_DRIVER: memory|sqlite|postgres|mongo (default sqlite)
//	CHARSHEET_STORAGE_SQLITE_PATH: path to sqlite file (default ./charsheet.db)
//	CHARSHEET_STORAGE_POSTGRES_DSN: postgres DSN when driver=postgres
//	CHARSHEET_STORAGE_MONGO_URI, CHARSHEET_STORAGE_MONGO_DATABASE: when driver=mongo
func OpenRecordStore(ctx context.Context, cfg config.StorageConfig) (RecordStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageMongo:
		store, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
