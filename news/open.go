package news

import (
	"context"
	"fmt"
)

// StorageConfig selects the article store backend.
type StorageConfig struct {
	Type string `yaml:"type"` // "sqlite" or "postgres"
	DSN  string `yaml:"dsn"`
}

// Open returns the store described by cfg.
func Open(ctx context.Context, cfg StorageConfig) (Store, error) {
	switch cfg.Type {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "evmotor.db"
		}
		return NewSQLiteStore(dsn)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres storage requires a dsn")
		}
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorageType, cfg.Type)
	}
}
