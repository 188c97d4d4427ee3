// Package insight turns the stored news into a single strategic analysis for
// a motor manufacturer and keeps the latest one.
package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/evmotor/news"
)

// Insight is one generated analysis.
type Insight struct {
	ID                uuid.UUID `json:"id"`
	Content           string    `json:"content"`
	GeneratedAt       time.Time `json:"generated_at"`
	NewsAnalyzedCount int       `json:"news_analyzed_count"`
}

// Store keeps insights. Only the most recent one is retained.
type Store interface {
	// Replace deletes every stored insight and saves in.
	Replace(ctx context.Context, in Insight) error
	// Latest returns the newest insight, or nil when there is none.
	Latest(ctx context.Context) (*Insight, error)
	Close() error
}

// Open returns the insight store for the same backend as the article store.
func Open(ctx context.Context, cfg news.StorageConfig) (Store, error) {
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
		return nil, fmt.Errorf("%w: %q", news.ErrUnknownStorageType, cfg.Type)
	}
}
