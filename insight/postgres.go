package insight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps insights in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and ensures the insights table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS insights (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			news_analyzed_count INTEGER NOT NULL DEFAULT 0,
			generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Replace swaps the stored insight for in within one transaction.
func (s *PostgresStore) Replace(ctx context.Context, in Insight) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM insights`); err != nil {
		return fmt.Errorf("failed to delete old insights: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO insights (id, content, news_analyzed_count, generated_at) VALUES ($1::uuid, $2, $3, $4)`,
		in.ID.String(), in.Content, in.NewsAnalyzedCount, in.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save insight: %w", err)
	}

	return tx.Commit(ctx)
}

// Latest returns the stored insight or nil.
func (s *PostgresStore) Latest(ctx context.Context) (*Insight, error) {
	var (
		in    Insight
		idStr string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, content, news_analyzed_count, generated_at
		FROM insights
		ORDER BY generated_at DESC
		LIMIT 1
	`).Scan(&idStr, &in.Content, &in.NewsAnalyzedCount, &in.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query insight: %w", err)
	}

	in.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse insight id: %w", err)
	}

	return &in, nil
}
