package news

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps articles in PostgreSQL (the hosted dashboard
// database).
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and ensures the news table exists.
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
		CREATE TABLE IF NOT EXISTS news (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			title_kr TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS news_date_idx ON news (date);
	`)
	return err
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Upsert writes all articles in one transaction, updating rows that already
// hold the same URL.
func (s *PostgresStore) Upsert(ctx context.Context, articles []Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	written := 0
	for _, a := range articles {
		if a.URL == "" {
			return 0, ErrMissingURL
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO news (
				id, title, title_kr, summary, category, source, date, url,
				created_at, updated_at
			) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (url) DO UPDATE SET
				title = EXCLUDED.title,
				title_kr = EXCLUDED.title_kr,
				summary = EXCLUDED.summary,
				category = EXCLUDED.category,
				source = EXCLUDED.source,
				date = EXCLUDED.date,
				updated_at = EXCLUDED.updated_at
		`,
			a.ID.String(), a.Title, a.TitleKR, a.Summary, a.Category,
			a.Source, a.Date, a.URL, a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert article %s: %w", a.URL, err)
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	return written, nil
}

// DeleteOlderThan removes articles whose date is before the cutoff day.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM news WHERE date < $1", cutoffDate(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old articles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns articles ordered by date, newest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Article, error) {
	query := `
		SELECT id::text, title, title_kr, summary, category, source, date, url,
		       created_at, updated_at
		FROM news
	`

	var args []any
	if filter.Category != nil {
		args = append(args, *filter.Category)
		query += fmt.Sprintf(" WHERE category = $%d", len(args))
	}

	query += " ORDER BY date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		var idStr string
		var a Article

		if err := rows.Scan(
			&idStr, &a.Title, &a.TitleKR, &a.Summary, &a.Category,
			&a.Source, &a.Date, &a.URL, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse article ID: %w", err)
		}
		a.ID = id

		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news: %w", err)
	}

	return articles, nil
}

// Count returns the number of stored articles, optionally per category.
func (s *PostgresStore) Count(ctx context.Context, category *string) (int, error) {
	query := "SELECT COUNT(*) FROM news"
	var args []any
	if category != nil {
		query += " WHERE category = $1"
		args = append(args, *category)
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count news: %w", err)
	}
	return n, nil
}
