package news

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps articles in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the news table if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS news (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		title_kr TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS news_date_idx ON news (date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert writes all articles in one transaction. A row whose URL already
// exists keeps its id and created_at; every other column is replaced.
func (s *SQLiteStore) Upsert(ctx context.Context, articles []Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO news (
			id, title, title_kr, summary, category, source, date, url,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			title = excluded.title,
			title_kr = excluded.title_kr,
			summary = excluded.summary,
			category = excluded.category,
			source = excluded.source,
			date = excluded.date,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, a := range articles {
		if a.URL == "" {
			return 0, ErrMissingURL
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx,
			a.ID.String(), a.Title, a.TitleKR, a.Summary, a.Category,
			a.Source, a.Date, a.URL,
			formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
		); err != nil {
			return 0, fmt.Errorf("failed to upsert article %s: %w", a.URL, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	return written, nil
}

// DeleteOlderThan removes articles whose date is before the cutoff day.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM news WHERE date < ?", cutoffDate(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old articles: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// List returns articles ordered by date, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Article, error) {
	query := `
		SELECT id, title, title_kr, summary, category, source, date, url,
		       created_at, updated_at
		FROM news
	`

	var args []any
	if filter.Category != nil {
		query += " WHERE category = ?"
		args = append(args, *filter.Category)
	}

	query += " ORDER BY date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			// SQLite requires a LIMIT before OFFSET
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		var idStr, createdAtStr, updatedAtStr string
		var a Article

		if err := rows.Scan(
			&idStr, &a.Title, &a.TitleKR, &a.Summary, &a.Category,
			&a.Source, &a.Date, &a.URL, &createdAtStr, &updatedAtStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse article ID: %w", err)
		}
		a.ID = id
		a.CreatedAt = parseTime(createdAtStr)
		a.UpdatedAt = parseTime(updatedAtStr)

		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news: %w", err)
	}

	return articles, nil
}

// Count returns the number of stored articles, optionally per category.
func (s *SQLiteStore) Count(ctx context.Context, category *string) (int, error) {
	query := "SELECT COUNT(*) FROM news"
	var args []any
	if category != nil {
		query += " WHERE category = ?"
		args = append(args, *category)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count news: %w", err)
	}
	return n, nil
}

// Helper functions for time formatting
func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.UTC().Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}

