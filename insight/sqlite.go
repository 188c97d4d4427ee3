package insight

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps insights in a SQLite database, usually the same file as
// the articles.
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

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS insights (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		news_analyzed_count INTEGER NOT NULL DEFAULT 0,
		generated_at TEXT NOT NULL
	);
	`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Replace swaps the stored insight for in within one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, in Insight) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights`); err != nil {
		return fmt.Errorf("failed to delete old insights: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO insights (id, content, news_analyzed_count, generated_at) VALUES (?, ?, ?, ?)`,
		in.ID.String(), in.Content, in.NewsAnalyzedCount, in.GeneratedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save insight: %w", err)
	}

	return tx.Commit()
}

// Latest returns the stored insight or nil.
func (s *SQLiteStore) Latest(ctx context.Context) (*Insight, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, news_analyzed_count, generated_at
		FROM insights
		ORDER BY generated_at DESC
		LIMIT 1
	`)

	var (
		in          Insight
		idStr       string
		generatedAt string
	)
	err := row.Scan(&idStr, &in.Content, &in.NewsAnalyzedCount, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query insight: %w", err)
	}

	in.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse insight id: %w", err)
	}
	in.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated_at: %w", err)
	}

	return &in, nil
}
