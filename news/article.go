package news

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the layout of Candidate.Date and Article.Date.
const DateLayout = "2006-01-02"

var (
	ErrUnknownStorageType = errors.New("storage type must be sqlite or postgres")
	ErrMissingURL         = errors.New("article url is required")
)

// Candidate is a news item claimed by a generator. Its URL has not been
// checked yet.
type Candidate struct {
	Title    string `json:"title"`
	TitleKR  string `json:"title_kr"`
	Summary  string `json:"summary"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Date     string `json:"date"`
	URL      string `json:"url"`
}

// Article is a validated news item as stored. URL is unique.
type Article struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	TitleKR   string    `json:"title_kr"`
	Summary   string    `json:"summary"`
	Category  string    `json:"category"`
	Source    string    `json:"source"`
	Date      string    `json:"date"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter narrows List results.
type Filter struct {
	Category *string
	Limit    int
	Offset   int
}

// Store persists articles keyed by URL.
type Store interface {
	// Upsert inserts articles, updating the existing row when the URL is
	// already stored. Returns the number of rows written.
	Upsert(ctx context.Context, articles []Article) (int, error)
	// DeleteOlderThan removes articles dated before the cutoff day.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// List returns articles newest first.
	List(ctx context.Context, filter Filter) ([]Article, error)
	// Count returns the number of stored articles, all categories when
	// category is nil.
	Count(ctx context.Context, category *string) (int, error)
	Close() error
}

// ArticleFromCandidate builds a storable article from an accepted candidate
// and the URL it resolved to.
func ArticleFromCandidate(c Candidate, url string) Article {
	now := time.Now().UTC().Truncate(time.Microsecond)

	date := c.Date
	if _, err := time.Parse(DateLayout, date); err != nil {
		// Generators occasionally emit full timestamps or nothing at all
		date = normalizeDate(date, now)
	}

	title := c.Title
	if title == "" {
		title = c.TitleKR
	}

	return Article{
		ID:        uuid.New(),
		Title:     title,
		TitleKR:   c.TitleKR,
		Summary:   c.Summary,
		Category:  c.Category,
		Source:    c.Source,
		Date:      date,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// normalizeDate coerces common timestamp layouts to YYYY-MM-DD, falling back
// to the given time.
func normalizeDate(s string, fallback time.Time) string {
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006/01/02", "2006.01.02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse(DateLayout, s[:10]); err == nil {
			return t.Format(DateLayout)
		}
	}
	return fallback.Format(DateLayout)
}

// cutoffDate formats a retention cutoff for comparison against stored dates.
func cutoffDate(t time.Time) string {
	return t.Format(DateLayout)
}
