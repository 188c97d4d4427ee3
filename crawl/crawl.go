// Package crawl runs one end-to-end news refresh: generate candidates per
// category, validate their links, store the survivors and purge old rows.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pevans/evmotor/generator"
	"github.com/pevans/evmotor/linkcheck"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/metrics"
	"github.com/pevans/evmotor/news"
)

const (
	DefaultCategoryPause = 500 * time.Millisecond
	DefaultRetention     = 60 * 24 * time.Hour
)

var (
	// ErrNoCandidates is returned when no category produced any candidate.
	ErrNoCandidates = errors.New("no articles were generated")
	// ErrRunInProgress is returned when Run is called while another run is
	// active.
	ErrRunInProgress = errors.New("crawl already in progress")
)

// Config holds crawl settings.
type Config struct {
	Categories []generator.Category `yaml:"categories"`
	// Pause between categories. Negative disables it.
	CategoryPause time.Duration `yaml:"category_pause"`
	// Articles dated before now minus Retention are purged after each run.
	Retention time.Duration `yaml:"retention"`
	// Interval between scheduled runs; zero disables scheduling.
	Interval time.Duration `yaml:"interval"`
}

// WithDefaults returns a copy with defaults applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if len(c.Categories) == 0 {
		c.Categories = generator.DefaultCategories()
	}
	if c.CategoryPause == 0 {
		c.CategoryPause = DefaultCategoryPause
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	return c
}

// Validator is the part of linkcheck.Validator the crawl needs.
type Validator interface {
	ValidateBatch(ctx context.Context, candidates []news.Candidate) (*linkcheck.BatchResult, error)
}

// CategoryError records a category skipped because generation failed.
type CategoryError struct {
	Category string
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("category %s: %v", e.Category, e.Err)
}

func (e *CategoryError) Unwrap() error {
	return e.Err
}

// Result summarizes a run.
type Result struct {
	Categories       int                      `json:"categories"`
	CategoriesFailed int                      `json:"categories_failed"`
	Generated        int                      `json:"generated"`
	Accepted         int                      `json:"accepted"`
	Rejected         int                      `json:"rejected"`
	Stored           int                      `json:"count"`
	Purged           int64                    `json:"purged"`
	Rejections       map[linkcheck.Reason]int `json:"rejections"`
	Errors           []*CategoryError         `json:"-"`
	Duration         time.Duration            `json:"-"`
}

// Service orchestrates crawl runs. Only one run executes at a time.
type Service struct {
	generator generator.Generator
	validator Validator
	store     news.Store
	cfg       Config
	now       func() time.Time
	log       *logger.Entry

	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewService creates a crawl service.
func NewService(gen generator.Generator, validator Validator, store news.Store, cfg Config, log *logger.Entry) *Service {
	return &Service{
		generator: gen,
		validator: validator,
		store:     store,
		cfg:       cfg.WithDefaults(),
		now:       time.Now,
		log:       logger.OrDefault(log, "crawl"),
		stopChan:  make(chan struct{}),
	}
}

// Run performs one crawl. Category failures are logged and skipped; the run
// fails only when nothing was generated, nothing passed validation, or the
// store write failed. Nothing is written on failure.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	start := s.now()
	res, err := s.run(ctx)
	res.Duration = s.now().Sub(start)

	if err != nil {
		metrics.CrawlRuns.WithLabelValues("failure").Inc()
		s.log.WithError(err).Error("Crawl failed")
		return res, err
	}

	metrics.CrawlRuns.WithLabelValues("success").Inc()
	s.log.WithFields(map[string]any{
		"generated": res.Generated,
		"accepted":  res.Accepted,
		"stored":    res.Stored,
		"purged":    res.Purged,
	}).Infof("Successfully crawled and stored %d news articles across %d categories", res.Stored, res.Categories)
	return res, nil
}

func (s *Service) run(ctx context.Context) (*Result, error) {
	res := &Result{
		Categories: len(s.cfg.Categories),
		Rejections: map[linkcheck.Reason]int{},
	}
	s.log.Info("Starting news crawling process")

	var candidates []news.Candidate
	for i, cat := range s.cfg.Categories {
		if i > 0 && s.cfg.CategoryPause > 0 {
			if err := sleep(ctx, s.cfg.CategoryPause); err != nil {
				return res, err
			}
		}

		got, err := s.generator.Generate(ctx, cat)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.log.WithField("category", cat.ID).Errorf("Error generating articles: %v", err)
			metrics.GeneratorFailures.WithLabelValues(cat.ID).Inc()
			res.CategoriesFailed++
			res.Errors = append(res.Errors, &CategoryError{Category: cat.ID, Err: err})
			continue
		}

		metrics.GeneratedCandidates.WithLabelValues(cat.ID).Add(float64(len(got)))
		candidates = append(candidates, got...)
	}

	res.Generated = len(candidates)
	if len(candidates) == 0 {
		return res, ErrNoCandidates
	}

	batch, err := s.validator.ValidateBatch(ctx, candidates)
	if batch != nil {
		res.Accepted = len(batch.Accepted)
		res.Rejected = len(batch.Rejected)
		res.Rejections = batch.Rejections()
	}
	if err != nil {
		return res, fmt.Errorf("failed to validate articles: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	articles := make([]news.Article, 0, len(batch.Accepted))
	for _, r := range batch.Accepted {
		articles = append(articles, news.ArticleFromCandidate(r.Candidate, r.URL))
	}

	stored, err := s.store.Upsert(ctx, articles)
	if err != nil {
		return res, fmt.Errorf("failed to store articles: %w", err)
	}
	res.Stored = stored

	purged, err := s.Purge(ctx, s.cfg.Retention)
	if err != nil {
		// Stored rows stay; the next run purges again
		s.log.Warnf("Failed to purge old articles: %v", err)
	}
	res.Purged = purged

	return res, nil
}

// Purge deletes articles dated before now minus olderThan.
func (s *Service) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge articles: %w", err)
	}
	if n > 0 {
		metrics.ArticlesPurged.Add(float64(n))
		s.log.Infof("Purged %d articles older than %s", n, cutoff.Format(news.DateLayout))
	}
	return n, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
