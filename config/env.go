package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pevans/evmotor/llm"
)

var (
	ErrInvalidStorageType = errors.New("storage type must be sqlite or postgres")
	ErrInvalidBatchSize   = errors.New("validator batch_size must be positive")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidLogFormat   = errors.New("log format must be json or text")
	ErrInvalidProvider    = errors.New("llm provider must be gateway or anthropic")
)

// LoadDotEnv loads .env.local and then .env from the working directory.
// Variables already set are never overwritten, and missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *FileConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv("EVMOTOR_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}

	switch strings.ToLower(c.LLM.Provider) {
	case llm.ProviderAnthropic:
		if v := getenv("ANTHROPIC_API_KEY"); v != "" {
			c.LLM.APIKey = v
		}
	default:
		if v := getenv("LOVABLE_API_KEY"); v != "" {
			c.LLM.APIKey = v
		}
	}

	storageTypeSet := false
	if v := getenv("EVMOTOR_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
		storageTypeSet = true
	}
	if v := getenv("EVMOTOR_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	} else if v := getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
		if !storageTypeSet && isPostgresDSN(v) {
			c.Storage.Type = "postgres"
		}
	}

	if v := getenv("EVMOTOR_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("EVMOTOR_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("EVMOTOR_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *FileConfig) Validate() error {
	switch c.Storage.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStorageType, c.Storage.Type)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "", llm.ProviderGateway, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.LLM.Provider)
	}

	if c.Validator.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}

	seen := make(map[string]bool, len(c.Crawl.Categories))
	for i, cat := range c.Crawl.Categories {
		id := strings.TrimSpace(cat.ID)
		if id == "" {
			return fmt.Errorf("%w: category %d has no id", ErrInvalidCategory, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidCategory, id)
		}
		if strings.TrimSpace(cat.Context) == "" {
			return fmt.Errorf("%w: %q has no context", ErrInvalidCategory, id)
		}
		if cat.Count < 0 {
			return fmt.Errorf("%w: %q has a negative count", ErrInvalidCategory, id)
		}
		seen[id] = true
	}

	return nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
