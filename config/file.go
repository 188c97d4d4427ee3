// Package config loads the evmotor configuration: a YAML file, then .env
// files, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pevans/evmotor/crawl"
	"github.com/pevans/evmotor/insight"
	"github.com/pevans/evmotor/linkcheck"
	"github.com/pevans/evmotor/llm"
	"github.com/pevans/evmotor/news"
	"github.com/pevans/evmotor/retry"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config path.
const EnvConfigPath = "EVMOTOR_CONFIG"

// GeneratorConfig configures candidate generation.
type GeneratorConfig struct {
	Retry retry.Policy `yaml:"retry"`
	// UseFeeds adds the category feeds as a second candidate source.
	UseFeeds bool `yaml:"use_feeds"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// FileConfig represents the structure of ~/.evmotor/config.yaml.
type FileConfig struct {
	Storage   news.StorageConfig `yaml:"storage"`
	LLM       llm.ProviderConfig `yaml:"llm"`
	Validator linkcheck.Config   `yaml:"validator"`
	Generator GeneratorConfig    `yaml:"generator"`
	Crawl     crawl.Config       `yaml:"crawl"`
	Insight   insight.Config     `yaml:"insight"`
	Server    ServerConfig       `yaml:"server"`
	Log       LogConfig          `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *FileConfig {
	return &FileConfig{
		Storage:   news.StorageConfig{Type: "sqlite", DSN: "evmotor.db"},
		LLM:       llm.ProviderConfig{Provider: llm.ProviderGateway},
		Validator: linkcheck.DefaultConfig(),
		Generator: GeneratorConfig{Retry: retry.DefaultPolicy()},
		Crawl:     crawl.Config{}.WithDefaults(),
		Insight:   insight.Config{Limit: insight.DefaultLimit, Retry: retry.DefaultPolicy()},
		Server:    ServerConfig{Addr: ":8080"},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// DefaultPath returns ~/.evmotor/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".evmotor", "config.yaml"), nil
}

// ResolvePath picks the config path: the flag value, else $EVMOTOR_CONFIG,
// else the default path.
func ResolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	return DefaultPath()
}

// LoadConfigFile reads the YAML file at path over the defaults. A missing
// file is not an error and yields the defaults; a file that exists but
// cannot be parsed is.
func LoadConfigFile(path string) (*FileConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil // File doesn't exist -- not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load resolves the config path, reads the file, loads .env files, applies
// environment overrides and validates the result.
func Load(flagPath string) (*FileConfig, error) {
	path, err := ResolvePath(flagPath)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
