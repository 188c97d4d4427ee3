package linkcheck

import "time"

// Default configuration values.
const (
	defaultUserAgent      = "Mozilla/5.0 (compatible; evmotor-linkcheck/1.0; +https://github.com/pevans/evmotor)"
	defaultAcceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
	defaultFetchTimeout   = 12 * time.Second
	defaultBatchSize      = 5
	defaultBatchDelay     = 150 * time.Millisecond
	defaultMaxRedirects   = 10
	defaultMaxBodyBytes   = 4 << 20
)

// Config holds the validator's tunables. The lists are data, not code, so
// they can be tuned from the config file.
type Config struct {
	// Registrable domains rejected without a network call.
	Blocklist []string `yaml:"blocklist"`
	// Lower-case fragments that mark a page as paywalled or blocked.
	PaywallMarkers []string `yaml:"paywall_markers"`
	// Lower-case fragments that mark a page title as an error page.
	SoftErrorMarkers []string `yaml:"soft_error_markers"`

	UserAgent      string        `yaml:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	BatchSize      int           `yaml:"batch_size"`
	// Pause between waves. Negative disables it.
	BatchDelay   time.Duration `yaml:"batch_delay"`
	MaxRedirects int           `yaml:"max_redirects"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// DefaultBlocklist lists publishers that routinely block or paywall
// automated fetches.
func DefaultBlocklist() []string {
	return []string{
		"reuters.com",
		"bloomberg.com",
		"wsj.com",
		"ft.com",
		"nytimes.com",
		"economist.com",
		"washingtonpost.com",
		"nikkei.com",
		"barrons.com",
		"theinformation.com",
	}
}

// DefaultPaywallMarkers lists body fragments seen on paywall, registration
// wall and bot-check pages.
func DefaultPaywallMarkers() []string {
	return []string{
		"paywall",
		"subscribe to read",
		"subscribe to continue",
		"subscribers only",
		"captcha",
		"access denied",
		"regwall",
		"are you a robot",
	}
}

// DefaultSoftErrorMarkers lists title fragments of error pages served with
// status 200.
func DefaultSoftErrorMarkers() []string {
	return []string{
		"403",
		"404",
		"forbidden",
		"access denied",
		"not found",
		"page unavailable",
	}
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Blocklist:        DefaultBlocklist(),
		PaywallMarkers:   DefaultPaywallMarkers(),
		SoftErrorMarkers: DefaultSoftErrorMarkers(),
	}.WithDefaults()
}

// WithDefaults returns a copy of the config with default values applied for
// zero-value fields. Empty lists are left empty so they can be disabled.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = defaultAcceptLanguage
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchDelay == 0 {
		c.BatchDelay = defaultBatchDelay
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c
}
