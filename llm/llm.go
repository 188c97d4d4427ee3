// Package llm wraps the chat-completion backends used to generate candidate
// news and strategic insights.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Provider names accepted by NewCompleter.
const (
	ProviderGateway   = "gateway"
	ProviderAnthropic = "anthropic"
)

var (
	// ErrMissingAPIKey is returned when a provider is configured without a key.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrEmptyResponse is returned when the provider answers with no text.
	ErrEmptyResponse = errors.New("empty completion response")
	// ErrUnknownProvider is returned for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown LLM provider")
)

// Request is a single system+user exchange.
type Request struct {
	System    string
	User      string
	MaxTokens int
	// Temperature is left to the provider default when nil.
	Temperature *float64
}

// Completer sends a request and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("AI API error: %d", e.Code)
	}
	return fmt.Sprintf("AI API error: %d: %s", e.Code, body)
}

// Retryable reports whether the status is worth another attempt: rate
// limiting or a server-side failure.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// IsRetryable classifies errors returned by a Completer.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NewCompleter builds the Completer named by cfg.Provider. An empty provider
// means the gateway.
func NewCompleter(cfg ProviderConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGateway:
		return NewGatewayClient(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// Float returns a pointer to f, for Request.Temperature.
func Float(f float64) *float64 {
	return &f
}
