package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-5"

	defaultAnthropicMaxTokens = 1024
)

// AnthropicClient implements Completer on the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

var _ Completer = (*AnthropicClient)(nil)

// NewAnthropicClient creates a client. Retries are left to the caller's
// retry policy.
func NewAnthropicClient(cfg ProviderConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Complete sends one user message and concatenates the text blocks of the
// reply.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", fmt.Errorf("failed to call Anthropic API: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return sb.String(), nil
}
