package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultGatewayURL   = "https://ai.gateway.lovable.dev"
	DefaultGatewayModel = "google/gemini-2.5-flash"

	defaultTimeout = 90 * time.Second
)

// GatewayClient talks to an OpenAI-compatible chat completions endpoint.
type GatewayClient struct {
	client openai.Client
	model  string
}

var _ Completer = (*GatewayClient)(nil)

// NewGatewayClient creates a gateway client. Zero-value fields fall back to
// the Lovable gateway defaults. Retries are left to the caller's retry
// policy.
func NewGatewayClient(cfg ProviderConfig) *GatewayClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGatewayURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGatewayModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &GatewayClient{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/v1/"),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(timeout),
		),
		model: model,
	}
}

// Complete posts the request to /v1/chat/completions and returns the first
// choice's content.
func (c *GatewayClient) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", fmt.Errorf("failed to call AI gateway: %w", err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return completion.Choices[0].Message.Content, nil
}
