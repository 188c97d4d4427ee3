package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pevans/evmotor/llm"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/news"
	"github.com/pevans/evmotor/retry"
)

const (
	systemPrompt = "You are a news content generator. Always respond with valid JSON array only, without any markdown formatting."

	maxTokens = 2000
)

// ParseError is returned when the model's reply is not a JSON array of
// candidates.
type ParseError struct {
	Category string
	Content  string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse generated articles for %s: %v", e.Category, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LLMGenerator asks a language model for candidate articles.
type LLMGenerator struct {
	completer llm.Completer
	policy    retry.Policy
	log       *logger.Entry
}

var _ Generator = (*LLMGenerator)(nil)

// NewLLMGenerator creates a generator. When policy.IsRetryable is nil only
// rate limits, server errors and timeouts are retried.
func NewLLMGenerator(completer llm.Completer, policy retry.Policy, log *logger.Entry) *LLMGenerator {
	if policy.IsRetryable == nil {
		policy.IsRetryable = llm.IsRetryable
	}
	return &LLMGenerator{
		completer: completer,
		policy:    policy,
		log:       logger.OrDefault(log, "generator"),
	}
}

// Generate requests category.Count articles and parses the reply.
func (g *LLMGenerator) Generate(ctx context.Context, category Category) ([]news.Candidate, error) {
	log := g.log.WithField("category", category.ID)
	log.Infof("Generating %d articles", category.count())

	req := llm.Request{
		System:    systemPrompt,
		User:      BuildPrompt(category),
		MaxTokens: maxTokens,
	}

	attempt := 0
	var content string
	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		attempt++
		text, err := g.completer.Complete(ctx, req)
		if err != nil {
			log.WithField("attempt", attempt).Warnf("AI request failed: %v", err)
			return err
		}
		content = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate articles for %s: %w", category.ID, err)
	}

	candidates, err := ParseCandidates(content)
	if err != nil {
		return nil, &ParseError{Category: category.ID, Content: content, Err: err}
	}

	candidates = finalize(candidates, category)
	log.Infof("Successfully generated %d articles", len(candidates))
	return candidates, nil
}

// BuildPrompt renders the user prompt for a category.
func BuildPrompt(c Category) string {
	n := c.count()
	return fmt.Sprintf(`Generate %[1]d unique and diverse news articles about %[2]s in the global electric vehicle motors industry.

Return ONLY a valid JSON array with exactly %[1]d articles, each having:
- title: English headline (unique and specific to %[3]s)
- title_kr: Korean translation of the title
- summary: 2-3 sentence summary in Korean about the news
- category: "%[3]s"
- source: realistic news source name (e.g., Reuters, Bloomberg, TechCrunch, etc.)
- date: original publication date in YYYY-MM-DD format (vary dates within last 30 days)
- url: realistic news URL with proper domain

Make sure all articles are:
1. Completely different from each other
2. Specifically relevant to %[3]s
3. Realistic and industry-appropriate
4. Have proper Korean summaries

Return ONLY the JSON array, no markdown formatting.`, n, c.Context, c.ID)
}

// StripCodeFence returns the body of the first ```json or ``` fenced block,
// or s trimmed when there is none.
func StripCodeFence(s string) string {
	if _, after, ok := strings.Cut(s, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(s, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(s)
}

// ParseCandidates decodes a model reply into candidates. Code fences are
// stripped and text around the outermost array is ignored.
func ParseCandidates(content string) ([]news.Candidate, error) {
	body := StripCodeFence(content)

	var candidates []news.Candidate
	err := json.Unmarshal([]byte(body), &candidates)
	if err == nil {
		return candidates, nil
	}

	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end <= start {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}
