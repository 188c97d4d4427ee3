package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/evmotor/llm"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/news"
	"github.com/pevans/evmotor/retry"
)

// ErrNoArticles is returned when there is nothing to analyze.
var ErrNoArticles = errors.New("no news articles found to analyze")

const (
	// DefaultLimit is how many of the newest articles are analyzed.
	DefaultLimit = 50

	temperature = 0.7
	maxTokens   = 4000
)

const systemPrompt = `당신은 전기차 모터 산업 전문가입니다. 뉴스 기사들을 분석하여 모터 제조 회사가 나아가야 할 방향에 대한 전략적 인사이트를 제공해주세요.

다음 관점에서 분석해주세요:
1. 시장 트렌드 및 경쟁 환경
2. 핵심 기술 동향 (SiC, 800V 시스템, 효율성 개선 등)
3. 지역별 시장 기회
4. 공급망 및 제조 전략
5. 향후 6-12개월 내 집중해야 할 핵심 영역

분석은 한국어로 작성하되, 구체적이고 실행 가능한 인사이트를 제공해주세요.`

// Config tunes the analyzer.
type Config struct {
	Limit int          `yaml:"limit"`
	Retry retry.Policy `yaml:"retry"`
}

// Analyzer summarizes recent articles into an Insight.
type Analyzer struct {
	articles  news.Store
	insights  Store
	completer llm.Completer
	limit     int
	policy    retry.Policy
	now       func() time.Time
	log       *logger.Entry
}

// NewAnalyzer creates an analyzer reading from articles and writing to
// insights.
func NewAnalyzer(cfg Config, articles news.Store, insights Store, completer llm.Completer, log *logger.Entry) *Analyzer {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	policy := cfg.Retry
	if policy.IsRetryable == nil {
		policy.IsRetryable = llm.IsRetryable
	}

	return &Analyzer{
		articles:  articles,
		insights:  insights,
		completer: completer,
		limit:     limit,
		policy:    policy,
		now:       time.Now,
		log:       logger.OrDefault(log, "insight"),
	}
}

// Analyze reads the newest articles, asks the model for a strategic analysis
// and stores it as the only insight.
func (a *Analyzer) Analyze(ctx context.Context) (*Insight, error) {
	a.log.Info("Starting news analysis")

	articles, err := a.articles.List(ctx, news.Filter{Limit: a.limit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}

	req := llm.Request{
		System:      systemPrompt,
		User:        UserPrompt(articles),
		MaxTokens:   maxTokens,
		Temperature: llm.Float(temperature),
	}

	var content string
	err = retry.Do(ctx, a.policy, func(ctx context.Context) error {
		text, err := a.completer.Complete(ctx, req)
		if err != nil {
			a.log.Warnf("AI request failed: %v", err)
			return err
		}
		content = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze news: %w", err)
	}

	in := Insight{
		ID:                uuid.New(),
		Content:           content,
		GeneratedAt:       a.now().UTC().Truncate(time.Microsecond),
		NewsAnalyzedCount: len(articles),
	}
	if err := a.insights.Replace(ctx, in); err != nil {
		return nil, fmt.Errorf("failed to save insight: %w", err)
	}

	a.log.WithField("news_analyzed_count", in.NewsAnalyzedCount).Info("Analysis completed successfully")
	return &in, nil
}

// Latest returns the stored insight, nil when none has been generated.
func (a *Analyzer) Latest(ctx context.Context) (*Insight, error) {
	return a.insights.Latest(ctx)
}

// UserPrompt renders the user message for a set of articles.
func UserPrompt(articles []news.Article) string {
	return fmt.Sprintf(
		"다음은 최근 %d개의 전기차 모터 관련 뉴스입니다:\n\n%s\n\n이 뉴스들을 종합적으로 분석하여 우리 회사(모터 제조사)가 나아가야 할 전략적 방향을 제시해주세요.",
		len(articles), FormatArticles(articles),
	)
}

// FormatArticles renders articles as blank-line separated blocks of
// "[category] title\nsummary\n출처: source (date)".
func FormatArticles(articles []news.Article) string {
	blocks := make([]string, 0, len(articles))
	for _, a := range articles {
		title := a.TitleKR
		if title == "" {
			title = a.Title
		}
		blocks = append(blocks, fmt.Sprintf("[%s] %s\n%s\n출처: %s (%s)", a.Category, title, a.Summary, a.Source, a.Date))
	}
	return strings.Join(blocks, "\n\n")
}
