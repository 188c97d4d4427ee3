package insight

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pevans/evmotor/llm"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/news"
	"github.com/pevans/evmotor/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter records requests and answers from a queue.
type fakeCompleter struct {
	requests []llm.Request
	replies  []string
	errs     []error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", llm.ErrEmptyResponse
}

// Test helper: article and insight stores sharing one database
func createTestStores(t *testing.T) (news.Store, *SQLiteStore) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	articles, err := news.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { articles.Close() })

	insights, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { insights.Close() })

	return articles, insights
}

// Test helper: seed n articles dated on consecutive days
func seedArticles(t *testing.T, store news.Store, n int) {
	var batch []news.Article
	for i := range n {
		date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format(news.DateLayout)
		batch = append(batch, news.ArticleFromCandidate(news.Candidate{
			Title:    "Article",
			TitleKR:  "기사",
			Summary:  "요약",
			Category: "유럽",
			Source:   "Electrive",
			Date:     date,
		}, "https://example.com/"+date))
	}
	_, err := store.Upsert(context.Background(), batch)
	require.NoError(t, err)
}

func noSleepPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

// TestAnalyze_StoresInsight verifies the prompt and the stored result
func TestAnalyze_StoresInsight(t *testing.T) {
	ctx := context.Background()
	articles, insights := createTestStores(t)
	seedArticles(t, articles, 3)

	fc := &fakeCompleter{replies: []string{"## 전략 인사이트"}}
	a := NewAnalyzer(Config{Retry: noSleepPolicy()}, articles, insights, fc, logger.Discard())

	in, err := a.Analyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, "## 전략 인사이트", in.Content)
	assert.Equal(t, 3, in.NewsAnalyzedCount)

	require.Len(t, fc.requests, 1)
	req := fc.requests[0]
	assert.Equal(t, systemPrompt, req.System)
	assert.Equal(t, 4000, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.7, *req.Temperature, 1e-9)
	assert.True(t, strings.HasPrefix(req.User, "다음은 최근 3개의 전기차 모터 관련 뉴스입니다:\n\n[유럽] 기사\n요약\n출처: Electrive (2025-01-03)"))
	assert.True(t, strings.HasSuffix(req.User, "전략적 방향을 제시해주세요."))

	latest, err := a.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, in.ID, latest.ID)
}

// TestAnalyze_Limit verifies only the newest articles are sent
func TestAnalyze_Limit(t *testing.T) {
	articles, insights := createTestStores(t)
	seedArticles(t, articles, 60)

	fc := &fakeCompleter{replies: []string{"ok"}}
	a := NewAnalyzer(Config{}, articles, insights, fc, logger.Discard())

	in, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, in.NewsAnalyzedCount)
	assert.Equal(t, 50, strings.Count(fc.requests[0].User, "출처: "))
	assert.NotContains(t, fc.requests[0].User, "(2025-01-10)", "oldest articles excluded")
}

// TestAnalyze_NoArticles verifies the empty-store error
func TestAnalyze_NoArticles(t *testing.T) {
	articles, insights := createTestStores(t)
	fc := &fakeCompleter{}
	a := NewAnalyzer(Config{}, articles, insights, fc, logger.Discard())

	_, err := a.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrNoArticles)
	assert.Empty(t, fc.requests, "no model call without articles")
}

// TestAnalyze_ModelFailureKeepsPrevious verifies a failed call leaves the
// stored insight alone
func TestAnalyze_ModelFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	articles, insights := createTestStores(t)
	seedArticles(t, articles, 1)
	require.NoError(t, insights.Replace(ctx, Insight{Content: "previous"}))

	fc := &fakeCompleter{errs: []error{&llm.StatusError{Code: 401}}}
	a := NewAnalyzer(Config{Retry: noSleepPolicy()}, articles, insights, fc, logger.Discard())

	_, err := a.Analyze(ctx)
	var statusErr *llm.StatusError
	require.True(t, errors.As(err, &statusErr))

	latest, err := insights.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "previous", latest.Content)
}

// TestFormatArticles verifies the block format and title fallback
func TestFormatArticles(t *testing.T) {
	got := FormatArticles([]news.Article{
		{Category: "GM", TitleKR: "GM 모터", Summary: "s1", Source: "Electrek", Date: "2025-01-02"},
		{Category: "BMW", Title: "BMW only English", Summary: "s2", Source: "BMW Group", Date: "2025-01-01"},
	})

	assert.Equal(t, "[GM] GM 모터\ns1\n출처: Electrek (2025-01-02)\n\n[BMW] BMW only English\ns2\n출처: BMW Group (2025-01-01)", got)
}
