package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/evmotor/crawl"
	"github.com/pevans/evmotor/insight"
	"github.com/pevans/evmotor/linkcheck"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/news"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCrawler struct {
	res *crawl.Result
	err error
}

func (f *fakeCrawler) Run(ctx context.Context) (*crawl.Result, error) {
	return f.res, f.err
}

type fakeAnalyzer struct {
	latest  *insight.Insight
	created *insight.Insight
	err     error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context) (*insight.Insight, error) {
	return f.created, f.err
}

func (f *fakeAnalyzer) Latest(ctx context.Context) (*insight.Insight, error) {
	return f.latest, nil
}

type fakeChecker struct {
	got news.Candidate
	res linkcheck.Result
}

func (f *fakeChecker) ValidateOne(ctx context.Context, c news.Candidate) linkcheck.Result {
	f.got = c
	return f.res
}

// Test helper: create a store seeded with n articles in category "battery"
func setupTestStore(t *testing.T, n int) news.Store {
	store, err := news.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var articles []news.Article
	for i := range n {
		articles = append(articles, news.ArticleFromCandidate(news.Candidate{
			Title:    fmt.Sprintf("Battery story %d", i),
			Category: "battery",
			Source:   "Example",
			Date:     fmt.Sprintf("2025-05-%02d", i+1),
		}, fmt.Sprintf("https://example.com/battery/%d", i)))
	}
	articles = append(articles, news.ArticleFromCandidate(news.Candidate{
		Title:    "Motor story",
		Category: "motor",
		Date:     "2025-05-01",
	}, "https://example.com/motor/1"))

	_, err = store.Upsert(context.Background(), articles)
	require.NoError(t, err)
	return store
}

// Test helper: perform a request against the router
func doRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Test helper: decode the error envelope code
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

// TestHandleListNews verifies category filtering and paging
func TestHandleListNews(t *testing.T) {
	store := setupTestStore(t, 3)
	router := NewAPIServer(store, nil, nil, nil, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/news?category=battery&limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListNewsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
	require.Len(t, resp.News, 2)
	assert.Equal(t, "Battery story 2", resp.News[0].Title)
	assert.Equal(t, "Battery story 1", resp.News[1].Title)

	w = doRequest(t, router, http.MethodGet, "/api/v1/news", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, defaultLimit, resp.Limit)
	assert.Len(t, resp.News, 4)
}

// TestHandleListNews_LimitCapped verifies oversized limits are clamped
func TestHandleListNews_LimitCapped(t *testing.T) {
	router := NewAPIServer(setupTestStore(t, 1), nil, nil, nil, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/news?limit=5000", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListNewsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, maxLimit, resp.Limit)
}

// TestHandleListNews_InvalidParams verifies 400 responses for bad paging
func TestHandleListNews_InvalidParams(t *testing.T) {
	router := NewAPIServer(setupTestStore(t, 1), nil, nil, nil, logger.Discard()).SetupRouter()

	for _, q := range []string{"limit=abc", "limit=0", "offset=-1", "offset=x"} {
		w := doRequest(t, router, http.MethodGet, "/api/v1/news?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, "invalid_parameter", errorCode(t, w), q)
	}
}

// TestCORS verifies preflight handling and headers
func TestCORS(t *testing.T) {
	router := NewAPIServer(setupTestStore(t, 0), nil, nil, nil, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodOptions, "/api/v1/crawl", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "x-client-info")
}

// TestHealthAndMetrics verifies the operational endpoints respond
func TestHealthAndMetrics(t *testing.T) {
	router := NewAPIServer(setupTestStore(t, 0), nil, nil, nil, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evmotor_")
}

// TestHandleCrawl verifies the success body
func TestHandleCrawl(t *testing.T) {
	crawler := &fakeCrawler{res: &crawl.Result{
		Categories: 16,
		Generated:  40,
		Accepted:   30,
		Rejected:   10,
		Stored:     30,
		Purged:     2,
		Rejections: map[linkcheck.Reason]int{linkcheck.ReasonOK: 30, linkcheck.ReasonFetchFailed: 10},
	}}
	router := NewAPIServer(setupTestStore(t, 0), crawler, nil, nil, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/crawl", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 30, body["count"])
	assert.EqualValues(t, 16, body["categories"])
	assert.EqualValues(t, 2, body["purged"])
	rejections := body["rejections"].(map[string]any)
	assert.EqualValues(t, 10, rejections[string(linkcheck.ReasonFetchFailed)])
}

// TestHandleCrawl_Errors verifies error mapping
func TestHandleCrawl_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"in progress", crawl.ErrRunInProgress, http.StatusConflict, "crawl_in_progress"},
		{"no candidates", crawl.ErrNoCandidates, http.StatusInternalServerError, "crawl_failed"},
		{"none accepted", fmt.Errorf("failed to validate articles: %w", linkcheck.ErrNoneAccepted), http.StatusInternalServerError, "crawl_failed"},
		{"storage", fmt.Errorf("failed to store articles: boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crawler := &fakeCrawler{res: &crawl.Result{}, err: tt.err}
			router := NewAPIServer(setupTestStore(t, 0), crawler, nil, nil, logger.Discard()).SetupRouter()

			w := doRequest(t, router, http.MethodPost, "/api/v1/crawl", "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

// TestHandleCrawl_NotConfigured verifies a missing crawler yields 503
func TestHandleCrawl_NotConfigured(t *testing.T) {
	router := NewAPIServer(setupTestStore(t, 0), nil, nil, nil, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/crawl", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestHandleAnalyze verifies success and the no-articles case
func TestHandleAnalyze(t *testing.T) {
	created := &insight.Insight{Content: "## 핵심 트렌드", GeneratedAt: time.Now().UTC(), NewsAnalyzedCount: 12}
	analyzer := &fakeAnalyzer{created: created}
	router := NewAPIServer(setupTestStore(t, 0), nil, analyzer, nil, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/analyze", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool            `json:"success"`
		Insight insight.Insight `json:"insight"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 12, body.Insight.NewsAnalyzedCount)
	assert.Equal(t, "News analysis completed successfully", body.Message)

	analyzer.err = insight.ErrNoArticles
	w = doRequest(t, router, http.MethodPost, "/api/v1/analyze", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))
}

// TestHandleLatestInsight verifies 404 before any insight and 200 after
func TestHandleLatestInsight(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	router := NewAPIServer(setupTestStore(t, 0), nil, analyzer, nil, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/insights/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	analyzer.latest = &insight.Insight{Content: "summary", NewsAnalyzedCount: 3}
	w = doRequest(t, router, http.MethodGet, "/api/v1/insights/latest", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got insight.Insight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "summary", got.Content)
}

// TestHandleCheck verifies request binding and the response shape
func TestHandleCheck(t *testing.T) {
	checker := &fakeChecker{res: linkcheck.Result{
		Accepted: true,
		URL:      "https://example.com/a",
		Reason:   linkcheck.ReasonOK,
	}}
	router := NewAPIServer(setupTestStore(t, 0), nil, nil, checker, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/check", `{"url":"https://example.com/a?utm_source=x","title":"Solid state battery"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Solid state battery", checker.got.Title)

	var resp CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, "https://example.com/a", resp.URL)
	assert.Equal(t, string(linkcheck.ReasonOK), resp.Reason)

	w = doRequest(t, router, http.MethodPost, "/api/v1/check", `{"title":"no url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", errorCode(t, w))
}

// TestHandleCheck_RefusesInternalTargets verifies the check route, wired with
// the public-only fetcher, never reaches a loopback service
func TestHandleCheck_RefusesInternalTargets(t *testing.T) {
	hit := false
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		_, _ = w.Write([]byte("<html><title>admin</title></html>"))
	}))
	t.Cleanup(internal.Close)

	cfg := linkcheck.DefaultConfig()
	checker := linkcheck.New(cfg, linkcheck.NewPublicHTTPFetcher(cfg), logger.Discard())
	router := NewAPIServer(setupTestStore(t, 0), nil, nil, checker, logger.Discard()).SetupRouter()

	w := doRequest(t, router, http.MethodPost, "/api/v1/check", `{"url":"`+internal.URL+`/admin","title":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	assert.Equal(t, string(linkcheck.ReasonFetchFailed), resp.Reason)
	assert.Contains(t, resp.Error, "non-public address")
	assert.False(t, hit)
}
