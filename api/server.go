// Package api serves the dashboard HTTP API: news listing, insights and
// on-demand crawl and analysis runs.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/evmotor/crawl"
	"github.com/pevans/evmotor/insight"
	"github.com/pevans/evmotor/linkcheck"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/metrics"
	"github.com/pevans/evmotor/news"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Crawler runs a crawl.
type Crawler interface {
	Run(ctx context.Context) (*crawl.Result, error)
}

// Analyzer generates and reads insights.
type Analyzer interface {
	Analyze(ctx context.Context) (*insight.Insight, error)
	Latest(ctx context.Context) (*insight.Insight, error)
}

// Checker validates a single candidate.
type Checker interface {
	ValidateOne(ctx context.Context, c news.Candidate) linkcheck.Result
}

// APIServer holds the handlers' dependencies.
type APIServer struct {
	articles news.Store
	crawler  Crawler
	analyzer Analyzer
	checker  Checker
	log      *logger.Entry
}

// NewAPIServer creates an API server. Nil collaborators disable their
// routes' functionality with 503 responses.
func NewAPIServer(articles news.Store, crawler Crawler, analyzer Analyzer, checker Checker, log *logger.Entry) *APIServer {
	return &APIServer{
		articles: articles,
		crawler:  crawler,
		analyzer: analyzer,
		checker:  checker,
		log:      logger.OrDefault(log, "api"),
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")
	api.GET("/news", s.HandleListNews)
	api.GET("/insights/latest", s.HandleLatestInsight)
	api.POST("/crawl", s.HandleCrawl)
	api.POST("/analyze", s.HandleAnalyze)
	api.POST("/check", s.HandleCheck)

	return router
}

// corsMiddleware allows the dashboard origin and answers preflight requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func (s *APIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.WithFields(map[string]any{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	}
}

// errorResponse builds the JSON error envelope.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// ListNewsResponse is the body of GET /api/v1/news.
type ListNewsResponse struct {
	News   []news.Article `json:"news"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// HandleListNews handles GET /api/v1/news.
func (s *APIServer) HandleListNews(c *gin.Context) {
	var category *string
	if cat := strings.TrimSpace(c.Query("category")); cat != "" {
		category = &cat
	}

	limit := defaultLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid limit parameter"))
			return
		}
		limit = min(parsed, maxLimit)
	}

	offset := 0
	if offsetParam := c.Query("offset"); offsetParam != "" {
		parsed, err := strconv.Atoi(offsetParam)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid offset parameter"))
			return
		}
		offset = parsed
	}

	ctx := c.Request.Context()
	articles, err := s.articles.List(ctx, news.Filter{Category: category, Limit: limit, Offset: offset})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to list news: "+err.Error()))
		return
	}

	total, err := s.articles.Count(ctx, category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to count news: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, ListNewsResponse{
		News:   articles,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// HandleLatestInsight handles GET /api/v1/insights/latest.
func (s *APIServer) HandleLatestInsight(c *gin.Context) {
	if s.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", "Analysis is not configured"))
		return
	}

	in, err := s.analyzer.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to get insight: "+err.Error()))
		return
	}
	if in == nil {
		c.JSON(http.StatusNotFound, errorResponse("not_found", "No insight has been generated yet"))
		return
	}

	c.JSON(http.StatusOK, in)
}

// HandleCrawl handles POST /api/v1/crawl.
func (s *APIServer) HandleCrawl(c *gin.Context) {
	if s.crawler == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", "Crawling is not configured"))
		return
	}

	res, err := s.crawler.Run(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, crawl.ErrRunInProgress):
			c.JSON(http.StatusConflict, errorResponse("crawl_in_progress", err.Error()))
		case errors.Is(err, crawl.ErrNoCandidates), errors.Is(err, linkcheck.ErrNoneAccepted):
			c.JSON(http.StatusInternalServerError, errorResponse("crawl_failed", err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      res.Stored,
		"categories": res.Categories,
		"generated":  res.Generated,
		"accepted":   res.Accepted,
		"rejected":   res.Rejected,
		"purged":     res.Purged,
		"rejections": res.Rejections,
	})
}

// HandleAnalyze handles POST /api/v1/analyze.
func (s *APIServer) HandleAnalyze(c *gin.Context) {
	if s.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", "Analysis is not configured"))
		return
	}

	in, err := s.analyzer.Analyze(c.Request.Context())
	if err != nil {
		if errors.Is(err, insight.ErrNoArticles) {
			c.JSON(http.StatusNotFound, errorResponse("not_found", "No news articles found to analyze"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"insight": in,
		"message": "News analysis completed successfully",
	})
}

// CheckRequest is the body of POST /api/v1/check.
type CheckRequest struct {
	URL     string `json:"url" binding:"required"`
	Title   string `json:"title"`
	TitleKR string `json:"title_kr"`
}

// CheckResponse reports a single validation decision.
type CheckResponse struct {
	Accepted bool   `json:"accepted"`
	URL      string `json:"url,omitempty"`
	Reason   string `json:"reason"`
	Error    string `json:"error,omitempty"`
}

// HandleCheck handles POST /api/v1/check, validating one URL against a
// claimed title.
func (s *APIServer) HandleCheck(c *gin.Context) {
	if s.checker == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", "Link checking is not configured"))
		return
	}

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid_request", "Invalid request body: "+err.Error()))
		return
	}

	res := s.checker.ValidateOne(c.Request.Context(), news.Candidate{
		Title:   req.Title,
		TitleKR: req.TitleKR,
		URL:     req.URL,
	})

	resp := CheckResponse{Accepted: res.Accepted, URL: res.URL, Reason: string(res.Reason)}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
