package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pevans/evmotor/config"
	"github.com/pevans/evmotor/crawl"
	"github.com/pevans/evmotor/generator"
	"github.com/pevans/evmotor/insight"
	"github.com/pevans/evmotor/linkcheck"
	"github.com/pevans/evmotor/llm"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/news"
)

// app holds the wired components for one command invocation. crawler and
// analyzer are nil when no model credentials are configured. checker serves
// API checks and only fetches public addresses.
type app struct {
	cfg       *config.FileConfig
	log       *logger.Entry
	articles  news.Store
	insights  insight.Store
	validator *linkcheck.Validator
	checker   *linkcheck.Validator
	crawler   *crawl.Service
	analyzer  *insight.Analyzer
}

// newApp loads configuration, initializes logging and opens storage. When
// requireModel is set a missing API key is fatal; otherwise the model-backed
// components are left nil.
func newApp(ctx context.Context, configPath string, requireModel bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.For("evmotor")

	articles, err := news.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	insights, err := insight.Open(ctx, cfg.Storage)
	if err != nil {
		articles.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		articles:  articles,
		insights:  insights,
		validator: linkcheck.New(cfg.Validator, linkcheck.NewHTTPFetcher(cfg.Validator), logger.For("linkcheck")),
		checker:   linkcheck.New(cfg.Validator, linkcheck.NewPublicHTTPFetcher(cfg.Validator), logger.For("linkcheck")),
	}

	completer, err := llm.NewCompleter(cfg.LLM)
	switch {
	case err == nil:
		a.crawler = crawl.NewService(a.buildGenerator(completer), a.validator, articles, cfg.Crawl, logger.For("crawl"))
		a.analyzer = insight.NewAnalyzer(cfg.Insight, articles, insights, completer, logger.For("insight"))
	case errors.Is(err, llm.ErrMissingAPIKey) && !requireModel:
		log.Warnf("No API key for provider %q; crawl and analysis are disabled", cfg.LLM.Provider)
	default:
		a.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	return a, nil
}

func (a *app) buildGenerator(completer llm.Completer) generator.Generator {
	var gen generator.Generator = generator.NewLLMGenerator(completer, a.cfg.Generator.Retry, logger.For("generator"))
	if !a.cfg.Generator.UseFeeds {
		return gen
	}

	client := &http.Client{Timeout: a.cfg.Validator.WithDefaults().FetchTimeout}
	feeds := generator.NewFeedGenerator(client, a.cfg.Validator.UserAgent, logger.For("feeds"))
	return generator.MultiGenerator{gen, feeds}
}

// Close releases storage handles.
func (a *app) Close() {
	if a.insights != nil {
		a.insights.Close()
	}
	if a.articles != nil {
		a.articles.Close()
	}
}
