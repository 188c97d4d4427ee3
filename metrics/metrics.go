// Package metrics holds the Prometheus collectors shared by the crawl and
// link validation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evmotor"

var (
	// LinkResults counts validation decisions by outcome (accepted/rejected)
	// and reason.
	LinkResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "linkcheck",
		Name:      "results_total",
		Help:      "Link validation decisions by outcome and reason",
	}, []string{"outcome", "reason"})

	// FetchDuration observes page fetch latency.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "linkcheck",
		Name:      "fetch_seconds",
		Help:      "Page fetch latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
	})

	// GeneratedCandidates counts candidates produced per category.
	GeneratedCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "candidates_total",
		Help:      "Candidate articles produced per category",
	}, []string{"category"})

	// GeneratorFailures counts categories skipped because generation failed.
	GeneratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "failures_total",
		Help:      "Categories skipped because generation failed",
	}, []string{"category"})

	// CrawlRuns counts crawl runs by status (success/failure).
	CrawlRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "crawl",
		Name:      "runs_total",
		Help:      "Crawl runs by status",
	}, []string{"status"})

	// ArticlesPurged counts rows removed by the retention purge.
	ArticlesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "crawl",
		Name:      "articles_purged_total",
		Help:      "Articles removed by the retention purge",
	})
)

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
