package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pevans/evmotor/api"
)

const shutdownTimeout = 60 * time.Second

func newHTTPServer(a *app) *http.Server {
	// Typed nils would make the interfaces non-nil
	var (
		crawler  api.Crawler
		analyzer api.Analyzer
	)
	if a.crawler != nil {
		crawler = a.crawler
	}
	if a.analyzer != nil {
		analyzer = a.analyzer
	}

	server := api.NewAPIServer(a.articles, crawler, analyzer, a.checker, a.log.WithField("component", "api"))

	return &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           server.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// shutdown stops the scheduler and drains the HTTP server, giving up after
// shutdownTimeout.
func shutdown(a *app, srv *http.Server, cancel context.CancelFunc, schedulerDone <-chan struct{}) error {
	a.log.Info("Shutting down gracefully...")
	if a.crawler != nil {
		a.crawler.Stop()
	}

	ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	err := srv.Shutdown(ctx)
	cancel()

	select {
	case <-schedulerDone:
		a.log.Info("Service stopped")
	case <-ctx.Done():
		a.log.Warn("Shutdown timeout exceeded, forcing exit")
	}
	return err
}
