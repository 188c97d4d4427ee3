package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pevans/evmotor/config"
	"github.com/pevans/evmotor/crawl"
	"github.com/pevans/evmotor/linkcheck"
	"github.com/pevans/evmotor/news"
)

func main() {
	global := flag.NewFlagSet("evmotor", flag.ExitOnError)
	configPath := global.String("config", getEnv(config.EnvConfigPath, ""), "Path to config file (EVMOTOR_CONFIG)")
	global.Usage = printUsage
	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	subcommand, rest := args[0], args[1:]

	switch subcommand {
	case "crawl":
		handleCrawl(*configPath, rest)
	case "analyze":
		handleAnalyze(*configPath, rest)
	case "news":
		if len(rest) < 1 {
			printNewsUsage()
			os.Exit(1)
		}
		handleNewsCommand(*configPath, rest[0], rest[1:])
	case "purge":
		handlePurge(*configPath, rest)
	case "check":
		handleCheck(*configPath, rest)
	case "serve":
		handleServe(*configPath, rest)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("evmotor - EV motor news crawler and analyzer")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  evmotor [--config path] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  crawl      Generate and store validated news for every category")
	fmt.Println("  analyze    Summarize the latest news into an insight")
	fmt.Println("  news       Read stored news")
	fmt.Println("  purge      Delete articles older than the retention window")
	fmt.Println("  check      Validate a single URL")
	fmt.Println("  serve      Run the HTTP API")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  EVMOTOR_CONFIG         Path to config file (default: ~/.evmotor/config.yaml)")
	fmt.Println("  EVMOTOR_LLM_PROVIDER   Model provider: gateway or anthropic")
	fmt.Println("  LOVABLE_API_KEY        API key for the gateway provider")
	fmt.Println("  ANTHROPIC_API_KEY      API key for the anthropic provider")
	fmt.Println("  EVMOTOR_STORAGE_TYPE   sqlite or postgres")
	fmt.Println("  EVMOTOR_STORAGE_DSN    Database path or connection string (also DATABASE_URL)")
	fmt.Println("  EVMOTOR_ADDR           Listen address for serve")
	fmt.Println("  EVMOTOR_LOG_LEVEL      Log level (default: info)")
	fmt.Println("  EVMOTOR_LOG_FORMAT     json or text")
}

func printNewsUsage() {
	fmt.Println("evmotor news - Read stored news")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  evmotor news <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List stored articles, newest first")
	fmt.Println("  help       Show this help message")
}

// mustApp builds the app or exits.
func mustApp(ctx context.Context, configPath string, requireModel bool) *app {
	a, err := newApp(ctx, configPath, requireModel)
	if err != nil {
		fatalf("%v", err)
	}
	return a
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func handleCrawl(configPath string, args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()

	a := mustApp(ctx, configPath, true)
	defer a.Close()

	res, err := a.crawler.Run(ctx)
	if res != nil {
		printCrawlResult(res)
	}
	if err != nil {
		a.Close()
		fatalf("crawl failed: %v", err)
	}
}

func printCrawlResult(res *crawl.Result) {
	fmt.Printf("Categories: %d (%d failed)\n", res.Categories, res.CategoriesFailed)
	fmt.Printf("Generated:  %d\n", res.Generated)
	fmt.Printf("Accepted:   %d\n", res.Accepted)
	fmt.Printf("Rejected:   %d\n", res.Rejected)
	fmt.Printf("Stored:     %d\n", res.Stored)
	fmt.Printf("Purged:     %d\n", res.Purged)

	if len(res.Rejections) > 0 {
		fmt.Println("Reasons:")
		for _, reason := range []linkcheck.Reason{
			linkcheck.ReasonOK,
			linkcheck.ReasonRelaxed,
			linkcheck.ReasonInvalidURL,
			linkcheck.ReasonBlockedDomain,
			linkcheck.ReasonFetchFailed,
			linkcheck.ReasonSoftError,
			linkcheck.ReasonPaywalled,
			linkcheck.ReasonTitleMismatch,
			linkcheck.ReasonDuplicate,
			linkcheck.ReasonCancelled,
		} {
			if n := res.Rejections[reason]; n > 0 {
				fmt.Printf("  %-16s %d\n", reason, n)
			}
		}
	}
	for _, e := range res.Errors {
		fmt.Printf("  ✗ %v\n", e)
	}
}

func handleAnalyze(configPath string, args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()

	a := mustApp(ctx, configPath, true)
	defer a.Close()

	in, err := a.analyzer.Analyze(ctx)
	if err != nil {
		a.Close()
		fatalf("analysis failed: %v", err)
	}

	fmt.Printf("Analyzed %d articles at %s\n\n", in.NewsAnalyzedCount, in.GeneratedAt.Format(time.RFC3339))
	fmt.Println(in.Content)
}

func handleNewsCommand(configPath, action string, args []string) {
	switch action {
	case "list":
		handleNewsList(configPath, args)
	case "help", "--help", "-h":
		printNewsUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown news command: %s\n\n", action)
		printNewsUsage()
		os.Exit(1)
	}
}

func handleNewsList(configPath string, args []string) {
	fs := flag.NewFlagSet("news list", flag.ExitOnError)
	category := fs.String("category", "", "Only show this category")
	limit := fs.Int("limit", 20, "Maximum number of articles")
	offset := fs.Int("offset", 0, "Number of articles to skip")
	fs.Parse(args)

	if *limit < 1 || *offset < 0 {
		fatalf("--limit must be positive and --offset non-negative")
	}

	ctx := context.Background()
	a := mustApp(ctx, configPath, false)
	defer a.Close()

	filter := news.Filter{Limit: *limit, Offset: *offset}
	if *category != "" {
		filter.Category = category
	}

	articles, err := a.articles.List(ctx, filter)
	if err != nil {
		a.Close()
		fatalf("failed to list news: %v", err)
	}

	if len(articles) == 0 {
		fmt.Println("No news stored.")
		return
	}

	fmt.Printf("%-10s %-26s %-50s %s\n", "DATE", "CATEGORY", "TITLE", "URL")
	fmt.Println("----------------------------------------------------------------------------------------------------")
	for _, article := range articles {
		title := article.TitleKR
		if title == "" {
			title = article.Title
		}
		fmt.Printf("%-10s %-26s %-50s %s\n",
			article.Date,
			truncate(article.Category, 26),
			truncate(title, 50),
			article.URL,
		)
	}
}

func handlePurge(configPath string, args []string) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	olderThan := fs.String("older-than", "", "Delete articles older than this (e.g. 60d, 8w); defaults to the configured retention")
	fs.Parse(args)

	ctx := context.Background()
	a := mustApp(ctx, configPath, false)
	defer a.Close()

	retention := a.cfg.Crawl.WithDefaults().Retention
	if *olderThan != "" {
		d, err := parseDuration(*olderThan)
		if err != nil {
			a.Close()
			fatalf("%v", err)
		}
		retention = d
	}

	cutoff := time.Now().UTC().Add(-retention)
	n, err := a.articles.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		a.Close()
		fatalf("failed to purge articles: %v", err)
	}

	fmt.Printf("✓ Purged %d articles dated before %s\n", n, cutoff.Format(news.DateLayout))
}

func handleCheck(configPath string, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	title := fs.String("title", "", "Claimed article title")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: URL is required\n")
		fmt.Fprintf(os.Stderr, "Usage: evmotor check [--title text] <url>\n")
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a := mustApp(ctx, configPath, false)
	defer a.Close()

	res := a.validator.ValidateOne(ctx, news.Candidate{Title: *title, URL: fs.Arg(0)})
	if res.Accepted {
		fmt.Printf("✓ Accepted (%s): %s\n", res.Reason, res.URL)
		return
	}

	fmt.Printf("✗ Rejected (%s)\n", res.Reason)
	if res.Err != nil {
		fmt.Printf("  %v\n", res.Err)
	}
	a.Close()
	os.Exit(2)
}

func handleServe(configPath string, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides config)")
	crawlEvery := fs.String("crawl-every", "", "Run a crawl on this interval (e.g. 6h, 1d); overrides config")
	fs.Parse(args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := mustApp(ctx, configPath, false)
	defer a.Close()

	if *addr != "" {
		a.cfg.Server.Addr = *addr
	}
	interval := a.cfg.Crawl.Interval
	if *crawlEvery != "" {
		d, err := parseDuration(*crawlEvery)
		if err != nil {
			a.Close()
			fatalf("%v", err)
		}
		interval = d
	}

	if err := serve(ctx, a, interval); err != nil {
		a.Close()
		fatalf("%v", err)
	}
}

// serve runs the HTTP API, plus the crawl scheduler when interval is
// positive, until SIGTERM or SIGINT.
func serve(ctx context.Context, a *app, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := newHTTPServer(a)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 2)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("API server listening")
		errChan <- srv.ListenAndServe()
	}()

	schedulerDone := make(chan struct{})
	if interval > 0 && a.crawler != nil {
		go func() {
			defer close(schedulerDone)
			if err := a.crawler.Schedule(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- err
			}
		}()
	} else {
		if interval > 0 {
			a.log.Warn("Crawl scheduling requested but crawling is disabled")
		}
		close(schedulerDone)
	}

	for {
		select {
		case sig := <-sigChan:
			a.log.Infof("Received signal: %v", sig)
			if sig == syscall.SIGHUP {
				a.log.Info("SIGHUP received (reload not supported)")
				continue
			}
			return shutdown(a, srv, cancel, schedulerDone)
		case err := <-errChan:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				cancel()
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		}
	}
}
