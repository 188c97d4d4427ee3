package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/pevans/evmotor/metrics"
	"golang.org/x/net/html/charset"
)

var (
	// ErrNotHTML is returned for responses whose content type is not HTML.
	ErrNotHTML = errors.New("response is not html")
	// ErrTooManyRedirects is returned when the redirect hop limit is exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s (%s)", e.Code, http.StatusText(e.Code), e.URL)
}

// Page is a fetched HTML document.
type Page struct {
	// FinalURL is the URL after redirects.
	FinalURL   string
	StatusCode int
	HTML       string
}

// Fetcher retrieves a page. Implementations must honor ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher fetches pages over HTTP with browser-like headers.
type HTTPFetcher struct {
	client         *http.Client
	userAgent      string
	acceptLanguage string
	maxBodyBytes   int64
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher from the validator config. The per-request
// timeout comes from the caller's context, not the client.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	cfg = cfg.WithDefaults()
	return &HTTPFetcher{
		client: &http.Client{
			CheckRedirect: redirectPolicy(cfg.MaxRedirects),
		},
		userAgent:      cfg.UserAgent,
		acceptLanguage: cfg.AcceptLanguage,
		maxBodyBytes:   cfg.MaxBodyBytes,
	}
}

// redirectPolicy follows redirects until maxHops is reached.
func redirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return ErrTooManyRedirects
		}
		return nil
	}
}

// Fetch issues a GET for url. HEAD is never used because many publishers
// answer it with 403 or 405 while serving GET normally.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	start := time.Now()
	defer func() { metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.acceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrNotHTML, contentType)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBodyBytes), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &Page{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(body),
	}, nil
}

// isHTML accepts text/html and XHTML. A missing content type is treated as
// HTML since some CMSes omit it.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
