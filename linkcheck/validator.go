// Package linkcheck decides whether generated news items point at real,
// reachable, non-paywalled pages whose titles match the claim, and
// normalizes the URLs of the ones that do.
package linkcheck

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/metrics"
	"github.com/pevans/evmotor/news"
)

// Reason explains a validation decision.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonRelaxed       Reason = "relaxed"
	ReasonInvalidURL    Reason = "invalid_url"
	ReasonBlockedDomain Reason = "blocked_domain"
	ReasonFetchFailed   Reason = "fetch_failed"
	ReasonSoftError     Reason = "soft_error"
	ReasonPaywalled     Reason = "paywalled"
	ReasonTitleMismatch Reason = "title_mismatch"
	ReasonDuplicate     Reason = "duplicate"
	ReasonCancelled     Reason = "cancelled"
)

// minRelaxedH1Runes is the shortest h1 that lets a page pass without a title
// match.
const minRelaxedH1Runes = 10

// Result is the decision for one candidate. URL is set only when Accepted.
type Result struct {
	Candidate news.Candidate
	Accepted  bool
	URL       string
	Reason    Reason
	Err       error
}

// Validator checks candidates against the pages they link to.
type Validator struct {
	cfg       Config
	fetcher   Fetcher
	blocklist domainSet
	paywall   []string
	softError []string
	log       *logger.Entry
}

// New creates a validator. A nil fetcher uses an HTTPFetcher built from cfg.
func New(cfg Config, fetcher Fetcher, log *logger.Entry) *Validator {
	cfg = cfg.WithDefaults()
	if fetcher == nil {
		fetcher = NewHTTPFetcher(cfg)
	}

	return &Validator{
		cfg:       cfg,
		fetcher:   fetcher,
		blocklist: newDomainSet(cfg.Blocklist),
		paywall:   lowerAll(cfg.PaywallMarkers),
		softError: lowerAll(cfg.SoftErrorMarkers),
		log:       logger.OrDefault(log, "linkcheck"),
	}
}

// IsBlocked reports whether the URL belongs to a blocklisted publisher.
func (v *Validator) IsBlocked(url string) bool {
	return v.blocklist.contains(url)
}

// LooksBlocked reports whether the page body carries a paywall or bot-check
// marker.
func (v *Validator) LooksBlocked(html string) bool {
	return containsAny(strings.ToLower(html), v.paywall)
}

// looksLikeSoftError reports whether a page title is an error page title.
func (v *Validator) looksLikeSoftError(title string) bool {
	return containsAny(strings.ToLower(title), v.softError)
}

// fetched is a page plus its extracted signals.
type fetched struct {
	page    *Page
	signals Signals
}

// ValidateOne decides a single candidate. It never returns an error; all
// failures become a rejected Result.
func (v *Validator) ValidateOne(ctx context.Context, c news.Candidate) Result {
	res := v.validate(ctx, c)
	outcome := "rejected"
	if res.Accepted {
		outcome = "accepted"
	}
	metrics.LinkResults.WithLabelValues(outcome, string(res.Reason)).Inc()
	return res
}

func (v *Validator) validate(ctx context.Context, c news.Candidate) Result {
	log := v.log.WithField("url", c.URL)

	normalized, err := Normalize(c.URL)
	if err != nil {
		log.Debugf("Rejecting candidate: %v", err)
		return reject(c, ReasonInvalidURL, err)
	}

	if v.IsBlocked(normalized) {
		log.Debug("Rejecting candidate from blocklisted domain")
		return reject(c, ReasonBlockedDomain, nil)
	}

	original, err := v.fetch(ctx, normalized)
	if err != nil {
		if ctx.Err() != nil {
			return reject(c, ReasonCancelled, ctx.Err())
		}
		log.Debugf("Fetch failed: %v", err)
		return reject(c, ReasonFetchFailed, err)
	}

	// A declared alternate that passes the strict check wins over the
	// original, so copies of one story converge on the same URL.
	resolved := original
	strict := v.titleMatches(original.signals, c)

	if alt := v.followAlternates(ctx, original, c); alt != nil {
		resolved = alt
		strict = true
	} else if ctx.Err() != nil {
		return reject(c, ReasonCancelled, ctx.Err())
	}

	if v.looksLikeSoftError(resolved.signals.Title) {
		log.WithField("title", resolved.signals.Title).Debug("Rejecting soft error page")
		return reject(c, ReasonSoftError, nil)
	}

	if v.LooksBlocked(resolved.page.HTML) {
		log.Debug("Rejecting paywalled page")
		return reject(c, ReasonPaywalled, nil)
	}

	finalURL, err := Normalize(resolved.page.FinalURL)
	if err != nil {
		return reject(c, ReasonInvalidURL, err)
	}

	if strict {
		return Result{Candidate: c, Accepted: true, URL: finalURL, Reason: ReasonOK}
	}

	if resolved.signals.HasArticle || utf8.RuneCountInString(resolved.signals.H1) >= minRelaxedH1Runes {
		log.Debug("Accepting on relaxed check")
		return Result{Candidate: c, Accepted: true, URL: finalURL, Reason: ReasonRelaxed}
	}

	return reject(c, ReasonTitleMismatch, nil)
}

// followAlternates tries canonical, og:url and amphtml in that order,
// skipping any that equal the page's own final URL, and returns the first
// whose title passes the strict check.
func (v *Validator) followAlternates(ctx context.Context, original *fetched, c news.Candidate) *fetched {
	seen := map[string]bool{}
	if u, err := Normalize(original.page.FinalURL); err == nil {
		seen[u] = true
	}

	for _, raw := range original.signals.redirectCandidates() {
		alt, err := resolveReference(original.page.FinalURL, raw)
		if err != nil || seen[alt] || v.IsBlocked(alt) {
			continue
		}
		seen[alt] = true

		page, err := v.fetch(ctx, alt)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			v.log.WithField("url", alt).Debugf("Alternate fetch failed: %v", err)
			continue
		}

		if v.titleMatches(page.signals, c) {
			return page
		}
	}

	return nil
}

// titleMatches checks the English claim and, when present, the Korean one.
func (v *Validator) titleMatches(s Signals, c news.Candidate) bool {
	if IsTitleConsistent(s, c.Title) {
		return true
	}
	return c.TitleKR != "" && IsTitleConsistent(s, c.TitleKR)
}

// fetch retrieves url under the per-item timeout and extracts its signals.
func (v *Validator) fetch(ctx context.Context, url string) (*fetched, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
	defer cancel()

	page, err := v.fetcher.Fetch(fetchCtx, url)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.New("fetcher returned no page")
	}
	if page.FinalURL == "" {
		page.FinalURL = url
	}

	return &fetched{page: page, signals: ExtractSignals(page.HTML)}, nil
}

func reject(c news.Candidate, reason Reason, err error) Result {
	return Result{Candidate: c, Reason: reason, Err: err}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
