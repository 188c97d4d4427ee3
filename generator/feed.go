package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/news"
)

const maxSummaryRunes = 500

// FeedGenerator reads candidates from the RSS or Atom feeds configured on a
// category. Categories without feeds yield nothing.
type FeedGenerator struct {
	parser *gofeed.Parser
	log    *logger.Entry
}

var _ Generator = (*FeedGenerator)(nil)

// NewFeedGenerator creates a feed generator. A nil client uses the gofeed
// default.
func NewFeedGenerator(client *http.Client, userAgent string, log *logger.Entry) *FeedGenerator {
	fp := gofeed.NewParser()
	if client != nil {
		fp.Client = client
	}
	if userAgent != "" {
		fp.UserAgent = userAgent
	}
	return &FeedGenerator{parser: fp, log: logger.OrDefault(log, "feeds")}
}

// Generate parses each feed in order and returns at most category.Count
// candidates. It fails only when every feed failed.
func (g *FeedGenerator) Generate(ctx context.Context, category Category) ([]news.Candidate, error) {
	if len(category.Feeds) == 0 {
		return nil, nil
	}

	limit := category.count()
	var (
		out  []news.Candidate
		errs []error
	)

	for _, url := range category.Feeds {
		if len(out) >= limit {
			break
		}

		feed, err := g.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.log.WithField("feed", url).Warnf("Failed to parse feed: %v", err)
			errs = append(errs, fmt.Errorf("failed to parse feed %s: %w", url, err))
			continue
		}

		for _, item := range feed.Items {
			if len(out) >= limit {
				break
			}
			out = append(out, FeedItemToCandidate(item, feed.Title))
		}
	}

	if len(errs) == len(category.Feeds) {
		return nil, errors.Join(errs...)
	}
	return finalize(out, category), nil
}

// FeedItemToCandidate maps a feed item to a candidate. gofeed normalizes RSS
// and Atom into the same item shape.
func FeedItemToCandidate(item *gofeed.Item, feedTitle string) news.Candidate {
	// Summary: description (RSS) or summary (Atom), tags stripped
	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	var date string
	if item.PublishedParsed != nil {
		date = item.PublishedParsed.UTC().Format(news.DateLayout)
	} else if item.UpdatedParsed != nil {
		date = item.UpdatedParsed.UTC().Format(news.DateLayout)
	}

	return news.Candidate{
		Title:   strings.TrimSpace(item.Title),
		Summary: truncateRunes(plainText(summary), maxSummaryRunes),
		Source:  feedTitle,
		Date:    date,
		URL:     strings.TrimSpace(item.Link),
	}
}

// plainText strips markup from a feed description.
func plainText(html string) string {
	if !strings.Contains(html, "<") {
		return strings.Join(strings.Fields(html), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
