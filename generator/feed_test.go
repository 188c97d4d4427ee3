package generator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/evmotor/logger"
	"github.com/pevans/evmotor/news"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Electrive</title>
    <link>https://www.electrive.com</link>
    <item>
      <title>ZF presents EVSys800</title>
      <link>https://www.electrive.com/2025/01/10/zf-evsys800/</link>
      <description><![CDATA[<p>ZF shows its <b>800-volt</b> drive.</p>]]></description>
      <pubDate>Fri, 10 Jan 2025 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>ZF wins e-axle contract</title>
      <link>https://www.electrive.com/2025/01/08/zf-contract/</link>
      <description>Plain summary</description>
      <pubDate>Wed, 08 Jan 2025 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Third item</title>
      <link>https://www.electrive.com/2025/01/07/third/</link>
    </item>
  </channel>
</rss>`

// Test helper: serve a feed fixture
func newFeedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestFeedGenerator_Generate verifies item mapping and the count cap
func TestFeedGenerator_Generate(t *testing.T) {
	srv := newFeedServer(t, rssFixture)
	g := NewFeedGenerator(srv.Client(), "evmotor-test", logger.Discard())

	candidates, err := g.Generate(context.Background(), Category{ID: "ZF", Count: 2, Feeds: []string{srv.URL + "/feed"}})
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, "ZF presents EVSys800", first.Title)
	assert.Equal(t, "ZF shows its 800-volt drive.", first.Summary)
	assert.Equal(t, "Electrive", first.Source)
	assert.Equal(t, "2025-01-10", first.Date)
	assert.Equal(t, "ZF", first.Category)
	assert.Equal(t, "https://www.electrive.com/2025/01/10/zf-evsys800/", first.URL)
}

// TestFeedGenerator_NoFeeds verifies categories without feeds yield nothing
func TestFeedGenerator_NoFeeds(t *testing.T) {
	g := NewFeedGenerator(nil, "", logger.Discard())

	candidates, err := g.Generate(context.Background(), Category{ID: "GM"})
	assert.NoError(t, err)
	assert.Empty(t, candidates)
}

// TestFeedGenerator_PartialFailure verifies one broken feed is tolerated
func TestFeedGenerator_PartialFailure(t *testing.T) {
	srv := newFeedServer(t, rssFixture)
	g := NewFeedGenerator(srv.Client(), "", logger.Discard())

	candidates, err := g.Generate(context.Background(), Category{
		ID:    "ZF",
		Count: 5,
		Feeds: []string{srv.URL + "/broken", srv.URL + "/feed"},
	})
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

// TestFeedGenerator_AllFail verifies the error when every feed fails
func TestFeedGenerator_AllFail(t *testing.T) {
	srv := newFeedServer(t, rssFixture)
	g := NewFeedGenerator(srv.Client(), "", logger.Discard())

	_, err := g.Generate(context.Background(), Category{ID: "ZF", Feeds: []string{srv.URL + "/broken"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse feed")
}

// TestFeedItemToCandidate_Dates verifies published, then updated, then empty
func TestFeedItemToCandidate_Dates(t *testing.T) {
	published := time.Date(2025, 2, 1, 23, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)

	c := FeedItemToCandidate(&gofeed.Item{Title: "a", PublishedParsed: &published, UpdatedParsed: &updated}, "Feed")
	assert.Equal(t, "2025-02-01", c.Date)

	c = FeedItemToCandidate(&gofeed.Item{Title: "a", UpdatedParsed: &updated}, "Feed")
	assert.Equal(t, "2025-02-03", c.Date)

	c = FeedItemToCandidate(&gofeed.Item{Title: "a"}, "Feed")
	assert.Empty(t, c.Date)
}

// TestFeedItemToCandidate_LongSummary verifies truncation
func TestFeedItemToCandidate_LongSummary(t *testing.T) {
	c := FeedItemToCandidate(&gofeed.Item{Title: "a", Description: strings.Repeat("모터 ", 400)}, "")
	assert.True(t, strings.HasSuffix(c.Summary, "..."))
	assert.Equal(t, maxSummaryRunes+3, len([]rune(c.Summary)))
}

// stubGenerator returns fixed output.
type stubGenerator struct {
	candidates []news.Candidate
	err        error
}

func (s stubGenerator) Generate(context.Context, Category) ([]news.Candidate, error) {
	return s.candidates, s.err
}

// TestMultiGenerator verifies concatenation and failure semantics
func TestMultiGenerator(t *testing.T) {
	a := stubGenerator{candidates: []news.Candidate{{Title: "a", URL: "https://a"}}}
	b := stubGenerator{candidates: []news.Candidate{{Title: "b", URL: "https://b"}}}
	bad := stubGenerator{err: errors.New("boom")}

	got, err := MultiGenerator{a, bad, b}.Generate(context.Background(), Category{ID: "GM"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Title)
	assert.Equal(t, "b", got[1].Title)

	_, err = MultiGenerator{bad, bad}.Generate(context.Background(), Category{ID: "GM"})
	assert.Error(t, err)

	got, err = MultiGenerator{}.Generate(context.Background(), Category{ID: "GM"})
	assert.NoError(t, err)
	assert.Empty(t, got)
}
