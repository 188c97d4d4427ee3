package linkcheck

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Signals are the identity hints pulled from a page. Absent signals are
// empty strings.
type Signals struct {
	Title     string
	OGTitle   string
	H1        string
	Canonical string
	OGURL     string
	AMPHTML   string
	// HasArticle is true when the page contains an <article> element.
	HasArticle bool
}

// ExtractSignals parses html and extracts title, og:title, the first h1, and
// the canonical/og:url/amphtml links. Unparseable markup yields empty
// signals.
func ExtractSignals(html string) Signals {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Signals{}
	}

	return Signals{
		Title:      collapse(doc.Find("title").First().Text()),
		OGTitle:    collapse(attr(doc, "meta[property='og:title'], meta[name='og:title']", "content")),
		H1:         collapse(doc.Find("h1").First().Text()),
		Canonical:  strings.TrimSpace(attr(doc, "link[rel~='canonical']", "href")),
		OGURL:      strings.TrimSpace(attr(doc, "meta[property='og:url'], meta[name='og:url']", "content")),
		AMPHTML:    strings.TrimSpace(attr(doc, "link[rel~='amphtml']", "href")),
		HasArticle: doc.Find("article").Length() > 0,
	}
}

// Reference returns the string used for title comparison: og:title, else h1,
// else the document title.
func (s Signals) Reference() string {
	switch {
	case s.OGTitle != "":
		return s.OGTitle
	case s.H1 != "":
		return s.H1
	default:
		return s.Title
	}
}

// redirectCandidates returns the declared alternate URLs in priority order.
func (s Signals) redirectCandidates() []string {
	var out []string
	for _, c := range []string{s.Canonical, s.OGURL, s.AMPHTML} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return v
}

// collapse normalizes whitespace: runs of spaces/newlines become one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
