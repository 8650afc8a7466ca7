// Package sources holds the feed adapters consumed by topicfy.Aggregate.
// Every adapter swallows its own transport and parse errors: Fetch logs the
// failure and returns an empty slice so one broken feed never stops a run.
package sources

import (
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultLimit      = 25
	maxDescriptionLen = 300
	defaultUserAgent  = "Mozilla/5.0 (compatible; go-topicfy/1.0)"
)

func clientOr(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

// plainText strips markup from feed HTML and collapses whitespace.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
