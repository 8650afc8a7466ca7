package sources

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/anatolykoptev/go-topicfy"
)

// RSS reads an editorial RSS or Atom feed. Its items vote as breaking news.
type RSS struct {
	name    string
	url     string
	timeout time.Duration
	parser  *gofeed.Parser
}

// NewRSS creates a feed source. client may be nil.
func NewRSS(name, url string, client *http.Client) *RSS {
	p := gofeed.NewParser()
	p.Client = clientOr(client)
	p.UserAgent = defaultUserAgent
	return &RSS{name: name, url: url, timeout: defaultTimeout, parser: p}
}

func (s *RSS) Name() string { return s.name }

func (s *RSS) Kind() topicfy.SourceKind { return topicfy.KindBreakingNews }

// Fetch implements topicfy.Source.
func (s *RSS) Fetch(ctx context.Context) []topicfy.RawItem {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		slog.Warn("topicfy: rss fetch failed", "source", s.name, "url", s.url, "error", err.Error())
		return nil
	}

	items := make([]topicfy.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}
		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		items = append(items, topicfy.RawItem{
			Title:       title,
			Image:       entryImage(entry),
			Description: truncate(plainText(summary), maxDescriptionLen),
			Source:      s.name,
			Kind:        topicfy.KindBreakingNews,
		})
	}
	return items
}

// entryImage prefers the item image, then the first image enclosure.
func entryImage(e *gofeed.Item) string {
	if e.Image != nil && e.Image.URL != "" {
		return e.Image.URL
	}
	for _, enc := range e.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}
