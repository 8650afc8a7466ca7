package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/anatolykoptev/go-topicfy"
)

// Reddit reads the hot listing of one subreddit.
type Reddit struct {
	Subreddit  string
	BaseURL    string // default: https://www.reddit.com
	Limit      int    // default: 25
	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration
}

// NewReddit creates a hot-listing source for subreddit.
func NewReddit(subreddit string, client *http.Client) *Reddit {
	return &Reddit{Subreddit: subreddit, HTTPClient: client}
}

func (r *Reddit) Name() string { return "reddit:r/" + r.Subreddit }

func (r *Reddit) Kind() topicfy.SourceKind { return topicfy.KindCommunity }

type hotListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title    string `json:"title"`
				URL      string `json:"url"`
				Selftext string `json:"selftext"`
				Stickied bool   `json:"stickied"`
				Over18   bool   `json:"over_18"`
				PostHint string `json:"post_hint"`
				Preview  struct {
					Images []struct {
						Source struct {
							URL string `json:"url"`
						} `json:"source"`
					} `json:"images"`
				} `json:"preview"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch implements topicfy.Source.
func (r *Reddit) Fetch(ctx context.Context) []topicfy.RawItem {
	listing, err := r.hot(ctx)
	if err != nil {
		slog.Warn("topicfy: reddit fetch failed", "source", r.Name(), "error", err.Error())
		return nil
	}

	var items []topicfy.RawItem
	for _, c := range listing.Data.Children {
		p := c.Data
		if p.Stickied || p.Over18 {
			continue
		}
		title := headline(p.Title)
		if title == "" {
			continue
		}
		img := ""
		if isImageURL(p.URL) {
			img = p.URL
		} else if p.PostHint == "image" && len(p.Preview.Images) > 0 {
			img = html.UnescapeString(p.Preview.Images[0].Source.URL)
		}
		items = append(items, topicfy.RawItem{
			Title:       title,
			Image:       img,
			Description: truncate(strings.Join(strings.Fields(p.Selftext), " "), maxDescriptionLen),
			Source:      r.Name(),
			Kind:        topicfy.KindCommunity,
		})
	}
	return items
}

func (r *Reddit) hot(ctx context.Context) (*hotListing, error) {
	base := r.BaseURL
	if base == "" {
		base = "https://www.reddit.com"
	}
	limit := r.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := r.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", strings.TrimRight(base, "/"), url.PathEscape(r.Subreddit), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := clientOr(r.HTTPClient).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	var listing hotListing
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &listing, nil
}

// headline cuts a post title before the first " - ", where subreddits put
// episode numbers and flair.
func headline(title string) string {
	if i := strings.Index(title, " - "); i > 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}

func isImageURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || u == "" {
		return false
	}
	switch strings.ToLower(path.Ext(parsed.Path)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return true
	}
	return false
}
