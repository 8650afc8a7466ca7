package topicfy

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultRedditBase = "https://www.reddit.com"

// RedditSearch is the community search index. Calls are spaced by Delay; a
// 429 answer is retried exactly once after RetryDelay, and a second failure
// is returned as a miss.
type RedditSearch struct {
	BaseURL    string   // default: https://www.reddit.com
	Subreddits []string // optional: restrict to these subreddits
	HTTPClient *http.Client
	UserAgent  string
	Delay      time.Duration // default: DefaultTuning().SearchDelay
	RetryDelay time.Duration // default: DefaultTuning().SearchRetryDelay

	once    sync.Once
	limiter *rate.Limiter
}

// Name implements SearchProvider.
func (r *RedditSearch) Name() string { return "reddit" }

func (r *RedditSearch) init() {
	r.once.Do(func() {
		d := DefaultTuning()
		if r.Delay <= 0 {
			r.Delay = d.SearchDelay
		}
		if r.RetryDelay <= 0 {
			r.RetryDelay = d.SearchRetryDelay
		}
		if r.BaseURL == "" {
			r.BaseURL = defaultRedditBase
		}
		r.limiter = rate.NewLimiter(rate.Every(r.Delay), 1)
	})
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Dest      string `json:"url_overridden_by_dest"`
	Permalink string `json:"permalink"`
	PostHint  string `json:"post_hint"`
	Over18    bool   `json:"over_18"`
	Preview   struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

// Search implements SearchProvider.
func (r *RedditSearch) Search(ctx context.Context, query string, opts SearchOpts) ([]ImageHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	r.init()
	opts = opts.withDefaults()

	u := r.searchURL(query, opts.Limit)

	var listing redditListing
	err := r.fetch(ctx, u, opts.Timeout, &listing)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusTooManyRequests {
		slog.Debug("topicfy: community index rate limited, retrying once", "query", query, "wait", r.RetryDelay)
		if werr := sleepCtx(ctx, r.RetryDelay); werr != nil {
			return nil, werr
		}
		err = r.fetch(ctx, u, opts.Timeout, &listing)
	}
	if err != nil {
		return nil, fmt.Errorf("reddit search %q: %w", query, err)
	}

	var hits []ImageHit
	for _, c := range listing.Data.Children {
		p := c.Data
		if p.Over18 {
			continue
		}
		img := postImage(p)
		if img == "" {
			continue
		}
		hits = append(hits, ImageHit{ImgURL: img, Source: r.BaseURL + p.Permalink, Title: p.Title})
		if len(hits) >= opts.Limit {
			break
		}
	}
	return hits, nil
}

func (r *RedditSearch) searchURL(query string, limit int) string {
	base := strings.TrimRight(r.BaseURL, "/")
	v := url.Values{
		"q":        {query},
		"type":     {"link"},
		"sort":     {"relevance"},
		"limit":    {fmt.Sprint(limit)},
		"raw_json": {"1"},
	}
	if len(r.Subreddits) > 0 {
		v.Set("restrict_sr", "1")
		return base + "/r/" + strings.Join(r.Subreddits, "+") + "/search.json?" + v.Encode()
	}
	return base + "/search.json?" + v.Encode()
}

func (r *RedditSearch) fetch(ctx context.Context, u string, timeout time.Duration, dest any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return getJSON(ctx, r.HTTPClient, u, r.UserAgent, dest)
}

// postImage returns the direct image of a link post, "" for text/video posts.
func postImage(p redditPost) string {
	for _, u := range []string{p.Dest, p.URL} {
		if isImagePath(u) {
			return u
		}
	}
	if p.PostHint == "image" && len(p.Preview.Images) > 0 {
		return html.UnescapeString(p.Preview.Images[0].Source.URL)
	}
	return ""
}

func isImagePath(u string) bool {
	if u == "" {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(parsed.Path)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
