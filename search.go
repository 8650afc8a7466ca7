package topicfy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	searchTimeout    = 15 * time.Second
	searchMaxResults = 25
)

// ImageHit is one raw result of an image search, before any gating.
type ImageHit struct {
	ImgURL string // direct image URL
	Source string // page URL
	Title  string // image/page title
}

// SearchOpts configures one search call.
// Zero values mean "use defaults": zero Timeout = 15s, zero Limit = 25.
type SearchOpts struct {
	Timeout time.Duration
	Limit   int
}

// SearchProvider is an image search backend.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOpts) ([]ImageHit, error)
}

func (o SearchOpts) withDefaults() SearchOpts {
	if o.Timeout <= 0 {
		o.Timeout = searchTimeout
	}
	if o.Limit <= 0 {
		o.Limit = searchMaxResults
	}
	return o
}

// SearXNGProvider queries a SearXNG instance's image category.
type SearXNGProvider struct {
	URL        string
	HTTPClient *http.Client
	UserAgent  string
}

// Name implements SearchProvider.
func (p *SearXNGProvider) Name() string { return "searxng" }

type searxngResponse struct {
	Results []struct {
		ImgSrc string `json:"img_src"`
		URL    string `json:"url"`
		Title  string `json:"title"`
	} `json:"results"`
}

// Search implements SearchProvider.
func (p *SearXNGProvider) Search(ctx context.Context, query string, opts SearchOpts) ([]ImageHit, error) {
	opts = opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	u := strings.TrimRight(p.URL, "/") + "/search?" + url.Values{
		"q":          {query},
		"format":     {"json"},
		"categories": {"images"},
	}.Encode()

	var body searxngResponse
	if err := getJSON(ctx, p.HTTPClient, u, p.UserAgent, &body); err != nil {
		return nil, fmt.Errorf("searxng: %w", err)
	}

	hits := make([]ImageHit, 0, len(body.Results))
	for _, r := range body.Results {
		if r.ImgSrc == "" {
			continue
		}
		hits = append(hits, ImageHit{ImgURL: absoluteURL(r.ImgSrc), Source: r.URL, Title: r.Title})
		if len(hits) >= opts.Limit {
			break
		}
	}
	return hits, nil
}

// statusError is returned by getJSON for non-200 answers.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

func getJSON(ctx context.Context, client *http.Client, u, ua string, dest any) error {
	if client == nil {
		client = http.DefaultClient
	}
	if ua == "" {
		ua = DefaultUserAgent
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req) //nolint:gosec // endpoint is configured by the caller
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(dest); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// absoluteURL upgrades protocol-relative URLs ("//cdn/x.jpg") to https.
func absoluteURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
