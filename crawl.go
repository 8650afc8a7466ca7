package topicfy

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const crawlMaxBytes = 2 << 20

// previewSelectors are tried in order; the first non-empty attribute wins.
var previewSelectors = []struct{ sel, attr string }{
	{`meta[property="og:image"]`, "content"},
	{`meta[property="og:image:url"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`meta[name="twitter:image:src"]`, "content"},
	{`link[rel="image_src"]`, "href"},
}

// heroHints mark <img> elements that are likely a site's main visual.
var heroHints = []string{"kv", "keyvisual", "key_visual", "mainvisual", "main_visual", "hero", "visual", "main"}

var ogImageRe = regexp.MustCompile(
	`(?i)<meta\s+[^>]*property=["']og:image["'][^>]*content=["']([^"']+)["']|` +
		`<meta\s+[^>]*content=["']([^"']+)["'][^>]*property=["']og:image["']`,
)

// ExtractOGImageURL pulls the og:image URL from raw HTML with a
// case-insensitive regex. It catches tags the exact-match selectors miss,
// such as "OG:Image". Returns "" if not found.
func ExtractOGImageURL(pageHTML string) string {
	m := ogImageRe.FindStringSubmatch(pageHTML)
	if m == nil {
		return ""
	}
	img := m[1]
	if img == "" {
		img = m[2]
	}
	return html.UnescapeString(img)
}

// ExtractPreviewImage finds the primary preview image of a page: social
// preview meta tags first, then a hero-looking <img>, then the widest
// declared <img>. Relative URLs are resolved against pageURL.
func ExtractPreviewImage(pageURL string, r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, crawlMaxBytes))
	if err != nil {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	for _, ps := range previewSelectors {
		if v := strings.TrimSpace(doc.Find(ps.sel).First().AttrOr(ps.attr, "")); v != "" {
			return resolveURL(pageURL, v)
		}
	}
	if og := ExtractOGImageURL(string(raw)); og != "" {
		return resolveURL(pageURL, og)
	}

	var hero, widest string
	widestW := 0
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		marker := strings.ToLower(src + " " + s.AttrOr("class", "") + " " + s.AttrOr("id", "") + " " + s.AttrOr("alt", ""))
		if hero == "" && matchesAny(marker, heroHints) && !matchesAny(marker, []string{"logo", "icon", "sprite"}) {
			hero = src
		}
		if w, err := strconv.Atoi(s.AttrOr("width", "")); err == nil && w > widestW {
			widestW, widest = w, src
		}
	})
	if hero != "" {
		return resolveURL(pageURL, hero)
	}
	return resolveURL(pageURL, widest)
}

// CrawlPreviewImage fetches siteURL and returns its primary preview image,
// "" on any failure.
func (cfg *Config) CrawlPreviewImage(ctx context.Context, siteURL string) string {
	cfg.defaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.tuning().RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := cfg.HTTPClient
	if cfg.StealthClient != nil {
		client = cfg.StealthClient
	}
	resp, err := client.Do(req) //nolint:gosec // official site url comes from the metadata lookup
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}
	return ExtractPreviewImage(resp.Request.URL.String(), resp.Body)
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	ref = absoluteURL(html.UnescapeString(ref))
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}
