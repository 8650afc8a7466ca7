package topicfy

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// DownloadOpts configures an image download.
type DownloadOpts struct {
	MaxBytes int64         // max response body size (default: 12MB)
	MinBytes int           // reject if smaller (default: 0)
	Timeout  time.Duration // per-request timeout (default: Tuning.RequestTimeout)
}

const defaultMaxBytes = 12 << 20 // full frames are needed for entropy analysis

// DownloadResult holds downloaded image data.
type DownloadResult struct {
	Data     []byte
	MIMEType string
}

// Download fetches an image from url. Tries cfg.StealthClient first (if set),
// falls back to cfg.HTTPClient.
// Returns nil on any failure (404, non-image, timeout) so callers simply drop
// the candidate.
func (cfg *Config) Download(ctx context.Context, url string, opts DownloadOpts) *DownloadResult {
	cfg.defaults()

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.tuning().RequestTimeout
	}

	if cfg.StealthClient != nil {
		if r := fetchImageData(ctx, cfg.StealthClient, url, cfg.UserAgent, opts); r != nil {
			return r
		}
	}
	return fetchImageData(ctx, cfg.HTTPClient, url, cfg.UserAgent, opts)
}

func fetchImageData(ctx context.Context, client *http.Client, imageURL, ua string, opts DownloadOpts) *DownloadResult {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req) //nolint:gosec // URL comes from harvesters; SSRF policy belongs to the caller
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	ct := mediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
	if err != nil || len(data) < opts.MinBytes {
		return nil
	}
	return &DownloadResult{Data: data, MIMEType: ct}
}

// mediaType strips MIME parameters: "image/jpeg; charset=utf-8" → "image/jpeg".
func mediaType(ct string) string {
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Reachable is the lightweight probe used by the gate: a HEAD request that
// must answer 2xx with an image content type. Servers that refuse HEAD get a
// ranged GET instead.
func (cfg *Config) Reachable(ctx context.Context, url string) bool {
	cfg.defaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.tuning().RequestTimeout)
	defer cancel()

	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return false
		}
		req.Header.Set("User-Agent", cfg.UserAgent)
		if method == http.MethodGet {
			req.Header.Set("Range", "bytes=0-1023")
		}

		resp, err := cfg.HTTPClient.Do(req) //nolint:gosec // see fetchImageData
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
			continue
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return false
		}
		ct := mediaType(resp.Header.Get("Content-Type"))
		return ct == "" || strings.HasPrefix(ct, "image/")
	}
	return false
}
