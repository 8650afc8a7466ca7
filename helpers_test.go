package topicfy

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeStore is an in-memory HistoryStore.
type fakeStore struct {
	mu       sync.Mutex
	recent   []HistoryEntry
	declined []DeclinedEntry
	tiers    map[string]int
	err      error
	reads    int
}

func (s *fakeStore) ListRecent(_ context.Context, limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.recent) > limit {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

func (s *fakeStore) ListDeclined(context.Context) ([]DeclinedEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.declined, nil
}

func (s *fakeStore) SourceTier(_ context.Context, name string) (int, bool, error) {
	if s.err != nil {
		return 0, false, s.err
	}
	t, ok := s.tiers[name]
	return t, ok, nil
}

// fakeSource returns fixed items, or panics when panicMsg is set.
type fakeSource struct {
	name     string
	kind     SourceKind
	items    []RawItem
	panicMsg string
}

func (f *fakeSource) Name() string     { return f.name }
func (f *fakeSource) Kind() SourceKind { return f.kind }
func (f *fakeSource) Fetch(context.Context) []RawItem {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	out := make([]RawItem, len(f.items))
	copy(out, f.items)
	return out
}

// flatPNG encodes a w×h single-color PNG.
func flatPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// gradientPNG encodes a w×h PNG that brightens left to right. Its
// difference hash is far from that of any flat image.
func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	return patternPNG(t, w, h, func(x, _ int) uint8 { return uint8(x * 255 / w) })
}

// patternPNG encodes a w×h grayscale PNG whose pixels come from fill.
func patternPNG(t *testing.T, w, h int, fill func(x, y int) uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// imageServer serves the given path → PNG bytes map and 404s everything else.
func imageServer(t *testing.T, images map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := images[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}
