package topicfy

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGateDimensions(t *testing.T) {
	t.Parallel()

	tun := DefaultTuning()
	tests := []struct {
		name         string
		w, h, minLen int
		ok           bool
		reason       string
	}{
		{"wide banner", 1200, 1000, 600, true, ""},
		{"tall strip", 500, 2000, 600, false, "too small"},
		{"too narrow aspect", 700, 1400, 600, false, "bad aspect"},
		{"too wide aspect", 1900, 1000, 600, false, "bad aspect"},
		{"relaxed retry", 460, 650, 300, true, ""},
		{"unknown", 0, 0, 300, false, "unknown dimensions"},
	}
	for _, tt := range tests {
		ok, reason := tun.GateDimensions(tt.w, tt.h, tt.minLen)
		if ok != tt.ok || !strings.HasPrefix(reason, tt.reason) {
			t.Errorf("%s: GateDimensions(%d, %d) = (%v, %q), want (%v, %q...)", tt.name, tt.w, tt.h, ok, reason, tt.ok, tt.reason)
		}
	}
}

func TestScoreImage(t *testing.T) {
	t.Parallel()

	if got := ScoreImage(3, 1200, 1000, OriginMetadataBanner); got != 80 {
		t.Errorf("tier 3 = %d, want 80", got)
	}
	if got := ScoreImage(6, 1200, 1000, OriginBroadSearch); got != 50 {
		t.Errorf("tier 6 = %d, want 50", got)
	}
	if got := ScoreImage(6, 1500, 1000, OriginBroadSearch); got != 65 {
		t.Errorf("tier 6 wide = %d, want 65", got)
	}
	if got := ScoreImage(3, 700, 1000, OriginMetadataCover); got != 50 {
		t.Errorf("tier 3 portrait cover = %d, want 50", got)
	}
	if got := ScoreImage(1, 700, 1000, OriginCleanSearch+" clean artwork"); got != 100 {
		t.Errorf("tier 1 portrait artwork = %d, want 100", got)
	}
}

func TestReroll(t *testing.T) {
	t.Parallel()

	poster := ImageCandidate{URL: "poster", Origin: OriginMetadataCover, Score: 75}
	art := ImageCandidate{URL: "art", Origin: OriginBroadSearch, Score: 65}
	weak := ImageCandidate{URL: "weak", Origin: OriginBroadSearch, Score: 55}

	if got := reroll([]ImageCandidate{poster, art}); got.URL != "art" {
		t.Errorf("got %s, want art", got.URL)
	}
	if got := reroll([]ImageCandidate{poster, weak}); got.URL != "poster" {
		t.Errorf("got %s, want poster (no alternative above 60)", got.URL)
	}
	strong := poster
	strong.Score = 85
	if got := reroll([]ImageCandidate{strong, art}); got.URL != "poster" {
		t.Errorf("got %s, want poster (score >= 80)", got.URL)
	}
}

func TestProbeImage(t *testing.T) {
	t.Parallel()

	srv := imageServer(t, map[string][]byte{
		"/wide.png": flatPNG(t, 320, 200, color.White),
	})
	cfg := &Config{HTTPClient: srv.Client()}

	p := cfg.ProbeImage(context.Background(), srv.URL+"/wide.png")
	if p == nil {
		t.Fatal("expected probe result")
	}
	if p.Width != 320 || p.Height != 200 {
		t.Errorf("dimensions = %dx%d, want 320x200", p.Width, p.Height)
	}
	if _, err := p.Decode(); err != nil {
		t.Errorf("Decode: %v", err)
	}

	if cfg.ProbeImage(context.Background(), srv.URL+"/missing.png") != nil {
		t.Error("expected nil for 404")
	}
}

func TestProbeImage_Undecodable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("not really a png"))
	}))
	defer srv.Close()

	cfg := &Config{HTTPClient: srv.Client()}
	if p := cfg.ProbeImage(context.Background(), srv.URL+"/bad.png"); p != nil {
		t.Errorf("expected nil, got %+v", p)
	}
}
