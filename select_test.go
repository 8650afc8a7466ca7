package topicfy

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type staticLookup struct{ info *MediaInfo }

func (s staticLookup) Lookup(context.Context, string) *MediaInfo { return s.info }

// fakeSearch answers clean-biased queries with clean and everything else
// with broad.
type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	clean   []ImageHit
	broad   []ImageHit
}

func (f *fakeSearch) Name() string { return "fake" }

func (f *fakeSearch) Search(_ context.Context, q string, _ SearchOpts) ([]ImageHit, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	for _, s := range CleanQuerySuffixes {
		if strings.HasSuffix(q, s) {
			return f.clean, nil
		}
	}
	return f.broad, nil
}

func TestSelectImage_TiedAssetShortcut(t *testing.T) {
	t.Parallel()

	search := &fakeSearch{}
	cfg := &Config{Search: search}
	c := &Candidate{Title: "Dandadan Season 2 Key Visual", TiedAssets: []string{"https://cdn.example/kv.jpg"}}

	pick := cfg.SelectImage(context.Background(), c)
	if pick.URL != "https://cdn.example/kv.jpg" || pick.Origin != OriginTiedAsset || pick.Fallback {
		t.Errorf("pick = %+v", pick)
	}
	if len(search.queries) != 0 {
		t.Errorf("harvest ran despite tied asset: %v", search.queries)
	}
}

func TestSelectImage_FallbackWhenNothingSurvives(t *testing.T) {
	t.Parallel()

	srv := imageServer(t, map[string][]byte{
		"/tiny.png": flatPNG(t, 100, 80, color.White),
	})
	var decisions []Decision
	cfg := &Config{
		HTTPClient: srv.Client(),
		Search:     &fakeSearch{broad: []ImageHit{{ImgURL: srv.URL + "/tiny.png"}, {ImgURL: srv.URL + "/gone.png"}}},
		OnDecision: func(d Decision) { decisions = append(decisions, d) },
	}

	pick := cfg.SelectImage(context.Background(), &Candidate{Title: "Mashle"})
	if !pick.Fallback || pick.URL != DefaultFallbackImage {
		t.Errorf("pick = %+v, want fallback", pick)
	}
	if len(decisions) != 1 || decisions[0].Stage != "image" || decisions[0].Accept {
		t.Errorf("decisions = %+v", decisions)
	}
}

func TestSelectImage_RelaxedRetryOnOfficialAssets(t *testing.T) {
	t.Parallel()

	srv := imageServer(t, map[string][]byte{
		"/banner.png": gradientPNG(t, 400, 300),
	})
	cfg := &Config{
		HTTPClient: srv.Client(),
		Lookup:     staticLookup{info: &MediaInfo{ID: "1", BannerImage: srv.URL + "/banner.png"}},
	}

	pick := cfg.SelectImage(context.Background(), &Candidate{Title: "Kaiju No. 8 Renewed"})
	if pick.Fallback {
		t.Fatalf("unexpected fallback: %v", pick.Rationale)
	}
	if pick.Origin != OriginMetadataBanner || pick.Classification != ClassClean {
		t.Errorf("pick = %+v", pick)
	}
	if !strings.Contains(strings.Join(pick.Rationale, "\n"), "retrying") {
		t.Errorf("rationale does not mention the retry: %v", pick.Rationale)
	}
}

func TestSelectImage_RerollsPresumedPoster(t *testing.T) {
	t.Parallel()

	images := map[string][]byte{
		"/official.png": gradientPNG(t, 800, 1000),
		"/broad.png":    flatPNG(t, 1300, 1000, color.Gray{Y: 90}),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/site" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<head><meta property="og:image" content="/official.png"></head>`))
			return
		}
		data, ok := images[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	cfg := &Config{
		HTTPClient: srv.Client(),
		Lookup:     staticLookup{info: &MediaInfo{ID: "2", OfficialSiteURL: srv.URL + "/site"}},
		Search:     &fakeSearch{broad: []ImageHit{{ImgURL: srv.URL + "/broad.png", Source: srv.URL + "/thread"}}},
	}

	pick := cfg.SelectImage(context.Background(), &Candidate{Title: "Spy x Family Movie"})
	if pick.URL != srv.URL+"/broad.png" {
		t.Fatalf("pick = %+v, want the broad landscape image over the portrait site poster", pick)
	}
	if pick.Origin != OriginBroadSearch || pick.Score != 65 {
		t.Errorf("origin = %q, score = %d", pick.Origin, pick.Score)
	}
}

func TestSelectImage_EntropyOverride(t *testing.T) {
	t.Parallel()

	srv := imageServer(t, map[string][]byte{
		"/flat/cover.png": flatPNG(t, 900, 1000, color.White),
		"/busy/cover.png": patternPNG(t, 900, 1000, func(x, y int) uint8 { return uint8((x*37 + y*101) % 256) }),
	})

	tests := []struct {
		name       string
		path       string
		want       Classification
		overridden bool
	}{
		{"flat background reclassified", "/flat/cover.png", ClassClean, true},
		{"busy cover stays text heavy", "/busy/cover.png", ClassTextHeavy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			url := srv.URL + tt.path
			if class, rule := ClassifyByKeywords(NewImageFacts(OriginMetadataCover, url, nil)); class != ClassTextHeavy || rule != "text-heavy-keyword" {
				t.Fatalf("keyword class = %s (%s), want text heavy", class, rule)
			}

			cfg := &Config{
				HTTPClient: srv.Client(),
				Lookup:     staticLookup{info: &MediaInfo{ID: "3", CoverImage: url}},
			}
			pick := cfg.SelectImage(context.Background(), &Candidate{Title: "Mashle"})
			if pick.Fallback || pick.URL != url || pick.Origin != OriginMetadataCover {
				t.Fatalf("pick = %+v", pick)
			}
			if pick.Classification != tt.want {
				t.Errorf("Classification = %s, want %s", pick.Classification, tt.want)
			}
			rationale := strings.Join(pick.Rationale, "\n")
			if got := strings.Contains(rationale, "entropy override"); got != tt.overridden {
				t.Errorf("override in rationale = %v, want %v: %s", got, tt.overridden, rationale)
			}
			if !strings.Contains(rationale, "rule text-heavy-keyword") {
				t.Errorf("rationale lacks the keyword rule: %s", rationale)
			}
		})
	}
}

func TestRank_MarksOverridden(t *testing.T) {
	t.Parallel()

	flat := syntheticFrame(image.Rectangle{}, nil)
	pool := []gatedImage{
		{ImageCandidate: ImageCandidate{URL: "flat", Score: 50, Classification: ClassTextHeavy}, img: flat},
		{ImageCandidate: ImageCandidate{URL: "dense", Score: 60, Classification: ClassTextHeavy}, img: syntheticFrame(centerRect, denseText)},
		{ImageCandidate: ImageCandidate{URL: "clean", Score: 40, Classification: ClassClean}, img: flat},
	}
	ranked := (&Config{}).rank(pool, DefaultTuning())

	want := map[string]struct {
		class      Classification
		overridden bool
	}{
		"flat":  {ClassClean, true},
		"dense": {ClassTextHeavy, false},
		"clean": {ClassClean, false},
	}
	if ranked[0].URL != "dense" || ranked[2].URL != "clean" {
		t.Errorf("order = %s, %s, %s", ranked[0].URL, ranked[1].URL, ranked[2].URL)
	}
	for _, ic := range ranked {
		w := want[ic.URL]
		if ic.Classification != w.class || ic.Overridden != w.overridden {
			t.Errorf("%s: class %s overridden %v, want %s %v", ic.URL, ic.Classification, ic.Overridden, w.class, w.overridden)
		}
	}
}

func TestSelectImage_StockAndDuplicatesDropped(t *testing.T) {
	t.Parallel()

	art := gradientPNG(t, 1200, 900)
	srv := imageServer(t, map[string][]byte{
		"/a.png":    art,
		"/copy.png": art,
	})
	cfg := &Config{
		HTTPClient:          srv.Client(),
		ExtraBlockedDomains: []string{"agency.test"},
		Search: &fakeSearch{
			clean: []ImageHit{{ImgURL: srv.URL + "/a.png"}},
			broad: []ImageHit{
				{ImgURL: srv.URL + "/copy.png"},
				{ImgURL: srv.URL + "/a.png", Source: "https://www.agency.test/page"},
			},
		},
	}

	pool := cfg.gate(context.Background(), uniqueByURL([]harvested{
		{url: srv.URL + "/a.png", origin: OriginCleanSearch + " clean artwork", tier: TierCleanSearch},
		{url: srv.URL + "/copy.png", origin: OriginBroadSearch, tier: TierBroadSearch},
		{url: srv.URL + "/stock.png", origin: OriginBroadSearch, tier: TierBroadSearch, source: "https://www.agency.test/p"},
	}), 600)
	if len(pool) != 1 || pool[0].URL != srv.URL+"/a.png" {
		urls := make([]string, len(pool))
		for i, g := range pool {
			urls[i] = g.URL
		}
		t.Errorf("pool = %v, want only the clean-search copy", urls)
	}

	pick := cfg.SelectImage(context.Background(), &Candidate{Title: "Frieren"})
	if pick.URL != srv.URL+"/a.png" || !strings.HasPrefix(pick.Origin, OriginCleanSearch) {
		t.Errorf("pick = %+v", pick)
	}
}

func TestUniqueByURL(t *testing.T) {
	t.Parallel()

	got := uniqueByURL([]harvested{
		{url: "b", tier: 6},
		{url: "a", tier: 3},
		{url: "b", tier: 1},
		{url: ""},
	})
	if len(got) != 2 || got[0].url != "b" || got[0].tier != 1 || got[1].url != "a" {
		t.Errorf("got %+v", got)
	}
}
