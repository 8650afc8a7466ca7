package topicfy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func stamped(title, subject, signal string) *Candidate {
	c := &Candidate{Title: title, Key: Normalize(title), SubjectID: subject, Image: "/media/card.png"}
	Synthesize(c)
	Stamp(c, signal)
	return c
}

func newTestGate(t *testing.T, patterns ...string) *Gate {
	t.Helper()
	g, err := NewGate(&Config{Tuning: Tuning{BannedPatterns: patterns}}, nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return g
}

func TestGate_TruthDuplicate(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	prev := stamped("Oshi no Ko Season 3 Confirmed", "150672", "2026-10-16")
	history := []HistoryEntry{{
		ID:               "p1",
		Title:            prev.Title,
		Slug:             prev.Slug,
		Claim:            prev.Claim,
		EventFingerprint: prev.EventFingerprint,
		TruthFingerprint: prev.TruthFingerprint,
	}}
	c := stamped("Oshi No Ko third season announced, Season 3 in production", "150672", "2026-10-17")

	v := g.Validate(context.Background(), c, history, false)
	if v.Accept || v.Reason != ReasonTruthDuplicate || v.MatchedID != "p1" {
		t.Errorf("got %+v, want truth duplicate of p1", v)
	}

	forced := g.Validate(context.Background(), c, history, true)
	if !forced.Accept {
		t.Errorf("force should bypass truth check, got %+v", forced)
	}
}

func TestGate_TruthDuplicateWithoutLookup(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	prev := stamped("Kaiju No. 8 Season 2 Confirmed", "", "2026-10-16")
	history := []HistoryEntry{{
		ID:               "p7",
		Title:            prev.Title,
		Slug:             prev.Slug,
		Claim:            prev.Claim,
		EventFingerprint: prev.EventFingerprint,
		TruthFingerprint: prev.TruthFingerprint,
	}}
	c := stamped("Kaiju No. 8 Season 2 Officially Announced", "", "2026-10-17")

	v := g.CheckIdentity(c, history, false)
	if v.Accept || v.Reason != ReasonTruthDuplicate || v.MatchedID != "p7" {
		t.Errorf("got %+v, want truth duplicate of p7", v)
	}
}

func TestGate_TruthOnlyForSuppressedClaims(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	prev := stamped("Dandadan Trailer", "171018", "https://cdn.example/pv1.mp4")
	history := []HistoryEntry{{ID: "p1", Title: prev.Title, Slug: prev.Slug, EventFingerprint: prev.EventFingerprint, TruthFingerprint: prev.TruthFingerprint}}

	// Same subject and claim, new asset: a second trailer is news.
	c := stamped("Dandadan New Trailer", "171018", "https://cdn.example/pv2.mp4")
	if c.TruthFingerprint != prev.TruthFingerprint {
		t.Fatal("test setup: truth fingerprints should collide")
	}
	if v := g.Validate(context.Background(), c, history, false); !v.Accept {
		t.Errorf("second trailer rejected: %+v", v)
	}
}

func TestGate_EventDuplicate(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	c := stamped("Blue Lock Cast Reveal", "137822", "2026-10-17")
	history := []HistoryEntry{{ID: "p9", Title: "something else", Slug: "other", EventFingerprint: c.EventFingerprint, TruthFingerprint: "x"}}

	v := g.Validate(context.Background(), c, history, false)
	if v.Reason != ReasonEventDuplicate || v.MatchedID != "p9" {
		t.Errorf("got %+v, want event duplicate", v)
	}
}

func TestGate_LegacyDuplicate(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	c := stamped("Frieren: Beyond Journey's End!", "154587", "2026-10-17")

	tests := []struct {
		name    string
		history HistoryEntry
		want    bool
	}{
		{"stripped title match", HistoryEntry{ID: "old1", Title: "frieren beyond journeys end"}, true},
		{"slug match", HistoryEntry{ID: "old2", Title: "Different", Slug: c.Slug}, true},
		{"fingerprinted row skipped", HistoryEntry{ID: "new1", Title: "frieren beyond journeys end", EventFingerprint: "e", TruthFingerprint: "t"}, false},
		{"unrelated", HistoryEntry{ID: "old3", Title: "Bleach"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Validate(context.Background(), c, []HistoryEntry{tt.history}, false)
			got := v.Reason == ReasonLegacyDuplicate
			if got != tt.want {
				t.Errorf("legacy duplicate = %v, want %v (verdict %+v)", got, tt.want, v)
			}
		})
	}
}

func TestGate_BannedNotBypassedByForce(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, `\bleak(ed|s)?\b`)
	c := stamped("Chainsaw Man Movie Leaked Online", "1", "2026-10-17")

	v := g.Validate(context.Background(), c, nil, true)
	if v.Accept || v.Reason != ReasonBanned {
		t.Errorf("got %+v, want banned", v)
	}
}

func TestGate_BannedMatchesContent(t *testing.T) {
	t.Parallel()

	g := newTestGate(t, "spoiler")
	c := stamped("Jujutsu Kaisen", "1", "2026-10-17")
	c.Content = "Major SPOILERS inside"

	if v := g.Validate(context.Background(), c, nil, false); v.Reason != ReasonBanned {
		t.Errorf("got %+v, want banned", v)
	}
}

func TestNewGate_BadPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewGate(&Config{Tuning: Tuning{BannedPatterns: []string{"("}}}, nil); err == nil {
		t.Error("expected compile error")
	}
}

func TestGate_ImageRequirement(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
		case "/page":
			w.Header().Set("Content-Type", "text/html")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g, err := NewGate(&Config{HTTPClient: srv.Client()}, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		image string
		force bool
		want  RejectReason
	}{
		{"missing", "", false, ReasonNoImage},
		{"missing forced", "  ", true, ReasonNoImage},
		{"fallback sentinel", DefaultFallbackImage, true, ReasonFallbackImage},
		{"unreachable", srv.URL + "/gone.png", false, ReasonImageUnreachable},
		{"not an image", srv.URL + "/page", false, ReasonImageUnreachable},
		{"reachable", srv.URL + "/ok.png", false, ""},
		{"local asset", "/media/card.png", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := stamped("Vinland Saga", "1", "2026-10-17")
			c.Image = tt.image
			v := g.Validate(context.Background(), c, nil, tt.force)
			if v.Reason != tt.want {
				t.Errorf("reason = %q, want %q", v.Reason, tt.want)
			}
			if (tt.want == "") != v.Accept {
				t.Errorf("accept = %v for reason %q", v.Accept, v.Reason)
			}
		})
	}
}

func TestGate_ReachableFallsBackToGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Range") == "" {
			t.Error("expected ranged GET")
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte{0xff, 0xd8})
	}))
	defer srv.Close()

	cfg := &Config{HTTPClient: srv.Client()}
	if !cfg.Reachable(context.Background(), srv.URL+"/a.jpg") {
		t.Error("expected reachable via GET")
	}
}

func TestGate_EmitsDecisions(t *testing.T) {
	t.Parallel()

	var got []Decision
	cfg := &Config{OnDecision: func(d Decision) { got = append(got, d) }}
	g, err := NewGate(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	g.Validate(context.Background(), stamped("Mashle", "1", "2026-10-17"), nil, false)

	if len(got) != 1 || got[0].Stage != "gate" || !got[0].Accept {
		t.Errorf("decisions = %+v", got)
	}
}
