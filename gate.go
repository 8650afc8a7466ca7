package topicfy

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// RejectReason names why a candidate was turned away.
type RejectReason string

const (
	ReasonBanned           RejectReason = "banned_topic"
	ReasonTruthDuplicate   RejectReason = "truth_fingerprint_seen"
	ReasonEventDuplicate   RejectReason = "event_fingerprint_seen"
	ReasonLegacyDuplicate  RejectReason = "legacy_title_or_slug_seen"
	ReasonNoImage          RejectReason = "no_image"
	ReasonFallbackImage    RejectReason = "fallback_image"
	ReasonImageUnreachable RejectReason = "image_unreachable"
	ReasonDeclined         RejectReason = "previously_declined"
	ReasonFuzzyDuplicate   RejectReason = "similar_title_published"
)

// Verdict is the gate's decision for one candidate.
type Verdict struct {
	Accept    bool
	Reason    RejectReason // empty when accepted
	Detail    string
	MatchedID string // history id that caused a duplicate rejection, if any
}

func accept() Verdict { return Verdict{Accept: true} }

func reject(reason RejectReason, detail, matchedID string) Verdict {
	return Verdict{Reason: reason, Detail: detail, MatchedID: matchedID}
}

// Gate decides whether candidates may be published.
type Gate struct {
	cfg     *Config
	history HistoryStore
	banned  []*regexp.Regexp

	// TruthSuppressed lists claim types whose fact can only be announced once.
	TruthSuppressed map[ClaimType]bool
}

// NewGate compiles the banned-topic patterns from cfg.Tuning. history may be
// nil, in which case duplicate checks see an empty history and every source
// falls back to the hardcoded tiers.
func NewGate(cfg *Config, history HistoryStore) (*Gate, error) {
	cfg.defaults()
	g := &Gate{
		cfg:             cfg,
		history:         history,
		TruthSuppressed: map[ClaimType]bool{ClaimNewSeason: true},
	}
	for _, p := range cfg.tuning().BannedPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compiling banned pattern %q: %w", p, err)
		}
		g.banned = append(g.banned, re)
	}
	return g, nil
}

// Validate runs the ordered checks against c and the supplied history
// snapshot. The first failing check decides. force skips the fingerprint and
// legacy duplicate checks but never the banned list or the image requirement.
func (g *Gate) Validate(ctx context.Context, c *Candidate, history []HistoryEntry, force bool) Verdict {
	v := g.validate(ctx, c, history, force)
	g.cfg.emit(Decision{Stage: "gate", Title: c.Title, Accept: v.Accept, Reason: string(v.Reason), Detail: v.Detail})
	if v.Reason == ReasonBanned {
		slog.Info("topicfy: banned topic rejected", "title", c.Title, "pattern", v.Detail)
	}
	return v
}

func (g *Gate) validate(ctx context.Context, c *Candidate, history []HistoryEntry, force bool) Verdict {
	if v := g.CheckIdentity(c, history, force); !v.Accept {
		return v
	}
	return g.checkImage(ctx, c.Image)
}

// CheckIdentity runs every check of Validate except the image requirement:
// banned patterns, truth and event fingerprints, and the legacy title/slug match.
func (g *Gate) CheckIdentity(c *Candidate, history []HistoryEntry, force bool) Verdict {
	for _, re := range g.banned {
		if re.MatchString(c.Title) || re.MatchString(c.Content) || re.MatchString(c.Description) {
			return reject(ReasonBanned, re.String(), "")
		}
	}
	if force {
		return accept()
	}

	if g.TruthSuppressed[c.Claim] && c.TruthFingerprint != "" {
		for _, h := range history {
			if h.TruthFingerprint == c.TruthFingerprint {
				return reject(ReasonTruthDuplicate, "fact already reported as "+h.Title, h.ID)
			}
		}
	}

	if c.EventFingerprint != "" {
		for _, h := range history {
			if h.EventFingerprint == c.EventFingerprint {
				return reject(ReasonEventDuplicate, "signal already processed as "+h.Title, h.ID)
			}
		}
	}

	if v, dup := legacyDuplicate(c, history); dup {
		return v
	}
	return accept()
}

// legacyDuplicate compares stripped titles and slugs against history rows
// where either side carries no fingerprint.
func legacyDuplicate(c *Candidate, history []HistoryEntry) (Verdict, bool) {
	candHasFP := c.EventFingerprint != "" && c.TruthFingerprint != ""
	stripped := alnumOnly(c.Title)
	for _, h := range history {
		if candHasFP && h.EventFingerprint != "" && h.TruthFingerprint != "" {
			continue
		}
		if stripped != "" && alnumOnly(h.Title) == stripped {
			return reject(ReasonLegacyDuplicate, "same title as "+h.ID, h.ID), true
		}
		if c.Slug != "" && h.Slug == c.Slug {
			return reject(ReasonLegacyDuplicate, "same slug as "+h.ID, h.ID), true
		}
	}
	return Verdict{}, false
}

func alnumOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (g *Gate) checkImage(ctx context.Context, image string) Verdict {
	switch {
	case strings.TrimSpace(image) == "":
		return reject(ReasonNoImage, "", "")
	case image == g.cfg.FallbackImage:
		return reject(ReasonFallbackImage, image, "")
	case isNetworkURL(image) && !g.cfg.Reachable(ctx, image):
		return reject(ReasonImageUnreachable, image, "")
	}
	return accept()
}

func isNetworkURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
