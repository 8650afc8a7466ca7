package topicfy

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// minTokenRunes: only words longer than three characters count toward overlap.
const minTokenRunes = 4

// DuplicateKind is the outcome class of CheckForDuplicate.
type DuplicateKind int

const (
	NotDuplicate DuplicateKind = iota
	DuplicateDeclined
	DuplicatePublished
)

// DuplicateResult reports a fuzzy title match against history.
type DuplicateResult struct {
	Kind      DuplicateKind
	MatchedID string  // published entry id for DuplicatePublished
	Matched   string  // title that matched
	Ratio     float64 // overlap of the match
}

// TitleTokens returns the distinct lowercase words of title longer than
// three characters.
func TitleTokens(title string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(Normalize(title)) {
		if len([]rune(w)) >= minTokenRunes {
			out[w] = true
		}
	}
	return out
}

// OverlapRatio is |shared| / max(|a|, |b|) over TitleTokens, 0 when either
// side has no qualifying tokens.
func OverlapRatio(a, b string) float64 {
	ta, tb := TitleTokens(a), TitleTokens(b)
	denom := max(len(ta), len(tb))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for w := range ta {
		if tb[w] {
			shared++
		}
	}
	return float64(shared) / float64(denom)
}

// CheckForDuplicate compares title against declined topics first and then
// against published topics inside the recency window. Store failures are
// treated as an empty history.
func (g *Gate) CheckForDuplicate(ctx context.Context, title string) DuplicateResult {
	res := g.checkForDuplicate(ctx, title)
	if res.Kind != NotDuplicate {
		reason := ReasonFuzzyDuplicate
		if res.Kind == DuplicateDeclined {
			reason = ReasonDeclined
		}
		g.cfg.emit(Decision{Stage: "duplicate", Title: title, Reason: string(reason), Detail: res.Matched})
	}
	return res
}

func (g *Gate) checkForDuplicate(ctx context.Context, title string) DuplicateResult {
	if g.history == nil {
		return DuplicateResult{}
	}
	threshold := g.cfg.tuning().OverlapThreshold

	declined, err := g.history.ListDeclined(ctx)
	if err != nil {
		slog.Warn("topicfy: declined history unavailable", "error", err.Error())
	}
	for _, d := range declined {
		if r := OverlapRatio(title, d.Title); r > threshold {
			return DuplicateResult{Kind: DuplicateDeclined, Matched: d.Title, Ratio: r}
		}
	}

	recent, err := g.history.ListRecent(ctx, g.cfg.tuning().RecentLimit)
	if err != nil {
		slog.Warn("topicfy: published history unavailable", "error", err.Error())
	}
	cutoff := time.Now().Add(-g.cfg.tuning().RecentWindow)
	for _, h := range recent {
		if !h.PublishedAt.IsZero() && h.PublishedAt.Before(cutoff) {
			continue
		}
		if r := OverlapRatio(title, h.Title); r > threshold {
			return DuplicateResult{Kind: DuplicatePublished, MatchedID: h.ID, Matched: h.Title, Ratio: r}
		}
	}
	return DuplicateResult{}
}
