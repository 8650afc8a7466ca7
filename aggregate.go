package topicfy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// Normalize lowercases title, drops every rune that is not a letter, digit,
// underscore or space, collapses whitespace and trims.
func Normalize(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// keysOverlap reports whether either normalized key contains the other as a
// whole-token subsequence, so "one" never matches inside "one piece x" unless
// "one" is a token of it, and never inside "someone".
func keysOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return containsTokens(a, b) || containsTokens(b, a)
}

func containsTokens(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// Pool accumulates votes for one aggregation run. It is owned by the caller
// and not safe for concurrent use.
type Pool struct {
	entries []*Candidate
	voted   map[*Candidate]map[string]bool
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{voted: make(map[*Candidate]map[string]bool)}
}

// Len returns the number of distinct topics in the pool.
func (p *Pool) Len() int { return len(p.entries) }

// AddVote records item against the first entry whose key overlaps the item's
// normalized title, creating an entry when none does. A source label counts
// once per entry. Missing image and description are backfilled, never replaced.
func (p *Pool) AddVote(item RawItem) *Candidate {
	key := Normalize(item.Title)
	if key == "" {
		return nil
	}

	var c *Candidate
	for _, e := range p.entries {
		if keysOverlap(e.Key, key) {
			c = e
			break
		}
	}
	if c == nil {
		c = &Candidate{Title: strings.TrimSpace(item.Title), Key: key}
		p.entries = append(p.entries, c)
		p.voted[c] = make(map[string]bool)
	}

	if !p.voted[c][item.Source] {
		p.voted[c][item.Source] = true
		c.Sources = append(c.Sources, item.Source)
		c.Score++
	}
	if item.Kind == KindBreakingNews {
		c.breaking = true
	}
	if c.Image == "" && item.Image != "" {
		c.Image = item.Image
	}
	if c.Description == "" && item.Description != "" {
		c.Description = item.Description
	}
	return c
}

// Ranked returns the pool's candidates by corroboration score, descending.
// Ties go to candidates with a breaking-news vote; remaining ties keep
// insertion order.
func (p *Pool) Ranked() []*Candidate {
	out := make([]*Candidate, len(p.entries))
	copy(out, p.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].breaking && !out[j].breaking
	})
	return out
}

// FilterPublished drops items whose normalized title overlaps any already
// published title.
func FilterPublished(items []RawItem, publishedTitles []string) []RawItem {
	if len(publishedTitles) == 0 {
		return items
	}
	keys := make([]string, 0, len(publishedTitles))
	for _, t := range publishedTitles {
		if k := Normalize(t); k != "" {
			keys = append(keys, k)
		}
	}

	kept := items[:0:0]
	for _, it := range items {
		key := Normalize(it.Title)
		seen := false
		for _, k := range keys {
			if keysOverlap(k, key) {
				seen = true
				break
			}
		}
		if !seen {
			kept = append(kept, it)
		}
	}
	return kept
}

// Synthesize fills the fields a publishing layer needs but the sources may
// not have supplied: slug, content, description. Existing values are kept.
func Synthesize(c *Candidate) {
	if c.Slug == "" {
		c.Slug = Slugify(c.Title)
	}
	if c.Description == "" {
		c.Description = fmt.Sprintf("%s is trending right now.", c.Title)
	}
	if c.Content == "" {
		noun := "source"
		if c.Score != 1 {
			noun = "sources"
		}
		c.Content = fmt.Sprintf("%s is being discussed across %d %s: %s.",
			c.Title, c.Score, noun, strings.Join(c.Sources, ", "))
	}
}

// Slugify turns a title into a lowercase hyphenated slug.
func Slugify(title string) string {
	return strings.ReplaceAll(Normalize(strings.ReplaceAll(title, "_", " ")), " ", "-")
}

// Aggregate fetches every source concurrently, drops items already covered by
// publishedTitles and votes the rest into a fresh Pool. A source that panics
// contributes nothing; the others still count.
func (cfg *Config) Aggregate(ctx context.Context, sources []Source, publishedTitles []string) *Pool {
	results := make([][]RawItem, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			defer cfg.recoverTo("source:" + src.Name())
			items := src.Fetch(gctx)
			for j := range items {
				if items[j].Source == "" {
					items[j].Source = src.Name()
				}
				if items[j].Kind == "" {
					items[j].Kind = src.Kind()
				}
			}
			results[i] = items
			if len(items) == 0 {
				slog.Warn("topicfy: source returned nothing", "source", src.Name())
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	pool := NewPool()
	for _, items := range results {
		for _, it := range FilterPublished(items, publishedTitles) {
			pool.AddVote(it)
		}
	}

	slog.Debug("topicfy: aggregated", "sources", len(sources), "topics", pool.Len())
	return pool
}
