package topicfy

import (
	"context"
	"log/slog"
	"strings"
)

// Source trust tiers.
const (
	TierPremier   = 1
	TierCommunity = 2
	TierUnknown   = 3
)

// PremierSources are name fragments of official and premier outlets.
var PremierSources = []string{
	"animenewsnetwork", "anime news network", "crunchyroll", "natalie",
	"famitsu", "aniplex", "toho", "kadokawa", "shueisha", "official",
}

// CommunitySources are name fragments of community and aggregator platforms.
var CommunitySources = []string{
	"reddit", "anilist", "myanimelist", "kitsu", "twitter", "x.com", "bluesky",
}

// SourceTier classifies a source name. The hardcoded lists win over any
// stored override; lookup misses and store errors fall back to TierUnknown.
func (g *Gate) SourceTier(ctx context.Context, name string) int {
	lower := strings.ToLower(name)
	for _, f := range PremierSources {
		if strings.Contains(lower, f) {
			return TierPremier
		}
	}
	for _, f := range CommunitySources {
		if strings.Contains(lower, f) {
			return TierCommunity
		}
	}

	if g.history == nil {
		return TierUnknown
	}
	tier, ok, err := g.history.SourceTier(ctx, name)
	if err != nil {
		slog.Debug("topicfy: source tier lookup failed", "source", name, "error", err.Error())
		return TierUnknown
	}
	if !ok || tier < TierPremier || tier > TierUnknown {
		return TierUnknown
	}
	return tier
}

// BestTier returns the most trusted tier among sources, TierUnknown for none.
func (g *Gate) BestTier(ctx context.Context, sources []string) int {
	best := TierUnknown
	for _, s := range sources {
		if t := g.SourceTier(ctx, s); t < best {
			best = t
		}
	}
	return best
}

var (
	positiveSignals = []string{"announced", "confirmed", "premiere", "new season", "trailer"}
	negativeSignals = []string{"rumor", "speculation", "leak"}
)

// RelevanceScore starts at 50, adds 30 for tier 1 or 15 for tier 2, adds 5 for
// a positive keyword, subtracts 10 for a negative keyword, clamped to [0,100].
func RelevanceScore(title string, tier int) int {
	score := 50
	switch tier {
	case TierPremier:
		score += 30
	case TierCommunity:
		score += 15
	}

	lower := strings.ToLower(title)
	if containsAny(lower, positiveSignals) {
		score += 5
	}
	if containsAny(lower, negativeSignals) {
		score -= 10
	}
	return min(max(score, 0), 100)
}

func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
