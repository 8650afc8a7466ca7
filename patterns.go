package topicfy

import "strings"

// TextHeavyPatterns are origin-label/URL substrings of images that usually
// carry embedded text: posters, key visuals, magazine scans, trailer frames.
var TextHeavyPatterns = []string{
	"poster", "visual", "magazine", "trailer", "screenshot", "cover", "official website",
}

// CleanPatterns cancel a text-heavy match when they co-occur with it.
var CleanPatterns = []string{
	"clean", "artwork", "scenery", "background", "banner", "conceptual", "production art",
}

// PosterOriginPatterns mark origins presumed to be posters with a title
// treatment, for the portrait penalty and the ranking re-roll.
var PosterOriginPatterns = []string{"poster", "cover", "official site", "official website"}

// matchesAny reports whether lower contains any of patterns.
func matchesAny(lower string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isPosterOrigin reports whether an origin label names a poster-like source.
func isPosterOrigin(origin string) bool {
	return matchesAny(strings.ToLower(origin), PosterOriginPatterns)
}
