package topicfy

import (
	"strings"
	"unicode/utf8"
)

// minWordRunes is the minimum rune count for a word to be kept in the query.
const minWordRunes = 2

// maxQueryWords is the maximum number of meaningful words in the image query.
const maxQueryWords = 5

// headlineNoise are words that describe the news rather than the subject.
var headlineNoise = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"announced": true, "announces": true, "confirmed": true, "confirms": true,
	"officially": true, "official": true, "reveals": true, "revealed": true,
	"new": true, "gets": true, "trailer": true, "teaser": true, "visual": true,
	"key": true, "release": true, "date": true, "premiere": true, "renewed": true,
	"discussion": true, "episode": true, "ep": true, "anime": true,
}

// CleanQuerySuffixes bias the community index toward text-free artwork.
var CleanQuerySuffixes = []string{"clean artwork", "scenery wallpaper", "artwork no text"}

// BuildImageQuery extracts up to five meaningful words from a headline for
// image search, dropping headline noise and one-letter words.
func BuildImageQuery(title string) string {
	var meaningful []string
	for _, w := range strings.Fields(title) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}«»—–-")
		if w == "" {
			continue
		}
		if headlineNoise[strings.ToLower(w)] {
			continue
		}
		if utf8.RuneCountInString(w) < minWordRunes && !isDigits(w) {
			continue
		}
		meaningful = append(meaningful, w)
	}
	if len(meaningful) > maxQueryWords {
		meaningful = meaningful[:maxQueryWords]
	}
	return strings.Join(meaningful, " ")
}

// CleanQueries returns the keyword-biased queries for a subject.
func CleanQueries(subject string) []string {
	if subject == "" {
		return nil
	}
	out := make([]string, len(CleanQuerySuffixes))
	for i, s := range CleanQuerySuffixes {
		out[i] = subject + " " + s
	}
	return out
}

// BroadQueries returns unconstrained queries: the subject, and the full
// headline when it says more than the subject.
func BroadQueries(subject, title string) []string {
	if subject == "" {
		return nil
	}
	out := []string{subject}
	if t := strings.TrimSpace(title); t != "" && !strings.EqualFold(t, subject) {
		out = append(out, t)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
