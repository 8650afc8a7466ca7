package topicfy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// DefaultVariant stands in for a missing season/variant label in the truth
// fingerprint.
const DefaultVariant = "default"

// EventKey identifies one exact reported instance of an event.
type EventKey struct {
	SubjectID       string
	EventType       ClaimType
	AnnouncementKey string
	Signal          string // primary signal date (YYYY-MM-DD) or asset id
}

// TruthKey identifies the underlying fact regardless of who reported it.
type TruthKey struct {
	SubjectID string
	EventType ClaimType
	Variant   string
}

// EventFingerprint hashes the four components of k, each lowercased and
// trimmed on its own before joining.
func EventFingerprint(k EventKey) string {
	return fingerprint(k.SubjectID, string(k.EventType), k.AnnouncementKey, k.Signal)
}

// TruthFingerprint hashes subject, event type and variant. An empty variant
// hashes as DefaultVariant.
func TruthFingerprint(k TruthKey) string {
	variant := k.Variant
	if strings.TrimSpace(variant) == "" {
		variant = DefaultVariant
	}
	return fingerprint(k.SubjectID, string(k.EventType), variant)
}

// fingerprint length-prefixes every normalized part so that no separator
// inside a part can shift bytes into its neighbour.
func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		norm := strings.Join(strings.Fields(strings.ToLower(p)), " ")
		fmt.Fprintf(h, "%d:%s;", len(norm), norm)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Stamp derives the claim type and variant when unset and fills both
// fingerprints on c. signal is the date or asset id the report is tied to.
func Stamp(c *Candidate, signal string) {
	if c.Claim == "" {
		c.Claim = DetectClaim(c.Title)
	}
	if c.Variant == "" {
		c.Variant = DetectVariant(c.Title)
	}
	if c.Key == "" {
		c.Key = Normalize(c.Title)
	}
	if c.SubjectID == "" {
		c.SubjectID = SubjectFromTitle(c.Title)
	}
	c.EventFingerprint = EventFingerprint(EventKey{
		SubjectID:       c.SubjectID,
		EventType:       c.Claim,
		AnnouncementKey: c.Key,
		Signal:          signal,
	})
	c.TruthFingerprint = TruthFingerprint(TruthKey{
		SubjectID: c.SubjectID,
		EventType: c.Claim,
		Variant:   c.Variant,
	})
}

// claimRules are evaluated in order; the first match wins.
var claimRules = []struct {
	claim ClaimType
	re    *regexp.Regexp
}{
	{ClaimNewSeason, regexp.MustCompile(`(?i)\b(renew(ed|s)?|sequel)\b|\b(season|part|cour)\s*\d+\b.*\b(confirm|announc|green.?lit)|\b(confirm|announc)\w*\b.*\b(season|part|cour)\s*\d+\b|\b\d+(st|nd|rd|th)\s+season\b.*\b(confirm|announc)`)},
	{ClaimTrailer, regexp.MustCompile(`(?i)\b(trailer|teaser|pv|promo(tional)? video)\b`)},
	{ClaimCastReveal, regexp.MustCompile(`(?i)\b(cast|voice actors?|seiyuu|staff)\b`)},
	{ClaimReleaseDate, regexp.MustCompile(`(?i)\b(release date|premieres?|premiere date|airs?|launch(es)?)\b`)},
	{ClaimKeyVisual, regexp.MustCompile(`(?i)\b(key visual|visual|poster)\b`)},
}

// DetectClaim classifies a headline into a ClaimType, TRENDING when nothing
// more specific matches.
func DetectClaim(title string) ClaimType {
	for _, r := range claimRules {
		if r.re.MatchString(title) {
			return r.claim
		}
	}
	return ClaimTrending
}

var (
	seasonNumRe = regexp.MustCompile(`(?i)\b(season|part|cour)\s*(\d+)\b`)
	ordinalRe   = regexp.MustCompile(`(?i)\b(\d+)(?:st|nd|rd|th)\s+(season|part|cour)\b`)
	finalRe     = regexp.MustCompile(`(?i)\bfinal\s+season\b`)
	movieRe     = regexp.MustCompile(`(?i)\b(movie|film)\b`)
)

// subjectCutRe matches the first claim or variant phrase of a normalized
// headline; the subject is what precedes it.
var subjectCutRe = regexp.MustCompile(`\b(` +
	`(season|part|cour) \d+|\d+(st|nd|rd|th) (season|part|cour)|` +
	`(first|second|third|fourth|fifth|final|new|next) (season|part|cour)|` +
	`movie|film|renew\w*|sequel|confirm\w*|announc\w*|green ?lit|officially|` +
	`reveal\w*|trailer|teaser|pv|promo|cast|staff|release date|premier\w*|` +
	`key visual|visual|poster)\b`)

// SubjectFromTitle derives a subject label for headlines the metadata lookup
// could not resolve: the normalized title up to its first claim or variant
// phrase, so "Kaiju No. 8 Season 2 Confirmed" and "Kaiju No. 8 Season 2
// Officially Announced" share the subject "kaiju no 8". Headlines that open
// with the claim fall back to the title with every such phrase removed.
func SubjectFromTitle(title string) string {
	key := Normalize(title)
	if loc := subjectCutRe.FindStringIndex(key); loc != nil {
		if head := strings.TrimSpace(key[:loc[0]]); head != "" {
			return head
		}
		if rest := strings.Join(strings.Fields(subjectCutRe.ReplaceAllString(key, " ")), " "); rest != "" {
			return rest
		}
	}
	return key
}

// DetectVariant extracts a season/variant label such as "season 2",
// "part 3", "final season" or "movie". Returns "" when none is present.
func DetectVariant(title string) string {
	if m := seasonNumRe.FindStringSubmatch(title); m != nil {
		return strings.ToLower(m[1]) + " " + strings.TrimLeft(m[2], "0")
	}
	if m := ordinalRe.FindStringSubmatch(title); m != nil {
		return strings.ToLower(m[2]) + " " + strings.TrimLeft(m[1], "0")
	}
	if finalRe.MatchString(title) {
		return "final season"
	}
	if movieRe.MatchString(title) {
		return "movie"
	}
	return ""
}
