package topicfy

import "time"

// SourceKind identifies what sort of feed produced a RawItem.
type SourceKind string

const (
	KindBreakingNews SourceKind = "breaking_news" // editorial news feeds; wins score ties
	KindCommunity    SourceKind = "community"     // forums, aggregators
	KindDatabase     SourceKind = "database"      // trending lists from metadata services
)

// RawItem is one entry as normalized by a Source adapter.
type RawItem struct {
	Title       string
	Image       string // optional
	Description string // optional
	Source      string // source label, e.g. "reddit:r/anime"
	Kind        SourceKind
}

// ClaimType is the kind of real-world event a topic reports.
type ClaimType string

const (
	ClaimNewSeason   ClaimType = "NEW_SEASON_CONFIRMED"
	ClaimTrailer     ClaimType = "TRAILER_DROP"
	ClaimCastReveal  ClaimType = "CAST_REVEAL"
	ClaimReleaseDate ClaimType = "RELEASE_DATE"
	ClaimKeyVisual   ClaimType = "KEY_VISUAL"
	ClaimTrending    ClaimType = "TRENDING"
)

// Candidate is an aggregated, not-yet-published topic.
type Candidate struct {
	Title   string
	Key     string   // Normalize(Title); unique within a Pool
	Sources []string // distinct source labels in vote order
	Score   int      // corroboration: len(Sources)

	Image       string // optional
	Description string // optional
	Slug        string
	Content     string

	Claim     ClaimType
	SubjectID string // metadata-service id, or SubjectFromTitle when unresolved
	Variant   string // season/variant label, "" when none

	// TiedAssets are images bound to the announcement itself (Stage A).
	TiedAssets []string

	EventFingerprint string
	TruthFingerprint string

	Tier      int // 1 premier .. 3 unknown
	Relevance int // 0..100

	breaking bool       // has at least one KindBreakingNews vote
	media    *MediaInfo // resolved by the pipeline, reused by SelectImage
}

// Breaking reports whether any vote came from a breaking-news source.
func (c *Candidate) Breaking() bool { return c.breaking }

// HistoryEntry is one previously published topic.
type HistoryEntry struct {
	ID               string
	Title            string
	Slug             string
	Claim            ClaimType
	EventFingerprint string
	TruthFingerprint string
	PublishedAt      time.Time
}

// DeclinedEntry is a topic an editor explicitly turned down.
type DeclinedEntry struct {
	Title string
}

// MediaInfo is what a MetadataLookup knows about a title.
type MediaInfo struct {
	ID              string
	Title           string
	BannerImage     string // optional, wide
	CoverImage      string // optional, portrait
	OfficialSiteURL string // optional
}

// Classification tells the renderer whether text may be overlaid.
type Classification string

const (
	ClassClean     Classification = "CLEAN"
	ClassTextHeavy Classification = "TEXT_HEAVY"
)

// ImageCandidate is one gated image in a selection pool.
type ImageCandidate struct {
	URL            string
	Origin         string // origin label, e.g. "anilist banner", "reddit clean artwork"
	Tier           int    // 1..6
	Width          int
	Height         int
	Score          int
	Classification Classification
	Rule           string // name of the classification rule that fired
	Overridden     bool   // reclassified CLEAN by the entropy pass
}

// Aspect returns width/height, or 0 for unknown dimensions.
func (ic ImageCandidate) Aspect() float64 {
	if ic.Height == 0 {
		return 0
	}
	return float64(ic.Width) / float64(ic.Height)
}

// ImagePick is the outcome of SelectImage.
type ImagePick struct {
	URL            string
	Classification Classification
	Origin         string
	Score          int
	Fallback       bool     // true when URL is the branded fallback sentinel
	Rationale      []string // audit trail, one line per decisive step
}

// Decision is an audit record delivered to Config.OnDecision.
type Decision struct {
	Stage  string // "gate", "duplicate", "image", "aggregate"
	Title  string
	Accept bool
	Reason string
	Detail string
}
