package topicfy

import (
	"context"
	"net/http"
)

// DefaultFallbackImage is the branded asset returned by SelectImage when no
// real image survives. Gate.Validate rejects it, so callers that publish
// through the gate never ship it.
const DefaultFallbackImage = "/assets/fallback-card.png"

// DefaultUserAgent is sent with every outbound request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (compatible; go-topicfy/1.0)"

// Cache abstracts key-value caching (Redis, sync.Map, etc.)
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Source is a feed adapter. Fetch must never fail: adapters swallow their own
// transport and parse errors and return an empty slice instead.
type Source interface {
	Name() string
	Kind() SourceKind
	Fetch(ctx context.Context) []RawItem
}

// MetadataLookup resolves a topic title to official media assets.
// Implementations return nil unless the matched entity's title corresponds
// to the query.
type MetadataLookup interface {
	Lookup(ctx context.Context, title string) *MediaInfo
}

// HistoryStore is the read-only view of previously processed topics.
type HistoryStore interface {
	ListRecent(ctx context.Context, limit int) ([]HistoryEntry, error)
	ListDeclined(ctx context.Context) ([]DeclinedEntry, error)
	// SourceTier returns ok=false when no override is stored for name.
	SourceTier(ctx context.Context, name string) (tier int, ok bool, err error)
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	Cache         Cache          // optional: caches metadata lookups
	Lookup        MetadataLookup // optional: official banner/cover + site url
	Search        SearchProvider // optional: community search index for image harvesting
	StealthClient *http.Client   // optional: TLS-fingerprinted client for downloads
	HTTPClient    *http.Client   // optional: default http client (nil = http.DefaultClient)
	UserAgent     string         // default: DefaultUserAgent
	FallbackImage string         // default: DefaultFallbackImage

	// Tuning holds every empirically chosen threshold. Zero fields take the
	// values from DefaultTuning.
	Tuning Tuning

	// ExtraBlockedDomains are additional stock/copyrighted domains to drop from image pools.
	ExtraBlockedDomains []string

	// Optional callbacks for metrics/logging.
	OnPanic    func(tag string, r any)
	OnDecision func(Decision) // audit log for every accept/reject and image verdict
}

// defaults fills zero-value fields with sensible defaults. It only writes
// fields that are still zero, so calls after the first are read-only.
func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.FallbackImage == "" {
		c.FallbackImage = DefaultFallbackImage
	}
}

// tuning returns the effective thresholds without mutating c.
func (c *Config) tuning() Tuning {
	return c.Tuning.withDefaults()
}

func (c *Config) emit(d Decision) {
	if c.OnDecision != nil {
		c.OnDecision(d)
	}
}

func (c *Config) recoverTo(tag string) {
	if r := recover(); r != nil {
		if c.OnPanic != nil {
			c.OnPanic(tag, r)
		}
	}
}
