package topicfy

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	validationSemaphore = 3
	hitsPerQuery        = 5
)

// Origin labels and their trust tiers.
const (
	OriginTiedAsset      = "tied asset"
	OriginMetadataBanner = "metadata banner"
	OriginMetadataCover  = "metadata cover"
	OriginOfficialSite   = "official website"
	OriginCleanSearch    = "community search:" // followed by the bias phrase
	OriginBroadSearch    = "community search"
	OriginSourceImage    = "source image" // supplied by the feed item itself

	TierOfficialSite = 1
	TierCleanSearch  = 1
	TierMetadata     = 3
	TierSourceImage  = 4
	TierBroadSearch  = 6
)

// harvested is a raw URL before any gating.
type harvested struct {
	url    string
	origin string
	tier   int
	source string // page the image was found on, if any
}

// gatedImage is a candidate that passed every hard gate.
type gatedImage struct {
	ImageCandidate
	img   image.Image
	order int
}

// ScoreImage applies the tier base score and the shape heuristics:
// portrait images from poster-like origins lose 30, wide images gain 15.
func ScoreImage(tier, width, height int, origin string) int {
	score := 100 - (tier-1)*10
	if height > width && isPosterOrigin(origin) {
		score -= 30
	}
	if height > 0 && float64(width)/float64(height) > 1.2 {
		score += 15
	}
	return score
}

// SelectImage picks the best-fit image for c and classifies it. It never
// fails: when nothing survives, the pick is cfg.FallbackImage with
// Fallback set, which callers must treat as "no real image found".
func (cfg *Config) SelectImage(ctx context.Context, c *Candidate) ImagePick {
	cfg.defaults()
	pick := cfg.selectImage(ctx, c)
	cfg.emit(Decision{
		Stage:  "image",
		Title:  c.Title,
		Accept: !pick.Fallback,
		Reason: string(pick.Classification),
		Detail: strings.Join(pick.Rationale, "; "),
	})
	return pick
}

func (cfg *Config) selectImage(ctx context.Context, c *Candidate) ImagePick {
	if len(c.TiedAssets) > 0 {
		u := c.TiedAssets[0]
		class, rule := ClassifyByKeywords(NewImageFacts(OriginTiedAsset, u, nil))
		return ImagePick{
			URL:            u,
			Classification: class,
			Origin:         OriginTiedAsset,
			Score:          100,
			Rationale:      []string{"announcement-tied asset", "rule " + rule},
		}
	}

	t := cfg.tuning()
	subject := BuildImageQuery(c.Title)
	info, raw := cfg.harvest(ctx, c, subject)

	var rationale []string
	rationale = append(rationale, fmt.Sprintf("harvested %d urls", len(raw)))

	pool := cfg.gate(ctx, raw, t.MinShortSide)
	if len(pool) == 0 && info != nil {
		official := officialAssets(info)
		if len(official) > 0 {
			rationale = append(rationale, fmt.Sprintf("empty pool, retrying %d official assets at %dpx", len(official), t.RelaxedShortSide))
			pool = cfg.gate(ctx, official, t.RelaxedShortSide)
		}
	}
	if len(pool) == 0 {
		slog.Info("topicfy: no image survived, using fallback", "title", c.Title)
		return ImagePick{
			URL:            cfg.FallbackImage,
			Classification: ClassClean,
			Origin:         "fallback",
			Fallback:       true,
			Rationale:      append(rationale, "no candidate survived the gates"),
		}
	}

	ranked := cfg.rank(pool, t)
	best := reroll(ranked)
	rationale = append(rationale,
		fmt.Sprintf("%d candidates survived", len(ranked)),
		fmt.Sprintf("picked %s (tier %d, score %d, rule %s)", best.Origin, best.Tier, best.Score, best.Rule),
	)
	if best.Overridden {
		rationale = append(rationale, "entropy override: background dominant, reclassified CLEAN")
	}

	return ImagePick{
		URL:            best.URL,
		Classification: best.Classification,
		Origin:         best.Origin,
		Score:          best.Score,
		Rationale:      rationale,
	}
}

// harvest queries every origin concurrently. The metadata lookup and the
// official-site crawl run in sequence because the crawl needs the lookup's
// site URL. Returned URLs are unique; a URL reached twice keeps its best tier.
func (cfg *Config) harvest(ctx context.Context, c *Candidate, subject string) (*MediaInfo, []harvested) {
	var (
		mu   sync.Mutex
		all  []harvested
		info = c.media
	)
	add := func(h ...harvested) {
		mu.Lock()
		all = append(all, h...)
		mu.Unlock()
	}

	// The feed's own image competes with the harvest and passes the same gates.
	if c.Image != "" && c.Image != cfg.FallbackImage {
		add(harvested{url: c.Image, origin: OriginSourceImage, tier: TierSourceImage})
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cfg.recoverTo("harvest:metadata")
		if info == nil && cfg.Lookup != nil {
			info = cfg.Lookup.Lookup(gctx, subject)
		}
		if info == nil {
			return nil
		}
		add(officialAssets(info)...)
		if info.OfficialSiteURL != "" {
			if u := cfg.CrawlPreviewImage(gctx, info.OfficialSiteURL); u != "" {
				add(harvested{url: u, origin: OriginOfficialSite, tier: TierOfficialSite, source: info.OfficialSiteURL})
			}
		}
		return nil
	})

	if cfg.Search != nil && subject != "" {
		for i, q := range CleanQueries(subject) {
			origin := OriginCleanSearch + " " + CleanQuerySuffixes[i]
			g.Go(func() error {
				defer cfg.recoverTo("harvest:clean")
				add(cfg.searchHits(gctx, q, origin, TierCleanSearch)...)
				return nil
			})
		}
		for _, q := range BroadQueries(subject, c.Title) {
			g.Go(func() error {
				defer cfg.recoverTo("harvest:broad")
				add(cfg.searchHits(gctx, q, OriginBroadSearch, TierBroadSearch)...)
				return nil
			})
		}
	}
	_ = g.Wait() // workers never return errors

	return info, uniqueByURL(all)
}

func (cfg *Config) searchHits(ctx context.Context, query, origin string, tier int) []harvested {
	hits, err := cfg.Search.Search(ctx, query, SearchOpts{Limit: hitsPerQuery, Timeout: cfg.tuning().RequestTimeout})
	if err != nil {
		slog.Warn("topicfy: image search failed", "provider", cfg.Search.Name(), "query", query, "error", err.Error())
		return nil
	}
	out := make([]harvested, 0, len(hits))
	for _, h := range hits {
		out = append(out, harvested{url: h.ImgURL, origin: origin, tier: tier, source: h.Source})
	}
	return out
}

func officialAssets(info *MediaInfo) []harvested {
	var out []harvested
	if info.BannerImage != "" {
		out = append(out, harvested{url: info.BannerImage, origin: OriginMetadataBanner, tier: TierMetadata})
	}
	if info.CoverImage != "" {
		out = append(out, harvested{url: info.CoverImage, origin: OriginMetadataCover, tier: TierMetadata})
	}
	return out
}

// uniqueByURL keeps one entry per URL, preferring the most trusted tier.
// Order follows the best tier, then first appearance.
func uniqueByURL(in []harvested) []harvested {
	best := make(map[string]int)
	var out []harvested
	for _, h := range in {
		if h.url == "" {
			continue
		}
		if i, ok := best[h.url]; ok {
			if h.tier < out[i].tier {
				out[i] = h
			}
			continue
		}
		best[h.url] = len(out)
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].tier < out[j].tier })
	return out
}

// gate validates every harvested URL concurrently and returns the survivors.
// No candidate reaches ranking without passing the dimension and aspect gates.
func (cfg *Config) gate(ctx context.Context, raw []harvested, minShortSide int) []gatedImage {
	sem := make(chan struct{}, validationSemaphore)
	var (
		mu    sync.Mutex
		out   []gatedImage
		wg    sync.WaitGroup
		dedup = &dedupFilter{maxDistance: cfg.tuning().PerceptualDistance}
	)

	for i, h := range raw {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer cfg.recoverTo("imageValidation")

			if g := cfg.gateOne(ctx, h, minShortSide); g != nil {
				g.order = i
				mu.Lock()
				out = append(out, *g)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Perceptual dedup runs in harvest order so the better-tier copy wins.
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	kept := out[:0]
	for _, g := range out {
		if g.img != nil {
			if of, dup := dedup.check(g.img, g.URL); dup {
				slog.Debug("topicfy: perceptual duplicate dropped", "url", g.URL, "origin", g.Origin, "same_as", of)
				continue
			}
		}
		kept = append(kept, g)
	}
	return kept
}

func (cfg *Config) gateOne(ctx context.Context, h harvested, minShortSide int) *gatedImage {
	if IsStockURL(h.url, cfg.ExtraBlockedDomains) || IsStockURL(h.source, cfg.ExtraBlockedDomains) {
		slog.Debug("topicfy: stock image dropped", "url", h.url)
		return nil
	}

	p := cfg.ProbeImage(ctx, h.url)
	if p == nil {
		return nil
	}
	if ok, reason := cfg.tuning().GateDimensions(p.Width, p.Height, minShortSide); !ok {
		slog.Debug("topicfy: image gated", "url", h.url, "reason", reason)
		return nil
	}

	meta := ExtractImageMetadata(p.Data)
	if IsStockByMetadata(meta) {
		slog.Debug("topicfy: stock metadata dropped", "url", h.url)
		return nil
	}

	img, err := p.Decode()
	if err != nil {
		// Dimensions were readable; keep the candidate without perceptual data.
		slog.Debug("topicfy: full decode failed", "url", h.url, "error", err.Error())
	}

	class, rule := ClassifyByKeywords(NewImageFacts(h.origin, h.url, meta))
	return &gatedImage{
		ImageCandidate: ImageCandidate{
			URL:            h.url,
			Origin:         h.origin,
			Tier:           h.tier,
			Width:          p.Width,
			Height:         p.Height,
			Score:          ScoreImage(h.tier, p.Width, p.Height, h.origin),
			Classification: class,
			Rule:           rule,
		},
		img: img,
	}
}

// rank runs the entropy override on TEXT_HEAVY candidates and sorts the pool
// by score, best first.
func (cfg *Config) rank(pool []gatedImage, t Tuning) []ImageCandidate {
	out := make([]ImageCandidate, 0, len(pool))
	for _, g := range pool {
		ic := g.ImageCandidate
		if ic.Classification == ClassTextHeavy && g.img != nil {
			v := t.AssessOverride(AnalyzeEntropy(g.img))
			if v.Allow {
				ic.Classification = ClassClean
				ic.Overridden = true
			}
			slog.Debug("topicfy: override pass", "url", ic.URL, "allow", v.Allow, "flat", v.FlatCells, "reason", v.Reason)
		}
		out = append(out, ic)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// reroll returns ranked[0] unless it is a presumed poster (score below 80
// from a poster-like origin) and a non-poster candidate scoring above 60
// exists, in which case the best such candidate wins.
func reroll(ranked []ImageCandidate) ImageCandidate {
	top := ranked[0]
	if top.Score >= 80 || !isPosterOrigin(top.Origin) {
		return top
	}
	for _, ic := range ranked[1:] {
		if !isPosterOrigin(ic.Origin) && ic.Score > 60 {
			return ic
		}
	}
	return top
}
