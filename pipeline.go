package topicfy

import (
	"context"
	"log/slog"
	"time"
)

// Pipeline runs aggregation, identity, gating and image selection for one batch.
type Pipeline struct {
	cfg     *Config
	sources []Source
	history HistoryStore
	gate    *Gate
}

// NewPipeline wires a pipeline. history may be nil for a first run with no
// persisted state.
func NewPipeline(cfg *Config, sources []Source, history HistoryStore) (*Pipeline, error) {
	gate, err := NewGate(cfg, history)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, sources: sources, history: history, gate: gate}, nil
}

// Gate exposes the pipeline's gate for callers that validate ad-hoc candidates.
func (p *Pipeline) Gate() *Gate { return p.gate }

// RunOptions configures one Run.
type RunOptions struct {
	// Force bypasses duplicate suppression (fingerprints, legacy match, fuzzy
	// match against published history). Banned topics, declined topics and the
	// image requirement still apply.
	Force bool

	// MaxAccepted caps accepted candidates; zero uses Tuning.MaxAccepted.
	MaxAccepted int

	// Now stamps the signal date; zero uses time.Now().
	Now time.Time

	// OnAccept is called for each accepted candidate before the next one is
	// evaluated, typically to persist it.
	OnAccept func(ctx context.Context, a Accepted) error
}

// Accepted is a publishable candidate and, separately, its image pair.
type Accepted struct {
	Candidate *Candidate
	Image     ImagePick
}

// Rejected records why a candidate was turned away.
type Rejected struct {
	Title  string
	Reason RejectReason
	Detail string
}

// RunReport is the audit trail of one Run.
type RunReport struct {
	Topics   int // distinct topics after aggregation
	Accepted []Accepted
	Rejected []Rejected
}

// Run aggregates every source and evaluates the ranked candidates one at a
// time, re-reading history before each so that candidates accepted earlier
// in the same run suppress later duplicates.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) RunReport {
	p.cfg.defaults()
	t := p.cfg.tuning()
	if opts.MaxAccepted <= 0 {
		opts.MaxAccepted = t.MaxAccepted
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var inRun []HistoryEntry
	published := p.recentHistory(ctx, inRun)
	titles := make([]string, len(published))
	for i, h := range published {
		titles[i] = h.Title
	}

	pool := p.cfg.Aggregate(ctx, p.sources, titles)
	report := RunReport{Topics: pool.Len()}

	for _, c := range pool.Ranked() {
		if len(report.Accepted) >= opts.MaxAccepted {
			break
		}
		if ctx.Err() != nil {
			break
		}

		a, rej := p.evaluate(ctx, c, inRun, opts)
		if rej != nil {
			report.Rejected = append(report.Rejected, *rej)
			slog.Info("topicfy: candidate rejected", "title", c.Title, "reason", rej.Reason, "detail", rej.Detail)
			continue
		}

		report.Accepted = append(report.Accepted, *a)
		inRun = append(inRun, HistoryEntry{
			ID:               "run:" + c.Slug,
			Title:            c.Title,
			Slug:             c.Slug,
			Claim:            c.Claim,
			EventFingerprint: c.EventFingerprint,
			TruthFingerprint: c.TruthFingerprint,
			PublishedAt:      opts.Now,
		})
		slog.Info("topicfy: candidate accepted", "title", c.Title, "score", c.Score, "tier", c.Tier, "relevance", c.Relevance)

		if opts.OnAccept != nil {
			if err := opts.OnAccept(ctx, *a); err != nil {
				slog.Warn("topicfy: accept hook failed", "title", c.Title, "error", err.Error())
			}
		}
	}
	return report
}

func (p *Pipeline) evaluate(ctx context.Context, c *Candidate, inRun []HistoryEntry, opts RunOptions) (*Accepted, *Rejected) {
	Synthesize(c)
	p.enrich(ctx, c)
	Stamp(c, signalKey(c, opts.Now))
	c.Tier = p.gate.BestTier(ctx, c.Sources)
	c.Relevance = RelevanceScore(c.Title, c.Tier)

	switch dup := p.gate.CheckForDuplicate(ctx, c.Title); {
	case dup.Kind == DuplicateDeclined:
		return nil, &Rejected{Title: c.Title, Reason: ReasonDeclined, Detail: dup.Matched}
	case dup.Kind == DuplicatePublished && !opts.Force:
		return nil, &Rejected{Title: c.Title, Reason: ReasonFuzzyDuplicate, Detail: dup.MatchedID}
	}

	if !opts.Force {
		threshold := p.cfg.tuning().OverlapThreshold
		for _, h := range inRun {
			if OverlapRatio(c.Title, h.Title) > threshold {
				return nil, &Rejected{Title: c.Title, Reason: ReasonFuzzyDuplicate, Detail: h.ID}
			}
		}
	}

	history := p.recentHistory(ctx, inRun)

	// Identity checks are cheap; run them before paying for image harvesting.
	if v := p.gate.CheckIdentity(c, history, opts.Force); !v.Accept {
		p.cfg.emit(Decision{Stage: "gate", Title: c.Title, Reason: string(v.Reason), Detail: v.Detail})
		return nil, &Rejected{Title: c.Title, Reason: v.Reason, Detail: v.Detail}
	}

	pick := p.cfg.SelectImage(ctx, c)
	c.Image = pick.URL

	if v := p.gate.Validate(ctx, c, history, opts.Force); !v.Accept {
		return nil, &Rejected{Title: c.Title, Reason: v.Reason, Detail: v.Detail}
	}
	return &Accepted{Candidate: c, Image: pick}, nil
}

// enrich resolves the subject id through the metadata lookup. Unresolved
// subjects keep their normalized key as id.
func (p *Pipeline) enrich(ctx context.Context, c *Candidate) {
	if p.cfg.Lookup == nil || c.media != nil {
		return
	}
	if info := p.cfg.Lookup.Lookup(ctx, BuildImageQuery(c.Title)); info != nil {
		c.media = info
		if c.SubjectID == "" && info.ID != "" {
			c.SubjectID = info.ID
		}
	}
}

// signalKey ties the event fingerprint to the source asset when there is one,
// otherwise to the calendar day of the run.
func signalKey(c *Candidate, now time.Time) string {
	if len(c.TiedAssets) > 0 {
		return c.TiedAssets[0]
	}
	if c.Image != "" {
		return c.Image
	}
	return now.UTC().Format(time.DateOnly)
}

// recentHistory reads published history fresh from the store and appends the
// entries accepted earlier in this run.
func (p *Pipeline) recentHistory(ctx context.Context, inRun []HistoryEntry) []HistoryEntry {
	var out []HistoryEntry
	if p.history != nil {
		recent, err := p.history.ListRecent(ctx, p.cfg.tuning().RecentLimit)
		if err != nil {
			slog.Warn("topicfy: history unavailable, continuing with in-run history", "error", err.Error())
		}
		out = append(out, recent...)
	}
	return append(out, inRun...)
}
