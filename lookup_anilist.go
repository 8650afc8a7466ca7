package topicfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultAniListEndpoint = "https://graphql.anilist.co"

const aniListMediaQuery = `query ($search: String) {
  Media(search: $search, type: ANIME) {
    id
    title { romaji english native }
    synonyms
    bannerImage
    coverImage { extraLarge large }
    siteUrl
    externalLinks { site url type }
  }
}`

// AniListLookup resolves titles through the AniList GraphQL API.
type AniListLookup struct {
	Endpoint   string // default: https://graphql.anilist.co
	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration // default: 10s
	Cache      Cache         // optional
}

type aniListMedia struct {
	ID    int `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	Synonyms    []string `json:"synonyms"`
	BannerImage string   `json:"bannerImage"`
	CoverImage  struct {
		ExtraLarge string `json:"extraLarge"`
		Large      string `json:"large"`
	} `json:"coverImage"`
	SiteURL       string `json:"siteUrl"`
	ExternalLinks []struct {
		Site string `json:"site"`
		URL  string `json:"url"`
		Type string `json:"type"`
	} `json:"externalLinks"`
}

// Lookup implements MetadataLookup. A result whose titles do not correspond
// to the query is discarded so one topic never borrows another's artwork.
func (a *AniListLookup) Lookup(ctx context.Context, title string) *MediaInfo {
	if strings.TrimSpace(title) == "" {
		return nil
	}

	if a.Cache != nil {
		key := a.Cache.Key("anilist_media", Normalize(title))
		var cached MediaInfo
		if a.Cache.Get(ctx, key, &cached) {
			if cached.ID == "" {
				return nil
			}
			return &cached
		}
		info := a.lookup(ctx, title)
		if info == nil {
			a.Cache.Set(ctx, key, MediaInfo{})
		} else {
			a.Cache.Set(ctx, key, *info)
		}
		return info
	}
	return a.lookup(ctx, title)
}

func (a *AniListLookup) lookup(ctx context.Context, title string) *MediaInfo {
	media, err := a.query(ctx, title)
	if err != nil {
		slog.Debug("topicfy: anilist lookup failed", "title", title, "error", err.Error())
		return nil
	}
	if media == nil || !media.matches(title) {
		return nil
	}

	info := &MediaInfo{
		ID:          strconv.Itoa(media.ID),
		Title:       media.displayTitle(),
		BannerImage: media.BannerImage,
		CoverImage:  media.CoverImage.ExtraLarge,
	}
	if info.CoverImage == "" {
		info.CoverImage = media.CoverImage.Large
	}
	for _, l := range media.ExternalLinks {
		if strings.EqualFold(l.Site, "Official Site") && l.URL != "" {
			info.OfficialSiteURL = l.URL
			break
		}
	}
	return info
}

func (a *AniListLookup) query(ctx context.Context, title string) (*aniListMedia, error) {
	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = defaultAniListEndpoint
	}
	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTuning().RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"query":     aniListMediaQuery,
		"variables": map[string]string{"search": title},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Media *aniListMedia `json:"Media"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return body.Data.Media, nil
}

// matches reports whether any of the media's titles and the query contain
// one another as whole tokens after normalization.
func (m *aniListMedia) matches(query string) bool {
	q := Normalize(query)
	names := append([]string{m.Title.English, m.Title.Romaji, m.Title.Native}, m.Synonyms...)
	for _, n := range names {
		if keysOverlap(Normalize(n), q) {
			return true
		}
	}
	return false
}

func (m *aniListMedia) displayTitle() string {
	if m.Title.English != "" {
		return m.Title.English
	}
	return m.Title.Romaji
}
