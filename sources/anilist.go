package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-topicfy"
)

const trendingQuery = `query ($perPage: Int) {
  Page(perPage: $perPage) {
    media(sort: TRENDING_DESC, type: ANIME, isAdult: false) {
      title { romaji english }
      description(asHtml: false)
      bannerImage
      coverImage { extraLarge large }
    }
  }
}`

// AniListTrending reads the AniList trending chart. Its items vote as
// database entries and carry the banner, or the cover when there is none.
type AniListTrending struct {
	Endpoint   string // default: https://graphql.anilist.co
	PerPage    int    // default: 25
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (a *AniListTrending) Name() string { return "anilist" }

func (a *AniListTrending) Kind() topicfy.SourceKind { return topicfy.KindDatabase }

type trendingMedia struct {
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	Description string `json:"description"`
	BannerImage string `json:"bannerImage"`
	CoverImage  struct {
		ExtraLarge string `json:"extraLarge"`
		Large      string `json:"large"`
	} `json:"coverImage"`
}

// Fetch implements topicfy.Source.
func (a *AniListTrending) Fetch(ctx context.Context) []topicfy.RawItem {
	media, err := a.trending(ctx)
	if err != nil {
		slog.Warn("topicfy: anilist trending failed", "error", err.Error())
		return nil
	}

	items := make([]topicfy.RawItem, 0, len(media))
	for _, m := range media {
		title := m.Title.English
		if title == "" {
			title = m.Title.Romaji
		}
		if title == "" {
			continue
		}
		img := m.BannerImage
		if img == "" {
			img = m.CoverImage.ExtraLarge
		}
		if img == "" {
			img = m.CoverImage.Large
		}
		items = append(items, topicfy.RawItem{
			Title:       title,
			Image:       img,
			Description: truncate(plainText(m.Description), maxDescriptionLen),
			Source:      a.Name(),
			Kind:        topicfy.KindDatabase,
		})
	}
	return items
}

func (a *AniListTrending) trending(ctx context.Context) ([]trendingMedia, error) {
	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = "https://graphql.anilist.co"
	}
	perPage := a.PerPage
	if perPage <= 0 {
		perPage = defaultLimit
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"query":     trendingQuery,
		"variables": map[string]int{"perPage": perPage},
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

	resp, err := clientOr(a.HTTPClient).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Page struct {
				Media []trendingMedia `json:"media"`
			} `json:"Page"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return body.Data.Page.Media, nil
}
