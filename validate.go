package topicfy

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	_ "golang.org/x/image/webp"
)

// ProbedImage is a downloaded image with its real pixel dimensions.
type ProbedImage struct {
	URL      string
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// ProbeImage downloads rawURL and decodes its header to read the actual
// dimensions. Returns nil when the image is unreachable or undecodable.
func (cfg *Config) ProbeImage(ctx context.Context, rawURL string) *ProbedImage {
	r := cfg.Download(ctx, rawURL, DownloadOpts{})
	if r == nil {
		slog.Debug("topicfy: image unreachable", "url", rawURL)
		return nil
	}

	imgCfg, _, err := image.DecodeConfig(bytes.NewReader(r.Data))
	if err != nil {
		slog.Debug("topicfy: image undecodable", "url", rawURL, "error", err.Error())
		return nil
	}

	return &ProbedImage{
		URL:      rawURL,
		Data:     r.Data,
		MIMEType: r.MIMEType,
		Width:    imgCfg.Width,
		Height:   imgCfg.Height,
	}
}

// Decode returns the full image.
func (p *ProbedImage) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.URL, err)
	}
	return img, nil
}

// GateDimensions applies the hard technical gates: the shorter side must be
// at least minShortSide and width/height must lie in [MinAspect, MaxAspect].
// The returned reason is empty when the image passes.
func (t Tuning) GateDimensions(width, height, minShortSide int) (ok bool, reason string) {
	if width <= 0 || height <= 0 {
		return false, "unknown dimensions"
	}
	if short := min(width, height); short < minShortSide {
		return false, fmt.Sprintf("too small: short side %dpx < %dpx", short, minShortSide)
	}
	aspect := float64(width) / float64(height)
	if aspect < t.MinAspect || aspect > t.MaxAspect {
		return false, fmt.Sprintf("bad aspect %.2f outside [%.2f, %.2f]", aspect, t.MinAspect, t.MaxAspect)
	}
	return true, ""
}
