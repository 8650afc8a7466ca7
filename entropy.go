package topicfy

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// analysisMaxSide bounds the frame analysed for entropy. Larger images are
// downscaled first; histograms of a 512px frame are stable enough.
const analysisMaxSide = 512

// cornerFraction is the side length of each corner region relative to the frame.
const cornerFraction = 0.15

// EntropyProfile is the perceptual summary of one image. Entropies are
// Shannon entropies of the 8-bit luminance histogram, in bits (0..8).
type EntropyProfile struct {
	Cells   [9]float64 // 3×3 grid, row-major
	Center  float64    // central 50%×50% region
	Corners [4]float64 // top-left, top-right, bottom-left, bottom-right, 15% each
}

// FlatCells counts grid cells below threshold.
func (p EntropyProfile) FlatCells(threshold float64) int {
	n := 0
	for _, e := range p.Cells {
		if e < threshold {
			n++
		}
	}
	return n
}

// OverrideVerdict explains an override decision.
type OverrideVerdict struct {
	Allow     bool
	FlatCells int
	Reason    string // why the override was refused; empty when allowed
}

// AssessOverride decides whether a TEXT_HEAVY image may be reclassified
// CLEAN: background-like cells must dominate, the center must not look
// like dense text, and no corner may carry a burned-in logo.
func (t Tuning) AssessOverride(p EntropyProfile) OverrideVerdict {
	t = t.withDefaults()
	v := OverrideVerdict{FlatCells: p.FlatCells(t.FlatCellEntropy)}
	switch {
	case v.FlatCells < t.MinFlatCells:
		v.Reason = "background not dominant"
	case p.Center > t.CenterEntropyMax:
		v.Reason = "dense center"
	default:
		for _, c := range p.Corners {
			if c > t.CornerEntropyMax {
				v.Reason = "corner logo"
				return v
			}
		}
		v.Allow = true
	}
	return v
}

// AnalyzeEntropy computes the EntropyProfile of img.
func AnalyzeEntropy(img image.Image) EntropyProfile {
	gray := toGray(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	var p EntropyProfile
	if w == 0 || h == 0 {
		return p
	}

	for row := range 3 {
		for col := range 3 {
			r := image.Rect(
				b.Min.X+col*w/3, b.Min.Y+row*h/3,
				b.Min.X+(col+1)*w/3, b.Min.Y+(row+1)*h/3,
			)
			p.Cells[row*3+col] = regionEntropy(gray, r)
		}
	}

	p.Center = regionEntropy(gray, image.Rect(b.Min.X+w/4, b.Min.Y+h/4, b.Min.X+w*3/4, b.Min.Y+h*3/4))

	cw := max(1, int(math.Round(float64(w)*cornerFraction)))
	ch := max(1, int(math.Round(float64(h)*cornerFraction)))
	p.Corners = [4]float64{
		regionEntropy(gray, image.Rect(b.Min.X, b.Min.Y, b.Min.X+cw, b.Min.Y+ch)),
		regionEntropy(gray, image.Rect(b.Max.X-cw, b.Min.Y, b.Max.X, b.Min.Y+ch)),
		regionEntropy(gray, image.Rect(b.Min.X, b.Max.Y-ch, b.Min.X+cw, b.Max.Y)),
		regionEntropy(gray, image.Rect(b.Max.X-cw, b.Max.Y-ch, b.Max.X, b.Max.Y)),
	}
	return p
}

// toGray converts img to 8-bit luminance, downscaling frames larger than
// analysisMaxSide.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if longest := max(w, h); longest > analysisMaxSide {
		w = max(1, w*analysisMaxSide/longest)
		h = max(1, h*analysisMaxSide/longest)
		dst := image.NewGray(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	if g, ok := img.(*image.Gray); ok {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			dst.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return dst
}

// regionEntropy is the Shannon entropy of the luminance histogram of r.
func regionEntropy(g *image.Gray, r image.Rectangle) float64 {
	r = r.Intersect(g.Bounds())
	if r.Empty() {
		return 0
	}

	var hist [256]int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g.Pix[g.PixOffset(r.Min.X, y) : g.PixOffset(r.Max.X-1, y)+1]
		for _, v := range row {
			hist[v]++
		}
	}

	total := float64(r.Dx() * r.Dy())
	var e float64
	for _, n := range hist {
		if n == 0 {
			continue
		}
		p := float64(n) / total
		e -= p * math.Log2(p)
	}
	return e
}
