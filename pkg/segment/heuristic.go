package segment

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Heuristic is an offline segmenter. Images that already carry
// transparency are segmented by their alpha channel; opaque images by
// color distance from the mean border color.
type Heuristic struct {
	// LongSide is the native resolution of the produced mask
	LongSide int
	// Low and High bound the normalized color distance ramp
	Low, High float64
}

// NewHeuristic returns a Heuristic with a 256px native resolution
func NewHeuristic() *Heuristic {
	return &Heuristic{LongSide: 256, Low: 0.08, High: 0.25}
}

// Segment implements Segmenter
func (h *Heuristic) Segment(ctx context.Context, img image.Image) (*Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := imaging.Clone(img)
	if h.LongSide > 0 && (src.Rect.Dx() > h.LongSide || src.Rect.Dy() > h.LongSide) {
		src = imaging.Fit(src, h.LongSide, h.LongSide, imaging.Linear)
	}

	w, ht := src.Rect.Dx(), src.Rect.Dy()
	m := NewMask(w, ht)
	if w == 0 || ht == 0 {
		return m, nil
	}

	if hasTransparency(src) {
		for i := range m.Confidence {
			m.Confidence[i] = float32(src.Pix[i*4+3]) / 255
		}
		return m, nil
	}

	br, bg, bb := borderMean(src)
	span := h.High - h.Low
	if span <= 0 {
		span = 1e-6
	}
	for i := range m.Confidence {
		p := src.Pix[i*4 : i*4+3]
		dr := float64(p[0]) - br
		dg := float64(p[1]) - bg
		db := float64(p[2]) - bb
		d := math.Sqrt(dr*dr+dg*dg+db*db) / (255 * math.Sqrt(3))
		m.Confidence[i] = float32(smoothstep((d - h.Low) / span))
	}
	return m, nil
}

func hasTransparency(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}

// borderMean averages the outermost ring of pixels
func borderMean(img *image.NRGBA) (r, g, b float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	n := 0
	add := func(x, y int) {
		i := y*img.Stride + x*4
		r += float64(img.Pix[i])
		g += float64(img.Pix[i+1])
		b += float64(img.Pix[i+2])
		n++
	}
	for x := 0; x < w; x++ {
		add(x, 0)
		if h > 1 {
			add(x, h-1)
		}
	}
	for y := 1; y < h-1; y++ {
		add(0, y)
		if w > 1 {
			add(w-1, y)
		}
	}
	return r / float64(n), g / float64(n), b / float64(n)
}

func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}
