// Package blend composites a foreground layer over a background of the
// same size using a separable blend mode.
package blend

import (
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrDimensionMismatch is returned when the two layers differ in size
var ErrDimensionMismatch = errors.New("blend layers must have identical dimensions")

// Mode selects the per-channel blend function
type Mode int

const (
	Normal Mode = iota
	Multiply
	Screen
	Overlay
)

// Modes lists every supported mode in declaration order
func Modes() []Mode {
	return []Mode{Normal, Multiply, Screen, Overlay}
}

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Multiply:
		return "multiply"
	case Screen:
		return "screen"
	case Overlay:
		return "overlay"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a case-insensitive mode name to a Mode
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return Normal, fmt.Errorf("unknown blend mode %q", s)
}

// channel blends one normalized channel value
func (m Mode) channel(bg, fg float64) float64 {
	switch m {
	case Multiply:
		return bg * fg
	case Screen:
		return 1 - (1-bg)*(1-fg)
	case Overlay:
		if bg < 0.5 {
			return 2 * bg * fg
		}
		return 1 - 2*(1-bg)*(1-fg)
	default:
		return fg
	}
}

// Composite blends fg over bg. Pixels where fg is fully transparent keep
// the background value exactly. Output alpha follows the "over" operator.
func Composite(bg, fg image.Image, mode Mode) (*image.NRGBA, error) {
	bb, fb := bg.Bounds(), fg.Bounds()
	if bb.Dx() != fb.Dx() || bb.Dy() != fb.Dy() {
		return nil, fmt.Errorf("%w: background %dx%d, foreground %dx%d",
			ErrDimensionMismatch, bb.Dx(), bb.Dy(), fb.Dx(), fb.Dy())
	}
	if mode < Normal || mode > Overlay {
		return nil, fmt.Errorf("unknown blend mode %v", mode)
	}

	b := imaging.Clone(bg)
	f := imaging.Clone(fg)
	out := image.NewNRGBA(b.Rect)

	parallelRows(b.Rect.Dy(), func(y int) {
		i := y * b.Stride
		for x := 0; x < b.Rect.Dx(); x++ {
			blendPixel(out.Pix[i:i+4], b.Pix[i:i+4], f.Pix[i:i+4], mode)
			i += 4
		}
	})

	return out, nil
}

func blendPixel(dst, bp, fp []uint8, mode Mode) {
	if fp[3] == 0 {
		copy(dst, bp)
		return
	}

	fa := float64(fp[3]) / 255
	for c := 0; c < 3; c++ {
		bc := float64(bp[c]) / 255
		fc := float64(fp[c]) / 255
		v := mode.channel(bc, fc)
		dst[c] = quantize(v*fa + bc*(1-fa))
	}
	ba := float64(bp[3]) / 255
	dst[3] = quantize(math.Min(1, fa+ba*(1-fa)))
}

// quantize rounds a normalized value to 8 bits, clamping to [0,255]
func quantize(v float64) uint8 {
	q := math.Round(v * 255)
	if q < 0 {
		return 0
	}
	if q > 255 {
		return 255
	}
	return uint8(q)
}

// parallelRows splits [0,h) into contiguous bands, one per CPU
func parallelRows(h int, fn func(y int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > h {
		workers = h
	}
	if workers <= 1 {
		for y := 0; y < h; y++ {
			fn(y)
		}
		return
	}

	band := (h + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < h; start += band {
		end := start + band
		if end > h {
			end = h
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				fn(y)
			}
		}(start, end)
	}
	wg.Wait()
}
