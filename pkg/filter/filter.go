// Package filter implements the color filters, manual adjustments and
// one-tap enhancements of the editor.
package filter

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/gift"
)

// Luminance weights of a zero-saturation color matrix
const (
	lumR = 0.213
	lumG = 0.715
	lumB = 0.072
)

// Kind is a one-shot color filter
type Kind int

const (
	None Kind = iota
	Grayscale
	Sepia
	Invert
)

// Kinds lists every filter in declaration order
func Kinds() []Kind {
	return []Kind{None, Grayscale, Sepia, Invert}
}

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Grayscale:
		return "grayscale"
	case Sepia:
		return "sepia"
	case Invert:
		return "invert"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a case-insensitive filter name to a Kind. "original" is
// an alias for None.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "original" || s == "" {
		return None, nil
	}
	for _, k := range Kinds() {
		if s == k.String() {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown filter %q", s)
}

// Apply returns a filtered copy of img. None returns an unchanged copy.
func Apply(img image.Image, k Kind) (*image.NRGBA, error) {
	switch k {
	case None:
		return run(img)
	case Grayscale:
		return run(img, desaturate(1, 1, 1))
	case Sepia:
		return run(img, desaturate(1, 0.95, 0.82))
	case Invert:
		return run(img, gift.Invert())
	}
	return nil, fmt.Errorf("unknown filter %v", k)
}

// desaturate maps each pixel to its luminance, then scales the channels
func desaturate(sr, sg, sb float32) gift.Filter {
	return gift.ColorFunc(func(r, g, b, a float32) (float32, float32, float32, float32) {
		l := lumR*r + lumG*g + lumB*b
		return l * sr, l * sg, l * sb, a
	})
}

// run draws img through filters into a fresh NRGBA at origin (0,0)
func run(img image.Image, filters ...gift.Filter) (*image.NRGBA, error) {
	g := gift.New(filters...)
	b := g.Bounds(img.Bounds())
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	g.Draw(dst, img)
	return dst, nil
}
