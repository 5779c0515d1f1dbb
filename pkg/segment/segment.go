// Package segment produces foreground confidence maps. Providers run at
// their own native resolution; callers rescale the result.
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrMalformed is returned for a Mask whose buffer does not match its size
var ErrMalformed = errors.New("malformed segmentation mask")

// Mask is a row-major foreground confidence map with values in [0,1]
type Mask struct {
	Width      int
	Height     int
	Confidence []float32
}

// NewMask allocates a zeroed w x h mask
func NewMask(w, h int) *Mask {
	return &Mask{Width: w, Height: h, Confidence: make([]float32, w*h)}
}

// Validate reports ErrMalformed when dimensions and buffer disagree
func (m *Mask) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrMalformed)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrMalformed, m.Width, m.Height)
	}
	if len(m.Confidence) != m.Width*m.Height {
		return fmt.Errorf("%w: %d values for %dx%d",
			ErrMalformed, len(m.Confidence), m.Width, m.Height)
	}
	return nil
}

// At returns the confidence at (x, y)
func (m *Mask) At(x, y int) float32 {
	return m.Confidence[y*m.Width+x]
}

// Segmenter produces a foreground confidence map for an image
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (*Mask, error)
}

// Func adapts a function to the Segmenter interface
type Func func(ctx context.Context, img image.Image) (*Mask, error)

// Segment implements Segmenter
func (f Func) Segment(ctx context.Context, img image.Image) (*Mask, error) {
	return f(ctx, img)
}

// Uniform returns a Segmenter that reports the same confidence everywhere
// at the image's own resolution.
func Uniform(c float32) Segmenter {
	return Func(func(_ context.Context, img image.Image) (*Mask, error) {
		b := img.Bounds()
		m := NewMask(b.Dx(), b.Dy())
		for i := range m.Confidence {
			m.Confidence[i] = c
		}
		return m, nil
	})
}
