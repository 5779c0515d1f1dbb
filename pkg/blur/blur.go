// Package blur picks between an accelerated Gaussian blur and a small
// manual box blur. The process-wide choice is made once.
package blur

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/menta2k/photocomp/pkg/mask"
)

// FallbackRadius is the fixed box radius the manual strategy uses for
// full-color images regardless of the requested radius.
const FallbackRadius = 3

// Strategy blurs color images and alpha masks
type Strategy interface {
	Name() string
	Blur(img *image.NRGBA, radius float64) *image.NRGBA
	BlurMask(m *image.Alpha, radius float64) *image.Alpha
}

// Gaussian blurs through imaging's separable Gaussian convolution
type Gaussian struct{}

// Box is the manual box blur used when no accelerated path is available
type Box struct{}

// Name implements Strategy
func (Gaussian) Name() string { return "gaussian" }

// Blur implements Strategy
func (Gaussian) Blur(img *image.NRGBA, radius float64) *image.NRGBA {
	if radius <= 0 {
		return imaging.Clone(img)
	}
	return imaging.Blur(img, Sigma(radius))
}

// BlurMask implements Strategy
func (Gaussian) BlurMask(m *image.Alpha, radius float64) *image.Alpha {
	if radius <= 0 {
		return mask.FeatherEdges(m, 0)
	}
	return mask.ExtractAlpha(imaging.Blur(m, Sigma(radius)))
}

// Name implements Strategy
func (Box) Name() string { return "box" }

// Blur implements Strategy; radius only toggles the blur on or off
func (Box) Blur(img *image.NRGBA, radius float64) *image.NRGBA {
	if radius <= 0 {
		return imaging.Clone(img)
	}
	return mask.BoxBlurNRGBA(img, FallbackRadius)
}

// BlurMask implements Strategy
func (Box) BlurMask(m *image.Alpha, radius float64) *image.Alpha {
	return mask.FeatherEdges(m, int(radius))
}

// Sigma converts a blur radius in pixels to a Gaussian sigma
func Sigma(radius float64) float64 {
	return radius*0.57735 + 0.5
}

var (
	once     sync.Once
	selected Strategy
)

// Select runs check once and caches the strategy it implies. A nil check
// counts as success. Later calls return the cached strategy and never run
// their check.
func Select(check func() bool) Strategy {
	once.Do(func() {
		selected = For(check == nil || check())
	})
	return selected
}

// Default returns the process-wide strategy, selecting with a nil check if needed
func Default() Strategy {
	return Select(nil)
}

// For returns the strategy for an explicit capability answer without
// touching the process-wide choice.
func For(accelerated bool) Strategy {
	if accelerated {
		return Gaussian{}
	}
	return Box{}
}
