// Package remover cuts the subject out of a photo using a segmentation
// provider and a feathered alpha matte.
package remover

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/pkg/mask"
	"github.com/menta2k/photocomp/pkg/segment"
	"github.com/menta2k/photocomp/pkg/types"
)

// DefaultFeatherRadius softens the matte edge
const DefaultFeatherRadius = 6

var (
	// ErrSegmentation wraps failures of the segmentation provider
	ErrSegmentation = errors.New("segmentation failed")
	// ErrMalformedMask is returned when the provider output is inconsistent
	ErrMalformedMask = errors.New("segmentation returned a malformed mask")
)

// Remover turns segmentation output into a cutout
type Remover struct {
	segmenter     segment.Segmenter
	featherRadius int
	logger        *zap.Logger
}

// Option configures a Remover
type Option func(*Remover)

// WithFeatherRadius overrides DefaultFeatherRadius
func WithFeatherRadius(r int) Option {
	return func(rm *Remover) { rm.featherRadius = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(rm *Remover) { rm.logger = logging.OrNop(l) }
}

// New creates a remover backed by s
func New(s segment.Segmenter, opts ...Option) *Remover {
	rm := &Remover{
		segmenter:     s,
		featherRadius: DefaultFeatherRadius,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

// RemoveBackground returns img with its background made transparent. The
// result has the same dimensions as img. focus, in img pixel coordinates,
// optionally biases the matte toward the region around it.
//
// If ctx ends first RemoveBackground returns ctx.Err(); the provider call
// itself is not interrupted.
func (r *Remover) RemoveBackground(ctx context.Context, img image.Image, focus *types.Point) (*image.NRGBA, error) {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("cannot remove background of empty image")
	}

	start := time.Now()
	seg, err := segment.Start(ctx, r.segmenter, src).Wait(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	if err := seg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMask, err)
	}

	conf := seg.Confidence
	if focus != nil {
		conf = FocusBias(seg, *focus, w, h)
	}

	alpha := mask.FromConfidence(conf, seg.Width, seg.Height)
	if seg.Width != w || seg.Height != h {
		alpha = mask.Resize(alpha, w, h)
	}
	alpha = mask.FeatherEdges(alpha, r.featherRadius)

	out, err := mask.ApplyAlphaMask(src, alpha)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("background removed",
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("mask_width", seg.Width),
		zap.Int("mask_height", seg.Height),
		zap.Bool("focus", focus != nil),
		zap.Duration("took", time.Since(start)))

	return out, nil
}

// FocusBias scales each confidence by 0.5 + 0.5*(1-d), where d is the
// distance from the focus divided by the mask diagonal. focus is in image
// coordinates for an image of w x h. The mask itself is not modified.
func FocusBias(m *segment.Mask, focus types.Point, w, h int) []float32 {
	fx := focus.X * float64(m.Width) / float64(w)
	fy := focus.Y * float64(m.Height) / float64(h)
	diag := math.Hypot(float64(m.Width), float64(m.Height))

	out := make([]float32, len(m.Confidence))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			d := math.Hypot(float64(x)-fx, float64(y)-fy) / diag
			f := clamp01(0.5 + 0.5*(1-d))
			i := y*m.Width + x
			out[i] = m.Confidence[i] * float32(f)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
