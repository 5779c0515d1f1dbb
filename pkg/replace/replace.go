// Package replace composites a cutout subject onto a new background with
// an optional contact shadow.
package replace

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/pkg/blur"
	"github.com/menta2k/photocomp/pkg/mask"
)

// AutoBlurRadius is the blur radius for AutoBlur backgrounds
const AutoBlurRadius = 20

// FallbackColor fills Fit and Fill backgrounds when no image is given
var FallbackColor = color.NRGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}

var (
	// ErrEmptyBackground is returned for a zero-area background image
	ErrEmptyBackground = errors.New("background image has zero area")
	// ErrSizeMismatch is returned when cutout and original differ in size
	ErrSizeMismatch = errors.New("cutout and original sizes differ")
)

// Mode selects how the background is synthesized
type Mode int

const (
	Color Mode = iota
	ImageFit
	ImageFill
	AutoBlur
)

// Modes lists every mode in declaration order
func Modes() []Mode {
	return []Mode{Color, ImageFit, ImageFill, AutoBlur}
}

func (m Mode) String() string {
	switch m {
	case Color:
		return "color"
	case ImageFit:
		return "image_fit"
	case ImageFill:
		return "image_fill"
	case AutoBlur:
		return "auto_blur"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the String form, case-insensitively, with - or _
func ParseMode(s string) (Mode, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch norm {
	case "fit":
		return ImageFit, nil
	case "fill":
		return ImageFill, nil
	case "blur":
		return AutoBlur, nil
	}
	for _, m := range Modes() {
		if norm == m.String() {
			return m, nil
		}
	}
	return AutoBlur, fmt.Errorf("unknown background mode %q", s)
}

// Params controls background synthesis, shadow and edge softening
type Params struct {
	Mode            Mode
	Color           color.NRGBA
	FeatherRadius   int
	AddShadow       bool
	ShadowOpacity   float64
	ShadowSizePx    float64
	ShadowOffsetYPx float64
}

// DefaultParams returns the stock settings
func DefaultParams() Params {
	return Params{
		Mode:            AutoBlur,
		Color:           color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		FeatherRadius:   6,
		AddShadow:       true,
		ShadowOpacity:   0.22,
		ShadowSizePx:    24,
		ShadowOffsetYPx: 12,
	}
}

// Engine composes cutouts onto backgrounds
type Engine struct {
	blur   blur.Strategy
	logger *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithBlur overrides the process-wide blur strategy
func WithBlur(s blur.Strategy) Option {
	return func(e *Engine) { e.blur = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

// New creates an engine using blur.Default unless overridden
func New(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.blur == nil {
		e.blur = blur.Default()
	}
	return e
}

// Compose renders the background for p.Mode at the size of original, draws
// the shadow if enabled, then the re-feathered cutout on top. background
// is only used by ImageFit and ImageFill and may be nil.
func (e *Engine) Compose(original, cutout, background image.Image, p Params) (*image.NRGBA, error) {
	ob, cb := original.Bounds(), cutout.Bounds()
	if ob.Dx() != cb.Dx() || ob.Dy() != cb.Dy() {
		return nil, fmt.Errorf("%w: original %dx%d, cutout %dx%d",
			ErrSizeMismatch, ob.Dx(), ob.Dy(), cb.Dx(), cb.Dy())
	}

	start := time.Now()
	canvas, err := e.Background(original, background, p)
	if err != nil {
		return nil, err
	}

	subject := imaging.Clone(cutout)
	alpha := mask.ExtractAlpha(subject)

	if p.AddShadow {
		canvas = imaging.Overlay(canvas, e.Shadow(alpha, p), image.Pt(0, int(math.Round(p.ShadowOffsetYPx))), 1.0)
	}

	refined, err := mask.ApplyAlphaMask(subject, mask.FeatherEdges(alpha, p.FeatherRadius))
	if err != nil {
		return nil, err
	}
	out := imaging.Overlay(canvas, refined, image.Pt(0, 0), 1.0)

	e.logger.Debug("background replaced",
		zap.Stringer("mode", p.Mode),
		zap.String("blur", e.blur.Name()),
		zap.Bool("shadow", p.AddShadow),
		zap.Duration("took", time.Since(start)))

	return out, nil
}

// Background renders only the destination background for p.Mode
func (e *Engine) Background(original, background image.Image, p Params) (*image.NRGBA, error) {
	b := original.Bounds()
	w, h := b.Dx(), b.Dy()

	switch p.Mode {
	case Color:
		return imaging.New(w, h, p.Color), nil
	case AutoBlur:
		return e.blur.Blur(imaging.Clone(original), AutoBlurRadius), nil
	case ImageFit, ImageFill:
		if background == nil {
			return imaging.New(w, h, FallbackColor), nil
		}
		bb := background.Bounds()
		if bb.Dx() <= 0 || bb.Dy() <= 0 {
			return nil, ErrEmptyBackground
		}
		// letterbox bars take the params color
		r := FitRect(bb.Dx(), bb.Dy(), w, h)
		canvas := imaging.New(w, h, p.Color)
		if p.Mode == ImageFill {
			r = FillRect(bb.Dx(), bb.Dy(), w, h)
			canvas = imaging.New(w, h, color.NRGBA{})
		}
		scaled := imaging.Resize(background, r.Dx(), r.Dy(), imaging.Lanczos)
		return imaging.Paste(canvas, scaled, r.Min), nil
	}
	return nil, fmt.Errorf("unknown background mode %v", p.Mode)
}

// Shadow returns the black contact shadow layer for a subject alpha mask,
// before the vertical offset is applied.
func (e *Engine) Shadow(alpha *image.Alpha, p Params) *image.NRGBA {
	soft := e.blur.BlurMask(alpha, p.ShadowSizePx)
	opacity := int(p.ShadowOpacity * 255)
	if opacity < 0 {
		opacity = 0
	} else if opacity > 255 {
		opacity = 255
	}

	b := soft.Rect
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			a := int(soft.Pix[soft.PixOffset(b.Min.X+x, b.Min.Y+y)])
			out.Pix[y*out.Stride+x*4+3] = uint8((a*opacity + 127) / 255)
		}
	}
	return out
}

// FitRect is the centered placement of a srcW x srcH image scaled by the
// smaller of the two ratios into dstW x dstH.
func FitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	s := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	return placed(srcW, srcH, dstW, dstH, s)
}

// FillRect is the centered placement of a srcW x srcH image scaled by the
// larger of the two ratios, so it covers dstW x dstH.
func FillRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	s := math.Max(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	return placed(srcW, srcH, dstW, dstH, s)
}

func placed(srcW, srcH, dstW, dstH int, s float64) image.Rectangle {
	w := max(1, int(math.Round(float64(srcW)*s)))
	h := max(1, int(math.Round(float64(srcH)*s)))
	left := int(math.Floor(float64(dstW-w) / 2))
	top := int(math.Floor(float64(dstH-h) / 2))
	return image.Rect(left, top, left+w, top+h)
}
