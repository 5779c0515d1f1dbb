// Package relight adds a directional rim light around a cutout subject.
package relight

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/pkg/mask"
)

// Params controls the rim light. DirectionDeg is where the light comes
// from; the rim appears on the opposite side.
type Params struct {
	Intensity    float64
	RadiusPx     int
	Color        color.NRGBA
	DirectionDeg float64
}

// DefaultParams returns a soft white rim lit from 30 degrees
func DefaultParams() Params {
	return Params{
		Intensity:    0.35,
		RadiusPx:     16,
		Color:        color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		DirectionDeg: 30,
	}
}

// Engine renders rim lights
type Engine struct {
	logger *zap.Logger
}

// New creates an Engine; logger may be nil
func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logging.OrNop(logger)}
}

// AddRimLight returns subject with a tinted edge band composited on top.
// The band is the feathered alpha with the original alpha cut out of it.
func (e *Engine) AddRimLight(subject image.Image, p Params) *image.NRGBA {
	src := imaging.Clone(subject)
	if p.RadiusPx <= 0 || p.Intensity <= 0 {
		return src
	}

	alpha := mask.ExtractAlpha(src)
	band := Band(alpha, p.RadiusPx)
	rim := tint(band, p.Color, p.Intensity)

	dx, dy := Shift(p)
	out := imaging.Overlay(src, rim, image.Pt(dx, dy), 1.0)

	e.logger.Debug("rim light added",
		zap.Int("radius", p.RadiusPx),
		zap.Float64("intensity", p.Intensity),
		zap.Int("dx", dx),
		zap.Int("dy", dy))
	return out
}

// Band feathers alpha by radius and removes the original coverage from
// it (destination-out), leaving a ring around the silhouette.
func Band(alpha *image.Alpha, radius int) *image.Alpha {
	dilated := mask.FeatherEdges(alpha, radius)
	out := image.NewAlpha(dilated.Rect)
	b := alpha.Rect
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			a := int(alpha.Pix[alpha.PixOffset(b.Min.X+x, b.Min.Y+y)])
			d := int(dilated.Pix[y*dilated.Stride+x])
			out.Pix[y*out.Stride+x] = uint8((d*(255-a) + 127) / 255)
		}
	}
	return out
}

// Shift is the rim offset: radius/3 pixels away from the light direction
func Shift(p Params) (int, int) {
	s := float64(p.RadiusPx) / 3
	rad := p.DirectionDeg * math.Pi / 180
	return int(math.Round(-s * math.Cos(rad))), int(math.Round(-s * math.Sin(rad)))
}

// tint paints band in c with its alpha scaled by intensity
func tint(band *image.Alpha, c color.NRGBA, intensity float64) *image.NRGBA {
	level := int(intensity * 255)
	if level > 255 {
		level = 255
	}

	b := band.Rect
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			a := int(band.Pix[band.PixOffset(b.Min.X+x, b.Min.Y+y)])
			i := y*out.Stride + x*4
			out.Pix[i+0] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			out.Pix[i+3] = uint8((a*level + 127) / 255)
		}
	}
	return out
}
