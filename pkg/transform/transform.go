// Package transform places a cutout subject on a canvas with scale,
// rotation and offset.
package transform

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// State is the subject placement. Offsets are in canvas pixels and
// rotation is clockwise in degrees.
type State struct {
	Scale       float64 `json:"scale"`
	RotationDeg float64 `json:"rotation_deg"`
	OffsetX     float64 `json:"offset_x"`
	OffsetY     float64 `json:"offset_y"`
}

// Identity returns the untransformed state
func Identity() State {
	return State{Scale: 1}
}

// IsIdentity reports whether s leaves the subject untouched
func (s State) IsIdentity() bool {
	return s.Scale == 1 && s.RotationDeg == 0 && s.OffsetX == 0 && s.OffsetY == 0
}

// Validate rejects non-positive or non-finite scales
func (s State) Validate() error {
	if !(s.Scale > 0) || math.IsInf(s.Scale, 0) {
		return fmt.Errorf("transform scale must be positive, got %v", s.Scale)
	}
	for _, v := range []float64{s.RotationDeg, s.OffsetX, s.OffsetY} {
		if !finite(v) {
			return fmt.Errorf("transform values must be finite")
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ScaleBy multiplies the scale, keeping it within [0.1, 10]. Non-finite
// factors are ignored.
func (s State) ScaleBy(f float64) State {
	if !finite(f) {
		return s
	}
	s.Scale = math.Min(10, math.Max(0.1, s.Scale*f))
	return s
}

// RotateBy adds degrees, normalized to [0, 360). Non-finite angles are
// ignored.
func (s State) RotateBy(deg float64) State {
	if !finite(deg) {
		return s
	}
	s.RotationDeg = math.Mod(s.RotationDeg+deg, 360)
	if s.RotationDeg < 0 {
		s.RotationDeg += 360
	}
	return s
}

// TranslateBy moves the subject by dx, dy canvas pixels. The move is
// ignored unless both are finite.
func (s State) TranslateBy(dx, dy float64) State {
	if !finite(dx) || !finite(dy) {
		return s
	}
	s.OffsetX += dx
	s.OffsetY += dy
	return s
}

// Matrix maps subject pixel coordinates to canvas coordinates: the subject
// center goes to the origin, is scaled and rotated, then moved to the
// canvas center plus the offset.
func (s State) Matrix(subjectW, subjectH, canvasW, canvasH int) f64.Aff3 {
	rad := s.RotationDeg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	a, b := s.Scale*cos, -s.Scale*sin
	d, e := s.Scale*sin, s.Scale*cos

	tx := float64(canvasW)/2 + s.OffsetX
	ty := float64(canvasH)/2 + s.OffsetY
	hw, hh := float64(subjectW)/2, float64(subjectH)/2

	return f64.Aff3{
		a, b, tx - (a*hw + b*hh),
		d, e, ty - (d*hw + e*hh),
	}
}

// Apply renders subject onto a transparent canvasW x canvasH canvas with
// bilinear resampling. The identity on a same-sized canvas is a copy.
func (s State) Apply(subject image.Image, canvasW, canvasH int) *image.NRGBA {
	src := imaging.Clone(subject)
	if s.IsIdentity() && src.Rect.Dx() == canvasW && src.Rect.Dy() == canvasH {
		return src
	}

	dst := image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.BiLinear.Transform(dst, s.Matrix(src.Rect.Dx(), src.Rect.Dy(), canvasW, canvasH), src, src.Rect, draw.Src, nil)
	return dst
}
