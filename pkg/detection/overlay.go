package detection

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/photocomp/pkg/types"
)

var (
	subjectColor = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	cropColor    = color.NRGBA{R: 255, G: 204, B: 0, A: 255}
	focusColor   = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
)

// Overlay returns a copy of img with the detected subject box, the crop
// rectangle (skipped when empty) and a crosshair on the focus point drawn
// on top.
func Overlay(img image.Image, r *types.AnalysisResult, cropRect image.Rectangle, focus types.Point) *image.NRGBA {
	out := imaging.Clone(img)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	side := float64(min(w, h))
	stroke := int(math.Max(2, 0.004*side))
	arm := int(math.Max(4, 0.01*side))

	if r != nil {
		outline(out, boxRect(r.Primary.Box, w, h), stroke, subjectColor)
	}
	if !cropRect.Empty() {
		outline(out, cropRect, stroke, cropColor)
	}

	px, py := int(math.Round(focus.X)), int(math.Round(focus.Y))
	fill(out, image.Rect(px-arm, py, px+arm+1, py+1), focusColor)
	fill(out, image.Rect(px, py-arm, px+1, py+arm+1), focusColor)
	return out
}

// boxRect converts a normalized box to pixels, at least one pixel wide
func boxRect(b types.Box, w, h int) image.Rectangle {
	x0 := int(clamp(b.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(b.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(b.X+b.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(b.Y+b.H, 0, 1)*float64(h) + 0.5)
	return image.Rect(x0, y0, max(x1, x0+1), max(y1, y0+1))
}

func outline(img *image.NRGBA, r image.Rectangle, stroke int, c color.NRGBA) {
	s := min(stroke, r.Dx(), r.Dy())
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+s), c)
	fill(img, image.Rect(r.Min.X, r.Max.Y-s, r.Max.X, r.Max.Y), c)
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+s, r.Max.Y), c)
	fill(img, image.Rect(r.Max.X-s, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// fill paints r clipped to the image
func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
}
