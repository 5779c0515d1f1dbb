// Package crop cuts rectangles and fixed aspect ratios out of images.
package crop

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/photocomp/pkg/types"
)

// ErrEmptyCrop is returned when the crop rectangle misses the image
var ErrEmptyCrop = errors.New("empty crop rectangle")

// AspectRatio represents common aspect ratios
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Common aspect ratios
var (
	Square     = AspectRatio{1, 1, "square"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
	Instagram  = AspectRatio{4, 5, "instagram"}
	Story      = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns a list of commonly used aspect ratios
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Widescreen, Instagram, Story}
}

// Ratio is width over height
func (a AspectRatio) Ratio() float64 {
	return float64(a.Width) / float64(a.Height)
}

func (a AspectRatio) String() string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("%d:%d", a.Width, a.Height)
}

// ParseAspectRatio accepts a preset name or a "W:H" pair
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range CommonAspectRatios() {
		if s == a.Name {
			return a, nil
		}
	}

	w, h, ok := strings.Cut(s, ":")
	if !ok {
		return AspectRatio{}, fmt.Errorf("unknown aspect ratio %q", s)
	}
	wi, err1 := strconv.Atoi(w)
	hi, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || wi <= 0 || hi <= 0 {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio %q", s)
	}
	return AspectRatio{Width: wi, Height: hi}, nil
}

// Result is a crop and where it came from in the source
type Result struct {
	Image *image.NRGBA
	Rect  image.Rectangle
	Ratio AspectRatio
}

// Crop cuts rect out of img. rect is clipped to the image bounds.
func Crop(img image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	r := rect.Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("%w: %v outside %v", ErrEmptyCrop, rect, img.Bounds())
	}
	return imaging.Crop(img, r), nil
}

// CropBox crops a normalized box, optionally filling to an exact output size
func CropBox(img image.Image, box types.Box, targetWidth, targetHeight int) (*image.NRGBA, error) {
	bounds := img.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())

	x0 := int(clamp(box.X, 0, 1)*fw + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*fh + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*fw + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*fh + 0.5)

	cropped, err := Crop(img, image.Rect(x0, y0, x1, y1).Add(bounds.Min))
	if err != nil {
		return nil, err
	}
	if targetWidth > 0 && targetHeight > 0 {
		cropped = imaging.Fill(cropped, targetWidth, targetHeight, imaging.Center, imaging.Lanczos)
	}
	return cropped, nil
}

// ToAspect crops the largest rect with the given ratio, centered on focus
// (image pixel coordinates) and shifted back inside the image. A nil focus
// means the image center.
func ToAspect(img image.Image, ratio AspectRatio, focus *types.Point) (*Result, error) {
	if ratio.Width <= 0 || ratio.Height <= 0 {
		return nil, fmt.Errorf("invalid aspect ratio %d:%d", ratio.Width, ratio.Height)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyCrop
	}

	rect := AspectRect(b.Dx(), b.Dy(), ratio.Ratio(), focus).Add(b.Min)
	out, err := Crop(img, rect)
	if err != nil {
		return nil, err
	}
	return &Result{Image: out, Rect: rect, Ratio: ratio}, nil
}

// AspectRect is the largest w x h sub-rectangle of ratio r around focus
func AspectRect(w, h int, r float64, focus *types.Point) image.Rectangle {
	cw := math.Min(float64(w), float64(h)*r)
	ch := cw / r
	cwi := max(1, min(w, int(math.Round(cw))))
	chi := max(1, min(h, int(math.Round(ch))))

	cx, cy := float64(w)/2, float64(h)/2
	if focus != nil {
		cx, cy = focus.X, focus.Y
	}

	x0 := int(math.Round(clamp(cx-float64(cwi)/2, 0, float64(w-cwi))))
	y0 := int(math.Round(clamp(cy-float64(chi)/2, 0, float64(h-chi))))
	return image.Rect(x0, y0, x0+cwi, y0+chi)
}

// FocusFromSubject converts a detected subject center into a focus point
func FocusFromSubject(p types.Primary, w, h int) types.Point {
	return types.Point{
		X: clamp(p.Cx, 0, 1) * float64(w),
		Y: clamp(p.Cy, 0, 1) * float64(h),
	}
}

// Resize crops img to the ratio of width x height around focus, then
// scales the crop to exactly that size.
func Resize(img image.Image, width, height int, focus *types.Point) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return imaging.Clone(img), nil
	}

	res, err := ToAspect(img, AspectRatio{Width: width, Height: height}, focus)
	if err != nil {
		return nil, err
	}
	return imaging.Resize(res.Image, width, height, imaging.Lanczos), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
