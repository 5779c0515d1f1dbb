// Package mask refines soft alpha mattes: box feathering, alpha-mask
// application, alpha extraction and bilinear rescale.
package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// ErrSizeMismatch is returned when a mask and an image differ in size.
var ErrSizeMismatch = errors.New("mask and image sizes differ")

// FeatherEdges softens a mask with a separable box blur of window 2r+1,
// horizontal pass first. Samples outside the mask replicate the nearest
// edge value and every window average is truncated to an integer.
// radius <= 0 returns an identical copy.
func FeatherEdges(m *image.Alpha, radius int) *image.Alpha {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	src := make([]int, w*h)
	for y := 0; y < h; y++ {
		off := m.PixOffset(m.Rect.Min.X, m.Rect.Min.Y+y)
		for x, v := range m.Pix[off : off+w] {
			src[y*w+x] = int(v)
		}
	}

	if radius > 0 {
		tmp := make([]int, w*h)
		boxPass(src, tmp, w, h, radius, true)
		boxPass(tmp, src, w, h, radius, false)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x] = uint8(src[y*w+x])
		}
	}
	return out
}

// boxPass runs one sliding-window pass over a w*h plane, along rows when
// horizontal is set and along columns otherwise.
func boxPass(src, dst []int, w, h, r int, horizontal bool) {
	div := 2*r + 1

	lines, length := h, w
	if !horizontal {
		lines, length = w, h
	}
	at := func(line, i int) int {
		if horizontal {
			return line*w + i
		}
		return i*w + line
	}

	// indices past either end replicate the edge, so the first window is
	// r+1 copies of the first sample, the next samples up to r, and the
	// last sample repeated for whatever of r lies beyond the line
	inside := min(r, length-1)
	for line := 0; line < lines; line++ {
		sum := (r + 1) * src[at(line, 0)]
		for k := 1; k <= inside; k++ {
			sum += src[at(line, k)]
		}
		sum += (r - inside) * src[at(line, length-1)]
		for i := 0; i < length; i++ {
			dst[at(line, i)] = sum / div
			sum += src[at(line, clampIndex(i+r+1, length))]
			sum -= src[at(line, clampIndex(i-r, length))]
		}
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// ApplyAlphaMask keeps the color of src and multiplies its alpha by the
// mask (destination-in). The result is a new image.
func ApplyAlphaMask(src *image.NRGBA, m *image.Alpha) (*image.NRGBA, error) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if m.Rect.Dx() != w || m.Rect.Dy() != h {
		return nil, fmt.Errorf("%w: image %dx%d, mask %dx%d",
			ErrSizeMismatch, w, h, m.Rect.Dx(), m.Rect.Dy())
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y)
		mi := m.PixOffset(m.Rect.Min.X, m.Rect.Min.Y+y)
		di := y * out.Stride
		for x := 0; x < w; x++ {
			out.Pix[di+0] = src.Pix[si+0]
			out.Pix[di+1] = src.Pix[si+1]
			out.Pix[di+2] = src.Pix[si+2]
			out.Pix[di+3] = uint8((int(src.Pix[si+3])*int(m.Pix[mi]) + 127) / 255)
			si += 4
			di += 4
			mi++
		}
	}
	return out, nil
}

// ExtractAlpha copies the alpha channel of img into a mask at origin (0,0).
func ExtractAlpha(img image.Image) *image.Alpha {
	b := img.Bounds()
	out := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))

	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := n.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				out.Pix[y*out.Stride+x] = n.Pix[si+3]
				si += 4
			}
		}
		return out
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetAlpha(x, y, color.AlphaModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Alpha))
		}
	}
	return out
}

// Resize rescales a mask to w x h with bilinear filtering. A mask that
// already has the requested size is copied.
func Resize(m *image.Alpha, w, h int) *image.Alpha {
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	if m.Rect.Dx() == w && m.Rect.Dy() == h {
		draw.Draw(out, out.Rect, m, m.Rect.Min, draw.Src)
		return out
	}
	draw.BiLinear.Scale(out, out.Rect, m, m.Rect, draw.Src, nil)
	return out
}

// FromConfidence converts a row-major confidence map in [0,1] to an 8-bit
// mask. Values are truncated after scaling to 255 and clamped.
func FromConfidence(conf []float32, w, h int) *image.Alpha {
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	for i := 0; i < w*h && i < len(conf); i++ {
		a := int(conf[i] * 255)
		if a < 0 {
			a = 0
		} else if a > 255 {
			a = 255
		}
		out.Pix[(i/w)*out.Stride+i%w] = uint8(a)
	}
	return out
}

// BoxBlurNRGBA applies the FeatherEdges kernel to every channel of img.
func BoxBlurNRGBA(img *image.NRGBA, radius int) *image.NRGBA {
	src := imaging.Clone(img)
	if radius <= 0 {
		return src
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	plane := make([]int, w*h)
	tmp := make([]int, w*h)

	for c := 0; c < 4; c++ {
		for i := 0; i < w*h; i++ {
			plane[i] = int(src.Pix[(i/w)*src.Stride+(i%w)*4+c])
		}
		boxPass(plane, tmp, w, h, radius, true)
		boxPass(tmp, plane, w, h, radius, false)
		for i := 0; i < w*h; i++ {
			src.Pix[(i/w)*src.Stride+(i%w)*4+c] = uint8(plane[i])
		}
	}
	return src
}
