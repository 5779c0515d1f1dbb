package filter

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
)

// EnhanceConfidence is reported for every enhancement; none of them is
// model based, so it is a fixed figure.
const EnhanceConfidence = 0.85

// Enhancement is a one-tap enhancement preset
type Enhancement int

const (
	AutoEnhance Enhancement = iota
	SuperResolution
	FaceEnhance
	LowLight
	ColorCorrect
	NoiseReduction
)

// Enhancements lists every preset in declaration order
func Enhancements() []Enhancement {
	return []Enhancement{AutoEnhance, SuperResolution, FaceEnhance, LowLight, ColorCorrect, NoiseReduction}
}

func (e Enhancement) String() string {
	switch e {
	case AutoEnhance:
		return "auto_enhance"
	case SuperResolution:
		return "super_resolution"
	case FaceEnhance:
		return "face_enhance"
	case LowLight:
		return "low_light"
	case ColorCorrect:
		return "color_correct"
	case NoiseReduction:
		return "noise_reduction"
	}
	return fmt.Sprintf("Enhancement(%d)", int(e))
}

// ParseEnhancement accepts the String form with - or _, or "auto"
func ParseEnhancement(s string) (Enhancement, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if norm == "auto" {
		return AutoEnhance, nil
	}
	for _, e := range Enhancements() {
		if norm == e.String() {
			return e, nil
		}
	}
	return AutoEnhance, fmt.Errorf("unknown enhancement %q", s)
}

// EnhancementResult is the output of Enhance
type EnhancementResult struct {
	Image      *image.NRGBA
	Kind       Enhancement
	Confidence float64
	Duration   time.Duration
}

// Enhance runs the preset e on img
func Enhance(img image.Image, e Enhancement) (*EnhancementResult, error) {
	start := time.Now()

	var (
		out *image.NRGBA
		err error
	)
	switch e {
	case AutoEnhance, FaceEnhance:
		out, err = autoEnhance(img)
	case SuperResolution:
		out = Upscale(img, 2)
	case LowLight:
		out, err = run(img, brightness(30), contrast(1.2))
	case ColorCorrect:
		out, err = run(img, grayWorld(img))
	case NoiseReduction:
		out, err = run(img, gift.Median(5, true))
	default:
		return nil, fmt.Errorf("unknown enhancement %v", e)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e, err)
	}

	return &EnhancementResult{
		Image:      out,
		Kind:       e,
		Confidence: EnhanceConfidence,
		Duration:   time.Since(start),
	}, nil
}

// Upscale resizes img by factor with a Lanczos filter
func Upscale(img image.Image, factor int) *image.NRGBA {
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.Lanczos)
}

func autoEnhance(img image.Image) (*image.NRGBA, error) {
	return run(img, AutoLevels(img), contrast(1.1), gift.UnsharpMask(1, 1.2, 0))
}

// AutoLevels stretches each color channel of img from its observed min..max
// to the full range. Flat channels are left alone.
func AutoLevels(img image.Image) gift.Filter {
	src := imaging.Clone(img)
	lo := [3]int{255, 255, 255}
	hi := [3]int{0, 0, 0}
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int(src.Pix[i+c])
			lo[c] = min(lo[c], v)
			hi[c] = max(hi[c], v)
		}
	}

	var scale, offset [3]float32
	for c := 0; c < 3; c++ {
		scale[c] = 1
		if hi[c] > lo[c] {
			scale[c] = 255 / float32(hi[c]-lo[c])
			offset[c] = float32(lo[c]) / 255
		}
	}
	return gift.ColorFunc(func(r, g, b, a float32) (float32, float32, float32, float32) {
		return (r - offset[0]) * scale[0], (g - offset[1]) * scale[1], (b - offset[2]) * scale[2], a
	})
}

// contrast scales channels around mid-gray 128
func contrast(scale float32) gift.Filter {
	off := (1 - scale) * 128 / 255
	return gift.ColorFunc(func(r, g, b, a float32) (float32, float32, float32, float32) {
		return r*scale + off, g*scale + off, b*scale + off, a
	})
}

// brightness adds v on the 0..255 scale
func brightness(v float32) gift.Filter {
	d := v / 255
	return gift.ColorFunc(func(r, g, b, a float32) (float32, float32, float32, float32) {
		return r + d, g + d, b + d, a
	})
}

// grayWorld balances the channel means of img towards their common gray
func grayWorld(img image.Image) gift.Filter {
	src := imaging.Clone(img)
	var sum [3]float64
	n := 0
	for i := 0; i < len(src.Pix); i += 4 {
		if src.Pix[i+3] == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			sum[c] += float64(src.Pix[i+c])
		}
		n++
	}
	if n == 0 || sum[0] == 0 || sum[1] == 0 || sum[2] == 0 {
		return gift.ColorBalance(0, 0, 0)
	}

	gray := (sum[0] + sum[1] + sum[2]) / 3
	pct := func(s float64) float32 { return float32((gray/s - 1) * 100) }
	return gift.ColorBalance(pct(sum[0]), pct(sum[1]), pct(sum[2]))
}
