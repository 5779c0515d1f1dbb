package filter

import (
	"fmt"
	"image"

	"github.com/disintegration/gift"
)

// Adjustments are manual slider values, each a percentage in [-100, 100]
type Adjustments struct {
	Brightness float64
	Contrast   float64
	Saturation float64
}

// IsZero reports whether a leaves the image unchanged
func (a Adjustments) IsZero() bool {
	return a.Brightness == 0 && a.Contrast == 0 && a.Saturation == 0
}

// Validate checks that every slider is within range
func (a Adjustments) Validate() error {
	for name, v := range map[string]float64{
		"brightness": a.Brightness,
		"contrast":   a.Contrast,
		"saturation": a.Saturation,
	} {
		if v < -100 || v > 100 {
			return fmt.Errorf("%s %.1f out of range [-100, 100]", name, v)
		}
	}
	return nil
}

// Adjust applies brightness, then contrast, then saturation
func Adjust(img image.Image, a Adjustments) (*image.NRGBA, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	var filters []gift.Filter
	if a.Brightness != 0 {
		filters = append(filters, gift.Brightness(float32(a.Brightness)))
	}
	if a.Contrast != 0 {
		filters = append(filters, gift.Contrast(float32(a.Contrast)))
	}
	if a.Saturation != 0 {
		filters = append(filters, gift.Saturation(float32(a.Saturation)))
	}
	return run(img, filters...)
}
