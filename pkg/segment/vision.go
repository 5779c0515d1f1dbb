package segment

import (
	"context"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/pkg/client"
	"github.com/menta2k/photocomp/pkg/detection"
	"github.com/menta2k/photocomp/pkg/imageio"
	"github.com/menta2k/photocomp/pkg/types"
)

// VisionConfig controls how images are sent and masks are rendered
type VisionConfig struct {
	Model        string
	SendFormat   string
	SendSize     int
	SendQuality  int
	MaskLongSide int
	// Softness is the width of the ellipse falloff relative to its radius
	Softness float64
}

// DefaultVisionConfig returns the settings used by the CLI
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		Model:        "openbmb/minicpm-v4.5",
		SendFormat:   "jpg",
		SendSize:     1024,
		SendQuality:  85,
		MaskLongSide: 256,
		Softness:     0.3,
	}
}

// Vision segments by asking a vision model for the subject box and
// rendering it as a soft ellipse.
type Vision struct {
	detector *detection.Detector
	config   VisionConfig
	logger   *zap.Logger
}

// NewVision creates a vision segmenter on c
func NewVision(c client.VisionClient, cfg VisionConfig, logger *zap.Logger) *Vision {
	logger = logging.OrNop(logger)
	if cfg.MaskLongSide <= 0 {
		cfg.MaskLongSide = 256
	}
	if cfg.Softness <= 0 {
		cfg.Softness = 0.3
	}
	return &Vision{
		detector: detection.NewDetector(c, cfg.Model, logger),
		config:   cfg,
		logger:   logger,
	}
}

// Segment implements Segmenter
func (v *Vision) Segment(ctx context.Context, img image.Image) (*Mask, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("cannot segment empty image")
	}

	b64, err := imageio.PrepareForModel(img, v.config.SendFormat, v.config.SendSize, v.config.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for model: %w", err)
	}

	result, err := v.detector.DetectSubject(ctx, b64)
	if err != nil {
		return nil, err
	}
	v.logger.Debug("subject located",
		zap.String("label", result.Primary.Label),
		zap.Float64("confidence", result.Primary.Confidence),
		zap.Any("box", result.Primary.Box))

	w, h := nativeSize(b.Dx(), b.Dy(), v.config.MaskLongSide)
	return RenderEllipse(result.Primary.Box, w, h, v.config.Softness), nil
}

// nativeSize scales w x h so the long side equals longSide
func nativeSize(w, h, longSide int) (int, int) {
	if w >= h {
		return longSide, max(1, int(math.Round(float64(h)*float64(longSide)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(longSide)/float64(h)))), longSide
}

// RenderEllipse fills a w x h mask with the ellipse inscribed in the
// normalized box. Confidence is 1 inside (1-softness/2) of the radius and
// falls smoothly to 0 at (1+softness/2).
func RenderEllipse(box types.Box, w, h int, softness float64) *Mask {
	m := NewMask(w, h)
	cx, cy := box.X+box.W/2, box.Y+box.H/2
	rx, ry := box.W/2, box.H/2
	if rx <= 0 || ry <= 0 {
		return m
	}
	inner := 1 - softness/2

	for y := 0; y < h; y++ {
		v := (float64(y) + 0.5) / float64(h)
		dy := (v - cy) / ry
		for x := 0; x < w; x++ {
			u := (float64(x) + 0.5) / float64(w)
			dx := (u - cx) / rx
			r := math.Sqrt(dx*dx + dy*dy)
			m.Confidence[y*w+x] = float32(1 - smoothstep((r-inner)/softness))
		}
	}
	return m
}
