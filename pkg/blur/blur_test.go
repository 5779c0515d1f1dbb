package blur

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 {
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func TestFor(t *testing.T) {
	assert.Equal(t, "gaussian", For(true).Name())
	assert.Equal(t, "box", For(false).Name())
}

func TestSelectChecksOnce(t *testing.T) {
	calls := 0
	check := func() bool {
		calls++
		return false
	}

	first := Select(check)
	second := Select(check)
	third := Default()

	assert.LessOrEqual(t, calls, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestStrategiesPreserveSize(t *testing.T) {
	img := createTestImage(40, 30)
	m := image.NewAlpha(img.Bounds())
	m.SetAlpha(20, 15, color.Alpha{A: 255})

	for _, s := range []Strategy{Gaussian{}, Box{}} {
		t.Run(s.Name(), func(t *testing.T) {
			out := s.Blur(img, 20)
			require.Equal(t, img.Bounds(), out.Bounds())
			assert.NotEqual(t, img.Pix, out.Pix)

			bm := s.BlurMask(m, 4)
			require.Equal(t, m.Bounds(), bm.Bounds())
			assert.Less(t, bm.AlphaAt(20, 15).A, uint8(255))
			assert.Greater(t, bm.AlphaAt(21, 15).A, uint8(0))
		})
	}
}

func TestZeroRadiusCopies(t *testing.T) {
	img := createTestImage(10, 10)
	for _, s := range []Strategy{Gaussian{}, Box{}} {
		out := s.Blur(img, 0)
		assert.Equal(t, img.Pix, out.Pix, s.Name())
	}
}
