package remover

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/photocomp/pkg/segment"
	"github.com/menta2k/photocomp/pkg/types"
)

func createSolidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRemoveBackgroundUniformConfidence(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	img := createSolidImage(100, 100, red)

	out, err := New(segment.Uniform(1)).RemoveBackground(context.Background(), img, nil)
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), out.Bounds())

	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			require.Equal(t, red, out.NRGBAAt(x, y))
		}
	}
}

func TestRemoveBackgroundRescalesNativeMask(t *testing.T) {
	img := createSolidImage(120, 80, color.NRGBA{G: 200, A: 255})

	// Left half background, right half subject, at a quarter resolution.
	half := segment.Func(func(context.Context, image.Image) (*segment.Mask, error) {
		m := segment.NewMask(30, 20)
		for y := 0; y < 20; y++ {
			for x := 15; x < 30; x++ {
				m.Confidence[y*30+x] = 1
			}
		}
		return m, nil
	})

	out, err := New(half, WithFeatherRadius(2)).RemoveBackground(context.Background(), img, nil)
	require.NoError(t, err)
	assert.Equal(t, 120, out.Bounds().Dx())
	assert.Equal(t, 80, out.Bounds().Dy())
	assert.Equal(t, uint8(0), out.NRGBAAt(5, 40).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(115, 40).A)
	assert.Equal(t, uint8(200), out.NRGBAAt(5, 40).G, "color is kept under a transparent matte")
}

func TestRemoveBackgroundMalformedMask(t *testing.T) {
	bad := segment.Func(func(context.Context, image.Image) (*segment.Mask, error) {
		return &segment.Mask{Width: 10, Height: 10, Confidence: make([]float32, 99)}, nil
	})

	_, err := New(bad).RemoveBackground(context.Background(), createSolidImage(10, 10, color.NRGBA{A: 255}), nil)
	assert.ErrorIs(t, err, ErrMalformedMask)
}

func TestRemoveBackgroundProviderFailure(t *testing.T) {
	failing := segment.Func(func(context.Context, image.Image) (*segment.Mask, error) {
		return nil, errors.New("model not downloaded")
	})

	_, err := New(failing).RemoveBackground(context.Background(), createSolidImage(10, 10, color.NRGBA{A: 255}), nil)
	assert.ErrorIs(t, err, ErrSegmentation)
	assert.ErrorContains(t, err, "model not downloaded")
}

func TestRemoveBackgroundCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	slow := segment.Func(func(context.Context, image.Image) (*segment.Mask, error) {
		<-block
		return segment.NewMask(1, 1), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(slow).RemoveBackground(ctx, createSolidImage(10, 10, color.NRGBA{A: 255}), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSegmentation)
}

func TestRemoveBackgroundEmptyImage(t *testing.T) {
	_, err := New(segment.Uniform(1)).RemoveBackground(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)), nil)
	assert.Error(t, err)
}

func TestFocusBias(t *testing.T) {
	m := segment.NewMask(50, 50)
	for i := range m.Confidence {
		m.Confidence[i] = 1
	}

	// focus given in a 100x100 image maps to (10,10) in the mask
	biased := FocusBias(m, types.Point{X: 20, Y: 20}, 100, 100)

	assert.InDelta(t, 1.0, biased[10*50+10], 1e-6)
	far := biased[49*50+49]
	assert.Less(t, far, float32(0.9))
	assert.Greater(t, far, float32(0.5))
	assert.Equal(t, float32(1), m.Confidence[49*50+49], "input mask must be untouched")
}

func TestRemoveBackgroundWithFocus(t *testing.T) {
	img := createSolidImage(60, 60, color.NRGBA{B: 255, A: 255})

	out, err := New(segment.Uniform(1), WithFeatherRadius(0)).
		RemoveBackground(context.Background(), img, &types.Point{X: 0, Y: 0})
	require.NoError(t, err)

	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).A)
	assert.Less(t, out.NRGBAAt(59, 59).A, uint8(200))
}
