package crop

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/photocomp/pkg/types"
)

// createTestImage returns a gray image with a white square in the middle
func createTestImage(width, height int) *image.NRGBA {
	img := imaging.New(width, height, color.NRGBA{R: 64, G: 64, B: 64, A: 255})
	for y := height / 3; y < 2*height/3; y++ {
		for x := width / 3; x < 2*width/3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

func TestCommonAspectRatios(t *testing.T) {
	ratios := CommonAspectRatios()
	require.Len(t, ratios, 6)
	assert.Contains(t, ratios, Square)
	assert.Contains(t, ratios, Story)
}

func TestCrop(t *testing.T) {
	img := createTestImage(90, 60)

	out, err := Crop(img, image.Rect(30, 20, 60, 40))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 20), out.Bounds())
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).R)

	out, err = Crop(img, image.Rect(-10, -10, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Bounds(), "clipped to bounds")

	_, err = Crop(img, image.Rect(100, 100, 120, 120))
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestCropBox(t *testing.T) {
	img := createTestImage(100, 100)

	out, err := CropBox(img, types.Box{X: 0.25, Y: 0.5, W: 0.5, H: 0.25}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 25), out.Bounds())

	out, err = CropBox(img, types.Box{X: 0, Y: 0, W: 1, H: 1}, 40, 20)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())

	_, err = CropBox(img, types.Box{X: 0.5, Y: 0.5, W: 0, H: 0}, 0, 0)
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestToAspectRatios(t *testing.T) {
	img := createTestImage(400, 300)

	for _, ratio := range CommonAspectRatios() {
		t.Run(ratio.Name, func(t *testing.T) {
			res, err := ToAspect(img, ratio, nil)
			require.NoError(t, err)

			b := res.Image.Bounds()
			got := float64(b.Dx()) / float64(b.Dy())
			assert.InDelta(t, ratio.Ratio(), got, 0.01)
			assert.True(t, res.Rect.In(img.Bounds()))
			assert.True(t, b.Dx() == 400 || b.Dy() == 300, "crop is not the largest: %v", b)
		})
	}
}

func TestToAspectCentersOnFocus(t *testing.T) {
	img := createTestImage(400, 300)

	res, err := ToAspect(img, Square, nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(50, 0, 350, 300), res.Rect)

	res, err = ToAspect(img, Square, &types.Point{X: 300, Y: 150})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(100, 0, 400, 300), res.Rect, "shifted back inside")

	res, err = ToAspect(img, Square, &types.Point{X: -50, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 300), res.Rect)
}

func TestToAspectInvalid(t *testing.T) {
	_, err := ToAspect(createTestImage(10, 10), AspectRatio{Width: 0, Height: 1}, nil)
	assert.Error(t, err)

	_, err = ToAspect(image.NewNRGBA(image.Rect(0, 0, 0, 0)), Square, nil)
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestResize(t *testing.T) {
	img := createTestImage(400, 300)

	out, err := Resize(img, 160, 90, nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 160, 90), out.Bounds())

	out, err = Resize(img, 400, 300, nil)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, out.Pix)

	_, err = Resize(img, 0, 10, nil)
	assert.Error(t, err)
}

func TestParseAspectRatio(t *testing.T) {
	a, err := ParseAspectRatio("Widescreen")
	require.NoError(t, err)
	assert.Equal(t, Widescreen, a)

	a, err = ParseAspectRatio("21:9")
	require.NoError(t, err)
	assert.Equal(t, AspectRatio{Width: 21, Height: 9}, a)
	assert.Equal(t, "21:9", a.String())

	for _, bad := range []string{"wide", "0:1", "a:b", "3:"} {
		_, err = ParseAspectRatio(bad)
		assert.Error(t, err, bad)
	}
}

func TestFocusFromSubject(t *testing.T) {
	p := FocusFromSubject(types.Primary{Cx: 0.25, Cy: 1.5}, 200, 100)
	assert.Equal(t, types.Point{X: 50, Y: 100}, p)
}
