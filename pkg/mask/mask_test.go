package mask

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createStepMask returns a mask that is opaque on the right half
func createStepMask(width, height int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := width / 2; x < width; x++ {
			m.SetAlpha(x, y, color.Alpha{A: 255})
		}
	}
	return m
}

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	return img
}

func TestFeatherEdgesRadiusZeroIsIdentity(t *testing.T) {
	m := createStepMask(20, 10)

	once := FeatherEdges(m, 0)
	twice := FeatherEdges(once, 0)

	assert.Equal(t, m.Pix, once.Pix)
	assert.Equal(t, once.Pix, twice.Pix)
	assert.NotSame(t, m, once, "radius 0 must still return a new mask")
}

func TestFeatherEdgesNotIdempotent(t *testing.T) {
	m := createStepMask(32, 8)

	once := FeatherEdges(m, 3)
	twice := FeatherEdges(once, 3)

	assert.NotEqual(t, once.Pix, twice.Pix)
}

func TestFeatherEdgesKnownValues(t *testing.T) {
	m := image.NewAlpha(image.Rect(0, 0, 5, 1))
	m.Pix[2] = 255

	out := FeatherEdges(m, 1)

	assert.Equal(t, []uint8{0, 85, 85, 85, 0}, out.Pix)
}

func TestFeatherEdgesUniformUnchanged(t *testing.T) {
	m := image.NewAlpha(image.Rect(0, 0, 12, 12))
	for i := range m.Pix {
		m.Pix[i] = 200
	}

	out := FeatherEdges(m, 4)

	for _, v := range out.Pix {
		require.Equal(t, uint8(200), v)
	}
}

func TestFeatherEdgesPreservesSize(t *testing.T) {
	m := createStepMask(17, 9)
	out := FeatherEdges(m, 6)
	assert.Equal(t, m.Bounds(), out.Bounds())
}

// referenceFeather is the direct 2r+1 window average per pixel
func referenceFeather(m *image.Alpha, r int) []uint8 {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	tmp := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := -r; k <= r; k++ {
				sum += int(m.Pix[y*m.Stride+clampIndex(x+k, w)])
			}
			tmp[y*w+x] = sum / (2*r + 1)
		}
	}
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := -r; k <= r; k++ {
				sum += tmp[clampIndex(y+k, h)*w+x]
			}
			out[y*w+x] = uint8(sum / (2*r + 1))
		}
	}
	return out
}

func TestFeatherEdgesMatchesReference(t *testing.T) {
	m := image.NewAlpha(image.Rect(0, 0, 5, 4))
	for i := range m.Pix {
		m.Pix[i] = uint8(i * 37 % 256)
	}

	for _, r := range []int{1, 2, 3, 4, 7, 20} {
		assert.Equal(t, referenceFeather(m, r), FeatherEdges(m, r).Pix, "radius %d", r)
	}
}

func TestFeatherEdgesHugeRadius(t *testing.T) {
	m := createStepMask(4, 4)

	out := FeatherEdges(m, 50_000_000)

	require.Len(t, out.Pix, 16)
	for _, v := range out.Pix {
		assert.InDelta(t, 127, int(v), 1)
	}
}

func TestApplyAlphaMaskPreservesRGB(t *testing.T) {
	img := createTestImage(10, 10)
	m := createStepMask(10, 10)
	m.SetAlpha(0, 0, color.Alpha{A: 128})

	out, err := ApplyAlphaMask(img, m)
	require.NoError(t, err)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			s := img.NRGBAAt(x, y)
			o := out.NRGBAAt(x, y)
			assert.Equal(t, s.R, o.R)
			assert.Equal(t, s.G, o.G)
			assert.Equal(t, s.B, o.B)
			assert.Equal(t, m.AlphaAt(x, y).A, o.A)
		}
	}
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).A, "input must not be mutated")
}

func TestApplyAlphaMaskSizeMismatch(t *testing.T) {
	_, err := ApplyAlphaMask(createTestImage(10, 10), createStepMask(5, 10))
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestExtractAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(1, 2, color.NRGBA{R: 10, A: 77})

	a := ExtractAlpha(img)
	assert.Equal(t, uint8(77), a.AlphaAt(1, 2).A)
	assert.Equal(t, uint8(0), a.AlphaAt(0, 0).A)

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgba.Set(1, 1, color.RGBA{A: 255})
	assert.Equal(t, uint8(255), ExtractAlpha(rgba).AlphaAt(1, 1).A)
}

func TestResize(t *testing.T) {
	m := image.NewAlpha(image.Rect(0, 0, 8, 8))
	for i := range m.Pix {
		m.Pix[i] = 255
	}

	out := Resize(m, 32, 16)
	assert.Equal(t, image.Rect(0, 0, 32, 16), out.Bounds())
	assert.Equal(t, uint8(255), out.AlphaAt(16, 8).A)

	same := Resize(m, 8, 8)
	assert.Equal(t, m.Pix, same.Pix)
}

func TestFromConfidence(t *testing.T) {
	out := FromConfidence([]float32{0, 0.5, 1, 1.5}, 2, 2)
	assert.Equal(t, []uint8{0, 127, 255, 255}, out.Pix)
}

func TestBoxBlurNRGBAKeepsFlatImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 9, 9))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 40, 80, 120, 255
	}

	out := BoxBlurNRGBA(img, 3)
	assert.Equal(t, img.Pix, out.Pix)
}

func BenchmarkFeatherEdges(b *testing.B) {
	m := createStepMask(1024, 1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FeatherEdges(m, 6)
	}
}
