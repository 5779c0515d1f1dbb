package relight

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createSubject returns a transparent canvas with an opaque square
func createSubject(size int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := size / 4; y < 3*size/4; y++ {
		for x := size / 4; x < 3*size/4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestBandIsRingOutsideSubject(t *testing.T) {
	subject := createSubject(64, color.NRGBA{R: 255, A: 255})
	alpha := image.NewAlpha(subject.Bounds())
	for i := range alpha.Pix {
		alpha.Pix[i] = subject.Pix[i*4+3]
	}

	band := Band(alpha, 6)

	assert.Equal(t, uint8(0), band.AlphaAt(32, 32).A, "no band inside the subject")
	assert.Greater(t, band.AlphaAt(14, 32).A, uint8(0), "band just outside the edge")
	assert.Equal(t, uint8(0), band.AlphaAt(2, 2).A, "no band far away")
}

func TestShift(t *testing.T) {
	dx, dy := Shift(Params{RadiusPx: 30, DirectionDeg: 0})
	assert.Equal(t, -10, dx)
	assert.Equal(t, 0, dy)

	dx, dy = Shift(Params{RadiusPx: 30, DirectionDeg: 90})
	assert.Equal(t, 0, dx)
	assert.Equal(t, -10, dy)

	dx, dy = Shift(DefaultParams())
	assert.Equal(t, -5, dx)
	assert.Equal(t, -3, dy)
}

func TestAddRimLight(t *testing.T) {
	blue := color.NRGBA{B: 255, A: 255}
	subject := createSubject(64, blue)

	p := DefaultParams()
	p.Intensity = 1
	p.RadiusPx = 9
	p.DirectionDeg = 0
	out := New(nil).AddRimLight(subject, p)

	require.Equal(t, subject.Bounds(), out.Bounds())
	assert.Equal(t, blue, out.NRGBAAt(32, 32), "interior untouched")

	// light from the right puts the rim on the left side
	left := out.NRGBAAt(10, 32)
	right := out.NRGBAAt(50, 32)
	assert.Greater(t, left.A, right.A)
	assert.Equal(t, uint8(255), left.R)
}

func TestAddRimLightDisabled(t *testing.T) {
	subject := createSubject(16, color.NRGBA{G: 255, A: 255})

	p := DefaultParams()
	p.Intensity = 0
	out := New(nil).AddRimLight(subject, p)
	assert.Equal(t, subject.Pix, out.Pix)

	p = DefaultParams()
	p.RadiusPx = 0
	out = New(nil).AddRimLight(subject, p)
	assert.Equal(t, subject.Pix, out.Pix)
}
