package types

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"jpg": JPEG, "JPEG": JPEG, ".png": PNG, "WebP": WEBP}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("gif")
	assert.Error(t, err)
	assert.Equal(t, "jpg", JPEG.Ext())
	assert.Equal(t, "webp", WEBP.Ext())
}

func TestExportSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultExportSettings().Validate())

	s := DefaultExportSettings()
	s.Quality = 49
	assert.Error(t, s.Validate())

	s = DefaultExportSettings()
	s.Scale = 2.5
	assert.Error(t, s.Validate())

	s = DefaultExportSettings()
	s.Format = Format(7)
	assert.Error(t, s.Validate())
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ffffff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"444444", color.NRGBA{R: 0x44, G: 0x44, B: 0x44, A: 255}},
		{"#f0a", color.NRGBA{R: 0xff, G: 0x00, B: 0xaa, A: 255}},
		{"#10203080", color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x80}},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "#12", "#ggg", "#1234567"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "#102030", HexColor(color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 255}))
	assert.Equal(t, "#10203080", HexColor(color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x80}))
}
