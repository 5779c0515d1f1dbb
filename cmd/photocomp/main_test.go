package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	w, h, err := parseSize("1080x1920")
	require.NoError(t, err)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 1920, h)

	w, h, err = parseSize(" 16 X 9 ")
	require.NoError(t, err)
	assert.Equal(t, 16, w)
	assert.Equal(t, 9, h)

	for _, bad := range []string{"", "100", "0x10", "10x-1", "axb"} {
		_, _, err := parseSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFloats(t *testing.T) {
	v, err := parseFloats("1.5, 2", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2}, v)

	_, err = parseFloats("1,2,3", 2)
	assert.Error(t, err)
	_, err = parseFloats("1,x", 2)
	assert.Error(t, err)
}
