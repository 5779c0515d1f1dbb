package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/photocomp/pkg/client"
	"github.com/menta2k/photocomp/pkg/types"
)

type fakeClient struct {
	reply string
	err   error
	last  client.Request
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Query(_ context.Context, req client.Request) (string, error) {
	f.last = req
	return f.reply, f.err
}

func TestDetectSubject(t *testing.T) {
	fc := &fakeClient{reply: "```json\n{\"primary\":{\"label\":\"dog\",\"confidence\":0.9,\"box\":{\"x\":0.1,\"y\":0.2,\"w\":0.5,\"h\":0.6},\"cx\":0.35,\"cy\":0.5},\"tags\":[\"Dog\",\"dog\",\"grass\",],}\n```"}
	d := NewDetector(fc, "llava", nil)

	res, err := d.DetectSubject(context.Background(), "b64")
	require.NoError(t, err)

	assert.Equal(t, "dog", res.Primary.Label)
	assert.Equal(t, types.Box{X: 0.1, Y: 0.2, W: 0.5, H: 0.6}, res.Primary.Box)
	assert.Equal(t, []string{"dog", "grass"}, res.Tags)
	assert.False(t, IsNone(res))
	assert.True(t, fc.last.JSON)
	assert.Equal(t, "llava", fc.last.Model)
}

func TestDetectSubjectFallback(t *testing.T) {
	d := NewDetector(&fakeClient{reply: "I think there is a cat."}, "m", nil)

	res, err := d.DetectSubject(context.Background(), "b64")
	require.NoError(t, err)
	assert.Equal(t, FallbackBox, res.Primary.Box)
	assert.True(t, IsNone(res))
}

func TestDetectSubjectClientError(t *testing.T) {
	boom := errors.New("connection refused")
	d := NewDetector(&fakeClient{err: boom}, "m", nil)

	_, err := d.DetectSubject(context.Background(), "b64")
	assert.ErrorIs(t, err, boom)
}

func TestValidateClampsBox(t *testing.T) {
	res := validate(&types.AnalysisResult{Primary: types.Primary{
		Label:      "car",
		Confidence: 1.4,
		Box:        types.Box{X: 0.7, Y: -0.1, W: 0.6, H: 0.5},
		Cx:         0.1,
		Cy:         0.2,
	}})

	assert.InDelta(t, 0.3, res.Primary.Box.W, 1e-9)
	assert.Equal(t, 0.0, res.Primary.Box.Y)
	assert.Equal(t, 1.0, res.Primary.Confidence)
	assert.InDelta(t, 0.85, res.Primary.Cx, 1e-9)
	assert.InDelta(t, 0.2, res.Primary.Cy, 1e-9)
}

func TestValidateDegenerateBox(t *testing.T) {
	res := validate(&types.AnalysisResult{Primary: types.Primary{Label: "x", Confidence: 0.8}})
	assert.Equal(t, FallbackBox, res.Primary.Box)
	assert.True(t, IsNone(res))
}

func TestSanitizeModelJSON(t *testing.T) {
	in := "Sure!\n{\n  // comment\n  \"a\": 1, /* b */\n}\nthanks"
	assert.Equal(t, "{\n\n  \"a\": 1 \n}", sanitizeModelJSON(in))
}

func TestOverlay(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	r := &types.AnalysisResult{Primary: types.Primary{Box: types.Box{X: 0.1, Y: 0.1, W: 0.5, H: 0.5}}}

	out := Overlay(img, r, image.Rect(20, 20, 80, 80), types.Point{X: 90, Y: 90})
	require.Equal(t, img.Bounds(), out.Bounds())

	assert.Equal(t, subjectColor, out.NRGBAAt(10, 10))
	assert.Equal(t, subjectColor, out.NRGBAAt(30, 59))
	assert.Equal(t, cropColor, out.NRGBAAt(79, 70))
	assert.Equal(t, focusColor, out.NRGBAAt(90, 90))
	assert.Equal(t, focusColor, out.NRGBAAt(86, 90))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(40, 40))
	assert.Equal(t, color.NRGBA{}, img.NRGBAAt(10, 10), "source untouched")
}

func TestOverlayClipsFocusAtEdge(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 50, 40))
	out := Overlay(img, nil, image.Rectangle{}, types.Point{X: 0, Y: 39})
	assert.Equal(t, focusColor, out.NRGBAAt(0, 39))
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(25, 20))
}
