package segment

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/photocomp/pkg/client"
	"github.com/menta2k/photocomp/pkg/types"
)

// createTestImage draws a bright square subject on a dark flat background
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.SetNRGBA(x, y, color.NRGBA{255, 230, 40, 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{30, 60, 90, 255})
			}
		}
	}
	return img
}

func TestMaskValidate(t *testing.T) {
	assert.NoError(t, NewMask(4, 3).Validate())
	assert.ErrorIs(t, (&Mask{Width: 4, Height: 3, Confidence: make([]float32, 11)}).Validate(), ErrMalformed)
	assert.ErrorIs(t, (&Mask{}).Validate(), ErrMalformed)

	var nilMask *Mask
	assert.ErrorIs(t, nilMask.Validate(), ErrMalformed)
}

func TestUniform(t *testing.T) {
	m, err := Uniform(0.75).Segment(context.Background(), createTestImage(5, 4))
	require.NoError(t, err)
	assert.Equal(t, 5, m.Width)
	assert.Equal(t, 4, m.Height)
	assert.Equal(t, float32(0.75), m.At(4, 3))
}

func TestTaskWait(t *testing.T) {
	task := Start(context.Background(), Uniform(1), createTestImage(8, 8))

	m, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, len(m.Confidence))
}

func TestTaskWaitCancelledLeavesProviderRunning(t *testing.T) {
	release := make(chan struct{})
	providerErr := make(chan error, 1)

	slow := Func(func(ctx context.Context, img image.Image) (*Mask, error) {
		<-release
		providerErr <- ctx.Err()
		return NewMask(1, 1), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	task := Start(ctx, slow, createTestImage(4, 4))
	cancel()

	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("provider never finished")
	}
	assert.NoError(t, <-providerErr, "provider context must not be cancelled")

	m, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Width)
}

func TestTaskRecoversPanic(t *testing.T) {
	task := Start(context.Background(), Func(func(context.Context, image.Image) (*Mask, error) {
		panic("model crashed")
	}), createTestImage(2, 2))

	_, err := task.Wait(context.Background())
	assert.ErrorContains(t, err, "model crashed")
}

func TestTaskProviderError(t *testing.T) {
	boom := errors.New("inference failed")
	task := Start(context.Background(), Func(func(context.Context, image.Image) (*Mask, error) {
		return nil, boom
	}), createTestImage(2, 2))

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestHeuristicBorderDistance(t *testing.T) {
	m, err := NewHeuristic().Segment(context.Background(), createTestImage(90, 60))
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, 90, m.Width)
	assert.Equal(t, float32(0), m.At(2, 2))
	assert.Equal(t, float32(1), m.At(45, 30))
}

func TestHeuristicUsesAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	img.SetNRGBA(5, 5, color.NRGBA{R: 1, A: 255})

	m, err := NewHeuristic().Segment(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, float32(1), m.At(5, 5))
	assert.Equal(t, float32(0), m.At(0, 0))
}

func TestHeuristicNativeResolution(t *testing.T) {
	m, err := NewHeuristic().Segment(context.Background(), createTestImage(1024, 512))
	require.NoError(t, err)
	assert.Equal(t, 256, m.Width)
	assert.Equal(t, 128, m.Height)
}

func TestHeuristicHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic().Segment(ctx, createTestImage(4, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeVision struct {
	reply string
	err   error
}

func (f fakeVision) Name() string { return "fake" }

func (f fakeVision) Query(context.Context, client.Request) (string, error) {
	return f.reply, f.err
}

func TestVisionSegment(t *testing.T) {
	reply := `{"primary":{"label":"box","confidence":0.9,"box":{"x":0.25,"y":0.25,"w":0.5,"h":0.5},"cx":0.5,"cy":0.5}}`
	v := NewVision(fakeVision{reply: reply}, DefaultVisionConfig(), nil)

	m, err := v.Segment(context.Background(), createTestImage(400, 200))
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, 256, m.Width)
	assert.Equal(t, 128, m.Height)
	assert.Equal(t, float32(1), m.At(128, 64))
	assert.Equal(t, float32(0), m.At(0, 0))
}

func TestVisionSegmentClientError(t *testing.T) {
	v := NewVision(fakeVision{err: errors.New("offline")}, DefaultVisionConfig(), nil)
	_, err := v.Segment(context.Background(), createTestImage(10, 10))
	assert.ErrorContains(t, err, "offline")
}

func TestRenderEllipse(t *testing.T) {
	m := RenderEllipse(types.Box{X: 0, Y: 0, W: 1, H: 1}, 100, 50, 0.3)

	assert.Equal(t, float32(1), m.At(50, 25))
	assert.Equal(t, float32(0), m.At(0, 0))
	assert.Greater(t, m.At(2, 25), float32(0))
	assert.Less(t, m.At(2, 25), float32(1))

	empty := RenderEllipse(types.Box{}, 10, 10, 0.3)
	for _, c := range empty.Confidence {
		require.Equal(t, float32(0), c)
	}
}

func TestNativeSize(t *testing.T) {
	w, h := nativeSize(4000, 3000, 256)
	assert.Equal(t, 256, w)
	assert.Equal(t, 192, h)

	w, h = nativeSize(100, 1000, 256)
	assert.Equal(t, 26, w)
	assert.Equal(t, 256, h)
}
