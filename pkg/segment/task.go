package segment

import (
	"context"
	"fmt"
	"image"
)

// Task is an in-flight segmentation started with Start
type Task struct {
	done chan struct{}
	mask *Mask
	err  error
}

// Start runs s.Segment in its own goroutine. The provider receives a
// context that keeps ctx's values but not its cancellation, so abandoning
// the task never interrupts an inference already underway.
func Start(ctx context.Context, s Segmenter, img image.Image) *Task {
	t := &Task{done: make(chan struct{})}
	detached := context.WithoutCancel(ctx)

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("segmentation provider panicked: %v", r)
			}
		}()
		t.mask, t.err = s.Segment(detached, img)
	}()

	return t
}

// Done is closed once the provider returns
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the provider returns or ctx is done. In the second case
// it returns ctx.Err() and the provider keeps running.
func (t *Task) Wait(ctx context.Context) (*Mask, error) {
	select {
	case <-t.done:
		return t.mask, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
