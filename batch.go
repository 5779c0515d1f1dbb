package photocomp

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/utils"
	"github.com/menta2k/photocomp/pkg/imageio"
	"github.com/menta2k/photocomp/pkg/types"
)

// BatchSuffix is appended to batch output file names
const BatchSuffix = "_cutout"

// Batch cuts out every source and writes the results to outDir, one item
// at a time. Failed items are logged and skipped. Progress is updated after
// each item and reaches 1 when every item has been attempted. The returned
// paths are the outputs that were written; the error is non-nil only when
// ctx ended before the batch finished.
//
// Cutouts need transparency, so a JPEG export format is written as PNG.
func (e *Editor) Batch(ctx context.Context, sources []string, outDir string) ([]string, error) {
	e.run.Lock()
	defer e.run.Unlock()

	e.running.Store(true)
	defer e.running.Store(false)
	e.setProgress(0)

	e.mu.RLock()
	s := e.export
	e.mu.RUnlock()
	if s.Format == types.JPEG {
		s.Format = types.PNG
	}

	start := time.Now()
	outputs := make([]string, 0, len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			e.finishBatch(outputs)
			return outputs, e.fail("batch", err)
		}

		out := utils.OutputPath(src, outDir, BatchSuffix, s.Format)
		if err := e.batchItem(ctx, src, out, s); err != nil {
			e.logger.Warn("batch item failed",
				zap.Int("index", i),
				zap.String("source", src),
				zap.Error(err))
		} else {
			outputs = append(outputs, out)
		}
		e.setProgress(float64(i+1) / float64(len(sources)))
	}
	if len(sources) == 0 {
		e.setProgress(1)
	}

	e.finishBatch(outputs)
	e.logger.Info("batch finished",
		zap.Int("items", len(sources)),
		zap.Int("written", len(outputs)),
		zap.Duration("took", time.Since(start)))
	return outputs, nil
}

func (e *Editor) batchItem(ctx context.Context, src, out string, s types.ExportSettings) error {
	img, err := e.loader.Load(ctx, src)
	if err != nil {
		return err
	}
	if err := imageio.Validate(img); err != nil {
		return err
	}
	cut, err := e.remover.RemoveBackground(ctx, img, nil)
	if err != nil {
		return err
	}
	return e.save(cut, out, s)
}

func (e *Editor) finishBatch(outputs []string) {
	e.mu.Lock()
	e.batchResults = append([]string(nil), outputs...)
	e.mu.Unlock()
}

func (e *Editor) setProgress(p float64) {
	e.progress.Store(math.Float64bits(p))
}

// Progress is the fraction of the current or last batch that has been
// attempted
func (e *Editor) Progress() float64 {
	return math.Float64frombits(e.progress.Load())
}

// Running reports whether a batch is in progress
func (e *Editor) Running() bool {
	return e.running.Load()
}

// BatchResults returns the outputs of the last finished batch
func (e *Editor) BatchResults() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.batchResults...)
}
