package photocomp

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/photocomp/pkg/blend"
	"github.com/menta2k/photocomp/pkg/crop"
	"github.com/menta2k/photocomp/pkg/filter"
	"github.com/menta2k/photocomp/pkg/replace"
)

// Cutout removes the background of the edited image. The result becomes
// both the edited image and the subject used by ReplaceBackground.
func (e *Editor) Cutout(ctx context.Context) (*image.NRGBA, error) {
	e.run.Lock()
	defer e.run.Unlock()

	e.mu.RLock()
	src, focus := e.edited, e.focus
	e.mu.RUnlock()
	if src == nil {
		return nil, e.fail("cutout", ErrNoImage)
	}

	cut, err := e.remover.RemoveBackground(ctx, src, focus)
	if err != nil {
		return nil, e.fail("cutout", err)
	}

	e.mu.Lock()
	e.cutout = cut
	e.mu.Unlock()
	e.succeed(cut)
	return cut, nil
}

// ReplaceBackground runs the compositing pipeline on the loaded image:
// the cutout (computed now if Cutout was not called) is transformed, placed
// on the synthesized background, rim lit and blended on top.
func (e *Editor) ReplaceBackground(ctx context.Context) (*image.NRGBA, error) {
	e.run.Lock()
	defer e.run.Unlock()

	e.mu.RLock()
	var (
		src       = e.original
		cut       = e.cutout
		focus     = e.focus
		bg        = e.background
		rp        = e.replaceParams
		lp        = e.relightParams
		relightOn = e.relightEnabled
		mode      = e.blendMode
		xform     = e.xform
	)
	e.mu.RUnlock()
	if src == nil {
		return nil, e.fail("replace", ErrNoImage)
	}
	if err := xform.Validate(); err != nil {
		return nil, e.fail("replace", err)
	}

	start := time.Now()
	if cut == nil {
		var err error
		if cut, err = e.remover.RemoveBackground(ctx, src, focus); err != nil {
			return nil, e.fail("replace", err)
		}
		e.mu.Lock()
		e.cutout = cut
		e.mu.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail("replace", err)
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	subject := xform.Apply(cut, w, h)

	if rp.Mode != replace.ImageFit && rp.Mode != replace.ImageFill {
		bg = nil
	}
	base, err := e.replacer.Compose(src, subject, bg, rp)
	if err != nil {
		return nil, e.fail("replace", err)
	}

	lit := subject
	if relightOn {
		lit = e.relighter.AddRimLight(subject, lp)
	}

	out, err := blend.Composite(base, lit, mode)
	if err != nil {
		return nil, e.fail("replace", err)
	}

	e.succeed(out)
	e.logger.Info("background replaced",
		zap.Stringer("mode", rp.Mode),
		zap.Stringer("blend", mode),
		zap.Bool("relight", relightOn),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// ApplyFilter applies a color filter to the edited image
func (e *Editor) ApplyFilter(ctx context.Context, k filter.Kind) (*image.NRGBA, error) {
	return e.edit(ctx, "filter", func(img *image.NRGBA) (*image.NRGBA, error) {
		return filter.Apply(img, k)
	})
}

// Adjust applies brightness, contrast and saturation to the edited image
func (e *Editor) Adjust(ctx context.Context, a filter.Adjustments) (*image.NRGBA, error) {
	return e.edit(ctx, "adjust", func(img *image.NRGBA) (*image.NRGBA, error) {
		return filter.Adjust(img, a)
	})
}

// Enhance runs a one-tap enhancement on the edited image
func (e *Editor) Enhance(ctx context.Context, kind filter.Enhancement) (*filter.EnhancementResult, error) {
	var res *filter.EnhancementResult
	_, err := e.edit(ctx, "enhance", func(img *image.NRGBA) (*image.NRGBA, error) {
		var err error
		if res, err = filter.Enhance(img, kind); err != nil {
			return nil, err
		}
		return res.Image, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Crop cuts rect out of the edited image
func (e *Editor) Crop(ctx context.Context, rect image.Rectangle) (*image.NRGBA, error) {
	return e.edit(ctx, "crop", func(img *image.NRGBA) (*image.NRGBA, error) {
		return crop.Crop(img, rect)
	})
}

// CropAspect crops the edited image to ratio around the focus point
func (e *Editor) CropAspect(ctx context.Context, ratio crop.AspectRatio) (*image.NRGBA, error) {
	e.mu.RLock()
	focus := e.focus
	e.mu.RUnlock()

	return e.edit(ctx, "crop", func(img *image.NRGBA) (*image.NRGBA, error) {
		res, err := crop.ToAspect(img, ratio, focus)
		if err != nil {
			return nil, err
		}
		return res.Image, nil
	})
}

// Resize crops the edited image to the ratio of width x height around the
// focus point and scales it to exactly that size
func (e *Editor) Resize(ctx context.Context, width, height int) (*image.NRGBA, error) {
	e.mu.RLock()
	focus := e.focus
	e.mu.RUnlock()

	return e.edit(ctx, "resize", func(img *image.NRGBA) (*image.NRGBA, error) {
		return crop.Resize(img, width, height, focus)
	})
}

// Revert discards every edit and returns to the loaded image
func (e *Editor) Revert() error {
	e.run.Lock()
	defer e.run.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.original == nil {
		return ErrNoImage
	}
	e.edited = e.original
	e.cutout = nil
	e.lastErr = ""
	return nil
}

// edit runs fn on the edited image as one serialized action. The previous
// image is kept when fn fails.
func (e *Editor) edit(ctx context.Context, action string, fn func(*image.NRGBA) (*image.NRGBA, error)) (*image.NRGBA, error) {
	e.run.Lock()
	defer e.run.Unlock()

	e.mu.RLock()
	src := e.edited
	e.mu.RUnlock()
	if src == nil {
		return nil, e.fail(action, ErrNoImage)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail(action, err)
	}

	out, err := fn(src)
	if err != nil {
		return nil, e.fail(action, err)
	}
	e.succeed(out)
	return out, nil
}
