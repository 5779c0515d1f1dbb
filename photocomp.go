// Package photocomp cuts subjects out of photos and composites them onto
// new backgrounds.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/menta2k/photocomp"
//		"github.com/menta2k/photocomp/pkg/remover"
//		"github.com/menta2k/photocomp/pkg/segment"
//	)
//
//	func main() {
//		ctx := context.Background()
//		ed := photocomp.New(remover.New(segment.NewHeuristic()))
//
//		if err := ed.Load(ctx, "photo.jpg"); err != nil {
//			log.Fatal(err)
//		}
//		if _, err := ed.ReplaceBackground(ctx); err != nil {
//			log.Fatal(err)
//		}
//		if err := ed.Export(ctx, "photo_edited.jpg"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// An Editor is one editing session. It runs the pipeline
//
//  1. Remover (pkg/remover): segmentation and a feathered alpha matte
//  2. Transform (pkg/transform): scale, rotation and offset of the cutout
//  3. Replace (pkg/replace): background synthesis and contact shadow
//  4. Relight (pkg/relight): rim light around the subject
//  5. Blend (pkg/blend): final per-pixel blend of the lit subject
//
// strictly in that order, one run at a time. A failed action leaves the
// previous image in place and is reported by LastError.
package photocomp

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/pkg/blend"
	"github.com/menta2k/photocomp/pkg/filter"
	"github.com/menta2k/photocomp/pkg/imageio"
	"github.com/menta2k/photocomp/pkg/project"
	"github.com/menta2k/photocomp/pkg/relight"
	"github.com/menta2k/photocomp/pkg/remover"
	"github.com/menta2k/photocomp/pkg/replace"
	"github.com/menta2k/photocomp/pkg/transform"
	"github.com/menta2k/photocomp/pkg/types"
)

// Version of the photocomp library
const Version = "0.3.0"

// ErrNoImage is returned by actions that need a loaded image
var ErrNoImage = errors.New("no image loaded")

// Editor holds one editing session
type Editor struct {
	loader    *imageio.Loader
	remover   *remover.Remover
	replacer  *replace.Engine
	relighter *relight.Engine
	store     project.Store
	logger    *zap.Logger

	// run serializes pipeline runs; a new run waits for the previous one
	run sync.Mutex

	mu             sync.RWMutex
	source         string
	original       *image.NRGBA
	edited         *image.NRGBA
	cutout         *image.NRGBA
	background     image.Image
	replaceParams  replace.Params
	relightParams  relight.Params
	relightEnabled bool
	blendMode      blend.Mode
	xform          transform.State
	focus          *types.Point
	export         types.ExportSettings
	projectID      string
	lastErr        string

	progress     atomic.Uint64
	running      atomic.Bool
	batchResults []string
}

// Option configures an Editor
type Option func(*Editor)

// WithLoader sets the image loader, and with it the image cache
func WithLoader(l *imageio.Loader) Option {
	return func(e *Editor) { e.loader = l }
}

// WithReplaceEngine sets the background replace engine
func WithReplaceEngine(r *replace.Engine) Option {
	return func(e *Editor) { e.replacer = r }
}

// WithRelightEngine sets the rim light engine
func WithRelightEngine(r *relight.Engine) Option {
	return func(e *Editor) { e.relighter = r }
}

// WithStore enables SaveProject and OpenProject
func WithStore(s project.Store) Option {
	return func(e *Editor) { e.store = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) { e.logger = logging.OrNop(l) }
}

// WithReplaceParams sets the initial background parameters
func WithReplaceParams(p replace.Params) Option {
	return func(e *Editor) { e.replaceParams = p }
}

// WithRelightParams sets the initial rim light parameters; enabled false
// skips the relight stage.
func WithRelightParams(p relight.Params, enabled bool) Option {
	return func(e *Editor) {
		e.relightParams = p
		e.relightEnabled = enabled
	}
}

// WithBlendMode sets the initial blend mode
func WithBlendMode(m blend.Mode) Option {
	return func(e *Editor) { e.blendMode = m }
}

// WithExportSettings sets the initial export settings
func WithExportSettings(s types.ExportSettings) Option {
	return func(e *Editor) { e.export = s }
}

// New creates an Editor around rm with default parameters
func New(rm *remover.Remover, opts ...Option) *Editor {
	e := &Editor{
		remover:        rm,
		logger:         zap.NewNop(),
		replaceParams:  replace.DefaultParams(),
		relightParams:  relight.DefaultParams(),
		relightEnabled: true,
		blendMode:      blend.Normal,
		xform:          transform.Identity(),
		export:         types.DefaultExportSettings(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loader == nil {
		e.loader = imageio.NewLoader(imageio.WithLogger(e.logger))
	}
	if e.replacer == nil {
		e.replacer = replace.New(replace.WithLogger(e.logger))
	}
	if e.relighter == nil {
		e.relighter = relight.New(e.logger)
	}
	return e
}

// fail records err as the session error and returns it
func (e *Editor) fail(action string, err error) error {
	e.logger.Error(action+" failed", zap.Error(err))
	e.mu.Lock()
	e.lastErr = fmt.Sprintf("%s failed: %v", action, err)
	e.mu.Unlock()
	return err
}

// succeed clears the session error and installs img as the edited image
func (e *Editor) succeed(img *image.NRGBA) {
	e.mu.Lock()
	e.edited = img
	e.lastErr = ""
	e.mu.Unlock()
}

// LastError is a short message for the last failed action, or ""
func (e *Editor) LastError() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// Image returns the current edited image, or nil
func (e *Editor) Image() *image.NRGBA {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.edited
}

// Original returns the loaded image, or nil
func (e *Editor) Original() *image.NRGBA {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.original
}

// Source is the reference of the loaded image
func (e *Editor) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

// Load replaces the session image with ref (path or URL). Transform state
// and any previous cutout are reset.
func (e *Editor) Load(ctx context.Context, ref string) error {
	e.run.Lock()
	defer e.run.Unlock()

	img, err := e.loader.Load(ctx, ref)
	if err == nil {
		err = imageio.Validate(img)
	}
	if err != nil {
		return e.fail("load", err)
	}

	e.SetImage(ref, img)
	e.logger.Info("image loaded", zap.String("ref", ref),
		zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))
	return nil
}

// SetImage installs an already decoded image under ref
func (e *Editor) SetImage(ref string, img image.Image) {
	src := imaging.Clone(img)
	e.mu.Lock()
	e.source = ref
	e.original = src
	e.edited = src
	e.cutout = nil
	e.xform = transform.Identity()
	e.focus = nil
	e.projectID = ""
	e.lastErr = ""
	e.mu.Unlock()
}

// LoadBackground loads the image used by the fit and fill background modes
func (e *Editor) LoadBackground(ctx context.Context, ref string) error {
	img, err := e.loader.Load(ctx, ref)
	if err != nil {
		return e.fail("background load", err)
	}
	e.SetBackground(img)
	return nil
}

// SetBackground sets the fit/fill background image; nil clears it
func (e *Editor) SetBackground(img image.Image) {
	e.mu.Lock()
	e.background = img
	e.mu.Unlock()
}

// SetReplaceParams sets the background parameters for later runs
func (e *Editor) SetReplaceParams(p replace.Params) {
	e.mu.Lock()
	e.replaceParams = p
	e.mu.Unlock()
}

// ReplaceParams returns the current background parameters
func (e *Editor) ReplaceParams() replace.Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.replaceParams
}

// SetRelightParams sets the rim light parameters for later runs
func (e *Editor) SetRelightParams(p relight.Params, enabled bool) {
	e.mu.Lock()
	e.relightParams = p
	e.relightEnabled = enabled
	e.mu.Unlock()
}

// SetBlendMode sets the final blend mode for later runs
func (e *Editor) SetBlendMode(m blend.Mode) {
	e.mu.Lock()
	e.blendMode = m
	e.mu.Unlock()
}

// SetFocus sets the last touch point used to bias segmentation; nil clears it
func (e *Editor) SetFocus(p *types.Point) {
	e.mu.Lock()
	if p != nil {
		cp := *p
		p = &cp
	}
	e.focus = p
	e.mu.Unlock()
}

// SetExportSettings validates and stores s
func (e *Editor) SetExportSettings(s types.ExportSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.export = s
	e.mu.Unlock()
	return nil
}

// ExportSettings returns the current export settings
func (e *Editor) ExportSettings() types.ExportSettings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.export
}

// Transform returns the current subject transform
func (e *Editor) Transform() transform.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.xform
}

// Scale multiplies the subject scale by f
func (e *Editor) Scale(f float64) {
	e.mu.Lock()
	e.xform = e.xform.ScaleBy(f)
	e.mu.Unlock()
}

// Rotate adds deg to the subject rotation
func (e *Editor) Rotate(deg float64) {
	e.mu.Lock()
	e.xform = e.xform.RotateBy(deg)
	e.mu.Unlock()
}

// Translate moves the subject by dx, dy pixels
func (e *Editor) Translate(dx, dy float64) {
	e.mu.Lock()
	e.xform = e.xform.TranslateBy(dx, dy)
	e.mu.Unlock()
}

// ResetTransform returns the subject transform to identity
func (e *Editor) ResetTransform() {
	e.mu.Lock()
	e.xform = transform.Identity()
	e.mu.Unlock()
}

// Export writes the edited image to path with the session export settings.
// UseUpscale doubles the resolution with the super resolution enhancement
// before scale is applied.
func (e *Editor) Export(ctx context.Context, path string) error {
	e.run.Lock()
	defer e.run.Unlock()

	e.mu.RLock()
	img, s := e.edited, e.export
	e.mu.RUnlock()
	if img == nil {
		return e.fail("export", ErrNoImage)
	}
	if err := ctx.Err(); err != nil {
		return e.fail("export", err)
	}

	if err := e.save(img, path, s); err != nil {
		return e.fail("export", err)
	}
	e.logger.Info("image exported", zap.String("path", path), zap.Stringer("format", s.Format))
	return nil
}

func (e *Editor) save(img image.Image, path string, s types.ExportSettings) error {
	if s.UseUpscale {
		res, err := filter.Enhance(img, filter.SuperResolution)
		if err != nil {
			return err
		}
		img = res.Image
	}
	return imageio.Save(img, path, s)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
