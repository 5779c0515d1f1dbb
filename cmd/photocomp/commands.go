package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/photocomp"
	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/internal/utils"
	"github.com/menta2k/photocomp/pkg/blend"
	"github.com/menta2k/photocomp/pkg/crop"
	"github.com/menta2k/photocomp/pkg/detection"
	"github.com/menta2k/photocomp/pkg/filter"
	"github.com/menta2k/photocomp/pkg/imageio"
	"github.com/menta2k/photocomp/pkg/replace"
	"github.com/menta2k/photocomp/pkg/types"
)

func runCutout(ctx context.Context, args []string) error {
	c := newCommon("cutout")
	cfg, logger, ed, err := c.setup(args, true)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	if err := loadInput(ctx, c, ed); err != nil {
		return err
	}
	if _, err := ed.Cutout(ctx); err != nil {
		return err
	}

	s := ed.ExportSettings()
	if s.Format == types.JPEG {
		s.Format = types.PNG
		if err := ed.SetExportSettings(s); err != nil {
			return err
		}
	}
	return export(ctx, logger, ed, c.output(cfg, ed, photocomp.BatchSuffix))
}

func runReplace(ctx context.Context, args []string) error {
	c := newCommon("replace")
	var (
		bgPath      string
		mode        string
		fill        string
		blendMode   string
		noShadow    bool
		relight     bool
		noRelight   bool
		scale       float64
		rotate      float64
		dx, dy      float64
		projectName string
	)
	c.fs.StringVar(&bgPath, "bg", "", "background image path or URL")
	c.fs.StringVar(&mode, "mode", "", "replace mode: color|blur|fit|fill")
	c.fs.StringVar(&fill, "color", "", "background color for color and fit modes (#rrggbb)")
	c.fs.StringVar(&blendMode, "blend", "", "blend mode: normal|multiply|screen|overlay")
	c.fs.BoolVar(&noShadow, "no-shadow", false, "do not draw a drop shadow")
	c.fs.BoolVar(&relight, "relight", false, "add a rim light to the subject")
	c.fs.BoolVar(&noRelight, "no-relight", false, "disable the configured rim light")
	c.fs.Float64Var(&scale, "subject-scale", 1, "subject scale factor")
	c.fs.Float64Var(&rotate, "rotate", 0, "subject rotation in degrees")
	c.fs.Float64Var(&dx, "dx", 0, "subject horizontal offset in pixels")
	c.fs.Float64Var(&dy, "dy", 0, "subject vertical offset in pixels")
	c.fs.StringVar(&projectName, "project", "", "save the edit as a project with this name")

	cfg, logger, ed, err := c.setup(args, true)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	p := ed.ReplaceParams()
	if mode != "" {
		if p.Mode, err = replace.ParseMode(mode); err != nil {
			return err
		}
	}
	if fill != "" {
		if p.Color, err = types.ParseHexColor(fill); err != nil {
			return fmt.Errorf("-color: %w", err)
		}
	}
	if noShadow {
		p.AddShadow = false
	}
	ed.SetReplaceParams(p)

	if blendMode != "" {
		m, err := blend.ParseMode(blendMode)
		if err != nil {
			return err
		}
		ed.SetBlendMode(m)
	}
	if relight || noRelight {
		lp, err := photocomp.RelightParamsFromConfig(cfg.Relight)
		if err != nil {
			return err
		}
		ed.SetRelightParams(lp, relight && !noRelight)
	}

	if err := loadInput(ctx, c, ed); err != nil {
		return err
	}
	if bgPath != "" {
		if err := ed.LoadBackground(ctx, bgPath); err != nil {
			return err
		}
	}
	ed.Scale(scale)
	ed.Rotate(rotate)
	ed.Translate(dx, dy)

	if _, err := ed.ReplaceBackground(ctx); err != nil {
		return err
	}
	if err := export(ctx, logger, ed, c.output(cfg, ed, cfg.Export.Suffix)); err != nil {
		return err
	}

	if projectName != "" {
		proj, err := ed.SaveProject(ctx, projectName)
		if err != nil {
			return err
		}
		fmt.Printf("project %s saved as %s\n", proj.Name, proj.ID)
	}
	return nil
}

func runFilter(ctx context.Context, args []string) error {
	c := newCommon("filter")
	kind := c.fs.String("kind", "grayscale", "filter: original|grayscale|sepia|invert")

	cfg, logger, ed, err := c.setup(args, true)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	k, err := filter.ParseKind(*kind)
	if err != nil {
		return err
	}
	if err := loadInput(ctx, c, ed); err != nil {
		return err
	}
	if _, err := ed.ApplyFilter(ctx, k); err != nil {
		return err
	}
	return export(ctx, logger, ed, c.output(cfg, ed, "_"+k.String()))
}

func runEnhance(ctx context.Context, args []string) error {
	c := newCommon("enhance")
	var a filter.Adjustments
	kind := c.fs.String("type", "", "enhancement: auto|super_resolution|face_enhance|low_light|color_correct|noise_reduction")
	c.fs.Float64Var(&a.Brightness, "brightness", 0, "brightness adjustment (-100..100)")
	c.fs.Float64Var(&a.Contrast, "contrast", 0, "contrast adjustment (-100..100)")
	c.fs.Float64Var(&a.Saturation, "saturation", 0, "saturation adjustment (-100..100)")

	cfg, logger, ed, err := c.setup(args, true)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	if *kind == "" && a.IsZero() {
		*kind = "auto"
	}
	if err := loadInput(ctx, c, ed); err != nil {
		return err
	}

	if *kind != "" {
		e, err := filter.ParseEnhancement(*kind)
		if err != nil {
			return err
		}
		res, err := ed.Enhance(ctx, e)
		if err != nil {
			return err
		}
		fmt.Printf("%s: confidence %.2f in %s\n", res.Kind, res.Confidence, res.Duration.Round(time.Millisecond))
	}
	if !a.IsZero() {
		if _, err := ed.Adjust(ctx, a); err != nil {
			return err
		}
	}
	return export(ctx, logger, ed, c.output(cfg, ed, "_enhanced"))
}

func runCrop(ctx context.Context, args []string) error {
	c := newCommon("crop")
	aspect := c.fs.String("aspect", "", "aspect ratio name or W:H (square, portrait, landscape, widescreen, instagram, story)")
	rect := c.fs.String("rect", "", "crop rectangle x0,y0,x1,y1 in pixels")
	size := c.fs.String("size", "", "crop to the ratio of WxH around the focus and scale to that size")

	cfg, logger, ed, err := c.setup(args, true)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	set := 0
	for _, v := range []string{*aspect, *rect, *size} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of -aspect, -rect and -size is required")
	}
	if err := loadInput(ctx, c, ed); err != nil {
		return err
	}

	switch {
	case *size != "":
		w, h, err := parseSize(*size)
		if err != nil {
			return fmt.Errorf("-size: %w", err)
		}
		if _, err := ed.Resize(ctx, w, h); err != nil {
			return err
		}
	case *aspect != "":
		r, err := crop.ParseAspectRatio(*aspect)
		if err != nil {
			return err
		}
		if _, err := ed.CropAspect(ctx, r); err != nil {
			return err
		}
	default:
		v, err := parseFloats(*rect, 4)
		if err != nil {
			return fmt.Errorf("-rect: %w", err)
		}
		if _, err := ed.Crop(ctx, image.Rect(int(v[0]), int(v[1]), int(v[2]), int(v[3]))); err != nil {
			return err
		}
	}
	return export(ctx, logger, ed, c.output(cfg, ed, "_crop"))
}

func runBatch(ctx context.Context, args []string) error {
	c := newCommon("batch")
	recursive := c.fs.Bool("r", false, "walk directories recursively")

	cfg, logger, ed, err := c.setup(args, false)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	sources, err := utils.ExpandSources(c.fs.Args(), *recursive)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no images given")
	}

	outDir := cfg.Export.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}

	done := make(chan struct{})
	go reportProgress(ed, logger, done)
	outputs, err := ed.Batch(ctx, sources, outDir)
	close(done)

	for _, o := range outputs {
		fmt.Println(o)
	}
	fmt.Fprintf(os.Stderr, "%d of %d images written\n", len(outputs), len(sources))
	return err
}

// reportProgress logs batch progress until done is closed
func reportProgress(ed *photocomp.Editor, logger *zap.Logger, done <-chan struct{}) {
	t := time.NewTicker(2 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if ed.Running() {
				logger.Info("batch progress", zap.Float64("progress", ed.Progress()))
			}
		}
	}
}

func runDetect(ctx context.Context, args []string) error {
	c := newCommon("detect")
	aspect := c.fs.String("aspect", "", "also show the crop for this aspect ratio around the subject")
	overlay := c.fs.Bool("overlay", false, "write a debug overlay image next to model_output.json")
	subject := c.fs.Bool("subject", false, "write the detected subject box as its own image")
	subjectSize := c.fs.String("subject-size", "", "fill the subject crop to WxH pixels")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if c.in == "" {
		c.fs.Usage()
		return fmt.Errorf("-in is required")
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	vc, err := photocomp.NewVisionClient(cfg.Segmentation)
	if err != nil {
		return err
	}
	img, err := imageio.NewLoader(imageio.WithLogger(logger)).Load(ctx, c.in)
	if err != nil {
		return err
	}
	b64, err := imageio.PrepareForModel(img, cfg.Segmentation.SendFormat, cfg.Segmentation.SendSize, cfg.Segmentation.SendQuality)
	if err != nil {
		return err
	}

	result, err := detection.NewDetector(vc, cfg.Segmentation.Model, logger).DetectSubject(ctx, b64)
	if err != nil {
		return err
	}

	b := img.Bounds()
	focus := crop.FocusFromSubject(result.Primary, b.Dx(), b.Dy())
	logger.Info("subject detected",
		zap.String("label", result.Primary.Label),
		zap.Float64("confidence", result.Primary.Confidence),
		zap.Float64("focus_x", focus.X),
		zap.Float64("focus_y", focus.Y))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	var cropRect image.Rectangle
	if *aspect != "" {
		r, err := crop.ParseAspectRatio(*aspect)
		if err != nil {
			return err
		}
		cropRect = crop.AspectRect(b.Dx(), b.Dy(), r.Ratio(), &focus)
		fmt.Printf("%s crop: %v\n", r, cropRect)
	}

	if cfg.Export.OutputDir == "" {
		return nil
	}
	if err := utils.EnsureDir(cfg.Export.OutputDir); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(cfg.Export.OutputDir, "model_output.json"), data, 0o644); err != nil {
		return err
	}

	s, err := photocomp.ExportSettingsFromConfig(cfg.Export)
	if err != nil {
		return err
	}
	if *subject {
		var sw, sh int
		if *subjectSize != "" {
			if sw, sh, err = parseSize(*subjectSize); err != nil {
				return fmt.Errorf("-subject-size: %w", err)
			}
		}
		sub, err := crop.CropBox(img, result.Primary.Box, sw, sh)
		if err != nil {
			return err
		}
		if err := save(logger, sub, utils.OutputPath(c.in, cfg.Export.OutputDir, "_subject", s.Format), s); err != nil {
			return err
		}
	}
	if *overlay {
		s.Format = types.PNG
		path := utils.OutputPath(c.in, cfg.Export.OutputDir, "_debug", s.Format)
		if err := save(logger, detection.Overlay(img, result, cropRect, focus), path, s); err != nil {
			return err
		}
	}
	return nil
}

func runProjects(ctx context.Context, args []string) error {
	c := newCommon("projects")
	_, logger, ed, err := c.setup(args, false)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	list, err := ed.Projects(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tIMAGE\tMODIFIED")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.ImageRef, p.LastModified.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// loadInput loads -in and applies -focus
func loadInput(ctx context.Context, c *common, ed *photocomp.Editor) error {
	focus, err := c.focusPoint()
	if err != nil {
		return err
	}
	if err := ed.Load(ctx, c.in); err != nil {
		return err
	}
	ed.SetFocus(focus)
	return nil
}

func export(ctx context.Context, logger *zap.Logger, ed *photocomp.Editor, path string) error {
	if err := ed.Export(ctx, path); err != nil {
		return err
	}
	written(logger, ed.Image(), path)
	return nil
}

func save(logger *zap.Logger, img image.Image, path string, s types.ExportSettings) error {
	if err := imageio.Save(img, path, s); err != nil {
		return err
	}
	written(logger, img, path)
	return nil
}

// written logs the source dimensions and the encoded size of path
func written(logger *zap.Logger, img image.Image, path string) {
	info := imageio.GetInfo(img)
	fields := []zap.Field{
		zap.String("path", path),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
	}
	if st, err := os.Stat(path); err == nil {
		fields = append(fields, zap.String("size", utils.FormatFileSize(st.Size())))
	}
	logger.Info("image written", fields...)
	fmt.Println(path)
}
