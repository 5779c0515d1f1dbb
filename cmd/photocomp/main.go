package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/menta2k/photocomp"
	"github.com/menta2k/photocomp/internal/config"
	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/internal/utils"
	"github.com/menta2k/photocomp/pkg/types"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"cutout", "cut the subject out of -in", runCutout},
	{"replace", "replace the background of -in", runReplace},
	{"filter", "apply a color filter to -in", runFilter},
	{"enhance", "run an enhancement or manual adjustment on -in", runEnhance},
	{"crop", "crop -in to an aspect ratio or rectangle", runCrop},
	{"batch", "cut out every image given as argument", runBatch},
	{"detect", "ask the vision model for the subject of -in", runDetect},
	{"projects", "list saved projects", runProjects},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <command> [flags]\n\ncommands:\n", filepath.Base(os.Args[0]))
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nrun '%s <command> -h' for the flags of a command\n", filepath.Base(os.Args[0]))
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := os.Args[1]
	for _, c := range commands {
		if c.name == name {
			if err := c.run(ctx, os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
				os.Exit(1)
			}
			return
		}
	}
	if name != "-h" && name != "--help" && name != "help" {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	}
	usage()
	os.Exit(2)
}

// common holds the flags every command accepts. Zero values leave the
// configuration untouched.
type common struct {
	fs *flag.FlagSet

	configPath string
	in         string
	outDir     string
	ext        string
	quality    int
	scale      float64
	upscale    bool
	backend    string
	url        string
	model      string
	logMode    string
	focus      string
}

func newCommon(name string) *common {
	c := &common{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	c.fs.StringVar(&c.configPath, "config", "", "config file (default "+config.GetConfigPath()+" when present)")
	c.fs.StringVar(&c.in, "in", "", "input image path or URL (jpg/png/webp)")
	c.fs.StringVar(&c.outDir, "out", "", "output directory")
	c.fs.StringVar(&c.ext, "ext", "", "output format: jpg|png|webp")
	c.fs.IntVar(&c.quality, "quality", 0, "output quality (50-100)")
	c.fs.Float64Var(&c.scale, "scale", 0, "output scale (0.5-2.0)")
	c.fs.BoolVar(&c.upscale, "upscale", false, "double the resolution before export")
	c.fs.StringVar(&c.backend, "backend", "", "segmentation backend: heuristic|ollama|llamacpp")
	c.fs.StringVar(&c.url, "url", "", "vision server URL")
	c.fs.StringVar(&c.model, "model", "", "vision model name")
	c.fs.StringVar(&c.logMode, "log", "", "log mode: debug|release")
	c.fs.StringVar(&c.focus, "focus", "", "focus point x,y in image pixels")
	return c
}

// loadConfig reads the config file and applies flag overrides
func (c *common) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case c.configPath != "":
		cfg, err = config.LoadFromFile(c.configPath)
	case utils.FileExists(config.GetConfigPath()):
		cfg, err = config.LoadFromFile(config.GetConfigPath())
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if c.outDir != "" {
		cfg.Export.OutputDir = c.outDir
	}
	if c.ext != "" {
		cfg.Export.Format = c.ext
	}
	if c.quality != 0 {
		cfg.Export.Quality = c.quality
	}
	if c.scale != 0 {
		cfg.Export.Scale = c.scale
	}
	if c.upscale {
		cfg.Export.UseUpscale = true
	}
	if c.backend != "" {
		cfg.Segmentation.Backend = c.backend
	}
	if c.url != "" {
		cfg.Segmentation.URL = c.url
	}
	if c.model != "" {
		cfg.Segmentation.Model = c.model
	}
	if c.logMode != "" {
		cfg.Log.Mode = c.logMode
	}
	return cfg, cfg.Validate()
}

// setup parses args and builds the configured editor
func (c *common) setup(args []string, needInput bool) (*config.Config, *zap.Logger, *photocomp.Editor, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	if needInput && c.in == "" {
		c.fs.Usage()
		return nil, nil, nil, fmt.Errorf("-in is required")
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, nil, err
	}
	ed, err := photocomp.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, ed, nil
}

// focusPoint parses -focus
func (c *common) focusPoint() (*types.Point, error) {
	if c.focus == "" {
		return nil, nil
	}
	v, err := parseFloats(c.focus, 2)
	if err != nil {
		return nil, fmt.Errorf("-focus: %w", err)
	}
	return &types.Point{X: v[0], Y: v[1]}, nil
}

// output is the export path for the loaded input
func (c *common) output(cfg *config.Config, ed *photocomp.Editor, suffix string) string {
	return utils.OutputPath(c.in, cfg.Export.OutputDir, suffix, ed.ExportSettings().Format)
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// parseSize parses "WxH" with positive integers
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("want WxH, got %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid width %q", ws)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid height %q", hs)
	}
	return w, h, nil
}
