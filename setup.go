package photocomp

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/config"
	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/pkg/blend"
	"github.com/menta2k/photocomp/pkg/blur"
	"github.com/menta2k/photocomp/pkg/cache"
	"github.com/menta2k/photocomp/pkg/client"
	"github.com/menta2k/photocomp/pkg/imageio"
	"github.com/menta2k/photocomp/pkg/llamacpp"
	"github.com/menta2k/photocomp/pkg/ollama"
	"github.com/menta2k/photocomp/pkg/project"
	"github.com/menta2k/photocomp/pkg/relight"
	"github.com/menta2k/photocomp/pkg/remover"
	"github.com/menta2k/photocomp/pkg/replace"
	"github.com/menta2k/photocomp/pkg/segment"
	"github.com/menta2k/photocomp/pkg/types"
)

// NewFromConfig wires an Editor from cfg: segmentation backend, image
// cache, blur strategy, default parameters and project store. The blur
// strategy follows cfg.Replace.AcceleratedBlur for this Editor only; the
// process-wide blur.Default is left alone.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Editor, error) {
	logger = logging.OrNop(logger)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	seg, err := NewSegmenter(cfg.Segmentation, logger)
	if err != nil {
		return nil, err
	}

	rp, err := ReplaceParamsFromConfig(cfg.Replace)
	if err != nil {
		return nil, err
	}
	lp, err := RelightParamsFromConfig(cfg.Relight)
	if err != nil {
		return nil, err
	}
	mode, err := blend.ParseMode(cfg.Blend.Mode)
	if err != nil {
		return nil, err
	}
	export, err := ExportSettingsFromConfig(cfg.Export)
	if err != nil {
		return nil, err
	}

	strategy := blur.For(cfg.Replace.AcceleratedBlur)
	logger.Debug("blur strategy selected", zap.String("strategy", strategy.Name()))

	images := cache.NewImageCache(cfg.Cache.MaxBytes)
	images.OnEvict(func(ref string, img image.Image) {
		logger.Debug("image evicted from cache",
			zap.String("ref", ref),
			zap.Int64("bytes", cache.ImageBytes(img)))
	})
	loader := imageio.NewLoader(
		imageio.WithCache(images),
		imageio.WithLogger(logger),
	)

	var store project.Store = project.NewMemoryStore()
	if cfg.Redis.Enabled {
		store = project.NewRedisStore(cfg.Redis, logger)
	}

	return New(
		remover.New(seg,
			remover.WithFeatherRadius(cfg.Remover.FeatherRadius),
			remover.WithLogger(logger)),
		WithLoader(loader),
		WithReplaceEngine(replace.New(replace.WithBlur(strategy), replace.WithLogger(logger))),
		WithRelightEngine(relight.New(logger)),
		WithStore(store),
		WithLogger(logger),
		WithReplaceParams(rp),
		WithRelightParams(lp, cfg.Relight.Enabled),
		WithBlendMode(mode),
		WithExportSettings(export),
	), nil
}

// NewSegmenter builds the configured segmentation backend
func NewSegmenter(cfg config.SegmentationConfig, logger *zap.Logger) (segment.Segmenter, error) {
	if cfg.Backend == "heuristic" {
		h := segment.NewHeuristic()
		if cfg.MaskLongSide > 0 {
			h.LongSide = cfg.MaskLongSide
		}
		return h, nil
	}

	vc, err := NewVisionClient(cfg)
	if err != nil {
		return nil, err
	}

	vcfg := segment.DefaultVisionConfig()
	vcfg.Model = cfg.Model
	vcfg.SendFormat = cfg.SendFormat
	vcfg.SendSize = cfg.SendSize
	vcfg.SendQuality = cfg.SendQuality
	vcfg.MaskLongSide = cfg.MaskLongSide
	return segment.NewVision(vc, vcfg, logger), nil
}

// NewVisionClient connects to the vision server of a model backend
func NewVisionClient(cfg config.SegmentationConfig) (client.VisionClient, error) {
	var (
		vc  client.VisionClient
		err error
	)
	switch cfg.Backend {
	case "ollama":
		vc, err = ollama.NewClient(cfg.URL, nil)
	case "llamacpp":
		vc, err = llamacpp.NewClient(cfg.URL, nil)
	default:
		return nil, fmt.Errorf("backend %q has no vision client", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s client: %w", cfg.Backend, err)
	}
	return vc, nil
}

// ReplaceParamsFromConfig converts the replace config section
func ReplaceParamsFromConfig(cfg config.ReplaceConfig) (replace.Params, error) {
	p := replace.DefaultParams()
	mode, err := replace.ParseMode(cfg.Mode)
	if err != nil {
		return p, err
	}
	c, err := types.ParseHexColor(cfg.Color)
	if err != nil {
		return p, fmt.Errorf("replace.color: %w", err)
	}

	p.Mode = mode
	p.Color = c
	p.FeatherRadius = cfg.FeatherRadius
	p.AddShadow = cfg.AddShadow
	p.ShadowOpacity = cfg.ShadowOpacity
	p.ShadowSizePx = float64(cfg.ShadowSizePx)
	p.ShadowOffsetYPx = float64(cfg.ShadowOffsetYPx)
	return p, nil
}

// RelightParamsFromConfig converts the relight config section
func RelightParamsFromConfig(cfg config.RelightConfig) (relight.Params, error) {
	c, err := types.ParseHexColor(cfg.Color)
	if err != nil {
		return relight.Params{}, fmt.Errorf("relight.color: %w", err)
	}
	return relight.Params{
		Intensity:    cfg.Intensity,
		RadiusPx:     cfg.RadiusPx,
		Color:        c,
		DirectionDeg: cfg.DirectionDeg,
	}, nil
}

// ExportSettingsFromConfig converts the export config section
func ExportSettingsFromConfig(cfg config.ExportConfig) (types.ExportSettings, error) {
	f, err := types.ParseFormat(cfg.Format)
	if err != nil {
		return types.ExportSettings{}, err
	}
	s := types.ExportSettings{
		Format:     f,
		Quality:    cfg.Quality,
		Scale:      cfg.Scale,
		UseUpscale: cfg.UseUpscale,
	}
	return s, s.Validate()
}
