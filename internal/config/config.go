package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// MaxRadius bounds every blur and feather radius in pixels
const MaxRadius = 1024

// Config holds the application configuration
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Segmentation SegmentationConfig `mapstructure:"segmentation"`
	Remover      RemoverConfig      `mapstructure:"remover"`
	Replace      ReplaceConfig      `mapstructure:"replace"`
	Relight      RelightConfig      `mapstructure:"relight"`
	Blend        BlendConfig        `mapstructure:"blend"`
	Export       ExportConfig       `mapstructure:"export"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Redis        RedisConfig        `mapstructure:"redis"`
}

// LogConfig selects the zap encoder
type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// SegmentationConfig selects and tunes the segmentation provider
type SegmentationConfig struct {
	Backend      string `mapstructure:"backend"`
	URL          string `mapstructure:"url"`
	Model        string `mapstructure:"model"`
	SendFormat   string `mapstructure:"send_format"`
	SendSize     int    `mapstructure:"send_size"`
	SendQuality  int    `mapstructure:"send_quality"`
	MaskLongSide int    `mapstructure:"mask_long_side"`
}

// RemoverConfig holds background remover settings
type RemoverConfig struct {
	FeatherRadius int `mapstructure:"feather_radius"`
}

// ReplaceConfig holds background replacement defaults
type ReplaceConfig struct {
	Mode            string  `mapstructure:"mode"`
	Color           string  `mapstructure:"color"`
	FeatherRadius   int     `mapstructure:"feather_radius"`
	AddShadow       bool    `mapstructure:"add_shadow"`
	ShadowOpacity   float64 `mapstructure:"shadow_opacity"`
	ShadowSizePx    int     `mapstructure:"shadow_size_px"`
	ShadowOffsetYPx int     `mapstructure:"shadow_offset_y_px"`
	AcceleratedBlur bool    `mapstructure:"accelerated_blur"`
}

// RelightConfig holds rim light defaults
type RelightConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Intensity    float64 `mapstructure:"intensity"`
	RadiusPx     int     `mapstructure:"radius_px"`
	Color        string  `mapstructure:"color"`
	DirectionDeg float64 `mapstructure:"direction_deg"`
}

// BlendConfig holds the final compositing mode
type BlendConfig struct {
	Mode string `mapstructure:"mode"`
}

// ExportConfig holds output encoding defaults
type ExportConfig struct {
	Format     string  `mapstructure:"format"`
	Quality    int     `mapstructure:"quality"`
	Scale      float64 `mapstructure:"scale"`
	UseUpscale bool    `mapstructure:"use_upscale"`
	OutputDir  string  `mapstructure:"output_dir"`
	Suffix     string  `mapstructure:"suffix"`
}

// CacheConfig bounds the decoded image cache
type CacheConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// RedisConfig configures the optional project store
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Log: LogConfig{Mode: "debug"},
		Segmentation: SegmentationConfig{
			Backend:      "heuristic",
			URL:          "",
			Model:        "openbmb/minicpm-v4.5",
			SendFormat:   "jpg",
			SendSize:     1024,
			SendQuality:  85,
			MaskLongSide: 256,
		},
		Remover: RemoverConfig{FeatherRadius: 6},
		Replace: ReplaceConfig{
			Mode:            "auto_blur",
			Color:           "#ffffff",
			FeatherRadius:   6,
			AddShadow:       true,
			ShadowOpacity:   0.22,
			ShadowSizePx:    24,
			ShadowOffsetYPx: 12,
			AcceleratedBlur: true,
		},
		Relight: RelightConfig{
			Enabled:      true,
			Intensity:    0.35,
			RadiusPx:     16,
			Color:        "#ffffff",
			DirectionDeg: 30,
		},
		Blend: BlendConfig{Mode: "normal"},
		Export: ExportConfig{
			Format:    "jpg",
			Quality:   90,
			Scale:     1.0,
			OutputDir: "./output",
			Suffix:    "_edited",
		},
		Cache: CacheConfig{MaxBytes: 100 * 1024 * 1024},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "photocomp",
		},
	}
}

// settings flattens c into dotted viper keys
func (c *Config) settings() map[string]any {
	return map[string]any{
		"log.mode": c.Log.Mode,

		"segmentation.backend":        c.Segmentation.Backend,
		"segmentation.url":            c.Segmentation.URL,
		"segmentation.model":          c.Segmentation.Model,
		"segmentation.send_format":    c.Segmentation.SendFormat,
		"segmentation.send_size":      c.Segmentation.SendSize,
		"segmentation.send_quality":   c.Segmentation.SendQuality,
		"segmentation.mask_long_side": c.Segmentation.MaskLongSide,

		"remover.feather_radius": c.Remover.FeatherRadius,

		"replace.mode":               c.Replace.Mode,
		"replace.color":              c.Replace.Color,
		"replace.feather_radius":     c.Replace.FeatherRadius,
		"replace.add_shadow":         c.Replace.AddShadow,
		"replace.shadow_opacity":     c.Replace.ShadowOpacity,
		"replace.shadow_size_px":     c.Replace.ShadowSizePx,
		"replace.shadow_offset_y_px": c.Replace.ShadowOffsetYPx,
		"replace.accelerated_blur":   c.Replace.AcceleratedBlur,

		"relight.enabled":       c.Relight.Enabled,
		"relight.intensity":     c.Relight.Intensity,
		"relight.radius_px":     c.Relight.RadiusPx,
		"relight.color":         c.Relight.Color,
		"relight.direction_deg": c.Relight.DirectionDeg,

		"blend.mode": c.Blend.Mode,

		"export.format":      c.Export.Format,
		"export.quality":     c.Export.Quality,
		"export.scale":       c.Export.Scale,
		"export.use_upscale": c.Export.UseUpscale,
		"export.output_dir":  c.Export.OutputDir,
		"export.suffix":      c.Export.Suffix,

		"cache.max_bytes": c.Cache.MaxBytes,

		"redis.enabled":  c.Redis.Enabled,
		"redis.addr":     c.Redis.Addr,
		"redis.password": c.Redis.Password,
		"redis.db":       c.Redis.DB,
		"redis.prefix":   c.Redis.Prefix,
	}
}

// setDefaults registers every default so env overrides work for keys
// missing from the file.
func setDefaults(v *viper.Viper) {
	for k, val := range Default().settings() {
		v.SetDefault(k, val)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PHOTOCOMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from environment variables only
func Load() (*Config, error) {
	return unmarshal(newViper())
}

// LoadFromFile loads configuration from a YAML or JSON file. Values not
// present in the file fall back to defaults; PHOTOCOMP_* env vars win.
func LoadFromFile(filename string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filename)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// SaveToFile saves configuration to a file; the extension picks the format
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	for k, val := range c.settings() {
		v.Set(k, val)
	}

	if err := v.WriteConfigAs(filename); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Segmentation.Backend {
	case "heuristic", "ollama", "llamacpp":
	default:
		return fmt.Errorf("segmentation.backend must be one of heuristic, ollama, llamacpp")
	}

	if c.Segmentation.SendQuality < 1 || c.Segmentation.SendQuality > 100 {
		return fmt.Errorf("segmentation.send_quality must be between 1 and 100")
	}

	if c.Segmentation.MaskLongSide < 16 {
		return fmt.Errorf("segmentation.mask_long_side must be at least 16")
	}

	for _, r := range []struct {
		key string
		v   int
	}{
		{"remover.feather_radius", c.Remover.FeatherRadius},
		{"replace.feather_radius", c.Replace.FeatherRadius},
		{"replace.shadow_size_px", c.Replace.ShadowSizePx},
		{"relight.radius_px", c.Relight.RadiusPx},
	} {
		if r.v < 0 || r.v > MaxRadius {
			return fmt.Errorf("%s must be between 0 and %d", r.key, MaxRadius)
		}
	}

	if c.Replace.ShadowOpacity < 0 || c.Replace.ShadowOpacity > 1 {
		return fmt.Errorf("replace.shadow_opacity must be between 0 and 1")
	}

	if c.Relight.Intensity < 0 || c.Relight.Intensity > 1 {
		return fmt.Errorf("relight.intensity must be between 0 and 1")
	}

	if c.Export.Quality < 50 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 50 and 100")
	}

	if c.Export.Scale < 0.5 || c.Export.Scale > 2.0 {
		return fmt.Errorf("export.scale must be between 0.5 and 2.0")
	}

	if c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache.max_bytes must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "photocomp", "config.yaml")
}
