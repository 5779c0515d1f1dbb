package types

import (
	"fmt"
	"strings"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Point is a position in source image pixel coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Format is an export encoding
type Format int

const (
	JPEG Format = iota
	PNG
	WEBP
)

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case WEBP:
		return "webp"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext returns the file extension used for the format, without the dot
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return f.String()
}

// ParseFormat accepts jpg, jpeg, png and webp in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WEBP, nil
	}
	return JPEG, fmt.Errorf("unsupported export format: %q", s)
}

// ExportSettings controls how a result is encoded on export
type ExportSettings struct {
	Format     Format  `json:"format"`
	Quality    int     `json:"quality"`
	Scale      float64 `json:"scale"`
	UseUpscale bool    `json:"use_upscale"`
}

// DefaultExportSettings mirrors the export sheet defaults
func DefaultExportSettings() ExportSettings {
	return ExportSettings{
		Format:  JPEG,
		Quality: 90,
		Scale:   1.0,
	}
}

// Validate checks the ranges the export surface allows
func (s ExportSettings) Validate() error {
	if s.Format < JPEG || s.Format > WEBP {
		return fmt.Errorf("export format %v is not supported", s.Format)
	}
	if s.Quality < 50 || s.Quality > 100 {
		return fmt.Errorf("export quality must be between 50 and 100, got %d", s.Quality)
	}
	if s.Scale < 0.5 || s.Scale > 2.0 {
		return fmt.Errorf("export scale must be between 0.5 and 2.0, got %.2f", s.Scale)
	}
	return nil
}
