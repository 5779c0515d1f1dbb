// Package detection asks a vision model where the foreground subject is.
package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/pkg/client"
	"github.com/menta2k/photocomp/pkg/types"
)

// SimpleTestPrompt checks that the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// SubjectPrompt asks for a tight box around the foreground subject
const SubjectPrompt = `You are a foreground subject locator for a background removal tool.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (<= 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box must TIGHTLY enclose the whole foreground subject (person, animal, product, vehicle), including hair, limbs and held objects.
- cx, cy is the visual center of mass of the subject, inside the box.
- If no clear foreground subject exists, return label "none" with the box {"x":0.2,"y":0.1,"w":0.6,"h":0.8}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// FallbackBox is used when the model gives no usable box
var FallbackBox = types.Box{X: 0.2, Y: 0.1, W: 0.6, H: 0.8}

// Detector locates subjects through a vision client
type Detector struct {
	client client.VisionClient
	model  string
	logger *zap.Logger
}

// NewDetector creates a detector for model on c
func NewDetector(c client.VisionClient, model string, logger *zap.Logger) *Detector {
	return &Detector{client: c, model: model, logger: logging.OrNop(logger)}
}

// DetectSubject returns the primary subject of a base64 encoded image.
// Replies that cannot be parsed yield a low-confidence fallback result.
func (d *Detector) DetectSubject(ctx context.Context, imageB64 string) (*types.AnalysisResult, error) {
	return d.DetectSubjectWithPrompt(ctx, imageB64, SubjectPrompt)
}

// DetectSubjectWithPrompt is DetectSubject with a custom prompt
func (d *Detector) DetectSubjectWithPrompt(ctx context.Context, imageB64, prompt string) (*types.AnalysisResult, error) {
	raw, err := d.client.Query(ctx, client.Request{
		Model:    d.model,
		Prompt:   prompt,
		ImageB64: imageB64,
		JSON:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", d.client.Name(), err)
	}

	result, ok := ParseAnalysisResult(raw)
	if !ok {
		d.logger.Warn("vision model reply was not usable JSON",
			zap.String("backend", d.client.Name()),
			zap.String("model", d.model),
			zap.Int("reply_len", len(raw)))
	}
	return validate(result), nil
}

// TestVision checks that the model can see the image
func (d *Detector) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return d.client.Query(ctx, client.Request{Model: d.model, Prompt: SimpleTestPrompt, ImageB64: imageB64})
}

// validate clamps the box into the image and keeps the center inside it
func validate(r *types.AnalysisResult) *types.AnalysisResult {
	r.Primary.Box = normalizeBox(r.Primary.Box)
	r.Primary.Confidence = clamp(r.Primary.Confidence, 0, 1)
	r.Tags = normalizeTags(r.Tags)

	b := r.Primary.Box
	if b.W <= 0.01 || b.H <= 0.01 {
		r.Primary.Box = FallbackBox
		r.Primary.Confidence = 0
		b = FallbackBox
	}
	if r.Primary.Cx < b.X || r.Primary.Cx > b.X+b.W {
		r.Primary.Cx = b.X + b.W/2
	}
	if r.Primary.Cy < b.Y || r.Primary.Cy > b.Y+b.H {
		r.Primary.Cy = b.Y + b.H/2
	}
	return r
}

// IsNone reports whether the model found no subject
func IsNone(r *types.AnalysisResult) bool {
	return strings.EqualFold(r.Primary.Label, "none") || r.Primary.Confidence == 0
}

// ParseAnalysisResult parses a model reply. When the reply holds no valid
// JSON object it returns a fallback result and false.
func ParseAnalysisResult(raw string) (*types.AnalysisResult, bool) {
	clean := sanitizeModelJSON(raw)

	var result types.AnalysisResult
	if strings.HasPrefix(clean, "{") {
		if err := json.Unmarshal([]byte(clean), &result); err == nil {
			return &result, true
		}
	}

	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      "none",
			Confidence: 0,
			Box:        FallbackBox,
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: "model returned no usable JSON",
		Tags:        []string{"fallback"},
	}, false
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments and trailing commas and
// keeps the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox clamps a normalized box so it lies inside [0,1]^2
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags lowercases, dedups and limits tags to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
