// Package imageio loads images from files or URLs and encodes results in
// JPEG, PNG or WEBP.
package imageio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/photocomp/internal/logging"
	"github.com/menta2k/photocomp/pkg/cache"
	"github.com/menta2k/photocomp/pkg/types"
)

var (
	// ErrLoad wraps every failure to read or decode a source image
	ErrLoad = errors.New("load image")
	// ErrSave wraps every failure to encode or write a result
	ErrSave = errors.New("save image")
)

// Loader reads images by reference and memoizes decoded results
type Loader struct {
	httpClient *http.Client
	cache      *cache.LRU[string, image.Image]
	logger     *zap.Logger
	userAgent  string
}

// Option configures a Loader
type Option func(*Loader)

// WithCache sets the decoded image cache; nil disables caching
func WithCache(c *cache.LRU[string, image.Image]) Option {
	return func(l *Loader) { l.cache = c }
}

// WithHTTPClient overrides the client used for URL references
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logging.OrNop(logger) }
}

// NewLoader creates a loader with a 30s HTTP timeout and no cache
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
		userAgent:  "photocomp/1.0",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cache returns the loader's image cache, which may be nil
func (l *Loader) Cache() *cache.LRU[string, image.Image] {
	return l.cache
}

// Load resolves ref as an http(s) URL or a file path. Decoded images are
// cached by ref.
func (l *Loader) Load(ctx context.Context, ref string) (image.Image, error) {
	if l.cache != nil {
		if img, ok := l.cache.Get(ref); ok {
			l.logger.Debug("image cache hit", zap.String("ref", ref))
			return img, nil
		}
	}

	var (
		img image.Image
		err error
	)
	if IsURL(ref) {
		img, err = l.loadURL(ctx, ref)
	} else {
		img, err = loadFile(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrLoad, ref, err)
	}

	if l.cache != nil && !l.cache.Put(ref, img) {
		l.logger.Debug("image too large to cache", zap.String("ref", ref))
	}
	return img, nil
}

// IsURL reports whether ref names an http or https resource
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (l *Loader) loadURL(ctx context.Context, ref string) (image.Image, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	start := time.Now()
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %v", err)
	}
	l.logger.Debug("image downloaded",
		zap.String("url", ref),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))

	return Decode(bytes.NewReader(data))
}

func loadFile(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data))
}

// Decode decodes JPEG, PNG or WEBP data, trying the registered decoders
// first and libwebp second.
func Decode(r io.ReadSeeker) (image.Image, error) {
	if img, _, err := image.Decode(r); err == nil {
		return img, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if img, err := webp.Decode(r); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("unknown or unsupported image format")
}

// Encode writes img to w using the export settings. The image is resampled
// by s.Scale first when it differs from 1.
func Encode(w io.Writer, img image.Image, s types.ExportSettings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}

	img = ApplyScale(img, s.Scale)

	var err error
	switch s.Format {
	case types.PNG:
		err = png.Encode(w, img)
	case types.WEBP:
		err = webp.Encode(w, img, &webp.Options{Lossless: s.Quality == 100, Quality: float32(s.Quality)})
	default:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(s.Quality))
	}
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrSave, s.Format, err)
	}
	return nil
}

// Save encodes img to path, creating the parent directory when needed
func Save(img image.Image, path string, s types.ExportSettings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}

	if err := Encode(f, img, s); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}

// ApplyScale resizes img by factor with Lanczos. A factor of 1 or less than
// or equal to zero returns img unchanged.
func ApplyScale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// PrepareForModel downsizes img so its long side is at most maxDim and
// returns it base64 encoded as JPEG or PNG.
func PrepareForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Info describes an image without its pixels
type Info struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// GetInfo returns the dimensions of img
func GetInfo(img image.Image) Info {
	b := img.Bounds()
	info := Info{Width: b.Dx(), Height: b.Dy()}
	if b.Dy() > 0 {
		info.AspectRatio = float64(b.Dx()) / float64(b.Dy())
	}
	return info
}

// Validate rejects nil or empty images and ones beyond 50 megapixels
func Validate(img image.Image) error {
	if img == nil {
		return fmt.Errorf("image is nil")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("image has invalid dimensions: %dx%d", b.Dx(), b.Dy())
	}
	if int64(b.Dx())*int64(b.Dy()) > 50_000_000 {
		return fmt.Errorf("image is too large: %dx%d", b.Dx(), b.Dy())
	}
	return nil
}
