package utils

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/menta2k/photocomp/pkg/types"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an extension the loader can decode
func IsImageFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp":
		return true
	}
	return false
}

// OutputPath builds <outDir>/<base><suffix>.<ext> for a source path or URL
func OutputPath(source, outDir, suffix string, format types.Format) string {
	base := sourceBase(source)
	if base == "" {
		base = "image"
	}
	return filepath.Join(outDir, fmt.Sprintf("%s%s.%s", base, suffix, format.Ext()))
}

// sourceBase is the file name of source without its extension
func sourceBase(source string) string {
	name := filepath.Base(source)
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		name = path.Base(u.Path)
		if name == "/" || name == "." {
			return SanitizeFilename(u.Host)
		}
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return SanitizeFilename(name)
}

// ListImageFiles lists the image files in dir, sorted. Subdirectories are
// walked only when recursive is set.
func ListImageFiles(dir string, recursive bool) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if IsImageFile(p) {
			files = append(files, p)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// ExpandSources turns CLI arguments into batch sources: URLs and files are
// kept, directories are replaced by the images they contain.
func ExpandSources(args []string, recursive bool) ([]string, error) {
	var out []string
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://"):
			out = append(out, a)
		case DirExists(a):
			files, err := ListImageFiles(a, recursive)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", a, err)
			}
			out = append(out, files...)
		case FileExists(a):
			out = append(out, a)
		default:
			return nil, fmt.Errorf("no such file or directory: %s", a)
		}
	}
	return out, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing spaces and dots
	return strings.Trim(result, " .")
}

// FormatFileSize renders a byte count with a binary unit, e.g. "1.5 KB"
func FormatFileSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	v := float64(size) / 1024
	for _, unit := range []string{"KB", "MB", "GB", "TB", "PB"} {
		if v < 1024 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1f EB", v)
}
