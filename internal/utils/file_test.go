package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/photocomp/pkg/types"
)

func touch(t *testing.T, p string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a/b/photo.JPG"))
	assert.True(t, IsImageFile("x.webp"))
	assert.False(t, IsImageFile("notes.txt"))
	assert.False(t, IsImageFile("noext"))
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		source string
		format types.Format
		want   string
	}{
		{"/photos/beach.png", types.JPEG, filepath.Join("out", "beach_edited.jpg")},
		{"relative/me.jpeg", types.PNG, filepath.Join("out", "me_edited.png")},
		{"https://example.com/img/cat.webp?size=large", types.WEBP, filepath.Join("out", "cat_edited.webp")},
		{"https://example.com/", types.JPEG, filepath.Join("out", "example.com_edited.jpg")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputPath(tt.source, "out", "_edited", tt.format), tt.source)
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.png"))
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "readme.md"))
	touch(t, filepath.Join(dir, "nested", "c.webp"))

	files, err := ListImageFiles(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, files)

	files, err = ListImageFiles(dir, true)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestExpandSources(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "single.jpg")
	touch(t, single)
	touch(t, filepath.Join(dir, "set", "one.png"))
	touch(t, filepath.Join(dir, "set", "two.png"))

	got, err := ExpandSources([]string{single, filepath.Join(dir, "set"), "https://example.com/x.jpg"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		single,
		filepath.Join(dir, "set", "one.png"),
		filepath.Join(dir, "set", "two.png"),
		"https://example.com/x.jpg",
	}, got)

	_, err = ExpandSources([]string{filepath.Join(dir, "missing.jpg")}, false)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeFilename(" a/b:c. "))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", FormatFileSize(2*1024*1024))
	assert.Equal(t, "3.0 GB", FormatFileSize(3<<30))
}
