package infrastructure

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/smart-extract-go/internal/domain"
)

// countingFs records directory opens so tests can assert no scan happened
type countingFs struct {
	afero.Fs
	opens int
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.opens++
	return c.Fs.Open(name)
}

func writeFileAt(t *testing.T, fs afero.Fs, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte("media"), 0644))
	require.NoError(t, fs.Chtimes(path, modTime, modTime))
}

func TestResolveOutput_ExactMatchSkipsScan(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	writeFileAt(t, fs, "/work/video.mp4", time.Now())
	writeFileAt(t, fs, "/work/video.mkv", time.Now().Add(time.Minute))

	path, err := ResolveOutput(fs, "/work/video.mp4")

	require.NoError(t, err)
	assert.Equal(t, "/work/video.mp4", path)
	assert.Zero(t, fs.opens)
}

func TestResolveOutput_ExtensionChangedByMuxer(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFileAt(t, fs, "/work/video.mkv", time.Now())

	path, err := ResolveOutput(fs, "/work/video.mp4")

	require.NoError(t, err)
	assert.Equal(t, "/work/video.mkv", path)
}

func TestResolveOutput_PicksNewest(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFileAt(t, fs, "/work/video.webm", base)
	writeFileAt(t, fs, "/work/video.mkv", base.Add(2*time.Second))
	writeFileAt(t, fs, "/work/video.m4a", base.Add(time.Second))

	path, err := ResolveOutput(fs, "/work/video.mp4")

	require.NoError(t, err)
	assert.Equal(t, "/work/video.mkv", path)
}

func TestResolveOutput_TieBrokenByName(t *testing.T) {
	fs := afero.NewMemMapFs()
	same := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFileAt(t, fs, "/work/video.mkv", same)
	writeFileAt(t, fs, "/work/video.webm", same)

	path, err := ResolveOutput(fs, "/work/video.mp4")

	require.NoError(t, err)
	assert.Equal(t, "/work/video.webm", path)
}

func TestResolveOutput_IgnoresUnrelatedAndInFlight(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Now()
	writeFileAt(t, fs, "/work/video.mkv", now)
	writeFileAt(t, fs, "/work/video.mkv.part", now.Add(time.Minute))
	writeFileAt(t, fs, "/work/video.f137.mp4.ytdl", now.Add(time.Minute))
	writeFileAt(t, fs, "/work/video2.mkv", now.Add(time.Hour))
	writeFileAt(t, fs, "/work/other.mp4", now.Add(time.Hour))
	require.NoError(t, fs.MkdirAll("/work/video.dir", 0755))

	path, err := ResolveOutput(fs, "/work/video.mp4")

	require.NoError(t, err)
	assert.Equal(t, "/work/video.mkv", path)
}

func TestResolveOutput_NotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFileAt(t, fs, "/work/other.mp4", time.Now())

	_, err := ResolveOutput(fs, "/work/video.mp4")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOutputNotFound))
	assert.Equal(t, "output file not found after download", err.Error())
}

func TestResolveOutput_MissingDirectory(t *testing.T) {
	_, err := ResolveOutput(afero.NewMemMapFs(), "/nowhere/video.mp4")
	assert.True(t, errors.Is(err, domain.ErrOutputNotFound))
}

func TestResolveOutput_OnDisk(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	require.NoError(t, os.WriteFile(dir+"/clip.webm", []byte("x"), 0644))

	path, err := ResolveOutput(fs, dir+"/clip.mp4")

	require.NoError(t, err)
	assert.Equal(t, dir+"/clip.webm", path)
}
