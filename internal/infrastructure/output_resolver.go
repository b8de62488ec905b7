package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/yourusername/smart-extract-go/internal/domain"
)

// Suffixes yt-dlp uses for files that are still being written
var inFlightSuffixes = []string{".part", ".ytdl"}

// ResolveOutput locates the file the extractor actually produced.
// The predicted path is returned as-is when it exists. Otherwise the
// directory is scanned for "<base>.<ext>" siblings, since muxing may have
// changed the extension, and the newest one wins.
func ResolveOutput(fs afero.Fs, predicted string) (string, error) {
	if info, err := fs.Stat(predicted); err == nil && !info.IsDir() {
		return predicted, nil
	}

	dir := filepath.Dir(predicted)
	base := strings.TrimSuffix(filepath.Base(predicted), filepath.Ext(predicted))
	prefix := base + "."

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrOutputNotFound
		}
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}

	candidates := lo.Filter(entries, func(info os.FileInfo, _ int) bool {
		name := info.Name()
		if info.IsDir() || !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
			return false
		}
		for _, suffix := range inFlightSuffixes {
			if strings.HasSuffix(name, suffix) {
				return false
			}
		}
		return true
	})
	if len(candidates) == 0 {
		return "", domain.ErrOutputNotFound
	}

	newest := lo.MaxBy(candidates, func(a, b os.FileInfo) bool {
		if a.ModTime().Equal(b.ModTime()) {
			return a.Name() > b.Name()
		}
		return a.ModTime().After(b.ModTime())
	})
	return filepath.Join(dir, newest.Name()), nil
}
