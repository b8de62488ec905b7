package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/goware/urlx"
	"github.com/spf13/afero"
	"github.com/yourusername/smart-extract-go/internal/domain"
	"github.com/yourusername/smart-extract-go/internal/infrastructure"
	"go.uber.org/zap"
)

const (
	outputPrefix       = "smart_video_"
	cookieFilePattern  = "temp_cookies_*.txt"
	extensionTemplate  = ".%(ext)s"
	progressStatusForm = "downloading: %s | speed: %s"
)

// SmartDownloader turns a download request into a single extractor call and
// locates the file it produced
type SmartDownloader struct {
	extractor domain.Extractor
	fs        afero.Fs
	workDir   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewSmartDownloader creates a new smart downloader writing into workDir
func NewSmartDownloader(extractor domain.Extractor, fs afero.Fs, workDir string, logger *zap.Logger) *SmartDownloader {
	return &SmartDownloader{
		extractor: extractor,
		fs:        fs,
		workDir:   workDir,
		logger:    logger,
		now:       time.Now,
	}
}

// WorkDir returns the directory outputs are written to
func (s *SmartDownloader) WorkDir() string {
	return s.workDir
}

// EnsureWorkDir creates the work directory if needed
func (s *SmartDownloader) EnsureWorkDir() error {
	return s.fs.MkdirAll(s.workDir, 0755)
}

// OpenOutput opens a produced file by its base name. Names that could
// escape the work directory or refer to staged credentials are rejected.
func (s *SmartDownloader) OpenOutput(name string) (afero.File, os.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || !strings.HasPrefix(name, outputPrefix) {
		return nil, nil, fmt.Errorf("%w: bad file name %q", domain.ErrInvalidInput, name)
	}

	path := filepath.Join(s.workDir, name)
	info, err := s.fs.Stat(path)
	if err != nil || info.IsDir() {
		return nil, nil, domain.ErrOutputNotFound
	}

	file, err := s.fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return file, info, nil
}

// NewOutputTemplate returns a per-invocation output template inside dir
func NewOutputTemplate(dir string, now time.Time) string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	name := fmt.Sprintf("%s%d_%s%s", outputPrefix, now.Unix(), token, extensionTemplate)
	return filepath.Join(dir, name)
}

// BuildExtractionConfig maps a request and the muxing capability onto the
// extractor configuration. It has no side effects.
func BuildExtractionConfig(req domain.DownloadRequest, capability domain.Capability, outputTemplate string) domain.ExtractionConfig {
	config := domain.ExtractionConfig{
		Format:              capability.FormatSelector(),
		OutputTemplate:      outputTemplate,
		ConcurrentFragments: req.Speed.FragmentCount(),
		CookieFile:          req.CookieFile,
		NoCheckCertificate:  true,
	}
	if capability.Available {
		config.MergeOutputFormat = req.Merge.Container()
	}
	return config
}

// ValidateURL rejects empty and unparsable URLs
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}
	u, err := urlx.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url has no host: %s", domain.ErrInvalidInput, raw)
	}
	return raw, nil
}

// Download runs one request to completion. Every failure is reported in the
// returned Outcome; nothing is retried.
func (s *SmartDownloader) Download(ctx context.Context, req domain.DownloadRequest, capability domain.Capability, status domain.StatusReporter) domain.Outcome {
	req = req.Normalize(capability)

	url, err := ValidateURL(req.URL)
	if err != nil {
		return domain.Failure(err)
	}

	if err := s.EnsureWorkDir(); err != nil {
		return domain.Failure(fmt.Errorf("failed to create work directory: %w", err))
	}

	if req.Cookies != nil {
		cookieFile, err := s.stageCookies(req.Cookies)
		if err != nil {
			return domain.Failure(err)
		}
		defer s.removeCookies(cookieFile)
		req.CookieFile = cookieFile
	}

	config := BuildExtractionConfig(req, capability, NewOutputTemplate(s.workDir, s.now()))
	config.Progress = progressReporter(status, s.logger)

	s.logger.Info("Starting extraction",
		zap.String("url", url),
		zap.String("format", config.Format),
		zap.Int("fragments", config.ConcurrentFragments),
		zap.String("merge_output_format", config.MergeOutputFormat),
		zap.Bool("cookies", config.CookieFile != ""))

	// Once issued the transfer runs to completion
	predicted, err := s.extractor.Extract(context.WithoutCancel(ctx), url, config)
	if err != nil {
		return domain.Failure(err)
	}

	path, err := infrastructure.ResolveOutput(s.fs, predicted)
	if err != nil {
		return domain.Failure(err)
	}
	return domain.Success(path)
}

// stageCookies copies an uploaded cookies file into a uniquely named temp file
func (s *SmartDownloader) stageCookies(body io.Reader) (string, error) {
	file, err := afero.TempFile(s.fs, s.workDir, cookieFilePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create cookie file: %w", err)
	}
	name := file.Name()

	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		s.removeCookies(name)
		return "", fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := file.Close(); err != nil {
		s.removeCookies(name)
		return "", fmt.Errorf("failed to write cookie file: %w", err)
	}
	return name, nil
}

func (s *SmartDownloader) removeCookies(path string) {
	if err := s.fs.Remove(path); err != nil {
		s.logger.Warn("Failed to remove cookie file", zap.String("path", path), zap.Error(err))
	}
}

// progressReporter forwards extractor progress to status. A misbehaving
// reporter never interrupts the transfer.
func progressReporter(status domain.StatusReporter, logger *zap.Logger) domain.ProgressFunc {
	if status == nil {
		return nil
	}
	return func(p domain.Progress) {
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("Status reporter panicked", zap.Any("panic", r))
			}
		}()
		status.Report(fmt.Sprintf(progressStatusForm, p.Percent, p.Speed))
	}
}
