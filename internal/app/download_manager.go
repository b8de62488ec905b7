package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"github.com/yourusername/smart-extract-go/internal/domain"
	"github.com/yourusername/smart-extract-go/internal/infrastructure"
	"github.com/yourusername/smart-extract-go/pkg/logger"
	"go.uber.org/zap"
)

// Status texts shown around a download
const (
	StatusStarting = "starting download"
	statusDone     = "download complete: %s"
	statusFailed   = "error: %s"
)

// DownloadManager is the session object. It holds the muxing capability
// probed at startup and runs at most one download at a time.
type DownloadManager struct {
	downloader *SmartDownloader
	capability domain.Capability
	status     domain.StatusReporter
	notifier   *infrastructure.NotificationService
	events     *logger.MultiLogger
	logger     *zap.Logger
	slot       chan struct{} // Single-flight semaphore (limit=1)
	busy       atomic.Bool
}

// NewDownloadManager creates a new download manager. events may be nil.
func NewDownloadManager(
	downloader *SmartDownloader,
	capability domain.Capability,
	status domain.StatusReporter,
	notifier *infrastructure.NotificationService,
	events *logger.MultiLogger,
	logger *zap.Logger,
) *DownloadManager {
	return &DownloadManager{
		downloader: downloader,
		capability: capability,
		status:     status,
		notifier:   notifier,
		events:     events,
		logger:     logger,
		slot:       make(chan struct{}, 1),
	}
}

// Capability returns the capability probed at startup
func (dm *DownloadManager) Capability() domain.Capability {
	return dm.capability
}

// WorkDir returns the directory produced files live in
func (dm *DownloadManager) WorkDir() string {
	return dm.downloader.WorkDir()
}

// EnsureWorkDir creates the work directory if needed
func (dm *DownloadManager) EnsureWorkDir() error {
	return dm.downloader.EnsureWorkDir()
}

// OpenOutput opens a produced file by its base name
func (dm *DownloadManager) OpenOutput(name string) (afero.File, os.FileInfo, error) {
	return dm.downloader.OpenOutput(name)
}

// Busy reports whether a download is in flight
func (dm *DownloadManager) Busy() bool {
	return dm.busy.Load()
}

// Download waits for the download slot and runs req. If ctx ends before
// the slot frees up the request is abandoned without touching the extractor.
func (dm *DownloadManager) Download(ctx context.Context, req domain.DownloadRequest) domain.Outcome {
	select {
	case dm.slot <- struct{}{}:
		defer func() { <-dm.slot }()
	case <-ctx.Done():
		return domain.Failure(fmt.Errorf("download not started: %w", ctx.Err()))
	}

	dm.busy.Store(true)
	defer dm.busy.Store(false)

	start := time.Now()
	dm.report(StatusStarting)
	dm.logEvent("download_started",
		zap.String("url", req.URL),
		zap.String("merge", string(req.Merge)),
		zap.String("speed", string(req.Speed)),
		zap.Bool("muxer", dm.capability.Available))

	outcome := dm.downloader.Download(ctx, req, dm.capability, dm.status)
	elapsed := time.Since(start)

	if !outcome.Succeeded() {
		dm.report(fmt.Sprintf(statusFailed, outcome.Message()))
		dm.logFailure(req.URL, outcome, elapsed)
		dm.notifier.NotifyDownloadFailed(req.URL, outcome.Err)
		return outcome
	}

	dm.report(fmt.Sprintf(statusDone, filepath.Base(outcome.FilePath)))
	dm.logEvent("download_completed",
		zap.String("url", req.URL),
		zap.String("file_path", outcome.FilePath),
		zap.Duration("elapsed", elapsed))
	dm.notifier.NotifyDownloadCompleted(req.URL, outcome.FilePath)
	return outcome
}

func (dm *DownloadManager) report(status string) {
	if dm.status != nil {
		dm.status.Report(status)
	}
}

func (dm *DownloadManager) logEvent(event string, fields ...zap.Field) {
	if dm.events != nil {
		dm.events.LogDownloadEvent(event, fields...)
		return
	}
	dm.logger.Info(event, fields...)
}

func (dm *DownloadManager) logFailure(url string, outcome domain.Outcome, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("url", url),
		zap.String("kind", string(outcome.Kind())),
		zap.Duration("elapsed", elapsed),
		zap.Error(outcome.Err),
	}

	// Rejected input is the user's mistake, not an application error
	if outcome.Kind() == domain.FailureInvalidInput {
		dm.logEvent("download_rejected", fields...)
		return
	}
	if dm.events != nil {
		dm.events.LogAppError("download_failed", fields...)
		return
	}
	dm.logger.Error("download_failed", fields...)
}
