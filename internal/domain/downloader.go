package domain

import "context"

// Progress is a single progress report from the extractor
type Progress struct {
	Percent string // e.g. "42.3%"
	Speed   string // e.g. "1.20MiB/s"
}

// ProgressFunc receives progress reports while a transfer runs
type ProgressFunc func(Progress)

// ExtractionConfig is the per-call configuration handed to the extractor.
// It is derived from a request and never persisted.
type ExtractionConfig struct {
	Format              string
	OutputTemplate      string
	ConcurrentFragments int
	CookieFile          string // Empty means no credentials
	MergeOutputFormat   string // Empty means no container override
	NoCheckCertificate  bool
	Progress            ProgressFunc
}

// Extractor runs the external extract+download operation
type Extractor interface {
	// Extract downloads url according to config and returns the output path
	// the extractor predicted before post-processing
	Extract(ctx context.Context, url string, config ExtractionConfig) (string, error)
}

// StatusReporter receives human-readable status updates for the UI
type StatusReporter interface {
	Report(status string)
}

// StatusReporterFunc adapts a function to StatusReporter
type StatusReporterFunc func(status string)

// Report calls f(status)
func (f StatusReporterFunc) Report(status string) {
	f(status)
}
