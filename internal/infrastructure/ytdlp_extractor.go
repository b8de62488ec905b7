package infrastructure

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/smart-extract-go/internal/domain"
	"github.com/yourusername/smart-extract-go/pkg/logger"
	"go.uber.org/zap"
)

const (
	progressMarker   = "[progress]"
	progressTemplate = "download:" + progressMarker + "%(progress._percent_str)s|%(progress._speed_str)s"
	errorPrefix      = "ERROR:"
	maxLineBytes     = 1024 * 1024
)

// YTDLPExtractor implements domain.Extractor by running the yt-dlp binary
type YTDLPExtractor struct {
	binary      string
	logsDir     string
	eventLogger *logger.MultiLogger // For structured events only; raw output goes to the process log
}

// NewYTDLPExtractor creates a new yt-dlp extractor
func NewYTDLPExtractor(binary, logsDir string, eventLogger *logger.MultiLogger) *YTDLPExtractor {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLPExtractor{
		binary:      binary,
		logsDir:     logsDir,
		eventLogger: eventLogger,
	}
}

// buildArgs maps an extraction config onto yt-dlp flags.
// Note: exec.Command passes args directly to the process, no shell quoting needed.
func buildArgs(url string, config domain.ExtractionConfig) []string {
	args := []string{
		"-f", config.Format,
		"-o", config.OutputTemplate,
		"--concurrent-fragments", strconv.Itoa(config.ConcurrentFragments),
	}

	if config.CookieFile != "" {
		args = append(args, "--cookies", config.CookieFile)
	}
	if config.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", config.MergeOutputFormat)
	}
	if config.NoCheckCertificate {
		args = append(args, "--no-check-certificate")
	}

	// Machine-readable output: one progress line per update, then the final filename
	args = append(args,
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--no-simulate",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", "filename",
		"--", url,
	)
	return args
}

// parseProgressLine parses a line produced by progressTemplate
func parseProgressLine(line string) (domain.Progress, bool) {
	idx := strings.Index(line, progressMarker)
	if idx < 0 {
		return domain.Progress{}, false
	}
	payload := line[idx+len(progressMarker):]
	percent, speed, _ := strings.Cut(payload, "|")
	return domain.Progress{
		Percent: strings.TrimSpace(percent),
		Speed:   strings.TrimSpace(speed),
	}, true
}

// Extract runs yt-dlp once and returns the filename it reported
func (e *YTDLPExtractor) Extract(ctx context.Context, url string, config domain.ExtractionConfig) (string, error) {
	args := buildArgs(url, config)
	runID := uuid.New().String()

	processLog, err := e.openLogFile()
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}
	defer processLog.Close()

	// Write command header to the process log (with proper shell escaping for display)
	logWriter := &lockedWriter{w: processLog}
	writeLogHeader(logWriter, runID, ShellEscapeCommand(e.binary, args...))

	if e.eventLogger != nil {
		e.eventLogger.LogDownloadEvent("extractor_started",
			zap.String("run_id", runID),
			zap.String("url", url),
			zap.String("format", config.Format),
			zap.Int("fragments", config.ConcurrentFragments))
	}

	cmd := exec.CommandContext(ctx, e.binary, args...)
	filename, errorLine, runErr := e.run(cmd, logWriter, config.Progress)

	if runErr != nil {
		message := errorLine
		if message == "" {
			message = fmt.Sprintf("yt-dlp failed: %v", runErr)
		}
		writeLogFooter(logWriter, false, message)
		return "", &domain.ExtractionError{Message: message, Err: runErr}
	}

	if filename == "" {
		writeLogFooter(logWriter, false, "yt-dlp did not report a filename")
		return "", domain.ErrOutputNotFound
	}

	writeLogFooter(logWriter, true, fmt.Sprintf("Downloaded: %s", filename))
	return filename, nil
}

// run streams stdout and stderr into the process log while tracking the
// reported filename and the last error line
func (e *YTDLPExtractor) run(cmd *exec.Cmd, log io.Writer, progress domain.ProgressFunc) (string, string, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("failed to start %s: %w", e.binary, err)
	}

	var (
		wg        sync.WaitGroup
		filename  string
		errorLine string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, func(line string) {
			fmt.Fprintln(log, line)
			if p, ok := parseProgressLine(line); ok {
				if progress != nil {
					progress(p)
				}
				return
			}
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				filename = trimmed
			}
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			fmt.Fprintln(log, line)
			if strings.HasPrefix(strings.TrimSpace(line), errorPrefix) {
				errorLine = strings.TrimSpace(line)
			}
		})
	}()

	// Pipes must be drained before Wait closes them
	wg.Wait()
	err = cmd.Wait()
	return filename, errorLine, err
}

func scanLines(r io.Reader, handle func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		handle(scanner.Text())
	}
	// Drain anything left after an over-long line so the process never blocks
	_, _ = io.Copy(io.Discard, r)
}

// openLogFile opens the process log file for today
func (e *YTDLPExtractor) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(e.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := logger.CategoryLogPath(e.logsDir, logger.CategoryProcess, time.Now())
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the run start marker
func writeLogHeader(w io.Writer, runID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "\n=== [%s] Download: %s ===\n", timestamp, runID)
	fmt.Fprintf(w, "$ %s\n", cmdLine)
}

// writeLogFooter writes the run end marker
func writeLogFooter(w io.Writer, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, status, message)
	fmt.Fprint(w, "=== END ===\n\n")
}

// lockedWriter serializes writes from the stdout and stderr readers
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
