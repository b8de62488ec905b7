package infrastructure

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/yourusername/smart-extract-go/internal/domain"
)

const defaultProbeTimeout = 10 * time.Second

// FFmpegProbe checks whether the muxing binary can be launched
type FFmpegProbe struct {
	binary  string
	timeout time.Duration
}

// NewFFmpegProbe creates a probe for binary. A non-positive timeout uses the default.
func NewFFmpegProbe(binary string, timeout time.Duration) *FFmpegProbe {
	if binary == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &FFmpegProbe{binary: binary, timeout: timeout}
}

// Probe runs "<binary> -version" with its output captured.
// It never returns an error: any failure means the muxer is unavailable,
// and the cause is kept in Capability.Reason.
func (p *FFmpegProbe) Probe(ctx context.Context) domain.Capability {
	capability := domain.Capability{Binary: p.binary}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, p.binary, "-version").CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			capability.Reason = fmt.Sprintf("%s -version timed out after %s", p.binary, p.timeout)
		} else {
			capability.Reason = fmt.Sprintf("%s -version failed: %v", p.binary, err)
		}
		return capability
	}

	capability.Available = true
	capability.Version = firstLine(string(output))
	return capability
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
