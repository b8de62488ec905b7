package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/smart-extract-go/internal/app"
	"github.com/yourusername/smart-extract-go/internal/domain"
)

// installHints are shown when the muxer is missing
var installHints = []string{
	"Windows: download a build from https://www.gyan.dev/ffmpeg/builds/, unpack it, and add its bin folder to PATH.",
	"macOS: brew install ffmpeg",
	"Debian/Ubuntu: sudo apt install ffmpeg",
	"Restart the server afterwards; the muxer is only detected at startup.",
}

// PageHandler renders the download form
type PageHandler struct {
	downloadMgr *app.DownloadManager
	defaults    DownloadDefaults
}

// NewPageHandler creates a new page handler
func NewPageHandler(downloadMgr *app.DownloadManager, defaults DownloadDefaults) *PageHandler {
	return &PageHandler{
		downloadMgr: downloadMgr,
		defaults:    defaults,
	}
}

// IndexData is the template data for index.html
type IndexData struct {
	Capability   domain.Capability
	MergeOptions []domain.MergePreference
	SpeedTiers   []domain.SpeedTier
	DefaultSpeed domain.SpeedTier
	DefaultMerge domain.MergePreference
	InstallHints []string
	MaxUploadKB  int64
}

// Index handles GET /
func (h *PageHandler) Index(c *gin.Context) {
	capability := h.downloadMgr.Capability()

	speed, err := domain.ParseSpeedTier(h.defaults.Speed)
	if err != nil {
		speed = domain.SpeedMax
	}
	merge, err := domain.ParseMergePreference(h.defaults.Merge)
	if err != nil || !capability.Available {
		merge = domain.MergeAuto
	}

	data := IndexData{
		Capability:   capability,
		MergeOptions: capability.MergeOptions(),
		SpeedTiers:   []domain.SpeedTier{domain.SpeedNormal, domain.SpeedFast, domain.SpeedMax},
		DefaultSpeed: speed,
		DefaultMerge: merge,
		MaxUploadKB:  h.defaults.MaxUploadBytes / 1024,
	}
	if !capability.Available {
		data.InstallHints = installHints
	}

	c.HTML(http.StatusOK, "index.html", data)
}
