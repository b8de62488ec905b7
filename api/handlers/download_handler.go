package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/smart-extract-go/internal/app"
	"github.com/yourusername/smart-extract-go/internal/domain"
	"go.uber.org/zap"
)

// Multipart overhead allowed on top of the cookie upload limit
const formOverheadBytes = 64 * 1024

// DownloadDefaults are applied when the form leaves a field empty
type DownloadDefaults struct {
	Speed          string
	Merge          string
	MaxUploadBytes int64
}

// DownloadHandler handles download requests
type DownloadHandler struct {
	downloadMgr *app.DownloadManager
	defaults    DownloadDefaults
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(downloadMgr *app.DownloadManager, defaults DownloadDefaults, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadMgr: downloadMgr,
		defaults:    defaults,
		logger:      logger,
	}
}

// DownloadResponse is returned for a successful download
type DownloadResponse struct {
	FilePath    string `json:"file_path"`
	FileName    string `json:"file_name"`
	DownloadURL string `json:"download_url"`
}

// ErrorResponse is returned for any failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// CreateDownload handles POST /api/v1/downloads.
// The request blocks until the file is ready or the download fails.
func (h *DownloadHandler) CreateDownload(c *gin.Context) {
	if h.defaults.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.defaults.MaxUploadBytes+formOverheadBytes)
	}

	req, cookies, err := h.parseRequest(c)
	if err != nil {
		h.respondFailure(c, domain.Failure(err))
		return
	}
	if cookies != nil {
		defer cookies.Close()
		req.Cookies = cookies
	}

	outcome := h.downloadMgr.Download(c.Request.Context(), req)
	if !outcome.Succeeded() {
		h.respondFailure(c, outcome)
		return
	}

	name := filepath.Base(outcome.FilePath)
	c.JSON(http.StatusOK, DownloadResponse{
		FilePath:    outcome.FilePath,
		FileName:    name,
		DownloadURL: "/files/" + url.PathEscape(name),
	})
}

// parseRequest reads the multipart form. The returned file must be closed.
func (h *DownloadHandler) parseRequest(c *gin.Context) (domain.DownloadRequest, multipart.File, error) {
	var req domain.DownloadRequest

	if err := c.Request.ParseMultipartForm(formOverheadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return req, nil, fmt.Errorf("%w: unreadable form: %v", domain.ErrInvalidInput, err)
	}

	speedText := c.PostForm("speed")
	if speedText == "" {
		speedText = h.defaults.Speed
	}
	speed, err := domain.ParseSpeedTier(speedText)
	if err != nil {
		return req, nil, err
	}

	mergeText := c.PostForm("merge")
	if mergeText == "" {
		mergeText = h.defaults.Merge
	}
	merge, err := domain.ParseMergePreference(mergeText)
	if err != nil {
		return req, nil, err
	}

	req.URL = c.PostForm("url")
	req.Speed = speed
	req.Merge = merge

	// URL-encoded forms cannot carry a cookies file
	if c.Request.MultipartForm == nil {
		return req, nil, nil
	}

	header, err := c.FormFile("cookies")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, fmt.Errorf("%w: unreadable form: %v", domain.ErrInvalidInput, err)
	}
	if h.defaults.MaxUploadBytes > 0 && header.Size > h.defaults.MaxUploadBytes {
		return req, nil, fmt.Errorf("%w: cookies file larger than %d bytes", domain.ErrInvalidInput, h.defaults.MaxUploadBytes)
	}

	file, err := header.Open()
	if err != nil {
		return req, nil, fmt.Errorf("%w: cannot read cookies file: %v", domain.ErrInvalidInput, err)
	}
	return req, file, nil
}

// respondFailure maps a failed outcome onto an HTTP status
func (h *DownloadHandler) respondFailure(c *gin.Context, outcome domain.Outcome) {
	kind := outcome.Kind()

	status := http.StatusInternalServerError
	switch kind {
	case domain.FailureInvalidInput:
		status = http.StatusBadRequest
	case domain.FailureExtraction:
		status = http.StatusUnprocessableEntity
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Download failed", zap.String("kind", string(kind)), zap.Error(outcome.Err))
	}
	_ = c.Error(outcome.Err)

	c.JSON(status, ErrorResponse{Error: outcome.Message(), Kind: string(kind)})
}
