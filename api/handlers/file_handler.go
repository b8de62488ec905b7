package handlers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/smart-extract-go/internal/app"
	"github.com/yourusername/smart-extract-go/internal/domain"
)

// FileHandler serves produced files from the work directory
type FileHandler struct {
	downloadMgr *app.DownloadManager
}

// NewFileHandler creates a new file handler
func NewFileHandler(downloadMgr *app.DownloadManager) *FileHandler {
	return &FileHandler{downloadMgr: downloadMgr}
}

// ServeFile handles GET /files/:name
func (h *FileHandler) ServeFile(c *gin.Context) {
	name := c.Param("name")

	file, info, err := h.downloadMgr.OpenOutput(name)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file name", Kind: string(domain.FailureInvalidInput)})
		return
	case errors.Is(err, domain.ErrOutputNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found", Kind: string(domain.FailureOutputNotFound)})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to open file", Kind: string(domain.FailureInternal)})
		return
	}
	defer file.Close()

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
