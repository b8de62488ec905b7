package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/smart-extract-go/internal/app"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The form page may be opened from any host name
	},
}

// StatusHandler serves the status slot over polling and WebSocket
type StatusHandler struct {
	board       *app.StatusBoard
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(board *app.StatusBoard, downloadMgr *app.DownloadManager, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		board:       board,
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// StatusResponse is the current status slot
type StatusResponse struct {
	app.StatusUpdate
	Busy bool `json:"busy"`
}

// GetStatus handles GET /api/v1/status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		StatusUpdate: h.board.Current(),
		Busy:         h.downloadMgr.Busy(),
	})
}

// StreamStatus handles GET /api/v1/status/ws.
// The current status is sent first, then every update as it is reported.
func (h *StatusHandler) StreamStatus(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	updates := h.board.Subscribe()
	defer h.board.Unsubscribe(updates)

	h.logger.Debug("Status client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	if err := h.send(conn, h.board.Current()); err != nil {
		return
	}

	// Read messages from client so close frames and pongs are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := h.send(conn, update); err != nil {
				h.logger.Debug("Status client gone", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (h *StatusHandler) send(conn *websocket.Conn, update app.StatusUpdate) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(StatusResponse{StatusUpdate: update, Busy: h.downloadMgr.Busy()})
}
