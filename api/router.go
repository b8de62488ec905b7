package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/smart-extract-go/api/handlers"
	"github.com/yourusername/smart-extract-go/api/middleware"
	"github.com/yourusername/smart-extract-go/internal/app"
	"github.com/yourusername/smart-extract-go/internal/domain"
	"github.com/yourusername/smart-extract-go/web"
)

// RouterDeps are the session objects the HTTP layer is built on
type RouterDeps struct {
	DownloadMgr *app.DownloadManager
	StatusBoard *app.StatusBoard
	Config      *domain.Config
	Logger      *zap.Logger
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps RouterDeps) (*gin.Engine, error) {
	router := gin.New()

	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS())

	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(templates)
	router.StaticFS("/static", http.FS(web.GetStaticFS()))

	defaults := handlers.DownloadDefaults{
		Speed:          deps.Config.Download.DefaultSpeed,
		Merge:          deps.Config.Download.DefaultMerge,
		MaxUploadBytes: deps.Config.Download.MaxUploadBytes,
	}

	pageHandler := handlers.NewPageHandler(deps.DownloadMgr, defaults)
	router.GET("/", pageHandler.Index)

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.DownloadMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	fileHandler := handlers.NewFileHandler(deps.DownloadMgr)
	router.GET("/files/:name", fileHandler.ServeFile)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(deps.DownloadMgr, defaults, deps.Logger)
		submit := []gin.HandlerFunc{}
		if deps.Config.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(deps.Config.RateLimit.RequestsPerMinute, deps.Config.RateLimit.Burst)
			submit = append(submit, limiter.Middleware())
		}
		submit = append(submit, downloadHandler.CreateDownload)
		v1.POST("/downloads", submit...)

		statusHandler := handlers.NewStatusHandler(deps.StatusBoard, deps.DownloadMgr, deps.Logger)
		v1.GET("/status", statusHandler.GetStatus)
		v1.GET("/status/ws", statusHandler.StreamStatus)

		v1.GET("/capability", healthHandler.Capability)

		// Log endpoints
		logHandler := handlers.NewLogHandler(deps.Config.Download.LogsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router, nil
}
