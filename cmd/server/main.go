package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yourusername/smart-extract-go/api"
	"github.com/yourusername/smart-extract-go/api/handlers"
	"github.com/yourusername/smart-extract-go/internal/app"
	"github.com/yourusername/smart-extract-go/internal/infrastructure"
	"github.com/yourusername/smart-extract-go/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	foreground = flag.Bool("foreground", false, "Run in the foreground instead of detaching")
	configPath = flag.String("config", "", "Path to config file")
	envFile    = flag.String("env-file", ".env", "Path to .env file")
)

func main() {
	flag.Parse()

	if !*serverMode && !*foreground {
		startAsDaemon()
		return
	}

	runServer()
}

// startAsDaemon re-executes the binary in server mode, detached from the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-server-mode", "-env-file", *envFile}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	detach(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	if err := app.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Category logs: download, error, process
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
		General: log,
	})
	if err != nil {
		log.Fatal("Failed to initialize category logs", zap.Error(err))
	}
	defer multiLog.Close()

	log.Info("Starting Smart Extract server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("work_dir", config.Download.WorkDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The muxer is probed once per session
	capability := infrastructure.NewFFmpegProbe(config.Tools.FFmpegBinary, config.Tools.ProbeTimeout).Probe(ctx)
	if capability.Available {
		log.Info("Muxer available",
			zap.String("binary", capability.Binary),
			zap.String("version", capability.Version))
	} else {
		log.Warn("Muxer unavailable, downloads limited to single-stream formats",
			zap.String("binary", capability.Binary),
			zap.String("reason", capability.Reason))
	}

	extractor := infrastructure.NewYTDLPExtractor(config.Tools.YTDLPBinary, config.Download.LogsDir, multiLog)
	downloader := app.NewSmartDownloader(extractor, afero.NewOsFs(), config.Download.WorkDir, log)
	if err := downloader.EnsureWorkDir(); err != nil {
		log.Fatal("Failed to create work directory", zap.Error(err))
	}

	statusBoard := app.NewStatusBoard()
	notifier := infrastructure.NewNotificationService(&config.Notification, log)
	downloadMgr := app.NewDownloadManager(downloader, capability, statusBoard, notifier, multiLog, log)

	gin.SetMode(gin.ReleaseMode)
	router, err := api.SetupRouter(api.RouterDeps{
		DownloadMgr: downloadMgr,
		StatusBoard: statusBoard,
		Config:      config,
		Logger:      log,
	})
	if err != nil {
		log.Fatal("Failed to set up router", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// In-flight downloads run to completion within the shutdown window
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
