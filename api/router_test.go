package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/smart-extract-go/api/handlers"
	"github.com/yourusername/smart-extract-go/internal/app"
	"github.com/yourusername/smart-extract-go/internal/domain"
	"github.com/yourusername/smart-extract-go/internal/infrastructure"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubExtractor writes a ".mkv" output into the in-memory work dir
type stubExtractor struct {
	fs      afero.Fs
	mu      sync.Mutex
	config  domain.ExtractionConfig
	cookies string
	err     error
	noFile  bool
}

func (s *stubExtractor) Extract(ctx context.Context, url string, config domain.ExtractionConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = config
	if config.CookieFile != "" {
		data, _ := afero.ReadFile(s.fs, config.CookieFile)
		s.cookies = string(data)
	}
	if config.Progress != nil {
		config.Progress(domain.Progress{Percent: "100.0%", Speed: "3.00MiB/s"})
	}
	if s.err != nil {
		return "", s.err
	}

	base := strings.TrimSuffix(config.OutputTemplate, ".%(ext)s")
	if !s.noFile {
		if err := afero.WriteFile(s.fs, base+".mkv", []byte("media-bytes"), 0644); err != nil {
			return "", err
		}
	}
	return base + ".mp4", nil
}

type testServer struct {
	router    *gin.Engine
	extractor *stubExtractor
	board     *app.StatusBoard
	fs        afero.Fs
}

func newTestServer(t *testing.T, capability domain.Capability, configure func(*domain.Config)) *testServer {
	t.Helper()

	config := domain.DefaultConfig()
	config.Download.WorkDir = "/work"
	config.Download.LogsDir = t.TempDir()
	config.Download.MaxUploadBytes = 1024
	config.RateLimit.Enabled = false
	if configure != nil {
		configure(config)
	}

	fs := afero.NewMemMapFs()
	extractor := &stubExtractor{fs: fs}
	board := app.NewStatusBoard()
	notifier := infrastructure.NewNotificationService(&config.Notification, zap.NewNop())
	downloader := app.NewSmartDownloader(extractor, fs, config.Download.WorkDir, zap.NewNop())
	manager := app.NewDownloadManager(downloader, capability, board, notifier, nil, zap.NewNop())

	router, err := SetupRouter(RouterDeps{
		DownloadMgr: manager,
		StatusBoard: board,
		Config:      config,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)

	return &testServer{router: router, extractor: extractor, board: board, fs: fs}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func downloadRequest(t *testing.T, fields map[string]string, cookies []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if cookies != nil {
		part, err := writer.CreateFormFile("cookies", "cookies.txt")
		require.NoError(t, err)
		_, err = part.Write(cookies)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/downloads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

var (
	withMuxer    = domain.Capability{Available: true, Binary: "ffmpeg", Version: "ffmpeg version 6.1"}
	withoutMuxer = domain.Capability{Available: false, Binary: "ffmpeg", Reason: "ffmpeg -version failed: not found"}
)

func TestIndex_WithMuxer(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="mkv"`)
	assert.Contains(t, w.Body.String(), `value="mp4"`)
	assert.NotContains(t, w.Body.String(), "ffmpeg was not found")
}

func TestIndex_WithoutMuxer(t *testing.T) {
	srv := newTestServer(t, withoutMuxer, nil)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "ffmpeg was not found")
	assert.Contains(t, body, "brew install ffmpeg")
	assert.Contains(t, body, `value="auto"`)
	assert.NotContains(t, body, `value="mkv"`)
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/downloads")
}

func TestCreateDownload_SuccessAndFetch(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)

	w := srv.do(downloadRequest(t, map[string]string{
		"url":   "https://example.com/v",
		"merge": "mkv",
		"speed": "fast",
	}, nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp handlers.DownloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.FileName, "smart_video_"))
	assert.True(t, strings.HasSuffix(resp.FileName, ".mkv"))
	assert.Equal(t, "/files/"+resp.FileName, resp.DownloadURL)

	assert.Equal(t, 16, srv.extractor.config.ConcurrentFragments)
	assert.Equal(t, "mkv", srv.extractor.config.MergeOutputFormat)
	assert.Equal(t, "download complete: "+resp.FileName, srv.board.Current().Status)

	file := srv.do(httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil))
	assert.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "media-bytes", file.Body.String())
	assert.Contains(t, file.Header().Get("Content-Disposition"), "attachment")
}

func TestCreateDownload_DefaultsApplied(t *testing.T) {
	srv := newTestServer(t, withMuxer, func(c *domain.Config) {
		c.Download.DefaultSpeed = "normal"
	})

	w := srv.do(downloadRequest(t, map[string]string{"url": "https://example.com/v"}, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 8, srv.extractor.config.ConcurrentFragments)
	assert.Empty(t, srv.extractor.config.MergeOutputFormat)
}

func TestCreateDownload_WithoutMuxerIgnoresMerge(t *testing.T) {
	srv := newTestServer(t, withoutMuxer, nil)

	w := srv.do(downloadRequest(t, map[string]string{"url": "https://example.com/v", "merge": "mp4"}, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "best", srv.extractor.config.Format)
	assert.Empty(t, srv.extractor.config.MergeOutputFormat)
}

func TestCreateDownload_Failures(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		setup      func(*stubExtractor)
		wantStatus int
		wantKind   domain.FailureKind
		wantError  string
	}{
		{
			name:       "empty url",
			fields:     map[string]string{"url": "  "},
			wantStatus: http.StatusBadRequest,
			wantKind:   domain.FailureInvalidInput,
		},
		{
			name:       "unknown speed",
			fields:     map[string]string{"url": "https://example.com/v", "speed": "warp"},
			wantStatus: http.StatusBadRequest,
			wantKind:   domain.FailureInvalidInput,
		},
		{
			name:   "extractor error",
			fields: map[string]string{"url": "https://example.com/v"},
			setup: func(s *stubExtractor) {
				s.err = &domain.ExtractionError{Message: "ERROR: Unsupported URL: https://example.com/v"}
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   domain.FailureExtraction,
			wantError:  "ERROR: Unsupported URL: https://example.com/v",
		},
		{
			name:       "output missing",
			fields:     map[string]string{"url": "https://example.com/v"},
			setup:      func(s *stubExtractor) { s.noFile = true },
			wantStatus: http.StatusInternalServerError,
			wantKind:   domain.FailureOutputNotFound,
			wantError:  "output file not found after download",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, withMuxer, nil)
			if tt.setup != nil {
				tt.setup(srv.extractor)
			}

			w := srv.do(downloadRequest(t, tt.fields, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.wantKind), resp.Kind)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp.Error)
			}
		})
	}
}

func TestCreateDownload_CookiesStagedAndRemoved(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)
	cookies := []byte("# Netscape HTTP Cookie File\n.example.com\tTRUE\t/\tFALSE\t0\tsid\tabc\n")

	w := srv.do(downloadRequest(t, map[string]string{"url": "https://example.com/v"}, cookies))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(cookies), srv.extractor.cookies)

	leftovers, err := afero.Glob(srv.fs, "/work/temp_cookies_*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestCreateDownload_CookiesTooLarge(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)

	w := srv.do(downloadRequest(t, map[string]string{"url": "https://example.com/v"}, bytes.Repeat([]byte("x"), 4096)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_input")
}

func TestCreateDownload_RateLimited(t *testing.T) {
	srv := newTestServer(t, withMuxer, func(c *domain.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RequestsPerMinute = 1
		c.RateLimit.Burst = 1
	})

	first := srv.do(downloadRequest(t, map[string]string{"url": "https://example.com/v"}, nil))
	second := srv.do(downloadRequest(t, map[string]string{"url": "https://example.com/v"}, nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestServeFile_RejectsTraversal(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)
	require.NoError(t, afero.WriteFile(srv.fs, "/work/temp_cookies_1.txt", []byte("secret"), 0600))

	cookies := srv.do(httptest.NewRequest(http.MethodGet, "/files/temp_cookies_1.txt", nil))
	assert.Equal(t, http.StatusBadRequest, cookies.Code)
	assert.NotContains(t, cookies.Body.String(), "secret")

	// A decoded slash never matches the single-segment route
	traversal := srv.do(httptest.NewRequest(http.MethodGet, "/files/..%2Ftemp_cookies_1.txt", nil))
	assert.NotEqual(t, http.StatusOK, traversal.Code)
	assert.NotContains(t, traversal.Body.String(), "secret")

	missing := srv.do(httptest.NewRequest(http.MethodGet, "/files/smart_video_404.mp4", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestStatusAndCapability(t *testing.T) {
	srv := newTestServer(t, withoutMuxer, nil)
	srv.board.Report("downloading: 10.0% | speed: 1.00MiB/s")

	status := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, status.Code)
	var statusResp map[string]interface{}
	require.NoError(t, json.Unmarshal(status.Body.Bytes(), &statusResp))
	assert.Equal(t, "downloading: 10.0% | speed: 1.00MiB/s", statusResp["status"])
	assert.Equal(t, false, statusResp["busy"])

	capability := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/capability", nil))
	require.Equal(t, http.StatusOK, capability.Code)
	var capResp handlers.CapabilityResponse
	require.NoError(t, json.Unmarshal(capability.Body.Bytes(), &capResp))
	assert.False(t, capResp.Available)
	assert.Equal(t, "best", capResp.Format)
	assert.Equal(t, []domain.MergePreference{domain.MergeAuto}, capResp.MergeOptions)
	assert.NotEmpty(t, capResp.Reason)
}

func TestStatusWebSocket(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)
	srv.board.Report("idle")

	httpServer := httptest.NewServer(srv.router)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/v1/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first handlers.StatusResponse
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "idle", first.Status)

	// The subscription is registered before the first message is written
	srv.board.Report("downloading: 50.0% | speed: 2.00MiB/s")

	var next handlers.StatusResponse
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "downloading: 50.0% | speed: 2.00MiB/s", next.Status)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)

	health := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, health.Code)
	var resp handlers.HealthResponse
	require.NoError(t, json.Unmarshal(health.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Capability.Available)

	ready := srv.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, ready.Code)
}

func TestLogs(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)

	categories := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs/categories", nil))
	require.Equal(t, http.StatusOK, categories.Code)
	assert.Contains(t, categories.Body.String(), "process")

	invalid := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs/queue", nil))
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	badDate := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs/download?date=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, badDate.Code)

	empty := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/logs/download", nil))
	require.Equal(t, http.StatusOK, empty.Code)
	body, err := io.ReadAll(empty.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"count":0`)
}

func TestNoRoute(t *testing.T) {
	srv := newTestServer(t, withMuxer, nil)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
