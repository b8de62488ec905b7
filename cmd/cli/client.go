package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// downloadOptions are the form fields of one download submission
type downloadOptions struct {
	URL     string
	Merge   string
	Speed   string
	Cookies string // Path to a cookies.txt file, optional
}

// downloadResult mirrors the server's success response
type downloadResult struct {
	FilePath    string `json:"file_path"`
	FileName    string `json:"file_name"`
	DownloadURL string `json:"download_url"`
}

// apiError mirrors the server's error response
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Kind    string `json:"kind"`
}

func (e *apiError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

// statusSnapshot mirrors GET /api/v1/status
type statusSnapshot struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Busy      bool      `json:"busy"`
}

// client talks to a running server
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// submitDownload posts the form and blocks until the server answers
func (c *client) submitDownload(ctx context.Context, opts downloadOptions) (*downloadResult, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	fields := map[string]string{"url": opts.URL, "merge": opts.Merge, "speed": opts.Speed}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := form.WriteField(name, value); err != nil {
			return nil, err
		}
	}

	if opts.Cookies != "" {
		if err := attachFile(form, "cookies", opts.Cookies); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/downloads", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var result downloadResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func attachFile(form *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cookies file: %w", err)
	}
	defer file.Close()

	part, err := form.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

// status fetches the current status line
func (c *client) status(ctx context.Context) (*statusSnapshot, error) {
	var snapshot statusSnapshot
	if err := c.getJSON(ctx, "/api/v1/status", &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// getJSON decodes a GET response into out
func (c *client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &apiError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	return json.Unmarshal(data, out)
}

// fetch opens a download_url returned by the server. The caller closes the body.
func (c *client) fetch(ctx context.Context, downloadURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+downloadURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &apiError{Status: resp.StatusCode, Message: "file not available"}
	}
	return resp, nil
}

// parseProgress extracts the percentage from a status line such as
// "downloading:  42.3% | speed: 1.20MiB/s"
func parseProgress(status string) (float64, string, bool) {
	rest, ok := strings.CutPrefix(status, "downloading:")
	if !ok {
		return 0, "", false
	}
	percentText, speedText, _ := strings.Cut(rest, "|")
	percentText = strings.TrimSuffix(strings.TrimSpace(percentText), "%")

	percent, err := strconv.ParseFloat(percentText, 64)
	if err != nil {
		return 0, "", false
	}
	speed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(speedText), "speed:"))
	return percent, speed, true
}
