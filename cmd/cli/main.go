package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/yourusername/smart-extract-go/pkg/logger"
)

const statusPollInterval = 500 * time.Millisecond

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:           "smart-extract",
		Short:         "Smart Extract CLI - download videos through a Smart Extract server",
		Long:          `A command-line client that submits downloads to a Smart Extract server, follows their progress and saves the produced file locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8501", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	downloadCmd.Flags().StringP("merge", "m", "", "Container to merge into (auto, mp4, mkv)")
	downloadCmd.Flags().StringP("speed", "s", "", "Speed tier (normal, fast, max)")
	downloadCmd.Flags().StringP("cookies", "c", "", "Path to a cookies.txt file")
	downloadCmd.Flags().StringP("output", "o", ".", "Directory to save the file into")
	downloadCmd.Flags().Bool("no-save", false, "Leave the file on the server only")

	logsCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries")
	logsCmd.Flags().StringP("date", "d", "", "Day to read (YYYY-MM-DD), defaults to today")
	logsCmd.Flags().StringP("query", "q", "", "Only show entries containing this text")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(capabilityCmd)
	rootCmd.AddCommand(logsCmd)
}

// ensureServer starts the server if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		opts := downloadOptions{URL: args[0]}
		opts.Merge, _ = cmd.Flags().GetString("merge")
		opts.Speed, _ = cmd.Flags().GetString("speed")
		opts.Cookies, _ = cmd.Flags().GetString("cookies")
		outputDir, _ := cmd.Flags().GetString("output")
		noSave, _ := cmd.Flags().GetBool("no-save")

		ctx := cmd.Context()
		c := newClient(serverURL)

		result, err := submitWithProgress(ctx, c, opts)
		if err != nil {
			return err
		}

		fmt.Printf("Download complete: %s\n", result.FileName)
		if noSave {
			fmt.Printf("Server path: %s\n", result.FilePath)
			return nil
		}

		saved, err := saveFile(ctx, c, result, outputDir)
		if err != nil {
			return err
		}
		fmt.Printf("Saved to: %s\n", saved)
		return nil
	},
}

// submitWithProgress runs the blocking submission while polling the status
// line into a progress bar
func submitWithProgress(ctx context.Context, c *client, opts downloadOptions) (*downloadResult, error) {
	type submitted struct {
		result *downloadResult
		err    error
	}
	done := make(chan submitted, 1)
	go func() {
		result, err := c.submitDownload(ctx, opts)
		done <- submitted{result, err}
	}()

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("waiting"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-done:
			return s.result, s.err
		case <-ticker.C:
			snapshot, err := c.status(ctx)
			if err != nil {
				continue
			}
			if percent, speed, ok := parseProgress(snapshot.Status); ok {
				bar.Describe(speed)
				_ = bar.Set(int(percent))
			} else {
				bar.Describe(snapshot.Status)
			}
		}
	}
}

// saveFile copies the produced file into dir
func saveFile(ctx context.Context, c *client, result *downloadResult, dir string) (string, error) {
	resp, err := c.fetch(ctx, result.DownloadURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(result.FileName))

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	bar := progressbar.DefaultBytes(resp.ContentLength, "saving")
	if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	return path, out.Close()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current download status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		snapshot, err := newClient(serverURL).status(cmd.Context())
		if err != nil {
			return err
		}

		status := snapshot.Status
		if status == "" {
			status = "idle"
		}
		fmt.Printf("Status:  %s\n", status)
		fmt.Printf("Busy:    %v\n", snapshot.Busy)
		if !snapshot.UpdatedAt.IsZero() {
			fmt.Printf("Updated: %s\n", snapshot.UpdatedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

var capabilityCmd = &cobra.Command{
	Use:   "capability",
	Short: "Show what the server's muxer allows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var capability struct {
			Available    bool     `json:"available"`
			Binary       string   `json:"binary"`
			Version      string   `json:"version"`
			Reason       string   `json:"reason"`
			Format       string   `json:"format"`
			MergeOptions []string `json:"merge_options"`
		}
		if err := newClient(serverURL).getJSON(cmd.Context(), "/api/v1/capability", &capability); err != nil {
			return err
		}

		fmt.Printf("Muxer:         %s (available: %v)\n", capability.Binary, capability.Available)
		if capability.Version != "" {
			fmt.Printf("Version:       %s\n", capability.Version)
		}
		if capability.Reason != "" {
			fmt.Printf("Reason:        %s\n", capability.Reason)
		}
		fmt.Printf("Format:        %s\n", capability.Format)
		fmt.Printf("Merge options: %v\n", capability.MergeOptions)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:       "logs [category]",
	Short:     "View server logs (download, error, process)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(logger.CategoryDownload), string(logger.CategoryError), string(logger.CategoryProcess)},
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")
		date, _ := cmd.Flags().GetString("date")
		query, _ := cmd.Flags().GetString("query")

		params := url.Values{}
		params.Set("limit", strconv.Itoa(limit))
		if date != "" {
			params.Set("date", date)
		}
		if query != "" {
			params.Set("q", query)
		}

		var page struct {
			Entries []logger.LogEntry `json:"entries"`
		}
		path := "/api/v1/logs/" + url.PathEscape(args[0]) + "?" + params.Encode()
		if err := newClient(serverURL).getJSON(cmd.Context(), path, &page); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tLEVEL\tMESSAGE")
		for _, e := range page.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp, e.Level, truncate(e.Message, 100))
		}
		return w.Flush()
	},
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
