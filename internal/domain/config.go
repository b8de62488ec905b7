package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	WorkDir        string `mapstructure:"work_dir"` // Outputs and temporary cookie files
	LogsDir        string `mapstructure:"logs_dir"`
	DefaultSpeed   string `mapstructure:"default_speed"`
	DefaultMerge   string `mapstructure:"default_merge"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"` // Cookie file upload limit
}

// ToolsConfig locates the external binaries
type ToolsConfig struct {
	YTDLPBinary  string        `mapstructure:"ytdlp_binary"`
	FFmpegBinary string        `mapstructure:"ffmpeg_binary"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// RateLimitConfig throttles download submissions
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8501,
		},
		Download: DownloadConfig{
			WorkDir:        "$HOME/Downloads/smart-extract",
			LogsDir:        "$HOME/Downloads/smart-extract/logs",
			DefaultSpeed:   string(SpeedMax),
			DefaultMerge:   string(MergeAuto),
			MaxUploadBytes: 1 << 20,
		},
		Tools: ToolsConfig{
			YTDLPBinary:  "yt-dlp",
			FFmpegBinary: "ffmpeg",
			ProbeTimeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 6,
			Burst:             2,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
