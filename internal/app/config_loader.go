package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yourusername/smart-extract-go/internal/domain"
)

// EnvPrefix is the prefix for environment overrides, e.g. SMARTEXTRACT_SERVER_PORT
const EnvPrefix = "SMARTEXTRACT"

// LoadDotEnv loads variables from .env files into the process environment.
// Variables that are already set win. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.smart-extract")
		v.AddConfigPath("/etc/smart-extract")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// configValues flattens config into viper keys
func configValues(config *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host":                    config.Server.Host,
		"server.port":                    config.Server.Port,
		"download.work_dir":              config.Download.WorkDir,
		"download.logs_dir":              config.Download.LogsDir,
		"download.default_speed":         config.Download.DefaultSpeed,
		"download.default_merge":         config.Download.DefaultMerge,
		"download.max_upload_bytes":      config.Download.MaxUploadBytes,
		"tools.ytdlp_binary":             config.Tools.YTDLPBinary,
		"tools.ffmpeg_binary":            config.Tools.FFmpegBinary,
		"tools.probe_timeout":            config.Tools.ProbeTimeout.String(),
		"rate_limit.enabled":             config.RateLimit.Enabled,
		"rate_limit.requests_per_minute": config.RateLimit.RequestsPerMinute,
		"rate_limit.burst":               config.RateLimit.Burst,
		"notification.enabled":           config.Notification.Enabled,
		"notification.method":            config.Notification.Method,
		"logging.level":                  config.Logging.Level,
		"logging.format":                 config.Logging.Format,
		"logging.output_path":            config.Logging.OutputPath,
	}
}

// bindEnvKeys registers every key so AutomaticEnv can override values that
// are absent from the config file
func bindEnvKeys(v *viper.Viper) {
	for key := range configValues(domain.DefaultConfig()) {
		_ = v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.WorkDir = expandPath(config.Download.WorkDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Tools.YTDLPBinary = expandPath(config.Tools.YTDLPBinary)
	config.Tools.FFmpegBinary = expandPath(config.Tools.FFmpegBinary)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.WorkDir == "" {
		return fmt.Errorf("download work directory not configured")
	}

	if config.Download.LogsDir == "" {
		config.Download.LogsDir = filepath.Join(config.Download.WorkDir, "logs")
	}

	if _, err := domain.ParseSpeedTier(config.Download.DefaultSpeed); err != nil {
		return fmt.Errorf("default speed: %w", err)
	}

	if _, err := domain.ParseMergePreference(config.Download.DefaultMerge); err != nil {
		return fmt.Errorf("default merge: %w", err)
	}

	if config.Download.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if config.Tools.YTDLPBinary == "" {
		return fmt.Errorf("yt-dlp binary not configured")
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerMinute <= 0 || config.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit needs a positive rate and a burst of at least 1")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
