package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the explainer server and CLI.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	VideoAPI     VideoAPIConfig
	Orchestrator OrchestratorConfig
	Storage      StorageConfig
	Media        MediaConfig
	RateLimit    RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// VideoAPIConfig points at the remote video generation service.
type VideoAPIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// HeaderTimeout bounds the wait for download response headers.
	HeaderTimeout time.Duration
}

type OrchestratorConfig struct {
	PollInterval   time.Duration
	PollErrorDelay time.Duration
	MaxPollErrors  int
	JobTimeout     time.Duration
}

type StorageConfig struct {
	VideosDir         string
	ThumbnailsDir     string
	Extension         string
	MinFreeBytes      int64
	ThumbnailMaxAge   time.Duration
	ThumbnailSweepInt time.Duration
}

type MediaConfig struct {
	FFprobePath string
	FFmpegPath  string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// Load reads configuration from environment variables and returns a validated Config.
// Database and Redis are only required by the HTTP server; see RequireServer.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("EXPLAINER_PORT", 8080),
			Env:  envString("EXPLAINER_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		VideoAPI: VideoAPIConfig{
			BaseURL:        strings.TrimRight(envString("EXPLAINER_VIDEO_API_URL", "http://localhost:8000/api/v1"), "/"),
			RequestTimeout: envDurationSecs("EXPLAINER_VIDEO_API_TIMEOUT_SECS", 30*time.Second),
			ConnectTimeout: envDurationSecs("EXPLAINER_VIDEO_API_CONNECT_TIMEOUT_SECS", 30*time.Second),
			HeaderTimeout:  envDurationSecs("EXPLAINER_VIDEO_API_DOWNLOAD_TIMEOUT_SECS", 300*time.Second),
		},
		Orchestrator: OrchestratorConfig{
			PollInterval:   envDuration("EXPLAINER_POLL_INTERVAL", 3*time.Second),
			PollErrorDelay: envDuration("EXPLAINER_POLL_ERROR_DELAY", 5*time.Second),
			MaxPollErrors:  envInt("EXPLAINER_MAX_POLL_ERRORS", 3),
			JobTimeout:     envDuration("EXPLAINER_JOB_TIMEOUT", 0),
		},
		Storage: StorageConfig{
			VideosDir:         envString("EXPLAINER_VIDEOS_DIR", "videos"),
			ThumbnailsDir:     envString("EXPLAINER_THUMBNAILS_DIR", "thumbnails"),
			Extension:         strings.TrimPrefix(envString("EXPLAINER_VIDEO_EXTENSION", "mp4"), "."),
			MinFreeBytes:      int64(envInt("EXPLAINER_MIN_FREE_BYTES", 10_000_000)),
			ThumbnailMaxAge:   envDuration("EXPLAINER_THUMBNAIL_MAX_AGE", 7*24*time.Hour),
			ThumbnailSweepInt: envDuration("EXPLAINER_THUMBNAIL_SWEEP_INTERVAL", time.Hour),
		},
		Media: MediaConfig{
			FFprobePath: envString("EXPLAINER_FFPROBE_PATH", "ffprobe"),
			FFmpegPath:  envString("EXPLAINER_FFMPEG_PATH", "ffmpeg"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("EXPLAINER_RATE_LIMIT_RPM", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("EXPLAINER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !strings.HasPrefix(c.VideoAPI.BaseURL, "http://") && !strings.HasPrefix(c.VideoAPI.BaseURL, "https://") {
		return fmt.Errorf("EXPLAINER_VIDEO_API_URL must start with http:// or https://, got %q", c.VideoAPI.BaseURL)
	}
	if c.VideoAPI.RequestTimeout <= 0 {
		return fmt.Errorf("EXPLAINER_VIDEO_API_TIMEOUT_SECS must be positive")
	}

	if c.Orchestrator.PollInterval <= 0 {
		return fmt.Errorf("EXPLAINER_POLL_INTERVAL must be positive, got %s", c.Orchestrator.PollInterval)
	}
	if c.Orchestrator.MaxPollErrors <= 0 {
		return fmt.Errorf("EXPLAINER_MAX_POLL_ERRORS must be positive, got %d", c.Orchestrator.MaxPollErrors)
	}
	if c.Orchestrator.JobTimeout < 0 {
		return fmt.Errorf("EXPLAINER_JOB_TIMEOUT must not be negative")
	}

	if c.Storage.VideosDir == "" {
		return fmt.Errorf("EXPLAINER_VIDEOS_DIR is required")
	}
	if c.Storage.Extension == "" {
		return fmt.Errorf("EXPLAINER_VIDEO_EXTENSION is required")
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("EXPLAINER_RATE_LIMIT_RPM must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}

	return nil
}

// RequireServer checks the settings only the HTTP server needs.
func (c *Config) RequireServer() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
