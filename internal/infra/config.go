package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv    string
	LogLevel  string
	Port      string
	ImagesDir string

	BFLAPIKey          string
	BFLBaseURL         string
	FluxPollInterval   time.Duration
	FluxPollTimeout    time.Duration
	FluxRequestTimeout time.Duration

	JobRetention time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	ShutdownTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Port:               getEnv("PORT", "8000"),
		ImagesDir:          getEnv("IMAGES_DIR", "generated_images"),
		BFLAPIKey:          strings.TrimSpace(os.Getenv("BFL_API_KEY")),
		BFLBaseURL:         getEnv("BFL_BASE_URL", "https://api.bfl.ml"),
		FluxPollInterval:   time.Millisecond * time.Duration(getEnvInt("FLUX_POLL_INTERVAL_MS", 500)),
		FluxPollTimeout:    time.Second * time.Duration(getEnvInt("FLUX_POLL_TIMEOUT_SECONDS", 300)),
		FluxRequestTimeout: time.Second * time.Duration(getEnvInt("FLUX_REQUEST_TIMEOUT_SECONDS", 60)),
		JobRetention:       time.Minute * time.Duration(getEnvInt("JOB_RETENTION_MINUTES", 60)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ShutdownTimeout:    time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.BFLAPIKey == "" {
		return nil, fmt.Errorf("BFL_API_KEY is required")
	}
	if cfg.FluxPollInterval <= 0 {
		return nil, fmt.Errorf("FLUX_POLL_INTERVAL_MS must be positive")
	}
	if cfg.FluxPollTimeout < 0 || cfg.JobRetention < 0 {
		return nil, fmt.Errorf("FLUX_POLL_TIMEOUT_SECONDS and JOB_RETENTION_MINUTES must not be negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
