package config

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "inkpress.db"

	envListenAddr = "INKPRESS_LISTEN_ADDR"
	envDBPath     = "INKPRESS_DB_PATH"
	envLogLevel   = "INKPRESS_LOG_LEVEL"
	envPoolSize   = "INKPRESS_POOL_SIZE"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level
	PoolSize   int
}

// Load reads configuration from environment variables with sensible defaults.
// PoolSize defaults to the number of CPUs; the watermark work is CPU-bound so
// more workers than cores only adds queue churn.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
		PoolSize:   runtime.NumCPU(),
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envPoolSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.PoolSize = n
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
