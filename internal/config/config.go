package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"latksync/internal/archive"
	"latksync/internal/bridge"
	"latksync/internal/relay"
	"latksync/internal/socketio"
	"latksync/internal/stroke"
)

// Archive modes accepted by ARCHIVE_MODE.
const (
	ArchiveMemory   = archive.ModeMemory
	ArchiveRedis    = archive.ModeRedis
	ArchivePostgres = archive.ModePostgres
	ArchiveHybrid   = archive.ModeHybrid
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Bridge target
	ServerAddress string  `env:"LATK_SERVER_ADDRESS" default:"vr.fox-gieg.com"`
	ServerPort    int     `env:"LATK_SERVER_PORT" default:"8080"`
	Scaler        float64 `env:"LATK_SCALER" default:"1"`
	Debug         bool    `env:"LATK_DEBUG" default:"true"`
	AuthToken     string  `env:"LATK_AUTH_TOKEN"`

	// Sink policy
	KillStrokes bool          `env:"LATK_KILL_STROKES" default:"false"`
	StrokeLife  time.Duration `env:"LATK_STROKE_LIFE" default:"10s"`

	// Transport
	EmitRate          float64       `env:"LATK_EMIT_RATE" default:"10"`
	EmitBurst         int           `env:"LATK_EMIT_BURST" default:"20"`
	Reconnect         bool          `env:"LATK_RECONNECT" default:"true"`
	ReconnectDelay    time.Duration `env:"LATK_RECONNECT_DELAY" default:"2s"`
	ReconnectAttempts int           `env:"LATK_RECONNECT_ATTEMPTS" default:"0"`

	// Relay
	RelayPort      int    `env:"RELAY_PORT" default:"8080"`
	RelayJWTSecret string `env:"RELAY_JWT_SECRET"`

	// Archive
	ArchiveMode string        `env:"ARCHIVE_MODE" default:"memory"`
	RedisURL    string        `env:"REDIS_URL" default:"redis://localhost:6379"`
	DatabaseURL string        `env:"DATABASE_URL"`
	ArchiveTTL  time.Duration `env:"ARCHIVE_TTL" default:"24h"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig reads .env when present, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		// system env vars are enough
		slog.Debug("env_file_not_loaded", "error", err)
	}
	return loadFromEnv()
}

func loadFromEnv() (*Config, error) {
	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// Bridge
	if err := loadEnvString(&config.ServerAddress, "LATK_SERVER_ADDRESS", "vr.fox-gieg.com"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ServerPort, "LATK_SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.Scaler, "LATK_SCALER", 1); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.Debug, "LATK_DEBUG", true); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.AuthToken, "LATK_AUTH_TOKEN", ""); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.KillStrokes, "LATK_KILL_STROKES", false); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.StrokeLife, "LATK_STROKE_LIFE", 10*time.Second); err != nil {
		return nil, err
	}

	// Transport
	if err := loadEnvFloat(&config.EmitRate, "LATK_EMIT_RATE", 10); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.EmitBurst, "LATK_EMIT_BURST", 20); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.Reconnect, "LATK_RECONNECT", true); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ReconnectDelay, "LATK_RECONNECT_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ReconnectAttempts, "LATK_RECONNECT_ATTEMPTS", 0); err != nil {
		return nil, err
	}

	// Relay
	if err := loadEnvInt(&config.RelayPort, "RELAY_PORT", 8080); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RelayJWTSecret, "RELAY_JWT_SECRET", ""); err != nil {
		return nil, err
	}

	// Archive
	if err := loadEnvString(&config.ArchiveMode, "ARCHIVE_MODE", ArchiveMemory); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", "redis://localhost:6379"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ArchiveTTL, "ARCHIVE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	// Logging
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.ServerAddress == "" {
		errors = append(errors, "LATK_SERVER_ADDRESS must not be empty")
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errors = append(errors, "LATK_SERVER_PORT must be between 1 and 65535")
	}
	if c.RelayPort < 0 || c.RelayPort > 65535 {
		errors = append(errors, "RELAY_PORT must be between 0 and 65535")
	}
	if c.Scaler == 0 {
		errors = append(errors, "LATK_SCALER must not be zero")
	}
	if c.EmitRate <= 0 {
		errors = append(errors, "LATK_EMIT_RATE must be positive")
	}
	if c.EmitBurst < 1 {
		errors = append(errors, "LATK_EMIT_BURST must be at least 1")
	}
	if c.ReconnectDelay <= 0 {
		errors = append(errors, "LATK_RECONNECT_DELAY must be positive")
	}
	if c.ReconnectAttempts < 0 {
		errors = append(errors, "LATK_RECONNECT_ATTEMPTS must not be negative")
	}
	if c.KillStrokes && c.StrokeLife <= 0 {
		errors = append(errors, "LATK_STROKE_LIFE must be positive when LATK_KILL_STROKES is set")
	}

	validModes := []string{ArchiveMemory, ArchiveRedis, ArchivePostgres, ArchiveHybrid}
	if !contains(validModes, c.ArchiveMode) {
		errors = append(errors, fmt.Sprintf("ARCHIVE_MODE must be one of: %s", strings.Join(validModes, ", ")))
	}
	if (c.ArchiveMode == ArchivePostgres || c.ArchiveMode == ArchiveHybrid) && c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required for ARCHIVE_MODE "+c.ArchiveMode)
	}
	if (c.ArchiveMode == ArchiveRedis || c.ArchiveMode == ArchiveHybrid) && c.RedisURL == "" {
		errors = append(errors, "REDIS_URL is required for ARCHIVE_MODE "+c.ArchiveMode)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	// an empty secret disables relay auth
	if c.RelayJWTSecret != "" && len(c.RelayJWTSecret) < 32 {
		errors = append(errors, "RELAY_JWT_SECRET should be at least 32 characters long")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// SocketAddress returns the bridge connection address.
func (c *Config) SocketAddress() string {
	return socketio.BuildAddress(c.ServerAddress, c.ServerPort)
}

// SocketOptions builds transport options; logger may be nil.
func (c *Config) SocketOptions(logger *slog.Logger) socketio.Options {
	opts := socketio.DefaultOptions()
	opts.EmitRate = rate.Limit(c.EmitRate)
	opts.EmitBurst = c.EmitBurst
	opts.Reconnect = c.Reconnect
	opts.ReconnectDelay = c.ReconnectDelay
	opts.MaxReconnectAttempts = c.ReconnectAttempts
	if c.AuthToken != "" {
		opts.Auth = map[string]any{"token": c.AuthToken}
	}
	if logger != nil {
		opts.Logger = logger
	}
	return opts
}

// BridgeOptions builds bridge options; logger may be nil.
func (c *Config) BridgeOptions(logger *slog.Logger) bridge.Options {
	opts := bridge.DefaultOptions()
	opts.Scaler = c.Scaler
	opts.Debug = c.Debug
	opts.Curve = stroke.CurveOptions{KillStrokes: c.KillStrokes, StrokeLife: c.StrokeLife}
	if logger != nil {
		opts.Logger = logger
	}
	return opts
}

// RelayOptions builds relay server options; logger may be nil.
func (c *Config) RelayOptions(logger *slog.Logger) relay.Options {
	opts := relay.DefaultOptions()
	opts.Addr = fmt.Sprintf(":%d", c.RelayPort)
	opts.JWTSecret = c.RelayJWTSecret
	if logger != nil {
		opts.Logger = logger
	}
	return opts
}

// ArchiveOptions builds the archive selection for the relay.
func (c *Config) ArchiveOptions(logger *slog.Logger) archive.Options {
	return archive.Options{
		Mode:        c.ArchiveMode,
		RedisURL:    c.RedisURL,
		DatabaseURL: c.DatabaseURL,
		TTL:         c.ArchiveTTL,
		Logger:      logger,
	}
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
