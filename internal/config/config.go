package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Defaults mirror the ports the relay has always been deployed on.
const (
	DefaultRelayAddr       = ":80"
	DefaultHealthAddr      = ":8000"
	DefaultSendBuffer      = 256
	DefaultWriteTimeout    = 10 * time.Second
	DefaultReadLimit       = 32768
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	RelayAddr   string `validate:"required,hostname_port"`
	HealthAddr  string `validate:"required,hostname_port,nefield=RelayAddr"`
	MetricsAddr string `validate:"omitempty,hostname_port"`

	SendBuffer     int           `validate:"min=1"`
	WriteTimeout   time.Duration `validate:"gt=0"`
	ReadLimit      int64         `validate:"min=1"`
	AllowedOrigins []string
	// UpgradeRate caps WebSocket upgrades per client IP per second. Zero disables the limit.
	UpgradeRate float64 `validate:"gte=0"`

	ShutdownTimeout time.Duration `validate:"gt=0"`

	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	return &Config{
		RelayAddr:       DefaultRelayAddr,
		HealthAddr:      DefaultHealthAddr,
		SendBuffer:      DefaultSendBuffer,
		WriteTimeout:    DefaultWriteTimeout,
		ReadLimit:       DefaultReadLimit,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogFormat:       "text",
		LogLevel:        "info",
	}
}

// New loads configuration from a .env file (if present) and environment variables.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// slog is not configured yet; the default handler is fine here.
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a configuration from the given lookup function and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := getenv("RELAY_ADDR"); v != "" {
		cfg.RelayAddr = v
	}
	if v := getenv("HEALTH_ADDR"); v != "" {
		cfg.HealthAddr = v
	}
	cfg.MetricsAddr = getenv("METRICS_ADDR")

	var err error
	if cfg.SendBuffer, err = intVar(getenv, "RELAY_SEND_BUFFER", cfg.SendBuffer); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = durationVar(getenv, "RELAY_WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return nil, err
	}
	readLimit, err := intVar(getenv, "RELAY_READ_LIMIT", int(cfg.ReadLimit))
	if err != nil {
		return nil, err
	}
	cfg.ReadLimit = int64(readLimit)
	if cfg.ShutdownTimeout, err = durationVar(getenv, "SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}
	cfg.AllowedOrigins = splitList(getenv("RELAY_ALLOWED_ORIGINS"))
	if cfg.UpgradeRate, err = floatVar(getenv, "RELAY_UPGRADE_RATE", cfg.UpgradeRate); err != nil {
		return nil, err
	}

	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func floatVar(getenv func(string) string, key string, def float64) (float64, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
