// Package config reads process settings from the environment.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultLogLevel        = "info"
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds everything the server needs at startup.
type Config struct {
	Host            string
	Port            int
	LogLevel        string
	MetricsAddr     string
	ShutdownTimeout time.Duration
	APIDocs         bool
}

// Addr is the host:port the API listener binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads the environment, applying defaults for unset variables. A variable that is set but
// cannot be parsed is an error; it is never silently replaced by its default.
func Load() (Config, error) {
	cfg := Config{
		Host:            envOr("HOST", defaultHost),
		Port:            defaultPort,
		LogLevel:        strings.ToLower(envOr("LOG_LEVEL", defaultLogLevel)),
		MetricsAddr:     strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		ShutdownTimeout: defaultShutdownTimeout,
	}

	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parse PORT %q", v)
		}
		if port < 1 || port > 65535 {
			return Config{}, errors.Errorf("PORT %d out of range 1-65535", port)
		}
		cfg.Port = port
	}

	if v, ok := lookup("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parse SHUTDOWN_TIMEOUT %q", v)
		}
		if d <= 0 {
			return Config{}, errors.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", d)
		}
		cfg.ShutdownTimeout = d
	}

	if v, ok := lookup("API_DOCS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parse API_DOCS %q", v)
		}
		cfg.APIDocs = b
	}

	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			return Config{}, errors.Wrapf(err, "parse METRICS_ADDR %q", cfg.MetricsAddr)
		}
	}

	return cfg, nil
}

// lookup returns a trimmed, non-empty environment value.
func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func envOr(key, fallback string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return fallback
}
