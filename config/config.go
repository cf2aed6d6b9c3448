// Package config loads the rpcechod configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bjaus/rpcdispatch"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the daemon configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	HTTP     HTTPConfig    `yaml:"http"`
	Metrics  MetricsConfig `yaml:"metrics"`
	NATS     NATSConfig    `yaml:"nats"`
	Target   TargetConfig  `yaml:"target"`
}

// HTTPConfig configures the JSON-RPC listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint on the HTTP listener.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// NATSConfig configures the optional NATS transport. An empty URL disables
// it.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// TargetConfig is the target the daemon's endpoint serves.
type TargetConfig struct {
	Namespace string `yaml:"namespace"`
	Version   string `yaml:"version"`
	Topic     string `yaml:"topic"`
	Server    string `yaml:"server"`
	Exchange  string `yaml:"exchange"`
	Fanout    bool   `yaml:"fanout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr: ":8080",
			Path: "/rpc",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Target: TargetConfig{
			Version: rpcdispatch.DefaultVersion,
			Topic:   "echo",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.HTTP.Path, "/") {
		return fmt.Errorf("%w: http.path must start with /", ErrInvalidConfig)
	}
	if c.Metrics.Path != "" {
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path must start with /", ErrInvalidConfig)
		}
		if c.Metrics.Path == c.HTTP.Path {
			return fmt.Errorf("%w: metrics.path and http.path must differ", ErrInvalidConfig)
		}
	}
	if _, err := c.Target.Build(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.NATS.URL != "" && c.Target.Topic == "" {
		return fmt.Errorf("%w: target.topic is required when nats.url is set", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
	return level, nil
}

// Build converts the configuration into a validated Target.
func (t TargetConfig) Build() (rpcdispatch.Target, error) {
	opts := []rpcdispatch.TargetOption{
		rpcdispatch.WithNamespace(t.Namespace),
		rpcdispatch.WithVersion(t.Version),
		rpcdispatch.WithTopic(t.Topic),
		rpcdispatch.WithServer(t.Server),
		rpcdispatch.WithExchange(t.Exchange),
	}
	if t.Fanout {
		opts = append(opts, rpcdispatch.WithFanout())
	}
	return rpcdispatch.NewTarget(opts...)
}
