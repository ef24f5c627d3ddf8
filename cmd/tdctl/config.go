package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/pior/telldus"
)

const envPrefix = "TDCTL_"

type config struct {
	Host             string        `env:"HOST"`
	CommandPort      int           `env:"COMMAND_PORT"`
	EventPort        int           `env:"EVENT_PORT"`
	Timeout          time.Duration `env:"TIMEOUT"`
	ReconnectBackoff time.Duration `env:"RECONNECT_BACKOFF"`
	LogLevel         string        `env:"LOG_LEVEL"`
	MetricsAddr      string        `env:"METRICS_ADDR"`
}

type fileConfig struct {
	Host             string `toml:"host"`
	CommandPort      int    `toml:"command_port"`
	EventPort        int    `toml:"event_port"`
	Timeout          string `toml:"timeout"`
	ReconnectBackoff string `toml:"reconnect_backoff"`
	LogLevel         string `toml:"log_level"`
	MetricsAddr      string `toml:"metrics_addr"`
}

func defaultConfig() config {
	return config{
		Host:             telldus.DefaultHost,
		CommandPort:      telldus.DefaultCommandPort,
		EventPort:        telldus.DefaultEventPort,
		Timeout:          5 * time.Second,
		ReconnectBackoff: telldus.DefaultReconnectBackoff,
		LogLevel:         "info",
	}
}

// loadConfig overlays the defaults with the file at path (skipped when path
// is empty) and then with TDCTL_* variables from environ. A nil environ
// reads the process environment.
func loadConfig(path string, environ map[string]string) (config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return config{}, err
		}
	}

	opts := env.Options{
		Prefix:      envPrefix,
		Environment: environ,
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

func applyFile(cfg *config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("host") {
		if host := strings.TrimSpace(raw.Host); host != "" {
			cfg.Host = host
		}
	}

	if meta.IsDefined("command_port") {
		cfg.CommandPort = raw.CommandPort
	}

	if meta.IsDefined("event_port") {
		cfg.EventPort = raw.EventPort
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("reconnect_backoff") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReconnectBackoff))
		if err != nil {
			return fmt.Errorf("parse reconnect_backoff: %w", err)
		}
		cfg.ReconnectBackoff = d
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return nil
}
