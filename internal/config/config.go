// Package config loads service settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// Config is the service configuration.
type Config struct {
	Listen       string        `toml:"listen"`
	PollInterval time.Duration `toml:"poll_interval"`
	FetchTimeout time.Duration `toml:"fetch_timeout"`
	// ProxyURL is an optional allorigins-style relay endpoint.
	ProxyURL     string   `toml:"proxy_url"`
	UserAgent    string   `toml:"user_agent"`
	LogLevel     string   `toml:"log_level"`
	LogJSON      bool     `toml:"log_json"`
	LenientItems bool     `toml:"lenient_items"`
	Feeds        []string `toml:"feeds"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen:       ":8080",
		PollInterval: 5 * time.Second,
		FetchTimeout: 10 * time.Second,
		UserAgent:    "infowatch/1.0",
		LogLevel:     "info",
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}
	for _, key := range meta.Undecoded() {
		log.Warnf("Config: ignoring unknown key %q in %s", key.String(), path)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// ApplyLogging configures the global logger.
func (c Config) ApplyLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if c.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return nil
}
