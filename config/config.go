// Package config loads server configuration from flags and environment.
package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Config holds all application configuration.
type Config struct {
	Host           string
	Port           int
	RequestTimeout int // seconds
	MaxConcurrency int
	Backlog        int
	Debug          bool
	Env            string
}

// New loads configuration from flags, with environment overrides for
// HOST and PORT.
func New() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Host, "host", "127.0.0.1", "address to listen on")
	flag.IntVar(&cfg.Port, "port", 8081, "port to listen on")
	flag.IntVar(&cfg.RequestTimeout, "request-timeout", 3, "time for a client to send its complete request head (seconds)")
	flag.IntVar(&cfg.MaxConcurrency, "max-concurrency", 16, "maximum simultaneously served connections")
	flag.IntVar(&cfg.Backlog, "backlog", 32, "listen backlog (at least max-concurrency)")
	flag.BoolVar(&cfg.Debug, "debug", false, "include fault details and traces in 500 responses")
	flag.StringVar(&cfg.Env, "env", "development", "environment (development/production)")

	flag.Parse()

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}

	return cfg
}

// Validate checks the configuration for values the server cannot run
// with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return errors.Errorf("request-timeout must be positive, got %d", c.RequestTimeout)
	}
	if c.MaxConcurrency <= 0 {
		return errors.Errorf("max-concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.Backlog < c.MaxConcurrency {
		return errors.Errorf("backlog %d smaller than max-concurrency %d", c.Backlog, c.MaxConcurrency)
	}
	return nil
}
