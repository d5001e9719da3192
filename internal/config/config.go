// Package config loads the connection and runtime settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/vrnvu/dbfacade/internal/dsn"
)

// MaxWorkers bounds the worker pool size.
const MaxWorkers = 64

// Config holds everything needed to open a client and run statements.
type Config struct {
	Driver           string        `yaml:"driver"`
	DSN              string        `yaml:"dsn"`
	MaxOpenConns     int           `yaml:"max_open_conns"`
	MaxIdleConns     int           `yaml:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	ConnectRetries   int           `yaml:"connect_retries"`
	LogLevel         string        `yaml:"log_level"`
	Workers          int           `yaml:"workers"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		MaxOpenConns:   0,
		MaxIdleConns:   2,
		ConnectTimeout: 10 * time.Second,
		LogLevel:       "info",
		Workers:        min(runtime.NumCPU(), MaxWorkers),
	}
}

// Load reads path on top of Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the ranges of every field and the connection string.
func (c Config) Validate() error {
	var errs []error

	if err := dsn.Validate(c.Driver, c.DSN); err != nil {
		errs = append(errs, err)
	}

	if c.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("max_open_conns must not be negative"))
	}

	if c.MaxIdleConns < 0 {
		errs = append(errs, fmt.Errorf("max_idle_conns must not be negative"))
	}

	if c.ConnMaxLifetime < 0 {
		errs = append(errs, fmt.Errorf("conn_max_lifetime must not be negative"))
	}

	if c.ConnectTimeout < 0 || c.StatementTimeout < 0 {
		errs = append(errs, fmt.Errorf("timeouts must not be negative"))
	}

	if c.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("connect_retries must not be negative"))
	}

	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}

	if c.Workers < 1 || c.Workers > MaxWorkers {
		errs = append(errs, fmt.Errorf("workers must be between 1 and %d", MaxWorkers))
	}

	return errors.Join(errs...)
}
