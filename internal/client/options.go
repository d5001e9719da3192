package client

import (
	"time"

	"github.com/vrnvu/dbfacade/internal/config"
	"github.com/vrnvu/dbfacade/internal/logger"
	"github.com/vrnvu/dbfacade/internal/metrics"
)

type options struct {
	log              logger.Logger
	recorder         metrics.Recorder
	maxOpenConns     int
	maxIdleConns     int
	connMaxLifetime  time.Duration
	connectTimeout   time.Duration
	statementTimeout time.Duration
	connectRetries   int
}

func defaultOptions() options {
	return options{
		log:            logger.Discard(),
		maxIdleConns:   2,
		connectTimeout: 10 * time.Second,
	}
}

// Option configures Open
type Option func(*options)

// WithLogger sets the logger, the default discards everything
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithRecorder sets where statement latencies go, the default is a Reservoir
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithMaxOpenConns bounds the pool, 0 means unlimited
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		o.maxOpenConns = n
	}
}

func WithMaxIdleConns(n int) Option {
	return func(o *options) {
		o.maxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *options) {
		o.connMaxLifetime = d
	}
}

// WithConnectTimeout bounds every ping issued by Open
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = d
	}
}

// WithStatementTimeout bounds every Exec and Query, 0 means no timeout
func WithStatementTimeout(d time.Duration) Option {
	return func(o *options) {
		o.statementTimeout = d
	}
}

// WithConnectRetries retries the initial ping n times with exponential backoff
func WithConnectRetries(n int) Option {
	return func(o *options) {
		o.connectRetries = n
	}
}

// FromConfig turns the pool and timeout settings of cfg into options
func FromConfig(cfg config.Config) []Option {
	return []Option{
		WithMaxOpenConns(cfg.MaxOpenConns),
		WithMaxIdleConns(cfg.MaxIdleConns),
		WithConnMaxLifetime(cfg.ConnMaxLifetime),
		WithConnectTimeout(cfg.ConnectTimeout),
		WithStatementTimeout(cfg.StatementTimeout),
		WithConnectRetries(cfg.ConnectRetries),
	}
}
