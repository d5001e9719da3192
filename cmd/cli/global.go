package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vrnvu/dbfacade/internal/client"
	"github.com/vrnvu/dbfacade/internal/config"
	"github.com/vrnvu/dbfacade/internal/dsn"
	"github.com/vrnvu/dbfacade/internal/logger"
)

type cmdGlobal struct {
	flagConfig         string
	flagDriver         string
	flagDSN            string
	flagLogLevel       string
	flagConnectRetries int
	flagNative         bool

	cfg config.Config
	log logger.Logger
}

// PreRun loads the config file, applies the flags on top and sets up logging
func (c *cmdGlobal) PreRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.flagConfig)
	if err != nil {
		return err
	}

	if c.flagDriver != "" {
		cfg.Driver = c.flagDriver
	}

	if c.flagDSN != "" {
		cfg.DSN = c.flagDSN
	}

	if c.flagLogLevel != "" {
		cfg.LogLevel = c.flagLogLevel
	}

	if c.flagConnectRetries >= 0 {
		cfg.ConnectRetries = c.flagConnectRetries
	}

	log, err := logger.New(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.log = log
	return nil
}

// open validates the merged config and opens a client
// --native skips database/sql and holds a single pgx connection
func (c *cmdGlobal) open(ctx context.Context) (client.Client, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	opts := append(client.FromConfig(c.cfg), client.WithLogger(c.log))
	if c.flagNative {
		driver, err := dsn.Normalize(c.cfg.Driver)
		if err != nil {
			return nil, err
		}
		if driver != dsn.Postgres {
			return nil, fmt.Errorf("--native needs the %s driver, got %s", dsn.Postgres, driver)
		}

		return client.Connect(ctx, c.cfg.DSN, opts...)
	}

	return client.Open(ctx, c.cfg.Driver, c.cfg.DSN, opts...)
}

// statementArg reads the statement from stdin when it is "-"
func statementArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}

	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("Failed to read from stdin: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}

// bindArgs turns the extra command line arguments into statement arguments
func bindArgs(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}

	return out
}

func closeClient(db client.Client) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close: %v\n", err)
	}
}
