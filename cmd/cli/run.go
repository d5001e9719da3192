package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vrnvu/dbfacade/internal/client"
	"github.com/vrnvu/dbfacade/internal/config"
	"github.com/vrnvu/dbfacade/internal/metrics"
	"github.com/vrnvu/dbfacade/internal/statement"
	"github.com/vrnvu/dbfacade/internal/workerpool"
)

type cmdRun struct {
	global *cmdGlobal

	flagWorkers     int
	flagStopOnError bool
	flagPrint       bool
	flagExact       bool
}

func (c *cmdRun) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "run [file]"
	cmd.Short = "Run a SQL script through a pool of workers"
	cmd.Long = `Run a SQL script through a pool of workers

  Statements are split on ';'. Statements on the same table always run on
  the same worker, in script order. Without [file] the script is read from
  stdin. The aggregated latency metrics are printed at the end.`
	cmd.Args = cobra.MaximumNArgs(1)
	cmd.Flags().IntVarP(&c.flagWorkers, "workers", "w", 0, "Number of workers (defaults to the config, then the number of cores)")
	cmd.Flags().BoolVar(&c.flagStopOnError, "stop-on-error", false, "Stop at the first failed statement")
	cmd.Flags().BoolVar(&c.flagPrint, "print", false, "Print the rows of every query")
	cmd.Flags().BoolVar(&c.flagExact, "exact", false, fmt.Sprintf("Keep every latency for an exact median, stopping after %d statements", metrics.SimpleMaxCapacity))
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdRun) Run(cmd *cobra.Command, args []string) error {
	if c.flagWorkers != 0 {
		c.global.cfg.Workers = c.flagWorkers
	}

	if c.global.cfg.Workers < 1 || c.global.cfg.Workers > config.MaxWorkers {
		return fmt.Errorf("number of workers must be between 1 and %d", config.MaxWorkers)
	}

	var input io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("Failed to open script: %w", err)
		}
		defer file.Close()
		input = file
	} else {
		c.global.log.Info("No script given, reading from stdin")
	}

	db, err := c.global.open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeClient(db)

	out := cmd.OutOrStdout()
	opts := []workerpool.Option{
		workerpool.WithLogger(c.global.log),
		workerpool.WithStopOnError(c.flagStopOnError),
	}
	if c.flagExact {
		opts = append(opts, workerpool.WithRecorder(metrics.NewSimple()))
	}
	if c.flagPrint {
		opts = append(opts, workerpool.WithOnResult(func(o workerpool.Outcome) {
			if o.Query == nil {
				return
			}
			fmt.Fprintf(out, "=> line %d: %s\n", o.Statement.Line, o.Statement.Text)
			printTable(out, o.Query)
		}))
	}

	wp, err := workerpool.New(c.global.cfg.Workers, db, statement.NewScriptReader(input), opts...)
	if err != nil {
		return err
	}

	result, err := wp.Run(cmd.Context())
	fmt.Fprint(out, result.Table())
	if pool, ok := db.(*client.DB); ok {
		stats := pool.PoolStats()
		fmt.Fprintf(out, "Connections: %d open, %d in use, %d idle, %d waits\n", stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount)
	}
	if err != nil {
		return err
	}

	if result.FailedQueries > 0 {
		return fmt.Errorf("%d statements failed", result.FailedQueries)
	}

	return nil
}
