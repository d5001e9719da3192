package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newApp() *cobra.Command {
	app := &cobra.Command{}
	app.Use = "dbfacade"
	app.Short = "Run statements against mysql, postgres or sqlite"
	app.Long = `Run statements against mysql, postgres or sqlite

  The connection comes from --driver and --dsn, or from the driver and dsn
  keys of the --config YAML file. Flags win over the file.

  Example:
    dbfacade --driver mysql --dsn "user:password@tcp(127.0.0.1:3306)/default" query "SELECT * FROM Test"`
	app.SilenceUsage = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	globalCmd := &cmdGlobal{}
	app.PersistentFlags().StringVar(&globalCmd.flagConfig, "config", "", "Path to a YAML config file")
	app.PersistentFlags().StringVar(&globalCmd.flagDriver, "driver", "", "Driver name: mysql, pgx (postgres) or sqlite3")
	app.PersistentFlags().StringVar(&globalCmd.flagDSN, "dsn", "", "Connection string, e.g. user:password@tcp(host:port)/database")
	app.PersistentFlags().StringVar(&globalCmd.flagLogLevel, "log-level", "", "Log level: error, warn, info, debug or trace")
	app.PersistentFlags().IntVar(&globalCmd.flagConnectRetries, "connect-retries", -1, "Retries of the initial ping, with exponential backoff")
	app.PersistentFlags().BoolVar(&globalCmd.flagNative, "native", false, "Use a single native pgx connection instead of database/sql (pgx only)")
	app.PersistentPreRunE = globalCmd.PreRun

	pingCmd := cmdPing{global: globalCmd}
	app.AddCommand(pingCmd.Command())

	execCmd := cmdExec{global: globalCmd}
	app.AddCommand(execCmd.Command())

	queryCmd := cmdQuery{global: globalCmd}
	app.AddCommand(queryCmd.Command())

	runCmd := cmdRun{global: globalCmd}
	app.AddCommand(runCmd.Command())

	return app
}
