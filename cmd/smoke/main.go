package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/vrnvu/dbfacade/internal/client"
	"github.com/vrnvu/dbfacade/internal/logger"
	"github.com/vrnvu/dbfacade/internal/metrics"
)

// Smoke test database connectivity: open, ping, insert, query, close
func main() {
	driver := pflag.String("driver", "mysql", "Driver name: mysql, pgx or sqlite3")
	dsn := pflag.String("dsn", "user:password@tcp(127.0.0.1:3306)/default", "Connection string")
	create := pflag.Bool("create", false, "Create the Test table first")
	logLevel := pflag.String("log-level", "info", "Log level")
	pflag.Parse()

	log, err := logger.New(*logLevel, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := smoke(context.Background(), log, *driver, *dsn, *create); err != nil {
		log.Error("Smoke test failed", logger.Ctx{"err": err})
		os.Exit(1)
	}
}

func smoke(ctx context.Context, log logger.Logger, driver, dsn string, create bool) error {
	// a handful of statements, keep every latency
	db, err := client.Open(ctx, driver, dsn, client.WithLogger(log), client.WithRecorder(metrics.NewSimple()))
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println(db.Alive(ctx))

	if create {
		if _, err := db.Exec(ctx, "CREATE TABLE IF NOT EXISTS Test (Value1 INT, Value2 VARCHAR(64))"); err != nil {
			return err
		}
	}

	res, err := db.Exec(ctx, "Insert Into Test (Value1,Value2) VALUES (5,'hellooo')")
	if err != nil {
		return err
	}
	fmt.Println("Rows impacted", res.RowsAffected)

	results, err := db.Query(ctx, "SELECT * FROM Test")
	if err != nil {
		return err
	}
	fmt.Println("Result count", results.Len())

	b, err := json.Marshal(results.Rows)
	if err != nil {
		return err
	}
	fmt.Println(string(b))

	fmt.Print(db.Stats().Table())
	return nil
}
