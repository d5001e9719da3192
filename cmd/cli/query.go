package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vrnvu/dbfacade/internal/client"
)

type cmdQuery struct {
	global *cmdGlobal

	flagFormat string
}

func (c *cmdQuery) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "query <statement> [args...]"
	cmd.Short = "Run a query and print its rows"
	cmd.Long = `Run a query and print its rows

  Extra arguments are bound to the statement placeholders. If <statement>
  is "-" it is read from stdin.`
	cmd.Args = cobra.MinimumNArgs(1)
	cmd.Flags().StringVarP(&c.flagFormat, "format", "f", "table", "Output format: table or json")
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdQuery) Run(cmd *cobra.Command, args []string) error {
	if c.flagFormat != "table" && c.flagFormat != "json" {
		return fmt.Errorf("Invalid format %q", c.flagFormat)
	}

	statement, err := statementArg(cmd, args[0])
	if err != nil {
		return err
	}

	db, err := c.global.open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeClient(db)

	result, err := db.Query(cmd.Context(), statement, bindArgs(args[1:])...)
	if err != nil {
		return err
	}

	if c.flagFormat == "json" {
		return printJSON(cmd.OutOrStdout(), result)
	}

	printTable(cmd.OutOrStdout(), result)
	fmt.Fprintf(cmd.OutOrStdout(), "Result count: %d\n", result.Len())
	return nil
}

func printJSON(w io.Writer, result *client.QueryResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Rows)
}

func printTable(w io.Writer, result *client.QueryResult) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(result.Columns)
	for _, row := range result.Rows {
		data := make([]string, 0, len(result.Columns))
		for _, col := range result.Columns {
			value := row[col]
			if value == nil {
				data = append(data, "NULL")
				continue
			}
			data = append(data, fmt.Sprintf("%v", value))
		}

		table.Append(data)
	}

	table.Render()
}
