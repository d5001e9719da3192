package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type cmdExec struct {
	global *cmdGlobal
}

func (c *cmdExec) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "exec <statement> [args...]"
	cmd.Short = "Execute a statement that does not return rows"
	cmd.Long = `Execute a statement that does not return rows

  Extra arguments are bound to the statement placeholders (? for mysql and
  sqlite, $1 for postgres). If <statement> is "-" it is read from stdin.`
	cmd.Args = cobra.MinimumNArgs(1)
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdExec) Run(cmd *cobra.Command, args []string) error {
	statement, err := statementArg(cmd, args[0])
	if err != nil {
		return err
	}

	db, err := c.global.open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeClient(db)

	res, err := db.Exec(cmd.Context(), statement, bindArgs(args[1:])...)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rows affected: %d\n", res.RowsAffected)
	if res.LastInsertID != 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Last insert id: %d\n", res.LastInsertID)
	}

	return nil
}
