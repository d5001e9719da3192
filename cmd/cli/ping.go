package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type cmdPing struct {
	global *cmdGlobal
}

func (c *cmdPing) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "ping"
	cmd.Short = "Check the database is reachable"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdPing) Run(cmd *cobra.Command, _ []string) error {
	db, err := c.global.open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeClient(db)

	if err := db.Ping(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "alive")
	return nil
}
