package main

import (
	"github.com/spf13/cobra"
)

func archiveCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived payloads in GCS",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cat <gs://bucket/object>",
		Short: "Print an archived object to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.commandContext(cmd)
			deps, err := c.open(ctx)
			if err != nil {
				return err
			}
			data, err := deps.Archive.Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
