package main

import (
	"fmt"

	"github.com/dvloznov/altcredit/internal/loader"
	"github.com/spf13/cobra"
)

func loadCmd(c *cli) *cobra.Command {
	var (
		mode    string
		fromCSV string
	)

	cmd := &cobra.Command{
		Use:   "load knot|nessie",
		Short: "Pull a source, archive the raw payloads and insert the rows into BigQuery",
		Long: `Pull a source, archive the raw payloads and insert the rows into BigQuery.

With --mode replace the target tables are truncated first. With --from-csv
the Knot rows are read from files written by "pull knot" instead of the API.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{loader.SourceKnot.String(), loader.SourceNessie.String()},
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := loader.ParseSource(args[0])
			if err != nil {
				return err
			}
			m, err := loader.ParseMode(mode)
			if err != nil {
				return err
			}
			if fromCSV != "" && source != loader.SourceKnot {
				return fmt.Errorf("--from-csv only applies to knot")
			}

			ctx := c.commandContext(cmd)
			deps, err := c.open(ctx)
			if err != nil {
				return err
			}
			l, err := deps.Loader()
			if err != nil {
				return err
			}

			var res *loader.Result
			if fromCSV != "" {
				txs, products, err := readKnotCSVs(fromCSV)
				if err != nil {
					return err
				}
				res, err = l.LoadKnotRecords(ctx, m, txs, products)
				if err != nil {
					return err
				}
			} else {
				res, err = l.Load(ctx, source, m)
				if err != nil {
					return err
				}
			}

			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(loader.ModeAppend), "append or replace")
	cmd.Flags().StringVar(&fromCSV, "from-csv", "", "load Knot rows from the CSV files in this directory")
	return cmd
}
