package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	bq "github.com/dvloznov/altcredit/internal/bigquery"
	"github.com/spf13/cobra"
)

func queryCmd(c *cli) *cobra.Command {
	var (
		maxRows int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SELECT against the warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.commandContext(cmd)
			deps, err := c.open(ctx)
			if err != nil {
				return err
			}
			repo, err := deps.RequireWarehouse()
			if err != nil {
				return err
			}

			res, err := repo.RunReadOnlyQuery(ctx, args[0], maxRows)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printQueryResult(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().IntVarP(&maxRows, "max-rows", "n", bq.DefaultMaxRows, "maximum rows to return")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func printQueryResult(w io.Writer, res *bq.QueryResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			if v := row[col]; v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.Truncated {
		fmt.Fprintf(w, "(truncated to %d rows)\n", len(res.Rows))
	}
	return nil
}

func spendCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "spend",
		Short: "Summarize order count and spend per merchant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.commandContext(cmd)
			deps, err := c.open(ctx)
			if err != nil {
				return err
			}
			repo, err := deps.RequireWarehouse()
			if err != nil {
				return err
			}

			rows, err := repo.MerchantSpend(ctx)
			if err != nil {
				return err
			}
			return printSpend(cmd.OutOrStdout(), rows)
		},
	}
}

func printSpend(w io.Writer, rows []bq.MerchantSpendRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MERCHANT\tORDERS\tSPEND\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t\n", r.MerchantName, r.OrderCount, r.TotalSpend)
	}
	return tw.Flush()
}
