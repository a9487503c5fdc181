package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/altcredit/internal/scoring"
	"github.com/spf13/cobra"
)

func scoreCmd(c *cli) *cobra.Command {
	var (
		breakdown bool
		now       string
	)

	cmd := &cobra.Command{
		Use:   "score <file.json>",
		Short: "Score a transaction history read from a JSON file",
		Long: `Score a transaction history read from a JSON file.

The file holds either an array of transactions or an object with a
"transactions" array, as accepted by POST /api/score.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now()
			if now != "" {
				t, err := time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				at = t
			}

			records, err := readTransactions(args[0])
			if err != nil {
				return err
			}

			if breakdown {
				b, err := scoring.BreakdownAt(records, at)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b)
			}

			score, err := scoring.CalculateAt(records, at)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{
				"creditScore":      score,
				"transactionCount": len(records),
			})
		},
	}

	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "print the per-factor breakdown")
	cmd.Flags().StringVar(&now, "now", "", "evaluate at this RFC3339 time instead of the current time")
	return cmd
}

func readTransactions(path string) ([]scoring.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []scoring.Transaction
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &records)
	} else {
		var body struct {
			Transactions []scoring.Transaction `json:"transactions"`
		}
		err = json.Unmarshal(data, &body)
		records = body.Transactions
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
