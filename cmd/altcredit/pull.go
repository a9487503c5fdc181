package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/altcredit/internal/knot"
	"github.com/dvloznov/altcredit/internal/loader"
	"github.com/dvloznov/altcredit/internal/nessie"
	"github.com/spf13/cobra"
)

// File names used for pulled Knot rows, matching what load --from-csv reads.
const (
	transactionsCSV = "knot_transactions.csv"
	productsCSV     = "knot_products.csv"
)

func pullCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull source data to local files without touching the warehouse",
	}
	cmd.AddCommand(pullKnotCmd(c))
	cmd.AddCommand(pullNessieCmd(c))
	return cmd
}

func pullKnotCmd(c *cli) *cobra.Command {
	var csvDir string

	cmd := &cobra.Command{
		Use:   "knot",
		Short: "Pull every configured merchant from the Knot sync API into CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.commandContext(cmd)
			deps, err := c.open(ctx)
			if err != nil {
				return err
			}

			pull, err := knot.NewSyncClient(c.cfg.Knot, deps.HTTP).PullAll(ctx, c.cfg.Knot.Merchants)
			if err != nil {
				return err
			}
			if failed := pull.Failed(); len(failed) > 0 {
				c.log.Warn().Strs("merchants", failed).Msg("Some merchants failed to pull")
			}

			paths, err := writeKnotCSVs(csvDir, pull.Transactions, pull.Products)
			if err != nil {
				return err
			}
			for _, p := range paths {
				uri, err := deps.Archive.UploadFile(ctx, loader.SourceKnot.String(), p)
				if err != nil {
					return err
				}
				if uri != "" {
					c.log.Info().Str("uri", uri).Msg("Archived CSV")
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d transactions and %d products to %s\n",
				len(pull.Transactions), len(pull.Products), csvDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvDir, "csv-dir", ".", "directory for the CSV files")
	return cmd
}

// writeKnotCSVs writes the flattened rows to dir and returns the file paths.
func writeKnotCSVs(dir string, txs []knot.TransactionRecord, products []knot.ProductRecord) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	txPath := filepath.Join(dir, transactionsCSV)
	if err := writeFile(txPath, func(f *os.File) error { return loader.WriteTransactionsCSV(f, txs) }); err != nil {
		return nil, err
	}
	productPath := filepath.Join(dir, productsCSV)
	if err := writeFile(productPath, func(f *os.File) error { return loader.WriteProductsCSV(f, products) }); err != nil {
		return nil, err
	}
	return []string{txPath, productPath}, nil
}

// readKnotCSVs reads the files written by writeKnotCSVs. A missing products
// file is treated as no products.
func readKnotCSVs(dir string) ([]knot.TransactionRecord, []knot.ProductRecord, error) {
	f, err := os.Open(filepath.Join(dir, transactionsCSV))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	txs, err := loader.ReadTransactionsCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", transactionsCSV, err)
	}

	pf, err := os.Open(filepath.Join(dir, productsCSV))
	if os.IsNotExist(err) {
		return txs, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer pf.Close()
	products, err := loader.ReadProductsCSV(pf)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", productsCSV, err)
	}
	return txs, products, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func pullNessieCmd(c *cli) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "nessie",
		Short: "Fetch bills, loans and deposits from Nessie as raw JSON files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateNessie(); err != nil {
				return err
			}
			ctx := c.commandContext(cmd)
			deps, err := c.open(ctx)
			if err != nil {
				return err
			}

			results, err := nessie.NewClient(c.cfg.Nessie, deps.HTTP).FetchAll(ctx)
			if err != nil {
				if len(results) == 0 {
					return err
				}
				c.log.Warn().Err(err).Msg("Some Nessie endpoints failed")
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}
			for _, r := range results {
				path := filepath.Join(outDir, fmt.Sprintf("nessie_%s.json", r.Kind))
				if err := os.WriteFile(path, r.Raw, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d %s to %s\n", len(r.Records), r.Kind, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for the JSON files")
	return cmd
}
