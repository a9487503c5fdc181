package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/dvloznov/altcredit/internal/bigquery"
)

// insertBatchSize bounds the rows sent per streaming insert request.
const insertBatchSize = 500

// InsertKnotTransactionsWithClient streams rows into knot_transactions.
func InsertKnotTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*KnotTransactionRow) error {
	if err := putBatches(ctx, ds.handle(client).Table(bq.KnotTransactionsTable).Inserter(), rows); err != nil {
		return fmt.Errorf("InsertKnotTransactions: %w", err)
	}
	return nil
}

// InsertKnotProductsWithClient streams rows into knot_products.
func InsertKnotProductsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*KnotProductRow) error {
	if err := putBatches(ctx, ds.handle(client).Table(bq.KnotProductsTable).Inserter(), rows); err != nil {
		return fmt.Errorf("InsertKnotProducts: %w", err)
	}
	return nil
}

// InsertNessieRecordsWithClient streams rows into nessie_records.
func InsertNessieRecordsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*NessieRecordRow) error {
	if err := putBatches(ctx, ds.handle(client).Table(bq.NessieRecordsTable).Inserter(), rows); err != nil {
		return fmt.Errorf("InsertNessieRecords: %w", err)
	}
	return nil
}

func putBatches[T any](ctx context.Context, inserter *bigquery.Inserter, rows []T) error {
	for _, batch := range batches(rows, insertBatchSize) {
		if err := inserter.Put(ctx, batch); err != nil {
			return fmt.Errorf("inserting rows: %w", err)
		}
	}
	return nil
}

// batches splits rows into consecutive slices of at most size elements.
func batches[T any](rows []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// TruncateTableWithClient deletes all rows of one of the warehouse tables.
func TruncateTableWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, table string) error {
	if err := bq.ValidateTable(table); err != nil {
		return fmt.Errorf("TruncateTable: %w", err)
	}

	q := client.Query("TRUNCATE TABLE " + ds.qualified(table))
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("TruncateTable: run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("TruncateTable: wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("TruncateTable: job error: %w", err)
	}
	return nil
}
