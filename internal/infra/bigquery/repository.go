package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/altcredit/internal/config"
	"google.golang.org/api/option"

	bq "github.com/dvloznov/altcredit/internal/bigquery"
)

// Re-export shared row types so callers only import this package.
type (
	WarehouseRepository = bq.WarehouseRepository
	KnotTransactionRow  = bq.KnotTransactionRow
	KnotProductRow      = bq.KnotProductRow
	NessieRecordRow     = bq.NessieRecordRow
	MerchantSpendRow    = bq.MerchantSpendRow
	QueryResult         = bq.QueryResult
)

// Dataset identifies the project and dataset every operation targets.
type Dataset struct {
	ProjectID string
	DatasetID string
}

func (d Dataset) handle(client *bigquery.Client) *bigquery.Dataset {
	return client.DatasetInProject(d.ProjectID, d.DatasetID)
}

// qualified returns the backtick-quoted project.dataset.table name.
func (d Dataset) qualified(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, table)
}

// Repository is the BigQuery implementation of WarehouseRepository. It holds
// one client shared by all operations.
type Repository struct {
	client  *bigquery.Client
	dataset Dataset
}

// NewRepository opens a client for the configured project. A credentials
// file is used when set, otherwise Application Default Credentials.
func NewRepository(ctx context.Context, cfg config.WarehouseConfig) (*Repository, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client:  client,
		dataset: Dataset{ProjectID: cfg.ProjectID, DatasetID: cfg.DatasetID},
	}, nil
}

// Client exposes the underlying client, used by the migration runner.
func (r *Repository) Client() *bigquery.Client {
	return r.client
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertKnotTransactions delegates to InsertKnotTransactionsWithClient with the shared client.
func (r *Repository) InsertKnotTransactions(ctx context.Context, rows []*KnotTransactionRow) error {
	return InsertKnotTransactionsWithClient(ctx, r.client, r.dataset, rows)
}

// InsertKnotProducts delegates to InsertKnotProductsWithClient with the shared client.
func (r *Repository) InsertKnotProducts(ctx context.Context, rows []*KnotProductRow) error {
	return InsertKnotProductsWithClient(ctx, r.client, r.dataset, rows)
}

// InsertNessieRecords delegates to InsertNessieRecordsWithClient with the shared client.
func (r *Repository) InsertNessieRecords(ctx context.Context, rows []*NessieRecordRow) error {
	return InsertNessieRecordsWithClient(ctx, r.client, r.dataset, rows)
}

// TruncateTable delegates to TruncateTableWithClient with the shared client.
func (r *Repository) TruncateTable(ctx context.Context, table string) error {
	return TruncateTableWithClient(ctx, r.client, r.dataset, table)
}

// RunReadOnlyQuery delegates to RunReadOnlyQueryWithClient with the shared client.
func (r *Repository) RunReadOnlyQuery(ctx context.Context, sql string, maxRows int) (*QueryResult, error) {
	return RunReadOnlyQueryWithClient(ctx, r.client, r.dataset, sql, maxRows)
}

// MerchantSpend delegates to MerchantSpendWithClient with the shared client.
func (r *Repository) MerchantSpend(ctx context.Context) ([]MerchantSpendRow, error) {
	return MerchantSpendWithClient(ctx, r.client, r.dataset)
}

// QueryUserOrders delegates to QueryUserOrdersWithClient with the shared client.
func (r *Repository) QueryUserOrders(ctx context.Context, externalUserID string, limit int) ([]*KnotTransactionRow, error) {
	return QueryUserOrdersWithClient(ctx, r.client, r.dataset, externalUserID, limit)
}

var _ WarehouseRepository = (*Repository)(nil)
