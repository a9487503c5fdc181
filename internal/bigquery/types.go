package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// Table names in the warehouse dataset.
const (
	KnotTransactionsTable = "knot_transactions"
	KnotProductsTable     = "knot_products"
	NessieRecordsTable    = "nessie_records"
)

// Tables lists every table the loaders write to, in load order.
var Tables = []string{KnotTransactionsTable, KnotProductsTable, NessieRecordsTable}

// WarehouseRepository provides the warehouse operations used by the loaders,
// the chatbot bridge and the API.
type WarehouseRepository interface {
	// InsertKnotTransactions streams flattened Knot orders into knot_transactions.
	InsertKnotTransactions(ctx context.Context, rows []*KnotTransactionRow) error

	// InsertKnotProducts streams flattened order lines into knot_products.
	InsertKnotProducts(ctx context.Context, rows []*KnotProductRow) error

	// InsertNessieRecords streams normalized Nessie records into nessie_records.
	InsertNessieRecords(ctx context.Context, rows []*NessieRecordRow) error

	// TruncateTable removes every row of table, used by replace-mode loads.
	TruncateTable(ctx context.Context, table string) error

	// RunReadOnlyQuery executes a single SELECT statement and returns at most maxRows rows.
	RunReadOnlyQuery(ctx context.Context, sql string, maxRows int) (*QueryResult, error)

	// MerchantSpend summarizes order count and spend per merchant, highest spend first.
	MerchantSpend(ctx context.Context) ([]MerchantSpendRow, error)

	// QueryUserOrders returns the newest orders pulled for an external user id.
	QueryUserOrders(ctx context.Context, externalUserID string, limit int) ([]*KnotTransactionRow, error)
}

// KnotTransactionRow represents one merchant order in knot_transactions.
type KnotTransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	ExternalID    string `bigquery:"external_id"`

	ExternalUserID string `bigquery:"external_user_id"`

	MerchantID   int64  `bigquery:"merchant_id"`
	MerchantName string `bigquery:"merchant_name"`

	Datetime    bigquery.NullTimestamp `bigquery:"datetime"`
	URL         bigquery.NullString    `bigquery:"url"`
	OrderStatus bigquery.NullString    `bigquery:"order_status"`

	PaymentMethodExternalID        bigquery.NullString `bigquery:"payment_method_external_id"`
	PaymentMethodType              bigquery.NullString `bigquery:"payment_method_type"`
	PaymentMethodBrand             bigquery.NullString `bigquery:"payment_method_brand"`
	PaymentMethodLastFour          bigquery.NullString `bigquery:"payment_method_last_four"`
	PaymentMethodTransactionAmount *big.Rat            `bigquery:"payment_method_transaction_amount"`

	PriceSubTotal *big.Rat `bigquery:"price_sub_total"`
	PriceTotal    *big.Rat `bigquery:"price_total"`
	PriceCurrency string   `bigquery:"price_currency"`

	TotalDiscount *big.Rat `bigquery:"total_discount"`
	TotalFee      *big.Rat `bigquery:"total_fee"`
	TotalTax      *big.Rat `bigquery:"total_tax"`
	TotalTip      *big.Rat `bigquery:"total_tip"`

	AdjustmentsJSON bigquery.NullJSON `bigquery:"adjustments_json"`

	LoadedTS time.Time `bigquery:"loaded_ts"`
}

// KnotProductRow represents one product line of an order in knot_products.
type KnotProductRow struct {
	TransactionID string `bigquery:"transaction_id"`
	MerchantID    int64  `bigquery:"merchant_id"`
	MerchantName  string `bigquery:"merchant_name"`

	ProductExternalID bigquery.NullString `bigquery:"product_external_id"`
	ProductName       string              `bigquery:"product_name"`
	ProductURL        bigquery.NullString `bigquery:"product_url"`
	Quantity          bigquery.NullInt64  `bigquery:"quantity"`

	ProductSubTotal  *big.Rat `bigquery:"product_sub_total"`
	ProductTotal     *big.Rat `bigquery:"product_total"`
	ProductUnitPrice *big.Rat `bigquery:"product_unit_price"`

	Eligibility bigquery.NullString `bigquery:"eligibility"`

	LoadedTS time.Time `bigquery:"loaded_ts"`
}

// NessieRecordRow represents a bill, loan or deposit in nessie_records.
type NessieRecordRow struct {
	RecordID  string `bigquery:"record_id"`
	AccountID string `bigquery:"account_id"`
	Kind      string `bigquery:"kind"`

	Status      bigquery.NullString `bigquery:"status"`
	Amount      *big.Rat            `bigquery:"amount"`
	RecordDate  bigquery.NullDate   `bigquery:"record_date"`
	Description bigquery.NullString `bigquery:"description"`

	Payload bigquery.NullJSON `bigquery:"payload"`

	LoadedTS time.Time `bigquery:"loaded_ts"`
}

// MerchantSpendRow is one line of the merchant spend summary.
type MerchantSpendRow struct {
	MerchantName string  `bigquery:"merchant_name" json:"merchantName"`
	OrderCount   int64   `bigquery:"order_count" json:"orderCount"`
	TotalSpend   float64 `bigquery:"total_spend" json:"totalSpend"`
}

// QueryResult holds the rows of an ad-hoc read-only query keyed by column.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
}

// RatString formats a NUMERIC value with two decimals, treating nil as zero.
func RatString(r *big.Rat) string {
	if r == nil {
		return "0.00"
	}
	return r.FloatString(2)
}

// RatFloat converts a NUMERIC value to float64, treating nil as zero.
func RatFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}

// NullJSONFrom wraps raw JSON for a nullable JSON column. Empty input is NULL.
func NullJSONFrom(raw []byte) bigquery.NullJSON {
	if len(raw) == 0 {
		return bigquery.NullJSON{}
	}
	return bigquery.NullJSON{JSONVal: string(raw), Valid: true}
}

// NullString wraps s for a nullable STRING column. Empty input is NULL.
func NullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// ValidateTable reports whether table is one of the warehouse tables.
func ValidateTable(table string) error {
	for _, t := range Tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("unknown warehouse table %q", table)
}
