package bigquery

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/altcredit/internal/bigquery"
)

// RunReadOnlyQueryWithClient validates sql as a single SELECT, runs it with
// the dataset as default and collects at most maxRows rows.
func RunReadOnlyQueryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, sql string, maxRows int) (*QueryResult, error) {
	query, err := bq.ValidateReadOnly(sql)
	if err != nil {
		return nil, fmt.Errorf("RunReadOnlyQuery: %w", err)
	}
	if maxRows <= 0 {
		maxRows = bq.DefaultMaxRows
	}

	q := client.Query(query)
	q.DefaultProjectID = ds.ProjectID
	q.DefaultDatasetID = ds.DatasetID

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("RunReadOnlyQuery: query read: %w", err)
	}

	result := &QueryResult{Rows: []map[string]any{}}
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("RunReadOnlyQuery: iter next: %w", err)
		}
		if result.Columns == nil {
			for _, f := range it.Schema {
				result.Columns = append(result.Columns, f.Name)
			}
		}
		if len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}
		result.Rows = append(result.Rows, rowMap(result.Columns, values))
	}
	return result, nil
}

func rowMap(columns []string, values []bigquery.Value) map[string]any {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		if i < len(values) {
			row[col] = jsonValue(values[i])
		}
	}
	return row
}

// jsonValue converts BigQuery values that do not marshal naturally.
func jsonValue(v bigquery.Value) any {
	switch val := v.(type) {
	case *big.Rat:
		return bq.RatFloat(val)
	case civil.Date:
		return val.String()
	case civil.DateTime:
		return val.String()
	case civil.Time:
		return val.String()
	case []bigquery.Value:
		out := make([]any, len(val))
		for i := range val {
			out[i] = jsonValue(val[i])
		}
		return out
	}
	return v
}

// MerchantSpendWithClient counts orders and sums price_total per merchant.
func MerchantSpendWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]MerchantSpendRow, error) {
	q := client.Query(`
		SELECT
			merchant_name,
			COUNT(*) AS order_count,
			CAST(IFNULL(SUM(price_total), 0) AS FLOAT64) AS total_spend
		FROM ` + ds.qualified(bq.KnotTransactionsTable) + `
		GROUP BY merchant_name
		ORDER BY total_spend DESC
	`)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("MerchantSpend: query read: %w", err)
	}

	var rows []MerchantSpendRow
	for {
		var r MerchantSpendRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("MerchantSpend: iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// QueryUserOrdersWithClient returns up to limit orders for externalUserID,
// newest first.
func QueryUserOrdersWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, externalUserID string, limit int) ([]*KnotTransactionRow, error) {
	if limit <= 0 {
		limit = 100
	}

	q := client.Query(`
		SELECT
			transaction_id,
			external_id,
			external_user_id,
			merchant_id,
			merchant_name,
			datetime,
			url,
			order_status,
			payment_method_external_id,
			payment_method_type,
			payment_method_brand,
			payment_method_last_four,
			payment_method_transaction_amount,
			price_sub_total,
			price_total,
			price_currency,
			total_discount,
			total_fee,
			total_tax,
			total_tip,
			adjustments_json,
			loaded_ts
		FROM ` + ds.qualified(bq.KnotTransactionsTable) + `
		WHERE external_user_id = @external_user_id
		ORDER BY datetime DESC
		LIMIT @limit
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "external_user_id", Value: externalUserID},
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryUserOrders: query read: %w", err)
	}

	var rows []*KnotTransactionRow
	for {
		var r KnotTransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryUserOrders: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
