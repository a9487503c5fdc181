package bigquery

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxRows caps ad-hoc query results when the caller passes no limit.
const DefaultMaxRows = 500

// ErrReadOnlyQuery is returned for SQL that is not a single SELECT statement.
var ErrReadOnlyQuery = errors.New("only a single SELECT statement is allowed")

var writeKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "MERGE", "TRUNCATE", "DROP", "CREATE",
	"ALTER", "GRANT", "REVOKE", "CALL", "EXECUTE", "EXPORT", "LOAD",
}

// ValidateReadOnly normalizes sql and checks that it is one SELECT (or WITH
// ... SELECT) statement with no data or schema changing keyword.
func ValidateReadOnly(sql string) (string, error) {
	q := strings.TrimSpace(sql)
	q = strings.TrimSpace(strings.TrimRight(q, "; \t\n"))
	if q == "" {
		return "", fmt.Errorf("%w: empty query", ErrReadOnlyQuery)
	}
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrReadOnlyQuery)
	}

	fields := strings.Fields(strings.ToUpper(q))
	if fields[0] != "SELECT" && fields[0] != "WITH" {
		return "", fmt.Errorf("%w: starts with %s", ErrReadOnlyQuery, fields[0])
	}
	for _, f := range fields {
		word := strings.Trim(f, "(),")
		for _, kw := range writeKeywords {
			if word == kw {
				return "", fmt.Errorf("%w: contains %s", ErrReadOnlyQuery, kw)
			}
		}
	}
	return q, nil
}

// SchemaDescription documents the warehouse tables for SQL generation.
const SchemaDescription = `Dataset tables (BigQuery Standard SQL, refer to tables by bare name):

knot_transactions: one row per merchant order
  transaction_id STRING, external_id STRING, external_user_id STRING,
  merchant_id INT64, merchant_name STRING, datetime TIMESTAMP, url STRING,
  order_status STRING, payment_method_external_id STRING,
  payment_method_type STRING, payment_method_brand STRING,
  payment_method_last_four STRING, payment_method_transaction_amount NUMERIC,
  price_sub_total NUMERIC, price_total NUMERIC, price_currency STRING,
  total_discount NUMERIC, total_fee NUMERIC, total_tax NUMERIC,
  total_tip NUMERIC, adjustments_json JSON, loaded_ts TIMESTAMP

knot_products: one row per product line, joined on transaction_id
  transaction_id STRING, merchant_id INT64, merchant_name STRING,
  product_external_id STRING, product_name STRING, product_url STRING,
  quantity INT64, product_sub_total NUMERIC, product_total NUMERIC,
  product_unit_price NUMERIC, eligibility STRING, loaded_ts TIMESTAMP

nessie_records: bank bills, loans and deposits
  record_id STRING, account_id STRING, kind STRING (bills|loans|deposits),
  status STRING, amount NUMERIC, record_date DATE, description STRING,
  payload JSON, loaded_ts TIMESTAMP`
