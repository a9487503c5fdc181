package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dvloznov/altcredit/internal/knot"
	"github.com/shopspring/decimal"
)

// TransactionColumns is the column order of transactions.csv.
var TransactionColumns = []string{
	"transaction_id", "external_id", "merchant_id", "merchant_name",
	"datetime", "url", "order_status",
	"payment_method_external_id", "payment_method_type", "payment_method_brand",
	"payment_method_last_four", "payment_method_transaction_amount",
	"price_sub_total", "price_total", "price_currency",
	"total_discount", "total_fee", "total_tax", "total_tip", "adjustments_json",
}

// ProductColumns is the column order of products.csv.
var ProductColumns = []string{
	"transaction_id", "merchant_id", "merchant_name",
	"product_external_id", "product_name", "product_url",
	"quantity", "product_sub_total", "product_total", "product_unit_price",
	"eligibility",
}

// WriteTransactionsCSV writes records with a header row.
func WriteTransactionsCSV(w io.Writer, records []knot.TransactionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TransactionColumns); err != nil {
		return fmt.Errorf("WriteTransactionsCSV: header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.TransactionID, r.ExternalID, strconv.Itoa(r.MerchantID), r.MerchantName,
			r.Datetime, r.URL, r.OrderStatus,
			r.PaymentMethodExternalID, r.PaymentMethodType, r.PaymentMethodBrand,
			r.PaymentMethodLastFour, nullDecimalString(r.PaymentMethodTransactionAmount),
			nullDecimalString(r.PriceSubTotal), nullDecimalString(r.PriceTotal), r.PriceCurrency,
			r.TotalDiscount.String(), r.TotalFee.String(), r.TotalTax.String(), r.TotalTip.String(),
			r.AdjustmentsJSON,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("WriteTransactionsCSV: row %s: %w", r.TransactionID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProductsCSV writes product lines with a header row.
func WriteProductsCSV(w io.Writer, records []knot.ProductRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ProductColumns); err != nil {
		return fmt.Errorf("WriteProductsCSV: header: %w", err)
	}
	for _, r := range records {
		quantity := ""
		if r.Quantity != nil {
			quantity = strconv.FormatInt(*r.Quantity, 10)
		}
		row := []string{
			r.TransactionID, strconv.Itoa(r.MerchantID), r.MerchantName,
			r.ProductExternalID, r.ProductName, r.ProductURL,
			quantity, nullDecimalString(r.ProductSubTotal), nullDecimalString(r.ProductTotal),
			nullDecimalString(r.ProductUnitPrice),
			r.Eligibility,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("WriteProductsCSV: row %s: %w", r.TransactionID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransactionsCSV reads records written by WriteTransactionsCSV.
// Columns are matched by header name, so their order does not matter.
func ReadTransactionsCSV(r io.Reader) ([]knot.TransactionRecord, error) {
	rows, err := readCSV(r, "transaction_id")
	if err != nil {
		return nil, fmt.Errorf("ReadTransactionsCSV: %w", err)
	}

	out := make([]knot.TransactionRecord, 0, len(rows))
	for i, row := range rows {
		merchantID, err := atoi(row["merchant_id"])
		if err != nil {
			return nil, fmt.Errorf("ReadTransactionsCSV: line %d: merchant_id: %w", i+2, err)
		}
		out = append(out, knot.TransactionRecord{
			TransactionID:                  row["transaction_id"],
			ExternalID:                     row["external_id"],
			MerchantID:                     merchantID,
			MerchantName:                   row["merchant_name"],
			Datetime:                       row["datetime"],
			URL:                            row["url"],
			OrderStatus:                    row["order_status"],
			PaymentMethodExternalID:        row["payment_method_external_id"],
			PaymentMethodType:              row["payment_method_type"],
			PaymentMethodBrand:             row["payment_method_brand"],
			PaymentMethodLastFour:          row["payment_method_last_four"],
			PaymentMethodTransactionAmount: parseNullDecimal(row["payment_method_transaction_amount"]),
			PriceSubTotal:                  parseNullDecimal(row["price_sub_total"]),
			PriceTotal:                     parseNullDecimal(row["price_total"]),
			PriceCurrency:                  row["price_currency"],
			TotalDiscount:                  parseDecimal(row["total_discount"]),
			TotalFee:                       parseDecimal(row["total_fee"]),
			TotalTax:                       parseDecimal(row["total_tax"]),
			TotalTip:                       parseDecimal(row["total_tip"]),
			AdjustmentsJSON:                row["adjustments_json"],
		})
	}
	return out, nil
}

// ReadProductsCSV reads product lines written by WriteProductsCSV.
func ReadProductsCSV(r io.Reader) ([]knot.ProductRecord, error) {
	rows, err := readCSV(r, "transaction_id")
	if err != nil {
		return nil, fmt.Errorf("ReadProductsCSV: %w", err)
	}

	out := make([]knot.ProductRecord, 0, len(rows))
	for i, row := range rows {
		merchantID, err := atoi(row["merchant_id"])
		if err != nil {
			return nil, fmt.Errorf("ReadProductsCSV: line %d: merchant_id: %w", i+2, err)
		}
		rec := knot.ProductRecord{
			TransactionID:     row["transaction_id"],
			MerchantID:        merchantID,
			MerchantName:      row["merchant_name"],
			ProductExternalID: row["product_external_id"],
			ProductName:       row["product_name"],
			ProductURL:        row["product_url"],
			ProductSubTotal:   parseNullDecimal(row["product_sub_total"]),
			ProductTotal:      parseNullDecimal(row["product_total"]),
			ProductUnitPrice:  parseNullDecimal(row["product_unit_price"]),
			Eligibility:       row["eligibility"],
		}
		if q := row["quantity"]; q != "" {
			n, err := strconv.ParseInt(q, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("ReadProductsCSV: line %d: quantity: %w", i+2, err)
			}
			rec.Quantity = &n
		}
		out = append(out, rec)
	}
	return out, nil
}

// readCSV returns each data row keyed by header name.
func readCSV(r io.Reader, required ...string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for name, i := range index {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func nullDecimalString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func parseNullDecimal(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// parseDecimal reads an adjustment total. Blank or bad input is zero.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
