package loader

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/altcredit/internal/bigquery"
	"github.com/dvloznov/altcredit/internal/knot"
	"github.com/dvloznov/altcredit/internal/nessie"
	"github.com/dvloznov/altcredit/internal/scoring"
	"github.com/shopspring/decimal"
)

// KnotTransactionRows converts flattened orders to warehouse rows.
// Unparseable order datetimes are stored as NULL.
func KnotTransactionRows(records []knot.TransactionRecord, externalUserID string, loadedAt time.Time) []*bq.KnotTransactionRow {
	rows := make([]*bq.KnotTransactionRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, &bq.KnotTransactionRow{
			TransactionID:                  r.TransactionID,
			ExternalID:                     r.ExternalID,
			ExternalUserID:                 externalUserID,
			MerchantID:                     int64(r.MerchantID),
			MerchantName:                   r.MerchantName,
			Datetime:                       nullTimestamp(r.Datetime),
			URL:                            bq.NullString(r.URL),
			OrderStatus:                    bq.NullString(r.OrderStatus),
			PaymentMethodExternalID:        bq.NullString(r.PaymentMethodExternalID),
			PaymentMethodType:              bq.NullString(r.PaymentMethodType),
			PaymentMethodBrand:             bq.NullString(r.PaymentMethodBrand),
			PaymentMethodLastFour:          bq.NullString(r.PaymentMethodLastFour),
			PaymentMethodTransactionAmount: nullRat(r.PaymentMethodTransactionAmount),
			PriceSubTotal:                  nullRat(r.PriceSubTotal),
			PriceTotal:                     nullRat(r.PriceTotal),
			PriceCurrency:                  r.PriceCurrency,
			TotalDiscount:                  r.TotalDiscount.Rat(),
			TotalFee:                       r.TotalFee.Rat(),
			TotalTax:                       r.TotalTax.Rat(),
			TotalTip:                       r.TotalTip.Rat(),
			AdjustmentsJSON:                bq.NullJSONFrom([]byte(r.AdjustmentsJSON)),
			LoadedTS:                       loadedAt,
		})
	}
	return rows
}

// KnotProductRows converts flattened product lines to warehouse rows.
func KnotProductRows(records []knot.ProductRecord, loadedAt time.Time) []*bq.KnotProductRow {
	rows := make([]*bq.KnotProductRow, 0, len(records))
	for _, r := range records {
		row := &bq.KnotProductRow{
			TransactionID:     r.TransactionID,
			MerchantID:        int64(r.MerchantID),
			MerchantName:      r.MerchantName,
			ProductExternalID: bq.NullString(r.ProductExternalID),
			ProductName:       r.ProductName,
			ProductURL:        bq.NullString(r.ProductURL),
			ProductSubTotal:   nullRat(r.ProductSubTotal),
			ProductTotal:      nullRat(r.ProductTotal),
			ProductUnitPrice:  nullRat(r.ProductUnitPrice),
			Eligibility:       bq.NullString(r.Eligibility),
			LoadedTS:          loadedAt,
		}
		if r.Quantity != nil {
			row.Quantity = bigquery.NullInt64{Int64: *r.Quantity, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// NessieRecordRows converts normalized Nessie records to warehouse rows.
func NessieRecordRows(records []nessie.Record, loadedAt time.Time) []*bq.NessieRecordRow {
	rows := make([]*bq.NessieRecordRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, &bq.NessieRecordRow{
			RecordID:    r.ID,
			AccountID:   r.AccountID,
			Kind:        string(r.Kind),
			Status:      bq.NullString(r.Status),
			Amount:      nullRat(r.Amount),
			RecordDate:  nullDate(r.Date),
			Description: bq.NullString(r.Description),
			Payload:     bq.NullJSONFrom(r.Raw),
			LoadedTS:    loadedAt,
		})
	}
	return rows
}

func nullRat(d decimal.NullDecimal) *big.Rat {
	if !d.Valid {
		return nil
	}
	return d.Decimal.Rat()
}

func nullTimestamp(s string) bigquery.NullTimestamp {
	if s == "" {
		return bigquery.NullTimestamp{}
	}
	t, err := scoring.ParseDate(s)
	if err != nil {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: t, Valid: true}
}

func nullDate(d *civil.Date) bigquery.NullDate {
	if d == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: *d, Valid: true}
}
