package transactions

import (
	"context"
	"fmt"
	"time"

	bq "github.com/dvloznov/altcredit/internal/bigquery"
	"github.com/dvloznov/altcredit/internal/scoring"
)

const warehouseOrderLimit = 100

// OrderReader reads the orders loaded for a user.
type OrderReader interface {
	QueryUserOrders(ctx context.Context, externalUserID string, limit int) ([]*bq.KnotTransactionRow, error)
}

// Warehouse serves histories from the orders loaded into the warehouse.
type Warehouse struct {
	repo    OrderReader
	resolve func(email string) string
}

// NewWarehouse creates a warehouse source. resolve maps a login email to
// the external user id the orders were pulled for; nil uses the email.
func NewWarehouse(repo OrderReader, resolve func(email string) string) *Warehouse {
	if resolve == nil {
		resolve = func(email string) string { return email }
	}
	return &Warehouse{repo: repo, resolve: resolve}
}

// Transactions maps the user's orders to records: the order time is the
// date, price_total the amount and the merchant name the category.
// Orders without a timestamp are skipped.
func (w *Warehouse) Transactions(ctx context.Context, email string) ([]scoring.Transaction, error) {
	rows, err := w.repo.QueryUserOrders(ctx, w.resolve(email), warehouseOrderLimit)
	if err != nil {
		return nil, fmt.Errorf("warehouse transactions: %w", err)
	}

	out := make([]scoring.Transaction, 0, len(rows))
	for _, r := range rows {
		if !r.Datetime.Valid {
			continue
		}
		out = append(out, scoring.Transaction{
			ID:          r.TransactionID,
			Date:        r.Datetime.Timestamp.UTC().Format(time.RFC3339),
			Amount:      bq.RatFloat(r.PriceTotal),
			Category:    r.MerchantName,
			Description: fmt.Sprintf("%s order %s", r.MerchantName, r.ExternalID),
			Merchant:    r.MerchantName,
		})
	}
	return out, nil
}
