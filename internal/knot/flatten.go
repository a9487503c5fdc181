package knot

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Adjustment types summed into the flattened order totals.
const (
	AdjustmentDiscount = "DISCOUNT"
	AdjustmentPromo    = "PROMO"
	AdjustmentFee      = "FEE"
	AdjustmentTax      = "TAX"
	AdjustmentTip      = "TIP"
)

// TransactionRecord is one order flattened to a single row.
type TransactionRecord struct {
	TransactionID string
	ExternalID    string
	MerchantID    int
	MerchantName  string
	Datetime      string
	URL           string
	OrderStatus   string

	PaymentMethodExternalID        string
	PaymentMethodType              string
	PaymentMethodBrand             string
	PaymentMethodLastFour          string
	PaymentMethodTransactionAmount decimal.NullDecimal

	PriceSubTotal decimal.NullDecimal
	PriceTotal    decimal.NullDecimal
	PriceCurrency string

	TotalDiscount decimal.Decimal
	TotalFee      decimal.Decimal
	TotalTax      decimal.Decimal
	TotalTip      decimal.Decimal

	// AdjustmentsJSON is the raw adjustment list, empty when there is none.
	AdjustmentsJSON string
}

// ProductRecord is one product line of an order.
type ProductRecord struct {
	TransactionID     string
	MerchantID        int
	MerchantName      string
	ProductExternalID string
	ProductName       string
	ProductURL        string
	Quantity          *int64
	ProductSubTotal   decimal.NullDecimal
	ProductTotal      decimal.NullDecimal
	ProductUnitPrice  decimal.NullDecimal
	// Eligibility is the comma-joined eligibility list.
	Eligibility string
}

// FlattenOrder turns an order into a TransactionRecord. Only the first
// payment method is kept. Adjustments are summed by type; amounts that do
// not parse count as zero.
func FlattenOrder(o Order, merchantID int, merchantName string) TransactionRecord {
	rec := TransactionRecord{
		TransactionID: o.ID,
		ExternalID:    o.ExternalID,
		MerchantID:    merchantID,
		MerchantName:  merchantName,
		Datetime:      o.Datetime,
		URL:           o.URL,
		OrderStatus:   o.OrderStatus,
		PriceSubTotal: o.Price.SubTotal.Decimal(),
		PriceTotal:    o.Price.Total.Decimal(),
		PriceCurrency: o.Price.Currency,
		TotalDiscount: decimal.Zero,
		TotalFee:      decimal.Zero,
		TotalTax:      decimal.Zero,
		TotalTip:      decimal.Zero,
	}

	if len(o.PaymentMethods) > 0 {
		pm := o.PaymentMethods[0]
		rec.PaymentMethodExternalID = pm.ExternalID
		rec.PaymentMethodType = pm.Type
		rec.PaymentMethodBrand = pm.Brand
		rec.PaymentMethodLastFour = pm.LastFour
		rec.PaymentMethodTransactionAmount = pm.TransactionAmount.Decimal()
	}

	for _, raw := range o.Price.Adjustments {
		var adj Adjustment
		if err := json.Unmarshal(raw, &adj); err != nil {
			continue
		}
		amount := adj.Amount.Decimal()
		if !amount.Valid {
			continue
		}
		switch adj.Type {
		case AdjustmentDiscount, AdjustmentPromo:
			rec.TotalDiscount = rec.TotalDiscount.Add(amount.Decimal)
		case AdjustmentFee:
			rec.TotalFee = rec.TotalFee.Add(amount.Decimal)
		case AdjustmentTax:
			rec.TotalTax = rec.TotalTax.Add(amount.Decimal)
		case AdjustmentTip:
			rec.TotalTip = rec.TotalTip.Add(amount.Decimal)
		}
	}

	if len(o.Price.Adjustments) > 0 {
		if b, err := json.Marshal(o.Price.Adjustments); err == nil {
			rec.AdjustmentsJSON = string(b)
		}
	}
	return rec
}

// FlattenProducts returns one ProductRecord per product of the order.
func FlattenProducts(o Order, merchantID int, merchantName string) []ProductRecord {
	out := make([]ProductRecord, 0, len(o.Products))
	for _, p := range o.Products {
		rec := ProductRecord{
			TransactionID:     o.ID,
			MerchantID:        merchantID,
			MerchantName:      merchantName,
			ProductExternalID: p.ExternalID,
			ProductName:       p.Name,
			ProductURL:        p.URL,
			ProductSubTotal:   p.Price.SubTotal.Decimal(),
			ProductTotal:      p.Price.Total.Decimal(),
			ProductUnitPrice:  p.Price.UnitPrice.Decimal(),
			Eligibility:       strings.Join(p.Eligibility, ","),
		}
		if q := p.Quantity.Decimal(); q.Valid {
			n := q.Decimal.IntPart()
			rec.Quantity = &n
		}
		out = append(out, rec)
	}
	return out
}
