package knot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOrder = `{
	"id": "ord-1",
	"external_id": "111-222",
	"datetime": "2025-04-02T18:30:00Z",
	"url": "https://amazon.com/o/111-222",
	"order_status": "COMPLETED",
	"payment_methods": [
		{"external_id": "pm-1", "type": "CARD", "brand": "VISA", "last_four": "4242", "transaction_amount": "31.17"},
		{"external_id": "pm-2", "type": "GIFT_CARD"}
	],
	"price": {
		"sub_total": "30.00",
		"total": 31.17,
		"currency": "USD",
		"adjustments": [
			{"type": "DISCOUNT", "label": "Coupon", "amount": "-2.00"},
			{"type": "PROMO", "label": "Promo", "amount": -0.50},
			{"type": "TAX", "label": "Tax", "amount": "2.67"},
			{"type": "FEE", "label": "Bag", "amount": "0.10"},
			{"type": "FEE", "label": "Service", "amount": "0.90"},
			{"type": "TIP", "label": "Tip", "amount": "not-a-number"},
			{"type": "OTHER", "amount": "99"}
		]
	},
	"products": [
		{"external_id": "B01", "name": "Notebook", "url": "https://amazon.com/p/B01", "quantity": 2,
		 "price": {"sub_total": "10.00", "total": "10.00", "unit_price": "5.00"}, "eligibility": ["FSA", "HSA"]},
		{"name": "Pen", "quantity": "x", "price": {"total": "20"}}
	]
}`

func decodeOrder(t *testing.T, s string) Order {
	t.Helper()
	var o Order
	require.NoError(t, json.Unmarshal([]byte(s), &o))
	return o
}

func TestFlattenOrder(t *testing.T) {
	rec := FlattenOrder(decodeOrder(t, sampleOrder), 44, "Amazon")

	assert.Equal(t, "ord-1", rec.TransactionID)
	assert.Equal(t, "111-222", rec.ExternalID)
	assert.Equal(t, 44, rec.MerchantID)
	assert.Equal(t, "Amazon", rec.MerchantName)
	assert.Equal(t, "COMPLETED", rec.OrderStatus)

	assert.Equal(t, "pm-1", rec.PaymentMethodExternalID)
	assert.Equal(t, "VISA", rec.PaymentMethodBrand)
	assert.Equal(t, "4242", rec.PaymentMethodLastFour)
	require.True(t, rec.PaymentMethodTransactionAmount.Valid)
	assert.Equal(t, "31.17", rec.PaymentMethodTransactionAmount.Decimal.StringFixed(2))

	assert.Equal(t, "30.00", rec.PriceSubTotal.Decimal.StringFixed(2))
	assert.Equal(t, "31.17", rec.PriceTotal.Decimal.StringFixed(2))
	assert.Equal(t, "USD", rec.PriceCurrency)

	assert.Equal(t, "-2.50", rec.TotalDiscount.StringFixed(2))
	assert.Equal(t, "1.00", rec.TotalFee.StringFixed(2))
	assert.Equal(t, "2.67", rec.TotalTax.StringFixed(2))
	assert.True(t, rec.TotalTip.IsZero(), "unparseable tip counts as zero")

	var adjustments []map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.AdjustmentsJSON), &adjustments))
	assert.Len(t, adjustments, 7)
}

func TestFlattenOrder_Sparse(t *testing.T) {
	rec := FlattenOrder(decodeOrder(t, `{"id":"ord-2","price":{"total":null}}`), 12, "Target")

	assert.Equal(t, "ord-2", rec.TransactionID)
	assert.Empty(t, rec.PaymentMethodType)
	assert.False(t, rec.PaymentMethodTransactionAmount.Valid)
	assert.False(t, rec.PriceTotal.Valid)
	assert.True(t, rec.TotalDiscount.IsZero())
	assert.Empty(t, rec.AdjustmentsJSON)
}

func TestFlattenProducts(t *testing.T) {
	products := FlattenProducts(decodeOrder(t, sampleOrder), 44, "Amazon")
	require.Len(t, products, 2)

	first := products[0]
	assert.Equal(t, "ord-1", first.TransactionID)
	assert.Equal(t, "B01", first.ProductExternalID)
	assert.Equal(t, "Notebook", first.ProductName)
	require.NotNil(t, first.Quantity)
	assert.EqualValues(t, 2, *first.Quantity)
	assert.Equal(t, "5.00", first.ProductUnitPrice.Decimal.StringFixed(2))
	assert.Equal(t, "FSA,HSA", first.Eligibility)

	second := products[1]
	assert.Nil(t, second.Quantity)
	assert.Empty(t, second.Eligibility)
	assert.False(t, second.ProductSubTotal.Valid)
	assert.Equal(t, "20", second.ProductTotal.Decimal.String())
}

func TestAmount_Unmarshal(t *testing.T) {
	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1.50","b":2.25,"c":null}`), &v))
	assert.Equal(t, Amount("1.50"), v.A)
	assert.Equal(t, Amount("2.25"), v.B)
	assert.Equal(t, Amount(""), v.C)
	assert.False(t, v.C.Decimal().Valid)
}
