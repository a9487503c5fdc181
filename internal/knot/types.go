package knot

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount holds a monetary or count value exactly as Knot sent it. The API
// mixes JSON numbers and numeric strings, so both decode into Amount.
type Amount string

// UnmarshalJSON accepts a JSON string, number or null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*a = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*a = Amount(str)
	default:
		*a = Amount(s)
	}
	return nil
}

// Decimal parses the amount. Invalid or empty values are not Valid.
func (a Amount) Decimal() decimal.NullDecimal {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Order is one merchant order as returned by the transaction sync endpoint.
type Order struct {
	ID             string          `json:"id"`
	ExternalID     string          `json:"external_id"`
	Datetime       string          `json:"datetime"`
	URL            string          `json:"url"`
	OrderStatus    string          `json:"order_status"`
	PaymentMethods []PaymentMethod `json:"payment_methods"`
	Price          Price           `json:"price"`
	Products       []Product       `json:"products"`
}

type PaymentMethod struct {
	ExternalID        string `json:"external_id"`
	Type              string `json:"type"`
	Brand             string `json:"brand"`
	LastFour          string `json:"last_four"`
	TransactionAmount Amount `json:"transaction_amount"`
}

// Price carries the order totals. Adjustments are kept raw so they can be
// stored verbatim next to the per-type sums.
type Price struct {
	SubTotal    Amount            `json:"sub_total"`
	Total       Amount            `json:"total"`
	Currency    string            `json:"currency"`
	Adjustments []json.RawMessage `json:"adjustments"`
}

// Adjustment is a discount, fee, tax or tip applied to an order.
type Adjustment struct {
	Type   string `json:"type"`
	Label  string `json:"label"`
	Amount Amount `json:"amount"`
}

type Product struct {
	ExternalID  string       `json:"external_id"`
	Name        string       `json:"name"`
	URL         string       `json:"url"`
	Quantity    Amount       `json:"quantity"`
	Price       ProductPrice `json:"price"`
	Eligibility []string     `json:"eligibility"`
}

type ProductPrice struct {
	SubTotal  Amount `json:"sub_total"`
	Total     Amount `json:"total"`
	UnitPrice Amount `json:"unit_price"`
}

// SyncRequest is the body posted to the transaction sync endpoint.
type SyncRequest struct {
	MerchantID     int    `json:"merchant_id"`
	ExternalUserID string `json:"external_user_id"`
	Limit          int    `json:"limit"`
}

// SyncResponse is the decoded sync endpoint response.
type SyncResponse struct {
	Transactions []Order `json:"transactions"`
}

// Status reports whether the session API is configured and reachable.
type Status struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

// LinkResult is returned after linking a merchant account.
type LinkResult struct {
	Success   bool   `json:"success"`
	AccountID string `json:"accountId"`
}
