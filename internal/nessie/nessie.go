// Package nessie pulls bills, loans and deposits for one account from the
// Nessie banking API and normalizes them into flat records.
package nessie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/altcredit/internal/config"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 30 * time.Second

// Kind names an account sub-resource.
type Kind string

const (
	KindBills    Kind = "bills"
	KindLoans    Kind = "loans"
	KindDeposits Kind = "deposits"
)

// Kinds lists every kind pulled by FetchAll.
var Kinds = []Kind{KindBills, KindLoans, KindDeposits}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown nessie kind %q", s)
}

// Record is a bill, loan or deposit reduced to the fields shared by all three.
type Record struct {
	ID          string
	AccountID   string
	Kind        Kind
	Status      string
	Amount      decimal.NullDecimal
	Date        *civil.Date
	Description string
	Raw         json.RawMessage
}

// Result is the response for one kind: the body as received and its records.
type Result struct {
	Kind    Kind
	Raw     json.RawMessage
	Records []Record
}

// HTTPError is a non-200 response from the Nessie API.
type HTTPError struct {
	Kind       Kind
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("nessie: fetch %s: status %d: %s", e.Kind, e.StatusCode, e.Body)
}

// Client reads one account from the Nessie API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	accountID  string
}

// NewClient creates a client for the configured account.
func NewClient(cfg config.NessieConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		accountID:  cfg.AccountID,
	}
}

// Fetch reads every item of kind for the account.
func (c *Client) Fetch(ctx context.Context, kind Kind) (*Result, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/%s?key=%s",
		c.baseURL, url.PathEscape(c.accountID), kind, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("nessie: fetch %s: create request: %w", kind, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nessie: fetch %s: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nessie: fetch %s: read response: %w", kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Kind: kind, StatusCode: resp.StatusCode, Body: string(body)}
	}

	records, err := Normalize(kind, c.accountID, body)
	if err != nil {
		return nil, fmt.Errorf("nessie: fetch %s: %w", kind, err)
	}
	return &Result{Kind: kind, Raw: body, Records: records}, nil
}

// FetchAll fetches all kinds concurrently. Results of the kinds that
// succeeded are returned in Kinds order together with the joined errors of
// the ones that failed.
func (c *Client) FetchAll(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(Kinds))
	errs := make([]error, len(Kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range Kinds {
		g.Go(func() error {
			results[i], errs[i] = c.Fetch(gctx, kind)
			return nil
		})
	}
	_ = g.Wait()

	var out []*Result
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, errors.Join(errs...)
}

type rawItem struct {
	ID              string              `json:"_id"`
	AccountID       string              `json:"account_id"`
	Type            string              `json:"type"`
	Status          string              `json:"status"`
	Payee           string              `json:"payee"`
	Nickname        string              `json:"nickname"`
	Description     string              `json:"description"`
	PaymentAmount   decimal.NullDecimal `json:"payment_amount"`
	Amount          decimal.NullDecimal `json:"amount"`
	PaymentDate     string              `json:"payment_date"`
	CreationDate    string              `json:"creation_date"`
	TransactionDate string              `json:"transaction_date"`
}

// Normalize decodes a JSON array of kind items into records. Bills use
// payment_amount and payment_date (falling back to creation_date), loans
// amount and creation_date, deposits amount and transaction_date.
func Normalize(kind Kind, accountID string, body []byte) ([]Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", kind, err)
	}

	records := make([]Record, 0, len(items))
	for i, raw := range items {
		var item rawItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode %s item %d: %w", kind, i, err)
		}

		rec := Record{
			ID:        item.ID,
			AccountID: item.AccountID,
			Kind:      kind,
			Status:    item.Status,
			Raw:       raw,
		}
		if rec.AccountID == "" {
			rec.AccountID = accountID
		}

		switch kind {
		case KindBills:
			rec.Amount = item.PaymentAmount
			rec.Date = parseDate(item.PaymentDate, item.CreationDate)
			rec.Description = firstNonEmpty(item.Nickname, item.Payee)
		case KindLoans:
			rec.Amount = item.Amount
			rec.Date = parseDate(item.CreationDate)
			rec.Description = firstNonEmpty(item.Description, item.Type)
		case KindDeposits:
			rec.Amount = item.Amount
			rec.Date = parseDate(item.TransactionDate)
			rec.Description = item.Description
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseDate returns the first candidate that starts with a YYYY-MM-DD date.
func parseDate(candidates ...string) *civil.Date {
	for _, s := range candidates {
		s = strings.TrimSpace(s)
		if len(s) < 10 {
			continue
		}
		if d, err := civil.ParseDate(s[:10]); err == nil {
			return &d
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
