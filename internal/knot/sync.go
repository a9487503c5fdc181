package knot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/dvloznov/altcredit/internal/config"
	"github.com/dvloznov/altcredit/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// maxConcurrentMerchants bounds the merchants pulled at the same time.
const maxConcurrentMerchants = 4

// SyncClient pulls merchant orders from the transaction sync endpoint.
type SyncClient struct {
	httpClient     *http.Client
	url            string
	externalUserID string
	limit          int
	limiter        *rate.Limiter
}

// NewSyncClient creates a sync client. RequestsPerSecond <= 0 disables
// client-side rate limiting.
func NewSyncClient(cfg config.KnotConfig, httpClient *http.Client) *SyncClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout * 3}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &SyncClient{
		httpClient:     httpClient,
		url:            cfg.SyncURL,
		externalUserID: cfg.ExternalUserID,
		limit:          cfg.SyncLimit,
		limiter:        rate.NewLimiter(limit, 1),
	}
}

// SyncMerchant fetches the latest orders for one merchant. The raw response
// body is returned alongside the decoded orders for archiving.
func (c *SyncClient) SyncMerchant(ctx context.Context, merchantID int) (*SyncResponse, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("knot: sync merchant %d: %w", merchantID, err)
	}

	body, err := json.Marshal(SyncRequest{
		MerchantID:     merchantID,
		ExternalUserID: c.externalUserID,
		Limit:          c.limit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("knot: sync merchant %d: encode request: %w", merchantID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("knot: sync merchant %d: create request: %w", merchantID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("knot: sync merchant %d: %w", merchantID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("knot: sync merchant %d: read response: %w", merchantID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &APIError{Op: fmt.Sprintf("sync merchant %d", merchantID), StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out SyncResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, nil, fmt.Errorf("knot: sync merchant %d: decode response: %w", merchantID, err)
	}
	return &out, raw, nil
}

// MerchantPull is the outcome of pulling one merchant.
type MerchantPull struct {
	Name   string
	ID     int
	Orders []Order
	Raw    json.RawMessage
	Err    error
}

// PullResult holds every merchant outcome, ordered by merchant name, and
// the flattened rows of the successful ones.
type PullResult struct {
	Merchants    []MerchantPull
	Transactions []TransactionRecord
	Products     []ProductRecord
}

// Failed returns the names of merchants whose pull failed.
func (r *PullResult) Failed() []string {
	var names []string
	for _, m := range r.Merchants {
		if m.Err != nil {
			names = append(names, m.Name)
		}
	}
	return names
}

// PullAll pulls every merchant concurrently. A failing merchant is logged
// and skipped; only cancellation of ctx fails the whole pull.
func (c *SyncClient) PullAll(ctx context.Context, merchants map[string]int) (*PullResult, error) {
	log := logger.FromContext(ctx)

	names := make([]string, 0, len(merchants))
	for name := range merchants {
		names = append(names, name)
	}
	sort.Strings(names)

	pulls := make([]MerchantPull, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentMerchants)

	for i, name := range names {
		id := merchants[name]
		pulls[i] = MerchantPull{Name: name, ID: id}
		g.Go(func() error {
			resp, raw, err := c.SyncMerchant(gctx, id)
			if err != nil {
				log.Warn().Err(err).Str("merchant", name).Int("merchant_id", id).Msg("Failed to pull merchant")
				pulls[i].Err = err
				return nil
			}
			pulls[i].Orders = resp.Transactions
			pulls[i].Raw = raw
			log.Info().
				Str("merchant", name).
				Int("merchant_id", id).
				Int("orders", len(resp.Transactions)).
				Msg("Pulled merchant orders")
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("knot: pull all: %w", err)
	}

	result := &PullResult{Merchants: pulls}
	for _, m := range pulls {
		for _, o := range m.Orders {
			result.Transactions = append(result.Transactions, FlattenOrder(o, m.ID, m.Name))
			result.Products = append(result.Products, FlattenProducts(o, m.ID, m.Name)...)
		}
	}
	return result, nil
}
