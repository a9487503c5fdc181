// Package knot talks to the Knot merchant data APIs: the session API used
// to fetch a user's Amazon orders for scoring, and the transaction sync
// endpoint pulled into the warehouse.
package knot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvloznov/altcredit/internal/config"
	"github.com/dvloznov/altcredit/internal/scoring"
)

const (
	headerAPIKey   = "X-Knot-API-Key"
	platformAmazon = "amazon"

	statusTimeout  = 5 * time.Second
	requestTimeout = 10 * time.Second

	sessionTransactionLimit = 100
)

// Client calls the Knot session API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	clientID   string
}

// NewClient creates a session API client. A nil httpClient uses
// http.DefaultClient; per-call deadlines come from the context.
func NewClient(cfg config.KnotConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		clientID:   cfg.ClientID,
	}
}

// Configured reports whether both the API key and client id are set.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.clientID != ""
}

// CheckStatus probes the health endpoint. Any HTTP response counts as
// connected; only transport failures are reported as disconnected.
func (c *Client) CheckStatus(ctx context.Context) Status {
	if !c.Configured() {
		return Status{Configured: false, Message: "Knot API credentials not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err == nil {
		var resp *http.Response
		resp, err = c.httpClient.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}
	if err != nil {
		return Status{
			Configured: true,
			Connected:  false,
			Message:    "Knot API credentials configured but connection failed",
			Error:      err.Error(),
		}
	}
	return Status{Configured: true, Connected: true, Message: "Knot API is connected"}
}

type sessionRequest struct {
	ClientID  string `json:"clientId"`
	UserEmail string `json:"userEmail"`
	Platform  string `json:"platform"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

type sessionTransactions struct {
	Transactions []scoring.Transaction `json:"transactions"`
}

// AmazonTransactions opens a session for email and reads up to 100 of the
// user's Amazon transactions. It returns ErrNotConfigured without
// credentials and never substitutes data of its own.
func (c *Client) AmazonTransactions(ctx context.Context, email string) ([]scoring.Transaction, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var session sessionResponse
	err := c.doJSON(ctx, "create session", http.MethodPost, c.baseURL+"/sessions", sessionRequest{
		ClientID:  c.clientID,
		UserEmail: email,
		Platform:  platformAmazon,
	}, &session)
	if err != nil {
		return nil, err
	}
	if session.SessionID == "" {
		return nil, fmt.Errorf("knot: create session: response has no sessionId")
	}

	q := url.Values{}
	q.Set("platform", platformAmazon)
	q.Set("limit", fmt.Sprint(sessionTransactionLimit))
	endpoint := fmt.Sprintf("%s/sessions/%s/transactions?%s", c.baseURL, url.PathEscape(session.SessionID), q.Encode())

	var out sessionTransactions
	if err := c.doJSON(ctx, "fetch transactions", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	if out.Transactions == nil {
		out.Transactions = []scoring.Transaction{}
	}
	return out.Transactions, nil
}

type linkRequest struct {
	UserID    string `json:"userId"`
	Platform  string `json:"platform"`
	AuthToken string `json:"authToken"`
}

// LinkAmazonAccount links a user's Amazon account with an auth token
// obtained from the Knot SDK.
func (c *Client) LinkAmazonAccount(ctx context.Context, userID, authToken string) (*LinkResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var out struct {
		AccountID string `json:"accountId"`
	}
	err := c.doJSON(ctx, "link account", http.MethodPost, c.baseURL+"/accounts/link", linkRequest{
		UserID:    userID,
		Platform:  platformAmazon,
		AuthToken: authToken,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to link Amazon account: %w", err)
	}
	return &LinkResult{Success: true, AccountID: out.AccountID}, nil
}

// doJSON sends body as JSON, requires a 200 response and decodes it into out.
func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("knot: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("knot: %s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("knot: %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("knot: %s: read response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("knot: %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIKey, c.apiKey)
	return req, nil
}
