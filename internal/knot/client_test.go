package knot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/altcredit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.KnotConfig {
	return config.KnotConfig{
		APIKey:   "key-123",
		ClientID: "client-9",
		BaseURL:  baseURL,
	}
}

func TestClient_AmazonTransactions(t *testing.T) {
	var sessionBody sessionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-123", r.Header.Get("X-Knot-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sessionBody))
		_, _ = w.Write([]byte(`{"sessionId":"sess-1"}`))
	})
	mux.HandleFunc("/sessions/sess-1/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "amazon", r.URL.Query().Get("platform"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"transactions":[
			{"id":"t1","date":"2025-05-01T10:00:00Z","amount":42.5,"category":"Books","merchant":"Amazon.com"},
			{"id":"t2","date":"2025-05-03","amount":12,"category":"Groceries"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/"), srv.Client())
	txs, err := c.AmazonTransactions(context.Background(), "ada@example.com")
	require.NoError(t, err)

	assert.Equal(t, sessionRequest{ClientID: "client-9", UserEmail: "ada@example.com", Platform: "amazon"}, sessionBody)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, 42.5, txs[0].Amount)
	assert.Equal(t, "Groceries", txs[1].Category)
}

func TestClient_AmazonTransactions_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`invalid api key`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client())
	_, err := c.AmazonTransactions(context.Background(), "ada@example.com")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(config.KnotConfig{BaseURL: "http://unused.invalid", APIKey: "only-key"}, nil)

	_, err := c.AmazonTransactions(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.LinkAmazonAccount(context.Background(), "u1", "tok")
	assert.ErrorIs(t, err, ErrNotConfigured)

	status := c.CheckStatus(context.Background())
	assert.False(t, status.Configured)
	assert.False(t, status.Connected)
	assert.Equal(t, "Knot API credentials not configured", status.Message)
}

func TestClient_CheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	c := NewClient(testConfig(srv.URL), srv.Client())
	status := c.CheckStatus(context.Background())
	assert.Equal(t, Status{Configured: true, Connected: true, Message: "Knot API is connected"}, status)

	srv.Close()
	status = c.CheckStatus(context.Background())
	assert.True(t, status.Configured)
	assert.False(t, status.Connected)
	assert.NotEmpty(t, status.Error)
}

func TestClient_LinkAmazonAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/link", r.URL.Path)
		var body linkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, linkRequest{UserID: "u1", Platform: "amazon", AuthToken: "tok"}, body)
		_, _ = w.Write([]byte(`{"accountId":"acct-7"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client())
	res, err := c.LinkAmazonAccount(context.Background(), "u1", "tok")
	require.NoError(t, err)
	assert.Equal(t, &LinkResult{Success: true, AccountID: "acct-7"}, res)
}
