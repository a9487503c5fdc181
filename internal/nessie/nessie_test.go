package nessie

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/altcredit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	billsJSON = `[
		{"_id":"b1","status":"pending","payee":"Electric Co","nickname":"Power","creation_date":"2025-05-01","payment_date":"2025-05-15","payment_amount":82.4,"account_id":"acct-1"},
		{"_id":"b2","status":"completed","payee":"Water","creation_date":"2025-04-01","payment_amount":"20"}
	]`
	loansJSON    = `[{"_id":"l1","type":"auto","status":"approved","amount":12000,"creation_date":"2025-01-10T09:00:00Z","description":""}]`
	depositsJSON = `[{"_id":"d1","type":"deposit","transaction_date":"2025-03-03","status":"executed","amount":500,"description":"Paycheck"}]`
)

func newServer(t *testing.T, failKind string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		require.Len(t, parts, 3)
		assert.Equal(t, "accounts", parts[0])
		assert.Equal(t, "acct-1", parts[1])

		kind := parts[2]
		if kind == failKind {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"message":"Account not found"}`))
			return
		}
		switch kind {
		case "bills":
			_, _ = w.Write([]byte(billsJSON))
		case "loans":
			_, _ = w.Write([]byte(loansJSON))
		case "deposits":
			_, _ = w.Write([]byte(depositsJSON))
		}
	}))
}

func newClient(srv *httptest.Server) *Client {
	return NewClient(config.NessieConfig{BaseURL: srv.URL, APIKey: "secret", AccountID: "acct-1"}, srv.Client())
}

func TestClient_FetchBills(t *testing.T) {
	srv := newServer(t, "")
	defer srv.Close()

	res, err := newClient(srv).Fetch(context.Background(), KindBills)
	require.NoError(t, err)
	assert.JSONEq(t, billsJSON, string(res.Raw))
	require.Len(t, res.Records, 2)

	b1 := res.Records[0]
	assert.Equal(t, "b1", b1.ID)
	assert.Equal(t, KindBills, b1.Kind)
	assert.Equal(t, "pending", b1.Status)
	assert.Equal(t, "82.4", b1.Amount.Decimal.String())
	assert.Equal(t, &civil.Date{Year: 2025, Month: 5, Day: 15}, b1.Date)
	assert.Equal(t, "Power", b1.Description)

	b2 := res.Records[1]
	assert.Equal(t, "acct-1", b2.AccountID, "account id falls back to the client account")
	assert.Equal(t, &civil.Date{Year: 2025, Month: 4, Day: 1}, b2.Date, "creation_date when unpaid")
	assert.Equal(t, "Water", b2.Description)
	assert.True(t, b2.Amount.Valid)
}

func TestClient_FetchAll(t *testing.T) {
	srv := newServer(t, "")
	defer srv.Close()

	results, err := newClient(srv).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, KindBills, results[0].Kind)
	assert.Equal(t, KindLoans, results[1].Kind)
	assert.Equal(t, KindDeposits, results[2].Kind)

	loan := results[1].Records[0]
	assert.Equal(t, "auto", loan.Description)
	assert.Equal(t, &civil.Date{Year: 2025, Month: 1, Day: 10}, loan.Date)

	deposit := results[2].Records[0]
	assert.Equal(t, "Paycheck", deposit.Description)
	assert.Equal(t, "500", deposit.Amount.Decimal.String())
}

func TestClient_FetchAll_PartialFailure(t *testing.T) {
	srv := newServer(t, "loans")
	defer srv.Close()

	results, err := newClient(srv).FetchAll(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, KindLoans, httpErr.Kind)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, err.Error(), "Account not found")

	require.Len(t, results, 2)
	assert.Equal(t, KindBills, results[0].Kind)
	assert.Equal(t, KindDeposits, results[1].Kind)
}

func TestNormalize_InvalidBody(t *testing.T) {
	_, err := Normalize(KindBills, "acct", []byte(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("loans")
	require.NoError(t, err)
	assert.Equal(t, KindLoans, k)

	_, err = ParseKind("purchases")
	assert.Error(t, err)
}
