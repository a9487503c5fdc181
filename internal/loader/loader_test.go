package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/altcredit/internal/bigquery"
	"github.com/dvloznov/altcredit/internal/knot"
	"github.com/dvloznov/altcredit/internal/metrics"
	"github.com/dvloznov/altcredit/internal/nessie"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loadTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockPuller struct {
	PullAllFunc func(ctx context.Context, merchants map[string]int) (*knot.PullResult, error)
}

func (m *mockPuller) PullAll(ctx context.Context, merchants map[string]int) (*knot.PullResult, error) {
	return m.PullAllFunc(ctx, merchants)
}

type mockFetcher struct {
	FetchAllFunc func(ctx context.Context) ([]*nessie.Result, error)
}

func (m *mockFetcher) FetchAll(ctx context.Context) ([]*nessie.Result, error) {
	return m.FetchAllFunc(ctx)
}

type snapshot struct {
	source, kind string
}

type mockArchiver struct {
	snapshots []snapshot
	err       error
}

func (m *mockArchiver) Snapshot(_ context.Context, source, kind string, _ []byte, _ time.Time) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.snapshots = append(m.snapshots, snapshot{source, kind})
	return "gs://bucket/" + source + "/" + kind + ".json", nil
}

type mockWarehouse struct {
	calls        []string
	transactions []*bq.KnotTransactionRow
	products     []*bq.KnotProductRow
	records      []*bq.NessieRecordRow
	insertErr    error
}

func (m *mockWarehouse) InsertKnotTransactions(_ context.Context, rows []*bq.KnotTransactionRow) error {
	m.calls = append(m.calls, "insert "+bq.KnotTransactionsTable)
	m.transactions = append(m.transactions, rows...)
	return m.insertErr
}

func (m *mockWarehouse) InsertKnotProducts(_ context.Context, rows []*bq.KnotProductRow) error {
	m.calls = append(m.calls, "insert "+bq.KnotProductsTable)
	m.products = append(m.products, rows...)
	return m.insertErr
}

func (m *mockWarehouse) InsertNessieRecords(_ context.Context, rows []*bq.NessieRecordRow) error {
	m.calls = append(m.calls, "insert "+bq.NessieRecordsTable)
	m.records = append(m.records, rows...)
	return m.insertErr
}

func (m *mockWarehouse) TruncateTable(_ context.Context, table string) error {
	m.calls = append(m.calls, "truncate "+table)
	return nil
}

func amazonPull() *knot.PullResult {
	qty := int64(2)
	return &knot.PullResult{
		Merchants: []knot.MerchantPull{
			{Name: "Amazon", ID: 44, Raw: json.RawMessage(`{"transactions":[]}`)},
			{Name: "Uber Eats", ID: 36, Err: errors.New("status 500")},
		},
		Transactions: []knot.TransactionRecord{{
			TransactionID: "tx-1",
			MerchantID:    44,
			MerchantName:  "Amazon",
			Datetime:      "2025-05-30T10:00:00Z",
			PriceTotal:    decimal.NewNullDecimal(decimal.RequireFromString("42.50")),
			TotalDiscount: decimal.RequireFromString("-5"),
			TotalFee:      decimal.Zero,
			TotalTax:      decimal.RequireFromString("3.25"),
			TotalTip:      decimal.Zero,
		}},
		Products: []knot.ProductRecord{{
			TransactionID: "tx-1",
			MerchantID:    44,
			MerchantName:  "Amazon",
			ProductName:   "Kettle",
			Quantity:      &qty,
		}},
	}
}

func newTestLoader(p KnotPuller, f NessieFetcher, a Archiver, w Warehouse, m *metrics.Metrics) *Loader {
	return New(Config{
		Knot:           p,
		Nessie:         f,
		Archive:        a,
		Warehouse:      w,
		Metrics:        m,
		Merchants:      map[string]int{"Amazon": 44, "Uber Eats": 36},
		ExternalUserID: "user-1",
		Now:            func() time.Time { return loadTime },
	})
}

func TestParseSourceAndMode(t *testing.T) {
	s, err := ParseSource(" Knot ")
	require.NoError(t, err)
	assert.Equal(t, SourceKnot, s)
	_, err = ParseSource("plaid")
	assert.Error(t, err)

	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, m)
	m, err = ParseMode("REPLACE")
	require.NoError(t, err)
	assert.Equal(t, ModeReplace, m)
	_, err = ParseMode("merge")
	assert.Error(t, err)
}

func TestLoadKnot_Append(t *testing.T) {
	puller := &mockPuller{PullAllFunc: func(_ context.Context, merchants map[string]int) (*knot.PullResult, error) {
		assert.Len(t, merchants, 2)
		return amazonPull(), nil
	}}
	archiver := &mockArchiver{}
	wh := &mockWarehouse{}
	m := metrics.New()

	res, err := newTestLoader(puller, nil, archiver, wh, m).LoadKnot(context.Background(), ModeAppend)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Transactions)
	assert.Equal(t, 1, res.Products)
	assert.Equal(t, []string{"Uber Eats"}, res.FailedMerchants)
	assert.Equal(t, []string{"gs://bucket/knot/amazon.json"}, res.Archived)
	assert.Equal(t, []snapshot{{"knot", "amazon"}}, archiver.snapshots)
	assert.Equal(t, []string{"insert knot_transactions", "insert knot_products"}, wh.calls)

	require.Len(t, wh.transactions, 1)
	row := wh.transactions[0]
	assert.Equal(t, "user-1", row.ExternalUserID)
	assert.Equal(t, loadTime, row.LoadedTS)
	assert.True(t, row.Datetime.Valid)
	assert.Equal(t, "42.50", bq.RatString(row.PriceTotal))
	assert.Equal(t, "3.25", bq.RatString(row.TotalTax))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RowsLoaded.WithLabelValues(bq.KnotTransactionsTable)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RowsLoaded.WithLabelValues(bq.KnotProductsTable)))
}

func TestLoadKnot_ReplaceTruncatesFirst(t *testing.T) {
	puller := &mockPuller{PullAllFunc: func(context.Context, map[string]int) (*knot.PullResult, error) {
		return amazonPull(), nil
	}}
	wh := &mockWarehouse{}

	_, err := newTestLoader(puller, nil, nil, wh, nil).LoadKnot(context.Background(), ModeReplace)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"truncate knot_transactions",
		"truncate knot_products",
		"insert knot_transactions",
		"insert knot_products",
	}, wh.calls)
}

func TestLoadKnot_EveryMerchantFailed(t *testing.T) {
	puller := &mockPuller{PullAllFunc: func(context.Context, map[string]int) (*knot.PullResult, error) {
		return &knot.PullResult{Merchants: []knot.MerchantPull{
			{Name: "Amazon", Err: errors.New("boom")},
		}}, nil
	}}
	wh := &mockWarehouse{}

	_, err := newTestLoader(puller, nil, nil, wh, nil).LoadKnot(context.Background(), ModeReplace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull knot")
	assert.Empty(t, wh.calls, "nothing truncated when the pull fails")
}

func TestLoadKnot_ArchiveErrorStopsLoad(t *testing.T) {
	puller := &mockPuller{PullAllFunc: func(context.Context, map[string]int) (*knot.PullResult, error) {
		return amazonPull(), nil
	}}
	wh := &mockWarehouse{}

	_, err := newTestLoader(puller, nil, &mockArchiver{err: errors.New("denied")}, wh, nil).
		LoadKnot(context.Background(), ModeAppend)
	require.Error(t, err)
	assert.Empty(t, wh.calls)
}

func TestLoadKnot_NoClient(t *testing.T) {
	_, err := newTestLoader(nil, nil, nil, &mockWarehouse{}, nil).LoadKnot(context.Background(), ModeAppend)
	assert.Error(t, err)
}

func nessieResults() []*nessie.Result {
	date := civil.Date{Year: 2025, Month: 5, Day: 2}
	return []*nessie.Result{{
		Kind: nessie.KindBills,
		Raw:  json.RawMessage(`[{"_id":"b1"}]`),
		Records: []nessie.Record{{
			ID:        "b1",
			AccountID: "acct",
			Kind:      nessie.KindBills,
			Status:    "pending",
			Amount:    decimal.NewNullDecimal(decimal.RequireFromString("120")),
			Date:      &date,
			Raw:       json.RawMessage(`{"_id":"b1"}`),
		}},
	}}
}

func TestLoadNessie_PartialFailure(t *testing.T) {
	fetcher := &mockFetcher{FetchAllFunc: func(context.Context) ([]*nessie.Result, error) {
		return nessieResults(), errors.New("loans: status 404")
	}}
	archiver := &mockArchiver{}
	wh := &mockWarehouse{}

	res, err := newTestLoader(nil, fetcher, archiver, wh, nil).Load(context.Background(), SourceNessie, ModeReplace)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)
	assert.Equal(t, []snapshot{{"nessie", "bills"}}, archiver.snapshots)
	assert.Equal(t, []string{"truncate nessie_records", "insert nessie_records"}, wh.calls)

	row := wh.records[0]
	assert.Equal(t, "bills", row.Kind)
	assert.True(t, row.RecordDate.Valid)
	assert.Equal(t, "2025-05-02", row.RecordDate.Date.String())
	assert.Equal(t, "120.00", bq.RatString(row.Amount))
	assert.False(t, row.Description.Valid)
}

func TestLoadNessie_TotalFailure(t *testing.T) {
	fetcher := &mockFetcher{FetchAllFunc: func(context.Context) ([]*nessie.Result, error) {
		return nil, errors.New("unreachable")
	}}
	wh := &mockWarehouse{}

	_, err := newTestLoader(nil, fetcher, nil, wh, nil).LoadNessie(context.Background(), ModeAppend)
	require.Error(t, err)
	assert.Empty(t, wh.calls)
}

func TestLoad_InsertErrorIsWrapped(t *testing.T) {
	fetcher := &mockFetcher{FetchAllFunc: func(context.Context) ([]*nessie.Result, error) {
		return nessieResults(), nil
	}}
	insertErr := errors.New("quota exceeded")

	_, err := newTestLoader(nil, fetcher, nil, &mockWarehouse{insertErr: insertErr}, nil).
		LoadNessie(context.Background(), ModeAppend)
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)
	assert.Contains(t, err.Error(), "insert nessie")
}

func TestKnotTransactionRows_NullHandling(t *testing.T) {
	rows := KnotTransactionRows([]knot.TransactionRecord{{
		TransactionID: "tx-2",
		Datetime:      "not a date",
	}}, "", loadTime)

	require.Len(t, rows, 1)
	assert.False(t, rows[0].Datetime.Valid)
	assert.Nil(t, rows[0].PriceTotal)
	assert.False(t, rows[0].URL.Valid)
	assert.False(t, rows[0].AdjustmentsJSON.Valid)
	assert.Equal(t, "0.00", bq.RatString(rows[0].TotalTip))
}

func TestCSV_RoundTrip(t *testing.T) {
	pull := amazonPull()
	pull.Transactions[0].AdjustmentsJSON = `[{"type":"TAX","amount":"3.25"}]`

	var txBuf, productBuf bytes.Buffer
	require.NoError(t, WriteTransactionsCSV(&txBuf, pull.Transactions))
	require.NoError(t, WriteProductsCSV(&productBuf, pull.Products))

	header, _, _ := strings.Cut(txBuf.String(), "\n")
	assert.Equal(t, strings.Join(TransactionColumns, ","), header)

	txs, err := ReadTransactionsCSV(&txBuf)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-1", txs[0].TransactionID)
	assert.Equal(t, 44, txs[0].MerchantID)
	assert.True(t, txs[0].PriceTotal.Decimal.Equal(decimal.RequireFromString("42.5")))
	assert.False(t, txs[0].PriceSubTotal.Valid)
	assert.True(t, txs[0].TotalDiscount.Equal(decimal.NewFromInt(-5)))
	assert.Equal(t, pull.Transactions[0].AdjustmentsJSON, txs[0].AdjustmentsJSON)

	products, err := ReadProductsCSV(&productBuf)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotNil(t, products[0].Quantity)
	assert.Equal(t, int64(2), *products[0].Quantity)
	assert.Equal(t, "Kettle", products[0].ProductName)
}

func TestReadTransactionsCSV_HeaderOrderAndErrors(t *testing.T) {
	txs, err := ReadTransactionsCSV(strings.NewReader("merchant_name,transaction_id\nAmazon,tx-9\n"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-9", txs[0].TransactionID)
	assert.True(t, txs[0].TotalFee.IsZero())

	_, err = ReadTransactionsCSV(strings.NewReader("merchant_name\nAmazon\n"))
	assert.ErrorContains(t, err, "missing column")

	_, err = ReadTransactionsCSV(strings.NewReader("transaction_id,merchant_id\ntx,abc\n"))
	assert.ErrorContains(t, err, "line 2")

	txs, err = ReadTransactionsCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestLoadKnotRecords(t *testing.T) {
	wh := &mockWarehouse{}
	pull := amazonPull()

	res, err := newTestLoader(nil, nil, nil, wh, nil).
		LoadKnotRecords(context.Background(), ModeAppend, pull.Transactions, pull.Products)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transactions)
	assert.Equal(t, 1, res.Products)
	assert.Empty(t, res.Archived)
}
