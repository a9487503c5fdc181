// Package loader moves merchant orders and bank records from the source
// APIs through the archive into the warehouse.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	bq "github.com/dvloznov/altcredit/internal/bigquery"
	"github.com/dvloznov/altcredit/internal/knot"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/metrics"
	"github.com/dvloznov/altcredit/internal/nessie"
	"github.com/rs/zerolog"
)

const (
	tableKnotTransactions = bq.KnotTransactionsTable
	tableKnotProducts     = bq.KnotProductsTable
	tableNessieRecords    = bq.NessieRecordsTable
)

// Source names a load origin.
type Source string

const (
	SourceKnot   Source = "knot"
	SourceNessie Source = "nessie"
)

func (s Source) String() string { return string(s) }

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceKnot:
		return SourceKnot, nil
	case SourceNessie:
		return SourceNessie, nil
	}
	return "", fmt.Errorf("unknown load source %q (want knot or nessie)", s)
}

// Mode selects whether a load appends to or replaces the target tables.
type Mode string

const (
	ModeAppend  Mode = "append"
	ModeReplace Mode = "replace"
)

// ParseMode validates a mode name. Empty means append.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModeReplace:
		return ModeReplace, nil
	}
	return "", fmt.Errorf("unknown load mode %q (want append or replace)", s)
}

// Result counts what a load wrote.
type Result struct {
	Transactions    int      `json:"transactions"`
	Products        int      `json:"products"`
	Records         int      `json:"records"`
	Archived        []string `json:"archived,omitempty"`
	FailedMerchants []string `json:"failedMerchants,omitempty"`
}

// KnotPuller pulls orders for a set of merchants.
type KnotPuller interface {
	PullAll(ctx context.Context, merchants map[string]int) (*knot.PullResult, error)
}

// NessieFetcher fetches every Nessie kind for the configured account.
type NessieFetcher interface {
	FetchAll(ctx context.Context) ([]*nessie.Result, error)
}

// Archiver stores raw payloads.
type Archiver interface {
	Snapshot(ctx context.Context, source, kind string, payload []byte, t time.Time) (string, error)
}

// Warehouse is the subset of the warehouse repository used by loads.
type Warehouse interface {
	InsertKnotTransactions(ctx context.Context, rows []*bq.KnotTransactionRow) error
	InsertKnotProducts(ctx context.Context, rows []*bq.KnotProductRow) error
	InsertNessieRecords(ctx context.Context, rows []*bq.NessieRecordRow) error
	TruncateTable(ctx context.Context, table string) error
}

// Config wires a Loader.
type Config struct {
	Knot           KnotPuller
	Nessie         NessieFetcher
	Archive        Archiver
	Warehouse      Warehouse
	Metrics        *metrics.Metrics
	Merchants      map[string]int
	ExternalUserID string
	Now            func() time.Time
}

// Loader runs warehouse loads.
type Loader struct {
	knot           KnotPuller
	nessie         NessieFetcher
	archive        Archiver
	warehouse      Warehouse
	metrics        *metrics.Metrics
	merchants      map[string]int
	externalUserID string
	now            func() time.Time
}

type noopArchiver struct{}

func (noopArchiver) Snapshot(context.Context, string, string, []byte, time.Time) (string, error) {
	return "", nil
}

// New creates a Loader. A nil Archive disables archiving.
func New(cfg Config) *Loader {
	l := &Loader{
		knot:           cfg.Knot,
		nessie:         cfg.Nessie,
		archive:        cfg.Archive,
		warehouse:      cfg.Warehouse,
		metrics:        cfg.Metrics,
		merchants:      cfg.Merchants,
		externalUserID: cfg.ExternalUserID,
		now:            cfg.Now,
	}
	if l.archive == nil {
		l.archive = noopArchiver{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Load runs the pipeline for source.
func (l *Loader) Load(ctx context.Context, source Source, mode Mode) (*Result, error) {
	switch source {
	case SourceKnot:
		return l.LoadKnot(ctx, mode)
	case SourceNessie:
		return l.LoadNessie(ctx, mode)
	}
	return nil, fmt.Errorf("unknown load source %q", source)
}

// LoadKnot pulls every configured merchant, archives the raw responses and
// inserts the flattened orders and products.
func (l *Loader) LoadKnot(ctx context.Context, mode Mode) (*Result, error) {
	if l.knot == nil {
		return nil, fmt.Errorf("LoadKnot: no knot client configured")
	}
	state := l.newState(mode)
	state.Merchants = l.merchants

	p := NewPipeline(
		&pullKnotStep{l: l},
		&archiveKnotStep{l: l},
		&truncateStep{l: l, tables: []string{tableKnotTransactions, tableKnotProducts}},
		&insertKnotStep{l: l},
	)
	return l.run(ctx, "knot", p, state)
}

// LoadKnotRecords inserts already flattened rows, e.g. read back from CSV.
func (l *Loader) LoadKnotRecords(ctx context.Context, mode Mode, txs []knot.TransactionRecord, products []knot.ProductRecord) (*Result, error) {
	state := l.newState(mode)
	state.Transactions = txs
	state.Products = products

	p := NewPipeline(
		&truncateStep{l: l, tables: []string{tableKnotTransactions, tableKnotProducts}},
		&insertKnotStep{l: l},
	)
	return l.run(ctx, "knot csv", p, state)
}

// LoadNessie fetches bills, loans and deposits, archives the raw responses
// and inserts the normalized records.
func (l *Loader) LoadNessie(ctx context.Context, mode Mode) (*Result, error) {
	if l.nessie == nil {
		return nil, fmt.Errorf("LoadNessie: no nessie client configured")
	}
	p := NewPipeline(
		&fetchNessieStep{l: l},
		&archiveNessieStep{l: l},
		&truncateStep{l: l, tables: []string{tableNessieRecords}},
		&insertNessieStep{l: l},
	)
	return l.run(ctx, "nessie", p, l.newState(mode))
}

func (l *Loader) newState(mode Mode) *PipelineState {
	if mode == "" {
		mode = ModeAppend
	}
	return &PipelineState{Mode: mode, LoadedAt: l.now().UTC()}
}

func (l *Loader) run(ctx context.Context, name string, p *Pipeline, state *PipelineState) (*Result, error) {
	log := l.log(ctx)
	log.Info().Str("load", name).Str("mode", string(state.Mode)).Msg("Starting warehouse load")

	if err := p.Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	log.Info().
		Str("load", name).
		Int("transactions", state.Result.Transactions).
		Int("products", state.Result.Products).
		Int("records", state.Result.Records).
		Int("archived", len(state.Result.Archived)).
		Strs("failed_merchants", state.Result.FailedMerchants).
		Msg("Warehouse load complete")

	res := state.Result
	return &res, nil
}

func (l *Loader) log(ctx context.Context) *zerolog.Logger {
	log := logger.FromContext(ctx)
	return &log
}

// slug lower-cases a merchant name for object names.
func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
