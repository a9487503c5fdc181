package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/altcredit/internal/knot"
	"github.com/dvloznov/altcredit/internal/nessie"
)

// PipelineStep represents a single step of a warehouse load.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Mode     Mode
	LoadedAt time.Time

	Merchants map[string]int
	KnotPull  *knot.PullResult

	Transactions []knot.TransactionRecord
	Products     []knot.ProductRecord

	NessieResults []*nessie.Result
	Records       []nessie.Record

	Result Result
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

type pullKnotStep struct{ l *Loader }

func (s *pullKnotStep) Name() string { return "pull knot" }

func (s *pullKnotStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.l.knot.PullAll(ctx, state.Merchants)
	if err != nil {
		return err
	}
	if len(res.Merchants) > 0 && len(res.Failed()) == len(res.Merchants) {
		return fmt.Errorf("every merchant pull failed")
	}
	state.KnotPull = res
	state.Transactions = res.Transactions
	state.Products = res.Products
	state.Result.FailedMerchants = res.Failed()
	return nil
}

type archiveKnotStep struct{ l *Loader }

func (s *archiveKnotStep) Name() string { return "archive knot" }

func (s *archiveKnotStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.KnotPull == nil {
		return nil
	}
	for _, m := range state.KnotPull.Merchants {
		if m.Err != nil || len(m.Raw) == 0 {
			continue
		}
		uri, err := s.l.archive.Snapshot(ctx, SourceKnot.String(), slug(m.Name), m.Raw, state.LoadedAt)
		if err != nil {
			return err
		}
		if uri != "" {
			state.Result.Archived = append(state.Result.Archived, uri)
		}
	}
	return nil
}

type truncateStep struct {
	l      *Loader
	tables []string
}

func (s *truncateStep) Name() string { return "truncate" }

func (s *truncateStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Mode != ModeReplace {
		return nil
	}
	for _, table := range s.tables {
		if err := s.l.warehouse.TruncateTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

type insertKnotStep struct{ l *Loader }

func (s *insertKnotStep) Name() string { return "insert knot" }

func (s *insertKnotStep) Execute(ctx context.Context, state *PipelineState) error {
	txRows := KnotTransactionRows(state.Transactions, s.l.externalUserID, state.LoadedAt)
	if err := s.l.warehouse.InsertKnotTransactions(ctx, txRows); err != nil {
		return err
	}
	s.l.metrics.RowsInserted(tableKnotTransactions, len(txRows))

	productRows := KnotProductRows(state.Products, state.LoadedAt)
	if err := s.l.warehouse.InsertKnotProducts(ctx, productRows); err != nil {
		return err
	}
	s.l.metrics.RowsInserted(tableKnotProducts, len(productRows))

	state.Result.Transactions = len(txRows)
	state.Result.Products = len(productRows)
	return nil
}

type fetchNessieStep struct{ l *Loader }

func (s *fetchNessieStep) Name() string { return "fetch nessie" }

func (s *fetchNessieStep) Execute(ctx context.Context, state *PipelineState) error {
	results, err := s.l.nessie.FetchAll(ctx)
	if err != nil {
		if len(results) == 0 {
			return err
		}
		s.l.log(ctx).Warn().Err(err).Int("kinds_fetched", len(results)).Msg("Some Nessie kinds failed, loading the rest")
	}
	state.NessieResults = results
	for _, r := range results {
		state.Records = append(state.Records, r.Records...)
	}
	return nil
}

type archiveNessieStep struct{ l *Loader }

func (s *archiveNessieStep) Name() string { return "archive nessie" }

func (s *archiveNessieStep) Execute(ctx context.Context, state *PipelineState) error {
	for _, r := range state.NessieResults {
		uri, err := s.l.archive.Snapshot(ctx, SourceNessie.String(), string(r.Kind), r.Raw, state.LoadedAt)
		if err != nil {
			return err
		}
		if uri != "" {
			state.Result.Archived = append(state.Result.Archived, uri)
		}
	}
	return nil
}

type insertNessieStep struct{ l *Loader }

func (s *insertNessieStep) Name() string { return "insert nessie" }

func (s *insertNessieStep) Execute(ctx context.Context, state *PipelineState) error {
	rows := NessieRecordRows(state.Records, state.LoadedAt)
	if err := s.l.warehouse.InsertNessieRecords(ctx, rows); err != nil {
		return err
	}
	s.l.metrics.RowsInserted(tableNessieRecords, len(rows))
	state.Result.Records = len(rows)
	return nil
}
