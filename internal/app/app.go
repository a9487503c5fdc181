// Package app assembles the collaborators shared by the altcredit binaries
// from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/altcredit/internal/archive"
	"github.com/dvloznov/altcredit/internal/config"
	infraBQ "github.com/dvloznov/altcredit/internal/infra/bigquery"
	"github.com/dvloznov/altcredit/internal/knot"
	"github.com/dvloznov/altcredit/internal/loader"
	"github.com/dvloznov/altcredit/internal/metrics"
	"github.com/dvloznov/altcredit/internal/nessie"
	"github.com/dvloznov/altcredit/internal/transactions"
)

// Source names accepted by TransactionSource.
const (
	SourceKnot      = "knot"
	SourceWarehouse = "warehouse"
)

// App holds the shared clients. Warehouse is nil when BigQuery is not
// configured.
type App struct {
	Config    *config.Config
	Metrics   *metrics.Metrics
	HTTP      *http.Client
	Knot      *knot.Client
	Warehouse *infraBQ.Repository
	Archive   *archive.Archive

	closers []func() error
}

// Open creates the clients described by cfg. The warehouse and the archive
// are optional and left disabled when their settings are missing.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*App, error) {
	a := &App{
		Config:  cfg,
		Metrics: m,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
	a.Knot = knot.NewClient(cfg.Knot, a.HTTP)

	if cfg.ValidateWarehouse() == nil {
		repo, err := infraBQ.NewRepository(ctx, cfg.Warehouse)
		if err != nil {
			return nil, fmt.Errorf("Open: warehouse: %w", err)
		}
		a.Warehouse = repo
		a.closers = append(a.closers, repo.Close)
	}

	if cfg.Archive.Bucket != "" {
		store, err := archive.NewGCSStorageService(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("Open: archive: %w", err)
		}
		a.Archive = archive.New(store, cfg.Archive.Bucket, cfg.Archive.Prefix)
		a.closers = append(a.closers, store.Close)
	} else {
		a.Archive = archive.New(nil, "", cfg.Archive.Prefix)
	}

	return a, nil
}

// Close releases every client opened by Open.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RequireWarehouse returns the repository or the reason it is unavailable.
func (a *App) RequireWarehouse() (*infraBQ.Repository, error) {
	if a.Warehouse == nil {
		return nil, fmt.Errorf("warehouse not configured: %w", a.Config.ValidateWarehouse())
	}
	return a.Warehouse, nil
}

// Loader returns a warehouse loader over the Knot sync API and Nessie.
func (a *App) Loader() (*loader.Loader, error) {
	repo, err := a.RequireWarehouse()
	if err != nil {
		return nil, err
	}
	return loader.New(loader.Config{
		Knot:           knot.NewSyncClient(a.Config.Knot, a.HTTP),
		Nessie:         nessie.NewClient(a.Config.Nessie, a.HTTP),
		Archive:        a.Archive,
		Warehouse:      repo,
		Metrics:        a.Metrics,
		Merchants:      a.Config.Knot.Merchants,
		ExternalUserID: a.Config.Knot.ExternalUserID,
	}), nil
}

// TransactionSource returns the scoring history source named by primary,
// backed by a synthetic history when the primary cannot answer.
func (a *App) TransactionSource(primary string) (*transactions.Fallback, error) {
	synthetic := transactions.NewSynthetic(nil, nil)

	var src transactions.Source
	switch primary {
	case "", SourceKnot:
		src = transactions.SourceFunc(a.Knot.AmazonTransactions)
	case SourceWarehouse:
		repo, err := a.RequireWarehouse()
		if err != nil {
			return nil, err
		}
		externalUserID := a.Config.Knot.ExternalUserID
		src = transactions.NewWarehouse(repo, func(string) string { return externalUserID })
	default:
		return nil, fmt.Errorf("unknown transaction source %q", primary)
	}

	return transactions.NewFallback(src, synthetic, a.Metrics), nil
}
