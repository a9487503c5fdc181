// Package transactions retrieves the purchase history that gets scored.
// Sources are interchangeable; Fallback puts a synthetic history behind a
// failing or unconfigured primary source.
package transactions

import (
	"context"
	"errors"

	"github.com/dvloznov/altcredit/internal/knot"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/metrics"
	"github.com/dvloznov/altcredit/internal/scoring"
)

// Source returns the transaction history of a user.
type Source interface {
	Transactions(ctx context.Context, email string) ([]scoring.Transaction, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, email string) ([]scoring.Transaction, error)

func (f SourceFunc) Transactions(ctx context.Context, email string) ([]scoring.Transaction, error) {
	return f(ctx, email)
}

// Origin names the source that served a history.
type Origin string

const (
	OriginPrimary   Origin = "primary"
	OriginSynthetic Origin = "synthetic"
)

// Fallback reasons reported to metrics.
const (
	reasonNoPrimary     = "no_primary"
	reasonNotConfigured = "not_configured"
	reasonError         = "error"
)

// Fallback serves the primary source and substitutes the synthetic one when
// the primary is missing, unconfigured or failing.
type Fallback struct {
	primary   Source
	synthetic Source
	metrics   *metrics.Metrics
}

// NewFallback creates a Fallback. primary may be nil; m may be nil.
func NewFallback(primary, synthetic Source, m *metrics.Metrics) *Fallback {
	return &Fallback{primary: primary, synthetic: synthetic, metrics: m}
}

// Fetch returns the history together with the origin that served it.
func (f *Fallback) Fetch(ctx context.Context, email string) ([]scoring.Transaction, Origin, error) {
	log := logger.FromContext(ctx)

	if f.primary == nil {
		return f.useSynthetic(ctx, email, reasonNoPrimary)
	}

	txs, err := f.primary.Transactions(ctx, email)
	if err == nil {
		return txs, OriginPrimary, nil
	}

	reason := reasonError
	if errors.Is(err, knot.ErrNotConfigured) {
		reason = reasonNotConfigured
		log.Info().Msg("Transaction source not configured, using synthetic history")
	} else {
		log.Warn().Err(err).Msg("Transaction source failed, using synthetic history")
	}
	return f.useSynthetic(ctx, email, reason)
}

func (f *Fallback) useSynthetic(ctx context.Context, email, reason string) ([]scoring.Transaction, Origin, error) {
	f.metrics.Fallback(reason)
	txs, err := f.synthetic.Transactions(ctx, email)
	if err != nil {
		return nil, OriginSynthetic, err
	}
	return txs, OriginSynthetic, nil
}

// Transactions implements Source.
func (f *Fallback) Transactions(ctx context.Context, email string) ([]scoring.Transaction, error) {
	txs, _, err := f.Fetch(ctx, email)
	return txs, err
}
