package scoring

import (
	"time"
)

// RecencyWindow is the trailing interval counted by the recent-activity factor.
const RecencyWindow = 30 * 24 * time.Hour

// Engine scores transaction histories against a clock. It holds no state
// besides the clock and is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for the recency window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine reading the wall clock unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate scores records at the engine clock's current time.
func (e *Engine) Calculate(records []Transaction) (int, error) {
	return CalculateAt(records, e.now())
}

// Breakdown returns the per-factor breakdown at the engine clock's current time.
func (e *Engine) Breakdown(records []Transaction) (*Breakdown, error) {
	return BreakdownAt(records, e.now())
}

// CalculateAt returns the credit score of records evaluated at now. The
// result is always within [MinScore, MaxScore]; an empty history scores
// DefaultScore without evaluating any factor.
func CalculateAt(records []Transaction, now time.Time) (int, error) {
	if len(records) == 0 {
		return DefaultScore, nil
	}

	dates, err := parseDates(records)
	if err != nil {
		return 0, err
	}

	score := BaseScore +
		VolumeScore(records) +
		consistencyScore(dates) +
		AmountScore(records) +
		DiversityScore(records) +
		recentActivityScore(dates, now)

	return clamp(score, MinScore, MaxScore), nil
}

// BreakdownAt evaluates the five factors and the aggregate at now.
func BreakdownAt(records []Transaction, now time.Time) (*Breakdown, error) {
	total, err := CalculateAt(records, now)
	if err != nil {
		return nil, err
	}
	consistency, err := ConsistencyScore(records)
	if err != nil {
		return nil, err
	}
	recent, err := RecentActivityScore(records, now)
	if err != nil {
		return nil, err
	}

	return &Breakdown{
		TotalScore: total,
		Factors: map[string]Factor{
			FactorVolume: {
				Score:       VolumeScore(records),
				MaxScore:    MaxVolumeScore,
				Description: "Transaction volume",
			},
			FactorConsistency: {
				Score:       consistency,
				MaxScore:    MaxConsistencyScore,
				Description: "Purchase consistency",
			},
			FactorAmount: {
				Score:       AmountScore(records),
				MaxScore:    MaxAmountScore,
				Description: "Average transaction amount",
			},
			FactorDiversity: {
				Score:       DiversityScore(records),
				MaxScore:    MaxDiversityScore,
				Description: "Category diversity",
			},
			FactorRecentActivity: {
				Score:       recent,
				MaxScore:    MaxRecentActivityScore,
				Description: "Recent activity",
			},
		},
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
