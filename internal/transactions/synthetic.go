package transactions

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/altcredit/internal/scoring"
	"github.com/google/uuid"
)

const (
	syntheticCount    = 20
	syntheticSpanDays = 180
	syntheticMin      = 10.0
	syntheticMax      = 200.0
	syntheticMerchant = "Amazon.com"
)

// SyntheticCategories are the categories drawn for synthetic records.
var SyntheticCategories = []string{"Electronics", "Books", "Home & Kitchen", "Clothing", "Groceries"}

// Synthetic generates a plausible Amazon purchase history. It exists for
// demos and for when no real source is available.
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSynthetic creates a generator drawing from rng with dates relative to
// now. Nil arguments use a time-seeded source and the wall clock.
func NewSynthetic(rng *rand.Rand, now func() time.Time) *Synthetic {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Synthetic{rng: rng, now: now}
}

// Generate returns 20 records dated within the last 180 days, newest first.
func (s *Synthetic) Generate() []scoring.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	out := make([]scoring.Transaction, syntheticCount)
	for i := range out {
		date := now.AddDate(0, 0, -s.rng.Intn(syntheticSpanDays+1))
		amount := syntheticMin + s.rng.Float64()*(syntheticMax-syntheticMin)

		id, err := uuid.NewRandomFromReader(s.rng)
		if err != nil {
			id = uuid.New()
		}

		out[i] = scoring.Transaction{
			ID:          "txn_" + id.String(),
			Date:        date.Format(time.RFC3339),
			Amount:      math.Round(amount*100) / 100,
			Category:    SyntheticCategories[s.rng.Intn(len(SyntheticCategories))],
			Description: fmt.Sprintf("Amazon Purchase %d", i+1),
			Merchant:    syntheticMerchant,
		}
	}

	// RFC3339 UTC strings sort chronologically.
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Date > out[b].Date
	})
	return out
}

// Transactions implements Source. The email is ignored.
func (s *Synthetic) Transactions(context.Context, string) ([]scoring.Transaction, error) {
	return s.Generate(), nil
}
