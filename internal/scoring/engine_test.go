package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pinnedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func iso(t time.Time) string {
	return t.Format(time.RFC3339)
}

// history builds n records spaced by gap, ending at end, cycling categories.
func history(n int, end time.Time, gap time.Duration, amount float64, categories []string) []Transaction {
	records := make([]Transaction, n)
	for i := 0; i < n; i++ {
		records[i] = Transaction{
			ID:       fmt.Sprintf("txn_%d", i),
			Date:     iso(end.Add(-time.Duration(i) * gap)),
			Amount:   amount,
			Category: categories[i%len(categories)],
		}
	}
	return records
}

func categories(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("cat-%d", i)
	}
	return out
}

func TestCalculateAt_Empty(t *testing.T) {
	score, err := CalculateAt(nil, pinnedNow)
	require.NoError(t, err)
	assert.Equal(t, 650, score)

	score, err = CalculateAt([]Transaction{}, pinnedNow)
	require.NoError(t, err)
	assert.Equal(t, 650, score)
}

func TestCalculateAt_Scenarios(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name    string
		records []Transaction
		want    int
	}{
		{
			name:    "twenty regular records older than the recency window",
			records: history(20, pinnedNow.Add(-40*day), 9*day, 105, categories(5)),
			want:    780,
		},
		{
			name: "single small record today",
			records: []Transaction{
				{Date: iso(pinnedNow), Amount: 5, Category: "Books"},
			},
			want: 550,
		},
		{
			name:    "heavy recent activity is clamped",
			records: history(60, pinnedNow, 12*time.Hour, 250, categories(10)),
			want:    850,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateAt(tt.records, pinnedNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBreakdownAt_MatchesFactors(t *testing.T) {
	day := 24 * time.Hour
	records := history(20, pinnedNow.Add(-40*day), 9*day, 105, categories(5))

	b, err := BreakdownAt(records, pinnedNow)
	require.NoError(t, err)

	assert.Equal(t, 780, b.TotalScore)
	assert.Equal(t, Factor{Score: 60, MaxScore: 100, Description: "Transaction volume"}, b.Factors[FactorVolume])
	assert.Equal(t, Factor{Score: 100, MaxScore: 100, Description: "Purchase consistency"}, b.Factors[FactorConsistency])
	assert.Equal(t, Factor{Score: 60, MaxScore: 100, Description: "Average transaction amount"}, b.Factors[FactorAmount])
	assert.Equal(t, Factor{Score: 60, MaxScore: 100, Description: "Category diversity"}, b.Factors[FactorDiversity])
	assert.Equal(t, Factor{Score: 0, MaxScore: 50, Description: "Recent activity"}, b.Factors[FactorRecentActivity])

	sum := BaseScore
	for _, f := range b.Factors {
		sum += f.Score
	}
	assert.Equal(t, b.TotalScore, clamp(sum, MinScore, MaxScore))
}

func TestBreakdownAt_JSONShape(t *testing.T) {
	b, err := BreakdownAt([]Transaction{{Date: iso(pinnedNow), Amount: 5, Category: "Books"}}, pinnedNow)
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 550, decoded["totalScore"])
	factors := decoded["factors"].(map[string]any)
	assert.Contains(t, factors, "recentActivity")
	assert.EqualValues(t, 50, factors["recentActivity"].(map[string]any)["maxScore"])
}

func TestCalculateAt_MissingAmountCountsAsZero(t *testing.T) {
	var records []Transaction
	payload := fmt.Sprintf(`[
		{"date": %q, "amount": 60, "category": "Books"},
		{"date": %q, "category": "Books"}
	]`, iso(pinnedNow.AddDate(0, -3, 0)), iso(pinnedNow.AddDate(0, -4, 0)))
	require.NoError(t, json.Unmarshal([]byte(payload), &records))

	// Average is (60 + 0) / 2 = 30, not 60.
	assert.Equal(t, 20, AmountScore(records))
}

func TestCalculateAt_InvalidDate(t *testing.T) {
	tests := []struct {
		name    string
		records []Transaction
		index   int
	}{
		{
			name:    "missing date",
			records: []Transaction{{Date: iso(pinnedNow)}, {Amount: 10}},
			index:   1,
		},
		{
			name:    "unparseable date",
			records: []Transaction{{Date: "last tuesday"}},
			index:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateAt(tt.records, pinnedNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRecord))

			var recErr *InvalidRecordError
			require.True(t, errors.As(err, &recErr))
			assert.Equal(t, tt.index, recErr.Index)
			assert.Equal(t, "date", recErr.Field)

			_, err = BreakdownAt(tt.records, pinnedNow)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestCalculateAt_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(80)
		records := make([]Transaction, n)
		for j := range records {
			records[j] = Transaction{
				Date:     iso(pinnedNow.Add(-time.Duration(rng.Intn(400*24)) * time.Hour)),
				Amount:   rng.Float64() * 500,
				Category: fmt.Sprintf("c%d", rng.Intn(12)),
			}
		}
		score, err := CalculateAt(records, pinnedNow)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, MinScore)
		assert.LessOrEqual(t, score, MaxScore)
	}
}

func TestCalculateAt_OrderIndependentAndDeterministic(t *testing.T) {
	records := []Transaction{
		{Date: "2025-01-03T10:00:00Z", Amount: 12, Category: "Books"},
		{Date: "2025-05-20T08:30:00Z", Amount: 240, Category: "Electronics"},
		{Date: "2025-02-14", Amount: 80, Category: "Clothing"},
		{Date: "2025-05-30T23:59:59.5Z", Amount: 33.5},
		{Date: "2025-04-01T00:00:00+02:00", Amount: 150, Category: "Groceries"},
		{Date: "2025-03-11T09:15:00.123456", Amount: 64, Category: "Books"},
	}
	want, err := CalculateAt(records, pinnedNow)
	require.NoError(t, err)

	again, err := CalculateAt(records, pinnedNow)
	require.NoError(t, err)
	assert.Equal(t, want, again)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]Transaction(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := CalculateAt(shuffled, pinnedNow)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEngine_UsesInjectedClock(t *testing.T) {
	records := []Transaction{{Date: iso(pinnedNow.Add(-time.Hour)), Amount: 5, Category: "Books"}}

	engine := NewEngine(WithClock(func() time.Time { return pinnedNow }))
	score, err := engine.Calculate(records)
	require.NoError(t, err)
	assert.Equal(t, 550, score)

	later := NewEngine(WithClock(func() time.Time { return pinnedNow.AddDate(0, 2, 0) }))
	score, err = later.Calculate(records)
	require.NoError(t, err)
	assert.Equal(t, 540, score, "record falls out of the recency window")

	b, err := engine.Breakdown(records)
	require.NoError(t, err)
	assert.Equal(t, 10, b.Factors[FactorRecentActivity].Score)
}
