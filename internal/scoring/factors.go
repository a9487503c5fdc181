package scoring

import (
	"math"
	"sort"
	"time"
)

// threshold maps a lower bound to the points awarded at or above it.
type threshold struct {
	min    float64
	points int
}

// step returns the points of the first threshold v reaches, or fallback.
// Thresholds must be ordered from highest to lowest.
func step(v float64, thresholds []threshold, fallback int) int {
	for _, t := range thresholds {
		if v >= t.min {
			return t.points
		}
	}
	return fallback
}

var (
	volumeThresholds    = []threshold{{50, 100}, {30, 80}, {20, 60}, {10, 40}, {5, 20}}
	amountThresholds    = []threshold{{200, 100}, {150, 80}, {100, 60}, {50, 40}, {25, 20}}
	diversityThresholds = []threshold{{8, 100}, {6, 80}, {4, 60}, {2, 40}}
	recentThresholds    = []threshold{{10, 50}, {7, 40}, {5, 30}, {3, 20}, {1, 10}}
)

// VolumeScore awards up to 100 points for the number of transactions.
func VolumeScore(records []Transaction) int {
	return step(float64(len(records)), volumeThresholds, 10)
}

// ConsistencyScore awards up to 100 points for regular spacing between
// purchases, measured as the population standard deviation of day gaps.
func ConsistencyScore(records []Transaction) (int, error) {
	dates, err := parseDates(records)
	if err != nil {
		return 0, err
	}
	return consistencyScore(dates), nil
}

func consistencyScore(dates []time.Time) int {
	if len(dates) < 2 {
		return 0
	}

	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, float64(wholeDays(sorted[i].Sub(sorted[i-1]))))
	}
	if len(gaps) == 0 {
		return 0
	}

	sd := populationStdDev(gaps)
	switch {
	case sd < 10:
		return 100
	case sd < 20:
		return 80
	case sd < 30:
		return 60
	case sd < 45:
		return 40
	}
	return 20
}

// wholeDays returns the absolute number of complete days in d.
func wholeDays(d time.Duration) int {
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

func populationStdDev(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

// AmountScore awards up to 100 points for the average transaction amount.
// Missing amounts count as zero but still count towards the average.
func AmountScore(records []Transaction) int {
	var avg float64
	if len(records) > 0 {
		var sum float64
		for _, r := range records {
			sum += r.Amount
		}
		avg = sum / float64(len(records))
	}
	return step(avg, amountThresholds, 10)
}

// DiversityScore awards up to 100 points for the number of distinct,
// non-empty categories. Categories compare case-sensitively.
func DiversityScore(records []Transaction) int {
	categories := make(map[string]struct{})
	for _, r := range records {
		if r.Category != "" {
			categories[r.Category] = struct{}{}
		}
	}
	return step(float64(len(categories)), diversityThresholds, 20)
}

// RecentActivityScore awards up to 50 points for transactions dated within
// the RecencyWindow ending at now.
func RecentActivityScore(records []Transaction, now time.Time) (int, error) {
	dates, err := parseDates(records)
	if err != nil {
		return 0, err
	}
	return recentActivityScore(dates, now), nil
}

func recentActivityScore(dates []time.Time, now time.Time) int {
	since := now.Add(-RecencyWindow)
	count := 0
	for _, d := range dates {
		if !d.Before(since) && !d.After(now) {
			count++
		}
	}
	return step(float64(count), recentThresholds, 0)
}
